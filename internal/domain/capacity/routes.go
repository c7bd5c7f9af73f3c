package capacity

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/resources", h.ListResources)
	rg.GET("/resources/:id/availability", h.GetAvailability)
}
