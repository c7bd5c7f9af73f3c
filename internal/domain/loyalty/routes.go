package loyalty

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the resident-facing loyalty endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/loyalty")
	{
		g.GET("/tiers", h.GetTiers)
		g.GET("/me", h.GetMyState)
		g.GET("/me/history", h.GetMyHistory)
	}
}

// RegisterManagerRoutes mounts the console endpoints; rg is expected to be
// guarded by the manager role.
func (h *Handler) RegisterManagerRoutes(rg *gin.RouterGroup) {
	rg.GET("/loyalty/:user_id", h.GetUserState)
}
