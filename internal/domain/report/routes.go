package report

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the console reports; rg is expected to be guarded
// by the manager role.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/reports")
	{
		g.GET("/revenue", h.GetRevenue)
		g.GET("/transactions", h.GetTransactions)
		g.GET("/status-counts", h.GetStatusCounts)
	}
}
