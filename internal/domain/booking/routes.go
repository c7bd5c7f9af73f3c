package booking

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the resident endpoints; rg must be authenticated.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/bookings")
	{
		g.POST("", h.CreateBooking)
		g.GET("/me", h.GetMyBookings)
		g.GET("/:id", h.GetBooking)
		g.PATCH("/:id/cancel", h.CancelBooking)
	}
}

func (h *Handler) RegisterManagerRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/bookings")
	{
		g.GET("", h.ListBookings)
		g.PATCH("/:id/status", h.UpdateStatus)
	}
}
