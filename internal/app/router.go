package app

import (
	"net/http"

	"communityhub/internal/domain/booking"
	"communityhub/internal/domain/capacity"
	"communityhub/internal/domain/loyalty"
	"communityhub/internal/domain/report"
	"communityhub/internal/middleware"
	jwtsvc "communityhub/internal/pkg/jwt"
	"communityhub/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RouterDeps struct {
	DB          *gorm.DB
	Services    *Services
	Hub         *realtime.Hub
	Tokens      *jwtsvc.Service
	Log         *zap.Logger
	CORSOrigins []string
}

// NewRouter mounts the HTTP API. Manager routes sit behind JWTAuth and
// ManagerOnly; the console feed checks its own token.
func NewRouter(d RouterDeps) *gin.Engine {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	bookingHandler := booking.NewHandler(d.Services.Bookings)
	capacityHandler := capacity.NewHandler(d.Services.Pool)
	loyaltyHandler := loyalty.NewHandler(d.Services.Ledger)
	reportHandler := report.NewHandler(d.Services.Reports)

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.ErrorLogger(log),
		middleware.RequestLogger(log),
		middleware.CORS(d.CORSOrigins),
	)

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		// public
		capacityHandler.RegisterRoutes(v1)

		if d.Hub != nil {
			realtime.NewHandler(d.Hub, d.Tokens).RegisterRoutes(v1.Group("/manage"))
		}

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(d.Tokens))
		{
			bookingHandler.RegisterRoutes(protected)
			loyaltyHandler.RegisterRoutes(protected)
		}

		manage := protected.Group("/manage")
		manage.Use(middleware.ManagerOnly())
		{
			bookingHandler.RegisterManagerRoutes(manage)
			loyaltyHandler.RegisterManagerRoutes(manage)
			reportHandler.RegisterRoutes(manage)
		}
	}

	return r
}
