package realtime

import (
	"net/http"
	"strings"

	"communityhub/internal/pkg/jwt"
	"communityhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	hub *Hub
	jwt *jwt.Service
	log *zap.Logger
}

func NewHandler(hub *Hub, jwtService *jwt.Service) *Handler {
	return &Handler{hub: hub, jwt: jwtService, log: hub.log}
}

// ServeWS upgrades a manager console to the live booking feed.
//
// Browsers cannot set headers on a WebSocket handshake, so the token is
// read from ?token= when no bearer header is present.
func (h *Handler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token is required")
		return
	}

	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
		return
	}
	if claims.Role != jwt.RoleManager {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Manager role required")
		return
	}

	conn, err := h.hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.hub.serve(conn, claims.UserID)
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws", h.ServeWS)
}
