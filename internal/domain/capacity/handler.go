package capacity

import (
	"net/http"

	"communityhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	pool *Pool
}

func NewHandler(pool *Pool) *Handler {
	return &Handler{pool: pool}
}

func (h *Handler) ListResources(c *gin.Context) {
	items, err := h.pool.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}

	kind := c.Query("kind")
	out := make([]Availability, 0, len(items))
	for _, r := range items {
		if kind != "" && r.Kind != kind {
			continue
		}
		out = append(out, r.Availability())
	}
	response.Success(c, http.StatusOK, gin.H{"resources": out})
}

func (h *Handler) GetAvailability(c *gin.Context) {
	res, err := h.pool.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"availability": res.Availability()})
}
