package loyalty

import (
	"net/http"
	"strconv"

	"communityhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	ledger *Ledger
}

func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// GetTiers returns the configured tier table.
func (h *Handler) GetTiers(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"tiers": h.ledger.Table().Tiers()})
}

func (h *Handler) GetMyState(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	h.writeState(c, userID)
}

func (h *Handler) GetMyHistory(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.ledger.History(c.Request.Context(), userID, limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"accruals": items})
}

// GetUserState is the manager view of any resident's loyalty state.
func (h *Handler) GetUserState(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}
	h.writeState(c, userID)
}

func (h *Handler) writeState(c *gin.Context, userID int64) {
	st, err := h.ledger.State(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"loyalty": st})
}
