package report

import (
	"net/http"
	"strconv"
	"time"

	"communityhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetRevenue(c *gin.Context) {
	w, ok := bindWindow(c)
	if !ok {
		return
	}
	rev, err := h.service.RevenueByService(c.Request.Context(), w)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revenue": rev})
}

func (h *Handler) GetTransactions(c *gin.Context) {
	w, ok := bindWindow(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := h.service.Transactions(c.Request.Context(), w, limit, offset)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"transactions": items,
		"total":        total,
	})
}

func (h *Handler) GetStatusCounts(c *gin.Context) {
	counts, err := h.service.StatusCounts(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"counts": counts})
}

// bindWindow reads ?from= and ?to= as RFC3339 timestamps or plain dates.
// A plain `to` date includes that whole day.
func bindWindow(c *gin.Context) (Window, bool) {
	var w Window
	var err error
	if v := c.Query("from"); v != "" {
		if w.From, _, err = parseBound(v); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid from")
			return w, false
		}
	}
	if v := c.Query("to"); v != "" {
		var dateOnly bool
		if w.To, dateOnly, err = parseBound(v); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid to")
			return w, false
		}
		if dateOnly {
			w.To = w.To.AddDate(0, 0, 1)
		}
	}
	return w, true
}

func parseBound(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.UTC)
	return t, true, err
}
