package booking

import (
	"net/http"
	"strconv"

	"communityhub/internal/pkg/jwt"
	"communityhub/internal/pkg/response"
	"communityhub/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateBooking(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", validator.Details(err))
		return
	}
	req.UserID = userID

	b, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"booking": b})
}

func (h *Handler) GetMyBookings(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	f, ok := bindFilter(c)
	if !ok {
		return
	}
	f.UserID = userID
	h.writeList(c, f)
}

// GetBooking returns one booking with its history to its owner or a manager.
func (h *Handler) GetBooking(c *gin.Context) {
	b, ok := h.loadVisible(c)
	if !ok {
		return
	}

	history, err := h.service.History(c.Request.Context(), b.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": BookingDetail{
		Booking: *b,
		History: history,
		Allowed: b.Flow().Allowed(b.Status),
	}})
}

func (h *Handler) CancelBooking(c *gin.Context) {
	b, ok := h.loadVisible(c)
	if !ok {
		return
	}

	updated, err := h.service.Cancel(c.Request.Context(), b.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": updated})
}

// ListBookings is the manager view over all bookings.
func (h *Handler) ListBookings(c *gin.Context) {
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid user_id")
			return
		}
		f.UserID = id
	}
	f.ResourceID = c.Query("resource_id")
	h.writeList(c, f)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", validator.Details(err))
		return
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		response.FromError(c, err)
		return
	}

	b, err := h.service.Transition(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) loadVisible(c *gin.Context) (*Booking, bool) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return nil, false
	}

	b, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return nil, false
	}
	if b.UserID != userID && c.GetString("role") != jwt.RoleManager {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied")
		return nil, false
	}
	return b, true
}

func (h *Handler) writeList(c *gin.Context, f Filter) {
	f = f.Paged()
	items, total, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"bookings": items,
		"total":    total,
		"limit":    f.Limit,
		"offset":   f.Offset,
	})
}

func bindFilter(c *gin.Context) (Filter, bool) {
	var f Filter
	if v := c.Query("status"); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			response.FromError(c, err)
			return f, false
		}
		f.Status = st
	}
	f.Service = c.Query("service")
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	return f.Paged(), true
}
