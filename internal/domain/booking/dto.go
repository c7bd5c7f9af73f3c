package booking

type CreateBookingRequest struct {
	UserID     int64  `json:"-"`
	ResourceID string `json:"resource_id" binding:"required"`
	Units      int    `json:"units" binding:"required"`
	Amount     int64  `json:"amount"`
	Discount   int64  `json:"discount"`
	Note       string `json:"note" binding:"max=500"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// BookingDetail is a booking with its trail and the statuses it can move to.
type BookingDetail struct {
	Booking
	History []StatusChange `json:"history"`
	Allowed []Status       `json:"allowed_transitions"`
}
