package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsCreated counts bookings that got a capacity reservation.
	BookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community",
			Name:      "bookings_created_total",
			Help:      "Bookings created, by service",
		},
		[]string{"service"},
	)

	// CapacityRejections counts reserve attempts refused for lack of units.
	CapacityRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community",
			Name:      "capacity_rejections_total",
			Help:      "Reservations refused because the resource was full",
		},
		[]string{"resource"},
	)

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community",
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions, by service and target status",
		},
		[]string{"service", "status"},
	)

	PointsAwarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "community",
			Name:      "loyalty_points_awarded_total",
			Help:      "Loyalty points awarded",
		},
	)

	TierPromotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "community",
			Name:      "loyalty_tier_promotions_total",
			Help:      "Accruals that moved a user into a new tier, by new tier",
		},
		[]string{"tier"},
	)
)
