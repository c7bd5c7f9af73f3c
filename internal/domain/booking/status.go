package booking

import (
	"strings"

	"communityhub/internal/config"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

var allStatuses = []Status{
	StatusPending, StatusApproved, StatusPreparing, StatusReady,
	StatusCompleted, StatusDelivered, StatusCancelled, StatusRejected,
}

// ParseStatus accepts the canonical names plus "confirmed", which the
// reservation consoles use for approved.
func ParseStatus(s string) (Status, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "confirmed" {
		return StatusApproved, nil
	}
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrUnknownStatus
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusDelivered, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// ReleasesCapacity reports whether entering s hands the units back.
func (s Status) ReleasesCapacity() bool {
	return s == StatusCancelled || s == StatusRejected
}

// Completes reports whether entering s accrues loyalty.
func (s Status) Completes() bool {
	return s == StatusCompleted || s == StatusDelivered
}

// Flow selects the edge table a booking moves through.
type Flow string

const (
	FlowOrder       Flow = "order"
	FlowReservation Flow = "reservation"
)

// FlowFor maps a resource kind to its flow: food outlets take orders,
// everything else takes reservations.
func FlowFor(kind string) Flow {
	if kind == config.KindFood {
		return FlowOrder
	}
	return FlowReservation
}

var edges = map[Flow]map[Status][]Status{
	FlowOrder: {
		StatusPending:   {StatusPreparing, StatusCancelled},
		StatusPreparing: {StatusReady, StatusCancelled},
		StatusReady:     {StatusDelivered},
	},
	FlowReservation: {
		StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
		StatusApproved: {StatusReady},
		StatusReady:    {StatusCompleted},
	},
}

// Allowed lists the statuses reachable from s in one step. Terminal
// statuses have none.
func (f Flow) Allowed(s Status) []Status {
	next := edges[f][s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func (f Flow) CanTransition(from, to Status) bool {
	for _, s := range edges[f][from] {
		if s == to {
			return true
		}
	}
	return false
}
