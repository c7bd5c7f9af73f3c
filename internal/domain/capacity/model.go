package capacity

import "time"

// Resource is a finite bookable resource. The pool tracks only the count of
// reserved units, never which booking holds them.
type Resource struct {
	ID            string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	Name          string    `json:"name" gorm:"type:varchar(128);not null"`
	Kind          string    `json:"kind" gorm:"type:varchar(16);not null;index"`
	TotalCapacity int       `json:"total_capacity" gorm:"not null;check:total_capacity > 0"`
	ReservedCount int       `json:"reserved_count" gorm:"not null;default:0;check:reserved_count >= 0 AND reserved_count <= total_capacity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Resource) TableName() string {
	return "resources"
}

func (r Resource) Available() int {
	if n := r.TotalCapacity - r.ReservedCount; n > 0 {
		return n
	}
	return 0
}

type Availability struct {
	ResourceID string `json:"resource_id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Total      int    `json:"total"`
	Reserved   int    `json:"reserved"`
	Available  int    `json:"available"`
}

func (r Resource) Availability() Availability {
	return Availability{
		ResourceID: r.ID,
		Name:       r.Name,
		Kind:       r.Kind,
		Total:      r.TotalCapacity,
		Reserved:   r.ReservedCount,
		Available:  r.Available(),
	}
}
