package model

import "time"

// Variable is a shared bounded numeric quantity representing game-wide
// state, e.g. treasury_level. Bounds are optional: a nil Min or Max means
// the value is unbounded in that direction.
type Variable struct {
	ID          string
	Name        string
	Description string
	Current     int
	Min         *int
	Max         *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clamp returns value saturated to the variable's bounds.
func (v Variable) Clamp(value int) int {
	if v.Min != nil && value < *v.Min {
		return *v.Min
	}
	if v.Max != nil && value > *v.Max {
		return *v.Max
	}
	return value
}
