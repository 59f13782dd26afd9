package model

import "time"

// Role is a player position on the council, e.g. regent or treasury.
// Roles are static content; the engine only reads them.
type Role struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}
