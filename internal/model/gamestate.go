package model

import "time"

// GameStatus is the overall game lifecycle state.
type GameStatus string

const (
	GameActive    GameStatus = "active"
	GamePaused    GameStatus = "paused"
	GameCompleted GameStatus = "completed"
)

// GameState is the singleton record tracking which issue is active and
// the current round. Round starts at 1 and increases by exactly one per
// successful resolution; it never decreases.
type GameState struct {
	CurrentIssueID *string
	Round          int
	Status         GameStatus
	UpdatedAt      time.Time
}
