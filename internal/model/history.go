package model

import (
	"time"

	"github.com/google/uuid"
)

// HistoryRecord is an immutable ledger entry for one successful
// resolution. StateChanges holds the deltas that were actually applied
// (post-clamp, post-filter), not the raw generator output, so the
// ledger always reflects ground-truth state change.
type HistoryRecord struct {
	ID               uuid.UUID
	IssueID          string
	PlayerRole       string
	ResolutionChoice string
	Narrative        string
	StateChanges     map[string]int
	Round            int
	CreatedAt        time.Time
}
