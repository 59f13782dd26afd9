package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/emberfall/regnum/internal/model"
)

// Store contract errors. Implementations (postgres, memory) return these
// sentinels so the engine can classify failures without knowing the
// backend.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrStaleState is returned by TransitionState when the expected
	// round no longer matches the stored one, i.e. a concurrent
	// transition won the race.
	ErrStaleState = errors.New("store: stale game state")
)

// IssueStore provides issue lookup and status transitions.
type IssueStore interface {
	Issue(ctx context.Context, id string) (model.Issue, error)
	Issues(ctx context.Context) ([]model.Issue, error)
	SetIssueStatus(ctx context.Context, id string, status model.IssueStatus) error
}

// VariableStore provides atomic read-modify-clamp-write on variables.
type VariableStore interface {
	Variables(ctx context.Context) ([]model.Variable, error)

	// VariableValues returns a snapshot of current values keyed by id.
	VariableValues(ctx context.Context) (map[string]int, error)

	// ApplyVariableDelta atomically adds delta to the variable's value,
	// saturating at its bounds, and reports the value actually written
	// and the delta actually applied (post-clamp). Unknown ids return
	// ErrNotFound and change nothing.
	ApplyVariableDelta(ctx context.Context, id string, delta int) (newValue, applied int, err error)

	// SetVariableValue writes an absolute value, clamped to bounds.
	// Used by the engine to restore pre-images during rollback.
	SetVariableValue(ctx context.Context, id string, value int) error
}

// StateStore provides the singleton game state record.
type StateStore interface {
	State(ctx context.Context) (model.GameState, error)

	// TransitionState updates the singleton atomically, guarded by a
	// compare on the stored round: if the stored round differs from
	// expectedRound the update does not happen and ErrStaleState is
	// returned.
	TransitionState(ctx context.Context, next *string, newRound int, status model.GameStatus, expectedRound int) error
}

// HistoryStore is the append-only resolution ledger. There are no update
// or delete operations; narrative provenance stays auditable.
type HistoryStore interface {
	AppendHistory(ctx context.Context, rec model.HistoryRecord) error
	HistoryByRound(ctx context.Context, round int) ([]model.HistoryRecord, error)
	HistoryByIssue(ctx context.Context, issueID string) ([]model.HistoryRecord, error)
	RecentHistory(ctx context.Context, limit int) ([]model.HistoryRecord, error)
}

// RoleStore provides the static role catalog.
type RoleStore interface {
	Roles(ctx context.Context) ([]model.Role, error)
}

// NoteStore provides private player-to-player notes.
type NoteStore interface {
	InsertNote(ctx context.Context, note model.Note) error
	NotesByRecipient(ctx context.Context, recipientRole string) ([]model.Note, error)
	MarkNoteRead(ctx context.Context, id uuid.UUID) error
}

// Store is the full persistence surface the engine depends on.
type Store interface {
	IssueStore
	VariableStore
	StateStore
	HistoryStore
	RoleStore
	NoteStore
}
