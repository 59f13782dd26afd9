// Package memory provides an in-memory implementation of the engine's
// store contract. It backs development mode (REGNUM_STORE=memory) and
// tests that need a real store without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emberfall/regnum/internal/engine"
	"github.com/emberfall/regnum/internal/model"
)

// Store holds all game records behind a single mutex. Operations are
// serialized, which trivially satisfies the per-variable and game-state
// atomicity the engine requires of its backends.
type Store struct {
	mu        sync.Mutex
	roles     map[string]model.Role
	issues    map[string]model.Issue
	variables map[string]model.Variable
	state     model.GameState
	history   []model.HistoryRecord
	notes     []model.Note

	// insertion counters preserve catalog order without timestamps.
	issueOrder []string
	roleOrder  []string
	varOrder   []string
}

// New creates an empty store with round 1 and no active issue.
func New() *Store {
	return &Store{
		roles:     make(map[string]model.Role),
		issues:    make(map[string]model.Issue),
		variables: make(map[string]model.Variable),
		state:     model.GameState{Round: 1, Status: model.GameActive},
	}
}

var _ engine.Store = (*Store)(nil)

// UpsertRole adds or replaces a role.
func (s *Store) UpsertRole(role model.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; !ok {
		s.roleOrder = append(s.roleOrder, role.ID)
	}
	role.CreatedAt = time.Now().UTC()
	s.roles[role.ID] = role
}

// UpsertIssue adds or replaces an issue.
func (s *Store) UpsertIssue(issue model.Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issues[issue.ID]; !ok {
		s.issueOrder = append(s.issueOrder, issue.ID)
	}
	now := time.Now().UTC()
	issue.CreatedAt, issue.UpdatedAt = now, now
	s.issues[issue.ID] = issue
}

// UpsertVariable adds or replaces a variable.
func (s *Store) UpsertVariable(v model.Variable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.variables[v.ID]; !ok {
		s.varOrder = append(s.varOrder, v.ID)
	}
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	s.variables[v.ID] = v
}

// PutState replaces the singleton game state record.
func (s *Store) PutState(state model.GameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.UpdatedAt = time.Now().UTC()
	s.state = state
}

// Issue returns the issue with the given id.
func (s *Store) Issue(_ context.Context, id string) (model.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return model.Issue{}, engine.ErrNotFound
	}
	return issue, nil
}

// Issues returns all issues in catalog order.
func (s *Store) Issues(context.Context) ([]model.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Issue, 0, len(s.issueOrder))
	for _, id := range s.issueOrder {
		out = append(out, s.issues[id])
	}
	return out, nil
}

// SetIssueStatus updates an issue's lifecycle status.
func (s *Store) SetIssueStatus(_ context.Context, id string, status model.IssueStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return engine.ErrNotFound
	}
	issue.Status = status
	issue.UpdatedAt = time.Now().UTC()
	s.issues[id] = issue
	return nil
}

// Variables returns all variables in catalog order.
func (s *Store) Variables(context.Context) ([]model.Variable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Variable, 0, len(s.varOrder))
	for _, id := range s.varOrder {
		out = append(out, s.variables[id])
	}
	return out, nil
}

// VariableValues returns a snapshot of current values keyed by id.
func (s *Store) VariableValues(context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make(map[string]int, len(s.variables))
	for id, v := range s.variables {
		values[id] = v.Current
	}
	return values, nil
}

// ApplyVariableDelta adds delta to the variable, saturating at bounds.
// The read-clamp-write happens under the store mutex, so concurrent
// deltas serialize and none is lost.
func (s *Store) ApplyVariableDelta(_ context.Context, id string, delta int) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variables[id]
	if !ok {
		return 0, 0, engine.ErrNotFound
	}
	newValue := v.Clamp(v.Current + delta)
	applied := newValue - v.Current
	v.Current = newValue
	v.UpdatedAt = time.Now().UTC()
	s.variables[id] = v
	return newValue, applied, nil
}

// SetVariableValue writes an absolute value, clamped to bounds.
func (s *Store) SetVariableValue(_ context.Context, id string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variables[id]
	if !ok {
		return engine.ErrNotFound
	}
	v.Current = v.Clamp(value)
	v.UpdatedAt = time.Now().UTC()
	s.variables[id] = v
	return nil
}

// State returns the singleton game state.
func (s *Store) State(context.Context) (model.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// TransitionState updates the game state if the stored round matches
// expectedRound, otherwise returns ErrStaleState.
func (s *Store) TransitionState(_ context.Context, next *string, newRound int, status model.GameStatus, expectedRound int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Round != expectedRound {
		return engine.ErrStaleState
	}
	s.state.CurrentIssueID = next
	s.state.Round = newRound
	s.state.Status = status
	s.state.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendHistory appends a ledger entry. Entries are never updated or
// deleted.
func (s *Store) AppendHistory(_ context.Context, rec model.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.StateChanges == nil {
		rec.StateChanges = map[string]int{}
	}
	s.history = append(s.history, rec)
	return nil
}

// HistoryByRound returns entries for one round, newest first.
func (s *Store) HistoryByRound(_ context.Context, round int) ([]model.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.HistoryRecord
	for _, rec := range s.history {
		if rec.Round == round {
			out = append(out, rec)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// HistoryByIssue returns entries for one issue, newest first.
func (s *Store) HistoryByIssue(_ context.Context, issueID string) ([]model.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.HistoryRecord
	for _, rec := range s.history {
		if rec.IssueID == issueID {
			out = append(out, rec)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// RecentHistory returns up to limit entries, newest first.
func (s *Store) RecentHistory(_ context.Context, limit int) ([]model.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.HistoryRecord, len(s.history))
	copy(out, s.history)
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// HistoryLen reports the total number of ledger entries. Test helper.
func (s *Store) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Roles returns all roles in catalog order.
func (s *Store) Roles(context.Context) ([]model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Role, 0, len(s.roleOrder))
	for _, id := range s.roleOrder {
		out = append(out, s.roles[id])
	}
	return out, nil
}

// InsertNote stores a note.
func (s *Store) InsertNote(_ context.Context, note model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	s.notes = append(s.notes, note)
	return nil
}

// NotesByRecipient returns notes addressed to a role, newest first.
func (s *Store) NotesByRecipient(_ context.Context, recipientRole string) ([]model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Note
	for _, n := range s.notes {
		if n.RecipientRole == recipientRole {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// MarkNoteRead flags a note as read.
func (s *Store) MarkNoteRead(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].ID == id {
			s.notes[i].Read = true
			return nil
		}
	}
	return engine.ErrNotFound
}

func sortNewestFirst(recs []model.HistoryRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}
