// Package engine implements the issue resolution pipeline: the state
// machine that takes a player's decision, obtains a narrative outcome,
// applies variable deltas atomically, records the resolution in the
// ledger, and advances the game to its next round.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/emberfall/regnum/internal/model"
	"github.com/emberfall/regnum/internal/narrative"
	"github.com/emberfall/regnum/internal/telemetry"
)

// Engine orchestrates issue resolutions. It is the sole writer of issue
// status, game state, and the history ledger; variables are written only
// through the store's atomic ApplyVariableDelta during a resolution.
type Engine struct {
	store     Store
	generator *narrative.Adapter
	policy    Policy
	logger    *slog.Logger

	locks *issueLocks
	// stateMu serializes the read-modify-write across issue transition,
	// game state advance, and ledger append. The storage-level round
	// compare in TransitionState backs this up when multiple processes
	// share one database.
	stateMu sync.Mutex

	resolutions metric.Int64Counter
	duration    metric.Float64Histogram
}

// New creates an Engine. policy may be nil, in which case issues advance
// in catalog creation order.
func New(store Store, generator *narrative.Adapter, policy Policy, logger *slog.Logger) *Engine {
	if policy == nil {
		policy = QueuePolicy{}
	}
	meter := telemetry.Meter("regnum/engine")
	resolutions, _ := meter.Int64Counter("regnum.engine.resolutions",
		metric.WithDescription("Resolution attempts by outcome"),
	)
	duration, _ := meter.Float64Histogram("regnum.engine.resolution_duration",
		metric.WithDescription("End-to-end resolution time (ms)"),
		metric.WithUnit("ms"),
	)
	return &Engine{
		store:       store,
		generator:   generator,
		policy:      policy,
		logger:      logger,
		locks:       newIssueLocks(),
		resolutions: resolutions,
		duration:    duration,
	}
}

// Resolution is the outcome of a successful resolution attempt.
type Resolution struct {
	Narrative    string
	StateChanges map[string]int
	Success      bool
	Round        int
}

// ResolveIssue runs the resolution pipeline for one player decision.
//
// Either the whole pipeline succeeds (deltas applied, issue resolved,
// round advanced, ledger appended) or it fails with no observable side
// effect. Generator faults are invisible: the adapter substitutes a
// neutral outcome and the pipeline continues.
func (e *Engine) ResolveIssue(ctx context.Context, issueID, playerRole, choice string) (Resolution, error) {
	res, err := e.resolve(ctx, issueID, playerRole, choice)

	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	e.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return res, err
}

func (e *Engine) resolve(ctx context.Context, issueID, playerRole, choice string) (Resolution, error) {
	// 1. Validate before touching any state or lock.
	if err := model.ValidateResolveRequest(issueID, playerRole, choice); err != nil {
		return Resolution{}, validationErr("invalid resolution request", err)
	}

	// 2. Single flight per issue. Held through the narrative call so a
	// concurrent decision on the same issue fails fast.
	if !e.locks.tryAcquire(issueID) {
		return Resolution{}, conflictErr("resolution already in progress")
	}
	defer e.locks.release(issueID)

	// 3. The issue must exist, be active, and be the game's current
	// issue. Checked under the lock: a caller that loses the race for
	// the lock must observe the winner's writes, not a stale snapshot,
	// or a resolved issue could be resolved twice.
	issue, err := e.store.Issue(ctx, issueID)
	if errors.Is(err, ErrNotFound) {
		return Resolution{}, notFoundErr("Issue not found")
	}
	if err != nil {
		return Resolution{}, persistenceErr("load issue", err)
	}
	if issue.Status != model.IssueActive {
		return Resolution{}, notFoundErr("Issue is not active")
	}
	state, err := e.store.State(ctx)
	if err != nil {
		return Resolution{}, persistenceErr("load game state", err)
	}
	if state.CurrentIssueID == nil || *state.CurrentIssueID != issueID {
		return Resolution{}, notFoundErr("Issue is not active")
	}

	// 4. Snapshot variables, then mark the issue resolving.
	snapshot, err := e.store.VariableValues(ctx)
	if err != nil {
		return Resolution{}, persistenceErr("snapshot variables", err)
	}
	if err := e.store.SetIssueStatus(ctx, issueID, model.IssueResolving); err != nil {
		return Resolution{}, persistenceErr("mark issue resolving", err)
	}

	// Every write past this point registers a compensation; on failure
	// they run in reverse so no partial effect survives.
	var undo []func(context.Context)
	undo = append(undo, func(ctx context.Context) {
		e.compensate(ctx, "restore issue status", func(ctx context.Context) error {
			return e.store.SetIssueStatus(ctx, issueID, model.IssueActive)
		})
	})

	// 5. Generate the outcome. The only long-latency step; unrelated
	// issues are unaffected because only the per-issue lock is held.
	outcome := e.generator.Generate(ctx, narrative.Input{
		IssueTitle:       issue.Title,
		IssueDescription: issue.Description,
		PlayerRole:       playerRole,
		ResolutionChoice: choice,
		Variables:        snapshot,
	})

	// 6. Apply deltas for known variables only, recording what was
	// actually applied after clamping. Keys are walked in sorted order
	// so multi-delta outcomes apply deterministically.
	applied := make(map[string]int, len(outcome.StateChanges))
	ids := make([]string, 0, len(outcome.StateChanges))
	for id := range outcome.StateChanges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		delta := outcome.StateChanges[id]
		_, appliedDelta, err := e.store.ApplyVariableDelta(ctx, id, delta)
		if errors.Is(err, ErrNotFound) {
			e.logger.Debug("skipping delta for unknown variable", "variable_id", id, "delta", delta)
			continue
		}
		if err != nil {
			e.rollback(ctx, undo)
			return Resolution{}, persistenceErr("apply variable delta", err)
		}
		prev := snapshot[id]
		undo = append(undo, func(ctx context.Context) {
			e.compensate(ctx, "restore variable", func(ctx context.Context) error {
				return e.store.SetVariableValue(ctx, id, prev)
			})
		})
		applied[id] = appliedDelta
	}

	// 7+8. Transition the issue and the game state, then append the
	// ledger entry. The global mutex plus the round compare in
	// TransitionState serialize round advancement; a read-modify-write
	// race here could drop an increment or activate two issues.
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	state, err = e.store.State(ctx)
	if err != nil {
		e.rollback(ctx, undo)
		return Resolution{}, persistenceErr("reload game state", err)
	}
	// The per-issue lock makes this unreachable in-process; with a
	// shared database another process may have advanced the game past
	// this issue, and the round compare below would not notice because
	// the round was just re-read.
	if state.CurrentIssueID == nil || *state.CurrentIssueID != issueID {
		e.rollback(ctx, undo)
		return Resolution{}, conflictErr("issue is no longer current")
	}
	round := state.Round

	if err := e.store.SetIssueStatus(ctx, issueID, model.IssueResolved); err != nil {
		e.rollback(ctx, undo)
		return Resolution{}, persistenceErr("mark issue resolved", err)
	}

	issues, err := e.store.Issues(ctx)
	if err != nil {
		e.rollback(ctx, undo)
		return Resolution{}, persistenceErr("load issues for policy", err)
	}
	next, archive := e.policy.NextIssue(issues, issueID)

	for _, archiveID := range archive {
		prevStatus := model.IssueResolved
		for _, iss := range issues {
			if iss.ID == archiveID {
				prevStatus = iss.Status
				break
			}
		}
		if archiveID == issueID {
			prevStatus = model.IssueResolved
		}
		if err := e.store.SetIssueStatus(ctx, archiveID, model.IssueArchived); err != nil {
			e.rollback(ctx, undo)
			return Resolution{}, persistenceErr("archive issue", err)
		}
		undo = append(undo, func(ctx context.Context) {
			e.compensate(ctx, "restore archived issue", func(ctx context.Context) error {
				return e.store.SetIssueStatus(ctx, archiveID, prevStatus)
			})
		})
	}

	if next != nil {
		nextID := *next
		var prevStatus model.IssueStatus
		for _, iss := range issues {
			if iss.ID == nextID {
				prevStatus = iss.Status
				break
			}
		}
		if err := e.store.SetIssueStatus(ctx, nextID, model.IssueActive); err != nil {
			e.rollback(ctx, undo)
			return Resolution{}, persistenceErr("activate next issue", err)
		}
		undo = append(undo, func(ctx context.Context) {
			e.compensate(ctx, "restore next issue status", func(ctx context.Context) error {
				return e.store.SetIssueStatus(ctx, nextID, prevStatus)
			})
		})
	}

	if err := e.store.TransitionState(ctx, next, round+1, state.Status, round); err != nil {
		e.rollback(ctx, undo)
		return Resolution{}, persistenceErr("transition game state", err)
	}
	prevIssueID := state.CurrentIssueID
	undo = append(undo, func(ctx context.Context) {
		e.compensate(ctx, "restore game state", func(ctx context.Context) error {
			return e.store.TransitionState(ctx, prevIssueID, round, state.Status, round+1)
		})
	})

	// The ledger has no delete operation, so the append is the final
	// write: a failure here rolls back everything else and can never
	// leave an orphaned record.
	rec := model.HistoryRecord{
		ID:               uuid.New(),
		IssueID:          issueID,
		PlayerRole:       playerRole,
		ResolutionChoice: choice,
		Narrative:        outcome.Narrative,
		StateChanges:     applied,
		Round:            round,
	}
	if err := e.store.AppendHistory(ctx, rec); err != nil {
		e.rollback(ctx, undo)
		return Resolution{}, persistenceErr("append history", err)
	}

	e.logger.Info("issue resolved",
		"issue_id", issueID,
		"player_role", playerRole,
		"round", round+1,
		"changes", len(applied),
	)

	return Resolution{
		Narrative:    outcome.Narrative,
		StateChanges: applied,
		Success:      outcome.Success,
		Round:        round + 1,
	}, nil
}

// rollback runs compensations in reverse registration order.
func (e *Engine) rollback(ctx context.Context, undo []func(context.Context)) {
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i](ctx)
	}
}

// compensate executes a single compensation, logging instead of failing:
// rollback is best-effort by nature and must attempt every step.
func (e *Engine) compensate(ctx context.Context, what string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		e.logger.Error("rollback step failed", "step", what, "error", err)
	}
}

// CurrentIssue returns the game's active issue, or ErrNotFound (as a
// not-found engine error) when no issue is active.
func (e *Engine) CurrentIssue(ctx context.Context) (model.Issue, error) {
	state, err := e.store.State(ctx)
	if err != nil {
		return model.Issue{}, persistenceErr("load game state", err)
	}
	if state.CurrentIssueID == nil {
		return model.Issue{}, notFoundErr("no active issue")
	}
	issue, err := e.store.Issue(ctx, *state.CurrentIssueID)
	if errors.Is(err, ErrNotFound) {
		return model.Issue{}, notFoundErr("no active issue")
	}
	if err != nil {
		return model.Issue{}, persistenceErr("load issue", err)
	}
	return issue, nil
}

// StateView is the read-only aggregate for display.
type StateView struct {
	CurrentIssue *model.Issue
	Round        int
	Status       model.GameStatus
	Variables    map[string]int
}

// State returns the current game state with variable values. The view is
// assembled from independent reads; it is a display projection, not a
// transactional snapshot.
func (e *Engine) State(ctx context.Context) (StateView, error) {
	state, err := e.store.State(ctx)
	if err != nil {
		return StateView{}, persistenceErr("load game state", err)
	}
	values, err := e.store.VariableValues(ctx)
	if err != nil {
		return StateView{}, persistenceErr("load variables", err)
	}

	view := StateView{
		Round:     state.Round,
		Status:    state.Status,
		Variables: values,
	}
	if state.CurrentIssueID != nil {
		issue, err := e.store.Issue(ctx, *state.CurrentIssueID)
		if err == nil {
			view.CurrentIssue = &issue
		} else if !errors.Is(err, ErrNotFound) {
			return StateView{}, persistenceErr("load issue", err)
		}
	}
	return view, nil
}

// Summary narrates the current situation using recent ledger entries.
func (e *Engine) Summary(ctx context.Context) string {
	issues, err := e.store.Issues(ctx)
	if err != nil {
		return narrative.FallbackSummary
	}
	values, err := e.store.VariableValues(ctx)
	if err != nil {
		return narrative.FallbackSummary
	}
	recent, err := e.store.RecentHistory(ctx, 5)
	if err != nil {
		return narrative.FallbackSummary
	}

	input := narrative.SummaryInput{Variables: values}
	for _, iss := range issues {
		input.Issues = append(input.Issues, narrative.IssueDigest{
			Title:       iss.Title,
			Description: iss.Description,
		})
	}
	for _, rec := range recent {
		input.RecentEvents = append(input.RecentEvents, rec.Narrative)
	}
	return e.generator.Summary(ctx, input)
}

// Roles returns the player role catalog.
func (e *Engine) Roles(ctx context.Context) ([]model.Role, error) {
	roles, err := e.store.Roles(ctx)
	if err != nil {
		return nil, persistenceErr("load roles", err)
	}
	return roles, nil
}

// Issues returns the full issue catalog.
func (e *Engine) Issues(ctx context.Context) ([]model.Issue, error) {
	issues, err := e.store.Issues(ctx)
	if err != nil {
		return nil, persistenceErr("load issues", err)
	}
	return issues, nil
}

// Variables returns the variable catalog with bounds.
func (e *Engine) Variables(ctx context.Context) ([]model.Variable, error) {
	vars, err := e.store.Variables(ctx)
	if err != nil {
		return nil, persistenceErr("load variables", err)
	}
	return vars, nil
}

// History returns ledger entries filtered by round or issue; with both
// filters zero-valued it returns the most recent entries.
func (e *Engine) History(ctx context.Context, round int, issueID string, limit int) ([]model.HistoryRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var (
		recs []model.HistoryRecord
		err  error
	)
	switch {
	case issueID != "":
		recs, err = e.store.HistoryByIssue(ctx, issueID)
	case round > 0:
		recs, err = e.store.HistoryByRound(ctx, round)
	default:
		recs, err = e.store.RecentHistory(ctx, limit)
	}
	if err != nil {
		return nil, persistenceErr("load history", err)
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// SendNote stores a private note between two roles.
func (e *Engine) SendNote(ctx context.Context, senderRole, recipientRole, content string) (model.Note, error) {
	if err := model.ValidateNote(senderRole, recipientRole, content); err != nil {
		return model.Note{}, validationErr("invalid note", err)
	}
	note := model.Note{
		ID:            uuid.New(),
		SenderRole:    senderRole,
		RecipientRole: recipientRole,
		Content:       content,
	}
	if err := e.store.InsertNote(ctx, note); err != nil {
		return model.Note{}, persistenceErr("insert note", err)
	}
	return note, nil
}

// NotesFor returns the notes addressed to a role, newest first.
func (e *Engine) NotesFor(ctx context.Context, recipientRole string) ([]model.Note, error) {
	if recipientRole == "" {
		return nil, validationErr("invalid note query", errors.New("recipient_role is required"))
	}
	notes, err := e.store.NotesByRecipient(ctx, recipientRole)
	if err != nil {
		return nil, persistenceErr("load notes", err)
	}
	return notes, nil
}

// MarkNoteRead flags a note as read.
func (e *Engine) MarkNoteRead(ctx context.Context, id uuid.UUID) error {
	err := e.store.MarkNoteRead(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return notFoundErr("note not found")
	}
	if err != nil {
		return persistenceErr("mark note read", err)
	}
	return nil
}
