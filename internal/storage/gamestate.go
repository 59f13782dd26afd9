package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/emberfall/regnum/internal/engine"
	"github.com/emberfall/regnum/internal/model"
)

// State returns the singleton game state row.
func (db *DB) State(ctx context.Context) (model.GameState, error) {
	var state model.GameState
	err := db.pool.QueryRow(ctx,
		`SELECT current_issue_id, round, status, updated_at FROM game_state WHERE id = 1`,
	).Scan(&state.CurrentIssueID, &state.Round, &state.Status, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.GameState{}, engine.ErrNotFound
	}
	if err != nil {
		return model.GameState{}, fmt.Errorf("storage: get game state: %w", err)
	}
	return state, nil
}

// TransitionState updates the singleton game state, guarded by a compare
// on the stored round. A concurrent transition that already advanced the
// round causes ErrStaleState and no write; transient conflicts on the
// singleton row are replayed, and a replay after the competing transition
// committed fails the round compare rather than double-advancing.
func (db *DB) TransitionState(ctx context.Context, next *string, newRound int, status model.GameStatus, expectedRound int) error {
	var affected int64
	err := retryWrite(ctx, func() error {
		tag, err := db.pool.Exec(ctx,
			`UPDATE game_state SET
			   current_issue_id = $1, round = $2, status = $3, updated_at = now()
			 WHERE id = 1 AND round = $4`,
			next, newRound, status, expectedRound)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: transition game state: %w", err)
	}
	if affected == 0 {
		return engine.ErrStaleState
	}
	return nil
}

// PutState replaces the singleton game state unconditionally. Used by
// seeding and operator resets, not by the resolution pipeline.
func (db *DB) PutState(ctx context.Context, state model.GameState) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO game_state (id, current_issue_id, round, status, updated_at)
		 VALUES (1, $1, $2, $3, now())
		 ON CONFLICT (id) DO UPDATE SET
		   current_issue_id = EXCLUDED.current_issue_id,
		   round = EXCLUDED.round,
		   status = EXCLUDED.status,
		   updated_at = EXCLUDED.updated_at`,
		state.CurrentIssueID, state.Round, state.Status)
	if err != nil {
		return fmt.Errorf("storage: put game state: %w", err)
	}
	return nil
}
