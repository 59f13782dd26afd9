package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/emberfall/regnum/internal/model"
)

// AppendHistory inserts a ledger entry. The ledger is append-only: there
// are no update or delete statements against game_history anywhere.
func (db *DB) AppendHistory(ctx context.Context, rec model.HistoryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.StateChanges == nil {
		rec.StateChanges = map[string]int{}
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO game_history (id, issue_id, player_role, resolution_choice, narrative, state_changes, round, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.IssueID, rec.PlayerRole, rec.ResolutionChoice, rec.Narrative, rec.StateChanges, rec.Round, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: append history: %w", err)
	}
	return nil
}

// HistoryByRound returns ledger entries for one round, newest first.
func (db *DB) HistoryByRound(ctx context.Context, round int) ([]model.HistoryRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, issue_id, player_role, resolution_choice, narrative, state_changes, round, created_at
		 FROM game_history WHERE round = $1 ORDER BY created_at DESC`, round)
	if err != nil {
		return nil, fmt.Errorf("storage: history by round: %w", err)
	}
	return scanHistory(rows)
}

// HistoryByIssue returns ledger entries for one issue, newest first.
func (db *DB) HistoryByIssue(ctx context.Context, issueID string) ([]model.HistoryRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, issue_id, player_role, resolution_choice, narrative, state_changes, round, created_at
		 FROM game_history WHERE issue_id = $1 ORDER BY created_at DESC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("storage: history by issue: %w", err)
	}
	return scanHistory(rows)
}

// RecentHistory returns up to limit ledger entries, newest first.
func (db *DB) RecentHistory(ctx context.Context, limit int) ([]model.HistoryRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, issue_id, player_role, resolution_choice, narrative, state_changes, round, created_at
		 FROM game_history ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: recent history: %w", err)
	}
	return scanHistory(rows)
}

func scanHistory(rows pgx.Rows) ([]model.HistoryRecord, error) {
	defer rows.Close()

	var recs []model.HistoryRecord
	for rows.Next() {
		var rec model.HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.IssueID, &rec.PlayerRole, &rec.ResolutionChoice,
			&rec.Narrative, &rec.StateChanges, &rec.Round, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan history: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
