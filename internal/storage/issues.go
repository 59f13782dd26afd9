package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/emberfall/regnum/internal/engine"
	"github.com/emberfall/regnum/internal/model"
)

// Issue retrieves an issue by id.
func (db *DB) Issue(ctx context.Context, id string) (model.Issue, error) {
	var iss model.Issue
	err := db.pool.QueryRow(ctx,
		`SELECT id, title, description, category, status, created_at, updated_at
		 FROM game_issues WHERE id = $1`, id,
	).Scan(&iss.ID, &iss.Title, &iss.Description, &iss.Category, &iss.Status, &iss.CreatedAt, &iss.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Issue{}, engine.ErrNotFound
	}
	if err != nil {
		return model.Issue{}, fmt.Errorf("storage: get issue: %w", err)
	}
	return iss, nil
}

// Issues returns the full issue catalog in creation order.
func (db *DB) Issues(ctx context.Context) ([]model.Issue, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, description, category, status, created_at, updated_at
		 FROM game_issues ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list issues: %w", err)
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		var iss model.Issue
		if err := rows.Scan(&iss.ID, &iss.Title, &iss.Description, &iss.Category, &iss.Status, &iss.CreatedAt, &iss.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan issue: %w", err)
		}
		issues = append(issues, iss)
	}
	return issues, rows.Err()
}

// SetIssueStatus updates an issue's lifecycle status.
func (db *DB) SetIssueStatus(ctx context.Context, id string, status model.IssueStatus) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE game_issues SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("storage: set issue status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// UpsertIssue inserts or replaces an issue. Used by seeding.
func (db *DB) UpsertIssue(ctx context.Context, iss model.Issue) error {
	now := time.Now().UTC()
	_, err := db.pool.Exec(ctx,
		`INSERT INTO game_issues (id, title, description, category, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   category = EXCLUDED.category,
		   status = EXCLUDED.status,
		   updated_at = EXCLUDED.updated_at`,
		iss.ID, iss.Title, iss.Description, iss.Category, iss.Status, now)
	if err != nil {
		return fmt.Errorf("storage: upsert issue: %w", err)
	}
	return nil
}
