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

// Variables returns the variable catalog with bounds in creation order.
func (db *DB) Variables(ctx context.Context) ([]model.Variable, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, description, current_value, min_value, max_value, created_at, updated_at
		 FROM game_variables ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list variables: %w", err)
	}
	defer rows.Close()

	var vars []model.Variable
	for rows.Next() {
		var v model.Variable
		if err := rows.Scan(&v.ID, &v.Name, &v.Description, &v.Current, &v.Min, &v.Max, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan variable: %w", err)
		}
		vars = append(vars, v)
	}
	return vars, rows.Err()
}

// VariableValues returns a snapshot of current values keyed by id.
func (db *DB) VariableValues(ctx context.Context) (map[string]int, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, current_value FROM game_variables`)
	if err != nil {
		return nil, fmt.Errorf("storage: snapshot variables: %w", err)
	}
	defer rows.Close()

	values := make(map[string]int)
	for rows.Next() {
		var (
			id      string
			current int
		)
		if err := rows.Scan(&id, &current); err != nil {
			return nil, fmt.Errorf("storage: scan variable value: %w", err)
		}
		values[id] = current
	}
	return values, rows.Err()
}

// ApplyVariableDelta atomically adds delta to a variable, saturating at its
// bounds. The clamp happens inside a single UPDATE so concurrent deltas
// serialize on the row lock and none is lost; deadlocks against other
// resolution writes are replayed. Returns the value written and the
// delta actually applied.
func (db *DB) ApplyVariableDelta(ctx context.Context, id string, delta int) (int, int, error) {
	var newValue, prevValue int
	err := retryWrite(ctx, func() error {
		return db.pool.QueryRow(ctx,
			`UPDATE game_variables v SET
			   current_value = LEAST(
			     COALESCE(v.max_value, v.current_value + $2),
			     GREATEST(COALESCE(v.min_value, v.current_value + $2), v.current_value + $2)
			   ),
			   updated_at = now()
			 FROM (SELECT current_value FROM game_variables WHERE id = $1 FOR UPDATE) prev
			 WHERE v.id = $1
			 RETURNING v.current_value, prev.current_value`,
			id, delta,
		).Scan(&newValue, &prevValue)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, engine.ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("storage: apply variable delta: %w", err)
	}
	return newValue, newValue - prevValue, nil
}

// SetVariableValue writes an absolute value, clamped to the variable's
// bounds. Used by the engine to restore pre-images during rollback.
func (db *DB) SetVariableValue(ctx context.Context, id string, value int) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE game_variables SET
		   current_value = LEAST(COALESCE(max_value, $2), GREATEST(COALESCE(min_value, $2), $2)),
		   updated_at = now()
		 WHERE id = $1`,
		id, value)
	if err != nil {
		return fmt.Errorf("storage: set variable value: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// UpsertVariable inserts or replaces a variable. Used by seeding.
func (db *DB) UpsertVariable(ctx context.Context, v model.Variable) error {
	now := time.Now().UTC()
	_, err := db.pool.Exec(ctx,
		`INSERT INTO game_variables (id, name, description, current_value, min_value, max_value, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   description = EXCLUDED.description,
		   current_value = EXCLUDED.current_value,
		   min_value = EXCLUDED.min_value,
		   max_value = EXCLUDED.max_value,
		   updated_at = EXCLUDED.updated_at`,
		v.ID, v.Name, v.Description, v.Current, v.Min, v.Max, now)
	if err != nil {
		return fmt.Errorf("storage: upsert variable: %w", err)
	}
	return nil
}
