package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/emberfall/regnum/internal/model"
)

// Roles returns the role catalog in creation order.
func (db *DB) Roles(ctx context.Context) ([]model.Role, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, description, created_at FROM game_roles ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list roles: %w", err)
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		var r model.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// UpsertRole inserts or replaces a role. Used by seeding.
func (db *DB) UpsertRole(ctx context.Context, r model.Role) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO game_roles (id, name, description, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   description = EXCLUDED.description`,
		r.ID, r.Name, r.Description, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: upsert role: %w", err)
	}
	return nil
}
