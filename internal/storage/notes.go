package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberfall/regnum/internal/engine"
	"github.com/emberfall/regnum/internal/model"
)

// InsertNote stores a private note between two roles.
func (db *DB) InsertNote(ctx context.Context, note model.Note) error {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO notes (id, sender_role, recipient_role, content, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		note.ID, note.SenderRole, note.RecipientRole, note.Content, note.Read, note.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: insert note: %w", err)
	}
	return nil
}

// NotesByRecipient returns notes addressed to a role, newest first.
func (db *DB) NotesByRecipient(ctx context.Context, recipientRole string) ([]model.Note, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, sender_role, recipient_role, content, is_read, created_at
		 FROM notes WHERE recipient_role = $1 ORDER BY created_at DESC`, recipientRole)
	if err != nil {
		return nil, fmt.Errorf("storage: list notes: %w", err)
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.SenderRole, &n.RecipientRole, &n.Content, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// MarkNoteRead flags a note as read.
func (db *DB) MarkNoteRead(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `UPDATE notes SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: mark note read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrNotFound
	}
	return nil
}
