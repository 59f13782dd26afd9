package model

import (
	"time"

	"github.com/google/uuid"
)

// Note is a private message between two player roles. Only the recipient
// role is expected to read it; enforcement of who may fetch which notes
// belongs to the surrounding application, not the engine.
type Note struct {
	ID            uuid.UUID
	SenderRole    string
	RecipientRole string
	Content       string
	Read          bool
	CreatedAt     time.Time
}
