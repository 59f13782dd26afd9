package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field length limits for caller-supplied text. Resolution choices and
// notes end up in Postgres TEXT columns and in prompts sent to the
// narrative service; the limits keep a single request from inflating
// either.
const (
	MaxIDLen               = 64
	MaxResolutionChoiceLen = 2000
	MaxNoteContentLen      = 5000
)

// ValidateResolveRequest checks the inputs of a resolution attempt.
// It returns a human-readable message for the first violation found.
func ValidateResolveRequest(issueID, playerRole, choice string) error {
	if strings.TrimSpace(issueID) == "" {
		return fmt.Errorf("issue_id is required")
	}
	if len(issueID) > MaxIDLen {
		return fmt.Errorf("issue_id exceeds maximum length of %d characters", MaxIDLen)
	}
	if strings.TrimSpace(playerRole) == "" {
		return fmt.Errorf("player_role is required")
	}
	if len(playerRole) > MaxIDLen {
		return fmt.Errorf("player_role exceeds maximum length of %d characters", MaxIDLen)
	}
	if strings.TrimSpace(choice) == "" {
		return fmt.Errorf("resolution_choice is required")
	}
	if len(choice) > MaxResolutionChoiceLen {
		return fmt.Errorf("resolution_choice exceeds maximum length of %d characters", MaxResolutionChoiceLen)
	}
	return nil
}

// ValidateNote checks the inputs of a note send request.
func ValidateNote(senderRole, recipientRole, content string) error {
	if strings.TrimSpace(senderRole) == "" {
		return fmt.Errorf("sender_role is required")
	}
	if len(senderRole) > MaxIDLen {
		return fmt.Errorf("sender_role exceeds maximum length of %d characters", MaxIDLen)
	}
	if strings.TrimSpace(recipientRole) == "" {
		return fmt.Errorf("recipient_role is required")
	}
	if len(recipientRole) > MaxIDLen {
		return fmt.Errorf("recipient_role exceeds maximum length of %d characters", MaxIDLen)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content is required")
	}
	if len(content) > MaxNoteContentLen {
		return fmt.Errorf("content exceeds maximum length of %d characters", MaxNoteContentLen)
	}
	return nil
}

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnavailable   = "UNAVAILABLE"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store"`
	Uptime  int64  `json:"uptime_seconds"`
}

// ResolveRequest is the request body for POST /v1/issues/{issue_id}/resolve.
type ResolveRequest struct {
	PlayerRole       string `json:"player_role"`
	ResolutionChoice string `json:"resolution_choice"`
}

// ResolveResponse is the outcome of a successful resolution.
type ResolveResponse struct {
	Narrative    string         `json:"narrative"`
	StateChanges map[string]int `json:"state_changes"`
	Success      bool           `json:"success"`
	Round        int            `json:"round"`
}

// IssueView is the wire representation of an issue.
type IssueView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Status      string `json:"status"`
}

// VariableView is the wire representation of a variable.
type VariableView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Current int    `json:"current_value"`
	Min     *int   `json:"min_value,omitempty"`
	Max     *int   `json:"max_value,omitempty"`
}

// StateResponse is the aggregate returned by GET /v1/state.
type StateResponse struct {
	CurrentIssue *IssueView     `json:"current_issue"`
	Round        int            `json:"round"`
	Status       string         `json:"status"`
	Variables    map[string]int `json:"variables"`
	Summary      string         `json:"summary,omitempty"`
}

// ConfigResponse is the static catalog returned by GET /v1/config.
type ConfigResponse struct {
	Roles     []RoleView     `json:"roles"`
	Issues    []IssueView    `json:"issues"`
	Variables []VariableView `json:"variables"`
}

// RoleView is the wire representation of a role.
type RoleView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// HistoryView is the wire representation of a ledger entry.
type HistoryView struct {
	ID               uuid.UUID      `json:"id"`
	IssueID          string         `json:"issue_id"`
	PlayerRole       string         `json:"player_role"`
	ResolutionChoice string         `json:"resolution_choice"`
	Narrative        string         `json:"narrative"`
	StateChanges     map[string]int `json:"state_changes"`
	Round            int            `json:"round"`
	CreatedAt        time.Time      `json:"created_at"`
}

// SendNoteRequest is the request body for POST /v1/notes.
type SendNoteRequest struct {
	SenderRole    string `json:"sender_role"`
	RecipientRole string `json:"recipient_role"`
	Content       string `json:"content"`
}

// NoteView is the wire representation of a note.
type NoteView struct {
	ID        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Read      bool      `json:"is_read"`
	Timestamp time.Time `json:"timestamp"`
}
