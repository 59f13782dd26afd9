// Package model defines the domain records and API contracts for Regnum.
package model

import "time"

// IssueStatus is the lifecycle state of an issue.
type IssueStatus string

const (
	// IssueActive means the issue is open for resolution.
	IssueActive IssueStatus = "active"
	// IssueResolving means a resolution is in flight. Transient; never
	// persisted past the end of a resolution attempt.
	IssueResolving IssueStatus = "resolving"
	// IssueResolved means a player resolved the issue. Terminal.
	IssueResolved IssueStatus = "resolved"
	// IssueArchived means the issue was retired without the current
	// round reaching it, or a policy archived it after a successor
	// became active. Terminal.
	IssueArchived IssueStatus = "archived"
)

// Issue is a decision point players must resolve.
// At most one issue has status "active" at any time; the engine is the
// only writer of Status after content setup.
type Issue struct {
	ID          string
	Title       string
	Description string
	Category    string // e.g. "Militarism", "Economy"
	Status      IssueStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
