// Package narrative generates story outcomes for player decisions.
//
// It defines a Provider interface, an OpenAI implementation, and a static
// implementation for development without an API key. Callers should not
// use a Provider directly: the Adapter wraps one with a bounded timeout
// and a deterministic fallback so the game loop stays live no matter
// what the external service does.
package narrative

import "context"

// Input is the snapshot handed to a provider for one resolution.
// Variables is a copy taken at call time; providers must treat it as
// read-only.
type Input struct {
	IssueTitle       string
	IssueDescription string
	PlayerRole       string
	ResolutionChoice string
	Variables        map[string]int
	// Context is optional extra framing, e.g. a digest of recent history.
	Context string
}

// Outcome is the structured response of a generation call: descriptive
// text plus proposed variable deltas plus a success flag. StateChanges
// keys are not validated against known variables here; that is the
// engine's job, since delta keys originate from an untrusted generator.
type Outcome struct {
	Narrative    string         `json:"narrative"`
	StateChanges map[string]int `json:"stateChanges"`
	Success      bool           `json:"success"`
}

// Provider generates a narrative outcome from a player decision.
// Implementations may fail; the Adapter absorbs those failures.
type Provider interface {
	Generate(ctx context.Context, input Input) (Outcome, error)
}

// Summarizer produces a short digest of the current game situation.
// Optional capability; the OpenAI provider implements it, the static
// provider returns a fixed line.
type Summarizer interface {
	Summarize(ctx context.Context, input SummaryInput) (string, error)
}

// SummaryInput carries the material for a game summary.
type SummaryInput struct {
	Issues       []IssueDigest
	Variables    map[string]int
	RecentEvents []string
}

// IssueDigest is the minimal issue projection used in summary prompts.
type IssueDigest struct {
	Title       string
	Description string
}

// FallbackNarrative is the neutral outcome text used when generation
// fails. Fixed so the fallback is deterministic and testable.
const FallbackNarrative = "The decision has been recorded and will have consequences for the kingdom."

// FallbackSummary is the neutral summary used when summarization fails.
const FallbackSummary = "The kingdom stands at a crossroads."

// Fallback returns the deterministic no-op outcome.
func Fallback() Outcome {
	return Outcome{
		Narrative:    FallbackNarrative,
		StateChanges: map[string]int{},
		Success:      true,
	}
}
