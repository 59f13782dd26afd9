package narrative

import (
	"context"
	"fmt"
)

// StaticProvider returns canned outcomes with no external calls. Used
// when no API key is configured and in tests.
type StaticProvider struct{}

// NewStaticProvider creates a provider that never leaves the process.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// Generate returns a deterministic outcome echoing the decision.
func (p *StaticProvider) Generate(_ context.Context, input Input) (Outcome, error) {
	return Outcome{
		Narrative: fmt.Sprintf(
			"The %s chose %q on %q. The council takes note, and the realm adjusts.",
			input.PlayerRole, input.ResolutionChoice, input.IssueTitle,
		),
		StateChanges: map[string]int{},
		Success:      true,
	}, nil
}

// Summarize returns the fixed neutral summary.
func (p *StaticProvider) Summarize(context.Context, SummaryInput) (string, error) {
	return FallbackSummary, nil
}
