package narrative

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	outcome Outcome
	err     error
	delay   time.Duration
	got     Input
}

func (s *stubProvider) Generate(ctx context.Context, input Input) (Outcome, error) {
	s.got = input
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}
	return s.outcome, s.err
}

func TestAdapter_PassesThroughProviderOutcome(t *testing.T) {
	stub := &stubProvider{outcome: Outcome{
		Narrative:    "The border holds.",
		StateChanges: map[string]int{"militarism_level": 15},
		Success:      true,
	}}
	a := NewAdapter(stub, time.Second, slog.Default())

	out := a.Generate(context.Background(), Input{IssueTitle: "The Northern Border Dispute"})

	assert.Equal(t, "The border holds.", out.Narrative)
	assert.Equal(t, map[string]int{"militarism_level": 15}, out.StateChanges)
	assert.True(t, out.Success)
}

func TestAdapter_FallsBackOnProviderError(t *testing.T) {
	stub := &stubProvider{err: errors.New("service unavailable")}
	a := NewAdapter(stub, time.Second, slog.Default())

	out := a.Generate(context.Background(), Input{})

	assert.Equal(t, FallbackNarrative, out.Narrative)
	assert.Empty(t, out.StateChanges)
	assert.NotNil(t, out.StateChanges, "fallback must carry an empty map, not nil")
	assert.True(t, out.Success)
}

func TestAdapter_FallsBackOnTimeout(t *testing.T) {
	stub := &stubProvider{
		delay:   200 * time.Millisecond,
		outcome: Outcome{Narrative: "too late", StateChanges: map[string]int{}, Success: true},
	}
	a := NewAdapter(stub, 10*time.Millisecond, slog.Default())

	start := time.Now()
	out := a.Generate(context.Background(), Input{})

	assert.Less(t, time.Since(start), 150*time.Millisecond, "call must be bounded by the adapter timeout")
	assert.Equal(t, FallbackNarrative, out.Narrative)
	assert.True(t, out.Success)
}

func TestAdapter_CopiesVariableSnapshot(t *testing.T) {
	vars := map[string]int{"treasury_level": 50}
	stub := &stubProvider{outcome: Outcome{Narrative: "ok", StateChanges: map[string]int{}, Success: true}}
	a := NewAdapter(stub, time.Second, slog.Default())

	a.Generate(context.Background(), Input{Variables: vars})

	require.NotNil(t, stub.got.Variables)
	stub.got.Variables["treasury_level"] = -999
	assert.Equal(t, 50, vars["treasury_level"], "provider must receive a copy, not the caller's map")
}

func TestAdapter_NormalizesNilStateChanges(t *testing.T) {
	stub := &stubProvider{outcome: Outcome{Narrative: "ok", Success: true}}
	a := NewAdapter(stub, time.Second, slog.Default())

	out := a.Generate(context.Background(), Input{})

	assert.NotNil(t, out.StateChanges)
}

func TestAdapter_SummaryFallsBack(t *testing.T) {
	// stubProvider does not implement Summarizer.
	a := NewAdapter(&stubProvider{}, time.Second, slog.Default())

	assert.Equal(t, FallbackSummary, a.Summary(context.Background(), SummaryInput{}))
}
