package narrative

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/emberfall/regnum/internal/telemetry"
)

// Adapter makes a Provider total with respect to its caller: Generate
// always returns an outcome, never an error. Provider faults such as
// timeouts or malformed output are absorbed and replaced with
// the deterministic fallback, trading narrative richness for liveness of
// the game loop.
type Adapter struct {
	provider Provider
	timeout  time.Duration
	logger   *slog.Logger

	fallbacks metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewAdapter wraps a provider with a bounded per-call timeout.
func NewAdapter(provider Provider, timeout time.Duration, logger *slog.Logger) *Adapter {
	meter := telemetry.Meter("regnum/narrative")
	fallbacks, _ := meter.Int64Counter("regnum.narrative.fallbacks",
		metric.WithDescription("Generation calls that fell back to the neutral outcome"),
	)
	duration, _ := meter.Float64Histogram("regnum.narrative.duration",
		metric.WithDescription("Time to generate a narrative outcome (ms)"),
		metric.WithUnit("ms"),
	)
	return &Adapter{
		provider:  provider,
		timeout:   timeout,
		logger:    logger,
		fallbacks: fallbacks,
		duration:  duration,
	}
}

// Generate produces an outcome for the given input. The input's variable
// snapshot is copied before the provider sees it, so a misbehaving
// provider cannot mutate engine state.
func (a *Adapter) Generate(ctx context.Context, input Input) Outcome {
	snapshot := make(map[string]int, len(input.Variables))
	for k, v := range input.Variables {
		snapshot[k] = v
	}
	input.Variables = snapshot

	genCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	outcome, err := a.provider.Generate(genCtx, input)
	a.duration.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		a.fallbacks.Add(ctx, 1)
		a.logger.Warn("narrative generation failed, using fallback",
			"issue_title", input.IssueTitle,
			"error", err,
		)
		return Fallback()
	}
	if outcome.StateChanges == nil {
		outcome.StateChanges = map[string]int{}
	}
	return outcome
}

// Summary produces a digest of the game situation, or the neutral
// fallback line if the provider cannot summarize.
func (a *Adapter) Summary(ctx context.Context, input SummaryInput) string {
	s, ok := a.provider.(Summarizer)
	if !ok {
		return FallbackSummary
	}

	sumCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := s.Summarize(sumCtx, input)
	if err != nil {
		a.logger.Warn("game summary failed, using fallback", "error", err)
		return FallbackSummary
	}
	return text
}
