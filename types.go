package regnum

// DecisionInput is the snapshot handed to an external Generator for one
// resolution. It is a curated view of the engine's internal input type.
// No internal package imports, so it is safe to use from outside the module.
type DecisionInput struct {
	IssueTitle       string
	IssueDescription string
	PlayerRole       string
	ResolutionChoice string
	// Variables is a read-only copy of the kingdom's variable values at
	// the time of the decision.
	Variables map[string]int
	// Context is optional extra framing, e.g. a digest of recent history.
	Context string
}

// DecisionOutcome is a Generator's structured response: descriptive text,
// proposed variable deltas, and a success flag. StateChanges keys that do
// not match a known variable are dropped by the engine; known keys are
// clamped to the variable's bounds before being applied.
type DecisionOutcome struct {
	Narrative    string
	StateChanges map[string]int
	Success      bool
}
