package engine

import "github.com/emberfall/regnum/internal/model"

// Policy selects the next active issue after a resolution. Implementations
// receive the full issue catalog and the id of the issue that just
// resolved, and return the id to activate (nil for none) plus any issue
// ids to archive. The engine guarantees at most one issue is active after
// the transition regardless of what the policy returns.
type Policy interface {
	NextIssue(issues []model.Issue, resolvedID string) (next *string, archive []string)
}

// QueuePolicy activates issues in a fixed order. If Order is empty it
// falls back to catalog creation order. An issue is eligible when it is
// not resolved and not the one that just resolved; queued issues sit in
// the archived status between turns, so the policy reactivates them.
type QueuePolicy struct {
	// Order lists issue ids in play sequence. Ids not in the catalog
	// are skipped.
	Order []string
	// ArchivePredecessors requests that the resolved issue's record be
	// archived instead of left resolved once a successor activates.
	ArchivePredecessors bool
}

// NextIssue returns the first eligible issue in queue order.
func (p QueuePolicy) NextIssue(issues []model.Issue, resolvedID string) (*string, []string) {
	byID := make(map[string]model.Issue, len(issues))
	for _, iss := range issues {
		byID[iss.ID] = iss
	}

	candidates := p.Order
	if len(candidates) == 0 {
		candidates = make([]string, 0, len(issues))
		for _, iss := range issues {
			candidates = append(candidates, iss.ID)
		}
	}

	var next *string
	for _, id := range candidates {
		iss, ok := byID[id]
		if !ok || iss.ID == resolvedID || iss.Status == model.IssueResolved {
			continue
		}
		next = &iss.ID
		break
	}

	var archive []string
	if next != nil && p.ArchivePredecessors {
		archive = append(archive, resolvedID)
	}
	return next, archive
}

// HaltPolicy never activates another issue; the game idles after each
// resolution until an operator activates the next issue by hand.
type HaltPolicy struct{}

// NextIssue returns no successor.
func (HaltPolicy) NextIssue([]model.Issue, string) (*string, []string) {
	return nil, nil
}
