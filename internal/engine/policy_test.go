package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberfall/regnum/internal/model"
)

func catalog() []model.Issue {
	return []model.Issue{
		{ID: "first", Status: model.IssueActive},
		{ID: "second", Status: model.IssueArchived},
		{ID: "third", Status: model.IssueArchived},
	}
}

func TestQueuePolicyCatalogOrder(t *testing.T) {
	next, archive := QueuePolicy{}.NextIssue(catalog(), "first")
	require.NotNil(t, next)
	assert.Equal(t, "second", *next)
	assert.Empty(t, archive)
}

func TestQueuePolicyExplicitOrder(t *testing.T) {
	p := QueuePolicy{Order: []string{"third", "second"}}
	next, _ := p.NextIssue(catalog(), "first")
	require.NotNil(t, next)
	assert.Equal(t, "third", *next)
}

func TestQueuePolicySkipsResolved(t *testing.T) {
	issues := []model.Issue{
		{ID: "first", Status: model.IssueResolved},
		{ID: "second", Status: model.IssueResolved},
		{ID: "third", Status: model.IssueArchived},
	}
	next, _ := QueuePolicy{}.NextIssue(issues, "second")
	require.NotNil(t, next)
	assert.Equal(t, "third", *next)
}

func TestQueuePolicyExhausted(t *testing.T) {
	issues := []model.Issue{
		{ID: "first", Status: model.IssueResolved},
		{ID: "second", Status: model.IssueResolved},
	}
	next, archive := QueuePolicy{}.NextIssue(issues, "second")
	assert.Nil(t, next)
	assert.Empty(t, archive)
}

func TestQueuePolicyArchivePredecessors(t *testing.T) {
	p := QueuePolicy{ArchivePredecessors: true}
	next, archive := p.NextIssue(catalog(), "first")
	require.NotNil(t, next)
	assert.Equal(t, []string{"first"}, archive)
}

func TestQueuePolicyUnknownOrderIDs(t *testing.T) {
	p := QueuePolicy{Order: []string{"ghost", "second"}}
	next, _ := p.NextIssue(catalog(), "first")
	require.NotNil(t, next)
	assert.Equal(t, "second", *next)
}

func TestHaltPolicy(t *testing.T) {
	next, archive := HaltPolicy{}.NextIssue(catalog(), "first")
	assert.Nil(t, next)
	assert.Nil(t, archive)
}

func TestIssueLocks(t *testing.T) {
	locks := newIssueLocks()

	assert.True(t, locks.tryAcquire("a"))
	assert.False(t, locks.tryAcquire("a"))
	assert.True(t, locks.tryAcquire("b"))

	locks.release("a")
	assert.True(t, locks.tryAcquire("a"))

	// Releasing an unheld id is harmless.
	locks.release("never-held")
}
