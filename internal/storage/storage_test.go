package storage_test

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/emberfall/regnum/internal/engine"
	"github.com/emberfall/regnum/internal/model"
	"github.com/emberfall/regnum/internal/storage"
)

// testDB holds a shared test database connection for all tests in this package.
var testDB *storage.DB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "regnum",
			"POSTGRES_PASSWORD": "regnum",
			"POSTGRES_DB":       "regnum",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
		os.Exit(1)
	}

	dsn := fmt.Sprintf("postgres://regnum:regnum@%s:%s/regnum?sslmode=disable", host, port.Port())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	testDB, err = storage.New(ctx, dsn, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create DB: %v\n", err)
		os.Exit(1)
	}

	if err := testDB.RunMigrations(ctx, os.DirFS("../../migrations")); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func intPtr(v int) *int { return &v }

func TestIssueLifecycle(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, testDB.UpsertIssue(ctx, model.Issue{
		ID:          "border_skirmish",
		Title:       "Border Skirmish",
		Description: "Patrols clash at the frontier.",
		Category:    "military",
		Status:      model.IssueActive,
	}))

	iss, err := testDB.Issue(ctx, "border_skirmish")
	require.NoError(t, err)
	assert.Equal(t, "Border Skirmish", iss.Title)
	assert.Equal(t, model.IssueActive, iss.Status)

	require.NoError(t, testDB.SetIssueStatus(ctx, "border_skirmish", model.IssueResolved))
	iss, err = testDB.Issue(ctx, "border_skirmish")
	require.NoError(t, err)
	assert.Equal(t, model.IssueResolved, iss.Status)

	_, err = testDB.Issue(ctx, "no_such_issue")
	assert.ErrorIs(t, err, engine.ErrNotFound)

	err = testDB.SetIssueStatus(ctx, "no_such_issue", model.IssueActive)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestApplyVariableDelta(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, testDB.UpsertVariable(ctx, model.Variable{
		ID: "grain_reserves", Name: "Grain Reserves",
		Current: 40, Min: intPtr(0), Max: intPtr(100),
	}))

	newValue, applied, err := testDB.ApplyVariableDelta(ctx, "grain_reserves", 25)
	require.NoError(t, err)
	assert.Equal(t, 65, newValue)
	assert.Equal(t, 25, applied)

	// Clamps at the upper bound and reports the truncated delta.
	newValue, applied, err = testDB.ApplyVariableDelta(ctx, "grain_reserves", 50)
	require.NoError(t, err)
	assert.Equal(t, 100, newValue)
	assert.Equal(t, 35, applied)

	newValue, applied, err = testDB.ApplyVariableDelta(ctx, "grain_reserves", -150)
	require.NoError(t, err)
	assert.Equal(t, 0, newValue)
	assert.Equal(t, -100, applied)

	_, _, err = testDB.ApplyVariableDelta(ctx, "no_such_variable", 1)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestApplyVariableDeltaUnbounded(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, testDB.UpsertVariable(ctx, model.Variable{
		ID: "rumor_count", Name: "Rumors", Current: 0,
	}))

	newValue, applied, err := testDB.ApplyVariableDelta(ctx, "rumor_count", 500)
	require.NoError(t, err)
	assert.Equal(t, 500, newValue)
	assert.Equal(t, 500, applied)
}

func TestSetVariableValueClamps(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, testDB.UpsertVariable(ctx, model.Variable{
		ID: "court_favor", Name: "Court Favor",
		Current: 50, Min: intPtr(0), Max: intPtr(100),
	}))

	require.NoError(t, testDB.SetVariableValue(ctx, "court_favor", 250))
	values, err := testDB.VariableValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, values["court_favor"])
}

func TestTransitionStateRoundCompare(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, testDB.UpsertIssue(ctx, model.Issue{
		ID: "succession_question", Title: "The Succession Question", Status: model.IssueActive,
	}))
	current := "succession_question"
	require.NoError(t, testDB.PutState(ctx, model.GameState{
		CurrentIssueID: &current, Round: 7, Status: model.GameActive,
	}))

	require.NoError(t, testDB.TransitionState(ctx, nil, 8, model.GameActive, 7))

	state, err := testDB.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, state.Round)
	assert.Nil(t, state.CurrentIssueID)

	// Losing a round race leaves the row untouched.
	err = testDB.TransitionState(ctx, &current, 8, model.GameActive, 7)
	assert.ErrorIs(t, err, engine.ErrStaleState)

	state, err = testDB.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, state.Round)
}

func TestHistoryAppendAndQuery(t *testing.T) {
	ctx := context.Background()

	recs := []model.HistoryRecord{
		{ID: uuid.New(), IssueID: "harvest_failure", PlayerRole: "treasury",
			ResolutionChoice: "Open the granaries", Narrative: "The people eat.",
			StateChanges: map[string]int{"treasury_level": -10}, Round: 11},
		{ID: uuid.New(), IssueID: "harvest_failure", PlayerRole: "regent",
			ResolutionChoice: "Ration by decree", Narrative: "Grumbling in the streets.",
			StateChanges: map[string]int{}, Round: 12},
		{ID: uuid.New(), IssueID: "bandit_raids", PlayerRole: "military",
			ResolutionChoice: "Send outriders", Narrative: "The roads clear.",
			StateChanges: map[string]int{"militarism_level": 5}, Round: 12},
	}
	for _, rec := range recs {
		require.NoError(t, testDB.AppendHistory(ctx, rec))
	}

	byRound, err := testDB.HistoryByRound(ctx, 12)
	require.NoError(t, err)
	assert.Len(t, byRound, 2)

	byIssue, err := testDB.HistoryByIssue(ctx, "harvest_failure")
	require.NoError(t, err)
	require.Len(t, byIssue, 2)
	assert.Equal(t, map[string]int{"treasury_level": -10}, byIssue[1].StateChanges)

	recent, err := testDB.RecentHistory(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestRoles(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, testDB.UpsertRole(ctx, model.Role{ID: "spymaster", Name: "Master of Whisperers"}))

	roles, err := testDB.Roles(ctx)
	require.NoError(t, err)

	found := false
	for _, r := range roles {
		if r.ID == "spymaster" {
			found = true
			assert.Equal(t, "Master of Whisperers", r.Name)
		}
	}
	assert.True(t, found)
}

func TestNotes(t *testing.T) {
	ctx := context.Background()

	note := model.Note{
		ID: uuid.New(), SenderRole: "diplomat", RecipientRole: "spymaster",
		Content: "The envoy lies.",
	}
	require.NoError(t, testDB.InsertNote(ctx, note))

	notes, err := testDB.NotesByRecipient(ctx, "spymaster")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.False(t, notes[0].Read)

	require.NoError(t, testDB.MarkNoteRead(ctx, note.ID))
	notes, err = testDB.NotesByRecipient(ctx, "spymaster")
	require.NoError(t, err)
	assert.True(t, notes[0].Read)

	assert.ErrorIs(t, testDB.MarkNoteRead(ctx, uuid.New()), engine.ErrNotFound)
}
