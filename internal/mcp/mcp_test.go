package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberfall/regnum/internal/engine"
	"github.com/emberfall/regnum/internal/model"
	"github.com/emberfall/regnum/internal/narrative"
	"github.com/emberfall/regnum/internal/storage/memory"
)

func intPtr(v int) *int { return &v }

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()

	store.UpsertIssue(model.Issue{
		ID:          "northern_border",
		Title:       "Northern Border Dispute",
		Description: "Raiders cross the border nightly.",
		Status:      model.IssueActive,
	})
	store.UpsertVariable(model.Variable{ID: "militarism_level", Name: "Militarism", Current: 30, Min: intPtr(0), Max: intPtr(100)})
	current := "northern_border"
	store.PutState(model.GameState{CurrentIssueID: &current, Round: 1, Status: model.GameActive})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	adapter := narrative.NewAdapter(narrative.NewStaticProvider(), time.Second, logger)
	eng := engine.New(store, adapter, nil, logger)
	return New(eng, "test", logger), store
}

func callRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// parseToolText extracts the first TextContent text from a CallToolResult.
func parseToolText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content in result")
	return ""
}

func TestHandleResolveTool(t *testing.T) {
	srv, store := newTestServer(t)

	result, err := srv.handleResolve(context.Background(), callRequest("regnum_resolve", map[string]any{
		"issue_id":          "northern_border",
		"player_role":       "regent",
		"resolution_choice": "Fortify the watchtowers",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))

	var resp model.ResolveResponse
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &resp))
	assert.NotEmpty(t, resp.Narrative)
	assert.Equal(t, 2, resp.Round)
	assert.Equal(t, 1, store.HistoryLen())
}

func TestHandleResolveToolErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleResolve(context.Background(), callRequest("regnum_resolve", map[string]any{
		"issue_id":          "ghost_issue",
		"player_role":       "regent",
		"resolution_choice": "x",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleResolve(context.Background(), callRequest("regnum_resolve", map[string]any{
		"issue_id": "northern_border",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleStateTool(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleState(context.Background(), callRequest("regnum_state", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp model.StateResponse
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &resp))
	assert.Equal(t, 1, resp.Round)
	require.NotNil(t, resp.CurrentIssue)
	assert.Equal(t, "northern_border", resp.CurrentIssue.ID)
	assert.Equal(t, 30, resp.Variables["militarism_level"])
}

func TestHandleNoteTools(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleSendNote(ctx, callRequest("regnum_send_note", map[string]any{
		"sender_role":    "regent",
		"recipient_role": "military",
		"content":        "Double the patrols.",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))

	result, err = srv.handleReadNotes(ctx, callRequest("regnum_read_notes", map[string]any{
		"recipient_role": "military",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var notes []model.NoteView
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "Double the patrols.", notes[0].Content)
}

func TestCurrentIssueResource(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()

	contents, err := srv.handleCurrentIssue(ctx, mcplib.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text := contents[0].(mcplib.TextResourceContents).Text
	assert.Contains(t, text, "northern_border")

	// No active issue renders an explicit null rather than an error.
	store.PutState(model.GameState{Round: 1, Status: model.GameActive})
	contents, err = srv.handleCurrentIssue(ctx, mcplib.ReadResourceRequest{})
	require.NoError(t, err)
	text = contents[0].(mcplib.TextResourceContents).Text
	assert.Contains(t, text, "null")
}
