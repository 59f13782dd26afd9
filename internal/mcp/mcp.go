// Package mcp implements the Model Context Protocol server for Regnum.
//
// The MCP server exposes the same capabilities as the HTTP API through
// MCP resources and tools, allowing MCP-compatible AI agents to play
// roles in the game: resolve issues, inspect state, and pass notes.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/emberfall/regnum/internal/engine"
	"github.com/emberfall/regnum/internal/model"
)

// Server wraps the MCP server around the resolution engine.
type Server struct {
	mcpServer *mcpserver.MCPServer
	engine    *engine.Engine
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(eng *engine.Engine, version string, logger *slog.Logger) *Server {
	s := &Server{
		engine: eng,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"regnum",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// regnum://issue/current: the issue awaiting a decision.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"regnum://issue/current",
			"Current Issue",
			mcplib.WithResourceDescription("The issue currently awaiting a decision"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCurrentIssue,
	)

	// regnum://history/recent: recent resolutions from the ledger.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"regnum://history/recent",
			"Recent History",
			mcplib.WithResourceDescription("The most recent resolution records"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRecentHistory,
	)
}

func (s *Server) registerTools() {
	// regnum_resolve: decide the current issue.
	s.mcpServer.AddTool(
		mcplib.NewTool("regnum_resolve",
			mcplib.WithDescription(`Resolve the game's current issue with a decision.

Read regnum://issue/current first to see what is at stake, then call this
with your role and your chosen course of action. The engine generates a
narrative outcome, applies its consequences to the kingdom's variables,
and advances the game one round. Each issue can be resolved exactly once;
a second attempt while one is in flight is rejected.`),
			mcplib.WithString("issue_id",
				mcplib.Description("The id of the issue to resolve (must be the current issue)"),
				mcplib.Required(),
			),
			mcplib.WithString("player_role",
				mcplib.Description("Your role id, e.g. regent, treasury, military, diplomat"),
				mcplib.Required(),
			),
			mcplib.WithString("resolution_choice",
				mcplib.Description("The decision, in free text"),
				mcplib.Required(),
			),
		),
		s.handleResolve,
	)

	// regnum_state: read the full game state.
	s.mcpServer.AddTool(
		mcplib.NewTool("regnum_state",
			mcplib.WithDescription("Get the current game state: round, status, active issue, and all variable values."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
		),
		s.handleState,
	)

	// regnum_send_note: private message to another role.
	s.mcpServer.AddTool(
		mcplib.NewTool("regnum_send_note",
			mcplib.WithDescription("Send a private note to another role. Only the recipient can read it."),
			mcplib.WithString("sender_role", mcplib.Description("Your role id"), mcplib.Required()),
			mcplib.WithString("recipient_role", mcplib.Description("The role to send to"), mcplib.Required()),
			mcplib.WithString("content", mcplib.Description("The note text"), mcplib.Required()),
		),
		s.handleSendNote,
	)

	// regnum_read_notes: notes addressed to a role.
	s.mcpServer.AddTool(
		mcplib.NewTool("regnum_read_notes",
			mcplib.WithDescription("Read the private notes addressed to a role, newest first."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithString("recipient_role", mcplib.Description("The role whose notes to read"), mcplib.Required()),
		),
		s.handleReadNotes,
	)
}

func (s *Server) handleCurrentIssue(ctx context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	issue, err := s.engine.CurrentIssue(ctx)
	if err != nil {
		if engine.KindOf(err) == engine.KindNotFound {
			return textResource("regnum://issue/current", `{"current_issue": null}`), nil
		}
		return nil, fmt.Errorf("mcp: current issue: %w", err)
	}

	data, err := json.MarshalIndent(map[string]any{
		"id":          issue.ID,
		"title":       issue.Title,
		"description": issue.Description,
		"category":    issue.Category,
		"status":      issue.Status,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal issue: %w", err)
	}
	return textResource("regnum://issue/current", string(data)), nil
}

func (s *Server) handleRecentHistory(ctx context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	recs, err := s.engine.History(ctx, 0, "", 10)
	if err != nil {
		return nil, fmt.Errorf("mcp: recent history: %w", err)
	}

	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal history: %w", err)
	}
	return textResource("regnum://history/recent", string(data)), nil
}

func (s *Server) handleResolve(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	issueID := request.GetString("issue_id", "")
	playerRole := request.GetString("player_role", "")
	choice := request.GetString("resolution_choice", "")

	res, err := s.engine.ResolveIssue(ctx, issueID, playerRole, choice)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	data, _ := json.MarshalIndent(model.ResolveResponse{
		Narrative:    res.Narrative,
		StateChanges: res.StateChanges,
		Success:      res.Success,
		Round:        res.Round,
	}, "", "  ")
	return textResult(string(data)), nil
}

func (s *Server) handleState(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	view, err := s.engine.State(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	resp := model.StateResponse{
		Round:     view.Round,
		Status:    string(view.Status),
		Variables: view.Variables,
	}
	if view.CurrentIssue != nil {
		resp.CurrentIssue = &model.IssueView{
			ID:          view.CurrentIssue.ID,
			Title:       view.CurrentIssue.Title,
			Description: view.CurrentIssue.Description,
			Category:    view.CurrentIssue.Category,
			Status:      string(view.CurrentIssue.Status),
		}
	}

	data, _ := json.MarshalIndent(resp, "", "  ")
	return textResult(string(data)), nil
}

func (s *Server) handleSendNote(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	sender := request.GetString("sender_role", "")
	recipient := request.GetString("recipient_role", "")
	content := request.GetString("content", "")

	note, err := s.engine.SendNote(ctx, sender, recipient, content)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	data, _ := json.Marshal(map[string]any{
		"note_id": note.ID,
		"status":  "sent",
	})
	return textResult(string(data)), nil
}

func (s *Server) handleReadNotes(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	recipient := request.GetString("recipient_role", "")

	notes, err := s.engine.NotesFor(ctx, recipient)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	views := make([]model.NoteView, 0, len(notes))
	for _, n := range notes {
		views = append(views, model.NoteView{
			ID:        n.ID,
			Sender:    n.SenderRole,
			Content:   n.Content,
			Read:      n.Read,
			Timestamp: n.CreatedAt,
		})
	}
	data, _ := json.MarshalIndent(views, "", "  ")
	return textResult(string(data)), nil
}

func textResource(uri, text string) []mcplib.ResourceContents {
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		},
	}
}

func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}

func errorResult(message string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		IsError: true,
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: message},
		},
	}
}
