package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/session"
)

// Server exposes the session service as MCP tools, so that an external
// agent can act as the oracle: it talks to the learner itself and submits
// its assessment of every answer.
type Server struct {
	sessions  *session.Service
	mcpServer *server.MCPServer
	logger    *zap.Logger
}

// ToolResult is the outcome of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// New creates an MCP server with the socratic tools registered.
func New(sessions *session.Service, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{sessions: sessions, logger: logger.Named("mcp")}
	s.mcpServer = server.NewMCPServer("socratic", version, server.WithToolCapabilities(true))
	s.registerTools()
	return s
}

// Serve reads JSON-RPC messages from in and writes responses to out until
// ctx is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}

// HandleMessage processes one raw JSON-RPC message.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	tools := s.mcpServer.ListTools()
	out := make([]ToolInfo, 0, len(tools))
	for _, name := range toolNames {
		if t, ok := tools[name]; ok {
			out = append(out, ToolInfo{Name: name, Description: t.Tool.Description})
		}
	}
	return out
}

var toolNames = []string{
	"socratic_start_session",
	"socratic_submit_signal",
	"socratic_end_session",
	"socratic_get_report",
	"socratic_list_sessions",
}

// CallTool runs a tool by name.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "socratic_start_session":
		return s.handleStart(ctx, args)
	case "socratic_submit_signal":
		return s.handleSubmit(ctx, args)
	case "socratic_end_session":
		return s.handleEnd(ctx, args)
	case "socratic_get_report":
		return s.handleReport(ctx, args)
	case "socratic_list_sessions":
		return s.handleList(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	conceptItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":         map[string]any{"type": "string"},
			"name":       map[string]any{"type": "string"},
			"definition": map[string]any{"type": "string"},
			"complexity": map[string]any{"type": "integer", "minimum": 1, "maximum": 5},
		},
		"required": []any{"id", "name"},
	}

	s.mcpServer.AddTool(mcp.NewTool("socratic_start_session",
		mcp.WithDescription("Start an adaptive assessment session over a catalog of concepts. Returns the session id and the starting level (2). You then ask the learner questions and report each answer with socratic_submit_signal."),
		mcp.WithString("title", mcp.Description("Session title, usually the topic"), mcp.Required()),
		mcp.WithArray("concepts", mcp.Description("Concepts to assess; ids must be unique"), mcp.Items(conceptItem), mcp.Required()),
	), s.adapt(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("socratic_submit_signal",
		mcp.WithDescription("Submit your assessment of the learner's last answer. Returns the level to ask the next question at and the updated engagement."),
		mcp.WithString("session_id", mcp.Required()),
		mcp.WithNumber("questionLevel", mcp.Description("Level 1-5 of the question that was answered"), mcp.Min(1), mcp.Max(5)),
		mcp.WithString("answerQuality", mcp.Enum("correct", "partial", "incorrect", "unclear")),
		mcp.WithArray("conceptsDemonstrated", mcp.WithStringItems()),
		mcp.WithArray("conceptsStruggling", mcp.WithStringItems()),
		mcp.WithString("engagementSignal", mcp.Enum("high", "medium", "low", "declining")),
		mcp.WithNumber("suggestedNextLevel", mcp.Min(1), mcp.Max(5)),
		mcp.WithString("phase", mcp.Enum("calibration", "exploration", "integration", "closing")),
		mcp.WithString("user_content", mcp.Description("The learner's answer, kept in the transcript")),
		mcp.WithString("reply", mcp.Description("Your next message to the learner, kept in the transcript")),
	), s.adapt(s.handleSubmit))

	s.mcpServer.AddTool(mcp.NewTool("socratic_end_session",
		mcp.WithDescription("Complete a session and return its report"),
		mcp.WithString("session_id", mcp.Required()),
	), s.adapt(s.handleEnd))

	s.mcpServer.AddTool(mcp.NewTool("socratic_get_report",
		mcp.WithDescription("Report for a session in any status: levels, coverage, strongest and weakest concepts"),
		mcp.WithString("session_id", mcp.Required()),
	), s.adapt(s.handleReport))

	s.mcpServer.AddTool(mcp.NewTool("socratic_list_sessions",
		mcp.WithDescription("List sessions, most recently updated first"),
		mcp.WithString("status", mcp.Enum("active", "completed", "abandoned")),
		mcp.WithNumber("limit", mcp.Description("Maximum sessions to return (default 20)")),
	), s.adapt(s.handleList))
}

type handlerFunc func(ctx context.Context, args map[string]any) (*ToolResult, error)

func (s *Server) adapt(h handlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		if result.IsError {
			return mcp.NewToolResultError(result.Content), nil
		}
		return mcp.NewToolResultText(result.Content), nil
	}
}

type startArgs struct {
	Title    string             `json:"title"`
	Concepts assessment.Catalog `json:"concepts"`
}

type submitArgs struct {
	assessment.RawSignal
	SessionID   string `json:"session_id"`
	UserContent string `json:"user_content"`
	Reply       string `json:"reply"`
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

type listArgs struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
}

func (s *Server) handleStart(ctx context.Context, args map[string]any) (*ToolResult, error) {
	var a startArgs
	if err := bind(args, &a); err != nil {
		return toolError(err), nil
	}
	state, err := s.sessions.Start(ctx, session.StartInput{Title: a.Title, Concepts: a.Concepts})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"session_id":   state.ID,
		"currentLevel": state.CurrentLevel,
		"concepts":     len(state.Catalog),
	})
}

func (s *Server) handleSubmit(ctx context.Context, args map[string]any) (*ToolResult, error) {
	var a submitArgs
	if err := bind(args, &a); err != nil {
		return toolError(err), nil
	}
	if a.SessionID == "" {
		return &ToolResult{Content: "session_id is required", IsError: true}, nil
	}

	out, err := s.sessions.ProcessTurn(ctx, a.SessionID, session.SignalInput{
		Signal:      a.RawSignal,
		UserContent: a.UserContent,
		Reply:       a.Reply,
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"level":            out.Turn.Level,
		"currentLevel":     out.State.CurrentLevel,
		"engagementStatus": out.State.Engagement,
		"overlap":          out.Turn.Signal.Overlap,
	})
}

func (s *Server) handleEnd(ctx context.Context, args map[string]any) (*ToolResult, error) {
	var a sessionArgs
	if err := bind(args, &a); err != nil || a.SessionID == "" {
		return &ToolResult{Content: "session_id is required", IsError: true}, nil
	}
	report, err := s.sessions.End(ctx, a.SessionID)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(report)
}

func (s *Server) handleReport(ctx context.Context, args map[string]any) (*ToolResult, error) {
	var a sessionArgs
	if err := bind(args, &a); err != nil || a.SessionID == "" {
		return &ToolResult{Content: "session_id is required", IsError: true}, nil
	}
	report, err := s.sessions.Report(ctx, a.SessionID)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(report)
}

func (s *Server) handleList(ctx context.Context, args map[string]any) (*ToolResult, error) {
	var a listArgs
	if err := bind(args, &a); err != nil {
		return toolError(err), nil
	}
	if a.Limit <= 0 {
		a.Limit = 20
	}
	list, err := s.sessions.List(ctx, session.ListOptions{Status: assessment.Status(a.Status), Limit: a.Limit})
	if err != nil {
		return toolError(err), nil
	}
	if list == nil {
		list = []session.SessionSummary{}
	}
	return jsonResult(map[string]any{"sessions": list})
}

// bind decodes tool arguments into target through their JSON form.
func bind(args map[string]any, target any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(v any) (*ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &ToolResult{Content: string(data)}, nil
}

// toolError reports service errors to the agent as tool errors, with a
// short hint of what kind of problem it was.
func toolError(err error) *ToolResult {
	var kind string
	switch {
	case errors.Is(err, assessment.ErrValidation):
		kind = "invalid input"
	case errors.Is(err, session.ErrNotFound):
		kind = "not found"
	case errors.Is(err, assessment.ErrInvalidState):
		kind = "session closed"
	case errors.Is(err, session.ErrConflict):
		kind = "conflict, retry"
	default:
		kind = "error"
	}
	return &ToolResult{Content: kind + ": " + err.Error(), IsError: true}
}
