package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc := session.NewService(session.NewMemoryRepository())
	return New(svc, "test", nil)
}

func startSession(t *testing.T, s *Server) string {
	t.Helper()
	res, err := s.CallTool(context.Background(), "socratic_start_session", map[string]any{
		"title": "Go channels",
		"concepts": []any{
			map[string]any{"id": "chan", "name": "Channels", "complexity": 2},
			map[string]any{"id": "select", "name": "Select", "complexity": 3},
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, res.Content)

	var out struct {
		SessionID    string `json:"session_id"`
		CurrentLevel int    `json:"currentLevel"`
		Concepts     int    `json:"concepts"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content), &out))
	assert.Equal(t, assessment.StartLevel, out.CurrentLevel)
	assert.Equal(t, 2, out.Concepts)
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func TestListTools(t *testing.T) {
	s := newTestServer(t)

	var names []string
	for _, tool := range s.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	assert.Equal(t, toolNames, names)
}

func TestSubmitSignalPromotes(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	id := startSession(t, s)

	var last map[string]any
	for i := 0; i < 3; i++ {
		res, err := s.CallTool(ctx, "socratic_submit_signal", map[string]any{
			"session_id":           id,
			"questionLevel":        2,
			"answerQuality":        "correct",
			"conceptsDemonstrated": []any{"chan"},
			"user_content":         "a typed conduit",
			"reply":                "good, now what about select?",
		})
		require.NoError(t, err)
		require.False(t, res.IsError, res.Content)
		require.NoError(t, json.Unmarshal([]byte(res.Content), &last))
	}
	assert.EqualValues(t, 3, last["currentLevel"])

	res, err := s.CallTool(ctx, "socratic_get_report", map[string]any{"session_id": id})
	require.NoError(t, err)
	require.False(t, res.IsError, res.Content)

	var report assessment.Report
	require.NoError(t, json.Unmarshal([]byte(res.Content), &report))
	assert.Equal(t, assessment.StatusActive, report.Status)
	assert.Equal(t, 50, report.ConceptCoverage)
	require.Len(t, report.Strongest, 1)
	assert.Equal(t, "chan", report.Strongest[0].ConceptID)
}

func TestEndSession(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	id := startSession(t, s)

	res, err := s.CallTool(ctx, "socratic_end_session", map[string]any{"session_id": id})
	require.NoError(t, err)
	require.False(t, res.IsError, res.Content)

	var report assessment.Report
	require.NoError(t, json.Unmarshal([]byte(res.Content), &report))
	assert.Equal(t, assessment.StatusCompleted, report.Status)
	assert.Equal(t, assessment.StartLevel, report.FinalLevel)

	res, err = s.CallTool(ctx, "socratic_submit_signal", map[string]any{
		"session_id":    id,
		"answerQuality": "correct",
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "session closed")
}

func TestToolErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	id := startSession(t, s)

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"unknown tool", "socratic_nope", nil, "unknown tool"},
		{"missing session id", "socratic_end_session", map[string]any{}, "session_id is required"},
		{"unknown session", "socratic_get_report", map[string]any{"session_id": "missing"}, "not found"},
		{"blank title", "socratic_start_session", map[string]any{
			"title":    " ",
			"concepts": []any{map[string]any{"id": "a", "name": "A"}},
		}, "invalid input"},
		{"duplicate concepts", "socratic_start_session", map[string]any{
			"title":    "dupes",
			"concepts": []any{map[string]any{"id": "a", "name": "A"}, map[string]any{"id": "a", "name": "B"}},
		}, "invalid input"},
		{"fractional level", "socratic_submit_signal", map[string]any{
			"session_id":    id,
			"questionLevel": 2.5,
		}, "invalid input"},
		{"bad quality", "socratic_submit_signal", map[string]any{
			"session_id":    id,
			"answerQuality": "great",
		}, "invalid input"},
		{"wrong argument type", "socratic_list_sessions", map[string]any{"limit": "ten"}, "invalid arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.CallTool(ctx, tt.tool, tt.args)
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, res.Content, tt.want)
		})
	}
}

func TestListSessions(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	first := startSession(t, s)
	startSession(t, s)

	_, err := s.CallTool(ctx, "socratic_end_session", map[string]any{"session_id": first})
	require.NoError(t, err)

	res, err := s.CallTool(ctx, "socratic_list_sessions", map[string]any{"status": "completed"})
	require.NoError(t, err)
	require.False(t, res.IsError, res.Content)

	var out struct {
		Sessions []session.SessionSummary `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content), &out))
	require.Len(t, out.Sessions, 1)
	assert.Equal(t, first, out.Sessions[0].ID)

	res, err = s.CallTool(ctx, "socratic_list_sessions", map[string]any{"limit": 1})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(res.Content), &out))
	assert.Len(t, out.Sessions, 1)
}

func TestHandleMessageToolCall(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	raw := json.RawMessage(`{
		"jsonrpc": "2.0",
		"id": 1,
		"method": "tools/call",
		"params": {"name": "socratic_get_report", "arguments": {"session_id": "missing"}}
	}`)
	data, err := json.Marshal(s.HandleMessage(ctx, raw))
	require.NoError(t, err)

	var resp struct {
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.True(t, resp.Result.IsError)
	require.Len(t, resp.Result.Content, 1)
	assert.Equal(t, "text", resp.Result.Content[0].Type)
	assert.Contains(t, resp.Result.Content[0].Text, "not found")
}
