package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/llm"
	"github.com/abhisek/socratic/internal/session"
)

func transcript(n int) []assessment.Message {
	msgs := make([]assessment.Message, n)
	for i := range msgs {
		role := assessment.RoleUser
		if i%2 == 0 {
			role = assessment.RoleAssistant
		}
		msgs[i] = assessment.Message{ID: fmt.Sprintf("m%d", i), Role: role, Content: fmt.Sprintf("message %d", i)}
	}
	return msgs
}

func TestCompressor_Cutoff(t *testing.T) {
	c := NewCompressor(nil, CompressorConfig{Window: 6, Chunk: 4}, nil)

	tests := []struct{ n, want int }{
		{0, 0}, {6, 0}, {9, 0}, {10, 4}, {13, 4}, {14, 8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.cutoff(tt.n), "n=%d", tt.n)
	}

	disabled := NewCompressor(nil, CompressorConfig{}, nil)
	assert.Zero(t, disabled.cutoff(100))
}

func TestCompressor_ShortHistoryUntouched(t *testing.T) {
	mock := llm.NewMockProvider()
	c := NewCompressor(mock, CompressorConfig{Window: 6, Chunk: 4}, nil)

	history := transcript(5)
	summary, recent := c.Compress(context.Background(), "s1", history)
	assert.Empty(t, summary)
	assert.Equal(t, history, recent)
	assert.Zero(t, mock.CallCount())
}

func TestCompressor_SummarizesAndCaches(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockJSON(map[string]any{"summary": "Covered supply at level 2."}))
	c := NewCompressor(mock, CompressorConfig{Window: 6, Chunk: 4}, nil)
	ctx := context.Background()

	summary, recent := c.Compress(ctx, "s1", transcript(10))
	assert.Equal(t, "Covered supply at level 2.", summary)
	require.Len(t, recent, 6)
	assert.Equal(t, "m4", recent[0].ID)

	req, ok := mock.LastCall()
	require.True(t, ok)
	assert.Equal(t, HistorySummarySchema, req.Schema)
	assert.Contains(t, req.Messages[0].Content, "Teacher: message 0")
	assert.Contains(t, req.Messages[0].Content, "Student: message 3")
	assert.NotContains(t, req.Messages[0].Content, "message 4")

	// Same chunk boundary: served from the cache.
	summary, recent = c.Compress(ctx, "s1", transcript(12))
	assert.Equal(t, "Covered supply at level 2.", summary)
	assert.Len(t, recent, 8)
	assert.Equal(t, 1, mock.CallCount())
}

func TestCompressor_OneSummaryPerSession(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockJSON(map[string]any{"summary": "first four"}),
		llm.MockJSON(map[string]any{"summary": "first eight"}),
		llm.MockJSON(map[string]any{"summary": "other session"}),
	)
	c := NewCompressor(mock, CompressorConfig{Window: 6, Chunk: 4}, nil)
	ctx := context.Background()

	c.Compress(ctx, "s1", transcript(10))
	summary, _ := c.Compress(ctx, "s1", transcript(14))
	assert.Equal(t, "first eight", summary)
	assert.Equal(t, 1, c.cached(), "a newer summary replaces the older one")

	c.Compress(ctx, "s2", transcript(10))
	assert.Equal(t, 2, c.cached())

	c.Forget("s1")
	c.Forget("s2")
	assert.Zero(t, c.cached())
	assert.Equal(t, 3, mock.CallCount())
}

func TestCompressor_NoSessionIDSkipsCache(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockJSON(map[string]any{"summary": "a"}),
		llm.MockJSON(map[string]any{"summary": "b"}),
	)
	c := NewCompressor(mock, CompressorConfig{Window: 6, Chunk: 4}, nil)

	c.Compress(context.Background(), "", transcript(10))
	summary, _ := c.Compress(context.Background(), "", transcript(10))
	assert.Equal(t, "b", summary)
	assert.Zero(t, c.cached())
}

func TestCompressor_FailureTruncates(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("boom")})
	c := NewCompressor(mock, CompressorConfig{Window: 6, Chunk: 4}, nil)

	summary, recent := c.Compress(context.Background(), "s1", transcript(10))
	assert.Empty(t, summary)
	assert.Len(t, recent, 6)
}

func TestRespond_CompressesLongHistory(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockJSON(map[string]any{"summary": "Student knows supply."}),
		llm.MockJSON(turnJSON("Good. What about demand?")),
	)
	cfg := DefaultConfig()
	cfg.Compression = CompressorConfig{Window: 4, Chunk: 2}
	o := New(mock, cfg, nil)

	reply, err := o.Respond(context.Background(), session.TurnInput{
		SessionID: "s1",
		Title:     "Economics",
		Catalog:   catalog,
		Level:     2,
		History:   transcript(8),
		Content:   "Price goes up when supply drops.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Good. What about demand?", reply.Text)

	require.Equal(t, 2, mock.CallCount())
	req := mock.Calls[1]
	assert.Contains(t, req.System, "Earlier in this conversation:\nStudent knows supply.")
	assert.Len(t, req.Messages, 5)

	assert.Equal(t, 1, o.compressor.cached())
	o.SessionClosed("s1")
	assert.Zero(t, o.compressor.cached())
}
