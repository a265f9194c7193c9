package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/llm"
)

// CompressorConfig controls transcript compression. Window is the number of
// most recent messages always sent verbatim; older messages are folded into
// a summary in steps of Chunk messages.
type CompressorConfig struct {
	Window      int
	Chunk       int
	MaxTokens   int
	Temperature float64
}

// DefaultCompressorConfig returns sensible defaults for compression.
func DefaultCompressorConfig() CompressorConfig {
	return CompressorConfig{
		Window:      30,
		Chunk:       10,
		MaxTokens:   400,
		Temperature: 0.3,
	}
}

// Compressor summarizes the older part of long transcripts so turn requests
// stay bounded. It keeps the latest summary of each open session, keyed by
// session id and tagged with the id of the last message it covers.
type Compressor struct {
	provider llm.Provider
	cfg      CompressorConfig
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[string]cachedSummary
}

type cachedSummary struct {
	through string
	summary string
}

// NewCompressor creates a transcript compressor.
func NewCompressor(provider llm.Provider, cfg CompressorConfig, logger *zap.Logger) *Compressor {
	if cfg.Chunk <= 0 {
		cfg.Chunk = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compressor{provider: provider, cfg: cfg, logger: logger, cache: make(map[string]cachedSummary)}
}

// Compress splits history into a summary of the older messages and the
// recent messages to send verbatim. Short histories come back unchanged
// with an empty summary. When summarization fails the older messages are
// dropped and the summary stays empty. An empty sessionID disables caching.
func (c *Compressor) Compress(ctx context.Context, sessionID string, history []assessment.Message) (string, []assessment.Message) {
	cut := c.cutoff(len(history))
	if cut == 0 {
		return "", history
	}
	older, recent := history[:cut], history[cut:]

	through := older[len(older)-1].ID
	cacheable := sessionID != "" && through != ""
	if cacheable {
		c.mu.Lock()
		cached, ok := c.cache[sessionID]
		c.mu.Unlock()
		if ok && cached.through == through {
			return cached.summary, recent
		}
	}

	summary, err := c.summarize(ctx, older)
	if err != nil {
		c.logger.Warn("history compression failed, truncating",
			zap.Int("dropped", len(older)), zap.Error(err))
		return "", recent
	}
	if cacheable {
		c.mu.Lock()
		c.cache[sessionID] = cachedSummary{through: through, summary: summary}
		c.mu.Unlock()
	}
	return summary, recent
}

// Forget drops the cached summary of a session.
func (c *Compressor) Forget(sessionID string) {
	c.mu.Lock()
	delete(c.cache, sessionID)
	c.mu.Unlock()
}

func (c *Compressor) cached() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// cutoff returns how many leading messages to compress. It advances in
// whole chunks so the summary is reused across several turns.
func (c *Compressor) cutoff(n int) int {
	if c.cfg.Window <= 0 || n <= c.cfg.Window {
		return 0
	}
	return (n - c.cfg.Window) / c.cfg.Chunk * c.cfg.Chunk
}

type summaryOutput struct {
	Summary string `json:"summary"`
}

func (c *Compressor) summarize(ctx context.Context, msgs []assessment.Message) (string, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeSummarise)

	req := llm.Request{
		System:      compressionSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildCompressionMessage(msgs)}},
		Schema:      HistorySummarySchema,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("history compression: %w", err)
	}

	var out summaryOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("parse compression response: %w", err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return "", &llm.ErrInvalidResponse{Content: resp.Content, Err: errors.New("empty summary")}
	}
	return out.Summary, nil
}

const compressionSystemPrompt = `You are summarizing the earlier part of a Socratic assessment conversation between a teacher and a student. The summary replaces those messages for the teacher, so keep what matters for assessing the student.`

func buildCompressionMessage(msgs []assessment.Message) string {
	var b strings.Builder
	b.WriteString("Conversation:\n")
	for _, m := range msgs {
		who := "Student"
		if m.Role == assessment.RoleAssistant {
			who = "Teacher"
			if m.QuestionLevel > 0 {
				who += fmt.Sprintf(" (level %d)", m.QuestionLevel)
			}
		}
		fmt.Fprintf(&b, "%s: %s\n", who, m.Content)
	}
	b.WriteString(`
Instructions:
Summarize in at most 6 sentences:
- which concepts were covered and at which levels
- what the student answered well and where they struggled
- any misconceptions that came up
Do not invent anything that is not in the conversation.`)
	return b.String()
}
