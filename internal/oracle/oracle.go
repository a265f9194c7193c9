package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/llm"
	"github.com/abhisek/socratic/internal/session"
)

// Config holds oracle generation settings.
type Config struct {
	MaxTokens   int
	Temperature float64

	// Structured requests schema-constrained output. When false the model
	// replies in free text with a fenced JSON block.
	Structured bool

	// Compression bounds the transcript sent per turn. A zero Window sends
	// the full history.
	Compression CompressorConfig
}

// DefaultConfig returns sensible defaults for tutoring turns.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   1024,
		Temperature: 0.7,
		Structured:  true,
		Compression: DefaultCompressorConfig(),
	}
}

// Oracle is the LLM-backed session.Oracle.
type Oracle struct {
	provider   llm.Provider
	cfg        Config
	compressor *Compressor
	logger     *zap.Logger
}

var (
	_ session.Oracle        = (*Oracle)(nil)
	_ session.SessionCloser = (*Oracle)(nil)
)

// New creates an Oracle that talks to provider.
func New(provider llm.Provider, cfg Config, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("oracle")
	return &Oracle{
		provider:   provider,
		cfg:        cfg,
		compressor: NewCompressor(provider, cfg.Compression, logger),
		logger:     logger,
	}
}

type turnOutput struct {
	Reply      string                `json:"reply"`
	Assessment *assessment.RawSignal `json:"assessment"`
}

// Open asks for the welcome message and the first question.
func (o *Oracle) Open(ctx context.Context, in session.OpenInput) (*session.Reply, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeOpening)

	req := llm.Request{
		System:      buildSystemPrompt(in.Title, in.Catalog, in.Level, assessment.EngagementHigh, o.cfg.Structured),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildOpeningMessage(in.Level)}},
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}
	if o.cfg.Structured {
		req.Schema = OpeningSchema
	}

	reply, err := o.generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("opening message: %w", err)
	}
	// An opening has no answer to judge.
	reply.Signal = nil
	return reply, nil
}

// Respond answers the learner's message and assesses it.
func (o *Oracle) Respond(ctx context.Context, in session.TurnInput) (*session.Reply, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeTurn)

	summary, history := o.compressor.Compress(ctx, in.SessionID, in.History)

	msgs := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: in.Content})

	system := buildSystemPrompt(in.Title, in.Catalog, in.Level, in.Engagement, o.cfg.Structured)
	if summary != "" {
		system += "\n\nEarlier in this conversation:\n" + summary
	}

	req := llm.Request{
		System:      system,
		Messages:    msgs,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}
	if o.cfg.Structured {
		req.Schema = TurnSchema
	}

	reply, err := o.generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("assessment turn: %w", err)
	}
	return reply, nil
}

// SessionClosed releases the transcript summary kept for a session.
func (o *Oracle) SessionClosed(id string) {
	o.compressor.Forget(id)
}

func (o *Oracle) generate(ctx context.Context, req llm.Request) (*session.Reply, error) {
	resp, err := o.provider.Generate(ctx, req)
	if err != nil {
		// Some models ignore the schema and answer in prose. Salvage the
		// text instead of failing the turn.
		var invalid *llm.ErrInvalidResponse
		if req.Schema != nil && errors.As(err, &invalid) && !json.Valid(invalid.Content) {
			o.logger.Warn("structured output ignored, parsing free text", zap.String("schema", req.Schema.Name))
			return o.fromText(string(invalid.Content))
		}
		return nil, err
	}

	if req.Schema == nil {
		return o.fromText(resp.Text())
	}

	var out turnOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", req.Schema.Name, err)
	}
	text, fenced := parseFreeText(out.Reply)
	sig := out.Assessment
	if sig == nil {
		sig = fenced
	}
	if strings.TrimSpace(text) == "" {
		return nil, &llm.ErrInvalidResponse{Content: resp.Content, Err: errors.New("empty reply")}
	}
	return &session.Reply{Text: text, Signal: sig}, nil
}

func (o *Oracle) fromText(text string) (*session.Reply, error) {
	visible, sig := parseFreeText(text)
	if visible == "" {
		return nil, &llm.ErrInvalidResponse{Content: json.RawMessage(text), Err: errors.New("empty reply")}
	}
	if sig == nil {
		o.logger.Debug("reply carried no assessment block")
	}
	return &session.Reply{Text: visible, Signal: sig}, nil
}
