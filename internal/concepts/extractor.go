package concepts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/llm"
)

// MaxDocumentLength is the largest document Analyze accepts, in characters.
const MaxDocumentLength = 200_000

var (
	ErrEmptyDocument    = errors.New("document text is empty")
	ErrDocumentTooLarge = fmt.Errorf("document exceeds %d characters", MaxDocumentLength)

	// ErrNoConcepts is returned when the model found nothing usable.
	ErrNoConcepts = errors.New("no concepts found in document")
)

// Config holds extraction settings.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults for concept extraction.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   4096,
		Temperature: 0.2,
	}
}

// Extractor turns study text into a concept catalog.
type Extractor struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
}

// NewExtractor creates an Extractor backed by provider.
func NewExtractor(provider llm.Provider, cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{provider: provider, cfg: cfg, logger: logger.Named("concepts")}
}

const analysisSystemPrompt = `You are an expert in structuring knowledge. Analyze the text you are given and extract its key concepts.

Complexity guidelines:
1 = Basic terminology, simple facts
2 = Concepts with several aspects
3 = Concepts that require relations to other concepts
4 = Abstract concepts that require analysis
5 = Complex theories or models

Extract at least 3-5 concepts. Give every concept a unique id (concept_1, concept_2, ...).
Relations and examples must refer to those ids. Write names and definitions in the language of the text.`

// Analyze extracts concepts, relations and examples from text.
func (e *Extractor) Analyze(ctx context.Context, text string) (*Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %w", ErrEmptyDocument,
			&assessment.ValidationError{Field: "documentText", Value: "", Reason: "must not be blank"})
	}
	if n := utf8.RuneCountInString(text); n > MaxDocumentLength {
		return nil, fmt.Errorf("%w: %w", ErrDocumentTooLarge,
			&assessment.ValidationError{Field: "documentText", Value: n, Reason: "too large"})
	}

	ctx = llm.WithPurpose(ctx, llm.PurposeConcepts)
	req := llm.Request{
		System:      analysisSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "TEXT:\n" + text}},
		Schema:      AnalysisSchema,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	}

	resp, err := e.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("concept analysis: %w", err)
	}

	var a Analysis
	if err := json.Unmarshal(resp.Content, &a); err != nil {
		return nil, fmt.Errorf("parse concept analysis: %w", err)
	}

	before := len(a.Concepts)
	Normalize(&a)
	if len(a.Concepts) == 0 {
		return nil, &llm.ErrInvalidResponse{Content: resp.Content, Err: ErrNoConcepts}
	}
	if dropped := before - len(a.Concepts); dropped > 0 {
		e.logger.Warn("dropped malformed concepts", zap.Int("dropped", dropped))
	}
	e.logger.Debug("concepts extracted",
		zap.Int("concepts", len(a.Concepts)),
		zap.Int("relations", len(a.Relations)),
		zap.Int("examples", len(a.Examples)))
	return &a, nil
}
