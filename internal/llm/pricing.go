package llm

import "strings"

// ModelCost is a model's list price in USD per million tokens.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost prices a call that consumed the given token counts.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*c.InputPerMTok + float64(outputTokens)*c.OutputPerMTok) / 1e6
}

// LookupCost prices a model id as recorded in the request log. OpenRouter
// ids lose their "vendor/" prefix, and a dated or "-latest" snapshot falls
// back to the longest family entry it extends. Returns nil when nothing
// matches.
func LookupCost(modelID string) *ModelCost {
	id := strings.ToLower(modelID)
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		id = id[i+1:]
	}
	if id == "" {
		return nil
	}

	best := ""
	for family := range modelFamilies {
		if len(family) <= len(best) {
			continue
		}
		if id == family || strings.HasPrefix(id, family+"-") {
			best = family
		}
	}
	if best == "" {
		return nil
	}
	c := modelFamilies[best]
	return &c
}

// modelFamilies lists prices per model family, from models.dev. A key
// matches itself and any id that extends it with "-suffix"; where a
// snapshot was priced differently from its family it has its own key.
var modelFamilies = map[string]ModelCost{
	// Anthropic
	"claude-3-haiku":    {0.25, 1.25},
	"claude-3-5-haiku":  {0.8, 4},
	"claude-3-sonnet":   {3, 15},
	"claude-3-5-sonnet": {3, 15},
	"claude-3-7-sonnet": {3, 15},
	"claude-3-opus":     {15, 75},
	"claude-haiku-4-5":  {1, 5},
	"claude-sonnet-4":   {3, 15},
	"claude-opus-4":     {15, 75},
	"claude-opus-4-5":   {5, 25},
	"claude-opus-4-6":   {5, 25},

	// OpenAI
	"gpt-3.5-turbo":         {0.5, 1.5},
	"gpt-4":                 {30, 60},
	"gpt-4-turbo":           {10, 30},
	"gpt-4.1":               {2, 8},
	"gpt-4.1-mini":          {0.4, 1.6},
	"gpt-4.1-nano":          {0.1, 0.4},
	"gpt-4o":                {2.5, 10},
	"gpt-4o-2024-05-13":     {5, 15},
	"gpt-4o-mini":           {0.15, 0.6},
	"gpt-5":                 {1.25, 10},
	"gpt-5-mini":            {0.25, 2},
	"gpt-5-nano":            {0.05, 0.4},
	"gpt-5-pro":             {15, 120},
	"gpt-5.1":               {1.25, 10},
	"gpt-5.1-codex-mini":    {0.25, 2},
	"gpt-5.2":               {1.75, 14},
	"gpt-5.2-pro":           {21, 168},
	"o1":                    {15, 60},
	"o1-mini":               {1.1, 4.4},
	"o1-pro":                {150, 600},
	"o3":                    {2, 8},
	"o3-mini":               {1.1, 4.4},
	"o3-pro":                {20, 80},
	"o4-mini":               {1.1, 4.4},
	"o3-deep-research":      {10, 40},
	"o4-mini-deep-research": {2, 8},
	"codex-mini":            {1.5, 6},

	// Google
	"gemini-1.5-flash":               {0.075, 0.3},
	"gemini-1.5-flash-8b":            {0.0375, 0.15},
	"gemini-1.5-pro":                 {1.25, 5},
	"gemini-2.0-flash":               {0.1, 0.4},
	"gemini-2.0-flash-lite":          {0.075, 0.3},
	"gemini-2.5-flash":               {0.3, 2.5},
	"gemini-2.5-flash-lite":          {0.1, 0.4},
	"gemini-2.5-flash-preview-04-17": {0.15, 0.6},
	"gemini-2.5-flash-preview-05-20": {0.15, 0.6},
	"gemini-2.5-pro":                 {1.25, 10},
	"gemini-3-flash":                 {0.5, 3},
	"gemini-3-pro":                   {2, 12},
	"gemini-flash":                   {0.3, 2.5},
	"gemini-flash-lite":              {0.1, 0.4},
}
