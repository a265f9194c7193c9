package llm

import "context"

// Purposes recorded on every LLM request event. Each names the step of a
// session that issued the call.
const (
	PurposeOpening   = "opening"
	PurposeTurn      = "assessment"
	PurposeConcepts  = "concepts"
	PurposeSummarise = "history-compress"

	purposeUnknown = "unknown"
)

type purposeKey struct{}

// WithPurpose labels calls made with ctx. An empty purpose leaves ctx as is.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	if purpose == "" {
		return ctx
	}
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the label set by WithPurpose, or "unknown".
func PurposeFrom(ctx context.Context) string {
	p, _ := ctx.Value(purposeKey{}).(string)
	if p == "" {
		return purposeUnknown
	}
	return p
}
