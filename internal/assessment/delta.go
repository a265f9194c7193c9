package assessment

import (
	"fmt"
	"time"
)

// DeltaKind discriminates SessionDelta variants.
type DeltaKind string

const (
	KindAnswerRecorded    DeltaKind = "answer_recorded"
	KindLevelChanged      DeltaKind = "level_changed"
	KindConceptScored     DeltaKind = "concept_scored"
	KindEngagementChanged DeltaKind = "engagement_changed"
	KindMessageAppended   DeltaKind = "message_appended"
	KindStatusChanged     DeltaKind = "status_changed"
)

// SessionDelta is one committed change to a SessionState. The set of
// variants is closed: AnswerRecorded, LevelChanged, ConceptScored,
// EngagementChanged, MessageAppended and StatusChanged.
type SessionDelta interface {
	Kind() DeltaKind
}

// AnswerRecorded pushes an answer quality into the window.
type AnswerRecorded struct {
	Quality AnswerQuality `json:"quality"`
}

// LevelChanged moves the session to a new current level.
type LevelChanged struct {
	From int       `json:"from"`
	To   int       `json:"to"`
	Rule LevelRule `json:"rule"`
}

// ScoreCause tells why a concept score changed.
type ScoreCause string

const (
	CauseDemonstrated ScoreCause = "demonstrated"
	CauseStruggling   ScoreCause = "struggling"
)

// ConceptScored replaces a concept's score with the value it held after the
// ledger update.
type ConceptScored struct {
	Score ConceptScore `json:"score"`
	Cause ScoreCause   `json:"cause"`
}

// EngagementChanged records a new engagement status.
type EngagementChanged struct {
	From Engagement `json:"from"`
	To   Engagement `json:"to"`
}

// MessageAppended adds a message to the transcript.
type MessageAppended struct {
	Message Message `json:"message"`
}

// StatusChanged moves the session out of active.
type StatusChanged struct {
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	At         time.Time `json:"at"`
	FinalLevel int       `json:"finalLevel,omitempty"`
}

func (AnswerRecorded) Kind() DeltaKind    { return KindAnswerRecorded }
func (LevelChanged) Kind() DeltaKind      { return KindLevelChanged }
func (ConceptScored) Kind() DeltaKind     { return KindConceptScored }
func (EngagementChanged) Kind() DeltaKind { return KindEngagementChanged }
func (MessageAppended) Kind() DeltaKind   { return KindMessageAppended }
func (StatusChanged) Kind() DeltaKind     { return KindStatusChanged }

// Apply mutates s with d. It panics on a variant it does not know, which can
// only happen through a programming error.
func Apply(s *SessionState, d SessionDelta) {
	switch d := d.(type) {
	case AnswerRecorded:
		s.Window.Push(d.Quality)
	case LevelChanged:
		s.CurrentLevel = clampLevel(d.To)
	case ConceptScored:
		s.Ledger.put(d.Score)
	case EngagementChanged:
		s.Engagement = d.To
	case MessageAppended:
		s.Messages = append(s.Messages, d.Message)
	case StatusChanged:
		s.Status = d.To
		at := d.At
		s.EndedAt = &at
		s.UpdatedAt = at
		s.FinalLevel = d.FinalLevel
	default:
		panic(fmt.Sprintf("assessment: unknown session delta %T", d))
	}
}

// TaggedDelta is the serialized form of a delta, used when persisting a
// turn's diff.
type TaggedDelta struct {
	Kind  DeltaKind    `json:"kind"`
	Delta SessionDelta `json:"delta"`
}

// Tag wraps deltas with their kinds.
func Tag(deltas []SessionDelta) []TaggedDelta {
	out := make([]TaggedDelta, len(deltas))
	for i, d := range deltas {
		out[i] = TaggedDelta{Kind: d.Kind(), Delta: d}
	}
	return out
}
