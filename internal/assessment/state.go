package assessment

import (
	"fmt"
	"slices"
	"time"
)

// Status is the lifecycle status of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether no further turns are accepted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the session transcript. Assistant messages may be
// tagged with the level of the question they asked and the judged quality
// of the answer they responded to.
type Message struct {
	ID            string        `json:"id"`
	Role          Role          `json:"role"`
	Content       string        `json:"content"`
	QuestionLevel int           `json:"questionLevel,omitempty"`
	AnswerQuality AnswerQuality `json:"answerQuality,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Concept is a catalog entry extracted from the study material.
type Concept struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Definition    string `json:"definition,omitempty" yaml:"definition,omitempty"`
	Complexity    int    `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	SourceSection string `json:"sourceSection,omitempty" yaml:"sourceSection,omitempty"`
}

// Catalog is the read-only list of concepts a session is assessed against.
type Catalog []Concept

// Lookup finds a concept by id.
func (c Catalog) Lookup(id string) (Concept, bool) {
	for _, concept := range c {
		if concept.ID == id {
			return concept, true
		}
	}
	return Concept{}, false
}

// Validate requires a non-empty catalog with unique, non-blank ids.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return &ValidationError{Field: "concepts", Value: 0, Reason: "at least one concept is required"}
	}
	seen := make(map[string]bool, len(c))
	for i, concept := range c {
		if concept.ID == "" {
			return &ValidationError{Field: fmt.Sprintf("concepts[%d].id", i), Value: "", Reason: "must not be blank"}
		}
		if seen[concept.ID] {
			return &ValidationError{Field: fmt.Sprintf("concepts[%d].id", i), Value: concept.ID, Reason: "duplicate concept id"}
		}
		seen[concept.ID] = true
	}
	return nil
}

// SessionState is the aggregate owned by one assessment session.
type SessionState struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Catalog      Catalog      `json:"catalog"`
	Messages     []Message    `json:"messages"`
	CurrentLevel int          `json:"currentLevel"`
	Engagement   Engagement   `json:"engagementStatus"`
	Status       Status       `json:"status"`
	Window       AnswerWindow `json:"answerWindow"`
	Ledger       Ledger       `json:"conceptScores"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	EndedAt      *time.Time   `json:"endedAt,omitempty"`
	FinalLevel   int          `json:"finalLevel,omitempty"`

	// Version counts persisted writes and is maintained by the repository.
	Version int64 `json:"version"`
}

// NewSessionState returns an active session at StartLevel with high
// engagement and empty history.
func NewSessionState(id, title string, catalog Catalog, now time.Time) *SessionState {
	return &SessionState{
		ID:           id,
		Title:        title,
		Catalog:      append(Catalog(nil), catalog...),
		Messages:     []Message{},
		CurrentLevel: StartLevel,
		Engagement:   EngagementHigh,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy of the state.
func (s *SessionState) Clone() *SessionState {
	c := *s
	c.Catalog = slices.Clone(s.Catalog)
	c.Messages = slices.Clone(s.Messages)
	c.Window = newWindow(s.Window.entries)
	c.Ledger = s.Ledger.clone()
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}

func (s *SessionState) requireActive(op string) error {
	if s.Status != StatusActive {
		return &InvalidStateError{SessionID: s.ID, Status: s.Status, Op: op}
	}
	return nil
}
