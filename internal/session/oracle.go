package session

import (
	"context"

	"github.com/abhisek/socratic/internal/assessment"
)

// Oracle produces the tutor's messages and judges the learner's answers.
// It never changes session state; the service feeds its signal into the
// assessment core.
type Oracle interface {
	// Open writes the first message of a new session.
	Open(ctx context.Context, in OpenInput) (*Reply, error)

	// Respond answers the learner's latest message.
	Respond(ctx context.Context, in TurnInput) (*Reply, error)
}

// OpenInput describes a session that is about to start.
type OpenInput struct {
	Title   string
	Catalog assessment.Catalog
	Level   int
}

// TurnInput is everything the oracle sees for one turn.
type TurnInput struct {
	SessionID  string
	Title      string
	Catalog    assessment.Catalog
	Level      int
	Engagement assessment.Engagement
	History    []assessment.Message
	Content    string
}

// Reply is the oracle's answer. Signal is nil when the oracle produced no
// usable assessment for the turn.
type Reply struct {
	Text   string
	Signal *assessment.RawSignal
}

// SessionCloser is implemented by oracles that keep per-session state. The
// service calls SessionClosed once a session is completed or abandoned.
type SessionCloser interface {
	SessionClosed(id string)
}
