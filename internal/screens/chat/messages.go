package chat

import (
	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/session"
)

// sessionReadyMsg is sent when the session has been started or loaded.
type sessionReadyMsg struct {
	State *assessment.SessionState
	Err   error
}

// replyMsg is sent when the oracle has answered a learner message.
type replyMsg struct {
	Outcome *session.TurnOutcome
	Err     error
}

// sessionEndedMsg is sent when the session has been completed.
type sessionEndedMsg struct {
	Report *assessment.Report
	Err    error
}
