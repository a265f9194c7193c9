package chat

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/router"
	"github.com/abhisek/socratic/internal/screen"
	"github.com/abhisek/socratic/internal/screens/report"
	"github.com/abhisek/socratic/internal/session"
	"github.com/abhisek/socratic/internal/ui/components"
	"github.com/abhisek/socratic/internal/ui/layout"
	"github.com/abhisek/socratic/internal/ui/theme"
)

// Sessions is the part of session.Service the chat screen drives.
type Sessions interface {
	Start(ctx context.Context, in session.StartInput) (*assessment.SessionState, error)
	Get(ctx context.Context, id string) (*assessment.SessionState, error)
	Converse(ctx context.Context, id, content string) (*session.TurnOutcome, error)
	End(ctx context.Context, id string) (*assessment.Report, error)
}

// ChatScreen is the conversation with the tutor for one session.
type ChatScreen struct {
	ctx      context.Context
	sessions Sessions
	start    session.StartInput
	resumeID string

	state      *assessment.SessionState
	input      components.TextInput
	pending    string
	waiting    bool
	confirming bool
	ending     bool
	decision   *assessment.LevelDecision
	notice     string
	errMsg     string

	// markdown renders tutor replies; nil shows them as plain text.
	markdown *components.Markdown
}

var _ screen.Screen = (*ChatScreen)(nil)
var _ screen.KeyHintProvider = (*ChatScreen)(nil)
var _ screen.StatusProvider = (*ChatScreen)(nil)

// New creates a chat screen that starts a new session on Init.
func New(ctx context.Context, sessions Sessions, in session.StartInput) *ChatScreen {
	return &ChatScreen{
		ctx:      ctx,
		sessions: sessions,
		start:    in,
		input:    components.NewTextInput("Type your answer...", session.MaxContentLength),
	}
}

// WithMarkdown renders tutor replies as markdown in the given glamour
// style.
func (s *ChatScreen) WithMarkdown(style string) *ChatScreen {
	s.markdown = components.NewMarkdown(style)
	return s
}

// Resume creates a chat screen that continues an existing session.
func Resume(ctx context.Context, sessions Sessions, id string) *ChatScreen {
	s := New(ctx, sessions, session.StartInput{})
	s.resumeID = id
	return s
}

func (s *ChatScreen) Init() tea.Cmd {
	return tea.Batch(s.open(), s.input.Init())
}

func (s *ChatScreen) Title() string {
	if s.state != nil {
		return s.state.Title
	}
	return "Session"
}

func (s *ChatScreen) Status() string {
	if s.state == nil {
		return ""
	}
	level := lipgloss.NewStyle().Foreground(theme.Accent).Render(fmt.Sprintf("L%d", s.state.CurrentLevel))
	eng := lipgloss.NewStyle().
		Foreground(theme.EngagementColor(string(s.state.Engagement))).
		Render(string(s.state.Engagement))
	return level + "  " + eng
}

func (s *ChatScreen) KeyHints() []layout.KeyHint {
	switch {
	case s.errMsg != "":
		return []layout.KeyHint{{Key: "any key", Description: "Quit"}}
	case s.confirming:
		return []layout.KeyHint{
			{Key: "Y", Description: "End session"},
			{Key: "N", Description: "Keep going"},
		}
	default:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Send"},
			{Key: "Esc", Description: "End session"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}
}

func (s *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionReadyMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.state = msg.State
		return s, nil

	case replyMsg:
		return s.handleReply(msg)

	case sessionEndedMsg:
		s.ending = false
		if msg.Err != nil {
			s.notice = msg.Err.Error()
			return s, nil
		}
		return s, func() tea.Msg {
			return router.ReplaceScreenMsg{Screen: report.New(msg.Report)}
		}

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	if s.state != nil && !s.waiting && !s.confirming {
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *ChatScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()

	if s.errMsg != "" {
		return s, tea.Quit
	}
	if s.state == nil || s.ending {
		return s, nil
	}

	if s.confirming {
		switch key {
		case "y", "Y":
			s.confirming = false
			s.ending = true
			return s, s.end()
		case "n", "N", "esc":
			s.confirming = false
		}
		return s, nil
	}

	switch key {
	case "esc":
		s.confirming = true
		return s, nil
	case "enter":
		return s.send()
	}

	if s.waiting {
		return s, nil
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *ChatScreen) send() (screen.Screen, tea.Cmd) {
	content := s.input.Value()
	if s.waiting || content == "" {
		return s, nil
	}
	s.pending = content
	s.waiting = true
	s.notice = ""
	s.input.Clear()

	id := s.state.ID
	return s, func() tea.Msg {
		out, err := s.sessions.Converse(s.ctx, id, content)
		return replyMsg{Outcome: out, Err: err}
	}
}

func (s *ChatScreen) handleReply(msg replyMsg) (screen.Screen, tea.Cmd) {
	s.waiting = false
	if msg.Err != nil {
		// Give the learner their text back so it can be resent.
		s.input.Model.SetValue(s.pending)
		s.pending = ""
		s.notice = msg.Err.Error()
		return s, nil
	}

	s.pending = ""
	s.state = msg.Outcome.State
	s.decision = nil
	if msg.Outcome.Turn != nil && msg.Outcome.Turn.Level.Changed() {
		d := msg.Outcome.Turn.Level
		s.decision = &d
	}
	return s, nil
}

func (s *ChatScreen) open() tea.Cmd {
	return func() tea.Msg {
		if s.resumeID != "" {
			state, err := s.sessions.Get(s.ctx, s.resumeID)
			if err == nil && state.Status.Terminal() {
				err = fmt.Errorf("session %s is %s", state.ID, state.Status)
			}
			return sessionReadyMsg{State: state, Err: err}
		}
		state, err := s.sessions.Start(s.ctx, s.start)
		return sessionReadyMsg{State: state, Err: err}
	}
}

func (s *ChatScreen) end() tea.Cmd {
	id := s.state.ID
	return func() tea.Msg {
		rep, err := s.sessions.End(s.ctx, id)
		return sessionEndedMsg{Report: rep, Err: err}
	}
}
