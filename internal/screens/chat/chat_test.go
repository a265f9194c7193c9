package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/router"
	"github.com/abhisek/socratic/internal/screen"
	"github.com/abhisek/socratic/internal/screens/report"
	"github.com/abhisek/socratic/internal/session"
)

// stubOracle judges every answer correct at the current level.
type stubOracle struct {
	err error
}

func (o *stubOracle) Open(_ context.Context, in session.OpenInput) (*session.Reply, error) {
	return &session.Reply{Text: "What is a channel?"}, nil
}

func (o *stubOracle) Respond(_ context.Context, in session.TurnInput) (*session.Reply, error) {
	if o.err != nil {
		return nil, o.err
	}
	return &session.Reply{
		Text: "Right. Next question.",
		Signal: &assessment.RawSignal{
			QuestionLevel:        levelOf(in.Level),
			AnswerQuality:        "correct",
			ConceptsDemonstrated: []string{"chan"},
		},
	}, nil
}

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func specialKey(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

var startInput = session.StartInput{
	Title: "Go channels",
	Concepts: assessment.Catalog{
		{ID: "chan", Name: "Channels"},
		{ID: "select", Name: "Select"},
	},
}

func newTestScreen(t *testing.T, oracle *stubOracle) (*ChatScreen, *session.Service) {
	t.Helper()
	svc := session.NewService(session.NewMemoryRepository(), session.WithOracle(oracle))
	s := New(context.Background(), svc, startInput)
	s.Update(s.open()())
	if s.state == nil {
		t.Fatalf("session not started: %s", s.errMsg)
	}
	return s, svc
}

// sendAnswer types text, presses Enter and delivers the reply.
func sendAnswer(t *testing.T, s *ChatScreen, text string) {
	t.Helper()
	s.input.Model.SetValue(text)
	_, cmd := s.Update(specialKey(tea.KeyEnter))
	if cmd == nil {
		t.Fatal("expected a command after Enter")
	}
	if !s.waiting {
		t.Error("expected screen to wait for the reply")
	}
	s.Update(cmd())
}

func TestChatScreen_Start(t *testing.T) {
	s, _ := newTestScreen(t, &stubOracle{})

	if s.Title() != "Go channels" {
		t.Errorf("Title = %q, want %q", s.Title(), "Go channels")
	}
	if len(s.state.Messages) != 1 {
		t.Fatalf("messages = %d, want opening message only", len(s.state.Messages))
	}
	view := s.View(80, 24)
	if !strings.Contains(view, "What is a channel?") {
		t.Error("expected opening question in transcript")
	}
	if !strings.Contains(s.Status(), "L2") {
		t.Errorf("Status = %q, want starting level", s.Status())
	}
}

func TestChatScreen_StartError(t *testing.T) {
	svc := session.NewService(session.NewMemoryRepository(), session.WithOracle(&stubOracle{}))
	s := New(context.Background(), svc, session.StartInput{Title: "   ", Concepts: startInput.Concepts})
	s.Update(s.open()())

	if s.errMsg == "" {
		t.Fatal("expected an error for a blank title")
	}
	if view := s.View(80, 24); !strings.Contains(view, "Error") {
		t.Error("expected error view")
	}
	_, cmd := s.Update(keyPress('x'))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected any key to quit after a start error")
	}
}

func TestChatScreen_SendPromotes(t *testing.T) {
	s, _ := newTestScreen(t, &stubOracle{})

	sendAnswer(t, s, "a typed pipe")
	if s.waiting {
		t.Error("expected waiting to clear after the reply")
	}
	if len(s.state.Messages) != 3 {
		t.Errorf("messages = %d, want 3", len(s.state.Messages))
	}
	if s.decision != nil {
		t.Error("one correct answer should not change the level")
	}

	sendAnswer(t, s, "goroutines communicate through it")
	sendAnswer(t, s, "it can be buffered")

	if s.state.CurrentLevel != 3 {
		t.Errorf("CurrentLevel = %d, want 3", s.state.CurrentLevel)
	}
	if s.decision == nil || s.decision.To != 3 {
		t.Fatalf("decision = %+v, want promotion to 3", s.decision)
	}
	if view := s.View(100, 30); !strings.Contains(view, "level 3") {
		t.Error("expected level change in status line")
	}
}

func TestChatScreen_BlankInputIgnored(t *testing.T) {
	s, _ := newTestScreen(t, &stubOracle{})

	s.input.Model.SetValue("   ")
	_, cmd := s.Update(specialKey(tea.KeyEnter))
	if cmd != nil {
		t.Error("expected no command for blank input")
	}
	if s.waiting {
		t.Error("blank input should not start a turn")
	}
}

func TestChatScreen_OracleFailureKeepsInput(t *testing.T) {
	s, _ := newTestScreen(t, &stubOracle{err: errors.New("upstream down")})

	sendAnswer(t, s, "my answer")

	if s.notice == "" {
		t.Error("expected a notice after a failed turn")
	}
	if got := s.input.Value(); got != "my answer" {
		t.Errorf("input = %q, want the unsent answer back", got)
	}
	if len(s.state.Messages) != 1 {
		t.Errorf("messages = %d, failed turn should not be recorded", len(s.state.Messages))
	}
}

func TestChatScreen_EndConfirm(t *testing.T) {
	s, _ := newTestScreen(t, &stubOracle{})

	var scr screen.Screen = s
	scr.Update(specialKey(tea.KeyEscape))
	if !s.confirming {
		t.Fatal("expected end confirmation")
	}
	if hints := s.KeyHints(); len(hints) != 2 {
		t.Errorf("KeyHints = %d, want 2 during confirmation", len(hints))
	}

	scr.Update(keyPress('n'))
	if s.confirming {
		t.Error("expected confirmation to be dismissed")
	}
}

func TestChatScreen_EndShowsReport(t *testing.T) {
	s, svc := newTestScreen(t, &stubOracle{})
	sendAnswer(t, s, "a typed pipe")

	s.Update(specialKey(tea.KeyEscape))
	_, cmd := s.Update(keyPress('y'))
	if cmd == nil {
		t.Fatal("expected end command")
	}

	_, cmd = s.Update(cmd())
	if cmd == nil {
		t.Fatal("expected navigation to the report")
	}
	msg, ok := cmd().(router.ReplaceScreenMsg)
	if !ok {
		t.Fatalf("expected ReplaceScreenMsg, got %T", cmd())
	}
	if _, ok := msg.Screen.(*report.ReportScreen); !ok {
		t.Errorf("expected report screen, got %T", msg.Screen)
	}

	state, err := svc.Get(context.Background(), s.state.ID)
	if err != nil {
		t.Fatal(err)
	}
	if state.Status != assessment.StatusCompleted {
		t.Errorf("Status = %s, want completed", state.Status)
	}
}

func TestChatScreen_ResumeClosedSession(t *testing.T) {
	s, svc := newTestScreen(t, &stubOracle{})
	if _, err := svc.Abandon(context.Background(), s.state.ID); err != nil {
		t.Fatal(err)
	}

	resumed := Resume(context.Background(), svc, s.state.ID)
	resumed.Update(resumed.open()())
	if resumed.errMsg == "" {
		t.Error("expected an error resuming an abandoned session")
	}
}

func TestChatScreen_Resume(t *testing.T) {
	s, svc := newTestScreen(t, &stubOracle{})
	sendAnswer(t, s, "a typed pipe")

	resumed := Resume(context.Background(), svc, s.state.ID)
	resumed.Update(resumed.open()())
	if resumed.state == nil {
		t.Fatalf("resume failed: %s", resumed.errMsg)
	}
	if len(resumed.state.Messages) != 3 {
		t.Errorf("messages = %d, want 3", len(resumed.state.Messages))
	}
}

func TestMarkdownReplies(t *testing.T) {
	s, _ := newTestScreen(t, &stubOracle{})
	s.WithMarkdown("notty")

	view := s.View(80, 24)
	if !strings.Contains(view, "What is a channel?") {
		t.Errorf("markdown view lost the opening question:\n%s", view)
	}
}

func levelOf(n int) *float64 {
	f := float64(n)
	return &f
}
