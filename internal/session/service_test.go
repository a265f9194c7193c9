package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedOracle replays replies in order and remembers its inputs.
type scriptedOracle struct {
	mu      sync.Mutex
	opening string
	replies []*Reply
	err     error
	turns   []TurnInput
	closed  []string
}

func (o *scriptedOracle) SessionClosed(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = append(o.closed, id)
}

func (o *scriptedOracle) Open(_ context.Context, in OpenInput) (*Reply, error) {
	if o.err != nil {
		return nil, o.err
	}
	return &Reply{Text: o.opening}, nil
}

func (o *scriptedOracle) Respond(_ context.Context, in TurnInput) (*Reply, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.turns = append(o.turns, in)
	if o.err != nil {
		return nil, o.err
	}
	if len(o.replies) == 0 {
		return &Reply{Text: "And then?"}, nil
	}
	r := o.replies[0]
	o.replies = o.replies[1:]
	return r, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []store.SessionEventData
}

func (l *eventLog) AppendSessionEvent(_ context.Context, d store.SessionEventData) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, d)
	return nil
}

func (l *eventLog) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Action
	}
	return out
}

var catalog = assessment.Catalog{
	{ID: "c1", Name: "Photosynthesis"},
	{ID: "c2", Name: "Chlorophyll"},
	{ID: "c3", Name: "Light reactions"},
}

type fixture struct {
	svc    *Service
	repo   *MemoryRepository
	oracle *scriptedOracle
	events *eventLog
	clock  *fakeClock
}

func newFixture(t *testing.T, withOracle bool) *fixture {
	t.Helper()
	f := &fixture{
		repo:   NewMemoryRepository(),
		oracle: &scriptedOracle{opening: "What do plants need to grow?"},
		events: &eventLog{},
		clock:  &fakeClock{now: t0},
	}
	opts := []Option{
		WithEvents(f.events),
		WithClock(f.clock.Now),
	}
	if withOracle {
		opts = append(opts, WithOracle(f.oracle))
	}
	f.svc = NewService(f.repo, opts...)
	return f
}

func correct(level int, demonstrated ...string) *assessment.RawSignal {
	return &assessment.RawSignal{
		QuestionLevel:        levelOf(level),
		AnswerQuality:        "correct",
		ConceptsDemonstrated: demonstrated,
	}
}

func TestStart(t *testing.T) {
	f := newFixture(t, true)

	state, err := f.svc.Start(context.Background(), StartInput{Title: "  Biology  ", Concepts: catalog})
	require.NoError(t, err)

	assert.NotEmpty(t, state.ID)
	assert.Equal(t, "Biology", state.Title)
	assert.Equal(t, assessment.StartLevel, state.CurrentLevel)
	assert.Equal(t, int64(1), state.Version)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, assessment.RoleAssistant, state.Messages[0].Role)
	assert.Equal(t, "What do plants need to grow?", state.Messages[0].Content)
	assert.NotEmpty(t, state.Messages[0].ID)

	loaded, err := f.svc.Get(context.Background(), state.ID)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
	assert.Equal(t, []string{"start"}, f.events.actions())
}

func TestStart_WithoutOracleHasNoOpening(t *testing.T) {
	f := newFixture(t, false)

	state, err := f.svc.Start(context.Background(), StartInput{Title: "Biology", Concepts: catalog})
	require.NoError(t, err)
	assert.Empty(t, state.Messages)
	assert.False(t, f.svc.HasOracle())
}

func TestStart_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   StartInput
	}{
		{"blank title", StartInput{Title: " ", Concepts: catalog}},
		{"empty catalog", StartInput{Title: "x"}},
		{"duplicate ids", StartInput{Title: "x", Concepts: assessment.Catalog{{ID: "a"}, {ID: "a"}}}},
		{"blank id", StartInput{Title: "x", Concepts: assessment.Catalog{{ID: ""}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			_, err := f.svc.Start(context.Background(), tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, assessment.ErrValidation)
			assert.Empty(t, f.events.actions())
		})
	}
}

func TestStart_OracleFailure(t *testing.T) {
	f := newFixture(t, true)
	f.oracle.err = errors.New("boom")

	_, err := f.svc.Start(context.Background(), StartInput{Title: "x", Concepts: catalog})
	assert.ErrorIs(t, err, ErrOracleFailed)

	list, err := f.svc.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConverse_AppliesSignal(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	state, err := f.svc.Start(ctx, StartInput{Title: "Biology", Concepts: catalog})
	require.NoError(t, err)

	f.oracle.replies = []*Reply{
		{Text: "Good. Why green?", Signal: correct(2, "c1")},
		{Text: "Right. What about light?", Signal: correct(2, "c2")},
		{Text: "Excellent. Explain the light reactions.", Signal: correct(2)},
	}

	var out *TurnOutcome
	for _, answer := range []string{"sunlight and water", "chlorophyll", "it absorbs red and blue"} {
		f.clock.Advance(time.Minute)
		out, err = f.svc.Converse(ctx, state.ID, answer)
		require.NoError(t, err)
	}

	require.NotNil(t, out.Turn)
	assert.Equal(t, assessment.RulePromotion, out.Turn.Level.Rule)
	assert.Equal(t, 3, out.State.CurrentLevel)
	assert.Equal(t, "Excellent. Explain the light reactions.", out.Reply.Content)
	assert.Equal(t, assessment.QualityCorrect, out.Reply.AnswerQuality)
	assert.Len(t, out.State.Messages, 7)
	assert.Equal(t, t0.Add(3*time.Minute), out.State.UpdatedAt)
	assert.Equal(t, int64(4), out.State.Version)

	score, ok := out.State.Ledger.Score("c1")
	require.True(t, ok)
	assert.Equal(t, 2, score.AchievedLevel)

	// The oracle sees the history before the new message, and the new content.
	require.Len(t, f.oracle.turns, 3)
	assert.Len(t, f.oracle.turns[0].History, 1)
	assert.Equal(t, "sunlight and water", f.oracle.turns[0].Content)
	assert.Equal(t, []string{"start", "turn", "turn", "turn"}, f.events.actions())
}

func TestConverse_NoSignalAppendsOnly(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	state, err := f.svc.Start(ctx, StartInput{Title: "Biology", Concepts: catalog})
	require.NoError(t, err)

	f.oracle.replies = []*Reply{{Text: "Tell me more."}}
	out, err := f.svc.Converse(ctx, state.ID, "hmm")
	require.NoError(t, err)

	assert.Nil(t, out.Turn)
	assert.Len(t, out.State.Messages, 3)
	assert.Equal(t, 0, out.State.Window.Len())
	assert.Equal(t, assessment.StartLevel, out.Reply.QuestionLevel)
}

func TestConverse_InvalidSignalIsDropped(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	state, err := f.svc.Start(ctx, StartInput{Title: "Biology", Concepts: catalog})
	require.NoError(t, err)

	f.oracle.replies = []*Reply{{
		Text:   "Interesting.",
		Signal: &assessment.RawSignal{AnswerQuality: "brilliant"},
	}}
	out, err := f.svc.Converse(ctx, state.ID, "an answer")
	require.NoError(t, err)
	assert.Nil(t, out.Turn)
	assert.Len(t, out.State.Messages, 3)
}

func TestConverse_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("blank content", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.svc.Converse(ctx, "any", "   ")
		assert.ErrorIs(t, err, assessment.ErrValidation)
	})

	t.Run("content too long", func(t *testing.T) {
		f := newFixture(t, true)
		long := make([]byte, MaxContentLength+1)
		for i := range long {
			long[i] = 'a'
		}
		_, err := f.svc.Converse(ctx, "any", string(long))
		assert.ErrorIs(t, err, assessment.ErrValidation)
	})

	t.Run("no oracle", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.svc.Converse(ctx, "any", "hello")
		assert.ErrorIs(t, err, ErrOracleUnavailable)
	})

	t.Run("missing session", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.svc.Converse(ctx, "missing", "hello")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("closed session", func(t *testing.T) {
		f := newFixture(t, true)
		state, err := f.svc.Start(ctx, StartInput{Title: "x", Concepts: catalog})
		require.NoError(t, err)
		_, err = f.svc.End(ctx, state.ID)
		require.NoError(t, err)

		_, err = f.svc.Converse(ctx, state.ID, "hello")
		assert.ErrorIs(t, err, assessment.ErrInvalidState)
	})

	t.Run("oracle failure leaves state untouched", func(t *testing.T) {
		f := newFixture(t, true)
		state, err := f.svc.Start(ctx, StartInput{Title: "x", Concepts: catalog})
		require.NoError(t, err)
		f.oracle.err = errors.New("provider down")

		_, err = f.svc.Converse(ctx, state.ID, "hello")
		assert.ErrorIs(t, err, ErrOracleFailed)

		loaded, err := f.svc.Get(ctx, state.ID)
		require.NoError(t, err)
		assert.Equal(t, state, loaded)
	})
}

func TestProcessTurn(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	state, err := f.svc.Start(ctx, StartInput{Title: "x", Concepts: catalog})
	require.NoError(t, err)

	out, err := f.svc.ProcessTurn(ctx, state.ID, SignalInput{
		Signal: assessment.RawSignal{
			AnswerQuality:      "incorrect",
			ConceptsStruggling: []string{"c3"},
			EngagementSignal:   "low",
			SuggestedNextLevel: levelOf(4),
		},
		UserContent: "I don't know",
		Reply:       "Let's step back.",
	})
	require.NoError(t, err)

	assert.Equal(t, assessment.RuleOracle, out.Turn.Level.Rule)
	assert.Equal(t, 4, out.State.CurrentLevel)
	assert.Equal(t, assessment.EngagementLow, out.State.Engagement)
	require.NotNil(t, out.Reply)
	assert.Equal(t, "Let's step back.", out.Reply.Content)
	assert.Len(t, out.State.Messages, 2)
}

func TestProcessTurn_SignalOnly(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	state, err := f.svc.Start(ctx, StartInput{Title: "x", Concepts: catalog})
	require.NoError(t, err)

	out, err := f.svc.ProcessTurn(ctx, state.ID, SignalInput{Signal: *correct(2, "c1")})
	require.NoError(t, err)
	assert.Nil(t, out.Reply)
	assert.Empty(t, out.State.Messages)
	assert.Equal(t, 1, out.State.Ledger.Len())
}

func TestProcessTurn_InvalidSignalLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	state, err := f.svc.Start(ctx, StartInput{Title: "x", Concepts: catalog})
	require.NoError(t, err)

	_, err = f.svc.ProcessTurn(ctx, state.ID, SignalInput{
		Signal: assessment.RawSignal{QuestionLevel: ptr(2.5)},
	})
	assert.ErrorIs(t, err, assessment.ErrValidation)

	loaded, err := f.svc.Get(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestEndAndReport(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	state, err := f.svc.Start(ctx, StartInput{Title: "x", Concepts: catalog})
	require.NoError(t, err)

	_, err = f.svc.ProcessTurn(ctx, state.ID, SignalInput{Signal: *correct(2, "c1", "c2")})
	require.NoError(t, err)

	f.clock.Advance(12 * time.Minute)
	report, err := f.svc.End(ctx, state.ID)
	require.NoError(t, err)

	assert.Equal(t, assessment.StatusCompleted, report.Status)
	assert.Equal(t, 2, report.FinalLevel)
	assert.Equal(t, 12, report.DurationMinutes)
	assert.Equal(t, 67, report.ConceptCoverage)

	// The report of a closed session does not drift with the clock.
	f.clock.Advance(time.Hour)
	again, err := f.svc.Report(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, report, again)

	_, err = f.svc.End(ctx, state.ID)
	assert.ErrorIs(t, err, assessment.ErrInvalidState)
	_, err = f.svc.Abandon(ctx, state.ID)
	assert.ErrorIs(t, err, assessment.ErrInvalidState)

	assert.Equal(t, []string{"start", "turn", "end"}, f.events.actions())
}

func TestAbandon(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	state, err := f.svc.Start(ctx, StartInput{Title: "x", Concepts: catalog})
	require.NoError(t, err)

	abandoned, err := f.svc.Abandon(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, assessment.StatusAbandoned, abandoned.Status)
	require.NotNil(t, abandoned.EndedAt)

	_, err = f.svc.Abandon(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAbandonIdle(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	stale, err := f.svc.Start(ctx, StartInput{Title: "stale", Concepts: catalog})
	require.NoError(t, err)
	done, err := f.svc.Start(ctx, StartInput{Title: "done", Concepts: catalog})
	require.NoError(t, err)
	_, err = f.svc.End(ctx, done.ID)
	require.NoError(t, err)

	f.clock.Advance(3 * time.Hour)
	fresh, err := f.svc.Start(ctx, StartInput{Title: "fresh", Concepts: catalog})
	require.NoError(t, err)

	ids, err := f.svc.AbandonIdle(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{stale.ID}, ids)

	got, err := f.svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, assessment.StatusActive, got.Status)

	got, err = f.svc.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, assessment.StatusCompleted, got.Status)
}

func TestClosingNotifiesOracle(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	ended, err := f.svc.Start(ctx, StartInput{Title: "ended", Concepts: catalog})
	require.NoError(t, err)
	_, err = f.svc.Converse(ctx, ended.ID, "Light and water.")
	require.NoError(t, err)
	require.Len(t, f.oracle.turns, 1)
	assert.Equal(t, ended.ID, f.oracle.turns[0].SessionID)

	abandoned, err := f.svc.Start(ctx, StartInput{Title: "abandoned", Concepts: catalog})
	require.NoError(t, err)
	idle, err := f.svc.Start(ctx, StartInput{Title: "idle", Concepts: catalog})
	require.NoError(t, err)

	_, err = f.svc.End(ctx, ended.ID)
	require.NoError(t, err)
	_, err = f.svc.Abandon(ctx, abandoned.ID)
	require.NoError(t, err)
	f.clock.Advance(3 * time.Hour)
	_, err = f.svc.AbandonIdle(ctx, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, []string{ended.ID, abandoned.ID, idle.ID}, f.oracle.closed)

	// A failed close does not notify.
	_, err = f.svc.End(ctx, ended.ID)
	require.Error(t, err)
	assert.Len(t, f.oracle.closed, 3)
}

func TestRunReaper_StopsOnCancel(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- f.svc.RunReaper(ctx, time.Millisecond, time.Hour) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	state, err := f.svc.Start(ctx, StartInput{Title: "x", Concepts: catalog})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ProcessTurn(ctx, state.ID, SignalInput{Signal: assessment.RawSignal{AnswerQuality: "partial"}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	got, err := f.svc.Get(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n+1), got.Version)
	assert.Equal(t, assessment.WindowCapacity, got.Window.Len())
	assert.Zero(t, f.svc.locks.size())
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{&assessment.ValidationError{}, "validation"},
		{&assessment.InvalidStateError{}, "invalid_state"},
		{ErrNotFound, "not_found"},
		{ErrConflict, "conflict"},
		{ErrOracleUnavailable, "oracle"},
		{context.Canceled, "canceled"},
		{errors.New("disk full"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), "%v", tt.err)
	}
}

func ptr(f float64) *float64 { return &f }

func levelOf(n int) *float64 {
	f := float64(n)
	return &f
}
