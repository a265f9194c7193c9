package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/metrics"
	"github.com/abhisek/socratic/internal/store"
)

// MaxContentLength bounds a single learner message, in characters.
const MaxContentLength = 10_000

var (
	// ErrOracleUnavailable is returned by operations that need an oracle
	// when none is configured.
	ErrOracleUnavailable = errors.New("assessment oracle is not configured")

	// ErrOracleFailed wraps errors returned by the oracle itself.
	ErrOracleFailed = errors.New("assessment oracle failed")
)

// EventRecorder receives session lifecycle events.
type EventRecorder interface {
	AppendSessionEvent(ctx context.Context, data store.SessionEventData) error
}

// StartInput describes a new session.
type StartInput struct {
	Title    string
	Concepts assessment.Catalog
}

// SignalInput is a turn whose assessment was produced outside the service,
// for example by an agent driving the session over MCP. The messages are
// optional.
type SignalInput struct {
	Signal      assessment.RawSignal
	UserContent string
	Reply       string
}

// TurnOutcome is the result of Converse and ProcessTurn. Turn is nil when
// the oracle produced no usable signal and only messages were appended.
type TurnOutcome struct {
	State *assessment.SessionState
	Reply *assessment.Message
	Turn  *assessment.TurnResult
}

// Service runs assessment sessions. Calls on the same session are
// serialized; different sessions proceed in parallel.
type Service struct {
	repo    Repository
	oracle  Oracle
	events  EventRecorder
	metrics metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
	locks   *locker
}

// Option configures a Service.
type Option func(*Service)

// WithOracle sets the oracle used by Start and Converse.
func WithOracle(o Oracle) Option {
	return func(s *Service) { s.oracle = o }
}

// WithEvents records lifecycle events to r.
func WithEvents(r EventRecorder) Option {
	return func(s *Service) { s.events = r }
}

// WithMetrics reports to m.
func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the uuid session id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService creates a Service backed by repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		metrics: metrics.Nop{},
		now:     time.Now,
		newID:   uuid.NewString,
		locks:   newLocker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("session")
	return s
}

// HasOracle reports whether Converse can be used.
func (s *Service) HasOracle() bool {
	return s.oracle != nil
}

// Start validates the catalog, creates a session and, when an oracle is
// configured, stores its opening message.
func (s *Service) Start(ctx context.Context, in StartInput) (*assessment.SessionState, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, &assessment.ValidationError{Field: "title", Value: in.Title, Reason: "must not be blank"}
	}
	if err := in.Concepts.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	state := assessment.NewSessionState(s.newID(), title, in.Concepts, now)

	if s.oracle != nil {
		reply, err := s.callOracle(ctx, func(ctx context.Context) (*Reply, error) {
			return s.oracle.Open(ctx, OpenInput{Title: title, Catalog: state.Catalog, Level: state.CurrentLevel})
		})
		if err != nil {
			s.metrics.TurnFailed("oracle")
			return nil, err
		}
		msg := s.message(assessment.RoleAssistant, reply.Text)
		msg.QuestionLevel = state.CurrentLevel
		if _, err := assessment.AppendMessages(state, msg); err != nil {
			return nil, err
		}
	}

	state.UpdatedAt = now
	if err := s.repo.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("saving new session: %w", err)
	}

	s.metrics.SessionStarted()
	s.record(ctx, store.SessionEventData{
		SessionID: state.ID,
		Action:    "start",
		Level:     state.CurrentLevel,
		Detail:    fmt.Sprintf("%d concepts", len(state.Catalog)),
	})
	s.logger.Info("session started",
		zap.String("session_id", state.ID),
		zap.String("title", title),
		zap.Int("concepts", len(state.Catalog)))
	return state, nil
}

// Converse sends the learner's message to the oracle and applies the
// returned assessment.
func (s *Service) Converse(ctx context.Context, id, content string) (*TurnOutcome, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &assessment.ValidationError{Field: "content", Value: "", Reason: "must not be blank"}
	}
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return nil, &assessment.ValidationError{Field: "content", Value: n, Reason: fmt.Sprintf("must be at most %d characters", MaxContentLength)}
	}
	if s.oracle == nil {
		return nil, ErrOracleUnavailable
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	state, err := s.loadActive(ctx, id, "converse in")
	if err != nil {
		return nil, s.turnFailed(err)
	}

	reply, err := s.callOracle(ctx, func(ctx context.Context) (*Reply, error) {
		return s.oracle.Respond(ctx, TurnInput{
			SessionID:  state.ID,
			Title:      state.Title,
			Catalog:    state.Catalog,
			Level:      state.CurrentLevel,
			Engagement: state.Engagement,
			History:    state.Messages,
			Content:    content,
		})
	})
	if err != nil {
		return nil, s.turnFailed(err)
	}

	userMsg := s.message(assessment.RoleUser, content)
	assistantMsg := s.message(assessment.RoleAssistant, reply.Text)

	var turn *assessment.TurnResult
	if reply.Signal != nil {
		turn, err = assessment.ProcessTurn(state, *reply.Signal, userMsg, assistantMsg)
		if err != nil {
			// A malformed signal still leaves a usable reply; keep the
			// conversation going and drop the assessment.
			if !errors.Is(err, assessment.ErrValidation) {
				return nil, s.turnFailed(err)
			}
			s.logger.Warn("discarding invalid oracle signal",
				zap.String("session_id", id), zap.Error(err))
			turn = nil
		}
	}
	if turn == nil {
		assistantMsg.QuestionLevel = state.CurrentLevel
		if _, err := assessment.AppendMessages(state, userMsg, assistantMsg); err != nil {
			return nil, s.turnFailed(err)
		}
	}

	if err := s.save(ctx, state); err != nil {
		return nil, s.turnFailed(err)
	}
	s.afterTurn(ctx, state, turn)

	last := state.Messages[len(state.Messages)-1]
	return &TurnOutcome{State: state, Reply: &last, Turn: turn}, nil
}

// ProcessTurn applies an externally produced signal to a session.
func (s *Service) ProcessTurn(ctx context.Context, id string, in SignalInput) (*TurnOutcome, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	state, err := s.loadActive(ctx, id, "process turn")
	if err != nil {
		return nil, s.turnFailed(err)
	}

	var msgs []assessment.Message
	if c := strings.TrimSpace(in.UserContent); c != "" {
		msgs = append(msgs, s.message(assessment.RoleUser, c))
	}
	if r := strings.TrimSpace(in.Reply); r != "" {
		msgs = append(msgs, s.message(assessment.RoleAssistant, r))
	}

	turn, err := assessment.ProcessTurn(state, in.Signal, msgs...)
	if err != nil {
		return nil, s.turnFailed(err)
	}
	if err := s.save(ctx, state); err != nil {
		return nil, s.turnFailed(err)
	}
	s.afterTurn(ctx, state, turn)

	out := &TurnOutcome{State: state, Turn: turn}
	if n := len(state.Messages); n > 0 && len(msgs) > 0 && state.Messages[n-1].Role == assessment.RoleAssistant {
		last := state.Messages[n-1]
		out.Reply = &last
	}
	return out, nil
}

// End completes a session and returns its report.
func (s *Service) End(ctx context.Context, id string) (*assessment.Report, error) {
	state, err := s.close(ctx, id, assessment.End)
	if err != nil {
		return nil, err
	}
	report := assessment.BuildReport(state, s.now())
	return &report, nil
}

// Abandon marks a session abandoned.
func (s *Service) Abandon(ctx context.Context, id string) (*assessment.SessionState, error) {
	return s.close(ctx, id, assessment.Abandon)
}

func (s *Service) close(ctx context.Context, id string, closeFn func(*assessment.SessionState, time.Time) (assessment.StatusChanged, error)) (*assessment.SessionState, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	state, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	change, err := closeFn(state, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("saving session %s: %w", id, err)
	}

	s.oracleClosed(id)

	action := "end"
	if change.To == assessment.StatusAbandoned {
		action = "abandon"
	}
	s.metrics.SessionClosed(string(change.To))
	s.record(ctx, store.SessionEventData{
		SessionID: id,
		Action:    action,
		Level:     change.FinalLevel,
	})
	s.logger.Info("session closed",
		zap.String("session_id", id),
		zap.String("status", string(change.To)),
		zap.Int("final_level", change.FinalLevel))
	return state, nil
}

// Report builds the report of a session in any status.
func (s *Service) Report(ctx context.Context, id string) (*assessment.Report, error) {
	state, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	report := assessment.BuildReport(state, s.now())
	return &report, nil
}

// Get loads a session.
func (s *Service) Get(ctx context.Context, id string) (*assessment.SessionState, error) {
	return s.repo.Load(ctx, id)
}

// List returns session summaries, most recently updated first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]SessionSummary, error) {
	return s.repo.List(ctx, opts)
}

// AbandonIdle abandons active sessions that have not been updated for
// idleFor. It returns the ids it abandoned. Sessions that finish or change
// while it runs are skipped.
func (s *Service) AbandonIdle(ctx context.Context, idleFor time.Duration) ([]string, error) {
	cutoff := s.now().Add(-idleFor)
	idle, err := s.repo.List(ctx, ListOptions{Status: assessment.StatusActive, UpdatedBefore: cutoff})
	if err != nil {
		return nil, fmt.Errorf("listing idle sessions: %w", err)
	}

	var abandoned []string
	for _, sum := range idle {
		if err := ctx.Err(); err != nil {
			return abandoned, err
		}
		ok, err := s.abandonIfIdle(ctx, sum.ID, cutoff)
		if err != nil {
			s.logger.Warn("abandoning idle session", zap.String("session_id", sum.ID), zap.Error(err))
			continue
		}
		if ok {
			abandoned = append(abandoned, sum.ID)
		}
	}
	return abandoned, nil
}

func (s *Service) abandonIfIdle(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	state, err := s.repo.Load(ctx, id)
	if err != nil {
		return false, err
	}
	if state.Status != assessment.StatusActive || !state.UpdatedAt.Before(cutoff) {
		return false, nil
	}
	if _, err := assessment.Abandon(state, s.now()); err != nil {
		return false, err
	}
	if err := s.repo.Save(ctx, state); err != nil {
		return false, err
	}
	s.oracleClosed(id)

	s.metrics.SessionClosed(string(assessment.StatusAbandoned))
	s.record(ctx, store.SessionEventData{
		SessionID: id,
		Action:    "abandon",
		Level:     state.FinalLevel,
		Detail:    "idle",
	})
	return true, nil
}

// RunReaper calls AbandonIdle every interval until ctx is cancelled.
func (s *Service) RunReaper(ctx context.Context, interval, idleFor time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ids, err := s.AbandonIdle(ctx, idleFor)
			if err != nil && ctx.Err() == nil {
				s.logger.Warn("idle reaper pass failed", zap.Error(err))
			}
			if len(ids) > 0 {
				s.logger.Info("abandoned idle sessions", zap.Strings("session_ids", ids))
			}
		}
	}
}

func (s *Service) loadActive(ctx context.Context, id, op string) (*assessment.SessionState, error) {
	state, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.Status != assessment.StatusActive {
		return nil, &assessment.InvalidStateError{SessionID: id, Status: state.Status, Op: op}
	}
	return state, nil
}

func (s *Service) save(ctx context.Context, state *assessment.SessionState) error {
	state.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, state); err != nil {
		return fmt.Errorf("saving session %s: %w", state.ID, err)
	}
	return nil
}

func (s *Service) callOracle(ctx context.Context, call func(context.Context) (*Reply, error)) (*Reply, error) {
	start := time.Now()
	reply, err := call(ctx)
	s.metrics.OracleCall(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOracleFailed, err)
	}
	if reply == nil || strings.TrimSpace(reply.Text) == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrOracleFailed)
	}
	return reply, nil
}

func (s *Service) afterTurn(ctx context.Context, state *assessment.SessionState, turn *assessment.TurnResult) {
	data := store.SessionEventData{
		SessionID: state.ID,
		Action:    "turn",
		Level:     state.CurrentLevel,
		LevelRule: string(assessment.RuleNone),
	}
	if turn != nil {
		s.metrics.TurnProcessed(string(turn.Level.Rule), turn.Level.From, turn.Level.To)
		data.LevelRule = string(turn.Level.Rule)
		data.AnswerQuality = string(turn.Signal.AnswerQuality)
		if len(turn.Signal.Overlap) > 0 {
			data.Detail = "overlap: " + strings.Join(turn.Signal.Overlap, ",")
			s.logger.Warn("concepts reported as demonstrated and struggling",
				zap.String("session_id", state.ID), zap.Strings("concepts", turn.Signal.Overlap))
		}
	} else {
		s.metrics.TurnProcessed(string(assessment.RuleNone), state.CurrentLevel, state.CurrentLevel)
		data.Detail = "no signal"
	}
	s.record(ctx, data)

	fields := []zap.Field{
		zap.String("session_id", state.ID),
		zap.Int("level", state.CurrentLevel),
		zap.String("rule", data.LevelRule),
	}
	if turn != nil && turn.Level.Changed() {
		s.logger.Info("level changed", append(fields, zap.Int("from", turn.Level.From))...)
		return
	}
	s.logger.Debug("turn processed", fields...)
}

// turnFailed counts a failed turn and passes err through.
func (s *Service) oracleClosed(id string) {
	if c, ok := s.oracle.(SessionCloser); ok {
		c.SessionClosed(id)
	}
}

func (s *Service) turnFailed(err error) error {
	s.metrics.TurnFailed(ErrorKind(err))
	return err
}

func (s *Service) record(ctx context.Context, data store.SessionEventData) {
	if s.events == nil {
		return
	}
	if err := s.events.AppendSessionEvent(ctx, data); err != nil {
		s.logger.Warn("recording session event",
			zap.String("session_id", data.SessionID),
			zap.String("action", data.Action),
			zap.Error(err))
	}
}

func (s *Service) message(role assessment.Role, content string) assessment.Message {
	now := s.now()
	return assessment.Message{
		ID:        ulid.Make().String(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
}

// ErrorKind classifies err for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, assessment.ErrValidation):
		return "validation"
	case errors.Is(err, assessment.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrOracleUnavailable), errors.Is(err, ErrOracleFailed):
		return "oracle"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
