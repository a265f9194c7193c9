package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/socratic/internal/concepts"
	"github.com/abhisek/socratic/internal/config"
	"github.com/abhisek/socratic/internal/metrics"
	"github.com/abhisek/socratic/internal/session"
)

// maxBodyBytes fits the largest document /v1/concepts accepts.
const maxBodyBytes = 4 << 20

// Analyzer extracts a concept catalog from study text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*concepts.Analysis, error)
}

// Deps are the collaborators the API serves.
type Deps struct {
	Sessions *session.Service

	// Analyzer is nil when no LLM provider is configured.
	Analyzer Analyzer

	// Metrics is exposed on /metrics when set.
	Metrics *metrics.Metrics

	Logger *zap.Logger
}

// Server is the HTTP API.
type Server struct {
	cfg      config.ServerConfig
	sessCfg  config.SessionConfig
	sessions *session.Service
	analyzer Analyzer
	logger   *zap.Logger
	engine   *gin.Engine
}

// New builds the router.
func New(cfg config.ServerConfig, sessCfg config.SessionConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		sessCfg:  sessCfg,
		sessions: deps.Sessions,
		analyzer: deps.Analyzer,
		logger:   logger.Named("http"),
	}

	e := gin.New()
	e.Use(recoverer(s.logger), requestLogger(s.logger), limitBody(maxBodyBytes))

	e.GET("/health", s.health)
	if deps.Metrics != nil {
		e.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := e.Group("/v1")
	v1.POST("/concepts", s.analyzeConcepts)

	sessions := v1.Group("/sessions")
	sessions.POST("", s.startSession)
	sessions.GET("", s.listSessions)
	sessions.GET("/:id", s.getSession)
	sessions.POST("/:id/messages", s.sendMessage)
	sessions.POST("/:id/turns", s.submitTurn)
	sessions.POST("/:id/end", s.endSession)
	sessions.POST("/:id/abandon", s.abandonSession)
	sessions.GET("/:id/report", s.getReport)

	s.engine = e
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on cfg.Addr and runs the idle-session reaper until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if s.sessCfg.ReaperInterval > 0 && s.sessCfg.IdleTimeout > 0 {
		g.Go(func() error {
			return s.sessions.RunReaper(gctx, s.sessCfg.ReaperInterval, s.sessCfg.IdleTimeout)
		})
	}

	return g.Wait()
}
