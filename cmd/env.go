package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/socratic/internal/concepts"
	"github.com/abhisek/socratic/internal/config"
	"github.com/abhisek/socratic/internal/llm"
	"github.com/abhisek/socratic/internal/logging"
	"github.com/abhisek/socratic/internal/metrics"
	"github.com/abhisek/socratic/internal/oracle"
	"github.com/abhisek/socratic/internal/session"
	"github.com/abhisek/socratic/internal/store"
)

// env holds the collaborators a command runs with.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	provider llm.Provider // nil when no provider is configured
	metrics  *metrics.Metrics
}

type envOptions struct {
	// withLLM builds the LLM provider when one is configured.
	withLLM bool
	// logToFile sends logs next to the database instead of stderr, for
	// commands that own the terminal.
	logToFile bool
	// withMetrics creates a Prometheus registry.
	withMetrics bool
}

// errNoProvider is returned by commands that cannot run without an LLM.
var errNoProvider = errors.New("no LLM provider configured: set SOCRATIC_ANTHROPIC_API_KEY (or the OpenAI, Gemini or OpenRouter equivalent) or llm.provider in the config file")

// newEnv loads configuration, opens the store and builds the optional LLM
// provider. Callers must Close the env.
func newEnv(cmd *cobra.Command, opts envOptions) (*env, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		cfg.Log.Verbose = true
	}

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}

	logCfg := cfg.Log
	if opts.logToFile {
		logCfg.OutputPaths = []string{strings.TrimSuffix(dbPath, ".db") + ".log"}
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}

	e := &env{cfg: cfg, logger: logger, store: st}
	if opts.withMetrics {
		e.metrics = metrics.New()
	}

	if opts.withLLM && cfg.LLM.Provider != "" {
		provider, err := llm.NewProvider(cmd.Context(), cfg.LLM, st.EventRepo(), logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.provider = provider
		logger.Debug("llm provider ready", zap.String("provider", cfg.LLM.Provider))
	}
	return e, nil
}

// Close releases the store and flushes logs.
func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing store", zap.Error(err))
	}
	_ = e.logger.Sync()
}

// sessions builds the session service. The oracle is attached when an LLM
// provider is available.
func (e *env) sessions() *session.Service {
	opts := []session.Option{
		session.WithEvents(e.store.EventRepo()),
		session.WithLogger(e.logger),
	}
	if e.metrics != nil {
		opts = append(opts, session.WithMetrics(e.metrics))
	}
	if e.provider != nil {
		opts = append(opts, session.WithOracle(oracle.New(e.provider, oracle.DefaultConfig(), e.logger)))
	}
	return session.NewService(e.store.SessionRepo(), opts...)
}

// extractor returns nil without an LLM provider.
func (e *env) extractor() *concepts.Extractor {
	if e.provider == nil {
		return nil
	}
	return concepts.NewExtractor(e.provider, concepts.DefaultConfig(), e.logger)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then store.db from the config, then SOCRATIC_DB env var or the default XDG
// path.
func resolveDBPath(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg != nil && cfg.Store.DB != "" {
		return cfg.Store.DB, store.EnsureDir(cfg.Store.DB)
	}
	return store.DefaultDBPath()
}
