package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/socratic/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		e, err := newEnv(cmd, envOptions{withLLM: true, withMetrics: true})
		if err != nil {
			return err
		}
		defer e.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			e.cfg.Server.Addr = addr
		}
		if e.provider == nil {
			e.logger.Warn("no LLM provider configured; conversation and concept extraction are unavailable")
		}

		deps := server.Deps{
			Sessions: e.sessions(),
			Metrics:  e.metrics,
			Logger:   e.logger,
		}
		if ex := e.extractor(); ex != nil {
			deps.Analyzer = ex
		}

		srv := server.New(e.cfg.Server, e.cfg.Session, deps)
		e.logger.Info("starting server", zap.String("addr", e.cfg.Server.Addr))
		if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
