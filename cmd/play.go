package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/socratic/internal/app"
	"github.com/abhisek/socratic/internal/concepts"
	"github.com/abhisek/socratic/internal/screens/chat"
	"github.com/abhisek/socratic/internal/session"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start a tutoring session in the terminal",
	Long: "Start a session over a concept catalog (--concepts), a study document whose concepts are\n" +
		"extracted first (--document), or continue an active session (--resume).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		catalogPath, _ := cmd.Flags().GetString("concepts")
		docPath, _ := cmd.Flags().GetString("document")
		resumeID, _ := cmd.Flags().GetString("resume")
		title, _ := cmd.Flags().GetString("title")
		style, _ := cmd.Flags().GetString("style")

		sources := 0
		for _, s := range []string{catalogPath, docPath, resumeID} {
			if s != "" {
				sources++
			}
		}
		if sources != 1 {
			return errors.New("exactly one of --concepts, --document or --resume is required")
		}

		e, err := newEnv(cmd, envOptions{withLLM: true, logToFile: true})
		if err != nil {
			return err
		}
		defer e.Close()

		if e.provider == nil {
			return errNoProvider
		}
		svc := e.sessions()

		run := func(s *chat.ChatScreen) error {
			if style != "plain" {
				s = s.WithMarkdown(style)
			}
			return app.Run(s)
		}

		if resumeID != "" {
			return run(chat.Resume(ctx, svc, resumeID))
		}

		var analysis *concepts.Analysis
		source := catalogPath
		if catalogPath != "" {
			analysis, err = concepts.LoadCatalog(catalogPath)
			if err != nil {
				return err
			}
		} else {
			source = docPath
			fmt.Fprintf(cmd.ErrOrStderr(), "Extracting concepts from %s...\n", docPath)
			analysis, err = extractFile(cmd, e, docPath)
			if err != nil {
				return err
			}
		}

		if title == "" {
			title = analysis.Title
		}
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		}

		return run(chat.New(ctx, svc, session.StartInput{
			Title:    title,
			Concepts: analysis.Catalog(),
		}))
	},
}

// extractFile reads a document and runs concept extraction on it.
func extractFile(cmd *cobra.Command, e *env, path string) (*concepts.Analysis, error) {
	ex := e.extractor()
	if ex == nil {
		return nil, errNoProvider
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	analysis, err := ex.Analyze(cmd.Context(), string(text))
	if err != nil {
		return nil, fmt.Errorf("extracting concepts: %w", err)
	}
	return analysis, nil
}

func init() {
	playCmd.Flags().StringP("concepts", "c", "", "Concept catalog file (YAML or JSON)")
	playCmd.Flags().StringP("document", "d", "", "Study document (plain text or markdown) to extract concepts from")
	playCmd.Flags().String("resume", "", "ID of an active session to continue")
	playCmd.Flags().StringP("title", "t", "", "Session title (defaults to the catalog title or file name)")
	playCmd.Flags().String("style", "dark", "Markdown style for tutor replies (dark, light, notty, auto, plain)")
}
