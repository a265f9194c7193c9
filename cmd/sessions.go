package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/session"
	"github.com/abhisek/socratic/internal/ui/components"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Inspect and manage assessment sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		switch assessment.Status(status) {
		case "", assessment.StatusActive, assessment.StatusCompleted, assessment.StatusAbandoned:
		default:
			return fmt.Errorf("invalid status %q: want active, completed or abandoned", status)
		}

		e, err := newEnv(cmd, envOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		list, err := e.sessions().List(cmd.Context(), session.ListOptions{
			Status: assessment.Status(status),
			Limit:  limit,
		})
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(w, "No sessions found.")
			return nil
		}

		fmt.Fprintf(w, "%-36s  %-9s  %-5s  %-5s  %-16s  %s\n",
			"ID", "Status", "Level", "Msgs", "Updated", "Title")
		fmt.Fprintln(w, strings.Repeat("\u2500", 100))
		for _, s := range list {
			fmt.Fprintf(w, "%-36s  %-9s  %-5d  %-5d  %-16s  %s\n",
				s.ID,
				s.Status,
				s.CurrentLevel,
				s.MessageCount,
				s.UpdatedAt.Local().Format("2006-01-02 15:04"),
				truncate(s.Title, 40),
			)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session with its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		e, err := newEnv(cmd, envOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		state, err := e.sessions().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), state)
		}
		printSession(cmd.OutOrStdout(), state)
		return nil
	},
}

var sessionsReportCmd = &cobra.Command{
	Use:   "report <id>",
	Short: "Show the report of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		e, err := newEnv(cmd, envOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := e.sessions().Report(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), report)
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

var sessionsAbandonCmd = &cobra.Command{
	Use:   "abandon <id>",
	Short: "Abandon an active session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, envOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		state, err := e.sessions().Abandon(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s is %s.\n", state.ID, state.Status)
		return nil
	},
}

var sessionsReapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Abandon active sessions idle for longer than --idle",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd, envOptions{})
		if err != nil {
			return err
		}
		defer e.Close()

		idle := e.cfg.Session.IdleTimeout
		if cmd.Flags().Changed("idle") {
			idle, _ = cmd.Flags().GetDuration("idle")
		}
		if idle <= 0 {
			return fmt.Errorf("idle duration must be positive, got %s", idle)
		}

		ids, err := e.sessions().AbandonIdle(cmd.Context(), idle)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Abandoned %d idle session(s).\n", len(ids))
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), "  "+id)
		}
		return nil
	},
}

func printSession(w io.Writer, s *assessment.SessionState) {
	fmt.Fprintf(w, "ID:          %s\n", s.ID)
	fmt.Fprintf(w, "Title:       %s\n", s.Title)
	fmt.Fprintf(w, "Status:      %s\n", s.Status)
	fmt.Fprintf(w, "Level:       %d %s\n", s.CurrentLevel, components.LevelName(s.CurrentLevel))
	fmt.Fprintf(w, "Engagement:  %s\n", s.Engagement)
	fmt.Fprintf(w, "Concepts:    %d (%d scored)\n", len(s.Catalog), s.Ledger.Len())
	fmt.Fprintf(w, "Created:     %s\n", s.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Updated:     %s\n", s.UpdatedAt.Local().Format(time.DateTime))

	sep := strings.Repeat("\u2500", 60)
	fmt.Fprintln(w)
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, "TRANSCRIPT")
	fmt.Fprintln(w, sep)
	if len(s.Messages) == 0 {
		fmt.Fprintln(w, "(no messages)")
	}
	for _, m := range s.Messages {
		who := "Learner"
		if m.Role == assessment.RoleAssistant {
			who = "Tutor"
			if m.QuestionLevel > 0 {
				who += fmt.Sprintf(" [L%d", m.QuestionLevel)
				if m.AnswerQuality != "" {
					who += ", " + string(m.AnswerQuality)
				}
				who += "]"
			}
		}
		fmt.Fprintf(w, "%s:\n%s\n\n", who, m.Content)
	}
}

func printReport(w io.Writer, r *assessment.Report) {
	fmt.Fprintf(w, "Session:     %s\n", r.SessionID)
	fmt.Fprintf(w, "Title:       %s\n", r.Title)
	fmt.Fprintf(w, "Status:      %s\n", r.Status)
	fmt.Fprintf(w, "Final level: %d %s\n", r.FinalLevel, components.LevelName(r.FinalLevel))
	fmt.Fprintf(w, "Stable:      %d %s\n", r.StableLevel, components.LevelName(r.StableLevel))
	fmt.Fprintf(w, "Duration:    %d min\n", r.DurationMinutes)
	fmt.Fprintf(w, "Coverage:    %d%%\n", r.ConceptCoverage)

	if len(r.LevelProgression) > 0 {
		levels := make([]int, len(r.LevelProgression))
		for i, p := range r.LevelProgression {
			levels[i] = p.Level
		}
		fmt.Fprintf(w, "Progression: %s\n", components.Sparkline(levels, assessment.MinLevel, assessment.MaxLevel, 60))
	}

	printRanked(w, "Strongest", r.Strongest)
	printRanked(w, "Weakest", r.Weakest)
}

func printRanked(w io.Writer, title string, rs []assessment.RankedConcept) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("\u2500", 48))
	if len(rs) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	for _, c := range rs {
		fmt.Fprintf(w, "%-30s  L%d  %4.0f%%\n", truncate(c.Name, 30), c.AchievedLevel, c.Confidence*100)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	sessionsListCmd.Flags().String("status", "", "Filter by status (active, completed, abandoned)")
	sessionsListCmd.Flags().IntP("limit", "n", 20, "Number of sessions to show")
	sessionsShowCmd.Flags().Bool("json", false, "Print the full session as JSON")
	sessionsReportCmd.Flags().Bool("json", false, "Print the report as JSON")
	sessionsReapCmd.Flags().Duration("idle", 0, "Idle duration (defaults to session.idle_timeout)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsReportCmd)
	sessionsCmd.AddCommand(sessionsAbandonCmd)
	sessionsCmd.AddCommand(sessionsReapCmd)
}
