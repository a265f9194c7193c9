package report

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/screen"
	"github.com/abhisek/socratic/internal/ui/components"
	"github.com/abhisek/socratic/internal/ui/layout"
	"github.com/abhisek/socratic/internal/ui/theme"
)

// ReportScreen displays the report of a finished session.
type ReportScreen struct {
	report *assessment.Report
}

var _ screen.Screen = (*ReportScreen)(nil)
var _ screen.KeyHintProvider = (*ReportScreen)(nil)

// New creates a new ReportScreen.
func New(report *assessment.Report) *ReportScreen {
	return &ReportScreen{report: report}
}

func (s *ReportScreen) Init() tea.Cmd {
	return nil
}

func (s *ReportScreen) Title() string {
	return "Session Report"
}

func (s *ReportScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Quit"},
		{Key: "Esc", Description: "Quit"},
	}
}

func (s *ReportScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "esc", "q":
			return s, tea.Quit
		}
	}
	return s, nil
}

func (s *ReportScreen) View(width, height int) string {
	r := s.report
	if r == nil {
		return ""
	}

	var b strings.Builder
	center := func(str string, style lipgloss.Style) {
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(str)))
		b.WriteString("\n")
	}
	dim := lipgloss.NewStyle().Foreground(theme.TextDim)
	text := lipgloss.NewStyle().Foreground(theme.Text)

	heading := "Session complete!"
	if r.Status == assessment.StatusAbandoned {
		heading = "Session abandoned"
	}
	center(heading, lipgloss.NewStyle().Foreground(theme.Primary).Bold(true))
	center(r.Title, dim)
	b.WriteString("\n")

	center(fmt.Sprintf("Final level: %s        Stable level: %s",
		levelLabel(r.FinalLevel), levelLabel(r.StableLevel)), text)
	center(fmt.Sprintf("Duration: %d min        Coverage: %d%%", r.DurationMinutes, r.ConceptCoverage), text)
	b.WriteString("\n")

	if len(r.LevelProgression) > 0 {
		levels := make([]int, len(r.LevelProgression))
		for i, p := range r.LevelProgression {
			levels[i] = p.Level
		}
		spark := components.Sparkline(levels, assessment.MinLevel, assessment.MaxLevel, width-20)
		center("Level progression", dim)
		center(spark, lipgloss.NewStyle().Foreground(theme.Secondary))
		b.WriteString("\n")
	}

	divider := lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", min(width-8, 60)))
	section := func(title string, concepts []assessment.RankedConcept, color lipgloss.Style) {
		center(title, dim)
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, divider))
		b.WriteString("\n")
		if len(concepts) == 0 {
			center("none yet", theme.Hint)
			return
		}
		for _, c := range concepts {
			center(fmt.Sprintf("%-28s L%d   %3.0f%%", c.Name, c.AchievedLevel, c.Confidence*100), color)
		}
	}
	section("Strongest", r.Strongest, lipgloss.NewStyle().Foreground(theme.Success))
	b.WriteString("\n")
	section("Needs work", r.Weakest, lipgloss.NewStyle().Foreground(theme.Accent))

	return b.String()
}

func levelLabel(level int) string {
	return fmt.Sprintf("%d %s", level, components.LevelName(level))
}
