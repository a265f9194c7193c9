package chat

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/socratic/internal/assessment"
	"github.com/abhisek/socratic/internal/ui/components"
	"github.com/abhisek/socratic/internal/ui/layout"
	"github.com/abhisek/socratic/internal/ui/theme"
)

func (s *ChatScreen) View(width, height int) string {
	if s.errMsg != "" {
		return layout.Centered(fmt.Sprintf("\n\n\n  Error: %s\n\n  Press any key to quit.", s.errMsg),
			width, lipgloss.NewStyle().Foreground(theme.Error))
	}
	if s.state == nil {
		return layout.Centered("\n\n\n  Preparing your session...", width, lipgloss.NewStyle().Foreground(theme.TextDim))
	}
	if s.confirming {
		return renderEndConfirm(width)
	}

	status := s.renderStatusLine(width)
	divider := lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(width-4, 0)))
	prompt := "  " + s.input.View()

	footer := []string{divider}
	if s.notice != "" {
		footer = append(footer, lipgloss.NewStyle().Foreground(theme.Error).Render("  "+s.notice))
	}
	footer = append(footer, prompt)

	// status, divider, transcript, footer lines
	transcriptHeight := height - 2 - len(footer)
	transcript := s.renderTranscript(width-4, transcriptHeight)

	return strings.Join(append([]string{status, divider, transcript}, footer...), "\n")
}

// renderStatusLine shows the level meter, engagement and the last level
// change.
func (s *ChatScreen) renderStatusLine(width int) string {
	meter := "  " + components.NewLevelMeter(s.state.CurrentLevel, assessment.MaxLevel).View()

	eng := lipgloss.NewStyle().
		Foreground(theme.EngagementColor(string(s.state.Engagement))).
		Render("engagement: " + string(s.state.Engagement))

	line := meter + "    " + eng
	if s.decision != nil {
		line += "    " + renderDecision(*s.decision)
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(line)
}

func renderDecision(d assessment.LevelDecision) string {
	if d.To > d.From {
		return lipgloss.NewStyle().Foreground(theme.Success).Bold(true).Render(fmt.Sprintf("▲ level %d", d.To))
	}
	return lipgloss.NewStyle().Foreground(theme.Accent).Bold(true).Render(fmt.Sprintf("▼ level %d", d.To))
}

// renderTranscript renders the most recent messages that fit in height
// lines.
func (s *ChatScreen) renderTranscript(width, height int) string {
	if height <= 0 {
		return ""
	}
	if width < 10 {
		width = 10
	}

	var lines []string
	for _, m := range s.state.Messages {
		lines = append(lines, s.renderMessage(m.Role, m.Content, width)...)
	}
	if s.pending != "" {
		lines = append(lines, s.renderMessage(assessment.RoleUser, s.pending, width)...)
	}
	if s.waiting {
		lines = append(lines, "  "+theme.Hint.Render("Tutor is thinking..."))
	}

	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (s *ChatScreen) renderMessage(role assessment.Role, content string, width int) []string {
	label := theme.Tutor.Render("Tutor")
	if role == assessment.RoleUser {
		label = theme.Learner.Render("You")
	}

	var body string
	if role == assessment.RoleAssistant && s.markdown != nil {
		body = s.markdown.Render(content, width-2)
	} else {
		body = lipgloss.NewStyle().Foreground(theme.Text).Width(width - 2).Render(content)
	}

	lines := []string{"  " + label}
	for _, l := range strings.Split(body, "\n") {
		lines = append(lines, "  "+l)
	}
	return append(lines, "")
}

func renderEndConfirm(width int) string {
	var b strings.Builder
	b.WriteString("\n\n\n")
	b.WriteString(layout.Centered("End this session?", width, lipgloss.NewStyle().Foreground(theme.Text).Bold(true)))
	b.WriteString("\n")
	b.WriteString(layout.Centered("You will see your report.", width, lipgloss.NewStyle().Foreground(theme.TextDim)))
	b.WriteString("\n\n")
	b.WriteString(layout.Centered("[Y] Yes, end session", width, lipgloss.NewStyle().Foreground(theme.Success)))
	b.WriteString("\n")
	b.WriteString(layout.Centered("[N] No, keep going", width, lipgloss.NewStyle().Foreground(theme.Primary)))
	return b.String()
}
