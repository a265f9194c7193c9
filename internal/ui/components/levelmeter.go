package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/socratic/internal/ui/theme"
)

// LevelNames are the display names of levels 1 through 5.
var LevelNames = [...]string{"Recognition", "Reproduction", "Application", "Analysis", "Synthesis"}

// LevelName returns the display name of level n, or "" when out of range.
func LevelName(n int) string {
	if n < 1 || n > len(LevelNames) {
		return ""
	}
	return LevelNames[n-1]
}

// LevelMeter displays the current level as five segments.
type LevelMeter struct {
	Level    int
	Max      int
	SegWidth int
}

// NewLevelMeter creates a meter for level out of max.
func NewLevelMeter(level, max int) LevelMeter {
	return LevelMeter{Level: level, Max: max, SegWidth: 3}
}

// View renders the meter followed by the level number and name.
func (m LevelMeter) View() string {
	seg := m.SegWidth
	if seg < 1 {
		seg = 1
	}
	level := m.Level
	if level < 0 {
		level = 0
	}
	if level > m.Max {
		level = m.Max
	}

	var b strings.Builder
	for i := 1; i <= m.Max; i++ {
		style := theme.MeterEmpty
		if i <= level {
			style = theme.MeterFilled
		}
		b.WriteString(style.Render(strings.Repeat(" ", seg)))
		if i < m.Max {
			b.WriteString(" ")
		}
	}

	label := fmt.Sprintf("  L%d/%d", level, m.Max)
	if name := LevelName(level); name != "" {
		label += " " + name
	}
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Text).Render(label))
	return b.String()
}
