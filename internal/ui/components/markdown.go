package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Markdown renders tutor replies as terminal markdown. The renderer is
// rebuilt only when the wrap width changes.
type Markdown struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a renderer using a glamour standard style name
// ("dark", "light", "notty") or "auto" to detect the terminal background.
func NewMarkdown(style string) *Markdown {
	return &Markdown{style: style}
}

// Render returns text rendered for width columns, or text unchanged when
// rendering fails.
func (m *Markdown) Render(text string, width int) string {
	if m.renderer == nil || m.width != width {
		styleOpt := glamour.WithStandardStyle(m.style)
		if m.style == "auto" {
			styleOpt = glamour.WithAutoStyle()
		}
		r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
		if err != nil {
			return text
		}
		m.renderer = r
		m.width = width
	}

	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
