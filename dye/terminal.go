package dye

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Terminal renders styles as ANSI escapes for local consoles. Only color,
// background-color, font-weight, font-style and text-decoration are
// understood; other properties are ignored.
type Terminal struct {
	Renderer *lipgloss.Renderer
}

func (t Terminal) style() lipgloss.Style {
	if t.Renderer != nil {
		return t.Renderer.NewStyle()
	}
	return lipgloss.NewStyle()
}

func (t Terminal) Render(style Style, text ...string) string {
	msg := strings.Join(text, " ")
	if style.IsZero() {
		return msg
	}
	ls := t.style()
	for _, p := range style.Props() {
		switch p.Name {
		case "color":
			ls = ls.Foreground(lipgloss.Color(p.Value))
		case "background-color", "background":
			ls = ls.Background(lipgloss.Color(p.Value))
		case "font-weight":
			ls = ls.Bold(p.Value == "bold" || p.Value == "bolder")
		case "font-style":
			ls = ls.Italic(p.Value == "italic")
		case "text-decoration":
			ls = ls.Underline(p.Value == "underline").Strikethrough(p.Value == "line-through")
		}
	}
	return ls.Render(msg)
}
