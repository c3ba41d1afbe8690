// Package dye wraps log text in styled markup for the host console.
package dye

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Prop is a single CSS-like property.
type Prop struct {
	Name  string
	Value string
}

// Style is either a single foreground color or an ordered list of
// properties. The zero Style applies no styling.
type Style struct {
	color string
	props []Prop
}

func Color(color string) Style {
	return Style{color: color}
}

// CSS builds a multi-property style. Properties render in argument order.
func CSS(props ...Prop) Style {
	return Style{props: props}
}

func (s Style) IsZero() bool {
	return s.color == "" && len(s.props) == 0
}

// Props returns the properties of the style, with a plain color style
// reported as a single color property.
func (s Style) Props() []Prop {
	if len(s.props) > 0 {
		return append([]Prop(nil), s.props...)
	}
	if s.color != "" {
		return []Prop{{Name: "color", Value: s.color}}
	}
	return nil
}

// ParseStyle interprets loosely typed style input: a color string, a
// []Prop, or a string map. Maps have no order, so their properties render
// sorted by name. Anything else is treated as no style.
func ParseStyle(v any) Style {
	switch t := v.(type) {
	case Style:
		return t
	case string:
		return Color(t)
	case []Prop:
		return CSS(t...)
	case map[string]string:
		props := make([]Prop, 0, len(t))
		for _, k := range slices.Sorted(maps.Keys(t)) {
			props = append(props, Prop{Name: k, Value: t[k]})
		}
		return CSS(props...)
	}
	return Style{}
}

// Dye joins text with spaces and wraps it in a span carrying style.
func Dye(style Style, text ...string) string {
	msg := strings.Join(text, " ")
	if len(style.props) > 0 {
		css := &strings.Builder{}
		for _, p := range style.props {
			fmt.Fprintf(css, "%s: %s;", p.Name, p.Value)
		}
		return fmt.Sprintf(`<span style="%s">%s</span>`, css.String(), msg)
	}
	if style.color != "" {
		return fmt.Sprintf(`<span style="color: %s">%s</span>`, style.color, msg)
	}
	return msg
}

// Palette names the styles used for log output.
type Palette struct {
	Death  Style
	Birth  Style
	Error  Style
	System Style
}

var Crayon = Palette{
	Death:  CSS(Prop{"color", "black"}, Prop{"font-weight", "bold"}),
	Birth:  Color("#e6de99"),
	Error:  Color("#e79da7"),
	System: CSS(Prop{"color", "#999"}, Prop{"font-size", "10px"}),
}

// Renderer applies a Style to text. HTML produces console markup,
// Terminal produces ANSI escapes.
type Renderer interface {
	Render(style Style, text ...string) string
}

type HTML struct{}

func (HTML) Render(style Style, text ...string) string {
	return Dye(style, text...)
}

// FormatNumber abbreviates large numbers: 1.5K, 2.00M.
func FormatNumber(n int64) string {
	switch {
	case n >= 1000000:
		return fmt.Sprintf("%.2fM", float64(n)/1000000)
	case n >= 1000:
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprint(n)
}
