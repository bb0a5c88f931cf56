package viewer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/xkilldash9x/wayfarer/api/schemas"
	"github.com/xkilldash9x/wayfarer/internal/collision"
	"github.com/xkilldash9x/wayfarer/internal/config"
)

const (
	staticRune       = '#'
	decorationRune   = '.'
	unknownAgentRune = '@'
)

// Palette holds the styles used to draw a scene.
type Palette struct {
	Agent  tcell.Style
	Static tcell.Style
	Status tcell.Style
}

// NewPalette resolves the configured color names. Unknown names fall back
// to green agents and gray statics.
func NewPalette(cfg config.ViewerConfig) Palette {
	return Palette{
		Agent:  tcell.StyleDefault.Foreground(colorOr(cfg.AgentColor, tcell.ColorGreen)),
		Static: tcell.StyleDefault.Foreground(colorOr(cfg.StaticColor, tcell.ColorGray)),
		Status: tcell.StyleDefault.Reverse(true),
	}
}

func colorOr(name string, fallback tcell.Color) tcell.Color {
	if c := tcell.GetColor(name); c != tcell.ColorDefault {
		return c
	}
	return fallback
}

// agentStyle varies the base agent style by state so a glance shows who is
// moving, waiting or recoiling.
func (p Palette) agentStyle(a schemas.AgentSnapshot) tcell.Style {
	style := p.Agent
	switch a.State {
	case "bouncing":
		style = style.Foreground(tcell.ColorRed).Bold(true)
	case "waiting":
		style = style.Dim(true)
	case "loading", "destroyed":
		style = p.Static
	}
	if a.Paused {
		style = style.Reverse(true)
	}
	return style
}

// Glyph is the rune drawn for an agent: the upper-cased first letter of its
// kind, or of its name when the kind is unknown.
func Glyph(a schemas.AgentSnapshot) rune {
	for _, s := range []string{a.Kind, a.Name} {
		if r, _ := utf8.DecodeRuneInString(s); r != utf8.RuneError {
			return unicode.ToUpper(r)
		}
	}
	return unknownAgentRune
}

// Render draws scene onto screen. The world fills every row but the last,
// which holds the status line.
func Render(screen tcell.Screen, scene Scene, pal Palette) {
	screen.Clear()
	width, height := screen.Size()
	if width <= 0 || height < 2 {
		screen.Show()
		return
	}

	proj := newProjection(scene.Bounds, width, height-1)
	for _, o := range scene.Statics {
		drawStatic(screen, proj, o, pal)
	}
	for _, a := range scene.Frame.Agents {
		col, row, ok := proj.cell(a.Position[0], a.Position[2])
		if !ok {
			continue
		}
		screen.SetContent(col, row, Glyph(a), nil, pal.agentStyle(a))
	}
	drawText(screen, 0, height-1, width, StatusLine(scene), pal.Status)
	screen.Show()
}

func drawStatic(screen tcell.Screen, proj projection, o collision.HasWorldVolume, pal Palette) {
	if o == nil {
		return
	}
	r, style := staticRune, pal.Static
	if !o.Collidable() {
		r, style = decorationRune, pal.Static.Dim(true)
	}
	o.EachVolume(func(box collision.AABB) bool {
		c0, r0, c1, r1, ok := proj.span(box)
		if !ok {
			return false
		}
		for row := r0; row <= r1; row++ {
			for col := c0; col <= c1; col++ {
				screen.SetContent(col, row, r, nil, style)
			}
		}
		return false
	})
}

func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	col := x
	for _, r := range text {
		if col >= width {
			return
		}
		screen.SetContent(col, y, r, nil, style)
		col++
	}
	for ; col < width; col++ {
		screen.SetContent(col, y, ' ', nil, style)
	}
}

// StatusLine summarizes the frame: counters, per-state tallies and the pause flag.
func StatusLine(scene Scene) string {
	f := scene.Frame
	var b strings.Builder
	fmt.Fprintf(&b, "frame %d  t=%.1fs  moving %d/%d", f.Frame, f.Time, f.MovingCount(), len(f.Agents))
	counts := f.StateCounts()
	for _, s := range f.SortedStates() {
		fmt.Fprintf(&b, "  %s:%d", s, counts[s])
	}
	if scene.Paused {
		b.WriteString("  [paused]")
	}
	return b.String()
}
