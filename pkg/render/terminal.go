package render

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// TerminalRenderer draws a top-down ASCII map of the x/z plane. Screen up
// is world +z.
type TerminalRenderer struct {
	out       io.Writer
	width     int
	height    int
	buffer    [][]rune
	scale     float64 // world units per cell
	center    mgl64.Vec3
	follow    bool
	status    string
	clearCode bool
}

// NewTerminalRenderer creates a renderer of width×height cells writing to
// out. The view follows the body unless SetCenter is called.
func NewTerminalRenderer(out io.Writer, width, height int, scale float64) *TerminalRenderer {
	if scale <= 0 {
		scale = 1
	}
	buffer := make([][]rune, height)
	for i := range buffer {
		buffer[i] = make([]rune, width)
	}
	return &TerminalRenderer{
		out:    out,
		width:  width,
		height: height,
		buffer: buffer,
		scale:  scale,
		follow: true,
	}
}

// SetCenter pins the view on pos and stops following the body.
func (r *TerminalRenderer) SetCenter(pos mgl64.Vec3) {
	r.center = pos
	r.follow = false
}

// SetClearScreen makes Present emit an ANSI clear before each frame.
func (r *TerminalRenderer) SetClearScreen(on bool) {
	r.clearCode = on
}

func (r *TerminalRenderer) worldToScreen(pos mgl64.Vec3) (int, int) {
	x := int(math.Floor((pos.X()-r.center.X())/r.scale + float64(r.width)/2))
	y := int(math.Floor(-(pos.Z()-r.center.Z())/r.scale + float64(r.height)/2))
	return x, y
}

func (r *TerminalRenderer) plot(pos mgl64.Vec3, glyph rune) {
	x, y := r.worldToScreen(pos)
	if x >= 0 && x < r.width && y >= 0 && y < r.height {
		r.buffer[y][x] = glyph
	}
}

// Clear implements Renderer.
func (r *TerminalRenderer) Clear() {
	for y := range r.buffer {
		for x := range r.buffer[y] {
			r.buffer[y][x] = ' '
		}
	}
	r.status = ""
}

// Render implements Renderer. Later glyphs overwrite earlier ones, so the
// body is drawn last.
func (r *TerminalRenderer) Render(scene Scene) {
	if r.follow {
		r.center = scene.Position
	}
	for _, d := range scene.Drawables {
		switch d.Kind {
		case KindTerrain:
			r.plot(d.Origin(), '#')
		case KindScenery:
			r.plot(d.Origin(), 'o')
		}
	}
	r.plot(scene.View.Camera, 'C')
	r.plot(scene.Position, headingGlyph(scene.Heading))

	r.status = fmt.Sprintf("frame %d  t=%.2fs  pos=(%.2f, %.2f, %.2f)  heading=%.1f°",
		scene.Frame, scene.Time,
		scene.Position.X(), scene.Position.Y(), scene.Position.Z(),
		scene.Heading)
}

// headingGlyph picks the arrow closest to the body's forward direction.
func headingGlyph(heading float64) rune {
	rad := mgl64.DegToRad(heading)
	fx, fz := math.Sin(rad), math.Cos(rad)
	if math.Abs(fz) >= math.Abs(fx) {
		if fz >= 0 {
			return '^'
		}
		return 'v'
	}
	if fx > 0 {
		return '>'
	}
	return '<'
}

// Present implements Renderer.
func (r *TerminalRenderer) Present() {
	w := bufio.NewWriter(r.out)
	if r.clearCode {
		w.WriteString("\033[H\033[2J")
	}
	border := "+" + strings.Repeat("-", r.width) + "+\n"
	w.WriteString(border)
	for y := range r.buffer {
		w.WriteByte('|')
		w.WriteString(string(r.buffer[y]))
		w.WriteString("|\n")
	}
	w.WriteString(border)
	if r.status != "" {
		w.WriteString(r.status)
		w.WriteByte('\n')
	}
	w.Flush()
}
