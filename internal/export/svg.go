// Package export renders scenes and canvases as SVG.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/experiment"
	"github.com/san-kum/pbdsim/internal/viz"
)

// Polyline is one rope's active particles in order.
type Polyline struct {
	Name   string
	Points []r3.Vec
	Closed bool
	// Fixed holds indices into Points of particles with zero inverse mass.
	Fixed []int
}

// ScenePolylines collects the renderable shape of every rope in the arena.
func ScenePolylines(s *experiment.Scene) []Polyline {
	ar := s.Driver.Arena()
	var out []Polyline
	for _, r := range s.Ropes {
		if !r.InArena() {
			continue
		}
		pl := Polyline{Name: r.Name(), Closed: r.Closed()}
		for i := 0; i < r.UsedParticles(); i++ {
			if !ar.IsActive(r.Slot(i)) {
				continue
			}
			if r.InvMasses[i] == 0 {
				pl.Fixed = append(pl.Fixed, len(pl.Points))
			}
			pl.Points = append(pl.Points, r.ParticlePosition(i))
		}
		out = append(out, pl)
	}
	return out
}

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

// CanvasToSVG converts a Braille canvas to SVG, one circle per set dot.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}
	w, h := canvas.Dots()

	var sb strings.Builder
	header(&sb, int(float64(w)*scale), int(float64(h)*scale))
	sb.WriteString(`<g fill="#00ff00">` + "\n")
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if canvas.IsSet(x, y) {
				fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f"/>`+"\n",
					(float64(x)+0.5)*scale, (float64(y)+0.5)*scale, scale*0.4)
			}
		}
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// RopesToSVG projects every polyline through cam onto a width x height
// image. Fixed particles get a marker.
func RopesToSVG(lines []Polyline, cam *viz.Camera, width, height int, stroke string) string {
	var sb strings.Builder
	header(&sb, width, height)

	for _, pl := range lines {
		if len(pl.Points) == 0 {
			continue
		}
		fmt.Fprintf(&sb, `<path id=%q fill="none" stroke="%s" stroke-width="1.5" d="`, pl.Name, stroke)
		for i, p := range pl.Points {
			x, y, _, _ := cam.Project(p, width, height)
			if i == 0 {
				fmt.Fprintf(&sb, "M%d,%d", x, y)
			} else {
				fmt.Fprintf(&sb, " L%d,%d", x, y)
			}
		}
		if pl.Closed && len(pl.Points) > 2 {
			sb.WriteString(" Z")
		}
		sb.WriteString(`"/>` + "\n")

		for _, i := range pl.Fixed {
			x, y, _, _ := cam.Project(pl.Points[i], width, height)
			fmt.Fprintf(&sb, `<circle cx="%d" cy="%d" r="3" fill="%s"/>`+"\n", x, y, stroke)
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// WriteSceneSVG fits a camera to the scene and writes it as SVG.
func WriteSceneSVG(w io.Writer, s *experiment.Scene, width, height int) error {
	lines := ScenePolylines(s)
	var all []r3.Vec
	for _, pl := range lines {
		all = append(all, pl.Points...)
	}
	cam := viz.NewCamera()
	cam.Fit(all, width, height)
	_, err := io.WriteString(w, RopesToSVG(lines, cam, width, height, "#00ffff"))
	return err
}

func ExportSceneSVG(path string, s *experiment.Scene, width, height int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteSceneSVG(f, s, width, height)
}
