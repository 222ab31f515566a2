package export

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/EmmaVellard/SolarConflux/model"
)

const (
	// PlotsPerFigure is the number of alignments drawn in one SVG file.
	PlotsPerFigure = 15
	plotColumns    = 3

	panelSize   = 360
	panelMargin = 40
	legendRows  = 40
	plotRadius  = panelSize/2 - panelMargin
)

// Palette assigns colours to bodies by their position in the body list.
var Palette = []string{"blue", "red", "purple", "cyan", "green", "brown", "limegreen", "yellow", "grey", "pink"}

// Plotter renders polar views of alignments: the Sun at the centre and each
// member's positions during the interval at (longitude, distance).
type Plotter struct {
	trajectories map[string]model.Trajectory
	colours      map[string]string
}

// NewPlotter prepares a plotter; bodies fixes the colour order.
func NewPlotter(trajectories map[string]model.Trajectory, bodies []string) *Plotter {
	colours := make(map[string]string, len(bodies))
	for i, b := range bodies {
		colours[b] = Palette[i%len(Palette)]
	}
	return &Plotter{trajectories: trajectories, colours: colours}
}

// WriteAll writes one folder per mode under <baseDir>/<folder>, each holding
// SVG figures of up to PlotsPerFigure alignments. It returns the file paths.
func (p *Plotter) WriteAll(baseDir string, records map[model.AlignmentMode][]model.AlignmentRecord) ([]string, error) {
	var all []model.AlignmentRecord
	for _, mode := range model.Modes {
		all = append(all, records[mode]...)
	}
	if len(all) == 0 {
		return nil, ErrNoRecords
	}
	model.SortRecords(all)
	root := filepath.Join(baseDir, FolderName(all))

	var paths []string
	for _, mode := range model.Modes {
		matches := records[mode]
		if len(matches) == 0 {
			continue
		}
		dir := filepath.Join(root, string(mode))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, err
		}
		for lo := 0; lo < len(matches); lo += PlotsPerFigure {
			chunk := matches[lo:min(lo+PlotsPerFigure, len(matches))]
			path := filepath.Join(dir, FigureName(chunk, lo/PlotsPerFigure))
			if err := p.writeFigure(path, chunk); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// FigureName names one figure after its date range and its index within the
// mode, e.g. "2025-01-01_to_2025-01-03_01.svg". Chunks covering the same
// days still get distinct files.
func FigureName(chunk []model.AlignmentRecord, index int) string {
	first := chunk[0].Start.UTC().Format(time.DateOnly)
	last := chunk[len(chunk)-1].End.UTC().Format(time.DateOnly)
	return fmt.Sprintf("%s_to_%s_%02d.svg", first, last, index)
}

func (p *Plotter) writeFigure(path string, chunk []model.AlignmentRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := p.RenderFigure(f, chunk); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// RenderFigure draws chunk as a grid of polar panels, three per row.
func (p *Plotter) RenderFigure(w io.Writer, chunk []model.AlignmentRecord) error {
	rows := (len(chunk) + plotColumns - 1) / plotColumns
	width := plotColumns * panelSize
	height := rows * (panelSize + legendRows)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif" font-size="12">`+"\n", width, height, width, height)
	fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="white"/>`+"\n")
	for i, rec := range chunk {
		x := (i % plotColumns) * panelSize
		y := (i / plotColumns) * (panelSize + legendRows)
		p.renderPanel(bw, x, y, rec)
	}
	fmt.Fprintln(bw, "</svg>")
	return bw.Flush()
}

type point struct{ lon, r float64 }

func (p *Plotter) renderPanel(w io.Writer, x0, y0 int, rec model.AlignmentRecord) {
	cx := float64(x0 + panelSize/2)
	cy := float64(y0 + panelSize/2 + 10)

	series := make([][]point, len(rec.Group))
	maxR := 0.0
	for i, body := range rec.Group {
		for _, s := range p.trajectories[body].Between(rec.Start, rec.End) {
			series[i] = append(series[i], point{lon: s.Longitude, r: s.DistanceKm})
			maxR = math.Max(maxR, s.DistanceKm)
		}
	}
	if maxR == 0 {
		maxR = 1
	}

	title := fmt.Sprintf("%s %s to %s", rec.Mode, rec.Start.UTC().Format(time.DateOnly), rec.End.UTC().Format(time.DateOnly))
	fmt.Fprintf(w, `<g><text x="%.1f" y="%d" text-anchor="middle">%s</text>`+"\n", cx, y0+18, html.EscapeString(title))
	for _, frac := range []float64{0.25, 0.5, 0.75, 1} {
		fmt.Fprintf(w, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="none" stroke="#ccc"/>`+"\n", cx, cy, frac*plotRadius)
	}
	for deg := 0; deg < 360; deg += 45 {
		ex, ey := polar(cx, cy, float64(deg)*math.Pi/180, plotRadius)
		fmt.Fprintf(w, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#eee"/>`+"\n", cx, cy, ex, ey)
	}
	fmt.Fprintf(w, `<circle cx="%.1f" cy="%.1f" r="5" fill="orange"><title>Sun</title></circle>`+"\n", cx, cy)

	for i, body := range rec.Group {
		colour := p.colour(body)
		for _, pt := range series[i] {
			px, py := polar(cx, cy, pt.lon, pt.r/maxR*plotRadius)
			fmt.Fprintf(w, `<circle cx="%.1f" cy="%.1f" r="1.5" fill="%s"/>`+"\n", px, py, colour)
		}
	}

	// Legend: Sun first, then members, two per line.
	ly := float64(y0 + panelSize + 4)
	entries := append([]string{model.SunBody}, rec.Group...)
	for i, name := range entries {
		colour := "orange"
		if i > 0 {
			colour = p.colour(name)
		}
		lx := float64(x0) + panelMargin + float64(i%2)*(panelSize/2-panelMargin)
		yy := ly + float64(i/2)*14
		fmt.Fprintf(w, `<circle cx="%.1f" cy="%.1f" r="4" fill="%s"/><text x="%.1f" y="%.1f">%s</text>`+"\n", lx, yy-4, colour, lx+8, yy, html.EscapeString(name))
	}
	fmt.Fprintln(w, "</g>")
}

func (p *Plotter) colour(body string) string {
	if c, ok := p.colours[body]; ok {
		return c
	}
	return "black"
}

// polar maps an angle (counter-clockwise from +x) and radius to SVG coordinates.
func polar(cx, cy, theta, r float64) (float64, float64) {
	return cx + r*math.Cos(theta), cy - r*math.Sin(theta)
}
