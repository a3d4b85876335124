// Package chart renders the speed, impact and brake series of an incident.
package chart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/sync/semaphore"

	"incident-review/internal/models"
)

// MaxTicks limits the number of labelled X-axis ticks.
const MaxTicks = 8

// ErrNotEnoughData is returned for sequences with fewer than two samples.
var ErrNotEnoughData = errors.New("at least two samples are needed to draw a chart")

// Format is an output image format.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

var (
	speedColor  = drawing.Color{R: 59, G: 130, B: 246, A: 255}
	impactColor = drawing.Color{R: 239, G: 68, B: 68, A: 255}
	brakeColor  = drawing.Color{R: 34, G: 197, B: 94, A: 255}
	markerColor = drawing.Color{R: 100, G: 116, B: 139, A: 255}
)

// Options controls a render.
type Options struct {
	Width  int
	Height int
	Format Format
	// Marker draws a vertical line at this playback time when set. It is
	// drawn at a resolution of 0.1s.
	Marker *float64
}

// ContentType returns the MIME type of the output.
func (o Options) ContentType() string {
	if o.Format == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// CacheKey identifies a render of an incident with these options.
func (o Options) CacheKey(incidentID string) string {
	marker := "none"
	if m, ok := o.marker(); ok {
		marker = fmt.Sprintf("%.1f", m)
	}
	return fmt.Sprintf("chart:%s:%s:%dx%d:%s", incidentID, o.format(), o.Width, o.Height, marker)
}

func (o Options) marker() (float64, bool) {
	if o.Marker == nil {
		return 0, false
	}
	return math.Round(*o.Marker*10) / 10, true
}

func (o Options) format() Format {
	if o.Format == "" {
		return PNG
	}
	return o.Format
}

// Render draws the full sequence to w.
func Render(w io.Writer, samples []models.TelemetrySample, opts Options) error {
	if len(samples) < 2 {
		return ErrNotEnoughData
	}
	if opts.Width == 0 {
		opts.Width = 960
	}
	if opts.Height == 0 {
		opts.Height = 400
	}

	xs := make([]float64, len(samples))
	speed := make([]float64, len(samples))
	impact := make([]float64, len(samples))
	brake := make([]float64, len(samples))
	maxY := 1.0
	for i, s := range samples {
		xs[i] = s.Timestamp
		speed[i] = s.Speed
		impact[i] = s.ImpactForce
		brake[i] = s.BrakeForce * 100
		maxY = max(maxY, speed[i], impact[i], brake[i])
	}

	series := []gochart.Series{
		gochart.ContinuousSeries{Name: "Speed", XValues: xs, YValues: speed, Style: lineStyle(speedColor)},
		gochart.ContinuousSeries{Name: "Impact", XValues: xs, YValues: impact, Style: lineStyle(impactColor)},
		gochart.ContinuousSeries{Name: "Brake", XValues: xs, YValues: brake, Style: lineStyle(brakeColor)},
	}
	if m, ok := opts.marker(); ok && m >= xs[0] && m <= xs[len(xs)-1] {
		series = append(series, gochart.ContinuousSeries{
			Name:    fmt.Sprintf("%.1fs", m),
			XValues: []float64{m, m},
			YValues: []float64{0, maxY},
			Style: gochart.Style{
				StrokeColor:     markerColor,
				StrokeWidth:     1,
				StrokeDashArray: []float64{4, 4},
			},
		})
	}

	ch := gochart.Chart{
		Width:      opts.Width,
		Height:     opts.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      gochart.XAxis{Name: "Time (s)", Ticks: Ticks(xs)},
		YAxis:      gochart.YAxis{Range: &gochart.ContinuousRange{Min: 0, Max: maxY}},
		Series:     series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	renderer := gochart.PNG
	if opts.format() == SVG {
		renderer = gochart.SVG
	}
	if err := ch.Render(renderer, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// Ticks spreads at most MaxTicks labels evenly over xs, always including the
// first and last value.
func Ticks(xs []float64) []gochart.Tick {
	if len(xs) == 0 {
		return nil
	}
	n := min(MaxTicks, len(xs))
	if n == 1 {
		return []gochart.Tick{{Value: xs[0], Label: fmt.Sprintf("%.1f", xs[0])}}
	}
	ticks := make([]gochart.Tick, 0, n)
	last := len(xs) - 1
	for i := 0; i < n; i++ {
		idx := i * last / (n - 1)
		ticks = append(ticks, gochart.Tick{Value: xs[idx], Label: fmt.Sprintf("%.1f", xs[idx])})
	}
	return ticks
}

func lineStyle(c drawing.Color) gochart.Style {
	return gochart.Style{
		StrokeColor: c,
		StrokeWidth: 2,
	}
}

// Renderer bounds the number of concurrent renders.
type Renderer struct {
	sem *semaphore.Weighted
}

// NewRenderer creates a renderer allowing maxConcurrent renders at once.
func NewRenderer(maxConcurrent int64) *Renderer {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Renderer{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Render waits for a free slot and draws the chart.
func (r *Renderer) Render(ctx context.Context, w io.Writer, samples []models.TelemetrySample, opts Options) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)
	return Render(w, samples, opts)
}
