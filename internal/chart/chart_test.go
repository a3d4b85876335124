package chart

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"incident-review/internal/dataset"
)

func TestTicksLimited(t *testing.T) {
	samples := dataset.Samples()
	xs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.Timestamp
	}

	ticks := Ticks(xs)
	if len(ticks) != MaxTicks {
		t.Fatalf("expected %d ticks, got %d", MaxTicks, len(ticks))
	}
	if ticks[0].Label != "0.0" || ticks[len(ticks)-1].Label != "49.5" {
		t.Errorf("expected ticks to span the sequence, got %s..%s", ticks[0].Label, ticks[len(ticks)-1].Label)
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Value <= ticks[i-1].Value {
			t.Errorf("ticks not ascending at %d", i)
		}
	}

	if got := Ticks([]float64{0, 0.5, 1}); len(got) != 3 {
		t.Errorf("expected one tick per value for short input, got %d", len(got))
	}
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	marker := 25.0
	if err := Render(&buf, dataset.Samples(), Options{Format: PNG, Marker: &marker}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Errorf("expected PNG output")
	}
}

func TestRenderSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRenderer(2).Render(context.Background(), &buf, dataset.Samples(), Options{Format: SVG, Width: 640, Height: 320}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Errorf("expected SVG output")
	}
}

func TestMarkerMatchesCacheKey(t *testing.T) {
	render := func(m float64) (string, string) {
		var buf bytes.Buffer
		opts := Options{Format: SVG, Width: 320, Height: 200, Marker: &m}
		if err := Render(&buf, dataset.Samples(), opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return opts.CacheKey("TES"), buf.String()
	}

	keyA, imgA := render(10.01)
	keyB, imgB := render(10.04)
	if keyA != keyB {
		t.Fatalf("expected shared cache key, got %s and %s", keyA, keyB)
	}
	if imgA != imgB {
		t.Error("renders sharing a cache key differ")
	}
}

func TestRenderNeedsTwoSamples(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, dataset.Samples()[:1], Options{}); !errors.Is(err, ErrNotEnoughData) {
		t.Errorf("expected ErrNotEnoughData, got %v", err)
	}
}

func TestOptions(t *testing.T) {
	marker := 12.34
	o := Options{Format: SVG, Width: 100, Height: 50, Marker: &marker}
	if o.ContentType() != "image/svg+xml" {
		t.Errorf("unexpected content type %s", o.ContentType())
	}
	if got := o.CacheKey("TES"); got != "chart:TES:svg:100x50:12.3" {
		t.Errorf("unexpected cache key %s", got)
	}
	if got := (Options{}).CacheKey("TES"); got != "chart:TES:png:0x0:none" {
		t.Errorf("unexpected cache key %s", got)
	}
}
