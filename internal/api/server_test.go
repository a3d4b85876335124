package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"incident-review/internal/assistant"
	"incident-review/internal/cache"
	"incident-review/internal/config"
	"incident-review/internal/dataset"
	"incident-review/internal/db"
	"incident-review/internal/playback"
	"incident-review/internal/timeline"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Meta    *meta           `json:"meta"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	incident := dataset.Incident("")
	if err := database.UpsertIncident(ctx, &incident); err != nil {
		t.Fatalf("upsert incident: %v", err)
	}

	samples, reports := dataset.Generate()
	return NewServer(Deps{
		DB:       database,
		Incident: incident,
		Samples:  samples,
		Reports:  reports,
		Session:  playback.NewSession(timeline.Duration(samples)),
		Chat:     assistant.NewService(database, incident.ID, samples, nil),
		Cache:    cache.New(ctx, config.RedisConfig{Enabled: false}),
	})
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, "GET", "/health", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("expected healthy response, got %d", rec.Code)
	}
}

func TestFrameMissingSample(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, "GET", "/api/v1/frame?t=24.25", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var f timeline.Frame
	json.Unmarshal(env.Data, &f)
	if f.Found || f.Notice != timeline.NoSampleMessage {
		t.Errorf("expected missing-sample frame, got %+v", f)
	}

	rec, env = do(t, s, "GET", "/api/v1/frame?t=abc", "")
	if rec.Code != http.StatusBadRequest || env.Success {
		t.Errorf("expected 400 for bad time, got %d", rec.Code)
	}
}

func TestMetricsAfterImpact(t *testing.T) {
	s := newTestServer(t)
	_, env := do(t, s, "GET", "/api/v1/metrics?t=25.5", "")
	var resp metricsResponse
	json.Unmarshal(env.Data, &resp)
	if !resp.Found || len(resp.Cards) != 2 {
		t.Fatalf("expected metrics, got %+v", resp)
	}
	if resp.Cards[0].Value != "60%" {
		t.Errorf("expected damage 60%%, got %s", resp.Cards[0].Value)
	}
	if env.Meta == nil || env.Meta.Time != 25.5 {
		t.Errorf("expected meta time 25.5")
	}
}

func TestTableWindow(t *testing.T) {
	s := newTestServer(t)
	_, env := do(t, s, "GET", "/api/v1/table?t=1.0", "")
	var w timeline.TableWindow
	json.Unmarshal(env.Data, &w)
	if len(w.Rows) != 27 || w.Start != 0 || w.End != 27 {
		t.Errorf("expected 27 rows from 0, got %d rows [%d,%d)", len(w.Rows), w.Start, w.End)
	}
	if !w.Rows[2].Current {
		t.Errorf("expected row 2 to be current")
	}
}

func TestReportsNotice(t *testing.T) {
	s := newTestServer(t)
	_, env := do(t, s, "GET", "/api/v1/reports?t=5", "")
	var resp reportsResponse
	json.Unmarshal(env.Data, &resp)
	if len(resp.Reports) != 0 || resp.Notice != timeline.NoReportsMessage {
		t.Errorf("expected empty reports with notice, got %+v", resp)
	}

	_, env = do(t, s, "GET", "/api/v1/reports?t=20", "")
	json.Unmarshal(env.Data, &resp)
	if len(resp.Reports) != 2 || !resp.Reports[0].Current {
		t.Errorf("expected two reports with the first current, got %+v", resp.Reports)
	}
}

func TestCurrentSampleUsesClock(t *testing.T) {
	s := newTestServer(t)
	rec, _ := do(t, s, "GET", "/api/v1/samples/current", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected sample at clock time 0, got %d", rec.Code)
	}

	do(t, s, "POST", "/api/v1/playback/seek", `{"time": 24.25}`)
	rec, env := do(t, s, "GET", "/api/v1/samples/current", "")
	if rec.Code != http.StatusNotFound || env.Error != timeline.NoSampleMessage {
		t.Errorf("expected 404 after seeking between samples, got %d %q", rec.Code, env.Error)
	}
}

func TestPlaybackControls(t *testing.T) {
	s := newTestServer(t)

	rec, _ := do(t, s, "POST", "/api/v1/playback/seek", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for seek without time, got %d", rec.Code)
	}

	_, env := do(t, s, "POST", "/api/v1/playback/skip", "")
	var st playback.State
	json.Unmarshal(env.Data, &st)
	if st.CurrentTime != playback.SkipStep {
		t.Errorf("expected default skip to %v, got %v", playback.SkipStep, st.CurrentTime)
	}

	_, env = do(t, s, "POST", "/api/v1/playback/skip", `{"seconds": 1000}`)
	json.Unmarshal(env.Data, &st)
	if st.CurrentTime != 49.5 {
		t.Errorf("expected skip clamped to 49.5, got %v", st.CurrentTime)
	}

	_, env = do(t, s, "POST", "/api/v1/playback/toggle", "")
	json.Unmarshal(env.Data, &st)
	if st.Paused {
		t.Errorf("expected playing after toggle")
	}
}

func TestChatFlow(t *testing.T) {
	s := newTestServer(t)

	rec, env := do(t, s, "POST", "/api/v1/chat/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, env.Error)
	}
	var created struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	json.Unmarshal(env.Data, &created)
	if len(created.Messages) != 1 || created.Messages[0].Content != assistant.Greeting {
		t.Fatalf("expected greeting, got %+v", created.Messages)
	}

	path := "/api/v1/chat/sessions/" + created.Session.ID + "/messages"
	rec, env = do(t, s, "POST", path, `{"content": "What was the speed?", "time": 25}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, env.Error)
	}
	var exchange struct {
		Assistant struct {
			Content string `json:"content"`
		} `json:"assistant"`
	}
	json.Unmarshal(env.Data, &exchange)
	if exchange.Assistant.Content != "At 25.0s, the vehicle was traveling at 40.0 mph." {
		t.Errorf("unexpected reply %q", exchange.Assistant.Content)
	}

	rec, _ = do(t, s, "POST", path, `{"content": "   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank message, got %d", rec.Code)
	}

	_, env = do(t, s, "GET", "/api/v1/chat/sessions/"+created.Session.ID, "")
	if env.Meta == nil || env.Meta.Total != 3 {
		t.Errorf("expected 3 messages in history")
	}

	rec, _ = do(t, s, "GET", "/api/v1/chat/sessions/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", rec.Code)
	}
}

func TestChartSVG(t *testing.T) {
	s := newTestServer(t)
	rec, _ := do(t, s, "GET", "/api/v1/chart.svg?t=25&width=640&height=320", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/svg+xml" || rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("unexpected headers %v", rec.Header())
	}

	rec, _ = do(t, s, "GET", "/api/v1/chart.png?width=10", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for tiny width, got %d", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t)
	rec, _ := do(t, s, "GET", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Tesla Incident Analysis") || !strings.Contains(body, "Damage Severity") {
		t.Errorf("dashboard missing incident title or metric cards")
	}
	if !strings.Contains(body, "video.currentTime += SKIP") || strings.Contains(body, "Math.min(video.duration") {
		t.Errorf("skip buttons should leave clamping to the video element")
	}
}
