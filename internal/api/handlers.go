package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"incident-review/internal/assistant"
	"incident-review/internal/chart"
	"incident-review/internal/playback"
	"incident-review/internal/timeline"
	"incident-review/internal/websocket"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"incident": s.incident.ID,
	})
}

func (s *Server) handleIncident(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"incident": s.incident,
		"summary":  timeline.Summarize(s.incident.ID, s.samples, len(s.reports)),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{}
	if s.db != nil {
		dbStats, err := s.db.GetStats(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for k, v := range dbStats {
			stats[k] = v
		}
	}
	if s.cache != nil {
		stats["cache"] = s.cache.Stats()
	}
	if s.hub != nil {
		stats["websocket"] = s.hub.Stats()
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	respondWithMeta(w, s.samples, &meta{Total: len(s.samples)})
}

func (s *Server) handleCurrentSample(w http.ResponseWriter, r *http.Request) {
	t, err := s.playbackTime(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sample, ok := timeline.Lookup(s.samples, t)
	if !ok {
		respondError(w, http.StatusNotFound, timeline.NoSampleMessage)
		return
	}
	respondWithMeta(w, sample, &meta{Time: t})
}

type metricsResponse struct {
	Found   bool                  `json:"found"`
	Metrics *timeline.Metrics     `json:"metrics,omitempty"`
	Cards   []timeline.MetricCard `json:"cards,omitempty"`
	Notice  string                `json:"notice,omitempty"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	t, err := s.playbackTime(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := metricsResponse{Notice: timeline.NoSampleMessage}
	if m, ok := timeline.MetricsAt(s.samples, t); ok {
		resp = metricsResponse{Found: true, Metrics: m, Cards: m.Cards()}
	}
	respondWithMeta(w, resp, &meta{Time: t})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	t, err := s.playbackTime(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	window := timeline.Window(s.samples, t)
	respondWithMeta(w, window, &meta{Total: len(window.Rows), Time: t})
}

type reportsResponse struct {
	Reports []timeline.ReportEntry `json:"reports"`
	Notice  string                 `json:"notice,omitempty"`
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	t, err := s.playbackTime(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := reportsResponse{Reports: timeline.ReportsNear(s.samples, t)}
	if len(resp.Reports) == 0 {
		resp.Reports = []timeline.ReportEntry{}
		resp.Notice = timeline.NoReportsMessage
	}
	respondWithMeta(w, resp, &meta{Total: len(resp.Reports), Time: t})
}

func (s *Server) frame(t float64) websocket.FramePayload {
	return websocket.FramePayload{
		Frame:    timeline.Snapshot(s.samples, t),
		Playback: s.session.State(),
	}
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	t, err := s.playbackTime(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.frame(t))
}

func (s *Server) handleChart(format chart.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		opts := chart.Options{Format: format}
		q := r.URL.Query()

		if q.Get("t") != "" {
			t, err := s.playbackTime(r)
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			opts.Marker = &t
		}
		for name, dst := range map[string]*int{"width": &opts.Width, "height": &opts.Height} {
			v := q.Get(name)
			if v == "" {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 100 || n > 4000 {
				respondError(w, http.StatusBadRequest, name+" must be between 100 and 4000")
				return
			}
			*dst = n
		}

		key := opts.CacheKey(s.incident.ID)
		if s.cache != nil {
			if data, ok := s.cache.Get(r.Context(), key); ok {
				writeImage(w, opts.ContentType(), "HIT", data)
				return
			}
		}

		var buf bytes.Buffer
		if err := s.charts.Render(r.Context(), &buf, s.samples, opts); err != nil {
			if errors.Is(err, chart.ErrNotEnoughData) {
				respondError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.cache != nil {
			if err := s.cache.Set(r.Context(), key, buf.Bytes()); err != nil {
				slog.Warn("chart cache write failed", "key", key, "error", err)
			}
		}
		w.Header().Set("X-Render-Ms", strconv.FormatInt(time.Since(start).Milliseconds(), 10))
		writeImage(w, opts.ContentType(), "MISS", buf.Bytes())
	}
}

func writeImage(w http.ResponseWriter, contentType, cacheStatus string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handlePlaybackState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.session.State())
}

type seekRequest struct {
	Time *float64 `json:"time"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Time == nil {
		respondError(w, http.StatusBadRequest, "time is required")
		return
	}
	s.session.Seek(*req.Time)
	respondJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Toggle(); err != nil {
		if errors.Is(err, playback.ErrNoMedia) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.hub != nil {
		s.hub.Notify()
	}
	respondJSON(w, http.StatusOK, s.session.State())
}

type skipRequest struct {
	Seconds *float64 `json:"seconds"`
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	var req skipRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	delta := playback.SkipStep
	if req.Seconds != nil {
		delta = *req.Seconds
	}
	s.session.Skip(delta)
	respondJSON(w, http.StatusOK, s.session.State())
}

type createSessionRequest struct {
	Channel string `json:"channel"`
}

func (s *Server) handleCreateChatSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	if req.Channel == "" {
		req.Channel = "web"
	}

	session, messages, err := s.chat.StartSession(r.Context(), req.Channel)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"session":  session,
		"messages": messages,
	})
}

func (s *Server) handleGetChatSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	session, messages, err := s.chat.History(r.Context(), id)
	if err != nil {
		if errors.Is(err, assistant.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithMeta(w, map[string]interface{}{
		"session":  session,
		"messages": messages,
	}, &meta{Total: len(messages)})
}

type chatMessageRequest struct {
	Content string   `json:"content"`
	Time    *float64 `json:"time"`
}

func (s *Server) handlePostChatMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	t := s.session.Clock.CurrentTime()
	if req.Time != nil {
		t = *req.Time
	}

	user, reply, err := s.chat.Ask(r.Context(), id, t, req.Content)
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, assistant.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"user":      user,
		"assistant": reply,
	})
}
