package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/yevheniidehtiar/locust-love-django/internal/profiling"
	"github.com/yevheniidehtiar/locust-love-django/internal/settings"
)

const streamKeepAlive = 15 * time.Second

func (h *Handler) recentLimit() int {
	if h.Settings == nil {
		return settings.ApplyDefaults(settings.Settings{}).RecentLimit
	}
	return h.Settings.Current().RecentLimit
}

func (h *Handler) profileList(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), h.recentLimit(), settings.MaxLimit*10)
	items, err := h.Reports.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) profileStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Reports.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) profileClear(w http.ResponseWriter, r *http.Request) {
	if err := h.Reports.Clear(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "cleared"})
}

type findingLookup struct {
	Finding profiling.Finding `json:"finding"`
	Label   string            `json:"label"`
	Request struct {
		ID         string    `json:"id"`
		Method     string    `json:"method"`
		Path       string    `json:"path"`
		Status     int       `json:"status"`
		QueryCount int       `json:"query_count"`
		CreatedAt  time.Time `json:"created_at"`
	} `json:"request"`
}

// profileByFinding resolves a UUID sent in a profile header.
func (h *Handler) profileByFinding(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]
	report, finding, err := h.Reports.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var out findingLookup
	out.Finding = finding
	out.Label = finding.Kind.Label()
	out.Request.ID = report.ID
	out.Request.Method = report.Method
	out.Request.Path = report.Path
	out.Request.Status = report.Status
	out.Request.QueryCount = report.QueryCount
	out.Request.CreatedAt = report.CreatedAt
	writeJSON(w, http.StatusOK, out)
}

// profileStream sends every newly saved report as a server-sent event until
// the client goes away.
func (h *Handler) profileStream(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "streaming not configured"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	ch, cancel := h.Hub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case report, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(report)
			if err != nil {
				h.logger().Warn("encode profile event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: report\nid: %s\ndata: %s\n\n", report.ID, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Settings.Current())
}

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var next settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	saved, err := h.Settings.Update(next)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
