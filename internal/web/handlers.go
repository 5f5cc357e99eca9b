package web

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/cjeanneret/photobox/internal/logic/orchestrator"
)

// Firer starts a capture on behalf of an HTTP caller.
// Implemented by trigger.Dispatcher.
type Firer interface {
	Fire(source orchestrator.Source) (orchestrator.Outcome, error)
}

// QuotaReader exposes the daily counter to the API.
type QuotaReader interface {
	Remaining() int
	Limit() int
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	firer    Firer
	quota    QuotaReader
	events   *Broadcaster
	logs     *Broadcaster
	staticFS fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(firer Firer, quota QuotaReader, events, logs *Broadcaster, staticFS fs.FS) *Handlers {
	return &Handlers{
		firer:    firer,
		quota:    quota,
		events:   events,
		logs:     logs,
		staticFS: staticFS,
	}
}

type captureResponse struct {
	OK    bool   `json:"ok"`
	URL   string `json:"url,omitempty"`
	Saved bool   `json:"saved"`
	Error string `json:"error,omitempty"`
}

// HandleCapture handles POST /capture. It waits for the full sequence
// and reports the outcome: 200 on success, 409 while another capture is
// active, 403 when today's quota is exhausted, 500 when the capture
// itself failed.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.firer.Fire(orchestrator.SourceHTTP)
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		writeJSON(w, http.StatusConflict, captureResponse{Error: "Busy"})
	case errors.Is(err, orchestrator.ErrLimitReached):
		writeJSON(w, http.StatusForbidden, captureResponse{Error: "Daily limit reached"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, captureResponse{Error: "Capture failed"})
	default:
		resp := captureResponse{OK: true, Saved: outcome.Saved}
		if outcome.Saved {
			resp.URL = "/photos/" + outcome.Filename
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleQuota handles GET /quota.
func (h *Handlers) HandleQuota(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"limit":     h.quota.Limit(),
		"remaining": h.quota.Remaining(),
	})
}

// HandleEvents handles GET /events: the long-lived notification stream.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, h.events)
}

// HandleLogStream handles GET /logs/stream: operational log lines.
func (h *Handlers) HandleLogStream(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, h.logs)
}

// stream serves an SSE connection fed from a broadcaster.
func (h *Handlers) stream(w http.ResponseWriter, r *http.Request, b *Broadcaster) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := b.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
