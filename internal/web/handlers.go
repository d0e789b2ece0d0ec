package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/BMFocus/internal/logic/control"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Control     *control.Handler
	staticFS    fs.FS
	// ctx outlives single requests; background work started by a client
	// (camera discovery) runs under it.
	ctx      context.Context
	upgrader websocket.Upgrader
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(ctx context.Context, broadcaster *StatusBroadcaster, ctrl *control.Handler, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Control:     ctrl,
		staticFS:    staticFS,
		ctx:         ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // the controller runs on its own access point
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// HandleConfig returns the focus settings as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Control.State().SettingsSnapshot)
}

// HandleCameras returns the registered cameras as JSON.
func (h *Handlers) HandleCameras(w http.ResponseWriter, r *http.Request) {
	st := h.Control.State()
	writeJSON(w, struct {
		ActiveIndex int `json:"active_index"`
		Cameras     any `json:"cameras"`
	}{st.ActiveIndex, st.Cameras})
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

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
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
