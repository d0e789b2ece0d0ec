package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/BMFocus/internal/protocol"
)

// StatusEvent represents a single log line for SSE.
type StatusEvent struct {
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

// StatusBroadcaster distributes log lines and controller events to
// multiple clients. SSE clients receive both; WebSocket clients only
// receive events.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]bool // value: events only
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]bool),
	}
}

// Subscribe returns a channel that receives log lines and events, and a
// cleanup function. The caller must call the returned cleanup when done
// (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	return b.subscribe(false)
}

// SubscribeEvents is Subscribe restricted to events published with Publish.
func (b *StatusBroadcaster) SubscribeEvents() (<-chan string, func()) {
	return b.subscribe(true)
}

func (b *StatusBroadcaster) subscribe(eventsOnly bool) (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = eventsOnly
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Broadcast sends a log line to all log subscribers.
// Messages are sent as JSON: {"t":"...","l":"info","msg":"..."}
// Slow clients may miss messages (non-blocking, buffered).
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	evt := StatusEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	b.send(string(data), false)
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// Publish sends an event to every subscriber.
func (b *StatusBroadcaster) Publish(msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	b.send(string(data), true)
}

func (b *StatusBroadcaster) send(payload string, event bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, eventsOnly := range b.clients {
		if eventsOnly && !event {
			continue
		}
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to SSE clients.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps StatusBroadcaster as io.Writer for use with debug.SetOutput.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.BroadcastMsg(msg)
	}
	return len(p), nil
}
