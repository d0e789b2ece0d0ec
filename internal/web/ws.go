package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/BMFocus/internal/debug"
	"github.com/cjeanneret/BMFocus/internal/logic/control"
	"github.com/cjeanneret/BMFocus/internal/protocol"
)

const (
	wsReadLimit    = 4096
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 10 * time.Second
)

// wsClient is one connected control UI.
type wsClient struct {
	conn *websocket.Conn
	h    *Handlers
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// HandleWebSocket handles GET /ws: inbound messages go to the control
// handler, controller events are pushed back. Errors caused by a message
// are reported to the client that sent it only.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Error(fmt.Errorf("websocket upgrade: %w", err))
		return
	}

	c := &wsClient{
		conn: conn,
		h:    h,
		send: make(chan []byte, 64),
	}
	events, unsub := h.Broadcaster.SubscribeEvents()

	go c.writePump()
	go c.forward(events)
	c.sendMessage(h.Control.StateMessage())
	debug.Info("Control client connected from %s", r.RemoteAddr)

	c.readPump()
	unsub()
	c.Close()
	debug.Info("Control client %s left", r.RemoteAddr)
}

func (c *wsClient) forward(events <-chan string) {
	for e := range events {
		c.enqueue([]byte(e))
	}
}

func (c *wsClient) readPump() {
	c.conn.SetReadLimit(wsReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				debug.Error(fmt.Errorf("websocket: %w", err))
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *wsClient) handleMessage(data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		c.sendMessage(protocol.NewError(protocol.ErrInvalidMessage, err.Error()))
		return
	}
	if err := c.h.Control.Handle(c.h.ctx, msg); err != nil {
		debug.Live("Control %s failed: %v", msg.Type, err)
		c.sendMessage(protocol.NewError(control.ErrorCode(err), err.Error()))
	}
}

func (c *wsClient) sendMessage(m *protocol.Message) {
	data, err := json.Marshal(m)
	if err != nil {
		debug.Error(err)
		return
	}
	c.enqueue(data)
}

func (c *wsClient) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		debug.Verbose("Control client send buffer full, dropping message")
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close stops the write pump, which closes the connection.
func (c *wsClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
