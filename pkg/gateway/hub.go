package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// FrameType is the kind of message pushed to a browser.
type FrameType string

const (
	// FrameState carries the full State after any cart or session change.
	FrameState FrameType = "state"
	// FrameToast carries a toast.Toast.
	FrameToast FrameType = "toast"
)

// Frame is one websocket message.
type Frame struct {
	Type FrameType `json:"type"`
	Data any       `json:"data"`
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// client is one websocket connection. Frames are queued on send and
// written by writePump so a slow browser never blocks a publisher.
type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// hub fans frames out to the websocket clients of one browser context.
type hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	closed  bool

	onError func(kind string)
}

func newHub(onError func(kind string)) *hub {
	if onError == nil {
		onError = func(string) {}
	}
	return &hub{clients: make(map[*client]bool), onError: onError}
}

// Emit implements toast.Emitter. Toasts go out as FrameToast.
func (h *hub) Emit(_ string, data any) {
	h.broadcast(Frame{Type: FrameToast, Data: data})
}

// Len returns the number of connected clients.
func (h *hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) broadcast(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		h.onError("marshal")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.onError("slow_client")
			delete(h.clients, c)
			c.close()
		}
	}
}

// attach registers conn and starts its writer. The returned client is
// already queued with first, so the browser sees the current state before
// any change.
func (h *hub) attach(conn *websocket.Conn, first Frame) (*client, bool) {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if data, err := json.Marshal(first); err == nil {
		c.send <- data
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, false
	}
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	return c, true
}

func (h *hub) detach(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readPump discards incoming messages until the browser goes away. It
// blocks; run it on the upgrade handler's goroutine.
func (h *hub) readPump(c *client) {
	defer h.detach(c)
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.onError("read")
			}
			return
		}
	}
}

func (h *hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.onError("write")
				h.detach(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.detach(c)
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
