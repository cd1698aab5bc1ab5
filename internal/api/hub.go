package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradeloop/internal/report"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub fans finished cycles out to WebSocket clients. It implements
// report.Reporter; a client that cannot keep up loses messages rather than
// slowing the loop.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	latest  []byte
	seq     int64
}

var _ report.Reporter = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

// client is a single WebSocket peer.
type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Report encodes c as a "cycle" envelope, remembers it as the latest and
// broadcasts it.
func (h *Hub) Report(_ context.Context, c report.Cycle) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.seq++
	env := envelope("cycle", h.seq, time.Now(), data)
	h.latest = env
	for cl := range h.clients {
		select {
		case cl.send <- env:
		default:
		}
	}
	h.mu.Unlock()
	return nil
}

// envelope builds {"type":...,"seq":N,"ts":"...","data":...} without
// re-marshalling data.
func envelope(typ string, seq int64, now time.Time, data []byte) []byte {
	buf := make([]byte, 0, len(data)+96)
	buf = append(buf, `{"type":"`...)
	buf = append(buf, typ...)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"ts":"`...)
	buf = now.UTC().AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, '}')
	return buf
}

// ServeHTTP upgrades the request and registers the client. The latest
// cycle, if any, is queued before anything else.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] ws upgrade error: %v", err)
		return
	}
	conn.EnableWriteCompression(true)

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer), hub: h}

	h.mu.Lock()
	if h.latest != nil {
		cl.send <- h.latest
	}
	h.clients[cl] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[api] ws client connected (%d total)", count)

	go cl.writePump()
	go cl.readPump()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	if h.clients[cl] {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services control frames and client pings; the stream is
// one-way.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
		log.Println("[api] ws client disconnected")
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var ping struct {
			Ping int64 `json:"ping"`
		}
		if json.Unmarshal(msg, &ping) != nil || ping.Ping <= 0 {
			continue
		}
		pong, _ := json.Marshal(map[string]int64{"pong": ping.Ping, "server_ts": time.Now().UnixMilli()})
		c.hub.mu.RLock()
		if c.hub.clients[c] {
			select {
			case c.send <- pong:
			default:
			}
		}
		c.hub.mu.RUnlock()
	}
}
