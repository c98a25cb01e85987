// Package hub pushes events to every connected dashboard over WebSocket.
//
// Broadcast never blocks: each client has a bounded queue and a client whose
// queue is full misses the event. There is no replay for clients that fall
// behind or reconnect.
package hub

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/itohio/adcscope/pkg/acquire"
	"github.com/itohio/adcscope/pkg/metrics"
)

// EventNewData carries one acquisition frame.
const EventNewData = "new_data"

const (
	// DefaultClientBuffer is the per-client queue length.
	DefaultClientBuffer = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ErrClosed is returned by Broadcast after Close.
var ErrClosed = errors.New("hub is closed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is the envelope written to clients.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	upgrader websocket.Upgrader
	bufSize  int
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
	wg      sync.WaitGroup
}

var _ acquire.Emitter = (*Hub)(nil)

// New creates a hub. bufSize <= 0 selects DefaultClientBuffer.
func New(bufSize int, m *metrics.Metrics, logger *zap.Logger) *Hub {
	if bufSize <= 0 {
		bufSize = DefaultClientBuffer
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard may be opened through any host name.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		bufSize: bufSize,
		metrics: m,
		logger:  logger,
		clients: make(map[string]*client),
	}
}

// ServeHTTP upgrades the request and registers the connection as a client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   xid.New().String(),
		conn: conn,
		send: make(chan []byte, h.bufSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.clients[c.id] = c
	h.wg.Add(2)
	h.mu.Unlock()

	h.metrics.Clients.Inc()
	h.logger.Info("client connected", zap.String("client", c.id), zap.String("remote", r.RemoteAddr))

	go h.writePump(c)
	go h.readPump(c)
}

// Emit broadcasts a frame as a new_data event.
func (h *Hub) Emit(f acquire.Frame) {
	if err := h.Broadcast(EventNewData, f); err != nil && !errors.Is(err, ErrClosed) {
		h.logger.Warn("failed to broadcast frame", zap.Error(err))
	}
}

// Broadcast encodes the event once and queues it to every client.
func (h *Hub) Broadcast(name string, data interface{}) error {
	msg, err := json.Marshal(Event{Name: name, Data: data})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}

	for _, c := range h.clients {
		select {
		case c.send <- msg:
			h.metrics.EventsSent.Inc()
		default:
			h.metrics.EventsDropped.Inc()
			h.logger.Debug("client queue full, dropping event", zap.String("client", c.id))
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their goroutines.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
		h.metrics.Clients.Dec()
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}

// unregister removes c; safe to call more than once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.metrics.Clients.Dec()
	h.logger.Info("client disconnected", zap.String("client", c.id))
}

// writePump drains the client queue onto the connection. It owns all writes.
func (h *Hub) writePump(c *client) {
	defer h.wg.Done()
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
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("write failed", zap.String("client", c.id), zap.Error(err))
				h.unregister(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// readPump consumes client messages to process control frames and notice
// disconnects. Clients are not expected to send anything.
func (h *Hub) readPump(c *client) {
	defer h.wg.Done()
	defer h.unregister(c)

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
