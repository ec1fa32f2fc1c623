package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"FinSignal/internal/domain/models"
	xlogger "FinSignal/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	symbol string
}

// Hub fans accepted signals out to websocket subscribers on /ws/signals.
// A subscriber may pass ?symbol= to receive a single symbol only. Slow
// subscribers whose buffer fills are disconnected.
type Hub struct {
	log *xlogger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(log *xlogger.Logger) *Hub {
	return &Hub{log: log, clients: make(map[*client]struct{})}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/signals", h.Serve)
}

// Serve upgrades the request and streams signals until the peer goes away.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	cl := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		symbol: strings.ToUpper(strings.TrimSpace(c.QueryParam("symbol"))),
	}
	if !h.add(cl) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		return conn.Close()
	}
	h.log.Debug("websocket subscriber joined", xlogger.String("symbol", cl.symbol), xlogger.Int("clients", h.Count()))

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

// Broadcast queues s for every matching subscriber without blocking.
func (h *Hub) Broadcast(s *models.Signal) {
	data, err := json.Marshal(s)
	if err != nil {
		h.log.Warn("websocket marshal failed", xlogger.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for cl := range h.clients {
		if cl.symbol != "" && cl.symbol != s.Symbol {
			continue
		}
		select {
		case cl.send <- data:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		h.log.Warn("websocket subscriber too slow, disconnecting", xlogger.String("symbol", cl.symbol))
		h.remove(cl)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for cl := range clients {
		close(cl.send)
	}
}

func (h *Hub) add(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	return true
}

// remove closes cl.send exactly once, whoever gets here first.
func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	delete(h.clients, cl)
	h.mu.Unlock()
	if ok {
		close(cl.send)
	}
}

// readPump discards client frames and keeps the pong deadline fresh.
func (h *Hub) readPump(cl *client) {
	defer h.remove(cl)
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", xlogger.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("websocket write error", xlogger.Error(err))
				h.remove(cl)
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(cl)
				return
			}
		}
	}
}
