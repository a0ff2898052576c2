// Package stream broadcasts published particle frames to websocket clients.
package stream

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/san-kum/pbdsim/internal/cache"
	"github.com/san-kum/pbdsim/internal/sim"
	"github.com/san-kum/pbdsim/internal/store"
)

// Hub fans frames out to every connected client. Broadcast may be called
// from the simulation goroutine while ServeHTTP runs per connection.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	last    *store.FrameData
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger.With("component", "stream"),
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request, sends the latest frame and keeps the
// connection registered until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	connMu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = connMu
	last := h.last
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()
	h.logger.Debug("client connected", "remote", r.RemoteAddr)

	if last != nil {
		connMu.Lock()
		err := conn.WriteJSON(last)
		connMu.Unlock()
		if err != nil {
			return
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logger.Debug("client disconnected", "remote", r.RemoteAddr, "err", err)
			return
		}
	}
}

// Broadcast sends msg to every client, dropping those that fail.
func (h *Hub) Broadcast(msg store.FrameData) {
	h.mu.Lock()
	h.last = &msg
	h.mu.Unlock()

	h.mu.RLock()
	var failed []*websocket.Conn
	for conn, connMu := range h.clients {
		connMu.Lock()
		err := conn.WriteJSON(msg)
		connMu.Unlock()
		if err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	if len(failed) > 0 {
		h.mu.Lock()
		for _, conn := range failed {
			delete(h.clients, conn)
			conn.Close()
		}
		h.mu.Unlock()
		h.logger.Debug("dropped clients", "count", len(failed))
	}
}

// Attach broadcasts the driver's renderable positions at the end of every
// frame.
func (h *Hub) Attach(d *sim.Driver) sim.ListenerID {
	return d.On(sim.FrameEnd, func(d *sim.Driver, dt float64) {
		ar := d.Arena()
		render := ar.Renderable()
		f := cache.NewFrame(d.Time())
		for _, i := range ar.ActiveIndices() {
			_ = f.Append(i, render[i])
		}
		h.Broadcast(store.NewFrameData(f))
	})
}

// Mux serves the hub at /ws and, when e is non-nil, its metrics at /metrics.
func Mux(h *Hub, e *Exporter) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	if e != nil {
		mux.Handle("/metrics", e.Handler())
	}
	return mux
}
