// Package events fans out article change notifications to TCP and WebSocket
// subscribers as line-delimited JSON.
package events

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"collabwiki/internal/article"
	"collabwiki/internal/logger"
)

const (
	writeTimeout = 2 * time.Second
	// DefaultQueueSize bounds events waiting for delivery. Publish drops
	// events once it is full rather than block a request.
	DefaultQueueSize = 256
)

var _ article.Publisher = (*Hub)(nil)

// Hub fans events out to subscribers. A single delivery loop drains the queue,
// so every subscriber sees events in publish order.
type Hub struct {
	mu        sync.Mutex
	clients   map[net.Conn]struct{}
	wsClients map[*websocket.Conn]struct{}
	log       *logger.Logger

	qmu     sync.RWMutex
	queue   chan article.Event
	closed  bool
	pending sync.WaitGroup
	done    chan struct{}
	dropped atomic.Int64
}

type Stats struct {
	TCPClients int   `json:"tcp_clients"`
	WSClients  int   `json:"ws_clients"`
	Dropped    int64 `json:"dropped_events"`
}

type HubOption func(*Hub)

func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queue = make(chan article.Event, n)
		}
	}
}

// NewHub starts the delivery loop; Stop ends it.
func NewHub(log *logger.Logger, opts ...HubOption) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	h := &Hub{
		clients:   make(map[net.Conn]struct{}),
		wsClients: make(map[*websocket.Conn]struct{}),
		log:       log.With("component", "events"),
		queue:     make(chan article.Event, DefaultQueueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for ev := range h.queue {
		h.BroadcastJSON(ev)
		h.pending.Done()
	}
}

func (h *Hub) Add(conn net.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) AddWS(ws *websocket.Conn) {
	h.mu.Lock()
	h.wsClients[ws] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// Publish queues ev for delivery and never blocks. Events published after
// Stop, or while the queue is full, are dropped.
func (h *Hub) Publish(ev article.Event) {
	h.qmu.RLock()
	defer h.qmu.RUnlock()
	if h.closed {
		return
	}

	h.pending.Add(1)
	select {
	case h.queue <- ev:
	default:
		h.pending.Done()
		h.dropped.Add(1)
		h.log.Warn("event queue full, dropping event", "type", ev.Type, "article_id", ev.ArticleID, "version", ev.Version)
	}
}

// Wait blocks until every queued event has been delivered.
func (h *Hub) Wait() {
	h.pending.Wait()
}

// Stop delivers what is already queued and ends the delivery loop.
func (h *Hub) Stop() {
	h.qmu.Lock()
	if !h.closed {
		h.closed = true
		close(h.queue)
	}
	h.qmu.Unlock()
	<-h.done
}

func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Error("marshal event failed", "err", err)
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		w := bufio.NewWriter(c)
		if _, err := w.Write(b); err != nil {
			h.dropTCP(c, err)
			continue
		}
		if err := w.Flush(); err != nil {
			h.dropTCP(c, err)
		}
	}

	for ws := range h.wsClients {
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.Warn("dropping websocket subscriber", "err", err)
			_ = ws.Close()
			delete(h.wsClients, ws)
		}
	}
}

// dropTCP must be called with h.mu held.
func (h *Hub) dropTCP(c net.Conn, err error) {
	h.log.Warn("dropping tcp subscriber", "remote", c.RemoteAddr().String(), "err", err)
	_ = c.Close()
	delete(h.clients, c)
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) + len(h.wsClients)
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.clients),
		WSClients:  len(h.wsClients),
		Dropped:    h.dropped.Load(),
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
	for ws := range h.wsClients {
		_ = ws.Close()
		delete(h.wsClients, ws)
	}
}

type welcome struct {
	Type      string `json:"type"`
	Transport string `json:"transport"`
	Clients   int    `json:"clients"`
}

func (h *Hub) welcome(transport string) []byte {
	b, _ := json.Marshal(welcome{Type: "welcome", Transport: transport, Clients: h.Count()})
	return append(b, '\n')
}
