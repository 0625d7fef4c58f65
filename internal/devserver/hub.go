package devserver

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nhle/notehub/internal/logging"
	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/realtime"
)

const writeWait = 5 * time.Second

// peer is one registered socket.
type peer struct {
	recipientID string
	conn        *websocket.Conn
	writeMu     sync.Mutex
}

func (p *peer) write(frame realtime.Frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(frame)
}

// Hub tracks registered sockets per recipient and fans out frames.
type Hub struct {
	logg    *logging.Logger
	metrics *Metrics

	mu      sync.Mutex
	clients map[string]map[*peer]struct{}
}

// NewHub creates an empty Hub.
func NewHub(logg *logging.Logger, metrics *Metrics) *Hub {
	return &Hub{
		logg:    logg,
		metrics: metrics,
		clients: make(map[string]map[*peer]struct{}),
	}
}

// add registers p and broadcasts the new online count.
func (h *Hub) add(p *peer) {
	h.mu.Lock()
	set, ok := h.clients[p.recipientID]
	if !ok {
		set = make(map[*peer]struct{})
		h.clients[p.recipientID] = set
	}
	set[p] = struct{}{}
	h.mu.Unlock()

	h.broadcastPresence()
}

// remove forgets p and broadcasts the new online count.
func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	if set, ok := h.clients[p.recipientID]; ok {
		delete(set, p)
		if len(set) == 0 {
			delete(h.clients, p.recipientID)
		}
	}
	h.mu.Unlock()

	h.broadcastPresence()
}

// Online returns how many distinct recipients have at least one socket.
func (h *Hub) Online() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) sockets() int {
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func (h *Hub) peers(recipientID string) []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*peer
	if recipientID == "" {
		for _, set := range h.clients {
			for p := range set {
				out = append(out, p)
			}
		}
		return out
	}
	for p := range h.clients[recipientID] {
		out = append(out, p)
	}
	return out
}

func (h *Hub) broadcastPresence() {
	h.mu.Lock()
	online := len(h.clients)
	h.metrics.SetConnected(h.sockets())
	h.mu.Unlock()

	frame := realtime.NewPresenceFrame(online)
	for _, p := range h.peers("") {
		if err := p.write(frame); err != nil {
			h.logg.Error(h.logg.WithRecipient(context.Background(), p.recipientID), "presence push failed", err)
		}
	}
}

// Push sends n to every socket of its recipient and returns how many
// sockets received it.
func (h *Hub) Push(ctx context.Context, n model.Notification) int {
	frame, err := realtime.NewNotificationFrame(n)
	if err != nil {
		h.logg.Error(ctx, "encoding notification frame", err)
		return 0
	}

	delivered := 0
	for _, p := range h.peers(n.RecipientID) {
		if err := p.write(frame); err != nil {
			h.logg.Error(ctx, "notification push failed", err)
			continue
		}
		delivered++
	}
	h.metrics.AddPushed(delivered)
	return delivered
}
