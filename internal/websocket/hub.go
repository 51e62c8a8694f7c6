package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/mhire/liveavatar/domain/entities"
)

// Hub tracks live progress subscribers by client id. Registration changes go
// through Run; Publish may be called from any goroutine.
type Hub struct {
	subscribers map[string]*Client
	mu          sync.RWMutex

	joins  chan *Client
	leaves chan *Client

	done     chan struct{}
	stopOnce sync.Once

	validator *MessageValidator
	logger    *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]*Client),
		joins:       make(chan *Client),
		leaves:      make(chan *Client),
		done:        make(chan struct{}),
		validator:   NewMessageValidator(),
		logger:      logger,
	}
}

// Run owns subscriber bookkeeping until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.joins:
			h.attach(c)
		case c := <-h.leaves:
			h.detach(c)
		case <-h.done:
			h.detachAll()
			return
		}
	}
}

// Stop disconnects every subscriber and ends Run. Safe to call twice.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	if previous, ok := h.subscribers[c.id]; ok {
		close(previous.outbox)
	}
	h.subscribers[c.id] = c
	h.mu.Unlock()
	h.logger.Info("Client registered", zap.String("clientID", c.id))
}

func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	// a reconnect may already own this id
	if h.subscribers[c.id] == c {
		delete(h.subscribers, c.id)
		close(c.outbox)
	}
	h.mu.Unlock()
	h.logger.Info("Client unregistered", zap.String("clientID", c.id))
}

func (h *Hub) detachAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.subscribers {
		close(c.outbox)
		delete(h.subscribers, id)
	}
}

// Publish pushes event to clientID. Events for unknown or slow clients are
// dropped.
func (h *Hub) Publish(clientID string, event entities.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode progress event", zap.Error(err))
		return
	}
	h.deliver(clientID, payload)
}

func (h *Hub) ActiveClients() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.subscribers))
	for id := range h.subscribers {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) deliver(clientID string, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.subscribers[clientID]
	if !ok {
		return false
	}
	select {
	case c.outbox <- payload:
		return true
	default:
		h.logger.Warn("Client send buffer full, dropping message", zap.String("clientID", clientID))
		return false
	}
}
