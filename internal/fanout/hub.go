package fanout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"launchpad-indexer/internal/observability"
)

// ErrPrivateTopic rejects a subscription to a wallet channel the
// connection is not authenticated for.
var ErrPrivateTopic = errors.New("topic is private to another wallet")

// Hub routes published envelopes to topic subscribers. All membership
// state lives behind one mutex; publishing marshals each envelope once
// and fans the bytes out with non-blocking sends.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	conns   map[*Conn]struct{}
	topics  map[string]map[*Conn]struct{}
	wallets map[string]map[*Conn]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger.With("component", "fanout"),
		conns:   make(map[*Conn]struct{}),
		topics:  make(map[string]map[*Conn]struct{}),
		wallets: make(map[string]map[*Conn]struct{}),
	}
}

// register adds a connection to the hub and its wallet index.
func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(c.send)
		return
	}
	h.conns[c] = struct{}{}
	if c.wallet != "" {
		if h.wallets[c.wallet] == nil {
			h.wallets[c.wallet] = make(map[*Conn]struct{})
		}
		h.wallets[c.wallet][c] = struct{}{}
	}
	observability.DefaultMetrics.ActiveConnections.Set(float64(len(h.conns)))
}

// unregister removes a connection from every topic it joined. Cost is
// proportional to the connection's own subscriptions.
func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Conn) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)

	for topic := range c.topics {
		if members := h.topics[topic]; members != nil {
			delete(members, c)
			if len(members) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	c.topics = make(map[string]struct{})

	if c.wallet != "" {
		if members := h.wallets[c.wallet]; members != nil {
			delete(members, c)
			if len(members) == 0 {
				delete(h.wallets, c.wallet)
			}
		}
	}

	close(c.send)
	observability.DefaultMetrics.ActiveConnections.Set(float64(len(h.conns)))
	h.updateSubscriptionGaugeLocked()
}

// Subscribe adds the connection to a topic. Wallet channels are only
// joinable by the matching authenticated connection.
func (h *Hub) Subscribe(c *Conn, topic string) error {
	if wallet, ok := strings.CutPrefix(topic, "wallet:"); ok && wallet != c.wallet {
		return ErrPrivateTopic
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; !ok {
		return nil
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Conn]struct{})
	}
	h.topics[topic][c] = struct{}{}
	c.topics[topic] = struct{}{}
	h.updateSubscriptionGaugeLocked()
	return nil
}

// Unsubscribe removes the connection from a topic.
func (h *Hub) Unsubscribe(c *Conn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members := h.topics[topic]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(c.topics, topic)
	h.updateSubscriptionGaugeLocked()
}

// Publish delivers the envelope to every subscriber of the topic.
// Clients whose buffers are full are dropped during the walk.
func (h *Hub) Publish(topic string, env Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal envelope", "type", env.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(h.topics[topic], msg)
}

// PublishToWallet delivers the envelope to every connection
// authenticated as the wallet, regardless of topic subscriptions.
func (h *Hub) PublishToWallet(wallet string, env Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal envelope", "type", env.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(h.wallets[wallet], msg)
}

func (h *Hub) deliverLocked(members map[*Conn]struct{}, msg []byte) {
	var dead []*Conn
	for c := range members {
		if !c.trySend(msg) {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		h.logger.Warn("dropping slow client", "conn_id", c.id)
		observability.RecordSlowClientDropped()
		h.removeLocked(c)
	}
}

// Close drops every connection. Used on shutdown; the write pumps see
// their send channels close and send websocket close frames.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.conns {
		h.removeLocked(c)
	}
}

// ConnCount returns the number of live connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) updateSubscriptionGaugeLocked() {
	total := 0
	for _, members := range h.topics {
		total += len(members)
	}
	observability.DefaultMetrics.TopicSubscriptions.Set(float64(total))
}
