package sse

import (
	"path"
	"sync"

	"github.com/kbukum/scribe/logger"
)

// Client is one connected subscriber.
type Client struct {
	id      string
	pattern string
	events  chan []byte
}

// NewClient creates a subscriber. pattern selects the topics the client
// receives, with glob matching: "job:abc" for one job, "job:*" for all.
func NewClient(id, pattern string) *Client {
	return &Client{
		id:      id,
		pattern: pattern,
		events:  make(chan []byte, 64),
	}
}

// ID returns the client's identifier.
func (c *Client) ID() string { return c.id }

// Events is the channel the hub delivers encoded events on. It is
// closed when the client is unregistered or the hub stops.
func (c *Client) Events() <-chan []byte { return c.events }

// send delivers without blocking; a full buffer means the client is too
// slow and the event is dropped.
func (c *Client) send(data []byte) bool {
	select {
	case c.events <- data:
		return true
	default:
		return false
	}
}

// Hub fans published events out to subscribed clients by topic.
type Hub struct {
	log *logger.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	stopped bool
}

// NewHub creates a hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		log:     log.WithComponent("sse"),
		clients: make(map[string]*Client),
	}
}

// Register adds a subscriber.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		close(c.events)
		return
	}
	h.clients[c.id] = c
	h.log.Debug("client subscribed", logger.Fields("client", c.id, "pattern", c.pattern))
}

// Unregister removes a subscriber and closes its channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.events)
	}
}

// Publish encodes the event and delivers it to every client whose
// pattern matches topic. Topics are "job:<id>".
func (h *Hub) Publish(topic string, ev Event) {
	data, err := ev.Encode()
	if err != nil {
		h.log.WithError(err).Error("event not encodable")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		matched, err := path.Match(c.pattern, topic)
		if err != nil || !matched {
			continue
		}
		if !c.send(data) {
			h.log.Warn("slow client, event dropped", logger.Fields("client", c.id, "topic", topic))
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop disconnects every subscriber. Safe to call more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
}
