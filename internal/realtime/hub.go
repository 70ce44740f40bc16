// Package realtime pushes live snapshots to websocket clients. A
// hub-and-spoke layout tracks which client watches which topic; the
// bridge keeps exactly one wrapper subscription alive per active topic
// and fans each snapshot out to the topic's clients.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/carepoint/portal-api/pkg/logger"
	"github.com/carepoint/portal-api/pkg/metrics"
)

// Message is one outbound push: the complete current snapshot for a
// topic, never a diff.
type Message struct {
	Topic     string          `json:"topic"`
	Kind      string          `json:"kind"`
	Snapshot  json.RawMessage `json:"snapshot"`
	Timestamp time.Time       `json:"timestamp"`
}

// Command is an inbound client frame.
type Command struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Hub tracks connected clients and their topic subscriptions. Topic
// lifecycle callbacks fire on 0→1 and 1→0 subscriber transitions so
// the bridge can open and dispose wrapper subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}

	// OnTopicActive and OnTopicIdle are invoked outside the hub lock.
	// Set both before any client connects.
	OnTopicActive func(topic string)
	OnTopicIdle   func(topic string)

	logger *logger.Logger
	m      *metrics.Metrics
}

// NewHub creates a hub. m may be nil.
func NewHub(log *logger.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  log.WithComponent("realtime"),
		m:       m,
	}
}

// Register adds a connected client.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.all[client] = struct{}{}
	h.mu.Unlock()

	if h.m != nil {
		h.m.WebsocketClients.Inc()
	}
}

// Unregister drops the client from every topic and closes its send
// channel. Safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.all[client]; !ok {
		h.mu.Unlock()
		return
	}

	var idle []string
	for _, topic := range client.topics() {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
				idle = append(idle, topic)
			}
		}
	}

	delete(h.all, client)
	close(client.send)
	h.mu.Unlock()

	if h.m != nil {
		h.m.WebsocketClients.Dec()
	}
	h.notifyIdle(idle)
}

// Subscribe attaches the client to topics, reporting which topics went
// active. Topics must already be validated and authorized.
func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	var activated []string
	for _, topic := range topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		if len(h.clients[topic]) == 0 {
			activated = append(activated, topic)
		}
		h.clients[topic][client] = struct{}{}
		client.addTopic(topic)
	}
	h.mu.Unlock()

	for _, topic := range activated {
		if h.OnTopicActive != nil {
			h.OnTopicActive(topic)
		}
	}
}

// Unsubscribe detaches the client from topics.
func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	var idle []string
	for _, topic := range topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
				idle = append(idle, topic)
			}
		}
		client.removeTopic(topic)
	}
	h.mu.Unlock()

	h.notifyIdle(idle)
}

// BroadcastSnapshot pushes a snapshot to every subscriber of the topic.
// Slow clients are skipped rather than blocked on.
func (h *Hub) BroadcastSnapshot(topic, kind string, snapshot interface{}) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Error(err, "failed to marshal snapshot", "topic", topic)
		return
	}
	data, err := json.Marshal(Message{
		Topic:     topic,
		Kind:      kind,
		Snapshot:  raw,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error(err, "failed to marshal message", "topic", topic)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[topic] {
		select {
		case client.send <- data:
			if h.m != nil {
				h.m.WebsocketMessages.WithLabelValues(kind).Inc()
			}
		default:
		}
	}
}

// ActiveTopics lists topics with at least one subscriber.
func (h *Hub) ActiveTopics() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	topics := make([]string, 0, len(h.clients))
	for topic := range h.clients {
		topics = append(topics, topic)
	}
	return topics
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of subscribers on one topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

func (h *Hub) notifyIdle(topics []string) {
	for _, topic := range topics {
		if h.OnTopicIdle != nil {
			h.OnTopicIdle(topic)
		}
	}
}
