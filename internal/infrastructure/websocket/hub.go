package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub fan out messages to subscribers grouped by topic
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
	logger *zap.Logger
}

// Subscription receiving end of a topic
type Subscription struct {
	hub   *Hub
	topic string
	ch    chan []byte
	once  sync.Once
}

// NewHub create a hub, each subscriber buffers up to buffer messages before
// new ones are dropped
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe register a new subscriber on topic
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{hub: h, topic: topic, ch: make(chan []byte, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Subscribers number of live subscribers on topic
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Publish send payload as JSON to every subscriber of topic, never blocks
func (h *Hub) Publish(topic string, payload interface{}) {
	msg, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode websocket message", zap.String("ws.topic", topic), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[topic] {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warn("websocket subscriber is lagging, message dropped", zap.String("ws.topic", topic))
		}
	}
}

// Messages channel closed once the subscription is closed
func (s *Subscription) Messages() <-chan []byte {
	return s.ch
}

// Close unsubscribe, safe to call more than once
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.topics[s.topic]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.topics, s.topic)
			}
		}
		close(s.ch)
	})
}
