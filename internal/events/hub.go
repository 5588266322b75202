package events

import (
	"strconv"
	"sync"
)

// UserTopic is the topic carrying one user's dispatch events.
func UserTopic(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// Hub fans events out to SSE subscribers by topic. Slow subscribers miss
// events rather than block publishers.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[chan string]struct{}
	bufSize int
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[chan string]struct{}), bufSize: 32}
}

func (h *Hub) Subscribe(topic string) chan string {
	ch := make(chan string, h.bufSize)
	h.mu.Lock()
	subs := h.clients[topic]
	if subs == nil {
		subs = make(map[chan string]struct{})
		h.clients[topic] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(topic string, ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.clients[topic]
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(h.clients, topic)
	}
	close(ch)
}

func (h *Hub) Publish(topic, evt string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients[topic] {
		select {
		case ch <- evt:
		default:
			// drop if slow
		}
	}
}

// Subscribers reports the number of open subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[topic])
}
