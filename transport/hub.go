package transport

import (
	"sync"

	"go.uber.org/zap"

	"reputation-chain/logger"
	"reputation-chain/models"
)

// Hub fans round events out to subscribers. Publishing never blocks the round:
// a subscriber whose buffer is full misses the event.
type Hub struct {
	subs   map[uint64]chan models.Event
	nextID uint64
	mux    sync.Mutex
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan models.Event)}
}

// Subscribe registers a listener with the given buffer size.
// The returned cancel func unregisters it and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan models.Event, func()) {
	h.mux.Lock()
	defer h.mux.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan models.Event, buffer)
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mux.Lock()
			defer h.mux.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber that has room for it.
func (h *Hub) Publish(ev models.Event) {
	h.mux.Lock()
	defer h.mux.Unlock()

	dropped := 0
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		logger.Logger.Warn("Slow subscribers missed event",
			zap.String("type", ev.Type), zap.Int("dropped", dropped))
	}
	logger.Logger.Debug("Event published",
		zap.String("type", ev.Type), zap.Int("subscribers", len(h.subs)))
}

func (h *Hub) Subscribers() int {
	h.mux.Lock()
	defer h.mux.Unlock()
	return len(h.subs)
}
