package ws

import (
	"encoding/json"
	"sync"

	"dilemma_webapp/internal/domain"
	"dilemma_webapp/internal/logger"
)

// Hub рассылает события сессии подписанным клиентам.
// Медленный клиент с полной очередью отключается, игра его не ждет
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Subscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[c.SessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.subs[c.SessionID] = set
	}
	set[c] = struct{}{}
	logger.Debug("ws: подписка", "session_id", c.SessionID, "player_id", c.PlayerID, "subscribers", len(set))
}

// Unsubscribe снимает подписку и закрывает очередь клиента. Повторный вызов ничего не делает
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(c)
}

func (h *Hub) unsubscribeLocked(c *Client) {
	set, ok := h.subs[c.SessionID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.Send)
	if len(set) == 0 {
		delete(h.subs, c.SessionID)
	}
}

// Publish реализует service.Notifier
func (h *Hub) Publish(ev domain.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.Error("ws: не удалось сериализовать событие", "error", err, "type", ev.Type)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.subs[ev.SessionID] {
		select {
		case c.Send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, c := range slow {
		logger.Warn("ws: очередь клиента переполнена, отключаем", "session_id", c.SessionID, "player_id", c.PlayerID)
		h.unsubscribeLocked(c)
	}
	h.mu.Unlock()
}

// SubscriberCount - число подписчиков сессии
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Close отключает всех клиентов при остановке сервера
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for c := range set {
			h.unsubscribeLocked(c)
		}
	}
}
