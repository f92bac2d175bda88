package sse

import (
	"sync"
	"time"
)

// DefaultRetention — сколько хранится история завершённого потока
const DefaultRetention = time.Hour

const liveBuffer = 64

// topic — история и подписчики одного runID
type topic struct {
	history  []string
	subs     []chan string
	closed   bool
	closedAt time.Time
}

// Hub — hub для SSE по runID. Сообщения запоминаются, поэтому клиент,
// подключившийся позже, получает всё с начала потока.
type Hub struct {
	mu        sync.Mutex
	topics    map[string]*topic
	retention time.Duration
	now       func() time.Time
}

// NewHub создаёт hub; история закрытого потока удаляется спустя retention
func NewHub(retention time.Duration) *Hub {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Hub{
		topics:    map[string]*topic{},
		retention: retention,
		now:       time.Now,
	}
}

func (h *Hub) topic(id string) *topic {
	t, ok := h.topics[id]
	if !ok {
		t = &topic{}
		h.topics[id] = t
	}
	return t
}

// sweep удаляет закрытые потоки старше retention; вызывается под h.mu
func (h *Hub) sweep() {
	now := h.now()
	for id, t := range h.topics {
		if t.closed && now.Sub(t.closedAt) > h.retention {
			delete(h.topics, id)
		}
	}
}

// Subscribe подписывает клиента на id, возвращает канал и функцию-unsubscribe.
// В канал сначала попадает накопленная история; для закрытого потока
// канал после неё сразу закрыт.
func (h *Hub) Subscribe(id string) (<-chan string, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sweep()

	t := h.topic(id)
	ch := make(chan string, len(t.history)+liveBuffer)
	for _, msg := range t.history {
		ch <- msg
	}
	if t.closed {
		close(ch)
		return ch, func() {}
	}
	t.subs = append(t.subs, ch)

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		t, ok := h.topics[id]
		if !ok {
			return
		}
		for i, c := range t.subs {
			if c == ch {
				t.subs = append(t.subs[:i], t.subs[i+1:]...)
				close(ch)
				break
			}
		}
	}

	return ch, cancel
}

// Publish запоминает сообщение и отсылает его всем подписчикам runID
func (h *Hub) Publish(id, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.topic(id)
	if t.closed {
		return
	}
	t.history = append(t.history, msg)
	for _, ch := range t.subs {
		select {
		case ch <- msg:
		default:
			// игнорируем, если канал забит
		}
	}
}

// Close завершает поток id: каналы подписчиков закрываются, история
// хранится ещё retention
func (h *Hub) Close(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.topic(id)
	if t.closed {
		return
	}
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
	t.closed = true
	t.closedAt = h.now()
	h.sweep()
}

// Len — число потоков, которые hub сейчас хранит
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics)
}
