package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"swiftdash/internal/metrics"
)

// Event is one room-scoped message. Payload carries either a full order
// snapshot or a location/status delta; consumers must be idempotent on
// duplicates carrying the same snapshot.
type Event struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	OrderID   string      `json:"orderId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// New builds an event with a fresh id and timestamp.
func New(name, orderID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Name:      name,
		OrderID:   orderID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Subscription is one watcher's membership in a room. Events arrive on
// Events(); the channel is closed when the subscriber leaves or the room is
// force-closed on a terminal transition.
type Subscription struct {
	topic Topic
	ch    chan Event
	bus   *Bus
	once  sync.Once
}

// Events returns the receive channel. It is closed exactly once.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close leaves the room. Safe to call concurrently with a room force-close.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// Bus routes order-lifecycle events to room-scoped subscribers. Publishing is
// fire-and-forget: a slow or disconnected subscriber loses the event, the
// caller is never blocked and never sees the failure.
type Bus struct {
	mu      sync.RWMutex
	rooms   map[Topic]map[*Subscription]struct{}
	buffer  int
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// DefaultBuffer is the per-subscriber channel depth.
const DefaultBuffer = 16

// NewBus returns an empty bus. metrics may be nil.
func NewBus(buffer int, m *metrics.Metrics) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		rooms:   make(map[Topic]map[*Subscription]struct{}),
		buffer:  buffer,
		metrics: m,
		log:     logrus.WithField("component", "events"),
	}
}

// Subscribe joins a room. Membership is transient and not persisted.
func (b *Bus) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan Event, b.buffer), bus: b}

	b.mu.Lock()
	room, ok := b.rooms[topic]
	if !ok {
		room = make(map[*Subscription]struct{})
		b.rooms[topic] = room
	}
	room[sub] = struct{}{}
	open := len(b.rooms)
	b.mu.Unlock()

	b.metrics.SetOpenRooms(open)
	return sub
}

// unsubscribe removes sub and closes its channel under the write lock, so a
// concurrent Publish (which sends under the read lock) can never hit a closed
// channel.
func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if room, ok := b.rooms[sub.topic]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(b.rooms, sub.topic)
		}
	}
	sub.once.Do(func() { close(sub.ch) })
	open := len(b.rooms)
	b.mu.Unlock()

	b.metrics.SetOpenRooms(open)
}

// Publish fans evt out to every current member of topic. Full buffers drop
// the event for that member only. Sends are non-blocking, so holding the read
// lock for the fan-out is cheap and keeps closes ordered against sends.
func (b *Bus) Publish(topic Topic, evt Event) {
	b.metrics.EventPublished(evt.Name)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.rooms[topic] {
		select {
		case sub.ch <- evt:
		default:
			b.metrics.EventDropped(evt.Name)
			b.log.WithFields(logrus.Fields{"event": evt.Name, "topic": string(topic)}).
				Debug("subscriber buffer full, event dropped")
		}
	}
}

// CloseTopic force-unsubscribes every member of topic. Used on terminal
// transitions so rooms cannot grow without bound; rejoining requires a fresh
// Subscribe.
func (b *Bus) CloseTopic(topic Topic) {
	b.mu.Lock()
	for sub := range b.rooms[topic] {
		sub.once.Do(func() { close(sub.ch) })
	}
	delete(b.rooms, topic)
	open := len(b.rooms)
	b.mu.Unlock()

	b.metrics.SetOpenRooms(open)
}

// Subscribers reports current membership of topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[topic])
}
