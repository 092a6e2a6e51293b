package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTopicsAreScopedByKind(t *testing.T) {
	id := primitive.NewObjectID()
	assert.NotEqual(t, OrderTopic(id), BranchTopic(id))
	assert.NotEqual(t, BranchTopic(id), CustomerTopic(id))
	assert.Equal(t, OrderTopic(id), OrderTopic(id))
}

func TestPublishFansOutToRoomMembersOnly(t *testing.T) {
	bus := NewBus(4, nil)
	topic := OrderTopic(primitive.NewObjectID())
	other := OrderTopic(primitive.NewObjectID())

	first := bus.Subscribe(topic)
	second := bus.Subscribe(topic)
	outsider := bus.Subscribe(other)
	defer first.Close()
	defer second.Close()
	defer outsider.Close()

	evt := New(EventOrderStatusUpdated, "abc", nil)
	bus.Publish(topic, evt)

	got := <-first.Events()
	assert.Equal(t, evt.ID, got.ID)
	got = <-second.Events()
	assert.Equal(t, evt.ID, got.ID)

	select {
	case leaked := <-outsider.Events():
		t.Fatalf("event leaked into unrelated room: %+v", leaked)
	default:
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	bus := NewBus(1, nil)
	topic := OrderTopic(primitive.NewObjectID())

	sub := bus.Subscribe(topic)
	defer sub.Close()

	bus.Publish(topic, New(EventOrderStatusUpdated, "a", nil))
	bus.Publish(topic, New(EventOrderStatusUpdated, "b", nil))
	bus.Publish(topic, New(EventOrderStatusUpdated, "c", nil))

	// Only the first fits; the rest are dropped, never blocked on.
	assert.Len(t, sub.Events(), 1)
}

func TestCloseTopicForceUnsubscribesEveryone(t *testing.T) {
	bus := NewBus(4, nil)
	topic := OrderTopic(primitive.NewObjectID())

	first := bus.Subscribe(topic)
	second := bus.Subscribe(topic)
	require.Equal(t, 2, bus.Subscribers(topic))

	bus.CloseTopic(topic)
	assert.Equal(t, 0, bus.Subscribers(topic))

	_, open := <-first.Events()
	assert.False(t, open)
	_, open = <-second.Events()
	assert.False(t, open)

	// Leaving after a force-close must be harmless.
	first.Close()
	second.Close()
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	bus := NewBus(4, nil)
	topic := OrderTopic(primitive.NewObjectID())

	sub := bus.Subscribe(topic)
	sub.Close()
	sub.Close()
	bus.CloseTopic(topic)

	assert.Equal(t, 0, bus.Subscribers(topic))
}

func TestPublishToClosedRoomIsNoop(t *testing.T) {
	bus := NewBus(4, nil)
	topic := OrderTopic(primitive.NewObjectID())

	sub := bus.Subscribe(topic)
	bus.CloseTopic(topic)

	bus.Publish(topic, New(EventOrderStatusUpdated, "a", nil))
	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestConcurrentPublishAndClose(t *testing.T) {
	bus := NewBus(2, nil)
	topic := OrderTopic(primitive.NewObjectID())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sub := bus.Subscribe(topic)
		wg.Add(2)
		go func(s *Subscription) {
			defer wg.Done()
			for range s.Events() {
			}
		}(sub)
		go func(s *Subscription) {
			defer wg.Done()
			s.Close()
		}(sub)
	}
	for i := 0; i < 50; i++ {
		bus.Publish(topic, New(EventOrderStatusUpdated, "x", nil))
	}
	bus.CloseTopic(topic)
	wg.Wait()

	assert.Equal(t, 0, bus.Subscribers(topic))
}
