package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pending(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestPublishReachesTopicSubscribers(t *testing.T) {
	bus := NewBus()

	entries, unsubEntries := bus.Subscribe(TopicEntries)
	defer unsubEntries()
	moods, unsubMoods := bus.Subscribe(TopicMoods, TopicTags)
	defer unsubMoods()

	bus.Publish(TopicEntries)
	assert.True(t, pending(entries))
	assert.False(t, pending(moods))

	bus.Publish(TopicTags, TopicMoods)
	assert.True(t, pending(moods))
	assert.False(t, pending(moods), "one publish yields one signal")
}

func TestSignalsCoalesce(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(TopicEntries)
	defer unsub()

	for i := 0; i < 10; i++ {
		bus.Publish(TopicEntries)
	}

	assert.True(t, pending(ch))
	assert.False(t, pending(ch))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(TopicEntries)
	assert.Equal(t, 1, bus.Subscribers())

	unsub()
	unsub()
	assert.Equal(t, 0, bus.Subscribers())

	bus.Publish(TopicEntries)
	assert.False(t, pending(ch))
}
