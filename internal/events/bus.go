package events

import "sync"

// Topic names a table family whose committed changes subscribers care about.
type Topic string

const (
	TopicEntries       Topic = "entries"
	TopicMoods         Topic = "moods"
	TopicTags          Topic = "tags"
	TopicMedia         Topic = "media"
	TopicTrackers      Topic = "trackers"
	TopicNotifications Topic = "notifications"
)

// Bus broadcasts "something changed" signals to every subscriber of a topic.
// Signals carry no payload and coalesce: a slow subscriber sees at most one
// pending signal, which is enough to trigger a re-query.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscription
}

type subscription struct {
	topics map[Topic]bool
	ch     chan struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscription)}
}

// Publish signals every subscriber of any of the topics. It never blocks.
func (b *Bus) Publish(topics ...Topic) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		for _, t := range topics {
			if sub.topics[t] {
				select {
				case sub.ch <- struct{}{}:
				default:
				}
				break
			}
		}
	}
}

// Subscribe returns a signal channel and a function that detaches it.
// After unsubscribe returns no further signals are delivered.
func (b *Bus) Subscribe(topics ...Topic) (<-chan struct{}, func()) {
	sub := &subscription{
		topics: make(map[Topic]bool, len(topics)),
		ch:     make(chan struct{}, 1),
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of attached subscriptions
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
