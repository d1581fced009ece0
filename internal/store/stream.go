package store

import (
	"context"
	"fmt"

	"github.com/amirk1998/secure-journal/internal/events"
)

// Result is one emission of a live query.
type Result[T any] struct {
	Value T
	Err   error
}

// Stream re-emits the full result of its query after every committed change
// to the tables it watches. Close detaches it; nothing is sent after Close returns.
type Stream[T any] struct {
	C <-chan Result[T]

	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Stream[T]) Close() {
	s.cancel()
	<-s.done
}

func watch[T any](ctx context.Context, b *Backend, topics []events.Topic, run func(context.Context) (T, error)) *Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Result[T])
	done := make(chan struct{})

	// subscribe before the first run so no commit slips between query and wait
	signal, unsubscribe := b.bus.Subscribe(topics...)
	key := fmt.Sprintf("stream:%d", b.streamSeq.Add(1))

	go func() {
		defer close(done)
		defer close(out)
		defer b.limiter.Forget(key)
		defer unsubscribe()

		for {
			value, err := run(ctx)
			if ctx.Err() != nil {
				return
			}

			select {
			case out <- Result[T]{Value: value, Err: err}:
			case <-ctx.Done():
				return
			}

			select {
			case <-signal:
			case <-ctx.Done():
				return
			}

			if err := b.limiter.Wait(ctx, key); err != nil {
				return
			}
		}
	}()

	return &Stream[T]{C: out, cancel: cancel, done: done}
}
