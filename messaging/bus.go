// Package messaging fans accepted election events out to observers.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"sealed-ballot/models"
)

// Publisher delivers an event that has already been journaled and applied.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Bus is an in-process publish/subscribe hub. Subscribers that fall behind
// lose events rather than slowing the writer down.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*subscription]struct{}
	buffer      int
	logger      *slog.Logger
}

type subscription struct {
	electionID string
	ch         chan models.Event
}

func NewBus(buffer int, logger *slog.Logger) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[*subscription]struct{}),
		buffer:      buffer,
		logger:      logger,
	}
}

// Subscribe returns a channel of events for electionID ("" for every
// election) and a function that ends the subscription and closes the channel.
func (b *Bus) Subscribe(electionID string) (<-chan models.Event, func()) {
	sub := &subscription{electionID: electionID, ch: make(chan models.Event, b.buffer)}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, sub)
			close(sub.ch)
			b.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

func (b *Bus) Publish(ctx context.Context, event models.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		if sub.electionID != "" && sub.electionID != event.ElectionID {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub.ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"event", "bus_publish_drop",
				"module", "messaging",
				"layer", "platform",
				"election_id", event.ElectionID,
				"event_id", event.ID,
				"event_type", string(event.Type),
			)
		}
	}
	return nil
}

// Subscribers reports the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event models.Event) error {
	var errs []error
	for _, publisher := range f {
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
