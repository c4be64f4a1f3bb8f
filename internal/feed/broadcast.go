package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Broadcaster fans one feed out to many clients. A client that falls behind
// skips to the newest snapshot.
type Broadcaster struct {
	feed   Feed
	logger *slog.Logger

	mu      sync.Mutex
	clients map[chan Snapshot]struct{}
	latest  *Snapshot
	done    bool
}

// NewBroadcaster wraps feed. Call Run to start it.
func NewBroadcaster(feed Feed, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		feed:    feed,
		logger:  logger.With(slog.String("component", "broadcaster")),
		clients: make(map[chan Snapshot]struct{}),
	}
}

// Run subscribes to the feed and relays snapshots until ctx is done or the
// feed closes. Client channels are closed on return.
func (b *Broadcaster) Run(ctx context.Context) error {
	snaps, err := b.feed.Subscribe(ctx)
	if err != nil {
		b.shutdown()
		return fmt.Errorf("subscribe to feed: %w", err)
	}
	defer b.shutdown()
	for snap := range snaps {
		b.relay(snap)
	}
	if ctx.Err() == nil {
		b.logger.Warn("order feed closed")
	}
	return nil
}

func (b *Broadcaster) relay(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = &snap
	for ch := range b.clients {
		offer(ch, snap)
	}
}

// offer replaces an unread snapshot instead of blocking.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Subscribe registers a client. The newest snapshot, if any, is queued at
// once. The returned func unsubscribes.
func (b *Broadcaster) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.latest != nil {
		ch <- *b.latest
	}
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.clients[ch]; ok {
				delete(b.clients, ch)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
}

// Latest returns the newest snapshot seen.
func (b *Broadcaster) Latest() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return Snapshot{}, false
	}
	return *b.latest, true
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
}
