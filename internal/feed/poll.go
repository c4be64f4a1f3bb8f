package feed

import (
	"context"
	"log/slog"
	"time"

	"plate-order-backend/internal/events"
	"plate-order-backend/internal/pending"
)

// PollFeed reloads on a fixed interval. When Nudge is set, local order
// events trigger an immediate reload as well.
type PollFeed struct {
	Transport string
	Load      Loader
	Interval  time.Duration
	Nudge     *events.Hub
	Logger    *slog.Logger
	Metrics   Recorder
}

// NewStorageFeed polls the pending orders document.
func NewStorageFeed(p *pending.Store, interval time.Duration, logger *slog.Logger, metrics Recorder) *PollFeed {
	return &PollFeed{
		Transport: "storage",
		Load:      PendingLoader(p),
		Interval:  interval,
		Logger:    logger,
		Metrics:   metrics,
	}
}

func (f *PollFeed) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	transport := f.Transport
	if transport == "" {
		transport = "poll"
	}
	interval := f.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	r := newReloader(transport, f.Load, f.Logger, f.Metrics)

	var nudges <-chan events.Event
	unsubscribe := func() {}
	if f.Nudge != nil {
		nudges, unsubscribe = f.Nudge.Subscribe(16)
	}

	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		defer unsubscribe()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		if !r.emit(ctx, out, "initial", true) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !r.emit(ctx, out, "poll", false) {
					return
				}
			case ev, ok := <-nudges:
				if !ok {
					nudges = nil
					continue
				}
				if !r.emit(ctx, out, string(ev.Type), false) {
					return
				}
			}
		}
	}()
	return out, nil
}
