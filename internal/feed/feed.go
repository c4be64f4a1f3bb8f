// Package feed delivers the current set of orders to boards as full
// snapshots. Every transport reloads from its source of truth when it is
// nudged, so a late or duplicated notification can never apply stale state.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"plate-order-backend/internal/model"
	"plate-order-backend/internal/order"
	"plate-order-backend/internal/pending"
	"plate-order-backend/internal/store"
)

// Snapshot is the full list of orders a board should show.
type Snapshot struct {
	Orders []model.Order `json:"orders"`
	At     time.Time     `json:"at"`
	Cause  string        `json:"cause"`
}

// Feed streams snapshots until ctx is done, then closes the channel.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan Snapshot, error)
}

// Loader reads the current orders.
type Loader func(ctx context.Context) ([]model.Order, error)

// Recorder counts emitted snapshots.
type Recorder interface {
	FeedSnapshot(transport string)
}

type nopRecorder struct{}

func (nopRecorder) FeedSnapshot(string) {}

// StoreLoader lists every active order plus orders delivered within
// deliveredWindow, oldest first.
func StoreLoader(st store.OrderRepository, limit int, deliveredWindow time.Duration) Loader {
	return func(ctx context.Context) ([]model.Order, error) {
		active, err := st.ListOrders(ctx, store.ListOptions{
			Limit:    limit,
			Statuses: []order.Status{order.StatusNew, order.StatusCooking, order.StatusReady},
		})
		if err != nil {
			return nil, err
		}
		if deliveredWindow <= 0 {
			return active, nil
		}
		delivered, err := st.ListOrders(ctx, store.ListOptions{
			Limit:        limit,
			Statuses:     []order.Status{order.StatusDelivered},
			UpdatedSince: time.Now().Add(-deliveredWindow),
		})
		if err != nil {
			return nil, err
		}
		return append(active, delivered...), nil
	}
}

// PendingLoader reads the pending orders document.
func PendingLoader(p *pending.Store) Loader {
	return func(context.Context) ([]model.Order, error) {
		return p.Load(), nil
	}
}

// fingerprint identifies a snapshot by order id, version and status.
func fingerprint(orders []model.Order) string {
	var b strings.Builder
	for _, o := range orders {
		b.WriteString(strconv.FormatInt(o.ID, 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(o.Version, 10))
		b.WriteByte(':')
		b.WriteString(string(o.Status))
		b.WriteByte(';')
	}
	return b.String()
}

// reloader is the part every transport shares: reload, dedupe, send.
type reloader struct {
	transport string
	load      Loader
	logger    *slog.Logger
	metrics   Recorder
	last      string
	sent      bool
}

func newReloader(transport string, load Loader, logger *slog.Logger, metrics Recorder) *reloader {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &reloader{
		transport: transport,
		load:      load,
		logger:    logger.With(slog.String("component", "feed"), slog.String("transport", transport)),
		metrics:   metrics,
	}
}

// emit reloads and sends a snapshot when it differs from the last one sent,
// or always when force is set. It returns false once ctx is done.
func (r *reloader) emit(ctx context.Context, out chan<- Snapshot, cause string, force bool) bool {
	orders, err := r.load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		r.logger.Warn("failed to load orders", slog.String("cause", cause), slog.Any("error", err))
		return true
	}
	fp := fingerprint(orders)
	if r.sent && !force && fp == r.last {
		return true
	}
	if orders == nil {
		orders = []model.Order{}
	}
	select {
	case out <- Snapshot{Orders: orders, At: time.Now().UTC(), Cause: cause}:
		r.last, r.sent = fp, true
		r.metrics.FeedSnapshot(r.transport)
		return true
	case <-ctx.Done():
		return false
	}
}

func unknownTransport(name string) error {
	return fmt.Errorf("unknown feed transport %q", name)
}
