package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"plate-order-backend/internal/model"
	"plate-order-backend/internal/order"
	"plate-order-backend/internal/store"
)

// Type names an order change.
type Type string

const (
	OrderCreated       Type = "order.created"
	OrderStatusChanged Type = "order.status_changed"
	ItemStatusChanged  Type = "item.status_changed"
)

// Event is one committed order change.
type Event struct {
	Type       Type         `json:"type"`
	OrderID    int64        `json:"order_id"`
	PublicID   string       `json:"public_id"`
	TableID    int64        `json:"table_id"`
	SeatID     *int64       `json:"seat_id,omitempty"`
	ItemID     int64        `json:"item_id,omitempty"`
	ServerID   string       `json:"server_id,omitempty"`
	From       order.Status `json:"from,omitempty"`
	To         order.Status `json:"to"`
	Version    int64        `json:"version"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Key identifies the order an event belongs to, for partitioning.
func (e Event) Key() string {
	return fmt.Sprintf("%d", e.OrderID)
}

// Created builds the event for a newly persisted order.
func Created(o *model.Order) Event {
	return Event{
		Type:       OrderCreated,
		OrderID:    o.ID,
		PublicID:   o.PublicID,
		TableID:    o.TableID,
		SeatID:     o.SeatID,
		ServerID:   o.ServerID,
		To:         o.Status,
		Version:    o.Version,
		OccurredAt: o.CreatedAt,
	}
}

// FromChange builds the events for a committed status change: the item event
// when an item moved, and the order event when the order itself moved.
func FromChange(res *store.ChangeResult) []Event {
	o := res.Order
	base := Event{
		OrderID:    o.ID,
		PublicID:   o.PublicID,
		TableID:    o.TableID,
		SeatID:     o.SeatID,
		ServerID:   o.ServerID,
		Version:    o.Version,
		OccurredAt: o.UpdatedAt,
	}

	var out []Event
	if res.ItemID != 0 {
		ev := base
		ev.Type, ev.ItemID, ev.From, ev.To = ItemStatusChanged, res.ItemID, res.From, res.To
		out = append(out, ev)
	}
	if res.OrderMoved() {
		ev := base
		ev.Type, ev.From, ev.To = OrderStatusChanged, res.OrderFrom, o.Status
		out = append(out, ev)
	}
	return out
}

// Publisher delivers events to an external system.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emit publishes events and logs failures. The store is the source of truth,
// so a failed publish never fails the write that caused it.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, evs ...Event) {
	if p == nil {
		return
	}
	for _, ev := range evs {
		if err := p.Publish(ctx, ev); err != nil {
			logger.Warn("failed to publish order event",
				slog.String("type", string(ev.Type)),
				slog.Int64("order_id", ev.OrderID),
				slog.Any("error", err),
			)
		}
	}
}
