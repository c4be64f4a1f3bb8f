package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"plate-order-backend/internal/events"
	"plate-order-backend/internal/feed"
	"plate-order-backend/internal/notification"
	"plate-order-backend/internal/order"
	"plate-order-backend/internal/store"
)

// Notifier queues "order ready" pushes.
type Notifier interface {
	Dispatch(job notification.ReadyJob) bool
}

// Metrics counts status changes.
type Metrics interface {
	Transition(from, to string)
	TransitionRejected(reason string)
}

type nopMetrics struct{}

func (nopMetrics) Transition(string, string)  {}
func (nopMetrics) TransitionRejected(string) {}

// Service serves the boards and applies staff actions. Every write goes
// through the store's versioned update, then events are published, then
// the server is notified when an order becomes ready.
type Service struct {
	Store           store.Store
	Orders          store.OrderRepository // orders read and moved here; Store when nil
	Publisher       events.Publisher
	Notifier        Notifier // optional
	Metrics         Metrics
	DeliveredWindow time.Duration
	ListLimit       int
	Logger          *slog.Logger
}

func (s *Service) orders() store.OrderRepository {
	if s.Orders != nil {
		return s.Orders
	}
	return s.Store
}

func (s *Service) directory(ctx context.Context) (Directory, error) {
	tables, err := s.Store.ListTables(ctx, 0)
	if err != nil {
		return Directory{}, err
	}
	return NewDirectory(tables), nil
}

// Kitchen builds the kitchen board from the store.
func (s *Service) Kitchen(ctx context.Context) (View, error) {
	orders, err := feed.StoreLoader(s.orders(), s.ListLimit, 0)(ctx)
	if err != nil {
		return View{}, err
	}
	dir, err := s.directory(ctx)
	if err != nil {
		return View{}, err
	}
	return Kitchen(orders, dir, time.Now()), nil
}

// Expo builds the expo board from the store.
func (s *Service) Expo(ctx context.Context) (View, error) {
	orders, err := feed.StoreLoader(s.orders(), s.ListLimit, s.DeliveredWindow)(ctx)
	if err != nil {
		return View{}, err
	}
	dir, err := s.directory(ctx)
	if err != nil {
		return View{}, err
	}
	return Expo(orders, dir, time.Now(), s.DeliveredWindow), nil
}

// Advance moves an order to its next status. With expectedVersion zero the
// version just read is used, so two clicks on the same card cannot skip a step.
func (s *Service) Advance(ctx context.Context, id, expectedVersion int64, actor string) (*store.ChangeResult, error) {
	o, err := s.orders().GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	next, ok := order.Next(o.Status)
	if !ok {
		s.metrics().TransitionRejected("final")
		return nil, fmt.Errorf("%w: %s is final", order.ErrIllegalTransition, o.Status)
	}
	if expectedVersion == 0 {
		expectedVersion = o.Version
	}
	return s.apply(ctx, store.StatusChange{
		OrderID:         id,
		ExpectedVersion: expectedVersion,
		To:              next,
		ChangedBy:       actor,
	}, s.orders().UpdateOrderStatus)
}

// SetStatus moves an order to an explicit status. Without override only the
// forward successor is accepted.
func (s *Service) SetStatus(ctx context.Context, change store.StatusChange) (*store.ChangeResult, error) {
	change.ItemID = 0
	return s.apply(ctx, change, s.orders().UpdateOrderStatus)
}

// SetItemStatus moves a single item to an explicit status.
func (s *Service) SetItemStatus(ctx context.Context, change store.StatusChange) (*store.ChangeResult, error) {
	if change.ItemID == 0 {
		return nil, fmt.Errorf("%w: item id is required", store.ErrNotFound)
	}
	return s.apply(ctx, change, s.orders().UpdateItemStatus)
}

// AdvanceItem moves one item to its next status.
func (s *Service) AdvanceItem(ctx context.Context, orderID, itemID, expectedVersion int64, actor string) (*store.ChangeResult, error) {
	o, err := s.orders().GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, it := range o.Items {
		if it.ID != itemID {
			continue
		}
		next, ok := order.Next(it.Status)
		if !ok {
			s.metrics().TransitionRejected("final")
			return nil, fmt.Errorf("%w: item %d is %s", order.ErrIllegalTransition, itemID, it.Status)
		}
		if expectedVersion == 0 {
			expectedVersion = o.Version
		}
		return s.apply(ctx, store.StatusChange{
			OrderID:         orderID,
			ItemID:          itemID,
			ExpectedVersion: expectedVersion,
			To:              next,
			ChangedBy:       actor,
		}, s.orders().UpdateItemStatus)
	}
	return nil, fmt.Errorf("%w: item %d on order %d", store.ErrNotFound, itemID, orderID)
}

func (s *Service) apply(ctx context.Context, change store.StatusChange, write func(context.Context, store.StatusChange) (*store.ChangeResult, error)) (*store.ChangeResult, error) {
	res, err := write(ctx, change)
	if err != nil {
		s.metrics().TransitionRejected(rejectReason(err))
		return nil, err
	}

	s.metrics().Transition(string(res.From), string(res.To))
	s.logger().Info("status changed",
		slog.Int64("order_id", res.Order.ID),
		slog.Int64("item_id", res.ItemID),
		slog.String("from", string(res.From)),
		slog.String("to", string(res.To)),
		slog.Bool("override", change.Override),
		slog.String("changed_by", change.ChangedBy),
	)
	events.Emit(ctx, s.Publisher, s.logger(), events.FromChange(res)...)

	if res.OrderMoved() && res.Order.Status == order.StatusReady {
		s.notifyReady(ctx, res)
	}
	return res, nil
}

func (s *Service) notifyReady(ctx context.Context, res *store.ChangeResult) {
	if s.Notifier == nil {
		return
	}
	label := fmt.Sprintf("%d", res.Order.TableID)
	if t, err := s.Store.GetTable(ctx, res.Order.TableID); err == nil && t.Label != "" {
		label = t.Label
	}
	s.Notifier.Dispatch(notification.ReadyJob{
		OrderID:    res.Order.ID,
		TableLabel: label,
		ServerID:   res.Order.ServerID,
	})
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, store.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, order.ErrNoop):
		return "noop"
	case errors.Is(err, order.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, order.ErrUnknownStatus):
		return "unknown_status"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	}
	return "error"
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) metrics() Metrics {
	if s.Metrics == nil {
		return nopMetrics{}
	}
	return s.Metrics
}
