package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"plate-order-backend/internal/events"
	"plate-order-backend/internal/model"
	"plate-order-backend/internal/order"
)

// Metrics receives pipeline measurements. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveTranscription(d time.Duration, err error)
	OrderCreated(orderType string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveTranscription(time.Duration, error) {}
func (nopMetrics) OrderCreated(string)                       {}

// Reconciler turns validated input into a persisted order.
type Reconciler struct {
	Mode        Mode
	Validator   Validator
	Sink        Sink
	Publisher   events.Publisher
	DefaultType string
	Metrics     Metrics
	Logger      *slog.Logger
}

// Draft builds the order record for in without persisting it.
func (r *Reconciler) Draft(in Input) *model.Order {
	raw := in.Items
	if len(raw) == 0 {
		raw = r.Mode.Items(in.Transcript)
	}
	names := make([]string, 0, len(raw))
	for _, name := range raw {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	typ := in.Type
	if typ == "" {
		typ = r.DefaultType
	}
	if typ == "" {
		typ = "food"
	}

	transcript := strings.TrimSpace(in.Transcript)
	if transcript == "" {
		transcript = strings.Join(names, ", ")
	}
	o := &model.Order{
		TableID:    in.TableID,
		SeatID:     in.SeatID,
		ResidentID: in.ResidentID,
		ServerID:   in.ServerID,
		Type:       typ,
		Transcript: transcript,
		Status:     order.StatusNew,
	}
	for _, name := range names {
		o.Items = append(o.Items, model.OrderItem{Name: name, Status: order.StatusNew})
	}
	return o
}

// Reconcile validates, persists and announces a new order.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) (*model.Order, error) {
	if err := r.Validator.Validate(ctx, in); err != nil {
		return nil, err
	}
	draft := r.Draft(in)
	if len(draft.Items) == 0 {
		return nil, ErrEmptyTranscript
	}

	created, err := r.Sink.Persist(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	r.logger().Info("order created",
		slog.Int64("order_id", created.ID),
		slog.Int64("table_id", created.TableID),
		slog.Int("items", len(created.Items)),
	)
	r.metrics().OrderCreated(created.Type)
	events.Emit(ctx, r.Publisher, r.logger(), events.Created(created))
	return created, nil
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Reconciler) metrics() Metrics {
	if r.Metrics == nil {
		return nopMetrics{}
	}
	return r.Metrics
}
