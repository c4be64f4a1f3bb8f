package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"plate-order-backend/internal/events"
)

// AMQPFeed consumes order events from the exchange and reloads on each one.
// Each subscription gets its own exclusive queue so every instance sees
// every event.
type AMQPFeed struct {
	URL         string
	Exchange    string
	QueuePrefix string
	Load        Loader
	Logger      *slog.Logger
	Metrics     Recorder
}

func (f *AMQPFeed) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	conn, err := amqp.Dial(f.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	deliveries, err := f.consume(ch)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	r := newReloader("amqp", f.Load, f.Logger, f.Metrics)
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		defer conn.Close()
		defer ch.Close()
		runDeliveries(ctx, r, deliveries, out)
	}()
	return out, nil
}

func (f *AMQPFeed) consume(ch *amqp.Channel) (<-chan amqp.Delivery, error) {
	if err := events.DeclareExchange(ch, f.Exchange); err != nil {
		return nil, err
	}
	prefix := f.QueuePrefix
	if prefix == "" {
		prefix = "orders.feed"
	}
	q, err := ch.QueueDeclare(prefix+"."+uuid.NewString(), false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "orders.#", f.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", q.Name, err)
	}
	return deliveries, nil
}

// runDeliveries sends the initial snapshot and then one reload per delivery.
func runDeliveries(ctx context.Context, r *reloader, deliveries <-chan amqp.Delivery, out chan<- Snapshot) {
	if !r.emit(ctx, out, "initial", true) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				r.logger.Warn("amqp delivery channel closed, feed stopped")
				return
			}
			if !r.emit(ctx, out, causeOf(d.Body), false) {
				return
			}
		}
	}
}

func causeOf(body []byte) string {
	var ev events.Event
	if err := json.Unmarshal(body, &ev); err != nil || ev.Type == "" {
		return "event"
	}
	return string(ev.Type)
}
