package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-order-backend/internal/model"
	"plate-order-backend/internal/order"
	"plate-order-backend/internal/store"
)

func sampleOrder() *model.Order {
	return &model.Order{
		ID:        7,
		PublicID:  "6f1c8f7e-4a43-4c61-9d7f-2b1f0e6f9a10",
		TableID:   3,
		ServerID:  "maria",
		Status:    order.StatusReady,
		Version:   4,
		CreatedAt: time.Date(2026, 1, 2, 18, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 2, 18, 20, 0, 0, time.UTC),
	}
}

func TestFromChange(t *testing.T) {
	o := sampleOrder()

	evs := FromChange(&store.ChangeResult{Order: o, ItemID: 11, From: order.StatusCooking, To: order.StatusReady, OrderFrom: order.StatusCooking})
	require.Len(t, evs, 2)
	assert.Equal(t, ItemStatusChanged, evs[0].Type)
	assert.Equal(t, int64(11), evs[0].ItemID)
	assert.Equal(t, OrderStatusChanged, evs[1].Type)
	assert.Equal(t, order.StatusCooking, evs[1].From)
	assert.Equal(t, order.StatusReady, evs[1].To)
	assert.Zero(t, evs[1].ItemID)
	assert.Equal(t, int64(4), evs[1].Version)

	// Item moved but the order did not.
	evs = FromChange(&store.ChangeResult{Order: o, ItemID: 11, From: order.StatusCooking, To: order.StatusReady, OrderFrom: order.StatusReady})
	require.Len(t, evs, 1)
	assert.Equal(t, ItemStatusChanged, evs[0].Type)

	evs = FromChange(&store.ChangeResult{Order: o, From: order.StatusCooking, To: order.StatusReady, OrderFrom: order.StatusCooking})
	require.Len(t, evs, 1)
	assert.Equal(t, OrderStatusChanged, evs[0].Type)
}

func TestCreatedAndRoutingKey(t *testing.T) {
	ev := Created(sampleOrder())
	assert.Equal(t, OrderCreated, ev.Type)
	assert.Equal(t, "orders.3.order.created", RoutingKey(ev))
	assert.Equal(t, "7", ev.Key())
}

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }
func (f failing) Close() error                         { return nil }

func TestMulti_JoinsErrors(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe(1)
	defer unsubscribe()

	boom := errors.New("boom")
	m := Multi{failing{err: boom}, hub, Nop{}}
	err := m.Publish(context.Background(), Created(sampleOrder()))
	assert.ErrorIs(t, err, boom)

	// Later publishers still receive the event.
	select {
	case ev := <-ch:
		assert.Equal(t, int64(7), ev.OrderID)
	default:
		t.Fatal("hub did not receive event")
	}
	assert.NoError(t, Multi{Nop{}}.Publish(context.Background(), Event{}))
}

func TestHub(t *testing.T) {
	hub := NewHub()
	a, unsubA := hub.Subscribe(1)
	b, unsubB := hub.Subscribe(1)

	require.NoError(t, hub.Publish(context.Background(), Event{OrderID: 1}))
	// Full buffers drop instead of blocking.
	require.NoError(t, hub.Publish(context.Background(), Event{OrderID: 2}))

	assert.Equal(t, int64(1), (<-a).OrderID)
	assert.Equal(t, int64(1), (<-b).OrderID)

	unsubA()
	unsubA()
	_, ok := <-a
	assert.False(t, ok)

	require.NoError(t, hub.Close())
	_, ok = <-b
	assert.False(t, ok)
	unsubB()

	c, _ := hub.Subscribe(1)
	_, ok = <-c
	assert.False(t, ok)
}

func TestKafkaPublisher(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "order-events", msg.Topic)
		key, _ := msg.Key.Encode()
		assert.Equal(t, "7", string(key))
		val, _ := msg.Value.Encode()
		var ev Event
		require.NoError(t, json.Unmarshal(val, &ev))
		assert.Equal(t, OrderCreated, ev.Type)
		return nil
	})
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherWithProducer(sp, "order-events")
	require.NoError(t, p.Publish(context.Background(), Created(sampleOrder())))
	assert.ErrorIs(t, p.Publish(context.Background(), Created(sampleOrder())), sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

type fakeExec struct {
	sql  string
	args []any
	err  error
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag("SELECT 1"), f.err
}

func TestPGNotifyPublisher(t *testing.T) {
	db := &fakeExec{}
	p := &PGNotifyPublisher{db: db, channel: "order_changes"}

	require.NoError(t, p.Publish(context.Background(), Created(sampleOrder())))
	assert.Equal(t, "SELECT pg_notify($1, $2)", db.sql)
	require.Len(t, db.args, 2)
	assert.Equal(t, "order_changes", db.args[0])
	assert.Contains(t, db.args[1], `"type":"order.created"`)

	db.err = errors.New("connection reset")
	assert.Error(t, p.Publish(context.Background(), Created(sampleOrder())))
	assert.NoError(t, p.Close())
}
