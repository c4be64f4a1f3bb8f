package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-order-backend/config"
	"plate-order-backend/internal/events"
	"plate-order-backend/internal/model"
	"plate-order-backend/internal/order"
	"plate-order-backend/internal/pending"
	"plate-order-backend/internal/store"
	"plate-order-backend/internal/store/storetest"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func next(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "feed closed")
		return snap
	case <-time.After(within):
		t.Fatal("no snapshot")
	}
	return Snapshot{}
}

func assertQuiet(t *testing.T, ch <-chan Snapshot, d time.Duration) {
	t.Helper()
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot: %+v", snap)
	case <-time.After(d):
	}
}

func newOrder(tableID int64, items ...string) *model.Order {
	o := &model.Order{TableID: tableID, Type: "food", Transcript: "test"}
	for _, it := range items {
		o.Items = append(o.Items, model.OrderItem{Name: it})
	}
	return o
}

type counter struct{ n atomic.Int32 }

func (c *counter) FeedSnapshot(string) { c.n.Add(1) }

func TestPollFeed_EmitsOnChangeOnly(t *testing.T) {
	st := storetest.New(t)
	table := storetest.SeedTable(t, st, "T1", 2)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, st.CreateOrder(ctx, newOrder(table.ID, "soup")))

	rec := &counter{}
	f := &PollFeed{
		Load:     StoreLoader(st, 50, time.Hour),
		Interval: 20 * time.Millisecond,
		Logger:   discard(),
		Metrics:  rec,
	}
	snaps, err := f.Subscribe(ctx)
	require.NoError(t, err)

	first := next(t, snaps, time.Second)
	assert.Equal(t, "initial", first.Cause)
	require.Len(t, first.Orders, 1)
	assert.Equal(t, order.StatusNew, first.Orders[0].Status)

	assertQuiet(t, snaps, 100*time.Millisecond)

	require.NoError(t, st.CreateOrder(ctx, newOrder(table.ID, "salmon", "side salad")))
	second := next(t, snaps, time.Second)
	assert.Equal(t, "poll", second.Cause)
	assert.Len(t, second.Orders, 2)
	assert.Eventually(t, func() bool { return rec.n.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-snaps
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestPollFeed_NudgedByHub(t *testing.T) {
	st := storetest.New(t)
	table := storetest.SeedTable(t, st, "T1", 2)
	hub := events.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &PollFeed{
		Load:     StoreLoader(st, 50, 0),
		Interval: time.Hour,
		Nudge:    hub,
		Logger:   discard(),
	}
	snaps, err := f.Subscribe(ctx)
	require.NoError(t, err)
	assert.Empty(t, next(t, snaps, time.Second).Orders)

	o := newOrder(table.ID, "soup")
	require.NoError(t, st.CreateOrder(ctx, o))
	require.NoError(t, hub.Publish(ctx, events.Created(o)))

	snap := next(t, snaps, time.Second)
	assert.Equal(t, string(events.OrderCreated), snap.Cause)
	require.Len(t, snap.Orders, 1)
	assert.Equal(t, o.ID, snap.Orders[0].ID)
}

func TestStoreLoader_DeliveredWindow(t *testing.T) {
	st := storetest.New(t)
	table := storetest.SeedTable(t, st, "T1", 2)
	ctx := context.Background()

	active := newOrder(table.ID, "soup")
	done := newOrder(table.ID, "tea")
	require.NoError(t, st.CreateOrder(ctx, active))
	require.NoError(t, st.CreateOrder(ctx, done))
	_, err := st.UpdateOrderStatus(ctx, store.StatusChange{OrderID: done.ID, To: order.StatusDelivered, Override: true})
	require.NoError(t, err)

	orders, err := StoreLoader(st, 50, time.Hour)(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	orders, err = StoreLoader(st, 50, 0)(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, active.ID, orders[0].ID)
}

func TestStorageFeed(t *testing.T) {
	p := pending.New(filepath.Join(t.TempDir(), "pendingOrders.json"), discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	snaps, err := NewStorageFeed(p, 20*time.Millisecond, discard(), nil).Subscribe(ctx)
	require.NoError(t, err)
	assert.Empty(t, next(t, snaps, time.Second).Orders)

	require.NoError(t, p.Add(newOrder(3, "lemonade")))
	snap := next(t, snaps, time.Second)
	require.Len(t, snap.Orders, 1)
	assert.Equal(t, int64(3), snap.Orders[0].TableID)
}

func TestReloader_LoadErrorKeepsRunning(t *testing.T) {
	calls := 0
	r := newReloader("poll", func(context.Context) ([]model.Order, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("db down")
		}
		return []model.Order{{ID: 1, Version: 1, Status: order.StatusNew}}, nil
	}, discard(), nil)

	out := make(chan Snapshot, 2)
	ctx := context.Background()
	assert.True(t, r.emit(ctx, out, "initial", true))
	assert.Empty(t, out)
	assert.True(t, r.emit(ctx, out, "poll", false))
	assert.Len(t, out, 1)
	assert.True(t, r.emit(ctx, out, "poll", false))
	assert.Len(t, out, 1, "unchanged fingerprint is not resent")
}

func TestRunDeliveries(t *testing.T) {
	var version atomic.Int64
	version.Store(1)
	r := newReloader("amqp", func(context.Context) ([]model.Order, error) {
		return []model.Order{{ID: 9, Version: version.Load(), Status: order.StatusNew}}, nil
	}, discard(), nil)

	deliveries := make(chan amqp.Delivery, 2)
	out := make(chan Snapshot, 4)
	done := make(chan struct{})
	go func() {
		runDeliveries(context.Background(), r, deliveries, out)
		close(done)
	}()

	assert.Equal(t, "initial", next(t, out, time.Second).Cause)

	version.Store(2)
	deliveries <- amqp.Delivery{Body: []byte(`{"type":"order.status_changed","order_id":9}`)}
	assert.Equal(t, "order.status_changed", next(t, out, time.Second).Cause)

	// A duplicate delivery reloads the same state and sends nothing.
	deliveries <- amqp.Delivery{Body: []byte("not json")}
	close(deliveries)
	<-done
	assert.Empty(t, out)
}

type fakeWaiter struct {
	mu    sync.Mutex
	queue []*pgconn.Notification
}

func (w *fakeWaiter) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	w.mu.Lock()
	if len(w.queue) > 0 {
		n := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()
		return n, nil
	}
	w.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunNotifications(t *testing.T) {
	var loads atomic.Int64
	r := newReloader("pgnotify", func(context.Context) ([]model.Order, error) {
		v := loads.Add(1)
		return []model.Order{{ID: 1, Version: v, Status: order.StatusCooking}}, nil
	}, discard(), nil)

	w := &fakeWaiter{queue: []*pgconn.Notification{
		{Channel: "order_events", Payload: `{"type":"order.created"}`},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Snapshot, 4)
	done := make(chan struct{})
	go func() {
		runNotifications(ctx, r, w, out)
		close(done)
	}()

	assert.Equal(t, "initial", next(t, out, time.Second).Cause)
	assert.Equal(t, "order.created", next(t, out, time.Second).Cause)
	cancel()
	<-done
}

type staticFeed struct {
	ch chan Snapshot
}

func (f staticFeed) Subscribe(context.Context) (<-chan Snapshot, error) {
	return f.ch, nil
}

func TestBroadcaster(t *testing.T) {
	src := staticFeed{ch: make(chan Snapshot)}
	b := NewBroadcaster(src, discard())
	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	early, unsubscribeEarly := b.Subscribe()
	defer unsubscribeEarly()

	src.ch <- Snapshot{Cause: "initial"}
	assert.Equal(t, "initial", next(t, early, time.Second).Cause)

	// Late joiners start from the newest snapshot.
	late, unsubscribeLate := b.Subscribe()
	assert.Equal(t, "initial", next(t, late, time.Second).Cause)
	unsubscribeLate()
	assert.Equal(t, 1, b.Clients())

	// A slow client only keeps the newest snapshot.
	src.ch <- Snapshot{Cause: "poll"}
	src.ch <- Snapshot{Cause: "order.created"}
	assert.Eventually(t, func() bool {
		s, ok := b.Latest()
		return ok && s.Cause == "order.created"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "order.created", next(t, early, time.Second).Cause)

	close(src.ch)
	require.NoError(t, <-done)
	_, ok := <-early
	assert.False(t, ok)

	closed, _ := b.Subscribe()
	_, ok = <-closed
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	st := storetest.New(t)
	p := pending.New(filepath.Join(t.TempDir(), "p.json"), discard())
	ctx := context.Background()
	d := Deps{Store: st, Pending: p, Logger: discard()}

	f, closeFn, err := New(ctx, config.FeedConfig{Transport: "poll", IntervalSeconds: 2}, d)
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &PollFeed{}, f)
	assert.Equal(t, 2*time.Second, f.(*PollFeed).Interval)

	f, _, err = New(ctx, config.FeedConfig{Transport: "storage"}, d)
	require.NoError(t, err)
	assert.Equal(t, "storage", f.(*PollFeed).Transport)

	f, _, err = New(ctx, config.FeedConfig{Transport: "amqp", Queue: "orders.feed"}, d)
	require.NoError(t, err)
	assert.IsType(t, &AMQPFeed{}, f)

	_, _, err = New(ctx, config.FeedConfig{Transport: "carrier-pigeon"}, d)
	assert.Error(t, err)
	_, _, err = New(ctx, config.FeedConfig{Transport: "storage"}, Deps{})
	assert.Error(t, err)
	_, _, err = New(ctx, config.FeedConfig{Transport: "poll"}, Deps{})
	assert.Error(t, err)
}

func TestNew_PollReadsOrderRepository(t *testing.T) {
	st := storetest.New(t)
	p := pending.New(filepath.Join(t.TempDir(), "p.json"), discard())
	require.NoError(t, p.Add(&model.Order{TableID: 2, Transcript: "tea", Items: []model.OrderItem{{Name: "tea"}}}))
	ctx := context.Background()

	f, _, err := New(ctx, config.FeedConfig{Transport: "poll"}, Deps{Store: st, Orders: p, Logger: discard()})
	require.NoError(t, err)
	orders, err := f.(*PollFeed).Load(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "tea", orders[0].Transcript)
}
