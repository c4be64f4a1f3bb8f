package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"plate-order-backend/config"
	"plate-order-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func response(code int) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(db), &webpush.Options{}, discard())

	assert.True(t, wp.Dispatch(ReadyJob{OrderID: 123, TableLabel: "T4", ServerID: "maria"}))

	select {
	case job := <-wp.jobs:
		assert.Equal(t, int64(123), job.OrderID)
		assert.Equal(t, "Table T4 order is ready", job.Message())
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchFullQueueDrops(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(db), &webpush.Options{}, discard())
	for i := 0; i < cap(wp.jobs); i++ {
		require.True(t, wp.Dispatch(ReadyJob{OrderID: int64(i)}))
	}
	assert.False(t, wp.Dispatch(ReadyJob{OrderID: 99}))
}

var subscriptionsQuery = regexp.QuoteMeta(`SELECT * FROM "push_subscriptions" WHERE server_id = $1`)

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(gormDB), &webpush.Options{}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)
				var p Payload
				assert.NoError(t, json.Unmarshal(payload, &p))
				assert.Equal(t, "Table T2 order is ready", p.Body)
				assert.Equal(t, int64(101), p.OrderID)
				return response(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs("maria").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "server_id", "created_at"}).
				AddRow("https://example.com/push", "test_p256dh", "test_auth", "maria", time.Now()))

		wp.notifyServer(ctx, ReadyJob{OrderID: 101, TableLabel: "T2", ServerID: "maria"})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
				return response(http.StatusGone), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs("sam").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "server_id", "created_at"}).
				AddRow("https://example.com/expired", "k", "a", "sam", time.Now()))
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = $1`)).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		wp.notifyServer(ctx, ReadyJob{OrderID: 102, TableLabel: "T9", ServerID: "sam"})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no subscriptions sends nothing", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
				t.Error("unexpected send")
				return response(http.StatusCreated), nil
			},
		}
		mock.ExpectQuery(subscriptionsQuery).
			WithArgs("nobody").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint"}))

		wp.notifyServer(ctx, ReadyJob{OrderID: 103, TableLabel: "T1", ServerID: "nobody"})
		wp.notifyServer(ctx, ReadyJob{OrderID: 104, TableLabel: "T1"})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWorkerPool_StartProcessesJobs(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(2, store.NewGormStore(gormDB), &webpush.Options{}, discard())

	sent := make(chan string, 1)
	wp.sender = &mockSender{
		SendFunc: func(_ []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
			sent <- sub.Endpoint
			return response(http.StatusCreated), nil
		},
	}
	mock.ExpectQuery(subscriptionsQuery).
		WithArgs("maria").
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "server_id", "created_at"}).
			AddRow("https://example.com/push", "k", "a", "maria", time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)
	wp.Dispatch(ReadyJob{OrderID: 1, TableLabel: "T1", ServerID: "maria"})

	select {
	case endpoint := <-sent:
		assert.Equal(t, "https://example.com/push", endpoint)
	case <-time.After(time.Second):
		t.Fatal("worker did not send")
	}
}

func TestOptions(t *testing.T) {
	o := Options(config.PushConfig{PublicKey: "pub", PrivateKey: "priv", Subject: "mailto:ops@example.com", TTL: 60})
	assert.Equal(t, "pub", o.VAPIDPublicKey)
	assert.Equal(t, "priv", o.VAPIDPrivateKey)
	assert.Equal(t, "mailto:ops@example.com", o.Subscriber)
	assert.Equal(t, 60, o.TTL)
}
