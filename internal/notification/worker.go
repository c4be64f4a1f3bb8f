package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"plate-order-backend/config"
	"plate-order-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Subscriptions is the part of the store the workers use.
type Subscriptions interface {
	SubscriptionsForServer(ctx context.Context, serverID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// ReadyJob asks the pool to tell a server their order can be picked up.
type ReadyJob struct {
	OrderID    int64
	TableLabel string
	ServerID   string
}

// Payload is the JSON body the service worker displays.
type Payload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	OrderID int64  `json:"order_id"`
}

// Message is the notification text for a ready order.
func (j ReadyJob) Message() string {
	return fmt.Sprintf("Table %s order is ready", j.TableLabel)
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan ReadyJob
	subs    Subscriptions
	webpush *webpush.Options
	sender  NotificationSender
	logger  *slog.Logger
}

// Options builds the webpush options from the push config.
func Options(cfg config.PushConfig) *webpush.Options {
	return &webpush.Options{
		Subscriber:      cfg.Subject,
		VAPIDPublicKey:  cfg.PublicKey,
		VAPIDPrivateKey: cfg.PrivateKey,
		TTL:             cfg.TTL,
	}
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, subs Subscriptions, webpushOptions *webpush.Options, logger *slog.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan ReadyJob, size*4),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger.With(slog.String("component", "notification")),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("worker started", slog.Int("worker", id))
	for {
		select {
		case job := <-wp.jobs:
			wp.notifyServer(ctx, job)
		case <-ctx.Done():
			wp.logger.Debug("worker shutting down", slog.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a job. When the queue is full the job is dropped and
// false is returned; a status write never waits on push delivery.
func (wp *WorkerPool) Dispatch(job ReadyJob) bool {
	select {
	case wp.jobs <- job:
		return true
	default:
		wp.logger.Warn("notification queue full, dropping job", slog.Int64("order_id", job.OrderID))
		return false
	}
}

func (wp *WorkerPool) notifyServer(ctx context.Context, job ReadyJob) {
	logger := wp.logger.With(slog.Int64("order_id", job.OrderID), slog.String("server_id", job.ServerID))
	if job.ServerID == "" {
		logger.Debug("order has no server, nothing to notify")
		return
	}
	subscriptions, err := wp.subs.SubscriptionsForServer(ctx, job.ServerID)
	if err != nil {
		logger.Error("failed to load subscriptions", slog.Any("error", err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(Payload{Title: "Order ready", Body: job.Message(), OrderID: job.OrderID})
	if err != nil {
		logger.Error("failed to encode payload", slog.Any("error", err))
		return
	}
	logger.Info("sending order ready notifications", slog.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, logger, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, logger *slog.Logger, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		logger.Warn("failed to send notification", slog.String("endpoint", sub.Endpoint), slog.Any("error", err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		logger.Info("subscription expired, deleting", slog.String("endpoint", sub.Endpoint))
		if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			logger.Error("failed to delete expired subscription", slog.String("endpoint", sub.Endpoint), slog.Any("error", err))
		}
	}
}
