package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errNoPool = errors.New("pgnotify feed needs a connection pool")

// PGNotifyFeed LISTENs on the notify channel and reloads on each notification.
type PGNotifyFeed struct {
	Pool    *pgxpool.Pool
	Channel string
	Load    Loader
	Logger  *slog.Logger
	Metrics Recorder
}

type notificationWaiter interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

func (f *PGNotifyFeed) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	if f.Pool == nil {
		return nil, errNoPool
	}
	conn, err := f.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.Channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", f.Channel, err)
	}

	r := newReloader("pgnotify", f.Load, f.Logger, f.Metrics)
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		defer func() {
			// The connection goes back to the pool, so stop listening first.
			if _, err := conn.Exec(context.Background(), "UNLISTEN *"); err != nil {
				r.logger.Warn("failed to unlisten", slog.Any("error", err))
			}
			conn.Release()
		}()
		runNotifications(ctx, r, conn.Conn(), out)
	}()
	return out, nil
}

// runNotifications sends the initial snapshot and then one reload per notification.
func runNotifications(ctx context.Context, r *reloader, w notificationWaiter, out chan<- Snapshot) {
	if !r.emit(ctx, out, "initial", true) {
		return
	}
	for {
		n, err := w.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("waiting for notification failed, feed stopped", slog.Any("error", err))
			}
			return
		}
		if !r.emit(ctx, out, causeOf([]byte(n.Payload)), false) {
			return
		}
	}
}
