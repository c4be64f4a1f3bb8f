package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"plate-order-backend/config"
	"plate-order-backend/internal/model"
	"plate-order-backend/internal/pending"
	"plate-order-backend/internal/store"
)

// Sink persists a drafted order and returns it as stored.
type Sink interface {
	Persist(ctx context.Context, o *model.Order) (*model.Order, error)
}

// StoreSink writes to the database.
type StoreSink struct {
	Store store.Store
}

func (s StoreSink) Persist(ctx context.Context, o *model.Order) (*model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.Store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// PendingSink appends to the pending orders document.
type PendingSink struct {
	Store *pending.Store
}

func (s PendingSink) Persist(ctx context.Context, o *model.Order) (*model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.Store.Add(o); err != nil {
		return nil, err
	}
	return o, nil
}

// CreateRequest is the rich create-order body, shared by the API and the
// remote sink.
type CreateRequest struct {
	TableID    int64    `json:"table_id"`
	SeatID     *int64   `json:"seat_id,omitempty"`
	ResidentID *int64   `json:"resident_id,omitempty"`
	ServerID   string   `json:"server_id,omitempty"`
	Items      []string `json:"items,omitempty"`
	Transcript string   `json:"transcript"`
	Type       string   `json:"type,omitempty"`
}

// Input converts the request for the reconciler.
func (r CreateRequest) Input() Input {
	return Input{
		Transcript: r.Transcript,
		Items:      r.Items,
		TableID:    r.TableID,
		SeatID:     r.SeatID,
		ResidentID: r.ResidentID,
		ServerID:   r.ServerID,
		Type:       r.Type,
	}
}

// RemoteSink posts orders to another instance's create-order API.
type RemoteSink struct {
	BaseURL string
	Client  *http.Client
}

func (s RemoteSink) Persist(ctx context.Context, o *model.Order) (*model.Order, error) {
	body, err := json.Marshal(CreateRequest{
		TableID:    o.TableID,
		SeatID:     o.SeatID,
		ResidentID: o.ResidentID,
		ServerID:   o.ServerID,
		Items:      o.ItemNames(),
		Transcript: o.Transcript,
		Type:       o.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	url := strings.TrimRight(s.BaseURL, "/") + "/api/v1/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post order: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote order API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var created model.Order
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("decode created order: %w", err)
	}
	return &created, nil
}

// NewSink builds the sink named by cfg.Sink.
func NewSink(cfg config.OrdersConfig, st store.Store, pend *pending.Store) (Sink, error) {
	switch cfg.Sink {
	case "", "store":
		if st == nil {
			return nil, fmt.Errorf("store sink needs a database")
		}
		return StoreSink{Store: st}, nil
	case "pending":
		if pend == nil {
			return nil, fmt.Errorf("pending sink needs a pending store")
		}
		return PendingSink{Store: pend}, nil
	case "remote":
		return RemoteSink{BaseURL: cfg.RemoteURL}, nil
	}
	return nil, fmt.Errorf("unknown order sink %q", cfg.Sink)
}

// NewOrderRepository returns where staff actions read and move orders, picked
// by the same cfg.Sink as NewSink so the boards see what the sink wrote. A
// remote sink leaves this instance's boards on its own database.
func NewOrderRepository(cfg config.OrdersConfig, st store.Store, pend *pending.Store) (store.OrderRepository, error) {
	switch cfg.Sink {
	case "", "store", "remote":
		if st == nil {
			return nil, fmt.Errorf("order repository needs a database")
		}
		return st, nil
	case "pending":
		if pend == nil {
			return nil, fmt.Errorf("pending order repository needs a pending store")
		}
		return pend, nil
	}
	return nil, fmt.Errorf("unknown order sink %q", cfg.Sink)
}
