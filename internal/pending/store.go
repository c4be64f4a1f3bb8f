// Package pending keeps orders in a single JSON document on disk, the way the
// browser kept them under the pendingOrders key. It is the storage used when
// no database is configured and by the storage feed.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"plate-order-backend/internal/model"
	"plate-order-backend/internal/order"
	"plate-order-backend/internal/store"
)

// The sentinels wrap the store ones so callers can treat both order
// repositories alike.
var (
	ErrNotFound        = fmt.Errorf("pending order: %w", store.ErrNotFound)
	ErrVersionConflict = fmt.Errorf("pending order: %w", store.ErrVersionConflict)
)

var _ store.OrderRepository = (*Store)(nil)

// Store reads and writes the document. Writers inside one process are
// serialized; separate Store values on the same file are not coordinated.
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// New returns a store for the document at path.
func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger.With(slog.String("component", "pending"))}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load returns every order in the document. A missing or unreadable document
// is logged and treated as empty.
func (s *Store) Load() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().PendingOrders
}

// Save replaces the orders in the document. The status log is kept.
func (s *Store) Save(orders []model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	doc.PendingOrders = orders
	return s.save(doc)
}

// Add appends an order, assigning its id, public id, status and version.
func (s *Store) Add(o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	var maxID int64
	for _, existing := range doc.PendingOrders {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}

	now := time.Now().UTC()
	o.ID = maxID + 1
	if o.PublicID == "" {
		o.PublicID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = order.StatusNew
	}
	o.Version = 1
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Items {
		o.Items[i].ID = int64(i + 1)
		o.Items[i].OrderID = o.ID
		o.Items[i].Position = i
		if o.Items[i].Status == "" {
			o.Items[i].Status = o.Status
		}
		o.Items[i].UpdatedAt = now
	}

	doc.PendingOrders = append(doc.PendingOrders, *o)
	return s.save(doc)
}

// Get returns one order.
func (s *Store) Get(id int64) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.load().PendingOrders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

// GetOrder implements store.OrderRepository.
func (s *Store) GetOrder(_ context.Context, id int64) (*model.Order, error) {
	return s.Get(id)
}

// ListOrders filters and pages the document the way the database store does,
// oldest first.
func (s *Store) ListOrders(_ context.Context, opts store.ListOptions) ([]model.Order, error) {
	s.mu.Lock()
	orders := s.load().PendingOrders
	s.mu.Unlock()

	var wanted map[order.Status]bool
	if len(opts.Statuses) > 0 {
		wanted = make(map[order.Status]bool, len(opts.Statuses))
		for _, st := range opts.Statuses {
			wanted[st] = true
		}
	}
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if wanted != nil && !wanted[o.Status] {
			continue
		}
		if opts.TableID > 0 && o.TableID != opts.TableID {
			continue
		}
		if !opts.UpdatedSince.IsZero() && o.UpdatedAt.Before(opts.UpdatedSince) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if opts.Skip >= len(out) {
		return []model.Order{}, nil
	}
	out = out[max(opts.Skip, 0):]
	if limit := opts.PageLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateStatus moves an order through the status machine. A non-zero
// expectedVersion must match the stored version.
func (s *Store) UpdateStatus(id, expectedVersion int64, to order.Status, override bool) (*model.Order, error) {
	res, err := s.UpdateOrderStatus(context.Background(), store.StatusChange{
		OrderID:         id,
		ExpectedVersion: expectedVersion,
		To:              to,
		Override:        override,
	})
	if err != nil {
		return nil, err
	}
	return res.Order, nil
}

// UpdateOrderStatus moves an order and carries lagging items along; an
// override sets every item to the new status.
func (s *Store) UpdateOrderStatus(_ context.Context, change store.StatusChange) (*store.ChangeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	o, err := doc.find(change)
	if err != nil {
		return nil, err
	}
	if err := order.Transition(o.Status, change.To, change.Override); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := o.Status
	for j := range o.Items {
		if change.Override || o.Items[j].Status.Before(change.To) {
			o.Items[j].Status = change.To
			o.Items[j].UpdatedAt = now
		}
	}
	o.Status = change.To
	o.Version++
	o.UpdatedAt = now
	doc.appendLog(o.ID, nil, from, change.To, change, now)

	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *o
	return &store.ChangeResult{Order: &out, From: from, To: change.To, OrderFrom: from}, nil
}

// UpdateItemStatus moves one item; the order follows its slowest item forward.
func (s *Store) UpdateItemStatus(_ context.Context, change store.StatusChange) (*store.ChangeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	o, err := doc.find(change)
	if err != nil {
		return nil, err
	}
	var item *model.OrderItem
	for j := range o.Items {
		if o.Items[j].ID == change.ItemID {
			item = &o.Items[j]
			break
		}
	}
	if item == nil {
		return nil, fmt.Errorf("item %d of order %d: %w", change.ItemID, o.ID, ErrNotFound)
	}
	if err := order.Transition(item.Status, change.To, change.Override); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	itemFrom, orderFrom := item.Status, o.Status
	item.Status = change.To
	item.UpdatedAt = now
	itemID := item.ID
	doc.appendLog(o.ID, &itemID, itemFrom, change.To, change, now)

	statuses := make([]order.Status, len(o.Items))
	for j, it := range o.Items {
		statuses[j] = it.Status
	}
	if derived := order.Derive(statuses); o.Status.Before(derived) {
		o.Status = derived
		derivedChange := change
		derivedChange.Override = false
		doc.appendLog(o.ID, nil, orderFrom, derived, derivedChange, now)
	}
	o.Version++
	o.UpdatedAt = now

	if err := s.save(doc); err != nil {
		return nil, err
	}
	out := *o
	return &store.ChangeResult{Order: &out, ItemID: itemID, From: itemFrom, To: change.To, OrderFrom: orderFrom}, nil
}

// OrderHistory returns the status log of an order, oldest first.
func (s *Store) OrderHistory(_ context.Context, id int64) ([]model.OrderStatusLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := []model.OrderStatusLog{}
	for _, entry := range s.load().StatusLog {
		if entry.OrderID == id {
			logs = append(logs, entry)
		}
	}
	return logs, nil
}

// Remove deletes an order from the document.
func (s *Store) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	for i, o := range doc.PendingOrders {
		if o.ID == id {
			doc.PendingOrders = append(doc.PendingOrders[:i], doc.PendingOrders[i+1:]...)
			return s.save(doc)
		}
	}
	return ErrNotFound
}

type document struct {
	PendingOrders []model.Order          `json:"pendingOrders"`
	StatusLog     []model.OrderStatusLog `json:"statusLog,omitempty"`
}

func (d *document) find(change store.StatusChange) (*model.Order, error) {
	for i := range d.PendingOrders {
		o := &d.PendingOrders[i]
		if o.ID != change.OrderID {
			continue
		}
		if change.ExpectedVersion != 0 && o.Version != change.ExpectedVersion {
			return nil, fmt.Errorf("order %d is at version %d, not %d: %w", o.ID, o.Version, change.ExpectedVersion, ErrVersionConflict)
		}
		return o, nil
	}
	return nil, fmt.Errorf("order %d: %w", change.OrderID, ErrNotFound)
}

func (d *document) appendLog(orderID int64, itemID *int64, from, to order.Status, change store.StatusChange, now time.Time) {
	d.StatusLog = append(d.StatusLog, model.OrderStatusLog{
		ID:        int64(len(d.StatusLog) + 1),
		OrderID:   orderID,
		ItemID:    itemID,
		From:      from,
		To:        to,
		Override:  change.Override,
		ChangedBy: change.ChangedBy,
		ChangedAt: now,
	})
}

func (s *Store) load() document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to read pending orders", slog.String("path", s.path), slog.Any("error", err))
		}
		return document{}
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("pending orders document is corrupt, ignoring it", slog.String("path", s.path), slog.Any("error", err))
		return document{}
	}
	return doc
}

// save writes to a temp file and renames it over the document so readers
// never see a partial write.
func (s *Store) save(doc document) error {
	if doc.PendingOrders == nil {
		doc.PendingOrders = []model.Order{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pending orders: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".pending-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write pending orders: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace pending orders: %w", err)
	}
	return nil
}
