package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"plate-order-backend/internal/model"
	"plate-order-backend/internal/order"
)

// CreateOrder inserts an order with its items. New orders always start at version 1.
func (s *gormStore) CreateOrder(ctx context.Context, o *model.Order) error {
	if o.PublicID == "" {
		o.PublicID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = order.StatusNew
	}
	if !o.Status.Valid() {
		return fmt.Errorf("%w: %q", order.ErrUnknownStatus, o.Status)
	}
	o.Version = 1
	for i := range o.Items {
		o.Items[i].Position = i
		if o.Items[i].Status == "" {
			o.Items[i].Status = o.Status
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if o.SeatID != nil {
			var seat model.Seat
			if err := tx.Select("id", "table_id").First(&seat, *o.SeatID).Error; err != nil {
				return fmt.Errorf("failed to load seat %d: %w", *o.SeatID, notFound(err))
			}
			if seat.TableID != o.TableID {
				return fmt.Errorf("%w: seat %d, table %d", ErrSeatMismatch, seat.ID, o.TableID)
			}
		}
		if err := tx.Create(o).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
}

// GetOrder loads an order and its items.
func (s *gormStore) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return loadOrder(s.db.WithContext(ctx), id)
}

func loadOrder(tx *gorm.DB, id int64) (*model.Order, error) {
	var o model.Order
	err := tx.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&o, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// ListOrders returns orders oldest first.
func (s *gormStore) ListOrders(ctx context.Context, opts ListOptions) ([]model.Order, error) {
	q := s.db.WithContext(ctx).Model(&model.Order{})
	if len(opts.Statuses) > 0 {
		q = q.Where("status IN ?", opts.Statuses)
	}
	if opts.TableID > 0 {
		q = q.Where("table_id = ?", opts.TableID)
	}
	if !opts.UpdatedSince.IsZero() {
		q = q.Where("updated_at >= ?", opts.UpdatedSince)
	}

	var orders []model.Order
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).
		Order("created_at ASC").Order("id ASC").
		Offset(opts.Skip).Limit(opts.PageLimit()).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order through the lifecycle. Items behind the new
// status are carried along; an override sets every item to the new status.
func (s *gormStore) UpdateOrderStatus(ctx context.Context, change StatusChange) (*ChangeResult, error) {
	var result *ChangeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockOrder(tx, change)
		if err != nil {
			return err
		}
		if err := order.Transition(current.Status, change.To, change.Override); err != nil {
			return err
		}

		now := time.Now()
		if err := bumpOrder(tx, current, change.To, now); err != nil {
			return err
		}

		items := tx.Model(&model.OrderItem{}).Where("order_id = ?", current.ID)
		if !change.Override {
			items = items.Where("status IN ?", statusesBefore(change.To))
		}
		if err := items.Updates(map[string]any{"status": change.To, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("failed to update items of order %d: %w", current.ID, err)
		}

		if err := appendLog(tx, current.ID, nil, current.Status, change.To, change, now); err != nil {
			return err
		}

		updated, err := loadOrder(tx, current.ID)
		if err != nil {
			return err
		}
		result = &ChangeResult{
			Order:     updated,
			From:      current.Status,
			To:        change.To,
			OrderFrom: current.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateItemStatus moves a single item. The order follows its slowest item
// forward: it reaches ready only when every item is ready.
func (s *gormStore) UpdateItemStatus(ctx context.Context, change StatusChange) (*ChangeResult, error) {
	var result *ChangeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockOrder(tx, change)
		if err != nil {
			return err
		}

		var item model.OrderItem
		if err := tx.Where("order_id = ?", current.ID).First(&item, change.ItemID).Error; err != nil {
			return fmt.Errorf("failed to load item %d of order %d: %w", change.ItemID, current.ID, notFound(err))
		}
		if err := order.Transition(item.Status, change.To, change.Override); err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&item).Updates(map[string]any{"status": change.To, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("failed to update item %d: %w", item.ID, err)
		}
		itemID := item.ID
		if err := appendLog(tx, current.ID, &itemID, item.Status, change.To, change, now); err != nil {
			return err
		}

		var statuses []order.Status
		if err := tx.Model(&model.OrderItem{}).Where("order_id = ?", current.ID).Pluck("status", &statuses).Error; err != nil {
			return fmt.Errorf("failed to read item statuses of order %d: %w", current.ID, err)
		}

		next := current.Status
		if derived := order.Derive(statuses); current.Status.Before(derived) {
			next = derived
		}
		if err := bumpOrder(tx, current, next, now); err != nil {
			return err
		}
		if next != current.Status {
			derivedChange := change
			derivedChange.Override = false
			if err := appendLog(tx, current.ID, nil, current.Status, next, derivedChange, now); err != nil {
				return err
			}
		}

		updated, err := loadOrder(tx, current.ID)
		if err != nil {
			return err
		}
		result = &ChangeResult{
			Order:     updated,
			ItemID:    item.ID,
			From:      item.Status,
			To:        change.To,
			OrderFrom: current.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// OrderHistory returns the status log of an order, oldest first.
func (s *gormStore) OrderHistory(ctx context.Context, id int64) ([]model.OrderStatusLog, error) {
	var logs []model.OrderStatusLog
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", id).
		Order("changed_at ASC").Order("id ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to load history of order %d: %w", id, err)
	}
	return logs, nil
}

// --- helpers ---

func lockOrder(tx *gorm.DB, change StatusChange) (*model.Order, error) {
	var current model.Order
	if err := tx.First(&current, change.OrderID).Error; err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", change.OrderID, notFound(err))
	}
	if change.ExpectedVersion != 0 && change.ExpectedVersion != current.Version {
		return nil, fmt.Errorf("%w: order %d is at version %d, not %d",
			ErrVersionConflict, current.ID, current.Version, change.ExpectedVersion)
	}
	return &current, nil
}

// bumpOrder writes the new status guarded by the version read in lockOrder,
// so a concurrent writer that committed in between makes this one fail.
func bumpOrder(tx *gorm.DB, current *model.Order, to order.Status, now time.Time) error {
	res := tx.Model(&model.Order{}).
		Where("id = ? AND version = ?", current.ID, current.Version).
		Updates(map[string]any{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update order %d: %w", current.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %d moved past version %d", ErrVersionConflict, current.ID, current.Version)
	}
	return nil
}

func appendLog(tx *gorm.DB, orderID int64, itemID *int64, from, to order.Status, change StatusChange, now time.Time) error {
	entry := model.OrderStatusLog{
		OrderID:   orderID,
		ItemID:    itemID,
		From:      from,
		To:        to,
		Override:  change.Override,
		ChangedBy: change.ChangedBy,
		ChangedAt: now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append status log for order %d: %w", orderID, err)
	}
	return nil
}

func statusesBefore(to order.Status) []order.Status {
	var out []order.Status
	for _, s := range order.All() {
		if s.Before(to) {
			out = append(out, s)
		}
	}
	return out
}
