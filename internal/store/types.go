package store

import (
	"time"

	"plate-order-backend/internal/model"
	"plate-order-backend/internal/order"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// ListOptions filters and pages an order listing.
type ListOptions struct {
	Skip         int
	Limit        int
	Statuses     []order.Status
	TableID      int64
	UpdatedSince time.Time
}

// PageLimit is Limit clamped to 1..MaxListLimit, DefaultListLimit when unset.
func (o ListOptions) PageLimit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	}
	return o.Limit
}

// StatusChange asks for an order (ItemID == 0) or one of its items to move to To.
// ExpectedVersion is the order version the caller last saw; zero skips the check
// and the last writer wins.
type StatusChange struct {
	OrderID         int64
	ItemID          int64
	ExpectedVersion int64
	To              order.Status
	Override        bool
	ChangedBy       string
}

// ChangeResult describes a committed status change.
type ChangeResult struct {
	Order     *model.Order
	ItemID    int64
	From      order.Status
	To        order.Status
	OrderFrom order.Status // order status before the change; differs from Order.Status when an item change moved the order
}

// OrderMoved reports whether the order status itself changed.
func (r *ChangeResult) OrderMoved() bool {
	return r.OrderFrom != r.Order.Status
}
