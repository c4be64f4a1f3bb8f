package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"plate-order-backend/internal/model"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("order was changed by someone else")
	ErrSeatMismatch    = errors.New("seat does not belong to table")
)

// OrderRepository is where staff reads and status writes go. The database
// store and the pending orders document both implement it; the configured
// order sink decides which one owns the orders.
type OrderRepository interface {
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	ListOrders(ctx context.Context, opts ListOptions) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, change StatusChange) (*ChangeResult, error)
	UpdateItemStatus(ctx context.Context, change StatusChange) (*ChangeResult, error)
	OrderHistory(ctx context.Context, id int64) ([]model.OrderStatusLog, error)
}

// Store defines the interface for all database operations.
type Store interface {
	OrderRepository

	DB() *gorm.DB

	CreateOrder(ctx context.Context, o *model.Order) error

	CreateFloorPlan(ctx context.Context, fp *model.FloorPlan) error
	GetFloorPlan(ctx context.Context, id int64) (*model.FloorPlan, error)
	ListFloorPlans(ctx context.Context) ([]model.FloorPlan, error)
	CreateTable(ctx context.Context, t *model.Table) error
	UpdateTable(ctx context.Context, t *model.Table) error
	GetTable(ctx context.Context, id int64) (*model.Table, error)
	ListTables(ctx context.Context, floorPlanID int64) ([]model.Table, error)
	SetTableStatus(ctx context.Context, id int64, status string) error
	GetSeat(ctx context.Context, id int64) (*model.Seat, error)

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForServer(ctx context.Context, serverID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
