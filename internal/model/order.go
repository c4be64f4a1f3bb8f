package model

import (
	"time"

	"plate-order-backend/internal/order"
)

// Order is a single food or drink order placed for a seat at a table.
type Order struct {
	ID         int64        `gorm:"primaryKey" json:"id"`
	PublicID   string       `gorm:"uniqueIndex;size:36;not null" json:"public_id"`
	TableID    int64        `gorm:"index;not null" json:"table_id"`
	SeatID     *int64       `gorm:"index" json:"seat_id,omitempty"`
	ResidentID *int64       `gorm:"index" json:"resident_id,omitempty"`
	ServerID   string       `gorm:"index;size:64" json:"server_id,omitempty"`
	Type       string       `gorm:"size:16;not null;default:food" json:"type"`
	Transcript string       `gorm:"type:text;not null" json:"transcript"`
	Status     order.Status `gorm:"index;size:16;not null" json:"status"`
	Version    int64        `gorm:"not null;default:1" json:"version"`
	CreatedAt  time.Time    `gorm:"index;not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`

	// Associations
	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// OrderItem is one dish or drink within an order.
type OrderItem struct {
	ID        int64        `gorm:"primaryKey" json:"id"`
	OrderID   int64        `gorm:"index;not null" json:"order_id"`
	Position  int          `gorm:"not null" json:"position"`
	Name      string       `gorm:"size:256;not null" json:"name"`
	Modifiers string       `gorm:"size:512" json:"modifiers,omitempty"`
	Status    order.Status `gorm:"size:16;not null" json:"status"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// OrderStatusLog is the append-only history of status changes.
type OrderStatusLog struct {
	ID        int64        `gorm:"primaryKey" json:"id"`
	OrderID   int64        `gorm:"index;not null" json:"order_id"`
	ItemID    *int64       `gorm:"index" json:"item_id,omitempty"`
	From      order.Status `gorm:"column:from_status;size:16;not null" json:"from"`
	To        order.Status `gorm:"column:to_status;size:16;not null" json:"to"`
	Override  bool         `gorm:"not null" json:"override"`
	ChangedBy string       `gorm:"size:64" json:"changed_by,omitempty"`
	ChangedAt time.Time    `gorm:"index;not null" json:"changed_at"`
}

// ItemNames returns the item names in order.
func (o *Order) ItemNames() []string {
	names := make([]string, len(o.Items))
	for i, it := range o.Items {
		names[i] = it.Name
	}
	return names
}
