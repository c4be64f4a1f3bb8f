package model

import "time"

// Table and seat occupancy states.
const (
	SeatAvailable = "available"
	SeatOccupied  = "occupied"
	SeatReserved  = "reserved"
)

// Table shapes the floor-plan editor can place.
const (
	ShapeCircle    = "circle"
	ShapeRectangle = "rectangle"
	ShapeSquare    = "square"
)

// FloorPlan groups the tables of one dining room.
type FloorPlan struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// Associations
	Tables []Table `gorm:"foreignKey:FloorPlanID" json:"tables,omitempty"`
}

// Table is a dining table positioned on a floor plan.
type Table struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	FloorPlanID int64     `gorm:"index;not null" json:"floor_plan_id"`
	Label       string    `gorm:"size:64;not null" json:"label"`
	Shape       string    `gorm:"size:16;not null" json:"shape"`
	Width       float64   `gorm:"not null" json:"width"`
	Height      float64   `gorm:"not null" json:"height"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Rotation    float64   `json:"rotation"`
	SeatCount   int       `gorm:"not null" json:"seat_count"`
	Status      string    `gorm:"size:16;not null;default:available" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Associations
	Seats []Seat `gorm:"foreignKey:TableID;constraint:OnDelete:CASCADE" json:"seats,omitempty"`
}

// Seat is one numbered place at a table.
type Seat struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	TableID    int64  `gorm:"index;not null" json:"table_id"`
	Number     int    `gorm:"not null" json:"number"`
	Status     string `gorm:"size:16;not null;default:available" json:"status"`
	ResidentID *int64 `json:"resident_id,omitempty"`
}
