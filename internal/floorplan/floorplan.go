// Package floorplan validates tables placed on a floor plan and builds their seats.
package floorplan

import (
	"errors"
	"fmt"
	"strings"

	"plate-order-backend/internal/model"
)

// MaxSeats is the largest table the editor allows.
const MaxSeats = 20

var ErrInvalidTable = errors.New("invalid table")

// ValidateTable checks shape, dimensions and seat count.
func ValidateTable(t *model.Table) error {
	if strings.TrimSpace(t.Label) == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidTable)
	}
	switch t.Shape {
	case model.ShapeCircle, model.ShapeRectangle, model.ShapeSquare:
	default:
		return fmt.Errorf("%w: unknown shape %q", ErrInvalidTable, t.Shape)
	}
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("%w: width and height must be positive", ErrInvalidTable)
	}
	if t.Shape == model.ShapeSquare && t.Width != t.Height {
		return fmt.Errorf("%w: square tables need equal width and height", ErrInvalidTable)
	}
	if t.SeatCount < 1 || t.SeatCount > MaxSeats {
		return fmt.Errorf("%w: seat count must be between 1 and %d", ErrInvalidTable, MaxSeats)
	}
	switch t.Status {
	case "":
		t.Status = model.SeatAvailable
	case model.SeatAvailable, model.SeatOccupied, model.SeatReserved:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTable, t.Status)
	}
	return nil
}

// RegenerateSeats builds a fresh seat list numbered 1..count.
// Existing seats are replaced wholesale whenever the count changes.
func RegenerateSeats(tableID int64, count int) []model.Seat {
	seats := make([]model.Seat, count)
	for i := range seats {
		seats[i] = model.Seat{
			TableID: tableID,
			Number:  i + 1,
			Status:  model.SeatAvailable,
		}
	}
	return seats
}

// ValidStatus reports whether s is a table or seat occupancy state.
func ValidStatus(s string) bool {
	return s == model.SeatAvailable || s == model.SeatOccupied || s == model.SeatReserved
}
