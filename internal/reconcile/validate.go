package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"plate-order-backend/internal/model"
	"plate-order-backend/internal/store"
)

var (
	ErrEmptyTranscript = errors.New("order text is empty")
	ErrNoTable         = errors.New("a table must be selected")
	ErrInvalidType     = errors.New("order type must be food or drink")
)

// Input is everything known about an order before it is persisted.
type Input struct {
	Transcript string
	Items      []string // explicit items skip transcript parsing
	TableID    int64
	SeatID     *int64
	ResidentID *int64
	ServerID   string
	Type       string
}

// SeatLookup resolves seats for the table check.
type SeatLookup interface {
	GetSeat(ctx context.Context, id int64) (*model.Seat, error)
}

// Validator is the single validation path for every order source.
type Validator struct {
	RequireTable bool
	Seats        SeatLookup // optional
}

// Validate checks in and returns the first problem found.
func (v Validator) Validate(ctx context.Context, in Input) error {
	if strings.TrimSpace(in.Transcript) == "" && len(in.Items) == 0 {
		return ErrEmptyTranscript
	}
	if v.RequireTable && in.TableID == 0 {
		return ErrNoTable
	}
	switch in.Type {
	case "", "food", "drink":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}
	if in.SeatID != nil && v.Seats != nil {
		seat, err := v.Seats.GetSeat(ctx, *in.SeatID)
		if err != nil {
			return fmt.Errorf("seat %d: %w", *in.SeatID, err)
		}
		if seat.TableID != in.TableID {
			return fmt.Errorf("%w: seat %d, table %d", store.ErrSeatMismatch, seat.ID, in.TableID)
		}
	}
	return nil
}
