package floorplan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"plate-order-backend/internal/model"
)

func TestValidateTable(t *testing.T) {
	testCases := []struct {
		name    string
		table   model.Table
		wantErr bool
	}{
		{"round four-top", model.Table{Label: "T1", Shape: model.ShapeCircle, Width: 80, Height: 80, SeatCount: 4}, false},
		{"long table", model.Table{Label: "T2", Shape: model.ShapeRectangle, Width: 200, Height: 90, SeatCount: 8}, false},
		{"missing label", model.Table{Shape: model.ShapeCircle, Width: 80, Height: 80, SeatCount: 4}, true},
		{"unknown shape", model.Table{Label: "T3", Shape: "hexagon", Width: 80, Height: 80, SeatCount: 4}, true},
		{"zero width", model.Table{Label: "T4", Shape: model.ShapeRectangle, Height: 80, SeatCount: 4}, true},
		{"uneven square", model.Table{Label: "T5", Shape: model.ShapeSquare, Width: 80, Height: 60, SeatCount: 4}, true},
		{"no seats", model.Table{Label: "T6", Shape: model.ShapeCircle, Width: 80, Height: 80}, true},
		{"too many seats", model.Table{Label: "T7", Shape: model.ShapeCircle, Width: 80, Height: 80, SeatCount: 21}, true},
		{"bad status", model.Table{Label: "T8", Shape: model.ShapeCircle, Width: 80, Height: 80, SeatCount: 2, Status: "broken"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTable(&tc.table)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTable)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, model.SeatAvailable, tc.table.Status)
			}
		})
	}
}

func TestRegenerateSeats(t *testing.T) {
	seats := RegenerateSeats(7, 3)
	assert.Len(t, seats, 3)
	for i, s := range seats {
		assert.Equal(t, int64(7), s.TableID)
		assert.Equal(t, i+1, s.Number)
		assert.Equal(t, model.SeatAvailable, s.Status)
	}
}
