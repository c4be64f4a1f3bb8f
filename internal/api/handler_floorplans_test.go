package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-order-backend/internal/model"
)

func TestFloorPlansAndTables(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/floor-plans", gin.H{"name": "Terrace"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	fp := decode[model.FloorPlan](t, w)

	w = f.do(t, http.MethodPost, "/api/tables", gin.H{
		"floor_plan_id": fp.ID, "label": "T1", "shape": "circle",
		"width": 80, "height": 80, "x": 10, "y": 20, "seat_count": 4,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	table := decode[model.Table](t, w)
	assert.Len(t, table.Seats, 4)
	assert.Equal(t, model.SeatAvailable, table.Status)

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/floor-plans/%d", fp.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[model.FloorPlan](t, w)
	require.Len(t, got.Tables, 1)
	assert.Len(t, got.Tables[0].Seats, 4)

	w = f.do(t, http.MethodPut, fmt.Sprintf("/api/tables/%d", table.ID), gin.H{
		"label": "T1", "shape": "rectangle", "width": 160, "height": 80, "seat_count": 6,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[model.Table](t, w).Seats, 6)

	path := fmt.Sprintf("/api/tables/%d/status", table.ID)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPatch, path, gin.H{"status": "occupied"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, path, gin.H{"status": "dirty"}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPatch, "/api/tables/9999/status", gin.H{"status": "occupied"}).Code)

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/tables/%d", table.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.SeatOccupied, decode[model.Table](t, w).Status)

	tables := decode[[]model.Table](t, f.do(t, http.MethodGet, fmt.Sprintf("/api/tables?floor_plan_id=%d", fp.ID), nil))
	assert.Len(t, tables, 1)
	assert.Len(t, decode[[]model.Table](t, f.do(t, http.MethodGet, "/api/tables", nil)), 2)
}

func TestTablesRejected(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body gin.H
		code int
	}{
		{"no floor plan", gin.H{"label": "T", "shape": "circle", "width": 1, "height": 1, "seat_count": 2}, http.StatusBadRequest},
		{"unknown floor plan", gin.H{"floor_plan_id": 9999, "label": "T", "shape": "circle", "width": 1, "height": 1, "seat_count": 2}, http.StatusNotFound},
		{"too many seats", gin.H{"floor_plan_id": f.table.FloorPlanID, "label": "T", "shape": "circle", "width": 1, "height": 1, "seat_count": 21}, http.StatusBadRequest},
		{"bad shape", gin.H{"floor_plan_id": f.table.FloorPlanID, "label": "T", "shape": "hexagon", "width": 1, "height": 1, "seat_count": 2}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, f.do(t, http.MethodPost, "/api/tables", tt.body).Code)
		})
	}

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/floor-plans/9999", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPut, "/api/tables/9999", gin.H{
		"label": "T", "shape": "circle", "width": 1, "height": 1, "seat_count": 2,
	}).Code)
}

func TestLayoutCache(t *testing.T) {
	f := newFixture(t)

	first := f.do(t, http.MethodGet, "/api/floor-plans", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := f.do(t, http.MethodGet, "/api/floor-plans", nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/floor-plans", gin.H{"name": "Bar"}).Code)
	third := f.do(t, http.MethodGet, "/api/floor-plans", nil)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Len(t, decode[[]model.FloorPlan](t, third), 2)
}
