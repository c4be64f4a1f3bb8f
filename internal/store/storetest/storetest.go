// Package storetest opens throwaway SQLite-backed stores for tests.
package storetest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"plate-order-backend/config"
	"plate-order-backend/internal/db"
	"plate-order-backend/internal/model"
	"plate-order-backend/internal/store"
)

// New returns a migrated store over a private in-memory database.
func New(t testing.TB) store.Store {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
	}
	gormDB, err := db.Init(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return store.NewGormStore(gormDB)
}

// SeedTable creates a floor plan with one table of the given seat count.
func SeedTable(t testing.TB, s store.Store, label string, seats int) *model.Table {
	t.Helper()
	ctx := context.Background()
	fp := &model.FloorPlan{Name: "Dining room " + uuid.NewString()[:8]}
	require.NoError(t, s.CreateFloorPlan(ctx, fp))
	table := &model.Table{
		FloorPlanID: fp.ID,
		Label:       label,
		Shape:       model.ShapeRectangle,
		Width:       120,
		Height:      80,
		SeatCount:   seats,
	}
	require.NoError(t, s.CreateTable(ctx, table))
	return table
}
