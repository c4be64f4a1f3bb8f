package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"plate-order-backend/internal/floorplan"
	"plate-order-backend/internal/model"
)

func (s *gormStore) CreateFloorPlan(ctx context.Context, fp *model.FloorPlan) error {
	if err := s.db.WithContext(ctx).Omit("Tables").Create(fp).Error; err != nil {
		return fmt.Errorf("failed to create floor plan %q: %w", fp.Name, err)
	}
	return nil
}

// GetFloorPlan loads a floor plan with its tables and their seats.
func (s *gormStore) GetFloorPlan(ctx context.Context, id int64) (*model.FloorPlan, error) {
	var fp model.FloorPlan
	err := s.db.WithContext(ctx).
		Preload("Tables", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Tables.Seats", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		First(&fp, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &fp, nil
}

func (s *gormStore) ListFloorPlans(ctx context.Context) ([]model.FloorPlan, error) {
	var plans []model.FloorPlan
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list floor plans: %w", err)
	}
	return plans, nil
}

// CreateTable validates a table and creates it together with its seats.
func (s *gormStore) CreateTable(ctx context.Context, t *model.Table) error {
	if err := floorplan.ValidateTable(t); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&model.FloorPlan{}, t.FloorPlanID).Error; err != nil {
			return fmt.Errorf("failed to load floor plan %d: %w", t.FloorPlanID, notFound(err))
		}
		if err := tx.Omit("Seats").Create(t).Error; err != nil {
			return fmt.Errorf("failed to create table %q: %w", t.Label, err)
		}
		t.Seats = floorplan.RegenerateSeats(t.ID, t.SeatCount)
		if err := tx.Create(&t.Seats).Error; err != nil {
			return fmt.Errorf("failed to create seats for table %d: %w", t.ID, err)
		}
		return nil
	})
}

// UpdateTable saves position, shape and size. When the seat count changes every
// seat is dropped and regenerated.
func (s *gormStore) UpdateTable(ctx context.Context, t *model.Table) error {
	if err := floorplan.ValidateTable(t); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Table
		if err := tx.First(&existing, t.ID).Error; err != nil {
			return fmt.Errorf("failed to load table %d: %w", t.ID, notFound(err))
		}
		t.FloorPlanID = existing.FloorPlanID
		t.CreatedAt = existing.CreatedAt
		oldSeatCount := existing.SeatCount

		if err := tx.Model(&existing).Select(
			"label", "shape", "width", "height", "x", "y", "rotation", "seat_count", "status",
		).Updates(t).Error; err != nil {
			return fmt.Errorf("failed to update table %d: %w", t.ID, err)
		}

		if oldSeatCount != t.SeatCount {
			if err := tx.Where("table_id = ?", t.ID).Delete(&model.Seat{}).Error; err != nil {
				return fmt.Errorf("failed to drop seats of table %d: %w", t.ID, err)
			}
			seats := floorplan.RegenerateSeats(t.ID, t.SeatCount)
			if err := tx.Create(&seats).Error; err != nil {
				return fmt.Errorf("failed to regenerate seats of table %d: %w", t.ID, err)
			}
		}

		return tx.Where("table_id = ?", t.ID).Order("number ASC").Find(&t.Seats).Error
	})
}

func (s *gormStore) GetTable(ctx context.Context, id int64) (*model.Table, error) {
	var t model.Table
	err := s.db.WithContext(ctx).
		Preload("Seats", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		First(&t, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// ListTables returns the tables of a floor plan, or all tables when floorPlanID is zero.
func (s *gormStore) ListTables(ctx context.Context, floorPlanID int64) ([]model.Table, error) {
	q := s.db.WithContext(ctx).Preload("Seats", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") })
	if floorPlanID > 0 {
		q = q.Where("floor_plan_id = ?", floorPlanID)
	}
	var tables []model.Table
	if err := q.Order("id ASC").Find(&tables).Error; err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

func (s *gormStore) SetTableStatus(ctx context.Context, id int64, status string) error {
	if !floorplan.ValidStatus(status) {
		return fmt.Errorf("%w: unknown status %q", floorplan.ErrInvalidTable, status)
	}
	res := s.db.WithContext(ctx).Model(&model.Table{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to set status of table %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) GetSeat(ctx context.Context, id int64) (*model.Seat, error) {
	var seat model.Seat
	if err := s.db.WithContext(ctx).First(&seat, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &seat, nil
}
