// Package seed fills a database with a demo dining room and orders.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/jaswdr/faker"

	"plate-order-backend/internal/model"
	"plate-order-backend/internal/order"
	"plate-order-backend/internal/store"
)

// Options control how much demo data is created.
type Options struct {
	FloorPlan string
	Tables    int
	Orders    int
	Servers   int
	Seed      int64
}

// Progress is told about every created table and order.
type Progress interface {
	Add(n int) error
}

type nopProgress struct{}

func (nopProgress) Add(int) error { return nil }

// Result lists what was created.
type Result struct {
	FloorPlan *model.FloorPlan
	Tables    []model.Table
	Orders    []model.Order
	Servers   []string
}

var shapes = []string{model.ShapeCircle, model.ShapeRectangle, model.ShapeSquare}

// Run creates one floor plan with opts.Tables tables laid out on a grid,
// then opts.Orders orders spread over those tables and moved to random
// points of their lifecycle.
func Run(ctx context.Context, st store.Store, opts Options, progress Progress) (*Result, error) {
	if opts.Tables < 1 {
		return nil, fmt.Errorf("at least one table is required")
	}
	if opts.Servers < 1 {
		opts.Servers = 3
	}
	if progress == nil {
		progress = nopProgress{}
	}
	fake := faker.NewWithSeed(rand.NewSource(opts.Seed))

	name := opts.FloorPlan
	if name == "" {
		name = fake.Address().City() + " dining room"
	}
	fp := &model.FloorPlan{Name: name}
	if err := st.CreateFloorPlan(ctx, fp); err != nil {
		return nil, err
	}
	res := &Result{FloorPlan: fp}

	for i := 0; i < opts.Servers; i++ {
		res.Servers = append(res.Servers, strings.ToLower(fake.Person().FirstName()))
	}

	for i := 0; i < opts.Tables; i++ {
		t := newTable(fake, fp.ID, i)
		if err := st.CreateTable(ctx, t); err != nil {
			return res, err
		}
		res.Tables = append(res.Tables, *t)
		_ = progress.Add(1)
	}

	for i := 0; i < opts.Orders; i++ {
		table := res.Tables[fake.IntBetween(0, len(res.Tables)-1)]
		o := newOrder(fake, table, res.Servers)
		if err := st.CreateOrder(ctx, o); err != nil {
			return res, err
		}
		if err := advance(ctx, st, o, fake.IntBetween(0, 3)); err != nil {
			return res, err
		}
		stored, err := st.GetOrder(ctx, o.ID)
		if err != nil {
			return res, err
		}
		res.Orders = append(res.Orders, *stored)
		_ = progress.Add(1)
	}
	return res, nil
}

func newTable(fake faker.Faker, floorPlanID int64, i int) *model.Table {
	shape := shapes[fake.IntBetween(0, len(shapes)-1)]
	width := float64(fake.IntBetween(6, 12) * 10)
	height := width
	if shape == model.ShapeRectangle {
		height = width / 2
	}
	return &model.Table{
		FloorPlanID: floorPlanID,
		Label:       fmt.Sprintf("T%d", i+1),
		Shape:       shape,
		Width:       width,
		Height:      height,
		X:           float64(i%5) * 160,
		Y:           float64(i/5) * 160,
		SeatCount:   fake.IntBetween(2, 8),
	}
}

func newOrder(fake faker.Faker, table model.Table, servers []string) *model.Order {
	names := make([]string, fake.IntBetween(1, 4))
	for i := range names {
		if fake.Bool() {
			names[i] = fake.Food().Fruit()
		} else {
			names[i] = fake.Food().Vegetable()
		}
	}
	o := &model.Order{
		TableID:    table.ID,
		ServerID:   servers[fake.IntBetween(0, len(servers)-1)],
		Type:       "food",
		Transcript: strings.Join(names, ", "),
	}
	if len(table.Seats) > 0 && fake.Bool() {
		seat := table.Seats[fake.IntBetween(0, len(table.Seats)-1)].ID
		o.SeatID = &seat
	}
	if fake.IntBetween(0, 4) == 0 {
		o.Type = "drink"
	}
	for _, n := range names {
		o.Items = append(o.Items, model.OrderItem{Name: n})
	}
	return o
}

// advance moves an order forward steps times through the normal lifecycle.
func advance(ctx context.Context, st store.Store, o *model.Order, steps int) error {
	current := o.Status
	version := o.Version
	for i := 0; i < steps; i++ {
		next, ok := order.Next(current)
		if !ok {
			return nil
		}
		res, err := st.UpdateOrderStatus(ctx, store.StatusChange{
			OrderID:         o.ID,
			ExpectedVersion: version,
			To:              next,
			ChangedBy:       "seed",
		})
		if err != nil {
			return fmt.Errorf("advance order %d: %w", o.ID, err)
		}
		current, version = res.Order.Status, res.Order.Version
	}
	return nil
}
