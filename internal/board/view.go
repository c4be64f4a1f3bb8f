// Package board groups orders into the kitchen and expo views and applies
// the status changes staff make from them.
package board

import (
	"strconv"
	"strings"
	"time"

	"plate-order-backend/internal/dietary"
	"plate-order-backend/internal/model"
	"plate-order-backend/internal/order"
)

// Card is one order as a board shows it.
type Card struct {
	OrderID    int64           `json:"order_id"`
	PublicID   string          `json:"public_id"`
	Version    int64           `json:"version"`
	Status     order.Status    `json:"status"`
	Type       string          `json:"type"`
	TableID    int64           `json:"table_id"`
	TableLabel string          `json:"table_label"`
	SeatID     *int64          `json:"seat_id,omitempty"`
	SeatNumber int             `json:"seat_number,omitempty"`
	ServerID   string          `json:"server_id,omitempty"`
	Transcript string          `json:"transcript"`
	Items      []CardItem      `json:"items"`
	Alerts     []dietary.Alert `json:"alerts,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	AgeSeconds int64           `json:"age_seconds"`
}

// CardItem is one line on a card.
type CardItem struct {
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	Status order.Status `json:"status"`
}

// Column holds the cards in one status, oldest first.
type Column struct {
	Status order.Status `json:"status"`
	Cards  []Card       `json:"cards"`
}

// View is a whole board.
type View struct {
	Name        string    `json:"name"`
	Columns     []Column  `json:"columns"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Column returns the column for s, or nil.
func (v *View) Column(s order.Status) *Column {
	for i := range v.Columns {
		if v.Columns[i].Status == s {
			return &v.Columns[i]
		}
	}
	return nil
}

var (
	kitchenColumns = []order.Status{order.StatusNew, order.StatusCooking, order.StatusReady}
	expoColumns    = []order.Status{order.StatusReady, order.StatusDelivered}
)

// Directory resolves table labels and seat numbers for cards.
type Directory struct {
	tables map[int64]string
	seats  map[int64]int
}

// NewDirectory indexes tables and their seats.
func NewDirectory(tables []model.Table) Directory {
	d := Directory{tables: make(map[int64]string), seats: make(map[int64]int)}
	for _, t := range tables {
		d.tables[t.ID] = t.Label
		for _, s := range t.Seats {
			d.seats[s.ID] = s.Number
		}
	}
	return d
}

// TableLabel returns the table's label, falling back to its id.
func (d Directory) TableLabel(id int64) string {
	if l, ok := d.tables[id]; ok && l != "" {
		return l
	}
	return strconv.FormatInt(id, 10)
}

// NewCard builds the card for o.
func NewCard(o model.Order, dir Directory, now time.Time) Card {
	c := Card{
		OrderID:    o.ID,
		PublicID:   o.PublicID,
		Version:    o.Version,
		Status:     o.Status,
		Type:       o.Type,
		TableID:    o.TableID,
		TableLabel: dir.TableLabel(o.TableID),
		SeatID:     o.SeatID,
		ServerID:   o.ServerID,
		Transcript: o.Transcript,
		Items:      make([]CardItem, 0, len(o.Items)),
		CreatedAt:  o.CreatedAt,
	}
	if o.SeatID != nil {
		c.SeatNumber = dir.seats[*o.SeatID]
	}
	if !o.CreatedAt.IsZero() && now.After(o.CreatedAt) {
		c.AgeSeconds = int64(now.Sub(o.CreatedAt) / time.Second)
	}
	names := make([]string, 0, len(o.Items)+1)
	for _, it := range o.Items {
		c.Items = append(c.Items, CardItem{ID: it.ID, Name: it.Name, Status: it.Status})
		names = append(names, it.Name)
	}
	if len(names) == 0 {
		names = append(names, o.Transcript)
	}
	c.Alerts = dietary.Alerts(strings.Join(names, " "))
	return c
}

func build(name string, statuses []order.Status, orders []model.Order, dir Directory, now time.Time, keep func(model.Order) bool) View {
	v := View{Name: name, GeneratedAt: now}
	for _, s := range statuses {
		v.Columns = append(v.Columns, Column{Status: s, Cards: []Card{}})
	}
	for _, o := range orders {
		col := v.Column(o.Status)
		if col == nil || (keep != nil && !keep(o)) {
			continue
		}
		col.Cards = append(col.Cards, NewCard(o, dir, now))
	}
	return v
}

// Kitchen groups orders into new, cooking and ready. Delivered orders are hidden.
func Kitchen(orders []model.Order, dir Directory, now time.Time) View {
	return build("kitchen", kitchenColumns, orders, dir, now, nil)
}

// Expo shows orders ready for pickup and those delivered within window.
func Expo(orders []model.Order, dir Directory, now time.Time, window time.Duration) View {
	cutoff := now.Add(-window)
	return build("expo", expoColumns, orders, dir, now, func(o model.Order) bool {
		return o.Status != order.StatusDelivered || !o.UpdatedAt.Before(cutoff)
	})
}
