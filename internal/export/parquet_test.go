package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"plate-order-backend/internal/model"
	"plate-order-backend/internal/order"
	"plate-order-backend/internal/store"
	"plate-order-backend/internal/store/storetest"
)

func readRows(t *testing.T, path string) []OrderRow {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(OrderRow), 4)
	require.NoError(t, err)
	defer pr.ReadStop()

	rows := make([]OrderRow, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	return rows
}

func TestOrders(t *testing.T) {
	st := storetest.New(t)
	table := storetest.SeedTable(t, st, "T1", 2)
	seat := table.Seats[0].ID

	ctx := context.Background()
	first := &model.Order{TableID: table.ID, SeatID: &seat, ServerID: "maria", Type: "food", Transcript: "soup, bread",
		Items: []model.OrderItem{{Name: "soup"}, {Name: "bread"}}}
	require.NoError(t, st.CreateOrder(ctx, first))
	second := &model.Order{TableID: table.ID, Type: "drink", Transcript: "water", Status: order.StatusReady,
		Items: []model.OrderItem{{Name: "water"}}}
	require.NoError(t, st.CreateOrder(ctx, second))

	path := filepath.Join(t.TempDir(), "orders.parquet")
	var reported int
	n, err := Orders(ctx, st, path, store.ListOptions{}, func(k int) { reported += k })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, reported)

	rows := readRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, "soup; bread", rows[0].Items)
	assert.Equal(t, int32(2), rows[0].ItemCount)
	require.NotNil(t, rows[0].SeatID)
	assert.Equal(t, seat, *rows[0].SeatID)
	assert.Nil(t, rows[1].SeatID)
	assert.Equal(t, "ready", rows[1].Status)

	n, err = Orders(ctx, st, filepath.Join(t.TempDir(), "ready.parquet"), store.ListOptions{Statuses: []order.Status{order.StatusReady}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
