// Package export writes order history to parquet files for offline analysis.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"plate-order-backend/internal/model"
	"plate-order-backend/internal/store"
)

const pageSize = 200

// OrderRow is one order as written to parquet.
type OrderRow struct {
	ID         int64  `parquet:"name=id, type=INT64"`
	PublicID   string `parquet:"name=public_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	TableID    int64  `parquet:"name=table_id, type=INT64"`
	SeatID     *int64 `parquet:"name=seat_id, type=INT64, repetitiontype=OPTIONAL"`
	ServerID   string `parquet:"name=server_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Status     string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Version    int64  `parquet:"name=version, type=INT64"`
	ItemCount  int32  `parquet:"name=item_count, type=INT32"`
	Items      string `parquet:"name=items, type=BYTE_ARRAY, convertedtype=UTF8"`
	Transcript string `parquet:"name=transcript, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt  int64  `parquet:"name=created_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	UpdatedAt  int64  `parquet:"name=updated_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// NewOrderRow flattens an order. Item names are joined with "; ".
func NewOrderRow(o model.Order) OrderRow {
	return OrderRow{
		ID:         o.ID,
		PublicID:   o.PublicID,
		TableID:    o.TableID,
		SeatID:     o.SeatID,
		ServerID:   o.ServerID,
		Type:       o.Type,
		Status:     string(o.Status),
		Version:    o.Version,
		ItemCount:  int32(len(o.Items)),
		Items:      strings.Join(o.ItemNames(), "; "),
		Transcript: o.Transcript,
		CreatedAt:  o.CreatedAt.UnixMilli(),
		UpdatedAt:  o.UpdatedAt.UnixMilli(),
	}
}

// Orders writes every order matching opts to a snappy-compressed parquet
// file at path and returns how many rows were written. opts.Skip and
// opts.Limit are ignored; the store is read page by page. progress, when
// set, is called after each page.
func Orders(ctx context.Context, st store.Store, path string, opts store.ListOptions, progress func(n int)) (int, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create local file writer: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(OrderRow), 4)
	if err != nil {
		return 0, fmt.Errorf("failed to create ParquetWriter: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	total := 0
	opts.Limit = pageSize
	for skip := 0; ; skip += pageSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		opts.Skip = skip
		page, err := st.ListOrders(ctx, opts)
		if err != nil {
			return total, err
		}
		for _, o := range page {
			if err := pw.Write(NewOrderRow(o)); err != nil {
				return total, fmt.Errorf("failed to write order %d: %w", o.ID, err)
			}
		}
		total += len(page)
		if progress != nil && len(page) > 0 {
			progress(len(page))
		}
		if len(page) < pageSize {
			break
		}
	}

	if err := pw.WriteStop(); err != nil {
		return total, fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return total, nil
}
