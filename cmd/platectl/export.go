package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"plate-order-backend/internal/archive"
	"plate-order-backend/internal/export"
	"plate-order-backend/internal/order"
	"plate-order-backend/internal/store"
)

var (
	exportOut      string
	exportStatuses []string
	exportUpload   bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write order history to a parquet file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var opts store.ListOptions
		for _, s := range exportStatuses {
			st, err := order.ParseStatus(s)
			if err != nil {
				return err
			}
			opts.Statuses = append(opts.Statuses, st)
		}

		st, gormDB, err := openStore(cfg, newLogger())
		if err != nil {
			return err
		}
		defer closeDB(gormDB)

		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("exporting orders"),
			progressbar.OptionShowCount(),
		)
		n, err := export.Orders(cmd.Context(), st, exportOut, opts, func(k int) { _ = bar.Add(k) })
		_ = bar.Finish()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nwrote %d orders to %s\n", n, exportOut)

		if !exportUpload {
			return nil
		}
		if !cfg.Archive.Enabled {
			return fmt.Errorf("--upload needs archive.enabled in the configuration")
		}
		arch, err := archive.NewS3Archive(cmd.Context(), cfg.Archive)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(exportOut)
		if err != nil {
			return err
		}
		prefix := strings.TrimRight(cfg.Archive.Prefix, "/") + "/exports"
		key := archive.Key(prefix, time.Now(), strings.TrimSuffix(filepath.Base(exportOut), ".parquet"), ".parquet")
		if err := arch.Put(cmd.Context(), key, data, "application/vnd.apache.parquet"); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded to s3://%s/%s\n", cfg.Archive.Bucket, key)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "orders.parquet", "output file")
	exportCmd.Flags().StringSliceVar(&exportStatuses, "status", nil, "only export orders in these statuses")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "also upload the file to the recording archive bucket")
}
