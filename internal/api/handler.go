package api

import (
	"log/slog"

	"github.com/SherClockHolmes/webpush-go"

	"plate-order-backend/config"
	"plate-order-backend/internal/board"
	"plate-order-backend/internal/capture"
	"plate-order-backend/internal/feed"
	"plate-order-backend/internal/reconcile"
	"plate-order-backend/internal/store"
	"plate-order-backend/internal/transcription"
)

// Deps are the services the handlers call.
type Deps struct {
	Store       store.Store
	Orders      store.OrderRepository // staff order reads; Store when nil
	Sessions    *capture.Manager
	Pipeline    *reconcile.Pipeline
	Transcriber transcription.Transcriber
	Reconciler  *reconcile.Reconciler
	Board       *board.Service
	Feed        *feed.Broadcaster
	Visualizer  config.VisualizerConfig
	Webpush     *webpush.Options
	// MaxUploadBytes caps uploaded audio files. Defaults to 10 MiB.
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store       store.Store
	orders      store.OrderRepository
	sessions    *capture.Manager
	pipeline    *reconcile.Pipeline
	transcriber transcription.Transcriber
	reconciler  *reconcile.Reconciler
	board       *board.Service
	feed        *feed.Broadcaster
	visualizer  config.VisualizerConfig
	webpush     *webpush.Options
	maxUpload   int64
	logger      *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	orders := d.Orders
	if orders == nil && d.Store != nil {
		orders = d.Store
	}
	return &Handler{
		store:       d.Store,
		orders:      orders,
		sessions:    d.Sessions,
		pipeline:    d.Pipeline,
		transcriber: d.Transcriber,
		reconciler:  d.Reconciler,
		board:       d.Board,
		feed:        d.Feed,
		visualizer:  d.Visualizer,
		webpush:     d.Webpush,
		maxUpload:   maxUpload,
		logger:      logger.With(slog.String("component", "api")),
	}
}
