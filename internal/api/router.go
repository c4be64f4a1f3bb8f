package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"plate-order-backend/config"
	"plate-order-backend/internal/mw"
)

// RouterOptions configure the middleware around the handlers.
type RouterOptions struct {
	Server   config.ServerConfig
	Gatherer prometheus.Gatherer // nil disables /metrics
	Recorder mw.HTTPRecorder     // optional
	// Limiter is the /api limiter; when nil one is built from Server and
	// never swept.
	Limiter *mw.ClientRateLimiter
	Logger   *slog.Logger
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestID(), mw.Observe(logger, opts.Recorder))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = mw.NewClientRateLimiter(rate.Limit(opts.Server.RateLimitPerSec), opts.Server.RateLimitBurst)
	}
	rateLimiter := mw.RateLimitWith(limiter)
	transcribeLimit := opts.Server.TranscribePerSec
	if transcribeLimit <= 0 {
		transcribeLimit = 1
	}
	transcribeLimiter := mw.RateLimiter(rate.Limit(transcribeLimit), 2)

	ttl := opts.Server.CacheTTL()
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	caching := mw.NewResponseCache(ttl).Middleware()

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		rec := api.Group("/recordings")
		rec.POST("", h.StartRecording)
		rec.GET("/:id", h.GetRecording)
		rec.DELETE("/:id", h.DeleteRecording)
		rec.POST("/:id/start", h.RestartRecording)
		rec.POST("/:id/chunks", h.AppendChunk)
		rec.POST("/:id/stop", h.StopRecording)
		rec.POST("/:id/cancel", h.CancelRecording)
		rec.GET("/:id/levels", h.GetLevels)

		api.POST("/speech/transcribe", transcribeLimiter, h.Transcribe)

		api.POST("/orders", h.CreateOrder)
		api.GET("/orders/:id", h.GetOrder)
		api.PUT("/orders/:id", h.UpdateOrder)
		api.PATCH("/orders/:id", h.UpdateOrder)
		api.POST("/orders/:id/advance", h.AdvanceOrder)
		api.PATCH("/orders/:id/items/:item_id", h.UpdateItem)
		api.GET("/orders/:id/history", h.OrderHistory)

		v1 := api.Group("/v1")
		v1.POST("/orders", h.CreateOrder)
		v1.GET("/orders", h.ListOrders)

		api.GET("/kitchen", h.KitchenBoard)
		api.GET("/expo", h.ExpoBoard)
		api.GET("/feed", h.Feed)

		layout := api.Group("", caching)
		layout.GET("/floor-plans", h.ListFloorPlans)
		layout.POST("/floor-plans", h.CreateFloorPlan)
		layout.GET("/floor-plans/:id", h.GetFloorPlan)
		layout.GET("/tables", h.ListTables)
		layout.POST("/tables", h.CreateTable)
		layout.GET("/tables/:id", h.GetTable)
		layout.PUT("/tables/:id", h.UpdateTable)
		layout.PATCH("/tables/:id/status", h.SetTableStatus)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
