package api

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"plate-order-backend/internal/board"
	"plate-order-backend/internal/feed"
)

// feedKeepAlive is how often an idle feed stream gets a comment line so
// proxies keep the connection open.
const feedKeepAlive = 15 * time.Second

// KitchenBoard handles GET /api/kitchen.
func (h *Handler) KitchenBoard(c *gin.Context) {
	v, err := h.board.Kitchen(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// ExpoBoard handles GET /api/expo.
func (h *Handler) ExpoBoard(c *gin.Context) {
	v, err := h.board.Expo(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// feedMessage is one event on the order feed stream.
type feedMessage struct {
	Cause  string      `json:"cause"`
	At     time.Time   `json:"at"`
	Orders any         `json:"orders,omitempty"`
	View   *board.View `json:"view,omitempty"`
}

// Feed handles GET /api/feed as a server-sent event stream. Every event
// carries the complete current order list; ?view=kitchen or ?view=expo sends
// the grouped board instead.
func (h *Handler) Feed(c *gin.Context) {
	if h.feed == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "order feed is not running"})
		return
	}
	view := c.Query("view")
	switch view {
	case "", "kitchen", "expo":
	default:
		badRequest(c, "view must be kitchen or expo")
		return
	}

	snaps, cancel := h.feed.Subscribe()
	defer cancel()

	ctx := c.Request.Context()
	keepAlive := time.NewTicker(feedKeepAlive)
	defer keepAlive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		case snap, ok := <-snaps:
			if !ok {
				return false
			}
			c.SSEvent("orders", h.feedMessage(c, view, snap))
			return true
		}
	})
}

func (h *Handler) feedMessage(c *gin.Context, view string, snap feed.Snapshot) feedMessage {
	msg := feedMessage{Cause: snap.Cause, At: snap.At}
	if view == "" {
		msg.Orders = snap.Orders
		return msg
	}

	tables, err := h.store.ListTables(c.Request.Context(), 0)
	if err != nil {
		h.logger.Warn("feed: failed to load table labels", slog.Any("error", err))
	}
	dir := board.NewDirectory(tables)
	var v board.View
	if view == "expo" {
		v = board.Expo(snap.Orders, dir, time.Now(), h.board.DeliveredWindow)
	} else {
		v = board.Kitchen(snap.Orders, dir, time.Now())
	}
	msg.View = &v
	return msg
}
