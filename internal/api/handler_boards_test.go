package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-order-backend/config"
	"plate-order-backend/internal/board"
	"plate-order-backend/internal/feed"
	"plate-order-backend/internal/model"
)

func readEvent(t *testing.T, r *bufio.Reader) (string, []byte) {
	t.Helper()
	var event string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			return event, []byte(strings.TrimPrefix(line, "data:"))
		}
	}
}

func TestFeedStream(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder(t, "soup, bread")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := feed.NewBroadcaster(&feed.PollFeed{
		Transport: "poll",
		Load:      feed.StoreLoader(f.store, 0, time.Minute),
		Interval:  time.Hour,
		Logger:    discard(),
	}, discard())
	go func() { _ = b.Run(ctx) }()
	require.Eventually(t, func() bool { _, ok := b.Latest(); return ok }, 2*time.Second, 10*time.Millisecond)

	h := NewHandler(Deps{Store: f.store, Board: &board.Service{Store: f.store}, Feed: b, Logger: discard()})
	srv := httptest.NewServer(NewRouter(h, RouterOptions{
		Server: config.ServerConfig{RateLimitPerSec: 100, RateLimitBurst: 100},
		Logger: discard(),
	}))
	defer srv.Close()

	t.Run("orders", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/feed")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

		event, data := readEvent(t, bufio.NewReader(resp.Body))
		assert.Equal(t, "orders", event)
		var msg struct {
			Cause  string        `json:"cause"`
			Orders []model.Order `json:"orders"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "initial", msg.Cause)
		require.Len(t, msg.Orders, 1)
		assert.Equal(t, o.ID, msg.Orders[0].ID)
	})

	t.Run("kitchen view", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/feed?view=kitchen")
		require.NoError(t, err)
		defer resp.Body.Close()

		_, data := readEvent(t, bufio.NewReader(resp.Body))
		var msg struct {
			View board.View `json:"view"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "kitchen", msg.View.Name)
		col := msg.View.Column("new")
		require.NotNil(t, col)
		require.Len(t, col.Cards, 1)
		assert.Equal(t, "Patio 3", col.Cards[0].TableLabel)
	})

	t.Run("bad view", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/feed?view=bar")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
