package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-order-backend/config"
	"plate-order-backend/internal/api"
	"plate-order-backend/internal/audio"
	"plate-order-backend/internal/board"
	"plate-order-backend/internal/capture"
	"plate-order-backend/internal/events"
	"plate-order-backend/internal/feed"
	"plate-order-backend/internal/order"
	"plate-order-backend/internal/reconcile"
	"plate-order-backend/internal/store/storetest"
	"plate-order-backend/internal/transcription"
)

const feedInterval = 200 * time.Millisecond

// threeSecondClip is 3 s of a 440 Hz tone as 16 kHz mono WAV.
func threeSecondClip(t *testing.T) []byte {
	t.Helper()
	const rate = 16000
	samples := make([]int16, 3*rate)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	wav, err := audio.EncodeWAV(samples, rate, 1)
	require.NoError(t, err)
	return wav
}

func post(t *testing.T, r http.Handler, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req := httptest.NewRequest(http.MethodPost, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func nextSnapshot(t *testing.T, snaps <-chan feed.Snapshot, within time.Duration) feed.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-snaps:
		require.True(t, ok, "feed closed")
		return snap
	case <-time.After(within):
		t.Fatalf("no snapshot within %s", within)
	}
	return feed.Snapshot{}
}

// TestVoiceOrderLifecycle records a clip through the API, lets the mock
// transcriber turn it into an order and follows that order through the
// polling feed from new to cooking.
func TestVoiceOrderLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := storetest.New(t)
	table := storetest.SeedTable(t, st, "Window 2", 4)

	rec := &reconcile.Reconciler{
		Mode:      reconcile.ModeSplit,
		Validator: reconcile.Validator{RequireTable: true, Seats: st},
		Sink:      reconcile.StoreSink{Store: st},
		Publisher: events.Nop{},
		Logger:    logger,
	}
	pipeline := &reconcile.Pipeline{Transcriber: transcription.NewMock(), Reconciler: rec, Logger: logger}
	sessions := capture.NewManager(logger, capture.NewUploadSource(), capture.ManagerConfig{
		Session: capture.Options{
			MaxDuration: 30 * time.Second,
			Constraints: capture.DefaultConstraints(),
			MimeType:    "audio/wav",
			OnComplete:  pipeline.OnComplete,
		},
	})
	defer sessions.Close()
	pipeline.Sessions = sessions

	router := api.NewRouter(api.NewHandler(api.Deps{
		Store:       st,
		Sessions:    sessions,
		Pipeline:    pipeline,
		Transcriber: pipeline.Transcriber,
		Reconciler:  rec,
		Board:       &board.Service{Store: st, Logger: logger},
		Visualizer:  config.VisualizerConfig{FFTSize: 256, Bars: 16, MaxHeight: 100},
		Logger:      logger,
	}), api.RouterOptions{
		Server: config.ServerConfig{RateLimitPerSec: 100, RateLimitBurst: 100},
		Logger: logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orderFeed := &feed.PollFeed{
		Transport: "poll",
		Load:      feed.StoreLoader(st, 0, time.Minute),
		Interval:  feedInterval,
		Logger:    logger,
	}
	snaps, err := orderFeed.Subscribe(ctx)
	require.NoError(t, err)
	assert.Empty(t, nextSnapshot(t, snaps, time.Second).Orders)

	// --- Record ---
	start, _ := json.Marshal(map[string]any{"table_id": table.ID, "server_id": "ana"})
	w := post(t, router, "/api/recordings", start)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var snap capture.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))

	clip := threeSecondClip(t)
	for off := 0; off < len(clip); off += 32000 {
		end := min(off+32000, len(clip))
		require.Equal(t, http.StatusAccepted, post(t, router, "/api/recordings/"+snap.ID+"/chunks", clip[off:end]).Code)
	}
	require.Equal(t, http.StatusAccepted, post(t, router, "/api/recordings/"+snap.ID+"/stop", nil).Code)
	pipeline.Wait()

	s, ok := sessions.Get(snap.ID)
	require.True(t, ok)
	final := s.Snapshot()
	require.Equal(t, capture.StateDone, final.State, final.Error)
	want := transcription.Responses[len(clip)%len(transcription.Responses)]
	assert.Equal(t, want, final.Transcript)

	// --- The order shows up on the next poll ---
	got := nextSnapshot(t, snaps, 3*feedInterval)
	require.Len(t, got.Orders, 1)
	o := got.Orders[0]
	assert.Equal(t, final.OrderID, o.ID)
	assert.Equal(t, order.StatusNew, o.Status)
	assert.Equal(t, table.ID, o.TableID)
	assert.Equal(t, want, o.Transcript)
	assert.Equal(t, reconcile.ParseItems(want), o.ItemNames())

	// --- Kitchen starts cooking ---
	w = post(t, router, fmt.Sprintf("/api/orders/%d/advance", o.ID), []byte(fmt.Sprintf(`{"version":%d}`, o.Version)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got = nextSnapshot(t, snaps, 3*feedInterval)
	require.Len(t, got.Orders, 1)
	assert.Equal(t, order.StatusCooking, got.Orders[0].Status)
	assert.Equal(t, "poll", got.Cause)
}
