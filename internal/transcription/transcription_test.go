package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-order-backend/config"
	"plate-order-backend/internal/audio"
)

func TestMock_PicksBySize(t *testing.T) {
	m := NewMock()
	for size := 0; size < 14; size++ {
		res, err := m.Transcribe(context.Background(), Audio{Data: make([]byte, size)})
		require.NoError(t, err)
		assert.Equal(t, Responses[size%len(Responses)], res.Text)
		assert.Nil(t, res.Confidence)
	}
}

func TestMock_Idempotent(t *testing.T) {
	m := NewMock()
	a := Audio{Data: make([]byte, 132300)}
	first, err := m.Transcribe(context.Background(), a)
	require.NoError(t, err)
	second, err := m.Transcribe(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Content does not matter, only the size.
	other := Audio{Data: make([]byte, 132300)}
	other.Data[0] = 0xff
	third, err := m.Transcribe(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, first.Text, third.Text)
}

func TestMock_DelayHonoursContext(t *testing.T) {
	m := &Mock{Responses: Responses, Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Transcribe(ctx, Audio{})
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, UserMessage, te.UserMessage())
}

func TestNew_SelectsProvider(t *testing.T) {
	tr, err := New(config.TranscriptionConfig{Provider: "mock"})
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, tr)

	tr, err = New(config.TranscriptionConfig{Provider: "http", Endpoint: "http://localhost/transcribe"})
	require.NoError(t, err)
	assert.IsType(t, &Client{}, tr)

	_, err = New(config.TranscriptionConfig{Provider: "http"})
	assert.Error(t, err)
	_, err = New(config.TranscriptionConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestClient_PostsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "recording.webm", header.Filename)
		assert.Equal(t, "audio/webm", header.Header.Get("Content-Type"))
		assert.Equal(t, []byte("opus-bytes"), data)
		assert.Equal(t, "en", r.FormValue("language"))

		_ = json.NewEncoder(w).Encode(map[string]any{"text": " soup, salad ", "confidence": 0.92})
	}))
	defer srv.Close()

	c, err := NewClient(config.TranscriptionConfig{Endpoint: srv.URL, APIKey: "secret", Language: "en"})
	require.NoError(t, err)

	res, err := c.Transcribe(context.Background(), Audio{Data: []byte("opus-bytes"), MimeType: "audio/webm"})
	require.NoError(t, err)
	assert.Equal(t, "soup, salad", res.Text)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.92, *res.Confidence, 1e-9)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.TotalRequests)
	assert.Equal(t, uint64(1), stats.SuccessRequests)
	assert.Zero(t, stats.ActiveRequests)
}

func TestClient_WAVFormatWrapsPCM(t *testing.T) {
	pcm := audio.BytesFromPCM16([]int16{1, 2, 3, 4})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "recording.wav", header.Filename)
		samples, info, err := audio.DecodeWAV(data)
		require.NoError(t, err)
		assert.Equal(t, []int16{1, 2, 3, 4}, samples)
		assert.Equal(t, 16000, info.SampleRate)
		_, _ = w.Write([]byte(`{"text":"water"}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.TranscriptionConfig{Endpoint: srv.URL, Format: "wav"})
	require.NoError(t, err)
	res, err := c.Transcribe(context.Background(), Audio{Data: pcm, MimeType: "audio/pcm", SampleRate: 16000})
	require.NoError(t, err)
	assert.Equal(t, "water", res.Text)
}

func TestClient_FailuresAreUserFacing(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unsupported codec", http.StatusBadRequest)
		}},
		{"empty text", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"text":"  "}`))
		}},
		{"garbage", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			c, err := NewClient(config.TranscriptionConfig{Endpoint: srv.URL})
			require.NoError(t, err)

			_, err = c.Transcribe(context.Background(), Audio{Data: []byte("x")})
			var te *Error
			require.True(t, errors.As(err, &te))
			assert.Equal(t, UserMessage, te.UserMessage())
			// No retries unless configured.
			assert.Equal(t, int32(1), hits.Load())
			assert.Equal(t, uint64(1), c.Stats().FailedRequests)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c, err := NewClient(config.TranscriptionConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Transcribe(ctx, Audio{Data: []byte("x")})
	var te *Error
	assert.True(t, errors.As(err, &te))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&statusError{code: 503}))
	assert.True(t, retryable(&statusError{code: 429}))
	assert.False(t, retryable(&statusError{code: 400}))
	assert.False(t, retryable(ErrUnintelligible))
	assert.True(t, retryable(context.DeadlineExceeded))
}
