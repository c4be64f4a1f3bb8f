package visualizer

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-order-backend/config"
	"plate-order-backend/internal/audio"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(config.VisualizerConfig{FFTSize: 256, Bars: 32, MaxHeight: 100})
	require.NoError(t, err)
	return a
}

// tone returns a sine that lands exactly on the given FFT bin.
func tone(n, bin int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*float64(bin)*float64(i)/float64(n))
	}
	return out
}

func TestNewAnalyzer_Invalid(t *testing.T) {
	tests := []config.VisualizerConfig{
		{FFTSize: 100, Bars: 10, MaxHeight: 100},
		{FFTSize: 16, Bars: 4, MaxHeight: 100},
		{FFTSize: 256, Bars: 0, MaxHeight: 100},
		{FFTSize: 256, Bars: 129, MaxHeight: 100},
		{FFTSize: 256, Bars: 32, MaxHeight: 0},
	}
	for _, cfg := range tests {
		_, err := NewAnalyzer(cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}

func TestAnalyzer_Silence(t *testing.T) {
	a := newTestAnalyzer(t)
	heights := a.Heights(make([]float64, 256))
	assert.Len(t, heights, 32)
	for _, h := range heights {
		assert.Zero(t, h)
	}
	assert.Len(t, a.Magnitudes(nil), 128)
}

func TestAnalyzer_TonePeaksInItsBar(t *testing.T) {
	a := newTestAnalyzer(t)
	heights := a.Heights(tone(256, 40, 0.5))

	peak := 0
	for i, h := range heights {
		if h > heights[peak] {
			peak = i
		}
		assert.GreaterOrEqual(t, h, 0)
		assert.LessOrEqual(t, h, 100)
	}
	assert.Equal(t, 10, peak)
	assert.Equal(t, 100, heights[10])
	assert.Less(t, heights[31], 10)
}

func TestAnalyzer_ShortAndLongInput(t *testing.T) {
	a := newTestAnalyzer(t)
	assert.Len(t, a.Heights(tone(64, 4, 0.5)), 32)

	long := append(make([]float64, 1024), tone(256, 40, 0.5)...)
	assert.Equal(t, a.Heights(tone(256, 40, 0.5)), a.Heights(long))
}

func TestAnalyzer_Measure(t *testing.T) {
	a := newTestAnalyzer(t)
	samples := make([]int16, 256)
	for i := range samples {
		samples[i] = 16384
		if i%2 == 1 {
			samples[i] = -16384
		}
	}
	lv := a.Measure(audio.BytesFromPCM16(samples))
	assert.InDelta(t, 0.5, lv.RMS, 1e-9)
	assert.InDelta(t, 0.5, lv.Peak, 1e-9)
	assert.Len(t, lv.Bars, 32)

	empty := a.Measure(nil)
	assert.Zero(t, empty.RMS)
	assert.Len(t, empty.Bars, 32)
}

func TestLoop_MissingRendererIsNoop(t *testing.T) {
	var logs bytes.Buffer
	l := &Loop{
		Analyzer: newTestAnalyzer(t),
		Source:   SourceFunc(func() []float64 { return nil }),
		Logger:   slog.New(slog.NewTextHandler(&logs, nil)),
	}
	l.Run(context.Background())
	assert.Contains(t, logs.String(), "no renderer")

	logs.Reset()
	l = &Loop{Analyzer: l.Analyzer, Renderer: RendererFunc(func([]int) {}), Logger: l.Logger}
	l.Run(context.Background())
	assert.Contains(t, logs.String(), "no audio source")
}

func TestLoop_DrawsEveryTick(t *testing.T) {
	frames := make(chan []int, 16)
	l := &Loop{
		Analyzer: newTestAnalyzer(t),
		Source:   SourceFunc(func() []float64 { return tone(256, 40, 0.5) }),
		Renderer: RendererFunc(func(h []int) {
			select {
			case frames <- h:
			default:
			}
		}),
		Interval: 5 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case h := <-frames:
			assert.Len(t, h, 32)
		case <-time.After(time.Second):
			t.Fatal("no frame rendered")
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
