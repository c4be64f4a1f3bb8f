package visualizer

import (
	"context"
	"log/slog"
	"time"
)

// Renderer draws one frame of bar heights.
type Renderer interface {
	Render(heights []int)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(heights []int)

func (f RendererFunc) Render(heights []int) { f(heights) }

// Source supplies the latest window of samples, scaled to -1..1.
type Source interface {
	Samples() []float64
}

// SourceFunc adapts a function to Source.
type SourceFunc func() []float64

func (f SourceFunc) Samples() []float64 { return f() }

// Loop redraws the renderer on every tick from a single goroutine.
type Loop struct {
	Analyzer *Analyzer
	Source   Source
	Renderer Renderer
	Interval time.Duration
	Logger   *slog.Logger
}

// Run draws until ctx is done. A loop without a renderer, source or analyzer
// logs why and returns immediately.
func (l *Loop) Run(ctx context.Context) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case l.Renderer == nil:
		logger.Warn("visualizer has no renderer, not drawing")
		return
	case l.Source == nil:
		logger.Warn("visualizer has no audio source, not drawing")
		return
	case l.Analyzer == nil:
		logger.Warn("visualizer has no analyzer, not drawing")
		return
	}

	interval := l.Interval
	if interval <= 0 {
		interval = time.Second / 60
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Renderer.Render(l.Analyzer.Heights(l.Source.Samples()))
		}
	}
}
