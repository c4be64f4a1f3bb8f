package visualizer

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"plate-order-backend/config"
)

// Decibel range mapped onto 0..MaxHeight, matching the browser analyser defaults.
const (
	minDecibels = -100.0
	maxDecibels = -30.0
)

// Analyzer turns a window of samples into bar heights.
type Analyzer struct {
	FFTSize   int
	Bars      int
	MaxHeight int

	fft    *fourier.FFT
	window []float64
	coeff  []complex128
	buf    []float64
}

// NewAnalyzer validates the settings and prepares the FFT plan.
func NewAnalyzer(cfg config.VisualizerConfig) (*Analyzer, error) {
	n := cfg.FFTSize
	if n < 32 || n&(n-1) != 0 {
		return nil, fmt.Errorf("fft size must be a power of two >= 32, got %d", n)
	}
	if cfg.Bars < 1 || cfg.Bars > n/2 {
		return nil, fmt.Errorf("bars must be in 1..%d, got %d", n/2, cfg.Bars)
	}
	if cfg.MaxHeight < 1 {
		return nil, fmt.Errorf("max height must be positive, got %d", cfg.MaxHeight)
	}

	window := make([]float64, n)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return &Analyzer{
		FFTSize:   n,
		Bars:      cfg.Bars,
		MaxHeight: cfg.MaxHeight,
		fft:       fourier.NewFFT(n),
		window:    window,
		coeff:     make([]complex128, n/2+1),
		buf:       make([]float64, n),
	}, nil
}

// Magnitudes returns FFTSize/2 linear magnitudes of the most recent FFTSize
// samples. Shorter input is zero-padded at the front. Not safe for concurrent use.
func (a *Analyzer) Magnitudes(samples []float64) []float64 {
	n := a.FFTSize
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	pad := n - len(samples)
	for i := 0; i < pad; i++ {
		a.buf[i] = 0
	}
	for i, s := range samples {
		a.buf[pad+i] = s * a.window[pad+i]
	}

	a.coeff = a.fft.Coefficients(a.coeff, a.buf)
	out := make([]float64, n/2)
	for i := range out {
		out[i] = cmplx.Abs(a.coeff[i]) / float64(n)
	}
	return out
}

// Heights groups the spectrum into Bars buckets scaled to 0..MaxHeight.
// Silence yields all zeros.
func (a *Analyzer) Heights(samples []float64) []int {
	mags := a.Magnitudes(samples)
	per := len(mags) / a.Bars
	heights := make([]int, a.Bars)
	for b := range heights {
		var sum float64
		for _, m := range mags[b*per : (b+1)*per] {
			sum += m
		}
		heights[b] = a.scale(sum / float64(per))
	}
	return heights
}

func (a *Analyzer) scale(mag float64) int {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := (db - minDecibels) / (maxDecibels - minDecibels)
	v = math.Max(0, math.Min(1, v))
	return int(math.Round(v * float64(a.MaxHeight)))
}
