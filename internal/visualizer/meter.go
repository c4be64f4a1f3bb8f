package visualizer

import (
	"math"

	"plate-order-backend/internal/audio"
)

// Levels is one frame of the per-session level meter.
type Levels struct {
	Bars []int   `json:"bars"`
	RMS  float64 `json:"rms"`
	Peak float64 `json:"peak"`
}

// Measure decodes a tail of 16-bit PCM and computes its levels.
func (a *Analyzer) Measure(pcm []byte) Levels {
	samples := audio.Float64s(audio.PCM16FromBytes(pcm))
	lv := Levels{Bars: a.Heights(samples)}
	if len(samples) == 0 {
		return lv
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
		lv.Peak = math.Max(lv.Peak, math.Abs(s))
	}
	lv.RMS = math.Sqrt(sum / float64(len(samples)))
	return lv
}
