package audio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n, rate int, freq float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(16383 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestEncodeDecodeWAV(t *testing.T) {
	samples := sine(800, 8000, 440)

	data, err := EncodeWAV(samples, 8000, 1)
	require.NoError(t, err)
	assert.Len(t, data, headerSize+len(samples)*2)
	require.NoError(t, ValidateWAV(data))

	got, info, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, samples, got)
	assert.Equal(t, 8000, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 100*time.Millisecond, info.Duration)

	d, err := WAVDuration(data)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, d)
}

func TestEncodeWAV_Stereo(t *testing.T) {
	data, err := EncodeWAV(make([]int16, 44100*2), 44100, 2)
	require.NoError(t, err)

	d, err := WAVDuration(data)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}

func TestEncodeWAV_Invalid(t *testing.T) {
	_, err := EncodeWAV(nil, 8000, 1)
	assert.Error(t, err)
	_, err = EncodeWAV([]int16{1}, 0, 1)
	assert.Error(t, err)
	_, err = EncodeWAV([]int16{1}, 8000, 3)
	assert.Error(t, err)
}

func TestValidateWAV(t *testing.T) {
	good, err := EncodeWAV([]int16{1, 2, 3}, 16000, 1)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"too short", func(b []byte) []byte { return b[:20] }},
		{"no riff", func(b []byte) []byte { copy(b[0:], "RIFX"); return b }},
		{"no wave", func(b []byte) []byte { copy(b[8:], "AVI "); return b }},
		{"no fmt", func(b []byte) []byte { copy(b[12:], "junk"); return b }},
		{"no data", func(b []byte) []byte { copy(b[36:], "LIST"); return b }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), good...)
			assert.ErrorIs(t, ValidateWAV(tt.mutate(b)), ErrInvalidWAV)
		})
	}
}

func TestDecodeWAV_TruncatedData(t *testing.T) {
	data, err := EncodeWAV([]int16{10, 20, 30, 40}, 8000, 1)
	require.NoError(t, err)

	got, _, err := DecodeWAV(data[:len(data)-4])
	require.NoError(t, err)
	assert.Equal(t, []int16{10, 20}, got)
}

func TestPCMRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	b := BytesFromPCM16(samples)
	assert.Equal(t, []byte{0, 0, 1, 0, 0xff, 0xff, 0xff, 0x7f, 0x00, 0x80}, b)
	assert.Equal(t, samples, PCM16FromBytes(b))
	assert.Equal(t, samples[:2], PCM16FromBytes(append(b[:4], 9)))

	f := Float64s([]int16{math.MinInt16, 0, 16384})
	assert.Equal(t, []float64{-1, 0, 0.5}, f)
}
