package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"plate-order-backend/config"
)

// Constraints are the audio processing settings requested from the microphone.
type Constraints struct {
	EchoCancellation bool `json:"echoCancellation"`
	NoiseSuppression bool `json:"noiseSuppression"`
	AutoGainControl  bool `json:"autoGainControl"`
	SampleRate       int  `json:"sampleRate"`
	ChannelCount     int  `json:"channelCount"`
}

// DefaultConstraints returns mono 44.1 kHz with all processing enabled.
func DefaultConstraints() Constraints {
	return Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		SampleRate:       44100,
		ChannelCount:     1,
	}
}

// ConstraintsFromConfig builds constraints from the recording section.
func ConstraintsFromConfig(cfg config.RecordingConfig) Constraints {
	return Constraints{
		EchoCancellation: cfg.EchoCancellation,
		NoiseSuppression: cfg.NoiseSuppression,
		AutoGainControl:  cfg.AutoGainControl,
		SampleRate:       cfg.SampleRate,
		ChannelCount:     cfg.ChannelCount,
	}
}

// Track is one media track of an acquired stream.
type Track interface {
	ID() string
	Stop()
	Stopped() bool
}

// Stream is an acquired audio stream.
type Stream interface {
	Tracks() []Track
}

// MediaSource acquires audio streams under the given constraints.
type MediaSource interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// UploadSource is the production source: the browser owns the microphone and
// pushes encoded chunks over HTTP, so acquiring only validates the constraints
// and hands out a stream whose track marks the upload as open.
type UploadSource struct {
	seq atomic.Int64
}

// NewUploadSource returns a source for browser-uploaded audio.
func NewUploadSource() *UploadSource {
	return &UploadSource{}
}

func (u *UploadSource) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, &MediaError{Kind: MediaUnknown, Err: err}
	}
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return nil, &MediaError{Kind: MediaNoDevice, Name: "OverconstrainedError",
			Err: fmt.Errorf("sample rate %d is outside 8000..48000", c.SampleRate)}
	}
	if c.ChannelCount < 1 || c.ChannelCount > 2 {
		return nil, &MediaError{Kind: MediaNoDevice, Name: "OverconstrainedError",
			Err: fmt.Errorf("channel count %d is not supported", c.ChannelCount)}
	}
	id := fmt.Sprintf("upload-audio-%d", u.seq.Add(1))
	return &uploadStream{tracks: []Track{&uploadTrack{id: id}}}, nil
}

type uploadStream struct {
	tracks []Track
}

func (s *uploadStream) Tracks() []Track {
	return s.tracks
}

type uploadTrack struct {
	id      string
	mu      sync.Mutex
	stopped bool
}

func (t *uploadTrack) ID() string { return t.id }

func (t *uploadTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *uploadTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// FailingSource reports an acquisition failure the browser already observed.
type FailingSource struct {
	Err *MediaError
}

func (f FailingSource) Acquire(context.Context, Constraints) (Stream, error) {
	return nil, f.Err
}
