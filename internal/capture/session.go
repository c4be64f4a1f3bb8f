package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"
)

// State is the lifecycle state of a recording session.
type State string

const (
	StateIdle       State = "idle"
	StateAcquiring  State = "acquiring"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

// StopReason says why a recording ended.
type StopReason string

const (
	StopManual      StopReason = "manual"
	StopMaxDuration StopReason = "max_duration"
)

// Metadata ties a session to the place the order is for.
type Metadata struct {
	TableID    int64  `json:"table_id,omitempty"`
	SeatID     *int64 `json:"seat_id,omitempty"`
	ResidentID *int64 `json:"resident_id,omitempty"`
	ServerID   string `json:"server_id,omitempty"`
	Type       string `json:"type,omitempty"`
}

// Recording is a finished recording handed to the completion callback.
type Recording struct {
	SessionID string
	Meta      Metadata
	Data      []byte
	MimeType  string
	Duration  time.Duration
	Reason    StopReason
}

// Size is the encoded size of the recording in bytes.
func (r Recording) Size() int {
	return len(r.Data)
}

// Outcome is what the processing pipeline produced for a recording.
type Outcome struct {
	Transcript string
	OrderID    int64
	Err        error
}

// Options configure a session.
type Options struct {
	MaxDuration time.Duration
	MinDuration time.Duration
	MaxBytes    int
	Constraints Constraints
	MimeType    string
	OnComplete  func(ctx context.Context, rec Recording)
	Observer    Observer
}

// Observer receives lifecycle notifications, typically for metrics.
type Observer interface {
	RecordingStarted()
	RecordingStopped(reason StopReason, d time.Duration)
	RecordingCancelled()
	RecordingFailed(kind MediaErrorKind)
}

type nopObserver struct{}

func (nopObserver) RecordingStarted() {}
func (nopObserver) RecordingStopped(StopReason, time.Duration) {}
func (nopObserver) RecordingCancelled() {}
func (nopObserver) RecordingFailed(MediaErrorKind) {}

// Snapshot is the headless view of a session that clients render.
type Snapshot struct {
	ID          string         `json:"id"`
	State       State          `json:"state"`
	Meta        Metadata       `json:"meta"`
	ElapsedMs   int64          `json:"elapsed_ms"`
	RemainingMs int64          `json:"remaining_ms"`
	Bytes       int            `json:"bytes"`
	MimeType    string         `json:"mime_type,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   MediaErrorKind `json:"error_kind,omitempty"`
	Transcript  string         `json:"transcript,omitempty"`
	OrderID     int64          `json:"order_id,omitempty"`
}

// Session is one recording attempt. All methods are safe for concurrent use.
type Session struct {
	ID   string
	Meta Metadata

	opts   Options
	source MediaSource

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	stream       Stream
	chunks       bytes.Buffer
	startedAt    time.Time
	stoppedAt    time.Time
	lastActivity time.Time
	timer        *time.Timer
	generation   int
	lastErr      error
	outcome      Outcome
	workCancel   context.CancelFunc
}

// NewSession creates an idle session. The parent context bounds all
// processing started for the session's recordings.
func NewSession(parent context.Context, id string, meta Metadata, source MediaSource, opts Options) *Session {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.MimeType == "" {
		opts.MimeType = "audio/webm"
	}
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:           id,
		Meta:         meta,
		opts:         opts,
		source:       source,
		ctx:          ctx,
		cancel:       cancel,
		state:        StateIdle,
		lastActivity: time.Now(),
	}
}

// Context is cancelled when the session is closed.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Start acquires a stream from the session's source and begins recording.
func (s *Session) Start(ctx context.Context) error {
	return s.StartWith(ctx, s.source)
}

// StartWith begins recording with an explicit source. Calling it while a
// recording is being acquired or is in progress does nothing.
func (s *Session) StartWith(ctx context.Context, source MediaSource) error {
	s.mu.Lock()
	switch s.state {
	case StateAcquiring, StateRecording:
		s.mu.Unlock()
		return nil
	case StateProcessing:
		s.mu.Unlock()
		return ErrBusy
	}
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return ErrClosed
	}
	s.state = StateAcquiring
	s.lastErr = nil
	s.outcome = Outcome{}
	s.lastActivity = time.Now()
	s.mu.Unlock()

	stream, err := source.Acquire(ctx, s.opts.Constraints)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAcquiring {
		// Cancelled while the browser was still asking for permission.
		if stream != nil {
			stopTracks(stream)
		}
		return nil
	}
	if err != nil {
		me := AsMediaError(err)
		s.state = StateFailed
		s.lastErr = me
		s.opts.Observer.RecordingFailed(me.Kind)
		return me
	}

	s.stream = stream
	s.chunks.Reset()
	s.startedAt = time.Now()
	s.lastActivity = s.startedAt
	s.state = StateRecording
	s.generation++
	if s.opts.MaxDuration > 0 {
		gen := s.generation
		s.timer = time.AfterFunc(s.opts.MaxDuration, func() { s.autoStop(gen) })
	}
	s.opts.Observer.RecordingStarted()
	return nil
}

// AppendChunk adds encoded audio to the recording in progress.
func (s *Session) AppendChunk(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return ErrNotRecording
	}
	if s.opts.MaxBytes > 0 && s.chunks.Len()+len(p) > s.opts.MaxBytes {
		return ErrTooLarge
	}
	s.chunks.Write(p)
	s.lastActivity = time.Now()
	return nil
}

// Tail returns up to n of the most recently appended bytes.
func (s *Session) Tail(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.chunks.Bytes()
	if len(b) > n {
		b = b[len(b)-n:]
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Stop ends the recording. Recordings shorter than the minimum duration are
// discarded with ErrTooShort; otherwise the session moves to processing and
// the completion callback receives the recording.
func (s *Session) Stop() (*Recording, error) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return nil, ErrNotRecording
	}
	elapsed := time.Since(s.startedAt)
	if s.opts.MinDuration > 0 && elapsed < s.opts.MinDuration {
		s.teardown()
		s.state = StateIdle
		s.lastErr = ErrTooShort
		s.chunks.Reset()
		s.mu.Unlock()
		return nil, ErrTooShort
	}
	rec, work := s.finishLocked(StopManual, elapsed)
	s.mu.Unlock()

	s.complete(work, rec)
	return &rec, nil
}

func (s *Session) autoStop(gen int) {
	s.mu.Lock()
	if s.state != StateRecording || s.generation != gen {
		s.mu.Unlock()
		return
	}
	rec, work := s.finishLocked(StopMaxDuration, time.Since(s.startedAt))
	s.mu.Unlock()

	s.complete(work, rec)
}

// finishLocked moves the session to processing and returns the recording with
// the context its processing runs under.
func (s *Session) finishLocked(reason StopReason, elapsed time.Duration) (Recording, context.Context) {
	s.teardown()
	s.state = StateProcessing
	s.stoppedAt = time.Now()
	s.lastActivity = s.stoppedAt

	work, cancel := context.WithCancel(s.ctx)
	s.workCancel = cancel

	data := make([]byte, s.chunks.Len())
	copy(data, s.chunks.Bytes())
	s.opts.Observer.RecordingStopped(reason, elapsed)
	return Recording{
		SessionID: s.ID,
		Meta:      s.Meta,
		Data:      data,
		MimeType:  s.opts.MimeType,
		Duration:  elapsed,
		Reason:    reason,
	}, work
}

func (s *Session) complete(ctx context.Context, rec Recording) {
	if s.opts.OnComplete != nil {
		s.opts.OnComplete(ctx, rec)
	}
}

// Cancel abandons the recording. Every track is stopped, the completion
// callback is not invoked, and any processing already started is cancelled.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateAcquiring, StateRecording:
		s.teardown()
		s.chunks.Reset()
		s.state = StateCancelled
		s.opts.Observer.RecordingCancelled()
	case StateProcessing:
		s.state = StateCancelled
		s.releaseWork()
		s.opts.Observer.RecordingCancelled()
	}
	s.lastActivity = time.Now()
}

// Close cancels the session and releases its context.
func (s *Session) Close() {
	s.Cancel()
	s.cancel()
}

// Finish records the pipeline outcome. It returns false when the session is no
// longer processing, in which case the outcome is discarded.
func (s *Session) Finish(out Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateProcessing {
		return false
	}
	s.outcome = out
	s.lastActivity = time.Now()
	s.releaseWork()
	if out.Err != nil {
		s.state = StateFailed
		s.lastErr = out.Err
	} else {
		s.state = StateDone
	}
	return true
}

// teardown stops every track and the auto-stop timer. Caller holds mu.
func (s *Session) teardown() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.stream != nil {
		stopTracks(s.stream)
		s.stream = nil
	}
}

func (s *Session) releaseWork() {
	if s.workCancel != nil {
		s.workCancel()
		s.workCancel = nil
	}
}

func stopTracks(stream Stream) {
	for _, t := range stream.Tracks() {
		t.Stop()
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Remaining is the time left before the recording auto-stops.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func (s *Session) remainingLocked() time.Duration {
	if s.state != StateRecording || s.opts.MaxDuration <= 0 {
		return 0
	}
	left := s.opts.MaxDuration - time.Since(s.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Err returns the last failure, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastActivity is when the session was last touched.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Snapshot returns the headless state of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:          s.ID,
		State:       s.state,
		Meta:        s.Meta,
		RemainingMs: s.remainingLocked().Milliseconds(),
		Bytes:       s.chunks.Len(),
		MimeType:    s.opts.MimeType,
		Transcript:  s.outcome.Transcript,
		OrderID:     s.outcome.OrderID,
	}
	switch s.state {
	case StateRecording:
		snap.ElapsedMs = time.Since(s.startedAt).Milliseconds()
	case StateProcessing, StateDone:
		snap.ElapsedMs = s.stoppedAt.Sub(s.startedAt).Milliseconds()
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
		var um userMessager
		if errors.As(s.lastErr, &um) {
			snap.Error = um.UserMessage()
		}
		var me *MediaError
		if errors.As(s.lastErr, &me) {
			snap.ErrorKind = me.Kind
		}
	}
	return snap
}

// userMessager is implemented by errors that carry text meant for staff.
type userMessager interface {
	UserMessage() string
}
