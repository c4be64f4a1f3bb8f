package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"plate-order-backend/internal/archive"
	"plate-order-backend/internal/capture"
	"plate-order-backend/internal/transcription"
)

// ErrDiscarded marks an outcome nobody was waiting for any more.
var ErrDiscarded = errors.New("session was cancelled before the result arrived")

// SessionLookup finds the session a recording came from.
type SessionLookup interface {
	Get(id string) (*capture.Session, bool)
}

// Pipeline carries a finished recording through transcription and
// reconciliation and records the outcome on its session. Outcomes for
// sessions cancelled in the meantime are dropped.
type Pipeline struct {
	Transcriber   transcription.Transcriber
	Reconciler    *Reconciler
	Sessions      SessionLookup
	Archive       archive.Archive // optional
	ArchivePrefix string
	SampleRate    int
	Channels      int
	Logger        *slog.Logger

	wg sync.WaitGroup
}

// OnComplete is the capture completion callback. Processing runs in the
// background under the recording's context.
func (p *Pipeline) OnComplete(ctx context.Context, rec capture.Recording) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Process(ctx, rec)
	}()
}

// Wait blocks until every background run has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Process runs the pipeline synchronously and returns the outcome.
func (p *Pipeline) Process(ctx context.Context, rec capture.Recording) capture.Outcome {
	logger := p.logger().With(slog.String("session_id", rec.SessionID))
	logger.Info("processing recording",
		slog.Int("bytes", rec.Size()),
		slog.Duration("duration", rec.Duration),
		slog.String("reason", string(rec.Reason)),
	)

	if p.Archive != nil {
		key := archive.Key(p.ArchivePrefix, time.Now(), rec.SessionID, archive.Extension(rec.MimeType))
		if err := p.Archive.Put(ctx, key, rec.Data, rec.MimeType); err != nil {
			logger.Warn("failed to archive recording", slog.String("key", key), slog.Any("error", err))
		}
	}

	start := time.Now()
	res, err := p.Transcriber.Transcribe(ctx, transcription.Audio{
		Data:       rec.Data,
		MimeType:   rec.MimeType,
		SampleRate: p.SampleRate,
		Channels:   p.Channels,
	})
	p.Reconciler.metrics().ObserveTranscription(time.Since(start), err)
	if err != nil {
		logger.Warn("transcription failed", slog.Any("error", err))
		return p.finish(logger, rec, capture.Outcome{Err: err})
	}

	if ctx.Err() != nil {
		logger.Info("session cancelled during transcription, dropping result")
		return capture.Outcome{Transcript: res.Text, Err: ctx.Err()}
	}

	// The sinks recheck ctx before writing. An order already committed when
	// the session is cancelled stays; only the session result is dropped.
	o, err := p.Reconciler.Reconcile(ctx, Input{
		Transcript: res.Text,
		TableID:    rec.Meta.TableID,
		SeatID:     rec.Meta.SeatID,
		ResidentID: rec.Meta.ResidentID,
		ServerID:   rec.Meta.ServerID,
		Type:       rec.Meta.Type,
	})
	if err != nil && ctx.Err() != nil {
		logger.Info("session cancelled before the order was saved", slog.Any("error", err))
		return capture.Outcome{Transcript: res.Text, Err: ctx.Err()}
	}
	if err != nil {
		logger.Warn("order reconciliation failed", slog.Any("error", err))
		return p.finish(logger, rec, capture.Outcome{Transcript: res.Text, Err: err})
	}
	return p.finish(logger, rec, capture.Outcome{Transcript: res.Text, OrderID: o.ID})
}

func (p *Pipeline) finish(logger *slog.Logger, rec capture.Recording, out capture.Outcome) capture.Outcome {
	if p.Sessions == nil {
		return out
	}
	s, ok := p.Sessions.Get(rec.SessionID)
	if !ok || !s.Finish(out) {
		logger.Info("session no longer waiting for a result, dropping it")
		if out.Err == nil {
			out.Err = ErrDiscarded
		}
	}
	return out
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
