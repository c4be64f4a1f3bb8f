package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"plate-order-backend/internal/audio"
	"plate-order-backend/internal/capture"
	"plate-order-backend/internal/visualizer"
)

type mediaErrorReport struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type startRecordingRequest struct {
	capture.Metadata
	MimeType   string            `json:"mime_type"`
	MediaError *mediaErrorReport `json:"media_error"`
}

// StartRecording handles POST /api/recordings. The browser reports a failed
// getUserMedia call in media_error, which fails the session with the
// matching staff-facing message.
func (h *Handler) StartRecording(c *gin.Context) {
	var req startRecordingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err.Error())
			return
		}
	}

	s, err := h.sessions.Create(req.Metadata, req.MimeType, nil)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if req.MediaError != nil {
		err = s.StartWith(c.Request.Context(), capture.FailingSource{
			Err: capture.ClassifyMediaError(req.MediaError.Name, req.MediaError.Message),
		})
	} else {
		err = s.Start(c.Request.Context())
	}
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), gin.H{"error": messageFor(err), "session": s.Snapshot()})
		return
	}
	c.JSON(http.StatusCreated, s.Snapshot())
}

func (h *Handler) session(c *gin.Context) (*capture.Session, bool) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return nil, false
	}
	return s, true
}

// RestartRecording handles POST /api/recordings/:id/start. Starting a
// session that is already recording changes nothing.
func (h *Handler) RestartRecording(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Start(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(statusFor(err), gin.H{"error": messageFor(err), "session": s.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// AppendChunk handles POST /api/recordings/:id/chunks with the raw audio as body.
func (h *Handler) AppendChunk(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio chunk is too large"})
			return
		}
		badRequest(c, "failed to read audio chunk")
		return
	}
	if err := s.AppendChunk(data); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s.Snapshot())
}

// StopRecording handles POST /api/recordings/:id/stop. Processing continues
// in the background; poll GET /api/recordings/:id for the outcome.
func (h *Handler) StopRecording(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if _, err := s.Stop(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s.Snapshot())
}

// CancelRecording handles POST /api/recordings/:id/cancel, also sent when the
// page loses focus.
func (h *Handler) CancelRecording(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Cancel()
	c.JSON(http.StatusOK, s.Snapshot())
}

// GetRecording handles GET /api/recordings/:id.
func (h *Handler) GetRecording(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// DeleteRecording handles DELETE /api/recordings/:id.
func (h *Handler) DeleteRecording(c *gin.Context) {
	if err := h.sessions.Remove(c.Param("id")); err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLevels handles GET /api/recordings/:id/levels. Chunks are read as
// 16-bit little-endian PCM. With ?stream=1 the levels are pushed as
// server-sent events until the recording ends.
func (h *Handler) GetLevels(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	analyzer, err := visualizer.NewAnalyzer(h.visualizer)
	if err != nil {
		h.respondError(c, err)
		return
	}
	window := analyzer.FFTSize * 2

	if c.Query("stream") == "" {
		c.JSON(http.StatusOK, analyzer.Measure(s.Tail(window)))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Content-Type", "text/event-stream")
	c.Status(http.StatusOK)
	loop := &visualizer.Loop{
		Analyzer: analyzer,
		Source: visualizer.SourceFunc(func() []float64 {
			return pcmSamples(s.Tail(window))
		}),
		Renderer: visualizer.RendererFunc(func(heights []int) {
			c.SSEvent("levels", gin.H{"bars": heights, "remaining_ms": s.Remaining().Milliseconds()})
			c.Writer.Flush()
			if s.State() != capture.StateRecording {
				cancel()
			}
		}),
		Interval: time.Second / 20,
		Logger:   h.logger,
	}
	loop.Run(ctx)
}

func pcmSamples(b []byte) []float64 {
	return audio.Float64s(audio.PCM16FromBytes(b))
}
