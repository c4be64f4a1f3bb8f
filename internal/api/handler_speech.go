package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"plate-order-backend/internal/transcription"
)

// Transcribe handles POST /api/speech/transcribe: a multipart upload with the
// recording in the "audio" field. The text is returned without creating an
// order.
func (h *Handler) Transcribe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	fh, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio file is too large"})
			return
		}
		badRequest(c, "audio file is required")
		return
	}
	if fh.Size > h.maxUpload {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio file is too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(data) == 0 {
		badRequest(c, "audio file is empty")
		return
	}

	mime := fh.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	res, err := h.transcriber.Transcribe(c.Request.Context(), transcription.Audio{
		Data:     data,
		MimeType: mime,
		Filename: fh.Filename,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
