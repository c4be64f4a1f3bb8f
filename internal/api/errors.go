package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"plate-order-backend/internal/capture"
	"plate-order-backend/internal/floorplan"
	"plate-order-backend/internal/order"
	"plate-order-backend/internal/reconcile"
	"plate-order-backend/internal/store"
	"plate-order-backend/internal/transcription"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var me *capture.MediaError
	var te *transcription.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, order.ErrIllegalTransition),
		errors.Is(err, order.ErrNoop),
		errors.Is(err, capture.ErrBusy),
		errors.Is(err, capture.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, store.ErrSeatMismatch),
		errors.Is(err, order.ErrUnknownStatus),
		errors.Is(err, reconcile.ErrEmptyTranscript),
		errors.Is(err, reconcile.ErrNoTable),
		errors.Is(err, reconcile.ErrInvalidType),
		errors.Is(err, floorplan.ErrInvalidTable),
		errors.Is(err, capture.ErrTooShort):
		return http.StatusBadRequest
	case errors.Is(err, capture.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &me):
		return http.StatusUnprocessableEntity
	case errors.As(err, &te):
		return http.StatusBadGateway
	case errors.Is(err, capture.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// messageFor returns the text shown to staff: the fixed user message for
// media and transcription failures, the error itself otherwise.
func messageFor(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return err.Error()
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("route", c.FullPath()),
			slog.Any("error", err),
		)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": messageFor(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
