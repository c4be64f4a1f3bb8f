package transcription

import (
	"context"
	"errors"
	"fmt"

	"plate-order-backend/config"
)

// UserMessage is the only failure text staff ever see.
const UserMessage = "Could not understand audio, please try again."

// ErrUnintelligible is returned when the service answers without any text.
var ErrUnintelligible = errors.New("transcription returned no text")

// Audio is a finalized recording submitted for transcription.
type Audio struct {
	Data       []byte
	MimeType   string
	Filename   string
	SampleRate int // only used for raw PCM
	Channels   int // only used for raw PCM
}

// Result is the recognized text.
type Result struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, a Audio) (*Result, error)
}

// Error wraps every transcription failure. Timeouts, rejected requests and
// server faults all read the same to the user.
type Error struct {
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// UserMessage returns the text shown to staff.
func (e *Error) UserMessage() string { return UserMessage }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Cause: err}
}

// New builds the transcriber selected by cfg.Provider.
func New(cfg config.TranscriptionConfig) (Transcriber, error) {
	switch cfg.Provider {
	case "", "mock":
		return NewMock(), nil
	case "http":
		return NewClient(cfg)
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}
