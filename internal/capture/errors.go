package capture

import (
	"errors"
	"fmt"
)

var (
	ErrNotRecording = errors.New("no recording in progress")
	ErrTooShort     = errors.New("recording too short")
	ErrTooLarge     = errors.New("recording exceeds the upload limit")
	ErrBusy         = errors.New("previous recording is still being processed")
	ErrClosed       = errors.New("session manager is closed")
)

// MediaErrorKind classifies why the microphone could not be opened.
type MediaErrorKind string

const (
	MediaPermissionDenied MediaErrorKind = "permission_denied"
	MediaNoDevice         MediaErrorKind = "no_device"
	MediaDeviceBusy       MediaErrorKind = "device_busy"
	MediaUnsupported      MediaErrorKind = "unsupported"
	MediaUnknown          MediaErrorKind = "unknown"
)

var userMessages = map[MediaErrorKind]string{
	MediaPermissionDenied: "Microphone access was denied. Allow microphone access in the browser settings and try again.",
	MediaNoDevice:         "No microphone was found. Connect a microphone and try again.",
	MediaDeviceBusy:       "The microphone is in use by another application. Close it and try again.",
	MediaUnsupported:      "This browser does not support audio recording. Use a current version of Chrome, Safari or Firefox.",
	MediaUnknown:          "The microphone could not be started. Please try again.",
}

// MediaError is a classified media acquisition failure.
type MediaError struct {
	Kind MediaErrorKind
	Name string // browser DOMException name, if any
	Err  error
}

func (e *MediaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media acquisition failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("media acquisition failed (%s)", e.Kind)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to staff.
func (e *MediaError) UserMessage() string {
	return userMessages[e.Kind]
}

// ClassifyMediaError maps a browser DOMException name onto a MediaError.
func ClassifyMediaError(name, message string) *MediaError {
	var kind MediaErrorKind
	switch name {
	case "NotAllowedError", "PermissionDeniedError", "SecurityError":
		kind = MediaPermissionDenied
	case "NotFoundError", "DevicesNotFoundError", "OverconstrainedError", "ConstraintNotSatisfiedError":
		kind = MediaNoDevice
	case "NotReadableError", "TrackStartError", "AbortError":
		kind = MediaDeviceBusy
	case "NotSupportedError", "TypeError":
		kind = MediaUnsupported
	default:
		kind = MediaUnknown
	}

	var err error
	if message != "" {
		err = errors.New(message)
	}
	return &MediaError{Kind: kind, Name: name, Err: err}
}

// AsMediaError returns err as a MediaError, classifying unknown errors as MediaUnknown.
func AsMediaError(err error) *MediaError {
	var me *MediaError
	if errors.As(err, &me) {
		return me
	}
	return &MediaError{Kind: MediaUnknown, Err: err}
}
