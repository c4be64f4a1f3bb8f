// Package transcription turns finalized recordings into text. The HTTP client
// posts multipart form data to a speech-to-text service; the mock derives a
// canned restaurant order from the recording size for demos and tests.
package transcription
