// Package audio converts between raw 16-bit PCM and WAV containers.
// Browsers that record uncompressed audio upload PCM chunks; those are wrapped
// in WAV before transcription and decoded for the level meter.
package audio
