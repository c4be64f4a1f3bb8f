package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const headerSize = 44

var ErrInvalidWAV = errors.New("invalid WAV data")

// wavHeader is the canonical 44-byte RIFF header for PCM audio.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// Info describes a WAV payload.
type Info struct {
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Samples    int           `json:"samples"`
	Duration   time.Duration `json:"duration"`
}

// EncodeWAV wraps 16-bit PCM samples in a WAV container.
func EncodeWAV(samples []int16, sampleRate, channels int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}

	dataSize := uint32(len(samples) * 2)
	blockAlign := uint16(channels * 2)
	h := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("write WAV samples: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV returns the samples and format of a 16-bit PCM WAV payload.
func DecodeWAV(data []byte) ([]int16, Info, error) {
	h, err := readHeader(data)
	if err != nil {
		return nil, Info{}, err
	}
	if h.AudioFormat != 1 || h.BitsPerSample != 16 {
		return nil, Info{}, fmt.Errorf("%w: only 16-bit PCM is supported (format %d, %d bits)",
			ErrInvalidWAV, h.AudioFormat, h.BitsPerSample)
	}

	size := int(h.Subchunk2Size)
	if avail := len(data) - headerSize; size > avail {
		size = avail
	}
	samples := PCM16FromBytes(data[headerSize : headerSize+size])
	return samples, infoFor(h, len(samples)), nil
}

// ValidateWAV checks the container markers without decoding samples.
func ValidateWAV(data []byte) error {
	_, err := readHeader(data)
	return err
}

// WAVDuration returns the playback length of a WAV payload.
func WAVDuration(data []byte) (time.Duration, error) {
	h, err := readHeader(data)
	if err != nil {
		return 0, err
	}
	return infoFor(h, int(h.Subchunk2Size)/2).Duration, nil
}

func readHeader(data []byte) (wavHeader, error) {
	var h wavHeader
	if len(data) < headerSize {
		return h, fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidWAV, headerSize, len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("read WAV header: %w", err)
	}
	switch {
	case string(h.ChunkID[:]) != "RIFF":
		return h, fmt.Errorf("%w: missing RIFF header", ErrInvalidWAV)
	case string(h.Format[:]) != "WAVE":
		return h, fmt.Errorf("%w: missing WAVE format", ErrInvalidWAV)
	case string(h.Subchunk1ID[:]) != "fmt ":
		return h, fmt.Errorf("%w: missing fmt chunk", ErrInvalidWAV)
	case string(h.Subchunk2ID[:]) != "data":
		return h, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
	case h.SampleRate == 0 || h.NumChannels == 0:
		return h, fmt.Errorf("%w: zero sample rate or channel count", ErrInvalidWAV)
	}
	return h, nil
}

func infoFor(h wavHeader, samples int) Info {
	frames := samples / int(h.NumChannels)
	return Info{
		SampleRate: int(h.SampleRate),
		Channels:   int(h.NumChannels),
		Samples:    samples,
		Duration:   time.Duration(frames) * time.Second / time.Duration(h.SampleRate),
	}
}
