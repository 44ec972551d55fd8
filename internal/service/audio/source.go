// Package audio provides PCM sources for cloud recognizers.
//
// All sources emit signed 16-bit little-endian mono PCM.
package audio

import (
	"context"
	"errors"
)

// ErrAlreadyRunning is returned by Start on a running source.
var ErrAlreadyRunning = errors.New("audio source is already running")

// Source produces PCM chunks until stopped, its context ends, or it runs dry.
// The returned channel is closed when the source finishes.
type Source interface {
	Start(ctx context.Context) (<-chan []byte, error)
	Stop() error
}

// Factory creates a fresh Source for one recognition attempt.
type Factory func() (Source, error)

// CaptureConfig holds capture parameters.
type CaptureConfig struct {
	SampleRate   uint32
	Channels     uint32
	BufferFrames uint32
}

// DefaultCaptureConfig returns 16 kHz mono, the rate cloud recognizers expect.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:   16000,
		Channels:     1,
		BufferFrames: 1600,
	}
}
