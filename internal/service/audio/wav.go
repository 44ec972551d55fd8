package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"
)

// ErrInvalidWav is returned for files that are not PCM WAV.
var ErrInvalidWav = errors.New("not a valid wav file")

// WavSource replays a WAV file as if it were captured live.
type WavSource struct {
	path  string
	chunk time.Duration
	// pace sleeps one chunk duration between sends; off in tests.
	pace bool

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewWavSource creates a source for path emitting chunk-sized pieces in real time.
func NewWavSource(path string, chunk time.Duration) *WavSource {
	if chunk <= 0 {
		chunk = 100 * time.Millisecond
	}
	return &WavSource{path: path, chunk: chunk, pace: true}
}

// WavFactory returns a Factory producing sources for path.
func WavFactory(path string, chunk time.Duration) Factory {
	return func() (Source, error) {
		return NewWavSource(path, chunk), nil
	}
}

// ReadWav decodes a WAV file into mono S16LE PCM and its sample rate.
func ReadWav(path string) ([]byte, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidWav, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}

	channels := buf.Format.NumChannels
	return intsToPCM(buf.Data, int(dec.BitDepth), channels), buf.Format.SampleRate, nil
}

// Start decodes the file and streams it. The channel closes at end of file.
func (w *WavSource) Start(ctx context.Context) (<-chan []byte, error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	w.mu.Unlock()

	pcm, rate, err := ReadWav(w.path)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	w.mu.Unlock()

	chunkBytes := int(int64(rate) * int64(w.chunk) / int64(time.Second) * 2)
	if chunkBytes < 2 {
		chunkBytes = 2
	}

	log.Debug().
		Str("path", w.path).
		Int("sampleRate", rate).
		Int("bytes", len(pcm)).
		Msg("Replaying wav file")

	out := make(chan []byte)
	go w.stream(ctx, pcm, chunkBytes, out)
	return out, nil
}

func (w *WavSource) stream(ctx context.Context, pcm []byte, chunkBytes int, out chan<- []byte) {
	defer close(w.done)
	defer close(out)

	for off := 0; off < len(pcm); off += chunkBytes {
		end := off + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		select {
		case out <- pcm[off:end]:
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
		if !w.pace {
			continue
		}
		select {
		case <-time.After(w.chunk):
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends replay and waits for the stream to close. Idempotent.
func (w *WavSource) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopChan)
	done := w.done
	w.mu.Unlock()

	<-done
	return nil
}
