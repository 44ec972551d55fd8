package audio

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"
)

// Recorder tees a Source into a WAV file written when the source finishes.
type Recorder struct {
	source     Source
	path       string
	sampleRate int

	mu   sync.Mutex
	pcm  []byte
	done chan struct{}
}

// NewRecorder wraps source; captured audio is saved to path.
func NewRecorder(source Source, path string, sampleRate int) *Recorder {
	return &Recorder{source: source, path: path, sampleRate: sampleRate}
}

// RecordingFactory wraps every source produced by f in a Recorder writing to path.
func RecordingFactory(f Factory, path string, sampleRate int) Factory {
	return func() (Source, error) {
		src, err := f()
		if err != nil {
			return nil, err
		}
		return NewRecorder(src, path, sampleRate), nil
	}
}

// Start starts the wrapped source and copies its chunks.
func (r *Recorder) Start(ctx context.Context) (<-chan []byte, error) {
	in, err := r.source.Start(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.pcm = r.pcm[:0]
	r.done = make(chan struct{})
	r.mu.Unlock()

	out := make(chan []byte, cap(in))
	go func() {
		defer close(r.done)
		defer close(out)
		for chunk := range in {
			r.mu.Lock()
			r.pcm = append(r.pcm, chunk...)
			r.mu.Unlock()
			out <- chunk
		}
		if err := r.flush(); err != nil {
			log.Error().Err(err).Str("path", r.path).Msg("Failed to save recording")
		}
	}()
	return out, nil
}

// Stop stops the wrapped source and waits for the file to be written.
func (r *Recorder) Stop() error {
	err := r.source.Stop()
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
	return err
}

func (r *Recorder) flush() error {
	r.mu.Lock()
	samples, err := pcmToInts(r.pcm)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	file, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	defer file.Close()

	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: r.sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	enc := wav.NewEncoder(file, r.sampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}

	log.Debug().Str("path", r.path).Int("samples", len(samples)).Msg("Recording saved")
	return nil
}
