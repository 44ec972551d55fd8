package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"
)

// MicSource captures the default input device with malgo.
type MicSource struct {
	config       CaptureConfig
	device       *malgo.Device
	malgoContext *malgo.AllocatedContext
	samples      chan []byte
	running      bool
	mu           sync.Mutex
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

// NewMicSource creates a microphone source.
func NewMicSource(config CaptureConfig) *MicSource {
	return &MicSource{config: config}
}

// MicFactory returns a Factory producing microphone sources.
func MicFactory(config CaptureConfig) Factory {
	return func() (Source, error) {
		return NewMicSource(config), nil
	}
}

// Start opens the device and begins capture.
func (m *MicSource) Start(ctx context.Context) (<-chan []byte, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	m.running = true
	m.samples = make(chan []byte, 32)
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		m.reset()
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoContext = malgoCtx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = m.config.SampleRate
	deviceConfig.PeriodSizeInFrames = m.config.BufferFrames

	var callbacks malgo.DeviceCallbacks
	callbacks.Data = func(_, input []byte, _ uint32) {
		data := make([]byte, len(input))
		copy(data, input)

		select {
		case m.samples <- data:
		default:
			log.Warn().Int("bytes", len(data)).Msg("Microphone buffer overflow, dropping frames")
		}
	}

	device, err := malgo.InitDevice(m.malgoContext.Context, deviceConfig, callbacks)
	if err != nil {
		m.freeContext()
		m.reset()
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		m.freeContext()
		m.reset()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	log.Debug().
		Uint32("sampleRate", m.config.SampleRate).
		Uint32("bufferFrames", m.config.BufferFrames).
		Msg("Microphone capture started")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-ctx.Done():
			go m.Stop()
		case <-m.stopChan:
		}
	}()

	return m.samples, nil
}

// Stop stops capture and closes the sample channel. Idempotent.
func (m *MicSource) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)

	var stopErr error
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			stopErr = fmt.Errorf("failed to stop capture device: %w", err)
		}
		// Uninit waits for the data callback, so closing samples is safe after it.
		m.device.Uninit()
		m.device = nil
	}
	m.freeContext()
	m.wg.Wait()
	close(m.samples)

	return stopErr
}

func (m *MicSource) freeContext() {
	if m.malgoContext != nil {
		_ = m.malgoContext.Uninit()
		m.malgoContext.Free()
		m.malgoContext = nil
	}
}

func (m *MicSource) reset() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}
