// Package synthesis speaks text through a platform synthesizer.
//
// The client keeps at most one utterance playing: every Speak cancels the
// previous one first. It holds no other state beyond the lazily loaded voice
// table.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"speako/internal/observability/logging"
	"speako/internal/observability/metrics"
)

var (
	// ErrUnsupported is returned when no synthesis platform is present.
	ErrUnsupported = errors.New("speech synthesis is not available on this platform")
)

// Parameter ranges, matching the Web Speech utterance attributes.
const (
	MinRate   = 0.1
	MaxRate   = 10.0
	MinPitch  = 0.0
	MaxPitch  = 2.0
	MinVolume = 0.0
	MaxVolume = 1.0
)

// Voice is one entry in the platform's voice table.
type Voice struct {
	ID       string
	Name     string
	Language string
	Default  bool
}

// Utterance is one playback request handed to the platform.
type Utterance struct {
	Text   string
	Voice  *Voice // nil selects the platform default
	Rate   float64
	Pitch  float64
	Volume float64
}

// Platform is the synthesis primitive.
type Platform interface {
	// Name identifies the platform in logs.
	Name() string

	// Voices lists the available voices. It may block until the table loads.
	Voices(ctx context.Context) ([]Voice, error)

	// Speak starts playback. done is called exactly once when the utterance
	// completes or is cancelled.
	Speak(u Utterance, done func()) error

	// Cancel stops any playing utterance.
	Cancel()

	// Speaking reports whether an utterance is playing.
	Speaking() bool
}

// SpeakOptions are the caller's playback settings. A zero Rate and nil
// Pitch or Volume select the defaults. Volume 0 mutes.
type SpeakOptions struct {
	Voice  string
	Rate   float64
	Pitch  *float64
	Volume *float64
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client speaks text on a platform.
type Client struct {
	platform Platform
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	// speakMu serializes Speak so the newest call wins.
	speakMu sync.Mutex

	voicesOnce sync.Once
	voicesDone chan struct{}
	voices     []Voice
	voicesErr  error
}

// NewClient creates a client. A nil platform yields an unsupported client.
func NewClient(p Platform, opts ...Option) *Client {
	c := &Client{
		platform:   p,
		logger:     logging.WithComponent("synthesis"),
		metrics:    metrics.DefaultMetrics,
		voicesDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsSupported reports whether a platform is present.
func (c *Client) IsSupported() bool {
	return c.platform != nil
}

// Voices returns the platform voice table, loading it on first use. Later
// calls share the first load.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	if c.platform == nil {
		return nil, ErrUnsupported
	}
	c.voicesOnce.Do(func() {
		go c.loadVoices()
	})
	select {
	case <-c.voicesDone:
		return c.voices, c.voicesErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) loadVoices() {
	defer close(c.voicesDone)
	c.voices, c.voicesErr = c.platform.Voices(context.Background())
	if c.voicesErr != nil {
		c.logger.Warn().Err(c.voicesErr).Msg("Failed to load voice table")
		return
	}
	c.logger.Debug().Int("count", len(c.voices)).Msg("Voice table loaded")
}

// Speak cancels any playing utterance and speaks text. Blank text is a no-op
// and returns a nil channel. The returned channel closes when playback
// finishes or is cancelled.
func (c *Client) Speak(ctx context.Context, text string, opts SpeakOptions) (<-chan struct{}, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if c.platform == nil {
		return nil, ErrUnsupported
	}

	c.speakMu.Lock()
	defer c.speakMu.Unlock()

	c.Stop()

	u := Utterance{
		Text:   text,
		Voice:  c.resolveVoice(ctx, opts.Voice),
		Rate:   clamp(opts.Rate, 1, MinRate, MaxRate),
		Pitch:  clampOptional(opts.Pitch, 1, MinPitch, MaxPitch),
		Volume: clampOptional(opts.Volume, 1, MinVolume, MaxVolume),
	}

	done := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(done) }) }

	if err := c.platform.Speak(u, finish); err != nil {
		return nil, fmt.Errorf("speak: %w", err)
	}
	c.metrics.RecordUtterance()

	ev := c.logger.Debug().Int("chars", len(text)).Float64("rate", u.Rate).Float64("pitch", u.Pitch)
	if u.Voice != nil {
		ev = ev.Str("voice", u.Voice.ID)
	}
	ev.Msg("Utterance started")
	return done, nil
}

// Stop cancels any playing utterance. It is idempotent.
func (c *Client) Stop() {
	if c.platform == nil {
		return
	}
	if c.platform.Speaking() {
		c.metrics.RecordSynthesisCancel()
	}
	c.platform.Cancel()
}

// IsSpeaking reports the platform playback state at this moment.
func (c *Client) IsSpeaking() bool {
	if c.platform == nil {
		return false
	}
	return c.platform.Speaking()
}

// resolveVoice looks id up by ID, then by name. Unknown or unloadable voices
// fall back to the platform default.
func (c *Client) resolveVoice(ctx context.Context, id string) *Voice {
	if id == "" {
		return nil
	}
	voices, err := c.Voices(ctx)
	if err == nil {
		for i := range voices {
			if voices[i].ID == id {
				v := voices[i]
				return &v
			}
		}
		for i := range voices {
			if strings.EqualFold(voices[i].Name, id) {
				v := voices[i]
				return &v
			}
		}
	}
	c.metrics.RecordVoiceFallback()
	c.logger.Warn().Err(err).Str("voice", id).Msg("Voice not available, using platform default")
	return nil
}

func clamp(v, def, lo, hi float64) float64 {
	if v == 0 {
		return def
	}
	return bound(v, lo, hi)
}

func clampOptional(v *float64, def, lo, hi float64) float64 {
	if v == nil {
		return def
	}
	return bound(*v, lo, hi)
}

func bound(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
