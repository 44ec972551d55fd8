// Package mock provides a timed fake synthesis platform. Playback lasts a
// fixed time per character and makes no sound.
package mock

import (
	"context"
	"sync"
	"time"

	"speako/internal/service/synthesis"
)

// DefaultVoices is the voice table served when none is configured.
var DefaultVoices = []synthesis.Voice{
	{ID: "es-mx", Name: "Paulina", Language: "es-MX", Default: true},
	{ID: "es-es", Name: "Monica", Language: "es-ES"},
	{ID: "en-us", Name: "Samantha", Language: "en-US"},
	{ID: "en-gb", Name: "Daniel", Language: "en-GB"},
}

// Option configures a Platform.
type Option func(*Platform)

// WithVoices sets the voice table.
func WithVoices(v []synthesis.Voice) Option {
	return func(p *Platform) { p.voices = v }
}

// WithPerChar sets playback time per character at rate 1.
func WithPerChar(d time.Duration) Option {
	return func(p *Platform) { p.perChar = d }
}

// WithVoiceDelay delays the voice table, as platforms do on first load.
func WithVoiceDelay(d time.Duration) Option {
	return func(p *Platform) { p.voiceDelay = d }
}

// Platform implements synthesis.Platform.
type Platform struct {
	voices     []synthesis.Voice
	perChar    time.Duration
	voiceDelay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	done    func()
	spoken  []synthesis.Utterance
	cancels int
}

// New creates a mock platform.
func New(opts ...Option) *Platform {
	p := &Platform{
		voices:  DefaultVoices,
		perChar: 20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns "mock".
func (p *Platform) Name() string {
	return "mock"
}

// Voices returns the configured table after the configured delay.
func (p *Platform) Voices(ctx context.Context) ([]synthesis.Voice, error) {
	if p.voiceDelay > 0 {
		select {
		case <-time.After(p.voiceDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := make([]synthesis.Voice, len(p.voices))
	copy(out, p.voices)
	return out, nil
}

// Speak plays u for len(text) * perChar / rate.
func (p *Platform) Speak(u synthesis.Utterance, done func()) error {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	d := time.Duration(float64(len(u.Text)) * float64(p.perChar) / rate)

	p.mu.Lock()
	prev := p.cancelLocked()
	p.spoken = append(p.spoken, u)
	p.done = done

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		p.mu.Lock()
		if p.timer != t {
			p.mu.Unlock()
			return
		}
		p.timer = nil
		p.done = nil
		p.mu.Unlock()
		done()
	})
	p.timer = t
	p.mu.Unlock()

	if prev != nil {
		prev()
	}
	return nil
}

// Cancel stops the playing utterance and reports it done.
func (p *Platform) Cancel() {
	p.mu.Lock()
	done := p.cancelLocked()
	p.mu.Unlock()
	if done != nil {
		done()
	}
}

func (p *Platform) cancelLocked() func() {
	if p.timer == nil {
		return nil
	}
	p.timer.Stop()
	p.timer = nil
	done := p.done
	p.done = nil
	p.cancels++
	return done
}

// Speaking reports whether an utterance is playing.
func (p *Platform) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

// Spoken returns every utterance passed to Speak.
func (p *Platform) Spoken() []synthesis.Utterance {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]synthesis.Utterance, len(p.spoken))
	copy(out, p.spoken)
	return out
}

// Cancels returns how many playing utterances were cancelled.
func (p *Platform) Cancels() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancels
}
