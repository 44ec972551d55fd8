// Package mock provides a simulated recognition platform for running without
// a microphone or cloud credentials. Each recognizer plays scripted
// utterances as progressive interim results followed by one final result,
// then ends on its own the way a real single-shot recognizer does.
package mock

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"speako/internal/service/stt"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string // Progressive interim transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"Hola", "Hola qué", "Hola qué tal"},
		Final:      "Hola qué tal.",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"This is", "This is a test"},
		Final:      "This is a test of dictation.",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"Can you", "Can you read", "Can you read this"},
		Final:      "Can you read this back to me",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"Thank you"},
		Final:      "Thank you very much.",
		Confidence: 0.98,
	},
}

// Option configures a Platform.
type Option func(*Platform)

// WithUtterances sets the script. An empty script makes every recognizer
// report no-speech.
func WithUtterances(u []SimulatedUtterance) Option {
	return func(p *Platform) { p.utterances = u }
}

// WithInterval sets the delay between simulated events.
func WithInterval(d time.Duration) Option {
	return func(p *Platform) { p.interval = d }
}

// WithError makes every recognizer fail with code after one interval.
func WithError(code string) Option {
	return func(p *Platform) { p.errorCode = code }
}

// WithUtterancesPerAttempt sets how many utterances a continuous recognizer
// plays before ending naturally.
func WithUtterancesPerAttempt(n int) Option {
	return func(p *Platform) { p.perAttempt = n }
}

// Platform implements stt.Platform with scripted recognizers.
type Platform struct {
	utterances []SimulatedUtterance
	interval   time.Duration
	errorCode  string
	perAttempt int

	mu   sync.Mutex
	next int
}

// New creates a mock platform.
func New(opts ...Option) *Platform {
	p := &Platform{
		utterances: DefaultUtterances,
		interval:   300 * time.Millisecond,
		perAttempt: 2,
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

// NewRecognizer creates a recognizer that plays the next utterances of the script.
func (p *Platform) NewRecognizer(opts stt.Options, events stt.Events) (stt.Recognizer, error) {
	n := 1
	if opts.Continuous {
		n = p.perAttempt
	}

	p.mu.Lock()
	var script []SimulatedUtterance
	if len(p.utterances) > 0 {
		for i := 0; i < n; i++ {
			script = append(script, p.utterances[p.next%len(p.utterances)])
			p.next++
		}
	}
	p.mu.Unlock()

	return &Recognizer{
		opts:      opts,
		events:    events,
		script:    script,
		interval:  p.interval,
		errorCode: p.errorCode,
		stopCh:    make(chan struct{}),
		abortCh:   make(chan struct{}),
	}, nil
}

// Recognizer plays a script on its own goroutine.
type Recognizer struct {
	opts      stt.Options
	events    stt.Events
	script    []SimulatedUtterance
	interval  time.Duration
	errorCode string

	mu        sync.Mutex
	started   bool
	stopOnce  sync.Once
	abortOnce sync.Once
	stopCh    chan struct{}
	abortCh   chan struct{}
}

// Start begins playback.
func (r *Recognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return &stt.Error{Code: stt.ErrorStartFailed}
	}
	r.started = true
	go r.run()
	return nil
}

// Stop finishes the current utterance early and ends.
func (r *Recognizer) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Abort ends without delivering anything further except the end event.
func (r *Recognizer) Abort() {
	r.abortOnce.Do(func() { close(r.abortCh) })
}

type wake int

const (
	wakeTimer wake = iota
	wakeStop
	wakeAbort
)

func (r *Recognizer) wait() wake {
	select {
	case <-r.abortCh:
		return wakeAbort
	default:
	}
	select {
	case <-time.After(r.interval):
		return wakeTimer
	case <-r.stopCh:
		return wakeStop
	case <-r.abortCh:
		return wakeAbort
	}
}

func (r *Recognizer) run() {
	defer r.events.OnEnd()

	if r.errorCode != "" {
		if r.wait() == wakeTimer {
			r.events.OnError(r.errorCode)
		}
		return
	}

	if len(r.script) == 0 {
		if r.wait() == wakeTimer {
			r.events.OnError(stt.ErrorNoSpeech)
		}
		return
	}

	var finals []stt.Result
	for _, utt := range r.script {
		heard := false
		for _, partial := range utt.Partials {
			switch r.wait() {
			case wakeAbort:
				return
			case wakeStop:
				if heard {
					r.finalize(&finals, utt)
				}
				return
			}
			heard = true
			if r.opts.InterimResults {
				results := append(append([]stt.Result{}, finals...), stt.Result{Transcript: partial})
				r.events.OnResult(stt.ResultBatch{ResultIndex: len(finals), Results: results})
			}
		}

		switch r.wait() {
		case wakeAbort:
			return
		case wakeStop:
			if heard {
				r.finalize(&finals, utt)
			}
			return
		}
		r.finalize(&finals, utt)
	}

	// Trailing silence before the natural end.
	r.wait()
	log.Debug().Int("utterances", len(finals)).Msg("Mock recognizer finished script")
}

func (r *Recognizer) finalize(finals *[]stt.Result, utt SimulatedUtterance) {
	*finals = append(*finals, stt.Result{Transcript: utt.Final, Confidence: utt.Confidence, IsFinal: true})
	r.events.OnResult(stt.ResultBatch{ResultIndex: len(*finals) - 1, Results: append([]stt.Result{}, *finals...)})
}
