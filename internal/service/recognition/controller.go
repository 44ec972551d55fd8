// Package recognition turns a single-shot platform recognizer into a
// restartable transcription session.
//
// A Controller owns at most one underlying recognizer instance (an attempt)
// at a time. It splits platform result batches into interim and final text,
// classifies platform errors, and reports the end of every attempt together
// with the reason it ended. Whether to restart after an end is left to the
// caller.
//
// A Controller is not safe for concurrent use. All methods and all callbacks
// run on the session thread: the goroutine that drains the Executor given at
// construction.
package recognition

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"speako/internal/observability/logging"
	"speako/internal/observability/metrics"
	"speako/internal/service/eventloop"
	"speako/internal/service/stt"
)

// EndReason tells the caller why an attempt ended.
type EndReason int

const (
	// EndNatural - the platform ended the attempt on its own (end of utterance, silence, error).
	EndNatural EndReason = iota
	// EndUserStopped - the attempt ended after Stop was called for it.
	EndUserStopped
)

// String returns the metrics label for the reason.
func (r EndReason) String() string {
	if r == EndUserStopped {
		return "user_stopped"
	}
	return "natural"
}

// Config is the recognition configuration used for new attempts.
type Config struct {
	Language       string
	Continuous     bool
	InterimResults bool
}

// Options is a partial Config for UpdateOptions. Nil fields are left unchanged.
type Options struct {
	Language       *string
	Continuous     *bool
	InterimResults *bool
}

// Merge returns c with the non-nil fields of o applied.
func (c Config) Merge(o Options) Config {
	if o.Language != nil {
		c.Language = *o.Language
	}
	if o.Continuous != nil {
		c.Continuous = *o.Continuous
	}
	if o.InterimResults != nil {
		c.InterimResults = *o.InterimResults
	}
	return c
}

// Callbacks receives the controller's output.
// For one attempt the order is OnInterim*, OnFinal*, OnError?, OnEnd.
// Nothing is delivered for an attempt after its OnEnd.
type Callbacks interface {
	OnInterim(text string)
	OnFinal(text string)
	OnError(err *Error)
	OnEnd(reason EndReason)
}

// Option configures a Controller.
type Option func(*Controller)

// WithExecutor sets the session thread. Defaults to eventloop.Inline.
func WithExecutor(e eventloop.Executor) Option {
	return func(c *Controller) { c.exec = e }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithSessionId sets the session ID used to derive attempt IDs.
func WithSessionId(id string) Option {
	return func(c *Controller) { c.sessionId = id }
}

// WithGenerator sets the attempt ID generator.
func WithGenerator(g *Generator) Option {
	return func(c *Controller) { c.attempts = g }
}

// Controller is the recognition session controller.
type Controller struct {
	capability stt.Capability
	cfg        Config
	cb         Callbacks

	exec      eventloop.Executor
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	sessionId string
	attempts  *Generator

	lc      lifecycle
	current *attempt
}

// NewController creates an idle controller. It does not start listening.
func NewController(capability stt.Capability, cfg Config, cb Callbacks, opts ...Option) *Controller {
	c := &Controller{
		capability: capability,
		cfg:        cfg,
		cb:         cb,
		exec:       eventloop.Inline{},
		logger:     logging.WithComponent("recognition"),
		metrics:    metrics.DefaultMetrics,
		sessionId:  "session",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.attempts == nil {
		c.attempts = NewGenerator()
	}
	return c
}

// IsSupported reports whether a recognition platform is available.
func (c *Controller) IsSupported() bool {
	return c.capability.Supported()
}

// State returns the session state.
func (c *Controller) State() State {
	return c.lc.state
}

// IsRunning reports whether an attempt is running.
func (c *Controller) IsRunning() bool {
	return c.lc.state == StateRunning
}

// Config returns the configuration the next attempt will use.
func (c *Controller) Config() Config {
	return c.cfg
}

// Attempt returns the ID of the most recent attempt, or "".
func (c *Controller) Attempt() string {
	if c.current == nil {
		return ""
	}
	return c.current.id
}

// UpdateOptions merges o into the held configuration. A running attempt keeps
// the settings it was created with.
func (c *Controller) UpdateOptions(o Options) {
	c.cfg = c.cfg.Merge(o)
}

// Start begins a new attempt. It is a no-op while running. Failures are
// reported through Callbacks, never returned.
func (c *Controller) Start() {
	if c.lc.state == StateRunning {
		c.logger.Debug().Str("attemptId", c.current.id).Msg("Start ignored, already running")
		return
	}

	platform, ok := c.capability.Platform()
	if !ok {
		c.logger.Warn().Msg("Speech recognition unavailable")
		c.metrics.RecordError(CategoryUnsupported.String())
		c.cb.OnError(errUnsupported)
		return
	}

	a := &attempt{
		id:      c.attempts.Next(c.sessionId),
		cfg:     c.cfg,
		started: time.Now(),
		reason:  EndNatural,
	}
	logger := logging.WithAttempt(c.sessionId, a.id, platform.Name())

	rec, err := platform.NewRecognizer(stt.Options{
		Language:        a.cfg.Language,
		Continuous:      a.cfg.Continuous,
		InterimResults:  a.cfg.InterimResults,
		MaxAlternatives: 1,
	}, events{c: c, a: a})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create recognizer")
		c.current = a
		a.settled = true
		c.fail(a, stt.CodeOf(err))
		return
	}
	a.rec = rec

	// The attempt must be current before Start: platforms may report synchronously.
	c.current = a
	if err := c.lc.begin(); err != nil {
		logger.Error().Err(err).Msg("Unexpected lifecycle state")
	}
	c.metrics.RecordAttemptStart()

	logger.Info().
		Str("language", a.cfg.Language).
		Bool("continuous", a.cfg.Continuous).
		Bool("interim", a.cfg.InterimResults).
		Msg("Recognition attempt started")

	if err := rec.Start(); err != nil {
		logger.Error().Err(err).Msg("Recognizer failed to start")
		if c.current == a && !a.ended {
			c.settle(a, "error")
			c.fail(a, stt.CodeOf(err))
		}
	}
}

// Stop asks the running attempt to finish gracefully. The attempt's OnEnd
// follows later with EndUserStopped. No-op when idle.
func (c *Controller) Stop() {
	if c.lc.state != StateRunning {
		return
	}
	a := c.current
	a.reason = EndUserStopped
	c.logger.Debug().Str("attemptId", a.id).Msg("Stopping recognition attempt")
	a.rec.Stop()
}

// Abort terminates the running attempt immediately. Pending results are
// discarded and no OnEnd is delivered for it. No-op when idle.
func (c *Controller) Abort() {
	if c.lc.state != StateRunning {
		return
	}
	a := c.current
	a.ended = true
	c.settle(a, "aborted")
	c.logger.Debug().Str("attemptId", a.id).Msg("Aborting recognition attempt")
	a.rec.Abort()
}

func (c *Controller) stale(a *attempt) bool {
	if a != c.current || a.ended {
		c.metrics.RecordStaleEvent()
		c.logger.Debug().Str("attemptId", a.id).Msg("Dropping stale recognizer event")
		return true
	}
	return false
}

func (c *Controller) handleResult(a *attempt, batch stt.ResultBatch) {
	if c.stale(a) {
		return
	}

	from := batch.ResultIndex
	if from < 0 {
		from = 0
	}

	var interim, final strings.Builder
	for i := from; i < len(batch.Results); i++ {
		r := batch.Results[i]
		if r.IsFinal {
			final.WriteString(r.Transcript)
		} else {
			interim.WriteString(r.Transcript)
		}
	}

	if interim.Len() > 0 && a.cfg.InterimResults {
		c.metrics.RecordInterimTranscript()
		c.cb.OnInterim(interim.String())
		// The callback may have aborted or restarted.
		if a != c.current || a.ended {
			return
		}
	}
	if final.Len() > 0 {
		c.metrics.RecordFinalTranscript()
		c.cb.OnFinal(final.String())
	}
}

func (c *Controller) handleError(a *attempt, code string) {
	if c.stale(a) {
		return
	}
	c.settle(a, "error")
	c.fail(a, code)
}

func (c *Controller) handleEnd(a *attempt) {
	if c.stale(a) {
		return
	}
	a.ended = true
	c.settle(a, a.reason.String())
	c.logger.Info().
		Str("attemptId", a.id).
		Str("reason", a.reason.String()).
		Msg("Recognition attempt ended")
	c.cb.OnEnd(a.reason)
}

// fail reports a classified error and the attempt's single OnEnd. A later
// platform end for the attempt is suppressed.
func (c *Controller) fail(a *attempt, code string) {
	err := Classify(code)
	c.metrics.RecordError(err.Category.String())
	c.logger.Warn().
		Str("attemptId", a.id).
		Str("code", code).
		Str("category", err.Category.String()).
		Msg("Recognition error")

	c.cb.OnError(err)

	if c.current != a || a.ended {
		// A newer attempt was started from OnError.
		a.ended = true
		return
	}
	a.ended = true
	c.cb.OnEnd(a.reason)
}

// settle moves the controller to IDLE for a, once.
func (c *Controller) settle(a *attempt, reason string) {
	if a.settled {
		return
	}
	a.settled = true
	if err := c.lc.end(); err != nil {
		c.logger.Error().Err(err).Str("attemptId", a.id).Msg("Unexpected lifecycle state")
		return
	}
	c.metrics.RecordAttemptEnd(reason, time.Since(a.started).Seconds())
}
