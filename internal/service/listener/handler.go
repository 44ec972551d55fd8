// Package listener provides the listening session that coordinates the
// recognition controller, the transcript, and the event publisher.
//
// The Handler owns the caller-side policy: the listening indicator, the
// continuous-mode restart on natural end, error presentation, and the idle
// timer. Every method except Snapshot and Transcript must run on the session
// thread.
package listener

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"speako/internal/models"
	"speako/internal/observability/logging"
	"speako/internal/observability/metrics"
	"speako/internal/service/eventloop"
	"speako/internal/service/recognition"
	"speako/internal/service/stt"
	"speako/internal/service/transcript"
)

// ErrEmptyLanguage is returned by SetLanguage for a blank tag.
var ErrEmptyLanguage = errors.New("language tag is empty")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("listener is closed")

// Publisher receives transcript events.
type Publisher interface {
	PublishInterim(ctx context.Context, event models.TranscriptInterim) error
	PublishFinal(ctx context.Context, event models.TranscriptFinal) error
}

// Notifier shows dismissible notices.
type Notifier interface {
	NoSpeech()
	Error(msg string)
}

// Renderer is the presentation hook. Render runs on the session thread after
// every visible change.
type Renderer interface {
	Render(s Snapshot)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(s Snapshot)

// Render calls f(s).
func (f RendererFunc) Render(s Snapshot) { f(s) }

// Config holds listening session configuration.
type Config struct {
	Recognition recognition.Config
	// IdleTimeout fires OnIdle after this long without activity. Zero disables it.
	IdleTimeout time.Duration
}

// Snapshot is a point-in-time view of the session for rendering and status.
type Snapshot struct {
	SessionID  string `json:"sessionId"`
	AttemptID  string `json:"attemptId,omitempty"`
	Language   string `json:"language"`
	Continuous bool   `json:"continuous"`
	Supported  bool   `json:"supported"`
	Listening  bool   `json:"listening"`
	Idle       bool   `json:"idle"`
	Transcript string `json:"transcript"`
	Interim    string `json:"interim,omitempty"`
	LastError  string `json:"lastError,omitempty"`
	Restarts   int    `json:"restarts"`
}

// Option configures a Handler.
type Option func(*Handler)

// WithExecutor sets the session thread. Defaults to eventloop.Inline.
func WithExecutor(e eventloop.Executor) Option {
	return func(h *Handler) { h.exec = e }
}

// WithPublisher sets the transcript event publisher.
func WithPublisher(p Publisher) Option {
	return func(h *Handler) { h.publisher = p }
}

// WithNotifier sets the notice sink.
func WithNotifier(n Notifier) Option {
	return func(h *Handler) { h.notifier = n }
}

// WithRenderer sets the presentation hook.
func WithRenderer(r Renderer) Option {
	return func(h *Handler) { h.renderer = r }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithOnIdle sets the function run on the session thread when the idle timer fires.
func WithOnIdle(fn func()) Option {
	return func(h *Handler) { h.onIdle = fn }
}

// Handler manages a listening session.
type Handler struct {
	capability stt.Capability
	exec       eventloop.Executor
	publisher  Publisher
	notifier   Notifier
	renderer   Renderer
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	attempts   *recognition.Generator
	onIdle     func()
	acc        *transcript.Accumulator

	// Session thread only.
	ctrl        *recognition.Controller
	cfg         recognition.Config
	idleTimeout time.Duration
	idleTimer   *time.Timer
	idleGen     uint64
	attemptErr  *recognition.Error
	stopping    bool
	resume      bool // Listen arrived while a stop was pending

	// Written on the session thread, read by Snapshot.
	mu         sync.RWMutex
	sessionId  string
	attemptId  string
	language   string
	continuous bool
	listening  bool
	idle       bool
	lastError  string
	restarts   int
	closed     bool
}

// New creates an idle listening session.
func New(capability stt.Capability, cfg Config, opts ...Option) *Handler {
	h := &Handler{
		capability:  capability,
		exec:        eventloop.Inline{},
		metrics:     metrics.DefaultMetrics,
		logger:      logging.WithComponent("listener"),
		attempts:    recognition.NewGenerator(),
		acc:         transcript.New(),
		cfg:         cfg.Recognition,
		idleTimeout: cfg.IdleTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.newController()
	return h
}

// newController starts a new session with a fresh controller.
func (h *Handler) newController() {
	id := uuid.NewString()
	s := &sink{h: h}
	h.ctrl = recognition.NewController(h.capability, h.cfg, s,
		recognition.WithExecutor(h.exec),
		recognition.WithMetrics(h.metrics),
		recognition.WithSessionId(id),
		recognition.WithGenerator(h.attempts),
		recognition.WithLogger(logging.WithSession(id)),
	)
	s.ctrl = h.ctrl

	h.mu.Lock()
	h.sessionId = id
	h.attemptId = ""
	h.language = h.cfg.Language
	h.continuous = h.cfg.Continuous
	h.mu.Unlock()

	h.logger.Info().
		Str("sessionId", id).
		Str("language", h.cfg.Language).
		Bool("continuous", h.cfg.Continuous).
		Msg("Listening session created")
}

// IsSupported reports whether recognition is available.
func (h *Handler) IsSupported() bool {
	return h.capability.Supported()
}

// Listening reports the listening indicator.
func (h *Handler) Listening() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listening
}

// Listen starts listening. Errors are reported through the notifier and the snapshot.
func (h *Handler) Listen() error {
	if h.isClosed() {
		return ErrClosed
	}
	if h.ctrl.IsRunning() {
		if h.stopping && !h.resume {
			h.resume = true
			h.setListening(true)
			h.touch()
			h.render()
		}
		return nil
	}

	h.attemptErr = nil
	h.setListening(true)
	h.setLastError("")
	h.touch()
	h.start()
	h.render()
	return nil
}

// Stop asks the current attempt to finish. The indicator clears when it ends.
func (h *Handler) Stop() {
	if !h.Listening() {
		return
	}
	if !h.ctrl.IsRunning() {
		h.finish()
		h.render()
		return
	}
	h.resume = false
	h.stopping = true
	h.ctrl.Stop()
}

// Toggle stops when listening and listens otherwise.
func (h *Handler) Toggle() error {
	if h.Listening() {
		h.Stop()
		return nil
	}
	return h.Listen()
}

// Abort tears down the current attempt immediately. Interim text is dropped,
// never promoted to the transcript.
func (h *Handler) Abort() {
	h.resume = false
	h.stopping = false
	h.ctrl.Abort()
	h.acc.ClearInterim()
	h.finish()
	h.render()
}

// SetContinuous changes continuous mode. It applies to the next attempt and
// to the restart decision of the current one.
func (h *Handler) SetContinuous(continuous bool) {
	h.cfg.Continuous = continuous
	h.mu.Lock()
	h.continuous = continuous
	h.mu.Unlock()
	h.ctrl.UpdateOptions(recognition.Options{Continuous: &continuous})
	h.logger.Info().Bool("continuous", continuous).Msg("Continuous mode changed")
	h.render()
}

// SetLanguage switches the recognition language. The current session is
// aborted and replaced; listening resumes if it was on.
func (h *Handler) SetLanguage(lang string) error {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ErrEmptyLanguage
	}
	if h.isClosed() {
		return ErrClosed
	}
	if _, ok := recognition.LookupLanguage(lang); !ok {
		h.logger.Warn().Str("language", lang).Msg("Language not in the offered list")
	}

	wasListening := h.Listening()
	h.resume = false
	h.stopping = false
	h.ctrl.Abort()
	h.acc.ClearInterim()
	h.finish()

	h.cfg.Language = lang
	h.newController()

	if wasListening {
		return h.Listen()
	}
	h.render()
	return nil
}

// Clear discards the transcript.
func (h *Handler) Clear() {
	h.acc.Reset()
	h.render()
}

// Transcript returns the finalized transcript. Safe from any goroutine.
func (h *Handler) Transcript() string {
	return h.acc.Text()
}

// Close aborts listening and rejects further use.
func (h *Handler) Close() {
	if h.isClosed() {
		return
	}
	h.resume = false
	h.stopping = false
	h.ctrl.Abort()
	h.acc.ClearInterim()
	h.finish()

	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.logger.Info().Msg("Listening session closed")
}

// Snapshot returns the current view. Safe from any goroutine.
func (h *Handler) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{
		SessionID:  h.sessionId,
		AttemptID:  h.attemptId,
		Language:   h.language,
		Continuous: h.continuous,
		Supported:  h.capability.Supported(),
		Listening:  h.listening,
		Idle:       h.idle,
		Transcript: h.acc.Text(),
		Interim:    h.acc.Interim(),
		LastError:  h.lastError,
		Restarts:   h.restarts,
	}
}

// --- recognition.Callbacks ---

func (h *Handler) onInterim(text string) {
	h.acc.SetInterim(text)
	h.touch()
	h.publishInterim(text)
	h.render()
}

func (h *Handler) onFinal(text string) {
	chunk := h.acc.AppendFinal(text)
	h.touch()
	if chunk != "" {
		h.publishFinal(chunk, len(h.acc.Chunks()))
	}
	h.render()
}

func (h *Handler) onError(err *recognition.Error) {
	h.attemptErr = err
	h.acc.ClearInterim()
	h.setLastError(err.Error())

	switch {
	case err.Fatal():
		// No OnEnd follows Unsupported; PermissionDenied must not restart.
		h.resume = false
		h.finish()
		if h.notifier != nil {
			h.notifier.Error(err.Error())
		}
	case err.Category == recognition.CategoryNoSpeech:
		if h.notifier != nil {
			h.notifier.NoSpeech()
		}
	default:
		if h.notifier != nil {
			h.notifier.Error(err.Error())
		}
	}

	h.logger.Warn().
		Str("category", err.Category.String()).
		Str("code", err.Code).
		Msg("Recognition error surfaced")
	h.render()
}

func (h *Handler) onEnd(reason recognition.EndReason) {
	h.stopping = false
	if h.resume && !h.isClosed() {
		h.resume = false
		h.attemptErr = nil
		h.logger.Debug().Msg("Resuming recognition after stop")
		h.start()
		h.render()
		return
	}
	if h.shouldRestart(reason) {
		h.mu.Lock()
		h.restarts++
		h.mu.Unlock()
		h.metrics.RecordRestart()
		h.logger.Debug().Msg("Restarting recognition")

		h.attemptErr = nil
		// The indicator stays on across the restart.
		h.start()
		h.render()
		return
	}

	h.acc.ClearInterim()
	h.finish()
	h.render()
}

func (h *Handler) shouldRestart(reason recognition.EndReason) bool {
	if reason != recognition.EndNatural || !h.cfg.Continuous || !h.Listening() || h.isClosed() {
		return false
	}
	return h.attemptErr == nil || h.attemptErr.Category == recognition.CategoryNoSpeech
}

// start issues Start and records the attempt for snapshots.
func (h *Handler) start() {
	h.stopping = false
	h.ctrl.Start()
	h.mu.Lock()
	h.attemptId = h.ctrl.Attempt()
	h.mu.Unlock()
}

// finish clears the listening indicator and the idle timer.
func (h *Handler) finish() {
	h.setListening(false)
	h.stopIdle()
}

func (h *Handler) setListening(v bool) {
	h.mu.Lock()
	h.listening = v
	h.mu.Unlock()
}

func (h *Handler) setLastError(msg string) {
	h.mu.Lock()
	h.lastError = msg
	h.mu.Unlock()
}

func (h *Handler) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

func (h *Handler) render() {
	if h.renderer != nil {
		h.renderer.Render(h.Snapshot())
	}
}

func (h *Handler) publishInterim(text string) {
	if h.publisher == nil {
		return
	}
	h.mu.RLock()
	ev := models.TranscriptInterim{
		EventType: models.EventTypeInterim,
		SessionID: h.sessionId,
		AttemptID: h.attemptId,
		Language:  h.language,
		Timestamp: time.Now().UnixMilli(),
		Text:      text,
	}
	h.mu.RUnlock()

	if err := h.publisher.PublishInterim(context.Background(), ev); err != nil {
		h.logger.Error().Err(err).Str("attemptId", ev.AttemptID).Msg("Failed to publish interim")
	}
}

func (h *Handler) publishFinal(text string, seq int) {
	if h.publisher == nil {
		return
	}
	h.mu.RLock()
	ev := models.TranscriptFinal{
		EventType: models.EventTypeFinal,
		SessionID: h.sessionId,
		AttemptID: h.attemptId,
		Language:  h.language,
		Timestamp: time.Now().UnixMilli(),
		Text:      text,
		Sequence:  seq,
	}
	h.mu.RUnlock()

	if err := h.publisher.PublishFinal(context.Background(), ev); err != nil {
		h.logger.Error().Err(err).Str("attemptId", ev.AttemptID).Msg("Failed to publish final")
	}
}

// sink forwards callbacks from one controller, ignoring controllers that
// were replaced by SetLanguage.
type sink struct {
	h    *Handler
	ctrl *recognition.Controller
}

func (s *sink) current() bool {
	return s.ctrl == nil || s.h.ctrl == s.ctrl
}

func (s *sink) OnInterim(text string) {
	if s.current() {
		s.h.onInterim(text)
	}
}

func (s *sink) OnFinal(text string) {
	if s.current() {
		s.h.onFinal(text)
	}
}

func (s *sink) OnError(err *recognition.Error) {
	if s.current() {
		s.h.onError(err)
	}
}

func (s *sink) OnEnd(reason recognition.EndReason) {
	if s.current() {
		s.h.onEnd(reason)
	}
}
