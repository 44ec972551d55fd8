package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/do/v2"

	"speako/internal/config"
	"speako/internal/events"
	"speako/internal/notify"
	"speako/internal/observability"
	"speako/internal/observability/logging"
	"speako/internal/service/eventloop"
	"speako/internal/service/listener"
	"speako/internal/service/synthesis"
)

// Application holds process-wide state for speako.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	injector  do.Injector
	loop      *eventloop.Loop
	listener  *listener.Handler
	synth     *synthesis.Client
	notifier  *notify.Notifier
	publisher *events.Publisher
	server    *observability.Server

	// closers release platform resources on shutdown, in order.
	closers []func() error
}

// New constructs the application and its dependency graph. renderer receives
// every listening session change; it may be nil.
func New(cfg *config.Configuration, renderer listener.Renderer) (*Application, error) {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	if renderer == nil {
		renderer = listener.RendererFunc(func(listener.Snapshot) {})
	}

	a.injector = do.New()
	a.registerDI(renderer)

	var err error
	if a.loop, err = do.Invoke[*eventloop.Loop](a.injector); err != nil {
		return nil, err
	}
	if a.listener, err = do.Invoke[*listener.Handler](a.injector); err != nil {
		return nil, err
	}
	if a.synth, err = do.Invoke[*synthesis.Client](a.injector); err != nil {
		return nil, err
	}
	a.notifier = do.MustInvoke[*notify.Notifier](a.injector)
	a.publisher = do.MustInvoke[*events.Publisher](a.injector)
	if cfg.Observability.MetricsEnabled {
		a.server = do.MustInvoke[*observability.Server](a.injector)
	}

	a.Logger.Info().
		Bool("recognitionSupported", a.listener.IsSupported()).
		Bool("synthesisSupported", a.synth.IsSupported()).
		Msg("Speako application created")
	return a, nil
}

// setupLogger configures zerolog for the process.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     a.Cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a.Logger = logging.WithComponent("application").With().
		Str("service", "speako").
		Logger()

	a.Logger.Debug().
		Str("logLevel", a.Cfg.Observability.LogLevel).
		Str("logFormat", a.Cfg.Observability.LogFormat).
		Msg("Logger setup completed")
}

// Start runs the session thread and, when enabled, the observability server.
// The session thread stops when ctx ends.
func (a *Application) Start(ctx context.Context) error {
	a.StartupTime = time.Now().UTC()

	go func() {
		if err := a.loop.Run(ctx); err != nil && err != context.Canceled {
			a.Logger.Error().Err(err).Msg("Session thread stopped")
		}
	}()

	if a.server != nil {
		a.server.Start()
	}

	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Str("recognition", a.Cfg.Recognition.Provider).
		Str("language", a.Cfg.Recognition.Language).
		Msg("Speako starting")
	return nil
}

// Post runs fn on the session thread. Listener methods must be called this way.
func (a *Application) Post(fn func()) {
	a.loop.Post(fn)
}

// Do runs fn on the session thread and waits for it.
func (a *Application) Do(ctx context.Context, fn func()) error {
	return a.loop.Do(ctx, fn)
}

// Listener returns the listening session.
func (a *Application) Listener() *listener.Handler {
	return a.listener
}

// Synthesizer returns the synthesis client.
func (a *Application) Synthesizer() *synthesis.Client {
	return a.synth
}

// Notifier returns the desktop notifier.
func (a *Application) Notifier() *notify.Notifier {
	return a.notifier
}

// Ready reports whether the session thread is running.
func (a *Application) Ready() bool {
	return a.loop.Running()
}

// Session returns the current listening session view.
func (a *Application) Session() listener.Snapshot {
	return a.listener.Snapshot()
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown(ctx context.Context) {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Speako shutting down")

	if a.loop.Running() {
		if err := a.loop.Do(ctx, a.listener.Close); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Failed to close listener on session thread")
		}
	} else {
		a.listener.Close()
	}
	a.loop.Close()

	a.synth.Stop()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Observability server shutdown failed")
		}
	}

	if err := a.publisher.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Publisher close failed")
	}

	for _, c := range a.closers {
		if err := c(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Platform close failed")
		}
	}
}
