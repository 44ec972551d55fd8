package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"

	"speako/internal/config"
	"speako/internal/events"
	apphttp "speako/internal/http"
	"speako/internal/notify"
	"speako/internal/observability"
	"speako/internal/observability/metrics"
	"speako/internal/service/audio"
	"speako/internal/service/eventloop"
	"speako/internal/service/listener"
	"speako/internal/service/recognition"
	"speako/internal/service/stt"
	"speako/internal/service/stt/google"
	sttmock "speako/internal/service/stt/mock"
	"speako/internal/service/synthesis"
	synthexec "speako/internal/service/synthesis/exec"
	synthmock "speako/internal/service/synthesis/mock"
)

// googleDialTimeout bounds creating the speech client at startup.
const googleDialTimeout = 15 * time.Second

func (a *Application) registerDI(renderer listener.Renderer) {
	i := a.injector

	do.ProvideValue(i, a.Cfg)
	do.ProvideValue(i, metrics.DefaultMetrics)
	do.ProvideValue(i, renderer)

	do.Provide(i, func(do.Injector) (*eventloop.Loop, error) {
		return eventloop.New(), nil
	})

	do.Provide(i, func(i do.Injector) (*notify.Notifier, error) {
		cfg := do.MustInvoke[*config.Configuration](i)
		return notify.New(cfg.Notifications.Enabled), nil
	})

	do.Provide(i, func(i do.Injector) (*events.Publisher, error) {
		cfg := do.MustInvoke[*config.Configuration](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return events.New(&events.Config{
			Enabled:      cfg.Kafka.Enabled,
			Brokers:      cfg.Kafka.Brokers,
			TopicInterim: cfg.Kafka.TopicInterim,
			TopicFinal:   cfg.Kafka.TopicFinal,
			Principal:    cfg.Kafka.Principal,
		}, m), nil
	})

	do.Provide(i, func(i do.Injector) (audio.Factory, error) {
		cfg := do.MustInvoke[*config.Configuration](i)
		return audioFactory(cfg.Audio)
	})

	do.Provide(i, func(i do.Injector) (stt.Capability, error) {
		cfg := do.MustInvoke[*config.Configuration](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		switch cfg.Recognition.Provider {
		case "mock":
			return stt.Available(sttmock.New()), nil
		case "google":
			sources := do.MustInvoke[audio.Factory](i)
			ctx, cancel := context.WithTimeout(context.Background(), googleDialTimeout)
			defer cancel()
			p, err := google.New(ctx, google.Config{
				SampleRateHz:    cfg.Google.SampleRateHz,
				AudioEncoding:   cfg.Google.AudioEncoding,
				Model:           cfg.Google.Model,
				NoSpeechTimeout: cfg.Google.NoSpeechTimeout,
				Endpoint:        cfg.Google.Endpoint,
				CredentialsFile: cfg.Google.CredentialsFile,
			}, sources, m)
			if err != nil {
				// Recognition is reported unsupported rather than failing startup.
				a.Logger.Error().Err(err).Msg("Failed to create Google speech client")
				return stt.Unavailable(), nil
			}
			a.closers = append(a.closers, p.Close)
			return stt.Available(p), nil
		default:
			return stt.Unavailable(), nil
		}
	})

	do.Provide(i, func(i do.Injector) (*listener.Handler, error) {
		cfg := do.MustInvoke[*config.Configuration](i)
		capability := do.MustInvoke[stt.Capability](i)
		loop := do.MustInvoke[*eventloop.Loop](i)
		publisher := do.MustInvoke[*events.Publisher](i)
		notifier := do.MustInvoke[*notify.Notifier](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		r := do.MustInvoke[listener.Renderer](i)

		return listener.New(capability, listener.Config{
			Recognition: recognition.Config{
				Language:       cfg.Recognition.Language,
				Continuous:     cfg.Recognition.Continuous,
				InterimResults: cfg.Recognition.InterimResults,
			},
			IdleTimeout: cfg.Recognition.IdleTimeout,
		},
			listener.WithExecutor(loop),
			listener.WithPublisher(publisher),
			listener.WithNotifier(notifier),
			listener.WithRenderer(r),
			listener.WithMetrics(m),
		), nil
	})

	do.Provide(i, func(i do.Injector) (*synthesis.Client, error) {
		cfg := do.MustInvoke[*config.Configuration](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		var p synthesis.Platform
		switch cfg.Synthesis.Provider {
		case "exec":
			ep, err := synthexec.New(synthexec.Config{
				Command:       cfg.Synthesis.Command,
				VoicesCommand: cfg.Synthesis.VoicesCommand,
				DefaultVoice:  cfg.Synthesis.DefaultVoice,
			})
			if err != nil {
				return nil, fmt.Errorf("synthesis: %w", err)
			}
			p = ep
		case "mock":
			p = synthmock.New()
		}
		return synthesis.NewClient(p, synthesis.WithMetrics(m)), nil
	})

	do.Provide(i, func(i do.Injector) (*observability.Server, error) {
		cfg := do.MustInvoke[*config.Configuration](i)
		return observability.NewServer(
			cfg.Observability.MetricsAddr,
			apphttp.NewRouter(a, prometheus.DefaultGatherer),
		), nil
	})
}

// audioFactory builds the PCM source for cloud recognition, teeing to a WAV
// file when a record path is set.
func audioFactory(cfg config.AudioConfig) (audio.Factory, error) {
	var f audio.Factory
	switch cfg.Source {
	case "wav":
		f = audio.WavFactory(cfg.WavPath, 100*time.Millisecond)
	case "mic", "":
		capture := audio.DefaultCaptureConfig()
		if cfg.SampleRate > 0 {
			capture.SampleRate = uint32(cfg.SampleRate)
		}
		if cfg.BufferFrames > 0 {
			capture.BufferFrames = uint32(cfg.BufferFrames)
		}
		f = audio.MicFactory(capture)
	default:
		return nil, fmt.Errorf("unknown audio source %q", cfg.Source)
	}

	if cfg.RecordPath != "" {
		rate := cfg.SampleRate
		if rate <= 0 {
			rate = int(audio.DefaultCaptureConfig().SampleRate)
		}
		f = audio.RecordingFactory(f, cfg.RecordPath, rate)
	}
	return f, nil
}
