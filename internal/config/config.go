// Package config loads speako settings from defaults, an optional YAML file
// and SPEAKO_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SPEAKO_"

// UserFile is the per-user config file looked up in the home directory.
const UserFile = ".speako.yaml"

// Configuration holds all application settings.
type Configuration struct {
	Service       ServiceConfig       `yaml:"service" envPrefix:"SERVICE_"`
	Recognition   RecognitionConfig   `yaml:"recognition" envPrefix:"RECOGNITION_"`
	Google        GoogleConfig        `yaml:"google" envPrefix:"GOOGLE_"`
	Audio         AudioConfig         `yaml:"audio" envPrefix:"AUDIO_"`
	Synthesis     SynthesisConfig     `yaml:"synthesis" envPrefix:"SYNTHESIS_"`
	Kafka         KafkaConfig         `yaml:"kafka" envPrefix:"KAFKA_"`
	Observability ObservabilityConfig `yaml:"observability" envPrefix:"OBSERVABILITY_"`
	Notifications NotificationsConfig `yaml:"notifications" envPrefix:"NOTIFICATIONS_"`
}

// ServiceConfig identifies this process.
type ServiceConfig struct {
	Principal string `yaml:"principal" env:"PRINCIPAL"`
}

// RecognitionConfig configures speech-to-text.
type RecognitionConfig struct {
	Provider       string        `yaml:"provider" env:"PROVIDER"` // mock, google or none
	Language       string        `yaml:"language" env:"LANGUAGE"`
	Continuous     bool          `yaml:"continuous" env:"CONTINUOUS"`
	InterimResults bool          `yaml:"interimResults" env:"INTERIM_RESULTS"`
	IdleTimeout    time.Duration `yaml:"idleTimeout" env:"IDLE_TIMEOUT"`
}

// GoogleConfig configures the Google Cloud recognizer.
type GoogleConfig struct {
	SampleRateHz    int32         `yaml:"sampleRateHz" env:"SAMPLE_RATE_HZ"`
	AudioEncoding   string        `yaml:"audioEncoding" env:"AUDIO_ENCODING"`
	Model           string        `yaml:"model" env:"MODEL"`
	NoSpeechTimeout time.Duration `yaml:"noSpeechTimeout" env:"NO_SPEECH_TIMEOUT"`
	Endpoint        string        `yaml:"endpoint" env:"ENDPOINT"`
	CredentialsFile string        `yaml:"credentialsFile" env:"CREDENTIALS_FILE"`
}

// AudioConfig selects the PCM source for cloud recognition.
type AudioConfig struct {
	Source       string `yaml:"source" env:"SOURCE"` // mic or wav
	WavPath      string `yaml:"wavPath" env:"WAV_PATH"`
	SampleRate   int    `yaml:"sampleRate" env:"SAMPLE_RATE"`
	BufferFrames int    `yaml:"bufferFrames" env:"BUFFER_FRAMES"`
	RecordPath   string `yaml:"recordPath" env:"RECORD_PATH"`
}

// SynthesisConfig configures text-to-speech.
type SynthesisConfig struct {
	Provider      string  `yaml:"provider" env:"PROVIDER"` // exec, mock or none
	Command       string  `yaml:"command" env:"COMMAND"`
	VoicesCommand string  `yaml:"voicesCommand" env:"VOICES_COMMAND"`
	DefaultVoice  string  `yaml:"defaultVoice" env:"DEFAULT_VOICE"`
	Voice         string  `yaml:"voice" env:"VOICE"`
	Rate          float64 `yaml:"rate" env:"RATE"`
	Pitch         float64 `yaml:"pitch" env:"PITCH"`
	Volume        float64 `yaml:"volume" env:"VOLUME"`
}

// KafkaConfig configures transcript event publishing.
type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled" env:"ENABLED"`
	Brokers      []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	TopicInterim string   `yaml:"topicInterim" env:"TOPIC_INTERIM"`
	TopicFinal   string   `yaml:"topicFinal" env:"TOPIC_FINAL"`
	Principal    string   `yaml:"principal" env:"PRINCIPAL"`
}

// ObservabilityConfig configures logging and the metrics server.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"logLevel" env:"LOG_LEVEL"`
	LogFormat      string `yaml:"logFormat" env:"LOG_FORMAT"` // json or console
	MetricsEnabled bool   `yaml:"metricsEnabled" env:"METRICS_ENABLED"`
	MetricsAddr    string `yaml:"metricsAddr" env:"METRICS_ADDR"`
}

// NotificationsConfig toggles desktop notices.
type NotificationsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

// Default returns the built-in settings.
func Default() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal: "speako",
		},
		Recognition: RecognitionConfig{
			Provider:       "mock",
			Language:       "es-MX",
			Continuous:     true,
			InterimResults: true,
			IdleTimeout:    30 * time.Second,
		},
		Google: GoogleConfig{
			SampleRateHz:    16000,
			AudioEncoding:   "LINEAR16",
			NoSpeechTimeout: 8 * time.Second,
		},
		Audio: AudioConfig{
			Source:       "mic",
			SampleRate:   16000,
			BufferFrames: 1600,
		},
		Synthesis: SynthesisConfig{
			Provider:      "exec",
			Command:       "espeak-ng -v {voice} -s {rate} -p {pitch} -a {volume} --stdin",
			VoicesCommand: "espeak-ng --voices",
			DefaultVoice:  "en",
			Rate:          1,
			Pitch:         1,
			Volume:        1,
		},
		Kafka: KafkaConfig{
			Enabled:      false,
			Brokers:      []string{"localhost:9092"},
			TopicInterim: "speako.transcript.interim",
			TopicFinal:   "speako.transcript.final",
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "console",
			MetricsEnabled: false,
			MetricsAddr:    ":8081",
		},
		Notifications: NotificationsConfig{
			Enabled: true,
		},
	}
}

// Load builds the configuration. An explicit path must exist; without one,
// ~/.speako.yaml is read when present. Environment variables override the file.
func Load(path string) (*Configuration, error) {
	cfg := Default()

	file, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if file != "" {
		if err := cfg.loadFile(file); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	p := filepath.Join(home, UserFile)
	if _, err := os.Stat(p); err != nil {
		return "", nil
	}
	return p, nil
}

func (c *Configuration) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings for values no component can run with.
func (c *Configuration) Validate() error {
	var errs []error

	switch c.Recognition.Provider {
	case "mock", "google", "none":
	default:
		errs = append(errs, fmt.Errorf("recognition.provider: unknown provider %q", c.Recognition.Provider))
	}
	if c.Recognition.Language == "" {
		errs = append(errs, errors.New("recognition.language: required"))
	}
	if c.Recognition.IdleTimeout < 0 {
		errs = append(errs, errors.New("recognition.idleTimeout: must not be negative"))
	}

	if c.Recognition.Provider == "google" {
		if c.Google.SampleRateHz <= 0 {
			errs = append(errs, errors.New("google.sampleRateHz: must be positive"))
		}
		switch c.Audio.Source {
		case "mic":
		case "wav":
			if c.Audio.WavPath == "" {
				errs = append(errs, errors.New("audio.wavPath: required for wav source"))
			}
		default:
			errs = append(errs, fmt.Errorf("audio.source: unknown source %q", c.Audio.Source))
		}
	}

	switch c.Synthesis.Provider {
	case "exec":
		if c.Synthesis.Command == "" {
			errs = append(errs, errors.New("synthesis.command: required for exec provider"))
		}
	case "mock", "none":
	default:
		errs = append(errs, fmt.Errorf("synthesis.provider: unknown provider %q", c.Synthesis.Provider))
	}
	if c.Synthesis.Rate < 0 || c.Synthesis.Pitch < 0 || c.Synthesis.Volume < 0 {
		errs = append(errs, errors.New("synthesis: rate, pitch and volume must not be negative"))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers: required when kafka is enabled"))
	}

	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("observability.logFormat: unknown format %q", c.Observability.LogFormat))
	}

	return errors.Join(errs...)
}
