// Package google provides a Google Cloud Speech-to-Text recognition platform.
//
// Each recognizer opens one streaming recognition call, pumps PCM from an
// audio source into it and reports responses as result batches. A
// non-continuous recognizer asks the service for a single utterance; a
// continuous one streams until stopped, the source runs dry, or the service
// ends the stream.
package google

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"speako/internal/observability"
	"speako/internal/observability/metrics"
	"speako/internal/service/audio"
	"speako/internal/service/stt"
)

// Config holds Google Speech-to-Text settings that do not change per instance.
type Config struct {
	SampleRateHz    int32
	AudioEncoding   string
	Model           string
	NoSpeechTimeout time.Duration
	Endpoint        string
	CredentialsFile string
}

// DefaultConfig returns settings matching the default microphone source.
func DefaultConfig() Config {
	return Config{
		SampleRateHz:    16000,
		AudioEncoding:   "LINEAR16",
		NoSpeechTimeout: 8 * time.Second,
	}
}

// parseAudioEncoding maps an encoding name to the API enum, defaulting to LINEAR16.
func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	switch s {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// streamingConfig builds the first request of a stream.
func streamingConfig(cfg Config, opts stt.Options) *speechpb.StreamingRecognitionConfig {
	maxAlt := int32(opts.MaxAlternatives)
	if maxAlt < 1 {
		maxAlt = 1
	}

	sc := &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(cfg.AudioEncoding),
			SampleRateHertz:            cfg.SampleRateHz,
			LanguageCode:               opts.Language,
			MaxAlternatives:            maxAlt,
			Model:                      cfg.Model,
			EnableAutomaticPunctuation: true,
		},
		InterimResults:  opts.InterimResults,
		SingleUtterance: !opts.Continuous,
	}
	if cfg.NoSpeechTimeout > 0 {
		sc.EnableVoiceActivityEvents = true
		sc.VoiceActivityTimeout = &speechpb.StreamingRecognitionConfig_VoiceActivityTimeout{
			SpeechStartTimeout: durationpb.New(cfg.NoSpeechTimeout),
		}
	}
	return sc
}

// classifyStatus maps a stream error to a platform error code.
func classifyStatus(err error) string {
	if errors.Is(err, context.Canceled) {
		return stt.ErrorAborted
	}
	switch code := status.Code(err); code {
	case codes.PermissionDenied, codes.Unauthenticated:
		return stt.ErrorServiceNotAllowed
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return stt.ErrorNetwork
	case codes.Canceled:
		return stt.ErrorAborted
	case codes.OutOfRange:
		// Stream duration limit; the caller may restart.
		return stt.ErrorNoSpeech
	default:
		return code.String()
	}
}

// buildBatch appends the results of one response to the instance's finals.
// It returns the batch to deliver and the updated finals.
func buildBatch(finals []stt.Result, results []*speechpb.StreamingRecognitionResult) (stt.ResultBatch, []stt.Result) {
	all := make([]stt.Result, len(finals), len(finals)+len(results))
	copy(all, finals)

	next := make([]stt.Result, len(finals), len(finals)+len(results))
	copy(next, finals)

	for _, r := range results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		res := stt.Result{
			Transcript: alt.Transcript,
			Confidence: float64(alt.Confidence),
			IsFinal:    r.IsFinal,
		}
		all = append(all, res)
		if r.IsFinal {
			next = append(next, res)
		}
	}
	return stt.ResultBatch{ResultIndex: len(finals), Results: all}, next
}

// streamFunc opens a streaming recognition call.
type streamFunc func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// Platform implements stt.Platform using Google Cloud Speech-to-Text.
type Platform struct {
	client  *speech.Client
	open    streamFunc
	cfg     Config
	sources audio.Factory
	metrics *metrics.Metrics
}

// New creates the platform. Credentials come from CredentialsFile or the
// GOOGLE_APPLICATION_CREDENTIALS environment variable.
func New(ctx context.Context, cfg Config, sources audio.Factory, m *metrics.Metrics) (*Platform, error) {
	if m == nil {
		m = metrics.DefaultMetrics
	}

	opts := []option.ClientOption{
		option.WithGRPCDialOption(grpc.WithChainUnaryInterceptor(observability.UnaryClientInterceptor())),
		option.WithGRPCDialOption(grpc.WithChainStreamInterceptor(observability.StreamClientInterceptor(m))),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	p := newPlatform(func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
		return c.StreamingRecognize(ctx)
	}, cfg, sources, m)
	p.client = c
	return p, nil
}

func newPlatform(open streamFunc, cfg Config, sources audio.Factory, m *metrics.Metrics) *Platform {
	return &Platform{open: open, cfg: cfg, sources: sources, metrics: m}
}

// Name returns "google".
func (p *Platform) Name() string {
	return "google"
}

// Close releases the client connection.
func (p *Platform) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// NewRecognizer creates a recognizer bound to opts.
func (p *Platform) NewRecognizer(opts stt.Options, events stt.Events) (stt.Recognizer, error) {
	if opts.Language == "" {
		return nil, &stt.Error{Code: stt.ErrorLanguageNotSupported, Err: errors.New("empty language")}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &recognizer{
		p:      p,
		opts:   opts,
		events: events,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// recognizer is one streaming call.
type recognizer struct {
	p      *Platform
	opts   stt.Options
	events stt.Events
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
	aborted bool
	source  audio.Source
}

// Start opens the stream and the audio source in the background.
func (r *recognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return &stt.Error{Code: stt.ErrorStartFailed, Err: errors.New("recognizer already started")}
	}
	r.started = true
	go r.run()
	return nil
}

// Stop ends audio capture; the service then finalizes and closes the stream.
func (r *recognizer) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.stopSource()
}

// Abort cancels the call. Nothing but the end event is reported afterwards.
func (r *recognizer) Abort() {
	r.mu.Lock()
	r.aborted = true
	r.mu.Unlock()
	r.cancel()
	r.stopSource()
}

func (r *recognizer) isAborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

func (r *recognizer) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *recognizer) stopSource() {
	r.mu.Lock()
	src := r.source
	r.mu.Unlock()
	if src != nil {
		if err := src.Stop(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop audio source")
		}
	}
}

func (r *recognizer) emitError(code string) {
	if r.isAborted() {
		return
	}
	r.events.OnError(code)
}

func (r *recognizer) run() {
	defer r.events.OnEnd()
	defer r.cancel()
	defer r.stopSource()

	stream, err := r.p.open(r.ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open recognition stream")
		r.emitError(classifyStatus(err))
		return
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: streamingConfig(r.p.cfg, r.opts),
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to send streaming config")
		r.emitError(classifyStatus(err))
		return
	}

	src, err := r.p.sources()
	var pcm <-chan []byte
	if err == nil {
		pcm, err = src.Start(r.ctx)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to open audio source")
		r.emitError(stt.ErrorAudioCapture)
		return
	}

	log.Debug().
		Str("language", r.opts.Language).
		Bool("continuous", r.opts.Continuous).
		Msg("Google recognition stream started")

	go r.pump(stream, pcm)

	r.mu.Lock()
	r.source = src
	stopped := r.stopped || r.aborted
	r.mu.Unlock()
	if stopped {
		r.stopSource()
	}

	r.receive(stream)
}

// pump forwards audio until the source closes, then half-closes the stream.
// It is the only goroutine that sends.
func (r *recognizer) pump(stream speechpb.Speech_StreamingRecognizeClient, pcm <-chan []byte) {
	for chunk := range pcm {
		err := stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: chunk,
			},
		})
		if err != nil {
			// Recv reports the stream error.
			log.Debug().Err(err).Msg("Audio send failed")
			for range pcm {
			}
			return
		}
	}
	if err := stream.CloseSend(); err != nil {
		log.Debug().Err(err).Msg("CloseSend failed")
	}
}

// receive reads responses until the stream ends.
func (r *recognizer) receive(stream speechpb.Speech_StreamingRecognizeClient) {
	var finals []stt.Result
	heard := false

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			if !heard && !r.isStopped() {
				r.emitError(stt.ErrorNoSpeech)
			}
			return
		}
		if err != nil {
			if r.isAborted() {
				return
			}
			r.p.metrics.RecordCloudStreamError(status.Code(err).String())
			log.Warn().Err(err).Msg("Recognition stream failed")
			r.emitError(classifyStatus(err))
			return
		}

		if st := resp.GetError(); st != nil && st.GetCode() != 0 {
			err := status.Error(codes.Code(st.GetCode()), st.GetMessage())
			r.p.metrics.RecordCloudStreamError(codes.Code(st.GetCode()).String())
			r.emitError(classifyStatus(err))
			return
		}

		switch resp.SpeechEventType {
		case speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE:
			// The service stops listening; finals still follow.
			r.stopSource()
		case speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_TIMEOUT:
			if !heard {
				r.emitError(stt.ErrorNoSpeech)
				return
			}
		}

		if len(resp.Results) == 0 {
			continue
		}
		var batch stt.ResultBatch
		batch, finals = buildBatch(finals, resp.Results)
		if batch.ResultIndex >= len(batch.Results) {
			continue
		}
		heard = true
		if r.isAborted() {
			continue
		}
		r.events.OnResult(batch)
	}
}
