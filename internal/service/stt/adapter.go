// Package stt defines the boundary to platform speech-recognition services.
//
// A platform recognizer is a stateful, single-shot primitive: it is created
// with a fixed set of options, started once, streams result batches, and ends.
// Continuous transcription is built on top of it by the recognition package.
package stt

// Error codes reported by platform recognizers through Events.OnError.
const (
	ErrorNotAllowed           = "not-allowed"
	ErrorNoSpeech             = "no-speech"
	ErrorAborted              = "aborted"
	ErrorAudioCapture         = "audio-capture"
	ErrorNetwork              = "network"
	ErrorServiceNotAllowed    = "service-not-allowed"
	ErrorLanguageNotSupported = "language-not-supported"
	ErrorBadGrammar           = "bad-grammar"
)

// Options configures one recognizer instance. They cannot change once the
// instance exists.
type Options struct {
	Language        string
	Continuous      bool
	InterimResults  bool
	MaxAlternatives int
}

// Result is one recognized segment with its best alternative.
type Result struct {
	Transcript string
	Confidence float64
	IsFinal    bool
}

// ResultBatch is one result event. Results holds every result the instance
// has produced so far; entries before ResultIndex are final and were already
// delivered in earlier batches.
type ResultBatch struct {
	ResultIndex int
	Results     []Result
}

// Events receives notifications from one recognizer instance.
// Implementations of Recognizer may call these from any goroutine.
type Events interface {
	// OnResult is called for each result batch.
	OnResult(batch ResultBatch)

	// OnError is called with a platform error code. The instance is dead afterwards.
	OnError(code string)

	// OnEnd is called when the instance stops, whatever the cause.
	OnEnd()
}

// Recognizer is one underlying recognition instance.
type Recognizer interface {
	// Start begins listening. It is called at most once per instance.
	Start() error

	// Stop asks the instance to finish gracefully, flushing any pending final result.
	Stop()

	// Abort terminates the instance immediately and discards pending results.
	Abort()
}

// Platform creates recognizer instances.
type Platform interface {
	// Name identifies the platform in logs and metrics.
	Name() string

	// NewRecognizer creates an instance bound to opts that reports to events.
	NewRecognizer(opts Options, events Events) (Recognizer, error)
}

// Error carries a platform error code out of Recognizer.Start.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
