package recognition

import (
	"fmt"

	"speako/internal/service/stt"
)

// Category is the user-facing error taxonomy.
type Category int

const (
	// CategoryUnsupported - no recognition platform on this host.
	CategoryUnsupported Category = iota + 1
	// CategoryPermissionDenied - microphone access was refused.
	CategoryPermissionDenied
	// CategoryNoSpeech - the instance heard nothing.
	CategoryNoSpeech
	// CategoryGeneric - any other platform error.
	CategoryGeneric
)

// String returns the metrics label for the category.
func (c Category) String() string {
	switch c {
	case CategoryUnsupported:
		return "unsupported"
	case CategoryPermissionDenied:
		return "permission_denied"
	case CategoryNoSpeech:
		return "no_speech"
	case CategoryGeneric:
		return "generic"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// Error is a classified recognition error.
type Error struct {
	Category Category
	// Code is the raw platform code, empty for CategoryUnsupported.
	Code string
}

// Error returns the user-facing message.
func (e *Error) Error() string {
	switch e.Category {
	case CategoryUnsupported:
		return "speech recognition is not available on this platform"
	case CategoryPermissionDenied:
		return "microphone permission denied"
	case CategoryNoSpeech:
		return "no speech detected"
	default:
		return "recognition error: " + e.Code
	}
}

// Fatal reports whether the session cannot continue without user action.
func (e *Error) Fatal() bool {
	return e.Category == CategoryUnsupported || e.Category == CategoryPermissionDenied
}

// Retryable reports whether restarting may succeed.
func (e *Error) Retryable() bool {
	return e.Category == CategoryNoSpeech || e.Category == CategoryGeneric
}

// Classify maps a platform error code to the taxonomy.
func Classify(code string) *Error {
	switch code {
	case stt.ErrorNotAllowed:
		return &Error{Category: CategoryPermissionDenied, Code: code}
	case stt.ErrorNoSpeech:
		return &Error{Category: CategoryNoSpeech, Code: code}
	default:
		return &Error{Category: CategoryGeneric, Code: code}
	}
}

var errUnsupported = &Error{Category: CategoryUnsupported}
