package recognition

import (
	"testing"

	"speako/internal/service/stt"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		message   string
		fatal     bool
		retryable bool
	}{
		{stt.ErrorNotAllowed, CategoryPermissionDenied, "microphone permission denied", true, false},
		{stt.ErrorNoSpeech, CategoryNoSpeech, "no speech detected", false, true},
		{stt.ErrorNetwork, CategoryGeneric, "recognition error: network", false, true},
		{stt.ErrorAudioCapture, CategoryGeneric, "recognition error: audio-capture", false, true},
		{stt.ErrorServiceNotAllowed, CategoryGeneric, "recognition error: service-not-allowed", false, true},
		{"something-new", CategoryGeneric, "recognition error: something-new", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := Classify(tt.code)
			if err.Category != tt.category {
				t.Errorf("category = %v, want %v", err.Category, tt.category)
			}
			if err.Error() != tt.message {
				t.Errorf("message = %q, want %q", err.Error(), tt.message)
			}
			if err.Fatal() != tt.fatal {
				t.Errorf("Fatal() = %v, want %v", err.Fatal(), tt.fatal)
			}
			if err.Retryable() != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", err.Retryable(), tt.retryable)
			}
			if err.Code != tt.code {
				t.Errorf("code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestUnsupportedError(t *testing.T) {
	if errUnsupported.Error() != "speech recognition is not available on this platform" {
		t.Errorf("unexpected message: %s", errUnsupported.Error())
	}
	if !errUnsupported.Fatal() {
		t.Error("expected Unsupported to be fatal")
	}
	if errUnsupported.Retryable() {
		t.Error("expected Unsupported to not be retryable")
	}
	if errUnsupported.Category.String() != "unsupported" {
		t.Errorf("unexpected label: %s", errUnsupported.Category)
	}
}
