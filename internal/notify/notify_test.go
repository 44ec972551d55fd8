package notify

import (
	"errors"
	"strings"
	"testing"
)

type sent struct {
	title, message string
}

func newRecording(enabled bool) (*Notifier, *[]sent) {
	var got []sent
	n := New(enabled)
	n.send = func(title, message, icon string) error {
		got = append(got, sent{title, message})
		return nil
	}
	return n, &got
}

func TestNotifier_Disabled(t *testing.T) {
	n, got := newRecording(false)
	n.NoSpeech()
	n.Error("boom")

	if len(*got) != 0 {
		t.Errorf("expected no notices when disabled, got %v", *got)
	}
}

func TestNotifier_Titles(t *testing.T) {
	n, got := newRecording(true)
	n.NoSpeech()
	n.Error("microphone permission denied")
	n.Info("listening")

	want := []string{"Speako: No speech detected", "Speako: Error", "Speako"}
	if len(*got) != len(want) {
		t.Fatalf("expected %d notices, got %d", len(want), len(*got))
	}
	for i, w := range want {
		if (*got)[i].title != w {
			t.Errorf("notice %d: expected title %q, got %q", i, w, (*got)[i].title)
		}
	}
	if (*got)[1].message != "microphone permission denied" {
		t.Errorf("unexpected message %q", (*got)[1].message)
	}
}

func TestNotifier_TruncatesLongMessages(t *testing.T) {
	n, got := newRecording(true)
	n.Info(strings.Repeat("a", 150))

	msg := (*got)[0].message
	if len(msg) != maxMessage+3 || !strings.HasSuffix(msg, "...") {
		t.Errorf("expected truncated message, got %d chars", len(msg))
	}
}

func TestNotifier_SendErrorIgnored(t *testing.T) {
	n := New(true)
	n.send = func(string, string, string) error { return errors.New("no dbus") }
	n.Error("x")
}

func TestNotifier_SetEnabled(t *testing.T) {
	n, got := newRecording(false)
	n.SetEnabled(true)
	if !n.Enabled() {
		t.Fatal("expected enabled")
	}
	n.Info("hi")
	if len(*got) != 1 {
		t.Errorf("expected 1 notice, got %d", len(*got))
	}
}
