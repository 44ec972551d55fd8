package exec

import (
	"context"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"speako/internal/service/synthesis"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !strings.HasPrefix(cfg.Command, "espeak-ng") {
		t.Errorf("expected espeak-ng command, got %q", cfg.Command)
	}
	if cfg.DefaultVoice != "en" {
		t.Errorf("expected default voice 'en', got %q", cfg.DefaultVoice)
	}
}

func TestNew_InvalidCommand(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{}},
		{"unterminated quote", Config{Command: `espeak-ng "hola`}},
		{"bad voices command", Config{Command: "espeak-ng", VoicesCommand: `espeak-ng 'x`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestArgs(t *testing.T) {
	p, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		u    synthesis.Utterance
		want []string
	}{
		{
			"defaults",
			synthesis.Utterance{Rate: 1, Pitch: 1, Volume: 1},
			[]string{"espeak-ng", "-v", "en", "-s", "175", "-p", "50", "-a", "100", "--stdin"},
		},
		{
			"voice and fast",
			synthesis.Utterance{Voice: &synthesis.Voice{ID: "es-419"}, Rate: 2, Pitch: 2, Volume: 0.5},
			[]string{"espeak-ng", "-v", "es-419", "-s", "350", "-p", "99", "-a", "50", "--stdin"},
		},
		{
			"extremes",
			synthesis.Utterance{Rate: 10, Pitch: 0, Volume: 0},
			[]string{"espeak-ng", "-v", "en", "-s", "450", "-p", "0", "-a", "0", "--stdin"},
		},
		{
			"slowest",
			synthesis.Utterance{Rate: 0.1, Pitch: 1, Volume: 1},
			[]string{"espeak-ng", "-v", "en", "-s", "80", "-p", "50", "-a", "100", "--stdin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Args(tt.u); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArgs_QuotedPlaceholder(t *testing.T) {
	p, err := New(Config{Command: `say "--voice={voice}" -r {rate}`, DefaultVoice: "Paulina"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := p.Args(synthesis.Utterance{Rate: 1})
	want := []string{"say", "--voice=Paulina", "-r", "175"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
}

func TestParseVoices(t *testing.T) {
	f, err := os.Open("testdata/voices.txt")
	if err != nil {
		t.Fatalf("open testdata: %v", err)
	}
	defer f.Close()

	voices, err := ParseVoices(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(voices) != 5 {
		t.Fatalf("expected 5 voices, got %d", len(voices))
	}
	if voices[1].ID != "en-gb" || voices[1].Name != "English (Great Britain)" {
		t.Errorf("unexpected voice %+v", voices[1])
	}
	if voices[4].Language != "es-419" {
		t.Errorf("unexpected language %q", voices[4].Language)
	}
}

func TestParseVoices_SkipsJunk(t *testing.T) {
	voices, err := ParseVoices(strings.NewReader("Pty Language\n\nshort line\n 5 fr --/M French gmw/fr\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "fr" {
		t.Errorf("unexpected voices %+v", voices)
	}
}

func TestVoices_FromCommand(t *testing.T) {
	p, err := New(Config{Command: "cat", VoicesCommand: "cat testdata/voices.txt", DefaultVoice: "es"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	voices, err := p.Voices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var def []string
	for _, v := range voices {
		if v.Default {
			def = append(def, v.ID)
		}
	}
	if !reflect.DeepEqual(def, []string{"es"}) {
		t.Errorf("expected es as default, got %v", def)
	}
}

func TestVoices_NoCommand(t *testing.T) {
	p, _ := New(Config{Command: "cat", DefaultVoice: "es"})

	voices, err := p.Voices(context.Background())
	if err != nil || len(voices) != 1 || voices[0].ID != "es" || !voices[0].Default {
		t.Errorf("unexpected voices %+v, %v", voices, err)
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("utterance never finished")
	}
}

func TestSpeak_RunsToCompletion(t *testing.T) {
	p, _ := New(Config{Command: "cat"})

	done := make(chan struct{})
	if err := p.Speak(synthesis.Utterance{Text: "hola"}, func() { close(done) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitDone(t, done)

	if p.Speaking() {
		t.Error("expected not speaking after exit")
	}
}

func TestSpeak_Cancel(t *testing.T) {
	p, _ := New(Config{Command: "sleep 30"})

	done := make(chan struct{})
	if err := p.Speak(synthesis.Utterance{Text: "hola"}, func() { close(done) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Speaking() {
		t.Error("expected speaking")
	}

	p.Cancel()
	waitDone(t, done)
	p.Cancel()

	if p.Speaking() {
		t.Error("expected not speaking after cancel")
	}
}

func TestSpeak_MissingBinary(t *testing.T) {
	p, _ := New(Config{Command: "speako-no-such-synthesizer"})

	if err := p.Speak(synthesis.Utterance{Text: "hola"}, func() {}); err == nil {
		t.Error("expected error for missing binary")
	}
}
