package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"speako/internal/config"
	"speako/internal/service/listener"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"", command{kind: cmdToggle}},
		{"   ", command{kind: cmdToggle}},
		{"lang", command{kind: cmdListLanguages}},
		{"lang es-AR", command{kind: cmdLanguage, arg: "es-AR"}},
		{"LANG  fr-FR ", command{kind: cmdLanguage, arg: "fr-FR"}},
		{"cont on", command{kind: cmdContinuous, on: true}},
		{"continuous off", command{kind: cmdContinuous, on: false}},
		{"cont maybe", command{kind: cmdUnknown, arg: "cont maybe"}},
		{"clear", command{kind: cmdClear}},
		{"say hola mundo", command{kind: cmdSay, arg: "hola mundo"}},
		{"say", command{kind: cmdUnknown, arg: "say"}},
		{"hush", command{kind: cmdStopSpeaking}},
		{"status", command{kind: cmdStatus}},
		{"?", command{kind: cmdHelp}},
		{"q", command{kind: cmdQuit}},
		{"exit", command{kind: cmdQuit}},
		{"dance", command{kind: cmdUnknown, arg: "dance"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := parseCommand(tt.line); got != tt.want {
				t.Errorf("parseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseFlags_Overrides(t *testing.T) {
	o, err := parseFlags([]string{"-lang", "pt-BR", "-continuous=false", "-rate", "1.5", "-voice", "es-mx"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := config.Default()
	o.apply(cfg)

	if cfg.Recognition.Language != "pt-BR" {
		t.Errorf("expected pt-BR, got %s", cfg.Recognition.Language)
	}
	if cfg.Recognition.Continuous {
		t.Error("expected continuous off")
	}
	if cfg.Synthesis.Rate != 1.5 || cfg.Synthesis.Voice != "es-mx" {
		t.Errorf("unexpected synthesis config %+v", cfg.Synthesis)
	}
	if cfg.Synthesis.Pitch != 1 {
		t.Errorf("unset pitch flag must keep config value, got %v", cfg.Synthesis.Pitch)
	}
}

func TestParseFlags_UnsetKeepsConfig(t *testing.T) {
	o, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := config.Default()
	cfg.Recognition.Continuous = false
	o.apply(cfg)

	if cfg.Recognition.Continuous {
		t.Error("default continuous flag must not override config")
	}
}

func TestParseFlags_Invalid(t *testing.T) {
	if _, err := parseFlags([]string{"-rate", "fast"}); err == nil {
		t.Error("expected error")
	}
}

func TestConsole_Render(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf)

	c.Render(listener.Snapshot{Language: "es-MX", Continuous: true, Listening: true})
	c.Render(listener.Snapshot{Language: "es-MX", Continuous: true, Listening: true, Interim: "hola"})
	c.Render(listener.Snapshot{Language: "es-MX", Continuous: true, Listening: true, Transcript: "hola mundo"})
	c.Render(listener.Snapshot{Language: "es-MX", Continuous: true, Listening: true, Transcript: "hola mundo otra vez"})
	c.Render(listener.Snapshot{Language: "es-MX", Continuous: true, Transcript: "hola mundo otra vez", LastError: "microphone permission denied"})

	out := buf.String()
	for _, want := range []string{
		"* listening (es-MX, continuous)\n",
		"... hola",
		clearLine + "hola mundo\n",
		"otra vez\n",
		"! microphone permission denied\n",
		"* stopped\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%q", want, out)
		}
	}
	if strings.Count(out, "hola mundo") != 1 {
		t.Errorf("transcript printed more than once:\n%q", out)
	}
}

func TestConsole_RenderAfterClear(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf)

	c.Render(listener.Snapshot{Transcript: "uno"})
	c.Render(listener.Snapshot{})
	c.Render(listener.Snapshot{Transcript: "dos"})

	if out := buf.String(); out != "uno\ndos\n" {
		t.Errorf("unexpected output %q", out)
	}
}

// syncBuffer guards a bytes.Buffer written from the speaking goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsole_SpeakingIndicator(t *testing.T) {
	var buf syncBuffer
	c := newConsole(&buf)

	first := make(chan struct{})
	second := make(chan struct{})
	c.speaking(first)
	c.speaking(second)

	// The replaced utterance finishing must not clear the indicator.
	close(first)
	time.Sleep(50 * time.Millisecond)
	if strings.Contains(buf.String(), "* done speaking") {
		t.Fatalf("replaced utterance cleared the indicator:\n%q", buf.String())
	}

	close(second)
	deadline := time.Now().Add(time.Second)
	for !strings.Contains(buf.String(), "* done speaking") {
		if time.Now().After(deadline) {
			t.Fatalf("expected done speaking, got %q", buf.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := strings.Count(buf.String(), "* speaking\n"); got != 2 {
		t.Errorf("expected 2 speaking lines, got %d in %q", got, buf.String())
	}
}

func TestConsole_StatusShowsSpeaking(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf)

	c.status(listener.Snapshot{Language: "es-MX", Listening: true, Supported: true}, true)

	if out := buf.String(); !strings.Contains(out, "listening=true speaking=true") {
		t.Errorf("unexpected status %q", out)
	}
}
