// Package exec speaks through an external synthesizer command such as
// espeak-ng. The command line is parsed once; placeholders are filled per
// utterance and the text is written to the process's stdin.
package exec

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog/log"

	"speako/internal/service/synthesis"
)

// Placeholders recognised in the command line.
const (
	PlaceholderVoice  = "{voice}"
	PlaceholderRate   = "{rate}"
	PlaceholderPitch  = "{pitch}"
	PlaceholderVolume = "{volume}"
)

// Config describes the synthesizer commands.
type Config struct {
	// Command speaks stdin, e.g. "espeak-ng -v {voice} -s {rate} -p {pitch} -a {volume} --stdin".
	Command string
	// VoicesCommand prints the voice table in espeak-ng --voices layout.
	VoicesCommand string
	// DefaultVoice fills {voice} when no voice is selected.
	DefaultVoice string
}

// DefaultConfig returns an espeak-ng setup.
func DefaultConfig() Config {
	return Config{
		Command:       "espeak-ng -v {voice} -s {rate} -p {pitch} -a {volume} --stdin",
		VoicesCommand: "espeak-ng --voices",
		DefaultVoice:  "en",
	}
}

// Platform implements synthesis.Platform by running a command per utterance.
type Platform struct {
	cmd       []string
	voicesCmd []string
	voice     string

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// New parses the configured command lines.
func New(cfg Config) (*Platform, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse synthesis command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synthesis command empty")
	}

	var voicesArgs []string
	if cfg.VoicesCommand != "" {
		voicesArgs, err = shellwords.NewParser().Parse(cfg.VoicesCommand)
		if err != nil {
			return nil, fmt.Errorf("parse voices command: %w", err)
		}
	}

	voice := cfg.DefaultVoice
	if voice == "" {
		voice = "en"
	}
	return &Platform{cmd: args, voicesCmd: voicesArgs, voice: voice}, nil
}

// Name returns the program name.
func (p *Platform) Name() string {
	return p.cmd[0]
}

// Args returns the command line for u with placeholders filled.
func (p *Platform) Args(u synthesis.Utterance) []string {
	voice := p.voice
	if u.Voice != nil && u.Voice.ID != "" {
		voice = u.Voice.ID
	}
	r := strings.NewReplacer(
		PlaceholderVoice, voice,
		PlaceholderRate, strconv.Itoa(wordsPerMinute(u.Rate)),
		PlaceholderPitch, strconv.Itoa(pitch(u.Pitch)),
		PlaceholderVolume, strconv.Itoa(amplitude(u.Volume)),
	)
	out := make([]string, len(p.cmd))
	for i, a := range p.cmd {
		out[i] = r.Replace(a)
	}
	return out
}

// wordsPerMinute maps rate 1 to espeak's default 175 wpm.
func wordsPerMinute(rate float64) int {
	if rate <= 0 {
		rate = 1
	}
	wpm := int(175 * rate)
	if wpm < 80 {
		wpm = 80
	}
	if wpm > 450 {
		wpm = 450
	}
	return wpm
}

// pitch maps 0..2 onto espeak's 0..99 with 1 at the default 50.
func pitch(p float64) int {
	v := int(p * 50)
	if v < 0 {
		return 0
	}
	if v > 99 {
		return 99
	}
	return v
}

// amplitude maps 0..1 onto espeak's 0..200 with 1 at the default 100.
func amplitude(vol float64) int {
	v := int(vol * 100)
	if v < 0 {
		return 0
	}
	if v > 200 {
		return 200
	}
	return v
}

// Speak starts the command. done runs when the process exits, whether it
// finished or was cancelled.
func (p *Platform) Speak(u synthesis.Utterance, done func()) error {
	args := p.Args(u)
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(u.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", args[0], err)
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	prev := p.cancel
	p.cancel = cancel
	p.mu.Unlock()
	if prev != nil {
		prev()
	}

	go func() {
		err := cmd.Wait()
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("stderr", strings.TrimSpace(stderr.String())).Msg("Synthesizer exited with error")
		}
		cancel()
		p.mu.Lock()
		if p.gen == gen {
			p.cancel = nil
		}
		p.mu.Unlock()
		done()
	}()
	return nil
}

// Cancel kills the running synthesizer process, if any.
func (p *Platform) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Speaking reports whether a synthesizer process is running.
func (p *Platform) Speaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Voices runs the voices command and parses its table.
func (p *Platform) Voices(ctx context.Context) ([]synthesis.Voice, error) {
	if len(p.voicesCmd) == 0 {
		return []synthesis.Voice{{ID: p.voice, Name: p.voice, Default: true}}, nil
	}
	out, err := exec.CommandContext(ctx, p.voicesCmd[0], p.voicesCmd[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	voices, err := ParseVoices(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}
	for i := range voices {
		if voices[i].ID == p.voice {
			voices[i].Default = true
		}
	}
	return voices, nil
}

// ParseVoices reads an espeak-ng --voices table:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US     (en 2)(en-r 5)
func ParseVoices(r io.Reader) ([]synthesis.Voice, error) {
	var voices []synthesis.Voice
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "Pty") {
			continue
		}
		f := strings.Fields(line)
		if len(f) < 4 {
			continue
		}
		voices = append(voices, synthesis.Voice{
			ID:       f[1],
			Name:     strings.ReplaceAll(f[3], "_", " "),
			Language: f[1],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read voices: %w", err)
	}
	return voices, nil
}
