package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"speako/internal/app"
	"speako/internal/config"
	"speako/internal/service/recognition"
	"speako/internal/service/synthesis"
)

var version = "dev"

type options struct {
	configPath string
	listen     bool
	speak      string
	voices     bool
	voice      string
	rate       float64
	pitch      float64
	volume     float64
	lang       string
	continuous bool
	version    bool
	set        map[string]bool
}

func parseFlags(args []string) (*options, error) {
	o := &options{set: map[string]bool{}}
	fs := flag.NewFlagSet("speako", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "config file (default ~/.speako.yaml)")
	fs.BoolVar(&o.listen, "listen", false, "interactive transcription (default mode)")
	fs.StringVar(&o.speak, "speak", "", "speak text and exit")
	fs.BoolVar(&o.voices, "voices", false, "list synthesis voices and exit")
	fs.StringVar(&o.voice, "voice", "", "synthesis voice ID or name")
	fs.Float64Var(&o.rate, "rate", 0, "speech rate 0.1-10")
	fs.Float64Var(&o.pitch, "pitch", 0, "speech pitch 0-2")
	fs.Float64Var(&o.volume, "volume", 0, "speech volume 0-1")
	fs.StringVar(&o.lang, "lang", "", "recognition language tag, e.g. es-MX")
	fs.BoolVar(&o.continuous, "continuous", true, "keep listening across utterances")
	fs.BoolVar(&o.version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply overlays explicitly set flags on cfg.
func (o *options) apply(cfg *config.Configuration) {
	if o.lang != "" {
		cfg.Recognition.Language = o.lang
	}
	if o.set["continuous"] {
		cfg.Recognition.Continuous = o.continuous
	}
	if o.voice != "" {
		cfg.Synthesis.Voice = o.voice
	}
	if o.set["rate"] {
		cfg.Synthesis.Rate = o.rate
	}
	if o.set["pitch"] {
		cfg.Synthesis.Pitch = o.pitch
	}
	if o.set["volume"] {
		cfg.Synthesis.Volume = o.volume
	}
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if o.version {
		fmt.Println("speako", version)
		return
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	con := newConsole(os.Stdout)
	application, err := app.New(cfg, con)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create application")
		os.Exit(1)
	}

	switch {
	case o.voices:
		err = listVoices(ctx, application, os.Stdout)
	case o.speak != "":
		err = speak(ctx, application, o.speak)
	default:
		err = listen(ctx, application, con, os.Stdin)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	application.Shutdown(shutdownCtx)

	if err != nil {
		log.Error().Err(err).Msg("Speako failed")
		os.Exit(1)
	}
}

func speakOptions(cfg *config.Configuration) synthesis.SpeakOptions {
	return synthesis.SpeakOptions{
		Voice:  cfg.Synthesis.Voice,
		Rate:   cfg.Synthesis.Rate,
		Pitch:  &cfg.Synthesis.Pitch,
		Volume: &cfg.Synthesis.Volume,
	}
}

func listVoices(ctx context.Context, a *app.Application, out io.Writer) error {
	voices, err := a.Synthesizer().Voices(ctx)
	if err != nil {
		return err
	}
	for _, v := range voices {
		mark := " "
		if v.Default {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %-12s %-10s %s\n", mark, v.ID, v.Language, v.Name)
	}
	return nil
}

// speak plays text and waits for it to finish or for ctx to end.
func speak(ctx context.Context, a *app.Application, text string) error {
	done, err := a.Synthesizer().Speak(ctx, text, speakOptions(a.Cfg))
	if err != nil || done == nil {
		return err
	}
	select {
	case <-done:
	case <-ctx.Done():
		a.Synthesizer().Stop()
	}
	return nil
}

// listen runs the interactive console until quit, EOF or ctx ends.
func listen(ctx context.Context, a *app.Application, con *console, in io.Reader) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	h := a.Listener()
	if !h.IsSupported() {
		con.println("!", &recognition.Error{Category: recognition.CategoryUnsupported})
	}
	con.println(helpText)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handle(ctx, a, con, parseCommand(line)); quit {
				return nil
			}
		}
	}
}

// handle runs one console command. It reports whether to quit.
func handle(ctx context.Context, a *app.Application, con *console, c command) bool {
	h := a.Listener()
	switch c.kind {
	case cmdToggle:
		a.Post(func() {
			if err := h.Toggle(); err != nil {
				con.println("!", err)
			}
		})
	case cmdLanguage:
		a.Post(func() {
			if err := h.SetLanguage(c.arg); err != nil {
				con.println("!", err)
			}
		})
	case cmdListLanguages:
		current := h.Snapshot().Language
		for _, l := range recognition.Languages {
			mark := " "
			if l.Code == current {
				mark = "*"
			}
			con.println(fmt.Sprintf("%s %-6s %s", mark, l.Code, l.Label))
		}
	case cmdContinuous:
		on := c.on
		a.Post(func() { h.SetContinuous(on) })
	case cmdClear:
		a.Post(h.Clear)
	case cmdSay:
		done, err := a.Synthesizer().Speak(ctx, c.arg, speakOptions(a.Cfg))
		if err != nil {
			con.println("!", err)
		} else if done != nil {
			con.speaking(done)
		}
	case cmdStopSpeaking:
		a.Synthesizer().Stop()
	case cmdStatus:
		con.status(h.Snapshot(), a.Synthesizer().IsSpeaking())
	case cmdHelp:
		con.println(helpText)
	case cmdQuit:
		return true
	default:
		con.println("! unknown command:", c.arg)
	}
	return false
}
