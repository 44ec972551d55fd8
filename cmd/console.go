package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"speako/internal/service/listener"
)

const clearLine = "\r\033[K"

// console renders the listening session to a terminal. The finalized
// transcript is printed line by line; interim text sits on an overwritten
// status line.
type console struct {
	mu        sync.Mutex
	out       io.Writer
	printed   string
	listening bool
	idle      bool
	lastError string
	interim   bool
	speakGen  int
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

// Render implements listener.Renderer.
func (c *console) Render(s listener.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interim {
		fmt.Fprint(c.out, clearLine)
		c.interim = false
	}

	if !strings.HasPrefix(s.Transcript, c.printed) {
		// Cleared.
		c.printed = ""
	}
	if added := strings.TrimSpace(s.Transcript[len(c.printed):]); added != "" {
		fmt.Fprintln(c.out, added)
	}
	c.printed = s.Transcript

	if s.LastError != "" && s.LastError != c.lastError {
		fmt.Fprintf(c.out, "! %s\n", s.LastError)
	}
	c.lastError = s.LastError

	if s.Listening != c.listening {
		if s.Listening {
			mode := "single"
			if s.Continuous {
				mode = "continuous"
			}
			fmt.Fprintf(c.out, "* listening (%s, %s)\n", s.Language, mode)
		} else {
			fmt.Fprintln(c.out, "* stopped")
		}
		c.listening = s.Listening
	}

	if s.Idle && !c.idle {
		fmt.Fprintln(c.out, "* idle")
	}
	c.idle = s.Idle

	if s.Interim != "" {
		fmt.Fprintf(c.out, "... %s", s.Interim)
		c.interim = true
	}
}

// status prints a one-line session summary.
func (c *console) status(s listener.Snapshot, speaking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interim {
		fmt.Fprint(c.out, clearLine)
		c.interim = false
	}
	fmt.Fprintf(c.out, "session=%s language=%s continuous=%t listening=%t speaking=%t restarts=%d supported=%t\n",
		s.SessionID, s.Language, s.Continuous, s.Listening, speaking, s.Restarts, s.Supported)
}

// speaking shows the speaking indicator until done closes. Only the newest
// utterance clears it.
func (c *console) speaking(done <-chan struct{}) {
	c.mu.Lock()
	c.speakGen++
	gen := c.speakGen
	c.mu.Unlock()

	c.println("* speaking")
	go func() {
		<-done
		c.mu.Lock()
		current := gen == c.speakGen
		c.mu.Unlock()
		if current {
			c.println("* done speaking")
		}
	}()
}

// println prints a message line outside the interim line.
func (c *console) println(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interim {
		fmt.Fprint(c.out, clearLine)
		c.interim = false
	}
	fmt.Fprintln(c.out, a...)
}
