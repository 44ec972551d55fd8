// Package transcript accumulates finalized recognition text for display.
package transcript

import (
	"strings"
	"sync"
)

// Normalize trims surrounding whitespace and one trailing period so that
// chunks from consecutive attempts do not run punctuation together.
func Normalize(chunk string) string {
	s := strings.TrimSpace(chunk)
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}

// Accumulator holds the finalized chunks of a listening session and the
// current interim hypothesis. Interim text is never appended to the chunks.
//
// Writers are expected on the session thread; readers may be anywhere.
type Accumulator struct {
	mu      sync.RWMutex
	chunks  []string
	interim string
}

// New creates an empty accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// AppendFinal normalizes chunk, appends it, and discards the interim text.
// It returns the normalized chunk, or "" if nothing was appended.
func (a *Accumulator) AppendFinal(chunk string) string {
	n := Normalize(chunk)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.interim = ""
	if n == "" {
		return ""
	}
	a.chunks = append(a.chunks, n)
	return n
}

// SetInterim replaces the interim text.
func (a *Accumulator) SetInterim(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interim = strings.TrimSpace(text)
}

// ClearInterim discards the interim text without promoting it.
func (a *Accumulator) ClearInterim() {
	a.SetInterim("")
}

// Interim returns the interim text.
func (a *Accumulator) Interim() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.interim
}

// Text returns the finalized chunks joined by single spaces.
func (a *Accumulator) Text() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return strings.Join(a.chunks, " ")
}

// Display returns the finalized text followed by the interim text.
func (a *Accumulator) Display() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	text := strings.Join(a.chunks, " ")
	switch {
	case a.interim == "":
		return text
	case text == "":
		return a.interim
	default:
		return text + " " + a.interim
	}
}

// Chunks returns a copy of the finalized chunks.
func (a *Accumulator) Chunks() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.chunks))
	copy(out, a.chunks)
	return out
}

// Reset discards everything.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = nil
	a.interim = ""
}
