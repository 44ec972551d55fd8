// Package notify shows dismissible desktop notices.
package notify

import (
	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog/log"
)

const appName = "Speako"

// maxMessage caps notice bodies; desktop notifiers truncate long text badly.
const maxMessage = 100

// Notifier sends desktop notifications.
type Notifier struct {
	enabled bool
	send    func(title, message, icon string) error
}

// New creates a Notifier.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled, send: beeep.Notify}
}

// SetEnabled turns notices on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled = enabled
}

// Enabled reports whether notices are shown.
func (n *Notifier) Enabled() bool {
	return n.enabled
}

// NoSpeech tells the user nothing was heard.
func (n *Notifier) NoSpeech() {
	n.notify("No speech detected", "Speak closer to the microphone and try again.")
}

// Error shows a recognition or synthesis error.
func (n *Notifier) Error(msg string) {
	n.notify("Error", msg)
}

// Info shows an informational notice.
func (n *Notifier) Info(msg string) {
	n.notify("", msg)
}

func (n *Notifier) notify(title, message string) {
	if !n.enabled {
		return
	}
	if len(message) > maxMessage {
		message = message[:maxMessage] + "..."
	}
	t := appName
	if title != "" {
		t = appName + ": " + title
	}
	// Notice failures are not critical.
	if err := n.send(t, message, ""); err != nil {
		log.Debug().Err(err).Msg("Desktop notification failed")
	}
}
