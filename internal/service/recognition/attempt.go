package recognition

import (
	"fmt"
	"sync/atomic"
	"time"

	"speako/internal/service/stt"
)

// Generator issues attempt IDs unique within the process.
type Generator struct {
	counter uint64
}

// NewGenerator creates an attempt ID generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Next returns the next attempt ID for a session.
func (g *Generator) Next(sessionId string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-attempt-%d", sessionId, n)
}

// attempt is one underlying recognizer instance and its bookkeeping.
// Fields are only touched on the session thread.
type attempt struct {
	id      string
	cfg     Config
	rec     stt.Recognizer
	started time.Time

	// reason is what OnEnd will report; Stop sets it to EndUserStopped.
	reason EndReason

	// settled is set once the attempt has left the RUNNING state.
	settled bool

	// ended is set once OnEnd was delivered or suppressed (abort).
	// Platform events for an ended attempt are stale.
	ended bool
}

// events adapts platform callbacks for one attempt onto the session executor.
type events struct {
	c *Controller
	a *attempt
}

func (e events) OnResult(batch stt.ResultBatch) {
	e.c.exec.Post(func() { e.c.handleResult(e.a, batch) })
}

func (e events) OnError(code string) {
	e.c.exec.Post(func() { e.c.handleError(e.a, code) })
}

func (e events) OnEnd() {
	e.c.exec.Post(func() { e.c.handleEnd(e.a) })
}
