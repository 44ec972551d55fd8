package listener

import "time"

// touch records activity: it clears the idle flag and re-arms the timer.
func (h *Handler) touch() {
	h.mu.Lock()
	h.idle = false
	h.mu.Unlock()

	if h.idleTimeout <= 0 {
		return
	}
	h.stopIdle()

	gen := h.idleGen
	h.idleTimer = time.AfterFunc(h.idleTimeout, func() {
		h.exec.Post(func() {
			// A later touch or stop invalidates this firing.
			if gen != h.idleGen {
				return
			}
			h.fireIdle()
		})
	})
}

// stopIdle cancels a pending idle firing.
func (h *Handler) stopIdle() {
	h.idleGen++
	if h.idleTimer != nil {
		h.idleTimer.Stop()
		h.idleTimer = nil
	}
}

func (h *Handler) fireIdle() {
	h.idleTimer = nil
	h.mu.Lock()
	h.idle = true
	h.mu.Unlock()

	h.logger.Debug().Dur("timeout", h.idleTimeout).Msg("Session idle")
	if h.onIdle != nil {
		h.onIdle()
	}
	h.render()
}
