package textgen

import (
	"sync"
	"time"
)

// Health tracks whether the intelligent backend may be called. It starts
// available and is marked unavailable when a quota error is observed, at
// which point every stage uses its deterministic fallback until Reset is
// called. Guarded by a mutex because the HTTP server handles requests
// concurrently.
type Health struct {
	mu         sync.Mutex
	available  bool
	disabledAt time.Time
}

// NewHealth creates a Health in the available state
func NewHealth() *Health {
	return &Health{available: true}
}

// Available reports whether the backend may be called
func (h *Health) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.available
}

// MarkUnavailable disables the backend, recording when it happened
func (h *Health) MarkUnavailable(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.available {
		h.available = false
		h.disabledAt = now
	}
}

// Reset re-enables the backend, e.g. after a cool-down or new credential
func (h *Health) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.available = true
	h.disabledAt = time.Time{}
}

// DisabledAt returns when the backend was disabled, if it is disabled
func (h *Health) DisabledAt() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.available {
		return time.Time{}, false
	}
	return h.disabledAt, true
}
