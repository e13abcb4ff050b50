// Package safety coordinates fail-safe shutdown of the engraver daemon.
// Whatever triggers the shutdown (a signal, a transport failure, the
// input stream closing), the registered callbacks run exactly once and
// in registration order, so the laser is cut before the transport is
// torn down.
package safety

import (
	"errors"
	"sync"
	"time"
)

// Reason describes why the daemon was shut down.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonUserRequest    Reason = "user_request"
	ReasonEmergencyStop  Reason = "emergency_stop"
	ReasonTransportError Reason = "transport_error"
	ReasonInputClosed    Reason = "input_closed"
)

// ErrShutdown is returned by operations attempted after shutdown.
var ErrShutdown = errors.New("safety: controller is shut down")

// Manager tracks shutdown state and runs shutdown callbacks.
type Manager struct {
	mu        sync.Mutex
	down      bool
	reason    Reason
	message   string
	when      time.Time
	callbacks []func(reason Reason, msg string)
	done      chan struct{}
}

// New creates a Manager in the running state.
func New() *Manager {
	return &Manager{done: make(chan struct{})}
}

// OnShutdown registers a callback to run when shutdown is triggered.
// Callbacks registered after shutdown run immediately.
func (m *Manager) OnShutdown(fn func(reason Reason, msg string)) {
	m.mu.Lock()
	if m.down {
		reason, msg := m.reason, m.message
		m.mu.Unlock()
		fn(reason, msg)
		return
	}
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// Shutdown triggers the shutdown sequence. Only the first call has any
// effect; later calls with different reasons are ignored.
func (m *Manager) Shutdown(reason Reason, msg string) {
	m.mu.Lock()
	if m.down {
		m.mu.Unlock()
		return
	}
	m.down = true
	m.reason = reason
	m.message = msg
	m.when = time.Now()
	callbacks := m.callbacks
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(reason, msg)
	}
	close(m.done)
}

// IsShutdown reports whether shutdown has been triggered.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.down
}

// Info returns the shutdown reason, message and time. The zero values
// are returned while the manager is still running.
func (m *Manager) Info() (Reason, string, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason, m.message, m.when
}

// Done returns a channel closed after all shutdown callbacks have run.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}
