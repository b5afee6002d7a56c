// Package keepalive holds the PING/PONG subsystem's timing constants and
// the client's in-flight PING tracker, per spec.md §4.4. The pinger,
// watchdog, PONG responder and read timeout that use them live in
// internal/dispatch.
package keepalive

import (
	"sync"
	"time"
)

// PingInterval is how often the client emits a PING on the control stream.
const PingInterval = 1 * time.Second

// WatchdogScanInterval is how often the client's watchdog scans the
// in-flight map for stale entries.
const WatchdogScanInterval = 100 * time.Millisecond

// PongTimeout is the maximum age an in-flight PING may reach before the
// watchdog closes the connection.
const PongTimeout = 500 * time.Millisecond

// ServerReadTimeout bounds how long the server's control-stream read loop
// may block waiting for the next frame; silence beyond this closes the
// connection with a keep-alive-timeout close code.
const ServerReadTimeout = 15 * time.Second

// WorkerHelloTimeout bounds how long the server waits for a worker
// stream's first frame (opcode WorkerHello) before dropping the stream.
const WorkerHelloTimeout = 2 * time.Second

// InFlight tracks outstanding PINGs by message ID, mapped to the time
// they were sent.
type InFlight struct {
	mu  sync.Mutex
	ids map[uint8]time.Time
}

// NewInFlight returns an empty in-flight tracker.
func NewInFlight() *InFlight {
	return &InFlight{ids: make(map[uint8]time.Time)}
}

// Add records a newly-sent PING's message ID.
func (f *InFlight) Add(id uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids[id] = time.Now()
}

// Remove clears an ID on PONG receipt, reporting whether it was present.
func (f *InFlight) Remove(id uint8) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[id]; !ok {
		return false
	}
	delete(f.ids, id)
	return true
}

// OldestAge returns the age of the oldest in-flight entry, or false if the
// map is empty.
func (f *InFlight) OldestAge(now time.Time) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var oldest time.Time
	found := false
	for _, sentAt := range f.ids {
		if !found || sentAt.Before(oldest) {
			oldest = sentAt
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return now.Sub(oldest), true
}

// Clear empties the map, used when the watchdog trips and the connection
// is torn down.
func (f *InFlight) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = make(map[uint8]time.Time)
}

// Len reports the number of in-flight PINGs.
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}
