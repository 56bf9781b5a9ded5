package daemon

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/platinummonkey/ocrserve/internal/result"
)

// ServerState represents what the daemon is currently doing
type ServerState string

const (
	// StateIdle indicates no request is in flight
	StateIdle ServerState = "idle"

	// StateBusy indicates at least one request is in flight
	StateBusy ServerState = "busy"

	// StateError indicates the last request failed outside the status taxonomy
	StateError ServerState = "error"
)

// Status represents the current daemon status
type Status struct {
	// State is the current server state (idle, busy, error)
	State ServerState `json:"state"`

	// InFlight is the number of requests being processed
	InFlight int `json:"in_flight"`

	// Requests is the number of requests that reached recognition
	Requests int64 `json:"requests"`

	// Images is the number of images submitted to the engine path
	Images int64 `json:"images"`

	// ByStatus counts responses per envelope status kind
	ByStatus map[string]int64 `json:"by_status"`

	// LastRequestTime is when the last request finished
	LastRequestTime *time.Time `json:"last_request_time,omitempty"`

	// LastDuration is how long the last request took
	LastDuration *time.Duration `json:"last_duration,omitempty"`

	// ErrorMessage contains the error from the last rejected request
	ErrorMessage string `json:"error_message,omitempty"`

	// UptimeSeconds is how long the daemon has been running
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// StatusTracker tracks the daemon's current status in a thread-safe manner
type StatusTracker struct {
	mu        sync.RWMutex
	startTime time.Time
	inFlight  int
	requests  int64
	images    int64
	byStatus  map[string]int64
	lastReq   *time.Time
	lastDur   *time.Duration
	errMsg    string
	failed    bool
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		startTime: time.Now(),
		byStatus:  make(map[string]int64),
	}
}

// GetStatus returns the current status
func (st *StatusTracker) GetStatus() Status {
	st.mu.RLock()
	defer st.mu.RUnlock()

	byStatus := make(map[string]int64, len(st.byStatus))
	for k, v := range st.byStatus {
		byStatus[k] = v
	}

	state := StateIdle
	switch {
	case st.inFlight > 0:
		state = StateBusy
	case st.failed:
		state = StateError
	}

	return Status{
		State:           state,
		InFlight:        st.inFlight,
		Requests:        st.requests,
		Images:          st.images,
		ByStatus:        byStatus,
		LastRequestTime: st.lastReq,
		LastDuration:    st.lastDur,
		ErrorMessage:    st.errMsg,
		UptimeSeconds:   int64(time.Since(st.startTime).Seconds()),
	}
}

// RequestStarted records a request entering recognition
func (st *StatusTracker) RequestStarted() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.inFlight++
	st.requests++
}

// RequestCompleted records a finished request and its envelope status
func (st *StatusTracker) RequestCompleted(env *result.Envelope, duration time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.finish(duration)
	st.failed = false
	st.errMsg = ""
	st.byStatus[env.Status.String()]++
	st.images += int64(countEntries(env))
}

// RequestFailed records a request that ended without an envelope
func (st *StatusTracker) RequestFailed(err error, duration time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.finish(duration)
	st.failed = true
	if err != nil {
		st.errMsg = err.Error()
	}
}

func (st *StatusTracker) finish(duration time.Duration) {
	if st.inFlight > 0 {
		st.inFlight--
	}
	now := time.Now()
	st.lastReq = &now
	st.lastDur = &duration
}

// handleStatus serves the current status as JSON
func (d *Daemon) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := d.statusTracker.GetStatus()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		d.logger.WithError(err).Error("Failed to encode status")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}
