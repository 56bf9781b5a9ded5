package daemon

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/platinummonkey/ocrserve/internal/result"
)

func TestStatusTracker(t *testing.T) {
	st := NewStatusTracker()

	// Test initial state
	status := st.GetStatus()
	if status.State != StateIdle {
		t.Errorf("Expected initial state to be idle, got %s", status.State)
	}

	// Test request started
	st.RequestStarted()
	status = st.GetStatus()
	if status.State != StateBusy {
		t.Errorf("Expected state to be busy, got %s", status.State)
	}
	if status.InFlight != 1 {
		t.Errorf("Expected 1 in flight, got %d", status.InFlight)
	}

	// Test local batch completed
	env := result.NewEnvelope(result.TypeLocal, time.Now()).Finish(result.StatusOK, []result.Entry{
		result.NewEntry("/a.png", "universal", result.StatusOK, "a"),
		result.NewEntry("/b.png", "universal", result.StatusTimeout, nil),
	}, time.Now())
	st.RequestCompleted(env, 2*time.Second)

	status = st.GetStatus()
	if status.State != StateIdle {
		t.Errorf("Expected state to be idle after completion, got %s", status.State)
	}
	if status.InFlight != 0 {
		t.Errorf("Expected 0 in flight, got %d", status.InFlight)
	}
	if status.Requests != 1 {
		t.Errorf("Expected 1 request, got %d", status.Requests)
	}
	if status.Images != 2 {
		t.Errorf("Expected 2 images, got %d", status.Images)
	}
	if status.ByStatus["success"] != 1 {
		t.Errorf("Expected 1 success, got %v", status.ByStatus)
	}
	if status.LastDuration == nil || *status.LastDuration != 2*time.Second {
		t.Errorf("Expected last duration 2s, got %v", status.LastDuration)
	}
}

func TestStatusTracker_OnlineStatuses(t *testing.T) {
	st := NewStatusTracker()

	for _, s := range []result.Status{result.StatusTimeout, result.StatusTimeout, result.StatusUnsupportedMode} {
		st.RequestStarted()
		st.RequestCompleted(result.NewEnvelope(result.TypeOnline, time.Now()).Finish(s, nil, time.Now()), time.Millisecond)
	}

	status := st.GetStatus()
	if status.ByStatus["timeout"] != 2 {
		t.Errorf("Expected 2 timeouts, got %v", status.ByStatus)
	}
	if status.ByStatus["unsupported_mode"] != 1 {
		t.Errorf("Expected 1 unsupported mode, got %v", status.ByStatus)
	}
	// unsupported mode never reaches the engine
	if status.Images != 2 {
		t.Errorf("Expected 2 images, got %d", status.Images)
	}
}

func TestStatusTrackerError(t *testing.T) {
	st := NewStatusTracker()

	st.RequestStarted()
	st.RequestFailed(&testError{msg: "failed to decode image"}, 30*time.Millisecond)

	status := st.GetStatus()
	if status.State != StateError {
		t.Errorf("Expected state to be error, got %s", status.State)
	}
	if status.ErrorMessage != "failed to decode image" {
		t.Errorf("Expected error message, got %s", status.ErrorMessage)
	}
	if status.InFlight != 0 {
		t.Errorf("Expected 0 in flight, got %d", status.InFlight)
	}

	// a later success clears the error
	st.RequestStarted()
	st.RequestCompleted(result.NewEnvelope(result.TypeOnline, time.Now()).Finish(result.StatusOK, "x", time.Now()), time.Millisecond)
	status = st.GetStatus()
	if status.State != StateIdle || status.ErrorMessage != "" {
		t.Errorf("Expected error to clear, got %s %q", status.State, status.ErrorMessage)
	}
}

func TestStatusJSON(t *testing.T) {
	st := NewStatusTracker()
	st.RequestStarted()
	st.RequestCompleted(result.NewEnvelope(result.TypeOnline, time.Now()).Finish(result.StatusOK, "x", time.Now()), time.Second)

	status := st.GetStatus()

	data, err := json.Marshal(status)
	if err != nil {
		t.Fatalf("Failed to marshal status: %v", err)
	}

	var decoded Status
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal status: %v", err)
	}

	if decoded.State != status.State {
		t.Errorf("State mismatch after JSON round-trip")
	}
	if decoded.ByStatus["success"] != 1 {
		t.Errorf("ByStatus mismatch after JSON round-trip: %v", decoded.ByStatus)
	}
}

func TestStatusTrackerConcurrency(t *testing.T) {
	st := NewStatusTracker()

	done := make(chan bool)
	go func() {
		for i := 0; i < 100; i++ {
			st.RequestStarted()
			st.RequestCompleted(result.NewEnvelope(result.TypeOnline, time.Now()).Finish(result.StatusOK, "x", time.Now()), time.Millisecond)
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			_ = st.GetStatus()
		}
		done <- true
	}()

	<-done
	<-done

	status := st.GetStatus()
	if status.Requests != 100 {
		t.Errorf("Expected 100 requests, got %d", status.Requests)
	}
	if status.State != StateIdle {
		t.Errorf("Expected idle state, got %s", status.State)
	}
}

// testError is a simple error implementation for testing
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
