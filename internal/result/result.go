// Package result defines the response envelope returned for every recognition
// request and the closed set of statuses it can carry.
package result

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout formats request_time and response_time
const TimeLayout = "2006/01/02 15:04:05.000000"

// Status is the recognition status code carried inside an envelope. It is
// independent of the HTTP status of the transport.
type Status int

const (
	StatusOK              Status = 200
	StatusUnsupportedMode Status = 401
	StatusTimeout         Status = 402
	StatusExecError       Status = 403
	StatusPathNotFound    Status = 501
	StatusNoImages        Status = 502
	StatusEmptyResult     Status = 503
)

// Detail returns the fixed human-readable detail for the status
func (s Status) Detail() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusUnsupportedMode:
		return "[Error] Unsupported type"
	case StatusTimeout:
		return "[Error] Time out"
	case StatusExecError:
		return "[Error] Exec Error"
	case StatusPathNotFound:
		return "[Error] Image path not exist"
	case StatusNoImages:
		return "[Error] Can't find images"
	case StatusEmptyResult:
		return "[Error] Rec Error or no text region"
	default:
		return fmt.Sprintf("[Error] Unknown status %d", int(s))
	}
}

// String returns the status kind name
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "success"
	case StatusUnsupportedMode:
		return "unsupported_mode"
	case StatusTimeout:
		return "timeout"
	case StatusExecError:
		return "exec_error"
	case StatusPathNotFound:
		return "path_not_found"
	case StatusNoImages:
		return "no_images"
	case StatusEmptyResult:
		return "empty_result"
	default:
		return "unknown"
	}
}

// IsOK reports whether the status is StatusOK
func (s Status) IsOK() bool {
	return s == StatusOK
}

// Type distinguishes uploaded images from server-side paths
type Type string

const (
	TypeLocal  Type = "local"
	TypeOnline Type = "online"
)

// Envelope is the uniform response for one request
type Envelope struct {
	Type         Type    `json:"type" yaml:"type"`
	Status       Status  `json:"status" yaml:"status"`
	Detail       string  `json:"detail" yaml:"detail"`
	Result       any     `json:"result" yaml:"result"`
	DetTime      *string `json:"det_time" yaml:"det_time"`
	RecTime      *string `json:"rec_time" yaml:"rec_time"`
	RequestTime  string  `json:"request_time" yaml:"request_time"`
	ResponseTime string  `json:"response_time" yaml:"response_time"`
}

// NewEnvelope starts an envelope for a request received at requested
func NewEnvelope(t Type, requested time.Time) *Envelope {
	return &Envelope{
		Type:        t,
		RequestTime: FormatTime(requested),
	}
}

// Finish sets the status, its detail and the payload, and stamps the response
// time. A nil payload is kept as null.
func (e *Envelope) Finish(status Status, payload any, now time.Time) *Envelope {
	e.Status = status
	e.Detail = status.Detail()
	e.Result = payload
	e.ResponseTime = FormatTime(now)
	return e
}

// SetTimings records the engine-reported elapsed times
func (e *Envelope) SetTimings(det, rec *string) *Envelope {
	e.DetTime = det
	e.RecTime = rec
	return e
}

// FormatTime renders t with TimeLayout
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// Entry is the outcome for one image of a local batch
type Entry struct {
	ImagePath string  `json:"image_path" yaml:"image_path"`
	Mode      string  `json:"ocr_type" yaml:"ocr_type"`
	Status    Status  `json:"status" yaml:"status"`
	Detail    string  `json:"detail" yaml:"detail"`
	Result    any     `json:"result" yaml:"result"`
	DetTime   *string `json:"det_time" yaml:"det_time"`
	RecTime   *string `json:"rec_time" yaml:"rec_time"`
}

// NewEntry builds an entry with the detail for status filled in
func NewEntry(imagePath, mode string, status Status, payload any) Entry {
	return Entry{
		ImagePath: imagePath,
		Mode:      mode,
		Status:    status,
		Detail:    status.Detail(),
		Result:    payload,
	}
}

// Batch collects the entries of a local request. Entries keep input order;
// distinct indices may be set concurrently.
type Batch struct {
	Entries  []Entry
	Duration time.Duration
}

// NewBatch creates a batch with room for n entries
func NewBatch(n int) *Batch {
	return &Batch{
		Entries: make([]Entry, n),
	}
}

// Set stores the entry for input position i
func (b *Batch) Set(i int, e Entry) {
	b.Entries[i] = e
}

// SuccessCount returns the number of entries with StatusOK
func (b *Batch) SuccessCount() int {
	n := 0
	for _, e := range b.Entries {
		if e.Status.IsOK() {
			n++
		}
	}
	return n
}

// FailureCount returns the number of entries that did not succeed
func (b *Batch) FailureCount() int {
	return len(b.Entries) - b.SuccessCount()
}

// HasFailures returns true if any entry failed
func (b *Batch) HasFailures() bool {
	return b.FailureCount() > 0
}

// Summary returns a human-readable summary of the batch
func (b *Batch) Summary() string {
	var sb strings.Builder

	sb.WriteString("Recognition Summary:\n")
	sb.WriteString(fmt.Sprintf("  Images: %d\n", len(b.Entries)))
	sb.WriteString(fmt.Sprintf("  Successful: %d\n", b.SuccessCount()))
	sb.WriteString(fmt.Sprintf("  Failed: %d\n", b.FailureCount()))
	sb.WriteString(fmt.Sprintf("  Duration: %v\n", b.Duration))

	if b.HasFailures() {
		sb.WriteString("\nFailures:\n")
		for _, e := range b.Entries {
			if !e.Status.IsOK() {
				sb.WriteString(fmt.Sprintf("  - %s (%d): %s\n", e.ImagePath, e.Status, e.Detail))
			}
		}
	}

	return sb.String()
}

// String returns a string representation of the batch
func (b *Batch) String() string {
	return b.Summary()
}
