package engine

import (
	"time"

	"github.com/platinummonkey/ocrserve/internal/ocr"
)

// FailureKind classifies why an invocation did not succeed
type FailureKind int

const (
	// FailureNone means the engine ran to completion
	FailureNone FailureKind = iota

	// FailureTimeout means the deadline passed before the engine finished
	FailureTimeout

	// FailureAborted means the engine aborted, crashed or could not start
	FailureAborted
)

// String returns the name of the failure kind
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Outcome is the result of one bounded engine run. It is not modified after
// Invoke returns it.
type Outcome struct {
	// Succeeded is true when Failure is FailureNone
	Succeeded bool

	// Records are the retained detections; empty is a valid "no text" result
	Records []ocr.DetectionRecord

	// DetectionElapsed is the engine-reported detection time, if any
	DetectionElapsed *string

	// RecognitionElapsed is the engine-reported recognition time, if any
	RecognitionElapsed *string

	// Failure classifies an unsuccessful run
	Failure FailureKind

	// Duration is the wall-clock time spent in Invoke
	Duration time.Duration
}

func failed(kind FailureKind, start time.Time) *Outcome {
	return &Outcome{
		Succeeded: false,
		Failure:   kind,
		Duration:  time.Since(start),
	}
}
