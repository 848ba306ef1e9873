// Package pipeline owns the job lifecycle: the job record, the in-memory
// store, and the per-job state machine that takes a submission from queued
// to completed or failed.
package pipeline

import (
	"errors"
	"time"

	"github.com/danwin47-sys/ocrflow/queue"
)

// Status is the externally visible job state. A job moves queued →
// processing → completed|failed and never skips or revisits a state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Progress checkpoints published while a job runs.
const (
	ProgressQueued        = 0
	ProgressPreprocessing = 15
	ProgressInferring     = 40
	ProgressCorrecting    = 75
	ProgressCaching       = 90
	ProgressDone          = 100
)

// Validation errors returned synchronously by Submit.
var (
	ErrEmptyImage      = errors.New("image payload is empty")
	ErrUnsupportedMode = errors.New("unsupported recognition mode")
)

// Result is the final output of a completed job. It contains nothing
// volatile, so a cached copy is byte-identical to a fresh one.
type Result struct {
	Text      string `json:"text"`
	Engine    string `json:"engine"`
	Corrected bool   `json:"corrected"`
}

// Job is one recognition request's record. Snapshots returned by the store
// are copies; the Result pointer is shared but never mutated once set.
type Job struct {
	ID        string
	Mode      string
	Priority  queue.Priority
	Correct   bool
	Status    Status
	Progress  int
	CreatedAt time.Time
	Result    *Result
	Error     string
}

// Terminal reports whether the job has finished, either way.
func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
