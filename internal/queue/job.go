package queue

import (
	"strings"
	"sync"

	"mediaagent/internal/catalog"
)

// Status is the outcome of a job, shared with the ledger.
type Status = catalog.ConversionStatus

const (
	StatusPending   = catalog.ConversionPending
	StatusConverted = catalog.ConversionConverted
	StatusFailed    = catalog.ConversionFailed
)

// Job converts one input file into one output file.
// The input path is its identity and never changes.
type Job struct {
	input    string
	output   string
	videoID  int64
	category string

	mu       sync.Mutex
	ledgerID int64
	status   Status
	message  string
}

// NewJob returns a pending job. videoID is 0 when the input is not catalogued.
func NewJob(input, output string, videoID int64) *Job {
	return &Job{
		input:   strings.TrimSpace(input),
		output:  strings.TrimSpace(output),
		videoID: videoID,
		status:  StatusPending,
	}
}

// WithCategory records the library category (movies, tv, videos) the job belongs to.
func (j *Job) WithCategory(category string) *Job {
	j.category = category
	return j
}

// Key returns the input path.
func (j *Job) Key() string { return j.input }

// Input returns the input path.
func (j *Job) Input() string { return j.input }

// Output returns the output path.
func (j *Job) Output() string { return j.output }

// VideoID returns the catalog id of the source video, 0 when uncatalogued.
func (j *Job) VideoID() int64 { return j.videoID }

// Category returns the library category, empty when unknown.
func (j *Job) Category() string { return j.category }

// Status returns the current outcome.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Error returns the failure message of a failed job.
func (j *Job) Error() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.message
}

// LedgerID returns the id of the ledger row, 0 before Enqueue succeeds.
func (j *Job) LedgerID() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.ledgerID
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	status := j.Status()
	return status == StatusConverted || status == StatusFailed
}

func (j *Job) setLedgerID(id int64) {
	j.mu.Lock()
	j.ledgerID = id
	j.mu.Unlock()
}

func (j *Job) finish(status Status, message string) {
	j.mu.Lock()
	j.status = status
	j.message = message
	j.mu.Unlock()
}
