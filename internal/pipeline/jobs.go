package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/finextract/internal/record"
)

// JobStatus represents the state of an extraction job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusParsing     JobStatus = JobStatus(StageParsing)
	StatusChunking    JobStatus = JobStatus(StageChunking)
	StatusIndexing    JobStatus = JobStatus(StageIndexing)
	StatusRetrieving  JobStatus = JobStatus(StageRetrieving)
	StatusExtracting  JobStatus = JobStatus(StageExtracting)
	StatusNormalizing JobStatus = JobStatus(StageNormalizing)
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks the state of a single document extraction.
type Job struct {
	mu sync.Mutex

	ID           string `json:"job_id"`
	CollectionID string `json:"collection_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Years          []string `json:"years,omitempty"`
	AlreadyIndexed bool     `json:"already_indexed"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	result   *Result
	errors   []string
}

// Progress summarises what a run has produced so far.
type Progress struct {
	Pages        int      `json:"pages"`
	Chunks       int      `json:"chunks"`
	Indexed      bool     `json:"indexed"`
	Retrieved    int      `json:"retrieved"`
	PromptTokens int      `json:"prompt_tokens"`
	ParseStatus  string   `json:"parse_status,omitempty"`
	Rows         int      `json:"rows"`
	Errors       []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// Complete stores the run result and marks the job completed.
func (j *Job) Complete(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.CollectionID = res.CollectionID
	j.Progress.Pages = res.Pages
	j.Progress.Chunks = res.Chunks
	j.Progress.Indexed = res.Index.Created
	j.Progress.Retrieved = res.Retrieved
	j.Progress.PromptTokens = res.Prompt.Tokens
	j.Progress.ParseStatus = string(res.Parse.Status)
	j.Progress.Rows = len(res.Rows)
	j.Status = StatusCompleted
	j.Phase = "done"
	j.UpdatedAt = time.Now()
	j.fileData = nil
}

// Result returns the run result, or nil until the job completes.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Rows returns the normalized rows of a completed job.
func (j *Job) Rows() []record.FinancialRow {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.result == nil {
		return nil
	}
	return j.result.Rows
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID           string    `json:"job_id"`
	CollectionID string    `json:"collection_id"`
	Status       JobStatus `json:"status"`
	Phase        string    `json:"phase"`
	Filename     string    `json:"filename"`
	Years        []string  `json:"years,omitempty"`
	Progress     Progress  `json:"progress"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress := j.Progress
	progress.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:           j.ID,
		CollectionID: j.CollectionID,
		Status:       j.Status,
		Phase:        j.Phase,
		Filename:     j.Filename,
		Years:        append([]string(nil), j.Years...),
		Progress:     progress,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
