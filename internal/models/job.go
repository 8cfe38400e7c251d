package models

import (
	"fmt"
	"time"
)

// JobStatus is the state of an ingestion job.
type JobStatus string

const (
	StatusPending             JobStatus = "PENDING"
	StatusStarted             JobStatus = "STARTED"
	StatusProcessingDocument  JobStatus = "PROCESSING_DOCUMENT"
	StatusProcessingPages     JobStatus = "PROCESSING_PAGES"
	StatusProcessingQuestions JobStatus = "PROCESSING_QUESTIONS"
	StatusProcessingSummary   JobStatus = "PROCESSING_SUMMARY"
	StatusProcessingDone      JobStatus = "PROCESSING_DONE"
	StatusProcessingFailed    JobStatus = "PROCESSING_FAILED"
	StatusSuccess             JobStatus = "SUCCESS"
	StatusFailure             JobStatus = "FAILURE"

	// Lookup results only; never stored.
	StatusTimeout  JobStatus = "TIMEOUT"
	StatusNotFound JobStatus = "NOT_FOUND"
)

var transitions = map[JobStatus][]JobStatus{
	StatusPending: {StatusPending, StatusStarted, StatusFailure},
	StatusStarted: {StatusProcessingDocument, StatusProcessingFailed},
	StatusProcessingDocument: {
		StatusProcessingPages, StatusProcessingDone, StatusProcessingFailed,
	},
	StatusProcessingPages: {
		StatusProcessingPages, StatusProcessingQuestions, StatusProcessingSummary,
		StatusProcessingDone, StatusProcessingFailed,
	},
	StatusProcessingQuestions: {
		StatusProcessingQuestions, StatusProcessingSummary, StatusProcessingDone, StatusProcessingFailed,
	},
	StatusProcessingSummary: {
		StatusProcessingSummary, StatusProcessingDone, StatusProcessingFailed,
	},
}

// CanTransition reports whether a stored job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusProcessingDone, StatusProcessingFailed, StatusSuccess, StatusFailure:
		return true
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition wrapped with both states.
func ValidateTransition(from, to JobStatus) error {
	if from.CanTransition(to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// IngestRequest is the payload of one ingestion job.
type IngestRequest struct {
	Text              string `json:"text"`
	DocumentID        string `json:"documentId"`
	GenerateQuestions bool   `json:"generateQuestions"`
	GenerateSummaries bool   `json:"generateSummaries"`
}

// TaskMessage is what travels through the queue: the job id plus its payload.
type TaskMessage struct {
	JobID   string        `json:"job_id"`
	Request IngestRequest `json:"request"`
}

// JobMeta is the progress information attached to the current status.
type JobMeta struct {
	DocumentID string `json:"documentId,omitempty"`
	Page       int    `json:"page,omitempty"`
	TotalPages int    `json:"total_pages,omitempty"`
	Phase      string `json:"phase,omitempty"`
}

// JobResult is stored once a job reaches a terminal state.
type JobResult struct {
	Message    string `json:"message"`
	DocumentID string `json:"uuid,omitempty"`
	TaskID     string `json:"task_id"`
	Pages      int    `json:"pages,omitempty"`
	Children   int    `json:"children,omitempty"`
	Questions  int    `json:"questions,omitempty"`
	Summaries  int    `json:"summaries,omitempty"`
	Error      string `json:"error,omitempty"`
}

// JobEvent is one entry of a job's status history.
type JobEvent struct {
	Status JobStatus `json:"status"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// Job is an asynchronous ingestion unit tracked by the status store.
type Job struct {
	ID         string     `json:"id"`
	Status     JobStatus  `json:"status"`
	DocumentID string     `json:"documentId"`
	Meta       JobMeta    `json:"meta"`
	Error      string     `json:"error,omitempty"`
	Requeues   int        `json:"requeues"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	History    []JobEvent `json:"history,omitempty"`
}

// TaskInfo is the status lookup response.
type TaskInfo struct {
	TaskID string     `json:"taskId"`
	Status JobStatus  `json:"status"`
	Meta   *JobMeta   `json:"meta,omitempty"`
	Result *JobResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// QueueDepth counts messages waiting to run: ready now, or delayed after an
// admission requeue.
type QueueDepth struct {
	Ready   int64 `json:"ready"`
	Delayed int64 `json:"delayed"`
}
