// Package classify submits enriched deals to an LLM batch backend, polls the
// job, decodes the newline-delimited results and writes recommendations back
// to the CRM.
package classify

import (
	"context"
	"fmt"
	"time"
)

// JobStatus is the backend-neutral state of a batch job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job is a submitted batch job. OutputFileID and ErrorFileID name result
// artifacts retrievable through Backend.Content.
type Job struct {
	ID           string
	Status       JobStatus
	RawStatus    string
	OutputFileID string
	ErrorFileID  string
	CreatedAt    time.Time
}

// Request is one classification request, one per deal.
type Request struct {
	CustomID    string
	System      string
	User        string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// SubmitOptions carries job-level hints. Input is the NDJSON batch input
// artifact for backends that upload a file instead of structured requests.
type SubmitOptions struct {
	CompletionWindow string
	Description      string
	Input            []byte
}

// Backend is an asynchronous batch inference service.
type Backend interface {
	Submit(ctx context.Context, reqs []Request, opts SubmitOptions) (*Job, error)
	Status(ctx context.Context, jobID string) (*Job, error)
	Content(ctx context.Context, fileID string) ([]byte, error)
}

// BatchProcessingError reports a job that failed, or completed with only
// an error artifact.
type BatchProcessingError struct {
	JobID     string
	RawStatus string
	Detail    string
}

func (e *BatchProcessingError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("classify: batch %s failed (status %s)", e.JobID, e.RawStatus)
	}
	return fmt.Sprintf("classify: batch %s failed (status %s): %s", e.JobID, e.RawStatus, e.Detail)
}

// TimeoutError reports that polling gave up before the job finished.
type TimeoutError struct {
	JobID    string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("classify: batch %s not finished after %d polls", e.JobID, e.Attempts)
}

// NotFoundError reports a classification result that matches no deal.
type NotFoundError struct {
	CustomID string
	DealName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("classify: no deal for result %s (dealname %q)", e.CustomID, e.DealName)
}
