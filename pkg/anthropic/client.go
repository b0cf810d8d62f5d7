// Package anthropic wraps the Anthropic Message Batches API for one-shot
// classification prompts.
package anthropic

import (
	"context"
	"time"
)

// Batch processing statuses.
const (
	StatusInProgress = "in_progress"
	StatusCanceling  = "canceling"
	StatusEnded      = "ended"
)

// Per-request result types.
const (
	ResultSucceeded = "succeeded"
	ResultErrored   = "errored"
	ResultCanceled  = "canceled"
	ResultExpired   = "expired"
)

// Client is the subset of the batch API the classifier needs.
type Client interface {
	CreateBatch(ctx context.Context, items []BatchItem) (*Batch, error)
	GetBatch(ctx context.Context, batchID string) (*Batch, error)
	GetBatchResults(ctx context.Context, batchID string) (ResultIterator, error)
}

// ResultIterator streams per-request results of an ended batch.
type ResultIterator interface {
	Next() bool
	Result() Result
	Err() error
	Close() error
}

// Prompt is a single-turn request: an optional system prompt and one user
// message.
type Prompt struct {
	Model       string
	MaxTokens   int64
	Temperature *float64
	System      string
	User        string
}

// BatchItem pairs a prompt with the caller's correlation ID.
type BatchItem struct {
	CustomID string
	Prompt   Prompt
}

// Batch is the server-side state of a message batch.
type Batch struct {
	ID        string
	Status    string
	Counts    Counts
	CreatedAt time.Time
	EndedAt   time.Time
}

// Counts tallies requests by outcome.
type Counts struct {
	Processing int64
	Succeeded  int64
	Errored    int64
	Canceled   int64
	Expired    int64
}

// Failed returns the number of requests that did not succeed.
func (c Counts) Failed() int64 {
	return c.Errored + c.Canceled + c.Expired
}

// Ended reports whether the batch has finished processing.
func (b *Batch) Ended() bool {
	return b.Status == StatusEnded
}

// Abandoned reports whether the batch is being canceled, or ended with every
// request canceled or expired.
func (b *Batch) Abandoned() bool {
	if b.Status == StatusCanceling {
		return true
	}
	c := b.Counts
	return b.Ended() && c.Succeeded == 0 && c.Errored == 0 && c.Canceled+c.Expired > 0
}

// Result is one request's outcome. Text, StopReason and token counts are set
// only when Type is ResultSucceeded.
type Result struct {
	CustomID     string
	Type         string
	Model        string
	Text         string
	StopReason   string
	InputTokens  int64
	OutputTokens int64
}

// Succeeded reports whether the request produced a message.
func (r Result) Succeeded() bool {
	return r.Type == ResultSucceeded
}
