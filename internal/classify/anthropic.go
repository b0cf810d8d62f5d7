package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-enricher/pkg/anthropic"
)

// Artifact ID prefixes. The Message Batches API exposes a single results
// stream, so Status names two virtual artifacts that Content filters.
const (
	outputPrefix = "output:"
	errorsPrefix = "errors:"
)

// AnthropicBackend runs jobs on the Anthropic Message Batches API.
type AnthropicBackend struct {
	client anthropic.Client
	now    func() time.Time
}

// NewAnthropicBackend creates a backend over client.
func NewAnthropicBackend(client anthropic.Client) *AnthropicBackend {
	return &AnthropicBackend{client: client, now: time.Now}
}

// Submit creates a message batch with one item per request. The completion
// window is fixed by the service and ignored here.
func (b *AnthropicBackend) Submit(ctx context.Context, reqs []Request, _ SubmitOptions) (*Job, error) {
	items := make([]anthropic.BatchItem, len(reqs))
	for i, r := range reqs {
		temp := r.Temperature
		items[i] = anthropic.BatchItem{
			CustomID: r.CustomID,
			Prompt: anthropic.Prompt{
				Model:       r.Model,
				MaxTokens:   r.MaxTokens,
				Temperature: &temp,
				System:      r.System,
				User:        r.User,
			},
		}
	}

	batch, err := b.client.CreateBatch(ctx, items)
	if err != nil {
		return nil, err
	}
	job := toJob(batch)
	if job.CreatedAt.IsZero() {
		job.CreatedAt = b.now()
	}
	return job, nil
}

// Status fetches the batch and maps it onto the neutral job states.
func (b *AnthropicBackend) Status(ctx context.Context, jobID string) (*Job, error) {
	batch, err := b.client.GetBatch(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return toJob(batch), nil
}

// Content streams the batch results and renders the requested subset as
// newline-delimited JSON in the results-file line shape.
func (b *AnthropicBackend) Content(ctx context.Context, fileID string) ([]byte, error) {
	var wantSucceeded bool
	var batchID string
	switch {
	case strings.HasPrefix(fileID, outputPrefix):
		wantSucceeded, batchID = true, strings.TrimPrefix(fileID, outputPrefix)
	case strings.HasPrefix(fileID, errorsPrefix):
		batchID = strings.TrimPrefix(fileID, errorsPrefix)
	default:
		return nil, eris.Errorf("classify: unknown artifact id %q", fileID)
	}

	iter, err := b.client.GetBatchResults(ctx, batchID)
	if err != nil {
		return nil, err
	}
	defer iter.Close() //nolint:errcheck

	var (
		buf           bytes.Buffer
		lines         int
		input, output int64
	)
	enc := json.NewEncoder(&buf)
	for iter.Next() {
		res := iter.Result()
		if res.Succeeded() != wantSucceeded {
			continue
		}
		if err := enc.Encode(toResultLine(res)); err != nil {
			return nil, eris.Wrapf(err, "classify: encode result %s", res.CustomID)
		}
		lines++
		input += res.InputTokens
		output += res.OutputTokens
	}
	if err := iter.Err(); err != nil {
		return nil, eris.Wrapf(err, "classify: read results of batch %s", batchID)
	}

	zap.L().Info("classify: read batch results",
		zap.String("batch_id", batchID),
		zap.Bool("succeeded", wantSucceeded),
		zap.Int("lines", lines),
		zap.Int64("input_tokens", input),
		zap.Int64("output_tokens", output),
	)
	return buf.Bytes(), nil
}

func toJob(batch *anthropic.Batch) *Job {
	job := &Job{
		ID:        batch.ID,
		RawStatus: batch.Status,
		Status:    StatusPending,
		CreatedAt: batch.CreatedAt,
	}
	switch {
	case batch.Abandoned():
		job.Status = StatusFailed
	case batch.Ended():
		job.Status = StatusCompleted
		if batch.Counts.Succeeded > 0 {
			job.OutputFileID = outputPrefix + batch.ID
		}
		if batch.Counts.Failed() > 0 {
			job.ErrorFileID = errorsPrefix + batch.ID
		}
	}
	return job
}

func toResultLine(res anthropic.Result) map[string]any {
	result := map[string]any{"type": res.Type}
	if res.Succeeded() {
		result["message"] = map[string]any{
			"model":       res.Model,
			"stop_reason": res.StopReason,
			"content":     []map[string]string{{"type": "text", "text": res.Text}},
		}
	} else {
		result["error"] = map[string]string{"type": res.Type, "message": "request " + res.Type}
	}
	return map[string]any{"custom_id": res.CustomID, "result": result}
}
