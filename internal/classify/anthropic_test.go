package classify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-enricher/pkg/anthropic"
)

func TestAnthropicBackend_Submit(t *testing.T) {
	created := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	client := new(mockAnthropicClient)
	client.On("CreateBatch", mock.Anything, mock.MatchedBy(func(items []anthropic.BatchItem) bool {
		if len(items) != 1 {
			return false
		}
		p := items[0].Prompt
		return items[0].CustomID == "req-1" &&
			p.System == "sys" && p.User == "Deal info: {}" &&
			p.Temperature != nil && *p.Temperature == 0.5
	})).Return(&anthropic.Batch{ID: "msgbatch_1", Status: anthropic.StatusInProgress, CreatedAt: created}, nil)

	job, err := NewAnthropicBackend(client).Submit(context.Background(), []Request{{
		CustomID: "req-1", System: "sys", User: "Deal info: {}", Model: "m", MaxTokens: 10, Temperature: 0.5,
	}}, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, "msgbatch_1", job.ID)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, created, job.CreatedAt)
	client.AssertExpectations(t)
}

func TestAnthropicBackend_Status(t *testing.T) {
	tests := []struct {
		name       string
		batch      anthropic.Batch
		wantStatus JobStatus
		wantOutput string
		wantErrors string
	}{
		{
			name:       "in progress",
			batch:      anthropic.Batch{ID: "b", Status: anthropic.StatusInProgress},
			wantStatus: StatusPending,
		},
		{
			name:       "ended mixed",
			batch:      anthropic.Batch{ID: "b", Status: anthropic.StatusEnded, Counts: anthropic.Counts{Succeeded: 2, Errored: 1}},
			wantStatus: StatusCompleted,
			wantOutput: "output:b",
			wantErrors: "errors:b",
		},
		{
			name:       "ended errors only",
			batch:      anthropic.Batch{ID: "b", Status: anthropic.StatusEnded, Counts: anthropic.Counts{Errored: 3}},
			wantStatus: StatusCompleted,
			wantErrors: "errors:b",
		},
		{
			name:       "expired",
			batch:      anthropic.Batch{ID: "b", Status: anthropic.StatusEnded, Counts: anthropic.Counts{Expired: 3}},
			wantStatus: StatusFailed,
		},
		{
			name:       "canceling",
			batch:      anthropic.Batch{ID: "b", Status: anthropic.StatusCanceling},
			wantStatus: StatusFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mockAnthropicClient)
			batch := tt.batch
			client.On("GetBatch", mock.Anything, "b").Return(&batch, nil)

			job, err := NewAnthropicBackend(client).Status(context.Background(), "b")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, job.Status)
			assert.Equal(t, tt.wantOutput, job.OutputFileID)
			assert.Equal(t, tt.wantErrors, job.ErrorFileID)
		})
	}
}

func TestAnthropicBackend_ContentRoundTripsThroughDecode(t *testing.T) {
	items := []anthropic.Result{
		{CustomID: "r1", Type: anthropic.ResultSucceeded, Text: `{"dealname":"Alpha"}`},
		{CustomID: "r2", Type: anthropic.ResultErrored},
		{CustomID: "r3", Type: anthropic.ResultSucceeded, Text: `{"dealname":"Beta"}`},
	}

	client := new(mockAnthropicClient)
	outIter := &sliceIterator{items: items}
	errIter := &sliceIterator{items: items}
	client.On("GetBatchResults", mock.Anything, "b").Return(outIter, nil).Once()
	client.On("GetBatchResults", mock.Anything, "b").Return(errIter, nil).Once()

	backend := NewAnthropicBackend(client)

	out, err := backend.Content(context.Background(), "output:b")
	require.NoError(t, err)
	results, err := Decode(out, AbortOnMalformed)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "r1", results[0].CustomID)
	assert.Equal(t, `{"dealname":"Beta"}`, results[1].Text)
	assert.True(t, outIter.closed)

	errs, err := backend.Content(context.Background(), "errors:b")
	require.NoError(t, err)
	results, err = Decode(errs, AbortOnMalformed)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r2", results[0].CustomID)
	assert.Equal(t, "request errored", results[0].Error)
}

func TestAnthropicBackend_ContentUnknownArtifact(t *testing.T) {
	_, err := NewAnthropicBackend(new(mockAnthropicClient)).Content(context.Background(), "file-123")
	require.Error(t, err)
}
