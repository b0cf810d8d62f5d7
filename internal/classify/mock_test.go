package classify

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/deal-enricher/pkg/anthropic"
)

// --- Backend Mock ---

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Submit(ctx context.Context, reqs []Request, opts SubmitOptions) (*Job, error) {
	args := m.Called(ctx, reqs, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Job), args.Error(1)
}

func (m *mockBackend) Status(ctx context.Context, jobID string) (*Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Job), args.Error(1)
}

func (m *mockBackend) Content(ctx context.Context, fileID string) ([]byte, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// --- Updater Mock ---

type mockUpdater struct {
	mock.Mock
}

func (m *mockUpdater) UpdateDeal(ctx context.Context, dealID string, props map[string]string) error {
	args := m.Called(ctx, dealID, props)
	return args.Error(0)
}

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateBatch(ctx context.Context, items []anthropic.BatchItem) (*anthropic.Batch, error) {
	args := m.Called(ctx, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.Batch), args.Error(1)
}

func (m *mockAnthropicClient) GetBatch(ctx context.Context, batchID string) (*anthropic.Batch, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.Batch), args.Error(1)
}

func (m *mockAnthropicClient) GetBatchResults(ctx context.Context, batchID string) (anthropic.ResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(anthropic.ResultIterator), args.Error(1)
}

// sliceIterator replays a fixed list of batch results.
type sliceIterator struct {
	items  []anthropic.Result
	pos    int
	err    error
	closed bool
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.items) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Result() anthropic.Result { return it.items[it.pos-1] }
func (it *sliceIterator) Err() error               { return it.err }
func (it *sliceIterator) Close() error {
	it.closed = true
	return nil
}
