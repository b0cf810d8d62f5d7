package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/deal-enricher/internal/classify"
	"github.com/sells-group/deal-enricher/internal/model"
	"github.com/sells-group/deal-enricher/pkg/hubspot"
)

// --- HubSpot Mock ---

type mockCRM struct {
	mock.Mock
}

func (m *mockCRM) SearchDeals(ctx context.Context, req hubspot.SearchRequest) (*hubspot.DealPage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hubspot.DealPage), args.Error(1)
}

func (m *mockCRM) SearchNotes(ctx context.Context, dealID string) ([]model.Note, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Note), args.Error(1)
}

func (m *mockCRM) GetOwner(ctx context.Context, ownerID string) (*model.Owner, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Owner), args.Error(1)
}

func (m *mockCRM) GetFileSignedURL(ctx context.Context, fileID string) (*hubspot.SignedURL, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hubspot.SignedURL), args.Error(1)
}

func (m *mockCRM) DownloadFile(ctx context.Context, signedURL string) ([]byte, error) {
	args := m.Called(ctx, signedURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockCRM) ListEngagements(ctx context.Context, dealID string, offset int64) (*hubspot.EngagementPage, error) {
	args := m.Called(ctx, dealID, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hubspot.EngagementPage), args.Error(1)
}

func (m *mockCRM) GetPipeline(ctx context.Context, pipelineID string) (*hubspot.Pipeline, error) {
	args := m.Called(ctx, pipelineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hubspot.Pipeline), args.Error(1)
}

func (m *mockCRM) GetDealStageHistory(ctx context.Context, dealID string) ([]hubspot.PropertyVersion, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.PropertyVersion), args.Error(1)
}

func (m *mockCRM) UpdateDeal(ctx context.Context, dealID string, props map[string]string) error {
	args := m.Called(ctx, dealID, props)
	return args.Error(0)
}

func (m *mockCRM) GetDealProperties(ctx context.Context) ([]hubspot.PropertyDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hubspot.PropertyDefinition), args.Error(1)
}

// --- Backend Mock ---

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Submit(ctx context.Context, reqs []classify.Request, opts classify.SubmitOptions) (*classify.Job, error) {
	args := m.Called(ctx, reqs, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classify.Job), args.Error(1)
}

func (m *mockBackend) Status(ctx context.Context, jobID string) (*classify.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*classify.Job), args.Error(1)
}

func (m *mockBackend) Content(ctx context.Context, fileID string) ([]byte, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Supports(ext string) bool {
	return m.Called(ext).Bool(0)
}

func (m *mockExtractor) Extract(ctx context.Context, ext, name string, data []byte) (string, error) {
	args := m.Called(ctx, ext, name, data)
	return args.String(0), args.Error(1)
}
