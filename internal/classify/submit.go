package classify

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-enricher/internal/model"
)

// SubmitterConfig configures request construction.
type SubmitterConfig struct {
	Prompt           string
	Model            string
	MaxTokens        int64
	Temperature      float64
	CompletionWindow string
	MaxInputBytes    int
}

// defaultMaxInputBytes is the batch input size accepted by the batch APIs.
const defaultMaxInputBytes = 256 << 20

// Handle is a submitted job plus the custom ID → deal ID correlation.
type Handle struct {
	Job       *Job
	CustomIDs map[string]string
}

// Submitter builds one request per deal and submits them as a single job.
type Submitter struct {
	backend Backend
	cfg     SubmitterConfig
	newID   func() string
}

// NewSubmitter creates a Submitter.
func NewSubmitter(backend Backend, cfg SubmitterConfig) *Submitter {
	if cfg.Prompt == "" {
		cfg.Prompt = FallbackPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2500
	}
	if cfg.CompletionWindow == "" {
		cfg.CompletionWindow = "24h"
	}
	if cfg.MaxInputBytes <= 0 {
		cfg.MaxInputBytes = defaultMaxInputBytes
	}
	return &Submitter{backend: backend, cfg: cfg, newID: uuid.NewString}
}

// Build returns the requests for deals and the custom ID → deal ID map.
func (s *Submitter) Build(deals []*model.Deal) ([]Request, map[string]string, error) {
	reqs := make([]Request, 0, len(deals))
	ids := make(map[string]string, len(deals))
	for _, d := range deals {
		body, err := json.Marshal(d)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "classify: encode deal %s", d.ID)
		}
		id := s.newID()
		ids[id] = d.ID
		reqs = append(reqs, Request{
			CustomID:    id,
			System:      s.cfg.Prompt,
			User:        "Deal info: " + string(body),
			Model:       s.cfg.Model,
			MaxTokens:   s.cfg.MaxTokens,
			Temperature: s.cfg.Temperature,
		})
	}
	return reqs, ids, nil
}

// Submit builds and submits a job for deals.
func (s *Submitter) Submit(ctx context.Context, deals []*model.Deal) (*Handle, error) {
	if len(deals) == 0 {
		return nil, eris.New("classify: no deals to submit")
	}

	reqs, ids, err := s.Build(deals)
	if err != nil {
		return nil, err
	}

	input, err := EncodeRequests(reqs)
	if err != nil {
		return nil, err
	}
	if len(input) > s.cfg.MaxInputBytes {
		return nil, eris.Errorf("classify: batch input is %d bytes, limit %d", len(input), s.cfg.MaxInputBytes)
	}

	job, err := s.backend.Submit(ctx, reqs, SubmitOptions{
		CompletionWindow: s.cfg.CompletionWindow,
		Description:      "deal data recommendation generator",
		Input:            input,
	})
	if err != nil {
		return nil, eris.Wrap(err, "classify: submit batch")
	}

	zap.L().Info("classify: batch submitted",
		zap.String("job_id", job.ID),
		zap.Int("requests", len(reqs)),
		zap.Int("input_bytes", len(input)),
	)
	return &Handle{Job: job, CustomIDs: ids}, nil
}

// requestLine is the NDJSON batch-input form of a Request.
type requestLine struct {
	CustomID string        `json:"custom_id"`
	Params   requestParams `json:"params"`
}

type requestParams struct {
	Model       string           `json:"model"`
	MaxTokens   int64            `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
	System      string           `json:"system"`
	Messages    []requestMessage `json:"messages"`
}

type requestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EncodeRequests renders requests as newline-delimited JSON, one line per
// request.
func EncodeRequests(reqs []Request) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range reqs {
		line := requestLine{
			CustomID: r.CustomID,
			Params: requestParams{
				Model:       r.Model,
				MaxTokens:   r.MaxTokens,
				Temperature: r.Temperature,
				System:      r.System,
				Messages:    []requestMessage{{Role: "user", Content: r.User}},
			},
		}
		if err := enc.Encode(line); err != nil {
			return nil, eris.Wrapf(err, "classify: encode request %s", r.CustomID)
		}
	}
	return buf.Bytes(), nil
}
