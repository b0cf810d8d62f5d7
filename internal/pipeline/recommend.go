package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-enricher/internal/classify"
	"github.com/sells-group/deal-enricher/internal/deals"
	"github.com/sells-group/deal-enricher/internal/model"
)

// RecommendResult summarizes a Recommend invocation.
type RecommendResult struct {
	JobID     string
	Deals     int
	Results   int
	Matched   int
	Writeback classify.WritebackStats
	Phases    []model.PhaseResult
}

// Recommend fetches and enriches deals, classifies them in one batch job,
// matches the results back and writes recommendations to the CRM. A failed
// or timed-out job is fatal.
func (p *Pipeline) Recommend(ctx context.Context, r deals.DateRange) (*RecommendResult, error) {
	if p.backend == nil {
		return nil, errNoBackend
	}

	ds, phases, err := p.FetchDeals(ctx, r)
	res := &RecommendResult{Deals: len(ds), Phases: phases}
	if err != nil {
		return res, err
	}

	t := newTracker(zap.L().With(zap.String("invocation", "recommend"), zap.String("range", r.String())))
	t.phases = res.Phases
	defer func() { res.Phases = t.phases }()

	if len(ds) == 0 {
		t.skip("classify")
		return res, nil
	}

	prompt, err := classify.LoadPrompt(p.cfg.Classify.PromptPath)
	if err != nil {
		return res, err
	}

	var handle *classify.Handle
	err = t.run("submit", func() (int, error) {
		s := classify.NewSubmitter(p.backend, classify.SubmitterConfig{
			Prompt:           prompt,
			Model:            p.cfg.Anthropic.Model,
			MaxTokens:        p.cfg.Anthropic.MaxTokens,
			Temperature:      p.cfg.Anthropic.Temperature,
			CompletionWindow: p.cfg.Classify.CompletionWindow,
		})
		var err error
		handle, err = s.Submit(ctx, ds)
		if err != nil {
			return 0, err
		}
		return len(handle.CustomIDs), nil
	})
	if err != nil {
		return res, err
	}
	res.JobID = handle.Job.ID

	var raw []byte
	err = t.run("poll", func() (int, error) {
		var err error
		raw, err = classify.NewPoller(p.backend, p.pollOpts...).Wait(ctx, handle.Job.ID)
		return len(raw), err
	})
	if err != nil {
		return res, err
	}

	var results []classify.Result
	err = t.run("decode", func() (int, error) {
		var err error
		results, err = classify.Decode(raw, classify.MalformedPolicy(p.cfg.Classify.MalformedLines))
		return len(results), err
	})
	if err != nil {
		return res, eris.Wrapf(err, "pipeline: decode batch %s", handle.Job.ID)
	}
	res.Results = len(results)

	_ = t.run("match", func() (int, error) {
		res.Matched = classify.Match(ds, results, handle.CustomIDs)
		return res.Matched, nil
	})
	_ = t.run("writeback", func() (int, error) {
		res.Writeback = classify.Writeback(ctx, p.crm, ds)
		return res.Writeback.Updated, nil
	})

	return res, nil
}
