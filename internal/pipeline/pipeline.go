// Package pipeline runs the three deal invocations: fetch, recommend and
// export.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-enricher/internal/classify"
	"github.com/sells-group/deal-enricher/internal/config"
	"github.com/sells-group/deal-enricher/internal/deals"
	"github.com/sells-group/deal-enricher/internal/enrich"
	"github.com/sells-group/deal-enricher/internal/model"
	"github.com/sells-group/deal-enricher/internal/owner"
	"github.com/sells-group/deal-enricher/pkg/hubspot"
)

// ValidationError reports bad caller input, such as a malformed date.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Pipeline wires the deal components to one CRM client and one batch
// backend.
type Pipeline struct {
	cfg       *config.Config
	crm       hubspot.Client
	backend   classify.Backend
	extractor enrich.TextExtractor
	now       func() time.Time
	pollOpts  []classify.PollOption
}

// New creates a Pipeline. backend may be nil when Recommend is not used.
func New(cfg *config.Config, crm hubspot.Client, backend classify.Backend, extractor enrich.TextExtractor) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		crm:       crm,
		backend:   backend,
		extractor: extractor,
		now:       time.Now,
		pollOpts: []classify.PollOption{
			classify.WithPollInterval(cfg.Classify.PollInterval()),
			classify.WithMaxAttempts(cfg.Classify.MaxPollAttempts),
		},
	}
}

// Range parses YYYY-MM-DD bounds. Empty bounds use the default lookback
// window.
func (p *Pipeline) Range(start, end string) (deals.DateRange, error) {
	r, err := deals.ParseRange(start, end, p.now(), p.cfg.Deals.DefaultLookbackMonths)
	if err != nil {
		field := "date range"
		switch {
		case start != "" && !validDate(start):
			field = "start_date"
		case end != "" && !validDate(end):
			field = "end_date"
		}
		return deals.DateRange{}, &ValidationError{Field: field, Err: err}
	}
	return r, nil
}

func validDate(s string) bool {
	_, err := time.Parse(deals.DateLayout, s)
	return err == nil
}

// FetchDeals enumerates deals in r, resolves owners and enriches every
// deal. Enumeration failures are fatal; everything after is per-item.
func (p *Pipeline) FetchDeals(ctx context.Context, r deals.DateRange) ([]*model.Deal, []model.PhaseResult, error) {
	t := newTracker(zap.L().With(zap.String("invocation", "fetch"), zap.String("range", r.String())))

	ds, err := p.enumerate(ctx, t, r)
	if err != nil {
		return nil, t.phases, err
	}
	p.resolveOwners(ctx, t, ds)

	var enriched []*model.Deal
	err = t.run("enrich", func() (int, error) {
		var stats enrich.Stats
		var err error
		enriched, stats, err = p.enricher().Enrich(ctx, ds)
		return stats.Enriched, err
	})
	if err != nil {
		return nil, t.phases, err
	}
	return enriched, t.phases, nil
}

func (p *Pipeline) enumerate(ctx context.Context, t *tracker, r deals.DateRange) ([]*model.Deal, error) {
	var ds []*model.Deal
	err := t.run("enumerate", func() (int, error) {
		e := deals.NewEnumerator(p.crm, deals.Options{
			Pipeline:   p.cfg.Deals.Pipeline,
			PageSize:   p.cfg.Deals.PageSize,
			Properties: p.cfg.Deals.Properties,
		})
		var err error
		ds, err = e.Fetch(ctx, r)
		return len(ds), err
	})
	return ds, err
}

// resolveOwners uses a fresh cache so owner details never outlive one
// invocation.
func (p *Pipeline) resolveOwners(ctx context.Context, t *tracker, ds []*model.Deal) {
	_ = t.run("owners", func() (int, error) {
		res := owner.NewResolver(p.crm, owner.NewCache(), p.cfg.Owners.Concurrency)
		res.ResolveAll(ctx, ds, p.cfg.Owners.Properties)
		return res.Cache().Len(), nil
	})
}

func (p *Pipeline) enricher() *enrich.Pipeline {
	return enrich.New(p.crm, p.extractor, enrich.Options{
		BatchSize:      p.cfg.Enrich.BatchSize,
		BatchDelay:     p.cfg.Enrich.BatchDelay(),
		EngagementType: p.cfg.Enrich.EngagementType,
		Scheduling:     enrich.Scheduling(p.cfg.Enrich.Scheduling),
	})
}

// tracker times and logs phases.
type tracker struct {
	log    *zap.Logger
	phases []model.PhaseResult
}

func newTracker(log *zap.Logger) *tracker {
	return &tracker{log: log}
}

func (t *tracker) run(name string, fn func() (int, error)) error {
	start := time.Now()
	n, err := fn()
	pr := model.PhaseResult{
		Name:     name,
		Status:   model.PhaseStatusComplete,
		Duration: time.Since(start).Milliseconds(),
		Count:    n,
	}
	if err != nil {
		pr.Status = model.PhaseStatusFailed
		pr.Error = err.Error()
		t.log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", pr.Duration),
			zap.Error(err),
		)
	} else {
		t.log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", pr.Duration),
			zap.Int("count", n),
		)
	}
	t.phases = append(t.phases, pr)
	return err
}

func (t *tracker) skip(name string) {
	t.phases = append(t.phases, model.PhaseResult{Name: name, Status: model.PhaseStatusSkipped})
	t.log.Info("pipeline: phase skipped", zap.String("phase", name))
}

var errNoBackend = eris.New("pipeline: no classification backend configured")
