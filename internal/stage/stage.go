// Package stage resolves each deal's pipeline stage history into labelled,
// time-ordered transitions.
package stage

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/deal-enricher/internal/model"
	"github.com/sells-group/deal-enricher/pkg/hubspot"
)

// UnknownPolicy decides what happens to history entries whose stage ID is
// not in the pipeline definition.
type UnknownPolicy string

const (
	// UnknownDrop omits unmapped entries.
	UnknownDrop UnknownPolicy = "drop"
	// UnknownPlaceholder keeps them under a placeholder label.
	UnknownPlaceholder UnknownPolicy = "placeholder"
)

// DefaultPlaceholder labels unmapped stages under UnknownPlaceholder when
// Options.Placeholder is empty.
const DefaultPlaceholder = "Unknown Stage"

// Source is the subset of the CRM client the resolver needs.
type Source interface {
	GetPipeline(ctx context.Context, pipelineID string) (*hubspot.Pipeline, error)
	GetDealStageHistory(ctx context.Context, dealID string) ([]hubspot.PropertyVersion, error)
}

// Options configures the Resolver.
type Options struct {
	PipelineID  string
	Unknown     UnknownPolicy
	Placeholder string
	BatchSize   int
	BatchDelay  time.Duration
}

// Resolver attaches deal_stage_history to deals.
type Resolver struct {
	src   Source
	opts  Options
	sleep func(ctx context.Context, d time.Duration) error
}

// NewResolver creates a Resolver with defaults filled in.
func NewResolver(src Source, opts Options) *Resolver {
	if opts.PipelineID == "" {
		opts.PipelineID = "default"
	}
	if opts.Unknown == "" {
		opts.Unknown = UnknownDrop
	}
	if opts.Placeholder == "" {
		opts.Placeholder = DefaultPlaceholder
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	return &Resolver{src: src, opts: opts, sleep: sleepCtx}
}

// Labels fetches the stage ID → label mapping of the configured pipeline.
func (r *Resolver) Labels(ctx context.Context) (map[string]string, error) {
	p, err := r.src.GetPipeline(ctx, r.opts.PipelineID)
	if err != nil {
		return nil, eris.Wrap(err, "stage: load pipeline labels")
	}
	return p.StageLabels(), nil
}

// Resolve loads the label mapping once, then each deal's history in
// bounded batches. A deal whose history fetch fails gets an empty history.
func (r *Resolver) Resolve(ctx context.Context, deals []*model.Deal) error {
	labels, err := r.Labels(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(deals); start += r.opts.BatchSize {
		end := min(start+r.opts.BatchSize, len(deals))

		g, gctx := errgroup.WithContext(ctx)
		for _, d := range deals[start:end] {
			g.Go(func() error {
				versions, err := r.src.GetDealStageHistory(gctx, d.ID)
				if err != nil {
					zap.L().Warn("stage: history fetch failed",
						zap.String("deal_id", d.ID),
						zap.Error(err),
					)
					d.StageHistory = []model.StageTransition{}
					return nil
				}
				d.StageHistory = r.Label(versions, labels)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(deals) && r.opts.BatchDelay > 0 {
			if err := r.sleep(ctx, r.opts.BatchDelay); err != nil {
				return eris.Wrap(err, "stage: interrupted between batches")
			}
		}
	}
	return nil
}

// Label converts raw versions into transitions sorted by timestamp,
// applying the unknown-stage policy.
func (r *Resolver) Label(versions []hubspot.PropertyVersion, labels map[string]string) []model.StageTransition {
	out := make([]model.StageTransition, 0, len(versions))
	for _, v := range versions {
		name, ok := labels[v.Value]
		if !ok {
			if r.opts.Unknown == UnknownDrop {
				continue
			}
			name = r.opts.Placeholder
		}
		out = append(out, model.StageTransition{
			StageID:   v.Value,
			StageName: name,
			Timestamp: v.Timestamp,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
