package pipeline

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/deal-enricher/internal/deals"
	"github.com/sells-group/deal-enricher/internal/model"
	"github.com/sells-group/deal-enricher/internal/report"
	"github.com/sells-group/deal-enricher/internal/stage"
)

// ExportResult is a rendered CSV export.
type ExportResult struct {
	Filename string
	Data     *bytes.Buffer
	Rows     int
	Phases   []model.PhaseResult
}

// Export enumerates deals in r, resolves owners and stage history, and
// renders the CSV export. Only enumeration and the pipeline stage lookup
// are fatal.
func (p *Pipeline) Export(ctx context.Context, r deals.DateRange) (*ExportResult, error) {
	t := newTracker(zap.L().With(zap.String("invocation", "export"), zap.String("range", r.String())))
	res := &ExportResult{}
	defer func() { res.Phases = t.phases }()

	ds, err := p.enumerate(ctx, t, r)
	if err != nil {
		return res, err
	}
	p.resolveOwners(ctx, t, ds)

	err = t.run("stage_history", func() (int, error) {
		sr := stage.NewResolver(p.crm, stage.Options{
			PipelineID:  p.cfg.Stage.PipelineID,
			Unknown:     stage.UnknownPolicy(p.cfg.Stage.UnknownLabel),
			Placeholder: p.cfg.Stage.PlaceholderLabel,
			BatchSize:   p.cfg.Stage.BatchSize,
			BatchDelay:  p.cfg.Stage.BatchDelay(),
		})
		return len(ds), sr.Resolve(ctx, ds)
	})
	if err != nil {
		return res, err
	}

	funds := report.FundLabels{}
	_ = t.run("fund_labels", func() (int, error) {
		defs, err := p.crm.GetDealProperties(ctx)
		if err != nil {
			// Raw fund values are exported instead.
			t.log.Warn("pipeline: deal properties unavailable", zap.Error(err))
			return 0, nil
		}
		funds = report.FundLabelsFrom(defs)
		return len(funds), nil
	})

	err = t.run("render", func() (int, error) {
		ex := report.NewExporter(p.cfg.Export.ExcludeColumns)
		ex.SetClock(p.now)
		var err error
		res.Data, res.Filename, err = ex.Export(ds, r, funds)
		return len(ds), err
	})
	if err != nil {
		return res, err
	}
	res.Rows = len(ds)
	return res, nil
}
