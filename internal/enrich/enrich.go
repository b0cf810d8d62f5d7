// Package enrich attaches notes, attachment text and email engagements to
// deals, running per-deal work concurrently under a fixed concurrency bound.
package enrich

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/deal-enricher/internal/model"
	"github.com/sells-group/deal-enricher/pkg/hubspot"
)

// Scheduling selects how per-deal tasks are admitted.
type Scheduling string

const (
	// Batched runs fixed-size batches one after another with a pause between them.
	Batched Scheduling = "batched"
	// Pooled keeps up to BatchSize tasks in flight, pacing task starts to
	// BatchSize per BatchDelay.
	Pooled Scheduling = "pooled"
)

// Source is the subset of the CRM client enrichment needs.
type Source interface {
	SearchNotes(ctx context.Context, dealID string) ([]model.Note, error)
	ListEngagements(ctx context.Context, dealID string, offset int64) (*hubspot.EngagementPage, error)
	GetFileSignedURL(ctx context.Context, fileID string) (*hubspot.SignedURL, error)
	DownloadFile(ctx context.Context, signedURL string) ([]byte, error)
}

// TextExtractor turns attachment bytes into text.
type TextExtractor interface {
	Supports(ext string) bool
	Extract(ctx context.Context, ext, name string, data []byte) (string, error)
}

// Options configures the Pipeline.
type Options struct {
	BatchSize      int
	BatchDelay     time.Duration
	EngagementType string
	Scheduling     Scheduling
}

// Stats summarizes one Enrich call.
type Stats struct {
	Deals              int
	Enriched           int
	Failed             int
	Attachments        int
	AttachmentFailures int
}

// Pipeline enriches deals.
type Pipeline struct {
	src       Source
	extractor TextExtractor
	opts      Options
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a Pipeline with defaults filled in.
func New(src Source, extractor TextExtractor, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 4
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	if opts.EngagementType == "" {
		opts.EngagementType = "EMAIL"
	}
	if opts.Scheduling == "" {
		opts.Scheduling = Batched
	}
	return &Pipeline{src: src, extractor: extractor, opts: opts, sleep: sleepCtx}
}

// result is the outcome of one per-deal task, stored by input position.
type result struct {
	notes              []model.Note
	attachments        []string
	engagements        []model.Engagement
	attachmentFailures int
	err                error
}

// Enrich runs one task per deal and merges each result back into the deal
// at the same position. A failing task never affects other deals: the deal
// keeps empty enrichment fields and EnrichmentError is set. The only error
// returned is context cancellation while waiting to admit more work.
func (p *Pipeline) Enrich(ctx context.Context, deals []*model.Deal) ([]*model.Deal, Stats, error) {
	results := make([]result, len(deals))

	var err error
	switch p.opts.Scheduling {
	case Pooled:
		err = p.runPooled(ctx, deals, results)
	default:
		err = p.runBatched(ctx, deals, results)
	}

	stats := merge(deals, results)
	zap.L().Info("enrich: complete",
		zap.Int("deals", stats.Deals),
		zap.Int("enriched", stats.Enriched),
		zap.Int("failed", stats.Failed),
		zap.Int("attachments", stats.Attachments),
		zap.Int("attachment_failures", stats.AttachmentFailures),
	)
	if err != nil {
		return deals, stats, eris.Wrap(err, "enrich: interrupted")
	}
	return deals, stats, nil
}

func (p *Pipeline) runBatched(ctx context.Context, deals []*model.Deal, results []result) error {
	size := p.opts.BatchSize
	batches := (len(deals) + size - 1) / size

	for b := 0; b < batches; b++ {
		start := b * size
		end := min(start+size, len(deals))

		zap.L().Debug("enrich: batch start",
			zap.Int("batch", b+1),
			zap.Int("of", batches),
			zap.Int("deals", end-start),
		)

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = p.run(ctx, deals[i])
				return nil
			})
		}
		_ = g.Wait()

		if b < batches-1 && p.opts.BatchDelay > 0 {
			if err := p.sleep(ctx, p.opts.BatchDelay); err != nil {
				markSkipped(results[end:], err)
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) runPooled(ctx context.Context, deals []*model.Deal, results []result) error {
	var g errgroup.Group
	g.SetLimit(p.opts.BatchSize)

	limit := rate.Inf
	if p.opts.BatchDelay > 0 {
		limit = rate.Every(p.opts.BatchDelay / time.Duration(p.opts.BatchSize))
	}
	admit := rate.NewLimiter(limit, p.opts.BatchSize)

	for i := range deals {
		if err := admit.Wait(ctx); err != nil {
			_ = g.Wait()
			markSkipped(results[i:], err)
			return err
		}
		g.Go(func() error {
			results[i] = p.run(ctx, deals[i])
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

// run wraps the per-deal task with logging; it never fails.
func (p *Pipeline) run(ctx context.Context, d *model.Deal) result {
	res, err := p.enrichDeal(ctx, d.ID)
	if err != nil {
		zap.L().Warn("enrich: deal failed",
			zap.String("deal_id", d.ID),
			zap.String("deal_name", d.Name()),
			zap.Error(err),
		)
		return result{err: err}
	}
	return res
}

// enrichDeal fetches notes and engagements concurrently, then every
// attachment of every note concurrently. Attachment failures are logged and
// skipped; note or engagement failures fail the deal.
func (p *Pipeline) enrichDeal(ctx context.Context, dealID string) (result, error) {
	var res result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		notes, err := p.src.SearchNotes(gctx, dealID)
		if err != nil {
			return eris.Wrap(err, "notes")
		}
		res.notes = notes
		return nil
	})
	g.Go(func() error {
		engagements, err := p.engagements(gctx, dealID)
		if err != nil {
			return eris.Wrap(err, "engagements")
		}
		res.engagements = engagements
		return nil
	})
	if err := g.Wait(); err != nil {
		return result{}, eris.Wrapf(err, "enrich: deal %s", dealID)
	}

	var ids []string
	for _, n := range res.notes {
		ids = append(ids, n.AttachmentIDs()...)
	}

	texts := make([]string, len(ids))
	ok := make([]bool, len(ids))
	var failures atomic.Int32
	var ag errgroup.Group
	for i, id := range ids {
		ag.Go(func() error {
			text, err := p.attachment(ctx, id)
			if err != nil {
				failures.Add(1)
				zap.L().Warn("enrich: attachment skipped",
					zap.String("deal_id", dealID),
					zap.String("file_id", id),
					zap.Error(err),
				)
				return nil
			}
			texts[i], ok[i] = text, true
			return nil
		})
	}
	_ = ag.Wait()

	res.attachments = make([]string, 0, len(ids))
	for i := range ids {
		if ok[i] {
			res.attachments = append(res.attachments, texts[i])
		}
	}
	res.attachmentFailures = int(failures.Load())
	return res, nil
}

// engagements pages through associated engagements, keeping only the
// configured type.
func (p *Pipeline) engagements(ctx context.Context, dealID string) ([]model.Engagement, error) {
	out := []model.Engagement{}
	var offset int64
	for {
		page, err := p.src.ListEngagements(ctx, dealID, offset)
		if err != nil {
			return nil, err
		}
		for _, e := range page.Results {
			if e.Engagement.Type == p.opts.EngagementType {
				out = append(out, e)
			}
		}
		if !page.HasMore || page.Offset == offset {
			return out, nil
		}
		offset = page.Offset
	}
}

func (p *Pipeline) attachment(ctx context.Context, fileID string) (string, error) {
	su, err := p.src.GetFileSignedURL(ctx, fileID)
	if err != nil {
		return "", err
	}
	if !p.extractor.Supports(su.Extension) {
		return "", eris.Errorf("enrich: unsupported attachment type %q (%s)", su.Extension, su.Name)
	}
	data, err := p.src.DownloadFile(ctx, su.URL)
	if err != nil {
		return "", err
	}
	return p.extractor.Extract(ctx, su.Extension, su.Name, data)
}

func merge(deals []*model.Deal, results []result) Stats {
	stats := Stats{Deals: len(deals)}
	for i, d := range deals {
		res := results[i]
		if res.err != nil {
			stats.Failed++
			d.Notes, d.Attachments, d.Engagements = []model.Note{}, []string{}, []model.Engagement{}
			d.EnrichmentError = res.err.Error()
			continue
		}
		stats.Enriched++
		stats.Attachments += len(res.attachments)
		stats.AttachmentFailures += res.attachmentFailures
		d.Notes, d.Attachments, d.Engagements = res.notes, res.attachments, res.engagements
		d.EnrichmentError = ""
		d.EnsureEnrichment()
	}
	return stats
}

func markSkipped(results []result, err error) {
	for i := range results {
		results[i] = result{err: eris.Wrap(err, "enrich: not started")}
	}
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
