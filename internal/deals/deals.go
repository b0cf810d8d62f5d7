// Package deals enumerates CRM deals created inside a date window.
package deals

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-enricher/internal/model"
	"github.com/sells-group/deal-enricher/pkg/hubspot"
)

// Searcher runs one deal search page.
type Searcher interface {
	SearchDeals(ctx context.Context, req hubspot.SearchRequest) (*hubspot.DealPage, error)
}

// Options configures the Enumerator.
type Options struct {
	Pipeline   string
	PageSize   int
	Properties []string
}

// Enumerator pages through deal search results.
type Enumerator struct {
	client Searcher
	opts   Options
}

// NewEnumerator creates an Enumerator with defaults filled in.
func NewEnumerator(client Searcher, opts Options) *Enumerator {
	if opts.Pipeline == "" {
		opts.Pipeline = "default"
	}
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 100
	}
	if len(opts.Properties) == 0 {
		opts.Properties = model.DefaultDealProperties
	}
	return &Enumerator{client: client, opts: opts}
}

// Request builds the search body for one page.
func (e *Enumerator) Request(r DateRange, after string) hubspot.SearchRequest {
	return hubspot.SearchRequest{
		FilterGroups: []hubspot.FilterGroup{{Filters: []hubspot.Filter{
			{
				PropertyName: "createdate",
				Operator:     hubspot.OpBetween,
				Value:        r.StartMillis(),
				HighValue:    r.EndMillis(),
			},
			{
				PropertyName: "pipeline",
				Operator:     hubspot.OpEQ,
				Value:        e.opts.Pipeline,
			},
		}}},
		Properties: e.opts.Properties,
		Limit:      e.opts.PageSize,
		After:      after,
	}
}

// Fetch returns every deal in the window, in result order. Each page is
// retried by the client; a page that still fails aborts enumeration.
func (e *Enumerator) Fetch(ctx context.Context, r DateRange) ([]*model.Deal, error) {
	var (
		out   []*model.Deal
		after string
		pages int
	)
	for {
		page, err := e.client.SearchDeals(ctx, e.Request(r, after))
		if err != nil {
			return nil, eris.Wrapf(err, "deals: fetch page %d", pages+1)
		}
		pages++
		for i := range page.Results {
			out = append(out, &page.Results[i])
		}

		if after = page.Paging.NextAfter(); after == "" {
			break
		}
	}

	zap.L().Info("deals: enumerated",
		zap.String("range", r.String()),
		zap.Int("pages", pages),
		zap.Int("deals", len(out)),
	)
	return out, nil
}
