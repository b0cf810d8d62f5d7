package hubspot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-enricher/internal/model"
)

// Search filter operators.
const (
	OpEQ      = "EQ"
	OpBetween = "BETWEEN"
)

// SearchRequest is the body for POST /crm/v3/objects/{type}/search.
type SearchRequest struct {
	FilterGroups []FilterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties,omitempty"`
	Limit        int           `json:"limit,omitempty"`
	After        string        `json:"after,omitempty"`
}

// FilterGroup is a conjunction of filters.
type FilterGroup struct {
	Filters []Filter `json:"filters"`
}

// Filter is one search predicate.
type Filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value,omitempty"`
	HighValue    string `json:"highValue,omitempty"`
}

// Paging carries the cursor for the next search page.
type Paging struct {
	Next *PagingNext `json:"next,omitempty"`
}

// PagingNext holds the opaque cursor.
type PagingNext struct {
	After string `json:"after"`
}

// NextAfter returns the next-page cursor, or "" on the last page.
func (p *Paging) NextAfter() string {
	if p == nil || p.Next == nil {
		return ""
	}
	return p.Next.After
}

// DealPage is one page of deal search results.
type DealPage struct {
	Total   int          `json:"total"`
	Results []model.Deal `json:"results"`
	Paging  *Paging      `json:"paging,omitempty"`
}

// PropertyVersion is one historical value of a deal property.
type PropertyVersion struct {
	Value      string    `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	SourceType string    `json:"sourceType,omitempty"`
}

// PropertyDefinition describes a deal property and its enumeration options.
type PropertyDefinition struct {
	Name    string           `json:"name"`
	Label   string           `json:"label"`
	Type    string           `json:"type"`
	Options []PropertyOption `json:"options"`
}

// PropertyOption is one option of an enumeration property.
type PropertyOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

func (c *httpClient) SearchDeals(ctx context.Context, req SearchRequest) (*DealPage, error) {
	var page DealPage
	err := c.call(ctx, "search_deals", request{
		method: http.MethodPost,
		path:   "/crm/v3/objects/deals/search",
		body:   req,
	}, &page)
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: search deals (after=%q)", req.After)
	}
	return &page, nil
}

func (c *httpClient) GetDealStageHistory(ctx context.Context, dealID string) ([]PropertyVersion, error) {
	var resp struct {
		PropertiesWithHistory map[string][]PropertyVersion `json:"propertiesWithHistory"`
	}
	err := c.call(ctx, "deal_stage_history", request{
		method: http.MethodGet,
		path:   "/crm/v3/objects/deals/" + url.PathEscape(dealID),
		query:  url.Values{"propertiesWithHistory": {model.PropDealStage}},
	}, &resp)
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: get stage history for deal %s", dealID)
	}
	return resp.PropertiesWithHistory[model.PropDealStage], nil
}

type propertyValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (c *httpClient) UpdateDeal(ctx context.Context, dealID string, props map[string]string) error {
	body := struct {
		Properties []propertyValue `json:"properties"`
	}{}
	for name, value := range props {
		body.Properties = append(body.Properties, propertyValue{Name: name, Value: value})
	}

	err := c.call(ctx, "update_deal", request{
		method: http.MethodPut,
		path:   fmt.Sprintf("/deals/v1/deal/%s", url.PathEscape(dealID)),
		body:   body,
	}, nil)
	if err != nil {
		return eris.Wrapf(err, "hubspot: update deal %s", dealID)
	}
	return nil
}

func (c *httpClient) GetDealProperties(ctx context.Context) ([]PropertyDefinition, error) {
	var defs []PropertyDefinition
	err := c.call(ctx, "deal_properties", request{
		method: http.MethodGet,
		path:   "/properties/v1/deals/properties/",
	}, &defs)
	if err != nil {
		return nil, eris.Wrap(err, "hubspot: get deal properties")
	}
	return defs, nil
}
