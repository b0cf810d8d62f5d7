package hubspot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-enricher/internal/model"
)

const notesPageSize = 100

// NoteProperties is the property set requested for notes.
var NoteProperties = []string{model.PropNoteBody, model.PropAttachmentIDs}

type notePage struct {
	Results []model.Note `json:"results"`
	Paging  *Paging      `json:"paging,omitempty"`
}

// EngagementPage is one page of the legacy associated-engagements listing.
type EngagementPage struct {
	Results []model.Engagement `json:"results"`
	HasMore bool               `json:"hasMore"`
	Offset  int64              `json:"offset"`
}

// SignedURL is a short-lived download location for a file-manager file.
type SignedURL struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Size      int64  `json:"size,omitempty"`
}

func (c *httpClient) SearchNotes(ctx context.Context, dealID string) ([]model.Note, error) {
	req := SearchRequest{
		FilterGroups: []FilterGroup{{Filters: []Filter{{
			PropertyName: "associations.deal",
			Operator:     OpEQ,
			Value:        dealID,
		}}}},
		Properties: NoteProperties,
		Limit:      notesPageSize,
	}

	notes := []model.Note{}
	for {
		var page notePage
		err := c.call(ctx, "search_notes", request{
			method: http.MethodPost,
			path:   "/crm/v3/objects/notes/search",
			body:   req,
		}, &page)
		if err != nil {
			return nil, eris.Wrapf(err, "hubspot: search notes for deal %s", dealID)
		}
		notes = append(notes, page.Results...)

		if req.After = page.Paging.NextAfter(); req.After == "" {
			return notes, nil
		}
	}
}

func (c *httpClient) GetOwner(ctx context.Context, ownerID string) (*model.Owner, error) {
	var o model.Owner
	err := c.call(ctx, "get_owner", request{
		method: http.MethodGet,
		path:   "/owners/v2/owners/" + url.PathEscape(ownerID),
	}, &o)
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: get owner %s", ownerID)
	}
	return &o, nil
}

func (c *httpClient) GetFileSignedURL(ctx context.Context, fileID string) (*SignedURL, error) {
	var su SignedURL
	err := c.call(ctx, "file_signed_url", request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/filemanager/api/v3/files/%s/signed-url", url.PathEscape(fileID)),
	}, &su)
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: get signed url for file %s", fileID)
	}
	if su.URL == "" {
		return nil, eris.Errorf("hubspot: signed url for file %s is empty", fileID)
	}
	return &su, nil
}

func (c *httpClient) DownloadFile(ctx context.Context, signedURL string) ([]byte, error) {
	var data []byte
	err := c.call(ctx, "download_file", request{
		method: http.MethodGet,
		path:   signedURL,
		raw:    true,
	}, &data)
	if err != nil {
		return nil, eris.Wrap(err, "hubspot: download file")
	}
	return data, nil
}

func (c *httpClient) ListEngagements(ctx context.Context, dealID string, offset int64) (*EngagementPage, error) {
	var page EngagementPage
	err := c.call(ctx, "list_engagements", request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/engagements/v1/engagements/associated/deal/%s/paged", url.PathEscape(dealID)),
		query: url.Values{
			"limit":  {"100"},
			"offset": {strconv.FormatInt(offset, 10)},
		},
	}, &page)
	if err != nil {
		return nil, eris.Wrapf(err, "hubspot: list engagements for deal %s (offset=%d)", dealID, offset)
	}
	return &page, nil
}
