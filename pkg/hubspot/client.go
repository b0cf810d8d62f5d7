// Package hubspot is a rate-limited client for the HubSpot CRM REST API.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/deal-enricher/internal/model"
	"github.com/sells-group/deal-enricher/internal/resilience"
)

const (
	defaultBaseURL   = "https://api.hubapi.com"
	defaultUserAgent = "deal-enricher/1.0"
	defaultRate      = rate.Limit(10)
	defaultBurst     = 10
)

// Client defines the HubSpot operations used by the enrichment pipeline.
type Client interface {
	SearchDeals(ctx context.Context, req SearchRequest) (*DealPage, error)
	SearchNotes(ctx context.Context, dealID string) ([]model.Note, error)
	GetOwner(ctx context.Context, ownerID string) (*model.Owner, error)
	GetFileSignedURL(ctx context.Context, fileID string) (*SignedURL, error)
	DownloadFile(ctx context.Context, signedURL string) ([]byte, error)
	ListEngagements(ctx context.Context, dealID string, offset int64) (*EngagementPage, error)
	GetPipeline(ctx context.Context, pipelineID string) (*Pipeline, error)
	GetDealStageHistory(ctx context.Context, dealID string) ([]PropertyVersion, error)
	UpdateDeal(ctx context.Context, dealID string, props map[string]string) error
	GetDealProperties(ctx context.Context) ([]PropertyDefinition, error)
}

// APIError is returned when HubSpot responds with a non-2xx status. It is
// always wrapped in a resilience.TransientError or resilience.PermanentError.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout without replacing the pooled
// transport.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetry sets the retry policy applied to every request.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithRateLimit sets the request admission rate in requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = resilience.NewAdaptiveLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	token     string
	baseURL   string
	userAgent string
	http      *http.Client
	retry     resilience.RetryConfig
	limiter   *resilience.AdaptiveLimiter
}

// NewClient creates a new HubSpot client authenticated with a private app token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:     token,
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry:   resilience.DefaultRetryConfig(),
		limiter: resilience.NewAdaptiveLimiter(defaultRate, defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request describes one logical API call. body is re-sent on every attempt.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	raw    bool // absolute URL, no auth header, response returned as bytes
}

func (c *httpClient) call(ctx context.Context, op string, r request, out any) error {
	var payload []byte
	if r.body != nil {
		buf, err := json.Marshal(r.body)
		if err != nil {
			return eris.Wrap(err, "hubspot: marshal request")
		}
		payload = buf
	}

	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("hubspot", op)
	}

	data, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return c.once(ctx, r, payload)
	})
	if err != nil {
		return err
	}

	switch dst := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*dst = data
		return nil
	default:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrapf(err, "hubspot: decode %s response", op)
		}
		return nil
	}
}

func (c *httpClient) once(ctx context.Context, r request, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "hubspot: rate limiter")
	}

	target := r.path
	if !r.raw {
		target = c.baseURL + r.path
	}
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, resilience.NewPermanentError(eris.Wrap(err, "hubspot: create request"), 0)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !r.raw {
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if r.raw && errors.As(err, &urlErr) {
			urlErr.URL = redactQuery(urlErr.URL)
		}
		err = eris.Wrap(err, "hubspot: execute request")
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "hubspot: read response body"), resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Method:     r.method,
			Path:       r.logPath(),
			Body:       truncate(string(data), 512),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.OnRateLimit()
			return nil, &resilience.TransientError{
				Err:        apiErr,
				StatusCode: resp.StatusCode,
				RetryAfter: resilience.ParseRetryAfter(resp.Header),
			}
		}
		return nil, resilience.ClassifyHTTPStatus(resp.StatusCode, apiErr)
	}

	c.limiter.OnSuccess()
	return data, nil
}

// logPath is the request path safe to log. Signed download URLs carry their
// credentials in the query string.
func (r request) logPath() string {
	if r.raw {
		return redactQuery(r.path)
	}
	return r.path
}

func redactQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
