// Package rest implements lims.Client over the LIMS HTTP API.
//
// Successful GET responses are kept in an in-memory expiring cache keyed by
// request path and query, so repeated lookups within the TTL may be stale.
// Call Invalidate to force fresh reads.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gopkg.in/resty.v1"

	"seqtrack/internal/infra/lims/wire"
	"seqtrack/pkg/lims"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultCacheSize = 4096
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	// CacheTTL of zero disables response caching.
	CacheTTL  time.Duration
	CacheSize int
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client talks to the LIMS REST API.
type Client struct {
	http  *resty.Client
	cache *expirable.LRU[string, []byte]
}

var _ lims.Client = (*Client)(nil)

// New constructs a Client. Zero-valued timeout and cache size fall back to
// 30s and 4096 entries.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("rest: base URL required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	hc := resty.New()
	if opts.Transport != nil {
		hc = resty.NewWithClient(&http.Client{Transport: opts.Transport})
	}
	hc.SetHostURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	if opts.Username != "" {
		hc.SetBasicAuth(opts.Username, opts.Password)
	}
	c := &Client{http: hc}
	if opts.CacheTTL > 0 {
		c.cache = expirable.NewLRU[string, []byte](opts.CacheSize, nil, opts.CacheTTL)
	}
	return c, nil
}

// Invalidate drops every cached response.
func (c *Client) Invalidate() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

// Sample fetches one sample.
func (c *Client) Sample(ctx context.Context, id string) (lims.Sample, error) {
	var ws wire.Sample
	if err := c.get(ctx, "sample", "/samples/"+url.PathEscape(id), nil, &ws); err != nil {
		return lims.Sample{}, err
	}
	return ws.ToSample(), nil
}

// Artifact fetches one artifact with its parent execution.
func (c *Client) Artifact(ctx context.Context, id string) (lims.Artifact, error) {
	var wa wire.Artifact
	if err := c.get(ctx, "artifact", "/artifacts/"+url.PathEscape(id), nil, &wa); err != nil {
		return lims.Artifact{}, err
	}
	art, err := wa.ToArtifact()
	if err != nil {
		return lims.Artifact{}, &lims.DataSourceError{Op: "artifact", Err: err}
	}
	return art, nil
}

// Artifacts lists output artifacts of the queried steps.
func (c *Client) Artifacts(ctx context.Context, q lims.ArtifactQuery) ([]lims.Artifact, error) {
	params := url.Values{}
	if q.SampleID != "" {
		params.Set("sample", q.SampleID)
	}
	for _, step := range q.StepNames {
		params.Add("step", step)
	}
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	var was []wire.Artifact
	if err := c.get(ctx, "artifacts", "/artifacts", params, &was); err != nil {
		return nil, err
	}
	out := make([]lims.Artifact, 0, len(was))
	for _, wa := range was {
		art, err := wa.ToArtifact()
		if err != nil {
			return nil, &lims.DataSourceError{Op: "artifacts", Err: err}
		}
		out = append(out, art)
	}
	return out, nil
}

// Processes lists executions matching q.
func (c *Client) Processes(ctx context.Context, q lims.ProcessQuery) ([]lims.ProcessExecution, error) {
	params := url.Values{}
	for _, step := range q.StepNames {
		params.Add("step", step)
	}
	if q.InputArtifactID != "" {
		params.Set("input", q.InputArtifactID)
	}
	for k, v := range q.Attributes {
		params.Set("attr."+k, v)
	}
	var wes []wire.Execution
	if err := c.get(ctx, "processes", "/processes", params, &wes); err != nil {
		return nil, err
	}
	out := make([]lims.ProcessExecution, 0, len(wes))
	for _, we := range wes {
		e, err := we.ToExecution()
		if err != nil {
			return nil, &lims.DataSourceError{Op: "processes", Err: err}
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	key := path
	if len(params) > 0 {
		key += "?" + params.Encode()
	}
	if c.cache != nil {
		if body, ok := c.cache.Get(key); ok {
			return decode(op, body, out)
		}
	}
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetMultiValueQueryParams(params)
	}
	resp, err := req.Get(path)
	if err := checkResponse(op, path, resp, err); err != nil {
		return err
	}
	body := resp.Body()
	if err := decode(op, body, out); err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Add(key, body)
	}
	return nil
}

func decode(op string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &lims.DataSourceError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func checkResponse(op, path string, resp *resty.Response, err error) error {
	switch {
	case err != nil:
		return &lims.DataSourceError{Op: op, Err: err}
	case resp.StatusCode() == http.StatusUnauthorized:
		return &lims.DataSourceError{Op: op, Err: lims.ErrUnauthorized}
	case resp.StatusCode() == http.StatusNotFound:
		return &lims.DataSourceError{Op: op, Err: fmt.Errorf("%s: %w", path, lims.ErrNotFound)}
	case resp.StatusCode() > 299:
		return &lims.DataSourceError{Op: op, Err: errorFromResponse(path, resp)}
	default:
		return nil
	}
}

func errorFromResponse(path string, resp *resty.Response) error {
	var er struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &er); err != nil || er.Error == "" {
		return fmt.Errorf("%s (HTTP status %d)", path, resp.StatusCode())
	}
	return fmt.Errorf("%s (HTTP status %d): %s", path, resp.StatusCode(), er.Error)
}
