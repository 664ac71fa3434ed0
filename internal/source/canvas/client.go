package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/studysync/internal/source"
)

const (
	// maxPageSize is the largest per_page Canvas honours.
	maxPageSize = 100

	defaultMaxPages = 50
)

// Client is a thin HTTP client for the Canvas LMS REST API v1. It handles
// Bearer token authentication, JSON decoding and Link-header pagination.
// It never retries.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	pageSize   int
	maxPages   int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPaging sets the page size (capped at 100) and the maximum number of
// pages followed per listing.
func WithPaging(pageSize, maxPages int) Option {
	return func(c *Client) {
		if pageSize > 0 && pageSize <= maxPageSize {
			c.pageSize = pageSize
		}
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a Canvas client. The baseURL is the root URL of the
// Canvas instance (e.g., https://canvas.example.edu); the token is a user
// access token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		pageSize: maxPageSize,
		maxPages: defaultMaxPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	query url.Values,
	result interface{},
) error {
	_, err := c.do(ctx, c.baseURL+path+encodeQuery(query), result)
	return err
}

// getAll fetches every page of a listing endpoint, following the
// rel="next" Link header until it is absent or maxPages is reached.
func getAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", strconv.Itoa(c.pageSize))

	var out []T
	next := c.baseURL + path + encodeQuery(query)
	for page := 0; next != "" && page < c.maxPages; page++ {
		var items []T
		header, err := c.do(ctx, next, &items)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		next = nextLink(header.Get("Link"))
		if next != "" && !c.sameOrigin(next) {
			return nil, fmt.Errorf("next page link %s leaves %s", redact(next), c.baseURL)
		}
	}
	return out, nil
}

// sameOrigin reports whether rawURL points at the configured instance, so
// the token is only ever sent there.
func (c *Client) sameOrigin(rawURL string) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}

// do is the core HTTP method: it builds the request, sets auth headers,
// maps non-2xx responses to *source.RemoteError and decodes JSON.
func (c *Client) do(
	ctx context.Context,
	rawURL string,
	result interface{},
) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request GET %s: %w", redact(rawURL), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &source.RemoteError{
			Kind:       source.KindLMS,
			Op:         "GET " + redact(rawURL),
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return resp.Header, nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return nil, fmt.Errorf("unmarshaling response from GET %s: %w", redact(rawURL), err)
	}

	return resp.Header, nil
}

// nextLink extracts the rel="next" URL from an RFC 8288 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		target := strings.TrimSpace(segs[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segs[1:] {
			param = strings.TrimSpace(param)
			if param == `rel="next"` || param == "rel=next" {
				return target[1 : len(target)-1]
			}
		}
	}
	return ""
}

func encodeQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// redact drops the query string, which may carry an access_token.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
