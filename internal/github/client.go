// Package github talks to the GitHub GraphQL API: named queries, cursor
// pagination, retries on rate limits and a per-run response cache.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"

	"wakareadme/internal/debug"
	"wakareadme/internal/metrics"
)

const (
	defaultAPIURL    = "https://api.github.com"
	defaultRetries   = 10
	defaultPageTries = 20
	maxBackoff       = 300 * time.Second
	fallbackRateWait = 60 * time.Second
	pageSize         = 100
)

// QueryError is a GraphQL request that failed for good.
type QueryError struct {
	Query  string
	Status int
	Body   string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query '%s' failed to run by returning code of %d: %s", e.Query, e.Status, e.Body)
}

// RateLimitError is returned once every retry for a rate-limited query is spent.
type RateLimitError struct {
	Query    string
	Attempts int
	Message  string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for '%s' after %d attempts: %s", e.Query, e.Attempts, e.Message)
}

type GraphQLError struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Extensions struct {
		RateLimit struct {
			ResetAt string `json:"resetAt"`
		} `json:"rateLimit"`
	} `json:"extensions"`
}

func (e GraphQLError) isRateLimit() bool {
	return e.Type == "RATE_LIMIT" || strings.Contains(strings.ToLower(e.Message), "rate limit")
}

type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// Client is safe for concurrent use.
type Client struct {
	http      *http.Client
	apiURL    string
	token     string
	log       *debug.Logger
	metrics   *metrics.Recorder
	limiter   *rate.Limiter
	retries   int
	pageTries int
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error

	mu    sync.Mutex
	cache map[string]any
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithAPIURL(u string) Option { return func(c *Client) { c.apiURL = strings.TrimRight(u, "/") } }

func WithLogger(l *debug.Logger) Option { return func(c *Client) { c.log = l } }

func WithMetrics(r *metrics.Recorder) Option { return func(c *Client) { c.metrics = r } }

// WithLimiter paces outgoing requests.
func WithLimiter(l *rate.Limiter) Option { return func(c *Client) { c.limiter = l } }

// WithSleep replaces the wait used between retries.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: 60 * time.Second},
		apiURL:    defaultAPIURL,
		token:     token,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		retries:   defaultRetries,
		pageTries: defaultPageTries,
		now:       time.Now,
		sleep:     sleepContext,
		cache:     make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	c.metrics.ObserveWait(d)
	return c.sleep(ctx, d)
}

// Query runs a single GraphQL request. 403 and 502 answers are retried:
// with the X-RateLimit-Reset header the wait ends at the reset, otherwise
// it doubles each attempt starting at one second.
func (c *Client) Query(ctx context.Context, name string, params map[string]string) (*Response, error) {
	doc, err := render(name, params)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(map[string]string{"query": doc})
	if err != nil {
		return nil, err
	}

	for left := c.retries; ; left-- {
		status, header, body, err := c.post(ctx, "graphql", payload)
		if err != nil {
			return nil, fmt.Errorf("query '%s' failed: %w", name, err)
		}
		c.metrics.ObserveRequest(name, status)

		if status == http.StatusOK {
			var resp Response
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, fmt.Errorf("failed to decode '%s' response: %w", name, err)
			}
			return &resp, nil
		}

		if (status != http.StatusForbidden && status != http.StatusBadGateway) || left <= 0 {
			return nil, &QueryError{Query: name, Status: status, Body: string(body)}
		}

		if status == http.StatusForbidden {
			if reset, ok := parseResetHeader(header.Get("X-RateLimit-Reset")); ok {
				d := reset.Sub(c.now())
				if d < time.Second {
					d = time.Second
				}
				c.log.Problem("HTTP 403 Rate limit exceeded. Waiting %.1f seconds...", d.Seconds())
				c.metrics.ObserveRetry(name, "rate_limit_reset")
				if err := c.wait(ctx, d); err != nil {
					return nil, err
				}
				continue
			}
		}

		d := time.Duration(math.Pow(2, float64(c.retries-left))) * time.Second
		c.log.Problem("Query '%s' returned %d. Retrying in %d seconds...", name, status, int(d.Seconds()))
		c.metrics.ObserveRetry(name, "backoff")
		if err := c.wait(ctx, d); err != nil {
			return nil, err
		}
	}
}

func (c *Client) post(ctx context.Context, path string, payload []byte) (int, http.Header, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, resp.Header, body, err
}

func parseResetHeader(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

var tryAgain = regexp.MustCompile(`(?i)try again in (\d+) seconds`)

// rateLimitWait picks the wait for a RATE_LIMIT GraphQL error: until resetAt,
// else the delay quoted in the message, else a minute.
func (c *Client) rateLimitWait(e GraphQLError) time.Duration {
	if at := e.Extensions.RateLimit.ResetAt; at != "" {
		if reset, err := time.Parse(time.RFC3339, at); err == nil {
			d := reset.Sub(c.now())
			if d < time.Second {
				d = time.Second
			}
			return d
		}
	}
	if m := tryAgain.FindStringSubmatch(e.Message); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallbackRateWait
}

// queryWithRateLimit repeats a query while the answer carries a rate limit
// error. Other GraphQL errors are logged and the response is returned as is.
func (c *Client) queryWithRateLimit(ctx context.Context, name string, params map[string]string) (*Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := c.Query(ctx, name, params)
		if err != nil {
			return nil, err
		}

		limited := false
		for _, e := range resp.Errors {
			if !e.isRateLimit() {
				c.log.Problem("GraphQL query '%s' returned error: %s", name, e.Message)
				continue
			}
			limited = true
			c.log.Problem("GitHub GraphQL API rate limit exceeded for query '%s' (attempt %d/%d)!", name, attempt, c.pageTries)
			if attempt >= c.pageTries {
				return nil, &RateLimitError{Query: name, Attempts: attempt, Message: e.Message}
			}

			d := c.rateLimitWait(e)
			c.log.Problem("Rate limit: %s. Waiting %d seconds...", e.Message, int(d.Seconds()))
			if err := c.wait(ctx, d); err != nil {
				return nil, err
			}
			backoff := d * time.Duration(attempt)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			c.log.Problem("Backoff: waiting %d seconds before retry %d/%d...", int(backoff.Seconds()), attempt+1, c.pageTries)
			c.metrics.ObserveRetry(name, "graphql_rate_limit")
			if err := c.wait(ctx, backoff); err != nil {
				return nil, err
			}
			break
		}
		if !limited {
			return resp, nil
		}
	}
}

type pageInfo struct {
	EndCursor   string `json:"endCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

// findPage walks down a chain of single-key objects to the first object that
// has both "nodes" and "pageInfo". Anything else yields no nodes and no next page.
func findPage(raw json.RawMessage) ([]json.RawMessage, pageInfo) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, pageInfo{}
	}

	nodesRaw, hasNodes := obj["nodes"]
	infoRaw, hasInfo := obj["pageInfo"]
	if hasNodes && hasInfo {
		var nodes []json.RawMessage
		var info pageInfo
		_ = json.Unmarshal(nodesRaw, &nodes)
		_ = json.Unmarshal(infoRaw, &info)
		return nodes, info
	}

	if len(obj) == 1 {
		for _, v := range obj {
			return findPage(v)
		}
	}
	return nil, pageInfo{}
}

// Paginated collects the nodes of every page of the named query, 100 at a
// time. When a follow-up page stays rate limited the nodes gathered so far
// are returned.
func (c *Client) Paginated(ctx context.Context, name string, params map[string]string) ([]json.RawMessage, error) {
	withPage := func(p string) map[string]string {
		out := make(map[string]string, len(params)+1)
		for k, v := range params {
			out[k] = v
		}
		out["pagination"] = p
		return out
	}

	resp, err := c.queryWithRateLimit(ctx, name, withPage(fmt.Sprintf("first: %d", pageSize)))
	if err != nil {
		return nil, err
	}
	nodes, info := findPage(resp.Data)

	for info.HasNextPage {
		pagination := fmt.Sprintf(`first: %d, after: "%s"`, pageSize, info.EndCursor)
		resp, err := c.queryWithRateLimit(ctx, name, withPage(pagination))
		if err != nil {
			var rle *RateLimitError
			if errors.As(err, &rle) {
				c.log.Warn("Pagination of '%s' stopped after rate limit, using %d nodes", name, len(nodes))
				break
			}
			return nil, err
		}
		more, next := findPage(resp.Data)
		nodes = append(nodes, more...)
		info = next
	}
	return nodes, nil
}

// cacheKey identifies a query by name and a hash of its sorted parameters.
func cacheKey(name string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := xxhash.New()
	for _, k := range keys {
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(params[k])
		_, _ = d.WriteString("\x00")
	}
	return name + "_" + strconv.FormatUint(d.Sum64(), 16)
}

// Get runs the named query once per parameter set and caches the result:
// the collected nodes for paginated queries, the data object otherwise.
func (c *Client) Get(ctx context.Context, name string, params map[string]string) (any, error) {
	key := cacheKey(name, params)

	c.mu.Lock()
	cached, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	var res any
	if isPaginated(name) {
		nodes, err := c.Paginated(ctx, name, params)
		if err != nil {
			return nil, err
		}
		res = nodes
	} else {
		resp, err := c.queryWithRateLimit(ctx, name, params)
		if err != nil {
			return nil, err
		}
		res = resp.Data
	}

	c.mu.Lock()
	c.cache[key] = res
	c.mu.Unlock()
	return res, nil
}
