package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"wikibridge/pkg/tracker"
	"wikibridge/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("wikibridge/%s (external entity bridge)", version.Version)

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d from %s", e.StatusCode, e.URL)
}

// Options tunes a Client. The zero value is usable.
type Options struct {
	Timeout     time.Duration    // per attempt, default 30s
	Retries     int              // extra attempts on 429/5xx/network errors
	BaseDelay   time.Duration    // first retry delay, doubled per attempt
	MinInterval time.Duration    // gap between two requests to the same provider
	UserAgent   string           // default: wikibridge/<version>
	Backoff     *ProviderBackoff // optional provider cooldown after failures
	Logger      *slog.Logger     // request log, default slog.Default()
}

// Client handles HTTP requests with per-provider queuing and tracking.
type Client struct {
	httpClient *http.Client
	tracker    *tracker.Tracker
	opts       Options

	// Queues per provider (domain)
	queues map[string]chan job
	mu     sync.Mutex // Protects queues map
}

// job represents a queued request.
type job struct {
	req      *http.Request
	headers  map[string]string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client.
func New(t *tracker.Tracker, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if t == nil {
		t = tracker.New()
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		tracker:    t,
		opts:       opts,
		queues:     make(map[string]chan job),
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, u string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, nil)
}

// GetWithHeaders performs a GET request with custom headers.
func (c *Client) GetWithHeaders(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, u, nil, headers)
}

// PostWithHeaders performs a POST request with custom headers. A nil body
// sends an empty request body.
func (c *Client) PostWithHeaders(ctx context.Context, u string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, u, body, headers)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, headers map[string]string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid url: %q is not absolute", u)
	}
	provider := normalizeProvider(parsedURL.Host)

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respChan := make(chan jobResult, 1)
	c.dispatch(provider, job{req: req, headers: headers, respChan: respChan})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

func normalizeProvider(host string) string {
	// Group all wikidata subdomains (www, query, etc.) into one provider.
	if strings.HasSuffix(host, ".wikidata.org") || host == "wikidata.org" {
		return "wikidata"
	}
	return host
}

// dispatch sends the job to the provider's queue, creating the queue/worker if needed.
func (c *Client) dispatch(provider string, j job) {
	c.mu.Lock()
	q, ok := c.queues[provider]
	if !ok {
		q = make(chan job, 100)
		c.queues[provider] = q
		go c.worker(provider, q)
	}
	c.mu.Unlock()

	// Blocks when the queue is full, throttling the caller.
	select {
	case q <- j:
	case <-j.req.Context().Done():
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	for j := range q {
		if j.req.Context().Err() != nil {
			slog.Warn("Job dropped from queue (context expired)", "provider", provider, "error", j.req.Context().Err())
			j.respChan <- jobResult{err: j.req.Context().Err()}
			continue
		}

		uaMatch := false
		for k, v := range j.headers {
			j.req.Header.Set(k, v)
			if http.CanonicalHeaderKey(k) == "User-Agent" {
				uaMatch = true
			}
		}
		if !uaMatch {
			j.req.Header.Set("User-Agent", c.opts.UserAgent)
		}

		if c.opts.Backoff != nil {
			c.opts.Backoff.Wait(provider)
		}

		body, err := c.executeWithBackoff(j.req)

		if err == nil {
			c.tracker.TrackAPISuccess(provider)
			if c.opts.Backoff != nil {
				c.opts.Backoff.RecordSuccess(provider)
			}
		} else {
			c.tracker.TrackAPIFailure(provider)
			if c.opts.Backoff != nil {
				c.opts.Backoff.RecordFailure(provider)
			}
		}

		j.respChan <- jobResult{body: body, err: err}

		if c.opts.MinInterval > 0 {
			time.Sleep(c.opts.MinInterval)
		}
	}
}

// executeWithBackoff attempts the request, retrying 429/5xx and network
// errors up to Options.Retries times with exponential delay.
func (c *Client) executeWithBackoff(req *http.Request) ([]byte, error) {
	maxAttempts := c.opts.Retries + 1
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		if attempt > 0 {
			if err := rewindBody(req); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			c.opts.Logger.Warn("Request failed", "method", req.Method, "url", req.URL, "attempt", attempt+1, "error", err)
			lastErr = fmt.Errorf("request failed: %w", err)
			if !c.sleep(req, attempt, maxAttempts) {
				break
			}
			continue
		}

		c.opts.Logger.Info("Request", "method", req.Method, "url", req.URL, "status", resp.StatusCode, "duration", time.Since(start))

		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode < 600) {
			resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
			if !c.sleep(req, attempt, maxAttempts) {
				break
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return body, nil
	}

	if req.Context().Err() != nil {
		return nil, req.Context().Err()
	}
	return nil, lastErr
}

// sleep waits before the next attempt. It reports false when no attempt
// is left or the request context ended.
func (c *Client) sleep(req *http.Request, attempt, maxAttempts int) bool {
	if attempt+1 >= maxAttempts {
		return false
	}
	d := time.Duration(math.Pow(2, float64(attempt))) * c.opts.BaseDelay
	select {
	case <-time.After(d):
		return true
	case <-req.Context().Done():
		return false
	}
}

func rewindBody(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}
	b, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to rewind body: %w", err)
	}
	req.Body = b
	return nil
}
