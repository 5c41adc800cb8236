package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/UnknownOlympus/hotelgate/internal/metrics"
)

// Mode selects which candidate URLs a request is sent to.
type Mode int

const (
	// ModeDirect sends the request to every configured fallback base URL in order.
	ModeDirect Mode = iota
	// ModeProxy sends the request through the local proxy route only.
	ModeProxy
)

const (
	defaultRetries    = 3
	defaultRetryDelay = time.Second
	defaultTimeout    = 15 * time.Second
	maxBodyBytes      = 10 << 20
)

var (
	// ErrNoCandidates is returned when neither base URLs nor a proxy URL are configured.
	ErrNoCandidates = errors.New("no backend base url or proxy url configured")
	// ErrBackendUnreachable is returned by Probe when no candidate answered.
	ErrBackendUnreachable = errors.New("no backend candidate is reachable")
)

// Options configures a Client.
type Options struct {
	BaseURLs   []string          // BaseURLs are the fallback backend base urls, tried in order.
	ProxyURL   string            // ProxyURL is the base url of the local proxy routes.
	Retries    int               // Retries is the number of attempts per candidate url.
	RetryDelay time.Duration     // RetryDelay is multiplied by the attempt number between attempts.
	Timeout    time.Duration     // Timeout bounds each single attempt.
	Policy     RetryPolicy       // Policy decides which failures are retried.
	Transport  http.RoundTripper // Transport overrides the http transport.
	Header     http.Header       // Header is sent with every request.
}

// Request is one logical operation against a backend resource.
type Request struct {
	Method  string        // Method is the HTTP verb, GET when empty.
	Path    string        // Path is the resource path, e.g. "Booking/GetAll".
	Query   url.Values    // Query is appended to every candidate url.
	Body    any           // Body is sent as JSON; []byte and json.RawMessage are sent as is.
	Header  http.Header   // Header overrides the client headers for this call.
	Timeout time.Duration // Timeout overrides the per-attempt timeout for this call.
	Mode    Mode          // Mode selects proxy or direct fallback candidates.
}

// Client issues logical backend calls with retries and endpoint fallback.
// It never returns an error from Do: every failure becomes a failed envelope.
type Client struct {
	httpClient *http.Client
	log        *slog.Logger
	metrics    *metrics.Metrics
	baseURLs   []string
	proxyURL   string
	retries    int
	retryDelay time.Duration
	timeout    time.Duration
	policy     RetryPolicy
	header     http.Header
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient validates the options and builds a Client.
func NewClient(log *slog.Logger, appMetrics *metrics.Metrics, opts Options) (*Client, error) {
	baseURLs := make([]string, 0, len(opts.BaseURLs))
	for _, raw := range opts.BaseURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("failed to parse backend base url %q: %w", raw, err)
		}
		baseURLs = append(baseURLs, strings.TrimRight(raw, "/"))
	}

	proxyURL := strings.TrimRight(strings.TrimSpace(opts.ProxyURL), "/")
	if proxyURL != "" {
		if _, err := url.ParseRequestURI(proxyURL); err != nil {
			return nil, fmt.Errorf("failed to parse proxy url %q: %w", proxyURL, err)
		}
	}

	if len(baseURLs) == 0 && proxyURL == "" {
		return nil, ErrNoCandidates
	}

	client := &Client{
		httpClient: &http.Client{Transport: opts.Transport},
		log:        log,
		metrics:    appMetrics,
		baseURLs:   baseURLs,
		proxyURL:   proxyURL,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		timeout:    opts.Timeout,
		policy:     opts.Policy,
		header:     opts.Header.Clone(),
		sleep:      sleepContext,
	}
	if client.retries <= 0 {
		client.retries = defaultRetries
	}
	if client.retryDelay < 0 {
		client.retryDelay = defaultRetryDelay
	}
	if client.timeout <= 0 {
		client.timeout = defaultTimeout
	}
	if client.policy == nil {
		client.policy = DefaultRetryPolicy
	}

	return client, nil
}

// Retries returns the number of attempts made per candidate url.
func (c *Client) Retries() int { return c.retries }

// Candidates returns the ordered list of full urls a request would be sent to.
func (c *Client) Candidates(req Request) []string {
	var bases []string
	switch {
	case req.Mode == ModeProxy && c.proxyURL != "":
		bases = []string{c.proxyURL}
	case len(c.baseURLs) > 0:
		bases = c.baseURLs
	default:
		bases = []string{c.proxyURL}
	}

	path := strings.TrimLeft(req.Path, "/")
	query := ""
	if len(req.Query) > 0 {
		query = "?" + req.Query.Encode()
	}

	candidates := make([]string, 0, len(bases))
	for _, base := range bases {
		candidates = append(candidates, base+"/"+path+query)
	}
	return candidates
}

// Do runs one logical call. The first 2xx answer from any candidate wins and is normalized.
// When a candidate keeps failing with retryable errors the next one is tried; a non-retryable
// answer ends the call with the backend's own message.
func (c *Client) Do(ctx context.Context, req Request) envelope.Envelope {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		c.metrics.UpstreamCalls.WithLabelValues("failure").Inc()
		return envelope.Fail(http.StatusBadRequest, err.Error())
	}

	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	var (
		lastStatus  int
		lastMessage string
	)

	for _, target := range c.Candidates(req) {
		for attempt := 1; attempt <= c.retries; attempt++ {
			res := c.attempt(ctx, method, target, body, req.Header, timeout)

			if ctx.Err() != nil {
				c.metrics.UpstreamCalls.WithLabelValues("failure").Inc()
				return envelope.Fail(statusOr500(lastStatus), "request canceled: "+ctx.Err().Error())
			}

			if res.kind == KindNone && res.status >= 200 && res.status < 300 {
				c.metrics.UpstreamAttempts.WithLabelValues("success").Inc()
				c.metrics.UpstreamCalls.WithLabelValues("success").Inc()
				return envelope.Normalize(res.body, res.status)
			}

			if res.kind == KindNone {
				lastStatus = res.status
			}
			lastMessage = res.message()

			if !c.policy(res.status, res.kind) {
				c.metrics.UpstreamAttempts.WithLabelValues("fatal").Inc()
				c.metrics.UpstreamCalls.WithLabelValues("failure").Inc()
				c.log.DebugContext(ctx, "Backend returned a final error",
					"url", target, "status", res.status, "message", lastMessage)
				return envelope.Fail(res.status, lastMessage)
			}

			c.metrics.UpstreamAttempts.WithLabelValues("retryable").Inc()
			c.log.DebugContext(ctx, "Backend attempt failed",
				"url", target, "attempt", attempt, "status", res.status, "kind", res.kind.String(), "error", res.err)

			if attempt < c.retries {
				if err = c.sleep(ctx, c.retryDelay*time.Duration(attempt)); err != nil {
					c.metrics.UpstreamCalls.WithLabelValues("failure").Inc()
					return envelope.Fail(statusOr500(lastStatus), "request canceled: "+err.Error())
				}
			}
		}
		c.log.WarnContext(ctx, "Backend candidate exhausted, falling back", "url", target, "status", lastStatus)
	}

	if lastMessage == "" {
		lastMessage = "all backend endpoints failed"
	}
	c.metrics.UpstreamCalls.WithLabelValues("failure").Inc()
	c.log.ErrorContext(ctx, "All backend candidates failed", "path", req.Path, "status", lastStatus, "message", lastMessage)

	return envelope.Fail(statusOr500(lastStatus), lastMessage)
}

// Probe checks that at least one candidate answers with a non-5xx status.
func (c *Client) Probe(ctx context.Context) error {
	var lastErr error
	for _, target := range c.Candidates(Request{}) {
		res := c.attempt(ctx, http.MethodGet, target, nil, nil, c.timeout)
		if res.kind == KindNone && res.status < http.StatusInternalServerError {
			return nil
		}
		lastErr = fmt.Errorf("%s: %s", target, res.message())
	}
	if lastErr == nil {
		return ErrBackendUnreachable
	}
	return fmt.Errorf("%w: %w", ErrBackendUnreachable, lastErr)
}

type attemptResult struct {
	status int
	body   []byte
	kind   ErrorKind
	err    error
}

func (r attemptResult) message() string {
	if r.kind != KindNone {
		if r.err != nil {
			return r.err.Error()
		}
		return r.kind.String()
	}
	if msg := envelope.MessageFrom(r.body); msg != "" {
		return msg
	}
	return http.StatusText(r.status)
}

func (c *Client) attempt(
	ctx context.Context,
	method, target string,
	body []byte,
	header http.Header,
	timeout time.Duration,
) attemptResult {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, target, reader)
	if err != nil {
		return attemptResult{kind: KindTransport, err: fmt.Errorf("failed to build request: %w", err)}
	}
	for key, values := range c.header {
		httpReq.Header[key] = values
	}
	for key, values := range header {
		httpReq.Header[key] = values
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return attemptResult{kind: classify(ctx, err), err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return attemptResult{kind: classify(ctx, err), err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return attemptResult{status: resp.StatusCode, body: respBody}
}

func classify(parent context.Context, err error) ErrorKind {
	if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

func encodeBody(body any) ([]byte, error) {
	switch value := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return value, nil
	case json.RawMessage:
		return value, nil
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return raw, nil
	}
}

func statusOr500(status int) int {
	if status == 0 {
		return http.StatusInternalServerError
	}
	return status
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
