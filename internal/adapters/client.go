package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adcp/salesagent/internal/resilience"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientOptions tunes the HTTP client shared by the real backends.
type ClientOptions struct {
	Timeout       time.Duration
	RatePerSecond float64
	Retry         resilience.RetryConfig
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:       30 * time.Second,
		RatePerSecond: 5,
		Retry:         resilience.DefaultRetryConfig(),
	}
}

// StatusError is a non-2xx response from an ad server.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ad server returned %d: %s", e.StatusCode, e.Body)
}

// restClient talks JSON to an ad server API. Writes go out exactly once; reads
// are retried on transient failures.
type restClient struct {
	backend    string
	baseURL    string
	headers    map[string]string
	query      url.Values
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	log        *zap.Logger
}

func newRESTClient(backend, baseURL string, headers map[string]string, query url.Values, opts ClientOptions, log *zap.Logger) *restClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
		burst = int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	retry := opts.Retry
	retry.OnRetry = resilience.RetryLogger(log, backend, "read")
	return &restClient{
		backend: backend,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: headers,
		query:   query,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		retry:   retry,
		log:     log,
	}
}

func (c *restClient) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *restClient) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *restClient) get(ctx context.Context, path string, out any) error {
	_, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodGet, path, nil, out)
	})
	return err
}

func (c *restClient) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limiter")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(c.query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + c.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "%s %s unavailable", c.backend, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		c.log.Warn("ad server request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
