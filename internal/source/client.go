// Package source is the HTTP client for the content catalogue API.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/lectern/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout        = 60 * time.Second
	defaultRequestTimeout = 30 * time.Second
	maxRetries            = 3
	baseRetryDelay        = 500 * time.Millisecond
	jsonAPIMediaType      = "application/vnd.api+json"
)

// Client implements domain.ContentsService against the catalogue API
type Client struct {
	baseURL        string
	token          string
	httpClient     *http.Client
	logger         *slog.Logger
	retryDelay     time.Duration
	requestTimeout time.Duration

	// Concurrent fetches of the same content share one request
	group singleflight.Group

	// Cancelled by Close to abandon outstanding async fetches
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryDelay sets the base delay of the exponential backoff
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithRequestTimeout bounds each asynchronous ContentDetails call
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// NewClient creates a new catalogue API client
func NewClient(baseURL, token string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:         logger,
		retryDelay:     baseRetryDelay,
		requestTimeout: defaultRequestTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close abandons outstanding asynchronous fetches. Their completions still
// run, with a context error.
func (c *Client) Close() {
	c.cancel()
}

// ContentDetails fetches a content and its children in the background and
// reports the result to completion exactly once.
func (c *Client) ContentDetails(id domain.ContentID, completion domain.ContentDetailsCompletion) {
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.requestTimeout)
		defer cancel()

		details, update, err := c.FetchContentDetails(ctx, id)
		completion(details, update, err)
	}()
}

type detailsResult struct {
	details domain.ContentDetails
	update  domain.CacheUpdate
}

// FetchContentDetails fetches a content and its children. Concurrent calls
// for the same id share one request, which runs on the client's context with
// the request timeout; ctx only bounds how long this caller waits for it.
func (c *Client) FetchContentDetails(ctx context.Context, id domain.ContentID) (domain.ContentDetails, domain.CacheUpdate, error) {
	key := strconv.Itoa(int(id))
	ch := c.group.DoChan(key, func() (interface{}, error) {
		reqCtx, cancel := context.WithTimeout(c.ctx, c.requestTimeout)
		defer cancel()

		body, err := c.doRequest(reqCtx, http.MethodGet, "/contents/"+key)
		if err != nil {
			return nil, err
		}

		var doc Document
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}

		details, update, err := MapContentDetails(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to map content %d: %w", id, err)
		}
		return detailsResult{details: details, update: update}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return domain.ContentDetails{}, domain.CacheUpdate{}, ctx.Err()
	}
	if res.Err != nil {
		return domain.ContentDetails{}, domain.CacheUpdate{}, res.Err
	}
	if res.Shared {
		c.logger.Debug("shared in-flight content fetch", "id", int(id))
	}

	v := res.Val.(detailsResult)
	return v.details, v.update, nil
}

// doRequest performs an authenticated HTTP request to the catalogue API.
// Includes retry logic with exponential backoff for 5xx server errors
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	reqURL := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Check context before each attempt
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Wait before retry (exponential backoff)
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", jsonAPIMediaType)
		req.Header.Set("Content-Type", jsonAPIMediaType)
		if c.token != "" {
			req.Header.Set("Authorization", "Token "+c.token)
		}

		c.logger.Debug("catalogue request", "method", method, "url", reqURL, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error("catalogue request failed", "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, domain.ErrAuthFailed
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.ErrContentNotFound
		case resp.StatusCode >= 500 && resp.StatusCode < 600:
			// Retry on 5xx server errors
			lastErr = fmt.Errorf("server error: %d - %s", resp.StatusCode, string(body))
			c.logger.Warn("catalogue server error, will retry",
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", maxRetries,
				"path", path,
			)
			continue
		case resp.StatusCode != http.StatusOK:
			c.logger.Error("catalogue request error", "status", resp.StatusCode, "body", string(body))
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return body, nil
	}

	c.logger.Error("catalogue request failed after retries",
		"error", lastErr,
		"url", reqURL,
		"path", path,
	)
	return nil, lastErr
}
