// Package client fetches learner and course data from the Figures API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/verte-zerg/figexport/internal/model"
	"github.com/verte-zerg/figexport/internal/query"
)

// Default API locations and limits.
const (
	DefaultLearnersPath = "/figures/api/learner-metrics/"
	DefaultCoursesPath  = "/figures/api/courses-index/"
	DefaultTimeout      = 30 * time.Second
	DefaultCourseLimit  = 1000
)

const errorBodyLimit = 512

// FetchError reports a failed page request.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client issues single GET requests against the listing and index endpoints.
// It never retries and never caches.
type Client struct {
	http        *http.Client
	learnersURL string
	coursesURL  string
	token       string
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds a client for the API described by cfg.
func New(cfg model.APIConfig, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must include scheme and host", cfg.BaseURL)
	}
	learnersPath := cfg.LearnersPath
	if learnersPath == "" {
		learnersPath = DefaultLearnersPath
	}
	coursesPath := cfg.CoursesPath
	if coursesPath == "" {
		coursesPath = DefaultCoursesPath
	}
	learnersURL, err := resolve(base, learnersPath)
	if err != nil {
		return nil, err
	}
	coursesURL, err := resolve(base, coursesPath)
	if err != nil {
		return nil, err
	}

	c := &Client{
		http:        &http.Client{},
		learnersURL: learnersURL,
		coursesURL:  coursesURL,
		token:       cfg.Token,
		timeout:     cfg.Timeout,
		logger:      zap.NewNop(),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LearnersURL returns the resolved listing endpoint.
func (c *Client) LearnersURL() string {
	return c.learnersURL
}

// FetchPage requests one window of the learner listing.
func (c *Client) FetchPage(ctx context.Context, q model.Query, limit, offset int) (model.Page[model.Learner], error) {
	requestURL, err := query.ListURL(c.learnersURL, q, limit, offset)
	if err != nil {
		return model.Page[model.Learner]{}, err
	}
	var page model.Page[model.Learner]
	if err := c.getJSON(ctx, requestURL, &page); err != nil {
		return model.Page[model.Learner]{}, err
	}
	return page, nil
}

// FetchCourses loads the course index.
func (c *Client) FetchCourses(ctx context.Context, limit int) ([]model.Course, error) {
	if limit <= 0 {
		limit = DefaultCourseLimit
	}
	requestURL, err := query.IndexURL(c.coursesURL, limit)
	if err != nil {
		return nil, err
	}
	var page model.Page[model.Course]
	if err := c.getJSON(ctx, requestURL, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (c *Client) getJSON(ctx context.Context, requestURL string, target any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &FetchError{URL: requestURL, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return &FetchError{URL: requestURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", zap.String("url", requestURL), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return &FetchError{URL: requestURL, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger.Debug("api request",
		zap.String("url", requestURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		cause := fmt.Errorf("unexpected status: %s", resp.Status)
		if body := strings.TrimSpace(string(snippet)); body != "" {
			cause = fmt.Errorf("unexpected status: %s: %s", resp.Status, body)
		}
		return &FetchError{URL: requestURL, StatusCode: resp.StatusCode, Err: cause}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		return &FetchError{URL: requestURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("response is not valid JSON (content-type %q)", ct)}
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &FetchError{URL: requestURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func resolve(base *url.URL, path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid api path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}
