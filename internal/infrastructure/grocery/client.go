package grocery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gut-puncture/list-to-cart/internal/domain"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/metrics"
	"github.com/gut-puncture/list-to-cart/internal/pkg/logger"
)

const (
	processImagePath    = "/process_image"
	recommendationsPath = "/recommendations"
	imageFieldName      = "image"
	imageFileName       = "grocery_list.jpg"
	userAgent           = "ListToCart/1.0"
	maxErrorBodyBytes   = 512
	defaultRetryDelay   = 500 * time.Millisecond
)

// ClientConfig tunes transport behaviour. Zero values fall back to defaults.
type ClientConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the grocery recognition and recommendation service
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxRetries  int
	rateLimiter *rate.Limiter
	retryDelay  time.Duration
	log         *logger.Logger
	debug       bool
}

// NewClient creates a new remote service client
func NewClient(baseURL string, cfg ClientConfig, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second // recognition runs an LLM call server side
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxRetries:  cfg.MaxRetries,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		retryDelay:  defaultRetryDelay,
		log:         log.With("component", "GroceryClient"),
	}
}

// SetDebug enables verbose request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// exponentialBackoff returns the wait before retrying after the given attempt
func exponentialBackoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<(attempt-1))
}

// retryableStatus reports whether a response status is worth retrying
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// RecognizeImage uploads an image and returns the grocery items read from it
func (c *Client) RecognizeImage(ctx context.Context, image []byte) ([]domain.GroceryItem, error) {
	start := time.Now()
	defer func() {
		metrics.RemoteCallDuration.WithLabelValues("recognize_image").Observe(time.Since(start).Seconds())
	}()

	// Rebuild the multipart body per attempt; the reader is consumed by each send.
	newRequest := func() (*http.Request, error) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile(imageFieldName, imageFileName)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(image); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processImagePath, &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	}

	body, err := c.do(ctx, "process_image", newRequest)
	if err != nil {
		return nil, &domain.RecognitionError{Err: err}
	}

	items, err := DecodeGroceryList(body)
	if err != nil {
		return nil, &domain.RecognitionError{Err: err}
	}

	if c.debug {
		c.log.Debug("grocery list recognized", "items", len(items), "bytes", len(image))
	}
	return items, nil
}

// FetchRecommendations returns catalog products matching one grocery item
func (c *Client) FetchRecommendations(ctx context.Context, itemName string) ([]domain.ProductRecommendation, error) {
	start := time.Now()
	defer func() {
		metrics.RemoteCallDuration.WithLabelValues("fetch_recommendations").Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(recommendationsRequest{ItemName: itemName})
	if err != nil {
		return nil, &domain.RecommendationError{ItemName: itemName, Err: err}
	}

	newRequest := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+recommendationsPath, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	body, err := c.do(ctx, "recommendations", newRequest)
	if err != nil {
		return nil, &domain.RecommendationError{ItemName: itemName, Err: err}
	}

	var resp recommendationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.RecommendationError{
			ItemName: itemName,
			Err:      fmt.Errorf("failed to decode response: %w", err),
		}
	}

	recs := mapToRecommendations(resp.Recommendations)
	if c.debug {
		c.log.Debug("recommendations fetched", "item", itemName, "count", len(recs))
	}
	return recs, nil
}

// do sends a request built by newRequest, retrying transport failures and
// retryable statuses with exponential backoff. It returns the 2xx body.
func (c *Client) do(ctx context.Context, op string, newRequest func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := newRequest()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.log.Warn("request error", "op", op, "attempt", attempt, "error", err)
			lastErr = fmt.Errorf("%w: %v", domain.ErrRemoteService, err)
			if !c.backoff(ctx, attempt) {
				break
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			c.log.Warn("remote service error", "op", op, "attempt", attempt, "status", resp.StatusCode, "body", truncate(body))
			lastErr = fmt.Errorf("%w: status %d: %s", domain.ErrRemoteService, resp.StatusCode, truncate(body))
			if !retryableStatus(resp.StatusCode) || !c.backoff(ctx, attempt) {
				break
			}
			continue
		}

		if readErr != nil {
			return nil, fmt.Errorf("failed to read response: %w", readErr)
		}

		if c.debug {
			c.log.Debug("remote call succeeded", "op", op, "attempt", attempt, "status", resp.StatusCode)
		}
		return body, nil
	}

	return nil, lastErr
}

// backoff waits before the next attempt. It returns false when there is no
// next attempt or ctx ended while waiting.
func (c *Client) backoff(ctx context.Context, attempt int) bool {
	if attempt >= c.maxRetries {
		return false
	}
	timer := time.NewTimer(exponentialBackoff(c.retryDelay, attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		return s[:maxErrorBodyBytes] + "..."
	}
	return s
}
