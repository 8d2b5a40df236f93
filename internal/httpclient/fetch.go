package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohaanymo/vodmirror/internal/logger"
	"github.com/mohaanymo/vodmirror/internal/models"
)

// Retry defaults.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 2 * time.Second
)

// FetchConfig configures a Client.
type FetchConfig struct {
	Attempts   int
	RetryDelay time.Duration
	Signing    SigningConfig
	Logger     logger.Logger
}

// Client performs GETs with a bounded retry budget and optional SigV4
// signing. It is safe for concurrent use.
type Client struct {
	http     *http.Client
	attempts int
	delay    time.Duration
	signer   *signer
	log      logger.Logger
}

// NewClient wraps hc. A nil hc uses New(DefaultConfig()).
func NewClient(hc *http.Client, cfg FetchConfig) *Client {
	if hc == nil {
		hc = New(DefaultConfig())
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Client{
		http:     hc,
		attempts: cfg.Attempts,
		delay:    cfg.RetryDelay,
		signer:   newSigner(cfg.Signing),
		log:      cfg.Logger,
	}
}

// permanentError stops the retry loop.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Fetch retrieves url. Transport failures, including truncated bodies,
// are retried; a non-2xx response is returned at once as an
// *models.HTTPStatusError. After the budget is spent the result is an
// *models.TransportError carrying the last observed status.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string) (*models.Document, error) {
	var (
		lastErr    error
		lastStatus int
	)

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 && c.delay > 0 {
			timer := time.NewTimer(c.delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		doc, status, err := c.do(ctx, url, headers)
		if err == nil {
			return doc, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return nil, perm.err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		if status != 0 {
			lastStatus = status
		}
		c.log.Warnf("fetch %s attempt %d/%d failed: %v", url, attempt, c.attempts, err)
	}

	return nil, &models.TransportError{
		URL:      url,
		Attempts: c.attempts,
		Status:   lastStatus,
		Err:      lastErr,
	}
}

// do performs a single attempt and returns the status it observed.
func (c *Client) do(ctx context.Context, url string, headers map[string]string) (*models.Document, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, &permanentError{fmt.Errorf("create request: %w", err)}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	signed, err := c.signer.sign(ctx, req)
	if err != nil {
		return nil, 0, &permanentError{err}
	}
	if signed {
		c.log.Debugf("signed request to %s", req.URL.Host)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &permanentError{statusError(url, resp, body)}
	}

	if resp.ContentLength >= 0 && int64(len(body)) != resp.ContentLength {
		return nil, resp.StatusCode, fmt.Errorf("expected %d bytes, received %d", resp.ContentLength, len(body))
	}

	return &models.Document{
		URL:         url,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, resp.StatusCode, nil
}

func statusError(url string, resp *http.Response, body []byte) *models.HTTPStatusError {
	e := &models.HTTPStatusError{
		URL:    url,
		Status: resp.StatusCode,
		Body:   body,
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") && len(body) > 0 {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}
