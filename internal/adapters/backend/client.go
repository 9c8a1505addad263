// Package backend is the HTTP client of the inference backend
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sandeepseesa/promptea/internal/app/dto"
	"github.com/sandeepseesa/promptea/internal/app/usecases"
)

// maxResponseBytes bounds a decoded backend reply
const maxResponseBytes = 8 << 20

// ErrBadResponse is returned when a reply is not the expected JSON
var ErrBadResponse = errors.New("backend returned a malformed response")

// Config holds the client settings
type Config struct {
	BaseURL string
	// Timeout bounds a whole request; the caller's context may be shorter
	Timeout time.Duration

	// Circuit breaker: trip once FailureRatio of at least MinRequests
	// calls failed, stay open for OpenTimeout
	FailureRatio float64
	MinRequests  uint32
	OpenTimeout  time.Duration
}

// Observer receives one call per backend request
type Observer interface {
	BackendCall(operation string, err error, d time.Duration)
}

// Client implements usecases.SearchBackend over HTTP
// PRINCIPLES:
// - SRP: Wire format only; classification happens in the use case
// - Fail fast: an open breaker rejects calls without touching the network
type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
	observer Observer
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithObserver reports every call, e.g. to metrics
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a client for the backend at cfg.BaseURL
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.6
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "inference-backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Only trip if we have enough requests to make a decision
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// The user cancelling says nothing about backend health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// Search posts a question to /search. The backend's 500 replies carry an
// {error} body; those are returned as a response, not an error.
func (c *Client) Search(ctx context.Context, req dto.SearchRequest) (*dto.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	var out dto.SearchResponse
	err = c.do(ctx, "search", func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload posts a document to /upload as the multipart field "file"
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*dto.UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}
	payload := buf.Bytes()

	var out dto.UploadResponse
	err = c.do(ctx, "upload", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// BreakerState reports the circuit breaker state, e.g. "closed"
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// do runs one request through the breaker and decodes the JSON reply into
// out. A 5xx reply counts against the breaker but is still decoded.
func (c *Client) do(ctx context.Context, op string, build func() (*http.Request, error), out interface{}) error {
	start := time.Now()
	var decoded bool

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read %s response: %w", op, err)
		}
		if jerr := json.Unmarshal(raw, out); jerr == nil {
			decoded = true
		}

		switch {
		case resp.StatusCode >= 500:
			return nil, &dto.BackendError{Status: resp.StatusCode, Message: snippet(raw)}
		case !decoded && resp.StatusCode >= 400:
			return nil, &dto.BackendError{Status: resp.StatusCode, Message: snippet(raw)}
		case !decoded:
			return nil, fmt.Errorf("%w: %s", ErrBadResponse, snippet(raw))
		}
		return nil, nil
	})

	if c.observer != nil {
		c.observer.BackendCall(op, err, time.Since(start))
	}

	var be *dto.BackendError
	if errors.As(err, &be) && decoded {
		c.logger.Warn("backend reported a failure",
			zap.String("operation", op),
			zap.Int("status", be.Status))
		return nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("backend temporarily unavailable: %w", err)
		}
		return err
	}
	return nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

var _ usecases.SearchBackend = (*Client)(nil)
