// Package fetch retrieves uploaded documents from object storage.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"pdfsqueeze/internal/common"
	"pdfsqueeze/internal/compression"
)

// Config controls the retry loop.
type Config struct {
	Attempts       int
	Delay          time.Duration
	AttemptTimeout time.Duration
	// MaxBytes caps the body size; zero disables the ceiling.
	MaxBytes int64
}

// DefaultConfig returns the retry policy tuned for CDN propagation lag.
func DefaultConfig() Config {
	return Config{
		Attempts:       common.DefaultFetchAttempts,
		Delay:          common.DefaultFetchDelay,
		AttemptTimeout: 20 * time.Second,
		MaxBytes:       common.DefaultMaxUploadBytes,
	}
}

// Fetcher downloads a document, retrying with a fixed delay because a freshly
// uploaded object may not be readable yet.
type Fetcher struct {
	client *http.Client
	cfg    Config
	logger *slog.Logger
}

func New(client *http.Client, cfg Config, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Fetcher{client: client, cfg: cfg, logger: logger}
}

// statusError is a non-2xx response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// Fetch returns the body at rawURL. Every failure other than an oversized
// body or an invalid URL is retried; exhausting the attempts yields a
// retrieval error carrying the last cause.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, compression.NewValidationError("url must be an absolute http(s) URL")
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, compression.NewRetrievalError(attempt-1, ctx.Err())
			case <-time.After(f.cfg.Delay):
			}
		}

		data, err := f.fetchOnce(ctx, u.String())
		if err == nil {
			if attempt > 1 {
				f.logger.Info("Fetched document after retry", "attempt", attempt, "size", len(data))
			}
			return data, nil
		}

		if errors.Is(err, compression.ErrPayloadTooLarge) {
			return nil, err
		}

		lastErr = err
		f.logger.Warn("Fetch attempt failed",
			"attempt", attempt,
			"max_attempts", f.cfg.Attempts,
			"host", u.Host,
			"error", err)

		if ctx.Err() != nil {
			return nil, compression.NewRetrievalError(attempt, ctx.Err())
		}
	}

	return nil, compression.NewRetrievalError(f.cfg.Attempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) ([]byte, error) {
	if f.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.AttemptTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}

	limit := f.cfg.MaxBytes
	if limit > 0 && resp.ContentLength > limit {
		return nil, compression.NewPayloadTooLargeError(resp.ContentLength, limit)
	}

	var body io.Reader = resp.Body
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, compression.NewPayloadTooLargeError(int64(len(data)), limit)
	}

	return data, nil
}
