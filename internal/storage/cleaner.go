// Package storage talks to the object store that holds uploads handed over
// out of band. The engine's only obligation is to delete what it consumed.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Cleaner deletes a temporary object after it has been consumed.
type Cleaner interface {
	Remove(ctx context.Context, key string) error
}

// NopCleaner is used when no object store is configured.
type NopCleaner struct{}

func (NopCleaner) Remove(context.Context, string) error { return nil }

// HTTPCleaner deletes objects with DELETE <endpoint>/<key>.
type HTTPCleaner struct {
	client   *http.Client
	endpoint string
	token    string
	logger   *slog.Logger
}

// NewCleaner returns an HTTPCleaner for a non-empty endpoint and a
// NopCleaner otherwise.
func NewCleaner(client *http.Client, endpoint, token string, logger *slog.Logger) Cleaner {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return NopCleaner{}
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPCleaner{client: client, endpoint: endpoint, token: token, logger: logger}
}

// Remove treats a missing object as already removed.
func (c *HTTPCleaner) Remove(ctx context.Context, key string) error {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return fmt.Errorf("storage: empty object key")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint+"/"+url.PathEscape(key), nil)
	if err != nil {
		return fmt.Errorf("storage: build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusNotFound || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		c.logger.Debug("Removed uploaded object", "key", key, "status", resp.StatusCode)
		return nil
	}

	return fmt.Errorf("storage: delete %s: unexpected status %d", key, resp.StatusCode)
}
