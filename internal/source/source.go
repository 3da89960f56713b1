// Package source abstracts where the catalog export comes from: a local
// file for offline runs, or a one-shot HTTP download.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// Source yields the raw catalog export exactly once per run.
type Source interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
}

// LocalFile reads the export from disk.
type LocalFile struct {
	Path string
}

func (s LocalFile) Fetch(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// backoff returns the retry sleep duration for the given attempt number.
func backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// HTTPSource downloads the export with a bounded retry loop. The body is
// handed to the assembler as-is; nothing is persisted.
type HTTPSource struct {
	URL      string
	Client   *http.Client
	RetryMax int
	Logger   *zap.Logger
}

// NewHTTPSource builds an HTTPSource with the given client timeout and two
// retries.
func NewHTTPSource(url string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	return &HTTPSource{
		URL:      url,
		Client:   &http.Client{Timeout: timeout},
		RetryMax: 2,
		Logger:   logger,
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	var lastErr error
	for attempt := 0; attempt <= s.RetryMax; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := s.Client.Do(req)
		if err != nil {
			lastErr = err
			s.Logger.Warn("source.http_failed",
				zap.String("url", s.URL),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			s.Logger.Warn("source.http_status",
				zap.String("url", s.URL),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt))
		} else {
			return resp.Body, nil
		}

		if attempt == s.RetryMax {
			break
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("download input after %d attempts: %w", s.RetryMax+1, lastErr)
}
