// Package fetch downloads month-aligned tick archives from the
// upstream data source.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fxdata-system/internal/model"
)

// ErrMonthUnavailable marks a month/variant the source has no archive
// for. Callers treat this as "no data for this period", not a failure.
var ErrMonthUnavailable = errors.New("fetch: month archive unavailable")

// Downloader fetches one month of tick data for an instrument/variant.
type Downloader interface {
	Fetch(ctx context.Context, instrument string, year int, month time.Month, variant model.Variant) (io.ReadCloser, error)
}

// HTTPDownloader fetches ZIP month archives over HTTP. Archive URLs
// follow {base}/{instrument}/{variant}/{year}/{month}.zip.
type HTTPDownloader struct {
	client  *http.Client
	baseURL string
}

// NewHTTP creates a downloader against the given base URL.
func NewHTTP(baseURL string) *HTTPDownloader {
	return &HTTPDownloader{
		client:  &http.Client{Timeout: 2 * time.Minute},
		baseURL: baseURL,
	}
}

// Fetch downloads one month archive. A 404 from the source maps to
// ErrMonthUnavailable. The caller owns the returned body.
func (d *HTTPDownloader) Fetch(ctx context.Context, instrument string, year int, month time.Month, variant model.Variant) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/%s/%s/%04d/%02d.zip", d.baseURL, instrument, variant, year, int(month))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", url, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrMonthUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch: %s: unexpected status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}
