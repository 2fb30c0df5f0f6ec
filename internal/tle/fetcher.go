package tle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultCatalogURL = "https://celestrak.org/NORAD/elements/gp.php"

// maxBodyBytes caps a catalog response.
const maxBodyBytes = 50 << 20

// ErrNotFound is returned when the catalog has no element set for a number.
var ErrNotFound = errors.New("catalog number not found")

// Fetcher retrieves element sets by catalog number over HTTP.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for a celestrak-style gp.php endpoint.
func NewFetcher(baseURL string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if baseURL == "" {
		baseURL = defaultCatalogURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// QueryURL returns the request URL for a catalog number.
func (f *Fetcher) QueryURL(catnr int) (string, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing catalog url: %w", err)
	}
	q := u.Query()
	q.Set("CATNR", strconv.Itoa(catnr))
	q.Set("FORMAT", "TLE")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch performs the HTTP GET for catnr and returns the raw body.
func (f *Fetcher) Fetch(ctx context.Context, catnr int) ([]byte, error) {
	target, err := f.QueryURL(catnr)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog number %d: %w", catnr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, target)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", target, maxBodyBytes)
	}

	f.logger.Debug("fetched catalog entry",
		"norad_id", catnr,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}

// Lookup fetches and parses the element set for catnr.
func (f *Fetcher) Lookup(ctx context.Context, catnr int) (TLEEntry, error) {
	data, err := f.Fetch(ctx, catnr)
	if err != nil {
		return TLEEntry{}, err
	}
	return findEntry(data, catnr, f.logger)
}
