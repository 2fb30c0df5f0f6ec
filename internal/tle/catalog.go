package tle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Catalog resolves catalog numbers to element sets, serving recent cached
// responses before going to the network.
type Catalog struct {
	fetcher *Fetcher
	cache   *Cache
	maxAge  time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewCatalog wires a fetcher and an optional cache (nil disables caching).
func NewCatalog(fetcher *Fetcher, cache *Cache, maxAge time.Duration, logger *slog.Logger) *Catalog {
	return &Catalog{
		fetcher: fetcher,
		cache:   cache,
		maxAge:  maxAge,
		now:     time.Now,
		logger:  logger,
	}
}

// Lookup returns the element set for catnr.
func (c *Catalog) Lookup(ctx context.Context, catnr int) (TLEEntry, error) {
	if c.cache != nil {
		data, ts, err := c.cache.LoadLatest(catnr)
		switch {
		case err != nil:
			c.logger.Debug("catalog cache miss", "norad_id", catnr, "error", err)
		case c.now().Sub(ts) > c.maxAge:
			c.logger.Debug("catalog cache entry expired", "norad_id", catnr, "cached_at", ts.Format(time.RFC3339))
		default:
			entry, err := findEntry(data, catnr, c.logger)
			if err == nil {
				c.logger.Info("loaded TLE from cache", "norad_id", catnr, "cached_at", ts.Format(time.RFC3339))
				return entry, nil
			}
			c.logger.Warn("ignoring unusable cache entry", "norad_id", catnr, "error", err)
		}
	}

	data, err := c.fetcher.Fetch(ctx, catnr)
	if err != nil {
		return TLEEntry{}, err
	}
	entry, err := findEntry(data, catnr, c.logger)
	if err != nil {
		return TLEEntry{}, err
	}

	if c.cache != nil {
		if err := c.cache.Write(catnr, data, c.now()); err != nil {
			c.logger.Warn("failed to cache TLE", "norad_id", catnr, "error", err)
		}
	}
	c.logger.Info("fetched TLE", "norad_id", catnr, "name", entry.Name, "epoch", entry.Epoch.Format(time.RFC3339))
	return entry, nil
}

func findEntry(data []byte, catnr int, logger *slog.Logger) (TLEEntry, error) {
	entries, err := Parse(bytes.NewReader(data), logger)
	if err != nil {
		return TLEEntry{}, err
	}
	for _, e := range entries {
		if e.NORADID == catnr {
			return e, nil
		}
	}
	return TLEEntry{}, fmt.Errorf("%w: %d", ErrNotFound, catnr)
}
