package domain

import "errors"

var (
	// ErrNoSources is returned when a request selects zero recognized sources.
	// This is the only failure that aborts the pipeline before any work starts.
	ErrNoSources = errors.New("no valid sources selected")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrSourceUnavailable is returned inside scrapers when a source cannot be
	// reached; it never escapes a ScrapeResult
	ErrSourceUnavailable = errors.New("source unavailable")
)
