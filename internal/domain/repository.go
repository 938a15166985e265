package domain

import (
	"context"
	"time"
)

// Scraper is the capability every external sale-listing source implements.
// Fetch never returns a Go error: transport, timeout, and parse failures are
// converted into the ScrapeResult's Err field with zero listings, so one bad
// source can never abort a pipeline run.
type Scraper interface {
	Source() Source
	Fetch(ctx context.Context, search string) ScrapeResult
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
