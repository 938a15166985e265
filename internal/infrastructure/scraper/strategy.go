package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
)

// Acceptance filtering. Candidate items a strategy extracted are discarded
// before they count toward the strategy's result: short titles, multi-card
// terms, and implausible prices are noise, not comps.
const (
	minAcceptTitleLength = 10
	maxAcceptPrice       = 50000.0
)

// titleDenylist rejects listings that are not single-card sales
var titleDenylist = []string{
	"lot", "break", "bundle", "mystery pack", "repack",
	"pick your", "choose", "complete set", "checklist",
}

// jsonRetryAttempts bounds the re-attempts inside a JSON strategy; markup
// strategies get a single shot because their fallbacks are other pattern sets
const (
	jsonRetryAttempts = 2
	retryBackoff      = 300 * time.Millisecond
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// strategy is one rung of a source's fallback ladder.
type strategy struct {
	name string
	run  func(ctx context.Context, search string) ([]domain.RawListing, error)
}

// runLadder tries strategies in order and short-circuits on the first one
// yielding at least one accepted listing. Strategy errors are collected, not
// raised: the ladder only reports a source error when every rung failed and
// at least one of them failed hard.
func runLadder(ctx context.Context, source domain.Source, search string, strategies []strategy, debug bool) domain.ScrapeResult {
	var lastErr error

	for _, st := range strategies {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		listings, err := st.run(ctx, search)
		if err != nil {
			if debug {
				log.Printf("[SCRAPE] %s/%s failed: %v", source, st.name, err)
			}
			lastErr = err
			continue
		}

		accepted := filterListings(listings)
		if debug {
			log.Printf("[SCRAPE] %s/%s: %d raw, %d accepted", source, st.name, len(listings), len(accepted))
		}
		if len(accepted) > 0 {
			return domain.ScrapeResult{Source: source, Listings: accepted}
		}
	}

	result := domain.ScrapeResult{Source: source}
	if lastErr != nil {
		result.Err = &domain.ScrapingError{Source: source, Message: lastErr.Error()}
	}
	return result
}

// filterListings applies the acceptance rules. Items without a genuine
// scraped listing URL are dropped rather than given a fabricated link.
func filterListings(listings []domain.RawListing) []domain.RawListing {
	var accepted []domain.RawListing
	for _, l := range listings {
		title := strings.TrimSpace(l.Title)
		if len(title) < minAcceptTitleLength {
			continue
		}
		if containsDenied(strings.ToLower(title)) {
			continue
		}
		price, ok := parsePriceString(l.Price)
		if !ok || price <= 0 || price >= maxAcceptPrice {
			continue
		}
		if !isAbsoluteHTTPURL(l.URL) {
			continue
		}
		accepted = append(accepted, l)
	}
	return accepted
}

func containsDenied(titleLower string) bool {
	for _, term := range titleDenylist {
		if strings.Contains(titleLower, term) {
			return true
		}
	}
	return false
}

var priceNoiseRe = regexp.MustCompile(`[$€£,\s]`)

func parsePriceString(raw string) (float64, bool) {
	cleaned := priceNoiseRe.ReplaceAllString(raw, "")
	if idx := strings.IndexAny(cleaned, "tT"); idx > 0 {
		// "$10.00 to $25.00" ranges: take the first bound
		cleaned = cleaned[:idx]
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// fetchBody performs one HTTP exchange with a hard per-request timeout,
// retrying transient failures up to attempts times with linear backoff.
func fetchBody(ctx context.Context, client *http.Client, timeout time.Duration, attempts int, build func() (*http.Request, error)) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		rctx, cancel := context.WithTimeout(ctx, timeout)
		body, err := doOnce(rctx, client, build)
		cancel()
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			select {
			case <-time.After(time.Duration(attempt) * retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, lastErr
}

func doOnce(ctx context.Context, client *http.Client, build func() (*http.Request, error)) ([]byte, error) {
	req, err := build()
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req = req.WithContext(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	}

	return body, nil
}

// decodeEnvelope accepts the response envelope shapes these endpoints have
// been observed returning: a bare array, {"items":[...]}, {"results":[...]},
// {"sales":[...]}, or the same lists nested under "data". A parseable body
// with no recognized list decodes to an empty slice, not an error.
func decodeEnvelope(body []byte) ([]map[string]any, error) {
	var bare []map[string]any
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var env struct {
		Items   []map[string]any `json:"items"`
		Results []map[string]any `json:"results"`
		Sales   []map[string]any `json:"sales"`
		Data    struct {
			Items []map[string]any `json:"items"`
			Sales []map[string]any `json:"sales"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unrecognized response envelope: %w", err)
	}

	switch {
	case len(env.Items) > 0:
		return env.Items, nil
	case len(env.Results) > 0:
		return env.Results, nil
	case len(env.Sales) > 0:
		return env.Sales, nil
	case len(env.Data.Items) > 0:
		return env.Data.Items, nil
	case len(env.Data.Sales) > 0:
		return env.Data.Sales, nil
	}
	return nil, nil
}

// firstString pulls the first present key out of a loosely-typed JSON item.
// Numbers are formatted without an exponent so item IDs survive.
func firstString(item map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := item[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case map[string]any:
			// nested {"value": ...} money objects
			if inner := firstString(t, "value", "amount"); inner != "" {
				return inner
			}
		}
	}
	return ""
}
