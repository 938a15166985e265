package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
)

// browseSearchResponse is the subset of the eBay Browse API item_summary
// response the pipeline consumes.
type browseSearchResponse struct {
	ItemSummaries []struct {
		ItemID string `json:"itemId"`
		Title  string `json:"title"`
		Price  struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"price"`
		ItemWebURL  string `json:"itemWebUrl"`
		ItemEndDate string `json:"itemEndDate"`
		Image       struct {
			ImageURL string `json:"imageUrl"`
		} `json:"image"`
	} `json:"itemSummaries"`
}

// EBayAPIClient is the optional official-API source. It only participates
// when an OAuth token is configured; without one every Fetch reports a
// not-configured error entry and zero results.
type EBayAPIClient struct {
	client             *http.Client
	baseURL            string
	token              string
	limiter            *rate.Limiter
	requestTimeout     time.Duration
	enableDebugLogging bool
	now                func() time.Time
}

// NewEBayAPIClient creates the Browse API client. The limiter stays inside
// eBay's published application rate cap.
func NewEBayAPIClient(baseURL, token string, requestTimeout time.Duration, enableDebugLogging bool) *EBayAPIClient {
	if requestTimeout <= 0 {
		requestTimeout = 6 * time.Second
	}
	return &EBayAPIClient{
		client:             &http.Client{Timeout: requestTimeout + time.Second},
		baseURL:            strings.TrimSuffix(baseURL, "/"),
		token:              token,
		limiter:            rate.NewLimiter(rate.Limit(2), 5),
		requestTimeout:     requestTimeout,
		enableDebugLogging: enableDebugLogging,
		now:                time.Now,
	}
}

// Source implements domain.Scraper.
func (c *EBayAPIClient) Source() domain.Source { return domain.SourceEBayAPI }

// Fetch implements domain.Scraper. It never returns a Go error.
func (c *EBayAPIClient) Fetch(ctx context.Context, search string) domain.ScrapeResult {
	fail := func(format string, args ...any) domain.ScrapeResult {
		return domain.ScrapeResult{
			Source: domain.SourceEBayAPI,
			Err:    &domain.ScrapingError{Source: domain.SourceEBayAPI, Message: fmt.Sprintf(format, args...)},
		}
	}

	if c.token == "" {
		return fail("ebay api token not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail("rate-limit wait aborted: %v", err)
	}

	params := url.Values{}
	params.Set("q", search)
	params.Set("limit", "50")
	reqURL := fmt.Sprintf("%s/item_summary/search?%s", c.baseURL, params.Encode())

	body, err := fetchBody(ctx, c.client, c.requestTimeout, jsonRetryAttempts, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return fail("%v", err)
	}

	var decoded browseSearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fail("failed to decode response: %v", err)
	}

	var listings []domain.RawListing
	for _, item := range decoded.ItemSummaries {
		date := item.ItemEndDate
		if date == "" {
			// Active listings carry no sale date; treat them as
			// current asking comparables.
			date = c.now().Format(time.RFC3339)
		}
		listings = append(listings, domain.RawListing{
			Title:  item.Title,
			Price:  item.Price.Value,
			Date:   date,
			URL:    item.ItemWebURL,
			Image:  item.Image.ImageURL,
			ItemID: item.ItemID,
			Source: domain.SourceEBayAPI,
		})
	}

	return domain.ScrapeResult{Source: domain.SourceEBayAPI, Listings: filterListings(listings)}
}
