package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
)

// PointScraper scrapes the 130point auction-sales aggregator. Ladder: the
// sales JSON endpoint, then the rendered sales table with two independent
// row patterns.
type PointScraper struct {
	client             *http.Client
	baseURL            string
	pacer              *pacer
	requestTimeout     time.Duration
	enableDebugLogging bool
}

// NewPointScraper creates the 130point scraper.
func NewPointScraper(baseURL string, minInterval, requestTimeout time.Duration, enableDebugLogging bool) *PointScraper {
	if requestTimeout <= 0 {
		requestTimeout = 6 * time.Second
	}
	return &PointScraper{
		client:             &http.Client{Timeout: requestTimeout + time.Second},
		baseURL:            strings.TrimSuffix(baseURL, "/"),
		pacer:              newPacer(minInterval),
		requestTimeout:     requestTimeout,
		enableDebugLogging: enableDebugLogging,
	}
}

// Source implements domain.Scraper.
func (s *PointScraper) Source() domain.Source { return domain.SourcePoint }

// Fetch implements domain.Scraper. It never returns a Go error.
func (s *PointScraper) Fetch(ctx context.Context, search string) domain.ScrapeResult {
	if err := s.pacer.wait(ctx); err != nil {
		return domain.ScrapeResult{
			Source: domain.SourcePoint,
			Err:    &domain.ScrapingError{Source: domain.SourcePoint, Message: fmt.Sprintf("rate-limit wait aborted: %v", err)},
		}
	}

	ladder := []strategy{
		{name: "sales-json", run: s.salesJSON},
		{name: "sales-markup", run: s.salesMarkup},
	}
	return runLadder(ctx, domain.SourcePoint, search, ladder, s.enableDebugLogging)
}

// salesJSON posts the search to the sales endpoint and decodes whichever
// envelope shape the backend is currently serving.
func (s *PointScraper) salesJSON(ctx context.Context, search string) ([]domain.RawListing, error) {
	body, err := fetchBody(ctx, s.client, s.requestTimeout, jsonRetryAttempts, func() (*http.Request, error) {
		form := url.Values{}
		form.Set("query", search)
		form.Set("type", "2")
		req, err := http.NewRequest(http.MethodPost, s.baseURL+"/sales/", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	items, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	var listings []domain.RawListing
	for _, item := range items {
		listings = append(listings, domain.RawListing{
			Title:  firstString(item, "title", "name", "itemTitle"),
			Price:  firstString(item, "price", "salePrice", "amount", "soldPrice"),
			Date:   firstString(item, "date", "saleDate", "endDate", "soldDate"),
			URL:    firstString(item, "url", "link", "itemUrl"),
			Image:  firstString(item, "image", "imageUrl", "thumb"),
			ItemID: firstString(item, "itemId", "id", "saleId"),
			Source: domain.SourcePoint,
		})
	}
	return listings, nil
}

// salesMarkup fetches the rendered sales page and tries a specific table
// pattern before falling back to scanning every table row.
func (s *PointScraper) salesMarkup(ctx context.Context, search string) ([]domain.RawListing, error) {
	reqURL := fmt.Sprintf("%s/sales/?query=%s", s.baseURL, url.QueryEscape(search))
	body, err := fetchBody(ctx, s.client, s.requestTimeout, 1, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	for _, selector := range []string{"table.sales-results tbody tr", "table tr"} {
		listings := s.parseRows(doc, selector)
		if len(listings) >= minMarkupItems {
			return listings, nil
		}
	}
	return nil, nil
}

// parseRows mines listing rows for a title anchor, a dollar amount, and a
// date-looking cell. Rows missing a genuine listing link are skipped rather
// than given a synthesized URL.
func (s *PointScraper) parseRows(doc *goquery.Document, selector string) []domain.RawListing {
	var listings []domain.RawListing
	seen := make(map[string]bool)

	doc.Find(selector).Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a[href]").First()
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if href == "" || title == "" || seen[href] {
			return
		}

		price := priceInTextRe.FindString(row.Text())
		if price == "" {
			return
		}

		var date string
		row.Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			text := strings.TrimSpace(cell.Text())
			if looksLikeDate(text) {
				date = text
				return false
			}
			return true
		})

		image, _ := row.Find("img").First().Attr("src")

		seen[href] = true
		listings = append(listings, domain.RawListing{
			Title:  title,
			Price:  price,
			Date:   date,
			URL:    href,
			Image:  image,
			Source: domain.SourcePoint,
		})
	})
	return listings
}

// looksLikeDate is a cheap pre-filter; real parsing happens in the normalizer.
func looksLikeDate(text string) bool {
	if len(text) < 6 || len(text) > 30 {
		return false
	}
	digits := 0
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 4 && (strings.Contains(text, "/") || strings.Contains(text, "-") || strings.Contains(text, ","))
}
