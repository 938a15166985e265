package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
)

// minMarkupItems is how many items a markup pattern set must yield before it
// wins; below that the page layout probably shifted under the selectors and
// the next set gets a try.
const minMarkupItems = 3

// soldDatePrefixRe strips the "Sold" label eBay renders ahead of the date
var soldDatePrefixRe = regexp.MustCompile(`(?i)^sold\s+`)

// priceInTextRe finds a dollar amount inside arbitrary listing text
var priceInTextRe = regexp.MustCompile(`\$[\d,]+(?:\.\d{2})?`)

// soldDateInTextRe finds a "Sold Jan 2, 2006" fragment inside listing text
var soldDateInTextRe = regexp.MustCompile(`(?i)sold\s+([A-Z][a-z]{2}\s+\d{1,2},\s+\d{4})`)

// EBayScraper scrapes eBay sold/completed listings for one search string.
// Ladder: structured search endpoint, legacy ajax endpoint, then direct
// page-markup parsing with independent selector sets.
type EBayScraper struct {
	client             *http.Client
	baseURL            string
	pacer              *pacer
	requestTimeout     time.Duration
	enableDebugLogging bool
}

// NewEBayScraper creates the eBay page scraper. The base URL is configurable
// so tests can point it at a fixture server.
func NewEBayScraper(baseURL string, minInterval, requestTimeout time.Duration, enableDebugLogging bool) *EBayScraper {
	if requestTimeout <= 0 {
		requestTimeout = 6 * time.Second
	}
	return &EBayScraper{
		client:             &http.Client{Timeout: requestTimeout + time.Second},
		baseURL:            strings.TrimSuffix(baseURL, "/"),
		pacer:              newPacer(minInterval),
		requestTimeout:     requestTimeout,
		enableDebugLogging: enableDebugLogging,
	}
}

// Source implements domain.Scraper.
func (s *EBayScraper) Source() domain.Source { return domain.SourceEBay }

// Fetch implements domain.Scraper. It never returns a Go error.
func (s *EBayScraper) Fetch(ctx context.Context, search string) domain.ScrapeResult {
	if err := s.pacer.wait(ctx); err != nil {
		return domain.ScrapeResult{
			Source: domain.SourceEBay,
			Err:    &domain.ScrapingError{Source: domain.SourceEBay, Message: fmt.Sprintf("rate-limit wait aborted: %v", err)},
		}
	}

	ladder := []strategy{
		{name: "search-json", run: s.searchJSON},
		{name: "legacy-json", run: s.legacyJSON},
		{name: "sold-markup", run: s.soldMarkup},
	}
	return runLadder(ctx, domain.SourceEBay, search, ladder, s.enableDebugLogging)
}

// searchJSON hits the structured search endpoint.
func (s *EBayScraper) searchJSON(ctx context.Context, search string) ([]domain.RawListing, error) {
	reqURL := fmt.Sprintf("%s/sch/ajax/search?_nkw=%s&LH_Sold=1&LH_Complete=1&_ipg=60&_fmt=json",
		s.baseURL, url.QueryEscape(search))
	return s.fetchJSONListings(ctx, reqURL)
}

// legacyJSON hits the older ajax variant of the results page. Same defensive
// envelope handling; the two endpoints drift independently.
func (s *EBayScraper) legacyJSON(ctx context.Context, search string) ([]domain.RawListing, error) {
	reqURL := fmt.Sprintf("%s/sch/i.html?_nkw=%s&LH_Sold=1&LH_Complete=1&rt=nc&_ajax=1",
		s.baseURL, url.QueryEscape(search))
	return s.fetchJSONListings(ctx, reqURL)
}

func (s *EBayScraper) fetchJSONListings(ctx context.Context, reqURL string) ([]domain.RawListing, error) {
	body, err := fetchBody(ctx, s.client, s.requestTimeout, jsonRetryAttempts, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
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
		listing := domain.RawListing{
			Title:  firstString(item, "title", "name"),
			Price:  firstString(item, "price", "soldPrice", "currentPrice", "salePrice"),
			Date:   firstString(item, "soldDate", "endDate", "date", "endTime"),
			URL:    firstString(item, "url", "viewItemURL", "itemWebUrl", "link"),
			Image:  firstString(item, "image", "imageUrl", "galleryURL"),
			ItemID: firstString(item, "itemId", "id"),
			Source: domain.SourceEBay,
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// soldMarkup fetches the sold-listings results page and tries independent
// selector sets in order until one yields enough items. The redundancy is
// deliberate: eBay reworks the results markup without notice.
func (s *EBayScraper) soldMarkup(ctx context.Context, search string) ([]domain.RawListing, error) {
	reqURL := fmt.Sprintf("%s/sch/i.html?_nkw=%s&LH_Sold=1&LH_Complete=1&_ipg=60",
		s.baseURL, url.QueryEscape(search))

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

	parsers := []struct {
		name  string
		parse func(*goquery.Document) []domain.RawListing
	}{
		{"s-item", s.parseModernMarkup},
		{"sresult", s.parseLegacyMarkup},
		{"itm-anchor", s.parseAnchorMarkup},
	}

	for _, p := range parsers {
		listings := p.parse(doc)
		if len(listings) >= minMarkupItems {
			return listings, nil
		}
	}
	return nil, nil
}

// parseModernMarkup reads the current results layout (.s-item cards).
func (s *EBayScraper) parseModernMarkup(doc *goquery.Document) []domain.RawListing {
	var listings []domain.RawListing
	doc.Find("li.s-item, div.s-item").Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(".s-item__title").Text())
		if title == "" || strings.EqualFold(title, "Shop on eBay") {
			return
		}

		href, _ := sel.Find("a.s-item__link").Attr("href")
		if !strings.Contains(href, "/itm/") {
			return
		}

		date := strings.TrimSpace(sel.Find(".s-item__caption--signal, .s-item__ended-date").First().Text())
		if date == "" {
			date = strings.TrimSpace(sel.Find(".s-item__title--tagblock .POSITIVE").First().Text())
		}

		image, _ := sel.Find("img.s-item__image-img, .s-item__image img").Attr("src")

		listings = append(listings, domain.RawListing{
			Title:  title,
			Price:  strings.TrimSpace(sel.Find(".s-item__price").First().Text()),
			Date:   soldDatePrefixRe.ReplaceAllString(date, ""),
			URL:    href,
			Image:  image,
			Source: domain.SourceEBay,
		})
	})
	return listings
}

// parseLegacyMarkup reads the pre-2019 list layout (li.sresult rows).
func (s *EBayScraper) parseLegacyMarkup(doc *goquery.Document) []domain.RawListing {
	var listings []domain.RawListing
	doc.Find("li.sresult").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("h3.lvtitle a").First()
		href, _ := link.Attr("href")
		if href == "" {
			return
		}

		date := strings.TrimSpace(sel.Find(".timeleft .tme, .timeleft").First().Text())
		image, _ := sel.Find("img").First().Attr("src")

		listings = append(listings, domain.RawListing{
			Title:  strings.TrimSpace(link.Text()),
			Price:  strings.TrimSpace(sel.Find(".lvprice span.bold, .lvprice").First().Text()),
			Date:   soldDatePrefixRe.ReplaceAllString(date, ""),
			URL:    href,
			Image:  image,
			Source: domain.SourceEBay,
		})
	})
	return listings
}

// parseAnchorMarkup is the last-ditch pattern set: walk every listing anchor
// and mine price and sold date out of the surrounding container text.
func (s *EBayScraper) parseAnchorMarkup(doc *goquery.Document) []domain.RawListing {
	var listings []domain.RawListing
	seen := make(map[string]bool)

	doc.Find(`a[href*="/itm/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		title := strings.TrimSpace(sel.Text())
		if href == "" || title == "" || seen[href] {
			return
		}

		container := sel.Closest("li, div, tr")
		text := container.Text()
		price := priceInTextRe.FindString(text)
		if price == "" {
			return
		}

		var date string
		if m := soldDateInTextRe.FindStringSubmatch(text); len(m) == 2 {
			date = m[1]
		}

		image, _ := container.Find("img").First().Attr("src")

		seen[href] = true
		listings = append(listings, domain.RawListing{
			Title:  title,
			Price:  price,
			Date:   date,
			URL:    href,
			Image:  image,
			Source: domain.SourceEBay,
		})
	})
	return listings
}
