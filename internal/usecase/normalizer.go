package usecase

import (
	"fmt"
	"log"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
)

// NormalizedComp invariants. Raw listings failing any of these are dropped
// silently: third-party markup produces garbage rows as a matter of course
// and rejection is noise filtering, not failure.
const (
	minTitleLength = 10
	maxCompPrice   = 50000.0

	// plausible sale-date window relative to now
	maxDateAge    = 2 * 365 * 24 * time.Hour
	maxDateFuture = 7 * 24 * time.Hour

	// dedupPriceBucket is the fixed width of the price band used in the
	// duplicate signature
	dedupPriceBucket = 25.0
)

// Compiled regex patterns for listing sanitization
var (
	titleAllowSetPattern = regexp.MustCompile(`[^a-zA-Z0-9 .,#/&()'\-]`)
	currencyNoisePattern = regexp.MustCompile(`[$€£,\s]|usd|aud|cad`)
	collapseSpacePattern = regexp.MustCompile(`\s+`)
	nonWordPattern       = regexp.MustCompile(`[^\w]+`)
)

// dateLayouts are tried in order when coercing scraped sale dates. Markup
// parsing yields several formats depending on which strategy won.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"Jan-2-06",
	"01/02/2006",
	"01/02/06",
	"2 Jan 2006",
}

// signatureStopWords are tokens too common in card listings to distinguish
// one listing from another.
var signatureStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "card": true,
	"mint": true, "near": true, "condition": true, "free": true,
	"shipping": true, "new": true, "rare": true, "hot": true,
}

// Normalizer reconciles raw listings from every source into the canonical
// comp shape. Each listing is sanitized independently; a bad listing removes
// only itself, never the batch.
type Normalizer struct {
	enableDebugLogging bool
	now                func() time.Time
}

// NewNormalizer creates a normalizer. The clock is injectable for tests.
func NewNormalizer(enableDebugLogging bool) *Normalizer {
	return &Normalizer{
		enableDebugLogging: enableDebugLogging,
		now:                time.Now,
	}
}

// Combine merges the per-source results of one search attempt into sanitized
// comps plus the accumulated source errors. Output is sorted by sale date
// descending.
func (n *Normalizer) Combine(results []domain.ScrapeResult) ([]domain.NormalizedComp, []domain.ScrapingError) {
	var comps []domain.NormalizedComp
	var errs []domain.ScrapingError

	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, *res.Err)
		}
		for _, raw := range res.Listings {
			comp, ok := n.sanitize(raw)
			if !ok {
				continue
			}
			comps = append(comps, comp)
		}
	}

	sortByDateDesc(comps)

	if n.enableDebugLogging {
		log.Printf("[NORMALIZE] %d comps from %d source results (%d errors)",
			len(comps), len(results), len(errs))
	}

	return comps, errs
}

// sanitize validates and coerces one raw listing. The bool result is false
// when any field fails its invariant.
func (n *Normalizer) sanitize(raw domain.RawListing) (domain.NormalizedComp, bool) {
	title := sanitizeTitle(raw.Title)
	if len(title) < minTitleLength {
		return domain.NormalizedComp{}, false
	}

	price, ok := parsePrice(raw.Price)
	if !ok || price <= 0 || price > maxCompPrice {
		return domain.NormalizedComp{}, false
	}

	date, ok := parseDate(raw.Date)
	if !ok {
		return domain.NormalizedComp{}, false
	}
	now := n.now()
	if date.Before(now.Add(-maxDateAge)) || date.After(now.Add(maxDateFuture)) {
		return domain.NormalizedComp{}, false
	}

	if !isValidHTTPURL(raw.URL) {
		return domain.NormalizedComp{}, false
	}

	image := raw.Image
	if image != "" && !isValidHTTPURL(image) {
		image = ""
	}

	source := raw.Source
	if normalized := domain.NormalizeSource(string(raw.Source)); normalized != "" {
		source = normalized
	} else {
		return domain.NormalizedComp{}, false
	}

	return domain.NormalizedComp{
		Title:  title,
		Price:  roundCents(price),
		Date:   date,
		Source: source,
		Image:  image,
		URL:    raw.URL,
	}, true
}

// Deduplicate collapses near-duplicate listings across the whole run. Two
// comps with the same significant title words, price band, and source are
// considered the same sale; the later-dated one wins. Running Deduplicate on
// its own output is a no-op.
func (n *Normalizer) Deduplicate(comps []domain.NormalizedComp) []domain.NormalizedComp {
	bysig := make(map[string]domain.NormalizedComp)
	order := make([]string, 0, len(comps))

	for _, comp := range comps {
		sig := compSignature(comp)
		existing, seen := bysig[sig]
		if !seen {
			order = append(order, sig)
			bysig[sig] = comp
			continue
		}
		if comp.Date.After(existing.Date) {
			bysig[sig] = comp
		}
	}

	deduped := make([]domain.NormalizedComp, 0, len(order))
	for _, sig := range order {
		deduped = append(deduped, bysig[sig])
	}

	sortByDateDesc(deduped)

	if n.enableDebugLogging && len(deduped) < len(comps) {
		log.Printf("[NORMALIZE] dedup removed %d of %d comps", len(comps)-len(deduped), len(comps))
	}

	return deduped
}

// compSignature builds the duplicate-detection key: significant title words
// plus a fixed-width price band plus the source. Tolerates whitespace and
// minor wording differences between re-scrapes of the same sale.
func compSignature(comp domain.NormalizedComp) string {
	words := significantWords(comp.Title)
	bucket := int(comp.Price / dedupPriceBucket)
	return fmt.Sprintf("%s|%d|%s", strings.Join(words, " "), bucket, comp.Source)
}

// significantWords reduces a title to its sorted, distinctive tokens.
func significantWords(title string) []string {
	tokens := nonWordPattern.Split(strings.ToLower(title), -1)
	seen := make(map[string]bool)
	var words []string
	for _, tok := range tokens {
		if len(tok) < 3 || signatureStopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		words = append(words, tok)
	}
	sort.Strings(words)
	return words
}

// sanitizeTitle trims, collapses whitespace, and strips characters outside
// the safe allow-set.
func sanitizeTitle(title string) string {
	title = titleAllowSetPattern.ReplaceAllString(title, " ")
	title = collapseSpacePattern.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}

// parsePrice coerces a scraped price string ("$1,234.56", "120 USD") to a
// number.
func parsePrice(raw string) (float64, bool) {
	cleaned := currencyNoisePattern.ReplaceAllString(strings.ToLower(raw), "")
	if cleaned == "" {
		return 0, false
	}
	// Price ranges ("$10.00 to $25.00") are ambiguous; take the first bound.
	if idx := strings.Index(cleaned, "to"); idx > 0 {
		cleaned = cleaned[:idx]
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func parseDate(raw string) (time.Time, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "Sold")
	cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "sold"))
	if cleaned == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func sortByDateDesc(comps []domain.NormalizedComp) {
	sort.SliceStable(comps, func(i, j int) bool {
		return comps[i].Date.After(comps[j].Date)
	})
}

func roundCents(price float64) float64 {
	return math.Round(price*100) / 100
}
