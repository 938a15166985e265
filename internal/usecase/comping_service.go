package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
)

// pipelineSource labels system-level diagnostic entries (budget exhaustion,
// empty query plans) in the error list.
const pipelineSource domain.Source = "pipeline"

// fanOutGrace is how long past the per-query deadline the orchestrator waits
// for straggler scrapers before abandoning them.
const fanOutGrace = 500 * time.Millisecond

// CompRequest is the pipeline's input: the structured card attributes from
// the upstream extraction step plus the caller's aggregation and source
// selections.
type CompRequest struct {
	Query   domain.SearchQuery `json:"query"`
	Logic   domain.CompLogic   `json:"compLogic"`
	Sources []string           `json:"sources"`
}

// CompingServiceConfig holds the orchestrator's budgets and toggles.
type CompingServiceConfig struct {
	GlobalTimeout      time.Duration
	QueryTimeout       time.Duration
	EarlyExitThreshold int
	MaxSearchQueries   int
	MinMatchScore      float64
	CacheTTL           time.Duration
	EnableDebugLogging bool
}

// CompingService drives the full pipeline: build queries, scrape sources in
// parallel per query, normalize, accumulate until enough comps exist, then
// dedupe, match, valuate, and assemble the response. It never lets a source
// failure or budget expiry escape as an error; the only error it returns is
// a request with zero valid sources.
type CompingService struct {
	scrapers     map[domain.Source]domain.Scraper
	cache        domain.CacheRepository
	queryBuilder *QueryBuilder
	normalizer   *Normalizer
	matcher      *MatchingService
	valuator     *ValuationService
	config       CompingServiceConfig
	now          func() time.Time
}

// NewCompingService creates the orchestrator with its dependencies.
func NewCompingService(
	scrapers []domain.Scraper,
	cache domain.CacheRepository,
	config CompingServiceConfig,
) *CompingService {
	if config.GlobalTimeout <= 0 {
		config.GlobalTimeout = 25 * time.Second
	}
	if config.QueryTimeout <= 0 || config.QueryTimeout > config.GlobalTimeout {
		config.QueryTimeout = config.GlobalTimeout / 3
	}
	if config.EarlyExitThreshold <= 0 {
		config.EarlyExitThreshold = 3
	}

	bySource := make(map[domain.Source]domain.Scraper, len(scrapers))
	for _, s := range scrapers {
		bySource[s.Source()] = s
	}

	return &CompingService{
		scrapers:     bySource,
		cache:        cache,
		queryBuilder: NewQueryBuilder(config.MaxSearchQueries, config.EnableDebugLogging),
		normalizer:   NewNormalizer(config.EnableDebugLogging),
		matcher:      NewMatchingService(MatchConfig{MinScore: config.MinMatchScore, EnableDebugLogging: config.EnableDebugLogging}),
		valuator:     NewValuationService(config.EnableDebugLogging),
		config:       config,
		now:          time.Now,
	}
}

// Run executes one pipeline request. A well-formed response comes back for
// any request that passes source validation, including the structured
// "no data" shape when nothing usable was found.
func (s *CompingService) Run(ctx context.Context, req CompRequest) (*domain.CompingResponse, error) {
	enabled, err := s.resolveSources(req.Sources)
	if err != nil {
		return nil, err
	}

	if req.Logic != "" && !domain.ValidLogic(req.Logic) && s.config.EnableDebugLogging {
		log.Printf("[COMP] unrecognized logic %q, valuator will use the mean", req.Logic)
	}

	cacheKey := s.cacheKey(req)
	if cached := s.fromCache(ctx, cacheKey); cached != nil {
		if s.config.EnableDebugLogging {
			log.Printf("[COMP] cache hit for %q", cacheKey)
		}
		return cached, nil
	}

	start := s.now()
	deadline := start.Add(s.config.GlobalTimeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	debug := &domain.DebugInfo{
		RawResultCounts: make(map[string]int),
	}

	var allComps []domain.NormalizedComp
	var allErrors []domain.ScrapingError

	searches := s.queryBuilder.Build(req.Query)
	if len(searches) == 0 {
		allErrors = append(allErrors, domain.ScrapingError{
			Source:  pipelineSource,
			Message: "no search strings could be built: player is unknown",
		})
	}

	for i, search := range searches {
		if s.now().After(deadline.Add(-s.config.QueryTimeout / 2)) {
			allErrors = append(allErrors, domain.ScrapingError{
				Source:  pipelineSource,
				Message: fmt.Sprintf("insufficient time budget for another query; skipped %d remaining", len(searches)-i),
			})
			break
		}

		debug.AttemptedQueries = append(debug.AttemptedQueries, search)

		results := s.scrapeAll(ctx, enabled, search)
		for _, res := range results {
			debug.RawResultCounts[string(res.Source)] += len(res.Listings)
		}

		comps, errs := s.normalizer.Combine(results)
		allComps = append(allComps, comps...)
		allErrors = append(allErrors, errs...)

		if s.config.EnableDebugLogging {
			log.Printf("[COMP] query %d/%d %q: %d comps accumulated", i+1, len(searches), search, len(allComps))
		}

		if len(allComps) >= s.config.EarlyExitThreshold {
			break
		}
	}

	allComps = s.normalizer.Deduplicate(allComps)
	debug.RawResultCounts["normalized"] = len(allComps)

	match := s.matcher.Match(allComps, req.Query)
	result := s.valuator.Calculate(match.RelevantComps, req.Logic)

	debug.TotalProcessingTime = s.now().Sub(start).Milliseconds()

	response := &domain.CompingResponse{
		EstimatedValue:  fmt.Sprintf("$%.2f", result.EstimatedValue),
		LogicUsed:       result.LogicUsed,
		ExactMatchFound: match.ExactMatchFound,
		Confidence:      result.Confidence,
		Methodology:     result.Methodology,
		MatchMessage:    match.MatchMessage,
		Comps:           match.RelevantComps,
		Errors:          allErrors,
		Debug:           debug,
	}
	if response.Comps == nil {
		response.Comps = []domain.NormalizedComp{}
	}
	if response.Errors == nil {
		response.Errors = []domain.ScrapingError{}
	}

	if len(response.Comps) > 0 {
		s.toCache(ctx, cacheKey, response)
	}

	return response, nil
}

// scrapeAll fans one search string out to every enabled source concurrently
// and waits for all of them to settle within the per-query budget. Scrapers
// still outstanding when the grace timer fires are abandoned and recorded as
// timeouts; their eventual results are discarded.
func (s *CompingService) scrapeAll(ctx context.Context, enabled []domain.Scraper, search string) []domain.ScrapeResult {
	qctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	type settled struct {
		idx int
		res domain.ScrapeResult
	}

	ch := make(chan settled, len(enabled))
	for i, scraper := range enabled {
		go func(idx int, sc domain.Scraper) {
			ch <- settled{idx: idx, res: sc.Fetch(qctx, search)}
		}(i, scraper)
	}

	results := make([]domain.ScrapeResult, len(enabled))
	received := make([]bool, len(enabled))

	timer := time.NewTimer(s.config.QueryTimeout + fanOutGrace)
	defer timer.Stop()

	remaining := len(enabled)
	for remaining > 0 {
		select {
		case got := <-ch:
			results[got.idx] = got.res
			received[got.idx] = true
			remaining--
		case <-timer.C:
			remaining = 0
		}
	}

	for i, ok := range received {
		if !ok {
			results[i] = domain.ScrapeResult{
				Source: enabled[i].Source(),
				Err: &domain.ScrapingError{
					Source:  enabled[i].Source(),
					Message: "abandoned after per-query timeout",
				},
			}
		}
	}

	return results
}

// resolveSources maps the caller's source labels to enabled scrapers. Unknown
// labels are skipped; zero valid sources rejects the request before any work.
func (s *CompingService) resolveSources(labels []string) ([]domain.Scraper, error) {
	seen := make(map[domain.Source]bool)
	var enabled []domain.Scraper
	for _, label := range labels {
		source := domain.NormalizeSource(label)
		if source == "" || seen[source] {
			continue
		}
		scraper, ok := s.scrapers[source]
		if !ok {
			continue
		}
		seen[source] = true
		enabled = append(enabled, scraper)
	}
	if len(enabled) == 0 {
		return nil, domain.ErrNoSources
	}
	return enabled, nil
}

// cacheKey normalizes the request into a stable cache key.
func (s *CompingService) cacheKey(req CompRequest) string {
	sources := make([]string, 0, len(req.Sources))
	for _, label := range req.Sources {
		if src := domain.NormalizeSource(label); src != "" {
			sources = append(sources, string(src))
		}
	}
	sort.Strings(sources)
	q := req.Query
	parts := []string{q.Player, q.Year, q.Set, q.CardNumber, q.Grade, q.Sport, string(req.Logic)}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return fmt.Sprintf("comps:%s:%s", strings.Join(parts, ":"), strings.Join(sources, ","))
}

func (s *CompingService) fromCache(ctx context.Context, key string) *domain.CompingResponse {
	if s.cache == nil {
		return nil
	}
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	cached, ok := value.(*domain.CompingResponse)
	if !ok {
		return nil
	}
	// Hand back a copy with its own Debug struct. The cached object is shared
	// across requests, and the delivery layer stamps a per-request ID on Debug
	// while earlier hits may still be mid-serialization.
	response := *cached
	if cached.Debug != nil {
		debug := *cached.Debug
		response.Debug = &debug
	}
	return &response
}

func (s *CompingService) toCache(ctx context.Context, key string, response *domain.CompingResponse) {
	if s.cache == nil {
		return
	}
	ttl := s.config.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	// A cache write failure only costs the next caller a re-scrape.
	_ = s.cache.Set(ctx, key, response, ttl)
}
