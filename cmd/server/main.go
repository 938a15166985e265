package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ScullyB96/trading-card-oracle-sub000/config"
	httpDelivery "github.com/ScullyB96/trading-card-oracle-sub000/internal/delivery/http"
	"github.com/ScullyB96/trading-card-oracle-sub000/internal/domain"
	"github.com/ScullyB96/trading-card-oracle-sub000/internal/infrastructure/cache"
	"github.com/ScullyB96/trading-card-oracle-sub000/internal/infrastructure/scraper"
	"github.com/ScullyB96/trading-card-oracle-sub000/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Card Comp Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Pipeline budget: %s global / %s per query", cfg.Pipeline.GlobalTimeout, cfg.Pipeline.QueryTimeout)

	debug := cfg.Pipeline.EnableDebugLogging || cfg.Server.Environment == "development"
	if debug {
		log.Printf("Pipeline debug logging enabled")
	}

	// Initialize infrastructure dependencies
	responseCache := cache.NewMemoryCache()
	log.Printf("Response cache TTL: %s", cfg.Cache.TTL)

	scrapers := []domain.Scraper{
		scraper.NewEBayScraper(
			cfg.Sources.EBay.BaseURL,
			cfg.Sources.EBay.MinInterval,
			cfg.Sources.EBay.RequestTimeout,
			debug,
		),
		scraper.NewPointScraper(
			cfg.Sources.Point.BaseURL,
			cfg.Sources.Point.MinInterval,
			cfg.Sources.Point.RequestTimeout,
			debug,
		),
		scraper.NewEBayAPIClient(
			cfg.Sources.EBay.APIBaseURL,
			cfg.Sources.EBay.APIToken,
			cfg.Sources.EBay.RequestTimeout,
			debug,
		),
	}

	if cfg.Sources.EBay.APIToken == "" {
		log.Printf("eBay Browse API token not configured; the ebay_api source will report errors if selected")
	}

	// Initialize usecase layer
	compingService := usecase.NewCompingService(
		scrapers,
		responseCache,
		usecase.CompingServiceConfig{
			GlobalTimeout:      cfg.Pipeline.GlobalTimeout,
			QueryTimeout:       cfg.Pipeline.QueryTimeout,
			EarlyExitThreshold: cfg.Pipeline.EarlyExitThreshold,
			MaxSearchQueries:   cfg.Pipeline.MaxSearchQueries,
			MinMatchScore:      cfg.Pipeline.MinMatchScore,
			CacheTTL:           cfg.Cache.TTL,
			EnableDebugLogging: debug,
		},
	)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(compingService)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
