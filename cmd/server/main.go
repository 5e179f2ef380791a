package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/clumsystudios/rarity-tracker/internal/api"
	"github.com/clumsystudios/rarity-tracker/internal/database"
	"github.com/clumsystudios/rarity-tracker/internal/rarity"
	"github.com/clumsystudios/rarity-tracker/internal/services"
	"github.com/clumsystudios/rarity-tracker/internal/store"
)

func main() {
	// Database path
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./rarity_tracker.db"
	}

	// Initialize database
	if err := database.Initialize(dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	collectionStore := store.New(database.GetDB())

	// Chain metadata source
	chainURL := os.Getenv("CHAIN_GRAPHQL_URL")
	if chainURL == "" {
		chainURL = "https://graphql-api.mainnet.dandelion.link/"
	}
	chainService := services.NewChainService(chainURL)

	// Marketplace sales/listings source
	marketURL := os.Getenv("MARKET_API_URL")
	if marketURL == "" {
		marketURL = "https://server.jpgstoreapis.com"
	}
	marketDailyLimit := 500
	if limitStr := os.Getenv("MARKET_DAILY_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			marketDailyLimit = limit
		}
	}
	marketService := services.NewMarketService(marketURL, marketDailyLimit)

	// Sync interval
	syncInterval := 30 * time.Minute
	if intervalStr := os.Getenv("SYNC_INTERVAL_MINUTES"); intervalStr != "" {
		if minutes, err := strconv.Atoi(intervalStr); err == nil && minutes > 0 {
			syncInterval = time.Duration(minutes) * time.Minute
		}
	}
	syncService := services.NewSyncService(collectionStore, chainService, marketService, syncInterval)

	// Optional weighted scoring mode: a directory of stat CSVs switches
	// collections to point-multiplier scoring.
	if statsDir := os.Getenv("STATS_DATA_DIR"); statsDir != "" {
		table, err := services.LoadStatsDir(statsDir)
		if err != nil {
			log.Fatalf("Failed to load stats tables: %v", err)
		}
		statSubset := []string{"speed", "luck", "stamina"}
		if subset := os.Getenv("STAT_TOTAL_SUBSET"); subset != "" {
			statSubset = splitList(subset)
		}
		syncService.ConfigureWeightedMode(table, rarity.DefaultMultipliers, statSubset)
		log.Printf("Weighted scoring mode enabled: %d point entries", len(table))
	}

	// Setup router first: it registers the sync callback, which must be in
	// place before the worker's first run.
	router := api.SetupRouter(collectionStore, syncService)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start sync worker in background with panic recovery
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in sync worker: %v - restarting in 30 seconds", r)
					}
				}()
				syncService.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
				log.Println("Sync worker restarting after panic recovery...")
			}
		}
	}()

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the sync worker
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
