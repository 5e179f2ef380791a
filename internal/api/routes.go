package api

import (
	"os"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clumsystudios/rarity-tracker/internal/api/handlers"
	"github.com/clumsystudios/rarity-tracker/internal/metrics"
	"github.com/clumsystudios/rarity-tracker/internal/services"
	"github.com/clumsystudios/rarity-tracker/internal/store"
)

// metricsMiddleware records request counts per method, route, and status.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
	}
}

func SetupRouter(st *store.Store, syncService *services.SyncService) *gin.Engine {
	router := gin.Default()

	// CORS configuration - allow origins from environment or use defaults
	config := cors.DefaultConfig()
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		config.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false
	router.Use(cors.New(config))
	router.Use(metricsMiddleware())

	// Initialize handlers
	projectHandler := handlers.NewProjectHandler()
	collectionHandler := handlers.NewCollectionHandler(st)
	rankingHandler := handlers.NewRankingHandler(st)
	syncHandler := handlers.NewSyncHandler(syncService)

	// Drop cached ranked views whenever a sync rescores a collection.
	syncService.OnSync(rankingHandler.Invalidate)

	// API routes
	api := router.Group("/api")
	{
		projects := api.Group("/projects")
		{
			projects.GET("", projectHandler.ListProjects)
			projects.POST("", projectHandler.CreateProject)
			projects.GET("/:id", projectHandler.GetProject)
			projects.GET("/:id/collections", projectHandler.ListProjectCollections)
		}

		collections := api.Group("/collections")
		{
			collections.POST("", collectionHandler.CreateCollection)
			collections.GET("/:policy", collectionHandler.GetCollection)
			collections.GET("/:policy/stats", collectionHandler.GetCollectionStats)
			collections.GET("/:policy/assets", collectionHandler.ListAssets)
			collections.GET("/:policy/assets/:name", collectionHandler.GetAsset)
			collections.GET("/:policy/rankings", rankingHandler.GetRankings)
			collections.GET("/:policy/deals", rankingHandler.GetDeals)
			collections.POST("/:policy/sync", syncHandler.TriggerSync)
		}

		api.GET("/sync/status", syncHandler.GetSyncStatus)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
