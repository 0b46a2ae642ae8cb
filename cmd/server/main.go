package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blatik/shortlink/config"
	"github.com/blatik/shortlink/internal/auth"
	"github.com/blatik/shortlink/internal/catalog"
	"github.com/blatik/shortlink/internal/filter"
	"github.com/blatik/shortlink/internal/geo"
	"github.com/blatik/shortlink/internal/handler"
	"github.com/blatik/shortlink/internal/middleware"
	"github.com/blatik/shortlink/internal/service"
	"github.com/blatik/shortlink/internal/store"
)

func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Link catalog (MySQL): listings and click history
	db, err := catalog.Open(cfg.MySQL.DSN(), cfg.MySQL.MaxIdleConns, cfg.MySQL.MaxOpenConns)
	if err != nil {
		log.Fatalf("Failed to open catalog database: %v", err)
	}
	cat, err := catalog.NewCatalog(db)
	if err != nil {
		log.Fatalf("Failed to initialize catalog: %v", err)
	}
	defer cat.Close()

	// Link store (Redis): authoritative short code -> link mapping
	linkStore, err := store.NewLinkStore(
		cfg.Redis.Addr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		log.Fatalf("Failed to initialize link store: %v", err)
	}
	defer linkStore.Close()

	// Seed the bloom filter with every code the catalog knows about
	codeFilter := filter.NewCodeFilter(cfg.BloomFilter.Capacity, cfg.BloomFilter.FalsePositiveRate)
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	codes, err := cat.AllShortCodes(seedCtx)
	cancelSeed()
	if err != nil {
		log.Printf("Warning: failed to seed code filter: %v", err)
	} else {
		codeFilter.Seed(codes)
		log.Printf("Seeded code filter with %d short codes", len(codes))
	}

	geoResolver := geo.NewResolver(time.Duration(cfg.Geo.CacheTTLHours) * time.Hour)

	linkService := service.NewLinkService(linkStore, cat, codeFilter, geoResolver, cfg.App.HashSalt)
	analyticsService := service.NewAnalyticsService(cat)
	ownerResolver := auth.NewResolver(cfg.App.JWTSecret)

	requestID, err := middleware.NewRequestID(cfg.Snowflake.DatacenterID, cfg.Snowflake.WorkerID)
	if err != nil {
		log.Fatalf("Failed to initialize request-id middleware: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	router.Use(middleware.CORS())
	router.Use(requestID.Middleware())

	urlHandler := handler.NewURLHandler(linkService, analyticsService, ownerResolver, cfg.App.BaseURL, cfg.App.FrontendURL)

	router.GET("/", urlHandler.Home)
	router.GET("/health", urlHandler.HealthCheck)
	router.GET("/:code", urlHandler.Redirect)

	api := router.Group("/api")
	{
		api.POST("/shorten", urlHandler.Shorten)
		api.GET("/urls", urlHandler.ListURLs)
		api.GET("/analytics/:code", urlHandler.AnalyticsSummary)
	}

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server starting on port %d...", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
