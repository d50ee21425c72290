package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/anime-music-garden/internal/anime"
	"github.com/dom/anime-music-garden/internal/api"
	"github.com/dom/anime-music-garden/internal/api/middleware"
	"github.com/dom/anime-music-garden/internal/cache"
	"github.com/dom/anime-music-garden/internal/config"
	"github.com/dom/anime-music-garden/internal/repository/postgres"
	"github.com/dom/anime-music-garden/internal/service"
	"github.com/dom/anime-music-garden/internal/websocket"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm/logger"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARNING: failed to read .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logLevel := logger.Warn
	if cfg.IsDevelopment() {
		logLevel = logger.Info
	}

	// Initialize database
	db, err := postgres.NewConnection(cfg.DatabaseURL, logLevel)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		log.Println("Redis connected")
	}

	repos := postgres.NewRepositories(db)

	hub := websocket.NewHub()
	go hub.Run()

	services := service.NewServices(repos, hub, cfg)

	animeClient := anime.NewClient(anime.Options{
		AniListURL: cfg.AniListURL,
		JikanURL:   cfg.JikanURL,
		Timeout:    cfg.HTTPClientTimeout,
		CacheTTL:   cfg.AnimeCacheTTL,
	}, cache.NewJSONCache(rdb, "anime:"))

	var limiter middleware.Limiter
	if cfg.RateLimitEnabled {
		limiter = middleware.NewLimiter(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow)
	}

	router := api.NewRouter(services, hub, animeClient, limiter, cfg)

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s (%s)", cfg.Port, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	hub.Stop()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	log.Println("Server stopped")
}
