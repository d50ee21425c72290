package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dom/anime-music-garden/internal/anime"
	"github.com/dom/anime-music-garden/internal/api"
	"github.com/dom/anime-music-garden/internal/api/handlers"
	"github.com/dom/anime-music-garden/internal/api/middleware"
	"github.com/dom/anime-music-garden/internal/config"
	"github.com/dom/anime-music-garden/internal/repository"
	repoPostgres "github.com/dom/anime-music-garden/internal/repository/postgres"
	"github.com/dom/anime-music-garden/internal/service"
	"github.com/dom/anime-music-garden/internal/websocket"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB is a migrated database for one test. Postgres databases run in a
// testcontainer; SQLite databases live in memory.
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB opens a private in-memory SQLite database.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dsn := fmt.Sprintf("file:garden_%s?mode=memory&cache=shared", strings.ReplaceAll(uuid.NewString(), "-", ""))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// One connection serialises transactions the way row locks would
	sqlDB.SetMaxOpenConns(1)

	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{DB: db, DSN: dsn}
	t.Cleanup(testDB.Cleanup)
	return testDB
}

// NewPostgresTestDB starts a PostgreSQL testcontainer. It is skipped with -short.
func NewPostgresTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_anime_garden"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := repoPostgres.Migrate(db); err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}
	t.Cleanup(testDB.Cleanup)
	return testDB
}

// Cleanup closes the connection and terminates the container, if any
func (tdb *TestDB) Cleanup() {
	if sqlDB, err := tdb.DB.DB(); err == nil {
		sqlDB.Close()
	}
	if tdb.Container != nil {
		tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	tables := []string{"check_ins", "refresh_tokens", "users"}

	for _, table := range tables {
		stmt := fmt.Sprintf("DELETE FROM %s", table)
		if tdb.DB.Dialector.Name() == "postgres" {
			stmt = fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		}
		if err := tdb.DB.Exec(stmt).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Environment:       "test",
		AllowedOrigins:    []string{"*"},
		JWTSecret:         "test-jwt-secret-key-for-testing-only",
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   24 * time.Hour,
		BcryptCost:        bcrypt.MinCost,
		RateLimitEnabled:  false,
		RateLimitRequests: 20,
		RateLimitWindow:   time.Minute,
		AnimeCacheTTL:     time.Minute,
		HTTPClientTimeout: 2 * time.Second,
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	DB       *TestDB
	Repos    *repository.Repositories
	Services *service.Services
	Hub      *websocket.Hub
	Config   *config.Config
}

type serverOptions struct {
	db          *TestDB
	animeLookup handlers.AnimeLookup
	limiter     middleware.Limiter
	configure   func(*config.Config)
}

type ServerOption func(*serverOptions)

// WithDB runs the server against db instead of a fresh SQLite database.
func WithDB(db *TestDB) ServerOption {
	return func(o *serverOptions) { o.db = db }
}

func WithAnimeLookup(lookup handlers.AnimeLookup) ServerOption {
	return func(o *serverOptions) { o.animeLookup = lookup }
}

func WithLimiter(limiter middleware.Limiter) ServerOption {
	return func(o *serverOptions) { o.limiter = limiter }
}

func WithConfig(fn func(*config.Config)) ServerOption {
	return func(o *serverOptions) { o.configure = fn }
}

// NewTestServer creates a complete test server with all dependencies
func NewTestServer(t *testing.T, opts ...ServerOption) *TestServer {
	t.Helper()

	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	testDB := o.db
	if testDB == nil {
		testDB = NewTestDB(t)
	}
	cfg := TestConfig()
	if o.configure != nil {
		o.configure(cfg)
	}
	if o.animeLookup == nil {
		o.animeLookup = anime.NewClient(anime.Options{
			AniListURL: cfg.AniListURL,
			JikanURL:   cfg.JikanURL,
			Timeout:    cfg.HTTPClientTimeout,
		}, nil)
	}

	repos := repoPostgres.NewRepositories(testDB.DB)
	hub := websocket.NewHub()
	go hub.Run()

	services := service.NewServices(repos, hub, cfg)
	router := api.NewRouter(services, hub, o.animeLookup, o.limiter, cfg)

	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:   server,
		DB:       testDB,
		Repos:    repos,
		Services: services,
		Hub:      hub,
		Config:   cfg,
	}

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api%s", ts.Server.URL, path)
}

// WebSocketURL returns the WebSocket URL with token
func (ts *TestServer) WebSocketURL(token string) string {
	wsURL := "ws" + strings.TrimPrefix(ts.Server.URL, "http")
	return fmt.Sprintf("%s/api/ws?token=%s", wsURL, token)
}
