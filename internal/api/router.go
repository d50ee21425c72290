package api

import (
	"net/http"

	"github.com/dom/anime-music-garden/internal/api/handlers"
	"github.com/dom/anime-music-garden/internal/api/middleware"
	"github.com/dom/anime-music-garden/internal/config"
	"github.com/dom/anime-music-garden/internal/domain"
	"github.com/dom/anime-music-garden/internal/service"
	"github.com/dom/anime-music-garden/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route. A nil limiter disables rate limiting.
func NewRouter(services *service.Services, hub *websocket.Hub, animeLookup handlers.AnimeLookup, limiter middleware.Limiter, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.PeerAddr)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Handle("/metrics", promhttp.Handler())

	authHandler := handlers.NewAuthHandler(services.Auth, services.User)
	checkInHandler := handlers.NewCheckInHandler(services.CheckIn)
	userHandler := handlers.NewUserHandler(services.User)
	animeHandler := handlers.NewAnimeHandler(animeLookup)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Auth, cfg.AllowedOrigins)

	requireAuth := middleware.Auth(services.Auth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(limiter, "register")).Post("/register", authHandler.Register)
			r.With(middleware.RateLimit(limiter, "login")).Post("/login", authHandler.Login)
			r.With(middleware.RateLimit(limiter, "refresh")).Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
			})
		})

		r.Route("/checkins", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", checkInHandler.Create)
			r.Get("/", checkInHandler.List)
			r.Get("/{id}", checkInHandler.Get)
			r.Put("/{id}", checkInHandler.Update)
			r.Delete("/{id}", checkInHandler.Delete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/profile", userHandler.GetProfile)
			r.Put("/profile", userHandler.UpdateProfile)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleAdmin))
				r.Get("/stats", userHandler.AdminStats)
				r.Get("/users", userHandler.AdminUsers)
			})
		})

		r.Route("/anime", func(r chi.Router) {
			r.Get("/search", animeHandler.Search)
			r.Get("/{id}", animeHandler.Get)
			r.Get("/{id}/characters", animeHandler.Characters)
			r.Get("/{id}/soundtrack", animeHandler.Soundtrack)
		})

		r.Get("/ws", wsHandler.Handle)
	})

	return r
}
