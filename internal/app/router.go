package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"moviecatalog/internal/auth"
	"moviecatalog/internal/comment"
	"moviecatalog/internal/favorite"
	"moviecatalog/internal/httpx"
	"moviecatalog/internal/maintenance"
	"moviecatalog/internal/movie"
	"moviecatalog/internal/observability"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type routes struct {
	logger      *observability.Logger
	clientIP    *httpx.ClientIPResolver
	verifier    auth.TokenVerifier
	users       *auth.Handler
	movies      *movie.Handler
	comments    *comment.Handler
	favorites   *favorite.Handler
	maintenance *maintenance.Handler
	database    pinger

	corsOrigins     []string
	rateLimitMax    int
	rateLimitWindow time.Duration
}

func newRouter(rt routes) http.Handler {
	requireAuth := auth.Middleware(rt.verifier, rt.logger)

	r := chi.NewRouter()
	r.Use(rt.clientIP.Middleware)
	r.Use(observability.RecoverMiddleware(rt.logger))
	r.Use(observability.RequestLoggingMiddleware(rt.logger))
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  originAllowed(rt.corsOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, httpx.CodeInvalidRequest, "method not allowed")
	})

	r.Get("/health", healthHandler(rt.database))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", rt.users.Register)
			r.With(auth.RequestRateLimiter(rt.rateLimitMax, rt.rateLimitWindow)).Post("/login", rt.users.Login)
			r.With(auth.RequestRateLimiter(rt.rateLimitMax, rt.rateLimitWindow)).Post("/forgot-password", rt.users.ForgotPassword)
			r.Post("/reset-password", rt.users.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", rt.users.Logout)
				r.Get("/me", rt.users.Me)
				r.Put("/me", rt.users.UpdateMe)
				r.Delete("/me", rt.users.DeleteMe)
				r.Put("/me/password", rt.users.ChangePassword)
			})
		})

		r.Route("/movies", func(r chi.Router) {
			r.Get("/", rt.movies.List)
			r.Get("/{id}", rt.movies.Get)
			r.Get("/{id}/comments", rt.comments.List)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", rt.movies.Create)
				r.Put("/{id}", rt.movies.Update)
				r.Delete("/{id}", rt.movies.Delete)
				r.Post("/{id}/comments", rt.comments.Create)
			})
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", rt.favorites.List)
			r.Post("/", rt.favorites.Add)
			r.Delete("/", rt.favorites.Clear)
			r.Get("/check/{movieId}", rt.favorites.Check)
			r.Delete("/{movieId}", rt.favorites.Remove)
		})
	})

	r.Route("/internal/maintenance", func(r chi.Router) {
		r.Get("/cleanup", rt.maintenance.Cleanup)
		r.Post("/cleanup", rt.maintenance.Cleanup)
		r.Get("/stats", rt.maintenance.Stats)
	})

	return r
}

// originAllowed accepts the configured origins and Vercel deployments.
func originAllowed(origins []string) func(r *http.Request, origin string) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		allowed[strings.ToLower(origin)] = struct{}{}
	}

	return func(_ *http.Request, origin string) bool {
		origin = strings.ToLower(strings.TrimRight(origin, "/"))
		if _, ok := allowed[origin]; ok {
			return true
		}
		return strings.HasPrefix(origin, "https://") && strings.HasSuffix(origin, ".vercel.app")
	}
}

func healthHandler(database pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		httpx.WriteJSON(w, status, body)
	}
}
