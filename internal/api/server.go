package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chatbi/internal/config"
	"chatbi/internal/logging"
	"chatbi/internal/session"
)

// NewRouter assembles the chi router with middleware, CORS and all
// application routes.
func NewRouter(engine *session.Engine, cfg *config.Config) chi.Router {
	handler := NewHandler(engine, cfg.Limits)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(cfg.Name + " backend is running"))
	})

	handler.RegisterRoutes(r)
	return r
}

// ListenAndServe starts the HTTP server on the configured port.
func ListenAndServe(engine *session.Engine, cfg *config.Config) error {
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logging.API("listening on %s", addr)
	return http.ListenAndServe(addr, NewRouter(engine, cfg))
}
