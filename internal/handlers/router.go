package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/tictactoe/internal/middleware"
	"github.com/sirupsen/logrus"
)

// RouterDeps collects what the HTTP surface needs.
type RouterDeps struct {
	Sessions    http.Handler
	Stats       *StatsHandlers
	Rooms       interface{ RoomCount() int }
	CORSOrigins []string
	Logger      *logrus.Logger
}

// NewRouter mounts the WebSocket endpoint, the statistics API and the health check.
func NewRouter(d RouterDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Upgrades log their own connect and disconnect lines.
	r.Handle("/ws", d.Sessions)

	r.Group(func(r chi.Router) {
		r.Use(middleware.LogMiddleware(d.Logger))
		r.Get("/health", Health(d.Rooms))
		r.Mount("/api", d.Stats.Routes())
	})
	r.NotFound(NotFound)
	return r
}
