package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/camden-git/titlesnap/services"
)

type RouterConfig struct {
	Identify       *IdentifyHandler
	Sessions       *services.Sessions
	Health         *HealthHandler
	Websocket      http.HandlerFunc // optional
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(rc RouterConfig) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins:   rc.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", SessionHeader},
		ExposedHeaders:   []string{SessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	timeout := rc.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	sessionHandler := &SessionHandler{Sessions: rc.Sessions}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))
			r.Get("/health", rc.Health.Health)
			r.With(func(next http.Handler) http.Handler {
				return SessionMiddleware(rc.Sessions, next)
			}).Post("/identify", rc.Identify.Identify)
			r.Get("/sessions/{session_id}", sessionHandler.GetSession)
		})

		// websocket connections outlive the request timeout
		if rc.Websocket != nil {
			r.Get("/ws", rc.Websocket)
		}
	})

	return r
}
