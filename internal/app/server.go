package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/studyvault/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/studyvault/internal/api/middlewares"
	"github.com/markdave123-py/studyvault/internal/config"
	"github.com/markdave123-py/studyvault/internal/logger"
)

// Uploads run the whole pipeline inside the request, so the timeout covers
// extraction, embedding and indexing.
const requestTimeout = 5 * time.Minute

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	log        *logger.Logger
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(log *logger.Logger, cfg *config.Config, library handlers.LibraryService) (*Server, error) {
	router, err := NewRouter(log, cfg.JWTSecret, library)
	if err != nil {
		return nil, err
	}
	return &Server{
		log: log.With("service", "http"),
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// NewRouter returns the API routes. Everything under /api except /api/health
// requires a bearer token, so a blank signing secret is refused.
func NewRouter(log *logger.Logger, jwtSecret string, library handlers.LibraryService) (http.Handler, error) {
	if err := appMiddleware.ValidateSecret(jwtSecret); err != nil {
		return nil, err
	}
	docHandler := handlers.NewDocumentHandler(log, library)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(jwtSecret))
			protected.Post("/library/pdf", docHandler.UploadPDF)
			protected.Post("/library/youtube", docHandler.AddYouTube)
			protected.Delete("/library/{id}", docHandler.DeleteDocument)
			protected.Post("/search", docHandler.Search)
			protected.Get("/transcript", docHandler.Transcript)
		})
	})

	return r, nil
}

// requestLogger replaces chi's stdlib logger with one line per request on ours.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
