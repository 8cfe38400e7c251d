package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/contexta-graph/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/contexta-graph/internal/api/middlewares"
	"github.com/markdave123-py/contexta-graph/internal/logger"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Documents *handlers.DocumentHandler
	Tasks     *handlers.TaskHandler
	Chat      *handlers.ChatHandler
	Tokens    appMiddleware.TokenParser
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewRouter wires all routes.
func NewRouter(h Handlers, allowedOrigins []string, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Welcome to the document graph API"}`))
	})

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", h.Auth.Signup)
		api.Post("/token", h.Auth.Login)
		api.Get("/tasks/{taskId}", h.Tasks.Status)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(h.Tokens))
			protected.Post("/documents", h.Documents.AddDocument)
			protected.Post("/documents/upload", h.Documents.UploadDocument)
			protected.Get("/documents", h.Documents.GetDocuments)

			protected.Post("/tasks/ingest", h.Tasks.Ingest)
			protected.Post("/tasks/process-documents", h.Tasks.ProcessDocuments)
			protected.With(appMiddleware.AdminOnly).Post("/tasks/purge", h.Tasks.Purge)
			protected.With(appMiddleware.AdminOnly).Get("/tasks/queue", h.Tasks.QueueDepth)

			protected.Get("/chat/sources", h.Chat.Sources)
			protected.Post("/chat/query", h.Chat.QueryDocument)
		})
	})
	return r
}

func NewServer(port string, handler http.Handler, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log.With("component", "HTTPServer"),
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
