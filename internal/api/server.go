// Package api provides the HTTP API server and handlers for the catalog.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/catalog-server/internal/ratelimit"
	"github.com/listenupapp/catalog-server/internal/service"
	"github.com/listenupapp/catalog-server/internal/validation"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// DefaultMaxUploadBytes caps spreadsheet uploads when Options sets no limit.
const DefaultMaxUploadBytes = 32 << 20

// Services groups the use cases the handlers call.
type Services struct {
	Catalog *service.CatalogService
	Imports *service.ImportService
}

// Options tunes the HTTP surface.
type Options struct {
	// UploadDir receives uploaded spreadsheets; empty means the OS temp dir.
	UploadDir      string
	MaxUploadBytes int64
	// CORSOrigins lists allowed origins; empty allows any.
	CORSOrigins []string
	// UploadLimiter throttles the upload endpoints per client; nil disables it.
	UploadLimiter *ratelimit.KeyedRateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services  Services
	opts      Options
	validator *validation.Validator
	router    *chi.Mux
	api       huma.API
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services Services, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	router := chi.NewRouter()
	s := &Server{
		services:  services,
		opts:      opts,
		validator: validation.New(),
		router:    router,
		logger:    logger,
	}
	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Catalog API", Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler(logger)

	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware() {
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerBookRoutes()
	s.registerImportRoutes()

	// Multipart uploads stay on plain chi handlers.
	s.router.Group(func(r chi.Router) {
		if s.opts.UploadLimiter != nil {
			r.Use(s.opts.UploadLimiter.Middleware)
		}
		r.Post("/api/v1/imports/validate", s.handleValidateUpload)
		r.Post("/api/v1/imports", s.handleImportUpload)
	})
}
