// Package web serves the movie list as HTML pages plus a small JSON API.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/franz/top-movies/internal/library"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure a Server
type Options struct {
	SecretKey      string
	Logger         *zap.Logger
	RequestTimeout time.Duration
	TokenTTL       time.Duration
	AllowedOrigins []string // for /api; defaults to any origin
}

// Server holds the handlers' dependencies
type Server struct {
	lib    *library.Service
	db     Pinger
	tmpl   templates
	tokens *formTokens
	log    *zap.Logger
	opts   Options
}

// New creates a Server. It fails only if the embedded templates do not parse.
func New(lib *library.Service, db Pinger, opts Options) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	return &Server{
		lib:    lib,
		db:     db,
		tmpl:   tmpl,
		tokens: newFormTokens(opts.SecretKey, opts.TokenTTL),
		log:    opts.Logger,
		opts:   opts,
	}, nil
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(accessLog(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Get("/", s.handleIndex)
	r.Get("/add", s.handleAddForm)
	r.Post("/add", s.handleAddSubmit)
	r.Get("/find", s.handleFind)
	r.Get("/edit", s.handleEditForm)
	r.Post("/edit", s.handleEditSubmit)
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{RequestIDHeader},
			MaxAge:         300,
		}))
		r.Get("/movies", s.handleAPIMovies)
	})

	r.Get("/{movieID}", s.handleDelete)

	return r
}
