package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/nbmap/assets"
	"github.com/woozymasta/nbmap/internal/config"
	"github.com/woozymasta/nbmap/internal/geo"
	"github.com/woozymasta/nbmap/internal/places"
)

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config    *config.Config
	Catalog   *places.Catalog
	Sessions  *Sessions
	Metrics   *Metrics
	Limiter   *RateLimiter
	Bounds    *geo.Bounds
	IndexHTML []byte
	Favicon   []byte
}

// NewServerContext renders the page assets and computes the map bounds.
func NewServerContext(cfg *config.Config, catalog *places.Catalog, sessions *Sessions, metrics *Metrics, limiter *RateLimiter, compact bool) (*ServerContext, error) {
	log.Info().Int("places_count", catalog.Len()).Msg("Initializing server context")

	index, err := assets.RenderIndex(cfg.Town.Name, compact)
	if err != nil {
		return nil, err
	}

	favicon, err := assets.Favicon()
	if err != nil {
		return nil, err
	}

	s := &ServerContext{
		Config:    cfg,
		Catalog:   catalog,
		Sessions:  sessions,
		Metrics:   metrics,
		Limiter:   limiter,
		IndexHTML: index,
		Favicon:   favicon,
	}

	if b, ok := geo.BoundsOf(catalog.All()); ok {
		s.Bounds = &b
		if !b.Contains(cfg.Town.Center) {
			log.Warn().
				Str("town", cfg.Town.Name).
				Msg("Town center lies outside the places bounds")
		}
	}

	log.Info().
		Int("index_bytes", len(index)).
		Bool("compact", compact).
		Msg("Server context initialized successfully")

	return s, nil
}

// Routes builds the handler tree with logging, metrics and rate limiting.
func (s *ServerContext) Routes(withMetrics bool) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/view", s.HandleView)
	api.HandleFunc("POST /api/filter", s.HandleFilter)
	api.HandleFunc("POST /api/places/{id}/select", s.HandleSelect)
	api.HandleFunc("POST /api/dismiss", s.HandleDismiss)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/town", s.HandleTown)
	mux.Handle("/api/", s.Limiter.Middleware(api))
	mux.HandleFunc("GET /favicon.ico", s.HandleFavicon)
	mux.HandleFunc("GET /{$}", s.HandleIndex)
	if withMetrics {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}

	return RequestLogger(s.Metrics.Monitor(mux))
}
