// Package httpapi serves image generation, the model table, metrics, and the
// retention admin operations over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"github.com/fpang/dalle-mcp-server/internal/imagegen"
	"github.com/fpang/dalle-mcp-server/internal/metrics"
	"github.com/fpang/dalle-mcp-server/internal/params"
	"github.com/fpang/dalle-mcp-server/internal/retention"
)

// Generator produces images from validated parameters.
type Generator interface {
	Generate(ctx context.Context, p params.Parameters) (*imagegen.Result, error)
}

// Options configures the router.
type Options struct {
	// Generator may be nil; generation then answers 503.
	Generator Generator
	Sweeper   *retention.Sweeper
	OutputDir string
	Policy    retention.Policy

	// AuthToken guards every route except /health. Empty disables auth.
	AuthToken string

	RateLimitPerMinute int
	RateLimitBurst     int

	Version string
	Metrics *metrics.Store
}

type api struct {
	opts    Options
	started time.Time
	limiter *ipLimiter
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	if opts.Sweeper == nil {
		opts.Sweeper = retention.NewSweeper()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 10
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 3
	}

	a := &api{
		opts:    opts,
		started: time.Now(),
		limiter: newIPLimiter(opts.RateLimitPerMinute, opts.RateLimitBurst, 10*time.Minute),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(withLogging, a.withMetrics)

	r.Get("/health", a.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(a.requireToken)

		r.Get("/api/models", a.handleModels)
		r.Get("/api/metrics", a.handleMetrics)
		r.With(a.rateLimit).Post("/api/images/generate", a.handleGenerate)

		r.Route("/api/admin", func(r chi.Router) {
			r.Post("/cleanup", a.handleCleanup)
			r.Get("/stats", a.handleStats)
		})

		r.Get("/images/{name}", a.handleImage)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return gzhttp.GzipHandler(r)
}
