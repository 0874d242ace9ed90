package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sloppy/nmaphosts/internal/db"
	"github.com/sloppy/nmaphosts/internal/importer"
	"github.com/sloppy/nmaphosts/internal/metrics"
)

// Options carries the optional dependencies of a Server.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Import is applied to documents uploaded through the API.
	Import importer.Options
	// MaxUploadBytes caps upload bodies. Zero means 64 MB.
	MaxUploadBytes int64
}

// Server wires the web handlers and dependencies.
type Server struct {
	DB       *db.DB
	Importer *importer.Importer
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Router   chi.Router

	importOpts importer.Options
	maxUpload  int64
}

// NewServer constructs the router and registers routes.
func NewServer(database *db.DB, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	server := &Server{
		DB:         database,
		Importer:   importer.New(database, logger, m),
		Metrics:    m,
		Logger:     logger,
		importOpts: opts.Import,
		maxUpload:  opts.MaxUploadBytes,
	}
	if server.maxUpload <= 0 {
		server.maxUpload = defaultMaxUploadBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/", server.handleRoot)
	r.Get("/healthz", server.handleHealth)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/imports", server.handleImportsList)
	r.Get("/imports/{id}", server.handleImportDetail)
	r.Get("/imports/{id}/export", server.handleImportExport)

	r.Route("/api", func(r chi.Router) {
		r.Use(sameOriginGuard)
		r.Get("/imports", server.apiListImports)
		r.Post("/imports", server.apiCreateImport)
		r.Get("/imports/{id}", server.apiGetImport)
		r.Delete("/imports/{id}", server.apiDeleteImport)
		r.Get("/imports/{id}/hosts", server.apiListImportHosts)
		r.Get("/hosts", server.apiFindHosts)
	})

	server.Router = r
	return server
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.Router
}
