package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scenic-route-planner/internal/database"
	"scenic-route-planner/internal/distance"
	"scenic-route-planner/internal/geocoding"
	"scenic-route-planner/internal/handlers"
	"scenic-route-planner/internal/planner"
	"scenic-route-planner/internal/routing"
	"scenic-route-planner/internal/sqlite"
)

// Storage backends
const (
	StoreSQLite = "sqlite"
	StoreJSON   = "json"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         database.DataStore
	listener   net.Listener
	addr       string
}

// Config holds server configuration
type Config struct {
	Addr string // e.g., "127.0.0.1:8080" or "127.0.0.1:0" for random port

	// Store selects the storage backend: "sqlite" (default) or "json"
	Store string
	// DBPath is the SQLite database or JSON plan file. Empty selects the default under the app dir.
	DBPath string

	OSRMURL      string
	OSRMProfile  string
	NominatimURL string

	Solver routing.Options
}

func openStore(cfg Config) (database.DataStore, error) {
	switch cfg.Store {
	case "", StoreSQLite:
		path := cfg.DBPath
		if path == "" {
			var err error
			path, err = database.GetDefaultDBPath()
			if err != nil {
				return nil, err
			}
		}
		return sqlite.New(path)
	case StoreJSON:
		cachePath := ""
		if cfg.DBPath != "" {
			cachePath = filepath.Join(filepath.Dir(cfg.DBPath), database.DistanceCacheFile)
		}
		distanceCache, err := database.NewFileDistanceCache(cachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize distance cache: %w", err)
		}
		return database.NewJSONStore(cfg.DBPath, distanceCache)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// New creates and initializes a new server (does not start it)
func New(cfg Config) (*Server, error) {
	if err := cfg.Solver.Validate(); err != nil {
		return nil, fmt.Errorf("invalid solver options: %w", err)
	}

	log.Printf("Initializing data store: store=%s", cfg.Store)
	db, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	geocoder := geocoding.NewNominatimGeocoder(cfg.NominatimURL)
	distanceCalc := distance.NewOSRMCalculator(cfg.OSRMURL, cfg.OSRMProfile, db.DistanceCache())
	p := planner.New(planner.Config{
		Geocoder:  geocoder,
		Distances: distance.NewMatrixProvider(distanceCalc),
		Routes:    distanceCalc,
		Plans:     db.Plans(),
		Options:   cfg.Solver,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := handlers.NewMetrics(reg)
	handler := handlers.New(db, p, m)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      setupRoutes(handler, m, reg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         db,
		addr:       cfg.Addr,
	}, nil
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler, m *handlers.Metrics, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(handlers.PrometheusMiddleware(m))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handler.Routes(r)

	return r
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}
