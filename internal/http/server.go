// Package http provides the HTTP API for findexd.
package http

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/findex/internal/embeddings"
	"github.com/fyrsmithlabs/findex/internal/indexer"
	"github.com/fyrsmithlabs/findex/internal/resolver"
	"github.com/fyrsmithlabs/findex/internal/searcher"
	"github.com/fyrsmithlabs/findex/internal/vectorstore"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// DefaultCollection is used when requests name no collection.
	DefaultCollection string

	// Limits bound search result counts.
	Limits searcher.Limits

	// Version is reported by GET /health.
	Version string
}

// Server provides HTTP endpoints over the vector store.
type Server struct {
	echo     *echo.Echo
	provider *vectorstore.Provider
	logger   *zap.Logger
	config   *Config
}

// NewServer creates a new HTTP server.
func NewServer(provider *vectorstore.Provider, logger *zap.Logger, cfg *Config) (*Server, error) {
	if provider == nil {
		return nil, fmt.Errorf("vector store provider cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8480}
	}
	if cfg.DefaultCollection == "" {
		cfg.DefaultCollection = "file_names"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:     e,
		provider: provider,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/index", s.handleIndex)
	v1.POST("/search", s.handleSearch)
	v1.GET("/files/:id", s.handleFile)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.config.Version})
}

func (s *Server) handleIndex(c echo.Context) error {
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid index request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Directory == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "directory field is required")
	}

	store, err := s.provider.Get(req.PersistPath)
	if err != nil {
		return s.mapError(err)
	}

	opts := indexer.IndexOptions{
		Collection:  s.collection(req.Collection),
		Directory:   req.Directory,
		Recursive:   boolOrDefault(req.Recursive, true),
		ClearFirst:  boolOrDefault(req.ClearFirst, false),
		ExcludeDirs: req.ExcludeDirs,
	}

	result, err := indexer.NewService(store, s.logger).Index(c.Request().Context(), opts)
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, IndexResponse{
		Collection:   result.Collection,
		Root:         result.Root,
		FilesIndexed: result.FilesIndexed,
		Cleared:      result.Cleared,
		IndexedAt:    result.IndexedAt,
	})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	store, err := s.provider.Get(req.PersistPath)
	if err != nil {
		return s.mapError(err)
	}

	collection := s.collection(req.Collection)
	hits, err := searcher.NewService(store, s.config.Limits, s.logger).
		Search(c.Request().Context(), collection, req.Query, req.Limit)
	if err != nil {
		return s.mapError(err)
	}

	resp := SearchResponse{Collection: collection, Hits: make([]SearchHit, 0, len(hits))}
	for _, h := range hits {
		resp.Hits = append(resp.Hits, SearchHit{
			ID:           h.ID,
			Score:        h.Score,
			FileName:     h.FileName,
			RelativePath: h.RelativePath,
			Extension:    h.Extension,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleFile(c echo.Context) error {
	id := c.Param("id")

	store, err := s.provider.Get(c.QueryParam("persist_path"))
	if err != nil {
		return s.mapError(err)
	}

	collection := s.collection(c.QueryParam("collection"))
	f, r, err := resolver.NewService(store, s.logger).Open(c.Request().Context(), collection, id)
	if err != nil {
		return s.mapError(err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(r.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("inline; filename=%q", r.FileName))
	return c.Stream(http.StatusOK, contentType, f)
}

// collection applies the configured default collection name.
func (s *Server) collection(name string) string {
	if name == "" {
		return s.config.DefaultCollection
	}
	return name
}

// mapError translates service errors to HTTP status codes.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, vectorstore.ErrInvalidCollectionName),
		errors.Is(err, vectorstore.ErrInvalidLimit),
		errors.Is(err, vectorstore.ErrEmptyQuery),
		errors.Is(err, vectorstore.ErrInvalidConfig),
		errors.Is(err, indexer.ErrDirectoryNotFound),
		errors.Is(err, resolver.ErrNoRoot),
		errors.Is(err, resolver.ErrPathEscapesRoot):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())

	case errors.Is(err, resolver.ErrNotFound),
		errors.Is(err, resolver.ErrStalePath):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())

	case errors.Is(err, vectorstore.ErrConnectionFailed),
		errors.Is(err, vectorstore.ErrEmbeddingFailed),
		errors.Is(err, embeddings.ErrProviderUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())

	default:
		s.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
