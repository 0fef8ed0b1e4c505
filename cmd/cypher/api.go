package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bratushka/cypher/pkg/config"
	"github.com/bratushka/cypher/pkg/core"
	"github.com/bratushka/cypher/pkg/errdefs"
	"github.com/bratushka/cypher/pkg/logging"
	"github.com/bratushka/cypher/pkg/manifest"
	"github.com/bratushka/cypher/pkg/provider"
)

type QueryRequest struct {
	Query    string `json:"query"`
	Database string `json:"database"`
	JSONPath string `json:"jsonpath"`
}

type QueryResponse struct {
	Result interface{}    `json:"result"`
	Graph  provider.Graph `json:"graph"`
}

type DatabaseInfo struct {
	Name    string `json:"name"`
	Engine  string `json:"engine"`
	URL     string `json:"url"`
	Default bool   `json:"default"`
}

// apiServer keeps one provider per database for the lifetime of the server.
type apiServer struct {
	cfg *config.Config

	mu        sync.Mutex
	providers map[string]provider.Provider
	databases map[string]config.Database
}

func newAPIServer(cfg *config.Config) *apiServer {
	return &apiServer{
		cfg:       cfg,
		providers: make(map[string]provider.Provider),
		databases: make(map[string]config.Database),
	}
}

func (s *apiServer) provider(name string) (provider.Provider, config.Database, error) {
	if name == "" {
		name = s.cfg.Default
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.providers[name]; ok {
		return p, s.databases[name], nil
	}
	p, db, err := openProviderFunc(s.cfg, name)
	if err != nil {
		return nil, config.Database{}, err
	}
	s.providers[name], s.databases[name] = p, db
	return p, db, nil
}

func (s *apiServer) close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var g errgroup.Group
	for name, p := range s.providers {
		name, p := name, p
		g.Go(func() error {
			if err := p.Close(ctx); err != nil {
				return fmt.Errorf("closing %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logging.L().Warnw("shutting down providers", "error", err)
	}
	s.providers = make(map[string]provider.Provider)
}

func setupAPIRoutes(router *gin.Engine, s *apiServer) {
	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.GET("/databases", s.handleDatabases)
	api.POST("/query", s.handleQuery)
	api.POST("/render/create", handleRenderCreate)
}

func newRouter(s *apiServer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	setupAPIRoutes(router, s)
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.L().Debugw("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *apiServer) handleDatabases(c *gin.Context) {
	out := make([]DatabaseInfo, 0, len(s.cfg.Names()))
	for _, name := range s.cfg.Names() {
		db, _ := s.cfg.Database(name)
		out = append(out, DatabaseInfo{
			Name:    name,
			Engine:  string(db.Engine()),
			URL:     db.URL,
			Default: name == s.cfg.Default,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *apiServer) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is empty"})
		return
	}

	p, db, err := s.provider(req.Database)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	res, err := p.Run(c.Request.Context(), db.Name, req.Query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	tabular, err := core.ResultToTabular(res)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var result interface{} = tabular.Document()
	if req.JSONPath != "" {
		if result, err = tabular.Project(req.JSONPath); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("error applying jsonpath %q: %v", req.JSONPath, err)})
			return
		}
	}

	c.JSON(http.StatusOK, QueryResponse{Result: result, Graph: provider.ExtractGraph(res)})
}

// handleRenderCreate reads a model document and answers with its CREATE
// statement. ?extras=true keeps undeclared properties.
func handleRenderCreate(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	extras, _ := strconv.ParseBool(c.Query("extras"))

	doc, err := manifest.Parse(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := doc.Build()
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	stmt := core.Create(g.Instances...)
	if extras {
		stmt.WithExtras()
	}
	text, err := stmt.Render()
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"statement": text})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errdefs.ErrUnknownDatabase):
		return http.StatusNotFound
	case errors.Is(err, errdefs.ErrIntegrity),
		errors.Is(err, errdefs.ErrConstraintViolation),
		errors.Is(err, errdefs.ErrMissingRequiredField),
		errors.Is(err, errdefs.ErrTypeMismatch):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
