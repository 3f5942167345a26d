// Package server exposes stored mood scores, briefings and the live index over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/moodmap/internal/core/index"
	"github.com/agenthands/moodmap/internal/core/model"
	"github.com/agenthands/moodmap/internal/logger"
	"github.com/agenthands/moodmap/internal/metrics"
	"github.com/agenthands/moodmap/internal/store"
)

// Reader is the read side of the results store.
type Reader interface {
	LatestDay(ctx context.Context) (time.Time, error)
	Moods(ctx context.Context, day time.Time) ([]model.MoodScore, error)
	Briefing(ctx context.Context, country string, day time.Time) (model.Briefing, error)
	Run(ctx context.Context, id string) (model.Manifest, error)
}

type Server struct {
	Store   Reader
	Handle  *index.Handle
	Metrics *metrics.Metrics
	log     *logger.Logger
}

const (
	defaultK = 10
	maxK     = 100
)

func NewServer(reader Reader, handle *index.Handle, m *metrics.Metrics, log *logger.Logger) *Server {
	if handle == nil {
		handle = &index.Handle{}
	}
	return &Server{
		Store:   reader,
		Handle:  handle,
		Metrics: m,
		log:     logger.OrNop(log).With("component", "server"),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/healthz", s.Health)
	r.GET("/moods", s.Moods)
	r.GET("/briefings/:country/:day", s.Briefing)
	r.GET("/runs/:id", s.Run)
	r.POST("/search", s.Search)
	r.GET("/analogs/:country/:day", s.Analogs)
	r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	return r
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.Metrics.ObserveHTTP(route, strconv.Itoa(status))
		s.log.Debug("request", "method", c.Request.Method, "route", route, "status", status, "duration", time.Since(start).String())
	}
}

func (s *Server) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if gen, err := s.Handle.Current(); err == nil {
		resp["generation_id"] = gen.ID
		resp["indexed"] = gen.Len()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) Moods(c *gin.Context) {
	ctx := c.Request.Context()

	var day time.Time
	if raw := c.Query("day"); raw != "" {
		d, err := time.Parse(model.DayLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "day must be YYYY-MM-DD"})
			return
		}
		day = d
	} else {
		d, err := s.Store.LatestDay(ctx)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no scores stored yet"})
			return
		}
		if err != nil {
			s.fail(c, "failed to find latest day", err)
			return
		}
		day = d
	}

	moods, err := s.Store.Moods(ctx, day)
	if err != nil {
		s.fail(c, "failed to load moods", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"day": day.Format(model.DayLayout), "moods": moods})
}

func (s *Server) Briefing(c *gin.Context) {
	country, day, ok := keyParams(c)
	if !ok {
		return
	}
	b, err := s.Store.Briefing(c.Request.Context(), country, day)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no briefing for " + model.DocumentID(country, day)})
		return
	}
	if err != nil {
		s.fail(c, "failed to load briefing", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) Run(c *gin.Context) {
	m, err := s.Store.Run(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
		return
	}
	if err != nil {
		s.fail(c, "failed to load run", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	K     int    `json:"k"`
}

func (s *Server) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	gen, ok := s.generation(c)
	if !ok {
		return
	}

	results, err := gen.QueryByText(c.Request.Context(), req.Query, clampK(req.K))
	if err != nil {
		var svc *model.EmbeddingServiceError
		if errors.As(err, &svc) {
			s.log.Warn("search embedding failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "embedding service unavailable"})
			return
		}
		s.fail(c, "failed to search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"generation_id": gen.ID, "results": results})
}

func (s *Server) Analogs(c *gin.Context) {
	country, day, ok := keyParams(c)
	if !ok {
		return
	}
	k := defaultK
	if raw := c.Query("k"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "k must be an integer"})
			return
		}
		k = v
	}
	gen, ok := s.generation(c)
	if !ok {
		return
	}

	results, err := gen.QueryByDocument(model.DocumentID(country, day), clampK(k), true)
	var nf *model.NotFoundError
	if errors.As(err, &nf) {
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
		return
	}
	if err != nil {
		s.fail(c, "failed to query analogs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"generation_id": gen.ID, "results": results})
}

func (s *Server) generation(c *gin.Context) (*index.Generation, bool) {
	gen, err := s.Handle.Current()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "index not loaded"})
		return nil, false
	}
	return gen, true
}

func (s *Server) fail(c *gin.Context, msg string, err error) {
	s.log.Error(msg, "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func keyParams(c *gin.Context) (string, time.Time, bool) {
	country := strings.ToUpper(c.Param("country"))
	day, err := time.Parse(model.DayLayout, c.Param("day"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "day must be YYYY-MM-DD"})
		return "", time.Time{}, false
	}
	return country, day, true
}

func clampK(k int) int {
	if k <= 0 {
		return defaultK
	}
	return min(k, maxK)
}
