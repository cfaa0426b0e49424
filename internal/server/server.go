package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agenthands/intake/internal/core"
	"github.com/agenthands/intake/internal/core/model"
)

type Server struct {
	Pipeline *core.Pipeline
	Ingestor *core.Ingestor
	Logger   *zap.Logger
}

func NewServer(p *core.Pipeline, ing *core.Ingestor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Pipeline: p, Ingestor: ing, Logger: logger}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/records", s.AddRecord)
	r.POST("/runs", s.Run)
	r.POST("/runs/:stage", s.RunStage)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) AddRecord(c *gin.Context) {
	var rec model.RawRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	stored, err := s.Ingestor.Ingest(c.Request.Context(), rec)
	if err != nil {
		s.Logger.Error("failed to ingest record", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest record"})
		return
	}

	c.JSON(http.StatusCreated, stored)
}

// runContext keeps request values but outlives the client connection, so a
// disconnect mid-run does not fail the remaining writes.
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (s *Server) Run(c *gin.Context) {
	sum, err := s.Pipeline.Run(runContext(c))
	if err != nil {
		s.Logger.Error("pipeline run failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Pipeline run failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) RunStage(c *gin.Context) {
	stage, err := core.ParseStage(c.Param("stage"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown stage"})
		return
	}

	sum, err := s.Pipeline.RunStage(runContext(c), stage)
	if err != nil {
		s.Logger.Error("stage run failed", zap.String("stage", string(stage)), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stage run failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}
