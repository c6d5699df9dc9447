// Package httpapi serves the decoder over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/witoldo7/gowmbus/internal/config"
	"github.com/witoldo7/gowmbus/internal/metrics"
	"github.com/witoldo7/gowmbus/internal/sink"
	"github.com/witoldo7/gowmbus/pkg/gowmbus"
)

// Publisher forwards decoded results, typically to the redis sink.
type Publisher interface {
	Publish(ctx context.Context, res gowmbus.Result) (sink.Message, error)
}

// HistoryReader returns the recent messages published for a meter.
type HistoryReader interface {
	History(ctx context.Context, meterID string, n int64) ([]sink.Message, error)
}

// Deps are the collaborators of the server. Everything but the Analyzer is
// optional.
type Deps struct {
	Analyzer       *gowmbus.Analyzer
	Publisher      Publisher
	History        HistoryReader
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Log            logrus.FieldLogger
}

// Server wraps the gin engine and its http.Server.
type Server struct {
	srv       *http.Server
	engine    *gin.Engine
	analyzer  *gowmbus.Analyzer
	publisher Publisher
	history   HistoryReader
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
}

// New builds the routes.
func New(cfg config.HTTPConfig, metricsPath string, deps Deps) *Server {
	s := &Server{
		analyzer:  deps.Analyzer,
		publisher: deps.Publisher,
		history:   deps.History,
		metrics:   deps.Metrics,
		log:       deps.Log,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if deps.MetricsHandler != nil {
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		r.GET(metricsPath, gin.WrapH(deps.MetricsHandler))
	}

	api := r.Group("/api/v1")
	api.GET("/drivers", s.listDrivers)
	api.GET("/drivers/:name", s.getDriver)
	decode := []gin.HandlerFunc{s.decode}
	if cfg.RateLimit > 0 {
		decode = append([]gin.HandlerFunc{s.rateLimit(newClientLimiter(cfg.RateLimit, cfg.Burst))}, decode...)
	}
	api.POST("/decode", decode...)
	if s.history != nil {
		api.GET("/meters/:id/history", s.meterHistory)
	}

	s.engine = r
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.log.WithField("addr", s.srv.Addr).Info("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
			"client":  c.ClientIP(),
		}).Debug("http request")
	}
}
