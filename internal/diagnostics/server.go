// Package diagnostics exposes the deployment's readiness over HTTP: the
// smoke checks run periodically and the latest round is served on /ready,
// with Prometheus metrics on /metrics.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"deployctl/internal/checks"
	"deployctl/internal/config"
	"deployctl/internal/middleware"
)

// Server runs the readiness endpoint.
type Server struct {
	cfg      *config.Config
	runner   *checks.Runner
	logger   *zap.Logger
	addr     string
	interval time.Duration

	mu     sync.RWMutex
	latest *checks.Report

	checkUp *prometheus.GaugeVec
}

// NewServer builds a diagnostics server listening on addr, re-running the
// checks every interval.
func NewServer(cfg *config.Config, runner *checks.Runner, addr string, interval time.Duration, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		runner:   runner,
		logger:   logger,
		addr:     addr,
		interval: interval,
		checkUp:  registerCheckGauge(),
	}
}

// registerCheckGauge registers the per-check gauge once; repeated server
// construction (tests) reuses the existing collector.
func registerCheckGauge() *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "deployctl_check_up",
		Help: "1 when the named deployment check passes, 0 when it fails.",
	}, []string{"check"})

	if err := prometheus.Register(gauge); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.GaugeVec)
		}
		panic(err)
	}
	return gauge
}

// Router builds the gin engine with logging, CORS, metrics and the
// health/readiness routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if s.cfg.Web.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.GinZapLogger(s.logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if origins := s.corsOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	p := ginprometheus.NewPrometheus("deployctl")
	p.Use(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", s.handleReady)

	return router
}

// corsOrigins derives allowed origins from the deployment's allowed hosts.
func (s *Server) corsOrigins() []string {
	hosts := s.cfg.Web.GetAllowedHosts()
	origins := make([]string, 0, len(hosts)*2)
	for _, h := range hosts {
		if h == "*" {
			return nil
		}
		origins = append(origins, "https://"+h, "http://"+h)
	}
	return origins
}

func (s *Server) handleReady(c *gin.Context) {
	s.mu.RLock()
	report := s.latest
	s.mu.RUnlock()

	if report == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unknown", "reason": "no check round has completed yet"})
		return
	}

	status := http.StatusOK
	if !report.OK() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// runChecks executes one round and publishes the report and metrics.
func (s *Server) runChecks(ctx context.Context) {
	report := s.runner.Run(ctx)

	for _, res := range report.Results {
		switch res.Status {
		case checks.StatusOK:
			s.checkUp.WithLabelValues(res.Name).Set(1)
		case checks.StatusFailed:
			s.checkUp.WithLabelValues(res.Name).Set(0)
		}
	}

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()

	if report.OK() {
		s.logger.Info("Check round completed", zap.String("run_id", report.ID.String()))
	} else {
		s.logger.Warn("Check round has failures",
			zap.String("run_id", report.ID.String()),
			zap.Int("failed", len(report.Failed())),
		)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}

	// Первый раунд до старта HTTP, чтобы /ready сразу отвечал по делу.
	s.runChecks(ctx)

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.runChecks(loopCtx)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Diagnostics server listening", zap.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("diagnostics server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("diagnostics server shutdown failed: %w", err)
	}
	s.logger.Info("Diagnostics server stopped")
	return nil
}
