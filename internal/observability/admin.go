package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/portagent/internal/agent"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StatusSource supplies the agent snapshot served by the admin API.
type StatusSource interface {
	Status() agent.Status
}

// AdminConfig configures the admin HTTP server.
type AdminConfig struct {
	AgentID         string
	Addr            string
	CorsOrigins     []string
	ShutdownTimeout time.Duration
}

// Admin serves health, status, metrics and the live packet tap.
type Admin struct {
	cfg     AdminConfig
	source  StatusSource
	tap     *TapHub
	logger  zerolog.Logger
	router  *gin.Engine
	started time.Time
}

// Admin server constructor. tap may be nil, which disables /tap.
func NewAdmin(cfg AdminConfig, source StatusSource, tap *TapHub, logger zerolog.Logger) *Admin {
	RegisterMetrics()
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(RequestMetricsMiddleware(cfg.AgentID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{
		cfg:     cfg,
		source:  source,
		tap:     tap,
		logger:  logger,
		router:  r,
		started: time.Now(),
	}
	a.registerRoutes()
	return a
}

func (a *Admin) Handler() http.Handler {
	return a.router
}

func (a *Admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.started).String(),
			"service": a.cfg.AgentID,
		})
	})

	a.router.GET("/ready", func(c *gin.Context) {
		s := a.source.Status()
		status := http.StatusOK
		if !s.Ready() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready": s.Ready(),
			"state": s.State,
		})
	})

	a.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.source.Status())
	})

	a.router.GET("/publishers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"publishers": a.source.Status().Publishers,
		})
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if a.tap != nil {
		a.router.GET("/tap", gin.WrapH(a.tap))
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (a *Admin) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *Admin) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	a.logger.Info().Str("addr", ln.Addr().String()).Msg("admin server listening")

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if a.tap != nil {
		_ = a.tap.Close()
	}
	err := srv.Shutdown(shutdownCtx)
	<-errc
	a.logger.Info().Msg("admin server stopped")
	return err
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if v := strings.TrimSpace(o); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
