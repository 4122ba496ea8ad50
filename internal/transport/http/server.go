// Package http is the gin transport: webhook intake, position inspection,
// kill switch control, health and metrics.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hedger/internal/intake"
	"hedger/internal/killswitch"
	"hedger/internal/logger"
	"hedger/internal/metrics"
	"hedger/internal/pkg/circuit"
	"hedger/internal/sequencer"
	"hedger/internal/store/audit"
	"hedger/internal/store/position"

	"github.com/gin-gonic/gin"
)

type Server struct {
	addr      string
	secret    string
	intake    *intake.Service
	seq       *sequencer.Sequencer
	positions *position.Store
	audits    *audit.Store
	kill      *killswitch.Switch
	breakers  *circuit.Registry
}

func NewServer(addr, secret string, in *intake.Service, seq *sequencer.Sequencer,
	positions *position.Store, audits *audit.Store, kill *killswitch.Switch,
	breakers *circuit.Registry) *Server {
	return &Server{
		addr:      addr,
		secret:    secret,
		intake:    in,
		seq:       seq,
		positions: positions,
		audits:    audits,
		kill:      kill,
		breakers:  breakers,
	}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	{
		signal := api.Group("/signal", s.requireSecret())
		signal.POST("/entry", s.handleEntry)
		signal.POST("/exit", s.handleExit)

		api.GET("/positions", s.handleListPositions)
		api.GET("/positions/:id", s.handleGetPosition)

		api.GET("/killswitch", s.handleKillState)
		api.POST("/killswitch", s.requireSecret(), s.handleKillToggle)
	}
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http: listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("http: %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Truncate(time.Millisecond))
	}
}

func (s *Server) requireSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Webhook-Secret") != s.secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "UNAUTHORIZED",
				"message": "missing or wrong webhook secret",
			})
		}
	}
}
