// Package api serves the bot's read-only status surface.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/hedger/position"
)

// LoopStatus is the public view of one control loop.
type LoopStatus struct {
	Symbol    string            `json:"symbol"`
	Interval  string            `json:"interval"`
	Running   bool              `json:"running"`
	LastError string            `json:"last_error,omitempty"`
	Positions []position.Record `json:"positions"`
}

// StatusProvider reports every loop's state.
type StatusProvider interface {
	Status() []LoopStatus
}

// StatusFunc adapts a function to StatusProvider.
type StatusFunc func() []LoopStatus

func (f StatusFunc) Status() []LoopStatus { return f() }

// NewRouter builds the gin engine with /healthz, /positions and /metrics.
func NewRouter(sp StatusProvider) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/positions", func(c *gin.Context) {
		c.JSON(http.StatusOK, sp.Status())
	})

	r.GET("/positions/:symbol", func(c *gin.Context) {
		symbol := c.Param("symbol")
		for _, s := range sp.Status() {
			if s.Symbol == symbol {
				c.JSON(http.StatusOK, s)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Serve runs the router on addr until ctx is done.
func Serve(ctx context.Context, addr string, sp StatusProvider) error {
	srv := &http.Server{Addr: addr, Handler: NewRouter(sp), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
