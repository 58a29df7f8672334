// Package server exposes health, status and metrics over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"SignalSentinel/internal/model"
)

// StatusProvider reports the scheduler status.
type StatusProvider interface {
	Status(ctx context.Context) model.SchedulerStatus
}

// Server wraps an Echo instance.
type Server struct {
	echo    *echo.Echo
	addr    string
	status  StatusProvider
	started time.Time
}

// New builds the server and registers its routes. metrics may be nil.
func New(addr string, status StatusProvider, metrics http.Handler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(recoverMiddleware(), requestLogging())

	s := &Server{echo: e, addr: addr, status: status, started: time.Now()}
	e.GET("/health", s.health)
	e.GET("/status", s.statusHandler)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
	return s
}

type healthResponse struct {
	Status    string                `json:"status"`
	Uptime    string                `json:"uptime"`
	Scheduler model.SchedulerStatus `json:"scheduler"`
}

func (s *Server) health(c echo.Context) error {
	st := s.status.Status(c.Request().Context())
	resp := healthResponse{
		Status:    "healthy",
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
		Scheduler: st,
	}
	code := http.StatusOK
	if !st.Running {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

func (s *Server) statusHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.status.Status(c.Request().Context()))
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Msg("http server listening")
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	log.Info().Msg("http server stopped")
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.echo }

func requestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.Debug().
				Str("method", c.Request().Method).
				Str("uri", c.Request().RequestURI).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Msg("http request")
			return err
		}
	}
}

func recoverMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("http handler panic")
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal error")
				}
			}()
			return next(c)
		}
	}
}
