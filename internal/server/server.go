// Package server exposes the engine over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/roach88/tally/internal/engine"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Status string     `json:"status"` // "ok" or "error"
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine   *engine.Engine
	exec     engine.Executor
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// New creates a Server. exec may be nil, in which case /v1/query/answer is
// not registered. gatherer backs /metrics.
func New(eng *engine.Engine, exec engine.Executor, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: eng, exec: exec, gatherer: gatherer, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1/query")
	v1.POST("/resolve", s.handleResolve)
	if s.exec != nil {
		v1.POST("/answer", s.handleAnswer)
	}
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Status: "ok", Data: gin.H{"healthy": true}})
}

func (s *Server) handleResolve(c *gin.Context) {
	var req engine.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}

	res, err := s.engine.Resolve(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err, res)
		return
	}
	c.JSON(http.StatusOK, Response{Status: "ok", Data: res})
}

func (s *Server) handleAnswer(c *gin.Context) {
	var req engine.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}

	ans, err := s.engine.Answer(c.Request.Context(), req, s.exec)
	if err != nil {
		var res *engine.Resolution
		if ans != nil {
			res = ans.Resolution
		}
		s.fail(c, err, res)
		return
	}
	c.JSON(http.StatusOK, Response{Status: "ok", Data: ans})
}

func (s *Server) badBody(c *gin.Context, err error) {
	s.logger.Debug("invalid request body", zap.Error(err))
	c.JSON(http.StatusBadRequest, Response{
		Status: "error",
		Error: &ErrorBody{
			Code:    string(engine.ErrCodeInvalidRequest),
			Message: "invalid request body",
		},
	})
}

// fail maps engine errors to status codes: rejections are 422, invalid
// requests 400, cancellations 503, everything else 500.
func (s *Server) fail(c *gin.Context, err error, res *engine.Resolution) {
	var rej *engine.Rejection
	var re *engine.RuntimeError
	switch {
	case errors.As(err, &rej):
		c.JSON(http.StatusUnprocessableEntity, Response{
			Status: "error",
			Error: &ErrorBody{
				Code:    string(rej.Code),
				Message: rej.Clarification,
				Details: gin.H{"reason": rej.Reason, "resolution": res},
			},
		})
	case errors.As(err, &re) && re.Code == engine.ErrCodeInvalidRequest:
		c.JSON(http.StatusBadRequest, Response{
			Status: "error",
			Error:  &ErrorBody{Code: string(re.Code), Message: re.Message, Details: re.Details},
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, Response{
			Status: "error",
			Error:  &ErrorBody{Code: "CANCELLED", Message: err.Error()},
		})
	case re != nil:
		s.logger.Error("request failed", zap.String("code", string(re.Code)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Status: "error",
			Error:  &ErrorBody{Code: string(re.Code), Message: "internal error"},
		})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Status: "error",
			Error:  &ErrorBody{Code: "INTERNAL", Message: "internal error"},
		})
	}
}
