package httpcontroller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/checker"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/errors"
)

// checkRequest is the optional JSON body for the check endpoint.
type checkRequest struct {
	TestRun   bool `json:"test_run"`
	FullSync  bool `json:"full_sync"`
	SkipEmail bool `json:"skip_email"`
}

func (s *Server) initRoutes() {
	s.Echo.GET("/healthz", s.handleHealth)

	v1 := s.Echo.Group("/api/v1")
	v1.POST("/violations/check", s.handleCheck)
}

func (s *Server) handleHealth(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleCheck triggers one synchronous violation check and returns its
// result. An empty body is treated as a default run.
func (s *Server) handleCheck(ctx echo.Context) error {
	var req checkRequest
	if err := ctx.Bind(&req); err != nil {
		return s.handleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	opts := checker.Options{
		TestRun:   req.TestRun,
		FullSync:  req.FullSync,
		SkipEmail: req.SkipEmail,
	}

	logger.Info("check triggered via API",
		"test_run", opts.TestRun,
		"full_sync", opts.FullSync,
		"skip_email", opts.SkipEmail,
		"ip", ctx.RealIP())

	result, err := s.Checker.Run(ctx.Request().Context(), opts)
	if err != nil {
		if errors.Is(err, checker.ErrCheckDisabled) {
			return s.handleError(ctx, err, "violation checks are disabled", http.StatusConflict)
		}
		return s.handleError(ctx, err, "violation check failed", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, result)
}
