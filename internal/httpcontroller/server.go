// Package httpcontroller exposes the violation check pipeline over HTTP.
package httpcontroller

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/checker"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/conf"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/errors"
	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Package-level logger specific to the web service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "web.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "web", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize web file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "web")
		closeLogger = func() error { return nil }
	}
}

// CheckTrigger runs one violation check. Satisfied by *checker.Runner.
type CheckTrigger interface {
	Run(ctx context.Context, opts checker.Options) (*checker.RunResult, error)
}

// Server encapsulates the Echo server and route handlers.
type Server struct {
	Echo     *echo.Echo
	Settings *conf.Settings
	Checker  CheckTrigger
}

// New initializes an HTTP server around the given check runner.
func New(settings *conf.Settings, trigger CheckTrigger) *Server {
	s := &Server{
		Echo:     echo.New(),
		Settings: settings,
		Checker:  trigger,
	}

	s.Echo.HideBanner = true
	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.BodyLimit("64K"))

	s.initRoutes()
	return s
}

// Start begins listening and serving HTTP requests. It blocks until the
// listener fails or is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.Settings.WebServer.Port)
	logger.Info("starting web server", "addr", addr)

	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryNetwork).
			Context("addr", addr).
			Build()
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down web server")
	err := s.Echo.Shutdown(ctx)
	if closeLogger != nil {
		if cerr := closeLogger(); cerr != nil {
			log.Printf("Failed to close web log file: %v", cerr)
		}
	}
	return err
}

// ErrorResponse is the JSON error body for API failures. Server-side
// failures additionally carry the goroutine stack for postmortem use.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
	Stack         string `json:"stack,omitempty"`
}

// handleError logs the failure with a correlation id and writes the JSON
// error body.
func (s *Server) handleError(ctx echo.Context, err error, message string, code int) error {
	resp := &ErrorResponse{
		Error:         err.Error(),
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
	if code >= http.StatusInternalServerError {
		resp.Stack = string(debug.Stack())
	}

	logger.Error("API error",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", err.Error(),
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())

	return ctx.JSON(code, resp)
}

func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}
