// Package api serves the two HTTP surfaces of the emulator: the invocation
// endpoint callers hit to run a function, and the per-function Lambda runtime
// API that spawned processes poll for work and post results to.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/0kaguya/cargo-lambda/pkg/scheduler"
)

const (
	// nextPollInterval paces the queue polling behind the long-poll
	// invocation/next endpoint.
	nextPollInterval = 50 * time.Millisecond
	// invocationDeadline is advertised to the function process; the
	// emulator does not enforce it.
	invocationDeadline = 5 * time.Minute
)

const functionErrorHeader = "X-Amz-Function-Error"

// Server exposes the emulator endpoints over one listener.
type Server struct {
	addr   string
	sched  *scheduler.Scheduler
	logger *slog.Logger
	echo   *echo.Echo
}

func NewServer(addr string, sched *scheduler.Scheduler, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{addr: addr, sched: sched, logger: logger, echo: e}

	e.POST("/2015-03-31/functions/:name/invocations", s.invoke)
	e.GET("/:name/2018-06-01/runtime/invocation/next", s.next)
	e.POST("/:name/2018-06-01/runtime/invocation/:requestID/response", s.response)
	e.POST("/:name/2018-06-01/runtime/invocation/:requestID/error", s.invocationError)
	e.POST("/:name/2018-06-01/runtime/init/error", s.initError)

	return s
}

// Start serves until ctx is canceled, then shuts the listener down.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", "error", err)
		}
	}()

	s.logger.Info("invoke server listening", "address", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// invoke accepts a caller's invocation, submits it for scheduling and blocks
// until the function process posts the response.
func (s *Server) invoke(c echo.Context) error {
	name := c.Param("name")
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.String(http.StatusBadRequest, "cannot read request body")
	}

	requestID := uuid.NewString()
	inv, respCh := scheduler.NewInvoke(name, requestID, payload)

	ctx := c.Request().Context()
	if err := s.sched.Submit(ctx, inv); err != nil {
		return c.String(http.StatusServiceUnavailable, "scheduler unavailable")
	}

	s.logger.Debug("invocation submitted", "function", name, "requestID", requestID)

	select {
	case resp := <-respCh:
		if resp.FunctionError != "" {
			c.Response().Header().Set(functionErrorHeader, resp.FunctionError)
		}
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, resp.Payload)
	case <-ctx.Done():
		return c.String(http.StatusServiceUnavailable, "invocation canceled")
	}
}

// next long-polls the function's queue. The completion handle moves to the
// response registry inside Scheduler.Next, so by the time the process sees
// the payload the response route can already resolve it.
func (s *Server) next(c echo.Context) error {
	name := c.Param("name")
	ctx := c.Request().Context()

	ticker := time.NewTicker(nextPollInterval)
	defer ticker.Stop()

	for {
		if inv := s.sched.Next(name); inv != nil {
			deadline := time.Now().Add(invocationDeadline).UnixMilli()
			h := c.Response().Header()
			h.Set("Lambda-Runtime-Aws-Request-Id", inv.RequestID)
			h.Set("Lambda-Runtime-Deadline-Ms", strconv.FormatInt(deadline, 10))
			h.Set("Lambda-Runtime-Invoked-Function-Arn", functionArn(name))
			return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, inv.Payload)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return c.NoContent(http.StatusNoContent)
		}
	}
}

func (s *Server) response(c echo.Context) error {
	return s.resolve(c, "")
}

func (s *Server) invocationError(c echo.Context) error {
	return s.resolve(c, "Unhandled")
}

// resolve delivers the posted body to the caller blocked on the request ID.
// An unknown ID is not an error: the caller may be gone already.
func (s *Server) resolve(c echo.Context, functionError string) error {
	requestID := c.Param("requestID")
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.String(http.StatusBadRequest, "cannot read response body")
	}

	s.sched.Resolve(requestID, &scheduler.Response{Payload: payload, FunctionError: functionError})
	return c.JSON(http.StatusAccepted, map[string]string{"status": "OK"})
}

func (s *Server) initError(c echo.Context) error {
	body, _ := io.ReadAll(c.Request().Body)
	s.logger.Error("function failed to initialize", "function", c.Param("name"), "error", string(body))
	return c.JSON(http.StatusAccepted, map[string]string{"status": "OK"})
}

func functionArn(name string) string {
	return fmt.Sprintf("arn:aws:lambda:us-east-1:012345678912:function:%s", name)
}
