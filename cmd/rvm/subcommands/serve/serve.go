//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package serve implements `rvm serve`, an Echo-based HTTP server
// exposing a compiled Program at POST /v1/data/{path}, grounded on the
// teacher's pkg/decisionpoint/generic server (echo.New, e.Start in a
// background goroutine, graceful e.Shutdown on SIGINT). One fresh
// [rvm.VM] is created per request (SPEC_FULL.md §6.6); the Program
// itself is loaded once and shared by reference across requests, since
// Program is immutable after compilation.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/manetu/rego-rvm/internal/logging"
	"github.com/manetu/rego-rvm/pkg/common"
	"github.com/manetu/rego-rvm/pkg/core/program"
	"github.com/manetu/rego-rvm/pkg/core/rvm"
	"github.com/manetu/rego-rvm/pkg/core/value"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

var logger = logging.GetLogger("serve")

const agent string = "serve"

// decisionRequest is the POST /v1/data/{path} request body.
type decisionRequest struct {
	Input interface{} `json:"input"`
}

// decisionResponse is the POST /v1/data/{path} response body.
type decisionResponse struct {
	RequestID string      `json:"request_id"`
	Result    interface{} `json:"result,omitempty"`
}

// Execute runs the serve command, starting an HTTP server that
// evaluates the configured Program's rules by path and gracefully
// shuts down on interrupt.
func Execute(ctx context.Context, cmd *cli.Command) error {
	prog, err := loadProgram(cmd.String("program"))
	if err != nil {
		return err
	}

	port := cmd.Int("port")

	e := echo.New()
	e.POST("/v1/data/*", decisionHandler(prog))

	go func() {
		addr := fmt.Sprintf(":%d", port)
		logger.Info(agent, "listen", fmt.Sprintf("serving Program on %s", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.SysErrorf("server exited: %+v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	logger.Info(agent, "shutdown", "shutting down server...")

	if err := e.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "error shutting down server")
	}
	logger.Info(agent, "shutdown", "server exited gracefully")
	return nil
}

func loadProgram(path string) (*program.Program, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- CLI tool intentionally reads user-provided paths
	if err != nil {
		return nil, errors.Wrapf(err, "error reading Program artifact %q", path)
	}
	prog, isPartial, _, err := program.DeserializeBinary(data)
	if err != nil {
		return nil, errors.Wrapf(err, "error deserializing Program artifact %q", path)
	}
	if isPartial {
		return nil, fmt.Errorf("Program artifact %q is truncated", path)
	}
	return prog, nil
}

// decisionHandler evaluates data.<path> against the request's input
// document using a fresh VM, so concurrent requests never share
// register or rule-cache state even though they share prog.
func decisionHandler(prog *program.Program) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := uuid.New().String()

		rulePath := strings.TrimPrefix(c.Request().URL.Path, "/v1/data/")
		entryPoint := "data." + strings.ReplaceAll(rulePath, "/", ".")

		var req decisionRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, decisionResponse{RequestID: requestID})
		}

		vm := rvm.New()
		vm.LoadProgram(prog)
		vm.SetInput(value.FromJSON(req.Input))

		state, err := vm.ExecuteEntryPointByName(entryPoint)
		if ee, ok := err.(*common.EngineError); ok && ee.Code == common.CodeEntryPointNotFound {
			return c.JSON(http.StatusNotFound, decisionResponse{RequestID: requestID})
		}
		if err != nil {
			logger.Warn(agent, requestID, fmt.Sprintf("evaluation error: %v", err))
			return c.JSON(http.StatusInternalServerError, decisionResponse{RequestID: requestID})
		}

		switch state.Kind {
		case rvm.StateCompleted:
			return c.JSON(http.StatusOK, decisionResponse{RequestID: requestID, Result: state.Value.ToInterface()})
		case rvm.StateError:
			logger.Warn(agent, requestID, fmt.Sprintf("evaluation error: %v", state.Err))
			return c.JSON(http.StatusInternalServerError, decisionResponse{RequestID: requestID})
		default:
			return c.JSON(http.StatusNotFound, decisionResponse{RequestID: requestID})
		}
	}
}
