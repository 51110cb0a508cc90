package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/runner"
)

// mapRunnerError maps runner/graph sentinel errors to HTTP error
// responses (spec.md §7: resource exhaustion -> 429, unknown thread ->
// 404), plus 409 for a thread_id that is already running; everything
// else -> 500.
func mapRunnerError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, runner.ErrAtCapacity):
		return echo.NewHTTPError(http.StatusTooManyRequests, "max_concurrent_pipelines reached")
	case errors.Is(err, runner.ErrAlreadyRunning):
		return echo.NewHTTPError(http.StatusConflict, "pipeline already running for this thread_id")
	case errors.Is(err, graph.ErrNoSavedState):
		return echo.NewHTTPError(http.StatusNotFound, "no saved state for thread_id")
	default:
		slog.Error("unexpected orchestrator error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
