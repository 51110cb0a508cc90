// Package api implements the REST/SSE control plane described in
// spec.md §6: start, status, history, resume, cancel, stream, diagram,
// active-pipelines, and health endpoints, all backed by the runner and
// checkpoint store as the single source of truth.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codeready-toolchain/connector-forge/pkg/checkpoint"
	"github.com/codeready-toolchain/connector-forge/pkg/config"
	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
	"github.com/codeready-toolchain/connector-forge/pkg/runner"
	"github.com/codeready-toolchain/connector-forge/pkg/stream"
)

// Server is the orchestrator's HTTP control plane (spec.md §6).
type Server struct {
	echo        *echo.Echo
	httpServer  *http.Server
	cfg         *config.Config
	runner      *runner.Runner
	store       checkpoint.Store
	broadcaster *stream.Broadcaster
}

// NewServer wires an Echo v5 router over the given runner, checkpoint
// store, and stream broadcaster (spec.md §2's Control Plane component).
func NewServer(cfg *config.Config, run *runner.Runner, store checkpoint.Store, broadcaster *stream.Broadcaster) *Server {
	e := echo.New()
	e.HideBanner = true

	s := &Server{
		echo:        e,
		cfg:         cfg,
		runner:      run,
		store:       store,
		broadcaster: broadcaster,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(securityHeaders())
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))

	s.echo.GET("/health", s.healthHandler)

	s.echo.POST("/pipeline/start", s.startHandler)
	s.echo.GET("/pipeline/status/:thread_id", s.statusHandler)
	s.echo.GET("/pipeline/history/:thread_id", s.historyHandler)
	s.echo.POST("/pipeline/resume", s.resumeHandler)
	s.echo.DELETE("/pipeline/cancel/:thread_id", s.cancelHandler)
	s.echo.GET("/pipeline/stream/:connector_name", s.streamHandler)
	s.echo.GET("/pipeline/diagram", s.diagramHandler)
	s.echo.GET("/pipelines/active", s.activeHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener —
// used by tests that want a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) startHandler(c *echo.Context) error {
	var req StartPipelineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ConnectorName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "connector_name is required")
	}
	connType := req.ConnectorType
	if connType == "" {
		connType = pipeline.ConnectorSource
	}
	if connType != pipeline.ConnectorSource && connType != pipeline.ConnectorDestination {
		return echo.NewHTTPError(http.StatusBadRequest, "connector_type must be source or destination")
	}

	params := pipeline.InitialStateParams{
		ConnectorName:      req.ConnectorName,
		ConnectorType:      connType,
		OriginalRequest:    req.OriginalRequest,
		APIDocURL:          req.APIDocURL,
		MaxTestRetries:     s.cfg.MaxTestRetries,
		MaxGenFixRetries:   s.cfg.MaxGenFixRetries,
		MaxReviewRetries:   s.cfg.MaxReviewRetries,
		MaxResearchRetries: s.cfg.MaxResearchRetries,
	}

	threadID, err := s.runner.Start(c.Request().Context(), params)
	if err != nil {
		return mapRunnerError(err)
	}

	return c.JSON(http.StatusOK, StartPipelineResponse{
		ThreadID:  threadID,
		Status:    "started",
		PollURL:   fmt.Sprintf("/pipeline/status/%s", threadID),
		StreamURL: fmt.Sprintf("/pipeline/stream/%s", req.ConnectorName),
	})
}

func (s *Server) statusHandler(c *echo.Context) error {
	threadID := c.Param("thread_id")

	snap, err := s.runner.GetState(c.Request().Context(), threadID)
	if err != nil {
		if errors.Is(err, graph.ErrNoSavedState) {
			return c.JSON(http.StatusOK, StatusResponse{Found: false, ThreadID: threadID})
		}
		return mapRunnerError(err)
	}

	info, tracked := s.runner.LocalRunInfo(threadID)

	st := snap.Values
	logs := st.Logs
	if len(logs) > 10 {
		logs = logs[len(logs)-10:]
	}
	var coverage float64
	if st.TestResults != nil {
		coverage = st.TestResults.CoverageRatio
	}

	return c.JSON(http.StatusOK, StatusResponse{
		Found:           true,
		ThreadID:        threadID,
		ConnectorName:   st.ConnectorName,
		Status:          st.Status,
		CurrentPhase:    st.CurrentPhase,
		CoverageRatio:   coverage,
		TestRetries:     st.TestRetries,
		GenFixRetries:   st.GenFixRetries,
		ReviewRetries:   st.ReviewRetries,
		ResearchRetries: st.ResearchRetries,
		DegradedMode:    st.DegradedMode,
		PRURL:           st.PRURL,
		NextNodes:       snap.NextNodes,
		IsActive:        tracked && info.IsActive(),
		Logs:            logs,
	})
}

func (s *Server) historyHandler(c *echo.Context) error {
	threadID := c.Param("thread_id")

	checkpoints, err := s.runner.History(c.Request().Context(), threadID)
	if err != nil {
		return mapRunnerError(err)
	}
	if len(checkpoints) == 0 {
		return c.JSON(http.StatusOK, HistoryResponse{Found: false})
	}

	out := make([]HistoryCheckpoint, 0, len(checkpoints))
	for _, cp := range checkpoints {
		out = append(out, HistoryCheckpoint{
			CheckpointID: cp.CheckpointID,
			Phase:        cp.StateSnapshot.CurrentPhase,
			Status:       cp.StateSnapshot.Status,
			NextNodes:    cp.NextNodes,
		})
	}
	return c.JSON(http.StatusOK, HistoryResponse{Found: true, Checkpoints: out})
}

func (s *Server) resumeHandler(c *echo.Context) error {
	var req ResumePipelineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ThreadID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "thread_id is required")
	}

	if err := s.runner.Resume(c.Request().Context(), req.ThreadID); err != nil {
		return mapRunnerError(err)
	}

	return c.JSON(http.StatusOK, ResumePipelineResponse{
		ThreadID: req.ThreadID,
		Status:   "resuming",
		PollURL:  fmt.Sprintf("/pipeline/status/%s", req.ThreadID),
	})
}

func (s *Server) cancelHandler(c *echo.Context) error {
	threadID := c.Param("thread_id")
	if !s.runner.Cancel(threadID) {
		return echo.NewHTTPError(http.StatusNotFound, "thread_id not active on this process")
	}
	return c.JSON(http.StatusOK, CancelPipelineResponse{ThreadID: threadID, Status: "cancelled"})
}

// streamHandler serves GET /pipeline/stream/{connector_name} as a plain
// SSE stream (text/event-stream), fed by the Broadcaster's
// per-connector channel — a thin tap on the same checkpoint writes the
// polling endpoints read (spec.md §9 "Streaming vs. polling").
func (s *Server) streamHandler(c *echo.Context) error {
	connectorName := c.Param("connector_name")

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	_, events, unsubscribe := s.broadcaster.Subscribe(connectorName)
	defer unsubscribe()

	ctx := c.Request().Context()
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return nil
			}
			w.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func (s *Server) diagramHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, DiagramResponse{
		Format:  "mermaid",
		Diagram: s.runner.Mermaid(),
	})
}

func (s *Server) activeHandler(c *echo.Context) error {
	runs := s.runner.ActiveRuns()
	out := make([]ActivePipelineSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, ActivePipelineSummary{
			ThreadID:      r.ThreadID,
			ConnectorName: r.ConnectorName,
			StartedAt:     r.StartedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, ActivePipelinesResponse{Count: len(out), Pipelines: out})
}

func (s *Server) healthHandler(c *echo.Context) error {
	info := CheckpointerInfo{Type: s.cfg.CheckpointerType}
	if s.cfg.CheckpointerType == config.CheckpointerSQLite {
		info.Path = s.cfg.SQLiteDBPath
	}

	return c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		Checkpointer: info,
		Limits: LimitsInfo{
			MaxTestRetries:         s.cfg.MaxTestRetries,
			MaxGenFixRetries:       s.cfg.MaxGenFixRetries,
			MaxReviewRetries:       s.cfg.MaxReviewRetries,
			MaxResearchRetries:     s.cfg.MaxResearchRetries,
			MaxConcurrentPipelines: s.cfg.MaxConcurrentPipelines,
		},
		ActivePipelines: len(s.runner.ActiveRuns()),
	})
}
