// Package runner owns background pipeline executions: starting and
// resuming runs as goroutines, tracking their lifecycle for status
// queries, cancelling them, and capping how many run concurrently.
// Grounded on the teacher's pkg/queue/pool.go (WorkerPool's
// session-cancel registry and graceful-stop pattern) and
// original_source/app/orchestrator/runner.py's in-memory
// _active_runs tracking, generalized from Celery-free asyncio tasks
// to goroutines plus a semaphore-bounded concurrency cap.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/codeready-toolchain/connector-forge/pkg/checkpoint"
	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
	"github.com/codeready-toolchain/connector-forge/pkg/stream"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases and kebab-cases a connector name for thread_id
// generation (spec.md §7: "slug is lowercase kebab-case of connector
// name").
func slugify(connectorName string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(connectorName), "-")
	return strings.Trim(s, "-")
}

// ErrAtCapacity is returned by Start/Resume when the concurrency
// cap is already saturated (spec.md §6: the control plane maps this to
// HTTP 429).
var ErrAtCapacity = fmt.Errorf("runner: max_concurrent_pipelines reached")

// ErrAlreadyRunning is returned when Start or Resume is called for a
// thread_id that already has an in-flight goroutine.
var ErrAlreadyRunning = fmt.Errorf("runner: pipeline already running for this thread_id")

// RunInfo tracks one pipeline execution's lifecycle, mirroring the
// original_source PipelineRun dataclass.
type RunInfo struct {
	ThreadID      string
	ConnectorName string
	StartedAt     time.Time
	CompletedAt   *time.Time
	Err           string
	cancel        context.CancelFunc
	done          bool
}

// IsActive reports whether the run's goroutine is still executing.
func (r RunInfo) IsActive() bool { return !r.done }

// Runner drives a compiled graph.App, bounding concurrent executions
// and tracking every thread_id it has started or resumed since process
// start (spec.md §5's Runner component).
type Runner struct {
	app *graph.App
	sem *semaphore.Weighted

	mu   sync.RWMutex
	runs map[string]*RunInfo

	broadcaster *stream.Broadcaster

	now func() time.Time
}

// SetBroadcaster wires a stream.Broadcaster so every node-boundary
// progress event is also published on the run's connector_name channel,
// feeding `GET /pipeline/stream/{connector_name}` (spec.md §6). Optional:
// a Runner with no broadcaster still works, it just has no live
// subscribers to notify.
func (r *Runner) SetBroadcaster(b *stream.Broadcaster) {
	r.broadcaster = b
}

// streamEvent is the JSON payload published to stream subscribers,
// matching spec.md §6's `GET /pipeline/stream` event shape.
type streamEvent struct {
	Type            string   `json:"type"`
	ThreadID        string   `json:"thread_id"`
	Phase           string   `json:"phase"`
	Status          string   `json:"status"`
	CoverageRatio   float64  `json:"coverage_ratio"`
	TestRetries     int      `json:"test_retries"`
	GenFixRetries   int      `json:"gen_fix_retries"`
	ReviewRetries   int      `json:"review_retries"`
	ResearchRetries int      `json:"research_retries"`
	NextNodes       []string `json:"next_nodes"`
}

// New constructs a Runner bounded to maxConcurrent simultaneous
// pipeline executions (spec.md §6 `max_concurrent_pipelines`).
func New(app *graph.App, maxConcurrent int64) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Runner{
		app:  app,
		sem:  semaphore.NewWeighted(maxConcurrent),
		runs: make(map[string]*RunInfo),
		now:  time.Now,
	}
}

// GenerateThreadID mirrors original_source's generate_thread_id:
// `pipeline-<slugified connector_name>-<8 hex chars>`.
func GenerateThreadID(connectorName string) string {
	return fmt.Sprintf("pipeline-%s-%s", slugify(connectorName), uuid.NewString()[:8])
}

// connectorDirForThread namespaces a run's working directory by
// thread_id on top of pipeline.ConnectorWorkingDir's connector-only
// base, so two concurrent runs on the same connector never collide on
// disk — the production resolution of spec.md §5's Open Question
// (SPEC_FULL.md §6).
func connectorDirForThread(connectorType, connectorName, threadID string) string {
	connType := connectorType
	if connType == "" {
		connType = pipeline.ConnectorSource
	}
	suffix := threadID
	if i := strings.LastIndex(threadID, "-"); i >= 0 {
		suffix = threadID[i+1:]
	}
	return fmt.Sprintf("%s-%s", pipeline.ConnectorWorkingDir(connType, connectorName), suffix)
}

// Start launches a brand-new pipeline run in the background and
// returns its thread_id immediately (spec.md §6 `POST
// /pipeline/start`).
func (r *Runner) Start(ctx context.Context, params pipeline.InitialStateParams) (string, error) {
	if !r.sem.TryAcquire(1) {
		return "", ErrAtCapacity
	}

	threadID := GenerateThreadID(params.ConnectorName)
	if params.Now.IsZero() {
		params.Now = r.now()
	}
	if params.ConnectorDir == "" {
		params.ConnectorDir = connectorDirForThread(params.ConnectorType, params.ConnectorName, threadID)
	}
	initial := pipeline.CreateInitialState(params)

	runCtx, cancel := context.WithCancel(context.Background())
	info := &RunInfo{ThreadID: threadID, ConnectorName: params.ConnectorName, StartedAt: r.now(), cancel: cancel}

	r.mu.Lock()
	r.runs[threadID] = info
	r.mu.Unlock()

	go r.execute(runCtx, threadID, &initial, info)

	return threadID, nil
}

// Resume continues an interrupted pipeline from its latest checkpoint
// (spec.md §6 `POST /pipeline/resume`).
func (r *Runner) Resume(ctx context.Context, threadID string) error {
	r.mu.RLock()
	existing, running := r.runs[threadID]
	r.mu.RUnlock()
	if running && existing.IsActive() {
		return ErrAlreadyRunning
	}

	if !r.sem.TryAcquire(1) {
		return ErrAtCapacity
	}

	snap, err := r.app.GetState(ctx, threadID)
	if err != nil {
		r.sem.Release(1)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	info := &RunInfo{ThreadID: threadID, ConnectorName: snap.Values.ConnectorName, StartedAt: r.now(), cancel: cancel}

	r.mu.Lock()
	r.runs[threadID] = info
	r.mu.Unlock()

	go r.execute(runCtx, threadID, nil, info)

	return nil
}

func (r *Runner) execute(ctx context.Context, threadID string, initial *pipeline.State, info *RunInfo) {
	defer r.sem.Release(1)

	logger := slog.With("thread_id", threadID)
	logger.Info("pipeline execution starting")

	// A node function panicking (e.g. an LLMSession implementation that
	// panics instead of returning an error) must fail only this run, not
	// take down every other pipeline sharing the process — mirrors the
	// err != nil handling below, just for the panic case.
	defer func() {
		if rec := recover(); rec != nil {
			completed := r.now()
			r.mu.Lock()
			info.done = true
			info.CompletedAt = &completed
			info.Err = fmt.Sprintf("panic: %v", rec)
			r.mu.Unlock()
			logger.Error("pipeline execution panicked", "panic", rec)
		}
	}()

	final, err := r.app.Stream(ctx, initial, threadID, func(state pipeline.State, nextNodes []string) {
		logger.Info("pipeline progress",
			"phase", state.CurrentPhase,
			"test_retries", state.TestRetries,
			"gen_fix_retries", state.GenFixRetries,
			"review_retries", state.ReviewRetries,
			"research_retries", state.ResearchRetries,
			"next_nodes", nextNodes)

		if r.broadcaster == nil {
			return
		}
		payload, err := json.Marshal(streamEvent{
			Type:            "progress",
			ThreadID:        threadID,
			Phase:           state.CurrentPhase,
			Status:          state.Status,
			CoverageRatio:   coverageRatio(state),
			TestRetries:     state.TestRetries,
			GenFixRetries:   state.GenFixRetries,
			ReviewRetries:   state.ReviewRetries,
			ResearchRetries: state.ResearchRetries,
			NextNodes:       nextNodes,
		})
		if err != nil {
			return
		}
		r.broadcaster.Publish(state.ConnectorName, payload)
	})

	completed := r.now()
	r.mu.Lock()
	info.done = true
	info.CompletedAt = &completed
	if err != nil {
		info.Err = err.Error()
		logger.Error("pipeline execution ended with error", "error", err)
	} else {
		logger.Info("pipeline execution completed", "status", final.Status)
	}
	r.mu.Unlock()
}

func coverageRatio(state pipeline.State) float64 {
	if state.TestResults == nil {
		return 0
	}
	return state.TestResults.CoverageRatio
}

// Cancel stops a run's context if this process owns it (spec.md §6
// `DELETE /pipeline/cancel/{thread_id}`). Returns false if the thread_id
// is unknown to this process or already finished.
func (r *Runner) Cancel(threadID string) bool {
	r.mu.RLock()
	info, ok := r.runs[threadID]
	r.mu.RUnlock()
	if !ok || info.done {
		return false
	}
	info.cancel()
	return true
}

// ActiveRuns returns a snapshot of every run this process currently
// considers active (spec.md §6 `GET /pipelines/active`).
func (r *Runner) ActiveRuns() []RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RunInfo, 0, len(r.runs))
	for _, info := range r.runs {
		if info.IsActive() {
			out = append(out, *info)
		}
	}
	return out
}

// LocalRunInfo returns this process's bookkeeping for threadID, if any
// — used to fill in the is_active field that the checkpoint
// store alone cannot answer (original_source's runner.py falls back to
// _active_runs the same way when the checkpointer has no entry yet).
func (r *Runner) LocalRunInfo(threadID string) (RunInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.runs[threadID]
	if !ok {
		return RunInfo{}, false
	}
	return *info, true
}

// CleanupCompleted evicts tracked runs that finished more than maxAge
// ago, mirroring original_source's cleanup_completed_runs. Intended to
// be invoked periodically by a caller-owned ticker (see
// cmd/orchestrator/main.go).
func (r *Runner) CleanupCompleted(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, info := range r.runs {
		if info.done && info.CompletedAt != nil && info.CompletedAt.Before(cutoff) {
			delete(r.runs, id)
			removed++
		}
	}
	return removed
}

// History delegates to the compiled graph's checkpoint history (spec.md
// §6 `GET /pipeline/history/{thread_id}`).
func (r *Runner) History(ctx context.Context, threadID string) ([]checkpoint.Checkpoint, error) {
	return r.app.History(ctx, threadID)
}

// GetState delegates to the compiled graph's latest checkpoint (spec.md
// §6 `GET /pipeline/status/{thread_id}`).
func (r *Runner) GetState(ctx context.Context, threadID string) (graph.StateSnapshot, error) {
	return r.app.GetState(ctx, threadID)
}

// Mermaid delegates to the compiled graph's diagram renderer (spec.md
// §6 `GET /pipeline/diagram`).
func (r *Runner) Mermaid() string {
	return r.app.Mermaid()
}
