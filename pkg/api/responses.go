package api

// StartPipelineResponse is returned by POST /pipeline/start.
type StartPipelineResponse struct {
	ThreadID  string `json:"thread_id"`
	Status    string `json:"status"`
	PollURL   string `json:"poll_url"`
	StreamURL string `json:"stream_url"`
}

// ResumePipelineResponse is returned by POST /pipeline/resume.
type ResumePipelineResponse struct {
	ThreadID string `json:"thread_id"`
	Status   string `json:"status"`
	PollURL  string `json:"poll_url"`
}

// CancelPipelineResponse is returned by DELETE /pipeline/cancel/{thread_id}.
type CancelPipelineResponse struct {
	ThreadID string `json:"thread_id"`
	Status   string `json:"status"`
}

// StatusResponse is returned by GET /pipeline/status/{thread_id}
// (spec.md §6's status table).
type StatusResponse struct {
	Found            bool     `json:"found"`
	ThreadID         string   `json:"thread_id"`
	ConnectorName    string   `json:"connector_name,omitempty"`
	Status           string   `json:"status,omitempty"`
	CurrentPhase     string   `json:"current_phase,omitempty"`
	CoverageRatio    float64  `json:"coverage_ratio"`
	TestRetries      int      `json:"test_retries"`
	GenFixRetries    int      `json:"gen_fix_retries"`
	ReviewRetries    int      `json:"review_retries"`
	ResearchRetries  int      `json:"research_retries"`
	DegradedMode     bool     `json:"degraded_mode"`
	PRURL            *string  `json:"pr_url,omitempty"`
	NextNodes        []string `json:"next_nodes"`
	IsActive         bool     `json:"is_active"`
	Logs             []string `json:"logs"`
}

// HistoryCheckpoint is one entry in HistoryResponse.Checkpoints.
type HistoryCheckpoint struct {
	CheckpointID string   `json:"checkpoint_id"`
	Phase        string   `json:"phase"`
	Status       string   `json:"status"`
	NextNodes    []string `json:"next_nodes"`
}

// HistoryResponse is returned by GET /pipeline/history/{thread_id}.
type HistoryResponse struct {
	Found       bool                `json:"found"`
	Checkpoints []HistoryCheckpoint `json:"checkpoints"`
}

// DiagramResponse is returned by GET /pipeline/diagram.
type DiagramResponse struct {
	Format  string `json:"format"`
	Diagram string `json:"diagram"`
}

// ActivePipelineSummary is one entry in ActivePipelinesResponse.Pipelines.
type ActivePipelineSummary struct {
	ThreadID      string `json:"thread_id"`
	ConnectorName string `json:"connector_name"`
	StartedAt     string `json:"started_at"`
}

// ActivePipelinesResponse is returned by GET /pipelines/active.
type ActivePipelinesResponse struct {
	Count     int                     `json:"count"`
	Pipelines []ActivePipelineSummary `json:"pipelines"`
}

// HealthResponse is returned by GET /health (spec.md §6).
type HealthResponse struct {
	Status      string          `json:"status"`
	Checkpointer CheckpointerInfo `json:"checkpointer"`
	Limits      LimitsInfo      `json:"limits"`
	ActivePipelines int         `json:"active_pipelines"`
}

// CheckpointerInfo describes the active checkpoint backend.
type CheckpointerInfo struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// LimitsInfo surfaces the configured retry ceilings and concurrency cap.
type LimitsInfo struct {
	MaxTestRetries         int `json:"max_test_retries"`
	MaxGenFixRetries       int `json:"max_gen_fix_retries"`
	MaxReviewRetries       int `json:"max_review_retries"`
	MaxResearchRetries     int `json:"max_research_retries"`
	MaxConcurrentPipelines int `json:"max_concurrent_pipelines"`
}
