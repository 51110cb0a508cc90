// Package pipeline defines the durable pipeline state, its field-merge
// reducers, and the routing policy that maps state to the next node.
package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Phase values for State.CurrentPhase.
const (
	PhasePending        = "pending"
	PhaseResearching    = "researching"
	PhaseGenerating     = "generating"
	PhaseMockGenerating = "mock_generating"
	PhaseTesting        = "testing"
	PhaseTestReviewing  = "test_reviewing"
	PhaseReviewing      = "reviewing"
	PhasePublishing     = "publishing"
	PhaseCompleted      = "completed"
	PhaseFailed         = "failed"
)

// Status values for State.Status.
const (
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Connector type values for State.ConnectorType.
const (
	ConnectorSource      = "source"
	ConnectorDestination = "destination"
)

// TestReviewDecision values.
const (
	TestReviewInvalid    = "invalid"
	TestReviewValidFail  = "valid_fail"
	TestReviewValidPass  = "valid_pass"
)

// ReviewDecision values.
const (
	ReviewApprove       = "approve"
	ReviewRejectCode    = "reject_code"
	ReviewRejectContext = "reject_context"
)

// Default retry ceilings (spec.md §3).
const (
	DefaultMaxTestRetries     = 3
	DefaultMaxGenFixRetries   = 3
	DefaultMaxReviewRetries   = 2
	DefaultMaxResearchRetries = 1
)

// Coverage thresholds (spec.md §4.4.6).
const (
	CoverageFullPass     = 1.00
	CoveragePartialMin   = 0.80
	CoverageRejectCodeMin = 0.50
)

// MaxLogsInState bounds the trimmed-append logs field (spec.md §3).
const MaxLogsInState = 100

// ResearchOutput is the structured research document produced by the
// Research node.
type ResearchOutput struct {
	FullDocument        string    `json:"full_document"`
	ConnectorName        string    `json:"connector_name"`
	ContextGapsAddressed []string  `json:"context_gaps_addressed"`
	ResearchedAt         time.Time `json:"researched_at"`
	DurationSeconds      float64   `json:"duration_seconds"`
	TokensUsed           int       `json:"tokens_used"`
}

// GeneratedCode is the output of the Generator node.
type GeneratedCode struct {
	Files    map[string]string      `json:"files"`
	Action   string                 `json:"action"`
	Reason   string                 `json:"reason"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// MockGenerationOutput is the output of the MockGenerator node.
type MockGenerationOutput struct {
	Summary         string `json:"summary"`
	FixturesDir     string `json:"fixtures_dir"`
	LoaderGenerated bool   `json:"loader_generated"`
}

// TestCode is the in-state copy of the authored test suite.
type TestCode struct {
	Files  map[string]string `json:"files"`
	Action string            `json:"action"`
}

// TestResults is the output of the Tester node.
type TestResults struct {
	Status        string   `json:"status"`
	Passed        bool     `json:"passed"`
	TestsPassed   int      `json:"tests_passed"`
	TestsFailed   int      `json:"tests_failed"`
	TestsTotal    int      `json:"tests_total"`
	Errors        []string `json:"errors,omitempty"`
	Details       string   `json:"details,omitempty"`
	CoverageRatio float64  `json:"coverage_ratio"`
}

// State is the single record threaded through every pipeline node.
// Fields are grouped into the five families named in spec.md §3.
type State struct {
	// Request identity — set once at initialization, never mutated.
	ConnectorName   string    `json:"connector_name"`
	ConnectorType   string    `json:"connector_type"`
	OriginalRequest string    `json:"original_request"`
	APIDocURL       *string   `json:"api_doc_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	// Control.
	CurrentPhase string `json:"current_phase"`
	Status       string `json:"status"`

	// Retry counters with bounds.
	TestRetries        int `json:"test_retries"`
	MaxTestRetries     int `json:"max_test_retries"`
	GenFixRetries      int `json:"gen_fix_retries"`
	MaxGenFixRetries   int `json:"max_gen_fix_retries"`
	ReviewRetries      int `json:"review_retries"`
	MaxReviewRetries   int `json:"max_review_retries"`
	ResearchRetries    int `json:"research_retries"`
	MaxResearchRetries int `json:"max_research_retries"`

	// Artifacts.
	ResearchOutput       *ResearchOutput        `json:"research_output,omitempty"`
	ContextGaps          []string               `json:"context_gaps"`
	GeneratedCode        *GeneratedCode         `json:"generated_code,omitempty"`
	MockGenerationOutput *MockGenerationOutput  `json:"mock_generation_output,omitempty"`
	MockGenerationSkipped bool                  `json:"mock_generation_skipped"`
	FixturesCreated      []string               `json:"fixtures_created"`
	TestCode             *TestCode              `json:"test_code,omitempty"`
	ConnectorDir         string                 `json:"connector_dir"`
	TestResults          *TestResults           `json:"test_results,omitempty"`

	// Verdicts.
	TestReviewDecision  string   `json:"test_review_decision,omitempty"`
	TestReviewFeedback  []string `json:"test_review_feedback"`
	ReviewDecision      string   `json:"review_decision,omitempty"`
	ReviewFeedback      []string `json:"review_feedback"`
	DegradedMode        bool     `json:"degraded_mode"`
	DegradedStreams     []string `json:"degraded_streams"`

	// Outcome & trace.
	Published      bool       `json:"published"`
	PRURL          *string    `json:"pr_url,omitempty"`
	Errors         []string   `json:"errors"`
	Logs           []string   `json:"logs"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TotalDuration  float64    `json:"total_duration"`
}

var connectorDirSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// ConnectorWorkingDir computes the on-disk working-directory name for a
// connector, spec.md §5's `<type>-<slug>/` convention (grounded on
// original_source/app/orchestrator/nodes/real_agents.py:280's
// `OUTPUT_BASE_DIR / f"{connector_type}-{connector_slug}"`). Runner.Start
// appends a thread_id suffix on top of this before building the initial
// state, namespacing concurrent runs on the same connector apart
// (SPEC_FULL.md §6).
func ConnectorWorkingDir(connectorType, connectorName string) string {
	slug := connectorDirSlugChars.ReplaceAllString(strings.ToLower(connectorName), "-")
	slug = strings.Trim(slug, "-")
	return fmt.Sprintf("%s-%s", connectorType, slug)
}

// InitialStateParams are the caller-supplied fields for CreateInitialState.
type InitialStateParams struct {
	ConnectorName      string
	ConnectorType      string
	OriginalRequest    string
	APIDocURL          *string
	ConnectorDir       string
	MaxTestRetries     int
	MaxGenFixRetries   int
	MaxReviewRetries   int
	MaxResearchRetries int
	Now                time.Time
}

// CreateInitialState builds the State a pipeline run starts with,
// mirroring original_source's create_initial_state.
func CreateInitialState(p InitialStateParams) State {
	maxTest := p.MaxTestRetries
	if maxTest == 0 {
		maxTest = DefaultMaxTestRetries
	}
	maxGenFix := p.MaxGenFixRetries
	if maxGenFix == 0 {
		maxGenFix = DefaultMaxGenFixRetries
	}
	maxReview := p.MaxReviewRetries
	if maxReview == 0 {
		maxReview = DefaultMaxReviewRetries
	}
	maxResearch := p.MaxResearchRetries
	if maxResearch == 0 {
		maxResearch = DefaultMaxResearchRetries
	}
	connType := p.ConnectorType
	if connType == "" {
		connType = ConnectorSource
	}
	connectorDir := p.ConnectorDir
	if connectorDir == "" {
		connectorDir = ConnectorWorkingDir(connType, p.ConnectorName)
	}

	return State{
		ConnectorName:      p.ConnectorName,
		ConnectorType:      connType,
		OriginalRequest:    p.OriginalRequest,
		APIDocURL:          p.APIDocURL,
		ConnectorDir:       connectorDir,
		CreatedAt:          p.Now,
		CurrentPhase:       PhasePending,
		Status:             StatusRunning,
		MaxTestRetries:     maxTest,
		MaxGenFixRetries:   maxGenFix,
		MaxReviewRetries:   maxReview,
		MaxResearchRetries: maxResearch,
		ContextGaps:        []string{},
		FixturesCreated:    []string{},
		TestReviewFeedback: []string{},
		ReviewFeedback:     []string{},
		DegradedStreams:    []string{},
		Errors:             []string{},
		Logs:               []string{},
	}
}

// Clone returns a deep-enough copy of State safe for a node to read
// while the engine continues to hold the canonical copy.
func (s State) Clone() State {
	out := s
	out.ContextGaps = append([]string(nil), s.ContextGaps...)
	out.FixturesCreated = append([]string(nil), s.FixturesCreated...)
	out.TestReviewFeedback = append([]string(nil), s.TestReviewFeedback...)
	out.ReviewFeedback = append([]string(nil), s.ReviewFeedback...)
	out.DegradedStreams = append([]string(nil), s.DegradedStreams...)
	out.Errors = append([]string(nil), s.Errors...)
	out.Logs = append([]string(nil), s.Logs...)
	return out
}
