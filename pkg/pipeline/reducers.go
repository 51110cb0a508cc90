package pipeline

import "time"

// Update is a partial state update returned by a node. A nil pointer
// (or nil slice, for append-family fields) means "no change"; the
// engine merges a non-nil field into the prior State using that
// field's reducer. See spec.md §3.
//
// Overwrite-family list fields (TestReviewFeedback, ReviewFeedback,
// DegradedStreams, FixturesCreated) use *[]string rather than plain
// []string so a node can distinguish "not touched" (nil pointer) from
// "explicitly cleared" (pointer to an empty slice) — this is how the
// Generator node clears feedback after consuming it (spec.md §9,
// "Feedback-list clearing").
type Update struct {
	CurrentPhase *string
	Status       *string

	TestRetries        *int
	MaxTestRetries     *int
	GenFixRetries      *int
	MaxGenFixRetries   *int
	ReviewRetries      *int
	MaxReviewRetries   *int
	ResearchRetries    *int
	MaxResearchRetries *int

	ResearchOutput        *ResearchOutput
	ContextGaps           []string // append
	GeneratedCode         **GeneratedCode // double pointer: nil=untouched, &nil=cleared
	MockGenerationOutput  *MockGenerationOutput
	MockGenerationSkipped *bool
	FixturesCreated       *[]string // overwrite
	TestCode              **TestCode // double pointer: nil=untouched, &nil=cleared
	ConnectorDir          *string
	TestResults           **TestResults // double pointer: nil=untouched, &nil=cleared

	TestReviewDecision *string
	TestReviewFeedback *[]string // overwrite
	ReviewDecision     *string
	ReviewFeedback     *[]string // overwrite
	DegradedMode       *bool
	DegradedStreams    *[]string // overwrite

	Published     *bool
	PRURL         *string
	Errors        []string // append
	Logs          []string // trimmed-append
	CompletedAt   *time.Time
	TotalDuration *float64
}

// Apply merges an Update into prior using each field's reducer,
// returning a new State. prior is never mutated (node contract
// rule 1, spec.md §4.4).
func Apply(prior State, u Update) State {
	next := prior.Clone()

	if u.CurrentPhase != nil {
		next.CurrentPhase = *u.CurrentPhase
	}
	if u.Status != nil {
		next.Status = *u.Status
	}

	if u.TestRetries != nil {
		next.TestRetries = *u.TestRetries
	}
	if u.MaxTestRetries != nil {
		next.MaxTestRetries = *u.MaxTestRetries
	}
	if u.GenFixRetries != nil {
		next.GenFixRetries = *u.GenFixRetries
	}
	if u.MaxGenFixRetries != nil {
		next.MaxGenFixRetries = *u.MaxGenFixRetries
	}
	if u.ReviewRetries != nil {
		next.ReviewRetries = *u.ReviewRetries
	}
	if u.MaxReviewRetries != nil {
		next.MaxReviewRetries = *u.MaxReviewRetries
	}
	if u.ResearchRetries != nil {
		next.ResearchRetries = *u.ResearchRetries
	}
	if u.MaxResearchRetries != nil {
		next.MaxResearchRetries = *u.MaxResearchRetries
	}

	if u.ResearchOutput != nil {
		next.ResearchOutput = u.ResearchOutput
	}
	if len(u.ContextGaps) > 0 {
		next.ContextGaps = append(append([]string(nil), next.ContextGaps...), u.ContextGaps...)
	}
	if u.GeneratedCode != nil {
		next.GeneratedCode = *u.GeneratedCode
	}
	if u.MockGenerationOutput != nil {
		next.MockGenerationOutput = u.MockGenerationOutput
	}
	if u.MockGenerationSkipped != nil {
		next.MockGenerationSkipped = *u.MockGenerationSkipped
	}
	if u.FixturesCreated != nil {
		next.FixturesCreated = *u.FixturesCreated
	}
	if u.TestCode != nil {
		next.TestCode = *u.TestCode
	}
	if u.ConnectorDir != nil {
		next.ConnectorDir = *u.ConnectorDir
	}
	if u.TestResults != nil {
		next.TestResults = *u.TestResults
	}

	if u.TestReviewDecision != nil {
		next.TestReviewDecision = *u.TestReviewDecision
	}
	if u.TestReviewFeedback != nil {
		next.TestReviewFeedback = *u.TestReviewFeedback
	}
	if u.ReviewDecision != nil {
		next.ReviewDecision = *u.ReviewDecision
	}
	if u.ReviewFeedback != nil {
		next.ReviewFeedback = *u.ReviewFeedback
	}
	if u.DegradedMode != nil {
		next.DegradedMode = *u.DegradedMode
	}
	if u.DegradedStreams != nil {
		next.DegradedStreams = *u.DegradedStreams
	}

	if u.Published != nil {
		next.Published = *u.Published
	}
	if u.PRURL != nil {
		next.PRURL = u.PRURL
	}
	if len(u.Errors) > 0 {
		next.Errors = append(append([]string(nil), next.Errors...), u.Errors...)
	}
	if len(u.Logs) > 0 {
		merged := append(append([]string(nil), next.Logs...), u.Logs...)
		if len(merged) > MaxLogsInState {
			merged = merged[len(merged)-MaxLogsInState:]
		}
		next.Logs = merged
	}
	if u.CompletedAt != nil {
		next.CompletedAt = u.CompletedAt
	}
	if u.TotalDuration != nil {
		next.TotalDuration = *u.TotalDuration
	}

	return next
}

// ReduceAppend concatenates old and new, returning old unchanged when
// update is empty — the append-family reducer (spec.md §8 R3).
func ReduceAppend(old, update []string) []string {
	if len(update) == 0 {
		return old
	}
	return append(append([]string(nil), old...), update...)
}

// StrPtr is a convenience constructor for *string fields in Update literals.
func StrPtr(s string) *string { return &s }

// IntPtr is a convenience constructor for *int fields in Update literals.
func IntPtr(i int) *int { return &i }

// BoolPtr is a convenience constructor for *bool fields in Update literals.
func BoolPtr(b bool) *bool { return &b }

// Float64Ptr is a convenience constructor for *float64 fields in Update literals.
func Float64Ptr(f float64) *float64 { return &f }

// StrSlicePtr is a convenience constructor for overwrite-family *[]string fields.
func StrSlicePtr(ss []string) *[]string { return &ss }

// GeneratedCodePtr wraps a *GeneratedCode (possibly nil) for the
// Update.GeneratedCode double-pointer field, letting a node
// distinguish "untouched" from "explicitly cleared" the same way
// StrSlicePtr does for overwrite-family list fields.
func GeneratedCodePtr(v *GeneratedCode) **GeneratedCode { return &v }

// TestCodePtr wraps a *TestCode (possibly nil) for the Update.TestCode
// double-pointer field.
func TestCodePtr(v *TestCode) **TestCode { return &v }

// TestResultsPtr wraps a *TestResults (possibly nil) for the
// Update.TestResults double-pointer field.
func TestResultsPtr(v *TestResults) **TestResults { return &v }
