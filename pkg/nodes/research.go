package nodes

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/connector-forge/pkg/agent"
	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

// researchOutputPayload is the machine-readable shape the research
// adapter's session is expected to emit (spec.md §4.4.1).
type researchOutputPayload struct {
	FullDocument         string   `json:"full_document"`
	ContextGapsAddressed []string `json:"context_gaps_addressed"`
	TokensUsed           int      `json:"tokens_used"`
}

// NewResearchNode implements the Research phase (spec.md §4.4.1): on
// first entry it produces an unconditional initial research document;
// on re-entry (triggered by REJECT:CONTEXT) it incorporates
// context_gaps into the research prompt.
func NewResearchNode(deps *Deps) graph.NodeFunc {
	return func(ctx context.Context, s pipeline.State) (pipeline.Update, error) {
		phase := pipeline.PhaseResearching
		isReentry := len(s.ContextGaps) > 0

		input := map[string]any{
			"connector_name":   s.ConnectorName,
			"connector_type":   s.ConnectorType,
			"original_request": s.OriginalRequest,
			"context_gaps":     s.ContextGaps,
			"is_reentry":       isReentry,
		}
		if s.APIDocURL != nil {
			input["api_doc_url"] = *s.APIDocURL
		}

		result, err := deps.Research.Invoke(ctx, s.ConnectorDir, input)
		if err != nil || !result.Success {
			msg := failureMessage(err, result)
			return pipeline.Update{
				CurrentPhase: &phase,
				Errors:       []string{fmt.Sprintf("research: %s", msg)},
				Logs:         []string{"research failed: " + msg},
			}, nil
		}

		var payload researchOutputPayload
		if err := decodeOutput(result.Output, &payload); err != nil {
			return pipeline.Update{
				CurrentPhase: &phase,
				Errors:       []string{fmt.Sprintf("research: %s", err)},
				Logs:         []string{"research produced unparseable output"},
			}, nil
		}

		output := &pipeline.ResearchOutput{
			FullDocument:         payload.FullDocument,
			ConnectorName:        s.ConnectorName,
			ContextGapsAddressed: payload.ContextGapsAddressed,
			ResearchedAt:         deps.now(),
			DurationSeconds:      result.DurationSeconds,
			TokensUsed:           payload.TokensUsed,
		}

		// Cleared here since the Reviewer node preserved it solely for
		// the router to read on the prior REJECT:CONTEXT transition
		// (spec.md §4.4.1, §4.4.6).
		clearedDecision := ""

		return pipeline.Update{
			CurrentPhase:   &phase,
			ResearchOutput: output,
			ReviewDecision: &clearedDecision,
			Logs:           []string{"research completed"},
		}, nil
	}
}

// failureMessage extracts a human-readable message from either a Go
// error returned by the adapter invocation itself, or a structured
// failure recorded in the session result (spec.md §4.5: "final
// fallback is a failure record with the raw output preserved").
func failureMessage(err error, result agent.SessionResult) string {
	if err != nil {
		return err.Error()
	}
	if result.Error != "" {
		return result.Error
	}
	return fmt.Sprintf("session did not succeed (output=%v)", result.Output)
}
