package nodes

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

// A successful publish sets CurrentPhase to pipeline.PhaseCompleted
// directly, since Publisher's only non-error outgoing edge is
// END (spec.md §3 invariant: current_phase==completed implies
// status is success or partial and pr_url is set).

type publisherOutputPayload struct {
	PRURL  string `json:"pr_url"`
	Branch string `json:"branch"`
}

// NewPublisherNode implements the Publisher phase (spec.md §4.4.7): it
// opens a branch and pull request carrying the generated connector and
// its tests, then marks the run's final status — success if every
// stream tested cleanly, partial if the reviewer accepted it in
// degraded mode.
func NewPublisherNode(deps *Deps) graph.NodeFunc {
	return func(ctx context.Context, s pipeline.State) (pipeline.Update, error) {
		phase := pipeline.PhasePublishing

		if deps.Publish.Owner == "" || deps.Publish.Repo == "" || deps.Publish.Token == "" {
			return pipeline.Update{
				CurrentPhase: &phase,
				Errors:       []string{"publisher: missing owner/repo/token configuration"},
				Logs:         []string{"publisher failed: code-hosting destination not configured"},
			}, nil
		}

		input := map[string]any{
			"owner":          deps.Publish.Owner,
			"repo":           deps.Publish.Repo,
			"connector_name": s.ConnectorName,
			"degraded_mode":  s.DegradedMode,
		}
		if s.GeneratedCode != nil {
			input["generated_files"] = s.GeneratedCode.Files
		}
		if s.TestCode != nil {
			input["test_files"] = s.TestCode.Files
		}
		if s.MockGenerationOutput != nil {
			input["fixtures_dir"] = s.MockGenerationOutput.FixturesDir
		}

		result, err := deps.Publisher.Invoke(ctx, s.ConnectorDir, input)
		if err != nil || !result.Success {
			msg := failureMessage(err, result)
			return pipeline.Update{
				CurrentPhase: &phase,
				Errors:       []string{fmt.Sprintf("publisher: %s", msg)},
				Logs:         []string{"publisher failed: " + msg},
			}, nil
		}

		var payload publisherOutputPayload
		if err := decodeOutput(result.Output, &payload); err != nil || payload.PRURL == "" {
			return pipeline.Update{
				CurrentPhase: &phase,
				Errors:       []string{"publisher: no pr_url in output"},
				Logs:         []string{"publisher produced unparseable or incomplete output"},
			}, nil
		}

		status := pipeline.StatusSuccess
		if s.DegradedMode {
			status = pipeline.StatusPartial
		}
		completed := pipeline.PhaseCompleted
		now := deps.now()
		duration := now.Sub(s.CreatedAt).Seconds()

		return pipeline.Update{
			CurrentPhase:  &completed,
			Status:        &status,
			Published:     pipeline.BoolPtr(true),
			PRURL:         pipeline.StrPtr(payload.PRURL),
			CompletedAt:   &now,
			TotalDuration: pipeline.Float64Ptr(duration),
			Logs:          []string{fmt.Sprintf("publisher opened %s (status=%s)", payload.PRURL, status)},
		}, nil
	}
}
