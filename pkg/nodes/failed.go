package nodes

import (
	"context"

	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

// NewFailedNode implements the terminal failed node (spec.md §4.4.8):
// it stamps the run's outcome fields and produces no further routing
// decision (its one outgoing edge is unconditional, straight to END).
func NewFailedNode(deps *Deps) graph.NodeFunc {
	return func(ctx context.Context, s pipeline.State) (pipeline.Update, error) {
		phase := pipeline.PhaseFailed
		status := pipeline.StatusFailed
		now := deps.now()
		duration := now.Sub(s.CreatedAt).Seconds()

		return pipeline.Update{
			CurrentPhase:  &phase,
			Status:        &status,
			CompletedAt:   &now,
			TotalDuration: pipeline.Float64Ptr(duration),
			Logs: []string{
				"pipeline entered failed state",
				s.ConnectorName + ": run terminated without publishing",
			},
		}, nil
	}
}
