// Package nodes implements the seven phase node functions (spec.md
// §4.4) plus the terminal failed node, and wires them together with
// the routing policy into a compiled graph.Graph.
package nodes

import (
	"time"

	"github.com/codeready-toolchain/connector-forge/pkg/agent"
	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

// PublisherConfig names the code-hosting destination. A missing Owner,
// Repo, or Token is reported as an error that terminates the pipeline
// in failed (spec.md §4.4.7).
type PublisherConfig struct {
	Owner  string
	Repo   string
	Token  string
}

// Deps bundles every phase's agent adapter plus the small amount of
// configuration a node needs beyond what travels in pipeline.State.
type Deps struct {
	Research      *agent.BaseAdapter
	Generator     *agent.BaseAdapter
	MockGenerator *agent.BaseAdapter
	Tester        *agent.BaseAdapter
	TestReviewer  *agent.BaseAdapter
	Reviewer      *agent.BaseAdapter
	Publisher     *agent.BaseAdapter
	Publish       PublisherConfig

	// Now is injectable for deterministic tests; defaults to time.Now.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// BuildGraph wires all seven nodes plus the terminal failed node into
// a graph.Graph matching the cyclic routing table in spec.md §4.3 and
// the sequential phase order in spec.md §2.
func BuildGraph(deps *Deps) *graph.Graph {
	g := graph.NewGraph()

	g.AddNode(pipeline.NodeResearch, NewResearchNode(deps))
	g.AddNode(pipeline.NodeGenerator, NewGeneratorNode(deps))
	g.AddNode(pipeline.NodeMockGenerator, NewMockGeneratorNode(deps))
	g.AddNode(pipeline.NodeTester, NewTesterNode(deps))
	g.AddNode(pipeline.NodeTestReviewer, NewTestReviewerNode(deps))
	g.AddNode(pipeline.NodeReviewer, NewReviewerNode(deps))
	g.AddNode(pipeline.NodePublisher, NewPublisherNode(deps))
	g.AddNode(pipeline.NodeFailed, NewFailedNode(deps))

	g.SetEntryPoint(pipeline.NodeResearch)

	g.AddConditionalEdges(pipeline.NodeResearch, pipeline.RouteIfNoErrors(pipeline.NodeGenerator),
		[]string{pipeline.NodeGenerator, pipeline.NodeFailed})
	g.AddConditionalEdges(pipeline.NodeGenerator, pipeline.RouteIfNoErrors(pipeline.NodeMockGenerator),
		[]string{pipeline.NodeMockGenerator, pipeline.NodeFailed})

	// MockGenerator is best-effort: its edge is unconditional even on
	// failure (spec.md §4.5).
	g.AddEdge(pipeline.NodeMockGenerator, pipeline.NodeTester)

	g.AddConditionalEdges(pipeline.NodeTester, pipeline.RouteIfNoErrors(pipeline.NodeTestReviewer),
		[]string{pipeline.NodeTestReviewer, pipeline.NodeFailed})

	g.AddConditionalEdges(pipeline.NodeTestReviewer, pipeline.RouteAfterTestReview,
		[]string{pipeline.NodeTester, pipeline.NodeGenerator, pipeline.NodeReviewer, pipeline.NodeFailed})

	g.AddConditionalEdges(pipeline.NodeReviewer, pipeline.RouteAfterReview,
		[]string{pipeline.NodePublisher, pipeline.NodeGenerator, pipeline.NodeResearch, pipeline.NodeFailed})

	g.AddConditionalEdges(pipeline.NodePublisher, pipeline.RouteIfNoErrors(graph.END),
		[]string{graph.END, pipeline.NodeFailed})

	g.AddEdge(pipeline.NodeFailed, graph.END)

	return g
}
