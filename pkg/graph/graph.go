// Package graph implements the durable, checkpointed graph engine
// described in spec.md §4.2: compiling a directed graph of node
// functions, executing it against a thread's state with a checkpoint
// written at every node boundary, and resuming from the latest
// checkpoint without re-executing the node that produced it.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/connector-forge/pkg/checkpoint"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

// END is the terminal sentinel node name (spec.md §4.2).
const END = pipeline.END

// NodeFunc is one phase's async node function: reads state, performs
// its work (including side effects on the agent's working directory),
// and returns a partial state update. Node contract rules 1-6 in
// spec.md §4.4 are the node author's responsibility; the engine only
// merges the returned Update via pipeline.Apply.
type NodeFunc func(ctx context.Context, state pipeline.State) (pipeline.Update, error)

// RouterFunc is a pure function mapping state to the next node name,
// used for conditional edges (spec.md §4.3).
type RouterFunc func(state pipeline.State) string

type edgeSpec struct {
	to      string     // set for unconditional edges
	router  RouterFunc // set for conditional edges
	targets []string   // declared static target set, validated at Compile time
}

// Graph is the mutable builder; call Compile to get a runnable App.
type Graph struct {
	nodes map[string]NodeFunc
	edges map[string]edgeSpec
	entry string
}

// NewGraph returns an empty graph builder.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]NodeFunc),
		edges: make(map[string]edgeSpec),
	}
}

// AddNode registers a node function under name.
func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	g.nodes[name] = fn
	return g
}

// SetEntryPoint declares which node runs first for a brand-new thread.
func (g *Graph) SetEntryPoint(name string) *Graph {
	g.entry = name
	return g
}

// AddEdge declares an unconditional from→to transition.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = edgeSpec{to: to}
	return g
}

// AddConditionalEdges declares a conditional transition: after `from`
// runs, router(state) selects the next node from targets. An unknown
// target returned by router at runtime is fatal (spec.md §4.2); targets
// not present in the graph at Compile time are a build-time error.
func (g *Graph) AddConditionalEdges(from string, router RouterFunc, targets []string) *Graph {
	g.edges[from] = edgeSpec{router: router, targets: append([]string(nil), targets...)}
	return g
}

// Compile validates the graph (entry point set and registered, every
// edge source registered, every declared edge target exists) and
// returns a runnable App. Nodes unreachable from the entry point are
// not detected.
func Compile(g *Graph, store checkpoint.Store) (*App, error) {
	if g.entry == "" {
		return nil, errors.New("graph: entry point not set")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("graph: entry point %q is not a registered node", g.entry)
	}

	validTarget := func(name string) bool {
		if name == END {
			return true
		}
		_, ok := g.nodes[name]
		return ok
	}

	for from, e := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: edge declared from unregistered node %q", from)
		}
		if e.router == nil {
			if !validTarget(e.to) {
				return nil, fmt.Errorf("graph: edge %s -> %s: unreachable target", from, e.to)
			}
			continue
		}
		for _, t := range e.targets {
			if !validTarget(t) {
				return nil, fmt.Errorf("graph: conditional edge from %s: declared target %q is unreachable", from, t)
			}
		}
	}

	return &App{graph: g, store: store}, nil
}

// App is a compiled, runnable graph bound to a checkpoint store.
type App struct {
	graph *Graph
	store checkpoint.Store
}

// StateSnapshot is returned by GetState.
type StateSnapshot struct {
	Values    pipeline.State
	NextNodes []string
}

// ErrNoSavedState is returned by Stream when resuming (initialState ==
// nil) a thread_id that has never been checkpointed.
var ErrNoSavedState = errors.New("graph: no saved state found for thread")

// ErrUnreachableTarget indicates a router returned a node name outside
// its declared static target set — a programming error, treated as
// fatal per spec.md §7.
var ErrUnreachableTarget = errors.New("graph: router produced unreachable node name")

// StepObserver is invoked after every node boundary's checkpoint write,
// letting callers (the Runner, streaming endpoints) tap per-step state
// emissions without polling the store.
type StepObserver func(state pipeline.State, nextNodes []string)

// Stream executes the graph for threadID starting from initialState,
// or — if initialState is nil — resumes from the latest checkpoint
// (spec.md §4.2). It runs every node up to a terminal edge (END) or
// until ctx is cancelled, writing a checkpoint after every node.
//
// Resume does not re-execute the node that produced the loaded
// checkpoint; it continues from the checkpoint's recorded next_nodes.
func (a *App) Stream(ctx context.Context, initialState *pipeline.State, threadID string, observe StepObserver) (pipeline.State, error) {
	var current pipeline.State
	var next []string

	if initialState != nil {
		current = initialState.Clone()
		next = []string{a.graph.entry}
	} else {
		cp, err := a.store.GetLatest(ctx, threadID)
		if errors.Is(err, checkpoint.ErrNotFound) {
			return pipeline.State{}, ErrNoSavedState
		}
		if err != nil {
			return pipeline.State{}, fmt.Errorf("graph: load checkpoint for resume: %w", err)
		}
		current = cp.StateSnapshot
		next = cp.NextNodes
	}

	for {
		if len(next) == 0 || next[0] == END {
			return current, nil
		}

		select {
		case <-ctx.Done():
			// Cancellation: terminate without writing a further
			// checkpoint (spec.md §4.2, §5). Resume would re-enter
			// this node from the last checkpoint.
			return current, ctx.Err()
		default:
		}

		nodeName := next[0]
		fn, ok := a.graph.nodes[nodeName]
		if !ok {
			return current, fmt.Errorf("graph: unknown node %q in next_nodes", nodeName)
		}

		update, err := fn(ctx, current)
		if err != nil {
			// Belt-and-suspenders: a node that returns a Go error
			// instead of folding it into Update.Errors (node contract
			// rule 6, spec.md §4.4) is still routed to failure.
			update.Errors = append(update.Errors, err.Error())
		}
		current = pipeline.Apply(current, update)

		target, terr := a.resolveNext(nodeName, current)
		if terr != nil {
			failPhase := pipeline.PhaseFailed
			failStatus := pipeline.StatusFailed
			current = pipeline.Apply(current, pipeline.Update{
				CurrentPhase: &failPhase,
				Status:       &failStatus,
				Errors:       []string{terr.Error()},
			})
			target = END
		}

		nextNodes := []string{target}
		if _, err := a.store.Put(ctx, threadID, current, nextNodes); err != nil {
			return current, fmt.Errorf("graph: write checkpoint: %w", err)
		}
		if observe != nil {
			observe(current, nextNodes)
		}

		if target == END {
			return current, nil
		}
		next = nextNodes
	}
}

func (a *App) resolveNext(from string, state pipeline.State) (string, error) {
	e, ok := a.graph.edges[from]
	if !ok {
		return "", fmt.Errorf("graph: node %q has no outgoing edge", from)
	}
	if e.router == nil {
		return e.to, nil
	}
	target := e.router(state)
	for _, t := range e.targets {
		if t == target {
			return target, nil
		}
	}
	return "", fmt.Errorf("%w: %q from %q", ErrUnreachableTarget, target, from)
}

// GetState returns the latest checkpoint's state and pending next
// nodes for threadID.
func (a *App) GetState(ctx context.Context, threadID string) (StateSnapshot, error) {
	cp, err := a.store.GetLatest(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return StateSnapshot{}, ErrNoSavedState
	}
	if err != nil {
		return StateSnapshot{}, fmt.Errorf("graph: get state: %w", err)
	}
	return StateSnapshot{Values: cp.StateSnapshot, NextNodes: cp.NextNodes}, nil
}

// History returns the full checkpoint history for threadID,
// newest-to-oldest.
func (a *App) History(ctx context.Context, threadID string) ([]checkpoint.Checkpoint, error) {
	return a.store.History(ctx, threadID)
}

// Mermaid renders the compiled graph as a Mermaid flowchart string,
// supplementing original_source's get_pipeline_diagram/draw_mermaid
// (see SPEC_FULL.md §7).
func (a *App) Mermaid() string {
	out := "flowchart TD\n"
	out += fmt.Sprintf("    __start__([start]) --> %s\n", a.graph.entry)
	for from, e := range a.graph.edges {
		if e.router == nil {
			out += fmt.Sprintf("    %s --> %s\n", from, mermaidNode(e.to))
			continue
		}
		for _, t := range e.targets {
			out += fmt.Sprintf("    %s -.-> %s\n", from, mermaidNode(t))
		}
	}
	return out
}

func mermaidNode(name string) string {
	if name == END {
		return "__end__([end])"
	}
	return name
}
