// Connector Forge orchestrator server - drives the Research -> Generator
// -> MockGenerator -> Tester -> TestReviewer -> Reviewer -> Publisher
// pipeline and exposes its REST/SSE control plane.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/codeready-toolchain/connector-forge/pkg/agent"
	"github.com/codeready-toolchain/connector-forge/pkg/agent/httpsession"
	"github.com/codeready-toolchain/connector-forge/pkg/api"
	"github.com/codeready-toolchain/connector-forge/pkg/checkpoint"
	"github.com/codeready-toolchain/connector-forge/pkg/config"
	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/nodes"
	"github.com/codeready-toolchain/connector-forge/pkg/runner"
	"github.com/codeready-toolchain/connector-forge/pkg/stream"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// buildCheckpointStore selects the backend named by cfg.CheckpointerType
// (spec.md §4.1's three variants), chosen at process startup from a
// single configuration enum per spec.md §6.
func buildCheckpointStore(ctx context.Context, cfg *config.Config) (checkpoint.Store, error) {
	switch cfg.CheckpointerType {
	case config.CheckpointerMemory:
		return checkpoint.NewMemoryStore(), nil
	case config.CheckpointerSQLite:
		return checkpoint.NewSQLiteStore(cfg.SQLiteDBPath)
	case config.CheckpointerPostgres:
		return checkpoint.NewPostgresStore(ctx, checkpoint.PostgresConfig{DSN: cfg.PostgresURL})
	default:
		return checkpoint.NewMemoryStore(), nil
	}
}

// buildSession selects the LLM session transport: a real HTTP session
// service when LLM_SESSION_URL is configured, or a no-op stand-in
// otherwise. The vendor SDK and its tool-execution loop living behind
// either of these are explicitly out of scope (spec.md §1); this
// process only ever talks to the SessionRequest/SessionResult contract
// boundary in spec.md §4.5.
func buildSession() agent.LLMSession {
	if url := os.Getenv("LLM_SESSION_URL"); url != "" {
		log.Printf("Using HTTP LLM session service at %s", url)
		return httpsession.New(url, 5*time.Minute)
	}
	log.Printf("LLM_SESSION_URL not set; every phase call will fail with a recorded error (spec.md §7)")
	return unconfiguredSession{}
}

// unconfiguredSession is the zero-config fallback LLMSession. Unlike
// mockllm.Session — which panics on a missing script as a test-authoring
// guard — this reports a normal failed SessionResult, so a node's
// existing err/result.Success handling catches it and records an errors
// entry instead of crashing the process (spec.md §7: agent-call failure
// is caught inside the node).
type unconfiguredSession struct{}

func (unconfiguredSession) Run(_ context.Context, _ agent.SessionRequest) (agent.SessionResult, error) {
	return agent.SessionResult{Success: false, Error: "no LLM session configured (set LLM_SESSION_URL)"}, nil
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	cfg, err := config.Load(envPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Connector Forge orchestrator")
	log.Printf("HTTP Port: %s", cfg.HTTPPort)
	log.Printf("Checkpointer: %s", cfg.CheckpointerType)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildCheckpointStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize checkpoint store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing checkpoint store: %v", err)
		}
	}()
	log.Println("Checkpoint store ready")

	session := buildSession()

	deps := &nodes.Deps{
		Research:      agent.NewResearchAdapter(session, researchSystemPrompt),
		Generator:     agent.NewGeneratorAdapter(session, generatorSystemPrompt),
		MockGenerator: agent.NewMockGeneratorAdapter(session, mockGeneratorSystemPrompt),
		Tester:        agent.NewTesterAdapter(session, testerSystemPrompt),
		TestReviewer:  agent.NewTestReviewerAdapter(session, testReviewerSystemPrompt),
		Reviewer:      agent.NewReviewerAdapter(session, reviewerSystemPrompt),
		Publisher:     agent.NewPublisherAdapter(session, publisherSystemPrompt),
		Publish: nodes.PublisherConfig{
			Owner: cfg.GitHubOwner,
			Repo:  cfg.GitHubRepo,
			Token: cfg.GitHubToken,
		},
	}

	g := nodes.BuildGraph(deps)
	app, err := graph.Compile(g, store)
	if err != nil {
		log.Fatalf("Failed to compile pipeline graph: %v", err)
	}
	log.Println("Pipeline graph compiled")

	run := runner.New(app, int64(cfg.MaxConcurrentPipelines))
	broadcaster := stream.NewBroadcaster()
	run.SetBroadcaster(broadcaster)

	cleanupTicker := time.NewTicker(10 * time.Minute)
	defer cleanupTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-cleanupTicker.C:
				removed := run.CleanupCompleted(time.Hour)
				if removed > 0 {
					slog.Info("swept completed pipeline runs", "removed", removed)
				}
			}
		}
	}()

	server := api.NewServer(cfg, run, store, broadcaster)

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := server.Start(":" + cfg.HTTPPort); err != nil {
			log.Printf("HTTP server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during HTTP shutdown: %v", err)
	}
}

// System prompt text is the agent adapters' collaborator concern,
// explicitly out of scope (spec.md §1): these are minimal phase
// descriptions, not tuned prompt engineering.
const (
	researchSystemPrompt      = "Research the target API's authentication, endpoints, rate limits, and error model."
	generatorSystemPrompt     = "Generate or repair connector source code in the working directory."
	mockGeneratorSystemPrompt = "Generate API mock fixtures and a test-fixture loader for the connector under test."
	testerSystemPrompt        = "Author or repair the connector's test suite and report coverage."
	testReviewerSystemPrompt  = "Classify test failures as test defects or source defects."
	reviewerSystemPrompt      = "Review the generated connector for coverage and code quality."
	publisherSystemPrompt     = "Publish the generated connector to its destination repository branch."
)
