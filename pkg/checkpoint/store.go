// Package checkpoint implements the append-only persisted history of
// pipeline checkpoints described in spec.md §4.1, with three
// interchangeable backends: in-memory, sqlite (file), and Postgres
// (network).
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

// ErrNotFound is returned by GetLatest when a thread has never been
// checkpointed.
var ErrNotFound = errors.New("checkpoint: no checkpoint for thread")

// Checkpoint is an immutable snapshot of state plus outgoing-edge
// candidates, written atomically at every node boundary (spec.md
// GLOSSARY).
type Checkpoint struct {
	ThreadID      string
	CheckpointID  string
	ParentID      *string
	StateSnapshot pipeline.State
	NextNodes     []string
	CreatedAt     time.Time
}

// Store is the checkpoint store contract (spec.md §4.1).
type Store interface {
	// Put appends a new checkpoint for threadID, atomically with
	// respect to concurrent GetLatest calls: a reader sees either the
	// full new record or none.
	Put(ctx context.Context, threadID string, snapshot pipeline.State, nextNodes []string) (Checkpoint, error)

	// GetLatest returns the most recent checkpoint for threadID, or
	// ErrNotFound if none has ever been written.
	GetLatest(ctx context.Context, threadID string) (Checkpoint, error)

	// History returns all checkpoints for threadID, ordered
	// newest-to-oldest.
	History(ctx context.Context, threadID string) ([]Checkpoint, error)

	// Close releases any held resources (file handles, connection
	// pools). Safe to call once at process shutdown.
	Close() error
}
