package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

// MemoryStore is an in-process, non-durable checkpoint store. It is
// for tests only (spec.md §4.1) — adapted from the teacher's
// mutex-guarded in-memory map pattern (pkg/session/manager.go).
type MemoryStore struct {
	mu      sync.RWMutex
	history map[string][]Checkpoint // newest last
	seq     map[string]int64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		history: make(map[string][]Checkpoint),
		seq:     make(map[string]int64),
	}
}

func (m *MemoryStore) Put(_ context.Context, threadID string, snapshot pipeline.State, nextNodes []string) (Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq[threadID]++
	seq := m.seq[threadID]

	var parent *string
	if existing := m.history[threadID]; len(existing) > 0 {
		p := existing[len(existing)-1].CheckpointID
		parent = &p
	}

	cp := Checkpoint{
		ThreadID:      threadID,
		CheckpointID:  fmt.Sprintf("%020d", seq),
		ParentID:      parent,
		StateSnapshot: snapshot.Clone(),
		NextNodes:     append([]string(nil), nextNodes...),
		CreatedAt:     time.Now(),
	}
	m.history[threadID] = append(m.history[threadID], cp)
	return cp, nil
}

func (m *MemoryStore) GetLatest(_ context.Context, threadID string) (Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.history[threadID]
	if len(entries) == 0 {
		return Checkpoint{}, ErrNotFound
	}
	return entries[len(entries)-1], nil
}

func (m *MemoryStore) History(_ context.Context, threadID string) ([]Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.history[threadID]
	out := make([]Checkpoint, len(entries))
	for i, cp := range entries {
		out[len(entries)-1-i] = cp // newest-to-oldest
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
