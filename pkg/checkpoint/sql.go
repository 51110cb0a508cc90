package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

// sqlDialect isolates the one syntactic difference between the
// sqlite and Postgres backends: positional placeholder style.
// Everything else — schema shape, query text — is shared.
type sqlDialect struct {
	name        string
	placeholder func(n int) string // 1-indexed
}

var sqliteDialect = sqlDialect{
	name:        "sqlite",
	placeholder: func(int) string { return "?" },
}

var postgresDialect = sqlDialect{
	name:        "postgres",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

// sqlStore implements Store on top of database/sql against either
// backend, following the shape of the teacher's pkg/database/client.go
// (database/sql, migration-on-open, explicit Close). A single *sql.DB
// connection pool handles concurrent readers; sqlite additionally
// limits the pool to one open connection (see NewSQLiteStore) so
// writes serialize through it, matching spec.md §4.1's "expected
// single-writer" requirement for the file variant.
type sqlStore struct {
	db      *sql.DB
	dialect sqlDialect
}

func (s *sqlStore) Put(ctx context.Context, threadID string, snapshot pipeline.State, nextNodes []string) (Checkpoint, error) {
	blob, err := json.Marshal(snapshot)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: marshal state snapshot: %w", err)
	}
	nextBlob, err := json.Marshal(nextNodes)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: marshal next_nodes: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var parentID sql.NullString
	row := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT checkpoint_id FROM checkpoints WHERE thread_id = %s ORDER BY seq DESC LIMIT 1", s.dialect.placeholder(1)),
		threadID,
	)
	if err := row.Scan(&parentID); err != nil && err != sql.ErrNoRows {
		return Checkpoint{}, fmt.Errorf("checkpoint: query parent: %w", err)
	}

	checkpointID := uniqueCheckpointID()
	now := time.Now().UTC()

	insert := fmt.Sprintf(
		"INSERT INTO checkpoints (thread_id, checkpoint_id, parent_id, state_blob, next_nodes, created_at) VALUES (%s, %s, %s, %s, %s, %s)",
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3),
		s.dialect.placeholder(4), s.dialect.placeholder(5), s.dialect.placeholder(6),
	)
	if _, err := tx.ExecContext(ctx, insert, threadID, checkpointID, nullableString(parentID), string(blob), string(nextBlob), now); err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: commit: %w", err)
	}

	var parent *string
	if parentID.Valid {
		parent = &parentID.String
	}
	return Checkpoint{
		ThreadID:      threadID,
		CheckpointID:  checkpointID,
		ParentID:      parent,
		StateSnapshot: snapshot.Clone(),
		NextNodes:     append([]string(nil), nextNodes...),
		CreatedAt:     now,
	}, nil
}

func (s *sqlStore) GetLatest(ctx context.Context, threadID string) (Checkpoint, error) {
	query := fmt.Sprintf(
		"SELECT checkpoint_id, parent_id, state_blob, next_nodes, created_at FROM checkpoints WHERE thread_id = %s ORDER BY seq DESC LIMIT 1",
		s.dialect.placeholder(1),
	)
	row := s.db.QueryRowContext(ctx, query, threadID)
	cp, err := scanCheckpoint(row, threadID)
	if err == sql.ErrNoRows {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: get latest: %w", err)
	}
	return cp, nil
}

func (s *sqlStore) History(ctx context.Context, threadID string) ([]Checkpoint, error) {
	query := fmt.Sprintf(
		"SELECT checkpoint_id, parent_id, state_blob, next_nodes, created_at FROM checkpoints WHERE thread_id = %s ORDER BY seq DESC",
		s.dialect.placeholder(1),
	)
	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: history query: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpointRows(rows, threadID)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: scan history row: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckpoint(row rowScanner, threadID string) (Checkpoint, error) {
	return scanCheckpointRows(row, threadID)
}

func scanCheckpointRows(row rowScanner, threadID string) (Checkpoint, error) {
	var (
		checkpointID string
		parentID     sql.NullString
		stateBlob    string
		nextBlob     string
		createdAt    time.Time
	)
	if err := row.Scan(&checkpointID, &parentID, &stateBlob, &nextBlob, &createdAt); err != nil {
		return Checkpoint{}, err
	}

	var snapshot pipeline.State
	if err := json.Unmarshal([]byte(stateBlob), &snapshot); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal state blob: %w", err)
	}
	var nextNodes []string
	if err := json.Unmarshal([]byte(nextBlob), &nextNodes); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal next_nodes: %w", err)
	}

	var parent *string
	if parentID.Valid {
		parent = &parentID.String
	}

	return Checkpoint{
		ThreadID:      threadID,
		CheckpointID:  checkpointID,
		ParentID:      parent,
		StateSnapshot: snapshot,
		NextNodes:     nextNodes,
		CreatedAt:     createdAt,
	}, nil
}

func nullableString(ns sql.NullString) interface{} {
	if !ns.Valid {
		return nil
	}
	return ns.String
}

var checkpointSeq int64

// uniqueCheckpointID produces a sortable, process-unique checkpoint
// id. The authoritative ordering column is still the autoincrement
// `seq` primary key; this id is the externally visible identifier
// (spec.md §6 schema sketch names it checkpoint_id TEXT).
func uniqueCheckpointID() string {
	n := atomic.AddInt64(&checkpointSeq, 1)
	return fmt.Sprintf("%020d-%d", time.Now().UTC().UnixNano(), n)
}
