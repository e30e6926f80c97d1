// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package checkpoint implements the Checkpoint Store (§4.1): atomic,
// versioned, file-primary persistence of RuntimeState with a SQLite-backed
// secondary store, modeled on the teacher's single-connection WAL-mode
// DBPool for SQLite (pkg/config/dbpool.go).
package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a single-connection SQLite pool holding the `tasks` and
// `action_steps` secondary tables (§3/§6).
type DB struct {
	conn *sql.DB
}

// OpenDB opens (and migrates) the SQLite secondary store at path.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open sqlite at %q: %w", path, err)
	}
	// SQLite only supports one writer at a time; one connection serializes
	// all access and avoids "database is locked" errors under concurrent
	// task workers.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("checkpoint: ping sqlite: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		slog.Warn("checkpoint: failed to enable WAL mode", "error", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=10000"); err != nil {
		slog.Warn("checkpoint: failed to set busy_timeout", "error", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			user_id TEXT,
			graph_id TEXT,
			status TEXT,
			session_id TEXT,
			session_task_history TEXT,
			input_data TEXT,
			output_data TEXT,
			state_snapshot TEXT,
			created_at TEXT,
			updated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS action_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			step_order INTEGER NOT NULL,
			log_type TEXT NOT NULL,
			details TEXT,
			created_at TEXT,
			UNIQUE(task_id, step_order)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("checkpoint: migrate: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// UpsertStateSnapshot writes/updates the state_snapshot column for task_id,
// the DB-secondary half of Save (§4.1): a file-save failure never blocks
// this, and vice versa.
func (d *DB) UpsertStateSnapshot(ctx context.Context, taskID, userID, sessionID string, snapshot []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO tasks (task_id, user_id, session_id, state_snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			state_snapshot=excluded.state_snapshot,
			updated_at=excluded.updated_at
	`, taskID, userID, sessionID, string(snapshot), now, now)
	return err
}

// LoadStateSnapshot returns the most recently stored state_snapshot for a
// task, used by Load only when no file-based record exists at all.
func (d *DB) LoadStateSnapshot(ctx context.Context, taskID string) ([]byte, bool, error) {
	var snapshot string
	err := d.conn.QueryRowContext(ctx,
		`SELECT state_snapshot FROM tasks WHERE task_id = ?`, taskID,
	).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if snapshot == "" {
		return nil, false, nil
	}
	return []byte(snapshot), true, nil
}

// UpdateTaskRecord upserts the full persistent task record (§6).
func (d *DB) UpdateTaskRecord(ctx context.Context, rec TaskRecord) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO tasks (task_id, user_id, graph_id, status, session_id, session_task_history, input_data, output_data, state_snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, COALESCE((SELECT state_snapshot FROM tasks WHERE task_id = ?), ''), ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			graph_id=excluded.graph_id,
			status=excluded.status,
			session_id=excluded.session_id,
			session_task_history=excluded.session_task_history,
			input_data=excluded.input_data,
			output_data=excluded.output_data,
			updated_at=excluded.updated_at
	`, rec.TaskID, rec.UserID, rec.GraphID, rec.Status, rec.SessionID,
		rec.SessionTaskHistoryJSON, rec.InputDataJSON, rec.OutputDataJSON,
		rec.TaskID, rec.CreatedAt.UTC().Format(time.RFC3339Nano), now)
	return err
}

// TaskRecord is the persistent task row described in §6. The JSON-valued
// fields are stored pre-marshaled so this package doesn't need to know the
// shape of input_data/output_data.
type TaskRecord struct {
	TaskID                 string
	UserID                 string
	GraphID                string
	Status                 string
	SessionID              string
	SessionTaskHistoryJSON string
	InputDataJSON          string
	OutputDataJSON         string
	CreatedAt              time.Time
}

// LoadTaskRecord returns the persisted status/user/graph/session fields for
// a task, used by DBTaskStore to answer Status() from the actual `status`
// column rather than inferring it from snapshot presence.
func (d *DB) LoadTaskRecord(ctx context.Context, taskID string) (TaskRecord, bool, error) {
	var rec TaskRecord
	var status, userID, graphID, sessionID sql.NullString
	err := d.conn.QueryRowContext(ctx,
		`SELECT status, user_id, graph_id, session_id FROM tasks WHERE task_id = ?`, taskID,
	).Scan(&status, &userID, &graphID, &sessionID)
	if err == sql.ErrNoRows {
		return TaskRecord{}, false, nil
	}
	if err != nil {
		return TaskRecord{}, false, err
	}
	rec.TaskID = taskID
	rec.Status = status.String
	rec.UserID = userID.String
	rec.GraphID = graphID.String
	rec.SessionID = sessionID.String
	return rec, true, nil
}

// MaxStepOrder returns the highest step_order recorded for a task, used by
// the executor to resume numbering after a crash (§5 ordering guarantees).
func (d *DB) MaxStepOrder(ctx context.Context, taskID string) (int, error) {
	var max sql.NullInt64
	err := d.conn.QueryRowContext(ctx,
		`SELECT MAX(step_order) FROM action_steps WHERE task_id = ?`, taskID,
	).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

// InsertActionStep appends an ActionStep row (§3/§6).
func (d *DB) InsertActionStep(ctx context.Context, taskID string, stepOrder int, logType string, detailsJSON string) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO action_steps (task_id, step_order, log_type, details, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(task_id, step_order) DO NOTHING
	`, taskID, stepOrder, logType, detailsJSON, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}
