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

package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/relanocode/agentengine/pkg/checkpoint"
)

// Status is the persistent task record's lifecycle state (§6).
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// TaskStore is the persistent task-record surface the executor consults for
// the PENDING/RUNNING/COMPLETED/FAILED/CANCELLED status machine of §6, and
// for the cooperative cancellation check of §5 ("checked between nodes by
// re-reading task status").
type TaskStore interface {
	Status(ctx context.Context, taskID string) (Status, error)
	SetStatus(ctx context.Context, taskID string, status Status) error
	SetOutput(ctx context.Context, taskID string, output map[string]any) error
}

// InMemoryTaskStore is a TaskStore for tests and single-process smoke runs.
type InMemoryTaskStore struct {
	mu      sync.RWMutex
	status  map[string]Status
	outputs map[string]map[string]any
}

func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		status:  make(map[string]Status),
		outputs: make(map[string]map[string]any),
	}
}

func (s *InMemoryTaskStore) Status(ctx context.Context, taskID string) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.status[taskID]; ok {
		return st, nil
	}
	return StatusPending, nil
}

func (s *InMemoryTaskStore) SetStatus(ctx context.Context, taskID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[taskID] = status
	return nil
}

func (s *InMemoryTaskStore) SetOutput(ctx context.Context, taskID string, output map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[taskID] = output
	return nil
}

// Output returns the last output_data set for a task, for test assertions.
func (s *InMemoryTaskStore) Output(taskID string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outputs[taskID]
}

// DBTaskStore adapts the checkpoint package's SQLite-backed `tasks` table to
// the TaskStore interface, so the executor's persistent record and the
// Checkpoint Store's secondary database (§4.1) share one connection.
type DBTaskStore struct {
	db      *checkpoint.DB
	graphID string

	mu   sync.Mutex
	meta map[string]taskMeta
}

type taskMeta struct {
	userID, sessionID string
}

func NewDBTaskStore(db *checkpoint.DB, graphID string) *DBTaskStore {
	return &DBTaskStore{db: db, graphID: graphID, meta: make(map[string]taskMeta)}
}

// Register records the user/session identifiers a task started with, needed
// because TaskStore.SetStatus doesn't carry them on every call.
func (s *DBTaskStore) Register(taskID, userID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[taskID] = taskMeta{userID: userID, sessionID: sessionID}
}

func (s *DBTaskStore) Status(ctx context.Context, taskID string) (Status, error) {
	rec, found, err := s.db.LoadTaskRecord(ctx, taskID)
	if err != nil {
		return StatusPending, fmt.Errorf("executor: load task status: %w", err)
	}
	if !found || rec.Status == "" {
		return StatusPending, nil
	}
	return Status(rec.Status), nil
}

func (s *DBTaskStore) SetStatus(ctx context.Context, taskID string, status Status) error {
	s.mu.Lock()
	m := s.meta[taskID]
	s.mu.Unlock()
	return s.db.UpdateTaskRecord(ctx, checkpoint.TaskRecord{
		TaskID:    taskID,
		UserID:    m.userID,
		GraphID:   s.graphID,
		Status:    string(status),
		SessionID: m.sessionID,
	})
}

func (s *DBTaskStore) SetOutput(ctx context.Context, taskID string, output map[string]any) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("executor: marshal task output: %w", err)
	}
	s.mu.Lock()
	m := s.meta[taskID]
	s.mu.Unlock()

	// Preserve whatever status SetStatus last recorded (COMPLETED, FAILED, ...)
	// rather than clobbering it; SetOutput only persists output_data (§6).
	status := StatusRunning
	if rec, found, err := s.db.LoadTaskRecord(ctx, taskID); err == nil && found && rec.Status != "" {
		status = Status(rec.Status)
	}
	return s.db.UpdateTaskRecord(ctx, checkpoint.TaskRecord{
		TaskID:         taskID,
		UserID:         m.userID,
		GraphID:        s.graphID,
		Status:         string(status),
		SessionID:      m.sessionID,
		OutputDataJSON: string(data),
	})
}
