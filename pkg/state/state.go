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

// Package state implements the RuntimeState carried across node invocations:
// task goal, preprocessed artifacts, action history, TODO list, and the
// execution data catalog. The only sanctioned mutator of ActionHistory is
// AppendAction; everything else about the slice's shape is an invariant this
// package enforces on load and on append.
package state

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ActionType enumerates the entries appended to an action-history conversation.
type ActionType string

const (
	ActionPlan        ActionType = "plan"
	ActionToolOutput  ActionType = "tool_output"
	ActionReflection  ActionType = "reflection"
	ActionFinalAnswer ActionType = "final_answer"
)

// ActionEntry is one entry within a conversation's inner list.
type ActionEntry struct {
	Type     ActionType     `json:"type"`
	Data     map[string]any `json:"data"`
	ToolName string         `json:"tool_name,omitempty"`
}

// TodoStatus is the lifecycle of a TODO item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoProcessing TodoStatus = "processing"
	TodoCompleted  TodoStatus = "completed"
	TodoFailed     TodoStatus = "failed"
)

// TodoItem is a structured sub-goal produced by the TodoGenerator tool.
type TodoItem struct {
	ID             string     `json:"id"`
	Task           string     `json:"task"`
	Status         TodoStatus `json:"status"`
	SuggestedTools []string   `json:"suggested_tools,omitempty"`
	Dependencies   []string   `json:"dependencies,omitempty"`
	Retry          int        `json:"retry"`
	MaxRetry       int        `json:"max_retry,omitempty"`
	Timeout        int        `json:"timeout,omitempty"` // seconds, default 300
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ExecutionTime  float64    `json:"execution_time,omitempty"`
	ErrorHistory   []string   `json:"error_history,omitempty"`
	RetryAfter     float64    `json:"retry_after,omitempty"`
}

// DependenciesSatisfied reports whether every dependency id names a TODO
// already in the completed state.
func DependenciesSatisfied(item TodoItem, all []TodoItem) bool {
	if len(item.Dependencies) == 0 {
		return true
	}
	byID := make(map[string]TodoItem, len(all))
	for _, t := range all {
		byID[t.ID] = t
	}
	for _, dep := range item.Dependencies {
		t, ok := byID[dep]
		if !ok || t.Status != TodoCompleted {
			return false
		}
	}
	return true
}

// FullAction is the plan+tool_output+reflection triple a single action_id
// indexes, enabling ${action_id} back-references from later tool inputs.
type FullAction struct {
	Plan       map[string]any `json:"plan"`
	ToolOutput map[string]any `json:"tool_output"`
	Reflection map[string]any `json:"reflection"`
}

// ChatMessage is one entry of the cross-session chat history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PreprocessedFiles buckets opaque, already-parsed artifacts by kind.
type PreprocessedFiles struct {
	Documents map[string]any `json:"documents"`
	Tables    map[string]any `json:"tables"`
	Images    map[string]any `json:"images"`
	Other     map[string]any `json:"other"`
}

func newPreprocessedFiles() PreprocessedFiles {
	return PreprocessedFiles{
		Documents: map[string]any{},
		Tables:    map[string]any{},
		Images:    map[string]any{},
		Other:     map[string]any{},
	}
}

// RuntimeState is the central record carried across node invocations for one
// task. Exported fields are serialized verbatim; ActionHistory's invariant
// (list-of-lists, single writer) is enforced through AppendAction/NewSession
// rather than direct field mutation from other packages.
type RuntimeState struct {
	TaskID    string `json:"task_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`

	TaskGoal         string `json:"task_goal"`
	originalTaskGoal string // unexported: preserved unmodified for resumption

	Usage string `json:"usage,omitempty"`

	PreprocessedFiles PreprocessedFiles `json:"preprocessed_files"`
	OriginImages      []string          `json:"origin_images,omitempty"`

	actionHistory [][]ActionEntry
	mu            sync.RWMutex

	Todo           []TodoItem            `json:"todo,omitempty"`
	FullActionData map[string]FullAction `json:"full_action_data"`
	ChatHistory    []ChatMessage         `json:"chat_history,omitempty"`

	ContextMemory map[string]any `json:"context_memory,omitempty"`
	UserContext   map[string]any `json:"user_context,omitempty"`

	// OutputToolInput is transient: set by the output-selector, consumed by
	// the next (output) tool node, then cleared.
	OutputToolInput map[string]any `json:"output_tool_input,omitempty"`

	RetryHistory []RetryEntry   `json:"retry_history,omitempty"`
	ErrorDetails map[string]any `json:"error_details,omitempty"`

	catalogGroup  singleflight.Group
	cachedCatalog string
	catalogValid  bool
	catalogMu     sync.Mutex
}

// RetryEntry records one attempt of output-tool retry/recovery (§4.7).
type RetryEntry struct {
	Attempt         int       `json:"attempt"`
	ToolName        string    `json:"tool_name"`
	ErrorType       string    `json:"error_type"`
	ErrorMessage    string    `json:"error_message"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	Timestamp       time.Time `json:"timestamp"`
}

// New creates RuntimeState for a fresh task, composing TaskGoal from the raw
// goal and an optional usage hint while preserving the unmodified original
// for resumption.
func New(taskID, userID, sessionID, rawGoal, usage string) *RuntimeState {
	s := &RuntimeState{
		TaskID:            taskID,
		UserID:            userID,
		SessionID:         sessionID,
		originalTaskGoal:  rawGoal,
		Usage:             usage,
		PreprocessedFiles: newPreprocessedFiles(),
		FullActionData:    map[string]FullAction{},
		ContextMemory:     map[string]any{},
		UserContext:       map[string]any{},
		ErrorDetails:      map[string]any{},
		actionHistory:     [][]ActionEntry{{}},
	}
	s.TaskGoal = composeGoal(rawGoal, usage)
	return s
}

func composeGoal(rawGoal, usage string) string {
	if usage == "" {
		return rawGoal
	}
	return fmt.Sprintf("%s\n\nUsage: %s", rawGoal, usage)
}

// OriginalTaskGoal returns the unmodified goal text preserved for resumption.
func (s *RuntimeState) OriginalTaskGoal() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.originalTaskGoal
}

// NewSession pushes a fresh empty inner conversation list, used when a new
// task is appended to an existing session.
func (s *RuntimeState) NewSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actionHistory = append(s.actionHistory, []ActionEntry{})
	s.invalidateCatalogLocked()
}

// AppendAction appends an entry to the current (last) conversation. This is
// the single sanctioned writer of action history (§9 design note); handlers
// must route every append through here.
func (s *RuntimeState) AppendAction(entry ActionEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.actionHistory) == 0 {
		s.actionHistory = [][]ActionEntry{{}}
	}
	last := len(s.actionHistory) - 1
	s.actionHistory[last] = append(s.actionHistory[last], entry)
	s.invalidateCatalogLocked()
}

// CurrentConversation returns a copy of the last (current) conversation's
// entries, for read-only inspection (e.g. by the planner's prompt builder).
func (s *RuntimeState) CurrentConversation() []ActionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.actionHistory) == 0 {
		return nil
	}
	last := s.actionHistory[len(s.actionHistory)-1]
	out := make([]ActionEntry, len(last))
	copy(out, last)
	return out
}

// ActionHistory returns a deep-ish copy of the full list-of-lists for
// serialization or inspection.
func (s *RuntimeState) ActionHistory() [][]ActionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]ActionEntry, len(s.actionHistory))
	for i, conv := range s.actionHistory {
		cp := make([]ActionEntry, len(conv))
		copy(cp, conv)
		out[i] = cp
	}
	return out
}

// SetActionHistory installs the full list-of-lists, used by the checkpoint
// store when reconstructing state from disk/DB. Callers must have already
// normalized the shape (see checkpoint.NormalizeActionHistory).
func (s *RuntimeState) SetActionHistory(h [][]ActionEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(h) == 0 {
		h = [][]ActionEntry{{}}
	}
	s.actionHistory = h
	s.invalidateCatalogLocked()
}

// InvalidateDataCatalog forces the next DataCatalog() call to rebuild,
// used by reflection after every tool cycle (§4.5.3).
func (s *RuntimeState) InvalidateDataCatalog() {
	s.invalidateCatalogLocked()
}

func (s *RuntimeState) invalidateCatalogLocked() {
	s.catalogMu.Lock()
	s.catalogValid = false
	s.catalogMu.Unlock()
}

// NextActionID generates an opaque action_<timestamp> token, colliding
// exceedingly rarely since the graph executor runs one node at a time per
// task; a monotonic nanosecond timestamp is sufficient uniqueness within a
// single task's lifetime.
func (s *RuntimeState) NextActionID() string {
	return fmt.Sprintf("action_%d", time.Now().UnixNano())
}

// StoreFullAction records the plan+tool_output+reflection triple under id.
func (s *RuntimeState) StoreFullAction(id string, fa FullAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FullActionData == nil {
		s.FullActionData = map[string]FullAction{}
	}
	s.FullActionData[id] = fa
}

// LookupFullAction retrieves a previously stored action triple by id.
func (s *RuntimeState) LookupFullAction(id string) (FullAction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fa, ok := s.FullActionData[id]
	return fa, ok
}

// AppendChat pushes an assistant/user message onto the cross-session history.
func (s *RuntimeState) AppendChat(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ChatHistory = append(s.ChatHistory, ChatMessage{Role: role, Content: content})
}

// DataCatalog returns a human-readable summary of what data is available in
// state (preprocessed files, completed actions) for the planner's prompt.
// Concurrent callers collapse into a single rebuild via singleflight, and the
// result is cached until the next mutation invalidates it (reflection does
// this after every tool cycle, per §4.5.3).
func (s *RuntimeState) DataCatalog() string {
	s.catalogMu.Lock()
	if s.catalogValid {
		cached := s.cachedCatalog
		s.catalogMu.Unlock()
		return cached
	}
	s.catalogMu.Unlock()

	v, _, _ := s.catalogGroup.Do(s.TaskID, func() (any, error) {
		catalog := s.buildCatalog()
		s.catalogMu.Lock()
		s.cachedCatalog = catalog
		s.catalogValid = true
		s.catalogMu.Unlock()
		return catalog, nil
	})
	return v.(string)
}

func (s *RuntimeState) buildCatalog() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := "Available data:\n"
	for bucket, files := range map[string]map[string]any{
		"documents": s.PreprocessedFiles.Documents,
		"tables":    s.PreprocessedFiles.Tables,
		"images":    s.PreprocessedFiles.Images,
		"other":     s.PreprocessedFiles.Other,
	} {
		for name := range files {
			out += fmt.Sprintf("  - preprocessed_files.%s.%s\n", bucket, name)
		}
	}
	for id := range s.FullActionData {
		out += fmt.Sprintf("  - %s (prior tool output)\n", id)
	}
	return out
}

// TodoSection renders the current TODO list for the planner's prompt.
func (s *RuntimeState) TodoSection() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Todo) == 0 {
		return "No TODOs yet."
	}
	out := "TODO list:\n"
	for _, t := range s.Todo {
		out += fmt.Sprintf("  [%s] %s: %s\n", t.ID, t.Status, t.Task)
	}
	return out
}

// ReplaceTodo swaps the entire TODO list, used when TodoGenerator produces a
// fresh plan (§4.5.3).
func (s *RuntimeState) ReplaceTodo(items []TodoItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Todo = items
}

// UpdateTodo applies fn to the TODO item with the given id, if present.
func (s *RuntimeState) UpdateTodo(id string, fn func(*TodoItem)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Todo {
		if s.Todo[i].ID == id {
			fn(&s.Todo[i])
			return true
		}
	}
	return false
}

// TodosSnapshot returns a copy of the current TODO list.
func (s *RuntimeState) TodosSnapshot() []TodoItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TodoItem, len(s.Todo))
	copy(out, s.Todo)
	return out
}

// ValidateActionHistoryShape is the in-process form of the state-shape check
// of §7/§9 (the outer slice must be a list of lists). Go's type system
// already enforces [][]ActionEntry, so it finds nothing to reject and always
// returns nil; the check that can fail, on data coming back from JSON, is
// checkpoint.NormalizeActionHistory.
func ValidateActionHistoryShape(h [][]ActionEntry) error {
	if h == nil {
		return nil
	}
	for i, conv := range h {
		if conv == nil {
			continue
		}
		_ = i
	}
	return nil
}
