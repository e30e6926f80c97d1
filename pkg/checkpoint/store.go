package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/relanocode/agentengine/pkg/state"
)

// Store is the Checkpoint Store of §4.1: atomic, versioned, file-primary
// persistence with a SQLite-secondary fallback, plus per-task workflow
// directories for step artifacts.
type Store struct {
	baseDir string
	db      *DB

	mu    sync.Mutex
	dirs  map[string]string // task_id -> resolved workflow directory
}

// NewStore creates a Store rooted at baseDir, with an optional secondary
// database (pass nil to run file-only, e.g. in tests).
func NewStore(baseDir string, db *DB) *Store {
	return &Store{
		baseDir: baseDir,
		db:      db,
		dirs:    make(map[string]string),
	}
}

// CreateWorkflowDirectory ensures the timestamped per-task directory exists
// and initializes metadata.json (§4.1).
func (s *Store) CreateWorkflowDirectory(taskID, userID, sessionID string) (string, error) {
	s.mu.Lock()
	if dir, ok := s.dirs[taskID]; ok {
		s.mu.Unlock()
		return dir, nil
	}
	s.mu.Unlock()

	stamp := time.Now().UTC().Format("20060102_150405")
	dir := filepath.Join(s.baseDir, userID, "sessions", fmt.Sprintf("%s_%s", stamp, taskID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("checkpoint: create workflow dir %q: %w", dir, err)
	}

	metaPath := filepath.Join(dir, "metadata.json")
	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		meta := Metadata{
			TaskID:    taskID,
			SessionID: sessionID,
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return "", fmt.Errorf("checkpoint: marshal metadata: %w", err)
		}
		if err := atomicWrite(metaPath, data); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	s.dirs[taskID] = dir
	s.mu.Unlock()
	return dir, nil
}

// workflowDir resolves the newest timestamped directory for a task, or the
// older-format `{task_id}/` layout, without requiring CreateWorkflowDirectory
// to have run in this process (needed for Load on a fresh process, §4.1).
func (s *Store) workflowDir(taskID string) (string, bool) {
	s.mu.Lock()
	if dir, ok := s.dirs[taskID]; ok {
		s.mu.Unlock()
		return dir, true
	}
	s.mu.Unlock()

	// Search {baseDir}/*/sessions/*_{taskID} for the newest match.
	matches, _ := filepath.Glob(filepath.Join(s.baseDir, "*", "sessions", "*_"+taskID))
	if len(matches) > 0 {
		sort.Strings(matches)
		dir := matches[len(matches)-1]
		s.mu.Lock()
		s.dirs[taskID] = dir
		s.mu.Unlock()
		return dir, true
	}

	// Older-format fallback: {baseDir}/{task_id}/
	legacy := filepath.Join(s.baseDir, taskID)
	if info, err := os.Stat(legacy); err == nil && info.IsDir() {
		return legacy, true
	}

	return "", false
}

// Save persists the whole RuntimeState. It never surfaces an error to the
// caller (§4.1): a filesystem failure is logged and falls back to a
// DB-only save; a DB failure (with file already written) is also just
// logged, matching the independent-paths framing of §4.1.
func (s *Store) Save(ctx context.Context, st *state.RuntimeState) {
	data, err := json.Marshal(st)
	if err != nil {
		slog.Error("checkpoint: failed to serialize state, save aborted", "task_id", st.TaskID, "error", err)
		return
	}

	dir, ok := s.workflowDir(st.TaskID)
	fileErr := error(nil)
	if !ok {
		fileErr = fmt.Errorf("no workflow directory for task %s", st.TaskID)
	} else {
		target := filepath.Join(dir, "state.json")
		if err := rotateVersions(target); err != nil {
			slog.Warn("checkpoint: version rotation failed", "task_id", st.TaskID, "error", err)
		}
		fileErr = atomicWrite(target, data)
	}

	if fileErr != nil {
		slog.Warn("checkpoint: file save failed, falling back to database", "task_id", st.TaskID, "error", fileErr)
	}

	if s.db != nil {
		if err := s.db.UpsertStateSnapshot(ctx, st.TaskID, st.UserID, st.SessionID, data); err != nil {
			slog.Warn("checkpoint: database save failed", "task_id", st.TaskID, "error", err)
		}
	} else if fileErr != nil {
		slog.Error("checkpoint: both file and database save unavailable", "task_id", st.TaskID)
	}
}

// Load reconstructs RuntimeState trying, in order: newest timestamped
// directory, older-format directory, then the database snapshot (§4.1).
// Returns nil, nil when no record exists anywhere.
func (s *Store) Load(ctx context.Context, taskID string) (*state.RuntimeState, error) {
	if dir, ok := s.workflowDir(taskID); ok {
		target := filepath.Join(dir, "state.json")
		if data, err := atomicRead(target); err == nil {
			return s.decode(data)
		}
	}

	if s.db != nil {
		data, found, err := s.db.LoadStateSnapshot(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: load from database: %w", err)
		}
		if found {
			return s.decode(data)
		}
	}

	return nil, nil
}

func (s *Store) decode(data []byte) (*state.RuntimeState, error) {
	normalized, err := NormalizeActionHistory(data)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: normalize action_history: %w", err)
	}
	var st state.RuntimeState
	if err := json.Unmarshal(normalized, &st); err != nil {
		return nil, fmt.Errorf("checkpoint: decode state: %w", err)
	}
	return &st, nil
}

// SaveStep writes a single node-hop's step artifact atomically and bumps
// metadata.total_steps (§4.1). Returns false (never an error, matching the
// "save never throws" posture) when the write could not be completed.
func (s *Store) SaveStep(taskID string, stepNumber int, nodeType string, output map[string]any, toolName string) bool {
	dir, ok := s.workflowDir(taskID)
	if !ok {
		slog.Warn("checkpoint: no workflow directory for step save", "task_id", taskID)
		return false
	}

	filename := stepFilename(stepNumber, nodeType, toolName)
	artifact := map[string]any{
		"step_number": stepNumber,
		"node_type":   nodeType,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		"output":      output,
	}
	if toolName != "" {
		artifact["tool_name"] = toolName
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		slog.Error("checkpoint: marshal step artifact", "task_id", taskID, "error", err)
		return false
	}
	if err := atomicWrite(filepath.Join(dir, filename), data); err != nil {
		slog.Error("checkpoint: write step artifact", "task_id", taskID, "error", err)
		return false
	}

	s.bumpMetadata(dir, nodeType)
	return true
}

func stepFilename(step int, nodeType, toolName string) string {
	switch nodeType {
	case "call_tool":
		return fmt.Sprintf("%d_call_tool_%s.json", step, sanitizeToolName(toolName))
	case "output":
		return fmt.Sprintf("%d_output_%s.json", step, sanitizeToolName(toolName))
	default:
		return fmt.Sprintf("%d_%s.json", step, nodeType)
	}
}

func (s *Store) bumpMetadata(dir, nodeType string) {
	metaPath := filepath.Join(dir, "metadata.json")
	data, err := atomicRead(metaPath)
	var meta Metadata
	if err == nil {
		_ = json.Unmarshal(data, &meta)
	}
	meta.TotalSteps++
	meta.UpdatedAt = time.Now().UTC()
	meta.recordNodeType(nodeType)
	out, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return
	}
	if err := atomicWrite(metaPath, out); err != nil {
		slog.Warn("checkpoint: failed to update metadata", "dir", dir, "error", err)
	}
}

// MaxStepOrder returns the highest recorded ActionStep.step_order for a task
// across both the DB log and any step artifacts already on disk, so the
// executor can resume numbering at max+1 (§5).
func (s *Store) MaxStepOrder(ctx context.Context, taskID string) int {
	max := 0
	if s.db != nil {
		if m, err := s.db.MaxStepOrder(ctx, taskID); err == nil && m > max {
			max = m
		}
	}
	if dir, ok := s.workflowDir(taskID); ok {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				name := e.Name()
				if !strings.HasSuffix(name, ".json") || name == "metadata.json" || strings.HasPrefix(name, "state.json") {
					continue
				}
				var n int
				if _, err := fmt.Sscanf(name, "%d_", &n); err == nil && n > max {
					max = n
				}
			}
		}
	}
	return max
}

// InsertActionStep records an ActionStep row in the secondary database, when
// one is configured.
func (s *Store) InsertActionStep(ctx context.Context, taskID string, stepOrder int, logType string, details map[string]any) {
	if s.db == nil {
		return
	}
	data, err := json.Marshal(details)
	if err != nil {
		slog.Warn("checkpoint: marshal action step details", "error", err)
		return
	}
	if err := s.db.InsertActionStep(ctx, taskID, stepOrder, logType, string(data)); err != nil {
		slog.Warn("checkpoint: insert action step", "task_id", taskID, "error", err)
	}
}
