package state

import "encoding/json"

// wireState mirrors RuntimeState's externally-visible shape for JSON
// (de)serialization. The unexported fields (mutex, singleflight group,
// catalog cache) never cross the wire; originalTaskGoal and actionHistory do,
// since both are needed to resume a task faithfully (§3 Lifecycle).
type wireState struct {
	TaskID            string                `json:"task_id"`
	UserID            string                `json:"user_id"`
	SessionID         string                `json:"session_id"`
	TaskGoal          string                `json:"task_goal"`
	OriginalTaskGoal  string                `json:"original_task_goal"`
	Usage             string                `json:"usage,omitempty"`
	PreprocessedFiles PreprocessedFiles     `json:"preprocessed_files"`
	OriginImages      []string              `json:"origin_images,omitempty"`
	ActionHistory     [][]ActionEntry       `json:"action_history"`
	Todo              []TodoItem            `json:"todo,omitempty"`
	FullActionData    map[string]FullAction `json:"full_action_data"`
	ChatHistory       []ChatMessage         `json:"chat_history,omitempty"`
	ContextMemory     map[string]any        `json:"context_memory,omitempty"`
	UserContext       map[string]any        `json:"user_context,omitempty"`
	OutputToolInput   map[string]any        `json:"output_tool_input,omitempty"`
	RetryHistory      []RetryEntry          `json:"retry_history,omitempty"`
	ErrorDetails      map[string]any        `json:"error_details,omitempty"`
}

// MarshalJSON implements the Checkpoint Store's serialization contract (§4.1):
// the whole RuntimeState round-trips through ordinary struct serialization.
func (s *RuntimeState) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sanitizedHistory := make([][]ActionEntry, len(s.actionHistory))
	for i, conv := range s.actionHistory {
		sc := make([]ActionEntry, len(conv))
		for j, entry := range conv {
			sc[j] = ActionEntry{
				Type:     entry.Type,
				ToolName: entry.ToolName,
				Data:     sanitizeMap(entry.Data),
			}
		}
		sanitizedHistory[i] = sc
	}

	sanitizedActions := make(map[string]FullAction, len(s.FullActionData))
	for id, fa := range s.FullActionData {
		sanitizedActions[id] = FullAction{
			Plan:       sanitizeMap(fa.Plan),
			ToolOutput: sanitizeMap(fa.ToolOutput),
			Reflection: sanitizeMap(fa.Reflection),
		}
	}

	w := wireState{
		TaskID:            s.TaskID,
		UserID:            s.UserID,
		SessionID:         s.SessionID,
		TaskGoal:          s.TaskGoal,
		OriginalTaskGoal:  s.originalTaskGoal,
		Usage:             s.Usage,
		PreprocessedFiles: s.PreprocessedFiles,
		OriginImages:      s.OriginImages,
		ActionHistory:     sanitizedHistory,
		Todo:              s.Todo,
		FullActionData:    sanitizedActions,
		ChatHistory:       s.ChatHistory,
		ContextMemory:     sanitizeMap(s.ContextMemory),
		UserContext:       sanitizeMap(s.UserContext),
		OutputToolInput:   sanitizeMap(s.OutputToolInput),
		RetryHistory:      s.RetryHistory,
		ErrorDetails:      sanitizeMap(s.ErrorDetails),
	}
	return json.Marshal(w)
}

// UnmarshalJSON reconstructs a RuntimeState from a checkpoint. It does not
// itself apply the flat-vs-nested action_history leniency (§4.1/§9); callers
// should run raw bytes through NormalizeActionHistory first when the shape is
// uncertain (e.g. data that predates this module's own writer).
func (s *RuntimeState) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.TaskID = w.TaskID
	s.UserID = w.UserID
	s.SessionID = w.SessionID
	s.TaskGoal = w.TaskGoal
	s.originalTaskGoal = w.OriginalTaskGoal
	s.Usage = w.Usage
	s.PreprocessedFiles = w.PreprocessedFiles
	if s.PreprocessedFiles.Documents == nil {
		s.PreprocessedFiles = newPreprocessedFiles()
	}
	s.OriginImages = w.OriginImages
	if len(w.ActionHistory) == 0 {
		s.actionHistory = [][]ActionEntry{{}}
	} else {
		s.actionHistory = w.ActionHistory
	}
	s.Todo = w.Todo
	s.FullActionData = w.FullActionData
	if s.FullActionData == nil {
		s.FullActionData = map[string]FullAction{}
	}
	s.ChatHistory = w.ChatHistory
	s.ContextMemory = w.ContextMemory
	if s.ContextMemory == nil {
		s.ContextMemory = map[string]any{}
	}
	s.UserContext = w.UserContext
	if s.UserContext == nil {
		s.UserContext = map[string]any{}
	}
	s.OutputToolInput = w.OutputToolInput
	s.RetryHistory = w.RetryHistory
	s.ErrorDetails = w.ErrorDetails
	if s.ErrorDetails == nil {
		s.ErrorDetails = map[string]any{}
	}
	s.catalogValid = false
	return nil
}
