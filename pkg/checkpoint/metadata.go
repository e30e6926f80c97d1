package checkpoint

import "time"

// Metadata mirrors metadata.json (§3): per-task bookkeeping alongside
// state.json and the step artifacts.
type Metadata struct {
	TaskID            string    `json:"task_id"`
	SessionID         string    `json:"session_id"`
	UserID            string    `json:"user_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	TotalSteps        int       `json:"total_steps"`
	NodeTypesExecuted []string  `json:"node_types_executed"`
}

func (m *Metadata) recordNodeType(nodeType string) {
	for _, t := range m.NodeTypesExecuted {
		if t == nodeType {
			return
		}
	}
	m.NodeTypesExecuted = append(m.NodeTypesExecuted, nodeType)
}
