package node

// OutputGuidance carries the rendering instructions a FINISH plan hands to
// the output-selector (§4.5.1).
type OutputGuidance struct {
	KeyPoints             []string `json:"key_points,omitempty"`
	FormatRequirements    string   `json:"format_requirements,omitempty"`
	QualityRequirements   string   `json:"quality_requirements,omitempty"`
	CustomPrompt          string   `json:"custom_prompt,omitempty"`
	EmphasizedActionIDs   []string `json:"emphasized_action_ids,omitempty"`
	DeemphasizedActionIDs []string `json:"deemphasized_action_ids,omitempty"`
}

// PlannerOutput is the schema the planner's structured-output call returns
// (§4.5.1).
type PlannerOutput struct {
	Thought         string          `json:"thought"`
	Action          string          `json:"action"` // "CALL_TOOL" | "FINISH"
	ToolName        string          `json:"tool_name,omitempty"`
	ToolInput       map[string]any  `json:"tool_input,omitempty"`
	ExpectedOutcome string          `json:"expected_outcome,omitempty"`
	OutputGuidance  *OutputGuidance `json:"output_guidance,omitempty"`

	// FinalAnswer/Title are stripped on FINISH per §4.5.1 post-processing;
	// present only so a model that produces them anyway can be decoded
	// without failing the schema, then discarded.
	FinalAnswer string `json:"final_answer,omitempty"`
	Title       string `json:"title,omitempty"`
}

const (
	ActionCallTool = "CALL_TOOL"
	ActionFinish   = "FINISH"
)

// ReflectionOutput is the schema the reflection handler's structured-output
// call returns (§4.5.3).
type ReflectionOutput struct {
	Conclusion   string   `json:"conclusion"`
	Summary      string   `json:"summary"`
	Impact       string   `json:"impact"`
	IsFinished   bool     `json:"is_finished"`
	IsSufficient bool     `json:"is_sufficient"`
	KeyFindings  []string `json:"key_findings,omitempty"`
}

// OutputToolDecision is what the output-selector returns (§4.5.4).
type OutputToolDecision struct {
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input"`
}
