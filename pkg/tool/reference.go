package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/relanocode/agentengine/pkg/state"
)

// --- TodoGenerator (libs): produces/replaces the TODO list from a goal. ---

// TodoGeneratorInput is the typed input struct GenerateSchema reflects over.
type TodoGeneratorInput struct {
	Goal           string   `json:"goal" jsonschema:"required,description=The task goal to decompose into TODO items"`
	AvailableTools []string `json:"available_tools,omitempty" jsonschema:"description=Tool names the planner may suggest for each TODO"`
}

// TodoGenerator splits a goal into TODO items. It is planner-adjacent: the
// Planner auto-fills AvailableTools (§4.5.1) before invocation.
type TodoGenerator struct{}

func NewTodoGenerator(map[string]any) (Tool, error) { return TodoGenerator{}, nil }

func (TodoGenerator) Name() string        { return "TodoGenerator" }
func (TodoGenerator) Description() string { return "Decomposes a task goal into a TODO list." }
func (TodoGenerator) Category() Category  { return CategoryLibs }
func (TodoGenerator) RequiresStateAccess() bool { return false }
func (TodoGenerator) InputSchema() (map[string]any, error) {
	return GenerateSchema[TodoGeneratorInput]()
}

func (TodoGenerator) Execute(ctx context.Context, inputs map[string]any) Output {
	goal, _ := inputs["goal"].(string)
	if strings.TrimSpace(goal) == "" {
		return ErrorOutput("TodoGenerator requires a non-empty goal")
	}

	items := []state.TodoItem{
		{ID: "1", Task: fmt.Sprintf("Gather information for: %s", goal), Status: state.TodoPending},
		{ID: "2", Task: fmt.Sprintf("Produce the final answer for: %s", goal), Status: state.TodoPending, Dependencies: []string{"1"}},
	}
	return Output{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("generated %d TODO items", len(items)),
		Output:  items,
		Type:    "todo_list",
	}
}

// --- Summarizer (libs): condenses prior tool output or free text. ---

type SummarizerInput struct {
	Source string `json:"source" jsonschema:"required,description=Text (or a ${action_id} reference) to summarize"`
}

type Summarizer struct{}

func NewSummarizer(map[string]any) (Tool, error) { return Summarizer{}, nil }

func (Summarizer) Name() string               { return "Summarizer" }
func (Summarizer) Description() string         { return "Summarizes a piece of text or prior tool output." }
func (Summarizer) Category() Category          { return CategoryLibs }
func (Summarizer) RequiresStateAccess() bool   { return false }
func (Summarizer) InputSchema() (map[string]any, error) {
	return GenerateSchema[SummarizerInput]()
}

func (Summarizer) Execute(ctx context.Context, inputs map[string]any) Output {
	source, _ := inputs["source"].(string)
	if strings.TrimSpace(source) == "" {
		return ErrorOutput("Summarizer requires a non-empty source")
	}
	summary := source
	if len(summary) > 200 {
		summary = summary[:200] + "…"
	}
	return Output{
		Status:        StatusSuccess,
		Message:       "summarized input",
		PrimaryResult: summary,
		Type:          "summary",
	}
}

// --- TextGenerator (generator/output tool): renders the final answer. ---

type TextGeneratorInput struct {
	OutputGuidance string `json:"output_guidance" jsonschema:"required,description=Guidance on what the final answer should cover"`
	Goal           string `json:"goal,omitempty" jsonschema:"description=The original task goal"`
}

type TextGenerator struct{}

func NewTextGenerator(map[string]any) (Tool, error) { return TextGenerator{}, nil }

func (TextGenerator) Name() string             { return "TextGenerator" }
func (TextGenerator) Description() string       { return "Renders a free-text final answer." }
func (TextGenerator) Category() Category        { return CategoryGenerator }
func (TextGenerator) RequiresStateAccess() bool { return false }
func (TextGenerator) InputSchema() (map[string]any, error) {
	return GenerateSchema[TextGeneratorInput]()
}

func (TextGenerator) Execute(ctx context.Context, inputs map[string]any) Output {
	guidance, _ := inputs["output_guidance"].(string)
	if strings.TrimSpace(guidance) == "" {
		return ErrorOutput("TextGenerator requires output_guidance")
	}
	return Output{
		Status:        StatusSuccess,
		Message:       "rendered final answer",
		PrimaryResult: guidance,
		Type:          "final_answer",
	}
}

// --- ReportGenerator (generator/output tool): structured report fallback. ---

type ReportGeneratorInput struct {
	OutputGuidance string `json:"output_guidance" jsonschema:"required,description=Guidance on what the report should cover"`
}

// ReportGenerator is the alternative output tool exercised by the
// output-tool retry/fallback path (§4.7, scenario S3).
type ReportGenerator struct{}

func NewReportGenerator(map[string]any) (Tool, error) { return ReportGenerator{}, nil }

func (ReportGenerator) Name() string             { return "ReportGenerator" }
func (ReportGenerator) Description() string       { return "Renders the final answer as a structured report." }
func (ReportGenerator) Category() Category        { return CategoryGenerator }
func (ReportGenerator) RequiresStateAccess() bool { return false }
func (ReportGenerator) InputSchema() (map[string]any, error) {
	return GenerateSchema[ReportGeneratorInput]()
}

func (ReportGenerator) Execute(ctx context.Context, inputs map[string]any) Output {
	guidance, _ := inputs["output_guidance"].(string)
	if strings.TrimSpace(guidance) == "" {
		return ErrorOutput("ReportGenerator requires output_guidance")
	}
	report := fmt.Sprintf("# Report\n\n%s\n", guidance)
	return Output{
		Status:        StatusSuccess,
		Message:       "rendered report",
		PrimaryResult: report,
		Type:          "final_answer",
	}
}

// RegisterReferenceTools installs the four shipped reference tools into r.
func RegisterReferenceTools(r *Registry) error {
	tools := []struct {
		name        string
		description string
		category    Category
		factory     Factory
	}{
		{"TodoGenerator", "Decomposes a task goal into a TODO list.", CategoryLibs, NewTodoGenerator},
		{"Summarizer", "Summarizes a piece of text or prior tool output.", CategoryLibs, NewSummarizer},
		{"TextGenerator", "Renders a free-text final answer.", CategoryGenerator, NewTextGenerator},
		{"ReportGenerator", "Renders the final answer as a structured report.", CategoryGenerator, NewReportGenerator},
	}
	for _, t := range tools {
		if err := r.RegisterBuiltin(t.name, t.description, t.category, t.factory); err != nil {
			return err
		}
	}
	return nil
}
