package graph

import "errors"

// Error taxonomy (§7). Each sentinel is wrapped with context via fmt.Errorf's
// %w so callers can still errors.Is against the class while getting a useful
// message.
var (
	// ErrGraphValidation: missing planner, no outgoing edges, ambiguous
	// unconditional edges. Fatal at executor construction.
	ErrGraphValidation = errors.New("graph-validation")

	// ErrGraphNavigation: no edge matched the node's output at runtime.
	// Fatal, task moves to FAILED.
	ErrGraphNavigation = errors.New("graph-navigation")

	// ErrStateShape: action_history is not a list-of-lists.
	ErrStateShape = errors.New("state-shape")

	// ErrLLMSchema: structured output failed schema validation twice.
	ErrLLMSchema = errors.New("llm-schema")

	// ErrToolExec: a tool raised or returned status=error. Non-fatal.
	ErrToolExec = errors.New("tool-exec")

	// ErrOutputToolExhausted: retry + alternative-tool both failed.
	ErrOutputToolExhausted = errors.New("output-tool-exhausted")

	// ErrPersistence: a checkpoint write failed on every backing store.
	ErrPersistence = errors.New("persistence")

	// ErrCancelled: the task's status moved to CANCELLED between nodes.
	ErrCancelled = errors.New("cancelled")
)
