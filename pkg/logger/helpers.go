package logger

import (
	"context"
	"log/slog"
)

// LogLLMRequest logs an outbound structured-LLM call at Debug level.
func LogLLMRequest(ctx context.Context, node, model string, attrs ...any) {
	args := append([]any{"node", node, "model", model}, attrs...)
	GetLogger().DebugContext(ctx, "llm request", args...)
}

// LogLLMResponse logs a structured-LLM response at Debug level.
func LogLLMResponse(ctx context.Context, node string, ok bool, attrs ...any) {
	args := append([]any{"node", node, "ok", ok}, attrs...)
	GetLogger().DebugContext(ctx, "llm response", args...)
}

// LogStateChange logs a RuntimeState mutation at Info level.
func LogStateChange(ctx context.Context, taskID, change string, attrs ...any) {
	args := append([]any{"task_id", taskID, "change", change}, attrs...)
	GetLogger().InfoContext(ctx, "state change", args...)
}

// LogToolCall logs a tool invocation at Info level.
func LogToolCall(ctx context.Context, taskID, tool string, attrs ...any) {
	args := append([]any{"task_id", taskID, "tool", tool}, attrs...)
	GetLogger().InfoContext(ctx, "tool call", args...)
}

// LogToolResult logs a tool result at Info (success) or Warn (non-success) level.
func LogToolResult(ctx context.Context, taskID, tool, status string, attrs ...any) {
	args := append([]any{"task_id", taskID, "tool", tool, "status", status}, attrs...)
	if status == "success" {
		GetLogger().InfoContext(ctx, "tool result", args...)
		return
	}
	GetLogger().WarnContext(ctx, "tool result", args...)
}
