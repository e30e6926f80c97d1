package llm

import (
	"context"
	"errors"
)

// GenerateWithRetry calls Generate[T] and, on a schema-parse failure only,
// retries exactly once (§4.5.1 "Retry the structured call once on
// schema-parse failure", also required by reflection in §4.5.3). A transport
// error from RawGenerator.GenerateRaw is not a SchemaError and is returned
// immediately without a retry here; that is the Retry/Recovery package's
// concern for output tools, not the LLM call itself.
func GenerateWithRetry[T any](ctx context.Context, svc RawGenerator, userPrompt, systemPrompt string) (T, error) {
	out, err := Generate[T](ctx, svc, userPrompt, systemPrompt)
	if err == nil {
		return out, nil
	}
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		return out, err
	}
	return Generate[T](ctx, svc, userPrompt, systemPrompt)
}
