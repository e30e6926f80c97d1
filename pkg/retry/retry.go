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

// Package retry implements the Retry & Recovery executor for output tools
// (§4.7): exponential backoff with error classification, and an
// alternative-tool fallback once all attempts are exhausted.
package retry

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/relanocode/agentengine/pkg/state"
	"github.com/relanocode/agentengine/pkg/tool"
)

// ErrorClass is the classification §4.7 uses to decide retry vs abort.
type ErrorClass string

const (
	ErrorNetwork    ErrorClass = "network"
	ErrorTimeout    ErrorClass = "timeout"
	ErrorRateLimit  ErrorClass = "rate_limit"
	ErrorServer     ErrorClass = "server"
	ErrorAuth       ErrorClass = "auth"
	ErrorValidation ErrorClass = "validation"
	ErrorUnknown    ErrorClass = "unknown"
)

// Retryable reports whether an error of this class should be retried.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ErrorNetwork, ErrorTimeout, ErrorRateLimit, ErrorServer:
		return true
	default:
		return false
	}
}

// Classify maps a tool failure message to an ErrorClass (§4.7).
func Classify(message string) ErrorClass {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "auth") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "forbidden"):
		return ErrorAuth
	case strings.Contains(lower, "invalid") || strings.Contains(lower, "validation"):
		return ErrorValidation
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate-limit") || strings.Contains(lower, "429"):
		return ErrorRateLimit
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection"):
		return ErrorNetwork
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return ErrorTimeout
	case strings.Contains(lower, "server error") || strings.Contains(lower, "500") || strings.Contains(lower, "502") || strings.Contains(lower, "503"):
		return ErrorServer
	default:
		return ErrorUnknown
	}
}

// Result is what Run returns after the attempt loop and any alternative-tool
// fallback have settled.
type Result struct {
	Output         tool.Output
	RetryHistory     []state.RetryEntry
	Succeeded        bool
	AlternativeTried string
	ErrorRecovered   bool
	ExecutionTimeMs  int64
}

// Run implements the §4.7 loop: up to maxAttempts calls to the primary tool
// with exponential backoff (base 1s, capped at 30s), classifying each
// failure to decide retry-vs-abort, then one alternative-tool attempt if all
// primary attempts are exhausted.
func Run(ctx context.Context, primary tool.Tool, inputs map[string]any, st *state.RuntimeState, maxAttempts int, alternatives []tool.Tool) Result {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var history []state.RetryEntry
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		out := tool.ExecuteWithLogging(ctx, primary, inputs, st)
		elapsedMs := time.Since(start).Milliseconds()

		if out.Status == tool.StatusSuccess {
			return Result{
				Output:          out,
				RetryHistory:    history,
				Succeeded:       true,
				ErrorRecovered:  attempt > 1,
				ExecutionTimeMs: elapsedMs,
			}
		}

		class := Classify(out.Message)
		entry := state.RetryEntry{
			Attempt:         attempt,
			ToolName:        primary.Name(),
			ErrorType:       string(class),
			ErrorMessage:    out.Message,
			ExecutionTimeMs: elapsedMs,
			Timestamp:       time.Now().UTC(),
		}
		history = append(history, entry)

		if !class.Retryable() {
			break
		}
		if attempt < maxAttempts {
			sleep(ctx, backoffDelay(attempt))
		}
	}

	for _, alt := range alternatives {
		start := time.Now()
		out := tool.ExecuteWithLogging(ctx, alt, inputs, st)
		elapsedMs := time.Since(start).Milliseconds()
		if out.Status == tool.StatusSuccess {
			return Result{
				Output:           out,
				RetryHistory:     history,
				Succeeded:        true,
				AlternativeTried: alt.Name(),
				ErrorRecovered:   true,
				ExecutionTimeMs:  elapsedMs,
			}
		}
		entry := state.RetryEntry{
			Attempt:      len(history) + 1,
			ToolName:     alt.Name(),
			ErrorType:    string(Classify(out.Message)),
			ErrorMessage: out.Message,
			Timestamp:    time.Now().UTC(),
		}
		history = append(history, entry)
		return Result{Output: out, RetryHistory: history, Succeeded: false, AlternativeTried: alt.Name()}
	}

	return Result{
		Output:       tool.ErrorOutput("output tool exhausted: all retries and alternatives failed"),
		RetryHistory: history,
		Succeeded:    false,
	}
}

// backoffDelay is delay * 2^(attempt-1) capped at 30s, base delay 1s (§4.7).
func backoffDelay(attempt int) time.Duration {
	seconds := math.Min(math.Pow(2, float64(attempt-1)), 30)
	return time.Duration(seconds * float64(time.Second))
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
