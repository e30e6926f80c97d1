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

// Package dataref implements the Data-Reference Resolver (§4.4): expansion
// of "${...}" placeholders inside tool inputs against RuntimeState.
package dataref

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/relanocode/agentengine/pkg/state"
)

// missingRefMarkerFmt is emitted verbatim (not translated) since it is the
// original source's literal marker text, carried over per §4.4.
const missingRefMarkerFmt = "[数据提取失败: %s]"

var refPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
var actionTokenPattern = regexp.MustCompile(`^action_\d+$`)

// Resolve recursively walks a tool input (string, []any, map[string]any) and
// substitutes every "${token}" occurrence found inside strings (§4.4).
// Non-string scalars pass through unchanged.
func Resolve(input any, st *state.RuntimeState) any {
	switch v := input.(type) {
	case string:
		return resolveString(v, st)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = Resolve(val, st)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Resolve(val, st)
		}
		return out
	default:
		return v
	}
}

func resolveString(s string, st *state.RuntimeState) string {
	return refPattern.ReplaceAllStringFunc(s, func(match string) string {
		token := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return resolveToken(token, st)
	})
}

func resolveToken(token string, st *state.RuntimeState) string {
	if actionTokenPattern.MatchString(token) {
		fa, ok := st.LookupFullAction(token)
		if !ok {
			slog.Warn("dataref: action reference not found", "token", token)
			return fmt.Sprintf(missingRefMarkerFmt, token)
		}
		data, err := json.Marshal(fa.ToolOutput)
		if err != nil {
			slog.Warn("dataref: failed to serialize action tool_output", "token", token, "error", err)
			return fmt.Sprintf(missingRefMarkerFmt, token)
		}
		return string(data)
	}

	segments := splitPath(token)
	value, ok := lookupPath(st, segments)
	if !ok {
		slog.Warn("dataref: dotted-path reference not found", "token", token)
		return fmt.Sprintf(missingRefMarkerFmt, token)
	}
	if s, ok := value.(string); ok {
		return s
	}
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("dataref: failed to serialize resolved value", "token", token, "error", err)
		return fmt.Sprintf(missingRefMarkerFmt, token)
	}
	return string(data)
}

// splitPath implements the "preprocessed_files." special case of §4.4: at
// most three segments, since filenames may themselves contain dots.
func splitPath(token string) []string {
	if strings.HasPrefix(token, "preprocessed_files.") {
		rest := strings.TrimPrefix(token, "preprocessed_files.")
		parts := strings.SplitN(rest, ".", 2)
		segments := []string{"preprocessed_files"}
		segments = append(segments, parts...)
		return segments
	}
	return strings.Split(token, ".")
}

// lookupPath resolves a dotted path against the whole RuntimeState, mirroring
// the original source's extract_data_by_path: any field reachable off the
// state object (task_goal, usage, todo, chat_history, origin_images,
// retry_history, error_details, output_tool_input, full_action_data, ...),
// not just the four buckets this resolver used to special-case.
func lookupPath(st *state.RuntimeState, segments []string) (any, bool) {
	if len(segments) == 0 {
		return nil, false
	}
	if segments[0] == "preprocessed_files" {
		if len(segments) < 2 {
			return nil, false
		}
		bucket := bucketFor(st, segments[1])
		if bucket == nil {
			return nil, false
		}
		if len(segments) == 2 {
			return bucket, true
		}
		v, ok := bucket[segments[2]]
		return v, ok
	}

	snapshot, err := stateSnapshot(st)
	if err != nil {
		return nil, false
	}
	return walkAny(snapshot, segments)
}

// stateSnapshot serializes RuntimeState through its existing wire encoding
// (pkg/state's MarshalJSON) into a generic map, the same shape the checkpoint
// store persists, so this resolver doesn't need its own parallel reflection
// over RuntimeState's fields.
func stateSnapshot(st *state.RuntimeState) (map[string]any, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	var snapshot map[string]any
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func bucketFor(st *state.RuntimeState, name string) map[string]any {
	switch name {
	case "documents":
		return st.PreprocessedFiles.Documents
	case "tables":
		return st.PreprocessedFiles.Tables
	case "images":
		return st.PreprocessedFiles.Images
	case "other":
		return st.PreprocessedFiles.Other
	default:
		return nil
	}
}

// walkAny descends segments through maps and (by numeric index) lists, the
// same two container shapes extract_data_by_path's generic attribute walk
// supports once everything is flattened to plain data.
func walkAny(root any, segments []string) (any, bool) {
	cur := root
	for _, seg := range segments {
		switch v := cur.(type) {
		case map[string]any:
			val, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = val
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

