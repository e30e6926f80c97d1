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

package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelWarn,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFilteringHandler_SuppressesNonEngineLogsBelowDebug(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, nil)
	h := &filteringHandler{handler: inner, minLevel: slog.LevelInfo}

	record := slog.Record{Level: slog.LevelInfo, Message: "from a third-party library"}
	assert.NoError(t, h.Handle(nil, record)) //nolint:staticcheck // nil context mirrors slog.Record's own zero value in tests
	assert.Empty(t, buf.String())
}

func TestFilteringHandler_AllowsEverythingAtDebug(t *testing.T) {
	inner := slog.NewTextHandler(&discard{}, nil)
	h := &filteringHandler{handler: inner, minLevel: slog.LevelDebug}
	assert.True(t, h.Enabled(nil, slog.LevelInfo)) //nolint:staticcheck
}

func TestNormalizeLevelName(t *testing.T) {
	assert.Equal(t, "WARN", normalizeLevelName(slog.LevelWarn))
	assert.Equal(t, "ERROR", normalizeLevelName(slog.LevelError))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
