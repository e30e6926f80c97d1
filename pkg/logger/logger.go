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
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/fatih/color"
)

var defaultLogger *slog.Logger

// enginePrefixes are the package-path substrings treated as "ours" by the
// filtering handler. Graph node handlers, the executor, and the retry
// package all run on the same call path as a DEBUG-suppressed third-party
// import (go-plugin, go-hclog) when a plugin tool misbehaves, so the filter
// keys off any of these rather than a single module prefix.
var enginePrefixes = []string{
	"github.com/relanocode/agentengine",
	"agentengine/",
}

// ParseLevel converts a string log level to slog.Level. Valid levels:
// debug, info, warn, error. Anything else falls back to warn, matching the
// conservative default a misconfigured --log-level flag should get.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, nil
	}
}

// filteringHandler silences logs emitted from outside this engine's own
// packages unless the configured level is DEBUG. A plugin tool's RPC client
// (go-plugin) and its hclog adapter both log through the default slog
// logger once SetDefault is called; at INFO and above those would otherwise
// drown out the executor's own node-hop and checkpoint logging.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.minLevel {
		return false
	}
	return h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || h.isEnginePackage(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

// isEnginePackage reports whether the call site at pc belongs to one of
// enginePrefixes.
func (h *filteringHandler) isEnginePackage(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	fullName := fn.Name()
	file, _ := fn.FileLine(pc)
	for _, prefix := range enginePrefixes {
		if strings.Contains(fullName, prefix) || strings.Contains(file, prefix) {
			return true
		}
	}
	return false
}

// levelColor returns the fatih/color attribute set for a log level. Using
// the color package instead of hand-rolled escape sequences means
// NO_COLOR/terminal detection and Windows console translation come for
// free from the library rather than being reimplemented here.
func levelColor(level slog.Level) *color.Color {
	switch {
	case level >= slog.LevelError:
		return color.New(color.FgRed)
	case level >= slog.LevelWarn:
		return color.New(color.FgYellow)
	case level >= slog.LevelInfo:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgHiBlack)
	}
}

func isTerminal(file *os.File) bool {
	if fileInfo, err := file.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func normalizeLevelName(level slog.Level) string {
	name := level.String()
	if name == "WARNING" {
		name = "WARN"
	}
	return strings.ToUpper(name)
}

func writeAttrs(buf *strings.Builder, record slog.Record) {
	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
}

// textHandler renders a slog.Record as one line of text, optionally with a
// timestamp prefix, optionally colorized. It replaces the teacher's two
// separate coloredTextHandler/simpleTextHandler types (which duplicated the
// same attribute-writing loop) with one handler parameterized on both axes.
type textHandler struct {
	handler     slog.Handler
	writer      io.Writer
	useColor    bool
	withTimeFmt string // empty means no timestamp (simple format)
}

func (h *textHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *textHandler) Handle(ctx context.Context, record slog.Record) error {
	var buf strings.Builder

	if h.withTimeFmt != "" && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format(h.withTimeFmt))
		buf.WriteString(" ")
	}

	levelStr := normalizeLevelName(record.Level)
	if h.useColor {
		levelStr = levelColor(record.Level).Sprint(levelStr)
	}
	buf.WriteString(levelStr)
	buf.WriteString(" ")
	buf.WriteString(record.Message)

	writeAttrs(&buf, record)
	buf.WriteString("\n")

	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.handler = h.handler.WithAttrs(attrs)
	return &clone
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.handler = h.handler.WithGroup(name)
	return &clone
}

// Init initializes the default logger for the given level, output, and
// format ("simple": level + message; "verbose": time + level + message;
// anything else falls back to the standard slog.TextHandler layout).
// Third-party library logs (see filteringHandler) are suppressed below
// DEBUG. Color is enabled automatically when output is a terminal.
func Init(level slog.Level, output *os.File, format string) {
	useColor := isTerminal(output)
	simple := format == "simple" || format == ""
	verbose := format == "verbose"

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
				return slog.String("level", "WARN")
			}
			return a
		},
	}

	baseHandler := slog.NewTextHandler(output, opts)

	var handler slog.Handler = baseHandler
	if simple || verbose {
		timeFmt := ""
		if verbose {
			timeFmt = "2006/01/02 15:04:05"
		}
		handler = &textHandler{handler: baseHandler, writer: output, useColor: useColor, withTimeFmt: timeFmt}
	}

	defaultLogger = slog.New(&filteringHandler{handler: handler, minLevel: level})
	slog.SetDefault(defaultLogger)
}

// OpenLogFile opens or creates a log file at the specified path, returning
// the handle and a cleanup function to close it.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

// GetLogger returns the default slog logger, initializing it with INFO
// level and simple format on first use if Init hasn't been called.
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr, "simple")
	}
	return defaultLogger
}
