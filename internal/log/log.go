// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is the process-wide leveled logger. It writes to stderr by
// default so that stdout stays free for the MCP stdio transport.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var (
	levelVar slog.LevelVar
	mu       sync.RWMutex
	logger   *slog.Logger
)

func init() {
	levelVar.Set(slog.LevelInfo)
	logger = newLogger(os.Stderr)
}

func newLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar}))
}

// SetOutput redirects all subsequent log lines to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	logger = newLogger(w)
	mu.Unlock()
}

func SetLogLevel(l Level) {
	switch l {
	case DebugLevel:
		levelVar.Set(slog.LevelDebug)
	case WarnLevel:
		levelVar.Set(slog.LevelWarn)
	case ErrorLevel:
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// ParseLevel maps a config string to a Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger returns the underlying structured logger, for callers that log
// key/value pairs instead of formatted messages.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(format string, args ...any) {
	Logger().Debug(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

func Info(format string, args ...any) {
	Logger().Info(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

func Warn(format string, args ...any) {
	Logger().Warn(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

func Error(format string, args ...any) {
	Logger().Error(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}
