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

package log

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the rotating log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// TeeToFile keeps logging to stderr and additionally writes every line to a
// size-rotated file. The returned closer flushes and closes the file.
func TeeToFile(opts FileOptions) io.Closer {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 100
	}
	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	SetOutput(io.MultiWriter(os.Stderr, w))
	return w
}
