/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the CLI into a crash report and, when the
// failing document is known, a copy of its text for reproduction.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "fountainlex/internal/log"
	"fountainlex/internal/version"
)

// exitFn is replaced in tests.
var exitFn = os.Exit

// Session describes what the process was working on when it panicked.
// Any field may be empty.
type Session struct {
	Command  string
	Document string
	Source   string // document text, saved next to the report when set
	Dir      string // report directory, defaults to <tmp>/fountainlex
}

// Recover captures a panic, logs it with its stack, writes a crash report and
// exits with status 2.
//
// Usage: defer crash.Recover(sess)
func Recover(s *Session) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(s, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	_, _ = fmt.Fprintf(os.Stderr, "fountainlex crashed. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	_ = applog.Close()
	exitFn(2)
}

func reportDir(s *Session) string {
	if s != nil && s.Dir != "" {
		return s.Dir
	}
	return filepath.Join(os.TempDir(), "fountainlex")
}

func writeReport(s *Session, panicVal any, stack []byte) (string, error) {
	dir := reportDir(s)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	stamp := time.Now().Format("20060102-150405")
	base := fmt.Sprintf("crash-%s-%d", stamp, os.Getpid())
	path := filepath.Join(dir, base+".log")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "fountainlex crash report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if s != nil {
		if s.Command != "" {
			fmt.Fprintf(&buf, "Command: %s\n", s.Command)
		}
		if s.Document != "" {
			fmt.Fprintf(&buf, "Document: %s\n", s.Document)
		}
		if s.Source != "" {
			repro := filepath.Join(dir, base+".fountain")
			if err := os.WriteFile(repro, []byte(s.Source), 0o644); err == nil {
				fmt.Fprintf(&buf, "Input copy: %s (%d bytes)\n", repro, len(s.Source))
			}
		}
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	return path, nil
}
