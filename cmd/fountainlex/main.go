/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command fountainlex lexes Fountain screenplays into tagged spans and keeps
// a searchable index of them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fountainlex/internal/config"
	"fountainlex/internal/crash"
	applog "fountainlex/internal/log"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// app is the state shared by all commands of one invocation.
type app struct {
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	cfgPath string
	logLvl  string
	cfg     config.AppConfig
	sess    *crash.Session
}

// usageError marks errors caused by a malformed command line.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// usageArgs wraps a positional-argument validator so its failures count as
// usage errors.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{in: in, out: out, errOut: errOut, sess: &crash.Session{}}
	defer crash.Recover(a.sess)
	defer func() { _ = applog.Close() }()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(errOut, "Error: %v\n", err)
	var ue usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(errOut, "Run '%s --help' for usage.\n", root.Name())
		return exitUsage
	}
	applog.WithComponent("cli").Error("command failed", slog.String("cmd", a.sess.Command), slog.Any("err", err))
	return exitError
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "fountainlex",
		Short: "Lex Fountain screenplays into tagged spans",
		Long: `fountainlex classifies the lines of a Fountain screenplay (scene headings,
action, dialogue, transitions, emphasis, comments) into a tree of tagged
byte spans, renders it as JSON, YAML or text, highlights it in the terminal
and keeps a searchable SQLite index of it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default: per-user config.yaml)")
	root.PersistentFlags().StringVar(&a.logLvl, "log-level", "", "log level override: debug, info, warn, error")

	root.AddCommand(
		newLexCmd(a),
		newHighlightCmd(a),
		newIndexCmd(a),
		newSearchCmd(a),
		newStatsCmd(a),
		newHistoryCmd(a),
		newPublishCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads the configuration and initializes logging for the command.
func (a *app) setup(cmd *cobra.Command) error {
	a.sess.Command = cmd.Name()
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLvl != "" {
		cfg.Logging.Level = strings.ToLower(a.logLvl)
	}
	a.cfg = cfg
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Output:    a.errOut,
	})
	applog.WithComponent("cli").Debug("start", slog.String("cmd", cmd.CommandPath()))
	return nil
}

// readInput returns the document named by arg; "" and "-" read stdin and
// report an empty path.
func (a *app) readInput(arg string) (path, src string, err error) {
	var data []byte
	if arg == "" || arg == "-" {
		data, err = io.ReadAll(a.in)
	} else {
		path = arg
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return "", "", fmt.Errorf("read input: %w", err)
	}
	a.sess.Document = path
	a.sess.Source = string(data)
	return path, string(data), nil
}
