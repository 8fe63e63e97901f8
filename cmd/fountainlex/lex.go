/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"fountainlex/internal/export"
	applog "fountainlex/internal/log"
	"fountainlex/internal/script"
)

func newLexCmd(a *app) *cobra.Command {
	var (
		format   string
		validate bool
		outDir   string
		lf       lexerFlags
	)
	cmd := &cobra.Command{
		Use:   "lex [file|-]...",
		Short: "Lex documents and print the span tree",
		Long: `Lex one or more Fountain documents and write the span tree as json, yaml or
text. With no file, or "-", the document is read from stdin. With --out the
trees are written to <out>/<name>.spans.<ext> instead of stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = a.cfg.Output.Format
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return usageError{err}
			}
			if !cmd.Flags().Changed("validate") {
				validate = a.cfg.Output.Validate
			}
			if len(args) == 0 {
				args = []string{"-"}
			}
			opts := lf.apply(a.cfg.Lexer)
			var docs []export.Document
			for _, arg := range args {
				doc, err := a.lexDocument(cmd, arg, opts)
				if err != nil {
					return err
				}
				if validate {
					if err := validateDocument(doc); err != nil {
						return err
					}
				}
				docs = append(docs, doc)
			}
			if outDir != "" {
				paths, err := export.Batch(docs, export.BatchOptions{Formats: []export.Format{f}, OutDir: outDir})
				for _, p := range paths {
					fmt.Fprintln(a.out, p)
				}
				return err
			}
			for _, doc := range docs {
				if err := export.Write(a.out, f, doc); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: json, yaml or text (default from config)")
	cmd.Flags().BoolVar(&validate, "validate", false, "check the JSON form against the span schema")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write one file per document into this directory")
	lf.register(cmd.Flags())
	return cmd
}

// lexDocument reads and lexes one input, logging its diagnostics.
func (a *app) lexDocument(cmd *cobra.Command, arg string, opts script.Options) (export.Document, error) {
	path, src, err := a.readInput(arg)
	if err != nil {
		return export.Document{}, err
	}
	ctx := applog.ContextWithDocument(cmd.Context(), path)
	spans, diags, err := script.LexContext(ctx, src, opts)
	if err != nil {
		return export.Document{}, err
	}
	l := applog.WithOperation(applog.WithComponent("cli"), "lex")
	for _, d := range diags {
		l.WarnContext(ctx, d.Message, slog.String("code", string(d.Code)), slog.Int("line", d.Line), slog.Int("col", d.Column))
	}
	l.DebugContext(ctx, "lexed", slog.Int("spans", len(spans)), slog.Int("diagnostics", len(diags)))
	return export.NewDocument(path, src, opts, spans, diags), nil
}

func validateDocument(doc export.Document) error {
	var buf bytes.Buffer
	if err := export.JSON(&buf, doc); err != nil {
		return err
	}
	if err := export.Validate(buf.Bytes()); err != nil {
		name := doc.Path
		if name == "" {
			name = "<stdin>"
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func newHighlightCmd(a *app) *cobra.Command {
	var (
		color string
		lf    lexerFlags
	)
	cmd := &cobra.Command{
		Use:   "highlight [file|-]",
		Short: "Print a document with terminal syntax highlighting",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := export.ParseColorMode(color)
			if err != nil {
				return usageError{err}
			}
			arg := "-"
			if len(args) == 1 {
				arg = args[0]
			}
			_, src, err := a.readInput(arg)
			if err != nil {
				return err
			}
			spans, _, err := script.LexContext(cmd.Context(), src, lf.apply(a.cfg.Lexer))
			if err != nil {
				return err
			}
			return export.Highlight(a.out, src, spans, export.HighlightOptions{Color: mode})
		},
	}
	cmd.Flags().StringVar(&color, "color", "auto", "when to color: auto, always or never")
	lf.register(cmd.Flags())
	return cmd
}
