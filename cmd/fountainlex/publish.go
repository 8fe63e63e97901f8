/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fountainlex/internal/backend"
	"fountainlex/internal/script"
)

func newPublishCmd(a *app) *cobra.Command {
	var (
		dsn    string
		remove bool
		lf     lexerFlags
	)
	cmd := &cobra.Command{
		Use:   "publish <file>...",
		Short: "Publish documents to the shared Postgres span store",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = a.cfg.Backend.DSN
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(a.cfg.Backend.TimeoutMs)*time.Millisecond)
			defer cancel()
			db, err := backend.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer db.Close()
			opts := lf.apply(a.cfg.Lexer)
			for _, file := range args {
				key := docPath(file)
				if remove {
					if err := backend.UnpublishDocument(ctx, db, key); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "unpublished %s\n", file)
					continue
				}
				_, src, err := a.readInput(file)
				if err != nil {
					return err
				}
				spans, _, err := script.LexContext(ctx, src, opts)
				if err != nil {
					return err
				}
				n, err := backend.PublishDocument(ctx, db, key, src, spans)
				if err != nil {
					return fmt.Errorf("publish %s: %w", file, err)
				}
				fmt.Fprintf(a.out, "published %s: %d spans\n", file, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection string (default: config backend.dsn or FLX_PG_DSN)")
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the documents from the store instead")
	lf.register(cmd.Flags())
	return cmd
}
