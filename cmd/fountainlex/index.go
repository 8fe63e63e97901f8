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
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fountainlex/internal/backend"
	applog "fountainlex/internal/log"
	"fountainlex/internal/script"
	"fountainlex/internal/storage"
)

// docPath is the key a file is stored under in the index and the backend.
func docPath(file string) string {
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return filepath.Clean(file)
}

// indexPath resolves the index for file: --db, then config, then the
// directory of file (or the working directory when file is empty).
func (a *app) indexPath(flag, file string) string {
	if flag != "" {
		return flag
	}
	if file == "" {
		if a.cfg.Index.Path != "" {
			return a.cfg.Index.Path
		}
		return storage.DefaultIndexPath(".")
	}
	return a.cfg.IndexPathFor(file)
}

// openIndex opens the index, recreating it when it is unusable.
func (a *app) openIndex(ctx context.Context, path string) (*sql.DB, error) {
	db, rebuilt, err := storage.OpenIndexChecked(ctx, path)
	if err != nil {
		return nil, err
	}
	if rebuilt {
		fmt.Fprintf(a.errOut, "warning: index %s was unusable and has been recreated; re-index your documents\n", path)
	}
	return db, nil
}

func newIndexCmd(a *app) *cobra.Command {
	var (
		dbPath string
		remove bool
		lf     lexerFlags
	)
	cmd := &cobra.Command{
		Use:   "index <file>...",
		Short: "Add documents to the span index",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := lf.apply(a.cfg.Lexer)
			for _, file := range args {
				db, err := a.openIndex(ctx, a.indexPath(dbPath, file))
				if err != nil {
					return err
				}
				err = a.indexOne(ctx, db, file, opts, remove)
				_ = db.Close()
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	dbFlag(cmd.Flags(), &dbPath)
	cmd.Flags().BoolVar(&remove, "remove", false, "drop the documents from the index instead")
	lf.register(cmd.Flags())
	return cmd
}

func (a *app) indexOne(ctx context.Context, db *sql.DB, file string, opts script.Options, remove bool) error {
	key := docPath(file)
	if remove {
		if err := storage.RemoveDocument(ctx, db, key); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "removed %s\n", file)
		return nil
	}
	_, src, err := a.readInput(file)
	if err != nil {
		return err
	}
	spans, _, err := script.LexContext(ctx, src, opts)
	if err != nil {
		return err
	}
	n, err := storage.IndexDocument(ctx, db, key, src, spans)
	if err != nil {
		return fmt.Errorf("index %s: %w", file, err)
	}
	fmt.Fprintf(a.out, "indexed %s: %d spans\n", file, n)
	return nil
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		dbPath string
		q      storage.SearchQuery
		remote bool
	)
	cmd := &cobra.Command{
		Use:   "search [words]...",
		Short: "Search indexed spans",
		Long: `Search the span index. Every word must occur in a matching span; search
operators are taken literally. Without words, spans are listed by the
--kind, --character and --path filters alone. With --backend the shared
Postgres store is searched instead of the local index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			q.Text = strings.Join(args, " ")
			if q.Path != "" {
				q.Path = docPath(q.Path)
			}
			var (
				res []storage.SearchResult
				err error
			)
			if remote {
				res, err = a.searchBackend(ctx, q)
			} else {
				var db *sql.DB
				db, err = a.openIndex(ctx, a.indexPath(dbPath, ""))
				if err != nil {
					return err
				}
				defer db.Close()
				res, err = storage.Search(ctx, db, q)
			}
			if err != nil {
				return err
			}
			for _, r := range res {
				text := r.Snippet
				if text == "" {
					text = firstLine(r.Text)
				}
				who := ""
				if r.Character != "" {
					who = " " + r.Character + ":"
				}
				fmt.Fprintf(a.out, "%s:%d: %s%s %s\n", r.Path, r.Line, r.Kind, who, text)
			}
			applog.WithComponent("cli").Debug("search done", slog.Int("results", len(res)), slog.Bool("backend", remote))
			return nil
		},
	}
	dbFlag(cmd.Flags(), &dbPath)
	cmd.Flags().Var(kindsValue{&q.Kinds}, "kind", "restrict to a span kind (repeatable or comma-separated)")
	cmd.Flags().StringVar(&q.Character, "character", "", "restrict to spans spoken by this character")
	cmd.Flags().StringVar(&q.Path, "path", "", "restrict to one document")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "maximum number of results")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "number of results to skip")
	cmd.Flags().BoolVar(&remote, "backend", false, "search the Postgres backend")
	return cmd
}

func (a *app) searchBackend(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.Backend.TimeoutMs)*time.Millisecond)
	defer cancel()
	db, err := backend.Open(ctx, a.cfg.Backend.DSN)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return backend.SearchSpans(ctx, db, q)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func newStatsCmd(a *app) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "stats [file]",
		Short: "Show span counts and speaking characters from the index",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var file, key string
			if len(args) == 1 {
				file, key = args[0], docPath(args[0])
			}
			db, err := a.openIndex(ctx, a.indexPath(dbPath, file))
			if err != nil {
				return err
			}
			defer db.Close()
			if key != "" {
				if _, err := storage.Document(ctx, db, key); err != nil {
					return err
				}
			}
			counts, err := storage.CountByKind(ctx, db, key)
			if err != nil {
				return err
			}
			chars, err := storage.Characters(ctx, db, key)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			kinds := make([]script.Kind, 0, len(counts))
			for k := range counts {
				kinds = append(kinds, k)
			}
			sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
			for _, k := range kinds {
				fmt.Fprintf(tw, "%s\t%d\n", k, counts[k])
			}
			if len(chars) > 0 {
				fmt.Fprintln(tw, "\nCHARACTER\tBLOCKS")
				for _, c := range chars {
					fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.Blocks)
				}
			}
			return tw.Flush()
		},
	}
	dbFlag(cmd.Flags(), &dbPath)
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		dbPath string
		limit  int
		keep   int
		show   int
	)
	cmd := &cobra.Command{
		Use:   "history <file>",
		Short: "List or prune the indexed versions of a document",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.openIndex(ctx, a.indexPath(dbPath, args[0]))
			if err != nil {
				return err
			}
			defer db.Close()
			key := docPath(args[0])
			if keep > 0 {
				n, err := storage.PruneSnapshots(ctx, db, key, keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "pruned %d snapshots\n", n)
				return nil
			}
			snaps, err := storage.ListSnapshots(ctx, db, key, limit)
			if err != nil {
				return err
			}
			if show > 0 {
				if show > len(snaps) {
					return fmt.Errorf("only %d snapshots of %s", len(snaps), args[0])
				}
				_, err := fmt.Fprint(a.out, snaps[show-1].Text)
				return err
			}
			for i, s := range snaps {
				fmt.Fprintf(a.out, "%d\t%s\t%s\t%d bytes\n", i+1, s.TS.Local().Format(time.DateTime), s.SHA256[:12], len(s.Text))
			}
			return nil
		},
	}
	dbFlag(cmd.Flags(), &dbPath)
	cmd.Flags().IntVar(&limit, "limit", 20, "number of versions to list")
	cmd.Flags().IntVar(&keep, "prune", 0, "keep only the newest N versions")
	cmd.Flags().IntVar(&show, "show", 0, "print the text of version N (1 = newest)")
	return cmd
}
