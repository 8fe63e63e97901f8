/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"strings"

	"github.com/spf13/pflag"

	"fountainlex/internal/script"
)

// kindsValue is a repeatable --kind flag collecting span kinds.
type kindsValue struct{ kinds *[]script.Kind }

var _ pflag.Value = kindsValue{}

func (v kindsValue) String() string {
	if v.kinds == nil {
		return ""
	}
	names := make([]string, len(*v.kinds))
	for i, k := range *v.kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ",")
}

// Set accepts one kind or a comma-separated list.
func (v kindsValue) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := script.ParseKind(part)
		if err != nil {
			return err
		}
		*v.kinds = append(*v.kinds, k)
	}
	return nil
}

func (v kindsValue) Type() string { return "kind" }

// lexerFlags holds per-invocation overrides of the configured lexer options.
type lexerFlags struct {
	noForced      bool
	caseSensitive bool
}

func (f *lexerFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.noForced, "no-forced", false, "ignore the . ! @ > forcing prefixes")
	fs.BoolVar(&f.caseSensitive, "case-sensitive", false, "only upper-case scene heading keywords open a heading")
}

func (f *lexerFlags) apply(opts script.Options) script.Options {
	if f.noForced {
		opts.RecognizeForcedMarkers = false
	}
	if f.caseSensitive {
		opts.CaseInsensitiveKeywords = false
	}
	return opts
}

// dbFlag registers the --db flag shared by the index commands.
func dbFlag(fs *pflag.FlagSet, dst *string) {
	fs.StringVar(dst, "db", "", "span index file (default: config index.path or <file dir>/.flx/index.sqlite)")
}
