/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders lexed screenplays as JSON, YAML or an indented text
// tree, and validates the JSON form against the bundled span schema.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fountainlex/internal/script"
	"fountainlex/internal/version"

	"gopkg.in/yaml.v3"
)

// Format names an output rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatText:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown format: %s", s)
}

// Ext returns the file extension used for f.
func (f Format) Ext() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// Document is the exported form of one lexed screenplay.
type Document struct {
	Path        string              `json:"path,omitempty" yaml:"path,omitempty"`
	Generator   string              `json:"generator" yaml:"generator"`
	Options     script.Options      `json:"options" yaml:"options"`
	Length      int                 `json:"length" yaml:"length"`
	Spans       []script.Span       `json:"spans" yaml:"spans"`
	Diagnostics []script.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// NewDocument wraps a lex result.
func NewDocument(path, src string, opts script.Options, spans []script.Span, diags []script.Diagnostic) Document {
	if spans == nil {
		spans = []script.Span{}
	}
	return Document{
		Path:        path,
		Generator:   "fountainlex " + version.String(),
		Options:     opts,
		Length:      len(src),
		Spans:       spans,
		Diagnostics: diags,
	}
}

// Write renders doc in format f.
func Write(w io.Writer, f Format, doc Document) error {
	switch f {
	case FormatJSON:
		return JSON(w, doc)
	case FormatYAML:
		return YAML(w, doc)
	case FormatText:
		return Text(w, doc)
	default:
		return fmt.Errorf("unknown format: %s", f)
	}
}

// JSON writes doc as indented JSON.
func JSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// YAML writes doc as a YAML document.
func YAML(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// BatchOptions controls writing several documents at once.
//
// Each document is written to <OutDir>/<base name>.spans.<ext> for every
// format. An empty OutDir writes next to the source document.
type BatchOptions struct {
	Formats []Format
	OutDir  string
}

// Batch writes every document in every requested format and returns the
// paths written.
func Batch(docs []Document, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON}
	}
	var written []string
	for i, doc := range docs {
		name := fmt.Sprintf("document-%d", i+1)
		dir := opt.OutDir
		if doc.Path != "" {
			name = strings.TrimSuffix(filepath.Base(doc.Path), filepath.Ext(doc.Path))
			if dir == "" {
				dir = filepath.Dir(doc.Path)
			}
		}
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return written, fmt.Errorf("create %s: %w", dir, err)
		}
		for _, f := range formats {
			out := filepath.Join(dir, name+".spans."+f.Ext())
			if err := writeFile(out, f, doc); err != nil {
				return written, fmt.Errorf("%s %s: %w", f, name, err)
			}
			written = append(written, out)
		}
	}
	return written, nil
}

func writeFile(path string, f Format, doc Document) (err error) {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return Write(fh, f, doc)
}
