/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"fountainlex/internal/script"

	"gopkg.in/yaml.v3"
)

type OutputConfig struct {
	Format   string `yaml:"format"` // "json" | "yaml" | "text"
	Validate bool   `yaml:"validate"`
}

type IndexConfig struct {
	// Path of the SQLite span index. Empty means <document dir>/.flx/index.sqlite.
	Path string `yaml:"path"`
}

type BackendConfig struct {
	DSN       string `yaml:"dsn"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the user configuration persisted as YAML in the user scope.
// Keys missing from the file keep their defaults; environment variables are
// read-only overrides applied on top at load time.
//
// config_version: bump when the structure changes incompatibly.
type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	Lexer         script.Options `yaml:"lexer"`
	Output        OutputConfig   `yaml:"output"`
	Index         IndexConfig    `yaml:"index"`
	Backend       BackendConfig  `yaml:"backend"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Lexer:         script.DefaultOptions(),
		Output:        OutputConfig{Format: "json"},
		Backend:       BackendConfig{TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvCaseInsensitive = "FLX_CASE_INSENSITIVE_KEYWORDS"
	EnvForcedMarkers   = "FLX_FORCED_MARKERS"
	EnvOutputFormat    = "FLX_OUTPUT_FORMAT"
	EnvOutputValidate  = "FLX_OUTPUT_VALIDATE"
	EnvIndexPath       = "FLX_INDEX_PATH"
	EnvPgDSN           = "FLX_PG_DSN"
	EnvPgTimeoutMs     = "FLX_PG_TIMEOUT_MS"

	EnvLogLevel  = "FLX_LOG_LEVEL"
	EnvLogFormat = "FLX_LOG_FORMAT"
	EnvLogSource = "FLX_LOG_SOURCE"
	EnvLogFile   = "FLX_LOG_FILE"
)

// envKeys maps dotted config keys to their override variables.
var envKeys = map[string]string{
	"lexer.case_insensitive_keywords": EnvCaseInsensitive,
	"lexer.recognize_forced_markers":  EnvForcedMarkers,
	"output.format":                   EnvOutputFormat,
	"output.validate":                 EnvOutputValidate,
	"index.path":                      EnvIndexPath,
	"backend.dsn":                     EnvPgDSN,
	"backend.timeout_ms":              EnvPgTimeoutMs,
	"logging.level":                   EnvLogLevel,
	"logging.format":                  EnvLogFormat,
	"logging.source":                  EnvLogSource,
	"logging.file":                    EnvLogFile,
}

var (
	ErrUnknownFormat = errors.New("unknown output format")
	ErrUnknownLogFmt = errors.New("unknown log format")
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "fountainlex")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "fountainlex")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "fountainlex")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "fountainlex")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the config file at path (the per-user path when empty), applies
// defaults for missing keys and merges environment overrides. A missing file
// is not an error.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	normalize(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

// Save writes cfg as YAML to path (the per-user path when empty).
func Save(cfg AppConfig, path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks the enumerated fields.
func (c AppConfig) Validate() error {
	switch c.Output.Format {
	case "json", "yaml", "text":
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, c.Output.Format)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w %q", ErrUnknownLogFmt, c.Logging.Format)
	}
	return nil
}

func normalize(c *AppConfig) {
	lower := func(s *string, def string) {
		*s = strings.ToLower(strings.TrimSpace(*s))
		if *s == "" {
			*s = def
		}
	}
	lower(&c.Output.Format, "json")
	lower(&c.Logging.Level, "info")
	lower(&c.Logging.Format, "console")
	c.Index.Path = strings.TrimSpace(c.Index.Path)
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	if c.Backend.TimeoutMs <= 0 {
		c.Backend.TimeoutMs = Defaults().Backend.TimeoutMs
	}
}

func envBool(key string, dst *bool) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "on", "yes":
			*dst = true
		case "0", "false", "off", "no":
			*dst = false
		}
	}
}

func envString(key string, dst *string, lower bool) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if lower {
			v = strings.ToLower(v)
		}
		*dst = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	envBool(EnvCaseInsensitive, &cfg.Lexer.CaseInsensitiveKeywords)
	envBool(EnvForcedMarkers, &cfg.Lexer.RecognizeForcedMarkers)
	envString(EnvOutputFormat, &cfg.Output.Format, true)
	envBool(EnvOutputValidate, &cfg.Output.Validate)
	envString(EnvIndexPath, &cfg.Index.Path, false)
	envString(EnvPgDSN, &cfg.Backend.DSN, false)
	if v := strings.TrimSpace(os.Getenv(EnvPgTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Backend.TimeoutMs = n
		}
	}
	envString(EnvLogLevel, &cfg.Logging.Level, true)
	envString(EnvLogFormat, &cfg.Logging.Format, true)
	envBool(EnvLogSource, &cfg.Logging.Source)
	envString(EnvLogFile, &cfg.Logging.File, false)
}

// EnvOverrideFor returns the env var name if the dotted key is currently
// overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || strings.TrimSpace(os.Getenv(name)) == "" {
		return "", false
	}
	return name, true
}

// EnvKeys returns the dotted config keys that have an environment override,
// sorted.
func EnvKeys() []string {
	keys := make([]string, 0, len(envKeys))
	for k := range envKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IndexPathFor returns the span index location for a document.
func (c AppConfig) IndexPathFor(docPath string) string {
	if c.Index.Path != "" {
		return c.Index.Path
	}
	return filepath.Join(filepath.Dir(docPath), ".flx", "index.sqlite")
}
