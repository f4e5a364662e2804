// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the CodeScribe service configuration.
//
// Sources are applied in order, later ones winning:
//
//  1. built-in defaults (Default)
//  2. a .env file, when present (provider credentials such as
//     OPENAI_API_KEY end up in the process environment)
//  3. a YAML file (codescribe.yaml)
//  4. CODESCRIBE_* environment variables
//
// Environment Variables:
//   - CODESCRIBE_PROVIDER, CODESCRIBE_MODEL: default provider and model
//   - CODESCRIBE_LISTEN_ADDR: HTTP listen address (default :8080)
//   - CODESCRIBE_EXPORT_PATH: SQLite file for exports
//   - CODESCRIBE_MAX_CONCURRENT_FILES, CODESCRIBE_MAX_CONCURRENT_UNITS,
//     CODESCRIBE_MAX_CONCURRENT_CALLS: concurrency caps
//   - CODESCRIBE_RETRY_LIMIT: retries for transient provider failures
//   - CODESCRIBE_JOB_RETENTION_SECONDS: how long finished jobs stay readable
//   - CODESCRIBE_FAIL_FAST: fail a job as soon as one file fails
//
// Provider credentials are read by pkg/llm directly: OPENAI_API_KEY,
// DEEPSEEK_API_KEY, ANTHROPIC_API_KEY, OLLAMA_HOST, HF_API_TOKEN.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/llm"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "codescribe.yaml"

// Config is the complete service configuration.
type Config struct {
	// Generation
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	Style        string `yaml:"style"`
	Verbosity    string `yaml:"verbosity"`
	OutputFormat string `yaml:"output_format"`
	DocLanguage  string `yaml:"doc_language,omitempty"`

	// Concurrency and retries
	MaxConcurrentFiles int `yaml:"max_concurrent_files"`
	MaxConcurrentUnits int `yaml:"max_concurrent_units"`
	MaxConcurrentCalls int `yaml:"max_concurrent_calls"`
	RetryLimit         int `yaml:"retry_limit"`
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`

	// Batch limits
	MaxFiles      int   `yaml:"max_files"`
	MaxFileBytes  int64 `yaml:"max_file_bytes"`
	MaxBatchBytes int64 `yaml:"max_batch_bytes"`
	FailFast      bool  `yaml:"fail_fast"`

	// Retention
	JobRetentionSeconds int    `yaml:"job_retention_seconds"`
	ReapSchedule        string `yaml:"reap_schedule"`

	// Service
	ListenAddr string `yaml:"listen_addr"`
	ExportPath string `yaml:"export_path"`

	// Providers holds per-provider overrides keyed by provider type.
	Providers map[string]ProviderSettings `yaml:"providers,omitempty"`
}

// ProviderSettings overrides the connection settings of one provider.
type ProviderSettings struct {
	BaseURL        string `yaml:"base_url,omitempty"`
	APIKey         string `yaml:"api_key,omitempty"`
	Model          string `yaml:"model,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Verbosity:           string(docgen.VerbosityMedium),
		OutputFormat:        string(docgen.FormatMarkdown),
		MaxConcurrentFiles:  4,
		MaxConcurrentUnits:  4,
		MaxConcurrentCalls:  8,
		RetryLimit:          3,
		CallTimeoutSeconds:  90,
		MaxFiles:            100,
		MaxFileBytes:        5 << 20,
		MaxBatchBytes:       50 << 20,
		JobRetentionSeconds: 3600,
		ReapSchedule:        "@every 30s",
		ListenAddr:          ":8080",
		ExportPath:          "codescribe-exports.db",
	}
}

// Load builds the configuration from envFile, path and the environment.
// Missing default files are not an error; a path given explicitly must exist.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Provider == "" {
		cfg.Provider = llm.DetectProviderType()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"CODESCRIBE_PROVIDER":      &c.Provider,
		"CODESCRIBE_MODEL":         &c.Model,
		"CODESCRIBE_STYLE":         &c.Style,
		"CODESCRIBE_VERBOSITY":     &c.Verbosity,
		"CODESCRIBE_OUTPUT_FORMAT": &c.OutputFormat,
		"CODESCRIBE_LISTEN_ADDR":   &c.ListenAddr,
		"CODESCRIBE_EXPORT_PATH":   &c.ExportPath,
		"CODESCRIBE_REAP_SCHEDULE": &c.ReapSchedule,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"CODESCRIBE_MAX_CONCURRENT_FILES":  &c.MaxConcurrentFiles,
		"CODESCRIBE_MAX_CONCURRENT_UNITS":  &c.MaxConcurrentUnits,
		"CODESCRIBE_MAX_CONCURRENT_CALLS":  &c.MaxConcurrentCalls,
		"CODESCRIBE_RETRY_LIMIT":           &c.RetryLimit,
		"CODESCRIBE_JOB_RETENTION_SECONDS": &c.JobRetentionSeconds,
		"CODESCRIBE_MAX_FILES":             &c.MaxFiles,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, v)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("CODESCRIBE_FAIL_FAST"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: CODESCRIBE_FAIL_FAST=%q is not a boolean", ErrInvalid, v)
		}
		c.FailFast = b
	}
	return nil
}

// Validate checks ranges and enum values.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.MaxConcurrentFiles >= 1, "max_concurrent_files must be at least 1")
	check(c.MaxConcurrentUnits >= 1, "max_concurrent_units must be at least 1")
	check(c.MaxConcurrentCalls >= 1, "max_concurrent_calls must be at least 1")
	check(c.RetryLimit >= 0, "retry_limit must not be negative")
	check(c.CallTimeoutSeconds >= 0, "call_timeout_seconds must not be negative")
	check(c.MaxFiles >= 0, "max_files must not be negative")
	check(c.MaxFileBytes >= 0, "max_file_bytes must not be negative")
	check(c.MaxBatchBytes >= 0, "max_batch_bytes must not be negative")
	check(c.JobRetentionSeconds > 0, "job_retention_seconds must be positive")

	if c.Provider != "" {
		if _, ok := knownProviders[c.Provider]; !ok {
			problems = append(problems, fmt.Sprintf("unknown provider %q (supported: %s)", c.Provider, strings.Join(llm.SupportedProviders(), ", ")))
		}
	}
	for _, name := range c.ProviderNames() {
		if _, ok := knownProviders[name]; !ok {
			problems = append(problems, fmt.Sprintf("providers: unknown provider %q", name))
		}
	}
	if c.ReapSchedule != "" {
		if _, err := cron.ParseStandard(c.ReapSchedule); err != nil {
			problems = append(problems, fmt.Sprintf("reap_schedule: %v", err))
		}
	}
	if err := c.Options().Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

var knownProviders = map[string]struct{}{
	llm.ProviderOpenAI:      {},
	"openai-compatible":     {},
	llm.ProviderDeepSeek:    {},
	llm.ProviderAnthropic:   {},
	"claude":                {},
	llm.ProviderOllama:      {},
	"local":                 {},
	llm.ProviderHuggingFace: {},
	"hf":                    {},
	"tgi":                   {},
	llm.ProviderMock:        {},
	"test":                  {},
}

// Options returns the default generation options.
func (c *Config) Options() docgen.Options {
	opts := docgen.DefaultOptions()
	opts.Provider = c.Provider
	opts.Model = c.Model
	opts.Style = docgen.Style(c.Style)
	if c.Verbosity != "" {
		opts.Verbosity = docgen.Verbosity(c.Verbosity)
	}
	if c.OutputFormat != "" {
		opts.Format = docgen.ParseFormat(c.OutputFormat)
	}
	opts.DocLanguage = c.DocLanguage
	return opts
}

// ProviderConfig returns the adapter configuration of the selected provider.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	pc := c.ProviderConfigFor(c.Provider)
	if c.Model != "" {
		pc.DefaultModel = c.Model
	}
	return pc
}

// ProviderConfigFor returns the adapter configuration of name from the
// providers section.
func (c *Config) ProviderConfigFor(name string) llm.ProviderConfig {
	pc := llm.ProviderConfig{Type: name}
	if s, ok := c.Providers[name]; ok {
		pc.BaseURL = s.BaseURL
		pc.APIKey = s.APIKey
		pc.DefaultModel = s.Model
		if s.TimeoutSeconds > 0 {
			pc.Timeout = time.Duration(s.TimeoutSeconds) * time.Second
		}
	}
	return pc
}

// ProviderNames lists the providers with a section other than the
// selected one, sorted. Each gets its own adapter.
func (c *Config) ProviderNames() []string {
	var names []string
	for name := range c.Providers {
		if llm.CanonicalName(name) != llm.CanonicalName(c.Provider) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Retention is the job retention as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.JobRetentionSeconds) * time.Second
}

// CallTimeout bounds a single provider attempt.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}
