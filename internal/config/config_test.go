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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codescribe/pkg/docgen"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	cfg.Provider = "mock"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Hour, cfg.Retention())
	assert.Equal(t, int64(5<<20), cfg.MaxFileBytes)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := writeFile(t, "codescribe.yaml", `
provider: ollama
model: codellama:13b
style: numpy
verbosity: high
output_format: html
max_concurrent_files: 2
max_concurrent_calls: 3
retry_limit: 5
job_retention_seconds: 120
fail_fast: true
providers:
  ollama:
    base_url: http://gpu-box:11434
    timeout_seconds: 30
`)
	t.Setenv("CODESCRIBE_MAX_CONCURRENT_CALLS", "6")
	t.Setenv("CODESCRIBE_LISTEN_ADDR", "127.0.0.1:9000")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, 2, cfg.MaxConcurrentFiles)
	assert.Equal(t, 6, cfg.MaxConcurrentCalls, "env wins over file")
	assert.Equal(t, 5, cfg.RetryLimit)
	assert.True(t, cfg.FailFast)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, 2*time.Minute, cfg.Retention())

	opts := cfg.Options()
	assert.Equal(t, docgen.StyleNumPy, opts.Style)
	assert.Equal(t, docgen.VerbosityHigh, opts.Verbosity)
	assert.Equal(t, docgen.FormatHTML, opts.Format)
	assert.True(t, opts.IncludeExamples)

	pc := cfg.ProviderConfig()
	assert.Equal(t, "ollama", pc.Type)
	assert.Equal(t, "codellama:13b", pc.DefaultModel)
	assert.Equal(t, "http://gpu-box:11434", pc.BaseURL)
	assert.Equal(t, 30*time.Second, pc.Timeout)
}

func TestLoad_EnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", "CODESCRIBE_PROVIDER=mock\nCODESCRIBE_RETRY_LIMIT=1\n")
	t.Cleanup(func() {
		os.Unsetenv("CODESCRIBE_PROVIDER")
		os.Unsetenv("CODESCRIBE_RETRY_LIMIT")
	})

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"), envFile)
	require.Error(t, err, "explicit config path must exist")
	assert.Nil(t, cfg)

	t.Chdir(t.TempDir())
	cfg, err = Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Provider)
	assert.Equal(t, 1, cfg.RetryLimit)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CODESCRIBE_PROVIDER", "mock")

	cfg, err := Load("", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Provider)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CODESCRIBE_PROVIDER", "mock")
	t.Setenv("CODESCRIBE_RETRY_LIMIT", "many")

	_, err := Load("", "")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero files", func(c *Config) { c.MaxConcurrentFiles = 0 }, "max_concurrent_files"},
		{"zero calls", func(c *Config) { c.MaxConcurrentCalls = 0 }, "max_concurrent_calls"},
		{"negative retries", func(c *Config) { c.RetryLimit = -1 }, "retry_limit"},
		{"zero retention", func(c *Config) { c.JobRetentionSeconds = 0 }, "job_retention_seconds"},
		{"unknown provider", func(c *Config) { c.Provider = "skynet" }, "unknown provider"},
		{"bad schedule", func(c *Config) { c.ReapSchedule = "every now and then" }, "reap_schedule"},
		{"unknown provider section", func(c *Config) {
			c.Providers = map[string]ProviderSettings{"skynet": {}}
		}, "providers: unknown provider"},
		{"bad verbosity", func(c *Config) { c.Verbosity = "loud" }, "verbosity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Provider = "mock"
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProviderNames_ExcludeSelected(t *testing.T) {
	cfg := Default()
	cfg.Provider = "anthropic"
	cfg.Model = "claude-3-5-sonnet"
	cfg.Providers = map[string]ProviderSettings{
		"ollama": {Model: "llama3", BaseURL: "http://gpu-box:11434"},
		"claude": {APIKey: "sk-test"},
		"mock":   {},
	}

	assert.Equal(t, []string{"mock", "ollama"}, cfg.ProviderNames())

	pc := cfg.ProviderConfigFor("ollama")
	assert.Equal(t, "ollama", pc.Type)
	assert.Equal(t, "llama3", pc.DefaultModel, "only the selected provider takes the top-level model")
	assert.Equal(t, "http://gpu-box:11434", pc.BaseURL)
}

func TestSave_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Provider = "deepseek"
	cfg.Providers = map[string]ProviderSettings{"deepseek": {Model: "deepseek-coder"}}

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
