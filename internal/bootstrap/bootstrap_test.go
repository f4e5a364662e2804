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

package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codescribe/internal/config"
	cstest "github.com/kraklabs/codescribe/internal/testing"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/jobs"
	"github.com/kraklabs/codescribe/pkg/llm"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Provider = "mock"
	cfg.ExportPath = ":memory:"
	cfg.ReapSchedule = ""
	return cfg
}

func TestNew_DocumentsBatch(t *testing.T) {
	app, err := New(testConfig(), Options{
		Provider: cstest.NamedProvider(),
		Counter:  docgen.EstimateCounter{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	require.NotNil(t, app.Exports)
	assert.Equal(t, 8, app.Limiter.Status().Capacity)

	id, err := app.Jobs.Submit(context.Background(), []pipeline.FileInput{
		{Filename: "calc.py", Content: []byte(cstest.PythonTwoFunctions)},
	}, docgen.Options{})
	require.NoError(t, err)

	cstest.Eventually(t, 5*time.Second, func() bool {
		snap, err := app.Jobs.Status(id)
		require.NoError(t, err)
		return snap.Status.Terminal()
	})
	res, err := app.Jobs.Result(id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, res.Status)
	assert.Equal(t, 2, res.Files[0].Metadata.DocumentedUnits)
}

func TestNew_MockProviderFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ExportPath = ""

	app, err := New(cfg, Options{Counter: docgen.EstimateCounter{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	assert.Equal(t, "mock", app.Provider.Name())
	assert.Nil(t, app.Exports)

	resp := app.Service.DocumentCode(context.Background(), cstest.PythonTwoFunctions, "python", docgen.Options{})
	assert.True(t, resp.Success, resp.Message)
}

func TestNew_ProvidersSection(t *testing.T) {
	cfg := testConfig()
	cfg.ExportPath = ""
	cfg.Providers = map[string]config.ProviderSettings{"ollama": {Model: "llama3"}}

	app, err := New(cfg, Options{Counter: docgen.EstimateCounter{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	assert.Equal(t, []string{"mock", "ollama"}, app.Providers.Names())
	p, err := app.Providers.Get("ollama")
	require.NoError(t, err)
	mp, ok := p.(llm.ModelProvider)
	require.True(t, ok)
	assert.Equal(t, "llama3", mp.DefaultModel())
}

func TestNew_RoutesByProviderOption(t *testing.T) {
	cfg := testConfig()
	cfg.ExportPath = ""
	cfg.Model = "mock-large"
	local := cstest.NamedProvider().WithName("ollama")

	app, err := New(cfg, Options{
		Provider: cstest.NamedProvider(),
		Extra:    []llm.Provider{local},
		Counter:  docgen.EstimateCounter{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	resp := app.Service.DocumentCode(context.Background(), cstest.PythonTwoFunctions, "python", docgen.Options{Provider: "ollama"})
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, "ollama", resp.Metadata.Provider)
	assert.Equal(t, 2, local.Calls())

	resp = app.Service.DocumentCode(context.Background(), cstest.PythonTwoFunctions, "python", docgen.Options{Provider: "anthropic"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "provider not configured")
	assert.Equal(t, 2, local.Calls())
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = "nope"

	_, err := New(cfg, Options{Counter: docgen.EstimateCounter{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create provider")
}
