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

package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cstest "github.com/kraklabs/codescribe/internal/testing"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/llm"
)

func TestService_DocumentFile_HighVerbosity(t *testing.T) {
	provider := cstest.NamedProvider()
	svc := NewService(newTestProcessor(t, provider, ProcessorConfig{}), docgen.DefaultOptions(), nil)

	resp := svc.DocumentFile(context.Background(), "tool.py", []byte(cstest.PythonThreeFunctions),
		docgen.Options{Verbosity: docgen.VerbosityHigh, Format: docgen.FormatMarkdown})

	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, "python", resp.Language)
	require.Len(t, resp.Units, 3)

	doc := resp.Documentation
	var last int
	for _, name := range []string{"parse", "render", "main"} {
		heading := "## Function: " + name
		idx := strings.Index(doc, heading)
		require.GreaterOrEqual(t, idx, 0, "missing section %q", heading)
		assert.GreaterOrEqual(t, idx, last)
		last = idx
		assert.Contains(t, doc, "Documentation for "+name+".")
	}
	assert.Equal(t, "documented 3 of 3 units", resp.Message)

	for _, prompt := range provider.Prompts() {
		assert.Contains(t, prompt, "Verbosity: high")
	}
}

func TestService_DocumentCode(t *testing.T) {
	svc := NewService(newTestProcessor(t, cstest.NamedProvider(), ProcessorConfig{}), docgen.DefaultOptions(), nil)

	resp := svc.DocumentCode(context.Background(), cstest.PythonTwoFunctions, "py", docgen.Options{Format: docgen.FormatInline})
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, docgen.FormatInline, resp.Format)
	assert.True(t, strings.HasPrefix(resp.Documentation, "# Documentation for add."), resp.Documentation)
	assert.Contains(t, resp.Documentation, cstest.PythonTwoFunctions[:len("def add(a, b):")])

	resp = svc.DocumentCode(context.Background(), "def f(): pass", "", docgen.Options{})
	assert.False(t, resp.Success)
	assert.Equal(t, "language is required", resp.Message)
}

func TestService_InvalidOptions(t *testing.T) {
	provider := cstest.NamedProvider()
	svc := NewService(newTestProcessor(t, provider, ProcessorConfig{}), docgen.DefaultOptions(), nil)

	resp := svc.DocumentFile(context.Background(), "a.py", []byte(cstest.PythonTwoFunctions), docgen.Options{Verbosity: "extreme"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "verbosity")
	assert.Zero(t, provider.Calls())
}

func TestService_AllUnitsFailed(t *testing.T) {
	svc := NewService(newTestProcessor(t, cstest.FailingProvider(llm.KindBadRequest), ProcessorConfig{}), docgen.DefaultOptions(), nil)

	resp := svc.DocumentFile(context.Background(), "a.py", []byte(cstest.PythonTwoFunctions), docgen.Options{})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "no unit could be documented")
	require.Len(t, resp.Units, 2)
	assert.Equal(t, "bad_request", resp.Units[0].Reason)
}

func TestService_AuthFailure(t *testing.T) {
	svc := NewService(newTestProcessor(t, cstest.FailingProvider(llm.KindAuthFailure), ProcessorConfig{}), docgen.DefaultOptions(), nil)

	resp := svc.DocumentFile(context.Background(), "a.py", []byte(cstest.PythonTwoFunctions), docgen.Options{})
	assert.False(t, resp.Success)
	assert.Equal(t, "provider scripted: auth_failure", resp.Message)
}
