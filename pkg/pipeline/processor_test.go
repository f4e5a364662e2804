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
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cstest "github.com/kraklabs/codescribe/internal/testing"
	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/llm"
)

func newTestProcessor(t *testing.T, p llm.Provider, cfg ProcessorConfig) *Processor {
	t.Helper()
	dcfg := docgen.DefaultConfig()
	dcfg.Retry.InitialBackoff = time.Millisecond
	dcfg.Retry.MaxBackoff = 2 * time.Millisecond
	doc := docgen.NewDocumenter(p, dcfg, docgen.EstimateCounter{}, nil)
	return NewProcessor(extract.DefaultRegistry(nil), doc, cfg, nil)
}

func TestProcessor_Process(t *testing.T) {
	provider := cstest.NamedProvider()
	proc := newTestProcessor(t, provider, ProcessorConfig{})

	var seen atomic.Int32
	res := proc.Process(context.Background(), FileInput{
		Filename: "math.py",
		Content:  []byte(cstest.PythonTwoFunctions),
	}, docgen.DefaultOptions(), Hooks{OnUnit: func(docgen.DocumentedUnit) { seen.Add(1) }})

	require.Equal(t, FileDone, res.Status)
	assert.Empty(t, res.Error)
	assert.Equal(t, extract.LanguagePython, res.Language)
	require.Len(t, res.Units, 2)
	assert.Equal(t, "add", res.Units[0].Unit.Name)
	assert.Equal(t, "subtract", res.Units[1].Unit.Name)
	assert.EqualValues(t, 2, seen.Load())
	assert.Equal(t, 2, provider.Calls())

	assert.Equal(t, 2, res.Metadata.Units)
	assert.Equal(t, 2, res.Metadata.DocumentedUnits)
	assert.Equal(t, "scripted", res.Metadata.Provider)
	assert.Equal(t, "scripted-model", res.Metadata.Model)
	assert.False(t, res.Metadata.GeneratedAt.IsZero())
	require.NotNil(t, res.Artifact)
	assert.Contains(t, res.Artifact.Content, "Documentation for add.")
}

func TestProcessor_EmptyFile(t *testing.T) {
	provider := cstest.NamedProvider()
	proc := newTestProcessor(t, provider, ProcessorConfig{})

	for _, name := range []string{"empty.py", "EMPTY"} {
		res := proc.Process(context.Background(), FileInput{Filename: name}, docgen.DefaultOptions(), Hooks{})
		assert.Equal(t, FileDone, res.Status, name)
		assert.Empty(t, res.Units, name)
		assert.Empty(t, res.Error, name)
	}
	assert.Zero(t, provider.Calls())
}

func TestProcessor_FileRejections(t *testing.T) {
	tests := []struct {
		name string
		in   FileInput
		want error
	}{
		{
			name: "too large",
			in:   FileInput{Filename: "big.py", Content: []byte(strings.Repeat("x = 1\n", 100))},
			want: ErrFileTooLarge,
		},
		{
			name: "binary",
			in:   FileInput{Filename: "blob.py", Content: []byte{0x7f, 'E', 'L', 'F', 0, 0, 1, 0}},
			want: ErrBinaryContent,
		},
		{
			name: "unknown language",
			in:   FileInput{Filename: "notes", Content: []byte("just some words")},
			want: ErrUnknownLanguage,
		},
		{
			name: "unsupported language",
			in:   FileInput{Filename: "lib.rs", Content: []byte("fn main() {}\n")},
			want: extract.ErrUnsupportedLanguage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := cstest.NamedProvider()
			proc := newTestProcessor(t, provider, ProcessorConfig{MaxFileBytes: 64})

			_, err := proc.Prepare(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			res := proc.Process(context.Background(), tt.in, docgen.DefaultOptions(), Hooks{})
			assert.Equal(t, FileFailed, res.Status)
			assert.NotEmpty(t, res.Error)
			assert.Nil(t, res.Artifact)
			assert.Zero(t, provider.Calls())
		})
	}
}

func TestProcessor_ParseErrorDegrades(t *testing.T) {
	provider := cstest.NamedProvider()
	proc := newTestProcessor(t, provider, ProcessorConfig{})

	res := proc.Process(context.Background(), FileInput{
		Filename: "broken.py",
		Content:  []byte("def broken(:\n    pass\n"),
	}, docgen.DefaultOptions(), Hooks{})

	require.Equal(t, FileDone, res.Status)
	require.Len(t, res.Units, 1)
	assert.Equal(t, extract.KindModule, res.Units[0].Unit.Kind)
	assert.Equal(t, docgen.UnitOK, res.Units[0].Status)
	assert.Contains(t, res.Error, "single module")
	assert.Equal(t, 1, provider.Calls())
}

func TestProcessor_AuthFailureStopsDispatch(t *testing.T) {
	provider := cstest.FailingProvider(llm.KindAuthFailure)
	proc := newTestProcessor(t, provider, ProcessorConfig{MaxConcurrentUnits: 1})

	res := proc.Process(context.Background(), FileInput{
		Filename: "three.py",
		Content:  []byte(cstest.PythonThreeFunctions),
	}, docgen.DefaultOptions(), Hooks{})

	assert.Equal(t, llm.KindAuthFailure, res.Fatal)
	assert.Equal(t, 1, provider.Calls())
	require.Len(t, res.Units, 3)
	for _, du := range res.Units {
		assert.Equal(t, docgen.UnitFailed, du.Status)
	}
	assert.Zero(t, res.Metadata.DocumentedUnits)
}

func TestProcessor_ExplicitLanguage(t *testing.T) {
	proc := newTestProcessor(t, cstest.NamedProvider(), ProcessorConfig{})

	prep, err := proc.Prepare(FileInput{Filename: "upload.txt", Content: []byte(cstest.GoService), Language: "golang"})
	require.NoError(t, err)
	assert.Equal(t, extract.LanguageGo, prep.Language)
	assert.NotEmpty(t, prep.Units)
}

func TestProcessor_HTMLArtifactHasNoActiveContent(t *testing.T) {
	provider := cstest.NewScriptedProvider(func(n int, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
		return &llm.GenerateResponse{Text: `<p>Adds numbers.</p><script>alert(document.cookie)</script><img src=x onerror=alert(1)>`}, nil
	})
	proc := newTestProcessor(t, provider, ProcessorConfig{})

	opts := docgen.DefaultOptions()
	opts.Format = docgen.FormatHTML
	res := proc.Process(context.Background(), FileInput{
		Filename: "math.py",
		Content:  []byte(cstest.PythonTwoFunctions),
	}, opts, Hooks{})

	require.Equal(t, FileDone, res.Status)
	require.NotNil(t, res.Artifact)
	assert.Contains(t, res.Artifact.Content, `<div class="doc"><p>Adds numbers.</p><img src="x"/></div>`)
	assert.NotContains(t, res.Artifact.Content, "<script")
	assert.NotContains(t, res.Artifact.Content, "onerror")
}
