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

package llm

import (
	"os"
)

// DefaultProvider creates a provider from environment variables.
// Checks in order: OPENAI_API_KEY, DEEPSEEK_API_KEY, ANTHROPIC_API_KEY,
// OLLAMA_HOST, HF_API_TOKEN. Falls back to mock if nothing is configured.
func DefaultProvider() (Provider, error) {
	return NewProvider(ProviderConfig{Type: DetectProviderType()})
}

// DetectProviderType returns the provider type implied by the environment.
func DetectProviderType() string {
	switch {
	case os.Getenv("OPENAI_API_KEY") != "":
		return ProviderOpenAI
	case os.Getenv("DEEPSEEK_API_KEY") != "":
		return ProviderDeepSeek
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		return ProviderAnthropic
	case os.Getenv("OLLAMA_HOST") != "" || os.Getenv("OLLAMA_MODEL") != "":
		return ProviderOllama
	case os.Getenv("HF_API_TOKEN") != "" || os.Getenv("HF_BASE_URL") != "":
		return ProviderHuggingFace
	default:
		return ProviderMock
	}
}

// ProviderInfo describes a provider for discovery endpoints.
type ProviderInfo struct {
	Name         string `json:"name"`
	Hosted       bool   `json:"hosted"`
	DefaultModel string `json:"default_model"`
	Configured   bool   `json:"configured"`
}

// DescribeProviders reports every supported provider and whether the
// environment carries credentials for it.
func DescribeProviders() []ProviderInfo {
	infos := make([]ProviderInfo, 0, len(SupportedProviders()))
	for _, name := range SupportedProviders() {
		info := ProviderInfo{Name: name}
		switch name {
		case ProviderOpenAI:
			info.Hosted = true
			info.DefaultModel = firstNonEmpty(os.Getenv("OPENAI_MODEL"), "gpt-4o-mini")
			info.Configured = os.Getenv("OPENAI_API_KEY") != ""
		case ProviderDeepSeek:
			info.Hosted = true
			info.DefaultModel = "deepseek-coder"
			info.Configured = os.Getenv("DEEPSEEK_API_KEY") != ""
		case ProviderAnthropic:
			info.Hosted = true
			info.DefaultModel = firstNonEmpty(os.Getenv("ANTHROPIC_MODEL"), "claude-3-5-haiku-20241022")
			info.Configured = os.Getenv("ANTHROPIC_API_KEY") != ""
		case ProviderOllama:
			info.DefaultModel = firstNonEmpty(os.Getenv("OLLAMA_MODEL"), "codellama")
			info.Configured = true
		case ProviderHuggingFace:
			info.Hosted = os.Getenv("HF_BASE_URL") == ""
			info.DefaultModel = firstNonEmpty(os.Getenv("HF_MODEL"), "bigcode/starcoder2-15b")
			info.Configured = os.Getenv("HF_API_TOKEN") != "" || os.Getenv("HF_BASE_URL") != ""
		case ProviderMock:
			info.DefaultModel = "mock-model"
			info.Configured = true
		}
		infos = append(infos, info)
	}
	return infos
}
