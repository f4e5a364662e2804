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

// Package llm provides a unified interface for Large Language Model providers.
//
// This package abstracts the differences between the hosted and local
// backends CodeScribe documents code with. Every backend exposes the same
// single-prompt Generate call and reports failures as a typed *Error, so the
// documenter can apply one retry policy regardless of provider.
//
// # Supported Providers
//
//   - OpenAI: GPT models through the official openai-go SDK
//   - DeepSeek: OpenAI-compatible endpoint, same SDK with another base URL
//   - Anthropic: Claude models over the Messages API
//   - Ollama: local models, no API key required
//   - HuggingFace: text-generation-inference servers or the hosted API
//   - Mock: for testing without real API calls
//
// # Quick Start
//
//	provider, err := llm.NewProvider(llm.ProviderConfig{
//	    Type:   "openai",
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := provider.Generate(ctx, llm.GenerateRequest{
//	    System: "You are a technical writer.",
//	    Prompt: "Document this Go function: ...",
//	})
//
// # Concurrency Limits
//
// A [Limiter] bounds provider calls across all jobs in the process. Wrap the
// provider once and share it:
//
//	limiter := llm.NewLimiter(8)
//	shared := llm.NewLimitedProvider(provider, limiter)
//
// When several providers are configured, wrap each with the same limiter
// and collect them in a [Set]; requests then name the one they want:
//
//	set := llm.NewSet(shared, llm.NewLimitedProvider(local, limiter))
//	p, err := set.Get("ollama")
//
// # Error Handling
//
// Failures are *Error values with a [Kind]:
//
//	auth_failure      401/403 or missing credentials
//	rate_limited      429, RetryAfter parsed from the Retry-After header
//	timeout           client deadline, 408, 504
//	unavailable       other 5xx
//	invalid_response  undecodable or empty body
//	network           transport failure, outcome unknown
//	bad_request       other 4xx
//
// Use [KindOf] and [RetryAfterOf] to inspect them.
package llm
