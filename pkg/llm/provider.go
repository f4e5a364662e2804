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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider defines the interface for LLM text generation.
//
// Implementations are safe for concurrent use and return *Error for every
// failure so callers can decide on retries without knowing the backend.
type Provider interface {
	// Generate produces a completion for the given prompt.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Name returns the provider identifier.
	Name() string

	// Models returns available models for this provider.
	Models(ctx context.Context) ([]string, error)
}

// ModelProvider is implemented by providers that know their default model.
type ModelProvider interface {
	DefaultModel() string
}

// GenerateRequest represents a text generation request.
type GenerateRequest struct {
	System      string   `json:"system,omitempty"`
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// GenerateResponse contains the LLM response.
type GenerateResponse struct {
	Text         string        `json:"text"`
	Model        string        `json:"model"`
	PromptTokens int           `json:"prompt_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`

	// Truncated is set when the backend stopped on its token limit.
	Truncated bool `json:"truncated,omitempty"`
}

// ProviderConfig holds configuration for creating providers.
type ProviderConfig struct {
	// Provider type: "openai", "deepseek", "anthropic", "ollama", "huggingface", "mock"
	Type string `json:"type" yaml:"type"`

	// BaseURL for the API endpoint
	BaseURL string `json:"base_url,omitempty" yaml:"base_url"`

	// APIKey for authenticated providers
	APIKey string `json:"-" yaml:"api_key"`

	// DefaultModel to use if not specified in requests
	DefaultModel string `json:"default_model,omitempty" yaml:"model"`

	// Timeout for a single API request
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// Provider names accepted by NewProvider.
const (
	ProviderOpenAI      = "openai"
	ProviderDeepSeek    = "deepseek"
	ProviderAnthropic   = "anthropic"
	ProviderOllama      = "ollama"
	ProviderHuggingFace = "huggingface"
	ProviderMock        = "mock"
)

// SupportedProviders lists the provider types in display order.
func SupportedProviders() []string {
	return []string{ProviderOpenAI, ProviderDeepSeek, ProviderAnthropic, ProviderOllama, ProviderHuggingFace, ProviderMock}
}

// NewProvider creates a Provider based on configuration.
//
// Environment variables fill in missing settings:
//   - OPENAI_API_KEY, OPENAI_BASE_URL, OPENAI_MODEL
//   - DEEPSEEK_API_KEY, DEEPSEEK_BASE_URL
//   - ANTHROPIC_API_KEY, ANTHROPIC_MODEL
//   - OLLAMA_HOST, OLLAMA_MODEL
//   - HF_API_TOKEN, HF_BASE_URL
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	switch strings.ToLower(cfg.Type) {
	case ProviderOpenAI, "openai-compatible":
		return newOpenAIProvider(cfg)
	case ProviderDeepSeek:
		return newDeepSeekProvider(cfg)
	case ProviderAnthropic, "claude":
		return newAnthropicProvider(cfg)
	case ProviderOllama, "local":
		return newOllamaProvider(cfg)
	case ProviderHuggingFace, "hf", "tgi":
		return newHuggingFaceProvider(cfg)
	case ProviderMock, "test":
		return &MockProvider{model: cfg.DefaultModel}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider type: %s (supported: %s)", cfg.Type, strings.Join(SupportedProviders(), ", "))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// postJSON sends payload and decodes a 2xx JSON answer into out.
// Every failure is returned as *Error.
func postJSON(ctx context.Context, client *http.Client, provider, url string, header http.Header, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Provider: provider, Kind: KindBadRequest, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &Error{Provider: provider, Kind: KindBadRequest, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return transportError(provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(provider, resp.StatusCode, resp.Header, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return invalidResponse(provider, err)
	}
	return nil
}

func getJSON(ctx context.Context, client *http.Client, provider, url string, header http.Header, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Provider: provider, Kind: KindBadRequest, Err: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return transportError(provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(provider, resp.StatusCode, resp.Header, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return invalidResponse(provider, err)
	}
	return nil
}

// =============================================================================
// OLLAMA PROVIDER
// =============================================================================

type ollamaProvider struct {
	baseURL      string
	defaultModel string
	client       *http.Client
}

func newOllamaProvider(cfg ProviderConfig) (*ollamaProvider, error) {
	baseURL := firstNonEmpty(cfg.BaseURL, os.Getenv("OLLAMA_HOST"), os.Getenv("OLLAMA_BASE_URL"), "http://localhost:11434")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &ollamaProvider{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		defaultModel: firstNonEmpty(cfg.DefaultModel, os.Getenv("OLLAMA_MODEL"), "codellama"),
		client:       &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (p *ollamaProvider) Name() string         { return ProviderOllama }
func (p *ollamaProvider) DefaultModel() string { return p.defaultModel }

func (p *ollamaProvider) Models(ctx context.Context) ([]string, error) {
	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := getJSON(ctx, p.client, p.Name(), p.baseURL+"/api/tags", nil, &result); err != nil {
		return nil, err
	}

	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}
	return models, nil
}

func (p *ollamaProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := firstNonEmpty(req.Model, p.defaultModel)

	options := map[string]any{}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if len(req.Stop) > 0 {
		options["stop"] = req.Stop
	}

	payload := map[string]any{
		"model":  model,
		"prompt": req.Prompt,
		"stream": false,
	}
	if req.System != "" {
		payload["system"] = req.System
	}
	if len(options) > 0 {
		payload["options"] = options
	}

	var result struct {
		Response        string `json:"response"`
		Model           string `json:"model"`
		Done            bool   `json:"done"`
		DoneReason      string `json:"done_reason"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}

	start := time.Now()
	if err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/api/generate", nil, payload, &result); err != nil {
		return nil, err
	}

	return &GenerateResponse{
		Text:         result.Response,
		Model:        firstNonEmpty(result.Model, model),
		PromptTokens: result.PromptEvalCount,
		OutputTokens: result.EvalCount,
		Duration:     time.Since(start),
		Truncated:    result.DoneReason == "length",
	}, nil
}

// =============================================================================
// ANTHROPIC PROVIDER
// =============================================================================

type anthropicProvider struct {
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
}

func newAnthropicProvider(cfg ProviderConfig) (*anthropicProvider, error) {
	return &anthropicProvider{
		baseURL:      strings.TrimSuffix(firstNonEmpty(cfg.BaseURL, "https://api.anthropic.com/v1"), "/"),
		apiKey:       firstNonEmpty(cfg.APIKey, os.Getenv("ANTHROPIC_API_KEY")),
		defaultModel: firstNonEmpty(cfg.DefaultModel, os.Getenv("ANTHROPIC_MODEL"), "claude-3-5-haiku-20241022"),
		client:       &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (p *anthropicProvider) Name() string         { return ProviderAnthropic }
func (p *anthropicProvider) DefaultModel() string { return p.defaultModel }

func (p *anthropicProvider) Models(ctx context.Context) ([]string, error) {
	// Anthropic doesn't have a public models endpoint, return known models
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
		"claude-3-haiku-20240307",
	}, nil
}

func (p *anthropicProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if p.apiKey == "" {
		return nil, NewError(p.Name(), KindAuthFailure, "ANTHROPIC_API_KEY not set")
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	model := firstNonEmpty(req.Model, p.defaultModel)
	payload := map[string]any{
		"model":      model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.System != "" {
		payload["system"] = req.System
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if len(req.Stop) > 0 {
		payload["stop_sequences"] = req.Stop
	}

	header := http.Header{}
	header.Set("x-api-key", p.apiKey)
	header.Set("anthropic-version", "2023-06-01")

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Model      string `json:"model"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}

	start := time.Now()
	if err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/messages", header, payload, &result); err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, c := range result.Content {
		if c.Type == "text" {
			content.WriteString(c.Text)
		}
	}

	return &GenerateResponse{
		Text:         content.String(),
		Model:        firstNonEmpty(result.Model, model),
		PromptTokens: result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		Duration:     time.Since(start),
		Truncated:    result.StopReason == "max_tokens",
	}, nil
}

// =============================================================================
// HUGGING FACE PROVIDER
// =============================================================================

// huggingFaceProvider talks to a text-generation-inference server, or to the
// hosted inference API when no base URL is configured.
type huggingFaceProvider struct {
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
}

func newHuggingFaceProvider(cfg ProviderConfig) (*huggingFaceProvider, error) {
	return &huggingFaceProvider{
		baseURL:      strings.TrimSuffix(firstNonEmpty(cfg.BaseURL, os.Getenv("HF_BASE_URL")), "/"),
		apiKey:       firstNonEmpty(cfg.APIKey, os.Getenv("HF_API_TOKEN")),
		defaultModel: firstNonEmpty(cfg.DefaultModel, os.Getenv("HF_MODEL"), "bigcode/starcoder2-15b"),
		client:       &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (p *huggingFaceProvider) Name() string         { return ProviderHuggingFace }
func (p *huggingFaceProvider) DefaultModel() string { return p.defaultModel }

func (p *huggingFaceProvider) Models(ctx context.Context) ([]string, error) {
	return []string{p.defaultModel}, nil
}

func (p *huggingFaceProvider) endpoint(model string) string {
	if p.baseURL != "" {
		return p.baseURL + "/generate"
	}
	return "https://api-inference.huggingface.co/models/" + model
}

func (p *huggingFaceProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := firstNonEmpty(req.Model, p.defaultModel)

	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + req.Prompt
	}

	params := map[string]any{
		"return_full_text": false,
	}
	if req.MaxTokens > 0 {
		params["max_new_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		params["temperature"] = req.Temperature
	}
	if len(req.Stop) > 0 {
		params["stop"] = req.Stop
	}
	payload := map[string]any{
		"inputs":     prompt,
		"parameters": params,
	}

	var header http.Header
	if p.apiKey != "" {
		header = http.Header{}
		header.Set("Authorization", "Bearer "+p.apiKey)
	}

	// TGI answers with an object, the hosted API with a one-element array.
	var raw json.RawMessage
	start := time.Now()
	if err := postJSON(ctx, p.client, p.Name(), p.endpoint(model), header, payload, &raw); err != nil {
		return nil, err
	}

	type generation struct {
		GeneratedText string `json:"generated_text"`
		Details       *struct {
			FinishReason    string `json:"finish_reason"`
			GeneratedTokens int    `json:"generated_tokens"`
		} `json:"details"`
	}
	var gen generation
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []generation
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, invalidResponse(p.Name(), err)
		}
		if len(list) == 0 {
			return nil, invalidResponse(p.Name(), fmt.Errorf("empty generation list"))
		}
		gen = list[0]
	} else if err := json.Unmarshal(trimmed, &gen); err != nil {
		return nil, invalidResponse(p.Name(), err)
	}

	resp := &GenerateResponse{
		Text:     gen.GeneratedText,
		Model:    model,
		Duration: time.Since(start),
	}
	if gen.Details != nil {
		resp.OutputTokens = gen.Details.GeneratedTokens
		resp.Truncated = gen.Details.FinishReason == "length"
	}
	return resp, nil
}

// =============================================================================
// MOCK PROVIDER (for testing)
// =============================================================================

// MockProvider is a test provider that returns predictable responses.
type MockProvider struct {
	model        string
	GenerateFunc func(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

func (p *MockProvider) Name() string { return ProviderMock }

func (p *MockProvider) DefaultModel() string { return firstNonEmpty(p.model, "mock-model") }

func (p *MockProvider) Models(ctx context.Context) ([]string, error) {
	return []string{p.DefaultModel()}, nil
}

func (p *MockProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if p.GenerateFunc != nil {
		return p.GenerateFunc(ctx, req)
	}
	return &GenerateResponse{
		Text:         fmt.Sprintf("[mock] Generated response for: %.50s...", req.Prompt),
		Model:        p.DefaultModel(),
		PromptTokens: len(req.Prompt) / 4,
		OutputTokens: 20,
		Duration:     10 * time.Millisecond,
	}, nil
}
