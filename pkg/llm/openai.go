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
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// =============================================================================
// OPENAI-COMPATIBLE PROVIDER (openai, deepseek)
// =============================================================================

const deepSeekBaseURL = "https://api.deepseek.com/v1"

// openaiProvider drives any OpenAI-compatible chat completions endpoint
// through the official SDK. SDK retries are disabled; callers own the policy.
type openaiProvider struct {
	name         string
	apiKey       string
	defaultModel string
	client       openai.Client
}

func newOpenAIProvider(cfg ProviderConfig) (*openaiProvider, error) {
	return newOpenAICompatible(ProviderOpenAI, cfg,
		firstNonEmpty(cfg.BaseURL, os.Getenv("OPENAI_BASE_URL")),
		firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY")),
		firstNonEmpty(cfg.DefaultModel, os.Getenv("OPENAI_MODEL"), "gpt-4o-mini"),
	), nil
}

func newDeepSeekProvider(cfg ProviderConfig) (*openaiProvider, error) {
	return newOpenAICompatible(ProviderDeepSeek, cfg,
		firstNonEmpty(cfg.BaseURL, os.Getenv("DEEPSEEK_BASE_URL"), deepSeekBaseURL),
		firstNonEmpty(cfg.APIKey, os.Getenv("DEEPSEEK_API_KEY")),
		firstNonEmpty(cfg.DefaultModel, "deepseek-coder"),
	), nil
}

func newOpenAICompatible(name string, cfg ProviderConfig, baseURL, apiKey, model string) *openaiProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &openaiProvider{
		name:         name,
		apiKey:       apiKey,
		defaultModel: model,
		client:       openai.NewClient(opts...),
	}
}

func (p *openaiProvider) Name() string         { return p.name }
func (p *openaiProvider) DefaultModel() string { return p.defaultModel }

func (p *openaiProvider) Models(ctx context.Context) ([]string, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, p.classify(err)
	}

	models := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

func (p *openaiProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if p.apiKey == "" {
		return nil, NewError(p.name, KindAuthFailure, "API key not set")
	}

	model := firstNonEmpty(req.Model, p.defaultModel)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.classify(err)
	}

	if len(completion.Choices) == 0 {
		return nil, NewError(p.name, KindInvalidResponse, "no completion choices returned")
	}
	choice := completion.Choices[0]

	return &GenerateResponse{
		Text:         choice.Message.Content,
		Model:        firstNonEmpty(completion.Model, model),
		PromptTokens: int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
		Duration:     time.Since(start),
		Truncated:    choice.FinishReason == "length",
	}, nil
}

// classify turns SDK errors into *Error.
func (p *openaiProvider) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		header := http.Header{}
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		e := statusError(p.name, apiErr.StatusCode, header, nil)
		e.Message = strings.TrimSpace(apiErr.Message)
		e.Err = err
		return e
	}
	return transportError(p.name, err)
}
