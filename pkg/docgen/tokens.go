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

package docgen

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts and truncates text by model tokens.
type TokenCounter interface {
	Count(text string) int
	// Head returns the longest prefix of text holding at most n tokens.
	Head(text string, n int) string
}

// TiktokenCounter counts tokens with the cl100k_base encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the cl100k_base encoding.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

func (tc *TiktokenCounter) Count(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

func (tc *TiktokenCounter) Head(text string, n int) string {
	tokens := tc.encoding.Encode(text, nil, nil)
	if len(tokens) <= n {
		return text
	}
	return tc.encoding.Decode(tokens[:n])
}

// EstimateCounter approximates three characters per token.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	return EstimateTokens(text)
}

func (EstimateCounter) Head(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n*3 {
		return text
	}
	return string(runes[:n*3])
}

// EstimateTokens returns a rough token count for text.
func EstimateTokens(text string) int {
	return len([]rune(text)) / 3
}

var (
	defaultCounterOnce sync.Once
	defaultCounter     TokenCounter
)

// DefaultTokenCounter returns the tiktoken counter, or the estimator when
// the encoding cannot be loaded. The result is shared.
func DefaultTokenCounter() TokenCounter {
	defaultCounterOnce.Do(func() {
		if tc, err := NewTiktokenCounter(); err == nil {
			defaultCounter = tc
			return
		}
		defaultCounter = EstimateCounter{}
	})
	return defaultCounter
}

// TruncateTokens cuts text to at most budget tokens on a line boundary when
// one is available. It reports whether text was shortened.
func TruncateTokens(counter TokenCounter, text string, budget int) (string, bool) {
	if budget <= 0 || counter.Count(text) <= budget {
		return text, false
	}
	head := counter.Head(text, budget)
	for i := len(head) - 1; i > len(head)/2; i-- {
		if head[i] == '\n' {
			head = head[:i]
			break
		}
	}
	return head, true
}
