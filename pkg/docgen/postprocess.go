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
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrEmptyOutput is returned when nothing is left after cleanup.
	ErrEmptyOutput = errors.New("empty documentation")

	// ErrWrongLanguage is returned when the prose is reliably detected in a
	// language other than the requested one.
	ErrWrongLanguage = errors.New("documentation in unexpected language")
)

// minLanguageCheckRunes is the shortest text the language check trusts.
const minLanguageCheckRunes = 40

// PostProcess cleans raw model output for the requested format.
// It strips wrapping code fences, drops echoed comment delimiters for inline
// output, repairs truncation and, when docLanguage is set, checks the prose
// language.
func PostProcess(raw string, format Format, docLanguage string) (string, error) {
	text := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	text = stripFences(text)

	switch format {
	case FormatInline:
		text = stripCommentMarkers(text)
	case FormatHTML:
		repaired, err := balanceHTML(text)
		if err != nil {
			return "", err
		}
		text = repaired
	default:
		text = closeOpenFence(text)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyOutput
	}

	if docLanguage != "" {
		if err := checkLanguage(text, docLanguage); err != nil {
			return "", err
		}
	}
	return text, nil
}

func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

// stripFences removes a code fence wrapping the whole answer. The first
// and last lines must open and close the same fence; an answer that merely
// starts with a code example is left alone.
func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	n := len(lines)
	if n < 2 || !isFence(lines[0]) || strings.TrimSpace(lines[n-1]) != "```" {
		return text
	}
	inner := lines[1 : n-1]
	// A bare fence inside closes the first one before the end.
	for _, line := range inner {
		if strings.TrimSpace(line) == "```" {
			return text
		}
	}
	return strings.TrimSpace(strings.Join(inner, "\n"))
}

// closeOpenFence appends a closing fence when the answer was cut inside a
// code block.
func closeOpenFence(text string) string {
	open := 0
	for _, line := range strings.Split(text, "\n") {
		if isFence(line) {
			open ^= 1
		}
	}
	if open == 1 {
		return text + "\n```"
	}
	return text
}

var delimiterLines = map[string]bool{
	`"""`: true, `'''`: true, "/**": true, "/*": true, "*/": true, "**/": true,
}

// stripCommentMarkers removes comment syntax the model echoed back.
func stripCommentMarkers(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)
		if delimiterLines[t] {
			continue
		}
		// """Summary.""" on a single line.
		for _, q := range []string{`"""`, `'''`} {
			if strings.HasPrefix(t, q) {
				t = strings.TrimPrefix(t, q)
				line = t
			}
			if strings.HasSuffix(t, q) {
				t = strings.TrimSuffix(t, q)
				line = t
			}
		}
		kept = append(kept, line)
	}

	for _, prefix := range []string{"*", "//", "#"} {
		if allPrefixed(kept, prefix) {
			for i, line := range kept {
				t := strings.TrimPrefix(strings.TrimSpace(line), prefix)
				kept[i] = strings.TrimPrefix(t, " ")
			}
			break
		}
	}
	return strings.Join(kept, "\n")
}

func allPrefixed(lines []string, prefix string) bool {
	seen := false
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, prefix) {
			return false
		}
		seen = true
	}
	return seen
}

// balanceHTML re-renders an HTML fragment so every element is closed.
// Active content is removed on the way: see sanitize.
func balanceHTML(text string) (string, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(text), ctx)
	if err != nil {
		return "", fmt.Errorf("parse html fragment: %w", err)
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if droppedElements[n.DataAtom] && n.Type == html.ElementNode {
			continue
		}
		sanitize(n)
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("render html fragment: %w", err)
		}
	}
	return buf.String(), nil
}

// droppedElements are removed together with their content.
var droppedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Frame:    true,
	atom.Frameset: true,
	atom.Base:     true,
	atom.Link:     true,
	atom.Meta:     true,
}

// urlAttrs hold URLs that a browser may navigate to or load.
var urlAttrs = map[string]bool{
	"href": true, "src": true, "action": true, "formaction": true,
	"xlink:href": true, "poster": true, "background": true, "srcset": true,
}

// sanitize strips dropped elements below n along with event handlers,
// inline styles and script URLs.
func sanitize(n *html.Node) {
	if n.Type == html.ElementNode {
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			key := strings.ToLower(a.Key)
			if strings.HasPrefix(key, "on") || key == "style" {
				continue
			}
			if urlAttrs[key] && scriptURL(a.Val) {
				continue
			}
			kept = append(kept, a)
		}
		n.Attr = kept
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && droppedElements[c.DataAtom] {
			n.RemoveChild(c)
		} else {
			sanitize(c)
		}
		c = next
	}
}

// scriptURL reports whether v uses a scheme that runs code. Browsers ignore
// whitespace and control characters inside the scheme.
func scriptURL(v string) bool {
	var b strings.Builder
	for _, r := range strings.ToLower(v) {
		if r <= ' ' {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= len("data:text/html") {
			break
		}
	}
	s := b.String()
	return strings.HasPrefix(s, "javascript:") || strings.HasPrefix(s, "vbscript:") || strings.HasPrefix(s, "data:text/html")
}

// checkLanguage fails only on a reliable detection of another language.
func checkLanguage(text, want string) error {
	if len([]rune(text)) < minLanguageCheckRunes {
		return nil
	}
	info := whatlanggo.Detect(proseOnly(text))
	if !info.IsReliable() {
		return nil
	}
	if got := info.Lang.Iso6391(); got != "" && !strings.EqualFold(got, want) {
		return fmt.Errorf("%w: want %s, detected %s", ErrWrongLanguage, want, got)
	}
	return nil
}

// proseOnly drops fenced code so identifiers do not skew detection.
func proseOnly(text string) string {
	var sb strings.Builder
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		if isFence(line) {
			inFence = !inFence
			continue
		}
		if !inFence {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
