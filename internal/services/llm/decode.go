package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeLLMJSON decodes the first JSON object or array in content into
// target. Markdown code fences and prose before or after the value are
// ignored.
func DecodeLLMJSON(content string, target any) error {
	body := unfence(content)
	if body == "" {
		return errors.New("empty payload")
	}
	start := strings.IndexAny(body, "{[")
	if start < 0 {
		return fmt.Errorf("no JSON value in payload: %s", summarizePayloadSnippet(body))
	}
	dec := json.NewDecoder(strings.NewReader(body[start:]))
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode payload: %w (snippet: %s)", err, summarizePayloadSnippet(body[start:]))
	}
	return nil
}

// unfence removes a surrounding ``` or ```json fence.
func unfence(content string) string {
	body := strings.TrimSpace(content)
	rest, ok := strings.CutPrefix(body, "```")
	if !ok {
		return body
	}
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:]
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// summarizePayloadSnippet collapses whitespace and truncates for error text.
func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
