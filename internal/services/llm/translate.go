package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"redub/internal/language"
	"redub/internal/services"
	"redub/internal/transcript"
)

const defaultBatchSize = 40

// TranslationPrompt instructs the model to translate subtitle-sized lines
// for dubbing and answer with ids preserved.
const TranslationPrompt = `You translate transcript lines for a voice dub.
Translate each item's "text" into the target language. Keep each translation
about as long as the original so it can be spoken in the same time. Do not
merge, split, drop, or reorder items. Keep names untranslated.
Respond with JSON only: {"translations":[{"id":<id>,"text":"<translation>"}]}`

type translationItem struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

type translationRequest struct {
	TargetLanguage string            `json:"target_language"`
	Items          []translationItem `json:"items"`
}

type translationResponse struct {
	Translations []translationItem `json:"translations"`
}

// Translate returns a copy of segments with Translated filled in the target
// language. Start, End, Text, and speaker fields are carried over untouched.
// Items the model leaves out keep empty translations and are reported as
// skipped by synthesis.
func (c *Client) Translate(ctx context.Context, segments []transcript.Segment, targetLang string) ([]transcript.Segment, error) {
	if !c.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "translate", "llm", "set llm.api_key or OPENROUTER_API_KEY", ErrNotConfigured)
	}
	target := language.Normalize(targetLang)
	if target == "" {
		return nil, services.Wrap(services.ErrValidation, "translate", "target", fmt.Sprintf("unknown language %q", targetLang), nil)
	}
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "translate", "segments", "", transcript.ErrNoSegments)
	}
	out := make([]transcript.Segment, len(segments))
	copy(out, segments)

	translated := 0
	for start := 0; start < len(out); start += c.batchSize {
		end := min(start+c.batchSize, len(out))
		n, err := c.translateBatch(ctx, out, start, end, target)
		if err != nil {
			return nil, err
		}
		translated += n
	}
	if translated == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "translate", "llm", "model returned no translations", transcript.ErrNoTranslatedText)
	}
	return out, nil
}

func (c *Client) translateBatch(ctx context.Context, segments []transcript.Segment, start, end int, target string) (int, error) {
	req := translationRequest{TargetLanguage: language.DisplayName(target)}
	for i := start; i < end; i++ {
		if text := strings.TrimSpace(segments[i].Text); text != "" {
			req.Items = append(req.Items, translationItem{ID: i, Text: text})
		}
	}
	if len(req.Items) == 0 {
		return 0, nil
	}
	prompt, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("llm translate: encode batch: %w", err)
	}
	content, err := c.CompleteJSON(ctx, TranslationPrompt, string(prompt))
	if err != nil {
		return 0, err
	}
	var resp translationResponse
	if err := DecodeLLMJSON(content, &resp); err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "translate", "parse", "", err)
	}
	count := 0
	for _, item := range resp.Translations {
		if item.ID < start || item.ID >= end {
			continue
		}
		if text := strings.TrimSpace(item.Text); text != "" {
			segments[item.ID].Translated = text
			count++
		}
	}
	return count, nil
}
