package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"redub/internal/services"
	"redub/internal/transcript"
)

func completion(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"content": content},
			},
		},
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(completion(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completion("```json\n{\"ok\":true}\n```"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	err := client.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected health check to fail")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error for rejected key", err)
	}
}

func TestRetryPolicy(t *testing.T) {
	policy := backoff{attempts: 5, base: time.Second, ceiling: 4 * time.Second}
	ctx := context.Background()
	tests := []struct {
		name    string
		err     error
		attempt int
		want    time.Duration
		retry   bool
	}{
		{"rate limit", &httpStatusError{StatusCode: 429}, 1, time.Second, true},
		{"server error doubles", &httpStatusError{StatusCode: 502}, 2, 2 * time.Second, true},
		{"capped", &httpStatusError{StatusCode: 503}, 5, 4 * time.Second, true},
		{"retry after capped", &httpStatusError{StatusCode: 429, RetryAfter: time.Minute}, 1, 4 * time.Second, true},
		{"bad request final", &httpStatusError{StatusCode: 400}, 1, 0, false},
		{"empty content", &emptyContentError{}, 1, time.Second, true},
		{"other error final", errors.New("decode response"), 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, retry := policy.delay(ctx, tt.err, tt.attempt)
			if retry != tt.retry || got != tt.want {
				t.Fatalf("delay = %v, %v; want %v, %v", got, retry, tt.want, tt.retry)
			}
		})
	}
}

func TestClientWithoutKey(t *testing.T) {
	client := NewClient(Config{})
	if client.Configured() {
		t.Fatal("client without key reports configured")
	}
	_, err := client.Translate(context.Background(), []transcript.Segment{{Start: 0, End: 1, Text: "hi"}}, "es")
	if !errors.Is(err, services.ErrConfiguration) || !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(completion(`{"ok":true}`))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := ""
		if calls >= 3 {
			content = `{"ok":true}`
		}
		_ = json.NewEncoder(w).Encode(completion(content))
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestClientEmptyContentHasSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completion(""))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithRetryMaxAttempts(1))
	err := client.HealthCheck(context.Background())
	var empty *emptyContentError
	if !errors.As(err, &empty) {
		t.Fatalf("err = %v, want emptyContentError", err)
	}
	if empty.FinishReason != "stop" || !strings.Contains(empty.Snippet, "choices") {
		t.Fatalf("unexpected empty error: %+v", empty)
	}
}

func TestTranslatePreservesTimingAndBatches(t *testing.T) {
	var batches int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batches++
		body, _ := io.ReadAll(r.Body)
		var chat chatRequest
		if err := json.Unmarshal(body, &chat); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		var req translationRequest
		if err := json.Unmarshal([]byte(chat.Messages[1].Content), &req); err != nil {
			t.Errorf("decode prompt: %v", err)
			return
		}
		if req.TargetLanguage != "Spanish" {
			t.Errorf("target = %q", req.TargetLanguage)
		}
		var resp translationResponse
		for _, item := range req.Items {
			resp.Translations = append(resp.Translations, translationItem{ID: item.ID, Text: "es:" + item.Text})
		}
		encoded, _ := json.Marshal(resp)
		_ = json.NewEncoder(w).Encode(completion("```json\n" + string(encoded) + "\n```"))
	}))
	defer server.Close()

	segments := []transcript.Segment{
		{Start: 0, End: 1.5, Text: "Hello", SpeakerID: "SPEAKER_00"},
		{Start: 1.5, End: 3, Text: "  "},
		{Start: 3, End: 4, Text: "Goodbye"},
	}
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithBatchSize(2))
	out, err := client.Translate(context.Background(), segments, "es-MX")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if batches != 2 {
		t.Fatalf("batches = %d, want 2", batches)
	}
	if out[0].Translated != "es:Hello" || out[2].Translated != "es:Goodbye" || out[1].Translated != "" {
		t.Fatalf("unexpected translations: %+v", out)
	}
	for i := range segments {
		if out[i].Start != segments[i].Start || out[i].End != segments[i].End || out[i].Text != segments[i].Text {
			t.Fatalf("segment %d timing or text changed: %+v", i, out[i])
		}
	}
	if out[0].SpeakerID != "SPEAKER_00" {
		t.Fatal("speaker id dropped")
	}
	if segments[0].Translated != "" {
		t.Fatal("input segments were mutated")
	}
}

func TestTranslateIgnoresForeignIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completion(`{"translations":[{"id":7,"text":"x"}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	_, err := client.Translate(context.Background(), []transcript.Segment{{Start: 0, End: 1, Text: "hi"}}, "fr")
	if !errors.Is(err, transcript.ErrNoTranslatedText) {
		t.Fatalf("err = %v, want ErrNoTranslatedText", err)
	}
}

func TestTranslateRejectsUnknownLanguage(t *testing.T) {
	client := NewClient(Config{APIKey: "test"})
	_, err := client.Translate(context.Background(), []transcript.Segment{{Start: 0, End: 1, Text: "hi"}}, "klingonese")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestDecodeLLMJSONProse(t *testing.T) {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(`Sure! Here you go: {"ok": true} hope that helps`, &out); err != nil || !out.OK {
		t.Fatalf("decode = %v, ok=%v", err, out.OK)
	}
	if err := DecodeLLMJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
