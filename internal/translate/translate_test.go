package translate

import (
	"errors"
	"testing"

	"github.com/jordanhubbard/protogate/internal/catalog"
)

func TestTranslateRequestIdenticalProtocolRewritesModel(t *testing.T) {
	body := map[string]any{"model": "gpt-4", "messages": []any{map[string]any{"role": "user", "content": "hi"}}}
	path, out, err := TranslateRequest(catalog.ProtocolOpenAI, catalog.ProtocolOpenAI, "/v1/chat/completions", body, "gpt-4-0613")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/v1/chat/completions" {
		t.Fatalf("unexpected path: %s", path)
	}
	if out["model"] != "gpt-4-0613" {
		t.Fatalf("expected rewritten model, got %v", out["model"])
	}
	body["model"] = "mutated"
	if out["model"] == "mutated" {
		t.Fatal("expected a deep copy, not a shared reference")
	}
}

func TestTranslateRequestOpenAIToAnthropicSynthesizesMaxTokens(t *testing.T) {
	body := map[string]any{
		"model":    "claude",
		"messages": []any{map[string]any{"role": "user", "content": "hello"}},
	}
	path, out, err := TranslateRequest(catalog.ProtocolOpenAI, catalog.ProtocolAnthropic, "/v1/chat/completions", body, "claude-3-opus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/v1/messages" {
		t.Fatalf("unexpected path: %s", path)
	}
	if out["max_tokens"] != defaultMaxTokens {
		t.Fatalf("expected synthesized default max_tokens, got %v", out["max_tokens"])
	}
}

func TestTranslateRequestOpenAIToAnthropicLiftsSystemMessage(t *testing.T) {
	body := map[string]any{
		"messages": []any{
			map[string]any{"role": "system", "content": "be terse"},
			map[string]any{"role": "user", "content": "hello"},
		},
	}
	_, out, err := TranslateRequest(catalog.ProtocolOpenAI, catalog.ProtocolAnthropic, "/v1/chat/completions", body, "claude-3-opus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["system"] != "be terse" {
		t.Fatalf("expected lifted system field, got %v", out["system"])
	}
	msgs := out["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected system message removed from messages, got %d", len(msgs))
	}
}

func TestTranslateRequestOpenAIToAnthropicWrongPathFails(t *testing.T) {
	_, _, err := TranslateRequest(catalog.ProtocolOpenAI, catalog.ProtocolAnthropic, "/v1/completions", map[string]any{}, "claude")
	if !errors.Is(err, ErrUnsupportedProtocolConversion) {
		t.Fatalf("expected ErrUnsupportedProtocolConversion, got %v", err)
	}
}

func TestTranslateRequestAnthropicToOpenAIWrongPathFails(t *testing.T) {
	_, _, err := TranslateRequest(catalog.ProtocolAnthropic, catalog.ProtocolOpenAI, "/v1/chat/completions", map[string]any{}, "gpt-4")
	if !errors.Is(err, ErrUnsupportedProtocolConversion) {
		t.Fatalf("expected ErrUnsupportedProtocolConversion, got %v", err)
	}
}

func TestTranslateResponseBufferedAnthropicToOpenAI(t *testing.T) {
	body := map[string]any{
		"model":       "claude-3-opus",
		"content":     []any{map[string]any{"type": "text", "text": "hi"}},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": float64(5), "output_tokens": float64(2)},
	}
	out, err := TranslateResponseBuffered(catalog.ProtocolOpenAI, catalog.ProtocolAnthropic, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	choices := out["choices"].([]any)
	choice := choices[0].(map[string]any)
	msg := choice["message"].(map[string]any)
	if msg["content"] != "hi" {
		t.Fatalf("unexpected content: %v", msg["content"])
	}
	if choice["finish_reason"] != "stop" {
		t.Fatalf("expected finish_reason stop, got %v", choice["finish_reason"])
	}
	usage := out["usage"].(map[string]any)
	if usage["prompt_tokens"] != float64(5) || usage["completion_tokens"] != float64(2) {
		t.Fatalf("unexpected usage mapping: %+v", usage)
	}
}

func TestTranslateResponseBufferedOpenAIToAnthropic(t *testing.T) {
	body := map[string]any{
		"model": "gpt-4",
		"choices": []any{
			map[string]any{
				"message":       map[string]any{"role": "assistant", "content": "hi"},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{"prompt_tokens": float64(5), "completion_tokens": float64(2)},
	}
	out, err := TranslateResponseBuffered(catalog.ProtocolAnthropic, catalog.ProtocolOpenAI, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["stop_reason"] != "end_turn" {
		t.Fatalf("expected stop_reason end_turn, got %v", out["stop_reason"])
	}
	content := out["content"].([]any)[0].(map[string]any)
	if content["text"] != "hi" {
		t.Fatalf("unexpected content text: %v", content["text"])
	}
	usage := out["usage"].(map[string]any)
	if usage["input_tokens"] != float64(5) || usage["output_tokens"] != float64(2) {
		t.Fatalf("unexpected usage mapping: %+v", usage)
	}
}
