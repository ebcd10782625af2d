package tokencount

import (
	"testing"

	"github.com/jordanhubbard/protogate/internal/catalog"
)

func TestFallbackCountIsLengthDividedByFour(t *testing.T) {
	if got := fallbackCount("abcdefgh"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := fallbackCount(""); got != 0 {
		t.Fatalf("expected 0 for empty string, got %d", got)
	}
}

func TestCountInputChargesPerMessageOverhead(t *testing.T) {
	messages := []Message{{Role: "user", Text: "hello"}}
	got := CountInput(catalog.ProtocolOpenAI, "gpt-4", messages)
	if got <= perMessageOverhead {
		t.Fatalf("expected token count to exceed the bare per-message overhead, got %d", got)
	}
}

func TestCountInputSumsAcrossMessages(t *testing.T) {
	one := CountInput(catalog.ProtocolOpenAI, "gpt-4", []Message{{Role: "user", Text: "hello"}})
	two := CountInput(catalog.ProtocolOpenAI, "gpt-4", []Message{
		{Role: "user", Text: "hello"},
		{Role: "assistant", Text: "hello"},
	})
	if two <= one {
		t.Fatalf("expected two messages to cost more than one, got one=%d two=%d", one, two)
	}
}

func TestMessagesFromOpenAIBodyPlainStringContent(t *testing.T) {
	body := map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "hi there"},
		},
	}
	msgs := MessagesFromOpenAIBody(body)
	if len(msgs) != 1 || msgs[0].Role != "user" || msgs[0].Text != "hi there" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestMessagesFromOpenAIBodyMultimodalContent(t *testing.T) {
	body := map[string]any{
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": "describe this"},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": "http://example.com/x.png"}},
					map[string]any{"type": "text", "text": "in detail"},
				},
			},
		},
	}
	msgs := MessagesFromOpenAIBody(body)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Text != "describe this in detail" {
		t.Fatalf("unexpected extracted text: %q", msgs[0].Text)
	}
}

func TestMessagesFromAnthropicBodyIncludesSystem(t *testing.T) {
	body := map[string]any{
		"system": "be terse",
		"messages": []any{
			map[string]any{"role": "user", "content": "hi"},
		},
	}
	msgs := MessagesFromAnthropicBody(body)
	if len(msgs) != 2 {
		t.Fatalf("expected system + user message, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Text != "be terse" {
		t.Fatalf("expected system message first, got %+v", msgs[0])
	}
}

func TestMessagesFromAnthropicBodyNoSystem(t *testing.T) {
	body := map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "hi"},
		},
	}
	msgs := MessagesFromAnthropicBody(body)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
}

func TestOutputTokensFromOpenAI(t *testing.T) {
	body := map[string]any{"usage": map[string]any{"completion_tokens": float64(42)}}
	if got := OutputTokensFromOpenAI(body); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestOutputTokensFromOpenAIAbsent(t *testing.T) {
	if got := OutputTokensFromOpenAI(map[string]any{}); got != 0 {
		t.Fatalf("expected 0 when usage is absent, got %d", got)
	}
}

func TestOutputTokensFromAnthropic(t *testing.T) {
	body := map[string]any{"usage": map[string]any{"output_tokens": float64(17)}}
	if got := OutputTokensFromAnthropic(body); got != 17 {
		t.Fatalf("expected 17, got %d", got)
	}
}
