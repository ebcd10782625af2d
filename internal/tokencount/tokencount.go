// Package tokencount implements the Token Accountant (C7): best-effort
// input/output token counting for both protocols. Input counting prefers a
// real BPE tokenizer (github.com/pkoukk/tiktoken-go) and falls back to
// len(text)/4 when no encoding is available for a model.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jordanhubbard/protogate/internal/catalog"
)

// Message is the minimal per-message shape both protocols reduce to before
// counting: a role plus the text extracted from (possibly multimodal)
// content.
type Message struct {
	Role string
	Text string
}

var (
	encCache   = map[string]*tiktoken.Tiktoken{}
	encCacheMu sync.Mutex
)

func encodingFor(model string) *tiktoken.Tiktoken {
	encCacheMu.Lock()
	defer encCacheMu.Unlock()
	if enc, ok := encCache[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			encCache[model] = nil
			return nil
		}
	}
	encCache[model] = enc
	return enc
}

func countText(model, text string) int {
	if text == "" {
		return 0
	}
	if enc := encodingFor(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return fallbackCount(text)
}

// fallbackCount implements its exact fallback when no tokenizer
// encoding is available for the model.
func fallbackCount(text string) int {
	return len(text) / 4
}

// perMessageOverhead is the per-message token overhead both protocols use
// to approximate the role/formatting tokens surrounding each message's text.
const perMessageOverhead = 4

// CountInput sums the token cost of messages for the given model, using
// protocol to decide nothing beyond documentation — both protocols share the
// same per-message overhead and per-field BPE/fallback counting, since the
// translator has already reduced either wire shape to plain text by the time
// accounting runs.
func CountInput(protocol catalog.Protocol, model string, messages []Message) int {
	total := 0
	for _, m := range messages {
		total += perMessageOverhead
		total += countText(model, m.Role)
		total += countText(model, m.Text)
	}
	return total
}

// MessagesFromOpenAIBody walks an OpenAI-shaped chat/completions body's
// "messages" array, extracting text from both plain string content and
// multimodal content arrays (walking each element's "text" field).
func MessagesFromOpenAIBody(body map[string]any) []Message {
	raw, _ := body["messages"].([]any)
	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := obj["role"].(string)
		out = append(out, Message{Role: role, Text: extractText(obj["content"])})
	}
	return out
}

// MessagesFromAnthropicBody walks an Anthropic-shaped /v1/messages body's
// "messages" array the same way, plus the top-level "system" field if
// present (treated as an additional message with no role overhead charged
// twice — it is its own message for accounting purposes).
func MessagesFromAnthropicBody(body map[string]any) []Message {
	out := []Message{}
	if system, ok := body["system"].(string); ok && system != "" {
		out = append(out, Message{Role: "system", Text: system})
	}
	raw, _ := body["messages"].([]any)
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := obj["role"].(string)
		out = append(out, Message{Role: role, Text: extractText(obj["content"])})
	}
	return out
}

// extractText handles both a plain string content field and a multimodal
// array of content blocks, walking each block's "text" field.
func extractText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		text := ""
		for _, block := range v {
			obj, ok := block.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := obj["text"].(string); ok {
				if text != "" {
					text += " "
				}
				text += t
			}
		}
		return text
	default:
		return ""
	}
}

// OutputTokensFromOpenAI reads usage.completion_tokens from a buffered
// OpenAI response body, returning 0 if absent.
func OutputTokensFromOpenAI(body map[string]any) int {
	return intField(body, "usage", "completion_tokens")
}

// OutputTokensFromAnthropic reads usage.output_tokens from a buffered
// Anthropic response body, returning 0 if absent.
func OutputTokensFromAnthropic(body map[string]any) int {
	return intField(body, "usage", "output_tokens")
}

func intField(body map[string]any, outer, inner string) int {
	o, ok := body[outer].(map[string]any)
	if !ok {
		return 0
	}
	switch n := o[inner].(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
