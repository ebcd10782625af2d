// Package translate implements the Protocol Translator (C4): request and
// response conversion between OpenAI and Anthropic wire shapes, for both
// buffered bodies and SSE streams. The SSE scanner is a pull-based
// "next_event" iterator rather than a read-the-whole-stream-into-a-slice
// approach, to preserve back-pressure on long-lived streams.
package translate

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jordanhubbard/protogate/internal/catalog"
)

// ErrUnsupportedProtocolConversion is returned for any (client, provider)
// protocol pair and endpoint combination this package does not support.
var ErrUnsupportedProtocolConversion = errors.New("unsupported_protocol_conversion")

const (
	openAIChatPath    = "/v1/chat/completions"
	anthropicMsgsPath = "/v1/messages"

	defaultMaxTokens = 1024
)

// TranslateRequest converts a request body bound for path under
// clientProtocol into the body and path the providerProtocol upstream
// expects, stamping targetModel as the outbound model. Identical protocols
// are a deep-copy-plus-rewrite; cross-protocol pairs are restricted to the
// single endpoint supported for each direction.
func TranslateRequest(clientProtocol, providerProtocol catalog.Protocol, path string, body map[string]any, targetModel string) (string, map[string]any, error) {
	if clientProtocol == providerProtocol {
		out := deepCopyMap(body)
		out["model"] = targetModel
		return path, out, nil
	}

	switch {
	case clientProtocol == catalog.ProtocolOpenAI && providerProtocol == catalog.ProtocolAnthropic:
		if path != openAIChatPath {
			return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedProtocolConversion, path)
		}
		return anthropicMsgsPath, openAIRequestToAnthropic(body, targetModel), nil

	case clientProtocol == catalog.ProtocolAnthropic && providerProtocol == catalog.ProtocolOpenAI:
		if path != anthropicMsgsPath {
			return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedProtocolConversion, path)
		}
		return openAIChatPath, anthropicRequestToOpenAI(body, targetModel), nil

	default:
		return "", nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedProtocolConversion, clientProtocol, providerProtocol)
	}
}

// openAIRequestToAnthropic converts an OpenAI chat/completions body into an
// Anthropic /v1/messages body. A leading "system"-role message is lifted
// into the top-level "system" field, as Anthropic has no system role inside
// "messages". max_tokens is required by Anthropic but optional in OpenAI, so
// it is synthesized from max_completion_tokens or defaulted to 1024.
func openAIRequestToAnthropic(body map[string]any, targetModel string) map[string]any {
	out := map[string]any{"model": targetModel}

	messages, _ := body["messages"].([]any)
	var system string
	converted := make([]any, 0, len(messages))
	for _, m := range messages {
		msg, ok := m.(map[string]any)
		if !ok {
			continue
		}
		role, _ := msg["role"].(string)
		if role == "system" {
			if s, ok := msg["content"].(string); ok {
				system = s
			}
			continue
		}
		converted = append(converted, map[string]any{"role": role, "content": msg["content"]})
	}
	out["messages"] = converted
	if system != "" {
		out["system"] = system
	}

	if mt, ok := numField(body, "max_tokens"); ok {
		out["max_tokens"] = mt
	} else if mct, ok := numField(body, "max_completion_tokens"); ok {
		out["max_tokens"] = mct
	} else {
		out["max_tokens"] = defaultMaxTokens
	}

	if t, ok := body["temperature"]; ok {
		out["temperature"] = t
	}
	if s, ok := body["stream"]; ok {
		out["stream"] = s
	}
	return out
}

// anthropicRequestToOpenAI converts an Anthropic /v1/messages body into an
// OpenAI chat/completions body, reinserting a top-level "system" field as a
// leading system-role message.
func anthropicRequestToOpenAI(body map[string]any, targetModel string) map[string]any {
	out := map[string]any{"model": targetModel}

	converted := make([]any, 0)
	if system, ok := body["system"].(string); ok && system != "" {
		converted = append(converted, map[string]any{"role": "system", "content": system})
	}
	if messages, ok := body["messages"].([]any); ok {
		for _, m := range messages {
			msg, ok := m.(map[string]any)
			if !ok {
				continue
			}
			converted = append(converted, map[string]any{"role": msg["role"], "content": msg["content"]})
		}
	}
	out["messages"] = converted

	if mt, ok := body["max_tokens"]; ok {
		out["max_tokens"] = mt
	}
	if t, ok := body["temperature"]; ok {
		out["temperature"] = t
	}
	if s, ok := body["stream"]; ok {
		out["stream"] = s
	}
	return out
}

// finishReasonToStopReason and its inverse implement its table:
// end_turn<->stop, max_tokens<->length, tool_use<->tool_calls.
var finishReasonToStopReason = map[string]string{
	"stop":       "end_turn",
	"length":     "max_tokens",
	"tool_calls": "tool_use",
}

var stopReasonToFinishReason = map[string]string{
	"end_turn":      "stop",
	"max_tokens":    "length",
	"tool_use":      "tool_calls",
	"stop_sequence": "stop",
}

// TranslateResponseBuffered converts a complete (non-streamed) upstream
// response body from providerProtocol shape to clientProtocol shape.
// Identical protocols pass through unchanged (deep-copied).
func TranslateResponseBuffered(clientProtocol, providerProtocol catalog.Protocol, body map[string]any) (map[string]any, error) {
	if clientProtocol == providerProtocol {
		return deepCopyMap(body), nil
	}
	switch {
	case clientProtocol == catalog.ProtocolOpenAI && providerProtocol == catalog.ProtocolAnthropic:
		return anthropicResponseToOpenAI(body), nil
	case clientProtocol == catalog.ProtocolAnthropic && providerProtocol == catalog.ProtocolOpenAI:
		return openAIResponseToAnthropic(body), nil
	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedProtocolConversion, providerProtocol, clientProtocol)
	}
}

func anthropicResponseToOpenAI(body map[string]any) map[string]any {
	text := ""
	if blocks, ok := body["content"].([]any); ok {
		for _, b := range blocks {
			blk, ok := b.(map[string]any)
			if !ok {
				continue
			}
			if blk["type"] == "text" {
				if t, ok := blk["text"].(string); ok {
					text += t
				}
			}
		}
	}
	finishReason := "stop"
	if sr, ok := body["stop_reason"].(string); ok {
		if mapped, ok := stopReasonToFinishReason[sr]; ok {
			finishReason = mapped
		}
	}

	out := map[string]any{
		"model": body["model"],
		"choices": []any{
			map[string]any{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": text,
				},
				"finish_reason": finishReason,
			},
		},
	}
	if usage, ok := body["usage"].(map[string]any); ok {
		out["usage"] = map[string]any{
			"prompt_tokens":     usage["input_tokens"],
			"completion_tokens": usage["output_tokens"],
		}
	}
	return out
}

func openAIResponseToAnthropic(body map[string]any) map[string]any {
	text := ""
	finishReason := "end_turn"
	if choices, ok := body["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if c, ok := msg["content"].(string); ok {
					text = c
				}
			}
			if fr, ok := choice["finish_reason"].(string); ok {
				if mapped, ok := finishReasonToStopReason[fr]; ok {
					finishReason = mapped
				}
			}
		}
	}

	out := map[string]any{
		"model": body["model"],
		"type":  "message",
		"role":  "assistant",
		"content": []any{
			map[string]any{"type": "text", "text": text},
		},
		"stop_reason": finishReason,
	}
	if usage, ok := body["usage"].(map[string]any); ok {
		out["usage"] = map[string]any{
			"input_tokens":  usage["prompt_tokens"],
			"output_tokens": usage["completion_tokens"],
		}
	}
	return out
}

func numField(body map[string]any, key string) (any, bool) {
	v, ok := body[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// deepCopyMap performs a JSON round-trip deep copy. Request/response bodies
// here are always JSON-shaped (maps, slices, and scalars), so this is exact
// and avoids hand-rolled recursive copying.
func deepCopyMap(body map[string]any) map[string]any {
	raw, err := json.Marshal(body)
	if err != nil {
		// body is already a decoded JSON map; marshal cannot fail here except
		// for cycles, which JSON-shaped request bodies never contain.
		return map[string]any{}
	}
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}
