package translate

import "encoding/json"

// OpenAIToAnthropicStream converts a stream of OpenAI chat/completions SSE
// chunks into Anthropic /v1/messages SSE events. It is fed one parsed input
// Event at a time and returns zero or more encoded output frames; it never
// looks ahead past the event it was just given.
type OpenAIToAnthropicStream struct {
	started      bool
	blockStarted bool
	done         bool
}

// NewOpenAIToAnthropicStream creates a fresh per-request translator.
func NewOpenAIToAnthropicStream() *OpenAIToAnthropicStream {
	return &OpenAIToAnthropicStream{}
}

// Feed consumes one OpenAI SSE event (ev.Data is the chunk's JSON, or the
// literal "[DONE]" terminator) and returns the Anthropic frames it produces.
// A malformed payload is skipped per its boundary behavior.
func (s *OpenAIToAnthropicStream) Feed(ev Event) [][]byte {
	if ev.Data == doneMarker {
		return s.Close()
	}

	var chunk map[string]any
	if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
		return nil
	}

	var frames [][]byte
	if !s.started {
		frames = append(frames, s.emitMessageStart(chunk))
		s.started = true
	}
	if !s.blockStarted {
		frames = append(frames, EncodeAnthropic("content_block_start", mustJSON(map[string]any{
			"type":  "content_block_start",
			"index": 0,
			"content_block": map[string]any{
				"type": "text",
				"text": "",
			},
		})))
		s.blockStarted = true
	}

	choices, _ := chunk["choices"].([]any)
	if len(choices) == 0 {
		return frames
	}
	choice, _ := choices[0].(map[string]any)
	delta, _ := choice["delta"].(map[string]any)

	if content, ok := delta["content"].(string); ok && content != "" {
		frames = append(frames, EncodeAnthropic("content_block_delta", mustJSON(map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": content},
		})))
	}

	if toolCalls, ok := delta["tool_calls"].([]any); ok {
		for _, tc := range toolCalls {
			tcObj, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			fn, ok := tcObj["function"].(map[string]any)
			if !ok {
				continue
			}
			args, ok := fn["arguments"].(string)
			if !ok || args == "" {
				continue
			}
			frames = append(frames, EncodeAnthropic("content_block_delta", mustJSON(map[string]any{
				"type":  "content_block_delta",
				"index": 0,
				"delta": map[string]any{"type": "input_json_delta", "partial_json": args},
			})))
		}
	}

	if finishReason, ok := choice["finish_reason"].(string); ok && finishReason != "" {
		frames = append(frames, s.finalize(finishReason, chunk)...)
	}

	return frames
}

func (s *OpenAIToAnthropicStream) emitMessageStart(chunk map[string]any) []byte {
	id, _ := chunk["id"].(string)
	model, _ := chunk["model"].(string)
	return EncodeAnthropic("message_start", mustJSON(map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":      id,
			"type":    "message",
			"role":    "assistant",
			"model":   model,
			"content": []any{},
		},
	}))
}

func (s *OpenAIToAnthropicStream) finalize(finishReason string, chunk map[string]any) [][]byte {
	if s.done {
		return nil
	}
	s.done = true

	stopReason := "end_turn"
	if mapped, ok := finishReasonToStopReason[finishReason]; ok {
		stopReason = mapped
	}

	delta := map[string]any{"stop_reason": stopReason}
	if usage, ok := chunk["usage"].(map[string]any); ok {
		delta["usage"] = map[string]any{"output_tokens": usage["completion_tokens"]}
	}

	return [][]byte{
		EncodeAnthropic("content_block_stop", mustJSON(map[string]any{"type": "content_block_stop", "index": 0})),
		EncodeAnthropic("message_delta", mustJSON(map[string]any{"type": "message_delta", "delta": delta})),
		EncodeAnthropic("message_stop", mustJSON(map[string]any{"type": "message_stop"})),
	}
}

// Close finalizes the stream if the upstream ended without a finish_reason,
// synthesizing the terminator and returning any closing frames still owed
// to the client.
func (s *OpenAIToAnthropicStream) Close() [][]byte {
	if s.done {
		return nil
	}
	if !s.started {
		return nil
	}
	return s.finalize("stop", nil)
}

// AnthropicToOpenAIStream converts a stream of Anthropic /v1/messages SSE
// events into OpenAI chat/completions SSE chunks.
type AnthropicToOpenAIStream struct {
	roleSent   bool
	terminated bool
}

// NewAnthropicToOpenAIStream creates a fresh per-request translator.
func NewAnthropicToOpenAIStream() *AnthropicToOpenAIStream {
	return &AnthropicToOpenAIStream{}
}

// Feed consumes one Anthropic SSE event and returns the OpenAI frames it
// produces. Malformed payloads are skipped; "ping" and "message_stop" are
// absorbed without output (message_stop's terminal effect is driven by the
// preceding message_delta's stop_reason).
func (s *AnthropicToOpenAIStream) Feed(ev Event) [][]byte {
	if ev.Data == "" {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
		return nil
	}

	switch ev.Event {
	case "ping", "message_stop":
		return nil

	case "content_block_start":
		var frames [][]byte
		if !s.roleSent {
			frames = append(frames, s.roleChunk())
			s.roleSent = true
		}
		return frames

	case "content_block_delta":
		delta, _ := payload["delta"].(map[string]any)
		switch delta["type"] {
		case "text_delta":
			text, _ := delta["text"].(string)
			if text == "" {
				return nil
			}
			return [][]byte{s.contentChunk(text)}
		case "input_json_delta":
			partial, _ := delta["partial_json"].(string)
			if partial == "" {
				return nil
			}
			return [][]byte{s.toolCallChunk(partial)}
		}
		return nil

	case "message_delta":
		delta, _ := payload["delta"].(map[string]any)
		stopReason, ok := delta["stop_reason"].(string)
		if !ok || stopReason == "" {
			return nil
		}
		s.terminated = true
		return [][]byte{s.finishChunk(stopReason), EncodeOpenAI(doneMarker)}
	}
	return nil
}

func (s *AnthropicToOpenAIStream) roleChunk() []byte {
	return EncodeOpenAI(mustJSON(map[string]any{
		"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"role": "assistant"}}},
	}))
}

func (s *AnthropicToOpenAIStream) contentChunk(text string) []byte {
	return EncodeOpenAI(mustJSON(map[string]any{
		"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": text}}},
	}))
}

func (s *AnthropicToOpenAIStream) toolCallChunk(argsFragment string) []byte {
	return EncodeOpenAI(mustJSON(map[string]any{
		"choices": []any{map[string]any{
			"index": 0,
			"delta": map[string]any{
				"tool_calls": []any{
					map[string]any{"index": 0, "function": map[string]any{"arguments": argsFragment}},
				},
			},
		}},
	}))
}

func (s *AnthropicToOpenAIStream) finishChunk(stopReason string) []byte {
	finishReason := "stop"
	if mapped, ok := stopReasonToFinishReason[stopReason]; ok {
		finishReason = mapped
	}
	return EncodeOpenAI(mustJSON(map[string]any{
		"choices": []any{map[string]any{"index": 0, "delta": map[string]any{}, "finish_reason": finishReason}},
	}))
}

// Close synthesizes the "[DONE]" terminator if the upstream stream ended
// without one.
func (s *AnthropicToOpenAIStream) Close() [][]byte {
	if s.terminated {
		return nil
	}
	s.terminated = true
	return [][]byte{EncodeOpenAI(doneMarker)}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
