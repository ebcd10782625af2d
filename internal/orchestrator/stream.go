package orchestrator

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/jordanhubbard/protogate/internal/catalog"
	"github.com/jordanhubbard/protogate/internal/translate"
)

// streamTranslator is the shape both translate.OpenAIToAnthropicStream and
// translate.AnthropicToOpenAIStream satisfy.
type streamTranslator interface {
	Feed(ev translate.Event) [][]byte
	Close() [][]byte
}

// identityStreamTranslator re-encodes each event unchanged, for same-protocol
// streaming where no cross-protocol transform is needed but usage scanning
// and a single StreamResult code path still apply.
type identityStreamTranslator struct{}

func (identityStreamTranslator) Feed(ev translate.Event) [][]byte {
	if ev.Event != "" {
		return [][]byte{translate.EncodeAnthropic(ev.Event, ev.Data)}
	}
	return [][]byte{translate.EncodeOpenAI(ev.Data)}
}

func (identityStreamTranslator) Close() [][]byte { return nil }

// StreamResult pulls translated SSE frames one at a time from an upstream
// stream, per the design note's pull-based iterator. The HTTP layer calls
// Next in a loop, writing each frame and flushing, until io.EOF.
type StreamResult struct {
	upstream   io.ReadCloser
	reader     *translate.EventReader
	translator streamTranslator
	providerP  catalog.Protocol

	queue    [][]byte
	queueIdx int

	outputTokens int
	start        time.Time

	closeOnce sync.Once
	onClose   func()
}

func newStreamResult(upstream io.ReadCloser, clientProtocol, providerProtocol catalog.Protocol) *StreamResult {
	var t streamTranslator
	switch {
	case clientProtocol == providerProtocol:
		t = identityStreamTranslator{}
	case clientProtocol == catalog.ProtocolAnthropic && providerProtocol == catalog.ProtocolOpenAI:
		t = translate.NewOpenAIToAnthropicStream()
	case clientProtocol == catalog.ProtocolOpenAI && providerProtocol == catalog.ProtocolAnthropic:
		t = translate.NewAnthropicToOpenAIStream()
	default:
		t = identityStreamTranslator{}
	}
	return &StreamResult{
		upstream:   upstream,
		reader:     translate.NewEventReader(upstream),
		translator: t,
		providerP:  providerProtocol,
		start:      time.Now(),
	}
}

// Next returns the next translated SSE frame, or io.EOF once the translator
// has emitted everything (including any synthesized terminator).
func (s *StreamResult) Next() ([]byte, error) {
	for {
		if s.queueIdx < len(s.queue) {
			f := s.queue[s.queueIdx]
			s.queueIdx++
			return f, nil
		}

		ev, err := s.reader.Next()
		if err != nil {
			if err == io.EOF {
				frames := s.translator.Close()
				if len(frames) == 0 {
					return nil, io.EOF
				}
				s.queue, s.queueIdx = frames, 0
				continue
			}
			return nil, err
		}

		s.scanUsage(ev)
		frames := s.translator.Feed(ev)
		if len(frames) == 0 {
			continue
		}
		s.queue, s.queueIdx = frames, 0
	}
}

// scanUsage implements the streaming half of its output-token
// harvesting: OpenAI's usage field on the final chunk, or Anthropic's
// message_delta.usage.output_tokens.
func (s *StreamResult) scanUsage(ev translate.Event) {
	if ev.Data == "" || ev.Data == "[DONE]" {
		return
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
		return
	}
	switch s.providerP {
	case catalog.ProtocolOpenAI:
		usage, ok := payload["usage"].(map[string]any)
		if !ok {
			return
		}
		if ct, ok := usage["completion_tokens"].(float64); ok {
			s.outputTokens = int(ct)
		}
	case catalog.ProtocolAnthropic:
		if ev.Event != "message_delta" {
			return
		}
		delta, ok := payload["delta"].(map[string]any)
		if !ok {
			return
		}
		usage, ok := delta["usage"].(map[string]any)
		if !ok {
			return
		}
		if ot, ok := usage["output_tokens"].(float64); ok {
			s.outputTokens = int(ot)
		}
	}
}

func (s *StreamResult) totalMillis(ttfb int64) int64 {
	total := time.Since(s.start).Milliseconds()
	if total < ttfb {
		return ttfb
	}
	return total
}

// Close releases the upstream connection and, once, invokes onClose so the
// orchestrator can finalize and persist the LogRecord with the now-known
// output token count and total duration.
func (s *StreamResult) Close() error {
	err := s.upstream.Close()
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
	return err
}
