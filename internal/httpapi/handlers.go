package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jordanhubbard/protogate/internal/catalog"
	"github.com/jordanhubbard/protogate/internal/events"
	"github.com/jordanhubbard/protogate/internal/orchestrator"
	"github.com/jordanhubbard/protogate/internal/principal"
)

// maxStreamBytes caps how much of an upstream SSE stream a single request
// may relay, against a runaway or adversarial upstream.
const maxStreamBytes = 64 << 20 // 64MiB

// ChatHandler implements POST /v1/chat/completions (OpenAI-protocol).
// Streaming is client-selected via the "stream" body field.
func ChatHandler(d Dependencies) http.HandlerFunc {
	return proxyHandler(d, catalog.ProtocolOpenAI, "/v1/chat/completions", true)
}

// CompletionsHandler implements POST /v1/completions (OpenAI-protocol).
// Non-streaming only: a "stream": true body is rejected with 400.
func CompletionsHandler(d Dependencies) http.HandlerFunc {
	return proxyHandler(d, catalog.ProtocolOpenAI, "/v1/completions", false)
}

// EmbeddingsHandler implements POST /v1/embeddings (OpenAI-protocol).
// Non-streaming only: a "stream": true body is rejected with 400.
func EmbeddingsHandler(d Dependencies) http.HandlerFunc {
	return proxyHandler(d, catalog.ProtocolOpenAI, "/v1/embeddings", false)
}

// MessagesHandler implements POST /v1/messages (Anthropic-protocol).
// Streaming is client-selected via the "stream" body field.
func MessagesHandler(d Dependencies) http.HandlerFunc {
	return proxyHandler(d, catalog.ProtocolAnthropic, "/v1/messages", true)
}

// proxyHandler decodes the inbound body, calls through to the orchestrator,
// and either writes a buffered response or relays a translated SSE stream.
// One handler body serves all four routes; only the client protocol,
// canonical path, and streaming eligibility differ between them. When
// allowStream is false, a body requesting "stream": true is rejected with
// 400 rather than silently streamed or silently forced to buffered.
func proxyHandler(d Dependencies, clientProtocol catalog.Protocol, path string, allowStream bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		stream, _ := body["stream"].(bool)
		if stream && !allowStream {
			jsonError(w, "streaming is not supported on "+path, http.StatusBadRequest)
			return
		}
		headers := make(map[string]string, len(r.Header))
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}

		var keyID, keyName string
		if p := principal.FromContext(r.Context()); p != nil {
			keyID, keyName = p.ID, p.Name
		}

		req := orchestrator.Request{
			ClientProtocol: clientProtocol,
			Path:           path,
			Method:         http.MethodPost,
			Headers:        headers,
			Body:           body,
			Stream:         stream,
			APIKeyID:       keyID,
			APIKeyName:     keyName,
		}

		resp, oerr := d.Orchestrator.Handle(r.Context(), req)
		if oerr != nil {
			writeOrchestratorError(w, d, oerr)
			return
		}

		w.Header().Set("X-Trace-ID", resp.TraceID)
		w.Header().Set("X-Target-Model", resp.TargetModel)
		w.Header().Set("X-Provider", resp.ProviderName)

		if d.Events != nil {
			d.Events.Publish(events.Event{
				Type:       events.EventRouteSuccess,
				TraceID:    resp.TraceID,
				ProviderID: resp.ProviderName,
				RetryCount: resp.RetryCount,
			})
		}

		if resp.Stream != nil {
			writeStream(w, resp.Stream)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Body)
	}
}

// writeStream relays translated SSE frames to the client as they arrive,
// flushing after each one so the client sees tokens as the provider emits
// them.
func writeStream(w http.ResponseWriter, stream *orchestrator.StreamResult) {
	defer stream.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var written int64
	bw := bufio.NewWriterSize(w, 4096)
	for {
		frame, err := stream.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				_, _ = bw.Write([]byte(fmt.Sprintf("event: error\ndata: %q\n\n", err.Error())))
				_ = bw.Flush()
				flusher.Flush()
			}
			return
		}
		written += int64(len(frame))
		if written > maxStreamBytes {
			return
		}
		if _, err := bw.Write(frame); err != nil {
			return
		}
		if err := bw.Flush(); err != nil {
			return
		}
		flusher.Flush()
	}
}

// writeOrchestratorError maps an *orchestrator.Error to its wire
// shape and, where the bus is wired, publishes a route_error event.
func writeOrchestratorError(w http.ResponseWriter, d Dependencies, oerr *orchestrator.Error) {
	if d.Events != nil {
		d.Events.Publish(events.Event{
			Type:       events.EventRouteError,
			ErrorClass: string(oerr.Kind),
			ErrorMsg:   oerr.Error(),
		})
	}
	status := oerr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	jsonError(w, oerr.Error(), status)
}
