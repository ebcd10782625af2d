// Package upstream implements the Upstream Client (C5): one HTTP call to a
// provider, buffered or streaming, with TTFB/total timing capture and
// credential injection. One candidate-driven Forward call covers every
// provider since each speaks one of exactly two wire shapes (OpenAI or
// Anthropic) rather than needing a bespoke adapter type per backend.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jordanhubbard/protogate/internal/catalog"
)

// hopByHopHeaders are stripped from the client's header set before
// forwarding, along with the client-bound authorization header.
var hopByHopHeaders = map[string]bool{
	"host":              true,
	"content-length":    true,
	"content-encoding":  true,
	"accept-encoding":   true,
	"connection":        true,
	"transfer-encoding": true,
	"authorization":     true,
}

// Response is the Upstream Client's result for one call. For a streaming
// call, Stream is non-nil and Body is nil; the caller must close Stream to
// release the connection and finalize TotalMillis.
type Response struct {
	Status      int
	Headers     http.Header
	Body        []byte
	Stream      io.ReadCloser
	TTFBMillis  int64
	TotalMillis int64
	Err         error
}

// Client issues HTTP calls to upstream providers.
type Client struct {
	http *http.Client
}

// New builds a Client. If httpClient is nil, a plain http.Client with a
// 5-minute timeout is used; its transport is not OTel-instrumented.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{http: httpClient}
}

// Forward performs one call: strip hop-by-hop headers, inject
// the provider credential, prepend base_url, send body as JSON, and capture
// TTFB/total timing. Network/timeout/TLS/DNS failures are reported as
// Response{Status: 0, Err: ...} rather than a returned error, since callers
// (the retry engine) treat them identically to a 5xx.
func (c *Client) Forward(ctx context.Context, candidate catalog.Candidate, path, method string, clientHeaders map[string]string, body any, stream bool) *Response {
	start := time.Now()

	ctx, span := otel.Tracer("gateway.upstream").Start(ctx, "upstream.forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.id", candidate.ProviderID),
			attribute.String("http.url", candidate.BaseURL+path),
		),
	)
	// For a buffered call the span ends when this function returns; for a
	// streaming call ownership of span.End transfers to the returned Stream.
	streaming := false
	defer func() {
		if !streaming {
			span.End()
		}
	}()

	jsonBody, err := json.Marshal(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal failed")
		return &Response{Err: fmt.Errorf("marshal upstream body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, method, candidate.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create request failed")
		return &Response{Err: fmt.Errorf("build upstream request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range clientHeaders {
		if hopByHopHeaders[strings.ToLower(k)] {
			continue
		}
		req.Header.Set(k, v)
	}
	injectCredential(req, candidate)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return &Response{Status: 0, Err: err, TotalMillis: time.Since(start).Milliseconds()}
	}

	ttfb := time.Since(start).Milliseconds()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if stream {
		streaming = true
		span.SetStatus(codes.Ok, "")
		return &Response{
			Status:     resp.StatusCode,
			Headers:    resp.Header,
			Stream:     &spanClosingStream{ReadCloser: resp.Body, start: start, span: span},
			TTFBMillis: ttfb,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read response failed")
		return &Response{Status: resp.StatusCode, Err: fmt.Errorf("read upstream response: %w", err), TTFBMillis: ttfb}
	}

	span.SetStatus(codes.Ok, "")
	return &Response{
		Status:      resp.StatusCode,
		Headers:     resp.Header,
		Body:        respBody,
		TTFBMillis:  ttfb,
		TotalMillis: time.Since(start).Milliseconds(),
	}
}

func injectCredential(req *http.Request, candidate catalog.Candidate) {
	switch candidate.Protocol {
	case catalog.ProtocolAnthropic:
		req.Header.Set("x-api-key", candidate.APIKey)
		if req.Header.Get("anthropic-version") == "" {
			req.Header.Set("anthropic-version", "2023-06-01")
		}
	default: // ProtocolOpenAI and anything OpenAI-shaped
		req.Header.Set("Authorization", "Bearer "+candidate.APIKey)
	}
}

// spanClosingStream tracks a streaming response's total duration and ends
// its OTel span once the caller finishes consuming the stream and closes it.
type spanClosingStream struct {
	io.ReadCloser
	start       time.Time
	span        trace.Span
	TotalMillis int64
}

func (t *spanClosingStream) Close() error {
	err := t.ReadCloser.Close()
	t.TotalMillis = time.Since(t.start).Milliseconds()
	t.span.End()
	return err
}
