// Package orchestrator implements the Proxy Orchestrator (C8): it composes
// the rule evaluator, candidate selector, selection strategy, protocol
// translator, upstream client, retry engine, and token accountant into the
// full request lifecycle, and emits the sanitized LogRecord via the log
// sink.
package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jordanhubbard/protogate/internal/catalog"
	"github.com/jordanhubbard/protogate/internal/logsink"
	"github.com/jordanhubbard/protogate/internal/retry"
	"github.com/jordanhubbard/protogate/internal/ruleeval"
	"github.com/jordanhubbard/protogate/internal/selector"
	"github.com/jordanhubbard/protogate/internal/strategy"
	"github.com/jordanhubbard/protogate/internal/tokencount"
	"github.com/jordanhubbard/protogate/internal/translate"
	"github.com/jordanhubbard/protogate/internal/upstream"
)

// Kind enumerates the error taxonomy.
type Kind string

const (
	KindMissingModel          Kind = "missing_model"
	KindModelNotFound         Kind = "model_not_found"
	KindModelDisabled         Kind = "model_disabled"
	KindNoAvailableProvider   Kind = "no_available_provider"
	KindUnsupportedConversion Kind = "unsupported_protocol_conversion"
	KindUpstreamError         Kind = "upstream_error"
	KindUpstreamRejected      Kind = "upstream_rejected"
	KindClientCancelled       Kind = "client_cancelled"
)

// statusFor maps a Kind to its surfaced HTTP status. Kinds whose status is
// carried by the upstream response itself (KindUpstreamRejected) are not in
// this table; the caller uses the upstream status directly.
var statusFor = map[Kind]int{
	KindMissingModel:          http.StatusNotFound,
	KindModelNotFound:         http.StatusNotFound,
	KindModelDisabled:         http.StatusServiceUnavailable,
	KindNoAvailableProvider:   http.StatusServiceUnavailable,
	KindUnsupportedConversion: http.StatusBadRequest,
	KindUpstreamError:         http.StatusBadGateway,
	KindClientCancelled:       499, // nginx's non-standard "client closed request"
}

// Error is the orchestrator's typed failure, carrying both the taxonomy Kind
// and the status to surface to the client.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Status: statusFor[kind], Err: err}
}

// HealthRecorder is A7's observation surface; nil-safe if unused.
type HealthRecorder interface {
	RecordSuccess(providerID string, latencyMs float64)
	RecordError(providerID string, errMsg string)
}

// BreakerRecorder is A8's observation surface; nil-safe if unused.
type BreakerRecorder interface {
	RecordSuccess(providerID string)
	RecordFailure(providerID string)
}

// Request is one inbound call, already authenticated (principal resolved)
// and header/body-decoded by the HTTP layer.
type Request struct {
	ClientProtocol catalog.Protocol
	Path           string
	Method         string
	Headers        map[string]string
	Body           map[string]any
	Stream         bool
	APIKeyID       string
	APIKeyName     string
}

// Response is what the orchestrator hands back to the HTTP layer: either a
// buffered Body, or a Stream to pull translated SSE frames from (mutually
// exclusive). TraceID/TargetModel/ProviderName back its response
// headers.
type Response struct {
	TraceID      string
	Status       int
	Body         []byte
	Stream       *StreamResult
	TargetModel  string
	ProviderName string
	RetryCount   int
}

// Orchestrator wires C1-C7 + C9 into the request lifecycle. Health and
// Breaker are optional observation hooks; a nil Availability treats every
// provider as available and a nil Sink skips persistence. The other fields
// are required.
type Orchestrator struct {
	Repo         catalog.Repo
	Strategies   map[catalog.Strategy]strategy.Strategy
	Availability selector.Availability
	Client       *upstream.Client
	Sink         logsink.Sink
	Health       HealthRecorder
	Breaker      BreakerRecorder
	RetryOptions retry.Options
}

// Handle runs its ten-step lifecycle for one request.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Response, *Error) {
	traceID := newTraceID()
	rec := logsink.LogRecord{
		TraceID:        traceID,
		Timestamp:      time.Now(),
		APIKeyID:       req.APIKeyID,
		APIKeyName:     req.APIKeyName,
		RequestHeaders: req.Headers,
		Stream:         req.Stream,
	}
	if raw, err := json.Marshal(req.Body); err == nil {
		rec.RequestBody = string(raw)
	}

	requestedModel, _ := req.Body["model"].(string)
	rec.RequestedModel = requestedModel
	if requestedModel == "" {
		return nil, o.fail(ctx, rec, newError(KindMissingModel, errors.New("request body missing \"model\"")))
	}

	mapping, ok := o.Repo.Mapping(requestedModel)
	if !ok {
		return nil, o.fail(ctx, rec, newError(KindModelNotFound, fmt.Errorf("no mapping for model %q", requestedModel)))
	}
	if !mapping.Active {
		return nil, o.fail(ctx, rec, newError(KindModelDisabled, fmt.Errorf("mapping for model %q is disabled", requestedModel)))
	}

	bindings := o.Repo.Bindings(requestedModel)
	if len(bindings) == 0 {
		return nil, o.fail(ctx, rec, newError(KindNoAvailableProvider, fmt.Errorf("no bindings for model %q", requestedModel)))
	}
	providers := map[string]catalog.Provider{}
	for _, b := range bindings {
		if p, ok := o.Repo.Provider(b.ProviderID); ok {
			providers[b.ProviderID] = p
		}
	}

	messages := extractMessages(req.ClientProtocol, req.Body)
	inputTokens := tokencount.CountInput(req.ClientProtocol, requestedModel, messages)
	rec.InputTokens = inputTokens

	ruleCtx := ruleeval.NewContext(requestedModel, req.Headers, req.Body, ruleeval.TokenUsage{InputTokens: inputTokens})
	candidates := selector.Select(mapping, bindings, providers, ruleCtx, o.Availability)
	if len(candidates) == 0 {
		return nil, o.fail(ctx, rec, newError(KindNoAvailableProvider, fmt.Errorf("no eligible candidates for model %q", requestedModel)))
	}

	strat := o.Strategies[mapping.Strategy]
	if strat == nil {
		strat = o.Strategies[catalog.StrategyRoundRobin]
	}

	// Protocol conversion support is a static fact of (client protocol,
	// provider protocol, path), not a runtime failure to retry around: drop
	// unsupported candidates up front so the retry engine only ever sees
	// candidates that can actually carry this request.
	translatable := make([]catalog.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, _, err := translate.TranslateRequest(req.ClientProtocol, c.Protocol, req.Path, req.Body, c.TargetModel); err == nil {
			translatable = append(translatable, c)
		}
	}
	if len(translatable) == 0 {
		return nil, o.fail(ctx, rec, newError(KindUnsupportedConversion, fmt.Errorf("no candidate for model %q supports this protocol conversion", requestedModel)))
	}
	candidates = translatable

	forward := func(ctx context.Context, c catalog.Candidate) *upstream.Response {
		path, body, err := translate.TranslateRequest(req.ClientProtocol, c.Protocol, req.Path, req.Body, c.TargetModel)
		if err != nil {
			// Unreachable given the pre-filter above; kept as a defensive
			// non-transient failure so Run never spins retries on it.
			return &upstream.Response{Status: http.StatusBadRequest, Err: nil}
		}
		return o.Client.Forward(ctx, c, path, req.Method, req.Headers, body, req.Stream)
	}

	result := retry.Run(ctx, candidates, strat, requestedModel, o.RetryOptions, forward, o.observe)
	rec.RetryCount = result.RetryCount
	rec.ProviderID = result.Candidate.ProviderID
	rec.ProviderName = result.Candidate.ProviderName
	rec.TargetModel = result.Candidate.TargetModel

	if result.Cancelled {
		rec.Error = string(KindClientCancelled)
		o.persist(ctx, rec)
		return nil, newError(KindClientCancelled, ctx.Err())
	}

	resp := result.Response
	if resp == nil {
		return nil, o.fail(ctx, rec, newError(KindUpstreamError, errors.New("no upstream response")))
	}
	if resp.TTFBMillis > 0 {
		rec.TTFBMillis = ptr(resp.TTFBMillis)
	}

	if !result.Success {
		kind := KindUpstreamError
		if len(candidates) == 1 && resp.Status >= 400 && resp.Status < 500 {
			kind = KindUpstreamRejected
		}
		rec.ResponseStatus = resp.Status
		if resp.Body != nil {
			rec.ResponseBody = string(resp.Body)
		}
		if resp.Err != nil {
			rec.Error = resp.Err.Error()
		}
		o.persist(ctx, rec)
		status := resp.Status
		if kind == KindUpstreamError {
			status = http.StatusBadGateway
		}
		return nil, &Error{Kind: kind, Status: status, Err: resp.Err}
	}

	out := &Response{
		TraceID:      traceID,
		TargetModel:  result.Candidate.TargetModel,
		ProviderName: result.Candidate.ProviderName,
		RetryCount:   result.RetryCount,
	}

	if req.Stream && resp.Stream != nil {
		sr := newStreamResult(resp.Stream, req.ClientProtocol, result.Candidate.Protocol)
		out.Status = resp.Status
		out.Stream = sr
		// Output tokens and TotalMillis are only known once the stream is
		// drained; StreamResult.Close runs onClose, which persists them.
		sr.onClose = func() {
			rec.OutputTokens = sr.outputTokens
			rec.TotalMillis = ptr(sr.totalMillis(resp.TTFBMillis))
			rec.ResponseStatus = resp.Status
			o.persist(ctx, rec)
		}
		return out, nil
	}

	clientBody, err := translate.TranslateResponseBuffered(req.ClientProtocol, result.Candidate.Protocol, decodeJSON(resp.Body))
	if err != nil {
		rec.Error = err.Error()
		o.persist(ctx, rec)
		return nil, newError(KindUnsupportedConversion, err)
	}
	outBody, _ := json.Marshal(clientBody)

	switch result.Candidate.Protocol {
	case catalog.ProtocolOpenAI:
		rec.OutputTokens = tokencount.OutputTokensFromOpenAI(decodeJSON(resp.Body))
	case catalog.ProtocolAnthropic:
		rec.OutputTokens = tokencount.OutputTokensFromAnthropic(decodeJSON(resp.Body))
	}
	rec.ResponseStatus = resp.Status
	rec.ResponseBody = string(outBody)
	if resp.TotalMillis > 0 {
		rec.TotalMillis = ptr(resp.TotalMillis)
	}
	o.persist(ctx, rec)

	out.Status = resp.Status
	out.Body = outBody
	return out, nil
}

func (o *Orchestrator) observe(providerID string, success bool) {
	if success {
		if o.Health != nil {
			o.Health.RecordSuccess(providerID, 0)
		}
		if o.Breaker != nil {
			o.Breaker.RecordSuccess(providerID)
		}
		return
	}
	if o.Health != nil {
		o.Health.RecordError(providerID, "upstream attempt failed")
	}
	if o.Breaker != nil {
		o.Breaker.RecordFailure(providerID)
	}
}

func (o *Orchestrator) fail(ctx context.Context, rec logsink.LogRecord, err *Error) *Error {
	rec.Error = err.Error()
	o.persist(ctx, rec)
	return err
}

func (o *Orchestrator) persist(ctx context.Context, rec logsink.LogRecord) {
	if o.Sink == nil {
		return
	}
	_ = o.Sink.Append(ctx, logsink.Sanitize(rec))
}

func newTraceID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func ptr(v int64) *int64 { return &v }

func decodeJSON(raw []byte) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}

func extractMessages(protocol catalog.Protocol, body map[string]any) []tokencount.Message {
	if protocol == catalog.ProtocolAnthropic {
		return tokencount.MessagesFromAnthropicBody(body)
	}
	return tokencount.MessagesFromOpenAIBody(body)
}
