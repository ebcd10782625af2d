package ruleeval

import (
	"strconv"
	"strings"
)

// TokenUsage mirrors the token_usage.{input_tokens,output_tokens,total_tokens}
// addressable fields from the RuleContext data model.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Context is the addressable snapshot of a request used by rule evaluation.
// Headers are case-insensitive by key; Body is a tagged-union tree produced
// from the decoded JSON request body.
type Context struct {
	CurrentModel string
	Headers      map[string]string
	Body         Value
	TokenUsage   TokenUsage
}

// NewContext builds a Context from raw inputs, lower-casing header keys so
// that headers.<name> lookups are case-insensitive as required by the data
// model.
func NewContext(currentModel string, headers map[string]string, body any, usage TokenUsage) *Context {
	lc := make(map[string]string, len(headers))
	for k, v := range headers {
		lc[strings.ToLower(k)] = v
	}
	return &Context{
		CurrentModel: currentModel,
		Headers:      lc,
		Body:         FromAny(body),
		TokenUsage:   usage,
	}
}

// Get resolves a dotted path against the context. Path segments may carry a
// trailing [idx] to index into a list. Missing paths resolve to Absent,
// which callers must treat distinctly from Null.
func (c *Context) Get(path string) Value {
	if path == "model" {
		return Str(c.CurrentModel)
	}
	if rest, ok := strings.CutPrefix(path, "headers."); ok {
		v, ok := c.Headers[strings.ToLower(rest)]
		if !ok {
			return Absent
		}
		return Str(v)
	}
	switch path {
	case "token_usage.input_tokens":
		return Num(float64(c.TokenUsage.InputTokens))
	case "token_usage.output_tokens":
		return Num(float64(c.TokenUsage.OutputTokens))
	case "token_usage.total_tokens":
		return Num(float64(c.TokenUsage.InputTokens + c.TokenUsage.OutputTokens))
	}
	if rest, ok := strings.CutPrefix(path, "body."); ok {
		return walk(c.Body, splitSegments(rest))
	}
	return Absent
}

// segment is one step of a body.<path> walk: a map key, optionally followed
// by a list index.
type segment struct {
	key   string
	index int
	hasIx bool
}

func splitSegments(path string) []segment {
	parts := strings.Split(path, ".")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		key := p
		idx := -1
		hasIx := false
		if open := strings.IndexByte(p, '['); open >= 0 && strings.HasSuffix(p, "]") {
			key = p[:open]
			if n, err := strconv.Atoi(p[open+1 : len(p)-1]); err == nil {
				idx = n
				hasIx = true
			}
		}
		segs = append(segs, segment{key: key, index: idx, hasIx: hasIx})
	}
	return segs
}

func walk(v Value, segs []segment) Value {
	cur := v
	for _, seg := range segs {
		m, ok := cur.AsMapValue()
		if !ok {
			return Absent
		}
		next, ok := m[seg.key]
		if !ok {
			return Absent
		}
		cur = next
		if seg.hasIx {
			list, ok := cur.AsList()
			if !ok || seg.index < 0 || seg.index >= len(list) {
				return Absent
			}
			cur = list[seg.index]
		}
	}
	return cur
}

// AsMapValue exposes the underlying map for path traversal without letting
// callers outside the package mutate it.
func (v Value) AsMapValue() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}
