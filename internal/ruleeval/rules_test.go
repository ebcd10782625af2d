package ruleeval

import "testing"

func ctxWithBody(body any) *Context {
	return NewContext("gpt-4", map[string]string{"X-Priority": "gold"}, body, TokenUsage{InputTokens: 10, OutputTokens: 2})
}

func TestEmptyRuleSetMatchesUnconditionally(t *testing.T) {
	ctx := ctxWithBody(map[string]any{})
	for _, logic := range []Logic{LogicAnd, LogicOr, ""} {
		rs := &RuleSet{Logic: logic}
		if !rs.Eval(ctx) {
			t.Errorf("empty RuleSet with logic %q should match unconditionally", logic)
		}
	}
	var nilrs *RuleSet
	if !nilrs.Eval(ctx) {
		t.Error("nil RuleSet should match unconditionally")
	}
}

func TestHeaderEqMatch(t *testing.T) {
	ctx := ctxWithBody(map[string]any{})
	r := Rule{Field: "headers.x-priority", Operator: OpEq, Value: "gold"}
	if !r.Eval(ctx) {
		t.Error("expected header rule to match (case-insensitive key)")
	}
}

func TestHeaderMissingExists(t *testing.T) {
	ctx := ctxWithBody(map[string]any{})
	absent := Rule{Field: "headers.x-missing", Operator: OpExists, Value: false}
	if !absent.Eval(ctx) {
		t.Error("missing header should satisfy exists=false")
	}
	present := Rule{Field: "headers.x-priority", Operator: OpExists, Value: true}
	if !present.Eval(ctx) {
		t.Error("present header should satisfy exists=true")
	}
}

func TestNumericComparisons(t *testing.T) {
	ctx := ctxWithBody(map[string]any{})
	cases := []struct {
		op   Operator
		val  float64
		want bool
	}{
		{OpGt, 5, true},
		{OpGte, 10, true},
		{OpLt, 20, true},
		{OpLte, 9, false},
	}
	for _, c := range cases {
		r := Rule{Field: "token_usage.input_tokens", Operator: c.op, Value: c.val}
		if got := r.Eval(ctx); got != c.want {
			t.Errorf("%s %v: got %v want %v", c.op, c.val, got, c.want)
		}
	}
}

func TestNumericComparisonOnAbsentIsFalse(t *testing.T) {
	ctx := ctxWithBody(map[string]any{})
	r := Rule{Field: "body.nope", Operator: OpGt, Value: 1}
	if r.Eval(ctx) {
		t.Error("gt on absent field must be false")
	}
}

func TestContainsAndNotContains(t *testing.T) {
	ctx := ctxWithBody(map[string]any{"model_hint": "claude-sonnet"})
	has := Rule{Field: "body.model_hint", Operator: OpContains, Value: "sonnet"}
	if !has.Eval(ctx) {
		t.Error("expected contains match")
	}
	notHas := Rule{Field: "body.model_hint", Operator: OpNotContain, Value: "haiku"}
	if !notHas.Eval(ctx) {
		t.Error("expected not_contains match")
	}
	// non-string actual: contains=false, not_contains=true
	ctx2 := ctxWithBody(map[string]any{"count": 3.0})
	nonString := Rule{Field: "body.count", Operator: OpContains, Value: "3"}
	if nonString.Eval(ctx2) {
		t.Error("contains on non-string actual must be false")
	}
	nonStringNeg := Rule{Field: "body.count", Operator: OpNotContain, Value: "3"}
	if !nonStringNeg.Eval(ctx2) {
		t.Error("not_contains on non-string actual must be true")
	}
}

func TestRegexMatchAndCompileError(t *testing.T) {
	ctx := ctxWithBody(map[string]any{"model_hint": "claude-3-opus"})
	ok := Rule{Field: "body.model_hint", Operator: OpRegex, Value: `^claude-\d`}
	if !ok.Eval(ctx) {
		t.Error("expected regex match")
	}
	bad := Rule{Field: "body.model_hint", Operator: OpRegex, Value: `(unterminated`}
	if bad.Eval(ctx) {
		t.Error("regex compile error must evaluate to false")
	}
}

func TestInAndNotIn(t *testing.T) {
	ctx := ctxWithBody(map[string]any{})
	r := Rule{Field: "model", Operator: OpIn, Value: []any{"gpt-4", "claude"}}
	if !r.Eval(ctx) {
		t.Error("expected in match")
	}
	r2 := Rule{Field: "model", Operator: OpNotIn, Value: []any{"llama"}}
	if !r2.Eval(ctx) {
		t.Error("expected not_in match")
	}
	r3 := Rule{Field: "model", Operator: OpIn, Value: "not-a-list"}
	if r3.Eval(ctx) {
		t.Error("in with non-list expected value must be false")
	}
}

func TestListIndexPath(t *testing.T) {
	ctx := ctxWithBody(map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "hi"},
		},
	})
	r := Rule{Field: "body.messages[0].role", Operator: OpEq, Value: "user"}
	if !r.Eval(ctx) {
		t.Error("expected indexed path match")
	}
}

func TestRuleSetAndOrLogic(t *testing.T) {
	ctx := ctxWithBody(map[string]any{})
	rs := &RuleSet{
		Logic: LogicAnd,
		Rules: []Rule{
			{Field: "headers.x-priority", Operator: OpEq, Value: "gold"},
			{Field: "headers.x-priority", Operator: OpEq, Value: "silver"},
		},
	}
	if rs.Eval(ctx) {
		t.Error("AND of a true and a false rule must be false")
	}
	rs.Logic = LogicOr
	if !rs.Eval(ctx) {
		t.Error("OR of a true and a false rule must be true")
	}
}
