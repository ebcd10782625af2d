package ruleeval

import (
	"regexp"
	"strings"
)

// Operator is one of the comparison kinds a Rule may apply.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpContains   Operator = "contains"
	OpNotContain Operator = "not_contains"
	OpRegex      Operator = "regex"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpExists     Operator = "exists"
)

// Logic combines Rules within a RuleSet.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Rule is a single predicate: field (a RuleContext dotted path), an
// operator, and a comparison value supplied by the rule author (decoded
// JSON, so string/float64/bool/[]any/map[string]any/nil).
type Rule struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// RuleSet is a flat conjunction/disjunction of Rules. An empty or absent
// RuleSet matches unconditionally under either Logic.
type RuleSet struct {
	Rules []Rule `json:"rules"`
	Logic Logic  `json:"logic"`
}

// Eval evaluates a RuleSet against a Context. A nil RuleSet or one with no
// Rules matches unconditionally, per the data model's "empty RuleSet
// matches" rule.
func (rs *RuleSet) Eval(ctx *Context) bool {
	if rs == nil || len(rs.Rules) == 0 {
		return true
	}
	switch rs.Logic {
	case LogicOr:
		for _, r := range rs.Rules {
			if r.Eval(ctx) {
				return true
			}
		}
		return false
	default: // AND, including unset
		for _, r := range rs.Rules {
			if !r.Eval(ctx) {
				return false
			}
		}
		return true
	}
}

// Eval evaluates a single Rule against a Context. Any internal error
// (bad regex, non-numeric comparison, etc.) is coerced to false rather
// than propagated, per the "evaluation exception caught and coerced to
// false" rule.
func (r Rule) Eval(ctx *Context) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()

	actual := ctx.Get(r.Field)
	expected := FromAny(r.Value)

	switch r.Operator {
	case OpEq:
		return Equal(actual, expected)
	case OpNe:
		return !Equal(actual, expected)
	case OpGt, OpGte, OpLt, OpLte:
		return numericCompare(r.Operator, actual, expected)
	case OpContains, OpNotContain:
		s, ok := actual.AsStr()
		if !ok {
			return r.Operator == OpNotContain
		}
		sub, _ := expected.AsStr()
		has := strings.Contains(s, sub)
		if r.Operator == OpContains {
			return has
		}
		return !has
	case OpRegex:
		s, ok := actual.AsStr()
		if !ok {
			return false
		}
		pattern, _ := expected.AsStr()
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	case OpIn, OpNotIn:
		list, ok := expected.AsList()
		if !ok {
			return false
		}
		found := false
		for _, e := range list {
			if Equal(actual, e) {
				found = true
				break
			}
		}
		if r.Operator == OpIn {
			return found
		}
		return !found
	case OpExists:
		want, _ := expected.AsBool()
		present := !actual.IsAbsent()
		return present == want
	default:
		return false
	}
}

func numericCompare(op Operator, actual, expected Value) bool {
	a, ok1 := actual.AsNum()
	b, ok2 := expected.AsNum()
	if !ok1 || !ok2 {
		return false
	}
	switch op {
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	}
	return false
}
