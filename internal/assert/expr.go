// Package assert implements data-reference binding, the
// bsst-assert/bsst-assume comment grammar, and the plugin hook registry.
package assert

import (
	"fmt"
	"strings"

	"github.com/dgpv/bsst/internal/token"
	"github.com/dgpv/bsst/internal/value"
)

// Rel is a term's relational prefix.
type Rel string

const (
	RelEq  Rel = "="
	RelNe  Rel = "!="
	RelGt  Rel = ">"
	RelLt  Rel = "<"
	RelGe  Rel = ">="
	RelLe  Rel = "<="
)

// Term is one whitespace-separated operand of an assertion/assumption
// expression, with its optional relational prefix.
type Term struct {
	Rel       Rel
	Operand   []byte
	IsRange   bool
	RangeFrom []byte
	RangeTo   []byte
}

// Expr is the parsed form of one bsst-assert/bsst-assume expression body:
// whitespace-separated terms joined by OR.
type Expr struct {
	Terms []Term
}

// ParseExpr parses the text inside `bsst-assert(...):`/`bsst-assume(...):`,
// e.g. "0..10 !=5 'deadbeef'".
func ParseExpr(text string) (Expr, error) {
	fields := strings.Fields(text)
	expr := Expr{}
	for _, f := range fields {
		term, err := parseTerm(f)
		if err != nil {
			return Expr{}, fmt.Errorf("parsing assertion term %q: %w", f, err)
		}
		expr.Terms = append(expr.Terms, term)
	}
	if len(expr.Terms) == 0 {
		return Expr{}, fmt.Errorf("empty assertion expression")
	}
	return expr, nil
}

func parseTerm(f string) (Term, error) {
	rel := RelEq
	for _, candidate := range []Rel{RelGe, RelLe, RelNe, RelEq, RelGt, RelLt} {
		if strings.HasPrefix(f, string(candidate)) {
			rel = candidate
			f = strings.TrimPrefix(f, string(candidate))
			break
		}
	}

	if from, to, ok := strings.Cut(f, ".."); ok && strings.HasPrefix(f, from+"..") {
		fb, err := parseOperand(from)
		if err != nil {
			return Term{}, err
		}
		tb, err := parseOperand(to)
		if err != nil {
			return Term{}, err
		}
		return Term{Rel: rel, IsRange: true, RangeFrom: fb, RangeTo: tb}, nil
	}

	b, err := parseOperand(f)
	if err != nil {
		return Term{}, err
	}
	return Term{Rel: rel, Operand: b}, nil
}

// parseOperand decodes one of: decimal, le64(dec), hex literal, single-
// quoted string, reusing internal/token's classification so the grammar
// matches the tokenizer's own literal syntax exactly.
func parseOperand(s string) ([]byte, error) {
	if strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 2 {
		return []byte(s[1 : len(s)-1]), nil
	}
	tz := token.New("//")
	toks, err := tz.Tokenize(s)
	if err != nil || len(toks) != 1 || toks[0].Kind != token.KindLiteral {
		return nil, fmt.Errorf("unrecognized operand %q", s)
	}
	return toks[0].Literal, nil
}

// ToPredicate builds the OR-of-terms predicate described by e. A range term
// becomes WITHIN (negated under !=); every other term compares target
// numerically (NUMEQUAL, or the comparison its prefix names), including hex
// and string operands: byte-string EQUAL is not used.
func (e Expr) ToPredicate(arena *value.Arena, target value.Value) value.Value {
	var clauses []value.Value
	for _, term := range e.Terms {
		clauses = append(clauses, termPredicate(arena, target, term))
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	result := clauses[0]
	for _, c := range clauses[1:] {
		result = arena.Op(value.KindBoolOr, "", result, c)
	}
	return result
}

func termPredicate(arena *value.Arena, target value.Value, term Term) value.Value {
	if term.IsRange {
		lo := arena.Lit(term.RangeFrom)
		hi := arena.Lit(term.RangeTo)
		within := arena.Op(value.KindWithin, "", target, lo, hi)
		if term.Rel == RelNe {
			return arena.Op(value.KindNot, "", within)
		}
		return within
	}

	lit := arena.Lit(term.Operand)
	switch term.Rel {
	case RelEq:
		return arena.Op(value.KindNumEqual, "", target, lit)
	case RelNe:
		return arena.Op(value.KindNumNotEqual, "", target, lit)
	case RelGt:
		return arena.Op(value.KindGreaterThan, "", target, lit)
	case RelLt:
		return arena.Op(value.KindLessThan, "", target, lit)
	case RelGe:
		return arena.Op(value.KindGreaterThanEqual, "", target, lit)
	case RelLe:
		return arena.Op(value.KindLessThanOrEqual, "", target, lit)
	}
	return arena.Op(value.KindNumEqual, "", target, lit)
}

// And combines any number of predicates under conjunction (nil for none),
// matching
// "multiple adjacent bsst-assert(...)/bsst-assume(...) comments on the same
// target are joined by AND".
func And(arena *value.Arena, preds ...value.Value) value.Value {
	if len(preds) == 0 {
		return nil
	}
	result := preds[0]
	for _, p := range preds[1:] {
		result = arena.Op(value.KindBoolAnd, "", result, p)
	}
	return result
}
