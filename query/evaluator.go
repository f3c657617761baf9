package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oddjobz/nndb/document"
)

// Predicate reports whether doc matches a compiled query. It is the type
// Table.Find's post-filter parameter expects (spec section 4.4).
type Predicate func(document.Document) bool

// Evaluator turns a parsed AST into a Predicate, resolving duration values
// (7d, 24h) relative to a fixed reference time so compiled predicates are
// deterministic and testable.
type Evaluator struct {
	now time.Time
}

// NewEvaluator returns an Evaluator anchored at now.
func NewEvaluator(now time.Time) *Evaluator {
	return &Evaluator{now: now}
}

// Build compiles node into a Predicate.
func (e *Evaluator) Build(node Node) (Predicate, error) {
	switch n := node.(type) {
	case *ComparisonNode:
		return e.buildComparison(n)
	case *AndNode:
		left, err := e.Build(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.Build(n.Right)
		if err != nil {
			return nil, err
		}
		return func(d document.Document) bool { return left(d) && right(d) }, nil
	case *OrNode:
		left, err := e.Build(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.Build(n.Right)
		if err != nil {
			return nil, err
		}
		return func(d document.Document) bool { return left(d) || right(d) }, nil
	case *NotNode:
		operand, err := e.Build(n.Operand)
		if err != nil {
			return nil, err
		}
		return func(d document.Document) bool { return !operand(d) }, nil
	default:
		return nil, fmt.Errorf("unexpected node type: %T", node)
	}
}

func (e *Evaluator) buildComparison(comp *ComparisonNode) (Predicate, error) {
	attr := comp.Attr

	if comp.ValueType == TokenDuration {
		d, err := parseDuration(comp.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", comp.Value, err)
		}
		threshold := e.now.Add(-d)
		return func(doc document.Document) bool {
			t, ok := attrTime(doc[attr])
			if !ok {
				return false
			}
			return compareTime(comp.Op, t, threshold)
		}, nil
	}

	isNone := comp.Value == "" || strings.EqualFold(comp.Value, "none") || strings.EqualFold(comp.Value, "null")

	switch comp.Op {
	case OpEquals, OpNotEquals:
		want := comp.Value
		eq := func(doc document.Document) bool {
			v, present := doc[attr]
			if !present || v == nil {
				return isNone
			}
			return toString(v) == want
		}
		if comp.Op == OpEquals {
			return eq, nil
		}
		return func(doc document.Document) bool { return !eq(doc) }, nil
	case OpLess, OpLessEq, OpGreater, OpGreaterEq:
		wantNum, numErr := strconv.ParseFloat(comp.Value, 64)
		return func(doc document.Document) bool {
			v, present := doc[attr]
			if !present || v == nil {
				return false
			}
			if numErr == nil {
				got, ok := toFloat64(v)
				if !ok {
					return false
				}
				return compareFloat(comp.Op, got, wantNum)
			}
			return compareString(comp.Op, toString(v), comp.Value)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported operator: %s", comp.Op.String())
	}
}

func compareFloat(op ComparisonOp, got, want float64) bool {
	switch op {
	case OpLess:
		return got < want
	case OpLessEq:
		return got <= want
	case OpGreater:
		return got > want
	case OpGreaterEq:
		return got >= want
	default:
		return false
	}
}

func compareString(op ComparisonOp, got, want string) bool {
	switch op {
	case OpLess:
		return got < want
	case OpLessEq:
		return got <= want
	case OpGreater:
		return got > want
	case OpGreaterEq:
		return got >= want
	default:
		return false
	}
}

func compareTime(op ComparisonOp, got, want time.Time) bool {
	switch op {
	case OpEquals:
		return got.Equal(want)
	case OpNotEquals:
		return !got.Equal(want)
	case OpLess:
		return got.Before(want)
	case OpLessEq:
		return got.Before(want) || got.Equal(want)
	case OpGreater:
		return got.After(want)
	case OpGreaterEq:
		return got.After(want) || got.Equal(want)
	default:
		return false
	}
}

// parseDuration parses a compact duration like "7d", "24h", "30s", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	neg := false
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		s = s[1:]
	}
	suffix := s[len(s)-1]
	digits := s[:len(s)-1]
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, err
	}
	var unit time.Duration
	switch suffix {
	case 's', 'S':
		unit = time.Second
	case 'h', 'H':
		unit = time.Hour
	case 'd', 'D':
		unit = 24 * time.Hour
	case 'w', 'W':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown duration suffix %q", suffix)
	}
	d := time.Duration(n) * unit
	if neg {
		d = -d
	}
	return d, nil
}

// attrTime interprets an attribute value as a timestamp: RFC3339 strings,
// or numeric Unix seconds.
func attrTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		t, err := time.Parse(time.RFC3339, x)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case float64:
		return time.Unix(int64(x), 0).UTC(), true
	case int64:
		return time.Unix(x, 0).UTC(), true
	case int:
		return time.Unix(int64(x), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Compile parses and compiles src into a Predicate, anchored at time.Now.
func Compile(src string) (Predicate, error) {
	return CompileAt(src, time.Now())
}

// CompileAt parses and compiles src into a Predicate anchored at now, for
// deterministic testing of duration-relative queries.
func CompileAt(src string, now time.Time) (Predicate, error) {
	node, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return NewEvaluator(now).Build(node)
}
