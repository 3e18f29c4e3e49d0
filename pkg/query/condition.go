// Package query implements NogDB's graph query primitives on top of
// pkg/storage: a boolean filter language over a class's properties, the
// find/findSubClassOf/findInEdge/findOutEdge/findEdge class-scoped
// operators, and BFS traversal and shortest-path search across the
// adjacency sub-maps pkg/storage maintains.
//
// Filters divide into a Condition tree (boolean composition of per-property
// leaves), a class-scoped GraphFilter, and explicit BFS queues for the
// traversal operators; conditions evaluate against typed, schema-resolved
// property values rather than raw bytes.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/errs"
)

// Op enumerates every comparison and string-matching operator the filter
// language supports.
type Op uint8

const (
	Eq Op = iota
	Lt
	Le
	Gt
	Ge
	Between
	In
	BeginWith
	EndWith
	Contain
	Like
	Regex
)

// Condition is a node in a filter's boolean expression tree.
type Condition interface {
	// eval reports whether props (propertyName -> decoded Go value)
	// satisfies this condition, given types (propertyName -> declared
	// schema type) to type-check string comparators against. Missing
	// properties never satisfy a comparison leaf, and evaluate as null
	// for the Null leaf. Applying a string-only comparator to a
	// non-Text property reports CTX_INVALID_COMPARATOR.
	eval(props map[string]any, types map[string]codec.PropertyType) (bool, error)
}

// PropCondition compares one named property's value.
type PropCondition struct {
	Name       string
	Op         Op
	Value      any
	Hi         any // second bound, only used by Between
	IgnoreCase bool

	// ExclusiveLo/ExclusiveHi tighten a Between's bounds. The zero values
	// give the default inclusive/inclusive range.
	ExclusiveLo bool
	ExclusiveHi bool
}

// WithIgnoreCase returns a copy of c with case-insensitive string
// comparison enabled.
func (c PropCondition) WithIgnoreCase() PropCondition {
	c.IgnoreCase = true
	return c
}

func (c PropCondition) eval(props map[string]any, types map[string]codec.PropertyType) (bool, error) {
	switch c.Op {
	case BeginWith, EndWith, Contain, Like, Regex:
		if t, ok := types[c.Name]; ok && t != codec.Text {
			return false, errs.New(errs.InvalidComparator, fmt.Sprintf("comparator %s requires a Text property, %q is %s", c.Op, c.Name, t))
		}
	}

	v, ok := props[c.Name]
	if !ok {
		return false, nil
	}
	switch c.Op {
	case Eq:
		return compareEqual(v, c.Value, c.IgnoreCase), nil
	case Lt:
		cmp, ok := c.ordered(v, c.Value)
		return ok && cmp < 0, nil
	case Le:
		cmp, ok := c.ordered(v, c.Value)
		return ok && cmp <= 0, nil
	case Gt:
		cmp, ok := c.ordered(v, c.Value)
		return ok && cmp > 0, nil
	case Ge:
		cmp, ok := c.ordered(v, c.Value)
		return ok && cmp >= 0, nil
	case Between:
		lo, ok1 := c.ordered(v, c.Value)
		hi, ok2 := c.ordered(v, c.Hi)
		if !ok1 || !ok2 {
			return false, nil
		}
		loOK := lo > 0 || (lo == 0 && !c.ExclusiveLo)
		hiOK := hi < 0 || (hi == 0 && !c.ExclusiveHi)
		return loOK && hiOK, nil
	case In:
		values, ok := c.Value.([]any)
		if !ok {
			return false, nil
		}
		for _, candidate := range values {
			if compareEqual(v, candidate, c.IgnoreCase) {
				return true, nil
			}
		}
		return false, nil
	case BeginWith, EndWith, Contain, Like, Regex:
		s, ok := v.(string)
		if !ok {
			return false, nil
		}
		pattern, ok := c.Value.(string)
		if !ok {
			return false, nil
		}
		return evalStringOp(c.Op, s, pattern, c.IgnoreCase), nil
	default:
		return false, nil
	}
}

// Null is satisfied when Name is absent from the record — the decoded
// value of a property that was never set. Its negation, Not{Null{Name}},
// is the conventional way to ask "property is set".
type Null struct{ Name string }

func (n Null) eval(props map[string]any, _ map[string]codec.PropertyType) (bool, error) {
	_, ok := props[n.Name]
	return !ok, nil
}

// Predicate is the Condition leaf wrapping an arbitrary callable over the
// record's decoded property map, so user predicates compose with ordinary
// leaves through And/Or/Not the same as any other condition.
type Predicate struct {
	Fn func(props map[string]any) bool
}

func (p Predicate) eval(props map[string]any, _ map[string]codec.PropertyType) (bool, error) {
	return p.Fn != nil && p.Fn(props), nil
}

func evalStringOp(op Op, s, pattern string, ignoreCase bool) bool {
	if ignoreCase {
		s = strings.ToLower(s)
		pattern = strings.ToLower(pattern)
	}
	switch op {
	case BeginWith:
		return strings.HasPrefix(s, pattern)
	case EndWith:
		return strings.HasSuffix(s, pattern)
	case Contain:
		return strings.Contains(s, pattern)
	case Like:
		return matchLike(s, pattern)
	case Regex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	default:
		return false
	}
}

// matchLike implements SQL-style LIKE matching: '%' is any run of
// characters, '_' is exactly one character.
func matchLike(s, pattern string) bool {
	var re strings.Builder
	re.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			re.WriteString(".*")
		case '_':
			re.WriteString(".")
		default:
			re.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	re.WriteString("$")
	matched, err := regexp.MatchString(re.String(), s)
	return err == nil && matched
}

// ordered is compareOrdered with the condition's IgnoreCase flag applied:
// two strings compare lexicographically over their lowercased forms.
func (c PropCondition) ordered(v, bound any) (int, bool) {
	if c.IgnoreCase {
		if vs, ok := v.(string); ok {
			if bs, ok := bound.(string); ok {
				return strings.Compare(strings.ToLower(vs), strings.ToLower(bs)), true
			}
		}
	}
	return compareOrdered(v, bound)
}

func compareEqual(a, b any, ignoreCase bool) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return false
		}
		if ignoreCase {
			return strings.EqualFold(as, bs)
		}
		return as == bs
	}
	cmp, ok := compareOrdered(a, b)
	return ok && cmp == 0
}

// compareOrdered compares two decoded scalar values of the same family
// (signed integer, unsigned integer, float, or string), returning
// (-1|0|1, true) or (_, false) if they aren't comparable.
func compareOrdered(a, b any) (int, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// And is satisfied when every sub-condition is.
type And []Condition

func (a And) eval(props map[string]any, types map[string]codec.PropertyType) (bool, error) {
	for _, c := range a {
		ok, err := c.eval(props, types)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Or is satisfied when any sub-condition is.
type Or []Condition

func (o Or) eval(props map[string]any, types map[string]codec.PropertyType) (bool, error) {
	for _, c := range o {
		ok, err := c.eval(props, types)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Not negates a sub-condition.
type Not struct{ Cond Condition }

func (n Not) eval(props map[string]any, types map[string]codec.PropertyType) (bool, error) {
	ok, err := n.Cond.eval(props, types)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (op Op) String() string {
	switch op {
	case Eq:
		return "Eq"
	case Lt:
		return "Lt"
	case Le:
		return "Le"
	case Gt:
		return "Gt"
	case Ge:
		return "Ge"
	case Between:
		return "Between"
	case In:
		return "In"
	case BeginWith:
		return "BeginWith"
	case EndWith:
		return "EndWith"
	case Contain:
		return "Contain"
	case Like:
		return "Like"
	case Regex:
		return "Regex"
	default:
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
}
