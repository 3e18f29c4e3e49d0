package query

import (
	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/storage"
)

// GraphFilter restricts a find/traversal operation to one class and an
// optional boolean condition and/or predicate function. Leaving both Cond
// and Predicate nil matches every record of ClassName, mirroring NogDB's
// bare find(className) call.
//
// Only/OnlySubClassOf/Exclude/ExcludeSubClassOf narrow the set of classes a
// multi-class operator (FindSubClassOf, Traverse, ShortestPath) considers,
// on top of the base ClassName restriction: Only/OnlySubClassOf name the
// sole classes (or class-plus-subclasses) eligible, Exclude/
// ExcludeSubClassOf name classes (or class-plus-subclasses) to drop from an
// otherwise-eligible set. Naming a class that doesn't exist in any of these
// four fields never errors — it simply can't match anything, exactly as if
// the class were empty.
type GraphFilter struct {
	ClassName         string
	Cond              Condition
	Predicate         func(*storage.Record) bool
	Only              []string
	OnlySubClassOf    []string
	Exclude           []string
	ExcludeSubClassOf []string
}

// classAllowed reports whether className passes this filter's Only/Exclude
// restrictions, resolved against cat. A filter with no Only/Exclude fields
// set allows every class.
func (f GraphFilter) classAllowed(cat *storage.Catalog, className string) (bool, error) {
	if len(f.Only) > 0 || len(f.OnlySubClassOf) > 0 {
		allowed := false
		for _, n := range f.Only {
			if n == className {
				allowed = true
				break
			}
		}
		if !allowed {
			for _, n := range f.OnlySubClassOf {
				ok, err := isSubClassOrSelf(cat, n, className)
				if err != nil {
					return false, err
				}
				if ok {
					allowed = true
					break
				}
			}
		}
		if !allowed {
			return false, nil
		}
	}
	for _, n := range f.Exclude {
		if n == className {
			return false, nil
		}
	}
	for _, n := range f.ExcludeSubClassOf {
		ok, err := isSubClassOrSelf(cat, n, className)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}
	return true, nil
}

// isSubClassOrSelf reports whether className is ancestorName or transitively
// extends it. An unknown ancestorName is simply never a match.
func isSubClassOrSelf(cat *storage.Catalog, ancestorName, className string) (bool, error) {
	if ancestorName == className {
		return true, nil
	}
	ancestor, err := cat.GetClass(ancestorName)
	if err != nil {
		return false, nil
	}
	subs, err := cat.Subclasses(ancestor.Name)
	if err != nil {
		return false, err
	}
	for _, c := range subs {
		if c.Name == className {
			return true, nil
		}
	}
	return false, nil
}

// isEmpty reports whether f places no restriction at all, letting callers
// that thread an optional filter through (like a traversal's whereV) skip
// decoding a record's properties when nothing would be checked against
// them.
func (f GraphFilter) isEmpty() bool {
	return f.ClassName == "" && f.Cond == nil && f.Predicate == nil &&
		len(f.Only) == 0 && len(f.OnlySubClassOf) == 0 &&
		len(f.Exclude) == 0 && len(f.ExcludeSubClassOf) == 0
}

func (f GraphFilter) matches(props map[string]any, types map[string]codec.PropertyType, rec *storage.Record) (bool, error) {
	if f.Cond != nil {
		ok, err := f.Cond.eval(props, types)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if f.Predicate != nil && !f.Predicate(rec) {
		return false, nil
	}
	return true, nil
}

// decodeProps resolves every property visible on className and decodes the
// subset rec actually carries into a name-keyed map, plus the full
// name->declared-type map (used by Condition.eval to type-check string
// comparators), the shapes Condition evaluation and predicate callbacks
// expect.
func decodeProps(cat *storage.Catalog, className string, rec *storage.Record) (map[string]any, map[string]codec.PropertyType, error) {
	resolved, err := cat.GetProperties(className)
	if err != nil {
		return nil, nil, err
	}
	props := make(map[string]any, len(resolved))
	types := make(map[string]codec.PropertyType, len(resolved))
	for _, rp := range resolved {
		types[rp.Name] = rp.Type
		raw, ok := rec.Props[rp.ID]
		if !ok {
			continue
		}
		v, err := codec.DecodeScalar(rp.Type, raw)
		if err != nil {
			return nil, nil, err
		}
		props[rp.Name] = v
	}
	return props, types, nil
}

// leafPropCondition extracts a single PropCondition this filter's Cond can
// be satisfied by pushing down to an index: either Cond itself, or the
// first PropCondition member of a top-level And. Anything else (Or, Not, a
// bare predicate) returns ok=false and the caller falls back to a full
// class scan.
func leafPropCondition(cond Condition) (PropCondition, bool) {
	switch c := cond.(type) {
	case PropCondition:
		return c, true
	case And:
		for _, sub := range c {
			if pc, ok := sub.(PropCondition); ok {
				return pc, true
			}
		}
	}
	return PropCondition{}, false
}

func toStorageComparator(op Op) (storage.Comparator, bool) {
	switch op {
	case Eq:
		return storage.Eq, true
	case Lt:
		return storage.Lt, true
	case Le:
		return storage.Le, true
	case Gt:
		return storage.Gt, true
	case Ge:
		return storage.Ge, true
	case Between:
		return storage.Between, true
	default:
		return 0, false
	}
}
