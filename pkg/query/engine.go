package query

import "github.com/nogdb/nogdb/pkg/storage"

// Engine answers find and traversal operations against one open
// transaction. It holds no state of its own beyond the transaction handle:
// every call re-resolves schema and re-scans or re-looks-up records, so
// results always reflect the transaction's current view.
type Engine struct {
	txn *storage.Txn
}

// New returns an Engine for querying through txn.
func New(txn *storage.Txn) *Engine {
	return &Engine{txn: txn}
}

// Find returns every record of filter.ClassName matching filter, using the
// property's secondary index when filter.Cond pushes down to one.
func (e *Engine) Find(filter GraphFilter) ([]*storage.Record, error) {
	return e.findInClasses(filter, []string{filter.ClassName})
}

// FindSubClassOf returns every record of filter.ClassName and every class
// that transitively extends it, matching filter.
func (e *Engine) FindSubClassOf(filter GraphFilter) ([]*storage.Record, error) {
	subs, err := e.txn.Catalog.Subclasses(filter.ClassName)
	if err != nil {
		return nil, err
	}
	classNames := make([]string, 0, len(subs)+1)
	classNames = append(classNames, filter.ClassName)
	for _, c := range subs {
		classNames = append(classNames, c.Name)
	}
	return e.findInClasses(filter, classNames)
}

func (e *Engine) findInClasses(filter GraphFilter, classNames []string) ([]*storage.Record, error) {
	var out []*storage.Record
	for _, className := range classNames {
		allowed, err := filter.classAllowed(e.txn.Catalog, className)
		if err != nil {
			return nil, err
		}
		if !allowed {
			continue
		}
		recs, err := e.findInOneClass(filter, className)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (e *Engine) findInOneClass(filter GraphFilter, className string) ([]*storage.Record, error) {
	if filter.Cond != nil {
		// A case-insensitive comparison can't use the index: index order is
		// over the stored bytes, so a lookup would miss entries differing
		// only in case.
		if pc, ok := leafPropCondition(filter.Cond); ok && !pc.IgnoreCase {
			if _, ok := toStorageComparator(pc.Op); ok || pc.Op == In {
				ix, found, err := e.txn.Catalog.GetIndex(className, pc.Name)
				if err != nil {
					return nil, err
				}
				if found {
					return e.findViaIndex(filter, className, ix, pc)
				}
			}
		}
	}
	return e.findViaScan(filter, className)
}

func (e *Engine) findViaIndex(filter GraphFilter, className string, ix storage.Index, pc PropCondition) ([]*storage.Record, error) {
	prop, ok, err := e.txn.Catalog.ResolveProperty(className, pc.Name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.findViaScan(filter, className)
	}
	cls, err := e.txn.Catalog.GetClass(className)
	if err != nil {
		return nil, err
	}
	var rids []storage.RID
	if pc.Op == In {
		// in(set) is a union of point lookups.
		values, ok := pc.Value.([]any)
		if !ok {
			return e.findViaScan(filter, className)
		}
		for _, v := range values {
			got, err := e.txn.Indexes.Lookup(ix, prop.Type, storage.Eq, v, nil)
			if err != nil {
				return nil, err
			}
			rids = append(rids, got...)
		}
	} else {
		cmp, _ := toStorageComparator(pc.Op)
		rids, err = e.txn.Indexes.Lookup(ix, prop.Type, cmp, pc.Value, pc.Hi)
		if err != nil {
			return nil, err
		}
	}
	var out []*storage.Record
	for _, rid := range rids {
		// An index on an inherited property is shared by the whole class
		// subtree; this call only answers for className itself, so entries
		// written by sibling or ancestor classes are skipped here. The
		// per-class loop in findInClasses covers the rest of a subtree find.
		if rid.ClassID != cls.ID {
			continue
		}
		rec, err := e.txn.Records.Fetch(rid)
		if err != nil {
			return nil, err
		}
		props, types, err := decodeProps(e.txn.Catalog, className, rec)
		if err != nil {
			return nil, err
		}
		ok, err := filter.matches(props, types, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (e *Engine) findViaScan(filter GraphFilter, className string) ([]*storage.Record, error) {
	var out []*storage.Record
	err := e.txn.Records.ScanClass(className, func(rec *storage.Record) (bool, error) {
		props, types, err := decodeProps(e.txn.Catalog, className, rec)
		if err != nil {
			return false, err
		}
		ok, err := filter.matches(props, types, rec)
		if err != nil {
			return false, err
		}
		if ok {
			out = append(out, rec)
		}
		return true, nil
	})
	return out, err
}

// FindOutEdge returns every edge leaving srcID matching filter.
func (e *Engine) FindOutEdge(srcID storage.RID, filter GraphFilter) ([]*storage.Record, error) {
	return e.findIncident(srcID, filter, e.txn.Records.FetchOut)
}

// FindInEdge returns every edge arriving at dstID matching filter.
func (e *Engine) FindInEdge(dstID storage.RID, filter GraphFilter) ([]*storage.Record, error) {
	return e.findIncident(dstID, filter, e.txn.Records.FetchIn)
}

// FindEdge returns every edge incident to vertexID (either direction)
// matching filter.
func (e *Engine) FindEdge(vertexID storage.RID, filter GraphFilter) ([]*storage.Record, error) {
	out, err := e.FindOutEdge(vertexID, filter)
	if err != nil {
		return nil, err
	}
	in, err := e.FindInEdge(vertexID, filter)
	if err != nil {
		return nil, err
	}
	return append(out, in...), nil
}

func (e *Engine) findIncident(vertexID storage.RID, filter GraphFilter, fetch func(storage.RID) ([]storage.RID, error)) ([]*storage.Record, error) {
	if _, err := e.validateSource(vertexID); err != nil {
		return nil, err
	}
	rids, err := fetch(vertexID)
	if err != nil {
		return nil, err
	}
	var out []*storage.Record
	for _, rid := range rids {
		rec, err := e.txn.Records.Fetch(rid)
		if err != nil {
			return nil, err
		}
		cls, err := e.txn.Catalog.GetClassByID(rid.ClassID)
		if err != nil {
			return nil, err
		}
		if filter.ClassName != "" && filter.ClassName != cls.Name {
			continue
		}
		allowed, err := filter.classAllowed(e.txn.Catalog, cls.Name)
		if err != nil {
			return nil, err
		}
		if !allowed {
			continue
		}
		props, types, err := decodeProps(e.txn.Catalog, cls.Name, rec)
		if err != nil {
			return nil, err
		}
		ok, err := filter.matches(props, types, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
