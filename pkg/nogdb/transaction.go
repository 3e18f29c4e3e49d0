package nogdb

import (
	"fmt"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/errs"
	"github.com/nogdb/nogdb/pkg/query"
	"github.com/nogdb/nogdb/pkg/storage"
)

// Transaction is a bound storage.Txn plus the query.Engine for running
// find/traversal operators against it. Every schema and record operation
// is reachable through the embedded *storage.Txn's Catalog/Records/Indexes
// fields; Transaction adds the query-engine operators and the commit/
// rollback lifecycle an application actually calls.
type Transaction struct {
	*storage.Txn
	engine *query.Engine
}

func newTransaction(txn *storage.Txn) *Transaction {
	return &Transaction{Txn: txn, engine: query.New(txn)}
}

// Find returns every record of filter.ClassName matching filter.
func (t *Transaction) Find(filter query.GraphFilter) ([]*storage.Record, error) {
	return t.engine.Find(filter)
}

// FindCursor is the lazy dual of Find.
func (t *Transaction) FindCursor(filter query.GraphFilter) *query.Cursor {
	return t.engine.FindCursor(filter)
}

// FindSubClassOf returns every record of filter.ClassName and its
// subclasses matching filter.
func (t *Transaction) FindSubClassOf(filter query.GraphFilter) ([]*storage.Record, error) {
	return t.engine.FindSubClassOf(filter)
}

// FindSubClassOfCursor is the lazy dual of FindSubClassOf.
func (t *Transaction) FindSubClassOfCursor(filter query.GraphFilter) *query.Cursor {
	return t.engine.FindSubClassOfCursor(filter)
}

// FindOutEdge returns every edge leaving srcID matching filter.
func (t *Transaction) FindOutEdge(srcID storage.RID, filter query.GraphFilter) ([]*storage.Record, error) {
	return t.engine.FindOutEdge(srcID, filter)
}

// FindOutEdgeCursor is the lazy dual of FindOutEdge.
func (t *Transaction) FindOutEdgeCursor(srcID storage.RID, filter query.GraphFilter) *query.Cursor {
	return t.engine.FindOutEdgeCursor(srcID, filter)
}

// FindInEdge returns every edge arriving at dstID matching filter.
func (t *Transaction) FindInEdge(dstID storage.RID, filter query.GraphFilter) ([]*storage.Record, error) {
	return t.engine.FindInEdge(dstID, filter)
}

// FindInEdgeCursor is the lazy dual of FindInEdge.
func (t *Transaction) FindInEdgeCursor(dstID storage.RID, filter query.GraphFilter) *query.Cursor {
	return t.engine.FindInEdgeCursor(dstID, filter)
}

// FindEdge returns every edge incident to vertexID matching filter.
func (t *Transaction) FindEdge(vertexID storage.RID, filter query.GraphFilter) ([]*storage.Record, error) {
	return t.engine.FindEdge(vertexID, filter)
}

// FindEdgeCursor is the lazy dual of FindEdge.
func (t *Transaction) FindEdgeCursor(vertexID storage.RID, filter query.GraphFilter) *query.Cursor {
	return t.engine.FindEdgeCursor(vertexID, filter)
}

// Traverse performs a breadth-first walk from start, honoring edgeFilter,
// vertexFilter, and the given depth bounds; each result carries its
// discovery depth. A negative maxDepth means unbounded. Pass a zero-value
// GraphFilter for vertexFilter to not filter vertices at all.
func (t *Transaction) Traverse(start storage.RID, direction query.Direction, minDepth, maxDepth int, edgeFilter, vertexFilter query.GraphFilter) ([]query.Traversal, error) {
	return t.engine.Traverse(start, direction, minDepth, maxDepth, edgeFilter, vertexFilter)
}

// TraverseSources is Traverse seeded from a union of source vertices.
func (t *Transaction) TraverseSources(starts []storage.RID, direction query.Direction, minDepth, maxDepth int, edgeFilter, vertexFilter query.GraphFilter) ([]query.Traversal, error) {
	return t.engine.TraverseSources(starts, direction, minDepth, maxDepth, edgeFilter, vertexFilter)
}

// TraverseCursor is the cursor dual of Traverse.
func (t *Transaction) TraverseCursor(start storage.RID, direction query.Direction, minDepth, maxDepth int, edgeFilter, vertexFilter query.GraphFilter) *query.TraversalCursor {
	return t.engine.TraverseCursor(start, direction, minDepth, maxDepth, edgeFilter, vertexFilter)
}

// TraverseOut is Traverse restricted to outgoing edges.
func (t *Transaction) TraverseOut(start storage.RID, minDepth, maxDepth int, edgeFilter, vertexFilter query.GraphFilter) ([]query.Traversal, error) {
	return t.engine.Traverse(start, query.Out, minDepth, maxDepth, edgeFilter, vertexFilter)
}

// TraverseIn is Traverse restricted to incoming edges.
func (t *Transaction) TraverseIn(start storage.RID, minDepth, maxDepth int, edgeFilter, vertexFilter query.GraphFilter) ([]query.Traversal, error) {
	return t.engine.Traverse(start, query.InDir, minDepth, maxDepth, edgeFilter, vertexFilter)
}

// ShortestPath finds the shortest path from src to dst, or nil if no path
// exists within maxDepth hops (0 or below means unbounded) whose vertices
// after src all satisfy vertexFilter (src itself is not checked).
func (t *Transaction) ShortestPath(src, dst storage.RID, direction query.Direction, maxDepth int, edgeFilter, vertexFilter query.GraphFilter) (*query.Path, error) {
	return t.engine.ShortestPath(src, dst, direction, maxDepth, edgeFilter, vertexFilter)
}

// encodeProps turns a name-keyed value map into the propertyID-keyed raw
// bundle the record store wants, resolving each name against className's
// visible (own plus inherited) properties. Reserved names (@className,
// @recordId, @version) are silently dropped: those fields are synthesized on
// read from descriptor state, so a write naming one has nothing to store. A
// nil value clears the property. Any other unknown name reports
// CTX_NOEXST_PROPERTY.
func (t *Transaction) encodeProps(className string, props map[string]any) (map[uint16][]byte, error) {
	if len(props) == 0 {
		return nil, nil
	}
	out := make(map[uint16][]byte, len(props))
	for name, v := range props {
		if codec.IsReserved(name) {
			continue
		}
		p, ok, err := t.Catalog.ResolveProperty(className, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.New(errs.NoExistProperty, "property %q is not visible on %q", name, className)
		}
		if v == nil {
			out[p.ID] = nil
			continue
		}
		raw, err := codec.EncodeScalar(p.Type, v)
		if err != nil {
			return nil, errs.New(errs.InvalidPropType, "property %q: %v", name, err)
		}
		out[p.ID] = raw
	}
	return out, nil
}

// AddVertex inserts a new vertex of className from a name-keyed value map
// and returns its RID.
func (t *Transaction) AddVertex(className string, props map[string]any) (storage.RID, error) {
	raw, err := t.encodeProps(className, props)
	if err != nil {
		return storage.RID{}, err
	}
	return t.Records.AddVertex(className, dropCleared(raw))
}

// dropCleared strips nil-valued entries from a freshly encoded bundle: on a
// create there is no stored value for a clear to remove, so the entry is
// simply not written.
func dropCleared(raw map[uint16][]byte) map[uint16][]byte {
	for id, v := range raw {
		if len(v) == 0 {
			delete(raw, id)
		}
	}
	return raw
}

// AddEdge inserts a new edge of className from src to dst, its properties
// given as a name-keyed value map.
func (t *Transaction) AddEdge(className string, src, dst storage.RID, props map[string]any) (storage.RID, error) {
	raw, err := t.encodeProps(className, props)
	if err != nil {
		return storage.RID{}, err
	}
	return t.Records.AddEdge(className, src, dst, dropCleared(raw))
}

// Update merges a name-keyed value map into the record at rid. A nil value
// clears that property.
func (t *Transaction) Update(rid storage.RID, props map[string]any) error {
	cls, err := t.Catalog.GetClassByID(rid.ClassID)
	if err != nil {
		return err
	}
	raw, err := t.encodeProps(cls.Name, props)
	if err != nil {
		return err
	}
	return t.Records.Update(rid, raw)
}

// DecodeRecord materializes rec's properties as a name-keyed map of typed
// Go values, plus the synthesized @className, @recordId, and @version
// fields. Those three are derived from descriptor state on every read and
// never stored, which is why writes naming them are silently dropped and
// the schema catalog refuses to declare them as properties.
func (t *Transaction) DecodeRecord(rec *storage.Record) (map[string]any, error) {
	cls, err := t.Catalog.GetClassByID(rec.RID.ClassID)
	if err != nil {
		return nil, err
	}
	resolved, err := t.Catalog.GetProperties(cls.Name)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(resolved)+3)
	for _, rp := range resolved {
		raw, ok := rec.Props[rp.ID]
		if !ok {
			continue
		}
		v, err := codec.DecodeScalar(rp.Type, raw)
		if err != nil {
			return nil, err
		}
		out[rp.Name] = v
	}
	out["@className"] = cls.Name
	out["@recordId"] = fmt.Sprintf("%d:%d", rec.RID.ClassID, rec.RID.PositionID)
	out["@version"] = rec.Version
	return out, nil
}
