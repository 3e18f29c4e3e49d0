package storage

import (
	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/errs"
	"github.com/nogdb/nogdb/pkg/kv"
)

// RecordStore is the vertex/edge half of a transaction: record CRUD,
// version bumping, adjacency maintenance, and pushing property changes
// through to the IndexEngine.
type RecordStore struct {
	txn       *kv.Txn
	catalog   *Catalog
	indexes   *IndexEngine
	mode      Mode
	versioned bool
}

func newRecordStore(txn *kv.Txn, catalog *Catalog, indexes *IndexEngine, mode Mode, versioned bool) *RecordStore {
	return &RecordStore{txn: txn, catalog: catalog, indexes: indexes, mode: mode, versioned: versioned}
}

// initialVersion is what a freshly created record starts at: 1 when
// versioning is on, the permanent 0 otherwise.
func (s *RecordStore) initialVersion() uint64 {
	if s.versioned {
		return 1
	}
	return 0
}

func (s *RecordStore) bumped(v uint64) uint64 {
	if s.versioned {
		return v + 1
	}
	return 0
}

// bumpVersion rewrites rid's record with its version incremented, leaving
// everything else untouched. Mutations that touch a vertex only through its
// adjacency (adding or removing an incident edge, repointing an edge
// endpoint) still count as mutations of that vertex.
func (s *RecordStore) bumpVersion(rid RID) error {
	if !s.versioned {
		return nil
	}
	rec, err := s.Fetch(rid)
	if err != nil {
		return err
	}
	value := encodeRecordValue(rec.Version+1, rec.IsEdge, rec.Src, rec.Dst, codec.EncodeBundle(rec.Props))
	return s.txn.Put(subMapRecords(rid.ClassID), positionKey(rid.PositionID), value)
}

// resolveAndValidate checks that every key in props names a property visible
// on class (own or inherited) and that its raw bytes decode cleanly under
// that property's declared type. It returns the resolved descriptor for each
// supplied property, keyed the same way.
func (s *RecordStore) resolveAndValidate(classID uint16, props map[uint16][]byte) (map[uint16]ResolvedProperty, error) {
	out := make(map[uint16]ResolvedProperty, len(props))
	for pid := range props {
		p, err := s.catalog.getPropertyByID(pid)
		if err != nil {
			return nil, err
		}
		resolved, ok, err := s.catalog.resolveProperty(classID, p.Name)
		if err != nil {
			return nil, err
		}
		if !ok || resolved.ID != pid {
			return nil, errs.New(errs.NoExistProperty, "property %q is not visible on this class", p.Name)
		}
		if raw := props[pid]; len(raw) > 0 {
			if _, err := codec.DecodeScalar(resolved.Type, raw); err != nil {
				return nil, errs.New(errs.InvalidPropType, "property %q: %v", p.Name, err)
			}
		}
		out[pid] = resolved
	}
	return out, nil
}

// maintainIndexes applies the delta between oldProps and newProps to every
// index declared on classID or any of its ancestors (since an inherited
// property's index lives on the class that declared the property).
func (s *RecordStore) maintainIndexes(classID uint16, rid RID, oldProps, newProps map[uint16][]byte) error {
	touched := make(map[uint16]bool, len(oldProps)+len(newProps))
	for pid := range oldProps {
		touched[pid] = true
	}
	for pid := range newProps {
		touched[pid] = true
	}
	for pid := range touched {
		p, err := s.catalog.getPropertyByID(pid)
		if err != nil {
			return err
		}
		ix, ok, err := s.catalog.getIndexByProp(p.ClassID, pid)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		oldRaw, hadOld := oldProps[pid]
		newRaw, hasNew := newProps[pid]
		// An empty value in newProps clears the property; there is no new
		// index entry to write for it.
		if hasNew && len(newRaw) == 0 {
			hasNew = false
		}
		if hadOld {
			v, err := codec.DecodeScalar(p.Type, oldRaw)
			if err != nil {
				return err
			}
			if err := s.indexes.Remove(ix, p.Type, v, rid); err != nil {
				return err
			}
		}
		if hasNew {
			v, err := codec.DecodeScalar(p.Type, newRaw)
			if err != nil {
				return err
			}
			if err := s.indexes.Insert(ix, p.Type, v, rid); err != nil {
				return err
			}
		}
	}
	return nil
}

func requireWritableRS(mode Mode) error {
	if !mode.writable() {
		return errs.New(errs.ClosedTransaction, "transaction is read-only")
	}
	return nil
}

// AddVertex inserts a new vertex of className with the given raw property
// bundle and returns its RID.
func (s *RecordStore) AddVertex(className string, props map[uint16][]byte) (RID, error) {
	if err := requireWritableRS(s.mode); err != nil {
		return RID{}, err
	}
	cls, err := s.catalog.GetClass(className)
	if err != nil {
		return RID{}, err
	}
	if cls.Kind != Vertex {
		return RID{}, errs.New(errs.MismatchClassType, "class %q is not a vertex class", className)
	}
	if _, err := s.resolveAndValidate(cls.ID, props); err != nil {
		return RID{}, err
	}

	pos, err := nextPositionID(s.txn, cls.ID)
	if err != nil {
		return RID{}, err
	}
	rid := RID{ClassID: cls.ID, PositionID: pos}

	if err := s.maintainIndexes(cls.ID, rid, nil, props); err != nil {
		return RID{}, err
	}
	value := encodeRecordValue(s.initialVersion(), false, RID{}, RID{}, codec.EncodeBundle(props))
	if err := s.txn.Put(subMapRecords(cls.ID), positionKey(pos), value); err != nil {
		return RID{}, err
	}
	return rid, nil
}

// AddEdge inserts a new edge of className from src to dst, maintaining both
// endpoints' adjacency sub-maps and bumping both endpoints' versions.
func (s *RecordStore) AddEdge(className string, src, dst RID, props map[uint16][]byte) (RID, error) {
	if err := requireWritableRS(s.mode); err != nil {
		return RID{}, err
	}
	cls, err := s.catalog.GetClass(className)
	if err != nil {
		return RID{}, err
	}
	if cls.Kind != Edge {
		return RID{}, errs.New(errs.MismatchClassType, "class %q is not an edge class", className)
	}
	if !s.vertexExists(src) {
		return RID{}, errs.New(errs.GraphNoExistSrc, "source vertex %+v does not exist", src)
	}
	if !s.vertexExists(dst) {
		return RID{}, errs.New(errs.GraphNoExistDst, "destination vertex %+v does not exist", dst)
	}
	if _, err := s.resolveAndValidate(cls.ID, props); err != nil {
		return RID{}, err
	}

	pos, err := nextPositionID(s.txn, cls.ID)
	if err != nil {
		return RID{}, err
	}
	rid := RID{ClassID: cls.ID, PositionID: pos}

	if err := s.maintainIndexes(cls.ID, rid, nil, props); err != nil {
		return RID{}, err
	}
	value := encodeRecordValue(s.initialVersion(), true, src, dst, codec.EncodeBundle(props))
	if err := s.txn.Put(subMapRecords(cls.ID), positionKey(pos), value); err != nil {
		return RID{}, err
	}
	if err := s.txn.Put(subMapAdjOut(src.ClassID), adjKey(src, rid, dst), nil); err != nil {
		return RID{}, err
	}
	if err := s.txn.Put(subMapAdjIn(dst.ClassID), adjKey(dst, rid, src), nil); err != nil {
		return RID{}, err
	}
	if err := s.bumpVersion(src); err != nil {
		return RID{}, err
	}
	if src != dst {
		if err := s.bumpVersion(dst); err != nil {
			return RID{}, err
		}
	}
	return rid, nil
}

func (s *RecordStore) vertexExists(rid RID) bool {
	_, ok, err := s.txn.Get(subMapRecords(rid.ClassID), positionKey(rid.PositionID))
	return err == nil && ok
}

// Fetch loads the record at rid.
func (s *RecordStore) Fetch(rid RID) (*Record, error) {
	cls, err := s.catalog.GetClassByID(rid.ClassID)
	if err != nil {
		return nil, err
	}
	raw, ok, err := s.txn.Get(subMapRecords(rid.ClassID), positionKey(rid.PositionID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.NoExistRecord, "no record at %+v", rid)
	}
	isEdge := cls.Kind == Edge
	version, src, dst, bundle := decodeRecordValue(raw, isEdge)
	props, err := codec.DecodeBundle(bundle)
	if err != nil {
		return nil, err
	}
	return &Record{RID: rid, Version: version, Props: props, IsEdge: isEdge, Src: src, Dst: dst}, nil
}

// Update replaces rid's property bundle. Properties not present in
// newProps are left untouched; to clear one, supply an explicit
// nil/empty entry and it will be removed. Version is always bumped, even if
// the new values are identical to the old: every Update call is one
// observable mutation.
func (s *RecordStore) Update(rid RID, newProps map[uint16][]byte) error {
	if err := requireWritableRS(s.mode); err != nil {
		return err
	}
	rec, err := s.Fetch(rid)
	if err != nil {
		return err
	}
	if _, err := s.resolveAndValidate(rid.ClassID, newProps); err != nil {
		return err
	}

	merged := make(map[uint16][]byte, len(rec.Props)+len(newProps))
	for k, v := range rec.Props {
		merged[k] = v
	}
	changedOld := make(map[uint16][]byte, len(newProps))
	for k, v := range newProps {
		if old, ok := rec.Props[k]; ok {
			changedOld[k] = old
		}
		if len(v) == 0 {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}
	if err := s.maintainIndexes(rid.ClassID, rid, changedOld, newProps); err != nil {
		return err
	}

	value := encodeRecordValue(s.bumped(rec.Version), rec.IsEdge, rec.Src, rec.Dst, codec.EncodeBundle(merged))
	return s.txn.Put(subMapRecords(rid.ClassID), positionKey(rid.PositionID), value)
}

// UpdateSrc repoints an existing edge's source endpoint: both the old and
// new source's out-adjacency entries move, the destination's in-adjacency
// entry is rewritten to reference the new source, and the versions of the
// old source, the new source, and the destination all bump.
func (s *RecordStore) UpdateSrc(rid RID, newSrc RID) error {
	if err := requireWritableRS(s.mode); err != nil {
		return err
	}
	rec, err := s.Fetch(rid)
	if err != nil {
		return err
	}
	if !rec.IsEdge {
		return errs.New(errs.MismatchClassType, "record %+v is not an edge", rid)
	}
	if !s.vertexExists(newSrc) {
		return errs.New(errs.GraphNoExistSrc, "source vertex %+v does not exist", newSrc)
	}
	if err := s.txn.Delete(subMapAdjOut(rec.Src.ClassID), adjKey(rec.Src, rid, rec.Dst)); err != nil {
		return err
	}
	if err := s.txn.Put(subMapAdjOut(newSrc.ClassID), adjKey(newSrc, rid, rec.Dst), nil); err != nil {
		return err
	}
	if err := s.txn.Delete(subMapAdjIn(rec.Dst.ClassID), adjKey(rec.Dst, rid, rec.Src)); err != nil {
		return err
	}
	if err := s.txn.Put(subMapAdjIn(rec.Dst.ClassID), adjKey(rec.Dst, rid, newSrc), nil); err != nil {
		return err
	}
	value := encodeRecordValue(s.bumped(rec.Version), true, newSrc, rec.Dst, codec.EncodeBundle(rec.Props))
	if err := s.txn.Put(subMapRecords(rid.ClassID), positionKey(rid.PositionID), value); err != nil {
		return err
	}
	for _, v := range distinctRIDs(rec.Src, newSrc, rec.Dst) {
		if err := s.bumpVersion(v); err != nil {
			return err
		}
	}
	return nil
}

// UpdateDst repoints an existing edge's destination endpoint, the mirror of
// UpdateSrc.
func (s *RecordStore) UpdateDst(rid RID, newDst RID) error {
	if err := requireWritableRS(s.mode); err != nil {
		return err
	}
	rec, err := s.Fetch(rid)
	if err != nil {
		return err
	}
	if !rec.IsEdge {
		return errs.New(errs.MismatchClassType, "record %+v is not an edge", rid)
	}
	if !s.vertexExists(newDst) {
		return errs.New(errs.GraphNoExistDst, "destination vertex %+v does not exist", newDst)
	}
	if err := s.txn.Delete(subMapAdjIn(rec.Dst.ClassID), adjKey(rec.Dst, rid, rec.Src)); err != nil {
		return err
	}
	if err := s.txn.Put(subMapAdjIn(newDst.ClassID), adjKey(newDst, rid, rec.Src), nil); err != nil {
		return err
	}
	if err := s.txn.Delete(subMapAdjOut(rec.Src.ClassID), adjKey(rec.Src, rid, rec.Dst)); err != nil {
		return err
	}
	if err := s.txn.Put(subMapAdjOut(rec.Src.ClassID), adjKey(rec.Src, rid, newDst), nil); err != nil {
		return err
	}
	value := encodeRecordValue(s.bumped(rec.Version), true, rec.Src, newDst, codec.EncodeBundle(rec.Props))
	if err := s.txn.Put(subMapRecords(rid.ClassID), positionKey(rid.PositionID), value); err != nil {
		return err
	}
	for _, v := range distinctRIDs(rec.Dst, newDst, rec.Src) {
		if err := s.bumpVersion(v); err != nil {
			return err
		}
	}
	return nil
}

// distinctRIDs filters duplicates out of a small candidate list, preserving
// order, so a shared endpoint is version-bumped once per operation.
func distinctRIDs(rids ...RID) []RID {
	out := make([]RID, 0, len(rids))
	for _, r := range rids {
		dup := false
		for _, seen := range out {
			if seen == r {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

// Remove deletes the record at rid. Removing a vertex also removes every
// edge incident to it, matching NogDB's cascading-delete semantics for
// graph consistency.
func (s *RecordStore) Remove(rid RID) error {
	if err := requireWritableRS(s.mode); err != nil {
		return err
	}
	rec, err := s.Fetch(rid)
	if err != nil {
		return err
	}
	if rec.IsEdge {
		return s.removeEdge(rid, rec)
	}
	return s.removeVertex(rid, rec)
}

func (s *RecordStore) removeEdge(rid RID, rec *Record) error {
	if err := s.maintainIndexes(rid.ClassID, rid, rec.Props, nil); err != nil {
		return err
	}
	if err := s.txn.Delete(subMapAdjOut(rec.Src.ClassID), adjKey(rec.Src, rid, rec.Dst)); err != nil {
		return err
	}
	if err := s.txn.Delete(subMapAdjIn(rec.Dst.ClassID), adjKey(rec.Dst, rid, rec.Src)); err != nil {
		return err
	}
	if err := s.txn.Delete(subMapRecords(rid.ClassID), positionKey(rid.PositionID)); err != nil {
		return err
	}
	// Losing an incident edge is a mutation of the surviving endpoints.
	for _, v := range distinctRIDs(rec.Src, rec.Dst) {
		if s.vertexExists(v) {
			if err := s.bumpVersion(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *RecordStore) removeVertex(rid RID, rec *Record) error {
	if err := s.maintainIndexes(rid.ClassID, rid, rec.Props, nil); err != nil {
		return err
	}

	outIt := s.txn.ScanPrefix(subMapAdjOut(rid.ClassID), adjPrefix(rid))
	var outEdges []RID
	for ; outIt.Valid(); outIt.Next() {
		edgeRID, _ := decodeAdjKey(outIt.Key())
		outEdges = append(outEdges, edgeRID)
	}
	outIt.Close()

	inIt := s.txn.ScanPrefix(subMapAdjIn(rid.ClassID), adjPrefix(rid))
	var inEdges []RID
	for ; inIt.Valid(); inIt.Next() {
		edgeRID, _ := decodeAdjKey(inIt.Key())
		inEdges = append(inEdges, edgeRID)
	}
	inIt.Close()

	// The vertex record goes first so removeEdge's endpoint bumps skip it:
	// a record being removed takes no final version increment.
	if err := s.txn.Delete(subMapRecords(rid.ClassID), positionKey(rid.PositionID)); err != nil {
		return err
	}

	for _, e := range append(outEdges, inEdges...) {
		edgeRec, err := s.Fetch(e)
		if err != nil {
			if code, ok := errs.CodeOf(err); ok && code == errs.NoExistRecord {
				continue // a self-loop appears in both adjacency lists; removed once
			}
			return err
		}
		if err := s.removeEdge(e, edgeRec); err != nil {
			return err
		}
	}
	return nil
}

// RemoveAll deletes every record of className (and, for vertex classes,
// every edge incident to one of them). Calling RemoveAll on an already-empty
// class succeeds.
func (s *RecordStore) RemoveAll(className string) error {
	if err := requireWritableRS(s.mode); err != nil {
		return err
	}
	cls, err := s.catalog.GetClass(className)
	if err != nil {
		return err
	}
	it := s.txn.ScanPrefix(subMapRecords(cls.ID), nil)
	var rids []RID
	for ; it.Valid(); it.Next() {
		rids = append(rids, RID{ClassID: cls.ID, PositionID: decodePositionKey(it.Key())})
	}
	it.Close()
	for _, rid := range rids {
		if _, ok, err := s.txn.Get(subMapRecords(rid.ClassID), positionKey(rid.PositionID)); err != nil {
			return err
		} else if !ok {
			continue // removed earlier in this loop as a cascaded edge/self-loop
		}
		if err := s.Remove(rid); err != nil {
			return err
		}
	}
	return nil
}

// FetchOut returns the RIDs of every edge leaving srcID, in adjacency order.
func (s *RecordStore) FetchOut(srcID RID) ([]RID, error) {
	it := s.txn.ScanPrefix(subMapAdjOut(srcID.ClassID), adjPrefix(srcID))
	defer it.Close()
	var out []RID
	for ; it.Valid(); it.Next() {
		edgeRID, _ := decodeAdjKey(it.Key())
		out = append(out, edgeRID)
	}
	return out, nil
}

// FetchIn returns the RIDs of every edge arriving at dstID.
func (s *RecordStore) FetchIn(dstID RID) ([]RID, error) {
	it := s.txn.ScanPrefix(subMapAdjIn(dstID.ClassID), adjPrefix(dstID))
	defer it.Close()
	var out []RID
	for ; it.Valid(); it.Next() {
		edgeRID, _ := decodeAdjKey(it.Key())
		out = append(out, edgeRID)
	}
	return out, nil
}

// FetchSrc returns the source vertex of the edge at rid.
func (s *RecordStore) FetchSrc(rid RID) (*Record, error) {
	rec, err := s.Fetch(rid)
	if err != nil {
		return nil, err
	}
	if !rec.IsEdge {
		return nil, errs.New(errs.MismatchClassType, "record %+v is not an edge", rid)
	}
	return s.Fetch(rec.Src)
}

// FetchDst returns the destination vertex of the edge at rid.
func (s *RecordStore) FetchDst(rid RID) (*Record, error) {
	rec, err := s.Fetch(rid)
	if err != nil {
		return nil, err
	}
	if !rec.IsEdge {
		return nil, errs.New(errs.MismatchClassType, "record %+v is not an edge", rid)
	}
	return s.Fetch(rec.Dst)
}

// FetchSrcDst returns both endpoints of the edge at rid in one call.
func (s *RecordStore) FetchSrcDst(rid RID) (src, dst *Record, err error) {
	rec, err := s.Fetch(rid)
	if err != nil {
		return nil, nil, err
	}
	if !rec.IsEdge {
		return nil, nil, errs.New(errs.MismatchClassType, "record %+v is not an edge", rid)
	}
	src, err = s.Fetch(rec.Src)
	if err != nil {
		return nil, nil, err
	}
	dst, err = s.Fetch(rec.Dst)
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// ScanClass iterates every record of className, passing each to fn. Scanning
// stops early if fn returns false.
func (s *RecordStore) ScanClass(className string, fn func(*Record) (bool, error)) error {
	cls, err := s.catalog.GetClass(className)
	if err != nil {
		return err
	}
	it := s.txn.ScanPrefix(subMapRecords(cls.ID), nil)
	defer it.Close()
	for ; it.Valid(); it.Next() {
		rid := RID{ClassID: cls.ID, PositionID: decodePositionKey(it.Key())}
		rec, err := s.Fetch(rid)
		if err != nil {
			return err
		}
		cont, err := fn(rec)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}
