package storage

import (
	"sync"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/errs"
	"github.com/nogdb/nogdb/pkg/kv"
)

// Txn bundles one pkg/kv transaction with the three layers that interpret
// it: Catalog (schema), Records (vertex/edge CRUD), and Indexes (secondary
// lookups). It is the unit of atomicity: Commit publishes every change made
// through any of the three as one snapshot.
type Txn struct {
	kv       *kv.Txn
	Catalog  *Catalog
	Records  *RecordStore
	Indexes  *IndexEngine
	mode     Mode
	mgr      *Manager
	released bool
}

func newTxn(kvTxn *kv.Txn, mode Mode, mgr *Manager) *Txn {
	cat := newCatalog(kvTxn, mode)
	idx := newIndexEngine(kvTxn, mode)
	rec := newRecordStore(kvTxn, cat, idx, mode, mgr.versioned)
	return &Txn{kv: kvTxn, Catalog: cat, Records: rec, Indexes: idx, mode: mode, mgr: mgr}
}

// Mode reports whether this transaction may mutate state.
func (t *Txn) Mode() Mode { return t.mode }

// MaxPositionID returns the highest positionId allocated so far for
// classID, or -1 if none have been allocated. Exposed for DBInfo.
func (t *Txn) MaxPositionID(classID uint16) (int64, error) {
	return peekMaxPositionID(t.kv, classID)
}

// MaxClassID, MaxPropertyID, and MaxIndexID report the highest ID allocated
// so far from each catalog's global sequence, 0 if none have been. Exposed
// for DBInfo.
func (t *Txn) MaxClassID() (uint16, error) {
	v, err := peekSeq(t.kv, counterClassID)
	return uint16(v), err
}

func (t *Txn) MaxPropertyID() (uint16, error) {
	v, err := peekSeq(t.kv, counterPropertyID)
	return uint16(v), err
}

func (t *Txn) MaxIndexID() (uint32, error) {
	v, err := peekSeq(t.kv, counterIndexID)
	return uint32(v), err
}

// DropClass is the full drop-class operation: Catalog.DropClass handles the
// schema half (reparenting direct children, removing the class's own
// properties/catalog row; a class with an indexed property is refused with
// CTX_IN_USED_PROPERTY before anything is removed); this also removes every record of the
// dropped class and of all its descendant classes (cascading their
// adjacency back-references), since a descendant whose base is gone can no
// longer be reached through it.
func (t *Txn) DropClass(name string) error {
	cls, err := t.Catalog.GetClass(name)
	if err != nil {
		return err
	}
	// Schema-level rejections (an indexed property on the class) surface
	// before any record is staged for removal.
	if err := t.Catalog.dropClassPrecheck(cls); err != nil {
		return err
	}
	descIDs, err := t.Catalog.descendants(cls.ID)
	if err != nil {
		return err
	}
	classNames := make([]string, 0, len(descIDs)+1)
	classNames = append(classNames, name)
	for _, id := range descIDs {
		c, err := t.Catalog.GetClassByID(id)
		if err != nil {
			return err
		}
		classNames = append(classNames, c.Name)
	}
	for _, cn := range classNames {
		if err := t.Records.RemoveAll(cn); err != nil {
			return err
		}
	}
	return t.Catalog.DropClass(name)
}

// AddIndex is the full add-index operation: Catalog.AddIndex creates the
// catalog entry; this then scans every existing record of className and its
// descendants (an index on an inherited property is shared by the whole
// subtree, see Catalog.AddIndex's doc comment) and populates the index,
// rejecting the whole operation with INVALID_INDEX_CONSTRAINT on the first
// uniqueness collision it finds.
func (t *Txn) AddIndex(className, propName string, unique bool) (Index, error) {
	ix, err := t.Catalog.AddIndex(className, propName, unique)
	if err != nil {
		return Index{}, err
	}
	prop, err := t.Catalog.getPropertyByID(ix.PropertyID)
	if err != nil {
		return Index{}, err
	}

	classNames := []string{className}
	subs, err := t.Catalog.Subclasses(className)
	if err != nil {
		return Index{}, err
	}
	for _, c := range subs {
		classNames = append(classNames, c.Name)
	}

	for _, cn := range classNames {
		err := t.Records.ScanClass(cn, func(rec *Record) (bool, error) {
			raw, ok := rec.Props[prop.ID]
			if !ok {
				return true, nil
			}
			v, err := codec.DecodeScalar(prop.Type, raw)
			if err != nil {
				return false, err
			}
			if err := t.Indexes.Insert(ix, prop.Type, v, rec.RID); err != nil {
				return false, err
			}
			return true, nil
		})
		if err != nil {
			return Index{}, err
		}
	}
	return ix, nil
}

// DropIndex is the full drop-index operation: Catalog.DropIndex removes the
// catalog entry, then every data page in the index's own sub-map is deleted
// so the space is reclaimable and a later index re-using the same
// (class, property) pair starts empty.
func (t *Txn) DropIndex(className, propName string) error {
	ix, err := t.Catalog.DropIndex(className, propName)
	if err != nil {
		return err
	}
	return t.Indexes.Drop(ix)
}

// Commit atomically publishes every change made through this transaction.
func (t *Txn) Commit() error {
	err := t.kv.Commit()
	t.release()
	return err
}

// Rollback discards every change made through this transaction.
func (t *Txn) Rollback() {
	t.kv.Rollback()
	t.release()
}

func (t *Txn) release() {
	if t.released || t.mode != ReadWrite || t.mgr == nil {
		return
	}
	t.released = true
	t.mgr.releaseWriter()
}

// Manager enforces NogDB's single-writer policy: any number of concurrent
// read transactions, but at most one live ReadWrite transaction at a time.
// The writer lock is a fail-fast TryLock, so a second writer gets an
// immediate CTX_WRITER_ACTIVE error instead of blocking.
type Manager struct {
	store     *kv.Store
	mu        sync.Mutex
	versioned bool
}

// NewManager wraps a kv.Store with NogDB's transaction policy. Record
// versioning is on by default; see SetVersioning.
func NewManager(store *kv.Store) *Manager {
	return &Manager{store: store, versioned: true}
}

// SetVersioning toggles per-record version counters for transactions begun
// after the call. With versioning off, every record's version reads as 0
// and mutations never bump it. Intended to be set once, right after
// NewManager, before any transaction begins.
func (m *Manager) SetVersioning(enabled bool) {
	m.versioned = enabled
}

// Begin starts a transaction in the given mode. A ReadWrite Begin fails
// immediately with CTX_WRITER_ACTIVE if another ReadWrite transaction is
// already open.
func (m *Manager) Begin(mode Mode) (*Txn, error) {
	if mode == ReadWrite {
		if !m.mu.TryLock() {
			return nil, errs.New(errs.WriterActive, "a read-write transaction is already active")
		}
	}
	kvTxn, err := m.store.Begin(mode.writable())
	if err != nil {
		if mode == ReadWrite {
			m.mu.Unlock()
		}
		return nil, err
	}
	return newTxn(kvTxn, mode, m), nil
}

func (m *Manager) releaseWriter() {
	m.mu.Unlock()
}
