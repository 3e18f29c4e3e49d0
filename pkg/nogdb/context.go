// Package nogdb is the public façade: Context (the open database handle)
// and Transaction (a bound storage.Txn plus a query.Engine), wiring
// pkg/kv, pkg/storage, and pkg/query into the single entry point an
// application imports.
package nogdb

import (
	"github.com/nogdb/nogdb/pkg/errs"
	"github.com/nogdb/nogdb/pkg/kv"
	"github.com/nogdb/nogdb/pkg/storage"
)

// Context is an open NogDB database. It owns the underlying kv.Store and
// the storage.Manager enforcing the single-writer policy across every
// transaction begun from it.
type Context struct {
	store  *kv.Store
	mgr    *storage.Manager
	path   string
	closed bool
}

// Options configures Open.
type Options struct {
	// Path is the on-disk directory holding the database.
	Path string
	// InMemory runs with no disk footprint, for tests and scratch use.
	InMemory bool
	// SyncWrites forces fsync after every commit.
	SyncWrites bool
	// DisableVersioning turns off per-record version counters: every record's
	// version reads as 0 and mutations never bump it.
	DisableVersioning bool
}

// Open creates or opens a database at opts.Path.
func Open(opts Options) (*Context, error) {
	store, err := kv.Open(kv.Options{
		Path:       opts.Path,
		InMemory:   opts.InMemory,
		SyncWrites: opts.SyncWrites,
	})
	if err != nil {
		return nil, err
	}
	mgr := storage.NewManager(store)
	if opts.DisableVersioning {
		mgr.SetVersioning(false)
	}
	return &Context{store: store, mgr: mgr, path: opts.Path}, nil
}

// Close releases every resource the Context holds. Using the Context
// afterward reports CTX_CLOSED; Transactions begun from it earlier are not
// tracked by the Context and do not report CTX_CLOSED.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.store.Close()
}

func (c *Context) requireOpen() error {
	if c.closed {
		return errs.New(errs.ClosedContext, "context is closed")
	}
	return nil
}

// BeginTxn starts a new Transaction in the given mode. A second concurrent
// ReadWrite BeginTxn fails fast with CTX_WRITER_ACTIVE; any number of
// ReadOnly transactions may run alongside it.
func (c *Context) BeginTxn(mode storage.Mode) (*Transaction, error) {
	if err := c.requireOpen(); err != nil {
		return nil, err
	}
	txn, err := c.mgr.Begin(mode)
	if err != nil {
		return nil, err
	}
	return newTransaction(txn), nil
}

// DBInfo reports schema and storage counters about the database, snapshot
// as of a fresh ReadOnly transaction. Path names the on-disk location
// backing this Context; MaxPositionID tracks the highest positionId
// allocated so far per class, useful for diagnosing storage growth and for
// the "nogdb info" CLI command. NumProperty, NumIndex, and the three MaxXID
// fields round out the catalog-sequence counters.
type DBInfo struct {
	Path          string
	NumClasses    int
	NumProperty   int
	NumIndex      int
	MaxClassID    uint16
	MaxPropertyID uint16
	MaxIndexID    uint32
	MaxPositionID map[uint16]int64
}

// Info gathers a DBInfo snapshot.
func (c *Context) Info() (DBInfo, error) {
	if err := c.requireOpen(); err != nil {
		return DBInfo{}, err
	}
	txn, err := c.mgr.Begin(storage.ReadOnly)
	if err != nil {
		return DBInfo{}, err
	}
	defer txn.Rollback()

	classes, err := txn.Catalog.ListClasses()
	if err != nil {
		return DBInfo{}, err
	}
	props, err := txn.Catalog.ListProperties()
	if err != nil {
		return DBInfo{}, err
	}
	indexes, err := txn.Catalog.ListIndexes()
	if err != nil {
		return DBInfo{}, err
	}
	maxClassID, err := txn.MaxClassID()
	if err != nil {
		return DBInfo{}, err
	}
	maxPropertyID, err := txn.MaxPropertyID()
	if err != nil {
		return DBInfo{}, err
	}
	maxIndexID, err := txn.MaxIndexID()
	if err != nil {
		return DBInfo{}, err
	}

	info := DBInfo{
		Path:          c.path,
		NumClasses:    len(classes),
		NumProperty:   len(props),
		NumIndex:      len(indexes),
		MaxClassID:    maxClassID,
		MaxPropertyID: maxPropertyID,
		MaxIndexID:    maxIndexID,
		MaxPositionID: map[uint16]int64{},
	}
	for _, cls := range classes {
		max, err := txn.MaxPositionID(cls.ID)
		if err != nil {
			return DBInfo{}, err
		}
		if max >= 0 {
			info.MaxPositionID[cls.ID] = max
		}
	}
	return info, nil
}

// Compact runs the underlying storage engine's value-log garbage
// collection, reclaiming space left behind by overwritten or deleted
// values. Backs the "nogdb compact" CLI command.
func (c *Context) Compact(discardRatio float64) error {
	if err := c.requireOpen(); err != nil {
		return err
	}
	return c.store.Compact(discardRatio)
}
