// Package kv adapts NogDB's storage, schema, and index layers onto a single
// embedded key-value engine, github.com/dgraph-io/badger/v4.
//
// Everything above this package only ever talks to named sub-maps through a
// Txn: point get, ordered forward scan, put, delete, and atomic multi-map
// commit. Badger already gives exactly that contract natively (a *badger.Txn
// is a stable MVCC read snapshot with an ordered iterator and atomic commit),
// so this layer's job is narrow: partition badger's single flat keyspace
// into named sub-maps via key prefixes.
package kv

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ErrClosed is returned by any operation on a Store or Txn after Close.
var ErrClosed = errors.New("kv: store is closed")

// Options configures the underlying badger engine.
type Options struct {
	// Path is the on-disk directory. Ignored when InMemory is true.
	Path string

	// InMemory runs badger with no disk footprint, for tests.
	InMemory bool

	// SyncWrites forces fsync after every commit. Slower, more durable.
	SyncWrites bool

	// Logger receives badger's internal diagnostics. Nil suppresses them.
	Logger badger.Logger
}

// Store owns the single badger.DB backing every sub-map.
type Store struct {
	db     *badger.DB
	closed bool
}

// Open creates or opens a Store at the given options.
func Open(opts Options) (*Store, error) {
	// Badger rejects a disk-less open that still names a directory, so the
	// path is dropped entirely in in-memory mode rather than just ignored.
	dir := opts.Path
	if opts.InMemory {
		dir = ""
	}
	bo := badger.DefaultOptions(dir)
	if opts.InMemory {
		bo = bo.WithInMemory(true)
	}
	if opts.SyncWrites {
		bo = bo.WithSyncWrites(true)
	}
	bo = bo.WithLogger(opts.Logger) // nil is fine: badger treats it as "no logging"

	db, err := badger.Open(bo)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying badger handle. Safe to call once; further
// operations on the Store report ErrClosed. A Txn begun earlier is not
// tracked by the Store and does not check whether it was closed.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	return s.closed
}

// Begin starts a new transaction bound to a stable read snapshot. writable
// transactions may mutate; the commit is atomic across every sub-map
// touched. Concurrent read transactions never block a writer and vice
// versa, per badger's own MVCC guarantees.
func (s *Store) Begin(writable bool) (*Txn, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return &Txn{txn: s.db.NewTransaction(writable), writable: writable}, nil
}

// Compact drives badger's value-log garbage collection until no more log
// files can be rewritten. Backs the "nogdb compact" subcommand.
func (s *Store) Compact(discardRatio float64) error {
	if s.closed {
		return ErrClosed
	}
	for {
		err := s.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
