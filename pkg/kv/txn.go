package kv

import (
	"github.com/dgraph-io/badger/v4"
)

// Txn wraps a single badger.Txn and namespaces it into named sub-maps: the
// catalog maps, one records/adj_in/adj_out map per class, and one index map
// per index. A sub-map is just a key prefix; badger itself provides
// everything else the contract asks for.
type Txn struct {
	txn      *badger.Txn
	writable bool
	done     bool
}

// Writable reports whether this transaction may Put/Delete.
func (t *Txn) Writable() bool { return t.writable }

// fullKey joins a sub-map name and a sub-map-local key into badger's single
// flat keyspace. A sub-map name may itself contain 0x00 bytes (pkg/storage
// appends big-endian binary IDs); keys of two sub-maps stay apart as long as
// no name equals another name followed by 0x00 and more bytes, which holds
// for pkg/storage's names since each family of them has a fixed length.
func fullKey(subMap string, key []byte) []byte {
	out := make([]byte, 0, len(subMap)+1+len(key))
	out = append(out, subMap...)
	out = append(out, 0x00)
	out = append(out, key...)
	return out
}

// Get performs a point lookup in the given sub-map. ok is false if the key
// is absent.
func (t *Txn) Get(subMap string, key []byte) (value []byte, ok bool, err error) {
	if t.done {
		return nil, false, ErrClosed
	}
	item, err := t.txn.Get(fullKey(subMap, key))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Put writes value under key in the given sub-map.
func (t *Txn) Put(subMap string, key, value []byte) error {
	if t.done {
		return ErrClosed
	}
	return t.txn.Set(fullKey(subMap, key), value)
}

// Delete removes key from the given sub-map. Deleting an absent key is not
// an error, matching badger's own semantics.
func (t *Txn) Delete(subMap string, key []byte) error {
	if t.done {
		return ErrClosed
	}
	return t.txn.Delete(fullKey(subMap, key))
}

// Iterator performs a forward ordered scan over a key range within one
// sub-map.
type Iterator struct {
	it     *badger.Iterator
	prefix []byte
	subMap string
}

// ScanPrefix returns an Iterator positioned at the first key in subMap whose
// sub-map-local key starts with prefix (nil or empty prefix scans the whole
// sub-map). The caller must call Close when done.
func (t *Txn) ScanPrefix(subMap string, prefix []byte) *Iterator {
	if t.done {
		return &Iterator{subMap: subMap}
	}
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	full := fullKey(subMap, prefix)
	it := t.txn.NewIterator(opts)
	it.Seek(full)
	return &Iterator{it: it, prefix: full, subMap: subMap}
}

// Valid reports whether the cursor is on a key still within the scanned
// sub-map and prefix. An iterator opened on a finished transaction is
// permanently exhausted.
func (it *Iterator) Valid() bool {
	return it.it != nil && it.it.ValidForPrefix(it.prefix)
}

// Next advances the cursor.
func (it *Iterator) Next() {
	it.it.Next()
}

// Key returns the sub-map-local key at the cursor (the sub-map prefix and
// separator stripped off).
func (it *Iterator) Key() []byte {
	full := it.it.Item().KeyCopy(nil)
	return full[len(it.subMap)+1:]
}

// Value returns the value at the cursor.
func (it *Iterator) Value() ([]byte, error) {
	return it.it.Item().ValueCopy(nil)
}

// Close releases the iterator's resources.
func (it *Iterator) Close() {
	if it.it != nil {
		it.it.Close()
	}
}

// Commit atomically publishes every Put/Delete made on this transaction as a
// single new snapshot. Failures leave the prior snapshot untouched.
func (t *Txn) Commit() error {
	if t.done {
		return ErrClosed
	}
	t.done = true
	return t.txn.Commit()
}

// Rollback discards every buffered change. Always legal, even on a read-only
// transaction (it simply releases the snapshot).
func (t *Txn) Rollback() {
	if t.done {
		return
	}
	t.done = true
	t.txn.Discard()
}
