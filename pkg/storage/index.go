package storage

import (
	"bytes"
	"math"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/errs"
	"github.com/nogdb/nogdb/pkg/kv"
)

// Comparator enumerates the lookup operators the query engine can push down
// onto an index.
type Comparator uint8

const (
	Eq Comparator = iota
	Lt
	Le
	Gt
	Ge
	Between
)

// IndexEngine maintains secondary indexes and answers indexed range
// lookups. Uniqueness is enforced scan-then-reject: a write first probes
// the index for an existing entry under the same value and fails before
// anything is staged.
type IndexEngine struct {
	txn  *kv.Txn
	mode Mode
}

func newIndexEngine(txn *kv.Txn, mode Mode) *IndexEngine {
	return &IndexEngine{txn: txn, mode: mode}
}

// orderKey encodes a scalar value so that byte-lexicographic order on the
// result matches the value's natural order: unsigned integers are already
// big-endian order-preserving; signed integers get their sign bit flipped;
// floats get the standard flip-if-positive/invert-if-negative transform;
// text is its own order-preserving encoding.
func orderKey(t codec.PropertyType, v any) ([]byte, error) {
	switch t {
	case codec.TinyIntU:
		uv, err := asUint64Local(v, math.MaxUint8)
		if err != nil {
			return nil, err
		}
		return []byte{byte(uv)}, nil
	case codec.SmallIntU:
		uv, err := asUint64Local(v, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 2)
		putBE16(b, uint16(uv))
		return b, nil
	case codec.IntegerU:
		uv, err := asUint64Local(v, math.MaxUint32)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 4)
		putBE32(b, uint32(uv))
		return b, nil
	case codec.BigIntU:
		uv, err := asUint64Local(v, math.MaxUint64)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 8)
		putBE64(b, uv)
		return b, nil
	case codec.TinyInt:
		iv, err := asInt64Local(v)
		if err != nil {
			return nil, err
		}
		return []byte{byte(int8(iv)) ^ 0x80}, nil
	case codec.SmallInt:
		iv, err := asInt64Local(v)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 2)
		putBE16(b, uint16(int16(iv))^0x8000)
		return b, nil
	case codec.Integer:
		iv, err := asInt64Local(v)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 4)
		putBE32(b, uint32(int32(iv))^0x80000000)
		return b, nil
	case codec.BigInt:
		iv, err := asInt64Local(v)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 8)
		putBE64(b, uint64(iv)^0x8000000000000000)
		return b, nil
	case codec.Real:
		fv, err := asFloat64Local(v)
		if err != nil {
			return nil, err
		}
		bits := math.Float64bits(fv)
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		b := make([]byte, 8)
		putBE64(b, bits)
		return b, nil
	case codec.Text:
		s, ok := v.(string)
		if !ok {
			return nil, errs.New(errs.InvalidPropType, "expected string for Text index key")
		}
		return []byte(s), nil
	default:
		return nil, errs.New(errs.InvalidIndexConstraint, "property type %s is not indexable", t)
	}
}

func putBE16(b []byte, v uint16) { b[0] = byte(v >> 8); b[1] = byte(v) }
func putBE32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
}
func putBE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * i))
	}
}

// entryKey appends the RID to an order key so multiple records sharing one
// indexed value get distinct, still-ordered entries within a non-unique
// index.
func entryKey(order []byte, rid RID) []byte {
	out := make([]byte, len(order)+10)
	copy(out, order)
	putBE16(out[len(order):], rid.ClassID)
	putBE64(out[len(order)+2:], uint64(rid.PositionID))
	return out
}

func decodeEntryRID(key []byte) RID {
	n := len(key)
	return RID{
		ClassID:    uint16(key[n-10])<<8 | uint16(key[n-9]),
		PositionID: int64(uint64(key[n-8])<<56 | uint64(key[n-7])<<48 | uint64(key[n-6])<<40 | uint64(key[n-5])<<32 | uint64(key[n-4])<<24 | uint64(key[n-3])<<16 | uint64(key[n-2])<<8 | uint64(key[n-1])),
	}
}

// Insert adds rid to the index, rejecting a collision if ix is unique and
// the value is already present in the index (under any RID).
func (e *IndexEngine) Insert(ix Index, propType codec.PropertyType, value any, rid RID) error {
	order, err := orderKey(propType, value)
	if err != nil {
		return err
	}
	sm := subMapIndex(ix.ID)
	if ix.Unique {
		it := e.txn.ScanPrefix(sm, order)
		defer it.Close()
		// Text order keys are variable-length, so a prefix hit alone isn't a
		// collision: "ab" prefixes "abc"'s entry. Only an entry whose order
		// portion is exactly this value (entry = order + 10-byte RID) counts.
		for ; it.Valid(); it.Next() {
			if len(it.Key()) == len(order)+10 {
				return errs.New(errs.InvalidIndexConstraint, "unique index violation")
			}
		}
	}
	return e.txn.Put(sm, entryKey(order, rid), nil)
}

// Remove deletes rid's entry from the index.
func (e *IndexEngine) Remove(ix Index, propType codec.PropertyType, value any, rid RID) error {
	order, err := orderKey(propType, value)
	if err != nil {
		return err
	}
	return e.txn.Delete(subMapIndex(ix.ID), entryKey(order, rid))
}

// Drop deletes every data page of the index. The catalog entry is the
// caller's concern (Catalog.DropIndex); the two halves compose in
// storage.Txn.DropIndex.
func (e *IndexEngine) Drop(ix Index) error {
	sm := subMapIndex(ix.ID)
	it := e.txn.ScanPrefix(sm, nil)
	var keys [][]byte
	for ; it.Valid(); it.Next() {
		keys = append(keys, it.Key())
	}
	it.Close()
	for _, k := range keys {
		if err := e.txn.Delete(sm, k); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns every RID whose indexed value satisfies comparator against
// value (and, for Between, hi).
func (e *IndexEngine) Lookup(ix Index, propType codec.PropertyType, comparator Comparator, value, hi any) ([]RID, error) {
	lo, err := orderKey(propType, value)
	if err != nil {
		return nil, err
	}
	sm := subMapIndex(ix.ID)

	switch comparator {
	case Eq:
		it := e.txn.ScanPrefix(sm, lo)
		defer it.Close()
		var out []RID
		for ; it.Valid(); it.Next() {
			k := it.Key()
			if len(k) != len(lo)+10 {
				continue // a longer Text value sharing this value as a prefix
			}
			out = append(out, decodeEntryRID(k))
		}
		return out, nil
	case Lt, Le, Gt, Ge:
		it := e.txn.ScanPrefix(sm, nil)
		defer it.Close()
		var out []RID
		for ; it.Valid(); it.Next() {
			k := it.Key()
			order := k[:len(k)-10]
			cmp := bytes.Compare(order, lo)
			include := false
			switch comparator {
			case Lt:
				include = cmp < 0
			case Le:
				include = cmp <= 0
			case Gt:
				include = cmp > 0
			case Ge:
				include = cmp >= 0
			}
			if include {
				out = append(out, decodeEntryRID(k))
			}
		}
		return out, nil
	case Between:
		hiKey, err := orderKey(propType, hi)
		if err != nil {
			return nil, err
		}
		it := e.txn.ScanPrefix(sm, nil)
		defer it.Close()
		var out []RID
		for ; it.Valid(); it.Next() {
			k := it.Key()
			order := k[:len(k)-10]
			if bytes.Compare(order, lo) >= 0 && bytes.Compare(order, hiKey) <= 0 {
				out = append(out, decodeEntryRID(k))
			}
		}
		return out, nil
	default:
		return nil, errs.New(errs.InvalidComparator, "unsupported comparator")
	}
}

func asInt64Local(v any) (int64, error) {
	switch n := v.(type) {
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, errs.New(errs.InvalidPropType, "expected signed integer for index key")
	}
}

func asUint64Local(v any, hi uint64) (uint64, error) {
	var u uint64
	switch n := v.(type) {
	case uint8:
		u = uint64(n)
	case uint16:
		u = uint64(n)
	case uint32:
		u = uint64(n)
	case uint64:
		u = n
	default:
		return 0, errs.New(errs.InvalidPropType, "expected unsigned integer for index key")
	}
	if u > hi {
		return 0, errs.New(errs.InvalidPropType, "value %d out of range", u)
	}
	return u, nil
}

func asFloat64Local(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		return 0, errs.New(errs.InvalidPropType, "expected float for index key")
	}
}
