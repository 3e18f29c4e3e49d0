package storage

import (
	"encoding/binary"

	"github.com/nogdb/nogdb/pkg/kv"
)

// nextSeq allocates the next value of a monotonic uint64 sequence stored
// under name in the counters sub-map, starting at 1 (0 is reserved as a
// not-a-class / not-a-property sentinel throughout this package).
func nextSeq(txn *kv.Txn, name string) (uint64, error) {
	raw, ok, err := txn.Get(subMapCounters, []byte(name))
	if err != nil {
		return 0, err
	}
	var cur uint64
	if ok {
		cur = binary.BigEndian.Uint64(raw)
	}
	next := cur + 1
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, next)
	if err := txn.Put(subMapCounters, []byte(name), out); err != nil {
		return 0, err
	}
	return next, nil
}

// peekSeq returns the current value of the monotonic sequence stored under
// name, or 0 if it has never been allocated. Used by DBInfo's
// MaxClassID/MaxPropertyID/MaxIndexID.
func peekSeq(txn *kv.Txn, name string) (uint64, error) {
	raw, ok, err := txn.Get(subMapCounters, []byte(name))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return binary.BigEndian.Uint64(raw), nil
}

// nextPositionID allocates the next positionId for classID, starting at 0.
func nextPositionID(txn *kv.Txn, classID uint16) (int64, error) {
	key := counterKeyFor(classID)
	raw, ok, err := txn.Get(subMapCounters, key)
	if err != nil {
		return 0, err
	}
	var cur int64 = -1
	if ok {
		cur = decodePositionKey(raw)
	}
	next := cur + 1
	if err := txn.Put(subMapCounters, key, positionKey(next)); err != nil {
		return 0, err
	}
	return next, nil
}

// peekMaxPositionID returns the highest positionId allocated so far for
// classID, or -1 if none have been. Used by DBInfo.MaxPositionID.
func peekMaxPositionID(txn *kv.Txn, classID uint16) (int64, error) {
	raw, ok, err := txn.Get(subMapCounters, counterKeyFor(classID))
	if err != nil {
		return -1, err
	}
	if !ok {
		return -1, nil
	}
	return decodePositionKey(raw), nil
}
