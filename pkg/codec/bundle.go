package codec

import (
	"encoding/binary"
	"fmt"
)

// bundleFormatVersion is the first byte of every encoded bundle, allowing
// the on-disk envelope to evolve without breaking old records.
const bundleFormatVersion = 1

// EncodeBundle serializes a property-ID -> raw-value map into NogDB's
// self-describing record envelope: a one-byte format version, a uint16
// count, then for each entry (propertyID uint16, length uint32, bytes).
// Entries are written in ascending property-ID order so the encoding is
// deterministic (useful for tests and for byte-for-byte round-trips).
func EncodeBundle(props map[uint16][]byte) []byte {
	ids := make([]uint16, 0, len(props))
	for id := range props {
		ids = append(ids, id)
	}
	sortUint16(ids)

	size := 1 + 2
	for _, id := range ids {
		size += 2 + 4 + len(props[id])
	}

	out := make([]byte, size)
	out[0] = bundleFormatVersion
	binary.LittleEndian.PutUint16(out[1:3], uint16(len(ids)))

	off := 3
	for _, id := range ids {
		v := props[id]
		binary.LittleEndian.PutUint16(out[off:], id)
		off += 2
		binary.LittleEndian.PutUint32(out[off:], uint32(len(v)))
		off += 4
		copy(out[off:], v)
		off += len(v)
	}
	return out
}

// DecodeBundle parses a byte string produced by EncodeBundle back into its
// propertyID -> raw-value map. No schema is required at this stage: the
// values returned are the raw bytes as stored; interpreting them as typed
// Go values requires DecodeScalar plus the schema's PropertyType for each ID.
func DecodeBundle(data []byte) (map[uint16][]byte, error) {
	if len(data) == 0 {
		return map[uint16][]byte{}, nil
	}
	if len(data) < 3 {
		return nil, fmt.Errorf("codec: truncated bundle header")
	}
	if data[0] != bundleFormatVersion {
		return nil, fmt.Errorf("codec: unsupported bundle format version %d", data[0])
	}
	count := binary.LittleEndian.Uint16(data[1:3])
	out := make(map[uint16][]byte, count)
	off := 3
	for i := uint16(0); i < count; i++ {
		if off+6 > len(data) {
			return nil, fmt.Errorf("codec: truncated bundle entry %d", i)
		}
		id := binary.LittleEndian.Uint16(data[off:])
		off += 2
		length := binary.LittleEndian.Uint32(data[off:])
		off += 4
		if off+int(length) > len(data) {
			return nil, fmt.Errorf("codec: truncated bundle value for property %d", id)
		}
		val := make([]byte, length)
		copy(val, data[off:off+int(length)])
		off += int(length)
		out[id] = val
	}
	return out, nil
}

// sortUint16 is a small insertion sort; bundles hold a handful of properties
// so this avoids pulling in sort.Slice's reflection overhead for the hot
// encode path.
func sortUint16(ids []uint16) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
