package storage

import "encoding/binary"

// Stored record layout: version(8) [src classID(2) src positionID(8) dst
// classID(2) dst positionID(8), only for edges] bundle(rest). Whether a
// record is an edge is always known from its class (looked up via the
// catalog), so the flag itself is never persisted.
func encodeRecordValue(version uint64, isEdge bool, src, dst RID, bundle []byte) []byte {
	size := 8
	if isEdge {
		size += 20
	}
	out := make([]byte, size, size+len(bundle))
	binary.BigEndian.PutUint64(out[0:8], version)
	if isEdge {
		binary.BigEndian.PutUint16(out[8:10], src.ClassID)
		binary.BigEndian.PutUint64(out[10:18], uint64(src.PositionID))
		binary.BigEndian.PutUint16(out[18:20], dst.ClassID)
		binary.BigEndian.PutUint64(out[20:28], uint64(dst.PositionID))
	}
	return append(out, bundle...)
}

func decodeRecordValue(raw []byte, isEdge bool) (version uint64, src, dst RID, bundle []byte) {
	version = binary.BigEndian.Uint64(raw[0:8])
	off := 8
	if isEdge {
		src = RID{
			ClassID:    binary.BigEndian.Uint16(raw[8:10]),
			PositionID: int64(binary.BigEndian.Uint64(raw[10:18])),
		}
		dst = RID{
			ClassID:    binary.BigEndian.Uint16(raw[18:20]),
			PositionID: int64(binary.BigEndian.Uint64(raw[20:28])),
		}
		off = 28
	}
	bundle = raw[off:]
	return
}
