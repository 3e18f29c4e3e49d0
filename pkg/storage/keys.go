package storage

import "encoding/binary"

// Sub-map names. A fixed handful of catalog sub-maps, plus one
// records/adj_in/adj_out sub-map per class and one index sub-map per index.
const (
	subMapClasses    = "catalog::classes"
	subMapProperties = "catalog::properties"
	subMapIndexes    = "catalog::indexes"
	subMapCounters   = "catalog::counters"
)

func subMapRecords(classID uint16) string { return "records::" + itoa16(classID) }
func subMapAdjOut(classID uint16) string  { return "adj_out::" + itoa16(classID) }
func subMapAdjIn(classID uint16) string   { return "adj_in::" + itoa16(classID) }
func subMapIndex(indexID uint32) string   { return "index::" + itoa32(indexID) }

func itoa16(v uint16) string {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return string(b)
}

func itoa32(v uint32) string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return string(b)
}

// Counter keys, each a single global monotonic uint64 sequence.
const (
	counterClassID    = "next_class_id"
	counterPropertyID = "next_property_id"
	counterIndexID    = "next_index_id"
)

func counterKeyFor(classID uint16) []byte {
	return []byte("position::" + itoa16(classID))
}

// positionKey and classKey both encode as big-endian so that ScanPrefix
// returns records/classes/properties in ascending numeric order, matching
// the order badger's own byte-lexicographic iterator provides.
func positionKey(positionID int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(positionID))
	return b
}

func decodePositionKey(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func classKey(id uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, id)
	return b
}

func decodeClassKey(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

func propertyKey(id uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, id)
	return b
}

func decodePropertyKey(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

func indexKey(id uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, id)
	return b
}

func decodeIndexKey(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// adjKey addresses one adjacency entry inside an endpoint class's
// adj_in/adj_out sub-map: the endpoint's own position first, so that a
// prefix scan on adjPrefix(endpoint) enumerates exactly that vertex's
// incident edges, then the edge RID, then the far endpoint's RID so a scan
// can resolve the neighbor without fetching the edge record.
func adjKey(endpoint, edgeRID, neighborRID RID) []byte {
	b := make([]byte, 8+2+8+2+8)
	binary.BigEndian.PutUint64(b[0:8], uint64(endpoint.PositionID))
	binary.BigEndian.PutUint16(b[8:10], edgeRID.ClassID)
	binary.BigEndian.PutUint64(b[10:18], uint64(edgeRID.PositionID))
	binary.BigEndian.PutUint16(b[18:20], neighborRID.ClassID)
	binary.BigEndian.PutUint64(b[20:28], uint64(neighborRID.PositionID))
	return b
}

// adjPrefix is the scan prefix covering every adjacency entry of one vertex.
func adjPrefix(endpoint RID) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(endpoint.PositionID))
	return b
}

func decodeAdjKey(b []byte) (edgeRID, neighborRID RID) {
	edgeRID = RID{
		ClassID:    binary.BigEndian.Uint16(b[8:10]),
		PositionID: int64(binary.BigEndian.Uint64(b[10:18])),
	}
	neighborRID = RID{
		ClassID:    binary.BigEndian.Uint16(b[18:20]),
		PositionID: int64(binary.BigEndian.Uint64(b[20:28])),
	}
	return
}
