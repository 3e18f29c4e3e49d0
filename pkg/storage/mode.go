package storage

// Mode marks whether a Txn may mutate the catalog, records, and indexes, or
// may only read them.
type Mode uint8

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) writable() bool { return m == ReadWrite }
