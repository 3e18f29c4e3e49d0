// Package storage implements the schema catalog, record store, index
// engine, and transaction manager that sit directly on top of pkg/kv. The
// four concerns live in one package because they share a transaction: a
// record write may touch the catalog (property resolution), the record
// pages, and the index pages in a single atomic step.
package storage

import (
	"github.com/nogdb/nogdb/pkg/codec"
)

// ClassKind distinguishes vertex classes from edge classes.
type ClassKind uint8

const (
	Vertex ClassKind = iota
	Edge
)

func (k ClassKind) String() string {
	if k == Edge {
		return "Edge"
	}
	return "Vertex"
}

// noParent is the sentinel ParentID meaning "this class has no base class".
// Valid class IDs are allocated starting at 1, so 0 is never a real class.
const noParent uint16 = 0

// invalidPosition is the reserved, invalid positionId.
const invalidPosition int64 = -1

// RID is a Record Descriptor: a stable (classId, positionId) pair
// identifying one record for the lifetime of the database.
type RID struct {
	ClassID    uint16
	PositionID int64
}

// Valid reports whether r denotes a real record slot (positionId != -1).
func (r RID) Valid() bool {
	return r.PositionID != invalidPosition
}

// Class is one node in the single-inheritance class forest.
type Class struct {
	ID       uint16
	Name     string
	Kind     ClassKind
	ParentID uint16 // noParent if this class has no base class
}

// HasParent reports whether c declares a base class.
func (c Class) HasParent() bool { return c.ParentID != noParent }

// Property is a typed, named field declared on exactly one class (its
// "home" class). Property IDs are allocated from a single global counter so
// that a record encoded under an inherited property keeps using its home
// class's ID no matter which subclass instance holds the value.
type Property struct {
	ID      uint16
	ClassID uint16 // the home class: where this property was declared
	Name    string
	Type    codec.PropertyType
}

// ResolvedProperty is what schema lookups return: a Property plus whether it
// was found on an ancestor of the class that was actually queried.
type ResolvedProperty struct {
	Property
	Inherited bool
}

// Index is a secondary index over one property.
type Index struct {
	ID         uint32
	ClassID    uint16 // the property's home class, not necessarily the class add_index named
	PropertyID uint16
	Unique     bool
}

// Record is the stored representation of a vertex or edge: its identity,
// version, raw (still schema-uninterpreted) property bytes, and — for
// edges — its endpoints.
type Record struct {
	RID     RID
	Version uint64
	Props   map[uint16][]byte // propertyID -> raw encoded bytes
	IsEdge  bool
	Src     RID // zero value when IsEdge is false
	Dst     RID
}
