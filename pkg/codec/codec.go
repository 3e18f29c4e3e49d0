// Package codec implements NogDB's record codec: encoding and decoding of
// typed property bundles to and from the byte strings the storage layer
// persists, as a self-describing per-property envelope.
//
// Decoding a bundle into propertyID->raw bytes needs no schema. Interpreting
// those bytes as a typed Go value does: callers pass the PropertyType the
// schema catalog has on file for that property.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PropertyType enumerates the scalar types a Property can declare, plus Blob.
type PropertyType uint8

const (
	TinyInt PropertyType = iota
	TinyIntU
	SmallInt
	SmallIntU
	Integer
	IntegerU
	BigInt
	BigIntU
	Real
	Text
	Blob
)

func (t PropertyType) String() string {
	switch t {
	case TinyInt:
		return "TinyInt"
	case TinyIntU:
		return "TinyIntU"
	case SmallInt:
		return "SmallInt"
	case SmallIntU:
		return "SmallIntU"
	case Integer:
		return "Integer"
	case IntegerU:
		return "IntegerU"
	case BigInt:
		return "BigInt"
	case BigIntU:
		return "BigIntU"
	case Real:
		return "Real"
	case Text:
		return "Text"
	case Blob:
		return "Blob"
	default:
		return fmt.Sprintf("PropertyType(%d)", uint8(t))
	}
}

// IsNumeric reports whether t is one of the integer or real scalar types.
func (t PropertyType) IsNumeric() bool {
	return t <= Real
}

// reservedNames are the synthesized record fields a write may never persist;
// they are computed from descriptor state on read instead.
var reservedNames = map[string]bool{
	"@className": true,
	"@recordId":  true,
	"@version":   true,
}

// IsReserved reports whether name is a synthesized field that must never be
// stored on a record.
func IsReserved(name string) bool {
	return reservedNames[name]
}

// EncodeScalar converts a Go value of the shape PropertyType t expects into
// its on-disk byte representation: little-endian fixed-width for integers
// and Real, raw UTF-8 bytes for Text, and raw bytes for Blob. These widths
// and orderings are a compatibility contract; upgrades keep them stable.
func EncodeScalar(t PropertyType, v any) ([]byte, error) {
	switch t {
	case TinyInt:
		i, err := asInt64(v, math.MinInt8, math.MaxInt8)
		if err != nil {
			return nil, err
		}
		return []byte{byte(int8(i))}, nil
	case TinyIntU:
		i, err := asUint64(v, math.MaxUint8)
		if err != nil {
			return nil, err
		}
		return []byte{byte(i)}, nil
	case SmallInt:
		i, err := asInt64(v, math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(int16(i)))
		return b, nil
	case SmallIntU:
		i, err := asUint64(v, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(i))
		return b, nil
	case Integer:
		i, err := asInt64(v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(int32(i)))
		return b, nil
	case IntegerU:
		i, err := asUint64(v, math.MaxUint32)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(i))
		return b, nil
	case BigInt:
		i, err := asInt64(v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(i))
		return b, nil
	case BigIntU:
		i, err := asUint64(v, math.MaxUint64)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, i)
		return b, nil
	case Real:
		f, err := asFloat64(v)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(f))
		return b, nil
	case Text:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("codec: Text property requires a string, got %T", v)
		}
		return []byte(s), nil
	case Blob:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("codec: Blob property requires []byte, got %T", v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("codec: unknown property type %v", t)
	}
}

// DecodeScalar interprets raw bytes as the Go value PropertyType t denotes.
func DecodeScalar(t PropertyType, b []byte) (any, error) {
	switch t {
	case TinyInt:
		if len(b) != 1 {
			return nil, fmt.Errorf("codec: TinyInt wants 1 byte, got %d", len(b))
		}
		return int8(b[0]), nil
	case TinyIntU:
		if len(b) != 1 {
			return nil, fmt.Errorf("codec: TinyIntU wants 1 byte, got %d", len(b))
		}
		return uint8(b[0]), nil
	case SmallInt:
		if len(b) != 2 {
			return nil, fmt.Errorf("codec: SmallInt wants 2 bytes, got %d", len(b))
		}
		return int16(binary.LittleEndian.Uint16(b)), nil
	case SmallIntU:
		if len(b) != 2 {
			return nil, fmt.Errorf("codec: SmallIntU wants 2 bytes, got %d", len(b))
		}
		return binary.LittleEndian.Uint16(b), nil
	case Integer:
		if len(b) != 4 {
			return nil, fmt.Errorf("codec: Integer wants 4 bytes, got %d", len(b))
		}
		return int32(binary.LittleEndian.Uint32(b)), nil
	case IntegerU:
		if len(b) != 4 {
			return nil, fmt.Errorf("codec: IntegerU wants 4 bytes, got %d", len(b))
		}
		return binary.LittleEndian.Uint32(b), nil
	case BigInt:
		if len(b) != 8 {
			return nil, fmt.Errorf("codec: BigInt wants 8 bytes, got %d", len(b))
		}
		return int64(binary.LittleEndian.Uint64(b)), nil
	case BigIntU:
		if len(b) != 8 {
			return nil, fmt.Errorf("codec: BigIntU wants 8 bytes, got %d", len(b))
		}
		return binary.LittleEndian.Uint64(b), nil
	case Real:
		if len(b) != 8 {
			return nil, fmt.Errorf("codec: Real wants 8 bytes, got %d", len(b))
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case Text:
		return string(b), nil
	case Blob:
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	default:
		return nil, fmt.Errorf("codec: unknown property type %v", t)
	}
}

func asInt64(v any, lo, hi int64) (int64, error) {
	var i int64
	switch val := v.(type) {
	case int:
		i = int64(val)
	case int8:
		i = int64(val)
	case int16:
		i = int64(val)
	case int32:
		i = int64(val)
	case int64:
		i = val
	case uint:
		i = int64(val)
	case uint8:
		i = int64(val)
	case uint16:
		i = int64(val)
	case uint32:
		i = int64(val)
	case uint64:
		i = int64(val)
	default:
		return 0, fmt.Errorf("codec: expected an integer value, got %T", v)
	}
	if i < lo || i > hi {
		return 0, fmt.Errorf("codec: value %d out of range [%d,%d]", i, lo, hi)
	}
	return i, nil
}

func asUint64(v any, hi uint64) (uint64, error) {
	var u uint64
	switch val := v.(type) {
	case int:
		if val < 0 {
			return 0, fmt.Errorf("codec: negative value %d for unsigned property", val)
		}
		u = uint64(val)
	case int8:
		if val < 0 {
			return 0, fmt.Errorf("codec: negative value %d for unsigned property", val)
		}
		u = uint64(val)
	case int16:
		if val < 0 {
			return 0, fmt.Errorf("codec: negative value %d for unsigned property", val)
		}
		u = uint64(val)
	case int32:
		if val < 0 {
			return 0, fmt.Errorf("codec: negative value %d for unsigned property", val)
		}
		u = uint64(val)
	case int64:
		if val < 0 {
			return 0, fmt.Errorf("codec: negative value %d for unsigned property", val)
		}
		u = uint64(val)
	case uint:
		u = uint64(val)
	case uint8:
		u = uint64(val)
	case uint16:
		u = uint64(val)
	case uint32:
		u = uint64(val)
	case uint64:
		u = val
	default:
		return 0, fmt.Errorf("codec: expected an unsigned integer value, got %T", v)
	}
	if u > hi {
		return 0, fmt.Errorf("codec: value %d out of range [0,%d]", u, hi)
	}
	return u, nil
}

func asFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("codec: expected a real value, got %T", v)
	}
}
