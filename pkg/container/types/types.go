// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"fmt"
	"unsafe"
)

type T uint8

const (
	// T_any is the unknown type, used before inference.
	T_any T = iota

	T_bool

	// numeric types
	T_int8
	T_int16
	T_int32
	T_int64
	T_uint8
	T_uint16
	T_uint32
	T_uint64
	T_float32
	T_float64

	// variable length types
	T_char
	T_varchar
	T_json

	// T_tuple is a struct column: the vector carries one child vector
	// per field plus its own null bitmap.
	T_tuple

	// fixed-element arrays, the embedding payload types.  They have no
	// total order and no probe support.
	T_array_float32
	T_array_float64
)

// Type describes a column's element type.  Width/Scale carry the
// declared char width and decimal scale; both are zero for the types
// this engine probes.
type Type struct {
	Oid   T
	Size  int32
	Width int32
	Scale int32
}

const (
	VarlenaSize       = 24
	VarlenaInlineSize = 23
)

// Varlena is a 24 byte string cell.  Small strings are stored inline
// behind a one byte length; larger strings live in the vector's area
// and the cell stores offset and length.
type Varlena [VarlenaSize]byte

func (v *Varlena) IsSmall() bool {
	return v[0] <= VarlenaInlineSize
}

func (v *Varlena) SetSmall(bs []byte) {
	v[0] = byte(len(bs))
	copy(v[1:], bs)
}

func (v *Varlena) SetOffsetLen(voff, vlen uint32) {
	v[0] = 0xff
	*(*uint32)(unsafe.Pointer(&v[4])) = voff
	*(*uint32)(unsafe.Pointer(&v[8])) = vlen
}

func (v *Varlena) OffsetLen() (uint32, uint32) {
	return *(*uint32)(unsafe.Pointer(&v[4])), *(*uint32)(unsafe.Pointer(&v[8]))
}

func (v *Varlena) GetByteSlice(area []byte) []byte {
	if v.IsSmall() {
		return v[1 : 1+v[0]]
	}
	voff, vlen := v.OffsetLen()
	return area[voff : voff+vlen]
}

func (v *Varlena) GetString(area []byte) string {
	return string(v.GetByteSlice(area))
}

func (v *Varlena) Reset() {
	*v = Varlena{}
}

// BuildVarlena writes bs into area if it does not fit inline, growing
// area through mp.  Returns the cell and the (possibly reallocated)
// area.
func BuildVarlena(bs []byte, area []byte, grow func([]byte, int) ([]byte, error)) (Varlena, []byte, error) {
	var v Varlena
	if len(bs) <= VarlenaInlineSize {
		v.SetSmall(bs)
		return v, area, nil
	}
	voff := len(area)
	area, err := grow(area, voff+len(bs))
	if err != nil {
		return v, nil, err
	}
	copy(area[voff:], bs)
	v.SetOffsetLen(uint32(voff), uint32(len(bs)))
	return v, area, nil
}

// FixedSizeTExceptStrType is the constraint over all fixed width
// element go types except the string cell.
type FixedSizeTExceptStrType interface {
	~bool | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// FixedSizeT covers everything a flat vector stores by value.
type FixedSizeT interface {
	FixedSizeTExceptStrType | Varlena
}

// OrderedT is the constraint for element types with a native total
// order.
type OrderedT interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func (t T) ToType() Type {
	var typ Type

	typ.Oid = t
	switch t {
	case T_any:
		typ.Size = 0
	case T_bool:
		typ.Size = 1
	case T_int8, T_uint8:
		typ.Size = 1
	case T_int16, T_uint16:
		typ.Size = 2
	case T_int32, T_uint32, T_float32:
		typ.Size = 4
	case T_int64, T_uint64, T_float64:
		typ.Size = 8
	case T_char, T_varchar, T_json, T_array_float32, T_array_float64:
		typ.Size = VarlenaSize
	case T_tuple:
		typ.Size = 0
	default:
		panic(fmt.Sprintf("unknown type %d", t))
	}
	return typ
}

func New(oid T) Type {
	return oid.ToType()
}

func (t Type) TypeSize() int {
	return int(t.Size)
}

func (t Type) IsVarlen() bool {
	return t.Oid.IsVarlen()
}

func (t Type) IsTuple() bool {
	return t.Oid == T_tuple
}

func (t Type) IsArray() bool {
	return t.Oid == T_array_float32 || t.Oid == T_array_float64
}

func (t Type) Eq(b Type) bool {
	return t.Oid == b.Oid
}

func (t Type) String() string {
	return t.Oid.String()
}

func (t T) IsVarlen() bool {
	switch t {
	case T_char, T_varchar, T_json, T_array_float32, T_array_float64:
		return true
	}
	return false
}

// IsOrdered reports whether the type has a total order usable for
// sorted probing.
func (t T) IsOrdered() bool {
	switch t {
	case T_bool, T_int8, T_int16, T_int32, T_int64,
		T_uint8, T_uint16, T_uint32, T_uint64,
		T_float32, T_float64, T_char, T_varchar:
		return true
	}
	return false
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_bool:
		return "BOOL"
	case T_int8:
		return "TINYINT"
	case T_int16:
		return "SMALLINT"
	case T_int32:
		return "INT"
	case T_int64:
		return "BIGINT"
	case T_uint8:
		return "TINYINT UNSIGNED"
	case T_uint16:
		return "SMALLINT UNSIGNED"
	case T_uint32:
		return "INT UNSIGNED"
	case T_uint64:
		return "BIGINT UNSIGNED"
	case T_float32:
		return "FLOAT"
	case T_float64:
		return "DOUBLE"
	case T_char:
		return "CHAR"
	case T_varchar:
		return "VARCHAR"
	case T_json:
		return "JSON"
	case T_tuple:
		return "TUPLE"
	case T_array_float32:
		return "VECF32"
	case T_array_float64:
		return "VECF64"
	}
	return fmt.Sprintf("unexpected type: %d", t)
}

func (t T) OidString() string {
	switch t {
	case T_any:
		return "T_any"
	case T_bool:
		return "T_bool"
	case T_int8:
		return "T_int8"
	case T_int16:
		return "T_int16"
	case T_int32:
		return "T_int32"
	case T_int64:
		return "T_int64"
	case T_uint8:
		return "T_uint8"
	case T_uint16:
		return "T_uint16"
	case T_uint32:
		return "T_uint32"
	case T_uint64:
		return "T_uint64"
	case T_float32:
		return "T_float32"
	case T_float64:
		return "T_float64"
	case T_char:
		return "T_char"
	case T_varchar:
		return "T_varchar"
	case T_json:
		return "T_json"
	case T_tuple:
		return "T_tuple"
	case T_array_float32:
		return "T_array_float32"
	case T_array_float64:
		return "T_array_float64"
	}
	return "unknown_type"
}
