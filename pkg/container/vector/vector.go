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

package vector

import (
	"bytes"
	"fmt"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/common/mpool"
	"github.com/matrixorigin/colcore/pkg/container/nulls"
	"github.com/matrixorigin/colcore/pkg/container/types"
)

const (
	FLAT     = iota // flat vector represent a uncompressed vector
	CONSTANT        // const vector
	DIST            // dictionary vector
)

// Vector represent a column.  The payload of fixed width types lives
// in data; string cells are Varlena in data pointing into area.  A
// tuple vector stores no payload of its own, only children.  A DIST
// vector's payload is int32 codes into keys.
type Vector struct {
	// vector's class
	class int
	// type represent the type of column
	typ types.Type
	nsp *nulls.Nulls // nulls list

	data []byte
	// area for holding large strings.
	area []byte

	capacity int
	length   int

	// children of a tuple vector, one per field, row counts equal the
	// parent's.
	children []*Vector
	// keys of a dictionary vector.
	keys *Vector

	// borrowed windows must not free the underlying buffers
	cantFreeData bool
	cantFreeArea bool

	sorted bool
}

func NewVec(typ types.Type) *Vector {
	return &Vector{
		typ:   typ,
		class: FLAT,
		nsp:   &nulls.Nulls{},
	}
}

// NewConstNull is the typed null scalar of the engine.
func NewConstNull(typ types.Type, length int, _ *mpool.MPool) *Vector {
	vec := &Vector{
		typ:    typ,
		class:  CONSTANT,
		nsp:    nulls.Build(length, 0),
		length: length,
	}
	return vec
}

// NewConstFixed is the typed fixed-width scalar.
func NewConstFixed[T types.FixedSizeTExceptStrType](typ types.Type, val T, length int, mp *mpool.MPool) (*Vector, error) {
	vec := &Vector{
		typ:   typ,
		class: CONSTANT,
		nsp:   &nulls.Nulls{},
	}
	if err := appendOneFixed(vec, val, false, mp); err != nil {
		return nil, err
	}
	vec.length = length
	return vec, nil
}

// NewConstBytes is the string scalar.
func NewConstBytes(typ types.Type, val []byte, length int, mp *mpool.MPool) (*Vector, error) {
	vec := &Vector{
		typ:   typ,
		class: CONSTANT,
		nsp:   &nulls.Nulls{},
	}
	if err := appendOneBytes(vec, val, false, mp); err != nil {
		return nil, err
	}
	vec.length = length
	return vec, nil
}

// NewTuple builds a struct vector over children.  The vector borrows
// nothing: it owns its children from now on.
func NewTuple(children []*Vector, length int) *Vector {
	return &Vector{
		typ:      types.T_tuple.ToType(),
		class:    FLAT,
		nsp:      &nulls.Nulls{},
		children: children,
		length:   length,
	}
}

// NewDist builds a dictionary vector: codes index into keys, a null
// code is marked in the vector's own null bitmap.
func NewDist(keys *Vector, codes []int32, nsp *nulls.Nulls, mp *mpool.MPool) (*Vector, error) {
	vec := &Vector{
		typ:   *keys.GetType(),
		class: DIST,
		nsp:   &nulls.Nulls{},
		keys:  keys,
	}
	if nsp != nil {
		vec.nsp = nsp
	}
	if err := extend(vec, len(codes)*4, mp); err != nil {
		return nil, err
	}
	copy(types.DecodeSlice[int32](vec.data), codes)
	vec.length = len(codes)
	return vec, nil
}

func (v *Vector) Length() int {
	return v.length
}

func (v *Vector) SetLength(n int) {
	v.length = n
}

func (v *Vector) Capacity() int {
	return v.capacity
}

func (v *Vector) GetType() *types.Type {
	return &v.typ
}

func (v *Vector) SetType(typ types.Type) {
	v.typ = typ
}

func (v *Vector) GetNulls() *nulls.Nulls {
	return v.nsp
}

func (v *Vector) SetNulls(nsp *nulls.Nulls) {
	v.nsp = nsp
}

func (v *Vector) HasNull() bool {
	return v.IsConstNull() || nulls.Any(v.nsp)
}

func (v *Vector) IsConst() bool {
	return v.class == CONSTANT
}

func (v *Vector) IsConstNull() bool {
	return v.IsConst() && nulls.Contains(v.nsp, 0)
}

func (v *Vector) IsDist() bool {
	return v.class == DIST
}

func (v *Vector) IsTuple() bool {
	return v.typ.Oid == types.T_tuple
}

func (v *Vector) SetClass(class int) {
	v.class = class
}

func (v *Vector) GetSorted() bool {
	return v.sorted
}

func (v *Vector) SetSorted(b bool) {
	v.sorted = b
}

func (v *Vector) Children() []*Vector {
	return v.children
}

func (v *Vector) SetChildren(children []*Vector) {
	v.children = children
}

// Keys returns the dictionary key vector of a DIST vector.
func (v *Vector) Keys() *Vector {
	return v.keys
}

// Codes returns the dictionary code payload of a DIST vector.  Codes
// at null rows are meaningless.
func (v *Vector) Codes() []int32 {
	return types.DecodeSlice[int32](v.data)[:v.length]
}

// IsRowNull is const- and tuple-aware.
func (v *Vector) IsRowNull(i int) bool {
	if v.IsConst() {
		i = 0
	}
	return nulls.Contains(v.nsp, uint64(i))
}

// MustFixedCol decodes the payload as a typed slice.  Tuple vectors
// have no payload and panic here.
func MustFixedCol[T types.FixedSizeT](v *Vector) []T {
	if v.typ.Oid == types.T_tuple {
		panic(moerr.NewInternalErrorNoCtx("tuple vector has no payload"))
	}
	if v.IsConst() {
		return types.DecodeSlice[T](v.data)[:1]
	}
	return types.DecodeSlice[T](v.data)[:v.length]
}

// GetFixedAt reads row i with const awareness.
func GetFixedAt[T types.FixedSizeT](v *Vector, i int) T {
	if v.IsConst() {
		i = 0
	}
	return types.DecodeSlice[T](v.data)[i]
}

func (v *Vector) GetBytesAt(i int) []byte {
	if v.IsConst() {
		i = 0
	}
	if v.IsDist() {
		return v.keys.GetBytesAt(int(types.DecodeSlice[int32](v.data)[i]))
	}
	bs := types.DecodeSlice[types.Varlena](v.data)
	return bs[i].GetByteSlice(v.area)
}

func (v *Vector) GetStringAt(i int) string {
	return string(v.GetBytesAt(i))
}

// GetRawBytesAt returns the canonical byte image of row i, usable as a
// hash key.  For fixed types it is the little endian payload, for
// strings the string bytes.  Dictionary codes resolve to their key's
// image, so the same value hashes the same with or without encoding.
func (v *Vector) GetRawBytesAt(i int) []byte {
	if v.IsDist() {
		if v.IsConst() {
			i = 0
		}
		return v.keys.GetRawBytesAt(int(types.DecodeSlice[int32](v.data)[i]))
	}
	if v.typ.IsVarlen() {
		return v.GetBytesAt(i)
	}
	if v.IsConst() {
		i = 0
	}
	sz := v.typ.TypeSize()
	return v.data[i*sz : (i+1)*sz]
}

func extend(v *Vector, sz int, mp *mpool.MPool) error {
	if sz <= cap(v.data) {
		return nil
	}
	data, err := mp.Grow(v.data, sz)
	if err != nil {
		return err
	}
	v.data = data[:cap(data)]
	return nil
}

// PreExtend reserves room for rows more entries.
func (v *Vector) PreExtend(rows int, mp *mpool.MPool) error {
	if v.typ.Oid == types.T_tuple {
		for _, child := range v.children {
			if err := child.PreExtend(rows, mp); err != nil {
				return err
			}
		}
		return nil
	}
	sz := v.typ.TypeSize()
	return extend(v, (v.length+rows)*sz, mp)
}

func appendOneFixed[T any](v *Vector, val T, isNull bool, mp *mpool.MPool) error {
	sz := v.typ.TypeSize()
	if err := extend(v, (v.length+1)*sz, mp); err != nil {
		return err
	}
	length := v.length
	v.length++
	if isNull {
		nulls.Add(v.nsp, uint64(length))
	} else {
		col := types.DecodeSlice[T](v.data)
		col[length] = val
	}
	v.capacity = cap(v.data) / sz
	return nil
}

func appendOneBytes(v *Vector, val []byte, isNull bool, mp *mpool.MPool) error {
	var err error
	var va types.Varlena

	if isNull {
		return appendOneFixed(v, va, true, mp)
	}
	va, v.area, err = types.BuildVarlena(val, v.area, mp.Grow)
	if err != nil {
		return err
	}
	return appendOneFixed(v, va, false, mp)
}

// AppendFixed appends one fixed width value.  Constant vectors do not
// grow this way.
func AppendFixed[T types.FixedSizeTExceptStrType](v *Vector, val T, isNull bool, mp *mpool.MPool) error {
	if v.IsConst() {
		panic(moerr.NewInternalErrorNoCtx("append to const vector"))
	}
	if mp == nil {
		panic(moerr.NewInternalErrorNoCtx("vector append does not have a mpool"))
	}
	return appendOneFixed(v, val, isNull, mp)
}

func AppendBytes(v *Vector, val []byte, isNull bool, mp *mpool.MPool) error {
	if v.IsConst() {
		panic(moerr.NewInternalErrorNoCtx("append to const vector"))
	}
	if mp == nil {
		panic(moerr.NewInternalErrorNoCtx("vector append does not have a mpool"))
	}
	return appendOneBytes(v, val, isNull, mp)
}

func AppendFixedList[T types.FixedSizeTExceptStrType](v *Vector, vals []T, isNulls []bool, mp *mpool.MPool) error {
	for i, val := range vals {
		isNull := isNulls != nil && isNulls[i]
		if err := AppendFixed(v, val, isNull, mp); err != nil {
			return err
		}
	}
	return nil
}

func AppendBytesList(v *Vector, vals [][]byte, isNulls []bool, mp *mpool.MPool) error {
	for i, val := range vals {
		isNull := isNulls != nil && isNulls[i]
		if err := AppendBytes(v, val, isNull, mp); err != nil {
			return err
		}
	}
	return nil
}

func AppendStringList(v *Vector, vals []string, isNulls []bool, mp *mpool.MPool) error {
	for i, val := range vals {
		isNull := isNulls != nil && isNulls[i]
		if err := AppendBytes(v, []byte(val), isNull, mp); err != nil {
			return err
		}
	}
	return nil
}

// NewVecLike builds an empty vector with the same structure: type,
// class, tuple children recursively, dictionary keys duplicated.
func NewVecLike(v *Vector, mp *mpool.MPool) (*Vector, error) {
	w := NewVec(v.typ)
	w.class = v.class
	if v.typ.Oid == types.T_tuple {
		w.children = make([]*Vector, len(v.children))
		for i, child := range v.children {
			c, err := NewVecLike(child, mp)
			if err != nil {
				w.Free(mp)
				return nil, err
			}
			w.children[i] = c
		}
	}
	if v.keys != nil {
		keys, err := v.keys.Dup(mp)
		if err != nil {
			w.Free(mp)
			return nil, err
		}
		w.keys = keys
	}
	return w, nil
}

// elemSize is the payload cell width; a dictionary vector stores int32
// codes whatever its logical type is.
func (v *Vector) elemSize() int {
	if v.class == DIST {
		return 4
	}
	return v.typ.TypeSize()
}

// UnionOne appends row sel of w to v.
func (v *Vector) UnionOne(w *Vector, sel int64, mp *mpool.MPool) error {
	if !v.typ.Eq(w.typ) {
		return moerr.NewTypeMismatchNoCtx("%s and %s", v.typ.String(), w.typ.String())
	}
	if w.IsRowNull(int(sel)) {
		if v.typ.Oid == types.T_tuple {
			for i, child := range v.children {
				if err := child.UnionOne(w.children[i], sel, mp); err != nil {
					return err
				}
			}
			nulls.Add(v.nsp, uint64(v.length))
			v.length++
			return nil
		}
		if v.typ.IsVarlen() && v.class != DIST {
			return appendOneBytes(v, nil, true, mp)
		}
		return appendNullFixed(v, mp)
	}
	switch {
	case v.typ.Oid == types.T_tuple:
		for i, child := range v.children {
			if err := child.UnionOne(w.children[i], sel, mp); err != nil {
				return err
			}
		}
		v.length++
		return nil
	case v.typ.IsVarlen() && v.class != DIST:
		return appendOneBytes(v, w.GetBytesAt(int(sel)), false, mp)
	default:
		sz := v.elemSize()
		if err := extend(v, (v.length+1)*sz, mp); err != nil {
			return err
		}
		var src []byte
		if w.IsConst() {
			src = w.data[:sz]
		} else {
			src = w.data[int(sel)*sz : (int(sel)+1)*sz]
		}
		copy(v.data[v.length*sz:], src)
		v.length++
		return nil
	}
}

func appendNullFixed(v *Vector, mp *mpool.MPool) error {
	sz := v.elemSize()
	if err := extend(v, (v.length+1)*sz, mp); err != nil {
		return err
	}
	nulls.Add(v.nsp, uint64(v.length))
	v.length++
	return nil
}

// Union appends the rows of w selected by sels.
func (v *Vector) Union(w *Vector, sels []int64, mp *mpool.MPool) error {
	for _, sel := range sels {
		if err := v.UnionOne(w, sel, mp); err != nil {
			return err
		}
	}
	return nil
}

// Dup deep copies the vector, buffers owned by mp.
func (v *Vector) Dup(mp *mpool.MPool) (*Vector, error) {
	w := &Vector{
		class:  v.class,
		typ:    v.typ,
		nsp:    v.nsp.Clone(),
		length: v.length,
		sorted: v.sorted,
	}
	if len(v.data) > 0 {
		data, err := mp.Alloc(len(v.data))
		if err != nil {
			return nil, err
		}
		copy(data, v.data)
		w.data = data
	}
	if len(v.area) > 0 {
		area, err := mp.Alloc(len(v.area))
		if err != nil {
			w.Free(mp)
			return nil, err
		}
		copy(area, v.area)
		w.area = area
	}
	if len(v.children) > 0 {
		w.children = make([]*Vector, len(v.children))
		for i, child := range v.children {
			dup, err := child.Dup(mp)
			if err != nil {
				w.Free(mp)
				return nil, err
			}
			w.children[i] = dup
		}
	}
	if v.keys != nil {
		keys, err := v.keys.Dup(mp)
		if err != nil {
			w.Free(mp)
			return nil, err
		}
		w.keys = keys
	}
	return w, nil
}

// Borrow returns a non owning view of the vector.  Freeing the view
// releases nothing.
func (v *Vector) Borrow() *Vector {
	w := *v
	w.cantFreeData = true
	w.cantFreeArea = true
	return &w
}

func (v *Vector) Free(mp *mpool.MPool) {
	if v == nil {
		return
	}
	if !v.cantFreeData {
		mp.Free(v.data)
	}
	if !v.cantFreeArea {
		mp.Free(v.area)
	}
	v.data = nil
	v.area = nil
	if !v.cantFreeData {
		for _, child := range v.children {
			child.Free(mp)
		}
		if v.keys != nil {
			v.keys.Free(mp)
		}
	}
	v.children = nil
	v.keys = nil
	v.length = 0
	v.capacity = 0
	v.nsp = &nulls.Nulls{}
}

func (v *Vector) String() string {
	var buf bytes.Buffer

	buf.WriteString(v.typ.String())
	buf.WriteString(fmt.Sprintf("[len=%d]", v.length))
	if nulls.Any(v.nsp) {
		buf.WriteString("-")
		buf.WriteString(nulls.String(v.nsp))
	}
	return buf.String()
}

// Size of data, for memory accounting only.
func (v *Vector) Size() int {
	sz := len(v.data) + len(v.area)
	for _, child := range v.children {
		sz += child.Size()
	}
	if v.keys != nil {
		sz += v.keys.Size()
	}
	return sz
}
