package compiler

import (
	"fmt"
	"strings"
)

// OpenDim marks an array dimension of unspecified length. Open dimensions are
// only legal in parameter types and match any length during type matching.
const OpenDim int64 = -1

type TypeKind int

const (
	NullTypeKind TypeKind = iota
	BoolTypeKind
	CharTypeKind
	IntegerTypeKind
	LongintTypeKind
	PointerTypeKind
	ArrayTypeKind
)

// Type is an interned type instance. Two types are identical iff their
// pointers are equal; TypeManager guarantees one instance per distinct type.
type Type struct {
	kind  TypeKind
	base  *Type // pointer base type or array element type
	nElem int64 // array dimension, OpenDim if unspecified
}

func (t *Type) Kind() TypeKind { return t.kind }
func (t *Type) Base() *Type    { return t.base }
func (t *Type) NElem() int64   { return t.nElem }

func (t *Type) IsNull() bool    { return t.kind == NullTypeKind }
func (t *Type) IsBoolean() bool { return t.kind == BoolTypeKind }
func (t *Type) IsChar() bool    { return t.kind == CharTypeKind }
func (t *Type) IsInteger() bool { return t.kind == IntegerTypeKind }
func (t *Type) IsLongint() bool { return t.kind == LongintTypeKind }
func (t *Type) IsPointer() bool { return t.kind == PointerTypeKind }
func (t *Type) IsArray() bool   { return t.kind == ArrayTypeKind }

// IsIntegerType reports whether t is one of the two arithmetic types.
func (t *Type) IsIntegerType() bool {
	return t.kind == IntegerTypeKind || t.kind == LongintTypeKind
}

// IsScalar reports whether t fits into a register: booleans, characters,
// integers and pointers. Arrays and NULL are not scalar.
func (t *Type) IsScalar() bool {
	switch t.kind {
	case BoolTypeKind, CharTypeKind, IntegerTypeKind, LongintTypeKind, PointerTypeKind:
		return true
	}
	return false
}

func (t *Type) Align() int {
	switch t.kind {
	case BoolTypeKind, CharTypeKind:
		return 1
	case IntegerTypeKind:
		return 4
	case LongintTypeKind, PointerTypeKind:
		return 8
	case ArrayTypeKind:
		a := t.base.Align()
		if a < 4 {
			a = 4
		}
		return a
	}
	return 1
}

// DataSize returns the payload size in bytes. For arrays this excludes the
// descriptor; open dimensions have no meaningful payload size.
func (t *Type) DataSize() int {
	switch t.kind {
	case BoolTypeKind, CharTypeKind:
		return 1
	case IntegerTypeKind:
		return 4
	case LongintTypeKind, PointerTypeKind:
		return 8
	case ArrayTypeKind:
		if t.nElem == OpenDim {
			return 0
		}
		return int(t.nElem) * t.base.DataSize()
	}
	return 0
}

// Size returns the total in-memory size. For arrays this is the payload plus
// the leading descriptor (number of dimensions and one 32-bit length per
// dimension, padded to the element alignment).
func (t *Type) Size() int {
	if t.kind != ArrayTypeKind {
		return t.DataSize()
	}
	return t.DataOffset() + t.DataSize()
}

// DataOffset returns the descriptor size of an array, i.e. the offset from
// the start of the array to its payload. Must agree with the runtime's DOFS.
func (t *Type) DataOffset() int {
	if t.kind != ArrayTypeKind {
		return 0
	}
	ofs := 4 * (1 + t.NDim())
	align := t.Align()
	if rem := ofs % align; rem != 0 {
		ofs += align - rem
	}
	return ofs
}

// NDim returns the number of array dimensions, 0 for non-arrays.
func (t *Type) NDim() int {
	n := 0
	for it := t; it.kind == ArrayTypeKind; it = it.base {
		n++
	}
	return n
}

// Dim returns the length of the d-th dimension (1-based).
func (t *Type) Dim(d int) int64 {
	it := t
	for i := 1; i < d; i++ {
		it = it.base
	}
	return it.nElem
}

// BaseType returns the scalar element type of an array, drilling through all
// dimensions. For non-arrays it returns the type itself.
func (t *Type) BaseType() *Type {
	it := t
	for it.kind == ArrayTypeKind {
		it = it.base
	}
	return it
}

// Match implements structural type matching. An open array dimension matches
// any length at that dimension; everything else must agree exactly.
func (t *Type) Match(other *Type) bool {
	if t == nil || other == nil {
		return false
	}
	if t.kind != other.kind {
		return false
	}
	switch t.kind {
	case PointerTypeKind:
		// a pointer to NULL is the generic pointer; it matches any pointer
		if t.base.IsNull() || other.base.IsNull() {
			return true
		}
		return t.base.Match(other.base)
	case ArrayTypeKind:
		if t.nElem != other.nElem && t.nElem != OpenDim && other.nElem != OpenDim {
			return false
		}
		return t.base.Match(other.base)
	}
	return true
}

func (t *Type) String() string {
	switch t.kind {
	case NullTypeKind:
		return "NULL"
	case BoolTypeKind:
		return "boolean"
	case CharTypeKind:
		return "char"
	case IntegerTypeKind:
		return "integer"
	case LongintTypeKind:
		return "longint"
	case PointerTypeKind:
		return "ptr to " + t.base.String()
	case ArrayTypeKind:
		var dims strings.Builder
		it := t
		for it.kind == ArrayTypeKind {
			if it.nElem == OpenDim {
				dims.WriteString("[]")
			} else {
				fmt.Fprintf(&dims, "[%d]", it.nElem)
			}
			it = it.base
		}
		return it.String() + dims.String()
	}
	return "<invalid>"
}

// TypeManager hands out the canonical instance for every type. One manager
// exists per Compilation; nothing is process-global so tests can run in
// parallel.
type TypeManager struct {
	nullType     *Type
	boolType     *Type
	charType     *Type
	integerType  *Type
	longintType  *Type
	pointerTypes map[*Type]*Type
	arrayTypes   []*Type
}

func NewTypeManager() *TypeManager {
	return &TypeManager{
		nullType:     &Type{kind: NullTypeKind},
		boolType:     &Type{kind: BoolTypeKind},
		charType:     &Type{kind: CharTypeKind},
		integerType:  &Type{kind: IntegerTypeKind},
		longintType:  &Type{kind: LongintTypeKind},
		pointerTypes: map[*Type]*Type{},
	}
}

func (tm *TypeManager) GetNull() *Type    { return tm.nullType }
func (tm *TypeManager) GetBool() *Type    { return tm.boolType }
func (tm *TypeManager) GetChar() *Type    { return tm.charType }
func (tm *TypeManager) GetInteger() *Type { return tm.integerType }
func (tm *TypeManager) GetLongint() *Type { return tm.longintType }

func (tm *TypeManager) GetPointer(base *Type) *Type {
	if p, ok := tm.pointerTypes[base]; ok {
		return p
	}
	p := &Type{kind: PointerTypeKind, base: base}
	tm.pointerTypes[base] = p
	return p
}

func (tm *TypeManager) GetArray(nElem int64, inner *Type) *Type {
	for _, a := range tm.arrayTypes {
		if a.nElem == nElem && a.base == inner {
			return a
		}
	}
	a := &Type{kind: ArrayTypeKind, base: inner, nElem: nElem}
	tm.arrayTypes = append(tm.arrayTypes, a)
	return a
}
