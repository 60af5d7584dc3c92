package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeManager_Interning(t *testing.T) {
	tm := NewTypeManager()
	assert.Same(t, tm.GetInteger(), tm.GetInteger())
	assert.Same(t, tm.GetPointer(tm.GetInteger()), tm.GetPointer(tm.GetInteger()))
	assert.Same(t, tm.GetArray(3, tm.GetInteger()), tm.GetArray(3, tm.GetInteger()))
	assert.NotSame(t, tm.GetArray(3, tm.GetInteger()), tm.GetArray(4, tm.GetInteger()))
	assert.NotSame(t, tm.GetInteger(), tm.GetLongint())

	nested := tm.GetArray(3, tm.GetArray(5, tm.GetInteger()))
	assert.Same(t, nested, tm.GetArray(3, tm.GetArray(5, tm.GetInteger())))
}

func TestType_Queries(t *testing.T) {
	tm := NewTypeManager()
	assert.True(t, tm.GetInteger().IsScalar())
	assert.True(t, tm.GetPointer(tm.GetChar()).IsScalar())
	assert.False(t, tm.GetArray(3, tm.GetInteger()).IsScalar())
	assert.False(t, tm.GetNull().IsScalar())
	assert.True(t, tm.GetInteger().IsIntegerType())
	assert.True(t, tm.GetLongint().IsIntegerType())
	assert.False(t, tm.GetBool().IsIntegerType())
}

func TestType_Sizes(t *testing.T) {
	tm := NewTypeManager()
	testDatas := []struct {
		typ      *Type
		dataSize int
		size     int
		align    int
	}{
		{tm.GetBool(), 1, 1, 1},
		{tm.GetChar(), 1, 1, 1},
		{tm.GetInteger(), 4, 4, 4},
		{tm.GetLongint(), 8, 8, 8},
		{tm.GetPointer(tm.GetInteger()), 8, 8, 8},
		// 3 ints + descriptor (ndim + one length)
		{tm.GetArray(3, tm.GetInteger()), 12, 20, 4},
		// 3*5 ints + descriptor (ndim + two lengths, padded to 4)
		{tm.GetArray(3, tm.GetArray(5, tm.GetInteger())), 60, 72, 4},
		// char[6], e.g. "hello" with NUL
		{tm.GetArray(6, tm.GetChar()), 6, 14, 4},
	}
	for _, testData := range testDatas {
		assert.Equal(t, testData.dataSize, testData.typ.DataSize(), "type %s", testData.typ)
		assert.Equal(t, testData.size, testData.typ.Size(), "type %s", testData.typ)
		assert.Equal(t, testData.align, testData.typ.Align(), "type %s", testData.typ)
	}
}

func TestType_DimQueries(t *testing.T) {
	tm := NewTypeManager()
	arr := tm.GetArray(3, tm.GetArray(5, tm.GetInteger()))
	assert.Equal(t, 2, arr.NDim())
	assert.Equal(t, int64(3), arr.Dim(1))
	assert.Equal(t, int64(5), arr.Dim(2))
	assert.Same(t, tm.GetInteger(), arr.BaseType())
	assert.Equal(t, "integer[3][5]", arr.String())
}

func TestType_Match(t *testing.T) {
	tm := NewTypeManager()
	intArr3 := tm.GetArray(3, tm.GetInteger())
	intArr4 := tm.GetArray(4, tm.GetInteger())
	intArrOpen := tm.GetArray(OpenDim, tm.GetInteger())

	assert.True(t, tm.GetInteger().Match(tm.GetInteger()))
	assert.False(t, tm.GetInteger().Match(tm.GetLongint()))
	assert.False(t, tm.GetBool().Match(tm.GetChar()))

	assert.True(t, intArr3.Match(intArr3))
	assert.False(t, intArr3.Match(intArr4))
	assert.True(t, intArrOpen.Match(intArr3))
	assert.True(t, intArr4.Match(intArrOpen))

	// pointers match structurally, open dims included
	assert.True(t, tm.GetPointer(intArrOpen).Match(tm.GetPointer(intArr3)))
	assert.False(t, tm.GetPointer(intArr3).Match(tm.GetPointer(intArr4)))

	// the generic pointer matches any pointer
	voidPtr := tm.GetPointer(tm.GetNull())
	assert.True(t, voidPtr.Match(tm.GetPointer(intArr3)))
	assert.False(t, voidPtr.Match(tm.GetInteger()))

	// open dims match at their dimension only
	twoD := tm.GetArray(3, tm.GetArray(5, tm.GetInteger()))
	twoDOpen := tm.GetArray(OpenDim, tm.GetArray(5, tm.GetInteger()))
	twoDWrong := tm.GetArray(OpenDim, tm.GetArray(6, tm.GetInteger()))
	assert.True(t, twoDOpen.Match(twoD))
	assert.False(t, twoDWrong.Match(twoD))
}
