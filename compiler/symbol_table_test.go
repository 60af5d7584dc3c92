package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolTable_AddSymbol(t *testing.T) {
	tm := NewTypeManager()
	table := NewSymbolTable(nil)

	assert.Nil(t, table.AddSymbol(NewGlobalSymbol("a", tm.GetInteger())))
	assert.Nil(t, table.AddSymbol(NewGlobalSymbol("b", tm.GetBool())))
	assert.NotNil(t, table.AddSymbol(NewGlobalSymbol("a", tm.GetChar())))
	assert.Equal(t, 2, len(table.Symbols()))
}

func TestSymbolTable_LookupScopes(t *testing.T) {
	tm := NewTypeManager()
	root := NewSymbolTable(nil)
	middle := NewSymbolTable(root)
	inner := NewSymbolTable(middle)

	rootSym := NewGlobalSymbol("x", tm.GetInteger())
	middleSym := NewLocalSymbol("x", tm.GetBool())
	root.AddSymbol(rootSym)
	middle.AddSymbol(middleSym)
	root.AddSymbol(NewGlobalSymbol("g", tm.GetChar()))

	// local-only sees only the current table
	assert.Nil(t, inner.FindSymbol("x", LocalOnly))
	assert.Equal(t, middleSym, middle.FindSymbol("x", LocalOnly))

	// global-only walks to the root table
	assert.Equal(t, rootSym, inner.FindSymbol("x", GlobalOnly))
	assert.Equal(t, rootSym, middle.FindSymbol("x", GlobalOnly))

	// any searches innermost to outermost
	assert.Equal(t, middleSym, inner.FindSymbol("x", AnyScope))
	assert.Equal(t, middleSym, middle.FindSymbol("x", AnyScope))
	assert.Equal(t, rootSym, root.FindSymbol("x", AnyScope))
	assert.NotNil(t, inner.FindSymbol("g", AnyScope))
	assert.Nil(t, inner.FindSymbol("missing", AnyScope))
}

func TestSymbol_ProcedureParams(t *testing.T) {
	tm := NewTypeManager()
	proc := NewProcedureSymbol("f", tm.GetInteger(), false)
	proc.AddParam(NewParamSymbol(0, "x", tm.GetInteger()))
	proc.AddParam(NewParamSymbol(1, "y", tm.GetLongint()))

	assert.Equal(t, 2, proc.NParams())
	assert.Equal(t, "x", proc.Param(0).Name())
	assert.Equal(t, 1, proc.Param(1).Index())
	assert.False(t, proc.IsExternal())
	assert.True(t, NewProcedureSymbol("g", tm.GetNull(), true).IsExternal())
}

func TestSymbol_Location(t *testing.T) {
	tm := NewTypeManager()
	symbol := NewLocalSymbol("i", tm.GetInteger())
	assert.Nil(t, symbol.Location())
	symbol.SetLocation("rbp", -52)
	assert.Equal(t, "rbp", symbol.Location().Base)
	assert.Equal(t, int64(-52), symbol.Location().Offset)
}
