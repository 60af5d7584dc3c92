package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeCheck_ValidModules(t *testing.T) {
	testDatas := []string{
		`module T; var i: integer; begin i := 1 + 2 * 3 end T.`,
		`module T; var b: boolean; begin b := (1 < 2) && (3 = 3) end T.`,
		`module T; var b: boolean; begin b := !b || true end T.`,
		`module T; var l: longint; begin l := 1L + 2L * 3L end T.`,
		`module T; var c: char; begin c := 'x'; WriteChar(c) end T.`,
		`
		module T;
		var a: integer[3]; i: integer;
		begin
			a[0] := 10; a[1] := 20; a[2] := 30;
			i := a[0] + a[1] + a[2];
			WriteInt(i)
		end T.
		`,
		`
		module T;
		function f(x: integer): integer;
		begin return x * x end f;
		begin WriteInt(f(7)) end T.
		`,
		`
		module T;
		procedure fill(a: integer[]; n, v: integer);
		var i: integer;
		begin
			i := 0;
			while (i < n) do a[i] := v; i := i + 1 end
		end fill;
		var data: integer[8];
		begin fill(data, 8, 1) end T.
		`,
		`
		module T;
		var m: integer[3][5];
		begin
			m[2][4] := 1;
			WriteInt(m[2][4])
		end T.
		`,
		`module T; begin WriteStr("hi"); WriteLn() end T.`,
		`module T; var i: integer; begin if (i # 0) then i := 0 end end T.`,
	}
	for _, testData := range testDatas {
		module := parseModule(t, testData)
		assert.Nil(t, TypeCheck(module), "data: %s", testData)
	}
}

func TestTypeCheck_Errors(t *testing.T) {
	testDatas := []struct {
		data    string
		errPart string
	}{
		{`module T; var i: integer; var b: boolean; begin i := b end T.`, "assignment types do not match"},
		{`module T; var i: integer; begin i := 1L end T.`, "assignment types do not match"},
		{`module T; var a: integer[3]; var b: integer[3]; begin a := b end T.`, "not a scalar"},
		{`module T; var i: integer; begin i := 1 + true end T.`, "must be integer"},
		{`module T; var b: boolean; begin b := b && 1 end T.`, "must be boolean"},
		{`module T; var b: boolean; begin b := !1 end T.`, "must be boolean"},
		{`module T; var i: integer; begin i := -true end T.`, "must be integer"},
		{`module T; var i: integer; begin i := 1 + 2L end T.`, "do not match"},
		{`module T; var i: integer; begin if (i) then i := 0 end end T.`, "condition is not a boolean"},
		{`module T; var i: integer; begin while (i + 1) do i := 0 end end T.`, "condition is not a boolean"},
		{`module T; var b: boolean; begin b := 'a' < 'b' end T.`, "must be integer"},
		{`module T; var b: boolean; begin b := 1 = 1L end T.`, "do not match"},
		{`module T; begin WriteInt(true) end T.`, "does not match the parameter type"},
		{`module T; begin WriteInt(1, 2) end T.`, "expects 1 argument(s), got 2"},
		{`module T; begin WriteLn(1) end T.`, "expects 0 argument(s), got 1"},
		{`module T; var a: integer[3]; begin a[true] := 0 end T.`, "array index must be integer"},
		{`module T; var a: integer[3]; var i: integer; begin i := a[0][1] end T.`, "invalid array access"},
		{`module T; var i: integer; begin i := i[0] end T.`, "invalid array access"},
		{`module T; procedure p(); begin return 1 end p; begin end T.`, "superfluous expression"},
		{`module T; function f(): integer; begin return end f; begin end T.`, "expression expected after return"},
		{`module T; function f(): integer; begin return true end f; begin end T.`, "return type mismatch"},
		{`module T; begin return 1 end T.`, "superfluous expression"},
	}
	for _, testData := range testDatas {
		module := parseModule(t, testData.data)
		err := TypeCheck(module)
		require.NotNil(t, err, "data: %s", testData.data)
		assert.Contains(t, err.Error(), testData.errPart, "data: %s", testData.data)
	}
}

// The checker is pure: running it twice yields the same result.
func TestTypeCheck_Idempotent(t *testing.T) {
	module := parseModule(t, `
	module T;
	var i: integer; b: boolean;
	begin
		i := 2 * 21;
		b := i > 0
	end T.
	`)
	assert.Nil(t, TypeCheck(module))
	assert.Nil(t, TypeCheck(module))

	bad := parseModule(t, `module T; var i: integer; var b: boolean; begin i := b end T.`)
	first := TypeCheck(bad)
	second := TypeCheck(bad)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Error(), second.Error())
}

func TestTypeCheck_ErrorPosition(t *testing.T) {
	// the diagnostic points at the offending token (here: b)
	module := parseModule(t, `module T; var i: integer; var b: boolean; begin i := b end T.`)
	err := TypeCheck(module)
	require.NotNil(t, err)
	semanticErr, ok := err.(*SemanticError)
	require.True(t, ok)
	assert.Equal(t, "b", semanticErr.Token.Content())
}
