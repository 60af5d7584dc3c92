package compiler

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileSource(t *testing.T, src string) string {
	asm, err := Compile(src)
	require.Nil(t, err)
	require.NotEmpty(t, asm)
	return asm
}

func TestBackend_Sections(t *testing.T) {
	asm := compileSource(t, `module T; var i: integer; begin i := 1 end T.`)

	assert.Contains(t, asm, ".text")
	assert.Contains(t, asm, ".global main")
	assert.Contains(t, asm, "main:")
	assert.Contains(t, asm, ".data")
	assert.Contains(t, asm, ".end")

	// the runtime interface is declared external
	for _, name := range []string{"ReadInt", "WriteInt", "WriteLong", "WriteStr",
		"WriteChar", "WriteLn", "DIM", "DOFS"} {
		assert.Contains(t, asm, ".extern "+name)
	}
}

func TestBackend_PrologueAndEpilogue(t *testing.T) {
	asm := compileSource(t, `module T; var i: integer; begin i := 1 end T.`)

	for _, line := range []string{
		"pushq   %rbp",
		"movq    %rsp, %rbp",
		"pushq   %rbx",
		"pushq   %r12",
		"pushq   %r15",
		"popq    %r15",
		"popq    %rbx",
		"popq    %rbp",
		"ret",
	} {
		assert.Contains(t, asm, line)
	}
	// the module body exits with code 0
	assert.Contains(t, asm, "l_T_exit:")
	assert.Contains(t, asm, "xorl    %eax, %eax")
}

func TestBackend_CallArguments(t *testing.T) {
	asm := compileSource(t, `module T; begin WriteInt(42); WriteLn() end T.`)
	assert.Contains(t, asm, "$42, %rdi")
	assert.Contains(t, asm, "call    WriteInt")
	assert.Contains(t, asm, "call    WriteLn")
}

func TestBackend_EightArguments(t *testing.T) {
	asm := compileSource(t, `
	module T;
	function sum8(a, b, c, d, e, f, g, h: integer): integer;
	begin return a + b + c + d + e + f + g + h end sum8;
	var s: integer;
	begin
		s := sum8(1, 2, 3, 4, 5, 6, 7, 8);
		WriteInt(s)
	end T.
	`)
	// first six in registers, the rest in the argument build area
	for _, reg := range []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"} {
		assert.Contains(t, asm, reg)
	}
	assert.Contains(t, asm, "%rax, 0(%rsp)")
	assert.Contains(t, asm, "%rax, 8(%rsp)")
	// the callee reads stack parameters from above the frame
	assert.Contains(t, asm, "16(%rbp)")
	assert.Contains(t, asm, "24(%rbp)")
	assert.Contains(t, asm, "call    sum8")
}

func TestBackend_ParameterSpill(t *testing.T) {
	asm := compileSource(t, `
	module T;
	function f(x, y: integer): integer;
	begin return x + y end f;
	begin WriteInt(f(1, 2)) end T.
	`)
	assert.Contains(t, asm, "%rdi, -48(%rbp)")
	assert.Contains(t, asm, "%rsi, -56(%rbp)")
}

func TestBackend_Division(t *testing.T) {
	asm := compileSource(t, `module T; var i: integer; begin i := 7 / 2 end T.`)
	assert.Contains(t, asm, "cqto")
	assert.Contains(t, asm, "idivq   %rbx")
}

func TestBackend_ConditionalBranches(t *testing.T) {
	asm := compileSource(t, `
	module T; var i: integer;
	begin
		if (i < 1) then i := 1 end;
		if (i >= 2) then i := 2 end;
		if (i # 3) then i := 3 end
	end T.
	`)
	assert.Contains(t, asm, "cmpq    %rbx, %rax")
	assert.Contains(t, asm, "jl")
	assert.Contains(t, asm, "jge")
	assert.Contains(t, asm, "jne")
	assert.Contains(t, asm, "jmp")
}

func TestBackend_SizedMoves(t *testing.T) {
	asm := compileSource(t, `
	module T;
	var c: char; b: boolean; i: integer; l: longint;
	begin
		c := 'x';
		b := true;
		i := 1;
		l := 2L
	end T.
	`)
	// stores are sized by the destination
	assert.Contains(t, asm, "movb")
	assert.Contains(t, asm, "movl")
	assert.Contains(t, asm, "movq")
	// integer loads sign-extend, byte loads zero-extend
	asm2 := compileSource(t, `
	module T;
	var c: char; i: integer;
	begin
		i := i + 1;
		WriteChar(c)
	end T.
	`)
	assert.Contains(t, asm2, "movslq")
	assert.Contains(t, asm2, "movzbq")
}

func TestBackend_GlobalData(t *testing.T) {
	asm := compileSource(t, `
	module T;
	var a: integer[3]; i: integer;
	begin
		a[0] := 1; i := a[0]
	end T.
	`)
	// array descriptor: one dimension of length 3, then 12 payload bytes
	assert.Contains(t, asm, "a:")
	assert.Contains(t, asm, ".long    1")
	assert.Contains(t, asm, ".long    3")
	assert.Contains(t, asm, ".skip   12")
	assert.Contains(t, asm, "i:")
}

func TestBackend_StringData(t *testing.T) {
	asm := compileSource(t, `module T; begin WriteStr("hi\n") end T.`)
	assert.Contains(t, asm, "_str_1:")
	assert.Contains(t, asm, ".asciz \"hi\\n\"")
	// char[4] descriptor
	assert.Contains(t, asm, ".long    4")
}

func TestBackend_LocalArrayDescriptor(t *testing.T) {
	asm := compileSource(t, `
	module T;
	procedure p();
	var a: integer[3][5];
	begin a[0][0] := 1 end p;
	begin p() end T.
	`)
	assert.Contains(t, asm, "$2, ")   // ndim
	assert.Contains(t, asm, "$3, ")   // first dimension
	assert.Contains(t, asm, "$5, ")   // second dimension
	assert.Contains(t, asm, "call    DIM")
	assert.Contains(t, asm, "call    DOFS")
}

func TestBackend_FrameAlignment(t *testing.T) {
	// every subq amount keeps call sites 16-byte aligned: the return
	// address and the pushes sum to 56, so the frame size must be ≡ 8 (mod 16)
	asm := compileSource(t, `
	module T;
	function f(x: integer): integer;
	var i, j: integer;
	begin return x + i + j end f;
	begin WriteInt(f(1)) end T.
	`)
	for _, line := range strings.Split(asm, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "subq") || !strings.Contains(trimmed, "%rsp") {
			continue
		}
		dollar := strings.Index(trimmed, "$")
		comma := strings.Index(trimmed, ",")
		require.True(t, dollar >= 0 && comma > dollar, "line: %s", trimmed)
		size, err := strconv.ParseInt(trimmed[dollar+1:comma], 10, 64)
		require.Nil(t, err, "line: %s", trimmed)
		assert.Equal(t, int64(8), size%16, "line: %s", trimmed)
	}
}

func TestBackend_ProcedureLabels(t *testing.T) {
	asm := compileSource(t, `
	module T;
	procedure p(); begin return end p;
	begin p() end T.
	`)
	assert.Contains(t, asm, "p:")
	assert.Contains(t, asm, "l_p_exit:")
	assert.Contains(t, asm, "call    p")
}
