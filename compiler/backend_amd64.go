package compiler

import (
	"fmt"
	"io"
)

// AMD64 backend. One scope becomes one assembly subroutine following the
// System V calling convention: arguments in rdi rsi rdx rcx r8 r9, return
// value in rax, rbx/rbp/r12-r15 callee saved, stack 16-byte aligned at every
// call site. Values are loaded into rax/rbx, operated on, and stored back;
// r10 serves as the scratch register for dereferencing reference operands.

var amd64ArgRegisters = [6]string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

// index 0..3 selects the 8/16/32/64-bit name.
var amd64RegisterNames = map[string][4]string{
	"rax": {"al", "ax", "eax", "rax"},
	"rbx": {"bl", "bx", "ebx", "rbx"},
	"rcx": {"cl", "cx", "ecx", "rcx"},
	"rdx": {"dl", "dx", "edx", "rdx"},
	"rsi": {"sil", "si", "esi", "rsi"},
	"rdi": {"dil", "di", "edi", "rdi"},
	"r8":  {"r8b", "r8w", "r8d", "r8"},
	"r9":  {"r9b", "r9w", "r9d", "r9"},
	"r10": {"r10b", "r10w", "r10d", "r10"},
	"r11": {"r11b", "r11w", "r11d", "r11"},
}

var amd64ConditionJumps = map[Operation]string{
	EqualOp:       "je",
	NotEqualOp:    "jne",
	LessThanOp:    "jl",
	LessEqualOp:   "jle",
	BiggerThanOp:  "jg",
	BiggerEqualOp: "jge",
}

// stackFrame describes the procedure activation frame, offsets relative to
// the base pointer. size is the subq amount of the prologue.
type stackFrame struct {
	returnAddress   int64
	savedRegisters  int64
	padding         int64
	savedParameters int64
	localVariables  int64
	argumentBuild   int64
	size            int64
}

type BackendAMD64 struct {
	out      io.Writer
	module   *Scope
	curScope *Scope
	ind      string
	err      error
}

func NewBackendAMD64(out io.Writer) *BackendAMD64 {
	return &BackendAMD64{out: out, ind: "    "}
}

func (be *BackendAMD64) Emit(module *Scope) error {
	be.module = module
	be.emitHeader()
	be.emitCode()
	be.emitData()
	be.emitFooter()
	return be.err
}

// fail records the first code generation error; these indicate internal bugs
// (unsupported operand sizes, missing locations), not user errors.
func (be *BackendAMD64) fail(format string, args ...interface{}) {
	if be.err == nil {
		be.err = fmt.Errorf("code generation error: %s", fmt.Sprintf(format, args...))
	}
}

func (be *BackendAMD64) emitRaw(line string) {
	fmt.Fprintln(be.out, line)
}

func (be *BackendAMD64) emitInstr(mnemonic, args, comment string) {
	switch {
	case args == "" && comment == "":
		fmt.Fprintf(be.out, "%s%s\n", be.ind, mnemonic)
	case comment == "":
		fmt.Fprintf(be.out, "%s%-7s %s\n", be.ind, mnemonic, args)
	default:
		fmt.Fprintf(be.out, "%s%-7s %-23s # %s\n", be.ind, mnemonic, args, comment)
	}
}

func (be *BackendAMD64) emitHeader() {
	be.emitRaw("##################################################")
	be.emitRaw("# " + be.module.Name())
	be.emitRaw("#")
	be.emitRaw("")
}

func (be *BackendAMD64) emitFooter() {
	be.emitRaw(be.ind + ".end")
	be.emitRaw("##################################################")
}

func (be *BackendAMD64) emitCode() {
	be.emitRaw(be.ind + "#-----------------------------------------")
	be.emitRaw(be.ind + "# text section")
	be.emitRaw(be.ind + "#")
	be.emitRaw(be.ind + ".text")
	be.emitRaw(be.ind + ".align 8")
	be.emitRaw("")
	be.emitRaw(be.ind + "# entry point")
	be.emitRaw(be.ind + ".global main")
	be.emitRaw("")
	be.emitRaw(be.ind + "# external subroutines")
	for _, symbol := range be.module.SymbolTable().Symbols() {
		if symbol.Kind() == ProcedureSymbolKind && symbol.IsExternal() {
			be.emitRaw(be.ind + ".extern " + symbol.Name())
		}
	}
	be.emitRaw("")

	for _, child := range be.module.Children() {
		be.emitScope(child)
	}
	be.emitScope(be.module)

	be.emitRaw(be.ind + "# end of text section")
	be.emitRaw(be.ind + "#-----------------------------------------")
	be.emitRaw("")
}

func (be *BackendAMD64) emitScope(scope *Scope) {
	be.curScope = scope

	label := scope.Name()
	if scope.IsModule() {
		label = "main"
	}
	be.emitRaw(be.ind + "# scope " + scope.Name())
	be.emitRaw(label + ":")

	paf := be.computeStackOffsets(scope)

	be.emitRaw(be.ind + "# stack organization:")
	be.emitRaw(fmt.Sprintf("%s#     return address  : %4d", be.ind, paf.returnAddress))
	be.emitRaw(fmt.Sprintf("%s#     saved registers : %4d", be.ind, paf.savedRegisters))
	be.emitRaw(fmt.Sprintf("%s#     padding         : %4d", be.ind, paf.padding))
	be.emitRaw(fmt.Sprintf("%s#     saved parameters: %4d", be.ind, paf.savedParameters))
	be.emitRaw(fmt.Sprintf("%s#     local variables : %4d", be.ind, paf.localVariables))
	be.emitRaw(fmt.Sprintf("%s#     argument build  : %4d", be.ind, paf.argumentBuild))
	be.emitRaw(fmt.Sprintf("%s#     frame size      : %4d", be.ind, paf.size))
	be.emitRaw("")

	be.emitRaw(be.ind + "# prologue")
	be.emitInstr("pushq", "%rbp", "")
	be.emitInstr("movq", "%rsp, %rbp", "")
	be.emitInstr("pushq", "%rbx", "")
	be.emitInstr("pushq", "%r12", "")
	be.emitInstr("pushq", "%r13", "")
	be.emitInstr("pushq", "%r14", "")
	be.emitInstr("pushq", "%r15", "")
	if paf.size > 0 {
		be.emitInstr("subq", fmt.Sprintf("$%d, %%rsp", paf.size), "make room for the frame")
	}

	be.spillParameters(scope)
	be.emitLocalData(scope)
	be.emitRaw("")

	for _, instr := range scope.CodeBlock().Instrs() {
		be.emitInstruction(instr)
	}

	be.emitRaw("")
	be.emitRaw(be.labelName(&LabelOperand{Name: "exit"}) + ":")
	be.emitRaw(be.ind + "# epilogue")
	if scope.IsModule() {
		be.emitInstr("xorl", "%eax, %eax", "exit code 0")
	}
	if paf.size > 0 {
		be.emitInstr("addq", fmt.Sprintf("$%d, %%rsp", paf.size), "")
	}
	be.emitInstr("popq", "%r15", "")
	be.emitInstr("popq", "%r14", "")
	be.emitInstr("popq", "%r13", "")
	be.emitInstr("popq", "%r12", "")
	be.emitInstr("popq", "%rbx", "")
	be.emitInstr("popq", "%rbp", "")
	be.emitInstr("ret", "", "")
	be.emitRaw("")
}

// computeStackOffsets lays out the activation frame and assigns a Location to
// every parameter, local and temporary of the scope. Below the five pushed
// callee-saved registers come the spilled register parameters, then the
// locals in declaration order (aligned per type), then the argument-build
// area at the bottom of the frame. The subq size is padded so every call
// site is 16-byte aligned.
func (be *BackendAMD64) computeStackOffsets(scope *Scope) stackFrame {
	paf := stackFrame{returnAddress: 8, savedRegisters: 48}
	ofs := int64(-40) // below rbx r12 r13 r14 r15

	if procSym := scope.ProcedureSymbol(); procSym != nil {
		for i := 0; i < procSym.NParams(); i++ {
			param := procSym.Param(i)
			if i < len(amd64ArgRegisters) {
				ofs -= 8
				param.SetLocation("rbp", ofs)
				paf.savedParameters += 8
			} else {
				// stack arguments live in the caller's frame
				param.SetLocation("rbp", 16+8*int64(i-len(amd64ArgRegisters)))
			}
		}
	}

	for _, symbol := range scope.SymbolTable().Symbols() {
		if symbol.Kind() != LocalSymbolKind {
			continue
		}
		t := symbol.DataType()
		size, align := int64(t.Size()), int64(t.Align())
		ofs -= size
		if rem := (-ofs) % align; rem != 0 {
			ofs -= align - rem
		}
		symbol.SetLocation("rbp", ofs)
	}
	paf.localVariables = -ofs - 40 - paf.savedParameters

	for _, instr := range scope.CodeBlock().Instrs() {
		if instr.Op != ParamOp {
			continue
		}
		index := instr.Dst.(*ConstOperand).Value
		if index >= int64(len(amd64ArgRegisters)) {
			build := 8 * (index - int64(len(amd64ArgRegisters)) + 1)
			if build > paf.argumentBuild {
				paf.argumentBuild = build
			}
		}
	}

	size := paf.savedParameters + paf.localVariables + paf.argumentBuild
	// after pushing rbp and five registers the stack is 8 short of a
	// 16-byte boundary, so the frame must restore that slack
	if rem := size % 16; rem != 8 {
		paf.padding = (8 - rem + 16) % 16
	}
	paf.size = size + paf.padding
	return paf
}

// spillParameters saves the first six register arguments into their frame
// slots so every value access goes through memory.
func (be *BackendAMD64) spillParameters(scope *Scope) {
	procSym := scope.ProcedureSymbol()
	if procSym == nil {
		return
	}
	n := procSym.NParams()
	if n > len(amd64ArgRegisters) {
		n = len(amd64ArgRegisters)
	}
	if n > 0 {
		be.emitRaw(be.ind + "# save parameters")
	}
	for i := 0; i < n; i++ {
		param := procSym.Param(i)
		loc := param.Location()
		be.emitInstr("movq",
			fmt.Sprintf("%%%s, %d(%%rbp)", amd64ArgRegisters[i], loc.Offset),
			"param "+param.Name())
	}
}

// emitLocalData initialises the descriptors of local arrays: the dimension
// count followed by one 32-bit length per dimension.
func (be *BackendAMD64) emitLocalData(scope *Scope) {
	header := false
	for _, symbol := range scope.SymbolTable().Symbols() {
		if symbol.Kind() != LocalSymbolKind || !symbol.DataType().IsArray() {
			continue
		}
		if !header {
			be.emitRaw(be.ind + "# initialize local arrays")
			header = true
		}
		t := symbol.DataType()
		base := symbol.Location().Offset
		be.emitInstr("movl", fmt.Sprintf("$%d, %d(%%rbp)", t.NDim(), base),
			"descriptor of "+symbol.Name())
		for d := 1; d <= t.NDim(); d++ {
			be.emitInstr("movl", fmt.Sprintf("$%d, %d(%%rbp)", t.Dim(d), base+4*int64(d)), "")
		}
	}
}

func (be *BackendAMD64) emitInstruction(instr *Instr) {
	cmt := instr.String()
	switch op := instr.Op; op {
	case AddOp, SubOp, MulOp, DivOp, AndOp, OrOp:
		be.load("rax", instr.Src1, cmt)
		be.load("rbx", instr.Src2, "")
		switch op {
		case AddOp:
			be.emitInstr("addq", "%rbx, %rax", "")
		case SubOp:
			be.emitInstr("subq", "%rbx, %rax", "")
		case MulOp:
			be.emitInstr("imulq", "%rbx, %rax", "")
		case DivOp:
			be.emitInstr("cqto", "", "")
			be.emitInstr("idivq", "%rbx", "")
		case AndOp:
			be.emitInstr("andq", "%rbx, %rax", "")
		case OrOp:
			be.emitInstr("orq", "%rbx, %rax", "")
		}
		be.store(instr.Dst, "rax")

	case NegOp, PosOp, NotOp:
		be.load("rax", instr.Src1, cmt)
		switch op {
		case NegOp:
			be.emitInstr("negq", "%rax", "")
		case NotOp:
			// booleans are 0/1, so logical not is a bit flip
			be.emitInstr("xorq", "$1, %rax", "")
		}
		be.store(instr.Dst, "rax")

	case AssignOp, CastOp, WidenOp, NarrowOp:
		be.load("rax", instr.Src1, cmt)
		be.store(instr.Dst, "rax")

	case AddressOp:
		if ref, ok := instr.Src1.(*ReferenceOperand); ok {
			// the reference temp already holds the address
			be.load("rax", &NameOperand{Sym: ref.Sym}, cmt)
		} else {
			be.emitInstr("leaq", be.operand(instr.Src1)+", %rax", cmt)
		}
		be.store(instr.Dst, "rax")

	case DerefOp:
		be.load("rax", instr.Src1, cmt)
		size := be.operandSize(instr.Dst)
		be.emitInstr(be.loadMnemonic(size), "(%rax), "+be.reg("rax", 8), "")
		be.store(instr.Dst, "rax")

	case GotoOp:
		be.emitInstr("jmp", be.labelName(instr.Dst.(*LabelOperand)), cmt)

	case EqualOp, NotEqualOp, LessThanOp, LessEqualOp, BiggerThanOp, BiggerEqualOp:
		label, isBranch := instr.Dst.(*LabelOperand)
		if !isBranch {
			be.fail("relational operation without branch target")
			return
		}
		be.load("rax", instr.Src1, cmt)
		be.load("rbx", instr.Src2, "")
		be.emitInstr("cmpq", "%rbx, %rax", "")
		be.emitInstr(amd64ConditionJumps[instr.Op], be.labelName(label), "")

	case ParamOp:
		index := instr.Dst.(*ConstOperand).Value
		if index < int64(len(amd64ArgRegisters)) {
			be.load(amd64ArgRegisters[index], instr.Src1, cmt)
		} else {
			be.load("rax", instr.Src1, cmt)
			be.emitInstr("movq", fmt.Sprintf("%%rax, %d(%%rsp)", 8*(index-int64(len(amd64ArgRegisters)))), "")
		}

	case CallOp:
		proc := instr.Src1.(*NameOperand).Sym
		be.emitInstr("call", proc.Name(), cmt)
		if instr.Dst != nil {
			be.store(instr.Dst, "rax")
		}

	case ReturnOp:
		if instr.Src1 != nil {
			be.load("rax", instr.Src1, cmt)
			be.emitInstr("jmp", be.labelName(&LabelOperand{Name: "exit"}), "")
		} else {
			be.emitInstr("jmp", be.labelName(&LabelOperand{Name: "exit"}), cmt)
		}

	case LabelOp:
		be.emitRaw(be.labelName(instr.Dst.(*LabelOperand)) + ":")

	case NopOp:
		be.emitInstr("nop", "", cmt)

	default:
		be.fail("operation %s not supported by this backend", instr.Op)
	}
}

func (be *BackendAMD64) labelName(label *LabelOperand) string {
	return "l_" + be.curScope.Name() + "_" + label.Name
}

func (be *BackendAMD64) reg(name string, size int) string {
	names, ok := amd64RegisterNames[name]
	if !ok {
		be.fail("unknown register %q", name)
		return "%?"
	}
	switch size {
	case 1:
		return "%" + names[0]
	case 2:
		return "%" + names[1]
	case 4:
		return "%" + names[2]
	case 8:
		return "%" + names[3]
	default:
		be.fail("operand size %d not supported by this backend", size)
		return "%?"
	}
}

// loadMnemonic picks the extending move for a memory operand of the given
// size: bytes and words zero-extend (booleans, characters), longs sign-
// extend, quads move as-is.
func (be *BackendAMD64) loadMnemonic(size int) string {
	switch size {
	case 1:
		return "movzbq"
	case 2:
		return "movzwq"
	case 4:
		return "movslq"
	case 8:
		return "movq"
	default:
		be.fail("operand size %d not supported by this backend", size)
		return "mov?"
	}
}

func (be *BackendAMD64) storeMnemonic(size int) string {
	switch size {
	case 1:
		return "movb"
	case 2:
		return "movw"
	case 4:
		return "movl"
	case 8:
		return "movq"
	default:
		be.fail("operand size %d not supported by this backend", size)
		return "mov?"
	}
}

func (be *BackendAMD64) operandSize(op Operand) int {
	switch op := op.(type) {
	case *ConstOperand:
		return op.Typ.DataSize()
	case *NameOperand:
		return op.Sym.DataType().DataSize()
	case *ReferenceOperand:
		t := op.Deref.DataType()
		if t.IsPointer() {
			t = t.Base()
		}
		if t.IsArray() {
			return t.BaseType().DataSize()
		}
		return t.DataSize()
	default:
		return 8
	}
}

// operand renders a directly addressable operand: constants as immediates,
// globals rip-relative, locals and parameters base-pointer-relative.
func (be *BackendAMD64) operand(op Operand) string {
	switch op := op.(type) {
	case *ConstOperand:
		return fmt.Sprintf("$%d", op.Value)
	case *NameOperand:
		symbol := op.Sym
		switch symbol.Kind() {
		case GlobalSymbolKind, ProcedureSymbolKind:
			return symbol.Name() + "(%rip)"
		case ConstantSymbolKind:
			return fmt.Sprintf("$%d", symbol.Value())
		default:
			loc := symbol.Location()
			if loc == nil {
				be.fail("symbol %q has no location", symbol.Name())
				return "?"
			}
			return fmt.Sprintf("%d(%%%s)", loc.Offset, loc.Base)
		}
	default:
		be.fail("operand %s is not directly addressable", op)
		return "?"
	}
}

// load moves src into the 64-bit register, extending as needed. References
// are dereferenced through r10.
func (be *BackendAMD64) load(regName string, src Operand, comment string) {
	if ref, ok := src.(*ReferenceOperand); ok {
		be.emitInstr("movq", be.operand(&NameOperand{Sym: ref.Sym})+", %r10", comment)
		size := be.operandSize(ref)
		be.emitInstr(be.loadMnemonic(size), "(%r10), "+be.reg(regName, 8), "")
		return
	}
	if c, ok := src.(*ConstOperand); ok {
		mnemonic := "movq"
		if c.Value > 0x7fffffff || c.Value < -0x80000000 {
			mnemonic = "movabsq"
		}
		be.emitInstr(mnemonic, be.operand(src)+", "+be.reg(regName, 8), comment)
		return
	}
	size := be.operandSize(src)
	be.emitInstr(be.loadMnemonic(size), be.operand(src)+", "+be.reg(regName, 8), comment)
}

// store moves the relevant part of a 64-bit register into dst.
func (be *BackendAMD64) store(dst Operand, regName string) {
	if ref, ok := dst.(*ReferenceOperand); ok {
		be.emitInstr("movq", be.operand(&NameOperand{Sym: ref.Sym})+", %r10", "")
		size := be.operandSize(ref)
		be.emitInstr(be.storeMnemonic(size), be.reg(regName, size)+", (%r10)", "")
		return
	}
	size := be.operandSize(dst)
	be.emitInstr(be.storeMnemonic(size), be.reg(regName, size)+", "+be.operand(dst), "")
}

// emitData lays out the global data section: scalars reserve their size,
// arrays lead with their descriptor, string constants emit their text.
// Alignment is inserted only when the cursor is misaligned for the next
// symbol.
func (be *BackendAMD64) emitData() {
	be.emitRaw(be.ind + "#-----------------------------------------")
	be.emitRaw(be.ind + "# global data section")
	be.emitRaw(be.ind + "#")
	be.emitRaw(be.ind + ".data")
	be.emitRaw(be.ind + ".align 8")
	be.emitRaw("")

	var cursor int64
	header := false
	for _, symbol := range be.module.SymbolTable().Symbols() {
		if symbol.Kind() != GlobalSymbolKind {
			continue
		}
		if !header {
			be.emitRaw(be.ind + "# scope: " + be.module.Name())
			header = true
		}
		t := symbol.DataType()

		align := int64(t.Align())
		if align > 1 && cursor%align != 0 {
			cursor += align - cursor%align
			be.emitRaw(fmt.Sprintf("%s.align %d", be.ind, align))
		}

		be.emitRaw(fmt.Sprintf("%-36s# %s", symbol.Name()+":", t))

		if t.IsArray() {
			be.emitRaw(fmt.Sprintf("%s.long %4d", be.ind, t.NDim()))
			for d := 1; d <= t.NDim(); d++ {
				be.emitRaw(fmt.Sprintf("%s.long %4d", be.ind, t.Dim(d)))
			}
			if pad := t.DataOffset() - 4*(1+t.NDim()); pad > 0 {
				be.emitRaw(fmt.Sprintf("%s.skip %4d", be.ind, pad))
			}
		}

		if data, ok := symbol.StringData(); ok {
			be.emitRaw(fmt.Sprintf("%s.asciz \"%s\"", be.ind, escapeString(data)))
		} else {
			be.emitRaw(fmt.Sprintf("%s.skip %4d", be.ind, t.DataSize()))
		}

		cursor += int64(t.Size())
	}

	be.emitRaw("")
	be.emitRaw(be.ind + "# end of global data section")
	be.emitRaw(be.ind + "#-----------------------------------------")
	be.emitRaw("")
}
