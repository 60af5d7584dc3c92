package compiler

import (
	"fmt"
	"strings"
)

// Operation is shared between AST operator nodes and TAC instructions.
type Operation int

const (
	// binary operators, dst = src1 op src2
	AddOp Operation = iota // +
	SubOp                  // -
	MulOp                  // *
	DivOp                  // /
	AndOp                  // &&
	OrOp                   // ||

	// relational operators; with a label destination they are conditional
	// branches: if src1 op src2 goto dst
	EqualOp       // =
	NotEqualOp    // #
	LessThanOp    // <
	LessEqualOp   // <=
	BiggerThanOp  // >
	BiggerEqualOp // >=

	// unary operators, dst = op src1
	NegOp // -
	PosOp // +
	NotOp // !

	// memory operations
	AssignOp  // dst = src1
	AddressOp // dst = &src1
	DerefOp   // dst = *src1
	CastOp    // dst = (type)src1
	WidenOp   // dst = (wider type)src1
	NarrowOp  // dst = (narrower type)src1

	// control flow
	GotoOp  // goto dst
	LabelOp // jump target
	NopOp   // no operation

	// call plumbing
	ParamOp  // dst = parameter index, src1 = value
	CallOp   // dst = result (optional), src1 = procedure
	ReturnOp // src1 = return value (optional)
)

var operationNameMap = map[Operation]string{
	AddOp: "add", SubOp: "sub", MulOp: "mul", DivOp: "div",
	AndOp: "and", OrOp: "or",
	EqualOp: "=", NotEqualOp: "#", LessThanOp: "<", LessEqualOp: "<=",
	BiggerThanOp: ">", BiggerEqualOp: ">=",
	NegOp: "neg", PosOp: "pos", NotOp: "not",
	AssignOp: "assign", AddressOp: "&()", DerefOp: "*()",
	CastOp: "cast", WidenOp: "widen", NarrowOp: "narrow",
	GotoOp: "goto", LabelOp: "label", NopOp: "nop",
	ParamOp: "param", CallOp: "call", ReturnOp: "return",
}

func (op Operation) String() string {
	name, ok := operationNameMap[op]
	if !ok {
		return fmt.Sprintf("op(%d)", int(op))
	}
	return name
}

func (op Operation) IsRelOp() bool {
	switch op {
	case EqualOp, NotEqualOp, LessThanOp, LessEqualOp, BiggerThanOp, BiggerEqualOp:
		return true
	}
	return false
}

// Operand is a TAC address: constant, symbol, memory reference through a
// temporary, or label.
type Operand interface {
	String() string
}

type ConstOperand struct {
	Value int64
	Typ   *Type
}

func (op *ConstOperand) String() string {
	return fmt.Sprintf("%d", op.Value)
}

// NameOperand designates a symbol directly: a global, local, parameter,
// constant, procedure, or a compiler temporary.
type NameOperand struct {
	Sym *Symbol
}

func (op *NameOperand) String() string {
	return op.Sym.Name()
}

// ReferenceOperand designates memory at the address held in Sym (always a
// temporary). Deref records the symbol whose element the address points into,
// so the backend can derive the access size.
type ReferenceOperand struct {
	Sym   *Symbol
	Deref *Symbol
}

func (op *ReferenceOperand) String() string {
	return "@" + op.Sym.Name()
}

// LabelOperand is a jump target; as an instruction destination it names the
// target, as a LabelOp instruction it marks the position.
type LabelOperand struct {
	Name string
}

func (op *LabelOperand) String() string {
	return op.Name
}

// Instr is one TAC instruction: an operation, an optional destination and up
// to two source operands.
type Instr struct {
	Op   Operation
	Dst  Operand
	Src1 Operand
	Src2 Operand
}

func (instr *Instr) String() string {
	switch {
	case instr.Op == LabelOp:
		return fmt.Sprintf("%s:", instr.Dst)
	case instr.Op == GotoOp:
		return fmt.Sprintf("goto %s", instr.Dst)
	case instr.Op.IsRelOp():
		if _, isLabel := instr.Dst.(*LabelOperand); isLabel {
			return fmt.Sprintf("if %s %s %s goto %s", instr.Src1, instr.Op, instr.Src2, instr.Dst)
		}
		return fmt.Sprintf("%s <- %s %s %s", instr.Dst, instr.Src1, instr.Op, instr.Src2)
	case instr.Op == ParamOp:
		return fmt.Sprintf("param %s <- %s", instr.Dst, instr.Src1)
	case instr.Op == CallOp:
		if instr.Dst != nil {
			return fmt.Sprintf("%s <- call %s", instr.Dst, instr.Src1)
		}
		return fmt.Sprintf("call %s", instr.Src1)
	case instr.Op == ReturnOp:
		if instr.Src1 != nil {
			return fmt.Sprintf("return %s", instr.Src1)
		}
		return "return"
	case instr.Op == AssignOp:
		return fmt.Sprintf("%s <- %s", instr.Dst, instr.Src1)
	case instr.Op == NopOp:
		return "nop"
	case instr.Src2 != nil:
		return fmt.Sprintf("%s <- %s %s %s", instr.Dst, instr.Op, instr.Src1, instr.Src2)
	default:
		return fmt.Sprintf("%s <- %s %s", instr.Dst, instr.Op, instr.Src1)
	}
}

// CodeBlock is the linear TAC stream of one scope plus its pool of
// temporaries. Temporaries are registered in the owning scope's symbol table
// so the backend lays them out on the stack like any other local.
type CodeBlock struct {
	owner       *Scope
	instrs      []*Instr
	nextLabelID int
	nextTempID  int
}

func NewCodeBlock(owner *Scope) *CodeBlock {
	return &CodeBlock{owner: owner}
}

func (cb *CodeBlock) Owner() *Scope {
	return cb.owner
}

func (cb *CodeBlock) Instrs() []*Instr {
	return cb.instrs
}

func (cb *CodeBlock) AddInstr(instr *Instr) {
	cb.instrs = append(cb.instrs, instr)
}

// AddLabel places a label into the instruction stream.
func (cb *CodeBlock) AddLabel(label *LabelOperand) {
	cb.instrs = append(cb.instrs, &Instr{Op: LabelOp, Dst: label})
}

// CreateLabel returns a fresh label, optionally suffixed for readability.
func (cb *CodeBlock) CreateLabel(suffix ...string) *LabelOperand {
	cb.nextLabelID++
	name := fmt.Sprintf("%d", cb.nextLabelID)
	if len(suffix) > 0 && suffix[0] != "" {
		name = fmt.Sprintf("%d_%s", cb.nextLabelID, suffix[0])
	}
	return &LabelOperand{Name: name}
}

// CreateTemp allocates a fresh temporary of the given type in the owning
// scope.
func (cb *CodeBlock) CreateTemp(typ *Type) *NameOperand {
	for {
		name := fmt.Sprintf("t%d", cb.nextTempID)
		cb.nextTempID++
		symbol := NewLocalSymbol(name, typ)
		if cb.owner.SymbolTable().AddSymbol(symbol) == nil {
			return &NameOperand{Sym: symbol}
		}
	}
}

func (cb *CodeBlock) String() string {
	var out strings.Builder
	fmt.Fprintf(&out, "[[ %s ]]\n", cb.owner.Name())
	for _, instr := range cb.instrs {
		if instr.Op == LabelOp {
			fmt.Fprintf(&out, "%s\n", instr)
		} else {
			fmt.Fprintf(&out, "    %s\n", instr)
		}
	}
	return out.String()
}

// CleanupControlFlow runs three semantics-preserving peephole passes:
// drop gotos to an immediately following label, forward label-to-label
// chains, and delete labels nothing refers to.
func (cb *CodeBlock) CleanupControlFlow() {
	cb.dropRedundantGotos()
	cb.forwardLabelChains()
	cb.dropUnreferencedLabels()
}

func (cb *CodeBlock) dropRedundantGotos() {
	var out []*Instr
	for i, instr := range cb.instrs {
		if instr.Op == GotoOp && i+1 < len(cb.instrs) {
			next := cb.instrs[i+1]
			if next.Op == LabelOp && next.Dst == instr.Dst {
				continue
			}
		}
		out = append(out, instr)
	}
	cb.instrs = out
}

func (cb *CodeBlock) forwardLabelChains() {
	// A label directly followed by another label is an alias for it.
	forward := map[*LabelOperand]*LabelOperand{}
	for i := 0; i+1 < len(cb.instrs); i++ {
		if cb.instrs[i].Op == LabelOp && cb.instrs[i+1].Op == LabelOp {
			forward[cb.instrs[i].Dst.(*LabelOperand)] = cb.instrs[i+1].Dst.(*LabelOperand)
		}
	}
	if len(forward) == 0 {
		return
	}
	resolve := func(label *LabelOperand) *LabelOperand {
		seen := map[*LabelOperand]bool{}
		for {
			next, ok := forward[label]
			if !ok || seen[label] {
				return label
			}
			seen[label] = true
			label = next
		}
	}
	var out []*Instr
	for _, instr := range cb.instrs {
		if instr.Op == LabelOp {
			if _, aliased := forward[instr.Dst.(*LabelOperand)]; aliased {
				continue
			}
		}
		if label, ok := instr.Dst.(*LabelOperand); ok && instr.Op != LabelOp {
			instr.Dst = resolve(label)
		}
		out = append(out, instr)
	}
	cb.instrs = out
}

func (cb *CodeBlock) dropUnreferencedLabels() {
	referenced := map[*LabelOperand]bool{}
	for _, instr := range cb.instrs {
		if instr.Op == LabelOp {
			continue
		}
		if label, ok := instr.Dst.(*LabelOperand); ok {
			referenced[label] = true
		}
	}
	var out []*Instr
	for _, instr := range cb.instrs {
		if instr.Op == LabelOp && !referenced[instr.Dst.(*LabelOperand)] {
			continue
		}
		out = append(out, instr)
	}
	cb.instrs = out
}
