package compiler

// AST to TAC lowering. Every scope gets its own code block; statements lower
// in order, each ending with an explicit jump to its successor label (the
// cleanup pass elides the redundant ones). Expressions lower in two modes:
// value position (ToTac, returns an operand) and control position
// (ToTacBranch, jumps to one of two labels). Boolean operators get their
// short-circuit semantics here, evaluating the left operand first.

// GenerateTac lowers the module and all its procedures.
func GenerateTac(module *Scope) {
	generateScopeTac(module)
}

func generateScopeTac(scope *Scope) {
	for _, child := range scope.Children() {
		generateScopeTac(child)
	}
	cb := NewCodeBlock(scope)
	scope.cb = cb
	for statement := scope.StatementSequence(); statement != nil; statement = statement.Next() {
		next := cb.CreateLabel()
		statement.ToTac(cb, next)
		cb.AddLabel(next)
	}
	cb.CleanupControlFlow()
}

func lowerStatementList(cb *CodeBlock, head Statement) {
	for statement := head; statement != nil; statement = statement.Next() {
		next := cb.CreateLabel()
		statement.ToTac(cb, next)
		cb.AddLabel(next)
	}
}

func (statement *AssignStatement) ToTac(cb *CodeBlock, next *LabelOperand) {
	dst := statement.lhs.ToTac(cb)
	src := statement.rhs.ToTac(cb)
	cb.AddInstr(&Instr{Op: AssignOp, Dst: dst, Src1: src})
	cb.AddInstr(&Instr{Op: GotoOp, Dst: next})
}

func (statement *CallStatement) ToTac(cb *CodeBlock, next *LabelOperand) {
	statement.call.ToTac(cb)
	cb.AddInstr(&Instr{Op: GotoOp, Dst: next})
}

func (statement *ReturnStatement) ToTac(cb *CodeBlock, next *LabelOperand) {
	var value Operand
	if statement.expr != nil {
		value = statement.expr.ToTac(cb)
	}
	cb.AddInstr(&Instr{Op: ReturnOp, Src1: value})
	cb.AddInstr(&Instr{Op: GotoOp, Dst: next})
}

func (statement *IfStatement) ToTac(cb *CodeBlock, next *LabelOperand) {
	ltrue := cb.CreateLabel("if_true")
	lfalse := cb.CreateLabel("if_false")
	statement.cond.ToTacBranch(cb, ltrue, lfalse)

	cb.AddLabel(ltrue)
	lowerStatementList(cb, statement.ifBody)
	cb.AddInstr(&Instr{Op: GotoOp, Dst: next})

	cb.AddLabel(lfalse)
	lowerStatementList(cb, statement.elseBody)
	cb.AddInstr(&Instr{Op: GotoOp, Dst: next})
}

func (statement *WhileStatement) ToTac(cb *CodeBlock, next *LabelOperand) {
	lcond := cb.CreateLabel("while_cond")
	lbody := cb.CreateLabel("while_body")

	cb.AddLabel(lcond)
	statement.cond.ToTacBranch(cb, lbody, next)

	cb.AddLabel(lbody)
	lowerStatementList(cb, statement.body)
	cb.AddInstr(&Instr{Op: GotoOp, Dst: lcond})
}

// lowerBooleanValue materialises a boolean expression in value position:
// branch on it, then assign 1 or 0 to a fresh temporary.
func lowerBooleanValue(cb *CodeBlock, expr Expression) Operand {
	tm := cb.Owner().Compilation().TypeManager()
	ltrue := cb.CreateLabel()
	lfalse := cb.CreateLabel()
	lend := cb.CreateLabel()

	expr.ToTacBranch(cb, ltrue, lfalse)
	result := cb.CreateTemp(tm.GetBool())

	cb.AddLabel(ltrue)
	cb.AddInstr(&Instr{Op: AssignOp, Dst: result, Src1: &ConstOperand{Value: 1, Typ: tm.GetBool()}})
	cb.AddInstr(&Instr{Op: GotoOp, Dst: lend})

	cb.AddLabel(lfalse)
	cb.AddInstr(&Instr{Op: AssignOp, Dst: result, Src1: &ConstOperand{Value: 0, Typ: tm.GetBool()}})

	cb.AddLabel(lend)
	return result
}

// lowerValueBranch compares a value-producing expression against 1 and
// branches; shared by designators, calls and other non-operator booleans in
// control position.
func lowerValueBranch(cb *CodeBlock, value Operand, ltrue, lfalse *LabelOperand) {
	tm := cb.Owner().Compilation().TypeManager()
	cb.AddInstr(&Instr{Op: EqualOp, Dst: ltrue, Src1: value, Src2: &ConstOperand{Value: 1, Typ: tm.GetBool()}})
	cb.AddInstr(&Instr{Op: GotoOp, Dst: lfalse})
}

func (expr *BinaryExpr) ToTac(cb *CodeBlock) Operand {
	switch expr.op {
	case AddOp, SubOp, MulOp, DivOp:
		left := expr.left.ToTac(cb)
		right := expr.right.ToTac(cb)
		dst := cb.CreateTemp(expr.Type())
		cb.AddInstr(&Instr{Op: expr.op, Dst: dst, Src1: left, Src2: right})
		return dst
	default:
		return lowerBooleanValue(cb, expr)
	}
}

func (expr *BinaryExpr) ToTacBranch(cb *CodeBlock, ltrue, lfalse *LabelOperand) {
	if expr.op.IsRelOp() {
		left := expr.left.ToTac(cb)
		right := expr.right.ToTac(cb)
		cb.AddInstr(&Instr{Op: expr.op, Dst: ltrue, Src1: left, Src2: right})
		cb.AddInstr(&Instr{Op: GotoOp, Dst: lfalse})
		return
	}
	switch expr.op {
	case AndOp:
		lmid := cb.CreateLabel()
		expr.left.ToTacBranch(cb, lmid, lfalse)
		cb.AddLabel(lmid)
		expr.right.ToTacBranch(cb, ltrue, lfalse)
	case OrOp:
		lmid := cb.CreateLabel()
		expr.left.ToTacBranch(cb, ltrue, lmid)
		cb.AddLabel(lmid)
		expr.right.ToTacBranch(cb, ltrue, lfalse)
	default:
		lowerValueBranch(cb, expr.ToTac(cb), ltrue, lfalse)
	}
}

func (expr *UnaryExpr) ToTac(cb *CodeBlock) Operand {
	switch expr.op {
	case PosOp, NegOp:
		// fold literal operands at lowering time
		if c, ok := expr.operand.(*ConstExpr); ok {
			value := c.Value()
			if expr.op == NegOp {
				value = -value
			}
			return &ConstOperand{Value: value, Typ: c.Type()}
		}
		operand := expr.operand.ToTac(cb)
		dst := cb.CreateTemp(expr.Type())
		cb.AddInstr(&Instr{Op: expr.op, Dst: dst, Src1: operand})
		return dst
	default:
		return lowerBooleanValue(cb, expr)
	}
}

func (expr *UnaryExpr) ToTacBranch(cb *CodeBlock, ltrue, lfalse *LabelOperand) {
	if expr.op == NotOp {
		expr.operand.ToTacBranch(cb, lfalse, ltrue)
		return
	}
	lowerValueBranch(cb, expr.ToTac(cb), ltrue, lfalse)
}

func (expr *SpecialExpr) ToTac(cb *CodeBlock) Operand {
	tm := expr.comp.TypeManager()
	src := expr.operand.ToTac(cb)
	switch expr.op {
	case AddressOp:
		dst := cb.CreateTemp(tm.GetPointer(expr.operand.Type()))
		cb.AddInstr(&Instr{Op: AddressOp, Dst: dst, Src1: src})
		return dst
	case DerefOp:
		dst := cb.CreateTemp(expr.Type())
		cb.AddInstr(&Instr{Op: DerefOp, Dst: dst, Src1: src})
		return dst
	default: // CastOp
		dst := cb.CreateTemp(expr.castType)
		cb.AddInstr(&Instr{Op: CastOp, Dst: dst, Src1: src})
		return dst
	}
}

func (expr *SpecialExpr) ToTacBranch(cb *CodeBlock, ltrue, lfalse *LabelOperand) {
	lowerValueBranch(cb, expr.ToTac(cb), ltrue, lfalse)
}

// ToTac lowers a call: arguments are evaluated and emitted as Param
// instructions in reverse order, then the call itself. Void calls have no
// destination.
func (expr *CallExpr) ToTac(cb *CodeBlock) Operand {
	tm := expr.comp.TypeManager()
	// lower every argument first so a nested call cannot interleave with
	// the Param block of this one
	operands := make([]Operand, expr.NArgs())
	for i := expr.NArgs() - 1; i >= 0; i-- {
		operands[i] = expr.Arg(i).ToTac(cb)
	}
	for i := expr.NArgs() - 1; i >= 0; i-- {
		cb.AddInstr(&Instr{
			Op:   ParamOp,
			Dst:  &ConstOperand{Value: int64(i), Typ: tm.GetInteger()},
			Src1: operands[i],
		})
	}
	var dst Operand
	if !expr.Type().IsNull() {
		dst = cb.CreateTemp(expr.Type())
	}
	cb.AddInstr(&Instr{Op: CallOp, Dst: dst, Src1: &NameOperand{Sym: expr.symbol}})
	return dst
}

func (expr *CallExpr) ToTacBranch(cb *CodeBlock, ltrue, lfalse *LabelOperand) {
	lowerValueBranch(cb, expr.ToTac(cb), ltrue, lfalse)
}

func (expr *DesignatorExpr) ToTac(cb *CodeBlock) Operand {
	if expr.symbol.Kind() == ConstantSymbolKind {
		return &ConstOperand{Value: expr.symbol.Value(), Typ: expr.symbol.DataType()}
	}
	return &NameOperand{Sym: expr.symbol}
}

func (expr *DesignatorExpr) ToTacBranch(cb *CodeBlock, ltrue, lfalse *LabelOperand) {
	lowerValueBranch(cb, expr.ToTac(cb), ltrue, lfalse)
}

// ToTac computes the address of an array element and returns a reference
// operand for it. For dimensions d1..dn and indices i1..ik:
//
//	base <- address of the array (or the pointer value for parameters)
//	idx  <- i1
//	for j = 2..n: idx <- idx * DIM(a, j) + (i_j if j <= k else 0)
//	addr <- base + DOFS(a) + idx*elemsize
//
// DIM and DOFS are real runtime calls; the descriptor drives the row-major
// address computation so open dimensions work.
func (expr *ArrayDesignatorExpr) ToTac(cb *CodeBlock) Operand {
	tm := expr.comp.TypeManager()
	symtab := cb.Owner().SymbolTable()
	dimSym := symtab.FindSymbol("DIM", AnyScope)
	dofsSym := symtab.FindSymbol("DOFS", AnyScope)

	declType := expr.symbol.DataType()
	var base Operand
	var arrType *Type
	if declType.IsPointer() {
		base = &NameOperand{Sym: expr.symbol}
		arrType = declType.Base()
	} else {
		ptr := cb.CreateTemp(tm.GetPointer(declType))
		cb.AddInstr(&Instr{Op: AddressOp, Dst: ptr, Src1: &NameOperand{Sym: expr.symbol}})
		base = ptr
		arrType = declType
	}
	elemSize := int64(arrType.BaseType().DataSize())
	ndim := arrType.NDim()

	idx := expr.indices[0].ToTac(cb)
	for j := 2; j <= ndim; j++ {
		dim := lowerRuntimeCall(cb, dimSym, base, &ConstOperand{Value: int64(j), Typ: tm.GetInteger()})
		scaled := cb.CreateTemp(tm.GetInteger())
		cb.AddInstr(&Instr{Op: MulOp, Dst: scaled, Src1: idx, Src2: dim})

		var index Operand = &ConstOperand{Value: 0, Typ: tm.GetInteger()}
		if j-1 < len(expr.indices) {
			index = expr.indices[j-1].ToTac(cb)
		}
		sum := cb.CreateTemp(tm.GetInteger())
		cb.AddInstr(&Instr{Op: AddOp, Dst: sum, Src1: scaled, Src2: index})
		idx = sum
	}

	dofs := lowerRuntimeCall(cb, dofsSym, base)

	scaled := cb.CreateTemp(tm.GetInteger())
	cb.AddInstr(&Instr{Op: MulOp, Dst: scaled, Src1: idx, Src2: &ConstOperand{Value: elemSize, Typ: tm.GetInteger()}})
	offset := cb.CreateTemp(tm.GetInteger())
	cb.AddInstr(&Instr{Op: AddOp, Dst: offset, Src1: scaled, Src2: dofs})
	addr := cb.CreateTemp(tm.GetPointer(arrType.BaseType()))
	cb.AddInstr(&Instr{Op: AddOp, Dst: addr, Src1: base, Src2: offset})

	return &ReferenceOperand{Sym: addr.Sym, Deref: expr.symbol}
}

func (expr *ArrayDesignatorExpr) ToTacBranch(cb *CodeBlock, ltrue, lfalse *LabelOperand) {
	lowerValueBranch(cb, expr.ToTac(cb), ltrue, lfalse)
}

// lowerRuntimeCall emits the Param/Call sequence for one of the runtime
// array-descriptor helpers and returns its result temporary.
func lowerRuntimeCall(cb *CodeBlock, proc *Symbol, args ...Operand) Operand {
	tm := cb.Owner().Compilation().TypeManager()
	for i := len(args) - 1; i >= 0; i-- {
		cb.AddInstr(&Instr{
			Op:   ParamOp,
			Dst:  &ConstOperand{Value: int64(i), Typ: tm.GetInteger()},
			Src1: args[i],
		})
	}
	dst := cb.CreateTemp(proc.DataType())
	cb.AddInstr(&Instr{Op: CallOp, Dst: dst, Src1: &NameOperand{Sym: proc}})
	return dst
}

func (expr *ConstExpr) ToTac(cb *CodeBlock) Operand {
	return &ConstOperand{Value: expr.value, Typ: expr.typ}
}

func (expr *ConstExpr) ToTacBranch(cb *CodeBlock, ltrue, lfalse *LabelOperand) {
	if expr.value != 0 {
		cb.AddInstr(&Instr{Op: GotoOp, Dst: ltrue})
		return
	}
	cb.AddInstr(&Instr{Op: GotoOp, Dst: lfalse})
}

func (expr *StringConstExpr) ToTac(cb *CodeBlock) Operand {
	return &NameOperand{Sym: expr.symbol}
}

func (expr *StringConstExpr) ToTacBranch(cb *CodeBlock, ltrue, lfalse *LabelOperand) {
	lowerValueBranch(cb, expr.ToTac(cb), ltrue, lfalse)
}
