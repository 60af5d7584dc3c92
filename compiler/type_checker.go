package compiler

// The type checker is a single bottom-up pass: every node checks its children
// first, and the first failure propagates to the top. Type() stays a pure
// query, so running the checker twice yields identical results.

// TypeCheck verifies the whole module: the module body, then every procedure.
func TypeCheck(module *Scope) error {
	return module.TypeCheck()
}

func (scope *Scope) TypeCheck() error {
	for statement := scope.statseq; statement != nil; statement = statement.Next() {
		if err := statement.TypeCheck(); err != nil {
			return err
		}
	}
	for _, child := range scope.children {
		if err := child.TypeCheck(); err != nil {
			return err
		}
	}
	return nil
}

func (statement *AssignStatement) TypeCheck() error {
	if err := statement.lhs.TypeCheck(); err != nil {
		return err
	}
	if err := statement.rhs.TypeCheck(); err != nil {
		return err
	}
	lhsType, rhsType := statement.lhs.Type(), statement.rhs.Type()
	if lhsType == nil || !lhsType.IsScalar() {
		return makeSemanticError(statement.lhs.Token(), "assignment target is not a scalar")
	}
	if rhsType == nil || !rhsType.IsScalar() {
		return makeSemanticError(statement.rhs.Token(), "assigned value is not a scalar")
	}
	if !lhsType.Match(rhsType) {
		return makeSemanticError(statement.rhs.Token(),
			"assignment types do not match (%s := %s)", lhsType, rhsType)
	}
	return nil
}

func (statement *CallStatement) TypeCheck() error {
	return statement.call.TypeCheck()
}

func (statement *ReturnStatement) TypeCheck() error {
	scopeType := statement.scope.ReturnType()
	expr := statement.expr
	if scopeType.IsNull() {
		if expr != nil {
			return makeSemanticError(expr.Token(), "superfluous expression after return")
		}
		return nil
	}
	if expr == nil {
		return makeSemanticError(statement.Token(), "expression expected after return")
	}
	if err := expr.TypeCheck(); err != nil {
		return err
	}
	if exprType := expr.Type(); exprType == nil || !scopeType.Match(exprType) {
		return makeSemanticError(expr.Token(), "return type mismatch")
	}
	return nil
}

func (statement *IfStatement) TypeCheck() error {
	if err := checkCondition(statement.cond); err != nil {
		return err
	}
	for body := statement.ifBody; body != nil; body = body.Next() {
		if err := body.TypeCheck(); err != nil {
			return err
		}
	}
	for body := statement.elseBody; body != nil; body = body.Next() {
		if err := body.TypeCheck(); err != nil {
			return err
		}
	}
	return nil
}

func (statement *WhileStatement) TypeCheck() error {
	if err := checkCondition(statement.cond); err != nil {
		return err
	}
	for body := statement.body; body != nil; body = body.Next() {
		if err := body.TypeCheck(); err != nil {
			return err
		}
	}
	return nil
}

func checkCondition(cond Expression) error {
	if err := cond.TypeCheck(); err != nil {
		return err
	}
	if condType := cond.Type(); condType == nil || !condType.IsBoolean() {
		return makeSemanticError(cond.Token(), "condition is not a boolean")
	}
	return nil
}

func (expr *BinaryExpr) TypeCheck() error {
	if err := expr.left.TypeCheck(); err != nil {
		return err
	}
	if err := expr.right.TypeCheck(); err != nil {
		return err
	}
	leftType, rightType := expr.left.Type(), expr.right.Type()
	if leftType == nil {
		return makeSemanticError(expr.left.Token(), "left operand has no type")
	}
	if rightType == nil {
		return makeSemanticError(expr.right.Token(), "right operand has no type")
	}

	switch expr.op {
	case AddOp, SubOp, MulOp, DivOp, LessThanOp, LessEqualOp, BiggerThanOp, BiggerEqualOp:
		if !leftType.IsIntegerType() {
			return makeSemanticError(expr.left.Token(), "left operand must be integer or longint")
		}
		if !rightType.IsIntegerType() {
			return makeSemanticError(expr.right.Token(), "right operand must be integer or longint")
		}
		if !leftType.Match(rightType) {
			return makeSemanticError(expr.Token(), "operand types do not match (%s, %s)", leftType, rightType)
		}
	case AndOp, OrOp:
		if !leftType.IsBoolean() {
			return makeSemanticError(expr.left.Token(), "left operand must be boolean")
		}
		if !rightType.IsBoolean() {
			return makeSemanticError(expr.right.Token(), "right operand must be boolean")
		}
	case EqualOp, NotEqualOp:
		if !leftType.IsScalar() {
			return makeSemanticError(expr.left.Token(), "left operand is not a scalar")
		}
		if !rightType.IsScalar() {
			return makeSemanticError(expr.right.Token(), "right operand is not a scalar")
		}
		if !leftType.Match(rightType) {
			return makeSemanticError(expr.Token(), "operand types do not match (%s, %s)", leftType, rightType)
		}
	default:
		return makeSemanticError(expr.Token(), "invalid binary operation %s", expr.op)
	}
	return nil
}

func (expr *UnaryExpr) TypeCheck() error {
	if err := expr.operand.TypeCheck(); err != nil {
		return err
	}
	operandType := expr.operand.Type()
	if operandType == nil {
		return makeSemanticError(expr.operand.Token(), "operand has no type")
	}
	if expr.op == NotOp {
		if !operandType.IsBoolean() {
			return makeSemanticError(expr.operand.Token(), "operand of '!' must be boolean")
		}
		return nil
	}
	if !operandType.IsIntegerType() {
		return makeSemanticError(expr.operand.Token(), "operand of unary %s must be integer or longint", expr.Token().Content())
	}
	return nil
}

func (expr *SpecialExpr) TypeCheck() error {
	if err := expr.operand.TypeCheck(); err != nil {
		return err
	}
	operandType := expr.operand.Type()
	if operandType == nil {
		return makeSemanticError(expr.Token(), "operand has no type")
	}
	if expr.op == DerefOp && !operandType.IsPointer() {
		return makeSemanticError(expr.Token(), "dereference of a non-pointer")
	}
	return nil
}

func (expr *CallExpr) TypeCheck() error {
	proc := expr.symbol
	if expr.NArgs() != proc.NParams() {
		return makeSemanticError(expr.Token(), "%q expects %d argument(s), got %d",
			proc.Name(), proc.NParams(), expr.NArgs())
	}
	for i := 0; i < expr.NArgs(); i++ {
		arg := expr.Arg(i)
		if err := arg.TypeCheck(); err != nil {
			return err
		}
		paramType := proc.Param(i).DataType()
		argType := arg.Type()
		if argType == nil || paramType == nil || !paramType.Match(argType) {
			return makeSemanticError(arg.Token(), "argument %d of %q does not match the parameter type",
				i+1, proc.Name())
		}
	}
	return nil
}

func (expr *DesignatorExpr) TypeCheck() error {
	if exprType := expr.Type(); exprType == nil || exprType.IsNull() {
		return makeSemanticError(expr.Token(), "designator has no type")
	}
	return nil
}

func (expr *ArrayDesignatorExpr) TypeCheck() error {
	if !expr.done {
		return makeSemanticError(expr.Token(), "array designator is not complete")
	}
	for _, index := range expr.indices {
		if err := index.TypeCheck(); err != nil {
			return err
		}
		if indexType := index.Type(); indexType == nil || !indexType.IsIntegerType() {
			return makeSemanticError(index.Token(), "array index must be integer or longint")
		}
	}
	if expr.Type() == nil {
		return makeSemanticError(expr.Token(), "invalid array access of %q", expr.symbol.Name())
	}
	return nil
}

func (expr *ConstExpr) TypeCheck() error {
	if expr.typ == nil || expr.typ.IsNull() {
		return makeSemanticError(expr.Token(), "constant has no type")
	}
	return nil
}

func (expr *StringConstExpr) TypeCheck() error {
	return nil
}
