package compiler

// The AST is split in three altitudes: Scope (module and procedures),
// Statement (intrusive linked list through next) and Expression (see
// expression.go). Nodes keep the source token that introduced them so
// diagnostics can point at the offending position.

// Scope is a module or a procedure/function. The module scope has no parent;
// procedure scopes chain their symbol table to the lexically enclosing
// scope's table. The procedure symbol itself lives in the parent table so
// recursive and mutual calls resolve.
type Scope struct {
	comp     *Compilation
	token    *Token
	id       int
	name     string
	parent   *Scope
	children []*Scope
	symtab   *SymbolTable
	statseq  Statement
	procSym  *Symbol
	cb       *CodeBlock
}

func NewModuleScope(comp *Compilation, token *Token, name string) *Scope {
	return &Scope{
		comp:   comp,
		token:  token,
		id:     comp.nodeID(),
		name:   name,
		symtab: NewSymbolTable(nil),
	}
}

func NewProcedureScope(token *Token, name string, parent *Scope, procSym *Symbol) *Scope {
	scope := &Scope{
		comp:    parent.comp,
		token:   token,
		id:      parent.comp.nodeID(),
		name:    name,
		parent:  parent,
		symtab:  NewSymbolTable(parent.symtab),
		procSym: procSym,
	}
	parent.children = append(parent.children, scope)
	return scope
}

func (scope *Scope) Compilation() *Compilation { return scope.comp }
func (scope *Scope) Token() *Token             { return scope.token }
func (scope *Scope) ID() int                   { return scope.id }
func (scope *Scope) Name() string              { return scope.name }
func (scope *Scope) Parent() *Scope            { return scope.parent }
func (scope *Scope) Children() []*Scope        { return scope.children }
func (scope *Scope) SymbolTable() *SymbolTable { return scope.symtab }
func (scope *Scope) IsModule() bool            { return scope.parent == nil }

// ProcedureSymbol returns the symbol of a procedure scope, nil for a module.
func (scope *Scope) ProcedureSymbol() *Symbol {
	return scope.procSym
}

// ReturnType is the procedure's return type, GetNull() for procedures without
// one and for the module body.
func (scope *Scope) ReturnType() *Type {
	if scope.procSym == nil {
		return scope.comp.TypeManager().GetNull()
	}
	return scope.procSym.DataType()
}

func (scope *Scope) SetStatementSequence(statseq Statement) {
	scope.statseq = statseq
}

func (scope *Scope) StatementSequence() Statement {
	return scope.statseq
}

func (scope *Scope) CodeBlock() *CodeBlock {
	return scope.cb
}

// Statement nodes form an intrusive linked list in source order.
type Statement interface {
	Token() *Token
	Next() Statement
	SetNext(Statement)
	TypeCheck() error
	ToTac(cb *CodeBlock, next *LabelOperand)
}

type statementBase struct {
	token *Token
	id    int
	next  Statement
}

func newStatementBase(comp *Compilation, token *Token) statementBase {
	return statementBase{token: token, id: comp.nodeID()}
}

func (statement *statementBase) Token() *Token {
	return statement.token
}

func (statement *statementBase) Next() Statement {
	return statement.next
}

func (statement *statementBase) SetNext(next Statement) {
	statement.next = next
}

type AssignStatement struct {
	statementBase
	lhs Expression
	rhs Expression
}

func NewAssignStatement(comp *Compilation, token *Token, lhs, rhs Expression) *AssignStatement {
	return &AssignStatement{statementBase: newStatementBase(comp, token), lhs: lhs, rhs: rhs}
}

func (statement *AssignStatement) LHS() Expression { return statement.lhs }
func (statement *AssignStatement) RHS() Expression { return statement.rhs }

type CallStatement struct {
	statementBase
	call *CallExpr
}

func NewCallStatement(comp *Compilation, token *Token, call *CallExpr) *CallStatement {
	return &CallStatement{statementBase: newStatementBase(comp, token), call: call}
}

func (statement *CallStatement) Call() *CallExpr { return statement.call }

type ReturnStatement struct {
	statementBase
	scope *Scope
	expr  Expression
}

func NewReturnStatement(comp *Compilation, token *Token, scope *Scope, expr Expression) *ReturnStatement {
	return &ReturnStatement{statementBase: newStatementBase(comp, token), scope: scope, expr: expr}
}

func (statement *ReturnStatement) Scope() *Scope          { return statement.scope }
func (statement *ReturnStatement) Expression() Expression { return statement.expr }

type IfStatement struct {
	statementBase
	cond     Expression
	ifBody   Statement
	elseBody Statement
}

func NewIfStatement(comp *Compilation, token *Token, cond Expression, ifBody, elseBody Statement) *IfStatement {
	return &IfStatement{statementBase: newStatementBase(comp, token), cond: cond, ifBody: ifBody, elseBody: elseBody}
}

func (statement *IfStatement) Condition() Expression { return statement.cond }
func (statement *IfStatement) IfBody() Statement     { return statement.ifBody }
func (statement *IfStatement) ElseBody() Statement   { return statement.elseBody }

type WhileStatement struct {
	statementBase
	cond Expression
	body Statement
}

func NewWhileStatement(comp *Compilation, token *Token, cond Expression, body Statement) *WhileStatement {
	return &WhileStatement{statementBase: newStatementBase(comp, token), cond: cond, body: body}
}

func (statement *WhileStatement) Condition() Expression { return statement.cond }
func (statement *WhileStatement) Body() Statement       { return statement.body }
