package compiler

import (
	"strconv"
	"strings"
)

// Parser is a single-token-lookahead recursive descent parser for SnuPL/2.
// It builds the AST and populates the nested symbol tables in one pass:
// identifiers are resolved against the symbol tables while parsing, so an
// identifier in factor position can be classified as function call or
// designator by the kind of its symbol.
//
// On the first error the parser records the offending token and message and
// unwinds; Parse returns nil and HasError/ErrorToken/ErrorMessage describe
// the failure.
type Parser struct {
	src        string
	comp       *Compilation
	scanner    *Scanner
	module     *Scope
	abort      bool
	errorToken *Token
	errorMsg   string
}

func NewParser(src string) *Parser {
	return &Parser{src: src, comp: NewCompilation()}
}

func (parser *Parser) Compilation() *Compilation {
	return parser.comp
}

func (parser *Parser) Parse() *Scope {
	parser.abort = false
	parser.module = nil

	scanner, err := NewScanner(parser.src)
	if err != nil {
		parser.recordError(err)
		return nil
	}
	parser.scanner = scanner

	module, err := parser.parseModule()
	if err != nil {
		parser.recordError(err)
		return nil
	}
	parser.module = module
	return module
}

func (parser *Parser) HasError() bool {
	return parser.abort
}

func (parser *Parser) ErrorToken() *Token {
	return parser.errorToken
}

func (parser *Parser) ErrorMessage() string {
	return parser.errorMsg
}

func (parser *Parser) recordError(err error) {
	parser.abort = true
	if syntaxErr, ok := err.(*SyntaxError); ok {
		parser.errorToken, parser.errorMsg = syntaxErr.Token, syntaxErr.Message
		return
	}
	parser.errorMsg = err.Error()
}

// consume errors when the next token's kind differs from the expected one.
func (parser *Parser) consume(expected TokenType) (*Token, error) {
	token := parser.scanner.Get()
	if token.Type() != expected {
		return nil, makeSyntaxError(token, "expected %s, got %s", tokenTPName(expected), token.Name())
	}
	return token, nil
}

// initSymbolTable seeds the module symbol table with the external runtime
// procedures. DIM and DOFS take a generic pointer so the array lowering (and
// adventurous user code) can call them with any array reference.
func (parser *Parser) initSymbolTable(table *SymbolTable) {
	tm := parser.comp.TypeManager()
	voidPtr := tm.GetPointer(tm.GetNull())

	f := NewProcedureSymbol("ReadInt", tm.GetInteger(), true)
	table.AddSymbol(f)
	f = NewProcedureSymbol("ReadLong", tm.GetLongint(), true)
	table.AddSymbol(f)

	f = NewProcedureSymbol("WriteInt", tm.GetNull(), true)
	f.AddParam(NewParamSymbol(0, "v", tm.GetInteger()))
	table.AddSymbol(f)
	f = NewProcedureSymbol("WriteLong", tm.GetNull(), true)
	f.AddParam(NewParamSymbol(0, "v", tm.GetLongint()))
	table.AddSymbol(f)

	f = NewProcedureSymbol("WriteChar", tm.GetNull(), true)
	f.AddParam(NewParamSymbol(0, "c", tm.GetChar()))
	table.AddSymbol(f)

	f = NewProcedureSymbol("WriteStr", tm.GetNull(), true)
	f.AddParam(NewParamSymbol(0, "string", tm.GetPointer(tm.GetArray(OpenDim, tm.GetChar()))))
	table.AddSymbol(f)

	f = NewProcedureSymbol("WriteLn", tm.GetNull(), true)
	table.AddSymbol(f)

	f = NewProcedureSymbol("DIM", tm.GetInteger(), true)
	f.AddParam(NewParamSymbol(0, "array", voidPtr))
	f.AddParam(NewParamSymbol(1, "dim", tm.GetInteger()))
	table.AddSymbol(f)

	f = NewProcedureSymbol("DOFS", tm.GetInteger(), true)
	f.AddParam(NewParamSymbol(0, "array", voidPtr))
	table.AddSymbol(f)
}

// module ::= "module" ident ";" { constDecl | varDecl | procDecl | funcDecl }
//            [ "begin" statSequence ] "end" ident "."
func (parser *Parser) parseModule() (*Scope, error) {
	moduleToken, err := parser.consume(ModuleTP)
	if err != nil {
		return nil, err
	}
	nameToken, err := parser.consume(IdentifierTP)
	if err != nil {
		return nil, err
	}
	_, err = parser.consume(SemiColonTP)
	if err != nil {
		return nil, err
	}

	module := NewModuleScope(parser.comp, moduleToken, nameToken.Content())
	parser.initSymbolTable(module.SymbolTable())

	err = parser.parseDeclarations(module, true)
	if err != nil {
		return nil, err
	}

	if parser.scanner.Peek().Type() == BeginTP {
		parser.scanner.Get()
		statseq, err := parser.parseStatSequence(module)
		if err != nil {
			return nil, err
		}
		module.SetStatementSequence(statseq)
	}

	_, err = parser.consume(EndTP)
	if err != nil {
		return nil, err
	}
	closingToken, err := parser.consume(IdentifierTP)
	if err != nil {
		return nil, err
	}
	if closingToken.Content() != module.Name() {
		return nil, makeSyntaxError(closingToken, "module identifier mismatch (%q and %q)",
			module.Name(), closingToken.Content())
	}
	_, err = parser.consume(DotTP)
	if err != nil {
		return nil, err
	}
	return module, nil
}

// parseDeclarations handles the declaration section of a scope. The declared
// set spans the whole section so const and var declarations cannot reuse a
// name; parameters are seeded into it for procedure scopes.
func (parser *Parser) parseDeclarations(scope *Scope, allowSubroutines bool) error {
	declared := map[string]bool{}
	for _, symbol := range scope.SymbolTable().Symbols() {
		if symbol.Kind() == ParamSymbolKind {
			declared[symbol.Name()] = true
		}
	}

	for {
		switch parser.scanner.Peek().Type() {
		case ConstTP:
			if err := parser.parseConstDeclaration(scope, declared); err != nil {
				return err
			}
		case VarTP:
			if err := parser.parseVarDeclaration(scope, declared); err != nil {
				return err
			}
		case ProcedureTP, FunctionTP:
			if !allowSubroutines {
				return makeSyntaxError(parser.scanner.Peek(), "nested subroutines are not allowed")
			}
			if err := parser.parseSubroutineDecl(scope); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// varDecl ::= "var" { identList ":" type ";" }
func (parser *Parser) parseVarDeclaration(scope *Scope, declared map[string]bool) error {
	_, err := parser.consume(VarTP)
	if err != nil {
		return err
	}
	for parser.scanner.Peek().Type() == IdentifierTP {
		nameTokens, varType, err := parser.parseVarDecl(scope, declared)
		if err != nil {
			return err
		}
		if hasOpenDim(varType) {
			return makeSyntaxError(nameTokens[0], "open arrays are only allowed in parameter lists")
		}
		for _, nameToken := range nameTokens {
			var symbol *Symbol
			if scope.IsModule() {
				symbol = NewGlobalSymbol(nameToken.Content(), varType)
			} else {
				symbol = NewLocalSymbol(nameToken.Content(), varType)
			}
			if err := scope.SymbolTable().AddSymbol(symbol); err != nil {
				return makeSyntaxError(nameToken, "re-declaration of %q", nameToken.Content())
			}
		}
		_, err = parser.consume(SemiColonTP)
		if err != nil {
			return err
		}
	}
	return nil
}

// constDecl ::= "const" { identList ":" type "=" expression ";" }
//
// The initializer must fold to a compile-time value; it is stored with the
// constant symbol.
func (parser *Parser) parseConstDeclaration(scope *Scope, declared map[string]bool) error {
	_, err := parser.consume(ConstTP)
	if err != nil {
		return err
	}
	for parser.scanner.Peek().Type() == IdentifierTP {
		nameTokens, constType, err := parser.parseVarDecl(scope, declared)
		if err != nil {
			return err
		}
		equalToken, err := parser.consume(RelOpTP)
		if err != nil || equalToken.Content() != "=" {
			if err == nil {
				err = makeSyntaxError(equalToken, "\"=\" expected")
			}
			return err
		}
		expr, err := parser.parseExpression(scope)
		if err != nil {
			return err
		}
		value, ok := expr.Evaluate()
		if !ok {
			return makeSyntaxError(expr.Token(), "constant expression expected")
		}
		if exprType := expr.Type(); exprType == nil || !constType.Match(exprType) {
			return makeSyntaxError(expr.Token(), "constant initializer type mismatch")
		}
		for _, nameToken := range nameTokens {
			symbol := NewConstantSymbol(nameToken.Content(), constType, value)
			if err := scope.SymbolTable().AddSymbol(symbol); err != nil {
				return makeSyntaxError(nameToken, "re-declaration of %q", nameToken.Content())
			}
		}
		_, err = parser.consume(SemiColonTP)
		if err != nil {
			return err
		}
	}
	return nil
}

// parseVarDecl is the common identList ":" type subroutine. It accumulates
// the identifier tokens, checks them against the caller-maintained declared
// set, and finally parses the type.
func (parser *Parser) parseVarDecl(scope *Scope, declared map[string]bool) ([]*Token, *Type, error) {
	var nameTokens []*Token
	for {
		nameToken, err := parser.consume(IdentifierTP)
		if err != nil {
			return nil, nil, err
		}
		if declared[nameToken.Content()] {
			return nil, nil, makeSyntaxError(nameToken, "re-declaration of %q", nameToken.Content())
		}
		declared[nameToken.Content()] = true
		nameTokens = append(nameTokens, nameToken)

		next := parser.scanner.Peek()
		if next.Type() == ColonTP {
			break
		}
		if next.Type() != CommaTP {
			return nil, nil, makeSyntaxError(next, "\":\" or \",\" expected")
		}
		parser.scanner.Get()
	}
	_, err := parser.consume(ColonTP)
	if err != nil {
		return nil, nil, err
	}
	varType, err := parser.parseType(scope)
	if err != nil {
		return nil, nil, err
	}
	return nameTokens, varType, nil
}

// type ::= basetype { "[" [ simpleexpr ] "]" }
//
// Dimension brackets accumulate left-to-right, the type is built right-to-
// left so integer[3][5] becomes array 3 of array 5 of integer. An empty
// bracket yields an open dimension.
func (parser *Parser) parseType(scope *Scope) (*Type, error) {
	tm := parser.comp.TypeManager()
	var baseType *Type

	token := parser.scanner.Get()
	switch token.Type() {
	case BooleanTP:
		baseType = tm.GetBool()
	case CharTP:
		baseType = tm.GetChar()
	case IntegerTP:
		baseType = tm.GetInteger()
	case LongintTP:
		baseType = tm.GetLongint()
	default:
		return nil, makeSyntaxError(token, "base type expected, got %s", token.Name())
	}

	var dims []int64
	for parser.scanner.Peek().Type() == LeftBracketTP {
		parser.scanner.Get()
		if parser.scanner.Peek().Type() == RightBracketTP {
			dims = append(dims, OpenDim)
		} else {
			dimExpr, err := parser.parseSimpleExpr(scope)
			if err != nil {
				return nil, err
			}
			value, ok := dimExpr.Evaluate()
			if !ok {
				return nil, makeSyntaxError(dimExpr.Token(), "constant array dimension expected")
			}
			if value <= 0 {
				return nil, makeSyntaxError(dimExpr.Token(), "array dimension must be positive")
			}
			dims = append(dims, value)
		}
		_, err := parser.consume(RightBracketTP)
		if err != nil {
			return nil, err
		}
	}

	resultType := baseType
	for i := len(dims) - 1; i >= 0; i-- {
		resultType = tm.GetArray(dims[i], resultType)
	}
	return resultType, nil
}

// procDecl ::= "procedure" ident [ formalParam ] ";" (extern | subBody) ident ";"
// funcDecl ::= "function"  ident [ formalParam ] ":" type ";" (extern | subBody) ident ";"
func (parser *Parser) parseSubroutineDecl(scope *Scope) error {
	tm := parser.comp.TypeManager()
	declToken := parser.scanner.Get() // procedure or function
	isFunction := declToken.Type() == FunctionTP

	nameToken, err := parser.consume(IdentifierTP)
	if err != nil {
		return err
	}
	name := nameToken.Content()
	if scope.SymbolTable().FindSymbol(name, AnyScope) != nil {
		return makeSyntaxError(nameToken, "re-declaration of %q", name)
	}

	declared := map[string]bool{}
	var paramTokens []*Token
	var paramTypes []*Type
	if parser.scanner.Peek().Type() == LeftParenTP {
		paramTokens, paramTypes, err = parser.parseFormalParam(scope, declared)
		if err != nil {
			return err
		}
	}

	returnType := tm.GetNull()
	if isFunction {
		_, err = parser.consume(ColonTP)
		if err != nil {
			return err
		}
		returnType, err = parser.parseType(scope)
		if err != nil {
			return err
		}
	}
	_, err = parser.consume(SemiColonTP)
	if err != nil {
		return err
	}

	procSym := NewProcedureSymbol(name, returnType, false)
	if err := scope.SymbolTable().AddSymbol(procSym); err != nil {
		return makeSyntaxError(nameToken, "re-declaration of %q", name)
	}
	sub := NewProcedureScope(declToken, name, scope, procSym)

	// Arrays are passed by reference: a parameter of array type becomes a
	// pointer to that array, open dimensions preserved.
	for i, paramToken := range paramTokens {
		paramType := paramTypes[i]
		if paramType.IsArray() {
			paramType = tm.GetPointer(paramType)
		}
		param := NewParamSymbol(i, paramToken.Content(), paramType)
		procSym.AddParam(param)
		if err := sub.SymbolTable().AddSymbol(param); err != nil {
			return makeSyntaxError(paramToken, "re-declaration of %q", paramToken.Content())
		}
	}

	if parser.scanner.Peek().Type() == ExternTP {
		parser.scanner.Get()
		procSym.external = true
	} else {
		err = parser.parseSubroutineBody(sub)
		if err != nil {
			return err
		}
	}

	closingToken, err := parser.consume(IdentifierTP)
	if err != nil {
		return err
	}
	if closingToken.Content() != name {
		return makeSyntaxError(closingToken, "subroutine identifier mismatch (%q and %q)",
			name, closingToken.Content())
	}
	_, err = parser.consume(SemiColonTP)
	return err
}

// formalParam ::= "(" [ identList ":" type { ";" identList ":" type } ] ")"
func (parser *Parser) parseFormalParam(scope *Scope, declared map[string]bool) ([]*Token, []*Type, error) {
	_, err := parser.consume(LeftParenTP)
	if err != nil {
		return nil, nil, err
	}
	var paramTokens []*Token
	var paramTypes []*Type
	if parser.scanner.Peek().Type() == IdentifierTP {
		for {
			nameTokens, paramType, err := parser.parseVarDecl(scope, declared)
			if err != nil {
				return nil, nil, err
			}
			for _, nameToken := range nameTokens {
				paramTokens = append(paramTokens, nameToken)
				paramTypes = append(paramTypes, paramType)
			}
			if parser.scanner.Peek().Type() == RightParenTP {
				break
			}
			_, err = parser.consume(SemiColonTP)
			if err != nil {
				return nil, nil, err
			}
		}
	}
	_, err = parser.consume(RightParenTP)
	if err != nil {
		return nil, nil, err
	}
	return paramTokens, paramTypes, nil
}

// subBody ::= { constDecl | varDecl } "begin" statSequence "end"
func (parser *Parser) parseSubroutineBody(sub *Scope) error {
	err := parser.parseDeclarations(sub, false)
	if err != nil {
		return err
	}
	_, err = parser.consume(BeginTP)
	if err != nil {
		return err
	}
	statseq, err := parser.parseStatSequence(sub)
	if err != nil {
		return err
	}
	sub.SetStatementSequence(statseq)
	_, err = parser.consume(EndTP)
	return err
}

// statSequence ::= [ statement { ";" statement } ]
func (parser *Parser) parseStatSequence(scope *Scope) (Statement, error) {
	var head, tail Statement
	for {
		switch parser.scanner.Peek().Type() {
		case EndTP, ElseTP, DotTP, EOFTP:
			return head, nil
		}
		statement, err := parser.parseStatement(scope)
		if err != nil {
			return nil, err
		}
		if head == nil {
			head = statement
		} else {
			tail.SetNext(statement)
		}
		tail = statement

		if parser.scanner.Peek().Type() != SemiColonTP {
			return head, nil
		}
		parser.scanner.Get()
	}
}

// statement ::= assignment | subroutineCall | ifStatement | whileStatement
//             | returnStatement
//
// An identifier in statement position is classified by the kind of its
// symbol: procedures start a call, everything else an assignment.
func (parser *Parser) parseStatement(scope *Scope) (Statement, error) {
	token := parser.scanner.Peek()
	switch token.Type() {
	case IfTP:
		return parser.parseIfStatement(scope)
	case WhileTP:
		return parser.parseWhileStatement(scope)
	case ReturnTP:
		return parser.parseReturnStatement(scope)
	case IdentifierTP:
		symbol := scope.SymbolTable().FindSymbol(token.Content(), AnyScope)
		if symbol == nil {
			return nil, makeSyntaxError(token, "undeclared identifier %q", token.Content())
		}
		if symbol.Kind() == ProcedureSymbolKind {
			return parser.parseCallStatement(scope)
		}
		return parser.parseAssignment(scope)
	default:
		return nil, makeSyntaxError(token, "statement expected, got %s", token.Name())
	}
}

// assignment ::= qualident ":=" expression
func (parser *Parser) parseAssignment(scope *Scope) (Statement, error) {
	lhs, err := parser.parseQualident(scope)
	if err != nil {
		return nil, err
	}
	assignToken, err := parser.consume(AssignTP)
	if err != nil {
		return nil, err
	}
	rhs, err := parser.parseExpression(scope)
	if err != nil {
		return nil, err
	}
	return NewAssignStatement(parser.comp, assignToken, lhs, rhs), nil
}

func (parser *Parser) parseCallStatement(scope *Scope) (Statement, error) {
	callToken := parser.scanner.Peek()
	call, err := parser.parseFunctionCall(scope)
	if err != nil {
		return nil, err
	}
	return NewCallStatement(parser.comp, callToken, call), nil
}

// subroutineCall ::= ident "(" [ expression { "," expression } ] ")"
func (parser *Parser) parseFunctionCall(scope *Scope) (*CallExpr, error) {
	nameToken, err := parser.consume(IdentifierTP)
	if err != nil {
		return nil, err
	}
	symbol := scope.SymbolTable().FindSymbol(nameToken.Content(), AnyScope)
	if symbol == nil {
		return nil, makeSyntaxError(nameToken, "undeclared subroutine %q", nameToken.Content())
	}
	if symbol.Kind() != ProcedureSymbolKind {
		return nil, makeSyntaxError(nameToken, "%q is not a procedure or function", nameToken.Content())
	}
	call := NewCallExpr(parser.comp, nameToken, symbol)

	_, err = parser.consume(LeftParenTP)
	if err != nil {
		return nil, err
	}
	for parser.scanner.Peek().Type() != RightParenTP {
		arg, err := parser.parseExpression(scope)
		if err != nil {
			return nil, err
		}
		call.AddArg(arg)
		if parser.scanner.Peek().Type() != CommaTP {
			break
		}
		parser.scanner.Get()
	}
	_, err = parser.consume(RightParenTP)
	if err != nil {
		return nil, err
	}
	return call, nil
}

// ifStatement ::= "if" "(" expression ")" "then" statSequence
//                 [ "else" statSequence ] "end"
func (parser *Parser) parseIfStatement(scope *Scope) (Statement, error) {
	ifToken, err := parser.consume(IfTP)
	if err != nil {
		return nil, err
	}
	_, err = parser.consume(LeftParenTP)
	if err != nil {
		return nil, err
	}
	cond, err := parser.parseExpression(scope)
	if err != nil {
		return nil, err
	}
	_, err = parser.consume(RightParenTP)
	if err != nil {
		return nil, err
	}
	_, err = parser.consume(ThenTP)
	if err != nil {
		return nil, err
	}
	ifBody, err := parser.parseStatSequence(scope)
	if err != nil {
		return nil, err
	}
	var elseBody Statement
	if parser.scanner.Peek().Type() == ElseTP {
		parser.scanner.Get()
		elseBody, err = parser.parseStatSequence(scope)
		if err != nil {
			return nil, err
		}
	}
	_, err = parser.consume(EndTP)
	if err != nil {
		return nil, err
	}
	return NewIfStatement(parser.comp, ifToken, cond, ifBody, elseBody), nil
}

// whileStatement ::= "while" "(" expression ")" "do" statSequence "end"
func (parser *Parser) parseWhileStatement(scope *Scope) (Statement, error) {
	whileToken, err := parser.consume(WhileTP)
	if err != nil {
		return nil, err
	}
	_, err = parser.consume(LeftParenTP)
	if err != nil {
		return nil, err
	}
	cond, err := parser.parseExpression(scope)
	if err != nil {
		return nil, err
	}
	_, err = parser.consume(RightParenTP)
	if err != nil {
		return nil, err
	}
	_, err = parser.consume(DoTP)
	if err != nil {
		return nil, err
	}
	body, err := parser.parseStatSequence(scope)
	if err != nil {
		return nil, err
	}
	_, err = parser.consume(EndTP)
	if err != nil {
		return nil, err
	}
	return NewWhileStatement(parser.comp, whileToken, cond, body), nil
}

// returnStatement ::= "return" [ expression ]
func (parser *Parser) parseReturnStatement(scope *Scope) (Statement, error) {
	returnToken, err := parser.consume(ReturnTP)
	if err != nil {
		return nil, err
	}
	var expr Expression
	if isExpressionFirst(parser.scanner.Peek().Type()) {
		expr, err = parser.parseExpression(scope)
		if err != nil {
			return nil, err
		}
	}
	return NewReturnStatement(parser.comp, returnToken, scope, expr), nil
}

func hasOpenDim(t *Type) bool {
	for it := t; it.IsArray(); it = it.Base() {
		if it.NElem() == OpenDim {
			return true
		}
	}
	return false
}

func isExpressionFirst(tp TokenType) bool {
	switch tp {
	case PlusMinusTP, IdentifierTP, NumberTP, BoolConstTP, CharConstTP,
		StringConstTP, LeftParenTP, NotTP:
		return true
	}
	return false
}

// expression ::= simpleexpr [ relOp simpleexpr ]
func (parser *Parser) parseExpression(scope *Scope) (Expression, error) {
	left, err := parser.parseSimpleExpr(scope)
	if err != nil {
		return nil, err
	}
	if parser.scanner.Peek().Type() != RelOpTP {
		return left, nil
	}
	relToken := parser.scanner.Get()
	right, err := parser.parseSimpleExpr(scope)
	if err != nil {
		return nil, err
	}
	var relop Operation
	switch relToken.Content() {
	case "=":
		relop = EqualOp
	case "#":
		relop = NotEqualOp
	case "<":
		relop = LessThanOp
	case "<=":
		relop = LessEqualOp
	case ">":
		relop = BiggerThanOp
	case ">=":
		relop = BiggerEqualOp
	default:
		return nil, makeSyntaxError(relToken, "invalid relation %s", relToken.Name())
	}
	return NewBinaryExpr(parser.comp, relToken, relop, left, right), nil
}

// simpleexpr ::= [ "+"|"-" ] term { ("+"|"-"|"||") term }
func (parser *Parser) parseSimpleExpr(scope *Scope) (Expression, error) {
	var signToken *Token
	signOp := PosOp
	if parser.scanner.Peek().Type() == PlusMinusTP {
		signToken = parser.scanner.Get()
		if signToken.Content() == "-" {
			signOp = NegOp
		}
	}

	expr, err := parser.parseTerm(scope)
	if err != nil {
		return nil, err
	}
	if signToken != nil {
		expr = NewUnaryExpr(parser.comp, signToken, signOp, expr)
	}

	for {
		var op Operation
		switch parser.scanner.Peek().Type() {
		case PlusMinusTP:
			opToken := parser.scanner.Get()
			op = AddOp
			if opToken.Content() == "-" {
				op = SubOp
			}
			right, err := parser.parseTerm(scope)
			if err != nil {
				return nil, err
			}
			expr = NewBinaryExpr(parser.comp, opToken, op, expr, right)
		case OrTP:
			opToken := parser.scanner.Get()
			right, err := parser.parseTerm(scope)
			if err != nil {
				return nil, err
			}
			expr = NewBinaryExpr(parser.comp, opToken, OrOp, expr, right)
		default:
			return expr, nil
		}
	}
}

// term ::= factor { ("*"|"/"|"&&") factor }
func (parser *Parser) parseTerm(scope *Scope) (Expression, error) {
	expr, err := parser.parseFactor(scope)
	if err != nil {
		return nil, err
	}
	for {
		var op Operation
		switch parser.scanner.Peek().Type() {
		case MulDivTP:
			opToken := parser.scanner.Get()
			op = MulOp
			if opToken.Content() == "/" {
				op = DivOp
			}
			right, err := parser.parseFactor(scope)
			if err != nil {
				return nil, err
			}
			expr = NewBinaryExpr(parser.comp, opToken, op, expr, right)
		case AndTP:
			opToken := parser.scanner.Get()
			right, err := parser.parseFactor(scope)
			if err != nil {
				return nil, err
			}
			expr = NewBinaryExpr(parser.comp, opToken, AndOp, expr, right)
		default:
			return expr, nil
		}
	}
}

// factor ::= qualident | number | boolean | char | string | "(" expression ")"
//          | subroutineCall | "!" factor
func (parser *Parser) parseFactor(scope *Scope) (Expression, error) {
	tm := parser.comp.TypeManager()
	token := parser.scanner.Peek()
	switch token.Type() {
	case NumberTP:
		return parser.parseNumber()
	case LeftParenTP:
		parser.scanner.Get()
		expr, err := parser.parseExpression(scope)
		if err != nil {
			return nil, err
		}
		_, err = parser.consume(RightParenTP)
		if err != nil {
			return nil, err
		}
		expr.SetParenthesized(true)
		return expr, nil
	case BoolConstTP:
		parser.scanner.Get()
		value := int64(0)
		if token.Content() == "true" {
			value = 1
		}
		return NewConstExpr(parser.comp, token, tm.GetBool(), value), nil
	case CharConstTP:
		parser.scanner.Get()
		value := int64(0)
		if len(token.Content()) > 0 {
			value = int64(token.Content()[0])
		}
		return NewConstExpr(parser.comp, token, tm.GetChar(), value), nil
	case StringConstTP:
		parser.scanner.Get()
		return NewStringConstExpr(parser.comp, token, token.Content(), scope)
	case IdentifierTP:
		symbol := scope.SymbolTable().FindSymbol(token.Content(), AnyScope)
		if symbol == nil {
			return nil, makeSyntaxError(token, "undeclared identifier %q", token.Content())
		}
		if symbol.Kind() == ProcedureSymbolKind {
			return parser.parseFunctionCall(scope)
		}
		return parser.parseQualident(scope)
	case NotTP:
		notToken := parser.scanner.Get()
		operand, err := parser.parseFactor(scope)
		if err != nil {
			return nil, err
		}
		return NewUnaryExpr(parser.comp, notToken, NotOp, operand), nil
	default:
		return nil, makeSyntaxError(token, "factor expected, got %s", token.Name())
	}
}

// number ::= digit { digit } [ "L" ]
func (parser *Parser) parseNumber() (Expression, error) {
	tm := parser.comp.TypeManager()
	token, err := parser.consume(NumberTP)
	if err != nil {
		return nil, err
	}
	content := token.Content()
	numberType := tm.GetInteger()
	if strings.HasSuffix(content, "L") {
		numberType = tm.GetLongint()
		content = strings.TrimSuffix(content, "L")
	}
	value, err := strconv.ParseInt(content, 10, 64)
	if err != nil {
		return nil, makeSyntaxError(token, "invalid number %q", token.Content())
	}
	return NewConstExpr(parser.comp, token, numberType, value), nil
}

// qualident ::= ident { "[" expression "]" }
func (parser *Parser) parseQualident(scope *Scope) (Expression, error) {
	nameToken, err := parser.consume(IdentifierTP)
	if err != nil {
		return nil, err
	}
	symbol := scope.SymbolTable().FindSymbol(nameToken.Content(), AnyScope)
	if symbol == nil {
		return nil, makeSyntaxError(nameToken, "undeclared identifier %q", nameToken.Content())
	}

	if parser.scanner.Peek().Type() != LeftBracketTP {
		return NewDesignatorExpr(parser.comp, nameToken, symbol), nil
	}

	arrayDesignator := NewArrayDesignatorExpr(parser.comp, nameToken, symbol)
	for parser.scanner.Peek().Type() == LeftBracketTP {
		parser.scanner.Get()
		index, err := parser.parseExpression(scope)
		if err != nil {
			return nil, err
		}
		arrayDesignator.AddIndex(index)
		_, err = parser.consume(RightBracketTP)
		if err != nil {
			return nil, err
		}
	}
	arrayDesignator.IndicesComplete()
	return arrayDesignator, nil
}
