package compiler

import (
	"fmt"
	"strings"
)

// Compilation owns the state shared by all stages of one compile: the type
// manager, the AST node-id counter and the string-constant counter. Nothing
// is process-global, so independent compilations can run in parallel.
type Compilation struct {
	tm         *TypeManager
	nextNodeID int
	nextStrID  int
}

func NewCompilation() *Compilation {
	return &Compilation{tm: NewTypeManager()}
}

func (comp *Compilation) TypeManager() *TypeManager {
	return comp.tm
}

func (comp *Compilation) nodeID() int {
	comp.nextNodeID++
	return comp.nextNodeID
}

func (comp *Compilation) stringSymbolName() string {
	comp.nextStrID++
	return fmt.Sprintf("_str_%d", comp.nextStrID)
}

// SyntaxError and SemanticError carry the offending token so drivers can
// report source positions. A nil token means the position is unknown.
type SyntaxError struct {
	Token   *Token
	Message string
}

func (e *SyntaxError) Error() string {
	return formatDiagnostic("syntax", e.Token, e.Message)
}

type SemanticError struct {
	Token   *Token
	Message string
}

func (e *SemanticError) Error() string {
	return formatDiagnostic("semantic", e.Token, e.Message)
}

func formatDiagnostic(kind string, token *Token, message string) string {
	if token == nil {
		return fmt.Sprintf("%s error : %s", kind, message)
	}
	return fmt.Sprintf("%s error at %d:%d : %s", kind, token.Line(), token.Pos(), message)
}

func makeSyntaxError(token *Token, format string, args ...interface{}) error {
	return &SyntaxError{Token: token, Message: fmt.Sprintf(format, args...)}
}

func makeSemanticError(token *Token, format string, args ...interface{}) error {
	return &SemanticError{Token: token, Message: fmt.Sprintf(format, args...)}
}

// Compile translates one SnuPL/2 source text into AMD64 assembly in GNU
// assembler AT&T syntax. The first syntactic, semantic or code generation
// error aborts the compile.
func Compile(src string) (string, error) {
	module, err := CompileToTac(src)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	backend := NewBackendAMD64(&out)
	if err := backend.Emit(module); err != nil {
		return "", err
	}
	return out.String(), nil
}

// CompileToTac runs parsing, type checking and lowering and returns the
// module scope with a populated code block per scope.
func CompileToTac(src string) (*Scope, error) {
	parser := NewParser(src)
	module := parser.Parse()
	if parser.HasError() {
		return nil, makeSyntaxError(parser.ErrorToken(), "%s", parser.ErrorMessage())
	}

	if err := TypeCheck(module); err != nil {
		return nil, err
	}

	GenerateTac(module)
	return module, nil
}

// DumpTac renders the TAC of every scope, subscopes first, module last.
func DumpTac(module *Scope) string {
	var out strings.Builder
	for _, child := range module.Children() {
		out.WriteString(child.CodeBlock().String())
		out.WriteString("\n")
	}
	out.WriteString(module.CodeBlock().String())
	return out.String()
}
