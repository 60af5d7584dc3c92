package compiler

import "fmt"

// SnuPL/2 has those elements:
// * KeyWord: module, begin, end, const, var, procedure, function, extern, if, then,
//   else, while, do, return, boolean, char, integer, longint, true, false.
// * Symbol: := + - * / && || ! = # < <= > >= ( ) [ ] , : ; .
// * Constant: number (with optional 'L' suffix), character ('x'), string ("xxx")
// * Identifier: letters, digits, underscore, not starting with a digit.
// * Comment: // until end of line.

type TokenType int

const (
	ModuleTP    TokenType = iota // module
	BeginTP                      // begin
	EndTP                        // end
	ConstTP                      // const
	VarTP                        // var
	ProcedureTP                  // procedure
	FunctionTP                   // function
	ExternTP                     // extern
	IfTP                         // if
	ThenTP                       // then
	ElseTP                       // else
	WhileTP                      // while
	DoTP                         // do
	ReturnTP                     // return
	BooleanTP                    // boolean
	CharTP                       // char
	IntegerTP                    // integer
	LongintTP                    // longint
	BoolConstTP                  // true, false
	NumberTP                     // 1010, 1010L
	CharConstTP                  // 'c'
	StringConstTP                // "xxx"
	IdentifierTP                 // varA
	PlusMinusTP                  // + -
	MulDivTP                     // * /
	AndTP                        // &&
	OrTP                         // ||
	NotTP                        // !
	RelOpTP                      // = # < <= > >=
	AssignTP                     // :=
	SemiColonTP                  // ;
	ColonTP                      // :
	CommaTP                      // ,
	DotTP                        // .
	LeftParenTP                  // (
	RightParenTP                 // )
	LeftBracketTP                // [
	RightBracketTP               // ]
	EOFTP                        // end of input
)

// keyWordTokenTPMap is the mapping from keyWord to the corresponding TokenTP.
var keyWordTokenTPMap = map[string]TokenType{
	"module":    ModuleTP,
	"begin":     BeginTP,
	"end":       EndTP,
	"const":     ConstTP,
	"var":       VarTP,
	"procedure": ProcedureTP,
	"function":  FunctionTP,
	"extern":    ExternTP,
	"if":        IfTP,
	"then":      ThenTP,
	"else":      ElseTP,
	"while":     WhileTP,
	"do":        DoTP,
	"return":    ReturnTP,
	"boolean":   BooleanTP,
	"char":      CharTP,
	"integer":   IntegerTP,
	"longint":   LongintTP,
	"true":      BoolConstTP,
	"false":     BoolConstTP,
}

var tokenTPNameMap = map[TokenType]string{
	ModuleTP:       "module",
	BeginTP:        "begin",
	EndTP:          "end",
	ConstTP:        "const",
	VarTP:          "var",
	ProcedureTP:    "procedure",
	FunctionTP:     "function",
	ExternTP:       "extern",
	IfTP:           "if",
	ThenTP:         "then",
	ElseTP:         "else",
	WhileTP:        "while",
	DoTP:           "do",
	ReturnTP:       "return",
	BooleanTP:      "boolean",
	CharTP:         "char",
	IntegerTP:      "integer",
	LongintTP:      "longint",
	BoolConstTP:    "boolean constant",
	NumberTP:       "number",
	CharConstTP:    "character constant",
	StringConstTP:  "string constant",
	IdentifierTP:   "identifier",
	PlusMinusTP:    "'+' or '-'",
	MulDivTP:       "'*' or '/'",
	AndTP:          "'&&'",
	OrTP:           "'||'",
	NotTP:          "'!'",
	RelOpTP:        "relational operator",
	AssignTP:       "':='",
	SemiColonTP:    "';'",
	ColonTP:        "':'",
	CommaTP:        "','",
	DotTP:          "'.'",
	LeftParenTP:    "'('",
	RightParenTP:   "')'",
	LeftBracketTP:  "'['",
	RightBracketTP: "']'",
	EOFTP:          "end of input",
}

func tokenTPName(tp TokenType) string {
	name, ok := tokenTPNameMap[tp]
	if !ok {
		return fmt.Sprintf("token(%d)", int(tp))
	}
	return name
}

// Token is a single lexical element. content holds the unescaped text for
// character and string constants and the literal text otherwise.
type Token struct {
	content string
	line    int
	pos     int
	tp      TokenType
}

func (token *Token) Type() TokenType {
	return token.tp
}

func (token *Token) Content() string {
	return token.content
}

func (token *Token) Line() int {
	return token.line
}

func (token *Token) Pos() int {
	return token.pos
}

func (token *Token) Name() string {
	switch token.tp {
	case IdentifierTP, NumberTP, PlusMinusTP, MulDivTP, RelOpTP:
		return "'" + token.content + "'"
	case StringConstTP:
		return "\"" + escapeString(token.content) + "\""
	case CharConstTP:
		return "'" + escapeString(token.content) + "'"
	default:
		return tokenTPName(token.tp)
	}
}

// escapeString renders the unescaped content of a character or string constant
// back into source form. Also used when emitting .asciz data.
func escapeString(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			out = append(out, '\\', 'n')
		case '\t':
			out = append(out, '\\', 't')
		case 0:
			out = append(out, '\\', '0')
		case '"':
			out = append(out, '\\', '"')
		case '\'':
			out = append(out, '\\', '\'')
		case '\\':
			out = append(out, '\\', '\\')
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
