package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanner_Tokenize(t *testing.T) {
	src := `
	// a comment
	module Test;
	var i: integer;
	begin
		i := i + 41 / 2;
		if (i <= 20L) then WriteStr("done\n") end
	end Test.
	`
	scanner, err := NewScanner(src)
	assert.Nil(t, err)

	expected := []struct {
		tp      TokenType
		content string
	}{
		{ModuleTP, "module"}, {IdentifierTP, "Test"}, {SemiColonTP, ";"},
		{VarTP, "var"}, {IdentifierTP, "i"}, {ColonTP, ":"}, {IntegerTP, "integer"}, {SemiColonTP, ";"},
		{BeginTP, "begin"},
		{IdentifierTP, "i"}, {AssignTP, ":="}, {IdentifierTP, "i"}, {PlusMinusTP, "+"},
		{NumberTP, "41"}, {MulDivTP, "/"}, {NumberTP, "2"}, {SemiColonTP, ";"},
		{IfTP, "if"}, {LeftParenTP, "("}, {IdentifierTP, "i"}, {RelOpTP, "<="},
		{NumberTP, "20L"}, {RightParenTP, ")"}, {ThenTP, "then"},
		{IdentifierTP, "WriteStr"}, {LeftParenTP, "("}, {StringConstTP, "done\n"},
		{RightParenTP, ")"}, {EndTP, "end"},
		{EndTP, "end"}, {IdentifierTP, "Test"}, {DotTP, "."},
	}
	for _, exp := range expected {
		token := scanner.Get()
		assert.Equal(t, exp.tp, token.Type(), "content: %s", token.Content())
		assert.Equal(t, exp.content, token.Content())
	}
	assert.Equal(t, EOFTP, scanner.Get().Type())
}

func TestScanner_PeekDoesNotConsume(t *testing.T) {
	scanner, err := NewScanner("module M;")
	assert.Nil(t, err)
	assert.Equal(t, ModuleTP, scanner.Peek().Type())
	assert.Equal(t, ModuleTP, scanner.Peek().Type())
	assert.Equal(t, ModuleTP, scanner.Get().Type())
	assert.Equal(t, IdentifierTP, scanner.Peek().Type())
}

func TestScanner_Positions(t *testing.T) {
	scanner, err := NewScanner("module M;\n  x := 1")
	assert.Nil(t, err)
	module := scanner.Get()
	assert.Equal(t, 1, module.Line())
	assert.Equal(t, 1, module.Pos())
	scanner.Get() // M
	scanner.Get() // ;
	x := scanner.Get()
	assert.Equal(t, 2, x.Line())
	assert.Equal(t, 3, x.Pos())
}

func TestScanner_CharConstants(t *testing.T) {
	testDatas := []struct {
		data     string
		expected string
	}{
		{`'a'`, "a"},
		{`'\n'`, "\n"},
		{`'\t'`, "\t"},
		{`'\0'`, "\x00"},
		{`'\''`, "'"},
		{`'\\'`, `\`},
	}
	for _, testData := range testDatas {
		scanner, err := NewScanner(testData.data)
		assert.Nil(t, err)
		token := scanner.Get()
		assert.Equal(t, CharConstTP, token.Type())
		assert.Equal(t, testData.expected, token.Content())
	}
}

func TestScanner_Errors(t *testing.T) {
	testDatas := []string{
		`"unterminated`,
		`'x`,
		`a & b`,
		`a | b`,
		`"bad escape \q"`,
		`@`,
	}
	for _, testData := range testDatas {
		_, err := NewScanner(testData)
		assert.NotNil(t, err, "data: %s", testData)
	}
}
