package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokens(src string) []Token {
	l := New(src)
	var out []Token
	for {
		tok := l.Next()
		out = append(out, tok)
		if tok.Type == TokenEOF {
			return out
		}
	}
}

func TestPlainText(t *testing.T) {
	toks := tokens("hello world")
	require.Len(t, toks, 2)
	assert.Equal(t, TokenText, toks[0].Type)
	assert.Equal(t, "hello world", toks[0].Text)
	assert.Equal(t, TokenEOF, toks[1].Type)
}

func TestVarScopeSelfClose(t *testing.T) {
	toks := tokens(`pre<=v/>post`)
	require.Len(t, toks, 4)
	assert.Equal(t, TokenText, toks[0].Type)
	assert.Equal(t, "pre", toks[0].Text)
	assert.Equal(t, TokenOpenVar, toks[1].Type)
	assert.Equal(t, "v", toks[1].Name)
	assert.True(t, toks[1].SelfClose)
	assert.Equal(t, TokenText, toks[2].Type)
	assert.Equal(t, "post", toks[2].Text)
}

func TestVarScopePaired(t *testing.T) {
	toks := tokens(`<=xs><:/>,</=xs>`)
	require.Len(t, toks, 5)
	assert.Equal(t, TokenOpenVar, toks[0].Type)
	assert.Equal(t, "xs", toks[0].Name)
	assert.False(t, toks[0].SelfClose)
	assert.Equal(t, TokenOpenCtl, toks[1].Type)
	assert.Equal(t, "", toks[1].Name)
	assert.True(t, toks[1].SelfClose)
	assert.Equal(t, TokenText, toks[2].Type)
	assert.Equal(t, ",", toks[2].Text)
	assert.Equal(t, TokenCloseVar, toks[3].Type)
	assert.Equal(t, "xs", toks[3].Name)
}

func TestAttributes(t *testing.T) {
	toks := tokens(`<=xs first="[<:/>]" last="(<:/>)" code="<<:/>>"/>`)
	require.Len(t, toks, 2)
	open := toks[0]
	require.Len(t, open.Attrs, 3)
	assert.Equal(t, "first", open.Attrs[0].Key)
	assert.Equal(t, "[<:/>]", open.Attrs[0].Value)
	assert.True(t, open.Attrs[0].Quoted)
	assert.Equal(t, "code", open.Attrs[2].Key)
	assert.Equal(t, "<<:/>>", open.Attrs[2].Value)
}

func TestBareAttribute(t *testing.T) {
	toks := tokens(`<:for :inherit x="1"></:for>`)
	open := toks[0]
	require.Len(t, open.Attrs, 2)
	assert.Equal(t, ":inherit", open.Attrs[0].Key)
	assert.False(t, open.Attrs[0].HasValue)
	assert.Equal(t, "x", open.Attrs[1].Key)
	assert.Equal(t, "1", open.Attrs[1].Value)
}

func TestComment(t *testing.T) {
	toks := tokens(`a<#>b</#>c<# skip />d`)
	var types []TokenType
	for _, tk := range toks {
		types = append(types, tk.Type)
	}
	assert.Equal(t, []TokenType{
		TokenText, TokenOpenComment, TokenText, TokenCloseComment,
		TokenText, TokenOpenComment, TokenText, TokenEOF,
	}, types)
}

func TestMalformedOpenerRecovers(t *testing.T) {
	toks := tokens(`<=bad attr unterminated no close tag at all`)
	require.NotEmpty(t, toks)
	assert.Equal(t, TokenError, toks[0].Type)
	assert.Equal(t, TokenEOF, toks[len(toks)-1].Type)
}

func TestStrayAngleBracketIsText(t *testing.T) {
	toks := tokens(`a < b`)
	require.Len(t, toks, 2)
	assert.Equal(t, "a < b", toks[0].Text)
}

func TestQuotedEscapes(t *testing.T) {
	toks := tokens(`<=v label="say \"hi\" and \\bye"/>`)
	open := toks[0]
	require.Len(t, open.Attrs, 1)
	assert.Equal(t, `say "hi" and \bye`, open.Attrs[0].Value)
}

func TestRawCodeFragment(t *testing.T) {
	toks := tokens(`A<: die "boom" />B`)
	require.Len(t, toks, 4)
	assert.Equal(t, TokenOpenCtl, toks[1].Type)
	assert.Equal(t, "", toks[1].Name)
	assert.True(t, toks[1].SelfClose)
	assert.Equal(t, `die "boom"`, toks[1].Text)
}

func TestRawFragmentWithListLiteral(t *testing.T) {
	toks := tokens(`<:[1,2,3]/>`)
	require.Len(t, toks, 2)
	assert.Equal(t, "[1,2,3]", toks[0].Text)
	assert.True(t, toks[0].SelfClose)
}
