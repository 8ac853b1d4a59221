package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLiteralText(t *testing.T) {
	tree := Parse("hello world")
	require.Len(t, tree.Root, 1)
	txt, ok := tree.Root[0].(*TextNode)
	require.True(t, ok)
	assert.Equal(t, "hello world", txt.Value)
	assert.Empty(t, tree.Diagnostics)
}

func TestParseEmptyTemplate(t *testing.T) {
	tree := Parse("")
	assert.Empty(t, tree.Root)
	assert.Empty(t, tree.Diagnostics)
}

func TestParseVarScopeSelfClose(t *testing.T) {
	tree := Parse(`pre<=v/>post`)
	require.Len(t, tree.Root, 3)
	vs, ok := tree.Root[1].(*VarScopeNode)
	require.True(t, ok)
	assert.Equal(t, "v", vs.Name)
	assert.Nil(t, vs.Body)
}

func TestParseVarScopeWithBareCode(t *testing.T) {
	tree := Parse(`<=xs><:/>,</=xs>`)
	require.Len(t, tree.Root, 1)
	vs := tree.Root[0].(*VarScopeNode)
	require.Len(t, vs.Body, 2)
	code, ok := vs.Body[0].(*CodeNode)
	require.True(t, ok)
	assert.Equal(t, "", code.Fragment)
	txt := vs.Body[1].(*TextNode)
	assert.Equal(t, ",", txt.Value)
}

func TestParseVarScopeAttrsAreSubParsed(t *testing.T) {
	tree := Parse(`<=xs first="[<:/>]" last="(<:/>)" code="<<:/>>"/>`)
	vs := tree.Root[0].(*VarScopeNode)
	require.Len(t, vs.Attrs, 3)
	first := vs.Attrs[0]
	assert.Equal(t, "first", first.Key)
	require.Len(t, first.Value, 3)
	assert.Equal(t, "[", first.Value[0].(*TextNode).Value)
	_, ok := first.Value[1].(*CodeNode)
	assert.True(t, ok)
	assert.Equal(t, "]", first.Value[2].(*TextNode).Value)
}

func TestParseFor(t *testing.T) {
	src := `<:for y="<:[1,2,3]/>" x="<:[10,20]/>"><:code><=x/>-<=y/>;</:code></:for>`
	tree := Parse(src)
	require.Len(t, tree.Root, 1)
	fn, ok := tree.Root[0].(*ForNode)
	require.True(t, ok)
	require.Len(t, fn.Bindings, 2)
	assert.Equal(t, "y", fn.Bindings[0].Key)
	assert.Equal(t, "x", fn.Bindings[1].Key)
	require.Len(t, fn.Body, 1)
	sec, ok := fn.Body[0].(*SectionNode)
	require.True(t, ok)
	assert.Equal(t, "code", sec.Tag)
}

func TestParseInclude(t *testing.T) {
	tree := Parse(`<:include header.tmpl x="1"/>`)
	inc := tree.Root[0].(*IncludeNode)
	require.Len(t, inc.Name, 1)
	assert.Equal(t, "header.tmpl", inc.Name[0].(*TextNode).Value)
	require.Len(t, inc.Bindings, 1)
	assert.Equal(t, "x", inc.Bindings[0].Key)
}

func TestParseCondCases(t *testing.T) {
	src := `<:cond v><:case cond="a">A</:case><:case cond="b">B</:case></:cond>`
	tree := Parse(src)
	cond := tree.Root[0].(*CondNode)
	assert.Equal(t, []string{"v"}, cond.VarNames)
	require.Len(t, cond.Cases, 2)
	assert.Equal(t, "a", cond.Cases[0].CondFragment)
	assert.Equal(t, "A", cond.Cases[0].Body[0].(*TextNode).Value)
}

func TestParseComment(t *testing.T) {
	tree := Parse(`a<#>b</#>c<# skip/>d`)
	require.Len(t, tree.Root, 5)
	_, ok := tree.Root[1].(*CommentNode)
	assert.True(t, ok)
	_, ok = tree.Root[3].(*CommentNode)
	assert.True(t, ok)
}

func TestParseRawCodeFragment(t *testing.T) {
	tree := Parse(`A<: die "boom" />B`)
	require.Len(t, tree.Root, 3)
	code := tree.Root[1].(*CodeNode)
	assert.Equal(t, `die "boom"`, code.Fragment)
}

func TestParseSetInsideFor(t *testing.T) {
	src := `<:for xs="<:[1,2]/>"><:set total>9</:set><=xs/></:for>`
	tree := Parse(src)
	fn := tree.Root[0].(*ForNode)
	require.Len(t, fn.Bindings, 2)
	assert.Equal(t, "xs", fn.Bindings[0].Key)
	assert.Equal(t, "total", fn.Bindings[1].Key)
	require.Len(t, fn.Body, 1) // <:set> stripped out of the render body
}

func TestParseDeterminism(t *testing.T) {
	src := `pre<=v type="scalar,array" map="<:/>"><:pre>[</:pre>body<:post>]</:post></=v>post`
	t1 := Parse(src)
	t2 := Parse(src)
	assert.Equal(t, t1.Fingerprint, t2.Fingerprint)
	assert.Equal(t, len(t1.Root), len(t2.Root))
}

func TestMalformedTagRecovers(t *testing.T) {
	tree := Parse(`ok<=unterminated attr no close`)
	require.NotEmpty(t, tree.Diagnostics)
	// the parser keeps making progress and terminates
	require.NotEmpty(t, tree.Root)
}
