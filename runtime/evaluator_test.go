package runtime

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipreport/tagtmpl/cache"
	"github.com/zipreport/tagtmpl/loader"
	"github.com/zipreport/tagtmpl/parser"
	"github.com/zipreport/tagtmpl/value"
)

// noopErrors never aborts: every fragment error substitutes an empty
// string, matching a "warn"-style policy without the logging side effect.
// Parse diagnostics are discarded — these tests assert on rendered output,
// not on the error-reporter's log.
type noopErrors struct{}

func (noopErrors) HandleFragmentError(err error) (value.Value, bool) {
	return value.Scalar(""), false
}

func (noopErrors) ReportParseDiagnostics([]parser.Diagnostic) {}

// mapLoader resolves include names against an in-memory file set.
type mapLoader struct{ files map[string]string }

func (m mapLoader) Resolve(name string, _ []string) ([]byte, error) {
	if s, ok := m.files[name]; ok {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("mapLoader: %q not found", name)
}

func newTestEvaluator(ld loader.Loader) *Evaluator {
	return New(cache.New(10000, 5000), ld, nil, "test-ns", false, noopErrors{})
}

func run(t *testing.T, e *Evaluator, src string, params map[string]value.Value) string {
	t.Helper()
	tree := parser.Parse(src)
	out, err := e.Evaluate(tree, params, nil)
	require.NoError(t, err)
	return out
}

func scalars(ss ...string) []value.Value {
	out := make([]value.Value, len(ss))
	for i, s := range ss {
		out[i] = value.Scalar(s)
	}
	return out
}

// Scenario 1: pre<=v/>post with v="X" -> preXpost.
func TestScenario1BareVarScope(t *testing.T) {
	e := newTestEvaluator(nil)
	out := run(t, e, `pre<=v/>post`, map[string]value.Value{"v": value.Scalar("X")})
	assert.Equal(t, "preXpost", out)
}

// Scenario 2: <=xs><:/>,</=xs> with xs=["a","b","c"] -> a,b,c,.
func TestScenario2VarScopeBareCodeBody(t *testing.T) {
	e := newTestEvaluator(nil)
	out := run(t, e, `<=xs><:/>,</=xs>`, map[string]value.Value{"xs": value.List(scalars("a", "b", "c"))})
	assert.Equal(t, "a,b,c,", out)
}

// Scenario 3: <=xs first="[<:/>]" last="(<:/>)" code="<<:/>>"/> over 4
// elements -> [a]<b><c>(d).
func TestScenario3FirstLastCode(t *testing.T) {
	e := newTestEvaluator(nil)
	src := `<=xs first="[<:/>]" last="(<:/>)" code="<<:/>>"/>`
	out := run(t, e, src, map[string]value.Value{"xs": value.List(scalars("a", "b", "c", "d"))})
	assert.Equal(t, "[a]<b><c>(d)", out)
}

// Scenario 4: nested list bindings Cartesian-expand with the last-declared
// binding (x) varying slowest and the first-declared (y) varying fastest —
// the only ordering consistent with the literal expected output.
func TestScenario4ForCartesianProduct(t *testing.T) {
	e := newTestEvaluator(nil)
	src := `<:for y="<:[1,2,3]/>" x="<:[10,20]/>"><:code><=x/>-<=y/>;</:code></:for>`
	out := run(t, e, src, nil)
	assert.Equal(t, "10-1;10-2;10-3;20-1;20-2;20-3;", out)
}

// I5: type= gates VarScope emission by classification.
func TestTypeGatedEmission(t *testing.T) {
	e := newTestEvaluator(nil)

	out := run(t, e, `<=v type="scalar"><:/></=v>`, map[string]value.Value{"v": value.Scalar("hi")})
	assert.Equal(t, "hi", out)

	out = run(t, e, `<=v type="array"><:/></=v>`, map[string]value.Value{"v": value.Scalar("hi")})
	assert.Equal(t, "", out)

	out = run(t, e, `<=v type="scalar,empty"><:/></=v>`, map[string]value.Value{})
	assert.Equal(t, "", out)
}

// I6: attribute-form grep/map apply before child-section forms, each in
// their own textual/source order.
func TestListTransformOrder(t *testing.T) {
	e := newTestEvaluator(nil)
	// Attribute-form map self-concatenates each value first ("11","22",
	// "33"); the child <:map> section then appends "!" to those results.
	src := `<=xs map="<: v + v />"><:map><: v + "!" /></:map><:/>,</=xs>`
	out := run(t, e, src, map[string]value.Value{"xs": value.List(scalars("1", "2", "3"))})
	assert.Equal(t, "11!,22!,33!,", out)
}

// I7: Cond tries cases in source order and stops at the first truthy one.
type callCounter struct{ seen []string }

func (c *callCounter) Mark(s string) string {
	c.seen = append(c.seen, s)
	return s
}

func TestCondShortCircuit(t *testing.T) {
	e := newTestEvaluator(nil)
	src := `<:cond><:case cond="data.Mark(\"a\") != \"\"">first</:case><:case cond="data.Mark(\"b\") != \"\"">second</:case></:cond>`
	tree := parser.Parse(src)
	counter := &callCounter{}
	out, err := e.Evaluate(tree, nil, counter)
	require.NoError(t, err)
	assert.Equal(t, "first", out)
	assert.Equal(t, []string{"a"}, counter.seen)
}

// <:cond var_names> narrows the lexical environment case conditions see:
// "z" is in the ambient frame but not declared, so a case referencing it
// can't match; "x" is declared and is visible.
func TestCondVarNamesRestrictsConditionVisibility(t *testing.T) {
	e := newTestEvaluator(nil)
	src := `<:cond x><:case cond="z == \"b\"">wrong</:case><:case cond="x == \"a\"">right</:case></:cond>`
	out := run(t, e, src, map[string]value.Value{"x": value.Scalar("a"), "z": value.Scalar("b")})
	assert.Equal(t, "right", out)
}

func TestCondNoMatchingCase(t *testing.T) {
	e := newTestEvaluator(nil)
	src := `<:cond><:case cond="false">x</:case></:cond>`
	out := run(t, e, src, nil)
	assert.Equal(t, "", out)
}

// I8: without :inherit, an included template sees only its explicit
// bindings.
func TestIncludeScopingWithoutInherit(t *testing.T) {
	ld := mapLoader{files: map[string]string{"child": `<=outer/>|<=name/>`}}
	e := newTestEvaluator(ld)
	src := `<:include child name="inner"/>`
	out := run(t, e, src, map[string]value.Value{"outer": value.Scalar("O")})
	assert.Equal(t, "|inner", out)
}

func TestIncludeWithInherit(t *testing.T) {
	ld := mapLoader{files: map[string]string{"child": `<=outer/>|<=name/>`}}
	e := newTestEvaluator(ld)
	src := `<:include child name="inner" :inherit/>`
	out := run(t, e, src, map[string]value.Value{"outer": value.Scalar("O")})
	assert.Equal(t, "O|inner", out)
}

func TestIncludeCycleDetected(t *testing.T) {
	ld := mapLoader{files: map[string]string{"a": `<:include a/>`}}
	e := newTestEvaluator(ld)
	out := run(t, e, `<:include a/>`, nil)
	assert.Equal(t, "", out)
}

// Boundary: nested VarScope referencing an outer name shadowed by an
// inner For binding picks the inner binding.
func TestInnerForBindingShadowsOuter(t *testing.T) {
	e := newTestEvaluator(nil)
	src := `<:for name="inner" :inherit><=name/></:for>`
	out := run(t, e, src, map[string]value.Value{"name": value.Scalar("outer")})
	assert.Equal(t, "inner", out)
}

// Boundary: variable not supplied classifies as empty.
func TestUnsuppliedVariableClassifiesEmpty(t *testing.T) {
	e := newTestEvaluator(nil)
	out := run(t, e, `<=missing type="empty">matched</=missing>`, nil)
	assert.Equal(t, "matched", out)
}

// Boundary: empty template produces empty output, no errors.
func TestEmptyTemplate(t *testing.T) {
	e := newTestEvaluator(nil)
	out := run(t, e, ``, nil)
	assert.Equal(t, "", out)
}

// I4: Comment nodes never contribute to output.
func TestCommentNeutrality(t *testing.T) {
	e := newTestEvaluator(nil)
	out := run(t, e, `a<#comment/>b<#>ignored</#>c`, nil)
	assert.Equal(t, "abc", out)
}

// R1: a template with no sigils evaluates to itself.
func TestLiteralTextRoundTrip(t *testing.T) {
	e := newTestEvaluator(nil)
	out := run(t, e, `just plain text, no tags here`, nil)
	assert.Equal(t, "just plain text, no tags here", out)
}

// R2: evaluating an <:eval>-generated template produces the same output as
// evaluating the generated source directly under the enclosing scope.
func TestEvalRoundTrip(t *testing.T) {
	e := newTestEvaluator(nil)
	params := map[string]value.Value{"x": value.Scalar("outerX")}

	generated := `<=x/>`
	direct := run(t, e, generated, params)

	src := `<:eval y="<: \"<=x/>\" />"><=y/></:eval>`
	viaEval := run(t, e, src, params)

	assert.Equal(t, direct, viaEval)
	assert.Equal(t, "outerX", viaEval)
}

// I2: evaluating with the parsed/compiled-fragment cache enabled versus
// bypassed produces identical output.
func TestCacheTransparency(t *testing.T) {
	src := `<=xs first="[<:/>]" code="<<:/>>"/>`
	params := map[string]value.Value{"xs": value.List(scalars("a", "b", "c"))}

	cached := New(cache.New(10000, 5000), nil, nil, "ns", false, noopErrors{})
	bypassed := New(cache.New(10000, 5000), nil, nil, "ns", true, noopErrors{})

	a := run(t, cached, src, params)
	b := run(t, bypassed, src, params)
	assert.Equal(t, a, b)
}

// Fragment runtime errors are dispatched through the configured
// ErrorHandler; a substitute value is spliced in at the failure site when
// the handler doesn't abort.
type substituteErrors struct{ substitute string }

func (s substituteErrors) HandleFragmentError(err error) (value.Value, bool) {
	return value.Scalar(s.substitute), false
}

func (substituteErrors) ReportParseDiagnostics([]parser.Diagnostic) {}

func TestFragmentErrorSubstitution(t *testing.T) {
	e := New(cache.New(10000, 5000), nil, nil, "ns", false, substituteErrors{substitute: "[ERR]"})
	out := run(t, e, `A<: die("boom") />B`, nil)
	assert.Equal(t, "A[ERR]B", out)
}

type abortErrors struct{}

func (abortErrors) HandleFragmentError(err error) (value.Value, bool) {
	return value.None, true
}

func (abortErrors) ReportParseDiagnostics([]parser.Diagnostic) {}

func TestFragmentErrorAbort(t *testing.T) {
	e := New(cache.New(10000, 5000), nil, nil, "ns", false, abortErrors{})
	tree := parser.Parse(`A<: die("boom") />B`)
	_, err := e.Evaluate(tree, nil, nil)
	assert.ErrorIs(t, err, ErrAbort)
}
