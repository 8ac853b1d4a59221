package runtime

import (
	"sort"
	"strconv"
	"strings"

	"github.com/zipreport/tagtmpl/parser"
	"github.com/zipreport/tagtmpl/value"
)

// selectTemplate returns the IR for modifier tag, preferring the
// attribute-form over a child Section of the same name when both are
// present — spec.md §9's open question leaves this tie-break unspecified
// for single-select modifiers (first/last/code/pre/post); attribute-form
// winning matches the same precedence chosen for list transforms.
func selectTemplate(attrs []parser.Attr, body []parser.Node, tag string) ([]parser.Node, bool) {
	for _, a := range attrs {
		if a.Key == tag {
			return a.Value, true
		}
	}
	for _, n := range body {
		if sec, ok := n.(*parser.SectionNode); ok && sec.Tag == tag {
			return sec.Body, true
		}
	}
	return nil, false
}

// hasSection reports whether body carries a child Section named tag,
// regardless of its content — used by pre/post to force emission even over
// an empty list (spec.md §4.4 step 3).
func hasSection(body []parser.Node, tag string) bool {
	for _, n := range body {
		if sec, ok := n.(*parser.SectionNode); ok && sec.Tag == tag {
			return true
		}
	}
	return false
}

// bodyMinusSections strips all Section children, leaving the per-element
// fallback template (spec.md §4.4 step 4: "the scope's body_ir minus its
// child sections").
func bodyMinusSections(body []parser.Node) []parser.Node {
	out := make([]parser.Node, 0, len(body))
	for _, n := range body {
		if _, ok := n.(*parser.SectionNode); ok {
			continue
		}
		out = append(out, n)
	}
	return out
}

func findAttr(attrs []parser.Attr, key string) (parser.Attr, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a, true
		}
	}
	return parser.Attr{}, false
}

// evalVarScope implements spec.md §4.4 VarScope.
func (e *Evaluator) evalVarScope(node *parser.VarScopeNode, frame *Frame, rc *runCtx) (string, error) {
	v := frame.Params[node.Name]

	if typeAttr, ok := findAttr(node.Attrs, "type"); ok {
		allowed, err := e.evalNodes(typeAttr.Value, frame, rc)
		if err != nil {
			return "", err
		}
		if !classificationAllowed(v.Classify(), allowed) {
			return "", nil
		}
	}

	xs := v.Normalize()

	xs, err := e.applyListTransforms(node, xs, frame, rc)
	if err != nil {
		return "", err
	}

	var out strings.Builder

	if s, emit, err := e.evalPrePost(node, "pre", len(xs) > 0, frame, rc); err != nil {
		return "", err
	} else if emit {
		out.WriteString(s)
	}

	for i, el := range xs {
		tmpl, ok := selectPerElement(node, i, len(xs))
		if !ok {
			tmpl = bodyMinusSections(node.Body)
		}
		if len(tmpl) == 0 {
			// No first/last/code and nothing left in the body once
			// sections are stripped (the common case for a bare
			// "<=name/>" self-close) — fall back to rendering the
			// element as-is, the same as a bare "<:/>" would.
			tmpl = []parser.Node{&parser.CodeNode{}}
		}
		elFrame := &Frame{Params: frame.Params, Current: el}
		s, err := e.evalNodes(tmpl, elFrame, rc)
		if err != nil {
			return "", err
		}
		out.WriteString(s)
	}

	if s, emit, err := e.evalPrePost(node, "post", len(xs) > 0, frame, rc); err != nil {
		return "", err
	} else if emit {
		out.WriteString(s)
	}

	return out.String(), nil
}

func selectPerElement(node *parser.VarScopeNode, i, n int) ([]parser.Node, bool) {
	if i == 0 {
		if tmpl, ok := selectTemplate(node.Attrs, node.Body, "first"); ok {
			return tmpl, true
		}
	}
	if i == n-1 {
		if tmpl, ok := selectTemplate(node.Attrs, node.Body, "last"); ok {
			return tmpl, true
		}
	}
	return selectTemplate(node.Attrs, node.Body, "code")
}

// evalPrePost renders pre/post (spec.md §4.4 steps 3/5): a Section form
// forces emission regardless of xs being empty; an attribute form is
// suppressed when xs is empty.
func (e *Evaluator) evalPrePost(node *parser.VarScopeNode, tag string, nonEmpty bool, frame *Frame, rc *runCtx) (string, bool, error) {
	tmpl, ok := selectTemplate(node.Attrs, node.Body, tag)
	if !ok {
		return "", false, nil
	}
	forced := hasSection(node.Body, tag)
	if !forced && !nonEmpty {
		return "", false, nil
	}
	s, err := e.evalNodes(tmpl, frame, rc)
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func classificationAllowed(c value.Classification, commaList string) bool {
	for _, part := range strings.Split(commaList, ",") {
		if value.Classification(strings.TrimSpace(part)) == c {
			return true
		}
	}
	return false
}

// applyListTransforms applies grep/map/sort in the order spec.md §4.4 step
// 2 and invariant I6 require: attribute-form modifiers first in their
// textual left-to-right order, then child-section forms in source order.
func (e *Evaluator) applyListTransforms(node *parser.VarScopeNode, xs []value.Value, frame *Frame, rc *runCtx) ([]value.Value, error) {
	var err error
	for _, a := range node.Attrs {
		switch a.Key {
		case "grep":
			xs, err = e.applyGrep(a.Value, xs, frame, rc)
		case "map":
			xs, err = e.applyMap(a.Value, xs, frame, rc)
		case "sort":
			xs, err = e.applySort(a.Value, xs, frame, rc)
		}
		if err != nil {
			return nil, err
		}
	}
	for _, n := range node.Body {
		sec, ok := n.(*parser.SectionNode)
		if !ok {
			continue
		}
		switch sec.Tag {
		case "grep":
			xs, err = e.applyGrep(sec.Body, xs, frame, rc)
		case "map":
			xs, err = e.applyMap(sec.Body, xs, frame, rc)
		case "sort":
			xs, err = e.applySort(sec.Body, xs, frame, rc)
		}
		if err != nil {
			return nil, err
		}
	}
	return xs, nil
}

// evalElementExpr renders a modifier's IR with el bound as the current
// value, returning its native Value rather than a stringified render — the
// same idea as binding evaluation, reused here for grep/map predicates.
func (e *Evaluator) evalElementExpr(nodes []parser.Node, el value.Value, frame *Frame, rc *runCtx) (value.Value, error) {
	if len(nodes) == 1 {
		if code, ok := nodes[0].(*parser.CodeNode); ok {
			elFrame := &Frame{Params: frame.Params, Current: el}
			return e.runCode(code, elFrame, rc)
		}
	}
	elFrame := &Frame{Params: frame.Params, Current: el}
	s, err := e.evalNodes(nodes, elFrame, rc)
	if err != nil {
		return value.None, err
	}
	return value.Scalar(s), nil
}

func (e *Evaluator) applyGrep(nodes []parser.Node, xs []value.Value, frame *Frame, rc *runCtx) ([]value.Value, error) {
	var out []value.Value
	for _, el := range xs {
		v, err := e.evalElementExpr(nodes, el, frame, rc)
		if err != nil {
			return nil, err
		}
		if v.Truthy() {
			out = append(out, el)
		}
	}
	return out, nil
}

func (e *Evaluator) applyMap(nodes []parser.Node, xs []value.Value, frame *Frame, rc *runCtx) ([]value.Value, error) {
	out := make([]value.Value, len(xs))
	for i, el := range xs {
		v, err := e.evalElementExpr(nodes, el, frame, rc)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// sortBindA and sortBindB are the conventional per-element comparator
// names a <sort> fragment sees, bound via the parameter map alongside the
// usual conventional bindings (spec.md §4.4: "a binary comparator
// operating on two per-element bindings" — names are an implementation
// choice, recorded in DESIGN.md).
const (
	sortBindA = "a"
	sortBindB = "b"
)

func (e *Evaluator) applySort(nodes []parser.Node, xs []value.Value, frame *Frame, rc *runCtx) ([]value.Value, error) {
	out := make([]value.Value, len(xs))
	copy(out, xs)
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		params := cloneParams(frame.Params)
		params[sortBindA] = out[i]
		params[sortBindB] = out[j]
		cmpFrame := &Frame{Params: params, Current: value.None}
		v, err := e.evalElementExpr(nodes, value.None, cmpFrame, rc)
		if err != nil {
			sortErr = err
			return false
		}
		return compareFragmentResult(v) < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return out, nil
}

// compareFragmentResult interprets a sort comparator's return value as a
// typical negative/zero/positive tri-state; a result that isn't numeric
// counts as zero (the pair compares equal).
func compareFragmentResult(v value.Value) int {
	s := v.String()
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		switch {
		case n < 0:
			return -1
		case n > 0:
			return 1
		default:
			return 0
		}
	}
	// A non-numeric comparator result carries no usable ordering signal;
	// treat the pair as equal rather than guessing.
	return 0
}
