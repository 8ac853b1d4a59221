package runtime

import (
	"github.com/zipreport/tagtmpl/parser"
	"github.com/zipreport/tagtmpl/value"
)

// codeSectionOrWhole returns the body rendered for one binding expansion:
// spec.md §4.4 "if body_ir contains a <:code> child, only that child is
// rendered per expansion (not the surrounding siblings)".
func codeSectionOrWhole(body []parser.Node) []parser.Node {
	for _, n := range body {
		if sec, ok := n.(*parser.SectionNode); ok && sec.Tag == "code" {
			return sec.Body
		}
	}
	return body
}

// renderExpansions evaluates bindings, builds the Cartesian product across
// all List-valued bindings, and renders body once per combo, concatenating
// the results — the shared mechanism behind both For and Eval (spec.md
// §4.4, §9 "reuse the same mechanism that expands a VarScope over a
// list-valued binding").
func (e *Evaluator) renderExpansions(bindings []parser.Binding, inherit bool, body []parser.Node, frame *Frame, rc *runCtx) (string, error) {
	scalarLike, lists, err := e.evalBindings(bindings, frame, rc)
	if err != nil {
		return "", err
	}
	combos := cartesianProduct(scalarLike, lists)
	renderBody := codeSectionOrWhole(body)

	var out string
	for _, combo := range combos {
		childFrame := frame.child(combo, inherit)
		s, err := e.evalNodes(renderBody, childFrame, rc)
		if err != nil {
			return "", err
		}
		out += s
	}
	return out, nil
}

func (e *Evaluator) evalFor(node *parser.ForNode, frame *Frame, rc *runCtx) (string, error) {
	return e.renderExpansions(node.Bindings, node.Inherit, node.Body, frame, rc)
}

// evalEval implements spec.md §4.4 Eval: the binding-expanded body is
// rendered to a string exactly as For would, but that string is then
// re-parsed as a fresh template (through the parsed-template cache) and
// evaluated again under the *enclosing* frame — not the binding-augmented
// one.
func (e *Evaluator) evalEval(node *parser.EvalNode, frame *Frame, rc *runCtx) (string, error) {
	generated, err := e.renderExpansions(node.Bindings, node.Inherit, node.Body, frame, rc)
	if err != nil {
		return "", err
	}
	tree := e.parseTemplate(generated)
	return e.evalNodes(tree.Root, frame, rc)
}

// evalInclude implements spec.md §4.4 Include: resolve the name, fetch
// bytes via the external loader, parse through the cache, guard against
// include cycles, and evaluate under a scope built from the remaining
// bindings.
func (e *Evaluator) evalInclude(node *parser.IncludeNode, frame *Frame, rc *runCtx) (string, error) {
	name, err := e.evalNodes(node.Name, frame, rc)
	if err != nil {
		return "", err
	}

	data, err := e.Loader.Resolve(name, e.SearchPath)
	if err != nil {
		return e.handleIncludeErr(err)
	}
	src := string(data)
	fp := parser.Fingerprint(src)

	if !rc.pushInclude(fp) {
		return e.handleIncludeErr(&IncludeCycleError{Name: name})
	}
	defer rc.popInclude()

	tree := e.parseTemplate(src)

	scalarLike, lists, err := e.evalBindings(node.Bindings, frame, rc)
	if err != nil {
		return "", err
	}
	// Include does not Cartesian-expand: multiple combos would mean
	// multiple inclusions, which spec.md does not describe. If a binding
	// produced a List, it is passed through as a List value rather than
	// expanded.
	params := cloneParams(scalarLike)
	for _, lb := range lists {
		params[lb.key] = value.List(lb.elements)
	}

	childFrame := frame.child(params, node.Inherit)
	return e.evalNodes(tree.Root, childFrame, rc)
}

func (e *Evaluator) handleIncludeErr(err error) (string, error) {
	sub, abort := e.Errors.HandleFragmentError(err)
	if abort {
		return "", ErrAbort
	}
	return value.Join(sub), nil
}

// evalCond implements spec.md §4.4 Cond: cases are tried in source order;
// the first truthy condition wins and short-circuits the rest (I7).
// node.VarNames, when declared on the "<:cond>" opener, narrows the
// lexical environment every case condition fragment sees to just those
// names (plus the "v"/"data"/"params" conventional bindings) — an empty
// VarNames leaves case conditions seeing the full ambient frame, same as
// any other fragment.
func (e *Evaluator) evalCond(node *parser.CondNode, frame *Frame, rc *runCtx) (string, error) {
	condFrame := frame
	if len(node.VarNames) > 0 {
		condFrame = &Frame{Params: restrictParams(frame.Params, node.VarNames), Current: frame.Current}
	}
	for _, c := range node.Cases {
		truthy, err := e.evalCondition(c.CondFragment, condFrame, rc)
		if err != nil {
			return "", err
		}
		if truthy {
			return e.evalNodes(c.Body, frame, rc)
		}
	}
	return "", nil
}

// restrictParams builds the narrowed parameter map a <:cond var_names>
// declaration describes: only the declared names are bound, each falling
// back to value.None if the enclosing frame doesn't have it (spec.md §4.4:
// "var_names bind by the same names in the fragment's lexical
// environment").
func restrictParams(params map[string]value.Value, names []string) map[string]value.Value {
	out := make(map[string]value.Value, len(names))
	for _, n := range names {
		out[n] = params[n]
	}
	return out
}

func (e *Evaluator) evalCondition(fragmentSrc string, frame *Frame, rc *runCtx) (bool, error) {
	if fragmentSrc == "" {
		return false, nil
	}
	v, err := e.runCode(&parser.CodeNode{Fragment: fragmentSrc}, frame, rc)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}
