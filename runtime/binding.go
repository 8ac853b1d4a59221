package runtime

import (
	"github.com/zipreport/tagtmpl/parser"
	"github.com/zipreport/tagtmpl/value"
)

// evalBinding implements spec.md §4.4.1: a binding k=v is formed by
// rendering v as an attribute-value template in the enclosing scope. A
// lone bare fragment ("<:.../>" with no surrounding text) yields its
// return value directly — including a List, which is what lets a binding
// drive Cartesian expansion. Anything else is rendered to one or more
// literal strings, expanding any embedded List-valued fragment along the
// way; a single resulting string collapses to a Scalar, multiple become a
// List.
func (e *Evaluator) evalBinding(nodes []parser.Node, frame *Frame, rc *runCtx) (value.Value, error) {
	if len(nodes) == 1 {
		if code, ok := nodes[0].(*parser.CodeNode); ok {
			return e.runCode(code, frame, rc)
		}
	}
	combos, err := e.expandMixedTemplate(nodes, frame, rc)
	if err != nil {
		return value.None, err
	}
	if len(combos) == 0 {
		return value.Scalar(""), nil
	}
	if len(combos) == 1 {
		return value.Scalar(combos[0]), nil
	}
	out := make([]value.Value, len(combos))
	for i, s := range combos {
		out[i] = value.Scalar(s)
	}
	return value.List(out), nil
}

// expandMixedTemplate renders nodes to one or more literal strings,
// producing the Cartesian expansion described in spec.md §4.4.1 whenever a
// Code child resolves to a List: each such List contributes one varying
// position, combined with every other combo built so far.
func (e *Evaluator) expandMixedTemplate(nodes []parser.Node, frame *Frame, rc *runCtx) ([]string, error) {
	combos := []string{""}
	for _, n := range nodes {
		switch node := n.(type) {
		case *parser.TextNode:
			for i := range combos {
				combos[i] += node.Value
			}
		case *parser.CommentNode:
			// contributes nothing
		case *parser.CodeNode:
			v, err := e.runCode(node, frame, rc)
			if err != nil {
				return nil, err
			}
			if v.Kind() == value.KindList {
				elems := v.Elements()
				next := make([]string, 0, len(combos)*len(elems))
				for _, c := range combos {
					for _, el := range elems {
						next = append(next, c+value.Join(el))
					}
				}
				combos = next
			} else {
				s := value.Join(v)
				for i := range combos {
					combos[i] += s
				}
			}
		default:
			s, err := e.evalNodes([]parser.Node{n}, frame, rc)
			if err != nil {
				return nil, err
			}
			for i := range combos {
				combos[i] += s
			}
		}
	}
	return combos, nil
}

// evalBindings resolves an ordered Binding list into a name->Value map plus
// the subset whose value is a List (needed by For/Eval's Cartesian
// expansion), preserving declaration order in listBindings.
type listBinding struct {
	key      string
	elements []value.Value
}

func (e *Evaluator) evalBindings(bindings []parser.Binding, frame *Frame, rc *runCtx) (map[string]value.Value, []listBinding, error) {
	scalarLike := make(map[string]value.Value, len(bindings))
	var lists []listBinding
	for _, b := range bindings {
		v, err := e.evalBinding(b.Value, frame, rc)
		if err != nil {
			return nil, nil, err
		}
		if v.Kind() == value.KindList {
			lists = append(lists, listBinding{key: b.Key, elements: v.Elements()})
			continue
		}
		scalarLike[b.Key] = v
	}
	return scalarLike, lists, nil
}

// cartesianProduct builds one parameter map per tuple of the Cartesian
// product of listBindings, merged over base. Ordering follows spec.md's
// worked example (end-to-end scenario 4): the *last*-declared List binding
// varies slowest (outermost), the first-declared varies fastest
// (innermost) — see DESIGN.md for why this, not naive declaration order,
// matches the literal expected output.
func cartesianProduct(base map[string]value.Value, listBindings []listBinding) []map[string]value.Value {
	if len(listBindings) == 0 {
		return []map[string]value.Value{cloneParams(base)}
	}
	reversed := make([]listBinding, len(listBindings))
	for i, b := range listBindings {
		reversed[len(listBindings)-1-i] = b
	}
	combos := []map[string]value.Value{cloneParams(base)}
	for _, b := range reversed {
		next := make([]map[string]value.Value, 0, len(combos)*len(b.elements))
		for _, c := range combos {
			for _, el := range b.elements {
				nc := cloneParams(c)
				nc[b.key] = el
				next = append(next, nc)
			}
		}
		combos = next
	}
	return combos
}

func cloneParams(m map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
