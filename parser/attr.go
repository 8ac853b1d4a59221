package parser

import "github.com/zipreport/tagtmpl/lexer"

// isInheritKeyword reports whether key is one of the reserved ":inherit" /
// ":inheritparms" spellings (spec.md §4.1) that make the inner scope's
// parameter map inherit the enclosing scope's bindings, rather than
// forming a k=v binding.
func isInheritKeyword(key string) bool {
	return key == ":inherit" || key == ":inheritparms"
}

// subParse parses s as an inline attribute-value template (spec.md §9
// "attribute-value templates" design note: re-use the main parser to
// build a sub-IR per attribute) and folds its diagnostics into ps.
func (ps *parseState) subParse(s string) []Node {
	if s == "" {
		return nil
	}
	tree := Parse(s)
	ps.diags = append(ps.diags, tree.Diagnostics...)
	return tree.Root
}

// convertAttrs turns a lexer.Attr list into IR Attrs, recursively parsing
// each non-bare value as inline IR.
func (ps *parseState) convertAttrs(lexAttrs []lexer.Attr) []Attr {
	if len(lexAttrs) == 0 {
		return nil
	}
	out := make([]Attr, 0, len(lexAttrs))
	for _, a := range lexAttrs {
		if !a.HasValue {
			out = append(out, Attr{Key: a.Key, Bare: true})
			continue
		}
		out = append(out, Attr{Key: a.Key, Value: ps.subParse(a.Value), Raw: a.Value})
	}
	return out
}

// bindingsFromLexerAttrs splits a for/eval opener's attributes into its
// k=v Bindings and the reserved :inherit/:inheritparms flag (spec.md
// §4.1's reserved attribute keywords).
func (ps *parseState) bindingsFromLexerAttrs(lexAttrs []lexer.Attr) ([]Binding, bool) {
	var bindings []Binding
	inherit := false
	for _, a := range lexAttrs {
		if isInheritKeyword(a.Key) {
			inherit = true
			continue
		}
		if !a.HasValue {
			continue // bare, non-reserved attribute: not a documented binding form
		}
		bindings = append(bindings, Binding{Key: a.Key, Value: ps.subParse(a.Value)})
	}
	return bindings, inherit
}

// includeAttrs resolves an <:include> opener's attributes per spec.md
// §4.4: the first bare attribute token (lacking an unquoted "=") is the
// template name; the rest form Bindings, with :inherit honored as usual.
func (ps *parseState) includeAttrs(lexAttrs []lexer.Attr) ([]Node, []Binding, bool) {
	var name []Node
	var bindings []Binding
	inherit := false
	nameFound := false
	for _, a := range lexAttrs {
		if isInheritKeyword(a.Key) {
			inherit = true
			continue
		}
		if !a.HasValue {
			if !nameFound {
				name = ps.subParse(a.Key)
				nameFound = true
			}
			continue
		}
		bindings = append(bindings, Binding{Key: a.Key, Value: ps.subParse(a.Value)})
	}
	return name, bindings, inherit
}

// extractSetBindings pulls top-level <:set> sections out of a for/eval/
// include body, returning the remaining render body and the Bindings they
// contribute (spec.md §4.1: "<:set NAME>body</:set> ... placement inside
// <:for>, <:eval>, or <:include> openers contributes bindings as if
// written as attributes").
func extractSetBindings(body []Node) ([]Node, []Binding) {
	var rest []Node
	var bindings []Binding
	for _, n := range body {
		if sec, ok := n.(*SectionNode); ok && sec.Tag == "set" {
			bindings = append(bindings, Binding{Key: sec.Target, Value: sec.Body})
			continue
		}
		rest = append(rest, n)
	}
	return rest, bindings
}
