// Package parser builds the IR (intermediate representation) tree
// described in spec.md §3 out of the lexer's token stream, and wraps each
// parsed tree with the content fingerprint used as its cache key.
package parser

// Node is the tagged-variant IR node. Exactly one of the concrete types
// below is ever stored in a []Node slot.
type Node interface {
	// irNode is unexported so Node can only be implemented within this
	// package — the variant set is closed, matching spec.md §3's "tagged
	// variant with the following cases".
	irNode()
}

// Attr is a parsed attribute: its value is itself a small IR (spec.md
// §4.1's "attribute-value templates" / §9 design note), built by
// re-invoking the parser on the raw attribute text.
type Attr struct {
	Key   string
	Bare  bool // true if the attribute carried no "=value"
	Value []Node
	Raw   string // original raw (unescaped) value text, before sub-parsing
}

// Binding is a k=v pair attached to a For, Eval, or Include opener (or
// contributed by a <:set> child per spec.md §4.1).
type Binding struct {
	Key   string
	Value []Node
}

// TextNode is literal output (spec.md §3 Text(s)).
type TextNode struct{ Value string }

func (*TextNode) irNode() {}

// CommentNode never contributes to output (spec.md §3 Comment, invariant
// I4/4.4's "Comment never contributes to output").
type CommentNode struct{}

func (*CommentNode) irNode() {}

// CodeNode is a "<:fragment/>" or "<:fragment>body</:>" embedded code
// sequence. An empty Fragment with a nil Body is the special "<:/>" form
// that stands for "the current value rendered as-is" inside a VarScope or
// per-element template (spec.md §4.4).
type CodeNode struct {
	Fragment string
	Body     []Node
}

func (*CodeNode) irNode() {}

// VarScopeNode is "<=name ...>body</=name>" (spec.md §3 VarScope, §4.4).
// Attrs holds the named modifiers (type, code, pre, post, first, last,
// map, grep, sort); Body is the per-element fallback template plus any
// child Section nodes.
type VarScopeNode struct {
	Name  string
	Attrs []Attr
	Body  []Node
}

func (*VarScopeNode) irNode() {}

// ForNode is "<:for ...>body</:for>" (spec.md §3/§4.4 For).
type ForNode struct {
	Bindings []Binding
	Inherit  bool
	Body     []Node
}

func (*ForNode) irNode() {}

// EvalNode is "<:eval ...>body</:eval>" (spec.md §3/§4.4 Eval).
type EvalNode struct {
	Bindings []Binding
	Inherit  bool
	Body     []Node
}

func (*EvalNode) irNode() {}

// IncludeNode is "<:include file .../>" (spec.md §3/§4.4 Include). Name is
// the parsed inline IR of the first attribute token lacking an unquoted
// "=" (the template name); body is only ever inspected for <:set>
// children, never rendered.
type IncludeNode struct {
	Name     []Node
	Bindings []Binding
	Inherit  bool
}

func (*IncludeNode) irNode() {}

// CaseNode is one "<:case cond="...">body</:case>" child of a Cond.
// CondFragment is raw, unparsed host-language source — like a Code
// fragment, it is opaque code, not an interpolated template (spec.md §9
// design note on attribute-value templates vs. code fragments).
type CaseNode struct {
	CondFragment string
	Body         []Node
}

// CondNode is "<:cond ...><:case .../>...</:cond>" (spec.md §3/§4.4 Cond).
type CondNode struct {
	VarNames []string
	Cases    []CaseNode
}

func (*CondNode) irNode() {}

// SectionNode is a structural child consumed by its parent scope: one of
// code, pre, post, first, last, map, grep, sort, or set (spec.md §3
// Section). Target is only meaningful for Tag == "set".
type SectionNode struct {
	Tag    string
	Target string
	Body   []Node
}

func (*SectionNode) irNode() {}
