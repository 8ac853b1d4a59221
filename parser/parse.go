package parser

import "github.com/zipreport/tagtmpl/lexer"

// noCloser marks the top-level parse, which stops only at end of input.
const noCloser = lexer.TokenType(-1)

type parseState struct {
	lex   *lexer.Lexer
	diags []Diagnostic
}

// Parse builds the IR tree for a template's source bytes. Parsing never
// fails: structural problems are recorded as Diagnostics, and a TextNode
// carrying the offending span is substituted so the parser can resume at
// the next opener (spec.md §4.1, invariant I1).
func Parse(src string) *Tree {
	ps := &parseState{lex: lexer.New(src)}
	root := ps.parseUntil(noCloser, "")
	return &Tree{Root: root, Fingerprint: Fingerprint(src), Diagnostics: ps.diags}
}

// parseUntil parses nodes until it sees a closer of closeType (name match
// is not enforced — a mismatched closer is tolerated as a lenient
// recovery rather than a hard error, since the grammar nests by token
// type first), or end of input.
func (ps *parseState) parseUntil(closeType lexer.TokenType, closeName string) []Node {
	var nodes []Node
	for {
		tok := ps.lex.Next()
		switch tok.Type {
		case lexer.TokenEOF:
			if closeType != noCloser {
				ps.diags = append(ps.diags, Diagnostic{
					Pos: tok.Pos, Message: "unexpected end of input: unmatched opener",
				})
			}
			return nodes
		case lexer.TokenText:
			nodes = append(nodes, &TextNode{Value: tok.Text})
		case lexer.TokenError:
			ps.diags = append(ps.diags, Diagnostic{Pos: tok.Pos, Message: "malformed tag", Span: tok.Raw})
			nodes = append(nodes, &TextNode{Value: tok.Raw})
		case lexer.TokenCloseVar, lexer.TokenCloseCtl, lexer.TokenCloseComment:
			if tok.Type == closeType {
				return nodes
			}
			ps.diags = append(ps.diags, Diagnostic{Pos: tok.Pos, Message: "unmatched closing tag", Span: tok.Raw})
			nodes = append(nodes, &TextNode{Value: tok.Raw})
		default:
			nodes = append(nodes, ps.parseOpener(tok))
		}
	}
}

// parseOpener dispatches a single Open* token to its node constructor.
func (ps *parseState) parseOpener(tok lexer.Token) Node {
	switch tok.Type {
	case lexer.TokenOpenComment:
		return ps.parseComment(tok)
	case lexer.TokenOpenVar:
		return ps.parseVarScope(tok)
	case lexer.TokenOpenCtl:
		return ps.parseCtl(tok)
	default:
		// Non-opener tokens reach here from parseCond's between-case
		// loop; they are kept as literal text so parsing stays alive.
		return &TextNode{Value: tok.Raw}
	}
}

func (ps *parseState) parseComment(tok lexer.Token) Node {
	if !tok.SelfClose {
		ps.parseUntil(lexer.TokenCloseComment, "")
	}
	return &CommentNode{}
}

func (ps *parseState) parseVarScope(tok lexer.Token) Node {
	attrs := ps.convertAttrs(tok.Attrs)
	var body []Node
	if !tok.SelfClose {
		body = ps.parseUntil(lexer.TokenCloseVar, tok.Name)
	}
	return &VarScopeNode{Name: tok.Name, Attrs: attrs, Body: body}
}

func (ps *parseState) parseCtl(tok lexer.Token) Node {
	if tok.Name == "" {
		// Raw Code fragment (bare "<:" — spec.md §4.1/§9).
		var body []Node
		if !tok.SelfClose {
			body = ps.parseUntil(lexer.TokenCloseCtl, "")
		}
		return &CodeNode{Fragment: tok.Text, Body: body}
	}

	switch tok.Name {
	case "for":
		return ps.parseForEval(tok, true)
	case "eval":
		return ps.parseForEval(tok, false)
	case "include":
		return ps.parseInclude(tok)
	case "cond":
		return ps.parseCond(tok)
	case "case":
		// A <:case> outside of <:cond> is malformed per the grammar;
		// tolerate it by wrapping it as a single-case Cond so the tree
		// stays fully renderable.
		ch := ps.parseCase(tok).(*caseHolder)
		return &CondNode{Cases: []CaseNode{ch.CaseNode}}
	case "set":
		return ps.parseSet(tok)
	default: // code, pre, post, first, last, map, grep, sort
		var body []Node
		if !tok.SelfClose {
			body = ps.parseUntil(lexer.TokenCloseCtl, tok.Name)
		}
		return &SectionNode{Tag: tok.Name, Body: body}
	}
}

func (ps *parseState) parseForEval(tok lexer.Token, isFor bool) Node {
	bindings, inherit := ps.bindingsFromLexerAttrs(tok.Attrs)
	var body []Node
	if !tok.SelfClose {
		body = ps.parseUntil(lexer.TokenCloseCtl, tok.Name)
	}
	body, extra := extractSetBindings(body)
	bindings = append(bindings, extra...)
	if isFor {
		return &ForNode{Bindings: bindings, Inherit: inherit, Body: body}
	}
	return &EvalNode{Bindings: bindings, Inherit: inherit, Body: body}
}

func (ps *parseState) parseInclude(tok lexer.Token) Node {
	name, bindings, inherit := ps.includeAttrs(tok.Attrs)
	var body []Node
	if !tok.SelfClose {
		body = ps.parseUntil(lexer.TokenCloseCtl, "include")
	}
	_, extra := extractSetBindings(body)
	bindings = append(bindings, extra...)
	return &IncludeNode{Name: name, Bindings: bindings, Inherit: inherit}
}

func (ps *parseState) parseCond(tok lexer.Token) Node {
	var varNames []string
	for _, a := range tok.Attrs {
		varNames = append(varNames, a.Key)
	}
	var cases []CaseNode
	if !tok.SelfClose {
		for {
			t2 := ps.lex.Next()
			switch {
			case t2.Type == lexer.TokenEOF:
				ps.diags = append(ps.diags, Diagnostic{Pos: t2.Pos, Message: "unexpected end of input: unmatched <:cond>"})
				return &CondNode{VarNames: varNames, Cases: cases}
			case t2.Type == lexer.TokenCloseCtl && t2.Name == "cond":
				return &CondNode{VarNames: varNames, Cases: cases}
			case t2.Type == lexer.TokenOpenCtl && t2.Name == "case":
				if cn, ok := ps.parseCase(t2).(*caseHolder); ok {
					cases = append(cases, cn.CaseNode)
				}
			default:
				// Stray content between cases (whitespace, comments) is
				// parsed and discarded — only <:case> children matter.
				ps.parseOpener(t2)
			}
		}
	}
	return &CondNode{VarNames: varNames, Cases: cases}
}

// caseHolder lets parseCase be reused both as a dispatch-table entry
// (Node) and as a CaseNode collected by parseCond.
type caseHolder struct{ CaseNode }

func (*caseHolder) irNode() {}

func (ps *parseState) parseCase(tok lexer.Token) Node {
	cond := ""
	for _, a := range tok.Attrs {
		if a.Key == "cond" && a.HasValue {
			cond = a.Value
			break
		}
	}
	if cond == "" {
		for _, a := range tok.Attrs {
			if !a.HasValue {
				cond = a.Key
				break
			}
		}
	}
	var body []Node
	if !tok.SelfClose {
		body = ps.parseUntil(lexer.TokenCloseCtl, "case")
	}
	return &caseHolder{CaseNode{CondFragment: cond, Body: body}}
}

func (ps *parseState) parseSet(tok lexer.Token) Node {
	target := ""
	for _, a := range tok.Attrs {
		if !a.HasValue {
			target = a.Key
			break
		}
	}
	var body []Node
	if !tok.SelfClose {
		body = ps.parseUntil(lexer.TokenCloseCtl, "set")
	}
	return &SectionNode{Tag: "set", Target: target, Body: body}
}
