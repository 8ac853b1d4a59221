package lexer

import "fmt"

// TokenType tags the kind of lexical unit produced by the Lexer.
type TokenType int

const (
	// TokenEOF marks the end of input.
	TokenEOF TokenType = iota
	// TokenText is a run of literal output bytes.
	TokenText
	// TokenOpenVar is a "<=name ...>" or "<=name .../>" opener.
	TokenOpenVar
	// TokenOpenCtl is a "<:name ...>", "<: ...>" (bare code), or self-closing form.
	TokenOpenCtl
	// TokenOpenComment is a "<# ...>" or "<# .../>" opener.
	TokenOpenComment
	// TokenCloseVar is a "</=name>" closer.
	TokenCloseVar
	// TokenCloseCtl is a "</:name>" or "</:>" closer.
	TokenCloseCtl
	// TokenCloseComment is a "</#>" closer.
	TokenCloseComment
	// TokenError marks a malformed sequence; Raw carries the offending span.
	TokenError
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenText:
		return "TEXT"
	case TokenOpenVar:
		return "OPEN_VAR"
	case TokenOpenCtl:
		return "OPEN_CTL"
	case TokenOpenComment:
		return "OPEN_COMMENT"
	case TokenCloseVar:
		return "CLOSE_VAR"
	case TokenCloseCtl:
		return "CLOSE_CTL"
	case TokenCloseComment:
		return "CLOSE_COMMENT"
	case TokenError:
		return "ERROR"
	default:
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
}

// Attr is one whitespace-separated attribute of an opener, in source order.
// A bare attribute ("key" with no "=value") has HasValue == false.
type Attr struct {
	Key      string
	Value    string
	HasValue bool
	Quoted   bool
}

// Token is one lexical unit of template source.
type Token struct {
	Type      TokenType
	Pos       int    // byte offset of the token's start in the source
	End       int    // byte offset just past the token
	Text      string // literal payload, for TokenText
	Name      string // tag name, for Open*/Close* tokens ("" for bare <: )
	Attrs     []Attr // attribute list, for Open* tokens
	SelfClose bool   // true when the opener ends in "/>"
	Raw       string // raw source span, used for error recovery / diagnostics
}
