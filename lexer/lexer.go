// Package lexer turns template bytes into a stream of Tokens recognizing
// the three sigils ("<=", "<:", "<#"), their self-closing and paired forms,
// and the attribute micro-grammar described in spec.md §4.1/§6.
//
// The Lexer never fails outright: a malformed opener/closer is returned as
// a TokenError token carrying the offending span, so the parser can apply
// the bounded-recovery discipline required by spec.md ("parser recovers
// and continues" — I1, linear-time parsing on any input).
package lexer

import "strings"

const (
	identStart = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"
	identCont  = identStart + "0123456789-"
)

// ReservedCtlNames are the <: tag names with attribute grammar (control
// sequences and VarScope section tags). Any other text following "<:" is
// the raw source of a Code fragment (spec.md §4.1, §9 "Code-fragment
// raw scanning" design note).
var ReservedCtlNames = map[string]bool{
	"for": true, "eval": true, "include": true, "cond": true, "case": true,
	"set": true, "code": true, "pre": true, "post": true, "first": true,
	"last": true, "map": true, "grep": true, "sort": true,
}

// Lexer scans a single template's source bytes.
type Lexer struct {
	src string
	pos int
}

// New returns a Lexer positioned at the start of src.
func New(src string) *Lexer {
	return &Lexer{src: src}
}

// Pos returns the current byte offset.
func (l *Lexer) Pos() int { return l.pos }

// Next returns the next token. At end of input it returns a TokenEOF token
// forever.
func (l *Lexer) Next() Token {
	if l.pos >= len(l.src) {
		return Token{Type: TokenEOF, Pos: l.pos, End: l.pos}
	}
	if l.src[l.pos] != '<' {
		return l.scanText()
	}
	if tok, ok := l.scanSigil(); ok {
		return tok
	}
	return l.scanText()
}

// scanText consumes a run of literal bytes up to (not including) the next
// recognizable sigil, or to end of input.
func (l *Lexer) scanText() Token {
	start := l.pos
	i := start
	for i < len(l.src) {
		next := strings.IndexByte(l.src[i:], '<')
		if next < 0 {
			i = len(l.src)
			break
		}
		i += next
		if isSigilAt(l.src, i) {
			break
		}
		i++
	}
	if i == start {
		i = start + 1
	}
	l.pos = i
	return Token{Type: TokenText, Pos: start, End: i, Text: l.src[start:i]}
}

// isSigilAt reports whether a recognized sigil begins at src[i]. A "<:"
// followed by arbitrary (non-reserved) text still counts as a sigil — it
// opens a raw Code fragment.
func isSigilAt(src string, i int) bool {
	rest := src[i:]
	for _, p := range []string{"</=", "</:", "</#", "<=", "<:", "<#"} {
		if strings.HasPrefix(rest, p) {
			return true
		}
	}
	return false
}

func (l *Lexer) scanSigil() (Token, bool) {
	rest := l.src[l.pos:]
	switch {
	case strings.HasPrefix(rest, "</="):
		return l.scanCloser("</=", TokenCloseVar, true), true
	case strings.HasPrefix(rest, "</:"):
		return l.scanCloser("</:", TokenCloseCtl, false), true
	case strings.HasPrefix(rest, "</#"):
		return l.scanCloser("</#", TokenCloseComment, false), true
	case strings.HasPrefix(rest, "<="):
		return l.scanNamedOpener("<=", TokenOpenVar, true), true
	case strings.HasPrefix(rest, "<:"):
		return l.scanCtlOpener(), true
	case strings.HasPrefix(rest, "<#"):
		return l.scanNamedOpener("<#", TokenOpenComment, false), true
	}
	return Token{}, false
}

func (l *Lexer) scanCloser(sigil string, typ TokenType, requireName bool) Token {
	start := l.pos
	i := start + len(sigil)
	nameStart := i
	for i < len(l.src) && strings.ContainsRune(identCont, rune(l.src[i])) {
		i++
	}
	name := l.src[nameStart:i]
	if requireName && name == "" {
		return l.errorToken(start)
	}
	if i >= len(l.src) || l.src[i] != '>' {
		return l.errorToken(start)
	}
	i++
	l.pos = i
	return Token{Type: typ, Pos: start, End: i, Name: name, Raw: l.src[start:i]}
}

// scanNamedOpener scans "<Xname attrs...>" / "<Xname attrs.../>" using the
// ordinary attribute grammar. Comments never carry a name (parseName is
// always false and no identifier is attempted for them).
func (l *Lexer) scanNamedOpener(sigil string, typ TokenType, parseName bool) Token {
	start := l.pos
	i := start + len(sigil)
	name := ""
	if parseName {
		name, i = peekIdent(l.src, i)
	}
	return l.finishOpener(start, i, typ, name, nil, "")
}

// scanCtlOpener implements the "<:" dual grammar: a reserved name opens a
// control/section tag with standard attributes; anything else opens a raw
// Code fragment whose source runs, quote-aware, to the matching terminator.
func (l *Lexer) scanCtlOpener() Token {
	start := l.pos
	afterSigil := start + 2
	cand, candEnd := peekIdent(l.src, afterSigil)
	if cand != "" && ReservedCtlNames[cand] {
		return l.finishOpener(start, candEnd, TokenOpenCtl, cand, nil, "")
	}
	return l.scanRawFragment(start)
}

// scanRawFragment scans a bare "<: ... />" or "<: ...>" Code opener. The
// fragment source is the raw text between the sigil and the terminator,
// trimmed of surrounding whitespace. Quotes are tracked so a fragment may
// contain '>' or '/' characters inside string literals.
func (l *Lexer) scanRawFragment(start int) Token {
	i := start + 2
	fragStart := i
	var quote byte
	for i < len(l.src) {
		c := l.src[i]
		if quote != 0 {
			if c == '\\' && i+1 < len(l.src) {
				i += 2
				continue
			}
			if c == quote {
				quote = 0
			}
			i++
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
			i++
		case c == '/' && i+1 < len(l.src) && l.src[i+1] == '>':
			frag := strings.TrimSpace(l.src[fragStart:i])
			end := i + 2
			l.pos = end
			return Token{Type: TokenOpenCtl, Pos: start, End: end, Text: frag, SelfClose: true, Raw: l.src[start:end]}
		case c == '>':
			frag := strings.TrimSpace(l.src[fragStart:i])
			end := i + 1
			l.pos = end
			return Token{Type: TokenOpenCtl, Pos: start, End: end, Text: frag, SelfClose: false, Raw: l.src[start:end]}
		default:
			i++
		}
	}
	return l.errorToken(start)
}

// peekIdent scans a maximal-munch identifier at i without mutating lexer
// state, returning ("", i) if no identifier starts there.
func peekIdent(src string, i int) (string, int) {
	if i >= len(src) || !strings.ContainsRune(identStart, rune(src[i])) {
		return "", i
	}
	start := i
	i++
	for i < len(src) && strings.ContainsRune(identCont, rune(src[i])) {
		i++
	}
	return src[start:i], i
}

// finishOpener scans the attribute list starting at i and the closing
// "/>" or ">" for a named opener (VarScope, comment, or a reserved <:
// control/section tag).
func (l *Lexer) finishOpener(start, i int, typ TokenType, name string, _ []Attr, _ string) Token {
	attrs, end, ok := l.scanAttrs(i)
	if !ok {
		return l.errorToken(start)
	}
	i = end

	selfClose := false
	if i+1 < len(l.src) && l.src[i] == '/' && l.src[i+1] == '>' {
		selfClose = true
		i += 2
	} else if i < len(l.src) && l.src[i] == '>' {
		i++
	} else {
		return l.errorToken(start)
	}

	l.pos = i
	return Token{
		Type: typ, Pos: start, End: i, Name: name, Attrs: attrs,
		SelfClose: selfClose, Raw: l.src[start:i],
	}
}

// scanAttrs scans whitespace-separated attributes starting at i, stopping
// just before the closing "/>" or ">". It returns the updated offset.
func (l *Lexer) scanAttrs(i int) ([]Attr, int, bool) {
	var attrs []Attr
	for {
		for i < len(l.src) && isSpace(l.src[i]) {
			i++
		}
		if i >= len(l.src) {
			return nil, i, false
		}
		if l.src[i] == '>' || (l.src[i] == '/' && i+1 < len(l.src) && l.src[i+1] == '>') {
			return attrs, i, true
		}

		keyStart := i
		for i < len(l.src) && !isSpace(l.src[i]) && l.src[i] != '>' && l.src[i] != '=' {
			if l.src[i] == '/' && i+1 < len(l.src) && l.src[i+1] == '>' {
				break
			}
			i++
		}
		if i == keyStart {
			return nil, i, false
		}
		key := l.src[keyStart:i]

		if i < len(l.src) && l.src[i] == '=' {
			i++
			if i < len(l.src) && l.src[i] == '"' {
				valStart := i + 1
				j := valStart
				var sb strings.Builder
				for j < len(l.src) && l.src[j] != '"' {
					if l.src[j] == '\\' && j+1 < len(l.src) && (l.src[j+1] == '"' || l.src[j+1] == '\\') {
						sb.WriteByte(l.src[j+1])
						j += 2
						continue
					}
					sb.WriteByte(l.src[j])
					j++
				}
				if j >= len(l.src) {
					return nil, j, false
				}
				attrs = append(attrs, Attr{Key: key, Value: sb.String(), HasValue: true, Quoted: true})
				i = j + 1
			} else {
				valStart := i
				for i < len(l.src) && !isSpace(l.src[i]) && l.src[i] != '>' {
					i++
				}
				attrs = append(attrs, Attr{Key: key, Value: l.src[valStart:i], HasValue: true})
			}
		} else {
			attrs = append(attrs, Attr{Key: key, HasValue: false})
		}
	}
}

// errorToken recovers at the next '>' (or end of input) so the caller can
// resume scanning just past the malformed span — bounded, linear-time
// recovery per spec.md §4.1.
func (l *Lexer) errorToken(start int) Token {
	i := start
	for i < len(l.src) && l.src[i] != '>' {
		i++
	}
	if i < len(l.src) {
		i++
	}
	l.pos = i
	return Token{Type: TokenError, Pos: start, End: i, Raw: l.src[start:i]}
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
