package parser

import "fmt"

// Diagnostic is a structural parse problem: an unmatched close, a malformed
// tag (including a malformed attribute), or an opener left unclosed at end
// of input (spec.md §4.1). The parser recovers from the first two by
// emitting a TextNode over the offending span and resuming at the next
// opener, and from the last by closing the open node at end of input, so
// Diagnostics never abort parsing.
type Diagnostic struct {
	Pos     int
	Message string
	Span    string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("parse error at byte %d: %s (near %q)", d.Pos, d.Message, d.Span)
}
