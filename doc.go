// Package tagtmpl is a tag-based HTML template core: a lexer/parser that
// builds a small tagged-variant IR (parser), an embedded code-fragment
// compiler (fragment), a depth-first IR evaluator (runtime), and a
// process-wide bounded LRU shared by both the parsed-template and
// compiled-fragment caches (cache).
//
// The Processor type in this package is the façade most callers need:
// construct one from literal template text or a file, then call Evaluate
// (or EvaluateToSink) with whatever private data and bindings the
// template's own control sequences reference.
package tagtmpl
