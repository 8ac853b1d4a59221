package tagtmpl

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zipreport/tagtmpl/parser"
)

// ErrorKind classifies a Diagnostic per spec.md §7's five kinds: a parse
// diagnostic recovered by the parser (or an <:include> cycle), a bad
// include/file load, a fragment compile failure, a fragment runtime failure
// (including a failed <:cond> condition), and a sink write failure, which is
// both returned to the caller and appended to the log.
type ErrorKind int

const (
	KindParse ErrorKind = iota
	KindLoad
	KindFragmentCompile
	KindFragmentRuntime
	KindSink
)

func (k ErrorKind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindLoad:
		return "load"
	case KindFragmentCompile:
		return "compile"
	case KindFragmentRuntime:
		return "runtime"
	case KindSink:
		return "sink"
	default:
		return "unknown"
	}
}

// Diagnostic is one entry in a Processor's append-only error log (spec.md
// §7 "every dispatched error is appended to a running list regardless of
// policy"). Message already carries the processor's configured prefix.
type Diagnostic struct {
	Kind    ErrorKind
	Message string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("[%s] %s", d.Kind, d.Message)
}

// errorLog is the append-only, prefix-aware error list behind
// Processor.Errors/ClearErrors (spec.md §5 resource scoping: "the error list
// is never cleared automatically between evaluations; clear_errors()
// returns everything accumulated so far and empties it").
type errorLog struct {
	mu      sync.Mutex
	eprefix string
	entries []Diagnostic
}

// append records err under kind. kind is advisory only for fragment
// failures reaching HandleFragmentError: classifyKind refines it using the
// outermost wrapper's own message, since a failed <:include> resolution and
// a failed fragment compile both arrive through the same ErrorHandler call.
func (l *errorLog) append(kind ErrorKind, err error) Diagnostic {
	d := Diagnostic{Kind: classifyKind(kind, err), Message: l.eprefix + rootMessage(err)}
	l.mu.Lock()
	l.entries = append(l.entries, d)
	l.mu.Unlock()
	return d
}

func classifyKind(fallback ErrorKind, err error) ErrorKind {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "include cycle detected"):
		return KindParse
	case strings.HasPrefix(msg, "loader:"):
		return KindLoad
	case strings.HasPrefix(msg, "fragment: compile"):
		return KindFragmentCompile
	case strings.HasPrefix(msg, "fragment: run"):
		return KindFragmentRuntime
	default:
		return fallback
	}
}

// appendText records a pre-formatted message under kind directly, bypassing
// the error-unwrapping/classification append does — used for parse
// diagnostics, which already carry their own source context via
// parser.Diagnostic.String() and are never a wrapped Go error.
func (l *errorLog) appendText(kind ErrorKind, text string) Diagnostic {
	d := Diagnostic{Kind: kind, Message: l.eprefix + text}
	l.mu.Lock()
	l.entries = append(l.entries, d)
	l.mu.Unlock()
	return d
}

func (l *errorLog) appendParseDiagnostics(diags []parser.Diagnostic) {
	for _, pd := range diags {
		l.appendText(KindParse, pd.String())
	}
}

func (l *errorLog) snapshot() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Diagnostic, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *errorLog) drain() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.entries
	l.entries = nil
	return out
}

// rootMessage unwraps err to the innermost wrapped cause and returns its
// message — a compiled fragment's runtime error reaches the error log
// wrapped in at least one layer of "fragment: run %q: %w"; scenario 5 in
// spec.md §8 wants the bare "boom" a die() call raised, not the wrapper
// text around it.
func rootMessage(err error) string {
	for {
		u := errors.Unwrap(err)
		if u == nil {
			return err.Error()
		}
		err = u
	}
}
