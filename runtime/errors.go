package runtime

import (
	"errors"
	"fmt"

	"github.com/zipreport/tagtmpl/parser"
	"github.com/zipreport/tagtmpl/value"
)

// ErrorHandler dispatches a fragment-runtime-class error per the
// processor's error policy (spec.md §7 kind 4). HandleFragmentError is
// called by the evaluator wherever a compiled fragment, a <:cond> case
// condition, or an include resolution fails; it returns the value to
// substitute at the failure site, and whether the whole evaluation must
// abort (die semantics). ReportParseDiagnostics is called whenever the
// evaluator parses source through parseTemplate (an <:include> target or an
// <:eval>-generated template) and the result carries recoverable parse
// diagnostics (spec.md §7 kind 2: "logged to the error list with source
// context" — parsing itself never aborts, I1).
//
// The root package's Processor implements it; it is kept as an interface
// here so the evaluator has no dependency on the processor façade or its
// configuration.
type ErrorHandler interface {
	HandleFragmentError(err error) (substitute value.Value, abort bool)
	ReportParseDiagnostics(diags []parser.Diagnostic)
}

// ErrAbort is returned by Evaluate when an ErrorHandler signals abort (the
// "die" policy, spec.md §7: "abort the current evaluate with a failure
// result; partial output is discarded").
var ErrAbort = errors.New("runtime: evaluation aborted")

// IncludeCycleError reports a repeated <:include> target within one
// evaluation (spec.md §9: "guard against include cycles ... reporting
// cycles as parse errors at the second occurrence").
type IncludeCycleError struct {
	Name string
}

func (e *IncludeCycleError) Error() string {
	return fmt.Sprintf("include cycle detected: %q includes itself", e.Name)
}

// StraySectionError is the evaluator-top-level error for spec.md §4.4's "A
// stray Section encountered at evaluator top level is an error."
type StraySectionError struct {
	Tag string
}

func (e *StraySectionError) Error() string {
	return fmt.Sprintf("stray <:%s> section outside its parent scope", e.Tag)
}
