package runtime

import "github.com/zipreport/tagtmpl/value"

// Frame is the evaluator's mutable per-scope state (spec.md §4.4): the
// current parameter map and the current value a bare "<:/>" resolves to.
// Frames are created fresh for each nested scope (For/Eval/Include
// iteration, VarScope per-element rendering); Params is never mutated in
// place once a Frame is built, so sibling scopes never see each other's
// bindings.
type Frame struct {
	Params  map[string]value.Value
	Current value.Value
}

// child builds a new Frame for a nested scope. When inherit is true, the
// new scope's parameter map starts as a copy of the enclosing frame's
// (spec.md §4.4 ":inherit ... unreferenced bindings from the enclosing
// scope pass through"); declared bindings are then applied on top, so a
// declared binding always shadows an inherited one of the same name.
func (f *Frame) child(declared map[string]value.Value, inherit bool) *Frame {
	params := make(map[string]value.Value, len(declared))
	if inherit {
		for k, v := range f.Params {
			params[k] = v
		}
	}
	for k, v := range declared {
		params[k] = v
	}
	return &Frame{Params: params, Current: value.None}
}

// runCtx is the state threaded through one top-level Evaluate call: the
// private data shared by every fragment invocation in that evaluation, and
// the include stack used for cycle detection (spec.md §9).
type runCtx struct {
	data          any
	includeStack  []uint64
}

func (rc *runCtx) pushInclude(fingerprint uint64) bool {
	for _, f := range rc.includeStack {
		if f == fingerprint {
			return false
		}
	}
	rc.includeStack = append(rc.includeStack, fingerprint)
	return true
}

func (rc *runCtx) popInclude() {
	rc.includeStack = rc.includeStack[:len(rc.includeStack)-1]
}
