// Package fragment wraps embedded code-fragment source text as a compiled,
// callable program (spec.md §4.2 "Code-fragment Compiler"), using
// github.com/expr-lang/expr as the host-language execution engine.
//
// A fragment is arbitrary host-language source seen by the evaluator as an
// opaque string; compiling it produces a reusable *Program keyed by content
// hash plus host namespace, so the shared cache (see package cache) can
// memoize compilation across evaluations.
package fragment

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/zipreport/tagtmpl/value"
)

// exprOptions are applied to every compiled fragment. die is the one
// builtin the core itself supplies: a fragment that wants to force a
// fragment-runtime error (spec.md §7 kind 4, end-to-end scenario 5) calls
// die("message") rather than relying on a host-specific raise statement.
func exprOptions() []expr.Option {
	return []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.Function("die", func(params ...any) (any, error) {
			msg := ""
			if len(params) > 0 {
				msg = fmt.Sprintf("%v", params[0])
			}
			return nil, errors.New(msg)
		}),
	}
}

// Program is a compiled fragment, ready to be invoked with an Env.
type Program struct {
	Source string
	prog   *vm.Program
}

// Compile parses and compiles source into a Program. Compilation is
// deferred by callers until first use (spec.md §4.2); Compile itself is
// eager once called. Undefined identifiers are allowed so a fragment may
// freely reference conventional bindings ("v", "data", "params") or any
// name present in the current parameter map without a static environment
// declaration.
func Compile(source string) (*Program, error) {
	prog, err := expr.Compile(source, exprOptions()...)
	if err != nil {
		return nil, fmt.Errorf("fragment: compile %q: %w", source, err)
	}
	return &Program{Source: source, prog: prog}, nil
}

// Run invokes the compiled program against env, wrapping the result as a
// value.Value (spec.md §4.2's "may return any Value shape").
func (p *Program) Run(env map[string]any) (value.Value, error) {
	out, err := expr.Run(p.prog, env)
	if err != nil {
		return value.None, fmt.Errorf("fragment: run %q: %w", p.Source, err)
	}
	return value.FromAny(out), nil
}

// Env is the three contextual inputs every fragment invocation receives
// (spec.md §3 "Compiled fragment", §4: current value, private data, current
// parameter map).
type Env struct {
	Value  value.Value
	Data   any
	Params map[string]value.Value
}

// Conventional binding names exposed to fragment source. A VarScope's
// per-element value is the current value, so it is visible as "v" (spec.md
// §4.4, §9 "$v" convention).
const (
	BindCurrentValue = "v"
	BindPrivateData  = "data"
	BindParams       = "params"
)

// ToMap flattens Env into the map expr.Run expects: the three conventional
// bindings, plus every parameter-map entry bound directly under its own
// name (so "<:cond x>"'s var_names, or any other parameter, are visible to
// fragment source without an extra accessor).
func (e Env) ToMap() map[string]any {
	m := make(map[string]any, len(e.Params)+3)
	for k, v := range e.Params {
		m[k] = value.ToAny(v)
	}
	m[BindCurrentValue] = value.ToAny(e.Value)
	m[BindPrivateData] = e.Data
	params := make(map[string]any, len(e.Params))
	for k, v := range e.Params {
		params[k] = value.ToAny(v)
	}
	m[BindParams] = params
	return m
}

// Key computes the compiled-fragment cache key: spec.md §4.2 keys by
// "(hash(source), namespace)". The two parts are combined with a NUL
// separator, which cannot appear in either a fragment's source text or a
// namespace identifier in practice.
func Key(source, namespace string) uint64 {
	return xxhash.Sum64String(namespace + "\x00" + source)
}
