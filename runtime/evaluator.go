// Package runtime is the evaluator (spec.md §4.4): a depth-first walker
// over the parser's IR that produces an output string, expanding VarScope
// list transforms, dispatching control sequences, and invoking compiled
// code fragments through the shared cache.
package runtime

import (
	"fmt"
	"strings"

	"github.com/zipreport/tagtmpl/cache"
	"github.com/zipreport/tagtmpl/fragment"
	"github.com/zipreport/tagtmpl/loader"
	"github.com/zipreport/tagtmpl/parser"
	"github.com/zipreport/tagtmpl/value"
)

// Evaluator holds the configuration shared by every evaluate() call on one
// processor (spec.md §4.5): the shared cache, the external loader and its
// search path, the host namespace identifier used to key compiled
// fragments, the cache-bypass flag, and the error policy.
type Evaluator struct {
	Cache       *cache.Cache
	Loader      loader.Loader
	SearchPath  []string
	Namespace   string
	CacheBypass bool
	Errors      ErrorHandler
}

// New builds an Evaluator.
func New(c *cache.Cache, ld loader.Loader, searchPath []string, namespace string, bypass bool, errs ErrorHandler) *Evaluator {
	return &Evaluator{Cache: c, Loader: ld, SearchPath: searchPath, Namespace: namespace, CacheBypass: bypass, Errors: errs}
}

// Evaluate renders tree's root IR under a fresh top-level scope built from
// params and data (spec.md §3 "Private data ... the evaluator creates a
// fresh empty map per top-level evaluation and reuses it across all nested
// scopes within that evaluation").
func (e *Evaluator) Evaluate(tree *parser.Tree, params map[string]value.Value, data any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	rc := &runCtx{data: data}
	frame := &Frame{Params: params, Current: value.None}
	if frame.Params == nil {
		frame.Params = map[string]value.Value{}
	}
	var out strings.Builder
	if err := e.evalInto(&out, tree.Root, frame, rc); err != nil {
		return "", err
	}
	return out.String(), nil
}

// evalNodes renders nodes to a string.
func (e *Evaluator) evalNodes(nodes []parser.Node, frame *Frame, rc *runCtx) (string, error) {
	var out strings.Builder
	if err := e.evalInto(&out, nodes, frame, rc); err != nil {
		return "", err
	}
	return out.String(), nil
}

// evalInto is the depth-first dispatch loop (spec.md §4.4).
func (e *Evaluator) evalInto(out *strings.Builder, nodes []parser.Node, frame *Frame, rc *runCtx) error {
	for _, n := range nodes {
		if err := e.evalOne(out, n, frame, rc); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) evalOne(out *strings.Builder, n parser.Node, frame *Frame, rc *runCtx) error {
	switch node := n.(type) {
	case *parser.TextNode:
		out.WriteString(node.Value)
		return nil
	case *parser.CommentNode:
		return nil
	case *parser.CodeNode:
		v, err := e.runCode(node, frame, rc)
		if err != nil {
			return err
		}
		value.Render(v, out)
		return nil
	case *parser.VarScopeNode:
		s, err := e.evalVarScope(node, frame, rc)
		if err != nil {
			return err
		}
		out.WriteString(s)
		return nil
	case *parser.ForNode:
		s, err := e.evalFor(node, frame, rc)
		if err != nil {
			return err
		}
		out.WriteString(s)
		return nil
	case *parser.EvalNode:
		s, err := e.evalEval(node, frame, rc)
		if err != nil {
			return err
		}
		out.WriteString(s)
		return nil
	case *parser.IncludeNode:
		s, err := e.evalInclude(node, frame, rc)
		if err != nil {
			return err
		}
		out.WriteString(s)
		return nil
	case *parser.CondNode:
		s, err := e.evalCond(node, frame, rc)
		if err != nil {
			return err
		}
		out.WriteString(s)
		return nil
	case *parser.SectionNode:
		sub, abort := e.Errors.HandleFragmentError(&StraySectionError{Tag: node.Tag})
		if abort {
			return ErrAbort
		}
		value.Render(sub, out)
		return nil
	default:
		return fmt.Errorf("runtime: unhandled IR node %T", n)
	}
}

// runCode evaluates a Code(frag, body) node (spec.md §4.4): the bare
// "<:/>" special case resolves to the current value; anything else
// compiles (through the cache, unless bypassed) and invokes the fragment.
func (e *Evaluator) runCode(node *parser.CodeNode, frame *Frame, rc *runCtx) (value.Value, error) {
	if node.Fragment == "" && node.Body == nil {
		return frame.Current, nil
	}

	prog, err := e.compileFragment(node.Fragment)
	if err != nil {
		return e.handleFragmentErr(err)
	}

	env := fragment.Env{Value: frame.Current, Data: rc.data, Params: frame.Params}.ToMap()
	result, err := prog.Run(env)
	if err != nil {
		return e.handleFragmentErr(err)
	}
	return result, nil
}

// compiledFragment is the value stored in the compiled-fragment cache
// table: compilation failures are memoized too, since build functions are
// assumed pure (spec.md §5) and compiling the same source twice would only
// reproduce the same failure.
type compiledFragment struct {
	prog *fragment.Program
	err  error
}

// compileFragment compiles source, routing through the compiled-fragment
// cache table unless the processor is configured for cache-bypass (spec.md
// §4.2: "When a processor is configured with cache-bypass, compiled
// fragments are built per evaluation and discarded").
func (e *Evaluator) compileFragment(source string) (*fragment.Program, error) {
	if e.CacheBypass {
		return fragment.Compile(source)
	}
	key := fragment.Key(source, e.Namespace)
	v := e.Cache.GetOrInsertFragment(key, func() any {
		p, err := fragment.Compile(source)
		return compiledFragment{prog: p, err: err}
	})
	cf := v.(compiledFragment)
	return cf.prog, cf.err
}

// handleFragmentErr consults the configured ErrorHandler for a fragment
// compile/runtime error, translating its decision into the (value, error)
// shape evalOne/runCode expect.
func (e *Evaluator) handleFragmentErr(err error) (value.Value, error) {
	sub, abort := e.Errors.HandleFragmentError(err)
	if abort {
		return value.None, ErrAbort
	}
	return sub, nil
}

// parseTemplate parses src through the parsed-template cache (unless
// bypassed), keyed by content fingerprint (spec.md §4.2/§4.3). Any
// recoverable parse diagnostics the result carries are reported to the
// configured ErrorHandler on every call — a cache hit re-reports the same
// tree's diagnostics, mirroring how a cached compiled fragment's error is
// re-dispatched through HandleFragmentError on every use rather than only
// the first (spec.md §7: the processor's policy governs every occurrence).
func (e *Evaluator) parseTemplate(src string) *parser.Tree {
	var tree *parser.Tree
	if e.CacheBypass {
		tree = parser.Parse(src)
	} else {
		key := parser.Fingerprint(src)
		v := e.Cache.GetOrInsertParsed(key, func() any {
			return parser.Parse(src)
		})
		tree = v.(*parser.Tree)
	}
	if len(tree.Diagnostics) > 0 {
		e.Errors.ReportParseDiagnostics(tree.Diagnostics)
	}
	return tree
}
