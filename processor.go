package tagtmpl

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/zipreport/tagtmpl/cache"
	"github.com/zipreport/tagtmpl/loader"
	"github.com/zipreport/tagtmpl/parser"
	"github.com/zipreport/tagtmpl/runtime"
	"github.com/zipreport/tagtmpl/value"
)

// ErrorPolicy selects how a Processor reacts to a fragment compile/runtime
// failure (spec.md §7): warn substitutes empty output and keeps going, die
// aborts the whole evaluation, output substitutes the error message itself
// into the rendered text, and callable hands the failure to caller-supplied
// code. Every policy appends a Diagnostic to the processor's error log
// first; the policies differ only in what happens at the failure site.
type ErrorPolicy int

const (
	PolicyWarn ErrorPolicy = iota
	PolicyDie
	PolicyOutput
	PolicyCallable
)

// Callback is the signature a PolicyCallable handler must satisfy: given the
// raw failure message, it returns the text to substitute, or an error of its
// own to fall back to die semantics (spec.md §7: "if the callable itself
// raises, that is treated as a die").
type Callback func(message string) (string, error)

// ProcessorOption configures a Processor at construction (functional-options
// pattern, grounded on the teacher's EnvironmentOption).
type ProcessorOption func(*Processor)

// WithNamespace sets the host namespace identifier used to key this
// processor's compiled fragments in the shared cache (spec.md §4.2, §4.5).
// Two processors sharing a namespace and evaluating identical fragment
// source reuse each other's compiled program.
func WithNamespace(ns string) ProcessorOption {
	return func(p *Processor) { p.namespace = ns }
}

// WithErrorPolicy sets the dispatch policy for fragment compile/runtime
// failures. Use WithErrorCallback instead when the policy is PolicyCallable.
func WithErrorPolicy(policy ErrorPolicy) ProcessorOption {
	return func(p *Processor) { p.errorPolicy = policy }
}

// WithErrorCallback installs a callable error policy: fn is invoked with
// each failure's message, and its return value (or a fallback to die
// semantics, if fn itself errors) is substituted at the failure site.
func WithErrorCallback(fn Callback) ProcessorOption {
	return func(p *Processor) {
		p.errorPolicy = PolicyCallable
		p.callback = fn
	}
}

// WithErrorPrefix sets a string prepended to every Diagnostic's message and,
// under PolicyOutput, to the substituted output text itself.
func WithErrorPrefix(prefix string) ProcessorOption {
	return func(p *Processor) { p.log.eprefix = prefix }
}

// WithCacheBypass disables the shared parsed-template/compiled-fragment
// cache for this processor (spec.md §4.2). The processor's own template is
// parsed once, at construction; <:include>/<:eval> templates are reparsed
// and fragments recompiled from scratch each time they are used.
func WithCacheBypass() ProcessorOption {
	return func(p *Processor) { p.cacheBypass = true }
}

// WithCache supplies a specific *cache.Cache instance instead of the
// process-wide default returned by cache.Global() — mainly useful for tests
// that want an isolated or differently-sized cache.
func WithCache(c *cache.Cache) ProcessorOption {
	return func(p *Processor) { p.cache = c }
}

// WithLoader supplies the external collaborator used to resolve <:include>
// targets. The default is a loader.FileSystemLoader with no extensions.
func WithLoader(ld loader.Loader) ProcessorOption {
	return func(p *Processor) { p.loader = ld }
}

// WithSearchPath sets the ordered directory list passed to the loader on
// every include resolution (spec.md §6).
func WithSearchPath(dirs ...string) ProcessorOption {
	return func(p *Processor) { p.searchPath = dirs }
}

// WithLogger installs a *zap.Logger for this processor's operational
// logging (cache trims, compile/load failures, die-policy aborts). The
// default is zap.NewNop().
func WithLogger(logger *zap.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
		p.loggerSet = true
	}
}

// Processor is the façade over the lexer/parser, evaluator, and shared
// cache: construct one from literal text (New) or a file (Open), then call
// Evaluate or EvaluateToSink as many times as needed with whatever private
// data and bindings the template references (spec.md §4.5).
type Processor struct {
	namespace   string
	errorPolicy ErrorPolicy
	callback    Callback
	cacheBypass bool
	cache       *cache.Cache
	loader      loader.Loader
	searchPath  []string
	logger      *zap.Logger
	loggerSet   bool

	log  *errorLog
	eval *runtime.Evaluator
	tree *parser.Tree
}

func newProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		namespace: "default",
		cache:     cache.Global(),
		loader:    loader.NewFileSystemLoader(),
		logger:    zap.NewNop(),
		log:       &errorLog{},
	}
	for _, o := range opts {
		o(p)
	}
	if p.loggerSet {
		p.cache.SetLogger(p.logger)
	}
	p.eval = runtime.New(p.cache, p.loader, p.searchPath, p.namespace, p.cacheBypass, p)
	return p
}

// New builds a Processor from literal template text.
func New(source string, opts ...ProcessorOption) (*Processor, error) {
	p := newProcessor(opts...)
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.tree = p.parse(source)
	return p, nil
}

// Open builds a Processor by resolving name through the configured loader
// and search path (WithLoader/WithSearchPath), exactly as an <:include>
// would. Construction fails, with the load failure surfaced as the cause,
// when name cannot be read (spec.md §4.5: "constructing from a filename
// that cannot be read fails construction with the underlying cause").
func Open(name string, opts ...ProcessorOption) (*Processor, error) {
	p := newProcessor(opts...)
	if err := p.validate(); err != nil {
		return nil, err
	}
	data, err := p.loader.Resolve(name, p.searchPath)
	if err != nil {
		p.logger.Warn("processor: load failed", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("tagtmpl: open %q: %w", name, err)
	}
	p.tree = p.parse(string(data))
	return p, nil
}

func (p *Processor) validate() error {
	if p.errorPolicy == PolicyCallable && p.callback == nil {
		return fmt.Errorf("tagtmpl: PolicyCallable requires WithErrorCallback")
	}
	return nil
}

// parse parses src through the shared parsed-template cache (unless the
// processor is configured for cache bypass), mirroring how the evaluator
// parses an <:include> target, and reports any recoverable parse
// diagnostics the result carries (spec.md §7 kind 2).
func (p *Processor) parse(src string) *parser.Tree {
	var tree *parser.Tree
	if p.cacheBypass {
		tree = parser.Parse(src)
	} else {
		key := parser.Fingerprint(src)
		v := p.cache.GetOrInsertParsed(key, func() any {
			return parser.Parse(src)
		})
		tree = v.(*parser.Tree)
	}
	p.ReportParseDiagnostics(tree.Diagnostics)
	return tree
}

// Binding supplies one named parameter to Evaluate/EvaluateToSink.
type Binding func(map[string]value.Value)

// Bind attaches a Value under key.
func Bind(key string, v value.Value) Binding {
	return func(m map[string]value.Value) { m[key] = v }
}

// BindString attaches a scalar string value under key.
func BindString(key, s string) Binding {
	return Bind(key, value.Scalar(s))
}

// BindList attaches a list of scalar strings under key.
func BindList(key string, ss ...string) Binding {
	vs := make([]value.Value, len(ss))
	for i, s := range ss {
		vs[i] = value.Scalar(s)
	}
	return Bind(key, value.List(vs))
}

// Evaluate renders the processor's template, threading privateData through
// to every compiled fragment and binding each supplied Binding as a
// top-level parameter (spec.md §3, §4.5).
func (p *Processor) Evaluate(privateData any, bindings ...Binding) (string, error) {
	params := make(map[string]value.Value, len(bindings))
	for _, b := range bindings {
		b(params)
	}
	out, err := p.eval.Evaluate(p.tree, params, privateData)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Sink is anything EvaluateToSink can deliver rendered output to: an
// io.Writer, a plain function, or a filename to create/truncate.
type Sink any

// EvaluateToSink evaluates the template and delivers the result to sink.
// If evaluation itself fails, sink is never touched and the evaluation
// error is returned unchanged; a failure writing to sink is reported as its
// own error and also appended to the processor's error log.
func (p *Processor) EvaluateToSink(sink Sink, privateData any, bindings ...Binding) error {
	out, err := p.Evaluate(privateData, bindings...)
	if err != nil {
		return err
	}
	if err := p.deliver(sink, out); err != nil {
		p.log.append(KindSink, err)
		return err
	}
	return nil
}

func (p *Processor) deliver(sink Sink, out string) error {
	switch s := sink.(type) {
	case io.Writer:
		_, err := io.WriteString(s, out)
		return err
	case func(string) error:
		return s(out)
	case func(string):
		s(out)
		return nil
	case string:
		return os.WriteFile(s, []byte(out), 0o644)
	default:
		return fmt.Errorf("tagtmpl: unsupported sink type %T", sink)
	}
}

// Errors returns a snapshot of every Diagnostic appended so far across all
// evaluations on this processor (spec.md §5: the list is never cleared
// automatically between evaluate calls).
func (p *Processor) Errors() []Diagnostic {
	return p.log.snapshot()
}

// ClearErrors returns every Diagnostic appended so far and empties the log.
func (p *Processor) ClearErrors() []Diagnostic {
	return p.log.drain()
}

// ReportParseDiagnostics implements runtime.ErrorHandler's parse-diagnostic
// side: every recoverable parse diagnostic (unmatched close, malformed tag,
// opener left unclosed at end of input) is appended to the error log as a KindParse
// Diagnostic, with its own source context already baked into the message
// by parser.Diagnostic.String() (spec.md §7 kind 2).
func (p *Processor) ReportParseDiagnostics(diags []parser.Diagnostic) {
	p.log.appendParseDiagnostics(diags)
}

// HandleFragmentError implements runtime.ErrorHandler, dispatching a
// fragment compile/runtime failure per the configured ErrorPolicy (spec.md
// §7). Every policy first appends a Diagnostic; the policies then differ
// only in the (value, abort) result reported back to the evaluator.
func (p *Processor) HandleFragmentError(err error) (value.Value, bool) {
	d := p.log.append(KindFragmentRuntime, err)

	// Compile and load failures are logged at Warn regardless of policy
	// (SPEC_FULL.md §1.1): these are host-authoring mistakes a future
	// policy dispatch can still paper over in the rendered output, but an
	// operator watching logs should see them happen.
	switch d.Kind {
	case KindFragmentCompile:
		p.logger.Warn("tagtmpl: fragment compile error", zap.String("message", d.Message))
	case KindLoad:
		p.logger.Warn("tagtmpl: include resolution failed", zap.String("message", d.Message))
	}

	switch p.errorPolicy {
	case PolicyDie:
		p.logger.Info("tagtmpl: evaluation aborted", zap.String("message", d.Message))
		return value.None, true

	case PolicyOutput:
		return value.Scalar(d.Message), false

	case PolicyCallable:
		out, cerr := p.callback(rootMessage(err))
		if cerr != nil {
			p.logger.Warn("tagtmpl: error callback failed, falling back to die", zap.Error(cerr))
			return value.None, true
		}
		return value.Scalar(out), false

	default: // PolicyWarn
		if d.Kind == KindFragmentRuntime {
			p.logger.Warn("tagtmpl: fragment error", zap.String("message", d.Message))
		}
		return value.Scalar(""), false
	}
}
