package automerge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-session-automerge/pkg/document"
)

const (
	engineExpr = "expr"
	engineCEL  = "cel"
	engineJS   = "js"
)

// Evaluation phases reported by EvaluationError.
const (
	PhaseCompile = "compile"
	PhaseRun     = "run"
)

// ErrEmptyExpression is returned when compiling a blank expression.
var ErrEmptyExpression = errors.New("automerge: expression must not be empty")

// RuleContext is what a compiled expression evaluates against. A zero Now
// evaluates with the current time.
type RuleContext struct {
	Conflict Conflict
	Now      time.Time
	Args     map[string]any
}

// bindings exposes the conflict to expression engines. Sentinels become nil
// and are described by the has_initial, has_external and removed flags.
func (ctx RuleContext) bindings() map[string]any {
	c := ctx.Conflict
	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}
	args := ctx.Args
	if args == nil {
		args = map[string]any{}
	}
	return map[string]any{
		"key":          c.Key,
		"initial":      exportValue(c.Initial),
		"value":        exportValue(c.Value),
		"external":     exportValue(c.External),
		"has_initial":  !document.IsSentinel(c.Initial),
		"has_external": !document.IsSentinel(c.External),
		"removed":      document.IsRemoved(c.Value),
		"now":          now,
		"args":         args,
	}
}

// exportValue hands engines floats for every integer float64 holds exactly,
// so mixed arithmetic behaves the same as for JSON numbers.
func exportValue(value any) any {
	if document.IsSentinel(value) {
		return nil
	}
	return document.FloatSafe(document.Normalize(value))
}

// Evaluator compiles resolver expressions for one expression language.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable compiled expression. Implementations are safe
// for concurrent use.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// EvaluatorOption configures any of the expression engines.
type EvaluatorOption func(*evaluatorConfig)

// WithProgramCache shares compiled programs through cache. Entries are keyed
// by engine, function registry and expression, so one cache can serve
// several evaluators.
func WithProgramCache(cache ProgramCache) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// WithFunctions exposes the functions in registry to expressions. The
// registry is copied; later registrations are not visible.
func WithFunctions(registry *FunctionRegistry) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.registry = registry.Clone()
		cfg.scope = ""
		if cfg.registry != nil {
			cfg.scope = nextFunctionScope()
		}
	}
}

type evaluatorConfig struct {
	engine   string
	scope    string
	cache    ProgramCache
	registry *FunctionRegistry
}

func newEvaluatorConfig(engine string, opts []EvaluatorOption) evaluatorConfig {
	cfg := evaluatorConfig{engine: engine}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// program returns the cached program for expression, building it with
// compile on a miss.
func (cfg evaluatorConfig) program(expression string, compile func() (any, error)) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, &EvaluationError{Engine: cfg.engine, Phase: PhaseCompile, Err: ErrEmptyExpression}
	}
	key := cacheKey(cfg.engine, cfg.scope, expression)
	if cfg.cache != nil {
		if cached, ok := cfg.cache.Get(key); ok {
			return cached, nil
		}
	}
	program, err := compile()
	if err != nil {
		return nil, cfg.compileError(expression, err)
	}
	if cfg.cache != nil {
		cfg.cache.Set(key, program)
	}
	return program, nil
}

func (cfg evaluatorConfig) functionNames() []string {
	return cfg.registry.Names()
}

func (cfg evaluatorConfig) call(name string, args ...any) (any, error) {
	return cfg.registry.Call(name, args...)
}

func (cfg evaluatorConfig) compileError(expression string, err error) error {
	return &EvaluationError{Engine: cfg.engine, Phase: PhaseCompile, Expr: expression, Err: err}
}

func (cfg evaluatorConfig) runError(expression string, ctx RuleContext, err error) error {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	return &EvaluationError{
		Engine: cfg.engine,
		Phase:  PhaseRun,
		Expr:   expression,
		Key:    ctx.Conflict.Key,
		Err:    err,
	}
}

func (cfg evaluatorConfig) unexpectedProgram(expression string, program any) error {
	return cfg.compileError(expression, fmt.Errorf("cached program has type %T", program))
}

// EvaluationError reports an expression that failed to compile or run.
type EvaluationError struct {
	Engine string
	Phase  string
	Expr   string
	Key    string
	Err    error
}

func (e *EvaluationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "automerge: %s %s", e.Engine, e.Phase)
	if e.Key != "" {
		fmt.Fprintf(&b, " key=%q", e.Key)
	}
	if e.Expr != "" {
		fmt.Fprintf(&b, " expr=%q", e.Expr)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
