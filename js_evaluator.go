//go:build js_eval

package automerge

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cfg evaluatorConfig
}

// NewJSEvaluator returns an Evaluator for JavaScript expressions run by goja.
// Registered functions are installed as globals and through call("name", ...).
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	return &jsEvaluator{cfg: newEvaluatorConfig(engineJS, opts)}
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string) (CompiledRule, error) {
	program, err := e.cfg.program(expression, func() (any, error) {
		return goja.Compile("resolver.js", fmt.Sprintf("(function(){ return (%s); })()", expression), true)
	})
	if err != nil {
		return nil, err
	}
	compiled, ok := program.(*goja.Program)
	if !ok {
		return nil, e.cfg.unexpectedProgram(expression, program)
	}
	return &jsRule{cfg: e.cfg, program: compiled, expression: expression}, nil
}

type jsRule struct {
	cfg        evaluatorConfig
	program    *goja.Program
	expression string
}

// Evaluate runs the program on a fresh runtime; goja runtimes are not safe
// for concurrent use.
func (r *jsRule) Evaluate(ctx RuleContext) (any, error) {
	vm := goja.New()
	if err := r.install(vm, ctx); err != nil {
		return nil, r.cfg.runError(r.expression, ctx, err)
	}
	value, err := vm.RunProgram(r.program)
	if err != nil {
		return nil, r.cfg.runError(r.expression, ctx, err)
	}
	if goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

func (r *jsRule) install(vm *goja.Runtime, ctx RuleContext) error {
	for name, value := range ctx.bindings() {
		if err := vm.Set(name, value); err != nil {
			return err
		}
	}
	if r.cfg.registry == nil {
		return nil
	}
	if err := vm.Set("call", r.cfg.call); err != nil {
		return err
	}
	for _, name := range r.cfg.functionNames() {
		name := name
		if err := vm.Set(name, func(arguments ...any) (any, error) {
			return r.cfg.call(name, arguments...)
		}); err != nil {
			return err
		}
	}
	return nil
}

func jsEvaluatorAvailable() bool {
	return true
}
