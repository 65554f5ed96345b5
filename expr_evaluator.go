package automerge

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprEvaluator struct {
	cfg evaluatorConfig
}

// NewExprEvaluator returns an Evaluator for the expr language
// (github.com/expr-lang/expr). Registered functions are callable by name and
// through call("name", args...).
func NewExprEvaluator(opts ...EvaluatorOption) Evaluator {
	return &exprEvaluator{cfg: newEvaluatorConfig(engineExpr, opts)}
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	program, err := e.cfg.program(expression, func() (any, error) {
		options := []exprlang.Option{
			exprlang.Env(map[string]any{}),
			exprlang.AllowUndefinedVariables(),
		}
		for _, name := range e.cfg.functionNames() {
			name := name
			options = append(options, exprlang.Function(name, func(arguments ...any) (any, error) {
				return e.cfg.call(name, arguments...)
			}))
		}
		return exprlang.Compile(expression, options...)
	})
	if err != nil {
		return nil, err
	}
	compiled, ok := program.(*exprvm.Program)
	if !ok {
		return nil, e.cfg.unexpectedProgram(expression, program)
	}
	return &exprRule{cfg: e.cfg, program: compiled, expression: expression}, nil
}

type exprRule struct {
	cfg        evaluatorConfig
	program    *exprvm.Program
	expression string
}

func (r *exprRule) Evaluate(ctx RuleContext) (any, error) {
	env := ctx.bindings()
	if r.cfg.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return r.cfg.call(name, arguments...)
		}
	}
	result, err := exprlang.Run(r.program, env)
	if err != nil {
		return nil, r.cfg.runError(r.expression, ctx, err)
	}
	return result, nil
}
