package automerge

import (
	"fmt"
	"reflect"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/goliatone/go-session-automerge/pkg/document"
)

// maxCallArity bounds the overloads declared for the call helper.
const maxCallArity = 4

type celEvaluator struct {
	cfg evaluatorConfig
}

// NewCELEvaluator returns an Evaluator for Common Expression Language
// programs. Registered functions are reachable through call("name", args...).
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	return &celEvaluator{cfg: newEvaluatorConfig(engineCEL, opts)}
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	program, err := e.cfg.program(expression, func() (any, error) {
		env, err := e.buildEnv()
		if err != nil {
			return nil, err
		}
		ast, issues := env.Compile(expression)
		if issues != nil && issues.Err() != nil {
			return nil, issues.Err()
		}
		return env.Program(ast)
	})
	if err != nil {
		return nil, err
	}
	compiled, ok := program.(celgo.Program)
	if !ok {
		return nil, e.cfg.unexpectedProgram(expression, program)
	}
	return &celRule{cfg: e.cfg, program: compiled, expression: expression}, nil
}

func (e *celEvaluator) buildEnv() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("key", celgo.StringType),
		celgo.Variable("initial", celgo.DynType),
		celgo.Variable("value", celgo.DynType),
		celgo.Variable("external", celgo.DynType),
		celgo.Variable("has_initial", celgo.BoolType),
		celgo.Variable("has_external", celgo.BoolType),
		celgo.Variable("removed", celgo.BoolType),
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.MapType(celgo.StringType, celgo.DynType)),
	}
	if e.cfg.registry != nil {
		opts = append(opts, celgo.Function("call", e.callOverloads()...))
	}
	return celgo.NewEnv(opts...)
}

// callOverloads declares call(name, args...) for up to maxCallArity arguments.
func (e *celEvaluator) callOverloads() []celgo.FunctionOpt {
	overloads := make([]celgo.FunctionOpt, 0, maxCallArity+1)
	for arity := 0; arity <= maxCallArity; arity++ {
		argTypes := []*celgo.Type{celgo.StringType}
		for i := 0; i < arity; i++ {
			argTypes = append(argTypes, celgo.DynType)
		}
		overloads = append(overloads, celgo.Overload(
			fmt.Sprintf("call_string_dyn%d", arity),
			argTypes,
			celgo.DynType,
			celgo.FunctionBinding(e.callBinding),
		))
	}
	return overloads
}

func (e *celEvaluator) callBinding(values ...ref.Val) ref.Val {
	if len(values) == 0 {
		return types.NewErr("automerge: call requires function name")
	}
	name, ok := values[0].Value().(string)
	if !ok {
		return types.NewErr("automerge: call name must be string")
	}
	args := make([]any, 0, len(values)-1)
	for _, val := range values[1:] {
		args = append(args, exportCELValue(val))
	}
	result, err := e.cfg.call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celRule struct {
	cfg        evaluatorConfig
	program    celgo.Program
	expression string
}

func (r *celRule) Evaluate(ctx RuleContext) (any, error) {
	out, _, err := r.program.Eval(ctx.bindings())
	if err != nil {
		return nil, r.cfg.runError(r.expression, ctx, err)
	}
	return exportCELValue(out), nil
}

var structValueType = reflect.TypeOf(&structpb.Value{})

// exportCELValue converts a CEL value into plain JSON-like Go values.
func exportCELValue(val ref.Val) any {
	switch typed := val.(type) {
	case nil:
		return nil
	case types.Int:
		return int64(typed)
	case types.Uint:
		return document.Normalize(uint64(typed))
	}
	if val == types.NullValue {
		return nil
	}
	native, err := val.ConvertToNative(structValueType)
	if err != nil {
		return val.Value()
	}
	if pb, ok := native.(*structpb.Value); ok {
		return pb.AsInterface()
	}
	return val.Value()
}
