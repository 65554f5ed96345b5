package automerge

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-session-automerge/pkg/document"
)

// Function is a host function callable from resolver expressions. Arguments
// arrive as normalized document values.
type Function func(args ...any) (any, error)

// FunctionRegistry holds named functions shared by the expression engines.
// Names are case-insensitive.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// StandardFunctions returns a registry preloaded with the merge helpers:
//
//	coalesce(a, b, ...)                first non-null argument
//	highest(a, b, ...)                 largest number, nulls ignored
//	lowest(a, b, ...)                  smallest number, nulls ignored
//	merge_sum(initial, value, external)   counter merge, see SumResolver
//	merge_union(initial, value, external) list merge, see UnionResolver
func StandardFunctions() *FunctionRegistry {
	r := NewFunctionRegistry()
	r.functions["coalesce"] = coalesce
	r.functions["highest"] = extreme(func(a, b float64) bool { return a > b })
	r.functions["lowest"] = extreme(func(a, b float64) bool { return a < b })
	r.functions["merge_sum"] = threeWay(func(initial, value, external any) (any, error) {
		return mergeCounter(initial, value, external)
	})
	r.functions["merge_union"] = threeWay(func(initial, value, external any) (any, error) {
		return mergeList(initial, value, external)
	})
	return r
}

// Register adds fn under name. Names must be unique.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("automerge: function %q is nil", name)
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("automerge: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("automerge: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns an independent copy; evaluators clone the registry they are
// given so later registrations do not leak into compiled programs.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call runs the function registered under name with normalized arguments.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("automerge: no functions registered")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("automerge: function %q not registered", name)
	}
	normalized := make([]any, len(args))
	for i, arg := range args {
		normalized[i] = document.Normalize(arg)
	}
	return fn(normalized...)
}

// Names lists registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func coalesce(args ...any) (any, error) {
	for _, arg := range args {
		if arg != nil {
			return arg, nil
		}
	}
	return nil, nil
}

func extreme(better func(a, b float64) bool) Function {
	return func(args ...any) (any, error) {
		var (
			best  float64
			found bool
		)
		for _, arg := range args {
			if arg == nil {
				continue
			}
			n, err := numeric(arg)
			if err != nil {
				return nil, err
			}
			if !found || better(n, best) {
				best, found = n, true
			}
		}
		if !found {
			return nil, nil
		}
		return best, nil
	}
}

func threeWay(fn func(initial, value, external any) (any, error)) Function {
	return func(args ...any) (any, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("automerge: expected (initial, value, external), got %d argument(s)", len(args))
		}
		return fn(args[0], args[1], args[2])
	}
}
