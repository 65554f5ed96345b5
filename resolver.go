package automerge

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/goliatone/go-session-automerge/pkg/document"
)

var (
	// ErrNoEvaluator indicates an expression resolver was built without an evaluator.
	ErrNoEvaluator = errors.New("automerge: evaluator not configured")
	// ErrNotNumeric indicates SumResolver met a value that is not a number.
	ErrNotNumeric = errors.New("automerge: value is not numeric")
	// ErrNotList indicates UnionResolver met a value that is not a list.
	ErrNotList = errors.New("automerge: value is not a list")
)

// ConflictResolver decides the merged value of a key changed concurrently by
// the current request and another writer. Implementations must be pure and
// deterministic. Returning document.Removed deletes the key.
type ConflictResolver interface {
	Resolve(ctx context.Context, c Conflict) (any, error)
}

// ResolverFunc adapts a function to ConflictResolver.
type ResolverFunc func(ctx context.Context, c Conflict) (any, error)

// Resolve implements ConflictResolver.
func (fn ResolverFunc) Resolve(ctx context.Context, c Conflict) (any, error) {
	if fn == nil {
		return c.Value, nil
	}
	return fn(ctx, c)
}

type lastWriterWins struct{}

// LastWriterWins returns the default policy: the current request's value wins.
func LastWriterWins() ConflictResolver {
	return lastWriterWins{}
}

func (lastWriterWins) Resolve(_ context.Context, c Conflict) (any, error) {
	return c.Value, nil
}

// KeyRule binds a path.Match pattern to a resolver.
type KeyRule struct {
	Pattern  string
	Resolver ConflictResolver
}

// KeyedResolver dispatches conflicts to the first rule whose pattern matches
// the key, falling back to a default resolver.
type KeyedResolver struct {
	mu       sync.RWMutex
	rules    []KeyRule
	fallback ConflictResolver
}

// NewKeyedResolver builds a KeyedResolver. A nil fallback uses LastWriterWins.
func NewKeyedResolver(fallback ConflictResolver, rules ...KeyRule) (*KeyedResolver, error) {
	if fallback == nil {
		fallback = LastWriterWins()
	}
	r := &KeyedResolver{fallback: fallback}
	for _, rule := range rules {
		if err := r.Handle(rule.Pattern, rule.Resolver); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Handle appends a rule. Rules are matched in registration order.
func (r *KeyedResolver) Handle(pattern string, resolver ConflictResolver) error {
	if resolver == nil {
		return fmt.Errorf("automerge: resolver for pattern %q is nil", pattern)
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("automerge: invalid key pattern %q: %w", pattern, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, KeyRule{Pattern: pattern, Resolver: resolver})
	return nil
}

// Resolve implements ConflictResolver.
func (r *KeyedResolver) Resolve(ctx context.Context, c Conflict) (any, error) {
	return r.match(c.Key).Resolve(ctx, c)
}

func (r *KeyedResolver) match(key string) ConflictResolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rule := range r.rules {
		if ok, _ := path.Match(rule.Pattern, key); ok {
			return rule.Resolver
		}
	}
	return r.fallback
}

type sumResolver struct{}

// SumResolver merges counters by applying the local delta to the external
// value: external + (value - initial). Absent or null operands count as zero;
// a local removal wins.
func SumResolver() ConflictResolver {
	return sumResolver{}
}

func (sumResolver) Resolve(_ context.Context, c Conflict) (any, error) {
	if document.IsRemoved(c.Value) {
		return document.Removed, nil
	}
	return mergeCounter(c.Initial, c.Value, c.External)
}

// mergeCounter stays in int64 when every operand is an integer.
func mergeCounter(initial, value, external any) (any, error) {
	var (
		ints   [3]int64
		floats [3]float64
		exact  = true
	)
	for i, v := range []any{initial, value, external} {
		if document.IsSentinel(v) || v == nil {
			continue
		}
		switch n := document.Normalize(v).(type) {
		case int64:
			ints[i], floats[i] = n, float64(n)
		case float64:
			floats[i], exact = n, false
		default:
			return nil, fmt.Errorf("%w: %T", ErrNotNumeric, v)
		}
	}
	if exact {
		return ints[2] + (ints[1] - ints[0]), nil
	}
	return floats[2] + (floats[1] - floats[0]), nil
}

func numeric(v any) (float64, error) {
	if document.IsSentinel(v) || v == nil {
		return 0, nil
	}
	n, ok := document.Float64(v)
	if !ok {
		return 0, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
	return n, nil
}

type unionResolver struct{}

// UnionResolver merges lists as ordered sets: external items first, then
// items the request added. Items the request dropped relative to the initial
// list are removed. A local removal of the key wins.
func UnionResolver() ConflictResolver {
	return unionResolver{}
}

func (unionResolver) Resolve(_ context.Context, c Conflict) (any, error) {
	if document.IsRemoved(c.Value) {
		return document.Removed, nil
	}
	return mergeList(c.Initial, c.Value, c.External)
}

func mergeList(initialValue, localValue, externalValue any) ([]any, error) {
	initial, err := list(initialValue)
	if err != nil {
		return nil, err
	}
	value, err := list(localValue)
	if err != nil {
		return nil, err
	}
	external, err := list(externalValue)
	if err != nil {
		return nil, err
	}

	var dropped []any
	for _, item := range initial {
		if !containsValue(value, item) {
			dropped = append(dropped, item)
		}
	}

	merged := make([]any, 0, len(external)+len(value))
	appendUnique := func(item any) {
		if containsValue(dropped, item) || containsValue(merged, item) {
			return
		}
		merged = append(merged, document.CloneValue(item))
	}
	for _, item := range external {
		appendUnique(item)
	}
	for _, item := range value {
		appendUnique(item)
	}
	return merged, nil
}

func list(v any) ([]any, error) {
	if document.IsSentinel(v) || v == nil {
		return nil, nil
	}
	items, ok := document.Normalize(v).([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotList, v)
	}
	return items, nil
}

func containsValue(items []any, target any) bool {
	for _, item := range items {
		if document.Equal(item, target) {
			return true
		}
	}
	return false
}

// ExpressionOption configures an ExpressionResolver.
type ExpressionOption func(*ExpressionResolver)

// WithExpressionArgs exposes args to the expression under the args binding.
func WithExpressionArgs(args map[string]any) ExpressionOption {
	return func(r *ExpressionResolver) {
		r.args = document.Document(args).Clone()
	}
}

// WithExpressionClock overrides the clock bound to now.
func WithExpressionClock(now func() time.Time) ExpressionOption {
	return func(r *ExpressionResolver) {
		if now != nil {
			r.now = now
		}
	}
}

// ExpressionResolver resolves conflicts by evaluating a compiled expression.
// The expression sees key, initial, value, external, has_initial,
// has_external, removed, now and args. A nil result for a removed value
// keeps the removal.
type ExpressionResolver struct {
	expression string
	rule       CompiledRule
	args       map[string]any
	now        func() time.Time
}

// NewExpressionResolver compiles expression with evaluator.
func NewExpressionResolver(evaluator Evaluator, expression string, opts ...ExpressionOption) (*ExpressionResolver, error) {
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	rule, err := evaluator.Compile(expression)
	if err != nil {
		return nil, err
	}
	r := &ExpressionResolver{
		expression: expression,
		rule:       rule,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Expression returns the source expression.
func (r *ExpressionResolver) Expression() string {
	return r.expression
}

// Resolve implements ConflictResolver.
func (r *ExpressionResolver) Resolve(ctx context.Context, c Conflict) (any, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	result, err := r.rule.Evaluate(RuleContext{
		Conflict: c,
		Now:      r.now(),
		Args:     document.Document(r.args).Clone(),
	})
	if err != nil {
		return nil, err
	}
	if result == nil && document.IsRemoved(c.Value) {
		return document.Removed, nil
	}
	return document.Normalize(result), nil
}

var (
	_ ConflictResolver = ResolverFunc(nil)
	_ ConflictResolver = (*KeyedResolver)(nil)
	_ ConflictResolver = (*ExpressionResolver)(nil)
)
