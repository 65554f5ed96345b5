package automerge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-session-automerge/pkg/document"
)

var evaluatorFactories = []struct {
	name string
	new  func(...EvaluatorOption) Evaluator
}{
	{name: engineExpr, new: NewExprEvaluator},
	{name: engineCEL, new: NewCELEvaluator},
	{name: engineJS, new: NewJSEvaluator},
}

func TestLastWriterWins(t *testing.T) {
	got, err := LastWriterWins().Resolve(context.Background(), Conflict{Key: "a", Initial: 1.0, Value: 2.0, External: 3.0})
	if err != nil || got != 2.0 {
		t.Fatalf("expected request value, got %v err=%v", got, err)
	}
}

func TestResolverFuncNilDefaultsToValue(t *testing.T) {
	var fn ResolverFunc
	got, err := fn.Resolve(context.Background(), Conflict{Value: "mine"})
	if err != nil || got != "mine" {
		t.Fatalf("expected value, got %v err=%v", got, err)
	}
}

func TestSumResolver(t *testing.T) {
	cases := []struct {
		name     string
		conflict Conflict
		want     any
		wantErr  error
	}{
		{name: "deltas", conflict: Conflict{Initial: 1.0, Value: 3.0, External: 10.0}, want: 12.0},
		{name: "absent initial", conflict: Conflict{Initial: document.Absent, Value: 2, External: 5}, want: 7.0},
		{name: "absent external", conflict: Conflict{Initial: 4.0, Value: 6.0, External: document.Absent}, want: 2.0},
		{name: "large integers", conflict: Conflict{Initial: int64(1 << 53), Value: int64(1<<53 + 1), External: int64(1<<53 + 5)}, want: int64(1<<53 + 6)},
		{name: "local removal", conflict: Conflict{Initial: 4.0, Value: document.Removed, External: 5.0}, want: document.Removed},
		{name: "not numeric", conflict: Conflict{Initial: 1.0, Value: "x", External: 2.0}, wantErr: ErrNotNumeric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SumResolver().Resolve(context.Background(), tc.conflict)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if !document.Equal(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestUnionResolver(t *testing.T) {
	cases := []struct {
		name     string
		conflict Conflict
		want     any
	}{
		{
			name:     "adds from both sides",
			conflict: Conflict{Initial: []any{"a"}, Value: []any{"a", "b"}, External: []any{"a", "c"}},
			want:     []any{"a", "c", "b"},
		},
		{
			name:     "drops local removals",
			conflict: Conflict{Initial: []any{"a", "b"}, Value: []any{"b"}, External: []any{"a", "b", "c"}},
			want:     []any{"b", "c"},
		},
		{
			name:     "dedupes structurally",
			conflict: Conflict{Initial: document.Absent, Value: []any{map[string]any{"id": 1}}, External: []any{map[string]any{"id": 1.0}}},
			want:     []any{map[string]any{"id": 1.0}},
		},
		{
			name:     "external removed the key",
			conflict: Conflict{Initial: []any{"a"}, Value: []any{"a", "b"}, External: document.Absent},
			want:     []any{"a", "b"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := UnionResolver().Resolve(context.Background(), tc.conflict)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if !document.Equal(got, tc.want) {
				t.Fatalf("unexpected union (-want +got):\n%s", cmp.Diff(document.Normalize(tc.want), document.Normalize(got)))
			}
		})
	}

	if _, err := UnionResolver().Resolve(context.Background(), Conflict{Value: "x"}); !errors.Is(err, ErrNotList) {
		t.Fatalf("expected ErrNotList, got %v", err)
	}
}

func TestKeyedResolverDispatchesByPattern(t *testing.T) {
	resolver, err := NewKeyedResolver(nil,
		KeyRule{Pattern: "counter_*", Resolver: SumResolver()},
		KeyRule{Pattern: "cart", Resolver: UnionResolver()},
	)
	if err != nil {
		t.Fatalf("new keyed resolver: %v", err)
	}
	ctx := context.Background()

	got, err := resolver.Resolve(ctx, Conflict{Key: "counter_views", Initial: 1.0, Value: 2.0, External: 5.0})
	if err != nil || !document.Equal(got, 6) {
		t.Fatalf("expected sum, got %v err=%v", got, err)
	}
	got, err = resolver.Resolve(ctx, Conflict{Key: "cart", Initial: []any{}, Value: []any{"x"}, External: []any{"y"}})
	if err != nil || !document.Equal(got, []any{"y", "x"}) {
		t.Fatalf("expected union, got %v err=%v", got, err)
	}
	got, err = resolver.Resolve(ctx, Conflict{Key: "locale", Initial: "en", Value: "fr", External: "de"})
	if err != nil || got != "fr" {
		t.Fatalf("expected fallback to last writer, got %v err=%v", got, err)
	}
}

func TestKeyedResolverRejectsBadRules(t *testing.T) {
	if _, err := NewKeyedResolver(nil, KeyRule{Pattern: "[", Resolver: SumResolver()}); err == nil {
		t.Fatalf("expected invalid pattern error")
	}
	resolver, _ := NewKeyedResolver(SumResolver())
	if err := resolver.Handle("x", nil); err == nil {
		t.Fatalf("expected nil resolver error")
	}
}

func TestExpressionResolverBindings(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		expr map[string]string
		c    Conflict
		want any
	}{
		{
			name: "arithmetic",
			expr: map[string]string{
				"expr": "external + value - initial",
				"cel":  "external + value - initial",
				"js":   "external + value - initial",
			},
			c:    Conflict{Key: "n", Initial: 1.0, Value: 2.0, External: 10.0},
			want: 11.0,
		},
		{
			name: "presence flags",
			expr: map[string]string{
				"expr": "has_external ? external : value",
				"cel":  "has_external ? external : value",
				"js":   "has_external ? external : value",
			},
			c:    Conflict{Key: "a", Initial: document.Absent, Value: "mine", External: document.Absent},
			want: "mine",
		},
		{
			name: "key binding",
			expr: map[string]string{
				"expr": `key == "theme" ? external : value`,
				"cel":  `key == "theme" ? external : value`,
				"js":   `key === "theme" ? external : value`,
			},
			c:    Conflict{Key: "theme", Initial: "light", Value: "dark", External: "blue"},
			want: "blue",
		},
		{
			name: "args binding",
			expr: map[string]string{
				"expr": "args.limit",
				"cel":  "args.limit",
				"js":   "args.limit",
			},
			c:    Conflict{Key: "a", Initial: 1.0, Value: 2.0, External: 3.0},
			want: 50.0,
		},
		{
			name: "removed keeps removal on null",
			expr: map[string]string{
				"expr": "removed ? nil : value",
				"cel":  "removed ? null : value",
				"js":   "removed ? null : value",
			},
			c:    Conflict{Key: "a", Initial: 1.0, Value: document.Removed, External: 3.0},
			want: document.Removed,
		},
	}

	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(WithProgramCache(NewLRUProgramCache(8)))
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			for _, tc := range cases {
				tc := tc
				t.Run(tc.name, func(t *testing.T) {
					resolver, err := NewExpressionResolver(evaluator, tc.expr[factory.name],
						WithExpressionArgs(map[string]any{"limit": 50}),
						WithExpressionClock(func() time.Time { return fixed }),
					)
					if err != nil {
						t.Fatalf("compile: %v", err)
					}
					got, err := resolver.Resolve(context.Background(), tc.c)
					if err != nil {
						t.Fatalf("resolve: %v", err)
					}
					if !document.Equal(got, tc.want) {
						t.Fatalf("expected %v, got %v (%T)", tc.want, got, got)
					}
				})
			}
		})
	}
}

func TestExpressionResolverStructuredResult(t *testing.T) {
	evaluator := NewExprEvaluator()
	resolver, err := NewExpressionResolver(evaluator, `{"count": len(value), "first": value[0]}`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := resolver.Resolve(context.Background(), Conflict{Key: "k", Value: []any{"a", "b"}, External: []any{}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := map[string]any{"count": 2.0, "first": "a"}
	if !document.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCELResultConvertsToNative(t *testing.T) {
	resolver, err := NewExpressionResolver(NewCELEvaluator(), `{"items": [value, external], "total": 2}`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := resolver.Resolve(context.Background(), Conflict{Key: "k", Value: "a", External: "b"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := map[string]any{"items": []any{"a", "b"}, "total": 2.0}
	if !document.Equal(got, want) {
		t.Fatalf("expected %v, got %#v", want, got)
	}
}

func TestExpressionResolverErrors(t *testing.T) {
	if _, err := NewExpressionResolver(nil, "value"); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
	if _, err := NewExpressionResolver(NewExprEvaluator(), " "); !errors.Is(err, ErrEmptyExpression) {
		t.Fatalf("expected ErrEmptyExpression, got %v", err)
	}
	if _, err := NewExpressionResolver(NewCELEvaluator(), "value +"); err == nil {
		t.Fatalf("expected compile error")
	} else {
		var evalErr *EvaluationError
		if !errors.As(err, &evalErr) || evalErr.Engine != engineCEL || evalErr.Phase != PhaseCompile || evalErr.Expr != "value +" {
			t.Fatalf("expected EvaluationError, got %v", err)
		}
	}

	resolver, err := NewExpressionResolver(NewExprEvaluator(), "value.missing.deeper")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = resolver.Resolve(context.Background(), Conflict{Key: "cart", Value: 1.0})
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Key != "cart" || evalErr.Engine != engineExpr || evalErr.Phase != PhaseRun {
		t.Fatalf("expected runtime EvaluationError, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := resolver.Resolve(ctx, Conflict{Key: "cart", Value: 1.0}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExpressionResolverCustomFunctions(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("clamp", func(args ...any) (any, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("clamp expects 3 arguments")
		}
		v, lo, hi := toFloat(args[0]), toFloat(args[1]), toFloat(args[2])
		if v < lo {
			return lo, nil
		}
		if v > hi {
			return hi, nil
		}
		return v, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	expressions := map[string]string{
		"expr": "clamp(external + value - initial, 0, 10)",
		"cel":  `call("clamp", external + value - initial, 0.0, 10.0)`,
		"js":   "clamp(external + value - initial, 0, 10)",
	}
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(WithFunctions(registry))
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			resolver, err := NewExpressionResolver(evaluator, expressions[factory.name])
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			got, err := resolver.Resolve(context.Background(), Conflict{Key: "n", Initial: 1.0, Value: 8.0, External: 9.0})
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if !document.Equal(got, 10) {
				t.Fatalf("expected clamp to 10, got %v", got)
			}
		})
	}
}

func toFloat(v any) float64 {
	f, _ := document.Float64(v)
	return f
}

func TestProgramCacheReusesPrograms(t *testing.T) {
	cache := &countingCache{inner: NewLRUProgramCache(2)}
	evaluator := NewExprEvaluator(WithProgramCache(cache))
	for i := 0; i < 3; i++ {
		if _, err := evaluator.Compile("value"); err != nil {
			t.Fatalf("compile: %v", err)
		}
	}
	if cache.sets != 1 || cache.hits != 2 {
		t.Fatalf("expected one compile and two hits, got sets=%d hits=%d", cache.sets, cache.hits)
	}
}

func TestLRUProgramCacheEvicts(t *testing.T) {
	cache := NewLRUProgramCache(2)
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Get("a")
	cache.Set("c", 3)
	if _, ok := cache.Get("b"); ok {
		t.Fatalf("expected least recently used entry to be evicted")
	}
	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a to survive, got %v %v", v, ok)
	}
}

func TestJSEvaluatorAvailability(t *testing.T) {
	if got := NewJSEvaluator() != nil; got != jsEvaluatorAvailable() {
		t.Fatalf("availability mismatch: evaluator=%v available=%v", got, jsEvaluatorAvailable())
	}
}

type countingCache struct {
	inner ProgramCache
	sets  int
	hits  int
}

func (c *countingCache) Get(key string) (any, bool) {
	v, ok := c.inner.Get(key)
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *countingCache) Set(key string, value any) {
	c.sets++
	c.inner.Set(key, value)
}
