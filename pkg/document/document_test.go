package document

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEqualComparesStructurally(t *testing.T) {
	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{name: "int and float", a: 1, b: float64(1), want: true},
		{name: "json number", a: json.Number("2.5"), b: 2.5, want: true},
		{name: "nested maps", a: map[string]any{"a": []any{1, "x"}}, b: map[string]any{"a": []any{float64(1), "x"}}, want: true},
		{name: "different lists", a: []any{1, 2}, b: []any{2, 1}, want: false},
		{name: "null vs missing", a: nil, b: Absent, want: false},
		{name: "absent vs absent", a: Absent, b: Absent, want: true},
		{name: "removed vs absent", a: Removed, b: Absent, want: false},
		{name: "map[any]any", a: map[any]any{"k": int64(3)}, b: map[string]any{"k": 3.0}, want: true},
		{name: "typed slice", a: []string{"a", "b"}, b: []any{"a", "b"}, want: true},
		{name: "large integers differ", a: int64(9007199254740992), b: int64(9007199254740993), want: false},
		{name: "large integer vs rounded float", a: int64(9007199254740993), b: float64(9007199254740992), want: false},
		{name: "large json number", a: json.Number("9007199254740993"), b: int64(9007199254740993), want: true},
		{name: "uint64 and int", a: uint64(7), b: 7, want: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal(tc.a, tc.b); got != tc.want {
				t.Fatalf("Equal(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestCloneDetachesNestedValues(t *testing.T) {
	original := Document{"cart": map[string]any{"items": []any{"a"}}}
	clone := original.Clone()

	clone["cart"].(map[string]any)["items"] = append(clone["cart"].(map[string]any)["items"].([]any), "b")
	if got := len(original["cart"].(map[string]any)["items"].([]any)); got != 1 {
		t.Fatalf("expected original to keep one item, got %d", got)
	}
}

func TestLookupReturnsAbsent(t *testing.T) {
	doc := Document{"a": nil}
	if doc.Lookup("a") != nil {
		t.Fatalf("expected explicit null to be returned")
	}
	if !IsAbsent(doc.Lookup("b")) {
		t.Fatalf("expected Absent for missing key")
	}
	var empty Document
	if !IsAbsent(empty.Lookup("a")) {
		t.Fatalf("expected Absent on nil document")
	}
}

func TestFromAnyRejectsNonObjects(t *testing.T) {
	if _, ok := FromAny([]any{1}); ok {
		t.Fatalf("expected list to be rejected")
	}
	if _, ok := FromAny("text"); ok {
		t.Fatalf("expected string to be rejected")
	}
	doc, ok := FromAny(map[any]any{"n": 1})
	if !ok {
		t.Fatalf("expected map to be accepted")
	}
	if doc["n"] != int64(1) {
		t.Fatalf("expected normalized number, got %#v", doc["n"])
	}
}

func TestDiff(t *testing.T) {
	base := Document{"a": 1.0, "b": 2.0, "c": 3.0, "nested": map[string]any{"x": 1.0}}
	final := Document{"a": 1.0, "b": 5.0, "d": "new", "nested": map[string]any{"x": 1}}

	got := Diff(final, base)
	want := ChangeSet{"b": 5.0, "c": Removed, "d": "new"}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(x, y *sentinel) bool { return x == y })); diff != "" {
		t.Fatalf("unexpected change set (-want +got):\n%s", diff)
	}
	if removals := got.Removals(); len(removals) != 1 || removals[0] != "c" {
		t.Fatalf("expected removal of c, got %v", removals)
	}
}

func TestDiffTreatsRemovalMarkerAsOmission(t *testing.T) {
	base := Document{"a": 1.0, "c": 3.0}
	omitted := Diff(Document{"a": 1.0}, base)
	marked := Diff(Document{"a": 1.0, "c": Removed}, base)

	if len(omitted) != 1 || len(marked) != 1 {
		t.Fatalf("expected single change, got %v and %v", omitted, marked)
	}
	if !IsRemoved(omitted["c"]) || !IsRemoved(marked["c"]) {
		t.Fatalf("expected both forms to produce removal")
	}

	if got := Diff(Document{"z": Removed}, base); len(got) != 2 {
		t.Fatalf("expected removal of never-present key to be ignored, got %v", got)
	}
}

func TestDiffSeesIntegerChangesBeyondFloatPrecision(t *testing.T) {
	base := Document{"n": int64(9007199254740992)}
	got := Diff(Document{"n": json.Number("9007199254740993")}, base)
	if value, ok := got["n"]; !ok || !Equal(value, int64(9007199254740993)) {
		t.Fatalf("expected change recorded, got %#v", got)
	}
	if !Diff(Document{"n": 9007199254740992}, base).Empty() {
		t.Fatalf("expected equal integer to produce no change")
	}
}

func TestNormalizeKeepsIntegersExact(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{name: "json integer", in: json.Number("9007199254740993"), want: int64(9007199254740993)},
		{name: "json fraction", in: json.Number("2.5"), want: 2.5},
		{name: "int", in: 4, want: int64(4)},
		{name: "uint8", in: uint8(4), want: int64(4)},
		{name: "huge uint64", in: uint64(1 << 63), want: float64(1 << 63)},
		{name: "float", in: 1.5, want: 1.5},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%#v) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestDiffKeepsExplicitNull(t *testing.T) {
	got := Diff(Document{"a": nil}, Document{"a": 1.0})
	value, ok := got["a"]
	if !ok || value != nil {
		t.Fatalf("expected explicit null change, got %#v", got)
	}
}

func TestDiffOfEqualDocumentsIsEmpty(t *testing.T) {
	doc := Document{"a": []any{1.0, map[string]any{"b": true}}}
	if !Diff(doc.Clone(), doc).Empty() {
		t.Fatalf("expected empty change set")
	}
}

func TestApplyDeletesRemovals(t *testing.T) {
	doc := Document{"a": 1.0, "b": 2.0}
	out := ChangeSet{"a": Removed, "c": "x"}.Apply(doc)
	if _, ok := out["a"]; ok {
		t.Fatalf("expected a to be deleted")
	}
	if out["c"] != "x" || out["b"] != 2.0 {
		t.Fatalf("unexpected apply result %v", out)
	}
	if _, ok := doc["c"]; ok {
		t.Fatalf("expected input document untouched")
	}
}
