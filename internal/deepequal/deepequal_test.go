package deepequal

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

func TestEqualScalars(t *testing.T) {
	tests := []struct {
		name string
		a, b interface{}
		want bool
	}{
		{name: "equal strings", a: "x", b: "x", want: true},
		{name: "different strings", a: "x", b: "y", want: false},
		{name: "equal ints", a: 3, b: 3, want: true},
		{name: "different types", a: 3, b: "3", want: false},
		{name: "int vs float", a: 3, b: 3.0, want: false},
		{name: "both nil", a: nil, b: nil, want: true},
		{name: "nil vs value", a: nil, b: 1, want: false},
		{name: "equal bools", a: true, b: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Equal(tt.a, tt.b, nil)
			if err != nil {
				t.Fatalf("Equal: %v", err)
			}
			if got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestEqualNested(t *testing.T) {
	a := map[string]interface{}{
		"name": "alice",
		"tags": []interface{}{"x", "y"},
		"meta": map[string]interface{}{"depth": 2.0},
	}
	b := map[string]interface{}{
		"name": "alice",
		"tags": []interface{}{"x", "y"},
		"meta": map[string]interface{}{"depth": 2.0},
	}

	got, err := Equal(a, b, nil)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if !got {
		t.Error("structurally identical maps compared unequal")
	}

	b["meta"].(map[string]interface{})["depth"] = 3.0
	got, err = Equal(a, b, nil)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if got {
		t.Error("maps differing in a nested value compared equal")
	}
}

func TestEqualSemanticTypes(t *testing.T) {
	utc := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	other := utc.In(time.FixedZone("X", 3600))

	tests := []struct {
		name string
		a, b interface{}
		want bool
	}{
		{name: "same instant different zones", a: utc, b: other, want: true},
		{name: "different instants", a: utc, b: utc.Add(time.Second), want: false},
		{name: "equal regexps", a: regexp.MustCompile(`a+`), b: regexp.MustCompile(`a+`), want: true},
		{name: "different regexps", a: regexp.MustCompile(`a+`), b: regexp.MustCompile(`b+`), want: false},
		{name: "equal byte slices", a: []byte("abc"), b: []byte("abc"), want: true},
		{name: "different byte slices", a: []byte("abc"), b: []byte("abd"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Equal(tt.a, tt.b, nil)
			if err != nil {
				t.Fatalf("Equal: %v", err)
			}
			if got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

type node struct {
	Name string
	Next *node
}

func TestEqualCyclesTerminate(t *testing.T) {
	a := &node{Name: "a"}
	a.Next = a
	b := &node{Name: "a"}
	b.Next = b

	got, err := Equal(a, b, nil)
	if err != nil {
		t.Fatalf("Equal on cyclic values: %v", err)
	}
	if !got {
		t.Error("matching cycles compared unequal")
	}

	c := &node{Name: "c"}
	c.Next = c
	got, err = Equal(a, c, nil)
	if err != nil {
		t.Fatalf("Equal on cyclic values: %v", err)
	}
	if got {
		t.Error("cycles with different payloads compared equal")
	}
}

func TestEqualMaxDepth(t *testing.T) {
	deep := func() interface{} {
		var v interface{} = "leaf"
		for i := 0; i < 20; i++ {
			v = []interface{}{v}
		}
		return v
	}

	_, err := Equal(deep(), deep(), &Options{MaxDepth: 5})
	if err == nil {
		t.Fatal("expected max depth error")
	}
	var maxErr *ErrMaxDepth
	if !errors.As(err, &maxErr) {
		t.Fatalf("expected *ErrMaxDepth, got %T", err)
	}
	if maxErr.Depth != 5 {
		t.Errorf("Depth = %d, want 5", maxErr.Depth)
	}

	if _, err := Equal(deep(), deep(), &Options{MaxDepth: 50}); err != nil {
		t.Errorf("depth 20 under limit 50 errored: %v", err)
	}
}

func TestEqualNilOptions(t *testing.T) {
	withNil := map[string]interface{}{"a": 1, "b": nil}
	without := map[string]interface{}{"a": 1}

	got, err := Equal(withNil, without, nil)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if got {
		t.Error("default options treated nil entry as absent")
	}

	got, err = Equal(withNil, without, &Options{NilEqualsAbsent: true})
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if !got {
		t.Error("NilEqualsAbsent did not equate nil entry with absent key")
	}

	got, err = Equal(withNil, without, &Options{IgnoreNilFields: true})
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if !got {
		t.Error("IgnoreNilFields did not skip the nil entry")
	}

	// A non-nil entry still distinguishes the maps under both options.
	withValue := map[string]interface{}{"a": 1, "b": 2}
	got, err = Equal(withValue, without, &Options{NilEqualsAbsent: true, IgnoreNilFields: true})
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if got {
		t.Error("options equated a real value with an absent key")
	}
}

func TestEqualStructs(t *testing.T) {
	type inner struct {
		N int
	}
	type outer struct {
		Name  string
		Inner *inner
	}

	a := outer{Name: "x", Inner: &inner{N: 1}}
	b := outer{Name: "x", Inner: &inner{N: 1}}
	got, err := Equal(a, b, nil)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if !got {
		t.Error("identical structs compared unequal")
	}

	b.Inner.N = 2
	got, err = Equal(a, b, nil)
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if got {
		t.Error("structs differing through a pointer compared equal")
	}
}
