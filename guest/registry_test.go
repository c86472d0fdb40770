package guest

import (
	"context"
	"testing"

	"github.com/qbradley/hyperlight/call"
)

func constFn(v call.Value) Func {
	return func(ctx context.Context, params []call.Value) (call.Value, error) {
		return v, nil
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Definition{Name: "A", Return: call.TypeInt64, Fn: constFn(call.Int64(1))})

	if _, ok := reg.Lookup("A"); !ok {
		t.Error("registered function not found")
	}
	if _, ok := reg.Lookup("B"); ok {
		t.Error("unregistered function found")
	}
}

func TestRegisterDuplicateLastWins(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Definition{Name: "A", Return: call.TypeInt64, Fn: constFn(call.Int64(1))})
	reg.Register(Definition{Name: "A", Return: call.TypeInt64, Fn: constFn(call.Int64(2))})

	def, ok := reg.Lookup("A")
	if !ok {
		t.Fatal("function not found after re-registration")
	}
	v, err := def.Fn(context.Background(), nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if n, _ := v.AsInt64(); n != 2 {
		t.Errorf("lookup returned the earlier definition, value = %v", v)
	}
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Definition{Name: "B"})
	reg.Register(Definition{Name: "A"})
	reg.Register(Definition{Name: "C"})

	names := reg.Names()
	want := []string{"A", "B", "C"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}
