package core

import (
	"context"
	"sync"
	"testing"
)

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(Tool{Name: "alpha"}, Tool{Name: "beta"})

	if _, ok := r.Resolve("alpha"); !ok {
		t.Error("expected alpha to resolve")
	}
	if _, ok := r.Resolve("missing"); ok {
		t.Error("expected missing to not resolve")
	}
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{Name: "dup", MaxRetries: 1})
	r.Register(Tool{Name: "dup", MaxRetries: 5})

	tool, ok := r.Resolve("dup")
	if !ok {
		t.Fatal("expected dup to resolve")
	}
	if tool.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want the later registration", tool.MaxRetries)
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry(Tool{Name: "zeta"}, Tool{Name: "alpha"}, Tool{Name: "mid"})

	got := r.List()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryStoresByValue(t *testing.T) {
	spec := Spec{Schema: map[string]string{"x": TypeString}}
	r := NewRegistry(Tool{Name: "t", Spec: spec})

	tool, _ := r.Resolve("t")
	tool.Name = "mutated"
	tool.MaxRetries = 99

	again, _ := r.Resolve("t")
	if again.Name != "t" || again.MaxRetries != 0 {
		t.Error("mutating a resolved copy should not affect the registry")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(Tool{Name: "shared"})
		}()
		go func() {
			defer wg.Done()
			r.Resolve("shared")
			r.List()
		}()
	}
	wg.Wait()
}

func TestGuardFunc(t *testing.T) {
	called := false
	g := NewGuard("test", func(ctx context.Context, tool string, value any) error {
		called = true
		return nil
	})

	if g.Name() != "test" {
		t.Errorf("Name() = %q", g.Name())
	}
	if err := g.Check(context.Background(), "echo", nil); err != nil {
		t.Errorf("Check() error = %v", err)
	}
	if !called {
		t.Error("expected wrapped function to be called")
	}
}

func TestGuardFuncNilFnPasses(t *testing.T) {
	g := &GuardFunc{}
	if err := g.Check(context.Background(), "echo", nil); err != nil {
		t.Errorf("nil fn should pass, got %v", err)
	}
}

func TestValidType(t *testing.T) {
	for _, valid := range []string{TypeString, TypeInteger, TypeFloat, TypeBoolean} {
		if !ValidType(valid) {
			t.Errorf("ValidType(%q) = false", valid)
		}
	}
	for _, invalid := range []string{"", "int", "number", "bool", "object"} {
		if ValidType(invalid) {
			t.Errorf("ValidType(%q) = true", invalid)
		}
	}
}
