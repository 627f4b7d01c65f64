package registry

import (
	"testing"

	"github.com/atelier-studio/atelier/pkg/schema"
)

func TestBuiltinContainsAllKinds(t *testing.T) {
	r := Builtin()

	kinds := []string{
		KindSourceImage, KindSourcePrompt, KindGroup,
		KindMacro, KindGenerate, KindCanvas,
	}
	for _, k := range kinds {
		if !r.Has(k) {
			t.Errorf("builtin registry missing kind %q", k)
		}
	}
	if r.Count() != len(kinds) {
		t.Errorf("Count = %d, want %d", r.Count(), len(kinds))
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	def := schema.NodeDefinition{Kind: "custom", Label: "Custom"}

	if err := r.Register(def); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	err := r.Register(def)
	if err == nil {
		t.Fatal("expected error on duplicate kind")
	}
	aerr, ok := err.(*schema.AtelierError)
	if !ok {
		t.Fatalf("expected AtelierError, got %T", err)
	}
	if aerr.Code != schema.ErrCodeConflict {
		t.Errorf("code = %s, want %s", aerr.Code, schema.ErrCodeConflict)
	}
}

func TestRegisterEmptyKind(t *testing.T) {
	r := NewRegistry()
	err := r.Register(schema.NodeDefinition{})
	if err == nil {
		t.Fatal("expected error on empty kind")
	}
}

func TestGetUnknownKind(t *testing.T) {
	r := Builtin()
	_, err := r.Get("transform.unknown")
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	aerr, ok := err.(*schema.AtelierError)
	if !ok || aerr.Code != schema.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestListSorted(t *testing.T) {
	r := Builtin()
	defs := r.List()
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Kind >= defs[i].Kind {
			t.Errorf("List not sorted: %q >= %q", defs[i-1].Kind, defs[i].Kind)
		}
	}
}

func TestGenerativePortsDeclared(t *testing.T) {
	r := Builtin()
	for _, kind := range []string{KindGenerate, KindCanvas} {
		def, err := r.Get(kind)
		if err != nil {
			t.Fatalf("Get(%s): %v", kind, err)
		}
		want := []string{schema.PortImage, schema.PortReference, schema.PortMask, schema.PortPrompt}
		if len(def.Inputs) != len(want) {
			t.Fatalf("%s inputs = %d, want %d", kind, len(def.Inputs), len(want))
		}
		for i, id := range want {
			if def.Inputs[i].ID != id {
				t.Errorf("%s input[%d] = %q, want %q", kind, i, def.Inputs[i].ID, id)
			}
		}
		if len(def.Outputs) != 1 || def.Outputs[0].ID != schema.PortOutput {
			t.Errorf("%s should have a single %q output", kind, schema.PortOutput)
		}
	}
}
