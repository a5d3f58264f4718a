package factory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type backend struct {
	Tolerance float64
	Name      string
}

type backendConf struct {
	Tolerance float64 `json:"tolerance"`
	Name      string  `json:"name"`
}

func newBackend(conf map[string]any) (*backend, error) {
	var c backendConf
	if err := Decode(conf, &c); err != nil {
		return nil, err
	}
	return &backend{Tolerance: c.Tolerance, Name: c.Name}, nil
}

// Test registry registration and instantiation using Decode.
func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry[*backend]()
	if err := reg.Register("gonum", newBackend); err != nil {
		t.Fatalf("register: %v", err)
	}
	inst, err := reg.Create(ModuleConfig{Type: "gonum", Conf: map[string]any{"tolerance": 1e-9, "name": "primary"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inst.Tolerance != 1e-9 || inst.Name != "primary" {
		t.Fatalf("unexpected backend %+v", inst)
	}
}

// Environment overrides arrive as strings.
func TestDecode_WeakTypes(t *testing.T) {
	var c backendConf
	require.NoError(t, Decode(map[string]any{"tolerance": "0.001"}, &c))
	require.InDelta(t, 0.001, c.Tolerance, 1e-12)
}

// Test duplicate registration and unknown type errors.
func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[int]()
	if err := reg.Register("x", func(map[string]any) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("x", func(map[string]any) (int, error) { return 2, nil }); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.Register("z", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	_, err := reg.Create(ModuleConfig{Type: "y"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "[x]")
	require.Equal(t, []string{"x"}, reg.Names())
}
