package linear

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/spotmarket/core/model"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	id0, err := r.Register("A", model.Energy, 1, 20)
	require.NoError(t, err)
	id1, err := r.Register("A", model.Energy, 2, 30)
	require.NoError(t, err)
	idReg, err := r.Register("A", model.RaiseReg, 1, 5)
	require.NoError(t, err)

	assert.Equal(t, []int{id0, id1}, r.UnitServiceVars("A", model.Energy))
	assert.Equal(t, []int{idReg}, r.UnitServiceVars("A", model.RaiseReg))
	v, ok := r.Lookup(id1)
	require.True(t, ok)
	assert.Equal(t, 0.0, v.Lower)
	assert.Equal(t, 30.0, v.Upper)
	assert.Equal(t, "A", v.Unit)
	got, ok := r.Bid("A", model.Energy, 2)
	assert.True(t, ok)
	assert.Equal(t, id1, got)
	assert.True(t, r.HasService("A", model.RaiseReg))
	assert.False(t, r.HasService("A", model.LowerReg))
	assert.Len(t, r.UnitServices(), 2)
}

func TestRegistryRejectsBadBands(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("A", model.Energy, 1, -1); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error for negative volume, got %v", err)
	}
	if _, err := r.Register("A", model.Energy, 1, 10); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Register("A", model.Energy, 1, 10); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error for duplicate band, got %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 variable, got %d", r.Len())
	}
}

func TestModelValidate(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Register("A", model.Energy, 1, 10)
	m := NewModel(r)
	m.AddConstraint(Constraint{Family: FamilyCapacity, Key: Key{Unit: "A"}, Terms: r.Sum("A", model.Energy, 1), Sense: model.LessEq, RHS: 5})
	require.NoError(t, m.Validate())

	m.AddConstraint(Constraint{Family: FamilyDemand, Sense: model.Equal, RHS: 1})
	assert.Error(t, m.Validate(), "row without terms must be rejected")

	bad := &Model{Variables: []Variable{{ID: 0, Upper: 1, Lower: 2}}}
	assert.Error(t, bad.Validate())
	assert.Error(t, (&Model{}).Validate())
}

func TestModelViolationsAndFamilies(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Register("A", model.Energy, 1, 10)
	b, _ := r.Register("B", model.Energy, 1, 10)
	m := NewModel(r)
	m.AddConstraint(Constraint{Family: FamilyDemand, Key: Key{Region: "NSW"}, Terms: []Term{{a, 1}, {b, 1}}, Sense: model.Equal, RHS: 12})
	m.AddConstraint(Constraint{Family: FamilyCapacity, Key: Key{Unit: "A"}, Terms: []Term{{a, 1}}, Sense: model.LessEq, RHS: 8})

	assert.Empty(t, m.Violations([]float64{8, 4}, 1e-9))
	assert.Len(t, m.Violations([]float64{9, 3}, 1e-9), 1)
	assert.Len(t, m.Violations([]float64{11, 1}, 1e-9), 2)
	assert.Equal(t, []Family{FamilyDemand, FamilyCapacity}, m.Families())
}

func TestWriteMPS(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Register("unit A", model.Energy, 1, 10)
	r.SetCost(a, 50)
	flow := r.Add(Variable{Kind: KindFlow, Entity: "NSW1-QLD1", Lower: -100, Upper: 100})
	m := NewModel(r)
	m.AddConstraint(Constraint{Family: FamilyDemand, Key: Key{Region: "NSW"}, Terms: []Term{{a, 1}, {flow, -1}}, Sense: model.Equal, RHS: 5})

	var buf bytes.Buffer
	require.NoError(t, WriteMPS(&buf, "interval 1", m))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "NAME interval_1\n"))
	assert.Contains(t, out, " E demand_NSW_0\n")
	assert.Contains(t, out, " bid_unit_A_energy_1 COST 50\n")
	assert.Contains(t, out, " flow_NSW1-QLD1_1 demand_NSW_0 -1\n")
	assert.Contains(t, out, " RHS demand_NSW_0 5\n")
	assert.Contains(t, out, " LO BND flow_NSW1-QLD1_1 -100\n")
	assert.True(t, strings.HasSuffix(out, "ENDATA\n"))
}
