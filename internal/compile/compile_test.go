package compile

import (
	"math"
	"testing"

	"cytoflux/internal/expr"
	"cytoflux/internal/odegen"
)

func decayModel() []odegen.Equation {
	// dA/dt = -k*A - d*A, dB/dt = k*A
	a := expr.EntityID{Kind: "cell", Name: "a", Compartment: "blood"}
	b := expr.EntityID{Kind: "cell", Name: "a", Compartment: "tumor"}
	k := expr.NewParam("k", 0.1)
	d := expr.NewParam("d", 0.05)

	return []odegen.Equation{
		{Target: a, RHS: expr.Sub(expr.Neg(expr.Mul(d, expr.NewRef(a))), expr.Mul(k, expr.NewRef(a)))},
		{Target: b, RHS: expr.Mul(k, expr.NewRef(a))},
	}
}

func TestCompileCanonicalOrderDeterminism(t *testing.T) {
	eqs := decayModel()

	m1, err := Compile(eqs)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		m2, err := Compile(eqs)
		if err != nil {
			t.Fatalf("recompile failed: %v", err)
		}
		if len(m1.Species) != len(m2.Species) {
			t.Fatal("species count changed across compilations")
		}
		for j := range m1.Species {
			if m1.Species[j] != m2.Species[j] {
				t.Errorf("species order unstable at %d: %s vs %s", j, m1.Species[j], m2.Species[j])
			}
		}
		for j := range m1.Params {
			if m1.Params[j] != m2.Params[j] {
				t.Errorf("param order unstable at %d", j)
			}
		}
	}
}

func TestCompileEquationOrderMatchesSpecies(t *testing.T) {
	m, err := Compile(decayModel())
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(m.Equations) != len(m.Species) {
		t.Fatalf("expected %d equations, got %d", len(m.Species), len(m.Equations))
	}
	for i, eq := range m.Equations {
		if eq.Target != m.Species[i] {
			t.Errorf("equation %d governs %s, species slot holds %s", i, eq.Target, m.Species[i])
		}
	}
}

func TestEvaluate(t *testing.T) {
	m, err := Compile(decayModel())
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	state := make([]float64, len(m.Species))
	aIdx, ok := m.SpeciesIndex(expr.EntityID{Kind: "cell", Name: "a", Compartment: "blood"})
	if !ok {
		t.Fatal("species a not found")
	}
	bIdx, ok := m.SpeciesIndex(expr.EntityID{Kind: "cell", Name: "a", Compartment: "tumor"})
	if !ok {
		t.Fatal("species a' not found")
	}
	state[aIdx] = 100

	out := m.Evaluate(state, m.ParamDefaults())
	if math.Abs(out[aIdx]-(-15)) > 1e-12 {
		t.Errorf("dA/dt: expected -15, got %g", out[aIdx])
	}
	if math.Abs(out[bIdx]-10) > 1e-12 {
		t.Errorf("dA'/dt: expected 10, got %g", out[bIdx])
	}

	// Referential determinism.
	again := m.Evaluate(state, m.ParamDefaults())
	for i := range out {
		if out[i] != again[i] {
			t.Errorf("evaluation not deterministic at %d", i)
		}
	}
}

func TestPruneRemovesUngovernedSpecies(t *testing.T) {
	a := expr.EntityID{Kind: "cell", Name: "a", Compartment: "blood"}
	outside := expr.EntityID{Kind: "cytokine", Name: "ghost", Compartment: "blood"}

	// dA/dt = k*A + j*ghost; ghost has no equation, so j*ghost prunes to zero.
	eqs := []odegen.Equation{{
		Target: a,
		RHS: expr.Add(
			expr.Mul(expr.NewParam("k", 2), expr.NewRef(a)),
			expr.Mul(expr.NewParam("j", 3), expr.NewRef(outside)),
		),
	}}

	m, err := Compile(eqs)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(m.Species) != 1 {
		t.Fatalf("pruned species should not be collected, got %v", m.Species)
	}

	out := m.Evaluate([]float64{10}, m.ParamDefaults())
	if math.Abs(out[0]-20) > 1e-12 {
		t.Errorf("pruned term must evaluate as zero: expected 20, got %g", out[0])
	}
}

func TestPruneIdempotent(t *testing.T) {
	a := expr.EntityID{Kind: "cell", Name: "a", Compartment: "blood"}
	outside := expr.EntityID{Kind: "cell", Name: "ghost", Compartment: "blood"}

	eqs := []odegen.Equation{{
		Target: a,
		RHS:    expr.Add(expr.NewRef(a), expr.NewRef(outside)),
	}}

	once := Prune(eqs)
	twice := Prune(once)
	for i := range once {
		if once[i].RHS.String() != twice[i].RHS.String() {
			t.Errorf("pruning is not idempotent: %s vs %s", once[i].RHS, twice[i].RHS)
		}
	}
}

func TestPureSinkSpeciesKeepsSlot(t *testing.T) {
	// dC/dt = k_secrete*A; C appears in no right-hand side but is governed.
	a := expr.EntityID{Kind: "tx_cell", Name: "cart", Compartment: "tumor"}
	c := expr.EntityID{Kind: "cytokine", Name: "il6", Compartment: "tumor"}

	eqs := []odegen.Equation{
		{Target: a, RHS: expr.Neg(expr.Mul(expr.NewParam("d", 1), expr.NewRef(a)))},
		{Target: c, RHS: expr.Mul(expr.NewParam("k_secrete", 10), expr.NewRef(a))},
	}

	m, err := Compile(eqs)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(m.Species) != 2 {
		t.Fatalf("sink species must keep a state slot, got %v", m.Species)
	}
	if _, ok := m.SpeciesIndex(c); !ok {
		t.Error("sink species missing from canonical order")
	}
}

func TestParamFirstSeenDefaultWins(t *testing.T) {
	a := expr.EntityID{Kind: "cell", Name: "a", Compartment: "blood"}
	b := expr.EntityID{Kind: "cell", Name: "b", Compartment: "blood"}

	eqs := []odegen.Equation{
		{Target: a, RHS: expr.Mul(expr.NewParam("k", 1), expr.NewRef(a))},
		{Target: b, RHS: expr.Mul(expr.NewParam("k", 99), expr.NewRef(b))},
	}

	m, err := Compile(eqs)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(m.Params) != 1 {
		t.Fatalf("parameters dedupe by name, got %d", len(m.Params))
	}
	if m.Params[0].Default != 1 {
		t.Errorf("first-seen default must win, got %g", m.Params[0].Default)
	}
}

func TestUnresolvedTermErrorMessage(t *testing.T) {
	err := &UnresolvedTermError{Term: "k_ghost"}
	if err.Error() == "" {
		t.Error("empty error message")
	}
}
