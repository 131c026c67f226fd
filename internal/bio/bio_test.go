package bio

import (
	"testing"

	"cytoflux/internal/expr"
	"cytoflux/internal/graph"
	"cytoflux/internal/model"
)

// demoLayer is a two-compartment CAR-T model: therapeutic cells with one
// binary state, tumor cells in the tumor compartment, one cytokine.
func demoLayer(t *testing.T) *Layer {
	t.Helper()

	l := NewLayer(nil)
	l.AddCompartment("blood")
	l.AddCompartment("tumor")
	l.LinkCompartments("blood", "tumor")

	l.AddTxCell("cart", "activated")
	l.AddCells("tumorcell", "tumor", true)
	l.AddCytokine("il6")

	resting := StateAssign{"activated": false}
	active := StateAssign{"activated": true}

	if err := l.SetTxDaughterState("cart", active); err != nil {
		t.Fatal(err)
	}
	rate := expr.Mul(expr.NewParam("k_activate", 2), l.TxState("cart", resting), l.Cells("tumorcell"))
	if err := l.AddTxStateLink("cart", resting, active, rate); err != nil {
		t.Fatal(err)
	}
	if err := l.AddTxKillTarget("cart", "tumorcell", active); err != nil {
		t.Fatal(err)
	}
	if err := l.AddTxCytokineLink("cart", "il6", Secrete, active); err != nil {
		t.Fatal(err)
	}
	return l
}

func TestComposeEntityCounts(t *testing.T) {
	entities, edges := demoLayer(t).Compose()

	// cart: 2 compartments x 2 states; tumorcell: 1; il6: 2 compartments.
	wantEntities := 4 + 1 + 2
	if len(entities) != wantEntities {
		t.Errorf("expected %d entities, got %d", wantEntities, len(entities))
	}
	if len(edges) == 0 {
		t.Fatal("no edges composed")
	}
}

func TestComposeStateFormatting(t *testing.T) {
	l := NewLayer(nil)
	l.AddTxCell("cart", "activated", "primed")

	ref := l.TxState("cart", StateAssign{"primed": true})
	if ref.ID.State != "activated=0,primed=1" {
		t.Errorf("unexpected state encoding: %s", ref.ID.State)
	}
}

func TestComposeMigrationIsTransfer(t *testing.T) {
	entities, edges := demoLayer(t).Compose()
	g, err := graph.Build(entities, edges, nil)
	if err != nil {
		t.Fatalf("composed graph failed to build: %v", err)
	}

	found := false
	for _, e := range g.Edges() {
		if e.Type == graph.EdgeMigration {
			found = true
			if e.From.Kind != e.To.Kind || e.From.Name != e.To.Name ||
				e.From.State != e.To.State || e.From.Compartment == e.To.Compartment {
				t.Errorf("migration edge endpoints malformed: %s -> %s", e.From, e.To)
			}
		}
	}
	if !found {
		t.Error("no migration edges composed")
	}
}

func TestComposeKillOnlyWhereTargetLives(t *testing.T) {
	_, edges := demoLayer(t).Compose()
	for _, e := range edges {
		if e.Type == graph.EdgeKilling && e.To.Compartment != "tumor" {
			t.Errorf("kill edge targets %s outside the cell's home compartment", e.To)
		}
	}
}

func TestComposeStateLinkResolvesCompartment(t *testing.T) {
	_, edges := demoLayer(t).Compose()
	for _, e := range edges {
		if e.Type != graph.EdgeStateChange {
			continue
		}
		for _, leaf := range expr.Leaves(e.Rate) {
			if ref, ok := leaf.(expr.Ref); ok && ref.ID.Compartment == "" {
				t.Errorf("state link rate kept an unresolved reference: %s", ref.ID)
			}
		}
	}
}

func TestComposedModelCompilesAndIntegrates(t *testing.T) {
	entities, edges := demoLayer(t).Compose()

	m, err := model.New(entities, edges)
	if err != nil {
		t.Fatalf("composed model failed to build: %v", err)
	}

	if len(m.Species()) == 0 || len(m.Params()) == 0 {
		t.Fatal("empty compiled model")
	}

	// Slow the autogenerated kinetics down so the short horizon stays finite.
	for _, p := range m.Params() {
		if err := m.SetParam(p.Name, 0.1); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.SetParam("k_cell_carrycap", 2000); err != nil {
		t.Fatal(err)
	}

	restingBlood := expr.EntityID{Kind: KindTxCell, Name: "cart", Compartment: "blood", State: "activated=0"}
	tumor := expr.EntityID{Kind: KindCell, Name: "tumorcell", Compartment: "tumor"}
	if err := m.SetInitial(restingBlood, 100); err != nil {
		t.Fatal(err)
	}
	if err := m.SetInitial(tumor, 1000); err != nil {
		t.Fatal(err)
	}

	tps := []float64{0, 0.05, 0.1}
	rows, err := m.Integrate(tps)
	if err != nil {
		t.Fatalf("integrate failed: %v", err)
	}
	if len(rows) != len(tps) {
		t.Fatalf("expected %d rows, got %d", len(tps), len(rows))
	}
	for j, v := range rows[len(rows)-1] {
		if v < 0 {
			// Small adaptive-step undershoot is tolerated by the floor
			// policy but anything visible means the model is wrong.
			if v < -1e-6 {
				t.Errorf("species %d went visibly negative: %g", j, v)
			}
		}
	}
}

func TestLayerErrorsOnUnknownCell(t *testing.T) {
	l := NewLayer(nil)
	if err := l.AddTxStateLink("ghost", nil, nil, expr.Lit(1)); err == nil {
		t.Error("expected error for unknown tx cell")
	}
	if err := l.SetTxDaughterState("ghost", nil); err == nil {
		t.Error("expected error for unknown tx cell")
	}
	if err := l.AddTxKillTarget("ghost", "x"); err == nil {
		t.Error("expected error for unknown tx cell")
	}
	if err := l.AddTxCytokineLink("ghost", "il6", Secrete); err == nil {
		t.Error("expected error for unknown tx cell")
	}
}
