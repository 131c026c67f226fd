package quash

import (
	"math"
	"testing"
)

// decayIntegrator returns an Integrate that evolves each species as
// x_i(t) = x0_i * exp(rate_i * t), which is enough structure to provoke
// rises, falls, and resurrection attempts deterministically.
func decayIntegrator(rates []float64, calls *int) Integrate {
	return func(x0, tps []float64) ([][]float64, error) {
		if calls != nil {
			*calls++
		}
		rows := make([][]float64, len(tps))
		for i, tp := range tps {
			row := make([]float64, len(x0))
			for j := range x0 {
				row[j] = x0[j] * math.Exp(rates[j]*(tp-tps[0]))
			}
			rows[i] = row
		}
		return rows, nil
	}
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

func TestNoCrossingReturnsTrajectoryUnmodified(t *testing.T) {
	tps := linspace(0, 1, 11)
	integ := decayIntegrator([]float64{0.1}, nil)

	direct, _ := integ([]float64{100}, tps)
	got, err := Run(integ, tps, []Group{{Name: "a", Members: []int{0}}}, []float64{100}, Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for i := range direct {
		if got[i][0] != direct[i][0] {
			t.Errorf("row %d modified without a crossing: %g vs %g", i, got[i][0], direct[i][0])
		}
	}
}

func TestQuashZeroesGroupAfterFall(t *testing.T) {
	// Decays from 100 below 1.0 around t = ln(100)/2 ≈ 2.3.
	tps := linspace(0, 10, 101)
	integ := decayIntegrator([]float64{-2}, nil)

	got, err := Run(integ, tps, []Group{{Name: "a", Members: []int{0}}}, []float64{100}, Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(got) != len(tps) {
		t.Fatalf("shape must match direct integration: expected %d rows, got %d", len(tps), len(got))
	}

	// Find the crossing; everything from there on must be exactly zero.
	crossed := false
	for i, row := range got {
		if !crossed && row[0] < 1.0 {
			crossed = true
		}
		if crossed && row[0] != 0 {
			t.Errorf("row %d: species must stay zeroed after quash, got %g", i, row[0])
		}
	}
	if !crossed {
		t.Fatal("species never fell below threshold")
	}
}

func TestGroupNeverRisingHasNoCritPoint(t *testing.T) {
	// Starts below threshold and stays there: no rise, so no quash.
	tps := linspace(0, 5, 51)
	integ := decayIntegrator([]float64{-0.5}, nil)

	got, err := Run(integ, tps, []Group{{Name: "a", Members: []int{0}}}, []float64{0.5}, Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for i, row := range got {
		if row[0] == 0 {
			t.Errorf("row %d zeroed although group never rose above threshold", i)
		}
	}
}

func TestGroupExtinctOnlyWhenAllMembersBelow(t *testing.T) {
	// Member 0 collapses fast, member 1 stays high: the group holds.
	tps := linspace(0, 10, 101)
	integ := decayIntegrator([]float64{-3, 0.01}, nil)

	got, err := Run(integ, tps, []Group{{Name: "g", Members: []int{0, 1}}}, []float64{100, 100}, Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	last := got[len(got)-1]
	if last[1] == 0 {
		t.Error("group quashed while a member was still above threshold")
	}
}

func TestEarliestGroupWinsAndRecursionTerminates(t *testing.T) {
	// Both groups collapse; group 0 crosses first.
	tps := linspace(0, 20, 201)
	integ := decayIntegrator([]float64{-3, -0.5}, nil)

	groups := []Group{
		{Name: "fast", Members: []int{0}},
		{Name: "slow", Members: []int{1}},
	}
	got, err := Run(integ, tps, groups, []float64{100, 100}, Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(got) != len(tps) {
		t.Fatalf("expected %d rows, got %d", len(tps), len(got))
	}

	last := got[len(got)-1]
	if last[0] != 0 || last[1] != 0 {
		t.Errorf("both groups should end quashed, got %v", last)
	}
}

func TestPrefixIsReused(t *testing.T) {
	tps := linspace(0, 1, 11)
	calls := 0
	integ := decayIntegrator([]float64{0.1}, &calls)

	full, _ := integ([]float64{100}, tps)
	calls = 0

	_, err := Run(integ, tps, []Group{{Name: "a", Members: []int{0}}}, []float64{100}, Options{Prefix: full})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("full prefix should suppress re-integration, saw %d integrator calls", calls)
	}
}

func TestPartialPrefixIntegratesOnlyTail(t *testing.T) {
	tps := linspace(0, 1, 11)
	calls := 0
	integ := decayIntegrator([]float64{0.1}, &calls)

	prefix, _ := integ([]float64{100}, tps[:6])
	calls = 0

	got, err := Run(integ, tps, nil, []float64{100}, Options{Prefix: prefix})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one tail integration, saw %d", calls)
	}
	if len(got) != len(tps) {
		t.Errorf("expected %d rows, got %d", len(tps), len(got))
	}
}

func TestOversizedPrefixRejected(t *testing.T) {
	tps := linspace(0, 1, 5)
	integ := decayIntegrator([]float64{0}, nil)

	prefix := make([][]float64, 10)
	for i := range prefix {
		prefix[i] = []float64{1}
	}
	if _, err := Run(integ, tps, nil, []float64{1}, Options{Prefix: prefix}); err == nil {
		t.Error("prefix longer than timepoints must be rejected")
	}
}
