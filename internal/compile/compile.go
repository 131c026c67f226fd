// Package compile turns a synthesized equation set into a fast, repeatedly
// callable numeric evaluator with a fixed canonical ordering of species and
// parameters.
//
// Compilation happens once per model version: each right-hand side is
// translated ahead of time into index-bound closures over the state and
// parameter vectors, so evaluation performs no symbol lookup, no tree
// walking over interface values with map probes, and no allocation.
package compile

import (
	"fmt"
	"math"

	"cytoflux/internal/expr"
	"cytoflux/internal/odegen"
)

// Param is a model parameter in canonical order, carrying the default value
// it was first declared with.
type Param struct {
	Name    string
	Default float64
}

// UnresolvedTermError reports a right-hand-side term that is neither a
// governed species, a parameter, nor a literal. Fatal at compile time.
type UnresolvedTermError struct {
	Term string
}

func (e *UnresolvedTermError) Error() string {
	return fmt.Sprintf("compile: unresolved term %s (not a parameter or governed species)", e.Term)
}

type evalFn func(s, p []float64) float64

// Model is the compiled form of an equation set. Species, Params, and the
// evaluator all agree on one canonical ordering; the struct is immutable
// after Compile and safe for concurrent use.
type Model struct {
	Species   []expr.EntityID
	Params    []Param
	Equations []odegen.Equation

	speciesIdx map[expr.EntityID]int
	paramIdx   map[string]int
	funcs      []evalFn
}

// Prune substitutes the literal zero for every species leaf whose identifier
// governs no equation in the set. Such a term references an out-of-model
// quantity whose concentration is undefined; treating it as persistently
// zero is the documented approximation. Pruning an already-pruned set is a
// no-op.
func Prune(eqs []odegen.Equation) []odegen.Equation {
	governed := make(map[expr.EntityID]bool, len(eqs))
	for _, eq := range eqs {
		governed[eq.Target] = true
	}

	out := make([]odegen.Equation, len(eqs))
	for i, eq := range eqs {
		rhs := expr.Rewrite(eq.RHS, func(n expr.Expr) (expr.Expr, bool) {
			if ref, ok := n.(expr.Ref); ok && !governed[ref.ID] {
				return expr.Zero, true
			}
			return nil, false
		})
		out[i] = odegen.Equation{Target: eq.Target, RHS: rhs}
	}
	return out
}

// Compile prunes the equation set, fixes the canonical species and parameter
// orderings, reorders the equations so equation i governs Species[i], and
// translates every right-hand side into the evaluator.
//
// Canonical order is strict first-discovery over the pruned right-hand sides
// in equation-set order; governed species that no right-hand side references
// (pure sinks) are appended afterwards in equation order so that every
// equation keeps a state-vector slot.
func Compile(eqs []odegen.Equation) (*Model, error) {
	pruned := Prune(eqs)

	m := &Model{
		speciesIdx: make(map[expr.EntityID]int),
		paramIdx:   make(map[string]int),
	}

	byTarget := make(map[expr.EntityID]odegen.Equation, len(pruned))
	for _, eq := range pruned {
		byTarget[eq.Target] = eq
	}

	for _, eq := range pruned {
		for _, leaf := range expr.Leaves(eq.RHS) {
			switch l := leaf.(type) {
			case expr.Ref:
				if _, seen := m.speciesIdx[l.ID]; !seen {
					m.speciesIdx[l.ID] = len(m.Species)
					m.Species = append(m.Species, l.ID)
				}
			case expr.Param:
				if _, seen := m.paramIdx[l.Name]; !seen {
					m.paramIdx[l.Name] = len(m.Params)
					m.Params = append(m.Params, Param{Name: l.Name, Default: l.Value})
				}
			}
		}
	}
	for _, eq := range pruned {
		if _, seen := m.speciesIdx[eq.Target]; !seen {
			m.speciesIdx[eq.Target] = len(m.Species)
			m.Species = append(m.Species, eq.Target)
		}
	}

	m.Equations = make([]odegen.Equation, len(m.Species))
	m.funcs = make([]evalFn, len(m.Species))
	for i, id := range m.Species {
		eq, ok := byTarget[id]
		if !ok {
			// A referenced species survived pruning without a governing
			// equation; Prune guarantees this cannot happen.
			return nil, &UnresolvedTermError{Term: id.String()}
		}
		fn, err := m.compileNode(eq.RHS)
		if err != nil {
			return nil, err
		}
		m.Equations[i] = eq
		m.funcs[i] = fn
	}

	return m, nil
}

func (m *Model) compileNode(e expr.Expr) (evalFn, error) {
	switch n := e.(type) {
	case expr.Num:
		v := n.Value
		return func(s, p []float64) float64 { return v }, nil
	case expr.Ref:
		idx, ok := m.speciesIdx[n.ID]
		if !ok {
			return nil, &UnresolvedTermError{Term: n.ID.String()}
		}
		return func(s, p []float64) float64 { return s[idx] }, nil
	case expr.Param:
		idx, ok := m.paramIdx[n.Name]
		if !ok {
			return nil, &UnresolvedTermError{Term: n.Name}
		}
		return func(s, p []float64) float64 { return p[idx] }, nil
	case expr.Unary:
		x, err := m.compileNode(n.X)
		if err != nil {
			return nil, err
		}
		return func(s, p []float64) float64 { return -x(s, p) }, nil
	case expr.Binary:
		x, err := m.compileNode(n.X)
		if err != nil {
			return nil, err
		}
		y, err := m.compileNode(n.Y)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case expr.OpAdd:
			return func(s, p []float64) float64 { return x(s, p) + y(s, p) }, nil
		case expr.OpSub:
			return func(s, p []float64) float64 { return x(s, p) - y(s, p) }, nil
		case expr.OpMul:
			return func(s, p []float64) float64 { return x(s, p) * y(s, p) }, nil
		case expr.OpDiv:
			return func(s, p []float64) float64 { return x(s, p) / y(s, p) }, nil
		case expr.OpPow:
			return func(s, p []float64) float64 { return math.Pow(x(s, p), y(s, p)) }, nil
		}
	}
	return nil, &UnresolvedTermError{Term: e.String()}
}

// EvaluateInto computes all right-hand sides at once into dst, which must
// have length len(Species). species and params are in canonical order.
func (m *Model) EvaluateInto(dst, species, params []float64) {
	for i, fn := range m.funcs {
		dst[i] = fn(species, params)
	}
}

// Evaluate is EvaluateInto with a freshly allocated result.
func (m *Model) Evaluate(species, params []float64) []float64 {
	dst := make([]float64, len(m.funcs))
	m.EvaluateInto(dst, species, params)
	return dst
}

// SpeciesIndex returns the canonical index of id.
func (m *Model) SpeciesIndex(id expr.EntityID) (int, bool) {
	idx, ok := m.speciesIdx[id]
	return idx, ok
}

// ParamIndex returns the canonical index of the named parameter.
func (m *Model) ParamIndex(name string) (int, bool) {
	idx, ok := m.paramIdx[name]
	return idx, ok
}

// ParamDefaults returns the default parameter vector in canonical order.
func (m *Model) ParamDefaults() []float64 {
	out := make([]float64, len(m.Params))
	for i, p := range m.Params {
		out[i] = p.Default
	}
	return out
}
