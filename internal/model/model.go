// Package model is the consumer surface of the pipeline: it builds the
// graph, synthesizes and compiles the equations once, and exposes
// evaluation, integration, quashing, sampling, and parallel sweeps over the
// resulting compiled model.
package model

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cytoflux/internal/compile"
	"cytoflux/internal/expr"
	"cytoflux/internal/graph"
	"cytoflux/internal/odegen"
	"cytoflux/internal/quash"
	"cytoflux/internal/solver"
	"cytoflux/internal/sweep"
)

var (
	ErrSpeciesNotFound = errors.New("model: species not found")
	ErrParamNotFound   = errors.New("model: parameter not found")
)

// Model owns a compiled equation system plus its default initial state,
// default parameter vector, and declared search ranges. The compiled part is
// immutable and shared; defaults are copied into every run, so integrations
// never mutate them.
type Model struct {
	compiled *compile.Model

	x0      []float64
	params  []float64
	nameIdx map[string]int // species by identifier string, for sweeps

	design    *sweep.Design
	threshold float64
	tol       float64
	log       *zap.Logger
}

type settings struct {
	seed      int64
	threshold float64
	tol       float64
	log       *zap.Logger
}

type Option func(*settings)

func WithLogger(l *zap.Logger) Option        { return func(s *settings) { s.log = l } }
func WithSeed(seed int64) Option             { return func(s *settings) { s.seed = seed } }
func WithQuashThreshold(th float64) Option   { return func(s *settings) { s.threshold = th } }
func WithSolverTolerance(tol float64) Option { return func(s *settings) { s.tol = tol } }

// New builds the graph, synthesizes one ODE per entity, and compiles the
// system. Structural problems (graph integrity, unresolvable terms) fail
// here and nowhere later.
func New(entities []graph.Entity, edges []graph.Edge, opts ...Option) (*Model, error) {
	st := settings{seed: 1, threshold: quash.DefaultThreshold, tol: 1e-6, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&st)
	}

	g, err := graph.Build(entities, edges, st.log)
	if err != nil {
		return nil, err
	}
	eqs := odegen.Synthesize(g, st.log)
	compiled, err := compile.Compile(eqs)
	if err != nil {
		return nil, err
	}

	m := &Model{
		compiled:  compiled,
		x0:        make([]float64, len(compiled.Species)),
		params:    compiled.ParamDefaults(),
		nameIdx:   make(map[string]int, len(compiled.Species)),
		design:    sweep.NewDesign(st.seed),
		threshold: st.threshold,
		tol:       st.tol,
		log:       st.log,
	}
	for i, id := range compiled.Species {
		m.nameIdx[id.String()] = i
	}
	return m, nil
}

// Species returns the canonical species ordering.
func (m *Model) Species() []expr.EntityID {
	return append([]expr.EntityID(nil), m.compiled.Species...)
}

// Params returns the canonical parameter ordering with defaults.
func (m *Model) Params() []compile.Param {
	return append([]compile.Param(nil), m.compiled.Params...)
}

// SpeciesIndex resolves an identifier to its canonical index.
func (m *Model) SpeciesIndex(id expr.EntityID) (int, bool) {
	return m.compiled.SpeciesIndex(id)
}

// SetInitial sets the stored default initial value for one species.
func (m *Model) SetInitial(id expr.EntityID, v float64) error {
	idx, ok := m.compiled.SpeciesIndex(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSpeciesNotFound, id)
	}
	m.x0[idx] = v
	return nil
}

// SetParam sets the stored default value for one parameter.
func (m *Model) SetParam(name string, v float64) error {
	idx, ok := m.compiled.ParamIndex(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrParamNotFound, name)
	}
	m.params[idx] = v
	return nil
}

// InitialState returns a copy of the default initial state.
func (m *Model) InitialState() []float64 {
	return append([]float64(nil), m.x0...)
}

// ParamValues returns a copy of the current parameter vector.
func (m *Model) ParamValues() []float64 {
	return append([]float64(nil), m.params...)
}

// Evaluate computes the derivative vector at the given state and parameters,
// both in canonical order, without the floor policy.
func (m *Model) Evaluate(species, params []float64) []float64 {
	return m.compiled.Evaluate(species, params)
}

// RunOpt overrides the initial state or parameter vector for one call
// without touching the model's stored defaults.
type RunOpt func(*runCfg)

type runCfg struct {
	x0     []float64
	params []float64
	prefix [][]float64
}

func WithInitial(x0 []float64) RunOpt {
	return func(c *runCfg) { c.x0 = append([]float64(nil), x0...) }
}

func WithParams(p []float64) RunOpt {
	return func(c *runCfg) { c.params = append([]float64(nil), p...) }
}

func WithPrefix(rows [][]float64) RunOpt { return func(c *runCfg) { c.prefix = rows } }

func (m *Model) runCfg(opts []RunOpt) runCfg {
	c := runCfg{
		x0:     append([]float64(nil), m.x0...),
		params: append([]float64(nil), m.params...),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Integrate produces one trajectory row per timepoint under the
// non-negativity floor, columns in canonical species order.
func (m *Model) Integrate(timepoints []float64, opts ...RunOpt) ([][]float64, error) {
	c := m.runCfg(opts)
	integ := solver.NewRK45Tol(m.tol)
	return integ.Integrate(solver.Floored(m.compiled, c.params), c.x0, timepoints)
}

// GroupOf resolves species identifiers into a quash group.
func (m *Model) GroupOf(name string, ids ...expr.EntityID) (quash.Group, error) {
	g := quash.Group{Name: name, Members: make([]int, 0, len(ids))}
	for _, id := range ids {
		idx, ok := m.compiled.SpeciesIndex(id)
		if !ok {
			return quash.Group{}, fmt.Errorf("%w: %s", ErrSpeciesNotFound, id)
		}
		g.Members = append(g.Members, idx)
	}
	return g, nil
}

// Quash integrates with recursive extinction enforcement over groups. A
// pre-computed prefix trajectory passed via [WithPrefix] is reused instead
// of re-integrating from the start.
func (m *Model) Quash(timepoints []float64, groups []quash.Group, opts ...RunOpt) ([][]float64, error) {
	c := m.runCfg(opts)
	integ := solver.NewRK45Tol(m.tol)
	sys := solver.Floored(m.compiled, c.params)
	step := func(x0, tps []float64) ([][]float64, error) {
		return integ.Integrate(sys, x0, tps)
	}
	return quash.Run(step, timepoints, groups, c.x0, quash.Options{
		Threshold: m.threshold,
		Prefix:    c.prefix,
	})
}

// SetSearchRange declares a sampling range for a parameter name or species
// identifier string.
func (m *Model) SetSearchRange(name string, lo, hi float64) error {
	if err := m.checkDimension(name); err != nil {
		return err
	}
	m.design.AddRange(name, lo, hi)
	return nil
}

// Pin forces the named dimensions to share one sampled value per sample.
func (m *Model) Pin(names ...string) error {
	for _, name := range names {
		if err := m.checkDimension(name); err != nil {
			return err
		}
	}
	m.design.Pin(names...)
	return nil
}

func (m *Model) checkDimension(name string) error {
	if _, ok := m.compiled.ParamIndex(name); ok {
		return nil
	}
	if _, ok := m.nameIdx[name]; ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrParamNotFound, name)
}

// GenerateSamples produces n Latin Hypercube samples over the declared
// search ranges.
func (m *Model) GenerateSamples(n int) []sweep.Sample {
	return m.design.Generate(n)
}

// RunSweep executes every sample across workers, integrating (or quashing,
// when groups are given) with the sample's values applied over the model
// defaults. Per-sample failures are captured in the results; the sweep
// always completes.
func (m *Model) RunSweep(samples []sweep.Sample, timepoints []float64, workers int, groups []quash.Group) []sweep.Result {
	newRunner := func() sweep.Runner {
		// One integrator per worker: RK45 scratch state is not shareable.
		integ := solver.NewRK45Tol(m.tol)
		return func(s sweep.Sample) ([][]float64, error) {
			x0, params, err := m.apply(s)
			if err != nil {
				return nil, err
			}
			sys := solver.Floored(m.compiled, params)
			if len(groups) == 0 {
				return integ.Integrate(sys, x0, timepoints)
			}
			step := func(x0, tps []float64) ([][]float64, error) {
				return integ.Integrate(sys, x0, tps)
			}
			return quash.Run(step, timepoints, groups, x0, quash.Options{Threshold: m.threshold})
		}
	}
	return sweep.Run(samples, workers, newRunner)
}

// apply copies the model defaults and overlays one sample's values, mapping
// each name to a parameter or species initial condition.
func (m *Model) apply(s sweep.Sample) (x0, params []float64, err error) {
	x0 = append([]float64(nil), m.x0...)
	params = append([]float64(nil), m.params...)
	for _, name := range s.Names() {
		if idx, ok := m.compiled.ParamIndex(name); ok {
			params[idx] = s[name]
			continue
		}
		if idx, ok := m.nameIdx[name]; ok {
			x0[idx] = s[name]
			continue
		}
		return nil, nil, fmt.Errorf("%w: sample dimension %s", ErrParamNotFound, name)
	}
	return x0, params, nil
}

// DescribeArgs renders the canonical orderings with their current defaults,
// one line per species and parameter.
func (m *Model) DescribeArgs() string {
	var b strings.Builder
	b.WriteString("SPECIES (index | identifier | initial value)\n")
	for i, id := range m.compiled.Species {
		fmt.Fprintf(&b, "%3d | %s | %g\n", i, id, m.x0[i])
	}
	b.WriteString("\nPARAMETERS (index | name | value)\n")
	for i, p := range m.compiled.Params {
		fmt.Fprintf(&b, "%3d | %s | %g\n", i, p.Name, m.params[i])
	}
	return b.String()
}
