// Package sweep explores parameter and initial-condition space: Latin
// Hypercube sample generation over declared ranges, and a chunked parallel
// executor that fans simulations out across workers.
package sweep

import (
	"math/rand"
	"sort"
)

// Dimension is a declared search range for one parameter or initial
// condition, addressed by name.
type Dimension struct {
	Name string
	Lo   float64
	Hi   float64
}

// Sample maps each declared or fixed dimension name to the value used for
// one simulation.
type Sample map[string]float64

// Design accumulates search ranges, fixed values, and pinning declarations,
// then generates space-filling sample sets. Sampling is seeded and
// reproducible.
type Design struct {
	dims  []Dimension
	fixed []Dimension // zero-width ranges, kept separately for clarity
	pins  [][]string
	rng   *rand.Rand
}

func NewDesign(seed int64) *Design {
	return &Design{rng: rand.New(rand.NewSource(seed))}
}

// AddRange declares a closed sampling range for name, replacing any earlier
// declaration.
func (d *Design) AddRange(name string, lo, hi float64) {
	d.remove(name)
	d.dims = append(d.dims, Dimension{Name: name, Lo: lo, Hi: hi})
}

// SetFixed holds name at a constant value across all samples (a zero-width
// range).
func (d *Design) SetFixed(name string, v float64) {
	d.remove(name)
	d.fixed = append(d.fixed, Dimension{Name: name, Lo: v, Hi: v})
}

// Pin declares that the named dimensions must share one sampled value: every
// sample assigns all of them the first name's draw.
func (d *Design) Pin(names ...string) {
	if len(names) > 1 {
		d.pins = append(d.pins, names)
	}
}

// Dimensions returns the declared (non-fixed) ranges in declaration order.
func (d *Design) Dimensions() []Dimension {
	out := make([]Dimension, len(d.dims))
	copy(out, d.dims)
	return out
}

func (d *Design) remove(name string) {
	for i, dim := range d.dims {
		if dim.Name == name {
			d.dims = append(d.dims[:i], d.dims[i+1:]...)
			break
		}
	}
	for i, dim := range d.fixed {
		if dim.Name == name {
			d.fixed = append(d.fixed[:i], d.fixed[i+1:]...)
			break
		}
	}
}

// Generate produces n Latin Hypercube samples: each declared dimension is
// stratified into n equal-probability bins and every bin is used exactly
// once across the sample set. Fixed dimensions carry their constant value.
// Pins are applied last, overwriting all but the first pinned dimension's
// draw per sample.
func (d *Design) Generate(n int) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = make(Sample, len(d.dims)+len(d.fixed))
	}

	for _, dim := range d.dims {
		perm := d.rng.Perm(n)
		width := (dim.Hi - dim.Lo) / float64(n)
		for i := 0; i < n; i++ {
			stratum := float64(perm[i])
			samples[i][dim.Name] = dim.Lo + width*(stratum+d.rng.Float64())
		}
	}
	for _, dim := range d.fixed {
		for i := 0; i < n; i++ {
			samples[i][dim.Name] = dim.Lo
		}
	}

	for _, pin := range d.pins {
		lead := pin[0]
		for i := 0; i < n; i++ {
			v, ok := samples[i][lead]
			if !ok {
				continue
			}
			for _, name := range pin[1:] {
				samples[i][name] = v
			}
		}
	}

	return samples
}

// Names returns every dimension name in a sample, sorted, for stable
// reporting and persistence.
func (s Sample) Names() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the sample.
func (s Sample) Clone() Sample {
	out := make(Sample, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
