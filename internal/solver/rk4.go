package solver

// RK4 is a fixed-step fourth-order Runge-Kutta integrator taking Substeps
// equal substeps inside each requested interval. Not goroutine-safe; scratch
// buffers are reused across steps.
type RK4 struct {
	Substeps int

	k1, k2, k3, k4, stage []float64
}

func NewRK4(substeps int) *RK4 {
	if substeps < 1 {
		substeps = 1
	}
	return &RK4{Substeps: substeps}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make([]float64, n)
		r.k2 = make([]float64, n)
		r.k3 = make([]float64, n)
		r.k4 = make([]float64, n)
		r.stage = make([]float64, n)
	}
}

func (r *RK4) Integrate(sys System, x0 []float64, timepoints []float64) ([][]float64, error) {
	if err := checkTimepoints(timepoints); err != nil {
		return nil, err
	}
	n := len(x0)
	r.ensureScratch(n)

	rows := make([][]float64, len(timepoints))
	x := make([]float64, n)
	copy(x, x0)
	rows[0] = append([]float64(nil), x...)

	for seg := 1; seg < len(timepoints); seg++ {
		t := timepoints[seg-1]
		dt := (timepoints[seg] - t) / float64(r.Substeps)

		for s := 0; s < r.Substeps; s++ {
			r.step(sys, x, t, dt)
			t += dt
			if !finite(x) {
				return nil, &IntegrationError{Time: t, Wrapped: ErrNonFinite}
			}
		}
		rows[seg] = append([]float64(nil), x...)
	}

	return rows, nil
}

func (r *RK4) step(sys System, x []float64, t, dt float64) {
	n := len(x)

	sys(r.k1, x, t)

	for i := 0; i < n; i++ {
		r.stage[i] = x[i] + dt*0.5*r.k1[i]
	}
	sys(r.k2, r.stage, t+dt*0.5)

	for i := 0; i < n; i++ {
		r.stage[i] = x[i] + dt*0.5*r.k2[i]
	}
	sys(r.k3, r.stage, t+dt*0.5)

	for i := 0; i < n; i++ {
		r.stage[i] = x[i] + dt*r.k3[i]
	}
	sys(r.k4, r.stage, t+dt)

	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		x[i] += dt6 * (r.k1[i] + 2*r.k2[i] + 2*r.k3[i] + r.k4[i])
	}
}
