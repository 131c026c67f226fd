package solver

import "math"

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// RK45 is an adaptive Dormand-Prince integrator. Scratch buffers are reused
// across steps, so an RK45 value must not be shared between goroutines; the
// sweep executor gives each worker its own.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
	tol      float64
	minStep  float64

	k1, k2, k3, k4, k5, k6, k7 []float64
	stage, xNew                []float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
		tol:      1e-6,
		minStep:  1e-12,
	}
}

// NewRK45Tol returns an RK45 with a caller-chosen local error tolerance.
func NewRK45Tol(tol float64) *RK45 {
	r := NewRK45()
	r.tol = tol
	return r
}

func (r *RK45) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make([]float64, n)
		r.k2 = make([]float64, n)
		r.k3 = make([]float64, n)
		r.k4 = make([]float64, n)
		r.k5 = make([]float64, n)
		r.k6 = make([]float64, n)
		r.k7 = make([]float64, n)
		r.stage = make([]float64, n)
		r.xNew = make([]float64, n)
	}
}

// Integrate advances x0 through every requested timepoint, taking as many
// adaptive substeps inside each interval as the tolerance demands, and
// returns one row per timepoint (row 0 is x0 itself).
func (r *RK45) Integrate(sys System, x0 []float64, timepoints []float64) ([][]float64, error) {
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
		tEnd := timepoints[seg]
		dt := tEnd - t

		for t < tEnd {
			if dt > tEnd-t {
				dt = tEnd - t
			}
			if dt < r.minStep {
				return nil, &IntegrationError{Time: t, Wrapped: ErrStepTooSmall}
			}

			errRatio := r.step(sys, x, t, dt)
			if errRatio > 1 {
				// Reject and retry with the shrunken step.
				dt *= math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
				continue
			}

			copy(x, r.xNew)
			if !finite(x) {
				return nil, &IntegrationError{Time: t, Wrapped: ErrNonFinite}
			}
			t += dt

			if errRatio > 0 {
				dt *= math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
			} else {
				dt *= r.maxScale
			}
		}
		rows[seg] = append([]float64(nil), x...)
	}

	return rows, nil
}

// step evaluates one trial Dormand-Prince step into r.xNew and returns the
// scaled error ratio (accept when <= 1).
func (r *RK45) step(sys System, x []float64, t, dt float64) float64 {
	n := len(x)

	sys(r.k1, x, t)

	for i := 0; i < n; i++ {
		r.stage[i] = x[i] + dt*b21*r.k1[i]
	}
	sys(r.k2, r.stage, t+a2*dt)

	for i := 0; i < n; i++ {
		r.stage[i] = x[i] + dt*(b31*r.k1[i]+b32*r.k2[i])
	}
	sys(r.k3, r.stage, t+a3*dt)

	for i := 0; i < n; i++ {
		r.stage[i] = x[i] + dt*(b41*r.k1[i]+b42*r.k2[i]+b43*r.k3[i])
	}
	sys(r.k4, r.stage, t+a4*dt)

	for i := 0; i < n; i++ {
		r.stage[i] = x[i] + dt*(b51*r.k1[i]+b52*r.k2[i]+b53*r.k3[i]+b54*r.k4[i])
	}
	sys(r.k5, r.stage, t+a5*dt)

	for i := 0; i < n; i++ {
		r.stage[i] = x[i] + dt*(b61*r.k1[i]+b62*r.k2[i]+b63*r.k3[i]+b64*r.k4[i]+b65*r.k5[i])
	}
	sys(r.k6, r.stage, t+dt)

	for i := 0; i < n; i++ {
		r.xNew[i] = x[i] + dt*(c1*r.k1[i]+c3*r.k3[i]+c4*r.k4[i]+c5*r.k5[i]+c6*r.k6[i])
	}
	sys(r.k7, r.xNew, t+dt)

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*r.k1[i] + dc3*r.k3[i] + dc4*r.k4[i] + dc5*r.k5[i] + dc6*r.k6[i] + dc7*r.k7[i])
		scale := math.Abs(x[i]) + math.Abs(dt*r.k1[i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}

	return errMax / r.tol
}
