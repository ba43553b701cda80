package dynamics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"nengosim/internal/model"
)

// Integrator advances a System across the span of an input series and
// returns the system's output over that span. The input between samples is
// linearly interpolated; a series whose endpoints carry the same value is
// therefore held constant (zero-order hold).
type Integrator interface {
	Integrate(sys System, input model.TimeSeries) (model.TimeSeries, error)
	Clone() Integrator
}

// EulerIntegrator is a forward Euler integrator. Each input interval is split
// into equal sub-steps no longer than MaxStep; MaxStep <= 0 takes one step
// per interval.
type EulerIntegrator struct {
	MaxStep float64
}

func (e *EulerIntegrator) Integrate(sys System, input model.TimeSeries) (model.TimeSeries, error) {
	return integrateFixed(sys, input, e.MaxStep, func(t, h float64, u []float64) ([]float64, error) {
		x := sys.State()
		dx := sys.F(t, u)
		for i := range x {
			x[i] += h * dx[i]
		}
		return x, nil
	})
}

func (e *EulerIntegrator) Clone() Integrator {
	out := *e
	return &out
}

// RK4Integrator is the classical fourth-order Runge-Kutta method with the
// same sub-stepping rule as EulerIntegrator.
type RK4Integrator struct {
	MaxStep float64
}

func (r *RK4Integrator) Integrate(sys System, input model.TimeSeries) (model.TimeSeries, error) {
	times := input.Times()
	values := input.Values()
	return integrateFixed(sys, input, r.MaxStep, func(t, h float64, u []float64) ([]float64, error) {
		x0 := sys.State()
		uMid := interpolate(times, values, t+h/2)
		uEnd := interpolate(times, values, t+h)

		k1 := derivativeAt(sys, x0, t, u)
		k2 := derivativeAt(sys, axpy(x0, h/2, k1), t+h/2, uMid)
		k3 := derivativeAt(sys, axpy(x0, h/2, k2), t+h/2, uMid)
		k4 := derivativeAt(sys, axpy(x0, h, k3), t+h, uEnd)

		x := make([]float64, len(x0))
		for i := range x {
			x[i] = x0[i] + h/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
		}
		sys.SetState(x0)
		return x, nil
	})
}

func (r *RK4Integrator) Clone() Integrator {
	out := *r
	return &out
}

// ExactLTIIntegrator discretizes an LTISystem with the matrix exponential of
// [[A B] [0 0]]h, which is exact when the input is held constant across each
// interval. It only accepts *LTISystem.
type ExactLTIIntegrator struct {
	cachedFor     *LTISystem
	cachedVersion uint64
	cachedH       float64
	ad, bd        *mat.Dense
}

func (e *ExactLTIIntegrator) Integrate(sys System, input model.TimeSeries) (model.TimeSeries, error) {
	lti, ok := sys.(*LTISystem)
	if !ok {
		return model.TimeSeries{}, fmt.Errorf("exact integrator: %w", ErrNotLTI)
	}
	times := input.Times()
	values := input.Values()
	if len(times) == 0 {
		return model.TimeSeries{}, ErrEmptyInput
	}
	if input.Dimension() != lti.InputDimension() {
		return model.TimeSeries{}, fmt.Errorf("%w: input has dimension %d, system expects %d", ErrDimension, input.Dimension(), lti.InputDimension())
	}

	outTimes := []float64{times[0]}
	outValues := [][]float64{lti.G(times[0], values[0])}
	for i := 1; i < len(times); i++ {
		h := times[i] - times[i-1]
		if h < 0 {
			return model.TimeSeries{}, ErrBackwardsDt
		}
		if h > 0 {
			ad, bd := e.discretize(lti, h)
			x := mulVec(ad, lti.State())
			bu := mulVec(bd, values[i-1])
			for j := range x {
				x[j] += bu[j]
			}
			if !finite(x) {
				return model.TimeSeries{}, fmt.Errorf("%w at t=%g", ErrDiverged, times[i])
			}
			lti.SetState(x)
		}
		outTimes = append(outTimes, times[i])
		outValues = append(outValues, lti.G(times[i], values[i]))
	}
	return model.NewTimeSeries(outTimes, outValues, nil)
}

func (e *ExactLTIIntegrator) discretize(s *LTISystem, h float64) (*mat.Dense, *mat.Dense) {
	if e.cachedFor == s && e.cachedVersion == s.version && e.cachedH == h && e.ad != nil {
		return e.ad, e.bd
	}
	n := len(s.x)
	p := s.InputDimension()
	m := mat.NewDense(n+p, n+p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.Set(i, j, s.a.At(i, j)*h)
		}
		for j := 0; j < p; j++ {
			m.Set(i, n+j, s.b.At(i, j)*h)
		}
	}
	var exp mat.Dense
	exp.Exp(m)
	e.ad = mat.DenseCopyOf(exp.Slice(0, n, 0, n))
	e.bd = mat.DenseCopyOf(exp.Slice(0, n, n, n+p))
	e.cachedFor = s
	e.cachedVersion = s.version
	e.cachedH = h
	return e.ad, e.bd
}

func (e *ExactLTIIntegrator) Clone() Integrator { return &ExactLTIIntegrator{} }

type stepFunc func(t, h float64, u []float64) ([]float64, error)

func integrateFixed(sys System, input model.TimeSeries, maxStep float64, step stepFunc) (model.TimeSeries, error) {
	times := input.Times()
	values := input.Values()
	if len(times) == 0 {
		return model.TimeSeries{}, ErrEmptyInput
	}
	if input.Dimension() != sys.InputDimension() {
		return model.TimeSeries{}, fmt.Errorf("%w: input has dimension %d, system expects %d", ErrDimension, input.Dimension(), sys.InputDimension())
	}

	outTimes := []float64{times[0]}
	outValues := [][]float64{sys.G(times[0], values[0])}
	for i := 1; i < len(times); i++ {
		span := times[i] - times[i-1]
		if span < 0 {
			return model.TimeSeries{}, ErrBackwardsDt
		}
		if span == 0 {
			continue
		}
		n := 1
		if maxStep > 0 && span > maxStep {
			n = int(math.Ceil(span/maxStep - 1e-9))
		}
		h := span / float64(n)
		for k := 0; k < n; k++ {
			t := times[i-1] + float64(k)*h
			u := interpolate(times, values, t)
			x, err := step(t, h, u)
			if err != nil {
				return model.TimeSeries{}, err
			}
			if !finite(x) {
				return model.TimeSeries{}, fmt.Errorf("%w at t=%g", ErrDiverged, t+h)
			}
			sys.SetState(x)
		}
		outTimes = append(outTimes, times[i])
		outValues = append(outValues, sys.G(times[i], values[i]))
	}
	return model.NewTimeSeries(outTimes, outValues, nil)
}

func derivativeAt(sys System, x []float64, t float64, u []float64) []float64 {
	sys.SetState(x)
	return sys.F(t, u)
}

func axpy(x []float64, a float64, y []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] + a*y[i]
	}
	return out
}

func interpolate(times []float64, values [][]float64, t float64) []float64 {
	last := len(times) - 1
	if t <= times[0] {
		return values[0]
	}
	if t >= times[last] {
		return values[last]
	}
	for i := 1; i <= last; i++ {
		if t > times[i] {
			continue
		}
		span := times[i] - times[i-1]
		if span <= 0 {
			return values[i]
		}
		w := (t - times[i-1]) / span
		out := make([]float64, len(values[i]))
		for j := range out {
			out[j] = values[i-1][j] + w*(values[i][j]-values[i-1][j])
		}
		return out
	}
	return values[last]
}
