// Package dynamics holds the dynamical-system filters applied by
// terminations and the integrators that advance them.
package dynamics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrDimension   = errors.New("dimension mismatch")
	ErrNotLTI      = errors.New("dynamics are not linear time-invariant")
	ErrUnstable    = errors.New("system has no decaying mode")
	ErrDiverged    = errors.New("integration diverged")
	ErrInvalidTau  = errors.New("time constant must be > 0")
	ErrEmptyInput  = errors.New("input series is empty")
	ErrBackwardsDt = errors.New("input series times must be non-decreasing")
)

// System is a state-space dynamical system dx/dt = F(t, x, u), y = G(t, x, u)
// whose state x is owned by the system itself.
type System interface {
	F(t float64, u []float64) []float64
	G(t float64, u []float64) []float64
	State() []float64
	SetState(x []float64)
	InputDimension() int
	OutputDimension() int
	Clone() System
}

// LTISystem is dx/dt = Ax + Bu, y = Cx + Du.
type LTISystem struct {
	a, b, c, d *mat.Dense
	x          []float64
	// version changes whenever the matrices change so integrators can cache
	// discretizations.
	version uint64
}

func NewLTISystem(a, b, c, d *mat.Dense, x0 []float64) (*LTISystem, error) {
	n, nc := a.Dims()
	if n != nc {
		return nil, fmt.Errorf("%w: A is %dx%d", ErrDimension, n, nc)
	}
	br, p := b.Dims()
	if br != n {
		return nil, fmt.Errorf("%w: B has %d rows, want %d", ErrDimension, br, n)
	}
	q, cc := c.Dims()
	if cc != n {
		return nil, fmt.Errorf("%w: C has %d columns, want %d", ErrDimension, cc, n)
	}
	dr, dc := d.Dims()
	if dr != q || dc != p {
		return nil, fmt.Errorf("%w: D is %dx%d, want %dx%d", ErrDimension, dr, dc, q, p)
	}
	if x0 == nil {
		x0 = make([]float64, n)
	}
	if len(x0) != n {
		return nil, fmt.Errorf("%w: initial state has %d entries, want %d", ErrDimension, len(x0), n)
	}
	return &LTISystem{
		a: mat.DenseCopyOf(a),
		b: mat.DenseCopyOf(b),
		c: mat.DenseCopyOf(c),
		d: mat.DenseCopyOf(d),
		x: append([]float64(nil), x0...),
	}, nil
}

// NewLowPass builds dim independent first-order filters
// tau dx/dt = -x + u, y = x: a decaying exponential impulse response with
// unit DC gain.
func NewLowPass(tau float64, dim int) (*LTISystem, error) {
	if !(tau > 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidTau, tau)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be > 0", ErrDimension)
	}
	a := mat.NewDense(dim, dim, nil)
	b := mat.NewDense(dim, dim, nil)
	c := mat.NewDense(dim, dim, nil)
	d := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		a.Set(i, i, -1/tau)
		b.Set(i, i, 1/tau)
		c.Set(i, i, 1)
	}
	return NewLTISystem(a, b, c, d, nil)
}

func (s *LTISystem) F(_ float64, u []float64) []float64 {
	dx := mulVec(s.a, s.x)
	bu := mulVec(s.b, u)
	for i := range dx {
		dx[i] += bu[i]
	}
	return dx
}

func (s *LTISystem) G(_ float64, u []float64) []float64 {
	y := mulVec(s.c, s.x)
	du := mulVec(s.d, u)
	for i := range y {
		y[i] += du[i]
	}
	return y
}

func (s *LTISystem) State() []float64 { return append([]float64(nil), s.x...) }

func (s *LTISystem) SetState(x []float64) {
	if len(x) != len(s.x) {
		return
	}
	copy(s.x, x)
}

func (s *LTISystem) InputDimension() int {
	_, p := s.b.Dims()
	return p
}

func (s *LTISystem) OutputDimension() int {
	q, _ := s.c.Dims()
	return q
}

func (s *LTISystem) StateDimension() int { return len(s.x) }

func (s *LTISystem) A() *mat.Dense { return mat.DenseCopyOf(s.a) }
func (s *LTISystem) B() *mat.Dense { return mat.DenseCopyOf(s.b) }
func (s *LTISystem) C() *mat.Dense { return mat.DenseCopyOf(s.c) }
func (s *LTISystem) D() *mat.Dense { return mat.DenseCopyOf(s.d) }

func (s *LTISystem) Clone() System {
	return &LTISystem{
		a:       mat.DenseCopyOf(s.a),
		b:       mat.DenseCopyOf(s.b),
		c:       mat.DenseCopyOf(s.c),
		d:       mat.DenseCopyOf(s.d),
		x:       append([]float64(nil), s.x...),
		version: s.version,
	}
}

func (s *LTISystem) scale(k float64) {
	s.a.Scale(k, s.a)
	s.b.Scale(k, s.b)
	s.version++
}

func mulVec(m *mat.Dense, v []float64) []float64 {
	r, c := m.Dims()
	out := make([]float64, r)
	if len(v) != c {
		return out
	}
	res := mat.NewVecDense(r, out)
	res.MulVec(m, mat.NewVecDense(c, append([]float64(nil), v...)))
	return out
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
