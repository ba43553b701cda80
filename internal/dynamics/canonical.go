package dynamics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DominantTimeConstant returns -1/Re(λ) for the slowest decaying eigenvalue
// of A.
func DominantTimeConstant(s *LTISystem) (float64, error) {
	var eig mat.Eigen
	if ok := eig.Factorize(s.a, mat.EigenNone); !ok {
		return 0, fmt.Errorf("eigen decomposition failed")
	}
	slowest := math.Inf(-1)
	for _, v := range eig.Values(nil) {
		re := real(v)
		if re >= 0 {
			return 0, fmt.Errorf("%w: eigenvalue %v", ErrUnstable, v)
		}
		if re > slowest {
			slowest = re
		}
	}
	if math.IsInf(slowest, -1) {
		return 0, ErrUnstable
	}
	return -1 / slowest, nil
}

// ChangeTimeConstant rescales time so that the dominant time constant
// becomes tau. A and B are scaled together, which keeps the DC gain and the
// shape of the response.
func ChangeTimeConstant(s *LTISystem, tau float64) error {
	if !(tau > 0) {
		return fmt.Errorf("%w: got %g", ErrInvalidTau, tau)
	}
	current, err := DominantTimeConstant(s)
	if err != nil {
		return err
	}
	s.scale(current / tau)
	return nil
}
