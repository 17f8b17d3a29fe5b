// Copyright 2026 The BDAMap Authors
// SPDX-License-Identifier: Apache-2.0

package bda

import (
	"fmt"
	"math"
)

const (
	// invSincTolerance is the residual at which the Newton iteration stops.
	invSincTolerance = 1e-12

	// invSincMaxIterations caps the Newton iteration. Convergence is
	// observed in low tens of iterations for any target in (0, 1]; the cap
	// only guards against malformed targets looping forever.
	invSincMaxIterations = 256
)

// Sinc is the unnormalised sinc function sin(x)/x, with Sinc(0) = 1.
func Sinc(x float64) float64 {
	if x == 0 {
		return 1.0
	}

	return math.Sin(x) / x
}

// InvSinc solves sinc(x) = target by Newton-Raphson starting at x = pi,
// using f'(x) = (cos(x) - sinc(x)) / x. When an iterate lands exactly on
// zero before converging, the iteration restarts from -pi: the derivative
// is singular there, and the restart keeps the same root selection for
// targets near 1.
func InvSinc(target float64) (float64, error) {
	x := math.Pi

	for i := 0; i < invSincMaxIterations; i++ {
		sincX := Sinc(x)

		eps := sincX - target
		if math.Abs(eps) < invSincTolerance {
			return x, nil
		}

		if x == 0 {
			x = -math.Pi

			continue
		}

		dsincX := (math.Cos(x) - sincX) / x
		x -= eps / dsincX
	}

	return 0, &MapperError{
		Type:    ErrorTypeNoConvergence,
		Message: fmt.Sprintf("inverse sinc did not converge for target %g", target),
	}
}
