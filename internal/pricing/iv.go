package pricing

import (
	"errors"
	"math"
)

// Typed errors let callers treat a failed solve as "volatility unknown"
// without string matching.
var (
	ErrExpired        = errors.New("option expired: no implied volatility")
	ErrInvalidPrice   = errors.New("observed price is not a finite non-negative number")
	ErrBelowIntrinsic = errors.New("observed price at or below intrinsic value")
	ErrNoSolution     = errors.New("observed price outside the solver volatility range")
	ErrNotConverged   = errors.New("implied volatility did not converge")
)

// SolverConfig bounds the implied-volatility search.
type SolverConfig struct {
	Lower          float64 // lowest volatility tried, must be > 0
	Upper          float64 // highest volatility tried
	PriceTolerance float64 // stop once |model - observed| falls below this
	VolTolerance   float64 // or once the bracket is narrower than this
	MaxIterations  int
}

// DefaultSolverConfig searches (0, 500%] to a 1e-8 price tolerance.
var DefaultSolverConfig = SolverConfig{
	Lower:          1e-6,
	Upper:          5.0,
	PriceTolerance: 1e-8,
	VolTolerance:   1e-10,
	MaxIterations:  100,
}

// ImpliedVolatility returns the volatility that reproduces the observed price
// under PriceOption, using DefaultSolverConfig.
//
// On failure the returned volatility is NaN and the error is one of
// ErrExpired, ErrInvalidPrice, ErrBelowIntrinsic or ErrNoSolution. When the
// iteration cap is hit the best estimate is returned with ErrNotConverged.
func ImpliedVolatility(side Side, price, S, K, T, r float64) (float64, error) {
	return DefaultSolverConfig.Solve(side, price, S, K, T, r)
}

// Solve runs a bisection search for sigma in [Lower, Upper].
//
// Price is monotonically increasing in sigma for T > 0, so the bracket holds
// exactly one root whenever the observed price lies between the prices at the
// two bounds.
func (c SolverConfig) Solve(side Side, price, S, K, T, r float64) (float64, error) {
	if T <= 0 {
		return math.NaN(), ErrExpired
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return math.NaN(), ErrInvalidPrice
	}

	intrinsic := PriceOption(side, OptionInputs{S: S, K: K}).IntrinsicValue
	if price <= intrinsic {
		return math.NaN(), ErrBelowIntrinsic
	}

	objective := func(sigma float64) float64 {
		return PriceOption(side, OptionInputs{S: S, K: K, T: T, R: r, Sigma: sigma}).Price - price
	}

	lo, hi := c.Lower, c.Upper
	fLo, fHi := objective(lo), objective(hi)

	switch {
	case math.Abs(fLo) < c.PriceTolerance:
		// the price already sits on the near-zero-vol floor, so it carries no
		// volatility information
		return math.NaN(), ErrNoSolution
	case math.Abs(fHi) < c.PriceTolerance:
		return hi, nil
	case fLo > 0 || fHi < 0:
		return math.NaN(), ErrNoSolution
	}

	best, bestErr := lo, math.Abs(fLo)
	if math.Abs(fHi) < bestErr {
		best, bestErr = hi, math.Abs(fHi)
	}

	for i := 0; i < c.MaxIterations; i++ {
		mid := lo + (hi-lo)/2
		fMid := objective(mid)

		if math.Abs(fMid) < bestErr {
			best, bestErr = mid, math.Abs(fMid)
		}
		if bestErr < c.PriceTolerance {
			return best, nil
		}

		if fMid < 0 {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo < c.VolTolerance {
			return best, nil
		}
	}

	return best, ErrNotConverged
}

// IsUnknown reports whether a solver result must be shown as "N/A".
func IsUnknown(sigma float64) bool {
	return math.IsNaN(sigma) || math.IsInf(sigma, 0)
}
