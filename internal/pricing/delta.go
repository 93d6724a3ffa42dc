package pricing

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var ErrInvalidDelta = errors.New("invalid target delta")

// StrikeFromDelta returns the strike whose Black-Scholes delta equals the
// target, given spot, time to expiry, rate and volatility.
//
// Call deltas must lie in (0, 1) and put deltas in (-1, 0). The inversion uses
// the exact normal quantile, so re-pricing the strike reproduces the target
// delta to within the normCDF approximation error.
func StrikeFromDelta(side Side, S, delta, T, r, sigma float64) (float64, error) {
	if T <= 0 || sigma <= 0 {
		return 0, ErrInvalidDelta
	}

	p := delta
	if side == Put {
		p = 1 + delta
		if delta >= 0 {
			return 0, ErrInvalidDelta
		}
	}
	if p <= 0 || p >= 1 {
		return 0, ErrInvalidDelta
	}

	d1 := distuv.UnitNormal.Quantile(p)
	sqrtT := math.Sqrt(T)
	return S * math.Exp(-(d1*sigma*sqrtT - (r+0.5*sigma*sigma)*T)), nil
}
