package strategy

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Knetic/govaluate"

	"github.com/contactkeval/options-analyzer/internal/logger"
	"github.com/contactkeval/options-analyzer/internal/pricing"
)

const (
	defaultDaysToExpiry = 30
	defaultStrikeStep   = 1.0
)

var legRefPattern = regexp.MustCompile(`\{LEG(\d+)\.(STRIKE|PREMIUM)\}`)

// OpenParams describes the market at the time the strategy is opened.
type OpenParams struct {
	Underlying string
	Spot       float64
	Rate       float64
	Multiplier float64
	OpenDate   time.Time
}

//
// ==========================
// Strategy Planning
// ==========================
//

// PlanStrategy resolves a strategy specification into concrete legs.
//
// It determines expiration dates, resolves strikes, and fills in whichever of
// premium and implied volatility the spec left out, using the pricing engine
// in one direction and the implied-volatility solver in the other.
//
// Returns:
//   - *Strategy: Fully resolved strategy with legs in spec order
//   - error: Non-nil if any leg cannot be resolved
func PlanStrategy(spec Spec, open OpenParams) (*Strategy, error) {
	if len(spec.Legs) == 0 {
		return nil, ErrNoLegs
	}

	logger.Infof(
		"event=plan_strategy name=%q underlying=%s open_time=%s price=%.2f legs=%d",
		spec.Name,
		open.Underlying,
		open.OpenDate.Format(time.RFC3339),
		open.Spot,
		len(spec.Legs),
	)

	name := spec.Name
	if name == "" {
		name = "Custom Strategy"
	}
	st := New(name, open.Underlying, open.Spot, open.Multiplier)

	step := spec.StrikeStep
	if step <= 0 {
		step = defaultStrikeStep
	}

	for i, legSpec := range spec.Legs {
		logger.Debugf("event=resolve_leg index=%d spec=%+v", i+1, legSpec)

		leg, err := resolveLeg(legSpec, spec, open, step, st.Legs)
		if err != nil {
			logger.Errorf("event=leg_resolution_failed leg=%d err=%v", i+1, err)
			return nil, fmt.Errorf("leg %d: %w", i+1, err)
		}

		logger.Infof(
			"event=leg_resolved leg=%d position=%s type=%s strike=%.2f premium=%.4f iv=%.4f",
			i+1,
			leg.Position,
			leg.Type,
			leg.Strike,
			leg.Premium,
			leg.IV,
		)

		st.AddLeg(leg)
	}

	return st, nil
}

func resolveLeg(legSpec LegSpec, spec Spec, open OpenParams, step float64, prior []Leg) (Leg, error) {
	legType, err := ParseLegType(legSpec.Type)
	if err != nil {
		return Leg{}, err
	}
	position, err := ParsePosition(legSpec.Position)
	if err != nil {
		return Leg{}, err
	}

	qty := legSpec.Qty
	if qty == 0 {
		qty = 1
	}

	leg := Leg{Type: legType, Position: position, Qty: qty}

	if legType == LegStock {
		leg.Premium = legSpec.Premium
		if leg.Premium == 0 {
			leg.Premium = open.Spot
		}
		return leg, nil
	}

	dte := spec.DaysToExpiry
	if legSpec.DaysToExpiry != 0 {
		dte = legSpec.DaysToExpiry
	}
	if dte == 0 {
		dte = defaultDaysToExpiry
	}
	// UTC calendar days keep the expiry exactly dte*24h away across DST changes.
	leg.Expiration = open.OpenDate.UTC().AddDate(0, 0, dte)
	T := float64(dte) / 365

	iv := legSpec.IV
	if iv == 0 && legSpec.Premium == 0 {
		iv = spec.IV
	}

	strike := legSpec.Strike
	if strike <= 0 {
		strike, err = ResolveStrike(legSpec.StrikeRule, leg.side(), open.Spot, T, open.Rate, iv, step, prior)
		if err != nil {
			return Leg{}, err
		}
	}
	leg.Strike = strike
	logger.Tracef("event=strike_resolved strike=%.2f expiry=%s", strike, leg.Expiration.Format("2006-01-02"))

	switch {
	case legSpec.Premium > 0 && iv > 0:
		leg.Premium, leg.IV = legSpec.Premium, iv

	case legSpec.Premium > 0:
		solved, err := pricing.ImpliedVolatility(leg.side(), legSpec.Premium, open.Spot, strike, T, open.Rate)
		if err != nil {
			return Leg{}, fmt.Errorf("%w: premium=%.4f: %v", ErrUnknownVolatility, legSpec.Premium, err)
		}
		logger.Tracef("event=iv_estimated iv=%.4f dte=%d", solved, dte)
		leg.Premium, leg.IV = legSpec.Premium, solved

	case iv > 0:
		leg.IV = iv
		leg.Premium = pricing.PriceOption(leg.side(), pricing.OptionInputs{
			S: open.Spot, K: strike, T: T, R: open.Rate, Sigma: iv,
		}).Price

	default:
		return Leg{}, ErrMissingVolatility
	}

	return leg, nil
}

//
// ==========================
// Strike Resolution
// ==========================
//

// ResolveStrike converts a strike expression into a concrete strike price.
//
// Supported formats:
//   - ATM
//   - ATM:+10, ATM:-5%
//   - ABS:600
//   - DELTA:0.3 (DELTA:30 also accepted; puts use the negative delta)
//   - SPOT*1.05, {LEG1.STRIKE}+{LEG1.PREMIUM}
//
// Results are rounded to the nearest multiple of step.
func ResolveStrike(
	strikeExpr string,
	side pricing.Side,
	spot float64,
	T float64,
	rate float64,
	iv float64,
	step float64,
	legs []Leg,
) (float64, error) {

	strikeExpr = strings.TrimSpace(strings.ToUpper(strikeExpr))
	logger.Debugf("event=resolve_strike expr=%s", strikeExpr)

	switch {
	case strikeExpr == "" || strikeExpr == "ATM":
		return roundToStrike(spot, step), nil

	case strings.HasPrefix(strikeExpr, "ATM:"):
		target, err := resolveATMOffset(strikeExpr[len("ATM:"):], spot)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidStrikeExpression, strikeExpr, err)
		}
		return roundToStrike(target, step), nil

	case strings.HasPrefix(strikeExpr, "ABS:"):
		abs, err := strconv.ParseFloat(strings.TrimPrefix(strikeExpr, "ABS:"), 64)
		if err != nil || abs <= 0 {
			return 0, fmt.Errorf("%w: %s", ErrInvalidStrikeExpression, strikeExpr)
		}
		return abs, nil

	case strings.HasPrefix(strikeExpr, "DELTA:"):
		deltaStr := strings.TrimPrefix(strikeExpr, "DELTA:")
		target, err := strconv.ParseFloat(deltaStr, 64)
		if err != nil {
			logger.Errorf("parse float failed for DELTA expression:%s, %v", deltaStr, err)
			return 0, fmt.Errorf("%w: invalid DELTA value: %v", ErrInvalidStrikeExpression, err)
		}
		strike, err := resolveDeltaStrike(side, spot, target, T, rate, iv)
		if err != nil {
			logger.Errorf("resolve strike failed for DELTA expression:%s, %v", deltaStr, err)
			return 0, err
		}
		return roundToStrike(strike, step), nil

	case strings.Contains(strikeExpr, "{LEG") || strings.Contains(strikeExpr, "SPOT"):
		target, err := evaluateLegExpression(strikeExpr, spot, legs)
		if err != nil {
			return 0, err
		}
		return roundToStrike(target, step), nil
	}

	return 0, fmt.Errorf("%w: %s", ErrInvalidStrikeExpression, strikeExpr)
}

//
// ==========================
// Helpers
// ==========================
//

// resolveDeltaStrike computes the strike corresponding to a target delta.
//
// Deltas above 1 are read as percentages (30 → 0.30). The sign is taken from
// the side, so DELTA:0.25 on a put targets a -0.25 delta.
func resolveDeltaStrike(side pricing.Side, spot, target, T, rate, iv float64) (float64, error) {
	target = math.Abs(target)
	if target > 1 {
		target /= 100
	}
	if side == pricing.Put {
		target = -target
	}
	if iv <= 0 {
		return 0, fmt.Errorf("%w: delta strike needs an implied volatility", ErrMissingVolatility)
	}

	strike, err := pricing.StrikeFromDelta(side, spot, target, T, rate, iv)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidStrikeExpression, err)
	}
	return strike, nil
}

// resolveATMOffset applies an absolute or percentage offset to a price.
//
// Parameters:
//   - offset: Offset string (+10, -5%, etc.)
//   - asOfPrice: Spot price
//
// Returns:
//   - float64: Adjusted price rounded to cents
//   - error: If offset cannot be parsed
func resolveATMOffset(offset string, asOfPrice float64) (float64, error) {

	if strings.HasSuffix(offset, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(offset, "%"), 64)
		if err != nil {
			return 0, err
		}
		return math.Round((asOfPrice+asOfPrice*pct/100)*100) / 100, nil
	}

	abs, err := strconv.ParseFloat(offset, 64)
	if err != nil {
		return 0, err
	}

	return math.Round((asOfPrice+abs)*100) / 100, nil
}

// evaluateLegExpression evaluates arithmetic over SPOT and prior legs.
//
// Parameters:
//   - expr: Expression string, upper-cased
//   - spot: Spot price bound to SPOT
//   - legs: Previously resolved legs
//
// Returns:
//   - float64: Evaluated numeric result
//   - error: If expression is invalid or cannot be evaluated
func evaluateLegExpression(expr string, spot float64, legs []Leg) (float64, error) {

	evalStr := expr

	for _, match := range legRefPattern.FindAllStringSubmatch(expr, -1) {
		idx, _ := strconv.Atoi(match[1])
		idx-- // LEG1 → index 0

		if idx < 0 || idx >= len(legs) {
			return 0, fmt.Errorf("%w: %s", ErrLegIndexOutOfRange, match[0])
		}

		var value float64
		if match[2] == "STRIKE" {
			value = legs[idx].Strike
		} else {
			value = legs[idx].Premium
		}

		evalStr = strings.Replace(evalStr, match[0], strconv.FormatFloat(value, 'f', -1, 64), 1)
	}

	evalExpr, err := govaluate.NewEvaluableExpression(evalStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidStrikeExpression, expr, err)
	}

	result, err := evalExpr.Evaluate(map[string]interface{}{"SPOT": spot})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidStrikeExpression, expr, err)
	}

	f, ok := result.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, fmt.Errorf("%w: %s evaluated to %v", ErrInvalidStrikeExpression, expr, result)
	}

	return f, nil
}

func roundToStrike(v, step float64) float64 {
	if step <= 0 {
		step = defaultStrikeStep
	}
	return math.Round(v/step) * step
}
