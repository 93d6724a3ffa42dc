package strategy

import (
	"math"
	"time"

	"github.com/contactkeval/options-analyzer/internal/pricing"
)

// minScenarioVol is the floor applied after a volatility shift.
const minScenarioVol = 0.01

// Scenario is a what-if market state used to revalue a strategy.
type Scenario struct {
	Spot        float64   `json:"spot"`
	DaysElapsed float64   `json:"days_elapsed"` // calendar days after Now
	VolShift    float64   `json:"vol_shift"`    // volatility points, +5 means +0.05
	Rate        float64   `json:"rate"`
	Now         time.Time `json:"now"`
}

// timeToExpiry is the remaining life of a leg in years, floored at zero.
func (sc Scenario) timeToExpiry(exp time.Time) float64 {
	days := exp.Sub(sc.Now).Hours()/24 - sc.DaysElapsed
	return math.Max(0, days) / 365
}

func (sc Scenario) vol(iv float64) float64 {
	return math.Max(minScenarioVol, iv+sc.VolShift/100)
}

// Greeks are portfolio sensitivities, already scaled by quantity,
// direction and contract multiplier.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// LegValue is a single leg revalued under a scenario.
type LegValue struct {
	LegID      string               `json:"leg_id"`
	Value      float64              `json:"value"` // per unit, unsigned
	PnL        float64              `json:"pnl"`
	PnLPercent float64              `json:"pnl_percent"`
	Result     pricing.OptionResult `json:"result"`
}

// PnL summarises profit and loss of a strategy under a scenario.
//
// MaxProfit and MaxLoss are nil when the exposure is unbounded.
type PnL struct {
	TotalCost       float64    `json:"total_cost"`
	TotalValue      float64    `json:"total_value"`
	TotalPnL        float64    `json:"total_pnl"`
	TotalPnLPercent float64    `json:"total_pnl_percent"`
	MaxProfit       *float64   `json:"max_profit"`
	MaxLoss         *float64   `json:"max_loss"`
	BreakEvens      []float64  `json:"break_evens"`
	Legs            []LegValue `json:"legs"`
}

// valueLeg prices one leg at the given spot. Stock legs are worth spot with a
// delta of one.
func valueLeg(leg Leg, sc Scenario, spot float64) pricing.OptionResult {
	if !leg.IsOption() {
		return pricing.OptionResult{Price: spot, IntrinsicValue: spot, Delta: 1}
	}
	return pricing.PriceOption(leg.side(), pricing.OptionInputs{
		S:     spot,
		K:     leg.Strike,
		T:     sc.timeToExpiry(leg.Expiration),
		R:     sc.Rate,
		Sigma: sc.vol(leg.IV),
	})
}

func (s *Strategy) legScale(leg Leg) float64 {
	return leg.Position.Sign() * leg.Qty * s.contractSize()
}

// GreeksAt sums the leg Greeks under the scenario.
func (s *Strategy) GreeksAt(sc Scenario) Greeks {
	var g Greeks
	for _, leg := range s.Legs {
		res := valueLeg(leg, sc, sc.Spot)
		scale := s.legScale(leg)
		g.Delta += res.Delta * scale
		g.Gamma += res.Gamma * scale
		g.Theta += res.Theta * scale
		g.Vega += res.Vega * scale
		g.Rho += res.Rho * scale
	}
	return g
}

// pnlAt is the strategy PnL at a single spot, used by the payoff sweep.
func (s *Strategy) pnlAt(sc Scenario, spot float64, perLeg []float64) float64 {
	total := 0.0
	for i, leg := range s.Legs {
		value := valueLeg(leg, sc, spot).Price
		p := (value - leg.Premium) * s.legScale(leg)
		if perLeg != nil {
			perLeg[i] = p
		}
		total += p
	}
	return total
}

// PnLAt revalues every leg at sc.Spot. It does not fill the curve-derived
// fields (MaxProfit, MaxLoss, BreakEvens); Evaluate does.
func (s *Strategy) PnLAt(sc Scenario) PnL {
	out := PnL{Legs: make([]LegValue, 0, len(s.Legs))}

	for _, leg := range s.Legs {
		res := valueLeg(leg, sc, sc.Spot)
		scale := s.legScale(leg)
		cost := leg.Premium * scale
		pnl := (res.Price - leg.Premium) * scale

		lv := LegValue{LegID: leg.ID, Value: res.Price, PnL: pnl, Result: res}
		if leg.Premium > 0 {
			lv.PnLPercent = pnl / math.Abs(cost) * 100
		}
		out.Legs = append(out.Legs, lv)

		out.TotalCost += cost
		out.TotalValue += res.Price * scale
		out.TotalPnL += pnl
	}

	if out.TotalCost != 0 {
		out.TotalPnLPercent = out.TotalPnL / math.Abs(out.TotalCost) * 100
	}
	return out
}

// upsideExposure is the net count of long call and stock units. A non-zero
// value means the payoff keeps growing, or falling, as spot rises.
func (s *Strategy) upsideExposure() float64 {
	exposure := 0.0
	for _, leg := range s.Legs {
		if leg.Type == LegPut {
			continue
		}
		exposure += leg.Position.Sign() * leg.Qty
	}
	return exposure
}
