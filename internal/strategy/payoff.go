package strategy

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/contactkeval/options-analyzer/internal/logger"
)

const (
	DefaultSweepPoints = 101
	defaultSweepRange  = 50.0
)

// CurvePoint is one spot on the payoff curve.
type CurvePoint struct {
	Spot  float64   `json:"spot"`
	Legs  []float64 `json:"legs"`
	Total float64   `json:"total"`
}

// Evaluation bundles everything computed for a strategy under one scenario.
type Evaluation struct {
	Scenario Scenario     `json:"scenario"`
	Greeks   Greeks       `json:"greeks"`
	PnL      PnL          `json:"pnl"`
	Curve    []CurvePoint `json:"curve"`
}

// Evaluate computes Greeks, PnL and the payoff curve. Break-evens are read off
// the curve. Max profit and max loss also consider spot zero when a put or
// stock leg keeps paying below the swept range, so they are not limited to the
// plotted interval.
func (s *Strategy) Evaluate(ctx context.Context, sc Scenario, points int) (*Evaluation, error) {
	if len(s.Legs) == 0 {
		return nil, ErrNoLegs
	}

	curve, err := s.Sweep(ctx, sc, points)
	if err != nil {
		return nil, err
	}

	pnl := s.PnLAt(sc)
	pnl.BreakEvens = BreakEvens(curve)
	pnl.MaxProfit, pnl.MaxLoss = s.extremes(sc, curve)

	logger.Debugf(
		"event=strategy_evaluated id=%s spot=%.2f pnl=%.2f break_evens=%v",
		s.ID, sc.Spot, pnl.TotalPnL, pnl.BreakEvens,
	)

	return &Evaluation{
		Scenario: sc,
		Greeks:   s.GreeksAt(sc),
		PnL:      pnl,
		Curve:    curve,
	}, nil
}

// SweepRange returns the spot interval covered by the payoff curve: the strike
// span padded by its own width on both sides, or by 50 when all strikes
// coincide. The lower bound never goes below zero.
func (s *Strategy) SweepRange() (lo, hi float64) {
	minK, maxK := math.Inf(1), math.Inf(-1)
	for _, leg := range s.Legs {
		if !leg.IsOption() {
			continue
		}
		minK = math.Min(minK, leg.Strike)
		maxK = math.Max(maxK, leg.Strike)
	}
	if math.IsInf(minK, 1) {
		minK, maxK = s.UnderlyingPrice, s.UnderlyingPrice
	}

	width := maxK - minK
	if width == 0 {
		width = defaultSweepRange
	}
	return math.Max(0, minK-width), maxK + width
}

// Sweep revalues the strategy on an evenly spaced spot grid. Points are split
// into chunks priced concurrently; the result is ordered by spot.
func (s *Strategy) Sweep(ctx context.Context, sc Scenario, points int) ([]CurvePoint, error) {
	if points < 2 {
		points = DefaultSweepPoints
	}

	lo, hi := s.SweepRange()
	spots := floats.Span(make([]float64, points), lo, hi)
	curve := make([]CurvePoint, points)

	workers := runtime.GOMAXPROCS(0)
	chunk := (points + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < points; start += chunk {
		start, end := start, min(start+chunk, points)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				legs := make([]float64, len(s.Legs))
				total := s.pnlAt(sc, spots[i], legs)
				curve[i] = CurvePoint{Spot: spots[i], Legs: legs, Total: total}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Tracef("event=sweep_done points=%d lo=%.2f hi=%.2f", points, lo, hi)
	return curve, nil
}

// BreakEvens finds the spots where the curve total crosses zero, using linear
// interpolation between neighbours. A run of exact zeros is reported once, at
// its first point.
func BreakEvens(curve []CurvePoint) []float64 {
	out := []float64{}
	for i, p := range curve {
		if p.Total == 0 {
			if i == 0 || curve[i-1].Total != 0 {
				out = append(out, p.Spot)
			}
			continue
		}
		if i == 0 {
			continue
		}
		prev := curve[i-1]
		if prev.Total == 0 || (prev.Total < 0) == (p.Total < 0) {
			continue
		}
		ratio := math.Abs(prev.Total) / (math.Abs(prev.Total) + math.Abs(p.Total))
		out = append(out, prev.Spot+(p.Spot-prev.Spot)*ratio)
	}
	return out
}

// extremes reads max profit and max loss from the curve, plus the value at
// spot zero when the curve starts above it and a leg has downside exposure.
// Either is nil when net upside exposure makes it unbounded.
func (s *Strategy) extremes(sc Scenario, curve []CurvePoint) (maxProfit, maxLoss *float64) {
	if len(curve) == 0 {
		return nil, nil
	}

	totals := make([]float64, len(curve), len(curve)+1)
	for i, p := range curve {
		totals[i] = p.Total
	}
	if curve[0].Spot > 0 && s.hasDownsideLegs() {
		totals = append(totals, s.pnlAt(sc, 0, nil))
	}
	hi, lo := floats.Max(totals), floats.Min(totals)

	exposure := s.upsideExposure()
	if exposure <= 1e-9 {
		maxProfit = &hi
	}
	if exposure >= -1e-9 {
		maxLoss = &lo
	}
	return maxProfit, maxLoss
}

func (s *Strategy) hasDownsideLegs() bool {
	for _, leg := range s.Legs {
		if leg.Type != LegCall {
			return true
		}
	}
	return false
}
