// Package analyzer runs a configured strategy end to end: it resolves the
// legs, applies the what-if scenario and evaluates Greeks, P&L and the payoff
// curve.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/contactkeval/options-analyzer/internal/config"
	"github.com/contactkeval/options-analyzer/internal/data"
	"github.com/contactkeval/options-analyzer/internal/logger"
	"github.com/contactkeval/options-analyzer/internal/multiplier"
	"github.com/contactkeval/options-analyzer/internal/strategy"
)

// Analyzer evaluates one configured strategy.
type Analyzer struct {
	cfg  *config.Config
	reg  *multiplier.Registry
	bars data.BarSource
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithBarSource replaces the history source built from the config.
func WithBarSource(src data.BarSource) Option {
	return func(a *Analyzer) { a.bars = src }
}

// Result is the output of a run.
type Result struct {
	GeneratedAt   time.Time            `json:"generated_at"`
	Underlying    string               `json:"underlying,omitempty"`
	Spot          float64              `json:"spot"`
	Rate          float64              `json:"rate"`
	Multiplier    float64              `json:"multiplier"`
	HistoricalVol float64              `json:"historical_vol,omitempty"`
	Strategy      *strategy.Strategy   `json:"strategy"`
	Evaluation    *strategy.Evaluation `json:"evaluation"`
}

// NewAnalyzer applies the config's multiplier overrides to reg and returns an
// analyzer. A nil registry gets a fresh one. Historical bars come from the
// config's history file, then Massive when an API key is set.
func NewAnalyzer(cfg *config.Config, reg *multiplier.Registry, opts ...Option) (*Analyzer, error) {
	if reg == nil {
		reg = multiplier.NewRegistry()
	}
	if cfg.MultiplierOverrides != "" {
		if err := reg.ParseOverrides(cfg.MultiplierOverrides); err != nil {
			return nil, fmt.Errorf("multiplier overrides: %w", err)
		}
	}
	for sym, v := range cfg.Multipliers {
		if err := reg.Set(sym, v); err != nil {
			return nil, fmt.Errorf("multiplier overrides: %w", err)
		}
	}
	a := &Analyzer{cfg: cfg, reg: reg, bars: data.NewSource(cfg.HistoryFile, cfg.MassiveAPIKey)}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run plans the strategy as of now and evaluates it under the configured
// scenario.
func (a *Analyzer) Run(ctx context.Context, now time.Time) (*Result, error) {
	cfg := a.cfg
	logger.SetVerbosity(cfg.Verbosity)

	spec := cfg.StrategySpec()

	res := &Result{
		GeneratedAt: now,
		Underlying:  cfg.Underlying,
		Spot:        cfg.Spot,
		Rate:        cfg.Rate(),
		Multiplier:  cfg.Multiplier,
	}
	if res.Multiplier == 0 {
		res.Multiplier = a.reg.Lookup(cfg.Underlying)
	}

	if a.bars != nil {
		from := now.AddDate(0, 0, -cfg.HistoryDays)
		hv, err := data.HistoricalVolatility(ctx, a.bars, cfg.Underlying, from, now)
		if err != nil {
			return nil, fmt.Errorf("historical volatility: %w", err)
		}
		res.HistoricalVol = hv
		logger.Infof("event=historical_vol underlying=%s source=%s hv=%.2f%%", cfg.Underlying, a.bars.Name(), hv*100)
		if spec.IV == 0 {
			spec.IV = res.HistoricalVol
		}
	}

	st, err := strategy.PlanStrategy(spec, strategy.OpenParams{
		Underlying: cfg.Underlying,
		Spot:       cfg.Spot,
		Rate:       res.Rate,
		Multiplier: res.Multiplier,
		OpenDate:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("plan strategy: %w", err)
	}
	res.Strategy = st

	sc := strategy.Scenario{
		Spot:        cfg.Spot,
		DaysElapsed: cfg.Scenario.DaysElapsed,
		VolShift:    cfg.Scenario.VolShift,
		Rate:        res.Rate,
		Now:         now,
	}
	if cfg.Scenario.Spot > 0 {
		sc.Spot = cfg.Scenario.Spot
	}

	ev, err := st.Evaluate(ctx, sc, cfg.SweepPoints)
	if err != nil {
		return nil, fmt.Errorf("evaluate strategy: %w", err)
	}
	res.Evaluation = ev

	logger.Infof(
		"event=analysis_done strategy=%q legs=%d spot=%.2f pnl=%.2f delta=%.4f theta=%.4f",
		st.Name, len(st.Legs), sc.Spot, ev.PnL.TotalPnL, ev.Greeks.Delta, ev.Greeks.Theta,
	)
	return res, nil
}
