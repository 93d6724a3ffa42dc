// Package strategy models multi-leg option strategies and aggregates the
// pricing engine across legs.
//
// Responsibilities:
//   - Resolve a strategy definition (LegSpec) into concrete legs: strikes,
//     expirations, premiums and implied volatilities
//   - Sum per-leg prices and Greeks into portfolio figures
//   - Sweep spot prices to build a payoff curve and find break-even points
//
// Design notes:
//   - Every evaluation is a pure function of the strategy and a Scenario
//   - Legs are priced independently, so sweeps fan out across goroutines
//   - Errors are typed where useful and wrapped for caller inspection
package strategy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contactkeval/options-analyzer/internal/pricing"
)

//
// ==========================
// Error taxonomy
// ==========================
//

var (
	ErrInvalidStrikeExpression = errors.New("invalid strike expression")
	ErrLegIndexOutOfRange      = errors.New("leg index out of range")
	ErrUnknownLegType          = errors.New("unknown leg type")
	ErrUnknownPosition         = errors.New("unknown position")
	ErrMissingVolatility       = errors.New("leg has neither premium nor implied volatility")
	ErrUnknownVolatility       = errors.New("implied volatility unknown for leg premium")
	ErrNoLegs                  = errors.New("strategy has no legs")
)

//
// ==========================
// Domain Types
// ==========================
//

// LegType is the instrument of a leg.
type LegType string

const (
	LegCall  LegType = "call"
	LegPut   LegType = "put"
	LegStock LegType = "stock"
)

// ParseLegType normalises a leg type; an empty string means call.
func ParseLegType(v string) (LegType, error) {
	switch LegType(strings.ToLower(strings.TrimSpace(v))) {
	case "", LegCall:
		return LegCall, nil
	case LegPut:
		return LegPut, nil
	case LegStock:
		return LegStock, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLegType, v)
}

// Position is the direction of a leg.
type Position string

const (
	Long  Position = "long"
	Short Position = "short"
)

// ParsePosition accepts long/buy and short/sell; empty means long.
func ParsePosition(v string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPosition, v)
}

// Sign is +1 for long and -1 for short.
func (p Position) Sign() float64 {
	if p == Short {
		return -1
	}
	return 1
}

// LegSpec defines a single leg as provided by the user or a strategy JSON.
//
// This struct represents *intent*, not resolved market values.
type LegSpec struct {
	Type         string  `json:"type,omitempty"`        // call, put or stock (default: call)
	Position     string  `json:"position,omitempty"`    // long or short (default: long)
	Strike       float64 `json:"strike,omitempty"`      // absolute strike, wins over StrikeRule
	StrikeRule   string  `json:"strike_rule,omitempty"` // ATM, ATM:+10, DELTA:0.3, {LEG1.STRIKE}+5, etc.
	Qty          float64 `json:"qty,omitempty"`         // contracts, default 1
	DaysToExpiry int     `json:"dte,omitempty"`         // overrides the strategy default
	Premium      float64 `json:"premium,omitempty"`     // entry price per unit; derived from IV when zero
	IV           float64 `json:"iv,omitempty"`          // decimal; solved from Premium when zero
}

// Spec defines a multi-leg strategy.
//
// Shared defaults apply unless overridden at the leg level.
type Spec struct {
	Name         string    `json:"name,omitempty"`
	DaysToExpiry int       `json:"dte,omitempty"`         // default DTE
	IV           float64   `json:"iv,omitempty"`          // default implied volatility
	StrikeStep   float64   `json:"strike_step,omitempty"` // strike grid, default 1
	Legs         []LegSpec `json:"legs"`
}

// Leg is a fully resolved strategy leg.
type Leg struct {
	ID         string    `json:"id"`
	Type       LegType   `json:"type"`
	Position   Position  `json:"position"`
	Strike     float64   `json:"strike,omitempty"`
	Qty        float64   `json:"qty"`
	Expiration time.Time `json:"expiration,omitempty"`
	Premium    float64   `json:"premium"`
	IV         float64   `json:"iv,omitempty"`
}

// IsOption reports whether the leg is priced by the option engine.
func (l Leg) IsOption() bool {
	return l.Type == LegCall || l.Type == LegPut
}

func (l Leg) side() pricing.Side {
	if l.Type == LegPut {
		return pricing.Put
	}
	return pricing.Call
}

// Strategy is the in-memory session state of a strategy under analysis.
type Strategy struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Underlying      string  `json:"underlying,omitempty"`
	UnderlyingPrice float64 `json:"underlying_price"`
	Multiplier      float64 `json:"multiplier"`
	Legs            []Leg   `json:"legs"`
}

// New returns an empty strategy with a fresh ID.
func New(name, underlying string, spot, multiplier float64) *Strategy {
	return &Strategy{
		ID:              uuid.NewString(),
		Name:            name,
		Underlying:      underlying,
		UnderlyingPrice: spot,
		Multiplier:      multiplier,
	}
}

// contractSize falls back to 1 when no multiplier was set.
func (s *Strategy) contractSize() float64 {
	if s.Multiplier <= 0 {
		return 1
	}
	return s.Multiplier
}

// AddLeg appends a leg, assigning an ID when it has none, and returns the ID.
func (s *Strategy) AddLeg(leg Leg) string {
	if leg.ID == "" {
		leg.ID = uuid.NewString()
	}
	if leg.Qty == 0 {
		leg.Qty = 1
	}
	s.Legs = append(s.Legs, leg)
	return leg.ID
}

// RemoveLeg drops the leg with the given ID.
func (s *Strategy) RemoveLeg(id string) bool {
	for i, leg := range s.Legs {
		if leg.ID == id {
			s.Legs = append(s.Legs[:i], s.Legs[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateLeg applies fn to the leg with the given ID. The ID itself is preserved.
func (s *Strategy) UpdateLeg(id string, fn func(*Leg)) bool {
	for i := range s.Legs {
		if s.Legs[i].ID == id {
			fn(&s.Legs[i])
			s.Legs[i].ID = id
			return true
		}
	}
	return false
}
