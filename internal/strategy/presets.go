package strategy

import (
	"sort"
	"strings"
)

// Bound describes whether a profit or loss is capped.
type Bound string

const (
	Limited   Bound = "limited"
	Unlimited Bound = "unlimited"
)

// Preset is a named strategy template with strikes relative to spot.
type Preset struct {
	Type           string    `json:"type"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Legs           []LegSpec `json:"legs"`
	MaxProfit      Bound     `json:"max_profit"`
	MaxLoss        Bound     `json:"max_loss"`
	BreakEvenCount int       `json:"break_even_count"`
}

// Spec builds a strategy specification from the preset.
func (p Preset) Spec(dte int, iv float64) Spec {
	legs := make([]LegSpec, len(p.Legs))
	copy(legs, p.Legs)
	return Spec{Name: p.Name, DaysToExpiry: dte, IV: iv, Legs: legs}
}

func leg(typ, pos, rule string, qty float64) LegSpec {
	return LegSpec{Type: typ, Position: pos, StrikeRule: rule, Qty: qty}
}

var presets = map[string]Preset{
	"long_call": {
		Name:        "Long Call",
		Description: "Buy a call. Unlimited upside, loss limited to the premium paid.",
		Legs:        []LegSpec{leg("call", "long", "ATM", 1)},
		MaxProfit:   Unlimited, MaxLoss: Limited, BreakEvenCount: 1,
	},
	"short_call": {
		Name:        "Short Call",
		Description: "Sell a call. Profit limited to the premium received, unlimited loss.",
		Legs:        []LegSpec{leg("call", "short", "ATM", 1)},
		MaxProfit:   Limited, MaxLoss: Unlimited, BreakEvenCount: 1,
	},
	"long_put": {
		Name:        "Long Put",
		Description: "Buy a put. Large upside as price falls, loss limited to the premium paid.",
		Legs:        []LegSpec{leg("put", "long", "ATM", 1)},
		MaxProfit:   Limited, MaxLoss: Limited, BreakEvenCount: 1,
	},
	"short_put": {
		Name:        "Short Put",
		Description: "Sell a put. Profit limited to the premium received, large loss if price collapses.",
		Legs:        []LegSpec{leg("put", "short", "ATM", 1)},
		MaxProfit:   Limited, MaxLoss: Limited, BreakEvenCount: 1,
	},
	"bull_call_spread": {
		Name:        "Bull Call Spread",
		Description: "Buy a lower strike call and sell a higher strike call.",
		Legs: []LegSpec{
			leg("call", "long", "ATM", 1),
			leg("call", "short", "ATM:+10", 1),
		},
		MaxProfit: Limited, MaxLoss: Limited, BreakEvenCount: 1,
	},
	"bear_put_spread": {
		Name:        "Bear Put Spread",
		Description: "Buy a higher strike put and sell a lower strike put.",
		Legs: []LegSpec{
			leg("put", "long", "ATM", 1),
			leg("put", "short", "ATM:-10", 1),
		},
		MaxProfit: Limited, MaxLoss: Limited, BreakEvenCount: 1,
	},
	"long_straddle": {
		Name:        "Long Straddle",
		Description: "Buy a call and a put at the same strike. Profits from a large move either way.",
		Legs: []LegSpec{
			leg("call", "long", "ATM", 1),
			leg("put", "long", "ATM", 1),
		},
		MaxProfit: Unlimited, MaxLoss: Limited, BreakEvenCount: 2,
	},
	"short_straddle": {
		Name:        "Short Straddle",
		Description: "Sell a call and a put at the same strike. Profits if price stays put.",
		Legs: []LegSpec{
			leg("call", "short", "ATM", 1),
			leg("put", "short", "ATM", 1),
		},
		MaxProfit: Limited, MaxLoss: Unlimited, BreakEvenCount: 2,
	},
	"long_strangle": {
		Name:        "Long Strangle",
		Description: "Buy an upper strike call and a lower strike put.",
		Legs: []LegSpec{
			leg("call", "long", "ATM:+10", 1),
			leg("put", "long", "ATM:-10", 1),
		},
		MaxProfit: Unlimited, MaxLoss: Limited, BreakEvenCount: 2,
	},
	"short_strangle": {
		Name:        "Short Strangle",
		Description: "Sell an upper strike call and a lower strike put. Profits inside the range.",
		Legs: []LegSpec{
			leg("call", "short", "ATM:+10", 1),
			leg("put", "short", "ATM:-10", 1),
		},
		MaxProfit: Limited, MaxLoss: Unlimited, BreakEvenCount: 2,
	},
	"iron_condor": {
		Name:        "Iron Condor",
		Description: "Bull put spread plus bear call spread. Profits inside the central range.",
		Legs: []LegSpec{
			leg("put", "long", "ATM:-15", 1),
			leg("put", "short", "ATM:-5", 1),
			leg("call", "short", "ATM:+5", 1),
			leg("call", "long", "ATM:+15", 1),
		},
		MaxProfit: Limited, MaxLoss: Limited, BreakEvenCount: 2,
	},
	"butterfly": {
		Name:        "Butterfly Spread",
		Description: "Buy the wing calls and sell two calls at the centre strike.",
		Legs: []LegSpec{
			leg("call", "long", "ATM:-10", 1),
			leg("call", "short", "ATM", 2),
			leg("call", "long", "ATM:+10", 1),
		},
		MaxProfit: Limited, MaxLoss: Limited, BreakEvenCount: 2,
	},
}

// LookupPreset returns the preset registered under typ.
func LookupPreset(typ string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(typ))]
	if !ok {
		return Preset{}, false
	}
	p.Type = strings.ToLower(strings.TrimSpace(typ))
	return p, true
}

// Presets lists every preset ordered by type.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for typ, p := range presets {
		p.Type = typ
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
