package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/contactkeval/options-analyzer/internal/pricing"
	"github.com/contactkeval/options-analyzer/internal/testutil"
)

var (
	underlying = "SPY"
	asOfPrice  = 581.39
	openDate   = time.Date(2025, time.January, 14, 0, 0, 0, 0, time.UTC)
	monthT     = 30.0 / 365
)

func TestResolveStrike(t *testing.T) {
	tests := []struct {
		expr     string
		side     pricing.Side
		expected float64
	}{
		{"ATM", pricing.Call, 581.0},
		{"atm", pricing.Put, 581.0},
		{"ATM:+10", pricing.Call, 591.0},
		{"ATM:-20", pricing.Call, 561.0},
		{"ATM:+10%", pricing.Call, 640.0},
		{"ATM:-20%", pricing.Call, 465.0},
		{"ABS:600", pricing.Call, 600.0},
		{"DELTA:0.3", pricing.Call, 602.0},
		{"DELTA:30", pricing.Call, 602.0},
		{"DELTA:0.5", pricing.Call, 584.0},
		{"DELTA:0.25", pricing.Put, 562.0},
		{"DELTA:-0.25", pricing.Put, 562.0},
		{"SPOT*1.05", pricing.Call, 610.0},
	}

	for _, test := range tests {
		actual, err := ResolveStrike(test.expr, test.side, asOfPrice, monthT, 0.03, 0.2, 1, nil)
		if err != nil {
			t.Fatalf("Failed to resolve strike %s: %v", test.expr, err)
		}
		if actual != test.expected {
			t.Fatalf("For strike expression {%s}, expected %f, got %f", test.expr, test.expected, actual)
		}
	}
}

func TestResolveStrikeStep(t *testing.T) {
	got, err := ResolveStrike("ATM:+10", pricing.Call, asOfPrice, monthT, 0.03, 0.2, 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 590 {
		t.Fatalf("expected 590 on a 5-point grid, got %f", got)
	}
}

func TestResolveATMOffset(t *testing.T) {
	tests := []struct {
		expr     string
		expected float64
	}{
		{"+10", 591.39},
		{"-20", 561.39},
		{"+10%", 639.53},
		{"-20%", 465.11},
	}

	for _, test := range tests {
		actual, err := resolveATMOffset(test.expr, asOfPrice)
		if err != nil {
			t.Fatalf("Failed to resolve ATM offset: %v", err)
		}
		if actual != test.expected {
			t.Fatalf("For offset {%s}, expected %f, got %f", test.expr, test.expected, actual)
		}
	}
}

func TestLegExpression(t *testing.T) {
	legs := []Leg{{Strike: 581, Premium: 4.2}, {Strike: 600, Premium: 1.5}}

	got, err := ResolveStrike("{LEG1.STRIKE}+{LEG1.PREMIUM}", pricing.Call, asOfPrice, monthT, 0.03, 0.2, 1, legs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 585 {
		t.Fatalf("expected 585, got %f", got)
	}

	got, err = ResolveStrike("({LEG1.STRIKE}+{LEG2.STRIKE})/2", pricing.Call, asOfPrice, monthT, 0.03, 0.2, 0.5, legs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 590.5 {
		t.Fatalf("expected 590.5, got %f", got)
	}
}

func TestResolveStrikeErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
		iv   float64
		want error
	}{
		{"UnknownRule", "OTM", 0.2, ErrInvalidStrikeExpression},
		{"BadOffset", "ATM:+ten", 0.2, ErrInvalidStrikeExpression},
		{"BadAbs", "ABS:-5", 0.2, ErrInvalidStrikeExpression},
		{"BadDelta", "DELTA:abc", 0.2, ErrInvalidStrikeExpression},
		{"DeltaWithoutVol", "DELTA:0.3", 0, ErrMissingVolatility},
		{"DeltaOutOfRange", "DELTA:1", 0.2, ErrInvalidStrikeExpression},
		{"MissingLeg", "{LEG3.STRIKE}+5", 0.2, ErrLegIndexOutOfRange},
		{"BrokenExpression", "{LEG1.STRIKE}+*", 0.2, ErrInvalidStrikeExpression},
		{"NegativeResult", "SPOT-1000", 0.2, ErrInvalidStrikeExpression},
	}

	legs := []Leg{{Strike: 581, Premium: 4.2}}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ResolveStrike(test.expr, pricing.Call, asOfPrice, monthT, 0.03, test.iv, 1, legs)
			if !errors.Is(err, test.want) {
				t.Fatalf("expected %v, got %v", test.want, err)
			}
		})
	}
}

func TestPlanStrategy(t *testing.T) {
	spec := Spec{
		Name:         "Bull Call Spread",
		DaysToExpiry: 30,
		IV:           0.25,
		Legs: []LegSpec{
			{Type: "call", Position: "long", StrikeRule: "ATM"},
			{Type: "call", Position: "short", StrikeRule: "{LEG1.STRIKE}+10"},
		},
	}
	open := OpenParams{Underlying: "TEST", Spot: 100, Rate: 0.03, Multiplier: 100, OpenDate: openDate}

	st, err := PlanStrategy(spec, open)
	if err != nil {
		t.Fatalf("PlanStrategy failed: %v", err)
	}
	if len(st.Legs) != 2 || st.ID == "" || st.Multiplier != 100 {
		t.Fatalf("unexpected strategy %+v", st)
	}

	long, short := st.Legs[0], st.Legs[1]
	if long.Strike != 100 || short.Strike != 110 || short.Position != Short {
		t.Fatalf("unexpected legs %+v %+v", long, short)
	}
	if long.ID == "" || long.ID == short.ID {
		t.Fatalf("legs need distinct IDs: %q %q", long.ID, short.ID)
	}
	if !long.Expiration.Equal(openDate.AddDate(0, 0, 30)) {
		t.Fatalf("unexpected expiration %s", long.Expiration)
	}
	testutil.AssertClose(t, "long premium", long.Premium, 2.980059, 1e-5)
	testutil.AssertClose(t, "short premium", short.Premium, 0.345025, 1e-5)
}

func TestPlanStrategySolvesIV(t *testing.T) {
	spec := Spec{DaysToExpiry: 30, Legs: []LegSpec{{Type: "call", Strike: 100, Premium: 3.0}}}
	open := OpenParams{Spot: 100, Rate: 0.03, OpenDate: openDate}

	st, err := PlanStrategy(spec, open)
	if err != nil {
		t.Fatalf("PlanStrategy failed: %v", err)
	}
	testutil.AssertClose(t, "solved iv", st.Legs[0].IV, 0.251748, 1e-5)
	if st.Name != "Custom Strategy" {
		t.Fatalf("expected default name, got %q", st.Name)
	}
}

func TestPlanStrategyErrors(t *testing.T) {
	open := OpenParams{Spot: 100, Rate: 0.03, OpenDate: openDate}
	tests := []struct {
		name string
		spec Spec
		want error
	}{
		{"NoLegs", Spec{}, ErrNoLegs},
		{"BadType", Spec{IV: 0.2, Legs: []LegSpec{{Type: "future"}}}, ErrUnknownLegType},
		{"BadPosition", Spec{IV: 0.2, Legs: []LegSpec{{Position: "flat"}}}, ErrUnknownPosition},
		{"NoVolatility", Spec{Legs: []LegSpec{{Type: "put", Strike: 100}}}, ErrMissingVolatility},
		{"PremiumBelowIntrinsic", Spec{Legs: []LegSpec{{Type: "put", Strike: 120, Premium: 5}}}, ErrUnknownVolatility},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := PlanStrategy(test.spec, open)
			if !errors.Is(err, test.want) {
				t.Fatalf("expected %v, got %v", test.want, err)
			}
		})
	}
}

func TestPlanStockLeg(t *testing.T) {
	spec := Spec{IV: 0.2, Legs: []LegSpec{
		{Type: "stock", Qty: 100},
		{Type: "call", Position: "short", StrikeRule: "ATM:+5", Qty: 1},
	}}
	st, err := PlanStrategy(spec, OpenParams{Spot: 50, Rate: 0.01, OpenDate: openDate})
	if err != nil {
		t.Fatalf("PlanStrategy failed: %v", err)
	}
	stock := st.Legs[0]
	if stock.Type != LegStock || stock.Premium != 50 || stock.Strike != 0 || !stock.Expiration.IsZero() {
		t.Fatalf("unexpected stock leg %+v", stock)
	}
	if st.Legs[1].Strike != 55 {
		t.Fatalf("expected covered call strike 55, got %f", st.Legs[1].Strike)
	}
}
