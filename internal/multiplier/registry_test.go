package multiplier

import (
	"errors"
	"sync"
	"testing"
)

func TestLookupBuiltin(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		symbol string
		want   float64
	}{
		{"AAPL", 100},
		{" spy ", 100},
		{"DAX", 5},
		{"fdax", 5},
		{"STOXX50", 10},
		{"ES", 50},
		{"NQ", 20},
		{"SI", 5000},
		{"NG", 10000},
		{"UNKNOWN", Default},
		{"", Default},
	}
	for _, test := range tests {
		if got := r.Lookup(test.symbol); got != test.want {
			t.Fatalf("Lookup(%q) = %f, want %f", test.symbol, got, test.want)
		}
	}
}

func TestCustomOverrides(t *testing.T) {
	r := NewRegistry()

	if err := r.Set("dax", 25); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := r.Set("XYZ", 10); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := r.Lookup("DAX"); got != 25 {
		t.Fatalf("override ignored: %f", got)
	}

	custom := r.Custom()
	if len(custom) != 2 || custom["DAX"] != 25 {
		t.Fatalf("unexpected custom map %v", custom)
	}
	custom["DAX"] = 1
	if r.Lookup("DAX") != 25 {
		t.Fatalf("Custom must return a copy")
	}

	r.Reset("dax")
	if got := r.Lookup("DAX"); got != 5 {
		t.Fatalf("expected built-in after reset, got %f", got)
	}
}

func TestSetRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	for _, v := range []float64{0, -5} {
		if err := r.Set("ES", v); !errors.Is(err, ErrInvalidMultiplier) {
			t.Fatalf("Set(ES, %f): expected ErrInvalidMultiplier, got %v", v, err)
		}
	}
	if err := r.Set("  ", 10); err == nil {
		t.Fatalf("expected error for empty symbol")
	}
	if r.Lookup("ES") != 50 {
		t.Fatalf("rejected value must not be stored")
	}
}

func TestParseOverrides(t *testing.T) {
	r := NewRegistry()
	if err := r.ParseOverrides("DAX=2, es=25 ,,ABC=0.5"); err != nil {
		t.Fatalf("ParseOverrides failed: %v", err)
	}
	if r.Lookup("DAX") != 2 || r.Lookup("ES") != 25 || r.Lookup("ABC") != 0.5 {
		t.Fatalf("unexpected overrides %v", r.Custom())
	}

	for _, bad := range []string{"DAX", "DAX=abc", "DAX=-1"} {
		if err := NewRegistry().ParseOverrides(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestSymbols(t *testing.T) {
	r := NewRegistry()
	_ = r.Set("ZZZ", 1)
	syms := r.Symbols()
	if syms[len(syms)-1] != "ZZZ" {
		t.Fatalf("expected custom symbol last, got %v", syms)
	}
	for i := 1; i < len(syms); i++ {
		if syms[i-1] >= syms[i] {
			t.Fatalf("symbols not sorted: %v", syms)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.Set("CUSTOM", float64(i+1))
		}(i)
		go func() {
			defer wg.Done()
			_ = r.Lookup("CUSTOM")
		}()
	}
	wg.Wait()
	if v := r.Lookup("CUSTOM"); v < 1 || v > 16 {
		t.Fatalf("unexpected value %f", v)
	}
}
