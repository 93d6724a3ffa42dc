// Package multiplier maps underlying symbols to contract multipliers.
//
// Built-in values cover US equity and ETF options (100), European index
// options and the common CME futures. Users can override or add symbols at
// runtime; overrides live in memory only.
package multiplier

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Default applies to any symbol without an entry.
const Default = 100.0

var ErrInvalidMultiplier = errors.New("multiplier must be positive")

var builtin = map[string]float64{
	// US equities and ETFs
	"AAPL": 100, "MSFT": 100, "GOOGL": 100, "AMZN": 100, "TSLA": 100,
	"META": 100, "NVDA": 100, "AMD": 100, "NFLX": 100,
	"SPY": 100, "QQQ": 100, "IWM": 100, "DIA": 100, "VIX": 100,

	// European indices
	"DAX": 5, "FDAX": 5, "MDAX": 5,
	"STOXX50": 10, "CAC40": 10, "FTSE": 10,

	// Futures
	"ES": 50, "NQ": 20, "YM": 5, "RTY": 50,
	"GC": 100, "SI": 5000, "CL": 1000, "NG": 10000,
}

// Registry resolves multipliers, layering user overrides on the built-in table.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	custom map[string]float64
}

// NewRegistry returns a registry with no overrides.
func NewRegistry() *Registry {
	return &Registry{custom: make(map[string]float64)}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Lookup returns the multiplier for symbol: a custom value first, then the
// built-in table, then Default.
func (r *Registry) Lookup(symbol string) float64 {
	sym := normalize(symbol)

	r.mu.RLock()
	v, ok := r.custom[sym]
	r.mu.RUnlock()
	if ok {
		return v
	}
	if v, ok := builtin[sym]; ok {
		return v
	}
	return Default
}

// Set stores a custom multiplier.
func (r *Registry) Set(symbol string, value float64) error {
	sym := normalize(symbol)
	if sym == "" {
		return errors.New("empty symbol")
	}
	if !(value > 0) {
		return fmt.Errorf("%w: %s=%v", ErrInvalidMultiplier, sym, value)
	}

	r.mu.Lock()
	r.custom[sym] = value
	r.mu.Unlock()
	return nil
}

// Reset drops a custom override, falling back to the built-in value.
func (r *Registry) Reset(symbol string) {
	r.mu.Lock()
	delete(r.custom, normalize(symbol))
	r.mu.Unlock()
}

// Custom returns a copy of the user overrides.
func (r *Registry) Custom() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]float64, len(r.custom))
	for k, v := range r.custom {
		out[k] = v
	}
	return out
}

// Symbols lists every known symbol, built-in and custom, sorted.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(builtin)+len(r.custom))
	for k := range builtin {
		seen[k] = struct{}{}
	}
	for k := range r.custom {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParseOverrides reads a "DAX=5,ES=50" list into the registry.
func (r *Registry) ParseOverrides(list string) error {
	for _, pair := range strings.Split(list, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sym, val, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid multiplier override %q", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return fmt.Errorf("invalid multiplier override %q: %w", pair, err)
		}
		if err := r.Set(sym, f); err != nil {
			return err
		}
	}
	return nil
}
