package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contactkeval/options-analyzer/internal/logger"
)

// BarSource supplies daily bars for an underlying.
type BarSource interface {
	Bars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)
	Name() string
}

// CSVSource serves bars from a local file. The file is taken as the chosen
// window, so from and to are ignored.
type CSVSource struct {
	Path string
}

func (s CSVSource) Name() string { return "csv" }

func (s CSVSource) Bars(_ context.Context, _ string, _, _ time.Time) ([]Bar, error) {
	return LoadBarsCSV(s.Path)
}

// FallbackSource asks Primary first and Secondary when Primary fails or
// returns nothing.
type FallbackSource struct {
	Primary   BarSource
	Secondary BarSource
}

func (s FallbackSource) Name() string {
	return s.Primary.Name() + "+" + s.Secondary.Name()
}

func (s FallbackSource) Bars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	bars, err := s.Primary.Bars(ctx, symbol, from, to)
	if err == nil && len(bars) > 0 {
		return bars, nil
	}
	if err == nil {
		err = ErrNoBars
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	logger.Warnf("event=bar_source_fallback primary=%s secondary=%s err=%v", s.Primary.Name(), s.Secondary.Name(), err)

	bars, err2 := s.Secondary.Bars(ctx, symbol, from, to)
	if err2 != nil {
		return nil, errors.Join(err, err2)
	}
	return bars, nil
}

// NewSource builds the history chain: the local file first, then Massive
// when an API key is set. It returns nil when neither is configured.
func NewSource(historyFile, apiKey string) BarSource {
	var local, remote BarSource
	if historyFile != "" {
		local = CSVSource{Path: historyFile}
	}
	if apiKey != "" {
		remote = NewMassiveSource(apiKey)
	}

	switch {
	case local != nil && remote != nil:
		return FallbackSource{Primary: local, Secondary: remote}
	case local != nil:
		return local
	case remote != nil:
		return remote
	}
	return nil
}

// HistoricalVolatility loads bars from src and annualizes their volatility.
func HistoricalVolatility(ctx context.Context, src BarSource, symbol string, from, to time.Time) (float64, error) {
	bars, err := src.Bars(ctx, symbol, from, to)
	if err != nil {
		return 0, fmt.Errorf("%s bars: %w", src.Name(), err)
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("%s bars: %w", src.Name(), ErrNoBars)
	}
	return AnnualizedVolatility(Closes(bars)), nil
}
