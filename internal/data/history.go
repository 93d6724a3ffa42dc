// Package data loads underlying price history from local files and derives
// the historical volatility used when a strategy gives no implied volatility.
package data

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"

	"github.com/contactkeval/options-analyzer/internal/logger"
)

// DefaultVolatility is returned when the history is too short to estimate one.
const DefaultVolatility = 0.30

const tradingDaysPerYear = 252

var ErrNoBars = errors.New("no bars in history file")

// Bar is a daily OHLC record.
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
	Vol   float64
}

// csvBar is the on-disk row layout: date,open,high,low,close,volume.
type csvBar struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

// LoadBarsCSV reads daily bars from a CSV file with a header row. Dates are
// YYYY-MM-DD. Bars are returned oldest first.
func LoadBarsCSV(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	defer f.Close()

	var rows []*csvBar
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBars, path)
	}

	bars := make([]Bar, 0, len(rows))
	for i, r := range rows {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(r.Date))
		if err != nil {
			return nil, fmt.Errorf("history %s row %d: %w", path, i+2, err)
		}
		if r.Close <= 0 {
			logger.Warnf("event=history_row_skipped file=%s row=%d close=%f", path, i+2, r.Close)
			continue
		}
		bars = append(bars, Bar{Date: d, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Vol: r.Volume})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBars, path)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	logger.Debugf("event=history_loaded file=%s bars=%d first=%s last=%s",
		path, len(bars), bars[0].Date.Format("2006-01-02"), bars[len(bars)-1].Date.Format("2006-01-02"))
	return bars, nil
}

// Closes extracts closing prices.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// AnnualizedVolatility is the sample standard deviation of daily log returns
// scaled by sqrt(252). Fewer than three closes yield DefaultVolatility.
func AnnualizedVolatility(closes []float64) float64 {
	if len(closes) < 3 {
		return DefaultVolatility
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		rets = append(rets, math.Log(closes[i]/closes[i-1]))
	}
	return stat.StdDev(rets, nil) * math.Sqrt(tradingDaysPerYear)
}
