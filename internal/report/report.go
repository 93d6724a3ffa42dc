// Package report writes analyzer results to disk: the full result as JSON and
// the payoff curve and legs as CSV.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/contactkeval/options-analyzer/internal/analyzer"
	"github.com/contactkeval/options-analyzer/internal/strategy"
)

const (
	EvaluationFile = "evaluation.json"
	PayoffFile     = "payoff.csv"
	LegsFile       = "legs.csv"
)

// PayoffRow is one payoff curve point. Money columns are rounded to cents.
type PayoffRow struct {
	Spot string `csv:"spot"`
	PnL  string `csv:"pnl"`
	Legs string `csv:"legs"` // per-leg P&L in leg order, ';' separated
}

// LegRow describes a resolved leg.
type LegRow struct {
	ID         string `csv:"id"`
	Type       string `csv:"type"`
	Position   string `csv:"position"`
	Strike     string `csv:"strike"`
	Qty        string `csv:"qty"`
	Expiration string `csv:"expiration"`
	Premium    string `csv:"premium"`
	IV         string `csv:"iv"`
}

func cents(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// WriteJSON writes the full result to outdir/evaluation.json.
func WriteJSON(res *analyzer.Result, outdir string) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, EvaluationFile), b, 0644)
}

// PayoffRows converts a curve to CSV rows.
func PayoffRows(curve []strategy.CurvePoint) []*PayoffRow {
	rows := make([]*PayoffRow, 0, len(curve))
	for _, p := range curve {
		legs := make([]string, len(p.Legs))
		for i, v := range p.Legs {
			legs[i] = cents(v)
		}
		rows = append(rows, &PayoffRow{
			Spot: cents(p.Spot),
			PnL:  cents(p.Total),
			Legs: strings.Join(legs, ";"),
		})
	}
	return rows
}

// WriteCSV writes the payoff curve to outdir/payoff.csv.
func WriteCSV(curve []strategy.CurvePoint, outdir string) error {
	f, err := os.Create(filepath.Join(outdir, PayoffFile))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gocsv.MarshalFile(PayoffRows(curve), f); err != nil {
		return fmt.Errorf("write %s: %w", PayoffFile, err)
	}
	return nil
}

// WriteLegsCSV writes the resolved legs to outdir/legs.csv.
func WriteLegsCSV(legs []strategy.Leg, outdir string) error {
	rows := make([]*LegRow, 0, len(legs))
	for _, l := range legs {
		row := &LegRow{
			ID:       l.ID,
			Type:     string(l.Type),
			Position: string(l.Position),
			Strike:   cents(l.Strike),
			Qty:      decimal.NewFromFloat(l.Qty).String(),
			Premium:  decimal.NewFromFloat(l.Premium).StringFixed(4),
			IV:       decimal.NewFromFloat(l.IV).StringFixed(4),
		}
		if !l.Expiration.IsZero() {
			row.Expiration = l.Expiration.Format("2006-01-02")
		}
		rows = append(rows, row)
	}

	f, err := os.Create(filepath.Join(outdir, LegsFile))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gocsv.MarshalFile(rows, f); err != nil {
		return fmt.Errorf("write %s: %w", LegsFile, err)
	}
	return nil
}

// WriteAll creates outdir and writes every report for res.
func WriteAll(res *analyzer.Result, outdir string) error {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return fmt.Errorf("create report dir %s: %w", outdir, err)
	}
	if err := WriteJSON(res, outdir); err != nil {
		return err
	}
	if res.Evaluation != nil {
		if err := WriteCSV(res.Evaluation.Curve, outdir); err != nil {
			return err
		}
	}
	if res.Strategy != nil {
		if err := WriteLegsCSV(res.Strategy.Legs, outdir); err != nil {
			return err
		}
	}
	return nil
}
