package data

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/contactkeval/options-analyzer/internal/testutil"
)

var (
	fromDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	toDate   = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
)

func massiveServer(t *testing.T, status int, body string) *MassiveSource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/aggs/ticker/SPY/range/1/day/2025-01-01/2025-01-10" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test" {
			t.Errorf("missing api key header")
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return &MassiveSource{APIKey: "test", BaseURL: srv.URL, Client: srv.Client()}
}

func TestMassiveSourceBars(t *testing.T) {
	src := massiveServer(t, http.StatusOK, `{
		"ticker": "SPY",
		"status": "OK",
		"results": [
			{"t": 1735862400000, "o": 101, "h": 103, "l": 100, "c": 102, "v": 1000},
			{"t": 1735776000000, "o": 99, "h": 101, "l": 98, "c": 100, "v": 900},
			{"t": 1735948800000, "o": 102, "h": 102, "l": 102, "c": 0, "v": 0}
		]
	}`)

	bars, err := src.Bars(context.Background(), "SPY", fromDate, toDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars (zero close skipped), got %d", len(bars))
	}
	if bars[0].Close != 100 || bars[1].Close != 102 {
		t.Fatalf("bars not sorted oldest first: %+v", bars)
	}
	if got := bars[0].Date.Format("2006-01-02"); got != "2025-01-02" {
		t.Fatalf("unexpected first date %s", got)
	}
}

func TestMassiveSourceHTTPError(t *testing.T) {
	src := massiveServer(t, http.StatusInternalServerError, `{"message":"internal error"}`)
	if _, err := src.Bars(context.Background(), "SPY", fromDate, toDate); err == nil {
		t.Fatal("expected error, got nil")
	}

	empty := massiveServer(t, http.StatusOK, `{"status":"OK","results":[]}`)
	if _, err := empty.Bars(context.Background(), "SPY", fromDate, toDate); !errors.Is(err, ErrNoBars) {
		t.Fatalf("expected ErrNoBars, got %v", err)
	}
}

func TestFallbackSource(t *testing.T) {
	missing := CSVSource{Path: filepath.Join(t.TempDir(), "missing.csv")}
	remote := massiveServer(t, http.StatusOK,
		`{"results":[{"t":1735776000000,"o":1,"h":1,"l":1,"c":100,"v":1}]}`)

	bars, err := FallbackSource{Primary: missing, Secondary: remote}.Bars(context.Background(), "SPY", fromDate, toDate)
	if err != nil {
		t.Fatalf("expected the secondary to answer, got %v", err)
	}
	if len(bars) != 1 || bars[0].Close != 100 {
		t.Fatalf("unexpected bars %+v", bars)
	}

	local := CSVSource{Path: writeFile(t, "date,open,high,low,close,volume\n2025-01-02,1,1,1,50,1\n")}
	bars, err = FallbackSource{Primary: local, Secondary: remote}.Bars(context.Background(), "SPY", fromDate, toDate)
	if err != nil || len(bars) != 1 || bars[0].Close != 50 {
		t.Fatalf("expected the local file to win, got %+v err=%v", bars, err)
	}

	broken := massiveServer(t, http.StatusForbidden, `{"status":"NOT_AUTHORIZED"}`)
	if _, err := (FallbackSource{Primary: missing, Secondary: broken}).Bars(context.Background(), "SPY", fromDate, toDate); err == nil {
		t.Fatalf("expected an error when both sources fail")
	}
}

func TestNewSource(t *testing.T) {
	if src := NewSource("", ""); src != nil {
		t.Fatalf("expected no source, got %v", src)
	}
	if _, ok := NewSource("bars.csv", "").(CSVSource); !ok {
		t.Fatalf("expected a CSV source")
	}
	m, ok := NewSource("", "key").(*MassiveSource)
	if !ok || m.BaseURL != DefaultMassiveURL {
		t.Fatalf("expected a Massive source")
	}
	fb, ok := NewSource("bars.csv", "key").(FallbackSource)
	if !ok || fb.Name() != "csv+massive" {
		t.Fatalf("expected csv then massive, got %v", fb)
	}
}

func TestHistoricalVolatility(t *testing.T) {
	path := writeFile(t, `date,open,high,low,close,volume
2025-01-02,100,100,100,100,1
2025-01-03,101,101,101,101,1
2025-01-06,100,100,100,100,1
2025-01-07,102,102,102,102,1
`)
	hv, err := HistoricalVolatility(context.Background(), CSVSource{Path: path}, "SPY", fromDate, toDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := AnnualizedVolatility([]float64{100, 101, 100, 102})
	testutil.AssertClose(t, "hv", hv, want, 1e-12)
	if math.IsNaN(hv) || hv <= 0 {
		t.Fatalf("expected positive volatility, got %f", hv)
	}

	if _, err := HistoricalVolatility(context.Background(), CSVSource{Path: "nope.csv"}, "SPY", fromDate, toDate); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
