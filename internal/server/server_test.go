package server

import (
	"bytes"
	"encoding/json"
	"go/format"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/contactkeval/options-analyzer/internal/config"
	"github.com/contactkeval/options-analyzer/internal/multiplier"
	"github.com/contactkeval/options-analyzer/internal/pricing"
	"github.com/contactkeval/options-analyzer/internal/testutil"
)

var fixedNow = time.Date(2025, time.January, 14, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	for _, k := range []string{config.EnvRiskFreeRate, config.EnvVerbosity, config.EnvReportDir, config.EnvMultipliers, config.EnvMassiveKey} {
		t.Setenv(k, "")
	}
	return New(multiplier.NewRegistry(), WithClock(func() time.Time { return fixedNow }))
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPrice(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/price",
		`{"side":"call","spot":100,"strike":100,"expiry":1,"rate":0.05,"volatility":0.2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res pricing.OptionResult
	decode(t, rec, &res)
	testutil.AssertClose(t, "price", res.Price, 10.4506, 1e-3)

	rec = do(t, s, http.MethodPost, "/price",
		`{"side":"put","spot":100,"strike":100,"dte":365,"rate":0.05,"volatility":0.2}`)
	decode(t, rec, &res)
	testutil.AssertClose(t, "put price", res.Price, 5.5735, 1e-3)

	for _, body := range []string{
		`{"side":"straddle","spot":100,"strike":100}`,
		`{"side":"call","spot":0,"strike":100}`,
		`{"side":"call","spot":100`,
	} {
		if rec := do(t, s, http.MethodPost, "/price", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestImpliedVol(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/iv",
		`{"side":"call","price":10.4506,"spot":100,"strike":100,"expiry":1,"rate":0.05}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ok struct {
		IV float64 `json:"iv"`
	}
	decode(t, rec, &ok)
	testutil.AssertClose(t, "iv", ok.IV, 0.20, 1e-4)

	tests := []struct {
		body   string
		reason string
	}{
		{`{"side":"call","price":5,"spot":100,"strike":100,"expiry":0,"rate":0.05}`, "expired"},
		{`{"side":"call","price":5,"spot":110,"strike":100,"expiry":1,"rate":0.05}`, "below_intrinsic"},
		{`{"side":"call","price":150,"spot":100,"strike":100,"expiry":1,"rate":0.05}`, "no_solution"},
		{`{"side":"put","price":-1,"spot":100,"strike":100,"expiry":1,"rate":0.05}`, "invalid_price"},
	}
	for _, test := range tests {
		rec := do(t, s, http.MethodPost, "/iv", test.body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", test.body, rec.Code)
		}
		var body map[string]any
		decode(t, rec, &body)
		if body["reason"] != test.reason || body["iv"] != nil {
			t.Fatalf("%s: unexpected body %v", test.body, body)
		}
	}
}

func TestPresets(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/presets", "")
	var presets []map[string]any
	decode(t, rec, &presets)
	if len(presets) != 12 || presets[0]["type"] != "bear_put_spread" {
		t.Fatalf("unexpected presets %v", presets)
	}
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/analyze",
		`{"underlying":"SPY","spot":100,"preset":"iron_condor","iv":0.25,"sweep_points":31,"scenario":{"days_elapsed":30}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Multiplier float64 `json:"multiplier"`
		Evaluation struct {
			PnL struct {
				MaxProfit  *float64  `json:"max_profit"`
				MaxLoss    *float64  `json:"max_loss"`
				BreakEvens []float64 `json:"break_evens"`
			} `json:"pnl"`
			Curve []json.RawMessage `json:"curve"`
		} `json:"evaluation"`
	}
	decode(t, rec, &res)
	if res.Multiplier != 100 || len(res.Evaluation.Curve) != 31 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Evaluation.PnL.MaxProfit == nil || res.Evaluation.PnL.MaxLoss == nil || len(res.Evaluation.PnL.BreakEvens) != 2 {
		t.Fatalf("unexpected pnl %+v", res.Evaluation.PnL)
	}

	if rec := do(t, s, http.MethodPost, "/analyze", `{"spot":100}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid config, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/analyze", `{"spot":100,"preset":"long_call"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing volatility, got %d", rec.Code)
	}
}

func TestMultipliers(t *testing.T) {
	s := newTestServer(t)

	var got struct {
		Symbol     string  `json:"symbol"`
		Multiplier float64 `json:"multiplier"`
	}
	decode(t, do(t, s, http.MethodGet, "/multipliers/dax", ""), &got)
	if got.Symbol != "DAX" || got.Multiplier != 5 {
		t.Fatalf("unexpected DAX multiplier %+v", got)
	}

	if rec := do(t, s, http.MethodPut, "/multipliers/dax", `{"value":25}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	decode(t, do(t, s, http.MethodGet, "/multipliers/DAX", ""), &got)
	if got.Multiplier != 25 {
		t.Fatalf("override not applied: %+v", got)
	}

	// the override flows into analysis
	rec := do(t, s, http.MethodPost, "/analyze", `{"underlying":"DAX","spot":18000,"preset":"long_call","iv":0.2}`)
	var res struct {
		Multiplier float64 `json:"multiplier"`
	}
	decode(t, rec, &res)
	if res.Multiplier != 25 {
		t.Fatalf("expected analysis to use override, got %f", res.Multiplier)
	}

	if rec := do(t, s, http.MethodPut, "/multipliers/dax", `{"value":-3}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative multiplier, got %d", rec.Code)
	}

	decode(t, do(t, s, http.MethodDelete, "/multipliers/dax", ""), &got)
	if got.Multiplier != 5 {
		t.Fatalf("expected built-in after reset, got %+v", got)
	}

	var list struct {
		Default     float64            `json:"default"`
		Multipliers map[string]float64 `json:"multipliers"`
	}
	decode(t, do(t, s, http.MethodGet, "/multipliers", ""), &list)
	if list.Default != 100 || list.Multipliers["ES"] != 50 {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestHandlerSourceIsGofmtClean(t *testing.T) {
	src, err := os.ReadFile("server.go")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out, err := format.Source(src)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !bytes.Equal(src, out) {
		t.Fatalf("server.go is not gofmt formatted")
	}
}
