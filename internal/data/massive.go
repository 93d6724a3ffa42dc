package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/contactkeval/options-analyzer/internal/logger"
)

const (
	DefaultMassiveURL = "https://api.massive.com"
	massiveAggLimit   = 50000
)

// MassiveSource fetches daily aggregates from the Massive REST API.
type MassiveSource struct {
	APIKey  string
	BaseURL string
	Client  *http.Client

	// maxRetries bounds how often a 429 is waited out.
	maxRetries int
}

// NewMassiveSource returns a source against the public Massive endpoint.
func NewMassiveSource(apiKey string) *MassiveSource {
	logger.Debugf("event=massive_source_init")
	return &MassiveSource{
		APIKey:  apiKey,
		BaseURL: DefaultMassiveURL,
		Client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		maxRetries: 3,
	}
}

func (s *MassiveSource) Name() string { return "massive" }

type massiveAgg struct {
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	Timestamp int64   `json:"t"` // epoch millis
}

type massiveAggsResp struct {
	Ticker  string       `json:"ticker"`
	Status  string       `json:"status"`
	Results []massiveAgg `json:"results"`
}

// Bars returns adjusted daily bars between from and to, oldest first.
func (s *MassiveSource) Bars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s?adjusted=true&sort=asc&limit=%d",
		s.BaseURL, url.PathEscape(symbol), from.Format("2006-01-02"), to.Format("2006-01-02"), massiveAggLimit)

	logger.Debugf("event=massive_bars symbol=%s from=%s to=%s", symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))

	resp, err := s.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("massive bars %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	var body massiveAggsResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing massive response: %w", err)
	}
	logger.Tracef("event=massive_bars_received symbol=%s status=%s rows=%d", symbol, body.Status, len(body.Results))

	bars := make([]Bar, 0, len(body.Results))
	for _, r := range body.Results {
		if r.Close <= 0 {
			continue
		}
		bars = append(bars, Bar{
			Date:  time.UnixMilli(r.Timestamp).UTC(),
			Open:  r.Open,
			High:  r.High,
			Low:   r.Low,
			Close: r.Close,
			Vol:   r.Volume,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: massive %s", ErrNoBars, symbol)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// get issues the request, waiting out per-minute rate limits until the next
// minute boundary.
func (s *MassiveSource) get(ctx context.Context, endpoint string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		// header auth keeps the key out of URLs quoted in errors
		req.Header.Set("Authorization", "Bearer "+s.APIKey)

		resp, err := s.Client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < s.maxRetries {
			resp.Body.Close()
			wait := time.Until(time.Now().Truncate(time.Minute).Add(time.Minute))
			logger.Infof("event=massive_rate_limited wait=%s", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, msg)
	}
}
