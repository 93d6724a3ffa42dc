// Package server exposes the pricing engine, the implied-volatility solver and
// the strategy analyzer over HTTP.
package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contactkeval/options-analyzer/internal/analyzer"
	"github.com/contactkeval/options-analyzer/internal/config"
	"github.com/contactkeval/options-analyzer/internal/logger"
	"github.com/contactkeval/options-analyzer/internal/multiplier"
	"github.com/contactkeval/options-analyzer/internal/pricing"
	"github.com/contactkeval/options-analyzer/internal/strategy"
)

// Server holds the shared multiplier registry and the gin router.
type Server struct {
	reg    *multiplier.Registry
	now    func() time.Time
	router *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New builds the router. A nil registry gets a fresh one.
func New(reg *multiplier.Registry, opts ...Option) *Server {
	if reg == nil {
		reg = multiplier.NewRegistry()
	}
	s := &Server{reg: reg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
	r.GET("/presets", s.listPresets)

	m := r.Group("/multipliers")
	{
		m.GET("", s.listMultipliers)
		m.GET("/:symbol", s.getMultiplier)
		m.PUT("/:symbol", s.setMultiplier)
		m.DELETE("/:symbol", s.resetMultiplier)
	}

	r.POST("/price", s.price)
	r.POST("/iv", s.impliedVol)
	r.POST("/analyze", s.analyze)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("event=http_request method=%s path=%s status=%d took=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

//
// ==========================
// Pricing
// ==========================
//

type priceRequest struct {
	Side       string  `json:"side" binding:"required"`
	Spot       float64 `json:"spot" binding:"required,gt=0"`
	Strike     float64 `json:"strike" binding:"required,gt=0"`
	Expiry     float64 `json:"expiry"` // years; ignored when DTE is set
	DTE        float64 `json:"dte"`
	Rate       float64 `json:"rate"`
	Volatility float64 `json:"volatility"`
}

func (r priceRequest) years() float64 {
	if r.DTE != 0 {
		return r.DTE / 365
	}
	return r.Expiry
}

func (s *Server) price(c *gin.Context) {
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	side, err := pricing.ParseSide(req.Side)
	if err != nil {
		badRequest(c, err)
		return
	}

	res := pricing.PriceOption(side, pricing.OptionInputs{
		S: req.Spot, K: req.Strike, T: req.years(), R: req.Rate, Sigma: req.Volatility,
	})
	c.JSON(http.StatusOK, res)
}

type ivRequest struct {
	Side   string  `json:"side" binding:"required"`
	Price  float64 `json:"price"`
	Spot   float64 `json:"spot" binding:"required,gt=0"`
	Strike float64 `json:"strike" binding:"required,gt=0"`
	Expiry float64 `json:"expiry"`
	DTE    float64 `json:"dte"`
	Rate   float64 `json:"rate"`
}

// ivReason maps solver errors to stable machine-readable reasons.
func ivReason(err error) string {
	switch {
	case errors.Is(err, pricing.ErrExpired):
		return "expired"
	case errors.Is(err, pricing.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, pricing.ErrBelowIntrinsic):
		return "below_intrinsic"
	case errors.Is(err, pricing.ErrNoSolution):
		return "no_solution"
	case errors.Is(err, pricing.ErrNotConverged):
		return "not_converged"
	}
	return "unknown"
}

func (s *Server) impliedVol(c *gin.Context) {
	var req ivRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	side, err := pricing.ParseSide(req.Side)
	if err != nil {
		badRequest(c, err)
		return
	}

	T := req.Expiry
	if req.DTE != 0 {
		T = req.DTE / 365
	}

	iv, err := pricing.ImpliedVolatility(side, req.Price, req.Spot, req.Strike, T, req.Rate)
	if err != nil {
		body := gin.H{"error": err.Error(), "reason": ivReason(err), "iv": nil}
		if !pricing.IsUnknown(iv) {
			body["estimate"] = iv
		}
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"iv": iv})
}

//
// ==========================
// Strategies
// ==========================
//

func (s *Server) listPresets(c *gin.Context) {
	c.JSON(http.StatusOK, strategy.Presets())
}

func (s *Server) analyze(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		badRequest(c, err)
		return
	}
	// reports and history lookups are CLI concerns
	cfg.HistoryFile = ""
	cfg.MassiveAPIKey = ""
	cfg.Verbosity = int(logger.Verbosity())

	a, err := analyzer.NewAnalyzer(cfg, s.reg)
	if err != nil {
		badRequest(c, err)
		return
	}
	res, err := a.Run(c.Request.Context(), s.now())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, strategy.ErrUnknownVolatility) ||
			errors.Is(err, strategy.ErrMissingVolatility) ||
			errors.Is(err, strategy.ErrInvalidStrikeExpression) ||
			errors.Is(err, strategy.ErrLegIndexOutOfRange) ||
			errors.Is(err, strategy.ErrUnknownLegType) ||
			errors.Is(err, strategy.ErrUnknownPosition) {
			status = http.StatusUnprocessableEntity
		}
		logger.Errorf("event=analyze_failed err=%v", err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

//
// ==========================
// Multipliers
// ==========================
//

func (s *Server) listMultipliers(c *gin.Context) {
	out := make(map[string]float64)
	for _, sym := range s.reg.Symbols() {
		out[sym] = s.reg.Lookup(sym)
	}
	c.JSON(http.StatusOK, gin.H{"default": multiplier.Default, "multipliers": out, "custom": s.reg.Custom()})
}

func (s *Server) getMultiplier(c *gin.Context) {
	sym := strings.ToUpper(c.Param("symbol"))
	c.JSON(http.StatusOK, gin.H{"symbol": sym, "multiplier": s.reg.Lookup(sym)})
}

type multiplierRequest struct {
	Value float64 `json:"value" binding:"required"`
}

func (s *Server) setMultiplier(c *gin.Context) {
	var req multiplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sym := strings.ToUpper(c.Param("symbol"))
	if err := s.reg.Set(sym, req.Value); err != nil {
		badRequest(c, err)
		return
	}
	logger.Infof("event=multiplier_set symbol=%s value=%g", sym, req.Value)
	c.JSON(http.StatusOK, gin.H{"symbol": sym, "multiplier": req.Value})
}

func (s *Server) resetMultiplier(c *gin.Context) {
	sym := strings.ToUpper(c.Param("symbol"))
	s.reg.Reset(sym)
	c.JSON(http.StatusOK, gin.H{"symbol": sym, "multiplier": s.reg.Lookup(sym)})
}
