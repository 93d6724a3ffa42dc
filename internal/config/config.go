// Package config loads analyzer settings from a JSON file, an optional .env
// file and OPTIONS_* environment variables, in increasing precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/contactkeval/options-analyzer/internal/logger"
	"github.com/contactkeval/options-analyzer/internal/strategy"
)

const (
	DefaultRiskFreeRate = 0.03
	DefaultDaysToExpiry = 30
	DefaultReportDir    = "./out"
	DefaultHistoryDays  = 90
)

// Environment overrides.
const (
	EnvRiskFreeRate = "OPTIONS_RISK_FREE_RATE"
	EnvVerbosity    = "OPTIONS_VERBOSITY"
	EnvReportDir    = "OPTIONS_REPORT_DIR"
	EnvMultipliers  = "OPTIONS_MULTIPLIERS"
	EnvMassiveKey   = "MASSIVE_API_KEY"
)

var ErrInvalidConfig = errors.New("invalid config")

// ScenarioSpec is the what-if part of a config. Zero values mean "as opened".
type ScenarioSpec struct {
	Spot        float64 `json:"spot,omitempty"`         // overrides the opening spot
	DaysElapsed float64 `json:"days_elapsed,omitempty"` // calendar days after opening
	VolShift    float64 `json:"vol_shift,omitempty"`    // volatility points
}

// Config drives one analyzer run.
type Config struct {
	Underlying   string         `json:"underlying"`               // e.g. "SPY"
	Spot         float64        `json:"spot"`                     // underlying price at open
	RiskFreeRate *float64       `json:"risk_free_rate,omitempty"` // decimal, default 0.03
	Multiplier   float64        `json:"multiplier,omitempty"`     // 0 = look up by underlying
	Preset       string         `json:"preset,omitempty"`         // preset type, e.g. "iron_condor"
	DaysToExpiry int            `json:"dte,omitempty"`            // used with Preset
	IV           float64        `json:"iv,omitempty"`             // used with Preset
	Strategy     *strategy.Spec `json:"strategy,omitempty"`       // custom legs, wins over Preset
	Scenario     ScenarioSpec   `json:"scenario,omitempty"`       // what-if state
	SweepPoints  int            `json:"sweep_points,omitempty"`   // payoff curve resolution
	HistoryFile  string         `json:"history_file,omitempty"`   // CSV bars for historical vol
	HistoryDays  int            `json:"history_days,omitempty"`   // lookback for remote bars
	ReportDir    string         `json:"report_dir,omitempty"`     // report directory
	Verbosity    int            `json:"verbosity,omitempty"`      // 0=errors,1=info,2=debug,3=trace

	// Multipliers are per-symbol overrides; MultiplierOverrides holds the
	// "DAX=5,ES=50" form read from the environment.
	Multipliers         map[string]float64 `json:"multipliers,omitempty"`
	MultiplierOverrides string             `json:"-"`

	// MassiveAPIKey enables daily bars from Massive when no history file
	// is set or it cannot be read.
	MassiveAPIKey string `json:"-"`
}

// Rate returns the risk-free rate, applying the default.
func (c *Config) Rate() float64 {
	if c.RiskFreeRate == nil {
		return DefaultRiskFreeRate
	}
	return *c.RiskFreeRate
}

// LoadEnvFiles loads env files with godotenv. Missing files are skipped and
// variables already set in the environment win.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
		logger.Debugf("event=env_loaded file=%s", f)
	}
	return nil
}

// Load reads the JSON config at path after loading envFiles. With no
// envFiles, ".env" in the working directory is tried.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	logger.Infof("event=config_loaded path=%s underlying=%s", path, cfg.Underlying)
	return cfg, nil
}

// FromEnv returns a config holding only the environment overrides, for the
// REST mode where no config file is read. It is not validated.
func FromEnv() (*Config, error) {
	cfg := &Config{Verbosity: int(logger.Info)}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a JSON config, applies environment overrides and defaults,
// then validates.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvRiskFreeRate)); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvRiskFreeRate, v)
		}
		c.RiskFreeRate = &r
	}
	if v := strings.TrimSpace(os.Getenv(EnvVerbosity)); v != "" {
		lvl, err := logger.ParseLevel(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvVerbosity, err)
		}
		c.Verbosity = int(lvl)
	}
	if v := strings.TrimSpace(os.Getenv(EnvReportDir)); v != "" {
		c.ReportDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMultipliers)); v != "" {
		c.MultiplierOverrides = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMassiveKey)); v != "" {
		c.MassiveAPIKey = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.ReportDir == "" {
		c.ReportDir = DefaultReportDir
	}
	if c.Verbosity < int(logger.Error) || c.Verbosity > int(logger.Trace) {
		c.Verbosity = int(logger.Info)
	}
	if c.DaysToExpiry == 0 {
		c.DaysToExpiry = DefaultDaysToExpiry
	}
	if c.HistoryDays <= 0 {
		c.HistoryDays = DefaultHistoryDays
	}
	if c.SweepPoints < 2 {
		c.SweepPoints = strategy.DefaultSweepPoints
	}
}

// Validate checks the fields a run cannot proceed without.
func (c *Config) Validate() error {
	if !(c.Spot > 0) || math.IsInf(c.Spot, 0) {
		return fmt.Errorf("%w: spot must be positive, got %v", ErrInvalidConfig, c.Spot)
	}
	if r := c.Rate(); math.IsNaN(r) || math.IsInf(r, 0) {
		return fmt.Errorf("%w: risk_free_rate %v", ErrInvalidConfig, r)
	}
	if c.Multiplier < 0 {
		return fmt.Errorf("%w: multiplier %v", ErrInvalidConfig, c.Multiplier)
	}
	if c.DaysToExpiry < 0 {
		return fmt.Errorf("%w: dte %d", ErrInvalidConfig, c.DaysToExpiry)
	}
	if c.Scenario.Spot < 0 {
		return fmt.Errorf("%w: scenario spot %v", ErrInvalidConfig, c.Scenario.Spot)
	}

	switch {
	case c.Strategy != nil:
		if len(c.Strategy.Legs) == 0 {
			return fmt.Errorf("%w: strategy has no legs", ErrInvalidConfig)
		}
	case c.Preset != "":
		if _, ok := strategy.LookupPreset(c.Preset); !ok {
			return fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, c.Preset)
		}
	default:
		return fmt.Errorf("%w: either preset or strategy is required", ErrInvalidConfig)
	}
	return nil
}

// StrategySpec returns the strategy to plan: the custom spec when present,
// otherwise the preset expanded with the configured DTE and IV.
func (c *Config) StrategySpec() strategy.Spec {
	if c.Strategy != nil {
		spec := *c.Strategy
		if spec.DaysToExpiry == 0 {
			spec.DaysToExpiry = c.DaysToExpiry
		}
		if spec.IV == 0 {
			spec.IV = c.IV
		}
		return spec
	}
	p, _ := strategy.LookupPreset(c.Preset)
	return p.Spec(c.DaysToExpiry, c.IV)
}
