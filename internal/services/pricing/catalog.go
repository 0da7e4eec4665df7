package pricing

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"stakeoption/internal/models"
)

//go:embed instruments.yaml
var defaultCatalog []byte

// ModelParams carries the optional per-model knobs. Zero values take the model defaults.
type ModelParams struct {
	Reversion           float64 `yaml:"reversion"`
	Drift               float64 `yaml:"drift"`
	EventProbability    float64 `yaml:"event_probability"`
	EventMinMove        float64 `yaml:"event_min_move"`
	EventMaxMove        float64 `yaml:"event_max_move"`
	StepSize            float64 `yaml:"step_size"`
	BandWidth           float64 `yaml:"band_width"`
	BreakoutProbability float64 `yaml:"breakout_probability"`
	BreakoutMinTicks    int     `yaml:"breakout_min_ticks"`
	BreakoutMaxTicks    int     `yaml:"breakout_max_ticks"`
	BreakoutDrift       float64 `yaml:"breakout_drift"`
}

// InstrumentConfig describes one synthetic instrument in the catalog file.
// Money fields are strings so they never pass through binary floating point.
type InstrumentConfig struct {
	Symbol     string      `yaml:"symbol"`
	Name       string      `yaml:"name"`
	Category   string      `yaml:"category"`
	Model      ModelKind   `yaml:"model"`
	BasePrice  float64     `yaml:"base_price"`
	Volatility float64     `yaml:"volatility"`
	Decimals   int32       `yaml:"decimals"`
	PayoutRate string      `yaml:"payout_rate"`
	MinTrade   string      `yaml:"min_trade"`
	MaxTrade   string      `yaml:"max_trade"`
	SortOrder  int         `yaml:"sort_order"`
	Params     ModelParams `yaml:"params"`
}

type catalogFile struct {
	Instruments []InstrumentConfig `yaml:"instruments"`
}

// LoadCatalog reads the instrument catalog from path, or the embedded default when path is empty.
func LoadCatalog(path string) ([]InstrumentConfig, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) ([]InstrumentConfig, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(file.Instruments) == 0 {
		return nil, fmt.Errorf("catalog has no instruments")
	}

	seen := make(map[string]bool, len(file.Instruments))
	for i := range file.Instruments {
		cfg := &file.Instruments[i]
		if cfg.Symbol == "" {
			return nil, fmt.Errorf("instrument %d has no symbol", i)
		}
		if seen[cfg.Symbol] {
			return nil, fmt.Errorf("duplicate instrument %s", cfg.Symbol)
		}
		seen[cfg.Symbol] = true
		if cfg.BasePrice <= 0 {
			return nil, fmt.Errorf("%s: base_price must be positive", cfg.Symbol)
		}
		if cfg.Volatility <= 0 {
			return nil, fmt.Errorf("%s: volatility must be positive", cfg.Symbol)
		}
		if cfg.Decimals <= 0 {
			cfg.Decimals = 2
		}
		if cfg.PayoutRate == "" {
			cfg.PayoutRate = "85"
		}
		if cfg.MinTrade == "" {
			cfg.MinTrade = "50"
		}
		if cfg.MaxTrade == "" {
			cfg.MaxTrade = "100000"
		}
		if _, err := newModel(*cfg); err != nil {
			return nil, err
		}
		for _, v := range []string{cfg.PayoutRate, cfg.MinTrade, cfg.MaxTrade} {
			if _, err := decimal.NewFromString(v); err != nil {
				return nil, fmt.Errorf("%s: invalid amount %q: %w", cfg.Symbol, v, err)
			}
		}
	}
	return file.Instruments, nil
}

// ToInstrument maps a catalog entry onto its database row.
func (c InstrumentConfig) ToInstrument() models.Instrument {
	return models.Instrument{
		Symbol:     c.Symbol,
		Name:       c.Name,
		Category:   c.Category,
		Model:      string(c.Model),
		PayoutRate: decimal.RequireFromString(c.PayoutRate),
		MinTrade:   decimal.RequireFromString(c.MinTrade),
		MaxTrade:   decimal.RequireFromString(c.MaxTrade),
		IsActive:   true,
		SortOrder:  c.SortOrder,
	}
}
