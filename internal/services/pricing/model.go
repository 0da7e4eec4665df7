package pricing

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// ModelKind names one of the generative behaviours an instrument can follow.
type ModelKind string

const (
	ModelVelocity   ModelKind = "velocity"
	ModelCrash      ModelKind = "crash"
	ModelBoom       ModelKind = "boom"
	ModelStep       ModelKind = "step"
	ModelRangeBreak ModelKind = "range_break"
)

// Model evolves a price by one tick. The set of implementations is closed:
// only this package can satisfy it.
type Model interface {
	Kind() ModelKind
	Next(r *rand.Rand, price float64) float64
	sealed()
}

// newModel selects the evolution function for an instrument once, at load time.
func newModel(cfg InstrumentConfig) (Model, error) {
	p := cfg.Params
	base := cfg.BasePrice
	switch cfg.Model {
	case ModelVelocity:
		return &velocityModel{
			base:      base,
			vol:       cfg.Volatility,
			reversion: orDefault(p.Reversion, 0.001),
		}, nil
	case ModelCrash, ModelBoom:
		dir := 1.0
		if cfg.Model == ModelBoom {
			dir = -1.0
		}
		return &spikeModel{
			kind:    cfg.Model,
			base:    base,
			vol:     cfg.Volatility,
			drift:   orDefault(p.Drift, 0.00005),
			prob:    orDefault(p.EventProbability, 1.0/500),
			minMove: orDefault(p.EventMinMove, 0.02),
			maxMove: orDefault(p.EventMaxMove, 0.05),
			dir:     dir,
		}, nil
	case ModelStep:
		if p.StepSize <= 0 {
			return nil, fmt.Errorf("%s: step model needs a positive step_size", cfg.Symbol)
		}
		return &stepModel{base: base, size: p.StepSize}, nil
	case ModelRangeBreak:
		minTicks := p.BreakoutMinTicks
		if minTicks <= 0 {
			minTicks = 5
		}
		maxTicks := p.BreakoutMaxTicks
		if maxTicks < minTicks {
			maxTicks = minTicks + 10
		}
		return &rangeBreakModel{
			base:      base,
			vol:       cfg.Volatility,
			halfWidth: orDefault(p.BandWidth, 0.002),
			prob:      orDefault(p.BreakoutProbability, 1.0/150),
			minTicks:  minTicks,
			maxTicks:  maxTicks,
			drift:     orDefault(p.BreakoutDrift, 0.001),
		}, nil
	default:
		return nil, fmt.Errorf("%s: unknown model %q", cfg.Symbol, cfg.Model)
	}
}

// velocityModel is a Gaussian random walk with weak mean reversion, clamped to ±20% of base.
type velocityModel struct {
	base      float64
	vol       float64
	reversion float64
}

func (m *velocityModel) Kind() ModelKind { return ModelVelocity }
func (m *velocityModel) sealed()         {}

func (m *velocityModel) Next(r *rand.Rand, price float64) float64 {
	price += price*m.vol*gaussian(r) + (m.base-price)*m.reversion
	return clamp(price, m.base*0.8, m.base*1.2)
}

// spikeModel drifts one way every tick and occasionally jumps 2-5% the other way.
// Crash drifts up and drops; Boom drifts down and spikes. Clamped to ±30% of base.
type spikeModel struct {
	kind    ModelKind
	base    float64
	vol     float64
	drift   float64
	prob    float64
	minMove float64
	maxMove float64
	dir     float64
}

func (m *spikeModel) Kind() ModelKind { return m.kind }
func (m *spikeModel) sealed()         {}

func (m *spikeModel) Next(r *rand.Rand, price float64) float64 {
	price += price * (m.dir*m.drift + m.vol*gaussian(r))
	if r.Float64() < m.prob {
		move := m.minMove + r.Float64()*(m.maxMove-m.minMove)
		price -= m.dir * price * move
	}
	return clamp(price, m.base*0.7, m.base*1.3)
}

// stepModel moves exactly one increment per tick. Beyond 10% from base the
// direction is biased 70/30 back toward base. Clamped to ±20% of base.
type stepModel struct {
	base float64
	size float64
}

func (m *stepModel) Kind() ModelKind { return ModelStep }
func (m *stepModel) sealed()         {}

func (m *stepModel) Next(r *rand.Rand, price float64) float64 {
	dir := 1.0
	if r.IntN(2) == 0 {
		dir = -1.0
	}
	dev := (price - m.base) / m.base
	if math.Abs(dev) > 0.10 {
		toward := -math.Copysign(1, dev)
		if r.Float64() < 0.7 {
			dir = toward
		} else {
			dir = -toward
		}
	}
	return clamp(price+dir*m.size, m.base*0.8, m.base*1.2)
}

// rangeBreakModel oscillates inside a band around a slowly moving centre.
// A breakout runs for a bounded number of ticks with strong drift, after which
// the band is re-centred on the price reached.
type rangeBreakModel struct {
	base      float64
	vol       float64
	halfWidth float64
	prob      float64
	minTicks  int
	maxTicks  int
	drift     float64

	center    float64
	remaining int
	dir       float64
}

func (m *rangeBreakModel) Kind() ModelKind { return ModelRangeBreak }
func (m *rangeBreakModel) sealed()         {}

func (m *rangeBreakModel) Next(r *rand.Rand, price float64) float64 {
	if m.center == 0 {
		m.center = price
	}
	if m.remaining == 0 && r.Float64() < m.prob {
		m.remaining = m.minTicks + r.IntN(m.maxTicks-m.minTicks+1)
		m.dir = 1.0
		if r.IntN(2) == 0 {
			m.dir = -1.0
		}
	}

	if m.remaining > 0 {
		price += price * (m.dir*m.drift + 0.25*m.vol*gaussian(r))
		price = clamp(price, m.base*0.7, m.base*1.3)
		m.remaining--
		if m.remaining == 0 {
			m.center = price
		}
		return price
	}

	lo, hi := m.band()
	price = clamp(price+price*m.vol*gaussian(r), lo, hi)
	m.center += (price - m.center) * 0.01
	return price
}

func (m *rangeBreakModel) band() (float64, float64) {
	half := m.center * m.halfWidth
	return m.center - half, m.center + half
}

func (m *rangeBreakModel) inBreakout() bool {
	return m.remaining > 0
}

// gaussian draws a standard normal variate with the Box-Muller transform.
func gaussian(r *rand.Rand) float64 {
	u1 := r.Float64()
	for u1 == 0 {
		u1 = r.Float64()
	}
	u2 := r.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
