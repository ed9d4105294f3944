// Package timing produces human-like randomized delays between actions.
package timing

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// DelayConfig bounds a generated delay. Zero fields take the defaults; set
// BurstProbability to NoBurst to turn burst mode off.
type DelayConfig struct {
	MinDelay             time.Duration
	MaxDelay             time.Duration
	BurstProbability     float64
	BurstSpeedMultiplier float64
}

// NoBurst disables burst mode when used as DelayConfig.BurstProbability
const NoBurst = -1.0

// DefaultDelayConfig is the inter-action spacing used between prospects
func DefaultDelayConfig() DelayConfig {
	return DelayConfig{
		MinDelay:             30 * time.Second,
		MaxDelay:             90 * time.Second,
		BurstProbability:     0.1,
		BurstSpeedMultiplier: 0.6,
	}
}

// LikeDelayConfig is the short spacing used between likes on one prospect
func LikeDelayConfig() DelayConfig {
	return DelayConfig{
		MinDelay:             3 * time.Second,
		MaxDelay:             8 * time.Second,
		BurstProbability:     0.15,
		BurstSpeedMultiplier: 0.7,
	}
}

func (c DelayConfig) withDefaults() DelayConfig {
	d := DefaultDelayConfig()
	if c.MinDelay == 0 && c.MaxDelay == 0 {
		c.MinDelay, c.MaxDelay = d.MinDelay, d.MaxDelay
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	if c.BurstProbability == 0 {
		c.BurstProbability = d.BurstProbability
	}
	if c.BurstSpeedMultiplier == 0 {
		c.BurstSpeedMultiplier = d.BurstSpeedMultiplier
	}
	return c
}

const (
	jitterFraction   = 0.05
	lowerClampFactor = 0.4
	upperClampFactor = 2.0

	pauseThresholdMin = 20
	pauseThresholdMax = 40
	pauseMin          = 5 * time.Minute
	pauseMax          = 15 * time.Minute
)

// hourMultiplier speeds up during peak hours and slows down off-hours
func hourMultiplier(hour int) float64 {
	switch {
	case hour >= 0 && hour < 6:
		return 1.4
	case hour >= 6 && hour < 9:
		return 1.15
	case hour >= 9 && hour < 12:
		return 0.9
	case hour >= 12 && hour < 18:
		return 1.0
	case hour >= 18 && hour < 22:
		return 0.85
	default:
		return 1.2
	}
}

func weekdayMultiplier(day time.Weekday) float64 {
	if day == time.Saturday || day == time.Sunday {
		return 1.15
	}
	return 1.0
}

// Generator draws delays from a seeded source. It is safe for concurrent use.
type Generator struct {
	mu             sync.Mutex
	rng            *rand.Rand
	now            func() time.Time
	pauseThreshold int
}

// NewGenerator creates a generator; a nil now uses time.Now
func NewGenerator(seed int64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: now,
	}
}

// gaussian returns a standard normal draw via Box-Muller
func (g *Generator) gaussian() float64 {
	u1 := g.rng.Float64()
	for u1 == 0 {
		u1 = g.rng.Float64()
	}
	u2 := g.rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// GenerateDelay returns a delay in [0.4*min, 2*max]
func (g *Generator) GenerateDelay(cfg DelayConfig) time.Duration {
	cfg = cfg.withDefaults()
	g.mu.Lock()
	defer g.mu.Unlock()

	minMs := float64(cfg.MinDelay.Milliseconds())
	maxMs := float64(cfg.MaxDelay.Milliseconds())
	mean := (minMs + maxMs) / 2
	stdDev := (maxMs - minMs) / 6

	delay := clamp(mean+g.gaussian()*stdDev, minMs, maxMs)

	now := g.now()
	delay *= hourMultiplier(now.Hour())
	delay *= weekdayMultiplier(now.Weekday())

	if g.rng.Float64() < cfg.BurstProbability {
		delay *= cfg.BurstSpeedMultiplier
	}

	delay *= 1 + (g.rng.Float64()*2-1)*jitterFraction
	delay = clamp(delay, lowerClampFactor*minMs, upperClampFactor*maxMs)

	return time.Duration(math.Round(delay)) * time.Millisecond
}

// GenerateLikeDelay returns a delay for spacing likes on the same prospect
func (g *Generator) GenerateLikeDelay() time.Duration {
	return g.GenerateDelay(LikeDelayConfig())
}

// SuggestSessionPause returns a 5-15 minute break once the session has
// reached a randomized threshold in [20,40] actions, else 0. The threshold
// is redrawn after each suggested pause.
func (g *Generator) SuggestSessionPause(actionsInSession int) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pauseThreshold == 0 {
		g.pauseThreshold = pauseThresholdMin + g.rng.Intn(pauseThresholdMax-pauseThresholdMin+1)
	}
	if actionsInSession < g.pauseThreshold {
		return 0
	}
	g.pauseThreshold = 0
	span := int64(pauseMax - pauseMin)
	return pauseMin + time.Duration(g.rng.Int63n(span+1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
