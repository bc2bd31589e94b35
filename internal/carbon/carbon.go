// Package carbon computes embodied CO2 for deliveries from per-material
// emission factors.
package carbon

import (
	"context"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	id "sitecarbon/pkg/domain"
)

// FactorStore returns emission factors (tonnes CO2 per unit) for a batch of
// materials. Materials without a factor are absent from the map.
type FactorStore interface {
	EmissionFactors(ctx context.Context, materialIDs []id.MaterialID) (map[id.MaterialID]float64, error)
}

// Line is one quantity of one material.
type Line struct {
	MaterialID id.MaterialID
	Quantity   float64
}

// Calculator looks factors up at persist time. A missing factor or a failed
// lookup yields zero and never fails the caller.
type Calculator struct {
	factors FactorStore
	logger  *slog.Logger
}

type Option func(*Calculator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Calculator) {
		c.logger = logger
	}
}

func NewCalculator(factors FactorStore, opts ...Option) *Calculator {
	c := &Calculator{factors: factors, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compute returns the embodied CO2 for each line in order, plus how many
// lines had no usable factor.
func (c *Calculator) Compute(ctx context.Context, lines []Line) ([]float64, int) {
	out := make([]float64, len(lines))
	if len(lines) == 0 {
		return out, 0
	}

	seen := make(map[id.MaterialID]struct{}, len(lines))
	ids := make([]id.MaterialID, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.MaterialID]; !ok {
			seen[l.MaterialID] = struct{}{}
			ids = append(ids, l.MaterialID)
		}
	}

	var factors map[id.MaterialID]float64
	if c.factors != nil {
		var err error
		factors, err = c.factors.EmissionFactors(ctx, ids)
		if err != nil {
			c.logger.DebugContext(ctx, "emission factor lookup failed, using zero",
				"materials", len(ids),
				"error", err,
			)
			factors = nil
		}
	}

	missing := 0
	for i, l := range lines {
		f, ok := factors[l.MaterialID]
		if !ok {
			missing++
			continue
		}
		out[i] = Embodied(l.Quantity, f)
	}
	return out, missing
}

// Embodied multiplies quantity by factor in decimal so results such as
// 125.5 x 0.337 come out as 42.2935. Non-finite inputs yield zero.
func Embodied(quantity, factor float64) float64 {
	if !finite(quantity) || !finite(factor) {
		return 0
	}
	return decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(factor)).InexactFloat64()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
