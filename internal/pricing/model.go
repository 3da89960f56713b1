// Package pricing computes the target sale price, and for the standard
// regime the lowest advertised price, from the reference price and cost.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/merchware/repricer/pkg/model"
)

// CostPlusParams drive the cost-plus model with smoothed size adjustment
// used by the used and low-margin regimes.
type CostPlusParams struct {
	Alpha float64 // base markup on cost
	Beta  float64 // markup per decade of reference/cost ratio
	Gamma float64 // small-item boost, faded out by the sigmoid
	N     float64 // flat add-on
	K0    float64 // sigmoid midpoint on the reference price axis
	K     float64 // sigmoid width
}

// StandardParams drive the discount-depth hidden-price model of the
// standard regime.
type StandardParams struct {
	DMax     float64 // maximum published discount; also fixes the as-low-as floor
	Mu0      float64 // baseline markup at the reference discount depth
	BetaDisc float64 // markup slope per decade of discount depth
	GammaM   float64 // price-magnitude shape exponent
	Rho      float64 // blend weight toward the reference depth anchor
	DRef     float64 // reference discount depth
	MRef     float64 // reference price scale
}

// Tables is the enum-keyed parameter set resolved once per run.
type Tables struct {
	Standard  StandardParams
	Used      CostPlusParams
	LowMargin CostPlusParams
}

// Quote is a computed price target. AsLowAs is zero for every regime but
// standard. OK is false when the inputs cannot be priced.
type Quote struct {
	Price   decimal.Decimal
	AsLowAs decimal.Decimal
	OK      bool
}

// Price computes the target price for the given regime. The reference price
// m is a hard ceiling in every regime. Returns a not-OK quote when m or c is
// not strictly positive, or for RegimeSkip.
func (t Tables) Price(m, c float64, regime model.Regime) Quote {
	if m <= 0 || c <= 0 {
		return Quote{}
	}

	switch regime {
	case model.RegimeUsed:
		return costPlusQuote(t.Used, m, c)
	case model.RegimeLowMargin:
		return costPlusQuote(t.LowMargin, m, c)
	case model.RegimeStandard:
		return t.standardQuote(m, c)
	}
	return Quote{}
}

func costPlusQuote(p CostPlusParams, m, c float64) Quote {
	sigmoid := 1 / (1 + math.Exp((m-p.K0)/p.K))
	raw := c*(1+p.Alpha+p.Beta*math.Log10(m/c)+p.Gamma*sigmoid) + p.N
	return Quote{
		Price: round2(math.Min(m, raw)),
		OK:    true,
	}
}

func (t Tables) standardQuote(m, c float64) Quote {
	p := t.Standard

	d := clamp(1-c/m, 0, 0.99)
	ld := math.Log10(1 / (1 - d))
	ldRef := math.Log10(1 / (1 - p.DRef))
	muD := p.Mu0 + p.BetaDisc*(ld-ldRef)

	shape := math.Pow(m/p.MRef, -p.GammaM)
	aM := m * shape / (1 - p.DMax)
	bD := (1-p.Rho)*(1+muD)*(1-d) + p.Rho*(1+p.Mu0)*(1-p.DRef)

	hidden := math.Min(m, aM*bD)
	return Quote{
		Price:   round2(hidden),
		AsLowAs: round2((1 - p.DMax) * hidden),
		OK:      true,
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// round2 rounds half away from zero to 2 decimal places.
func round2(x float64) decimal.Decimal {
	return decimal.NewFromFloat(x).Round(2)
}
