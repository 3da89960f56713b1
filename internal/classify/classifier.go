// Package classify assigns each product to a pricing regime from its net
// reference price, cost basis, and tag set.
package classify

import (
	"strings"

	"github.com/merchware/repricer/pkg/model"
)

// Params holds the margin-simulation constants for one deployment.
// They are fixed per run, never per call.
type Params struct {
	DMax      float64 // maximum discount depth simulated for the worst-case sale
	ShipCost  float64 // outbound shipping cost borne by the merchant
	CustShip  float64 // shipping charged to the customer, fee-bearing
	AffRate   float64 // affiliate fee rate on the sale price
	OtherRate float64 // payment/platform fee rate on (sale price + customer shipping)

	// VATRate scales the other-fee base by (1+VATRate) when ScaleFeesVAT
	// is set. Zero disables.
	VATRate      float64
	ScaleFeesVAT bool

	// GatewayTags force the used regime when any is present,
	// matched case-insensitively.
	GatewayTags []string

	// ExcludeTag takes the product out of scope entirely; Classify is
	// bypassed and no instructions are produced.
	ExcludeTag string
}

// Excluded reports whether the product opted out of repricing via the
// manual exclusion tag.
func (p Params) Excluded(tags []string) bool {
	if p.ExcludeTag == "" {
		return false
	}
	for _, t := range tags {
		if strings.EqualFold(t, p.ExcludeTag) {
			return true
		}
	}
	return false
}

// Classify decides the pricing regime for a product.
//
// m is the net reference price, c the net cost; non-positive values of
// either mean the product cannot be priced and yield RegimeSkip. A gateway
// tag short-circuits to RegimeUsed. Otherwise a worst-case sale at maximum
// discount is simulated: non-negative projected gross margin is
// RegimeStandard, negative is RegimeLowMargin.
func (p Params) Classify(m, c float64, tags []string) model.Regime {
	if m <= 0 || c <= 0 {
		return model.RegimeSkip
	}
	if p.hasGatewayTag(tags) {
		return model.RegimeUsed
	}
	if p.WorstCaseMargin(m, c) >= 0 {
		return model.RegimeStandard
	}
	return model.RegimeLowMargin
}

// WorstCaseMargin projects the gross margin of a sale at maximum discount.
func (p Params) WorstCaseMargin(m, c float64) float64 {
	saleMax := m * (1 - p.DMax)
	affiliateFee := saleMax * p.AffRate
	feeBase := saleMax + p.CustShip
	if p.ScaleFeesVAT && p.VATRate > 0 {
		feeBase *= 1 + p.VATRate
	}
	otherFee := feeBase * p.OtherRate
	return saleMax - c - p.ShipCost - affiliateFee - otherFee
}

func (p Params) hasGatewayTag(tags []string) bool {
	for _, t := range tags {
		for _, g := range p.GatewayTags {
			if strings.EqualFold(t, g) {
				return true
			}
		}
	}
	return false
}
