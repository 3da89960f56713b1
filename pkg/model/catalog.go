package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PositionSentinel sorts variants with an absent or unparseable position last.
const PositionSentinel = 1 << 30

// Tolerance is the monetary equality threshold: two amounts closer than
// 0.005 currency units are the same price.
var Tolerance = decimal.RequireFromString("0.005")

// Variant is one sellable row of a product as it appears in the catalog
// export. All monetary fields are nullable: a nil pointer means the export
// carried no parseable value.
type Variant struct {
	ID        string
	Position  int
	Price     *decimal.Decimal // current sale price
	CompareAt *decimal.Decimal // current list/reference price (gross)
	Cost      *decimal.Decimal // per-unit cost basis
}

// Product aggregates every variant row sharing a product id, in
// first-encounter order.
type Product struct {
	ID       string
	Title    string
	Handle   string
	Status   string
	Tags     []string         // ordered, case-preserved, deduped case-insensitively
	AsLowAs  *decimal.Decimal // current advertised-from value, if the column exists
	Variants []Variant
}

// BaseVariant returns the variant with the smallest position; ties resolve
// to the first-seen variant. A Product always has at least one variant, so
// the result is never nil for well-formed aggregates.
func (p *Product) BaseVariant() *Variant {
	if len(p.Variants) == 0 {
		return nil
	}
	base := &p.Variants[0]
	for i := 1; i < len(p.Variants); i++ {
		if p.Variants[i].Position < base.Position {
			base = &p.Variants[i]
		}
	}
	return base
}

// HasTag reports whether the product carries tag, matched case-insensitively.
func (p *Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Regime is the pricing category assigned to a product.
type Regime string

const (
	RegimeSkip      Regime = "skip"
	RegimeUsed      Regime = "used"
	RegimeStandard  Regime = "standard"
	RegimeLowMargin Regime = "low-margin"
)

// TypeTags are the mutually-exclusive tags encoding a product's regime.
// RegimeSkip has no tag.
var TypeTags = []string{string(RegimeUsed), string(RegimeStandard), string(RegimeLowMargin)}

// TypeTag returns the tag encoding this regime and whether one exists.
func (r Regime) TypeTag() (string, bool) {
	switch r {
	case RegimeUsed, RegimeStandard, RegimeLowMargin:
		return string(r), true
	}
	return "", false
}

// IsTypeTag reports whether tag is one of the three regime tags,
// matched case-insensitively.
func IsTypeTag(tag string) bool {
	for _, t := range TypeTags {
		if strings.EqualFold(tag, t) {
			return true
		}
	}
	return false
}

// MoneyEqual reports whether a and b are the same price under Tolerance.
// A nil side is only equal to another nil side.
func MoneyEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Sub(*b).Abs().LessThan(Tolerance)
}
