// Package engine compares each product's current state to its computed
// target state and emits the minimal set of corrective instructions.
package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/merchware/repricer/internal/classify"
	"github.com/merchware/repricer/internal/pricing"
	"github.com/merchware/repricer/internal/tags"
	"github.com/merchware/repricer/pkg/model"
)

// InvariantError is the fatal condition of an instruction row carrying a
// variant reference and its price separately: a named variant must have a
// price, and a price must have a named variant. Nothing is written once
// one is seen.
type InvariantError struct {
	ProductID string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("product %s: instruction row must carry variant id and price together", e.ProductID)
}

// VariantPrice is one scheduled per-variant price correction.
type VariantPrice struct {
	VariantID string
	Position  int
	Old       *decimal.Decimal
	New       decimal.Decimal
	Base      bool
}

// Result is the full derived state of one product: regime, price targets,
// tag moves, and the four independent change decisions.
type Result struct {
	Product  *model.Product
	Excluded bool

	Regime     model.Regime
	RefPrice   *decimal.Decimal // net reference price of the base variant
	Cost       *decimal.Decimal
	PriceNew   *decimal.Decimal
	AsLowAsNew *decimal.Decimal

	Tags          tags.Outcome
	DesiredStatus string

	DoDraft bool
	DoTags  bool
	DoPrice bool
	DoMeta  bool

	NeedsChange  bool
	PriceUpdates []VariantPrice // base first, then ascending position
}

// Summary is the machine-readable run outcome.
type Summary struct {
	RunID         string         `json:"run_id"`
	GeneratedAt   time.Time      `json:"generated_at"`
	TotalProducts int            `json:"total_products"`
	Changed       int            `json:"changed"`
	Drafted       int            `json:"drafted"`
	Excluded      int            `json:"excluded"`
	ByRegime      map[string]int `json:"by_regime"`
}

// RunResult bundles everything a run produces, held in memory until the
// writers flush it. FullRows is nil unless the full file was requested.
type RunResult struct {
	Results     []Result
	ChangedRows []model.InstructionRow
	FullRows    []model.InstructionRow
	Summary     Summary
}

// Engine evaluates products against the configured classification and
// pricing parameters. It is stateless across products.
type Engine struct {
	classifier  classify.Params
	pricing     pricing.Tables
	draftStatus string

	vatRate      float64
	vatNetPrices bool

	log *zap.Logger
}

func New(classifier classify.Params, tables pricing.Tables, draftStatus string,
	vatRate float64, vatNetPrices bool, log *zap.Logger) *Engine {
	return &Engine{
		classifier:   classifier,
		pricing:      tables,
		draftStatus:  draftStatus,
		vatRate:      vatRate,
		vatNetPrices: vatNetPrices,
		log:          log,
	}
}

// Run evaluates every product in order and builds the instruction sets.
// The returned error is fatal: no output may be written after one.
func (e *Engine) Run(products []*model.Product, emitFull bool) (*RunResult, error) {
	rr := &RunResult{
		Summary: Summary{
			RunID:         uuid.NewString(),
			GeneratedAt:   time.Now().UTC(),
			TotalProducts: len(products),
			ByRegime:      make(map[string]int),
		},
	}

	for _, p := range products {
		res := e.Evaluate(p)
		rr.Results = append(rr.Results, res)

		if res.Excluded {
			rr.Summary.Excluded++
			continue
		}
		rr.Summary.ByRegime[string(res.Regime)]++
		if res.DoDraft {
			rr.Summary.Drafted++
		}
		if res.NeedsChange {
			rr.Summary.Changed++
			rr.ChangedRows = append(rr.ChangedRows, buildRows(res, false)...)
		}
		// Full mode restates the desired state of every in-scope product,
		// changed or not; for skip products that is the draft status.
		if emitFull {
			rr.FullRows = append(rr.FullRows, buildRows(res, true)...)
		}
	}

	if err := checkRows(rr.ChangedRows); err != nil {
		return nil, err
	}
	if err := checkRows(rr.FullRows); err != nil {
		return nil, err
	}

	e.log.Info("engine.run_complete",
		zap.String("run_id", rr.Summary.RunID),
		zap.Int("products", rr.Summary.TotalProducts),
		zap.Int("changed", rr.Summary.Changed),
		zap.Int("drafted", rr.Summary.Drafted),
		zap.Int("excluded", rr.Summary.Excluded))
	return rr, nil
}

// Evaluate computes the derived state and change decisions for one product.
// It never mutates the product.
func (e *Engine) Evaluate(p *model.Product) Result {
	res := Result{Product: p, Regime: model.RegimeSkip}

	if e.classifier.Excluded(p.Tags) {
		res.Excluded = true
		res.Tags = tags.Outcome{Desired: p.Tags}
		return res
	}

	base := p.BaseVariant()
	var m, c float64
	if base != nil {
		if net := e.netReference(base.CompareAt); net != nil {
			res.RefPrice = net
			m = net.InexactFloat64()
		}
		if base.Cost != nil {
			res.Cost = base.Cost
			c = base.Cost.InexactFloat64()
		}
	}

	res.Regime = e.classifier.Classify(m, c, p.Tags)

	if res.Regime == model.RegimeSkip {
		// Unpriceable products are moved to draft; nothing else is touched.
		res.Tags = tags.Outcome{Desired: p.Tags}
		res.DesiredStatus = e.draftStatus
		if !strings.EqualFold(p.Status, e.draftStatus) {
			res.DoDraft = true
		}
		res.NeedsChange = res.DoDraft
		return res
	}

	quote := e.pricing.Price(m, c, res.Regime)

	res.Tags = tags.Reconcile(p.Tags, res.Regime)
	res.DoTags = res.Tags.Changed

	if quote.OK {
		res.PriceNew = &quote.Price
		for i, v := range orderedVariants(p) {
			// A malformed row can leave a variant without an id; a price
			// with nothing to attach it to must never reach the importer.
			if v.ID == "" {
				continue
			}
			if !model.MoneyEqual(v.Price, &quote.Price) {
				res.PriceUpdates = append(res.PriceUpdates, VariantPrice{
					VariantID: v.ID,
					Position:  v.Position,
					Old:       v.Price,
					New:       quote.Price,
					Base:      i == 0,
				})
			}
		}
		res.DoPrice = len(res.PriceUpdates) > 0

		// Only the standard regime owns the advertised-from attribute;
		// everyone else leaves whatever value is present untouched.
		if res.Regime == model.RegimeStandard && quote.AsLowAs.IsPositive() {
			if p.AsLowAs == nil || !model.MoneyEqual(p.AsLowAs, &quote.AsLowAs) {
				res.DoMeta = true
				res.AsLowAsNew = &quote.AsLowAs
			}
		}
	}

	res.NeedsChange = res.DoDraft || res.DoTags || res.DoPrice || res.DoMeta
	return res
}

// netReference converts the gross compare-at price to net when VAT
// normalization is configured.
func (e *Engine) netReference(gross *decimal.Decimal) *decimal.Decimal {
	if gross == nil {
		return nil
	}
	if !e.vatNetPrices || e.vatRate <= 0 {
		return gross
	}
	net := gross.Div(decimal.NewFromFloat(1 + e.vatRate))
	return &net
}

// orderedVariants returns the product's variants by ascending position,
// first-seen on ties. The base variant is index 0 by definition.
func orderedVariants(p *model.Product) []model.Variant {
	out := make([]model.Variant, len(p.Variants))
	copy(out, p.Variants)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// buildRows decomposes one product's logical update into physical rows:
// a primary row with product-level fields and at most one variant price,
// then one row per remaining variant price. In full mode the desired state
// is written whether or not it differs from the current one.
func buildRows(res Result, full bool) []model.InstructionRow {
	p := res.Product

	primary := model.InstructionRow{
		ID:      p.ID,
		Command: model.CommandUpdate,
	}
	if res.DoDraft || (full && res.Regime == model.RegimeSkip) {
		primary.Status = res.DesiredStatus
	}
	if res.DoTags || (full && len(res.Tags.Desired) > 0) {
		primary.Tags = strings.Join(res.Tags.Desired, ", ")
		primary.TagsCommand = model.TagsCommandReplace
	}
	// Never clear a value we are not actively setting: when the attribute
	// stays as-is, its current value rides along so an applied REPLACE-style
	// import cannot blank it.
	switch {
	case res.DoMeta:
		primary.Metafield = res.AsLowAsNew.StringFixed(2)
	case p.AsLowAs != nil:
		primary.Metafield = p.AsLowAs.StringFixed(2)
	}

	updates := res.PriceUpdates
	if full && res.PriceNew != nil {
		updates = allVariantTargets(res)
	}

	rows := make([]model.InstructionRow, 0, len(updates)+1)
	if len(updates) > 0 && updates[0].Base {
		primary.VariantID = updates[0].VariantID
		primary.VariantCommand = model.CommandUpdate
		primary.VariantPrice = updates[0].New.StringFixed(2)
		updates = updates[1:]
	}
	rows = append(rows, primary)

	for _, u := range updates {
		rows = append(rows, model.InstructionRow{
			ID:             p.ID,
			VariantID:      u.VariantID,
			VariantCommand: model.CommandUpdate,
			VariantPrice:   u.New.StringFixed(2),
		})
	}
	return rows
}

// allVariantTargets lists every variant at the target price, base first,
// for the full instruction file.
func allVariantTargets(res Result) []VariantPrice {
	var out []VariantPrice
	for i, v := range orderedVariants(res.Product) {
		if v.ID == "" {
			continue
		}
		out = append(out, VariantPrice{
			VariantID: v.ID,
			Position:  v.Position,
			Old:       v.Price,
			New:       *res.PriceNew,
			Base:      i == 0,
		})
	}
	return out
}

// checkRows enforces the structural invariant that a variant reference and
// its price only ever appear together on a row.
func checkRows(rows []model.InstructionRow) error {
	for _, r := range rows {
		if (r.VariantID == "") != (r.VariantPrice == "") {
			return &InvariantError{ProductID: r.ID}
		}
	}
	return nil
}
