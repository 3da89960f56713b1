// Package report writes the run outputs: preview reports, instruction
// files, the manual-review sample, and the machine-readable run summary.
// Nothing is written until the whole product set has been processed.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/merchware/repricer/internal/engine"
	"github.com/merchware/repricer/pkg/model"
)

// Output file names, relative to the output directory.
const (
	FilePreviewFull        = "preview_full.csv"
	FilePreviewChanged     = "preview_changed.csv"
	FileInstructions       = "instructions_changed.csv"
	FileInstructionsFull   = "instructions_full.csv"
	FileInstructionsSample = "instructions_sample.csv"
	FileSummary            = "summary.json"
)

// Writer flushes a completed run to disk as comma-delimited RFC4180 CSV
// plus a JSON summary.
type Writer struct {
	Dir             string
	MetafieldColumn string // header of the advertised-from column
	EmitFull        bool
	Log             *zap.Logger
}

// WriteAll writes every output file. sampled is the manual-review subset;
// its instruction rows are the changed-row subset belonging to the sampled
// products, in original order.
func (w *Writer) WriteAll(rr *engine.RunResult, sampled []engine.Result) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := w.writePreview(FilePreviewFull, rr.Results, false); err != nil {
		return err
	}
	if err := w.writePreview(FilePreviewChanged, rr.Results, true); err != nil {
		return err
	}
	if err := w.writeInstructions(FileInstructions, rr.ChangedRows); err != nil {
		return err
	}
	if w.EmitFull {
		if err := w.writeInstructions(FileInstructionsFull, rr.FullRows); err != nil {
			return err
		}
	}
	if err := w.writeInstructions(FileInstructionsSample, sampleRows(rr.ChangedRows, sampled)); err != nil {
		return err
	}
	if err := w.writeSummary(rr.Summary); err != nil {
		return err
	}

	w.Log.Info("report.written",
		zap.String("dir", w.Dir),
		zap.Int("changed_rows", len(rr.ChangedRows)),
		zap.Int("sampled", len(sampled)))
	return nil
}

var previewHeader = []string{
	"ID", "Title", "Handle", "Regime",
	"Ref Price", "Cost", "Old Price", "New Price",
	"Old As Low As", "New As Low As",
	"Tags Add", "Tags Remove",
	"Do Draft", "Do Tags", "Do Price", "Do Meta", "Changed",
}

func (w *Writer) writePreview(name string, results []engine.Result, changedOnly bool) error {
	rows := [][]string{previewHeader}
	for _, r := range results {
		if r.Excluded || (changedOnly && !r.NeedsChange) {
			continue
		}
		p := r.Product
		var oldPrice *decimal.Decimal
		if base := p.BaseVariant(); base != nil {
			oldPrice = base.Price
		}
		rows = append(rows, []string{
			p.ID, p.Title, p.Handle, string(r.Regime),
			money(r.RefPrice), money(r.Cost), money(oldPrice), money(r.PriceNew),
			money(p.AsLowAs), money(r.AsLowAsNew),
			strings.Join(r.Tags.Add, ", "), strings.Join(r.Tags.Remove, ", "),
			strconv.FormatBool(r.DoDraft), strconv.FormatBool(r.DoTags),
			strconv.FormatBool(r.DoPrice), strconv.FormatBool(r.DoMeta),
			strconv.FormatBool(r.NeedsChange),
		})
	}
	return w.writeCSV(name, rows)
}

func (w *Writer) writeInstructions(name string, rows []model.InstructionRow) error {
	out := [][]string{{
		"ID", "Command", "Tags", "Tags Command", "Status",
		"Variant ID", "Variant Command", "Variant Price", w.MetafieldColumn,
	}}
	for _, r := range rows {
		out = append(out, []string{
			r.ID, r.Command, r.Tags, r.TagsCommand, r.Status,
			r.VariantID, r.VariantCommand, r.VariantPrice, r.Metafield,
		})
	}
	return w.writeCSV(name, out)
}

func (w *Writer) writeSummary(s engine.Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	path := filepath.Join(w.Dir, FileSummary)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", FileSummary, err)
	}
	return nil
}

func (w *Writer) writeCSV(name string, rows [][]string) error {
	path := filepath.Join(w.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil { // WriteAll flushes
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

// sampleRows filters the changed instruction rows down to the sampled
// products, preserving row order.
func sampleRows(rows []model.InstructionRow, sampled []engine.Result) []model.InstructionRow {
	ids := make(map[string]struct{}, len(sampled))
	for _, r := range sampled {
		ids[r.Product.ID] = struct{}{}
	}
	var out []model.InstructionRow
	for _, r := range rows {
		if _, ok := ids[r.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

func money(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}
