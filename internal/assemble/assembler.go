// Package assemble tokenizes the flat catalog export into rows, stitching
// multi-line quoted fields back together, and groups rows into per-product
// aggregates in first-encounter order.
package assemble

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/merchware/repricer/pkg/model"
)

// Canonical input column names, matched case-insensitively.
const (
	ColID        = "ID"
	ColTitle     = "Title"
	ColHandle    = "Handle"
	ColTags      = "Tags"
	ColStatus    = "Status"
	ColVariantID = "Variant ID"
	ColPosition  = "Variant Position"
	ColPrice     = "Variant Price"
	ColCompareAt = "Variant Compare At Price"
	ColCost      = "Variant Cost"
)

var requiredColumns = []string{
	ColID, ColTags, ColStatus,
	ColVariantID, ColPosition, ColPrice, ColCompareAt, ColCost,
}

// headerPreviewLimit caps how many detected headers a HeaderError reports.
const headerPreviewLimit = 8

var productIDRe = regexp.MustCompile(`^\d+$`)

// HeaderError is the fatal startup condition of a header missing required
// columns. Seen carries the first detected headers for the diagnostic.
type HeaderError struct {
	Missing []string
	Seen    []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("input header missing required columns %v (first headers seen: %v)",
		e.Missing, e.Seen)
}

// StructuralError reports a record whose grouping cannot be trusted,
// typically a mis-split multi-line record surfacing as a non-numeric
// product id. It aborts the whole run: per-product reasoning is meaningless
// if row boundaries are unreliable.
type StructuralError struct {
	ProductID string
	Record    int
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("record %d: product id %q is not numeric; the export tokenization cannot be trusted",
		e.Record, e.ProductID)
}

// Assembler turns raw export lines into Product aggregates.
type Assembler struct {
	MetafieldPrefix string
	Logger          *zap.Logger
}

func New(metafieldPrefix string, logger *zap.Logger) *Assembler {
	return &Assembler{MetafieldPrefix: metafieldPrefix, Logger: logger}
}

// Assemble consumes the raw export and returns Product aggregates in
// first-encounter order, along with the full header of the detected
// advertised-from column (the configured prefix when the input has none)
// so instruction files address the column by its real name. Any returned
// error is fatal for the run.
func (a *Assembler) Assemble(r io.Reader) ([]*model.Product, string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var headerLine string
	for sc.Scan() {
		headerLine = stripBOM(sc.Text())
		if strings.TrimSpace(headerLine) != "" {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, "", fmt.Errorf("read input: %w", err)
	}
	if strings.TrimSpace(headerLine) == "" {
		return nil, "", fmt.Errorf("input is empty")
	}

	delim := detectDelimiter(headerLine)
	header := splitRecord(headerLine, delim)
	cols, metaCol, err := indexHeader(header, a.MetafieldPrefix)
	if err != nil {
		return nil, "", err
	}
	metaColumn := a.MetafieldPrefix
	if metaCol >= 0 {
		metaColumn = strings.TrimSpace(header[metaCol])
	}
	a.Logger.Debug("assemble.header",
		zap.String("delimiter", string(delim)),
		zap.Int("columns", len(header)),
		zap.String("metafield_column", metaColumn))

	byID := make(map[string]*model.Product)
	var order []*model.Product

	var pending strings.Builder
	record := 0
	flush := func() error {
		rec := pending.String()
		pending.Reset()
		if strings.TrimSpace(rec) == "" {
			return nil
		}
		record++
		return a.addRow(byID, &order, splitRecord(rec, delim), cols, metaCol, record)
	}

	for sc.Scan() {
		line := stripBOM(sc.Text())
		if pending.Len() > 0 {
			pending.WriteByte('\n')
		}
		pending.WriteString(line)
		// A buffer holding an odd number of quote characters is still
		// inside a quoted field and keeps accumulating. Doubled ""
		// escapes add two quotes, so parity is unaffected by them.
		if strings.Count(pending.String(), `"`)%2 != 0 {
			continue
		}
		if err := flush(); err != nil {
			return nil, "", err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, "", fmt.Errorf("read input: %w", err)
	}
	if err := flush(); err != nil {
		return nil, "", err
	}

	a.Logger.Info("assemble.done",
		zap.Int("records", record),
		zap.Int("products", len(order)))
	return order, metaColumn, nil
}

// addRow validates one complete record and folds it into its product
// aggregate.
func (a *Assembler) addRow(byID map[string]*model.Product, order *[]*model.Product,
	fields []string, cols map[string]int, metaCol, record int) error {

	get := func(name string) string {
		i, ok := cols[strings.ToLower(name)]
		if !ok || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	id := get(ColID)
	if !productIDRe.MatchString(id) {
		return &StructuralError{ProductID: id, Record: record}
	}

	p, ok := byID[id]
	if !ok {
		p = &model.Product{ID: id}
		byID[id] = p
		*order = append(*order, p)
	}

	if p.Title == "" {
		p.Title = get(ColTitle)
	}
	if p.Handle == "" {
		p.Handle = get(ColHandle)
	}
	if p.Status == "" {
		p.Status = get(ColStatus)
	}
	if len(p.Tags) == 0 {
		p.Tags = parseTags(get(ColTags))
	}
	if p.AsLowAs == nil && metaCol >= 0 && metaCol < len(fields) {
		p.AsLowAs = parseMoney(strings.TrimSpace(fields[metaCol]))
	}

	p.Variants = append(p.Variants, model.Variant{
		ID:        get(ColVariantID),
		Position:  parsePosition(get(ColPosition)),
		Price:     parseMoney(get(ColPrice)),
		CompareAt: parseMoney(get(ColCompareAt)),
		Cost:      parseMoney(get(ColCost)),
	})
	return nil
}

// indexHeader maps lowercased column names to indexes, validates the
// required set, and locates the first advertised-from metafield column
// (-1 when absent).
func indexHeader(header []string, metaPrefix string) (map[string]int, int, error) {
	cols := make(map[string]int, len(header))
	metaCol := -1
	for i, h := range header {
		name := strings.TrimSpace(h)
		key := strings.ToLower(name)
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
		if metaCol < 0 && metaPrefix != "" && strings.HasPrefix(name, metaPrefix) {
			metaCol = i
		}
	}

	var missing []string
	for _, want := range requiredColumns {
		if _, ok := cols[strings.ToLower(want)]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		seen := make([]string, 0, headerPreviewLimit)
		for _, h := range header {
			if len(seen) == headerPreviewLimit {
				break
			}
			seen = append(seen, strings.TrimSpace(h))
		}
		return nil, -1, &HeaderError{Missing: missing, Seen: seen}
	}
	return cols, metaCol, nil
}

// detectDelimiter prefers a semicolon only when it strictly outnumbers
// commas on the header line.
func detectDelimiter(header string) byte {
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

// splitRecord splits one complete record into fields, honoring RFC4180
// quoting: fields may be wrapped in double quotes, doubled quotes inside a
// quoted field escape a literal quote, and delimiters or newlines inside
// quotes do not split.
func splitRecord(rec string, delim byte) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false

	for i := 0; i < len(rec); i++ {
		c := rec[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(rec) && rec[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == delim && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

func stripBOM(line string) string {
	return strings.TrimPrefix(line, "\ufeff")
}

// parseTags splits a comma-separated tag list, preserving order and casing
// while deduplicating case-insensitively.
func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// parsePosition treats an absent or unparseable position as the sentinel so
// the variant sorts last.
func parsePosition(raw string) int {
	if raw == "" {
		return model.PositionSentinel
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return model.PositionSentinel
	}
	return n
}

// parseMoney parses a monetary field accepting either ',' or '.' as the
// decimal separator. Unparseable values are null, never fatal.
func parseMoney(raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, ",", ".")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}
