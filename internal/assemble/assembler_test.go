package assemble

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/merchware/repricer/pkg/model"
)

const metaPrefix = "Metafield: custom.as_low_as"

func newTestAssembler() *Assembler {
	return New(metaPrefix, zap.NewNop())
}

const header = "ID,Title,Handle,Tags,Status,Variant ID,Variant Position,Variant Price,Variant Compare At Price,Variant Cost," + metaPrefix + " [number]"

func TestAssembleGroupsVariantsByProduct(t *testing.T) {
	input := strings.Join([]string{
		header,
		`100,Lamp,lamp,"Sale, Home",Active,9001,1,49.90,89.90,20.00,24.45`,
		`100,,,,,9002,2,49.90,89.90,20.00,`,
		`200,Desk,desk,Office,Active,9101,1,300,600,250,`,
	}, "\n")

	products, _, err := newTestAssembler().Assemble(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, products, 2)

	lamp := products[0]
	assert.Equal(t, "100", lamp.ID)
	assert.Equal(t, "Lamp", lamp.Title)
	assert.Equal(t, "lamp", lamp.Handle)
	assert.Equal(t, "Active", lamp.Status)
	assert.Equal(t, []string{"Sale", "Home"}, lamp.Tags)
	require.NotNil(t, lamp.AsLowAs)
	assert.Equal(t, "24.45", lamp.AsLowAs.StringFixed(2))
	require.Len(t, lamp.Variants, 2)
	assert.Equal(t, "9001", lamp.Variants[0].ID)
	assert.Equal(t, 1, lamp.Variants[0].Position)

	desk := products[1]
	assert.Equal(t, "200", desk.ID)
	assert.Nil(t, desk.AsLowAs)
	require.NotNil(t, desk.Variants[0].CompareAt)
	assert.Equal(t, "600.00", desk.Variants[0].CompareAt.StringFixed(2))
}

func TestAssembleMultiLineQuotedField(t *testing.T) {
	input := header + "\n" +
		"100,\"Lamp with a\nvery long\ndescription\",lamp,,Active,9001,1,10,20,5,\n" +
		"200,Desk,desk,,Active,9101,1,300,600,250,\n"

	products, _, err := newTestAssembler().Assemble(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Lamp with a\nvery long\ndescription", products[0].Title)
	assert.Equal(t, "200", products[1].ID)
}

func TestAssembleDoubledQuoteEscape(t *testing.T) {
	input := header + "\n" +
		`100,"The ""Big"" Lamp",lamp,,Active,9001,1,10,20,5,` + "\n"

	products, _, err := newTestAssembler().Assemble(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, `The "Big" Lamp`, products[0].Title)
}

func TestAssembleSemicolonDelimiter(t *testing.T) {
	input := strings.ReplaceAll(header, ",", ";") + "\n" +
		"100;Lamp;lamp;Sale;Active;9001;1;49,90;89,90;20,00;\n"

	products, _, err := newTestAssembler().Assemble(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NotNil(t, products[0].Variants[0].Price)
	assert.Equal(t, "49.90", products[0].Variants[0].Price.StringFixed(2))
}

func TestAssembleStripsBOM(t *testing.T) {
	input := "\ufeff" + header + "\n" +
		"100,Lamp,lamp,,Active,9001,1,10,20,5,\n"

	products, _, err := newTestAssembler().Assemble(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "100", products[0].ID)
}

func TestAssembleMissingColumnsFatal(t *testing.T) {
	input := "ID,Title,Handle,Status,Variant ID\n100,Lamp,lamp,Active,9001\n"

	_, _, err := newTestAssembler().Assemble(strings.NewReader(input))
	require.Error(t, err)

	var hdrErr *HeaderError
	require.ErrorAs(t, err, &hdrErr)
	assert.Contains(t, hdrErr.Missing, ColTags)
	assert.Contains(t, hdrErr.Missing, ColPrice)
	assert.Contains(t, hdrErr.Missing, ColCost)
	assert.NotEmpty(t, hdrErr.Seen)
}

func TestAssembleNonNumericIDFatal(t *testing.T) {
	input := header + "\n" +
		"100,Lamp,lamp,,Active,9001,1,10,20,5,\n" +
		"broken-id,Oops,oops,,Active,9002,1,10,20,5,\n"

	_, _, err := newTestAssembler().Assemble(strings.NewReader(input))
	require.Error(t, err)

	var structErr *StructuralError
	require.ErrorAs(t, err, &structErr)
	assert.Equal(t, "broken-id", structErr.ProductID)
}

func TestAssembleUnparseableNumbersAreNull(t *testing.T) {
	input := header + "\n" +
		"100,Lamp,lamp,,Active,9001,first,n/a,twenty,?,\n"

	products, _, err := newTestAssembler().Assemble(strings.NewReader(input))
	require.NoError(t, err)
	v := products[0].Variants[0]
	assert.Equal(t, model.PositionSentinel, v.Position)
	assert.Nil(t, v.Price)
	assert.Nil(t, v.CompareAt)
	assert.Nil(t, v.Cost)
}

func TestAssembleTagDeduplicationIsCaseInsensitive(t *testing.T) {
	input := header + "\n" +
		`100,Lamp,lamp,"Sale, sale, SALE, Home",Active,9001,1,10,20,5,` + "\n"

	products, _, err := newTestAssembler().Assemble(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"Sale", "Home"}, products[0].Tags)
}

func TestAssembleScalarFromFirstNonEmptyRow(t *testing.T) {
	input := header + "\n" +
		"100,,,,,9001,2,10,20,5,\n" +
		"100,Lamp,lamp,Sale,Active,9002,1,10,20,5,\n"

	products, _, err := newTestAssembler().Assemble(strings.NewReader(input))
	require.NoError(t, err)
	p := products[0]
	assert.Equal(t, "Lamp", p.Title)
	assert.Equal(t, "Active", p.Status)
	assert.Equal(t, []string{"Sale"}, p.Tags)

	// Base variant comes from position, not row order.
	assert.Equal(t, "9002", p.BaseVariant().ID)
}

func TestAssembleReportsDetectedMetafieldColumn(t *testing.T) {
	input := header + "\n" +
		"100,Lamp,lamp,,Active,9001,1,10,20,5,\n"

	// The input header carries the suffixed form; instruction files must
	// address the column by that exact name, not the bare prefix.
	_, metaColumn, err := newTestAssembler().Assemble(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, metaPrefix+" [number]", metaColumn)
}

func TestAssembleMetafieldColumnFallsBackToPrefix(t *testing.T) {
	bare := "ID,Title,Handle,Tags,Status,Variant ID,Variant Position,Variant Price,Variant Compare At Price,Variant Cost"
	input := bare + "\n" +
		"100,Lamp,lamp,,Active,9001,1,10,20,5\n"

	products, metaColumn, err := newTestAssembler().Assemble(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, metaPrefix, metaColumn)
	assert.Nil(t, products[0].AsLowAs)
}

func TestAssembleEmptyInput(t *testing.T) {
	_, _, err := newTestAssembler().Assemble(strings.NewReader(""))
	require.Error(t, err)
}
