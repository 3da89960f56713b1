package model

// Instruction commands understood by the downstream bulk importer.
const (
	CommandUpdate      = "UPDATE"
	TagsCommandReplace = "REPLACE"
)

// InstructionRow is one physical row of the corrective instruction file.
// A product's logical update decomposes into a primary row (product-level
// fields plus at most one variant price) and zero or more secondary rows
// carrying only a variant price. Every row with a VariantID must also carry
// a VariantPrice; the engine enforces that before anything is written.
type InstructionRow struct {
	ID             string
	Command        string
	Tags           string
	TagsCommand    string
	Status         string
	VariantID      string
	VariantCommand string
	VariantPrice   string
	Metafield      string // current or new advertised-from value
}
