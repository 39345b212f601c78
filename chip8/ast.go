package chip8

// StatementKind tags the four statement shapes produced by the parser.
type StatementKind int

const (
	StmtLabelDef StatementKind = iota
	StmtInstr
	StmtDirective
	StmtBreakpoint
)

// OperandKind tags what an Operand actually holds.
type OperandKind int

const (
	OperandRegister OperandKind = iota // Vx
	OperandI
	OperandDT
	OperandST
	OperandK
	OperandF
	OperandB
	OperandIndirectI // [I]
	OperandNumber    // resolved numeric value
	OperandIdent     // unresolved label reference, fixed up in pass two
)

// Operand holds either a resolved numeric value or an identifier to be
// resolved against the symbol table in pass two (§3 "Statement").
type Operand struct {
	Kind  OperandKind
	Reg   byte
	Num   int
	Ident string
	Span  Span
}

// Statement is one parsed line of assembly: a label definition, an
// instruction with symbolic operands, a data directive, or a breakpoint
// pseudo-directive (§ SUPPLEMENTAL FEATURES in SPEC_FULL.md).
type Statement struct {
	Kind StatementKind
	Span Span

	Label string // StmtLabelDef

	Mnemonic string    // StmtInstr
	Operands []Operand // StmtInstr

	Directive string    // StmtDirective: "byte" | "word" | "space"
	Args      []Operand // StmtDirective: one or more numeric arguments

	Conditional bool   // StmtBreakpoint: true for ASSERT, false for BREAK
	Reason      string // StmtBreakpoint
}
