package chip8

import "fmt"

// Disassemble performs a linear sweep over a ROM image in 2-byte
// strides, emitting one assembly line per word (§4.5). It does not try
// to distinguish code from data — a word that fails to decode becomes a
// ".word 0x..." directive rather than an attempt to guess — recovery of
// original labels is impossible without more information, so this pass
// is deliberately lossy on that axis.
func Disassemble(rom []byte) string {
	var out string

	for i := 0; i+1 < len(rom); i += 2 {
		word := uint16(rom[i])<<8 | uint16(rom[i+1])
		out += disassembleWord(word) + "\n"
	}

	// an odd trailing byte has no paired word to decode; surface it
	// as a single raw byte so disassemble(assemble(S)) stays byte-exact.
	if len(rom)%2 == 1 {
		out += fmt.Sprintf(".byte 0x%X\n", rom[len(rom)-1])
	}

	return out
}

func disassembleWord(word uint16) string {
	instr, ok := Decode(word)
	if !ok {
		return fmt.Sprintf(".word 0x%X", word)
	}

	switch instr.Op {
	case OpCLS, OpRET:
		return instr.Mnemonic()
	case OpSYS, OpJP, OpCALL:
		return fmt.Sprintf("%s 0x%X", instr.Mnemonic(), instr.NNN)
	case OpSEVxByte, OpSNEVxByte, OpLDVxByte, OpADDVxByte, OpRND:
		return fmt.Sprintf("%s V%X, 0x%X", instr.Mnemonic(), instr.Vx, instr.KK)
	case OpSEVxVy, OpSNEVxVy, OpLDVxVy, OpOR, OpAND, OpXOR, OpADDVxVy, OpSUB, OpSUBN:
		return fmt.Sprintf("%s V%X, V%X", instr.Mnemonic(), instr.Vx, instr.Vy)
	case OpSHR, OpSHL:
		// Vy is encoded but semantically unused by the in-place shift
		// (§9 open question); it is always printed so reassembling the
		// listing reproduces the exact original word.
		return fmt.Sprintf("%s V%X, V%X", instr.Mnemonic(), instr.Vx, instr.Vy)
	case OpLDIaddr:
		return fmt.Sprintf("LD I, 0x%X", instr.NNN)
	case OpJPV0:
		return fmt.Sprintf("JP V0, 0x%X", instr.NNN)
	case OpDRW:
		return fmt.Sprintf("DRW V%X, V%X, 0x%X", instr.Vx, instr.Vy, instr.N)
	case OpSKP, OpSKNP:
		return fmt.Sprintf("%s V%X", instr.Mnemonic(), instr.Vx)
	case OpLDVxDT:
		return fmt.Sprintf("LD V%X, DT", instr.Vx)
	case OpLDVxK:
		return fmt.Sprintf("LD V%X, K", instr.Vx)
	case OpLDDTVx:
		return fmt.Sprintf("LD DT, V%X", instr.Vx)
	case OpLDSTVx:
		return fmt.Sprintf("LD ST, V%X", instr.Vx)
	case OpADDIVx:
		return fmt.Sprintf("ADD I, V%X", instr.Vx)
	case OpLDFVx:
		return fmt.Sprintf("LD F, V%X", instr.Vx)
	case OpLDBVx:
		return fmt.Sprintf("LD B, V%X", instr.Vx)
	case OpLDIVx:
		return fmt.Sprintf("LD [I], V%X", instr.Vx)
	case OpLDVxI:
		return fmt.Sprintf("LD V%X, [I]", instr.Vx)
	}

	return fmt.Sprintf(".word 0x%X", word)
}
