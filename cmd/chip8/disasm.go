package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashwinp/chip8kit/chip8"
)

// disasmCmd disassembles a ROM image into a best-effort listing.
var disasmCmd = &cobra.Command{
	Use:   "disasm <input.ch8> <output.asm>",
	Short: "disassemble a CHIP-8 ROM image into a source listing",
	Args:  cobra.ExactArgs(2),
	RunE:  runDisasm,
}

func runDisasm(cmd *cobra.Command, args []string) error {
	rom, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	listing := chip8.Disassemble(rom)

	if err := os.WriteFile(args[1], []byte(listing), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", args[1], err)
	}

	fmt.Printf("%s: %d instructions\n", args[1], len(rom)/2)
	return nil
}
