package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashwinp/chip8kit/chip8"
)

// asmCmd assembles a source file into a ROM image, grounded in
// bradford-hamilton-chippy's cmd/run.go's "one positional argument,
// fail loud" style.
var asmCmd = &cobra.Command{
	Use:   "asm <input.asm> <output.ch8>",
	Short: "assemble a CHIP-8 source file into a ROM image",
	Args:  cobra.ExactArgs(2),
	RunE:  runAsm,
}

func runAsm(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	asm := chip8.Assemble(string(source))
	if len(asm.Diagnostics) > 0 {
		reporter := chip8.Reporter{Source: string(source)}
		fmt.Fprint(os.Stderr, reporter.Format(asm.Diagnostics))
		return fmt.Errorf("%s: assembly failed", args[0])
	}

	if err := os.WriteFile(args[1], asm.ROM, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", args[1], err)
	}

	fmt.Printf("%s: %d bytes\n", args[1], len(asm.ROM))
	return nil
}
