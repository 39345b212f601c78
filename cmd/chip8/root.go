package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base for all commands, grounded in
// bradford-hamilton-chippy's cmd/root.go subcommand-registration
// pattern.
var rootCmd = &cobra.Command{
	Use:   "chip8",
	Short: "chip8 is a CHIP-8 assembler, disassembler, and interpreter",
	Long:  "chip8 assembles, disassembles, and runs CHIP-8 programs.",
}

func init() {
	rootCmd.AddCommand(asmCmd)
	rootCmd.AddCommand(disasmCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
