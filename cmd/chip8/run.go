package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashwinp/chip8kit/chip8"
	"github.com/ashwinp/chip8kit/host"
)

// refreshRate matches bradford-hamilton-chippy/main.go's 60 Hz ticker,
// which also drives DT/ST timer decrement.
const refreshRate = 60

// runCmd loads a ROM (or, like the teacher's LoadFile, an assembly
// source file) and runs it against a terminal host.
var runCmd = &cobra.Command{
	Use:   "run <rom.ch8>",
	Short: "run a CHIP-8 ROM in a terminal window",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	asm, log, err := loadProgram(data)
	if err != nil {
		return err
	}

	term, err := host.NewTerminal()
	if err != nil {
		return fmt.Errorf("initializing terminal: %w", err)
	}
	defer term.Close()

	vm := chip8.NewVM(term)

	if err := vm.LoadAssembly(asm); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Second / refreshRate)
	defer ticker.Stop()

	last := time.Now()
	paused := false

	for range ticker.C {
		if term.Quit() {
			break
		}

		now := time.Now()
		elapsed := now.Sub(last)
		last = now

		for k := 0; k < 16; k++ {
			if term.IsDown(k) {
				vm.PressKey(k)
			} else {
				vm.ReleaseKey(k)
			}
		}

		vm.TickTimers()

		if paused {
			continue
		}

		if err := vm.Process(elapsed); err != nil {
			var bp chip8.Breakpoint
			if errors.As(err, &bp) {
				log.Log(bp.Error())
				paused = true
				continue
			}

			term.Close()
			log.Dump(func(s string) { fmt.Fprintln(os.Stderr, s) })
			return fmt.Errorf("%s: %w", args[0], err)
		}
	}

	term.Close()
	log.Dump(func(s string) { fmt.Fprintln(os.Stderr, s) })

	return nil
}

// loadProgram decides whether data is assembly source or a raw ROM
// image, generalizing the teacher's LoadFile (which dispatched on file
// extension) to sniff content instead: a file containing only
// printable ASCII/whitespace is assembled, anything else is loaded as
// a ROM image directly.
func loadProgram(data []byte) (*chip8.Assembly, *runLog, error) {
	log := newRunLog()

	if looksLikeSource(data) {
		asm := chip8.Assemble(string(data))
		if len(asm.Diagnostics) > 0 {
			reporter := chip8.Reporter{Source: string(data)}
			return nil, nil, errors.New(reporter.Format(asm.Diagnostics))
		}
		log.Log("assembled", fmt.Sprint(len(asm.ROM)), "bytes")
		return asm, log, nil
	}

	log.Log("loaded ROM image,", fmt.Sprint(len(data)), "bytes")
	return &chip8.Assembly{ROM: data}, log, nil
}

func looksLikeSource(data []byte) bool {
	for _, b := range data {
		if b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		if b < 0x20 || b > 0x7E {
			return false
		}
	}
	return true
}
