/* Copyright (c) 2017 Jeffrey Massung
 *
 * This software is provided 'as-is', without any express or implied
 * warranty.  In no event will the authors be held liable for any damages
 * arising from the use of this software.
 *
 * Permission is granted to anyone to use this software for any purpose,
 * including commercial applications, and to alter it and redistribute it
 * freely, subject to the following restrictions:
 *
 * 1. The origin of this software must not be misrepresented; you must not
 *    claim that you wrote the original software. If you use this software
 *    in a product, an acknowledgment in the product documentation would be
 *    appreciated but is not required.
 *
 * 2. Altered source versions must be plainly marked as such, and must not be
 *    misrepresented as being the original software.
 *
 * 3. This notice may not be removed or altered from any source distribution.
 */

package chip8

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

const (
	memSize    = 0x1000
	screenW    = 64
	screenH    = 32
	stackDepth = 16
)

// IllegalInstructionError is a fatal runtime fault: the fetched word does
// not decode to any of the 35 CHIP-8 instructions.
type IllegalInstructionError struct {
	PC   uint16
	Word uint16
}

func (e *IllegalInstructionError) Error() string {
	return fmt.Sprintf("illegal instruction %04X at %04X", e.Word, e.PC)
}

// StackOverflowError is a fatal runtime fault: CALL with SP already at
// its 16-entry limit.
type StackOverflowError struct{ PC uint16 }

func (e *StackOverflowError) Error() string { return fmt.Sprintf("stack overflow at %04X", e.PC) }

// StackUnderflowError is a fatal runtime fault: RET with an empty stack.
type StackUnderflowError struct{ PC uint16 }

func (e *StackUnderflowError) Error() string { return fmt.Sprintf("stack underflow at %04X", e.PC) }

// MemoryFaultError is a fatal runtime fault: an access through I, or an
// instruction fetch at PC, beyond the 4096-byte address space.
type MemoryFaultError struct {
	PC      uint16
	Address int
}

func (e *MemoryFaultError) Error() string {
	return fmt.Sprintf("memory fault accessing %04X at %04X", e.Address, e.PC)
}

// Display is the host contract for presenting the framebuffer (§6).
// XorPixel XORs a single lit pixel into (x, y) and reports whether a
// previously-set pixel was turned off there, driving the DRW collision
// flag.
type Display interface {
	XorPixel(x, y int) (wasSet bool)
	Clear()
	Present()
}

// Keypad is the host contract for the 16-key keypad (§6). The VM itself
// calls neither method: it reads its own Keys array, which the host
// updates through PressKey/ReleaseKey, and Fx0A is an idempotent,
// re-executing Step rather than a blocking call into the host (§9).
// IsDown and WaitAny are accessors for host code of its own.
type Keypad interface {
	IsDown(key int) bool
	WaitAny() (key int, ok bool)
}

// Rng is the host contract for CHIP-8's pseudo-random byte source (§6).
type Rng interface {
	NextByte() byte
}

// mathRandRng is the default Rng, backed by math/rand, matching the
// teacher's use of math/rand for RND (chip8.go's loadRandom).
type mathRandRng struct {
	r *rand.Rand
}

// NewRng returns the default Rng implementation.
func NewRng() Rng {
	return &mathRandRng{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (m *mathRandRng) NextByte() byte { return byte(m.r.Intn(256)) }

// Breakpoint mirrors the assembler's Breakpoint (§ SUPPLEMENTAL FEATURES)
// as a VM-side debugging hook: Step returns it as an error without
// otherwise altering the fetch/decode/execute contract, adapted from the
// teacher's Breakpoint.Error().
func (b Breakpoint) Error() string {
	if b.Conditional {
		return fmt.Sprintf("assert hit at %04X: %s", b.Address, b.Reason)
	}
	return fmt.Sprintf("breakpoint hit at %04X: %s", b.Address, b.Reason)
}

// VM is a CHIP-8 virtual machine: registers, memory, stack, timers, PC,
// the 64x32 framebuffer, and the pseudo-random source (§3).
type VM struct {
	Memory [memSize]byte
	V      [16]byte
	I      uint16
	PC     uint16
	SP     uint8
	Stack  [stackDepth]uint16
	DT, ST byte

	Keys [16]bool

	Display Display
	Rng     Rng

	romLen int

	// Cycles/CyclesPerSecond/Process give a host a ready-made "how many
	// instructions should have run by now" accounting, adapted from the
	// teacher's Speed/Cycles/Clock fields (SPEC_FULL.md "run-speed
	// accounting").
	Cycles          int64
	CyclesPerSecond int64
	elapsed         time.Duration

	Breakpoints map[uint16]Breakpoint
}

// NewVM creates a VM with an empty ROM. Load or LoadAssembly must be
// called before Step.
func NewVM(display Display) *VM {
	vm := &VM{
		Display:         display,
		Rng:             NewRng(),
		CyclesPerSecond: 700,
		Breakpoints:     make(map[uint16]Breakpoint),
	}
	return vm
}

// Load copies rom into memory at 0x200 and resets all other state
// (§4.6 "Startup"). It rejects ROMs too large to fit (§3).
func (vm *VM) Load(rom []byte) error {
	if len(rom) > memSize-romBase {
		return errors.New("chip8: ROM too large to fit in memory")
	}

	vm.romLen = len(rom)
	vm.reset()
	copy(vm.Memory[romBase:], rom)

	return nil
}

// LoadAssembly loads the ROM produced by Assemble, also installing any
// breakpoints the source declared.
func (vm *VM) LoadAssembly(asm *Assembly) error {
	if err := vm.Load(asm.ROM); err != nil {
		return err
	}
	for _, b := range asm.Breakpoints {
		vm.SetBreakpoint(b)
	}
	return nil
}

// reset zeroes all VM state and writes the hex font, matching the
// teacher's Reset.
func (vm *VM) reset() {
	vm.Memory = [memSize]byte{}
	copy(vm.Memory[fontBase:], Font[:])

	vm.V = [16]byte{}
	vm.I = 0
	vm.PC = romBase
	vm.SP = 0
	vm.Stack = [stackDepth]uint16{}
	vm.DT, vm.ST = 0, 0
	vm.Keys = [16]bool{}
	vm.Cycles = 0
	vm.elapsed = 0
}

// PressKey and ReleaseKey let the host update keypad state out-of-band
// (§3); the VM only reads it at SKP/SKNP/Fx0A instruction points and
// tolerates stale reads (§5). Grounded on the teacher's PressKey/
// ReleaseKey pair (chip8.go), minus the teacher's push-based wait-key
// unblock — Fx0A here is handled entirely inside Step (§9).
func (vm *VM) PressKey(key int) {
	if key >= 0 && key < 16 {
		vm.Keys[key] = true
	}
}

func (vm *VM) ReleaseKey(key int) {
	if key >= 0 && key < 16 {
		vm.Keys[key] = false
	}
}

// SetBreakpoint installs a breakpoint at a ROM address.
func (vm *VM) SetBreakpoint(b Breakpoint) {
	if b.Address >= romBase && int(b.Address) < memSize {
		vm.Breakpoints[b.Address] = b
	}
}

// ClearBreakpoints removes every installed breakpoint.
func (vm *VM) ClearBreakpoints() {
	vm.Breakpoints = make(map[uint16]Breakpoint)
}

// StepOverBreakpoint arms a one-shot breakpoint immediately after the
// current instruction if (and only if) it is a CALL, so a debugger's
// "step over" can skip an entire subroutine. Adapted from the teacher's
// StepOverBreakpoint.
func (vm *VM) StepOverBreakpoint() bool {
	if vm.Memory[vm.PC]&0xF0 != 0x20 {
		return false
	}

	next := vm.PC + 2
	if _, exists := vm.Breakpoints[next]; !exists {
		vm.SetBreakpoint(Breakpoint{Address: next, Reason: "step over", Conditional: false})
	}

	return true
}

// TickTimers decrements DT and ST by 1 each, saturating at 0. It is
// driven by the host's 60 Hz clock, independent of instruction rate
// (§4.6 "Timer cadence").
func (vm *VM) TickTimers() {
	if vm.DT > 0 {
		vm.DT--
	}
	if vm.ST > 0 {
		vm.ST--
	}
}

// Process steps the VM enough times to account for elapsed wall-clock
// time at CyclesPerSecond, adapted from the teacher's Process(paused
// bool) (SPEC_FULL.md "run-speed accounting"). It stops early (without
// error) if an instruction is waiting on a key (Fx0A).
func (vm *VM) Process(elapsed time.Duration) error {
	vm.elapsed += elapsed
	target := vm.elapsed.Seconds() * float64(vm.CyclesPerSecond)

	for float64(vm.Cycles) < target {
		waiting := vm.waitingOnKey()

		if err := vm.Step(); err != nil {
			return err
		}

		if waiting {
			break // let the host re-poll keys/timers before spinning further
		}
	}

	return nil
}

func (vm *VM) waitingOnKey() bool {
	word, err := vm.fetch(vm.PC)
	if err != nil {
		return false
	}
	instr, ok := Decode(word)
	return ok && instr.Op == OpLDVxK
}

// fetch reads the big-endian 16-bit word at pc. A ROM that jumps to the
// last byte of memory (e.g. "JP 0xFFF", legal per the assembler's own
// range check) has no second byte to pair it with; that is a memory
// fault, not a process crash, so the bounds check lives here rather than
// trusting every caller to index vm.Memory directly.
func (vm *VM) fetch(pc uint16) (uint16, error) {
	if int(pc)+1 >= memSize {
		return 0, &MemoryFaultError{PC: pc, Address: int(pc) + 1}
	}
	return uint16(vm.Memory[pc])<<8 | uint16(vm.Memory[pc+1]), nil
}

// Step executes exactly one instruction (§4.6 "Cycle"): fetch, decode,
// execute. Runtime faults are fatal and returned to the caller, never
// retried or swallowed (§7).
func (vm *VM) Step() error {
	pc := vm.PC
	word, err := vm.fetch(pc)
	if err != nil {
		return err
	}
	vm.PC += 2

	instr, ok := Decode(word)
	if !ok {
		return &IllegalInstructionError{PC: pc, Word: word}
	}

	if err := vm.execute(pc, instr); err != nil {
		return err
	}

	vm.Cycles++

	if bp, ok := vm.Breakpoints[vm.PC]; ok {
		if !bp.Conditional || vm.V[0xF] != 0 {
			if bp.Reason == "step over" {
				delete(vm.Breakpoints, vm.PC)
			}
			return bp
		}
	}

	return nil
}

func (vm *VM) execute(pc uint16, instr Instruction) error {
	x, y := instr.Vx, instr.Vy

	switch instr.Op {
	case OpCLS:
		if vm.Display != nil {
			vm.Display.Clear()
		}
	case OpRET:
		if vm.SP == 0 {
			return &StackUnderflowError{PC: pc}
		}
		vm.SP--
		vm.PC = vm.Stack[vm.SP]
	case OpSYS:
		// deliberately a no-op, preserving compatibility with historical
		// ROMs that SYS-call the RCA 1802 interpreter (§7).
	case OpJP:
		vm.PC = instr.NNN
	case OpCALL:
		if int(vm.SP) >= stackDepth {
			return &StackOverflowError{PC: pc}
		}
		vm.Stack[vm.SP] = vm.PC
		vm.SP++
		vm.PC = instr.NNN
	case OpSEVxByte:
		if vm.V[x] == instr.KK {
			vm.PC += 2
		}
	case OpSNEVxByte:
		if vm.V[x] != instr.KK {
			vm.PC += 2
		}
	case OpSEVxVy:
		if vm.V[x] == vm.V[y] {
			vm.PC += 2
		}
	case OpLDVxByte:
		vm.V[x] = instr.KK
	case OpADDVxByte:
		vm.V[x] += instr.KK
	case OpLDVxVy:
		vm.V[x] = vm.V[y]
	case OpOR:
		vm.V[x] |= vm.V[y]
	case OpAND:
		vm.V[x] &= vm.V[y]
	case OpXOR:
		vm.V[x] ^= vm.V[y]
	case OpADDVxVy:
		sum := uint16(vm.V[x]) + uint16(vm.V[y])
		vm.V[x] = byte(sum)
		vm.setFlag(sum > 0xFF)
	case OpSUB:
		borrow := vm.V[x] >= vm.V[y]
		vm.V[x] = vm.V[x] - vm.V[y]
		vm.setFlag(borrow)
	case OpSHR:
		lsb := vm.V[x] & 1
		vm.V[x] >>= 1
		vm.setFlag(lsb != 0)
	case OpSUBN:
		borrow := vm.V[y] >= vm.V[x]
		vm.V[x] = vm.V[y] - vm.V[x]
		vm.setFlag(borrow)
	case OpSHL:
		msb := vm.V[x] >> 7 & 1
		vm.V[x] <<= 1
		vm.setFlag(msb != 0)
	case OpSNEVxVy:
		if vm.V[x] != vm.V[y] {
			vm.PC += 2
		}
	case OpLDIaddr:
		vm.I = instr.NNN
	case OpJPV0:
		vm.PC = instr.NNN + uint16(vm.V[0])
	case OpRND:
		vm.V[x] = vm.Rng.NextByte() & instr.KK
	case OpDRW:
		return vm.drawSprite(pc, x, y, instr.N)
	case OpSKP:
		if vm.Keys[vm.V[x]&0xF] {
			vm.PC += 2
		}
	case OpSKNP:
		if !vm.Keys[vm.V[x]&0xF] {
			vm.PC += 2
		}
	case OpLDVxDT:
		vm.V[x] = vm.DT
	case OpLDVxK:
		if key, ok := vm.anyKeyDown(); ok {
			vm.V[x] = byte(key)
		} else {
			vm.PC -= 2 // re-execute this instruction next Step (§4.6 point 4, §9)
		}
	case OpLDDTVx:
		vm.DT = vm.V[x]
	case OpLDSTVx:
		vm.ST = vm.V[x]
	case OpADDIVx:
		vm.I = (vm.I + uint16(vm.V[x])) & 0xFFFF
	case OpLDFVx:
		vm.I = fontBase + uint16(vm.V[x]&0xF)*5
	case OpLDBVx:
		return vm.storeBCD(pc, vm.V[x])
	case OpLDIVx:
		return vm.saveRegisters(pc, x)
	case OpLDVxI:
		return vm.loadRegisters(pc, x)
	}

	return nil
}

func (vm *VM) setFlag(cond bool) {
	if cond {
		vm.V[0xF] = 1
	} else {
		vm.V[0xF] = 0
	}
}

func (vm *VM) anyKeyDown() (int, bool) {
	for k := 0; k < 16; k++ {
		if vm.Keys[k] {
			return k, true
		}
	}
	return 0, false
}

func (vm *VM) storeBCD(pc uint16, v byte) error {
	if int(vm.I)+2 >= memSize {
		return &MemoryFaultError{PC: pc, Address: int(vm.I) + 2}
	}
	vm.Memory[vm.I] = v / 100
	vm.Memory[vm.I+1] = (v / 10) % 10
	vm.Memory[vm.I+2] = v % 10
	return nil
}

func (vm *VM) saveRegisters(pc uint16, x byte) error {
	if int(vm.I)+int(x) >= memSize {
		return &MemoryFaultError{PC: pc, Address: int(vm.I) + int(x)}
	}
	for i := byte(0); i <= x; i++ {
		vm.Memory[vm.I+uint16(i)] = vm.V[i]
	}
	return nil
}

func (vm *VM) loadRegisters(pc uint16, x byte) error {
	if int(vm.I)+int(x) >= memSize {
		return &MemoryFaultError{PC: pc, Address: int(vm.I) + int(x)}
	}
	for i := byte(0); i <= x; i++ {
		vm.V[i] = vm.Memory[vm.I+uint16(i)]
	}
	return nil
}

// drawSprite XOR-draws an n-byte sprite from memory[I:] at (V[x], V[y])
// (§4.6 "Sprite draw"). The origin wraps modulo the screen size; pixels
// that fall off the right/bottom edge clip rather than wrap. VF is
// written last, after any other register writes this instruction might
// have made (§9 "sprite-draw collision flag") — DRW never touches other
// registers, so that ordering is automatic here, but the comment records
// the invariant for anyone adding a fused instruction later.
func (vm *VM) drawSprite(pc uint16, x, y, n byte) error {
	x0 := int(vm.V[x]) % screenW
	y0 := int(vm.V[y]) % screenH

	collision := false

	for r := 0; r < int(n); r++ {
		if y0+r >= screenH {
			break
		}

		addr := (int(vm.I) + r) % memSize
		row := vm.Memory[addr]

		for b := 0; b < 8; b++ {
			if x0+b >= screenW {
				continue
			}

			pixel := row >> (7 - uint(b)) & 1
			if pixel == 1 {
				if vm.Display != nil {
					if vm.Display.XorPixel(x0+b, y0+r) {
						collision = true
					}
				}
			}
		}
	}

	vm.setFlag(collision)

	if vm.Display != nil {
		vm.Display.Present()
	}

	return nil
}

// DelayTimer and SoundTimer are read-only accessors, mirroring the
// teacher's GetDelayTimer/GetSoundTimer naming for host status displays.
func (vm *VM) DelayTimer() byte { return vm.DT }
func (vm *VM) SoundTimer() byte { return vm.ST }
