package chip8

import "testing"

// fakeDisplay records XorPixel calls without rendering anything, enough
// to exercise DRW's collision and wrap/clip behavior.
type fakeDisplay struct {
	lit     map[[2]int]bool
	cleared bool
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{lit: make(map[[2]int]bool)}
}

func (d *fakeDisplay) XorPixel(x, y int) bool {
	key := [2]int{x, y}
	was := d.lit[key]
	d.lit[key] = !was
	return was
}

func (d *fakeDisplay) Clear() {
	d.lit = make(map[[2]int]bool)
	d.cleared = true
}

func (d *fakeDisplay) Present() {}

type stubRng struct{ next byte }

func (r *stubRng) NextByte() byte { return r.next }

func newTestVM(t *testing.T) (*VM, *fakeDisplay) {
	t.Helper()
	disp := newFakeDisplay()
	vm := NewVM(disp)
	return vm, disp
}

func step(t *testing.T, vm *VM, rom []byte) {
	t.Helper()
	if err := vm.Load(rom); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := vm.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
}

func TestLoadResetsFontAndRegisters(t *testing.T) {
	vm, _ := newTestVM(t)
	vm.V[3] = 0xFF
	vm.I = 0x123

	if err := vm.Load([]byte{0x00, 0xE0}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if vm.PC != romBase {
		t.Errorf("PC = %#x; want %#x", vm.PC, romBase)
	}
	if vm.V[3] != 0 || vm.I != 0 {
		t.Errorf("registers not reset: V3=%d I=%#x", vm.V[3], vm.I)
	}
	if vm.Memory[0] != Font[0] {
		t.Errorf("font not installed at reset")
	}
}

func TestLoadRejectsOversizedROM(t *testing.T) {
	vm, _ := newTestVM(t)
	rom := make([]byte, memSize)

	if err := vm.Load(rom); err == nil {
		t.Error("Load should reject a ROM too large to fit")
	}
}

func TestStepAdvancesPC(t *testing.T) {
	vm, _ := newTestVM(t)
	step(t, vm, []byte{0x00, 0xE0})

	if vm.PC != romBase+2 {
		t.Errorf("PC = %#x; want %#x", vm.PC, romBase+2)
	}
}

func TestCallAndRet(t *testing.T) {
	vm, _ := newTestVM(t)
	// CALL 0x300; at 0x300: RET
	rom := make([]byte, 0x102)
	rom[0], rom[1] = 0x23, 0x00
	if err := vm.Load(rom); err != nil {
		t.Fatal(err)
	}
	vm.Memory[0x300], vm.Memory[0x301] = 0x00, 0xEE

	if err := vm.Step(); err != nil {
		t.Fatalf("CALL: %v", err)
	}
	if vm.PC != 0x300 || vm.SP != 1 {
		t.Fatalf("after CALL: PC=%#x SP=%d", vm.PC, vm.SP)
	}

	if err := vm.Step(); err != nil {
		t.Fatalf("RET: %v", err)
	}
	if vm.PC != romBase+2 || vm.SP != 0 {
		t.Errorf("after RET: PC=%#x SP=%d; want %#x 0", vm.PC, vm.SP, romBase+2)
	}
}

func TestRetUnderflowFaults(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0x00, 0xEE}); err != nil {
		t.Fatal(err)
	}

	err := vm.Step()
	if _, ok := err.(*StackUnderflowError); !ok {
		t.Errorf("Step() = %v (%T); want *StackUnderflowError", err, err)
	}
}

func TestCallOverflowFaults(t *testing.T) {
	vm, _ := newTestVM(t)
	rom := make([]byte, 2)
	rom[0], rom[1] = 0x22, 0x00 // CALL 0x200 (self, infinite recursion)
	if err := vm.Load(rom); err != nil {
		t.Fatal(err)
	}

	var err error
	for i := 0; i < stackDepth; i++ {
		if err = vm.Step(); err != nil {
			t.Fatalf("unexpected fault on call %d: %v", i, err)
		}
	}

	err = vm.Step()
	if _, ok := err.(*StackOverflowError); !ok {
		t.Errorf("Step() = %v (%T); want *StackOverflowError", err, err)
	}
}

func TestIllegalInstructionFaults(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0x50, 0x01}); err != nil { // 5xy1: not a legal 5-series word
		t.Fatal(err)
	}

	err := vm.Step()
	if _, ok := err.(*IllegalInstructionError); !ok {
		t.Errorf("Step() = %v (%T); want *IllegalInstructionError", err, err)
	}
}

func TestStepFaultsOnFetchPastEndOfMemory(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0x1F, 0xFF}); err != nil { // JP 0xFFF
		t.Fatal(err)
	}

	if err := vm.Step(); err != nil {
		t.Fatalf("JP 0xFFF: %v", err)
	}
	if vm.PC != memSize-1 {
		t.Fatalf("PC = %#x; want %#x", vm.PC, memSize-1)
	}

	err := vm.Step()
	if _, ok := err.(*MemoryFaultError); !ok {
		t.Errorf("Step() = %v (%T); want *MemoryFaultError", err, err)
	}
}

func TestAddCarryFlag(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0x84, 0x14}); err != nil { // ADD V4, V1
		t.Fatal(err)
	}
	vm.V[4], vm.V[1] = 0xFF, 0x02

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if vm.V[4] != 0x01 {
		t.Errorf("V4 = %#x; want 0x01", vm.V[4])
	}
	if vm.V[0xF] != 1 {
		t.Errorf("VF = %d; want 1 (carry)", vm.V[0xF])
	}
}

func TestSubBorrowFlag(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0x85, 0x65}); err != nil { // SUB V5, V6
		t.Fatal(err)
	}
	vm.V[5], vm.V[6] = 0x03, 0x05

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if vm.V[0xF] != 0 {
		t.Errorf("VF = %d; want 0 (borrow)", vm.V[0xF])
	}
	if vm.V[5] != 0xFE { // 0x03 - 0x05 wrapped mod 256
		t.Errorf("V5 = %#x; want %#x", vm.V[5], 0xFE)
	}
}

func TestShrInPlaceIgnoresVy(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0x81, 0x26}); err != nil { // SHR V1, V2
		t.Fatal(err)
	}
	vm.V[1] = 0x03 // low bit set
	vm.V[2] = 0xF0 // must be ignored

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if vm.V[1] != 0x01 {
		t.Errorf("V1 = %#x; want 0x01", vm.V[1])
	}
	if vm.V[0xF] != 1 {
		t.Errorf("VF = %d; want 1", vm.V[0xF])
	}
}

func TestBCD(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0xF3, 0x33}); err != nil { // LD B, V3
		t.Fatal(err)
	}
	vm.V[3] = 234
	vm.I = 0x300

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if vm.Memory[0x300] != 2 || vm.Memory[0x301] != 3 || vm.Memory[0x302] != 4 {
		t.Errorf("BCD = %d %d %d; want 2 3 4", vm.Memory[0x300], vm.Memory[0x301], vm.Memory[0x302])
	}
}

func TestSaveAndLoadRegisters(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0xF3, 0x55}); err != nil { // LD [I], V3
		t.Fatal(err)
	}
	for i := 0; i <= 3; i++ {
		vm.V[i] = byte(0x10 + i)
	}
	vm.I = 0x300

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= 3; i++ {
		if vm.Memory[0x300+i] != byte(0x10+i) {
			t.Errorf("Memory[%#x] = %#x; want %#x", 0x300+i, vm.Memory[0x300+i], byte(0x10+i))
		}
	}

	vm.V = [16]byte{}
	if err := vm.Load([]byte{0xF3, 0x65}); err != nil { // LD V3, [I]
		t.Fatal(err)
	}
	vm.I = 0x300
	for i := 0; i <= 3; i++ {
		vm.Memory[0x300+i] = byte(0x20 + i)
	}

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= 3; i++ {
		if vm.V[i] != byte(0x20+i) {
			t.Errorf("V%d = %#x; want %#x", i, vm.V[i], byte(0x20+i))
		}
	}
}

func TestMemoryFaultOnOutOfRangeIndex(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0xFF, 0x55}); err != nil { // LD [I], VF
		t.Fatal(err)
	}
	vm.I = memSize - 1

	err := vm.Step()
	if _, ok := err.(*MemoryFaultError); !ok {
		t.Errorf("Step() = %v (%T); want *MemoryFaultError", err, err)
	}
}

func TestDrawSpriteXorAndCollision(t *testing.T) {
	vm, disp := newTestVM(t)
	if err := vm.Load([]byte{0xD0, 0x11}); err != nil { // DRW V0, V1, 1
		t.Fatal(err)
	}
	vm.Memory[vm.I] = 0xF0 // top nibble lit
	vm.V[0], vm.V[1] = 0, 0

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if vm.V[0xF] != 0 {
		t.Errorf("VF = %d; want 0 (no collision on first draw)", vm.V[0xF])
	}
	for x := 0; x < 4; x++ {
		if !disp.lit[[2]int{x, 0}] {
			t.Errorf("pixel (%d,0) should be lit", x)
		}
	}

	// draw the same sprite again: every lit pixel should toggle off and
	// VF should report the collision.
	if err := vm.Load([]byte{0xD0, 0x11}); err != nil {
		t.Fatal(err)
	}
	disp.lit[[2]int{0, 0}] = true
	disp.lit[[2]int{1, 0}] = true
	disp.lit[[2]int{2, 0}] = true
	disp.lit[[2]int{3, 0}] = true
	vm.Memory[vm.I] = 0xF0
	vm.V[0], vm.V[1] = 0, 0

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if vm.V[0xF] != 1 {
		t.Errorf("VF = %d; want 1 (collision)", vm.V[0xF])
	}
}

func TestDrawSpriteClipsAtEdge(t *testing.T) {
	vm, disp := newTestVM(t)
	if err := vm.Load([]byte{0xD0, 0x11}); err != nil {
		t.Fatal(err)
	}
	vm.Memory[vm.I] = 0xFF // all 8 columns lit
	vm.V[0] = screenW - 2  // only 2 columns should draw
	vm.V[1] = 0

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if !disp.lit[[2]int{screenW - 2, 0}] || !disp.lit[[2]int{screenW - 1, 0}] {
		t.Error("the two in-bounds columns should be lit")
	}
	if len(disp.lit) != 2 {
		t.Errorf("got %d lit pixels; want exactly 2 (clipped, not wrapped)", len(disp.lit))
	}
}

func TestSkpSknp(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0xE0, 0x9E}); err != nil { // SKP V0
		t.Fatal(err)
	}
	vm.V[0] = 5
	vm.Keys[5] = true

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if vm.PC != romBase+4 {
		t.Errorf("PC = %#x; want %#x (SKP should skip when key is down)", vm.PC, romBase+4)
	}

	if err := vm.Load([]byte{0xE0, 0xA1}); err != nil { // SKNP V0
		t.Fatal(err)
	}
	vm.V[0] = 5 // Load released every key

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if vm.PC != romBase+4 {
		t.Errorf("PC = %#x; want %#x (SKNP should skip when key is up)", vm.PC, romBase+4)
	}
}

func TestWaitForKeyRewindsPC(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0xF0, 0x0A}); err != nil { // LD V0, K
		t.Fatal(err)
	}

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if vm.PC != romBase {
		t.Errorf("PC = %#x; want %#x (no key down, should rewind)", vm.PC, romBase)
	}

	vm.Keys[7] = true
	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if vm.PC != romBase+2 {
		t.Errorf("PC = %#x; want %#x (key down, should advance)", vm.PC, romBase+2)
	}
	if vm.V[0] != 7 {
		t.Errorf("V0 = %d; want 7", vm.V[0])
	}
}

func TestRndMasksWithKK(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0xC0, 0x0F}); err != nil { // RND V0, 0x0F
		t.Fatal(err)
	}
	vm.Rng = &stubRng{next: 0xFF}

	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if vm.V[0] != 0x0F {
		t.Errorf("V0 = %#x; want 0x0F", vm.V[0])
	}
}

func TestTickTimersSaturatesAtZero(t *testing.T) {
	vm, _ := newTestVM(t)
	vm.DT, vm.ST = 1, 0

	vm.TickTimers()
	if vm.DT != 0 {
		t.Errorf("DT = %d; want 0", vm.DT)
	}

	vm.TickTimers()
	if vm.DT != 0 || vm.ST != 0 {
		t.Errorf("DT=%d ST=%d; want both 0 after saturating", vm.DT, vm.ST)
	}
}

func TestBreakpointHaltsStep(t *testing.T) {
	vm, _ := newTestVM(t)
	if err := vm.Load([]byte{0x00, 0xE0, 0x00, 0xEE}); err != nil {
		t.Fatal(err)
	}
	vm.SetBreakpoint(Breakpoint{Address: romBase + 2, Reason: "after CLS"})

	err := vm.Step()
	bp, ok := err.(Breakpoint)
	if !ok {
		t.Fatalf("Step() = %v (%T); want Breakpoint", err, err)
	}
	if bp.Reason != "after CLS" {
		t.Errorf("breakpoint reason = %q; want %q", bp.Reason, "after CLS")
	}
}
