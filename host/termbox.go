// Package host provides a terminal-based Display and Keypad for the
// chip8 VM, built on github.com/nsf/termbox-go. Grounded on
// ejholmes-chip8's graphics.go/keypad.go: the same key map and the same
// choice of termbox as the terminal backend, generalized from its
// blocking GetKey() into the polling IsDown()/WaitAny() the VM's
// non-blocking Fx0A loop expects (SPEC_FULL.md §6, §9).
package host

import (
	"time"

	runewidth "github.com/mattn/go-runewidth"
	"github.com/nsf/termbox-go"

	"github.com/ashwinp/chip8kit/chip8"
)

// keyHoldDuration is how long IsDown reports a key pressed after a
// termbox key-down event, since termbox never reports key-up.
const keyHoldDuration = 150 * time.Millisecond

// keyMap reproduces ejholmes-chip8's keyboard layout exactly: the top
// four rows of a QWERTY keyboard mapped onto the CHIP-8 keypad's 4x4
// grid (1234/qwer/asdf/zxcv -> 123C/456D/789E/A0BF).
var keyMap = map[rune]int{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xC,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xD,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xE,
	'z': 0xA, 'x': 0x0, 'c': 0xB, 'v': 0xF,
}

// runeMap is keyMap inverted, from CHIP-8 key to keyboard rune. Nothing
// else in this package reads it.
var runeMap = func() map[int]rune {
	m := make(map[int]rune, len(keyMap))
	for r, k := range keyMap {
		m[k] = r
	}
	return m
}()

const (
	lit    = termbox.ColorWhite
	unlit  = termbox.ColorBlack
	border = termbox.ColorDefault
)

// Terminal is a Display and Keypad backed by termbox-go. Because termbox
// only reports key-down events, Terminal treats every reported key as
// "down" until a timer clears it keyHoldDuration later — adequate for
// CHIP-8's polling-style key reads (§3).
type Terminal struct {
	down  [16]bool
	quit  bool
	events chan termbox.Event
}

// NewTerminal initializes termbox and starts the background event pump.
// Callers must call Close when done.
func NewTerminal() (*Terminal, error) {
	if err := termbox.Init(); err != nil {
		return nil, err
	}
	termbox.SetOutputMode(termbox.OutputNormal)
	termbox.Clear(unlit, border)
	termbox.Flush()

	t := &Terminal{events: make(chan termbox.Event, 16)}
	go t.pump()

	return t, nil
}

// Close restores the terminal to its normal mode.
func (t *Terminal) Close() {
	termbox.Close()
}

// Quit reports whether the escape key has been seen, mirroring
// ejholmes-chip8's escapeKey-triggers-ErrQuit convention.
func (t *Terminal) Quit() bool { return t.quit }

func (t *Terminal) pump() {
	for {
		ev := termbox.PollEvent()
		if ev.Type != termbox.EventKey {
			continue
		}
		if ev.Key == termbox.KeyEsc {
			t.quit = true
			continue
		}
		if key, ok := keyMap[ev.Ch]; ok {
			t.down[key] = true
			time.AfterFunc(keyHoldDuration, func() { t.down[key] = false })
		}
	}
}

// IsDown implements chip8.Keypad.
func (t *Terminal) IsDown(key int) bool {
	if key < 0 || key >= 16 {
		return false
	}
	return t.down[key]
}

// WaitAny implements chip8.Keypad by scanning the current down-state; it
// never blocks, matching the VM's own non-blocking Fx0A implementation.
func (t *Terminal) WaitAny() (int, bool) {
	for k := 0; k < 16; k++ {
		if t.down[k] {
			return k, true
		}
	}
	return 0, false
}

// XorPixel implements chip8.Display by toggling one terminal cell. Each
// CHIP-8 pixel is drawn as two terminal columns so the 64-wide display
// reads as roughly square.
func (t *Terminal) XorPixel(x, y int) bool {
	cx := x * 2
	cell := termbox.GetCell(cx, y)
	wasSet := cell.Bg == lit

	bg := unlit
	if !wasSet {
		bg = lit
	}

	termbox.SetCell(cx, y, ' ', border, bg)
	termbox.SetCell(cx+1, y, ' ', border, bg)

	return wasSet
}

// Clear implements chip8.Display.
func (t *Terminal) Clear() {
	termbox.Clear(unlit, border)
}

// Present implements chip8.Display.
func (t *Terminal) Present() {
	termbox.Flush()
}

var _ chip8.Display = (*Terminal)(nil)
var _ chip8.Keypad = (*Terminal)(nil)

func init() {
	// runewidth's East Asian width table affects termbox's own cell-width
	// accounting; explicitly disable it so a 2-column-per-pixel layout
	// stays stable regardless of the host locale, matching ejholmes-chip8's
	// assumption of a plain ASCII terminal.
	runewidth.DefaultCondition.EastAsianWidth = false
}
