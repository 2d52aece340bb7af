//go:build qemuvirt && aarch64

package arm64

import (
	_ "unsafe" // for go:linkname

	"vela/internal/pmm"
)

// hwMaskIRQ/hwUnmaskIRQ/hwIRQsWereMasked/hwWFE back IRQGate and
// WaitForEvent with real PSTATE.DAIF and WFE instructions (gate_arm64.s).
//
//go:linkname hwMaskIRQ vela/arch/arm64.hwMaskIRQ
//go:nosplit
func hwMaskIRQ()

//go:linkname hwUnmaskIRQ vela/arch/arm64.hwUnmaskIRQ
//go:nosplit
func hwUnmaskIRQ()

//go:linkname hwIRQsWereMasked vela/arch/arm64.hwIRQsWereMasked
//go:nosplit
func hwIRQsWereMasked() bool

//go:linkname hwWFE vela/arch/arm64.hwWFE
//go:nosplit
func hwWFE()

// irqGate is the real-hardware pmm.Gate: Lock masks IRQs (spec §5:
// "Physical frame bitmaps: per-zone IRQ-masking spin lock"; the same
// "interrupt-disable sections as mutex" design note backs
// internal/compositor's critical sections with this too). Nesting is
// supported the way a spinlock-under-uniprocessor normally is: only the
// outermost Lock call that actually found interrupts enabled restores
// them on Unlock, so a Lock taken from inside a syscall or IRQ handler
// (which already runs with interrupts masked or, for syscalls, may not)
// never re-enables them early.
type irqGate struct {
	wasEnabled bool
}

// NewIRQGate returns a pmm.Gate backed by PSTATE.DAIF masking, for real
// boot wiring. Every zone in internal/pmm and internal/compositor's own
// critical section use one of these instead of pmm.NewMutexGate's plain
// mutex once the kernel is actually running on hardware.
func NewIRQGate() pmm.Gate { return &irqGate{} }

func (g *irqGate) Lock() {
	g.wasEnabled = !hwIRQsWereMasked()
	hwMaskIRQ()
}

func (g *irqGate) Unlock() {
	if g.wasEnabled {
		hwUnmaskIRQ()
	}
}

// WaitForEvent parks the hart on a low-power wait until the next event or
// interrupt (spec §4.I read: "blocking on a wait-for-event instruction").
func WaitForEvent() { hwWFE() }
