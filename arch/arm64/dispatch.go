//go:build qemuvirt && aarch64

package arm64

import (
	_ "unsafe" // for go:linkname

	"vela/internal/proc"
	"vela/internal/trap"
)

// dispatcher and procTable are the two package-level handles the assembly
// vector stubs reach through. Both are set once during boot by
// internal/kernel.Boot, before VBAR_EL1 is installed and interrupts are unmasked;
// nothing here needs a lock since the kernel is single-hart.
var (
	dispatcher *trap.Dispatcher
	procTable  *proc.Table
)

// SetDispatcher installs the exception-routing table entry_arm64.s's vector
// stubs call into.
func SetDispatcher(d *trap.Dispatcher) { dispatcher = d }

// SetProcessTable installs the process table handleSyncEntry/handleIRQEntry
// consult, after running the dispatcher, to find which frame and kernel
// stack the epilogue should actually restore (spec §4.G: a timer tick may
// have switched the current process out from under the entry that took the
// trap).
func SetProcessTable(t *proc.Table) { procTable = t }

// currentFrameAndStack reports the frame and kernel-stack-top of whichever
// process internal/proc now considers current, after a dispatch call has
// run. For synchronous entries this is always the same process that took
// the trap; for IRQ entries internal/ptimer's scheduler hook may have
// picked a different one.
func currentFrameAndStack() (*trap.Frame, uintptr) {
	p := procTable.Current()
	if p == nil {
		return nil, 0
	}
	return p.Frame, p.KernelSP
}

// handleSyncEntry is called by entry_arm64.s's synchronous-exception vector
// stubs via BL, after the GPR frame has been stacked at frame. Arguments
// and the two return values travel in registers under Go's default
// ABIInternal calling convention (x0-x3 in, x0/x1 out for a two-result
// function), the same convention the Go runtime's own assembly relies on —
// no stack-based argument marshaling is needed here.
//
//go:nosplit
func handleSyncEntry(frame *trap.Frame, esr, far uint64, level trap.Level) (next *trap.Frame, stackTop uintptr) {
	dispatcher.HandleSync(frame, esr, far, level)
	return currentFrameAndStack()
}

// handleIRQEntry is called by entry_arm64.s's IRQ vector stubs, after the
// GPR frame has been stacked at frame. A timer-line acknowledge inside
// HandleIRQ may run the scheduler and switch the current process, so the
// frame/stack this returns can differ from frame itself.
//
//go:nosplit
func handleIRQEntry(frame *trap.Frame) (next *trap.Frame, stackTop uintptr) {
	dispatcher.HandleIRQ(frame)
	return currentFrameAndStack()
}

// handleSErrorEntry is called by entry_arm64.s's SError vector stubs. An
// SError is always a kernel panic per spec §4.F, so there is nothing to
// restore: dispatcher.SError is expected not to return.
//
//go:nosplit
func handleSErrorEntry(esr uint64) {
	dispatcher.HandleSError(esr)
}

// hwSetVBAR programs VBAR_EL1 with the vector table's base address
// (entry_arm64.s).
//
//go:linkname hwSetVBAR vela/arch/arm64.hwSetVBAR
//go:nosplit
func hwSetVBAR(addr uintptr)

// vectorTableAddr returns the link-time address of the vector table symbol
// (entry_arm64.s), 0x800-byte aligned per the ARM architecture's VBAR_EL1
// requirement.
//
//go:linkname vectorTableAddr vela/arch/arm64.vectorTableAddr
//go:nosplit
func vectorTableAddr() uintptr

// InstallVectors points VBAR_EL1 at this package's vector table. Must run
// once during boot, before interrupts are unmasked at the GIC or PSTATE.
func InstallVectors() {
	hwSetVBAR(vectorTableAddr())
}

// startFirstProcess is the assembly primitive backing spec §4.G's "start
// first process": it loads the entry program counter, user stack pointer,
// and target exception level from frame, installs stackTop as SP_EL1, and
// executes an exception return into EL0. It never returns.
//
//go:linkname startFirstProcess vela/arch/arm64.startFirstProcess
//go:nosplit
func startFirstProcess(frame *trap.Frame, stackTop uintptr)

// StartFirstProcess hands control to p for the first time. p.Frame must
// already be populated (internal/elfload.Loader.Load does this) and
// p.KernelSP must point at the top of p's dedicated kernel stack page.
// internal/proc.Scheduler.StartFirst prepares the scheduler-visible state
// this reads; internal/kernel.Boot calls this exactly once, after that, to actually
// cross into EL0.
func StartFirstProcess(p *proc.Process) {
	startFirstProcess(p.Frame, p.KernelSP)
}
