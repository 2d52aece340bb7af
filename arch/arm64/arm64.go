// Package arm64 is the hardware boundary spec §4.F names but does not
// itself belong to any single numbered component: the exception vector
// table, the fixed register-frame save/restore sequence that backs every
// entry in internal/trap.Dispatcher, and the "start first process"
// primitive internal/proc.Scheduler.StartFirst hands off to.
//
// Grounded on the same //go:linkname-plus-.s bridge every other hw_arm64.go
// file in this repo already uses (internal/proc, internal/vmm,
// internal/ptimer, internal/elfload); nothing in the teacher repo writes a
// vector table or a register frame at all — mazarin's exceptions.go takes
// loose esr/elr/spsr/far arguments from a single debug handler with no
// user-mode process model — so the frame layout and vector dispatch below
// are grounded directly in spec §3's "Saved register frame" and §4.F's
// vector-table and dispatch description rather than any teacher file.
//
// Every file here except this package doc carries the qemuvirt&&aarch64
// build tag: unlike every
// other package in this kernel, there is no host-buildable half to this
// one, so there is no package-level test file either (nothing here is
// reachable without real hardware state).
package arm64
