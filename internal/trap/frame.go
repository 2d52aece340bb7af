// Package trap is exception entry, the saved register frame, and the
// sync/IRQ/syscall dispatch table (spec §4.F).
//
// Grounded on the teacher's src/go/mazarin/exceptions.go: the ESR_EL1
// exception-class constant table (EC_SVC_EL0_A64 etc.), the linknamed
// VBAR_EL1/ELR/SPSR/ESR/FAR accessors, and the switch-on-EC dispatch
// shape. Spec §4.F additionally requires classifying EL0 vs EL1 entry and
// stacking a fixed-layout register frame per exception (the teacher's own
// handler takes loose esr/elr/spsr/far arguments and never stacks a full
// GPR frame since it has no user-mode process model at all); Frame and
// Dispatcher below generalize the teacher's classify-by-EC idiom onto
// spec §3's saved-register-frame data model.
package trap

// Frame is the fixed-layout block saved on kernel stack on every exception
// entry from EL0 or EL1 (spec §3 "Saved register frame"): 31 general
// registers, the exception link register, the saved program status, and
// the user stack pointer. The field order matches arch/arm64's assembly
// save/restore sequence exactly; do not reorder without updating it.
type Frame struct {
	X    [31]uint64 // x0-x30
	ELR  uint64      // exception link register: return address
	SPSR uint64      // saved program status register
	SP   uint64      // SP_EL0, the user stack pointer, at entry
}

// Arg returns general register n (x0-x5), used by the syscall dispatcher
// for argument marshaling (spec §4.I).
func (f *Frame) Arg(n int) uint64 { return f.X[n] }

// SyscallNumber reads x8, the designated syscall-number register (spec
// §4.I, "standard 64-bit ARM Linux ABI").
func (f *Frame) SyscallNumber() uint64 { return f.X[8] }

// SetReturn writes v into x0, the syscall/exception return value.
func (f *Frame) SetReturn(v uint64) { f.X[0] = v }

// ESR field helpers (spec §4.F: "decode the exception-class field of the
// syndrome register"). ESR itself is not part of Frame (it is read fresh
// from ESR_EL1 at dispatch time, matching the teacher's read_esr_el1),
// but the extraction helpers live here since Dispatcher consumes them.

// ExceptionClass extracts EC, bits 31:26 of ESR_EL1.
func ExceptionClass(esr uint64) uint8 { return uint8((esr >> 26) & 0x3F) }

// ISS extracts the instruction-specific syndrome, bits 24:0.
func ISS(esr uint64) uint32 { return uint32(esr & 0x1FF_FFFF) }

// Exception class values relevant to this kernel (spec §4.F; teacher's
// EC_* block, trimmed to what §4.I/§4.F actually dispatch on).
const (
	ECSVC64         = 0b010101 // supervisor call, AArch64
	ECDataAbortLow  = 0b100100 // data abort from a lower EL (EL0)
	ECDataAbortSame = 0b100101 // data abort from the same EL (EL1)
	ECInstAbortLow  = 0b100000
	ECInstAbortSame = 0b100001
)

// Level identifies which exception level an entry came from.
type Level int

const (
	FromEL0 Level = iota
	FromEL1
)

// Kind identifies which vector slot an entry landed in (spec §4.F: "The
// vectors are organized by entry exception level and kind").
type Kind int

const (
	KindSync Kind = iota
	KindIRQ
	KindFIQ
	KindSError
)
