//go:build qemuvirt && aarch64

package ptimer

import _ "unsafe" // for go:linkname

// CNTV_* system-register primitives, mirroring the teacher's own
// read_cntv_ctl_el0/write_cntv_tval_el0/read_cntfrq_el0 linknames.
// Defined in timer_arm64.s.

//go:linkname hwReadCNTVCT vela/internal/ptimer.hwReadCNTVCT
//go:nosplit
func hwReadCNTVCT() uint64

//go:linkname hwReadCNTFRQ vela/internal/ptimer.hwReadCNTFRQ
//go:nosplit
func hwReadCNTFRQ() uint32

//go:linkname hwWriteCNTVCVAL vela/internal/ptimer.hwWriteCNTVCVAL
//go:nosplit
func hwWriteCNTVCVAL(val uint64)

//go:linkname hwWriteCNTVCTL vela/internal/ptimer.hwWriteCNTVCTL
//go:nosplit
func hwWriteCNTVCTL(val uint32)

// hwCounter is the CounterReader backed by the real virtual counter.
type hwCounter struct{}

func (hwCounter) ReadCounter() uint64   { return hwReadCNTVCT() }
func (hwCounter) ReadFrequency() uint32 { return hwReadCNTFRQ() }

// hwCompare is the Compare backed by CNTV_CVAL_EL0/CNTV_CTL_EL0.
type hwCompare struct{}

func (hwCompare) SetCompare(value uint64) { hwWriteCNTVCVAL(value) }
func (hwCompare) Enable()                 { hwWriteCNTVCTL(1) } // ENABLE, IMASK clear

// HardwareTimer constructs a Timer wired to the real ARM generic virtual
// timer, for use by cmd/kernel.
func HardwareTimer() *Timer {
	return New(hwCounter{}, hwCompare{})
}
