//go:build qemuvirt && aarch64

package mmio

import (
	_ "unsafe" // for go:linkname
)

// HW is the Bus backed by real memory-mapped I/O. The primitives below are
// implemented in this package's mmio_arm64.s and bridged the same way mazarin
// bridges mmio_write/mmio_read/dsb/bzero from lib.s: a //go:linkname'd,
// //go:nosplit declaration with no Go body.

//go:linkname hwMMIORead32 hwMMIORead32
//go:nosplit
func hwMMIORead32(addr uintptr) uint32

//go:linkname hwMMIOWrite32 hwMMIOWrite32
//go:nosplit
func hwMMIOWrite32(addr uintptr, v uint32)

//go:linkname hwMMIORead16 hwMMIORead16
//go:nosplit
func hwMMIORead16(addr uintptr) uint16

//go:linkname hwMMIOWrite16 hwMMIOWrite16
//go:nosplit
func hwMMIOWrite16(addr uintptr, v uint16)

//go:linkname hwMMIORead64 hwMMIORead64
//go:nosplit
func hwMMIORead64(addr uintptr) uint64

//go:linkname hwMMIOWrite64 hwMMIOWrite64
//go:nosplit
func hwMMIOWrite64(addr uintptr, v uint64)

//go:linkname hwDSB hwDSB
//go:nosplit
func hwDSB()

//go:linkname hwBZero hwBZero
//go:nosplit
func hwBZero(addr uintptr, size uint32)

// hwBus is the zero-size Bus implementation used by cmd/kernel.
type hwBus struct{}

// HW is the process-wide hardware bus. It carries no state of its own
// (every register access is addressed explicitly), so a single shared
// value is safe to thread through the kernel context.
var HW Bus = hwBus{}

func (hwBus) Read32(addr uintptr) uint32    { return hwMMIORead32(addr) }
func (hwBus) Write32(addr uintptr, v uint32) { hwMMIOWrite32(addr, v) }
func (hwBus) Read16(addr uintptr) uint16    { return hwMMIORead16(addr) }
func (hwBus) Write16(addr uintptr, v uint16) { hwMMIOWrite16(addr, v) }
func (hwBus) Read64(addr uintptr) uint64    { return hwMMIORead64(addr) }
func (hwBus) Write64(addr uintptr, v uint64) { hwMMIOWrite64(addr, v) }
func (hwBus) Barrier()                      { hwDSB() }
func (hwBus) Zero(addr uintptr, size uint32) { hwBZero(addr, size) }
