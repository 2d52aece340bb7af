// Package mmio is the single point of contact between Go code and memory-
// mapped device registers. Every other package in this kernel (console,
// gic, ptimer, virtio) talks to hardware through a Bus, never through raw
// unsafe.Pointer arithmetic of its own, so that each of those packages can
// be unit-tested against FakeBus on the host instead of requiring real or
// emulated ARM64 hardware to run `go test`.
package mmio

// Bus is the narrow interface every register-level driver depends on.
// The real implementation (hw_arm64.go, build-tagged to qemuvirt+aarch64) backs
// it with the assembly primitives the teacher bridges via //go:linkname;
// FakeBus backs it with a plain map for tests.
type Bus interface {
	Read32(addr uintptr) uint32
	Write32(addr uintptr, v uint32)
	Read16(addr uintptr) uint16
	Write16(addr uintptr, v uint16)
	Read64(addr uintptr) uint64
	Write64(addr uintptr, v uint64)

	// Barrier issues a data memory barrier (dmb sy on ARM64). Drivers call
	// this around virtqueue index publication per spec §4.J step 3.
	Barrier()

	// Zero clears size bytes starting at addr. Used by the frame allocator
	// and heap to zero memory without requiring a byte-addressable Go
	// slice view over physical memory.
	Zero(addr uintptr, size uint32)
}
