//go:build qemuvirt && aarch64

package kernel

import (
	"unsafe"

	"vela/internal/kheap"
	"vela/internal/proc"
	"vela/internal/vmm"
)

// physMemory is the identity-mapped physical-memory view every package
// below internal/vmm needs (internal/vmm itself, internal/kheap,
// internal/elfload, internal/fs). Since internal/vmm.BuildKernelIdentityMap
// maps all of RAM VA==PA (spec §4.B item i), a bare unsafe.Pointer cast of
// a physical address is always the correct, currently-mapped virtual
// address — there is no separate translation step to perform here, unlike
// a process's own (non-identity) address space, which userMemory below
// handles instead.
type physMemory struct{}

// Table implements internal/vmm.Memory.
func (physMemory) Table(pa uintptr) *vmm.Table {
	return (*vmm.Table)(unsafe.Pointer(pa))
}

// HeaderAt implements internal/kheap.Memory.
func (physMemory) HeaderAt(addr uintptr) *kheap.Header {
	return (*kheap.Header)(unsafe.Pointer(addr))
}

// Zero implements internal/kheap.Memory; elfMemory below adapts it to
// internal/elfload.Memory.
func (physMemory) Zero(addr uintptr, size uintptr) {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	for i := range buf {
		buf[i] = 0
	}
}

// Write implements internal/elfload.Memory.
func (physMemory) Write(pa uintptr, off int, data []byte) {
	dst := unsafe.Slice((*byte)(unsafe.Pointer(pa+uintptr(off))), len(data))
	copy(dst, data)
}

// elfMemory wraps physMemory to satisfy internal/elfload.Memory, whose
// Zero takes a plain int byte count rather than internal/kheap.Memory's
// uintptr — the two interfaces share a method name but not a signature,
// so one physMemory method cannot implement both.
type elfMemory struct{ physMemory }

// Zero implements internal/elfload.Memory.
func (m elfMemory) Zero(pa uintptr, size int) {
	m.physMemory.Zero(pa, uintptr(size))
}

// ReadBytes implements internal/fs.Memory, reading scratchAddr back out
// after internal/virtio/blk.Driver.ReadSector fills it.
func (physMemory) ReadBytes(addr uintptr, n int) []byte {
	src := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
	out := make([]byte, n)
	copy(out, src)
	return out
}

// Read8 extends physMemory to satisfy internal/virtio/blk.Memory, which
// needs to read back the one-byte request status virtqueue completion
// writes (spec §4.J step 4: "read back the one-byte status").
func (physMemory) Read8(addr uintptr) uint8 {
	return *(*uint8)(unsafe.Pointer(addr))
}

// Write32/Write64 extend physMemory to satisfy internal/virtio/blk.Memory
// (the block request header's type/sector fields), writing directly
// rather than through internal/mmio.HW since these addresses are plain
// RAM scratch buffers, not device registers.
func (physMemory) Write32(addr uintptr, v uint32) {
	*(*uint32)(unsafe.Pointer(addr)) = v
}

func (physMemory) Write64(addr uintptr, v uint64) {
	*(*uint64)(unsafe.Pointer(addr)) = v
}

// userMemory is the calling process's address space, as seen through
// internal/syscall.Memory. Unlike physMemory, a user virtual address is
// not identity-mapped, so every access walks the process's own page
// table via internal/vmm.VMM.Translate first (spec §4.I: syscall buffer
// arguments are user virtual addresses, not physical ones).
type userMemory struct {
	vm    *vmm.VMM
	table *proc.Table
}

func newUserMemory(vm *vmm.VMM, table *proc.Table) *userMemory {
	return &userMemory{vm: vm, table: table}
}

// translate resolves a user VA to a kernel-usable pointer, one page at a
// time (spec §4.B: every mapping is a single 4 KiB page, so a multi-page
// buffer is never contiguous in physical memory even when it is in
// virtual memory).
func (m *userMemory) translate(va uint64) (pa uintptr, ok bool) {
	p := m.table.Current()
	if p == nil {
		return 0, false
	}
	as := &vmm.AddressSpace{Root: p.PageTable}
	return m.vm.Translate(as, uintptr(va))
}

func (m *userMemory) pageOffset(va uint64) uintptr {
	return uintptr(va) & (vmm.PageSize - 1)
}

// ReadCString implements internal/syscall.Memory for CreateWindow's
// title-string argument: reads at most max bytes, one page-crossing at a
// time, stopping at the first NUL.
func (m *userMemory) ReadCString(userVA uint64, max int) string {
	out := make([]byte, 0, max)
	for i := 0; i < max; i++ {
		pa, ok := m.translate(userVA + uint64(i))
		if !ok {
			break
		}
		b := *(*byte)(unsafe.Pointer(pa))
		if b == 0 {
			break
		}
		out = append(out, b)
	}
	return string(out)
}

// ReadBytes implements internal/syscall.Memory for write(2)'s payload
// buffer.
func (m *userMemory) ReadBytes(userVA uint64, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		pa, ok := m.translate(userVA + uint64(i))
		if !ok {
			break
		}
		out[i] = *(*byte)(unsafe.Pointer(pa))
	}
	return out
}

// WriteBytes implements internal/syscall.Memory for read(2)'s one-byte
// consumed buffer.
func (m *userMemory) WriteBytes(userVA uint64, data []byte) {
	for i, b := range data {
		pa, ok := m.translate(userVA + uint64(i))
		if !ok {
			return
		}
		*(*byte)(unsafe.Pointer(pa)) = b
	}
}
