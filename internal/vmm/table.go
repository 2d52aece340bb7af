package vmm

// Table is one level of the translation hierarchy: 512 64-bit descriptors,
// exactly one physical frame (spec §4.B: "4 KiB pages").
type Table struct {
	Entries [TableSize]uint64
}

// Memory abstracts access to physical frames holding page tables. On real
// hardware, physical addresses below the 1 GiB identity map are directly
// addressable before (and after, since the map is identity) the MMU is
// enabled, so Table simply reinterprets the address. This package has no
// host-side implementation of Memory; the host process has no such
// identity mapping.
type Memory interface {
	Table(pa uintptr) *Table
}

// PageAllocator is the subset of internal/pmm.Allocator the VMM needs.
// Defined locally so this package does not import internal/pmm directly;
// internal/kernel wires a *pmm.Allocator in, satisfying this interface.
type PageAllocator interface {
	AllocFrame() (uintptr, bool)
	FreeFrame(addr uintptr)
}

// VMM owns the page allocator and physical-memory accessor shared by every
// address space (spec §4.B).
type VMM struct {
	mem   Memory
	pages PageAllocator
}

// New creates a VMM backed by the given physical memory accessor and frame
// allocator.
func New(mem Memory, pages PageAllocator) *VMM {
	return &VMM{mem: mem, pages: pages}
}

// AddressSpace is one process's (or the kernel's) root translation table,
// identified by the physical address installed in TTBR0_EL1.
type AddressSpace struct {
	Root uintptr
}

// walk returns the level-3 table containing va's leaf entry, allocating
// and zeroing any missing intermediate table when alloc is true. ok is
// false if a table is missing and alloc is false (used by Unmap, which
// must never populate new tables for an address it is tearing down).
func (v *VMM) walk(root uintptr, va uintptr, alloc bool) (l3 *Table, ok bool) {
	cur := root
	for _, shift := range []uint{L0Shift, L1Shift, L2Shift} {
		t := v.mem.Table(cur)
		idx := levelIndex(va, shift)
		e := t.Entries[idx]
		if !entryValid(e) {
			if !alloc {
				return nil, false
			}
			frame, ok := v.pages.AllocFrame()
			if !ok {
				return nil, false
			}
			v.zero(frame)
			t.Entries[idx] = tableDescriptor(frame)
			cur = frame
			continue
		}
		cur = entryOutputAddress(e)
	}
	return v.mem.Table(cur), true
}

func (v *VMM) zero(pa uintptr) {
	t := v.mem.Table(pa)
	for i := range t.Entries {
		t.Entries[i] = 0
	}
}

// Map installs a single 4 KiB mapping from va to pa in the given address
// space, allocating intermediate tables on demand (spec §4.B map
// operation). It returns false only if an intermediate table allocation
// fails (OOM).
func (v *VMM) Map(as *AddressSpace, va, pa uintptr, flags PageFlags) bool {
	l3, ok := v.walk(as.Root, va, true)
	if !ok {
		return false
	}
	idx := levelIndex(va, L3Shift)
	l3.Entries[idx] = encodeLeaf(pa, flags)
	return true
}

// Unmap removes the mapping for va, broadcasting a TLB invalidate by VA
// and barrier-synchronizing (spec §4.B unmap operation). It is a no-op if
// va was never mapped.
func (v *VMM) Unmap(as *AddressSpace, va uintptr) {
	l3, ok := v.walk(as.Root, va, false)
	if !ok {
		return
	}
	idx := levelIndex(va, L3Shift)
	if !entryValid(l3.Entries[idx]) {
		return
	}
	l3.Entries[idx] = 0
	invalidateTLBByVA(va)
}

// Translate walks as.Root for va and returns the mapped physical address,
// for debugging and for tests; ok is false if va is unmapped.
func (v *VMM) Translate(as *AddressSpace, va uintptr) (pa uintptr, ok bool) {
	l3, ok := v.walk(as.Root, va, false)
	if !ok {
		return 0, false
	}
	idx := levelIndex(va, L3Shift)
	e := l3.Entries[idx]
	if !entryValid(e) {
		return 0, false
	}
	return entryOutputAddress(e) | (va & (PageSize - 1)), true
}

// CreateAddressSpace allocates a fresh top-level table and copies the
// kernel's half of kernelRoot into it, so every process keeps the kernel
// mapped identically and address-space switches never lose kernel access
// (spec §4.B create_address_space).
func (v *VMM) CreateAddressSpace(kernelRoot uintptr) (*AddressSpace, bool) {
	frame, ok := v.pages.AllocFrame()
	if !ok {
		return nil, false
	}
	v.zero(frame)
	dst := v.mem.Table(frame)
	src := v.mem.Table(kernelRoot)
	copy(dst.Entries[:], src.Entries[:])
	return &AddressSpace{Root: frame}, true
}

// DestroyAddressSpace frees the top-level table only. Lower-level tables
// are not recursively freed — a known, documented limitation (spec §4.B).
func (v *VMM) DestroyAddressSpace(as *AddressSpace) {
	v.pages.FreeFrame(as.Root)
}
