// Package kheap is the kernel heap (spec §4.C): a free-list allocator
// carved out of a single contiguous region obtained from internal/pmm,
// with headers and a singly linked free list of returned blocks.
//
// Grounded on the teacher's src/go/mazarin/heap.go (kmalloc/kfree), but
// spec §4.C explicitly drops the teacher's best-fit-with-coalescing
// discipline for a simpler bump-plus-first-fit-free-list one ("no
// coalescing in the current core; a known limitation"), so the search and
// free paths are rewritten to that simpler rule while keeping the
// teacher's header-prefixed-block, magic-word-verified shape.
package kheap

import "unsafe"

// align is the fixed allocation granularity (spec §4.C: "round to 16-byte
// multiple").
const align = 16

const magic = 0x6B686561 // "khea"

// Header prefixes every live or freed block. Size is the total block size
// including the header, matching the teacher's segmentSize field. It is
// exported so a Memory implementation outside this package (internal/
// kernel, backed by real physical memory) can construct a *Header view
// over a raw address with unsafe.Pointer.
type Header struct {
	Magic uint32
	Size  uint32
	Next  *Header // free-list link; nil when allocated
}

const headerSize = unsafe.Sizeof(Header{})

// Region describes the contiguous backing store the heap carves blocks
// from.
type Region interface {
	Base() uintptr
	Size() uintptr
}

// Memory gives the heap byte-level access to the region: HeaderAt must
// return a *Header that aliases real storage at addr (so mutations through
// it are visible on the next HeaderAt(addr) call), and Zero must clear
// size bytes starting at addr. internal/kernel backs this with the
// identity-mapped physical memory view; tests back it with a Go byte
// slice reinterpreted via unsafe.Pointer.
type Memory interface {
	HeaderAt(addr uintptr) *Header
	Zero(addr uintptr, size uintptr)
}

// Heap is the kernel's variable-size allocator (spec §4.C).
type Heap struct {
	mem      Memory
	base     uintptr
	size     uintptr
	bumpNext uintptr
	freeList *Header
}

// New creates a Heap over the given region, backed by mem for header
// access. The entire region starts unused; Alloc bumps bumpNext until the
// region is exhausted, then only the free list remains available.
func New(mem Memory, region Region) *Heap {
	return &Heap{mem: mem, base: region.Base(), size: region.Size(), bumpNext: region.Base()}
}

func roundUp(n, to uintptr) uintptr {
	return (n + to - 1) &^ (to - 1)
}

// Alloc returns the payload address of a block with room for size bytes,
// or ok=false if the heap is exhausted (spec §4.C alloc: "round to 16-byte
// multiple; walk the free list for the first block of sufficient size; if
// none, bump the pointer").
func (h *Heap) Alloc(size uint32) (payload uintptr, ok bool) {
	total := roundUp(uintptr(headerSize)+uintptr(size), align)

	if addr, found := h.findFirstFit(total); found {
		hdr := h.mem.HeaderAt(addr)
		hdr.Next = nil // mark allocated
		return addr + headerSize, true
	}

	if h.bumpNext+total > h.base+h.size {
		return 0, false
	}
	addr := h.bumpNext
	h.bumpNext += total
	hdr := h.mem.HeaderAt(addr)
	hdr.Magic = magic
	hdr.Size = uint32(total)
	hdr.Next = nil
	h.mem.Zero(addr+headerSize, total-headerSize)
	return addr + headerSize, true
}

// findFirstFit walks the free list for the first block whose size is at
// least need, unlinking it from the list. No splitting: the whole block
// is handed back, matching spec §4.C's simplified (non-best-fit,
// non-splitting) discipline.
func (h *Heap) findFirstFit(need uintptr) (addr uintptr, found bool) {
	var prevAddr uintptr
	havePrev := false
	cur := h.freeList
	curAddr := uintptr(0)
	if cur != nil {
		curAddr = h.addrFromHeader(cur)
	}
	for cur != nil {
		if uintptr(cur.Size) >= need {
			if havePrev {
				h.mem.HeaderAt(prevAddr).Next = cur.Next
			} else {
				h.freeList = cur.Next
			}
			return curAddr, true
		}
		prevAddr = curAddr
		havePrev = true
		cur = cur.Next
		if cur != nil {
			curAddr = h.addrFromHeader(cur)
		}
	}
	return 0, false
}

// addrFromHeader recovers the block address for a header pulled off the
// free list. Header.Next is the only per-block state the free list
// carries, so the address is re-derived from the *Header pointer value
// itself. findFirstFit calls this while walking the free list; it relies
// on Memory.HeaderAt(addr) returning a *Header whose pointer value is
// addr.
func (h *Heap) addrFromHeader(hdr *Header) uintptr {
	return uintptr(unsafe.Pointer(hdr))
}

// Free verifies the magic word and prepends the block to the free list
// (spec §4.C: "no coalescing in the current core; a known limitation").
// Freeing an invalid pointer (bad magic) is a silent no-op.
func (h *Heap) Free(payload uintptr) {
	addr := payload - headerSize
	hdr := h.mem.HeaderAt(addr)
	if hdr.Magic != magic {
		return
	}
	hdr.Next = h.freeList
	h.freeList = hdr
}

// Realloc allocates n bytes, copies min(old, n) bytes from payload via
// copyFn, and frees payload (spec §4.C realloc).
func (h *Heap) Realloc(payload uintptr, n uint32, copyFn func(dst, src uintptr, size uintptr)) (uintptr, bool) {
	addr := payload - headerSize
	hdr := h.mem.HeaderAt(addr)
	if hdr.Magic != magic {
		return 0, false
	}
	oldPayload := uintptr(hdr.Size) - headerSize

	newPtr, ok := h.Alloc(n)
	if !ok {
		return 0, false
	}
	want := uintptr(n)
	if want > oldPayload {
		want = oldPayload
	}
	copyFn(newPtr, payload, want)
	h.Free(payload)
	return newPtr, true
}
