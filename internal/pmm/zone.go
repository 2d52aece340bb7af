package pmm

import "sync"

// Gate is a scoped mutual-exclusion primitive. On real hardware it masks
// IRQs for the duration of the critical section (spec §5: "Physical frame
// bitmaps: per-zone IRQ-masking spin lock"); in tests and on the host it is
// backed by a plain mutex. See the "interrupt-disable sections as mutex"
// design note: this is the scoped-acquisition wrapper it calls for.
type Gate interface {
	Lock()
	Unlock()
}

// mutexGate is the default Gate, sufficient for host tests. Real boot
// wiring (internal/kernel) supplies an IRQ-masking Gate instead.
type mutexGate struct{ mu sync.Mutex }

func (g *mutexGate) Lock()   { g.mu.Lock() }
func (g *mutexGate) Unlock() { g.mu.Unlock() }

// NewMutexGate returns a Gate backed by a plain mutex, for tests and for
// any host-side tooling that links this package outside the kernel.
func NewMutexGate() Gate { return &mutexGate{} }

// Zone is a contiguous run of frames with its own bitmap and lock (spec
// §3 "Zone"). Bit i of bitmap is set iff frame i is NOT free.
type Zone struct {
	name       string
	base       uintptr // physical address of frame 0 in this zone
	frameCount uint32
	bitmap     []uint64
	descs      []Descriptor
	gate       Gate

	freeCount uint32
}

// NewZone creates a zone covering frameCount frames starting at base, with
// every frame initially free.
func NewZone(name string, base uintptr, frameCount uint32, gate Gate) *Zone {
	if gate == nil {
		gate = NewMutexGate()
	}
	words := (frameCount + 63) / 64
	return &Zone{
		name:       name,
		base:       base,
		frameCount: frameCount,
		bitmap:     make([]uint64, words),
		descs:      make([]Descriptor, frameCount),
		gate:       gate,
		freeCount:  frameCount,
	}
}

// Base returns the zone's starting physical address.
func (z *Zone) Base() uintptr { return z.base }

// FrameCount returns the number of frames in the zone.
func (z *Zone) FrameCount() uint32 { return z.frameCount }

// FreeCount returns the number of currently free frames (atomic w.r.t. the
// zone's gate).
func (z *Zone) FreeCount() uint32 {
	z.gate.Lock()
	defer z.gate.Unlock()
	return z.freeCount
}

// Contains reports whether addr..addr+size falls entirely within the zone.
func (z *Zone) Contains(addr uintptr, frames uint32) bool {
	if addr < z.base {
		return false
	}
	idx := (addr - z.base) / FrameSize
	return idx+uintptr(frames) <= uintptr(z.frameCount)
}

func (z *Zone) indexOf(addr uintptr) uint32 {
	return uint32((addr - z.base) / FrameSize)
}

func (z *Zone) addrOf(idx uint32) uintptr {
	return z.base + uintptr(idx)*FrameSize
}

func (z *Zone) bitSet(idx uint32) bool {
	return z.bitmap[idx/64]&(1<<(idx%64)) != 0
}

func (z *Zone) setBit(idx uint32) {
	z.bitmap[idx/64] |= 1 << (idx % 64)
}

func (z *Zone) clearBit(idx uint32) {
	z.bitmap[idx/64] &^= 1 << (idx % 64)
}

// reserveRange marks [base, base+count) used without touching refcounts;
// used at init time to keep the kernel image and early MMIO identity
// backing out of the free pool forever (spec §3's reserved-frame
// invariant).
func (z *Zone) reserveRange(startIdx, count uint32) {
	z.gate.Lock()
	defer z.gate.Unlock()
	for i := startIdx; i < startIdx+count && i < z.frameCount; i++ {
		if !z.bitSet(i) {
			z.setBit(i)
			z.freeCount--
		}
		z.descs[i].Flags.Reserved = true
	}
}

// findFirstFit scans for a single free bit; lowest address wins ties.
func (z *Zone) findFirstFit() (uint32, bool) {
	for i := uint32(0); i < z.frameCount; i++ {
		if !z.bitSet(i) {
			return i, true
		}
	}
	return 0, false
}

// findRun scans for `count` contiguous free bits, restarting the window on
// every set bit encountered (spec §4.A algorithm).
func (z *Zone) findRun(count uint32) (uint32, bool) {
	if count == 0 {
		return 0, false
	}
	runStart := uint32(0)
	runLen := uint32(0)
	for i := uint32(0); i < z.frameCount; i++ {
		if z.bitSet(i) {
			runLen = 0
			runStart = i + 1
			continue
		}
		runLen++
		if runLen == count {
			return runStart, true
		}
	}
	return 0, false
}

// markUsed flips count bits starting at idx to used and sets RefCount to 1.
func (z *Zone) markUsed(idx, count uint32, kernel bool) {
	for i := idx; i < idx+count; i++ {
		z.setBit(i)
		z.freeCount--
		z.descs[i].Flags.Kernel = kernel
		z.descs[i].Flags.User = !kernel
		z.descs[i].RefCount = 1
	}
}
