package pmm

// DMAZoneFrames is the size of the DMA-eligible zone: the first 16 MiB of
// managed RAM (spec §3), reserved for VirtIO descriptor tables and other
// buffers that must sit below any bus address restriction.
const DMAZoneFrames = (16 * 1024 * 1024) / FrameSize

// Allocator is the top-level physical frame allocator (spec §4.A). It owns
// two zones: a small DMA-eligible zone at the base of managed RAM, and a
// normal zone covering the rest. Contiguous multi-frame requests are
// satisfied only from the normal zone; single-frame requests fall back to
// the DMA zone once the normal zone is exhausted.
type Allocator struct {
	dma    *Zone
	normal *Zone
}

// New creates an Allocator managing [base, base+totalFrames*FrameSize).
// gateFactory, if non-nil, is called once per zone to obtain its lock;
// passing nil uses NewMutexGate for both.
func New(base uintptr, totalFrames uint32, gateFactory func() Gate) *Allocator {
	if totalFrames <= DMAZoneFrames {
		// Degenerate configuration (e.g. a small test harness): put
		// everything in the DMA zone rather than underflow.
		var g Gate
		if gateFactory != nil {
			g = gateFactory()
		}
		return &Allocator{
			dma:    NewZone("dma", base, totalFrames, g),
			normal: NewZone("normal", base+uintptr(totalFrames)*FrameSize, 0, g),
		}
	}
	var dg, ng Gate
	if gateFactory != nil {
		dg, ng = gateFactory(), gateFactory()
	}
	dma := NewZone("dma", base, DMAZoneFrames, dg)
	normal := NewZone("normal", base+DMAZoneFrames*FrameSize, totalFrames-DMAZoneFrames, ng)
	return &Allocator{dma: dma, normal: normal}
}

// Reserve marks [addr, addr+frames*FrameSize) as permanently unavailable,
// e.g. for the kernel image itself or an identity-mapped MMIO window that
// happens to alias managed RAM. Must be called before any Alloc* call.
func (a *Allocator) Reserve(addr uintptr, frames uint32) {
	if z := a.zoneFor(addr); z != nil {
		z.reserveRange(z.indexOf(addr), frames)
	}
}

func (a *Allocator) zoneFor(addr uintptr) *Zone {
	if a.normal.FrameCount() > 0 && a.normal.Contains(addr, 1) {
		return a.normal
	}
	if a.dma.Contains(addr, 1) {
		return a.dma
	}
	return nil
}

// AllocFrame allocates a single frame, preferring the normal zone, and
// returns its physical address. ok is false if both zones are full.
func (a *Allocator) AllocFrame() (addr uintptr, ok bool) {
	if a.normal.FrameCount() > 0 {
		if addr, ok = a.allocFromZone(a.normal, 1, false); ok {
			return addr, true
		}
	}
	return a.allocFromZone(a.dma, 1, false)
}

// AllocFrames allocates a contiguous run of n frames from the normal zone
// only (spec §4.A: contiguous requests never span zones).
func (a *Allocator) AllocFrames(n uint32) (addr uintptr, ok bool) {
	if n == 0 || a.normal.FrameCount() == 0 {
		return 0, false
	}
	return a.allocFromZone(a.normal, n, true)
}

func (a *Allocator) allocFromZone(z *Zone, n uint32, asRun bool) (uintptr, bool) {
	z.gate.Lock()
	defer z.gate.Unlock()

	var idx uint32
	var found bool
	if asRun || n > 1 {
		idx, found = z.findRun(n)
	} else {
		idx, found = z.findFirstFit()
	}
	if !found {
		return 0, false
	}
	z.markUsed(idx, n, true)
	return z.addrOf(idx), true
}

// AllocAligned allocates enough frames to cover size bytes, aligned to
// align bytes (align must be a power of two and a multiple of FrameSize),
// by over-allocating a run and trimming the frames before and after the
// aligned sub-range back to the free pool (spec §4.A).
func (a *Allocator) AllocAligned(size uint64, align uint64) (addr uintptr, ok bool) {
	if align < FrameSize {
		align = FrameSize
	}
	frames := uint32((size + FrameSize - 1) / FrameSize)
	extra := uint32((align - 1) / FrameSize)
	total := frames + extra

	base, found := a.allocFromZone(a.normal, total, true)
	if !found {
		return 0, false
	}
	aligned := (base + uintptr(align) - 1) &^ (uintptr(align) - 1)

	leading := uint32((aligned - base) / FrameSize)
	trailing := total - frames - leading

	if leading > 0 {
		a.freeInZone(a.normal, base, leading)
	}
	if trailing > 0 {
		a.freeInZone(a.normal, aligned+uintptr(frames)*FrameSize, trailing)
	}
	return aligned, true
}

// FreeFrame drops the reference count on the frame at addr, returning it
// to the free pool once the count reaches zero. Freeing a reserved frame
// is a silent no-op (spec §3).
func (a *Allocator) FreeFrame(addr uintptr) {
	a.FreeFrames(addr, 1)
}

// FreeFrames frees a contiguous run of n frames starting at addr.
func (a *Allocator) FreeFrames(addr uintptr, n uint32) {
	if z := a.zoneFor(addr); z != nil {
		a.freeInZone(z, addr, n)
	}
}

func (a *Allocator) freeInZone(z *Zone, addr uintptr, n uint32) {
	z.gate.Lock()
	defer z.gate.Unlock()

	idx := z.indexOf(addr)
	for i := idx; i < idx+n && i < z.frameCount; i++ {
		if z.descs[i].Flags.Reserved {
			continue
		}
		if z.descs[i].RefCount > 0 {
			z.descs[i].RefCount--
		}
		if z.descs[i].RefCount == 0 && z.bitSet(i) {
			z.clearBit(i)
			z.freeCount++
			z.descs[i].Flags.Kernel = false
			z.descs[i].Flags.User = false
			z.descs[i].Flags.Dirty = false
		}
	}
}

// PhysToDescriptor returns the metadata record for the frame at addr.
func (a *Allocator) PhysToDescriptor(addr uintptr) (Descriptor, bool) {
	z := a.zoneFor(addr)
	if z == nil {
		return Descriptor{}, false
	}
	z.gate.Lock()
	defer z.gate.Unlock()
	return z.descs[z.indexOf(addr)], true
}

// FreeFrameCount returns the number of currently free frames across both
// zones.
func (a *Allocator) FreeFrameCount() uint32 {
	return a.dma.FreeCount() + a.normal.FreeCount()
}

// TotalFrameCount returns the number of managed frames across both zones.
func (a *Allocator) TotalFrameCount() uint32 {
	return a.dma.FrameCount() + a.normal.FrameCount()
}

// DMAZone and NormalZone expose the underlying zones for callers (e.g.
// internal/virtio) that need to allocate specifically below a bus address
// limit.
func (a *Allocator) DMAZone() *Zone    { return a.dma }
func (a *Allocator) NormalZone() *Zone { return a.normal }
