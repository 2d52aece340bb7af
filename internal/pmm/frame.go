// Package pmm is the physical page allocator (spec §4.A): it owns all RAM
// after boot and hands out 4 KiB-aligned frames, singly or in contiguous
// runs, from bitmapped zones.
//
// The zone/bitmap shape here is grounded on gopher-os's pmm bitmap
// allocator (other_examples/e6183826_gopher-os-gopher-os__kernel-mem-pmm-
// allocator-bitmap_allocator.go) rather than the teacher's own page
// allocator, which is a linked free list (src/go/mazarin/page.go) — spec §3
// requires a bitmap explicitly ("the allocator's bitmap bit is set iff the
// frame is not on the free pool"), so this package generalizes gopher-os's
// bitmap shape into the teacher's naming and commenting idiom: short doc
// comments, sentinel returns instead of errors, uintptr addressing
// throughout.
package pmm

import "vela/internal/bitfield"

// FrameSize is the fixed page/frame size for this kernel.
const FrameSize = 4096

// FrameFlags packs the per-frame descriptor flags from spec §3.
type FrameFlags struct {
	Reserved bool   `bitfield:",1"`
	Kernel   bool   `bitfield:",1"`
	User     bool   `bitfield:",1"`
	Dirty    bool   `bitfield:",1"`
	Locked   bool   `bitfield:",1"`
	_        uint32 `bitfield:",27"`
}

// Descriptor is the per-frame metadata record.
type Descriptor struct {
	Flags    FrameFlags
	RefCount uint32
}

// Pack returns the flags word for d, matching the "bitmap bit is set iff
// not free" invariant tracked separately by the owning Zone.
func (d *Descriptor) pack() uint64 {
	v, _ := bitfield.Pack(d.Flags, &bitfield.Config{NumBits: 32})
	return v
}

func (d *Descriptor) unpack(v uint64) {
	_ = bitfield.Unpack(v, &d.Flags)
}
