package virtio

import (
	"vela/internal/bitfield"
	"vela/internal/mmio"
)

// DescFlags packs a descriptor's flag word (spec §4.J: "a flags word
// (next / write / indirect)"), grounded on the teacher's
// VIRTQ_DESC_F_{NEXT,WRITE,INDIRECT} constants in virtqueue.go, moved onto
// internal/bitfield per the "pointer frames in device memory" design
// note's call to model the ring as a typed view rather than a raw pun.
type DescFlags struct {
	Next     bool `bitfield:",1"`
	Write    bool `bitfield:",1"`
	Indirect bool `bitfield:",1"`
}

func (f DescFlags) pack() uint16 {
	v, _ := bitfield.Pack(&f, &bitfield.Config{NumBits: 16})
	return uint16(v)
}

func unpackDescFlags(v uint16) DescFlags {
	var f DescFlags
	_ = bitfield.Unpack(uint64(v), &f)
	return f
}

const descSize = 16 // addr(8) + len(4) + flags(2) + next(2)

const noDesc = 0xffff

// Layout computes the byte layout of a size-entry virtqueue (spec §4.J:
// "descriptor array at offset 0 (size × 16 bytes), available ring
// immediately after..., used ring at page offset 4096").
type Layout struct {
	Size        uint16
	DescOffset  uintptr
	AvailOffset uintptr
	AvailBytes  uintptr
	UsedOffset  uintptr
	UsedBytes   uintptr
	TotalBytes  uintptr
}

func ComputeLayout(size uint16) Layout {
	descBytes := uintptr(size) * descSize
	availBytes := uintptr(4) + uintptr(size)*2 + 2 // flags+idx+ring+used_event
	const pageSize = 4096
	usedBytes := uintptr(4) + uintptr(size)*8 + 2 // flags+idx+ring(id,len)+avail_event
	usedOffset := uintptr(pageSize)
	total := usedOffset + usedBytes
	if total%pageSize != 0 {
		total = (total/pageSize + 1) * pageSize
	}
	return Layout{
		Size:        size,
		DescOffset:  0,
		AvailOffset: descBytes,
		AvailBytes:  availBytes,
		UsedOffset:  usedOffset,
		UsedBytes:   usedBytes,
		TotalBytes:  total,
	}
}

// Queue is one virtqueue: a descriptor table, available ring, and used
// ring allocated contiguously at base, accessed through mem (spec §4.J /
// §3 "Virtqueue").
type Queue struct {
	mem    mmio.Bus
	base   uintptr
	layout Layout

	freeHead uint16
	numFree  uint16
}

// NewQueue wraps an already-allocated, already-zeroed contiguous region of
// layout.TotalBytes bytes starting at base as a virtqueue, and chains every
// descriptor slot onto the free list (spec §4.J: queue setup happens once
// per device bring-up, before any request is submitted).
func NewQueue(mem mmio.Bus, base uintptr, layout Layout) *Queue {
	q := &Queue{mem: mem, base: base, layout: layout, numFree: layout.Size}
	for i := uint16(0); i < layout.Size-1; i++ {
		q.writeDescNext(i, i+1)
	}
	q.writeDescNext(layout.Size-1, noDesc)
	q.freeHead = 0
	return q
}

func (q *Queue) descAddr(idx uint16) uintptr {
	return q.base + q.layout.DescOffset + uintptr(idx)*descSize
}

func (q *Queue) writeDesc(idx uint16, addr uint64, length uint32, flags DescFlags, next uint16) {
	a := q.descAddr(idx)
	q.mem.Write64(a+0, addr)
	q.mem.Write32(a+8, length)
	q.mem.Write16(a+12, flags.pack())
	q.mem.Write16(a+14, next)
}

func (q *Queue) writeDescNext(idx uint16, next uint16) {
	q.mem.Write16(q.descAddr(idx)+14, next)
}

func (q *Queue) readDescNext(idx uint16) uint16 {
	return q.mem.Read16(q.descAddr(idx) + 14)
}

func (q *Queue) readDescFlags(idx uint16) DescFlags {
	return unpackDescFlags(q.mem.Read16(q.descAddr(idx) + 12))
}

// Buffer is one link in a descriptor chain the driver wants to submit.
type Buffer struct {
	Addr  uint64
	Len   uint32
	Write bool // device-writable (spec §4.J: "writable markings on the device-writable segments")
}

// AddChain allocates len(bufs) descriptors from the free list, chains them
// in order, and returns the head index. ok is false if too few descriptors
// are free.
func (q *Queue) AddChain(bufs []Buffer) (head uint16, ok bool) {
	if uint16(len(bufs)) > q.numFree {
		return 0, false
	}
	// Walk the free list to collect every descriptor index this chain will
	// use before writing any of them, since writing a descriptor clobbers
	// the very free-list Next pointer a naive single pass would still need
	// to read.
	indices := make([]uint16, len(bufs))
	idx := q.freeHead
	for i := range bufs {
		indices[i] = idx
		idx = q.readDescNext(idx)
	}
	q.freeHead = idx
	q.numFree -= uint16(len(bufs))

	for i, b := range bufs {
		hasNext := i < len(bufs)-1
		next := uint16(noDesc)
		if hasNext {
			next = indices[i+1]
		}
		q.writeDesc(indices[i], b.Addr, b.Len, DescFlags{Write: b.Write, Next: hasNext}, next)
	}
	return indices[0], true
}

func (q *Queue) freeChain(head uint16) {
	idx := head
	for {
		flags := q.readDescFlags(idx)
		next := q.readDescNext(idx)
		q.writeDescNext(idx, q.freeHead)
		q.freeHead = idx
		q.numFree++
		if !flags.Next {
			break
		}
		idx = next
	}
}

func (q *Queue) availBase() uintptr  { return q.base + q.layout.AvailOffset }
func (q *Queue) availIdxAddr() uintptr { return q.availBase() + 2 }
func (q *Queue) availRingAddr(slot uint16) uintptr {
	return q.availBase() + 4 + uintptr(slot)*2
}

func (q *Queue) usedBase() uintptr  { return q.base + q.layout.UsedOffset }
func (q *Queue) usedIdxAddr() uintptr { return q.usedBase() + 2 }
func (q *Queue) usedElemAddr(slot uint16) uintptr {
	return q.usedBase() + 4 + uintptr(slot)*8
}

// UsedIdx reads the device-owned used-ring index.
func (q *Queue) UsedIdx() uint16 { return q.mem.Read16(q.usedIdxAddr()) }

// Submit publishes descIdx to the available ring (spec §4.J steps 2-3):
// place the head index at avail->idx mod size, barrier, increment
// avail->idx, barrier. It does not notify the device; the caller writes
// the notify register via Device.Notify.
func (q *Queue) Submit(descIdx uint16) {
	availIdx := q.mem.Read16(q.availIdxAddr())
	q.mem.Write16(q.availRingAddr(availIdx%q.layout.Size), descIdx)
	q.mem.Barrier()
	q.mem.Write16(q.availIdxAddr(), availIdx+1)
	q.mem.Barrier()
}

// WaitUsed busy-waits until the used index advances past prevIdx (spec
// §4.J step 5), then returns and frees the completed chain, reporting the
// device-written length.
func (q *Queue) WaitUsed(prevIdx uint16) (length uint32) {
	for q.UsedIdx() == prevIdx {
		// spin; spec §5: "Busy-waits on virtqueue completions do not
		// suspend; they spin under IRQs-enabled."
	}
	slot := prevIdx % q.layout.Size
	a := q.usedElemAddr(slot)
	descIdx := uint16(q.mem.Read32(a))
	length = q.mem.Read32(a + 4)
	q.freeChain(descIdx)
	return length
}

// PostWritable pre-posts a single device-writable descriptor directly into
// both the free-list head and the available ring, for the input driver's
// asynchronous pre-post-every-descriptor discipline (spec §4.J: "it
// pre-posts every descriptor as writable").
func (q *Queue) PostWritable(addr uint64, length uint32) (descIdx uint16, ok bool) {
	head, ok := q.AddChain([]Buffer{{Addr: addr, Len: length, Write: true}})
	if !ok {
		return 0, false
	}
	q.Submit(head)
	return head, true
}

// DrainUsed calls fn for every used-ring entry posted since last (spec
// §4.J async variant: "drains the used ring by the saved last_used_idx,
// processes each completion, re-posts the descriptor"), advancing last in
// place. fn receives the descriptor index and device-written length so
// the input driver can read the event out of the corresponding buffer
// before re-posting it.
func (q *Queue) DrainUsed(last *uint16, fn func(descIdx uint16, length uint32)) {
	for q.UsedIdx() != *last {
		slot := *last % q.layout.Size
		a := q.usedElemAddr(slot)
		descIdx := uint16(q.mem.Read32(a))
		length := q.mem.Read32(a + 4)
		fn(descIdx, length)
		*last++
	}
}

// Repost places a previously-drained descriptor back onto the available
// ring without touching the free list (the input driver owns its
// descriptors permanently; they are never freed, only recycled).
func (q *Queue) Repost(descIdx uint16) {
	q.Submit(descIdx)
}
