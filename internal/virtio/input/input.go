// Package input is the VirtIO input driver (spec §4.K "Input"): probes a
// sub-range of device slots, pre-posts one inbound-event descriptor per
// queue entry, and on every IRQ drains completions, translating each
// directly into a mouse update, a click, or a keyboard byte. Drained
// events are not staged in a separate event buffer.
//
// Grounded on internal/virtio's asynchronous pre-post/drain/re-post
// protocol (spec §4.J) and the teacher's src/go/mazarin/gic_qemu.go
// handler-table idiom for wiring a per-line IRQ callback, generalized
// here to one handler per probed input slot (spec §6: "VirtIO input
// devices follow slot index offset from line 48").
package input

import "vela/internal/virtio"

// Linux evdev event-type and code constants spec §4.K names directly.
const (
	evKey = 1
	evRel = 2
	evAbs = 3

	relX = 0
	relY = 1
	absX = 0
	absY = 1

	btnLeft = 0x110
)

// Mouse receives relative or absolute pointer motion (spec §4.K: "feed
// the compositor's mouse-update entry").
type Mouse interface {
	UpdateMouse(dx, dy int32, absolute bool)
}

// Clicker receives left-button press/release events (spec §4.K: "feed its
// click handler").
type Clicker interface {
	HandleClick(pressed bool)
}

// KeyboardBuffer is the shared single-producer/single-consumer ring the
// read syscall drains (spec §4.I read, spec §5: "single-producer (IRQ),
// single-consumer (read syscall)").
type KeyboardBuffer interface {
	PushByte(b byte)
}

const eventSize = 8 // type(2) + code(2) + value(4)

// Memory reads the three fields of a drained input event out of its
// descriptor buffer.
type Memory interface {
	Read16(addr uintptr) uint16
	Read32(addr uintptr) uint32
}

// Driver is one claimed VirtIO input device with its pre-posted queue and
// translation state.
type Driver struct {
	dev   *virtio.Device
	queue *virtio.Queue
	mem   Memory

	mouse   Mouse
	clicker Clicker
	kbd     KeyboardBuffer

	lastUsed uint16
	modifier modifierState

	// eventAddr maps a descriptor index to the physical address of its
	// pre-posted event buffer, populated by PostAll.
	eventAddr map[uint16]uintptr
}

// New wires a probed, negotiated VirtIO input device to its queue and the
// subsystems its events feed.
func New(dev *virtio.Device, queue *virtio.Queue, mem Memory, mouse Mouse, clicker Clicker, kbd KeyboardBuffer) *Driver {
	return &Driver{dev: dev, queue: queue, mem: mem, mouse: mouse, clicker: clicker, kbd: kbd, eventAddr: map[uint16]uintptr{}}
}

// PostAll pre-posts one writable descriptor per address in bufs (spec
// §4.K: "pre-posts an inbound-event buffer per descriptor").
func (d *Driver) PostAll(bufs []uintptr) {
	for _, addr := range bufs {
		idx, ok := d.queue.PostWritable(uint64(addr), eventSize)
		if ok {
			d.eventAddr[idx] = addr
		}
	}
}

// HandleIRQ drains every completed event since the last call, translates
// it, and re-posts the descriptor (spec §4.J async variant / §4.K).
func (d *Driver) HandleIRQ() {
	d.dev.InterruptACK(d.dev.InterruptStatus())
	d.queue.DrainUsed(&d.lastUsed, func(descIdx uint16, _ uint32) {
		addr, ok := d.eventAddr[descIdx]
		if ok {
			d.translate(d.mem.Read16(addr), d.mem.Read16(addr+2), d.mem.Read32(addr+4))
		}
		d.queue.Repost(descIdx)
	})
}

func (d *Driver) translate(evType, code uint16, value uint32) {
	switch evType {
	case evRel:
		switch code {
		case relX:
			d.mouse.UpdateMouse(int32(value), 0, false)
		case relY:
			d.mouse.UpdateMouse(0, int32(value), false)
		}
	case evAbs:
		switch code {
		case absX:
			d.mouse.UpdateMouse(int32(value), 0, true)
		case absY:
			d.mouse.UpdateMouse(0, int32(value), true)
		}
	case evKey:
		if code == btnLeft {
			d.clicker.HandleClick(value != 0)
			return
		}
		if ascii, ok := d.modifier.translate(uint16(code), value != 0); ok {
			d.kbd.PushByte(ascii)
		}
	}
}
