package input

import (
	"testing"

	"vela/internal/virtio"
)

type fakeMouse struct {
	dx, dy   int32
	absolute bool
	calls    int
}

func (m *fakeMouse) UpdateMouse(dx, dy int32, absolute bool) {
	m.dx, m.dy, m.absolute = dx, dy, absolute
	m.calls++
}

type fakeClicker struct {
	pressed []bool
}

func (c *fakeClicker) HandleClick(pressed bool) { c.pressed = append(c.pressed, pressed) }

type fakeKbdBuf struct{ bytes []byte }

func (k *fakeKbdBuf) PushByte(b byte) { k.bytes = append(k.bytes, b) }

// fakeMem is a flat byte-addressed memory backing pre-posted event
// buffers, reusing the little-endian layout real guest memory would have.
type fakeMem struct{ mem map[uintptr]byte }

func newFakeMem() *fakeMem { return &fakeMem{mem: map[uintptr]byte{}} }

func (m *fakeMem) Read16(a uintptr) uint16 {
	return uint16(m.mem[a]) | uint16(m.mem[a+1])<<8
}
func (m *fakeMem) Read32(a uintptr) uint32 {
	return uint32(m.Read16(a)) | uint32(m.Read16(a+2))<<16
}
func (m *fakeMem) writeEvent(addr uintptr, evType, code uint16, value uint32) {
	m.mem[addr] = byte(evType)
	m.mem[addr+1] = byte(evType >> 8)
	m.mem[addr+2] = byte(code)
	m.mem[addr+3] = byte(code >> 8)
	m.mem[addr+4] = byte(value)
	m.mem[addr+5] = byte(value >> 8)
	m.mem[addr+6] = byte(value >> 16)
	m.mem[addr+7] = byte(value >> 24)
}

// busFake is a minimal mmio.Bus the Device/Queue need; events themselves
// are exchanged through fakeMem, a separate Memory seam local to this
// package (the real kernel backs both with the same identity-mapped
// physical view, but the driver only depends on the narrow interfaces it
// declares).
type busFake struct{ mem map[uintptr]byte }

func newBusFake() *busFake { return &busFake{mem: map[uintptr]byte{}} }
func (b *busFake) Read8(a uintptr) byte     { return b.mem[a] }
func (b *busFake) write8(a uintptr, v byte) { b.mem[a] = v }
func (b *busFake) Read16(a uintptr) uint16 {
	return uint16(b.Read8(a)) | uint16(b.Read8(a+1))<<8
}
func (b *busFake) Write16(a uintptr, v uint16) {
	b.write8(a, byte(v))
	b.write8(a+1, byte(v>>8))
}
func (b *busFake) Read32(a uintptr) uint32 {
	return uint32(b.Read16(a)) | uint32(b.Read16(a+2))<<16
}
func (b *busFake) Write32(a uintptr, v uint32) {
	b.Write16(a, uint16(v))
	b.Write16(a+2, uint16(v>>16))
}
func (b *busFake) Read64(a uintptr) uint64 {
	return uint64(b.Read32(a)) | uint64(b.Read32(a+4))<<32
}
func (b *busFake) Write64(a uintptr, v uint64) {
	b.Write32(a, uint32(v))
	b.Write32(a+4, uint32(v>>32))
}
func (b *busFake) Barrier() {}
func (b *busFake) Zero(a uintptr, size uint32) {
	for i := uint32(0); i < size; i++ {
		b.write8(a+uintptr(i), 0)
	}
}

type testRig struct {
	driver    *Driver
	mem       *fakeMem
	mouse     *fakeMouse
	clicker   *fakeClicker
	kbd       *fakeKbdBuf
	bus       *busFake
	queueBase uintptr
	layout    virtio.Layout
}

func newTestRig() *testRig {
	const devBase = 0x30000
	const queueBase = 0x40000
	bus := newBusFake()
	layout := virtio.ComputeLayout(4)
	dev := &virtio.Device{Bus: bus, Base: devBase, Version: 2}
	queue := virtio.NewQueue(bus, queueBase, layout)

	mem := newFakeMem()
	mouse := &fakeMouse{}
	clicker := &fakeClicker{}
	kbd := &fakeKbdBuf{}
	d := New(dev, queue, mem, mouse, clicker, kbd)
	return &testRig{driver: d, mem: mem, mouse: mouse, clicker: clicker, kbd: kbd, bus: bus, queueBase: queueBase, layout: layout}
}

// completeOneDrainable simulates the device having processed the
// most-recently-posted descriptor: it reads that descriptor's index off
// the available ring (PostAll/Submit always advances avail->idx by
// exactly one per posted descriptor) and writes the corresponding used-
// ring entry, advancing used->idx by one so the driver's next DrainUsed
// picks it up.
func (r *testRig) completeOneDrainable() {
	availIdx := r.bus.Read16(r.queueBase+r.layout.AvailOffset+2) - 1
	slot := availIdx % r.layout.Size
	descIdx := r.bus.Read16(r.queueBase + r.layout.AvailOffset + 4 + uintptr(slot)*2)

	usedIdx := r.bus.Read16(r.queueBase + r.layout.UsedOffset + 2)
	usedSlot := usedIdx % r.layout.Size
	elem := r.queueBase + r.layout.UsedOffset + 4 + uintptr(usedSlot)*8
	r.bus.Write32(elem, uint32(descIdx))
	r.bus.Write32(elem+4, eventSize)
	r.bus.Write16(r.queueBase+r.layout.UsedOffset+2, usedIdx+1)
}

func TestHandleIRQTranslatesRelativeMotion(t *testing.T) {
	r := newTestRig()
	r.driver.PostAll([]uintptr{0x1000})

	r.mem.writeEvent(0x1000, evRel, relX, 5)
	r.completeOneDrainable()

	r.driver.HandleIRQ()
	if r.mouse.calls != 1 || r.mouse.dx != 5 || r.mouse.absolute {
		t.Fatalf("unexpected mouse state: %+v", r.mouse)
	}
}

func TestHandleIRQTranslatesClick(t *testing.T) {
	r := newTestRig()
	r.driver.PostAll([]uintptr{0x2000})

	r.mem.writeEvent(0x2000, evKey, btnLeft, 1)
	r.completeOneDrainable()

	r.driver.HandleIRQ()
	if len(r.clicker.pressed) != 1 || !r.clicker.pressed[0] {
		t.Fatalf("expected one press event, got %+v", r.clicker.pressed)
	}
}

func TestHandleIRQTranslatesKeyToKeyboardBuffer(t *testing.T) {
	r := newTestRig()
	r.driver.PostAll([]uintptr{0x3000})

	r.mem.writeEvent(0x3000, evKey, 30 /* 'a' */, 1)
	r.completeOneDrainable()

	r.driver.HandleIRQ()
	if len(r.kbd.bytes) != 1 || r.kbd.bytes[0] != 'a' {
		t.Fatalf("expected 'a' in keyboard buffer, got %v", r.kbd.bytes)
	}
}

func TestShiftModifiesSubsequentKey(t *testing.T) {
	r := newTestRig()

	r.driver.PostAll([]uintptr{0x4000})
	r.mem.writeEvent(0x4000, evKey, keyLeftShift, 1)
	r.completeOneDrainable()
	r.driver.HandleIRQ()

	r.driver.PostAll([]uintptr{0x4100})
	r.mem.writeEvent(0x4100, evKey, 30, 1)
	r.completeOneDrainable()
	r.driver.HandleIRQ()

	if len(r.kbd.bytes) != 1 || r.kbd.bytes[0] != 'A' {
		t.Fatalf("expected shifted 'A', got %v", r.kbd.bytes)
	}
}

func TestCapsLockTogglesLetterCase(t *testing.T) {
	r := newTestRig()

	r.driver.PostAll([]uintptr{0x5000})
	r.mem.writeEvent(0x5000, evKey, keyCapsLock, 1)
	r.completeOneDrainable()
	r.driver.HandleIRQ()

	r.driver.PostAll([]uintptr{0x5100})
	r.mem.writeEvent(0x5100, evKey, 30, 1) // 'a' -> 'A' under caps lock
	r.completeOneDrainable()
	r.driver.HandleIRQ()

	if len(r.kbd.bytes) != 1 || r.kbd.bytes[0] != 'A' {
		t.Fatalf("expected caps-locked 'A', got %v", r.kbd.bytes)
	}
}
