package kernel

// keyboardRingSize is the circular buffer's fixed capacity. Generous
// enough that a burst of keystrokes between scheduler ticks never
// overruns it under the single-hart, cooperative-drain discipline spec
// §5 describes for every other device queue in this kernel.
const keyboardRingSize = 256

// focusSource reports which process currently holds input focus.
// *internal/compositor.Compositor satisfies this directly via FocusPID.
type focusSource interface {
	FocusPID() (pid int, ok bool)
}

// KeyboardRing is the fixed-capacity circular buffer standing between
// internal/virtio/input's evdev translation and internal/syscall's
// blocking read(2) (spec §4.I read: "blocking on a wait-for-event
// instruction if empty and the process holds input focus"; spec §4.K
// input: "keyboard scancodes into a small ring buffer for the focused
// window"). It satisfies both internal/virtio/input.KeyboardBuffer
// (PushByte, the producer side) and internal/syscall.Keyboard (the
// consumer side).
//
// Grounded on internal/fs.BufferCache's open-addressed, fixed-size-array
// discipline generalized from a hash table to the simpler producer/
// consumer ring every evdev-backed keyboard driver in the retrieval pack
// uses (other_examples/usbarmory-tamago's USB HID keyboard driver keeps
// the same shape: a small byte ring fed by an interrupt handler, drained
// by a blocking reader).
type KeyboardRing struct {
	buf   [keyboardRingSize]byte
	head  int // next byte to read
	tail  int // next free slot to write
	count int

	focus focusSource
	wait  func()
}

// NewKeyboardRing constructs an empty ring reporting focus through focus
// and blocking through wait. wait is normally arch/arm64.WaitForEvent;
// tests supply a counting fake instead.
func NewKeyboardRing(focus focusSource, wait func()) *KeyboardRing {
	return &KeyboardRing{focus: focus, wait: wait}
}

// PushByte appends one byte, silently dropping it if the ring is full
// (spec §7: device-level overflow is not in the fatal/recoverable/silent
// taxonomy's scope, so the producer side keeps the earliest buffered
// keystrokes and discards new ones rather than blocking the IRQ handler).
func (k *KeyboardRing) PushByte(b byte) {
	if k.count == keyboardRingSize {
		return
	}
	k.buf[k.tail] = b
	k.tail = (k.tail + 1) % keyboardRingSize
	k.count++
}

// TryReadByte pops the oldest byte, or ok=false if the ring is empty.
func (k *KeyboardRing) TryReadByte() (b byte, ok bool) {
	if k.count == 0 {
		return 0, false
	}
	b = k.buf[k.head]
	k.head = (k.head + 1) % keyboardRingSize
	k.count--
	return b, true
}

// HasFocus reports whether pid currently owns the focused window.
func (k *KeyboardRing) HasFocus(pid int) bool {
	focused, ok := k.focus.FocusPID()
	return ok && focused == pid
}

// WaitForEvent parks the caller until the next interrupt (spec §4.I read).
func (k *KeyboardRing) WaitForEvent() {
	if k.wait != nil {
		k.wait()
	}
}
