// Package ptimer is the periodic timer (spec §4.E): ARM generic virtual
// timer bring-up, a monotonic "jiffies" tick counter, and a software
// timer list invoked from the tick handler.
//
// Grounded on the teacher's src/go/mazarin/timer_qemu.go: CNTV_* register
// access (linknamed in hw_arm64.go, mirroring the teacher's own
// //go:linkname bridges), the TVAL countdown-reprogram-on-every-tick
// idiom, and gicEnableInterrupt(IRQ_ID_TIMER_PPI) to wire it into the GIC.
// Unlike the teacher (which hardcodes a fixed countdown and a 5-second
// qemu_exit demo), this package reprograms the *compare* register by a
// fixed HZ-derived delta every tick, matching spec §4.E exactly, and
// drives a scheduler hook instead of a demo exit counter.
package ptimer

// HZ is the fixed tick rate (spec §4.E).
const HZ = 100

// CounterReader abstracts reading the free-running virtual counter and
// its frequency; hw_arm64.go backs this with CNTVCT_EL0/CNTFRQ_EL0 reads,
// tests back it with a fake clock.
type CounterReader interface {
	ReadCounter() uint64
	ReadFrequency() uint32
}

// Compare abstracts programming the timer's compare value and enabling/
// disabling it; hw_arm64.go backs this with CNTV_CVAL_EL0/CNTV_CTL_EL0.
type Compare interface {
	SetCompare(value uint64)
	Enable()
}

// SoftTimer is one entry on the software timer list (spec §4.E: "walks a
// software-timer list and invokes expired callbacks").
type SoftTimer struct {
	deadline uint64
	fn       func()
	active   bool
}

// Timer owns the tick counter and the software timer list.
type Timer struct {
	counter CounterReader
	compare Compare
	freq    uint32
	delta   uint64 // ticks per HZ interval, i.e. freq / HZ
	jiffies uint64

	soft []SoftTimer
}

// New constructs a Timer; Init must be called once the hardware is ready.
func New(counter CounterReader, compare Compare) *Timer {
	return &Timer{counter: counter, compare: compare}
}

// Init reads the counter frequency once and programs the first deadline
// at now + freq/HZ (spec §4.E).
func (t *Timer) Init() {
	t.freq = t.counter.ReadFrequency()
	t.delta = uint64(t.freq) / HZ
	if t.delta == 0 {
		t.delta = 1
	}
	t.compare.SetCompare(t.counter.ReadCounter() + t.delta)
	t.compare.Enable()
}

// Jiffies returns the current monotonic tick count.
func (t *Timer) Jiffies() uint64 { return t.jiffies }

// Frequency returns the counter frequency read at Init.
func (t *Timer) Frequency() uint32 { return t.freq }

// RegisterSoftTimer schedules fn to run after delayTicks additional
// ticks have elapsed, returning a handle for cancellation.
func (t *Timer) RegisterSoftTimer(delayTicks uint64, fn func()) int {
	entry := SoftTimer{deadline: t.jiffies + delayTicks, fn: fn, active: true}
	t.soft = append(t.soft, entry)
	return len(t.soft) - 1
}

// CancelSoftTimer deactivates a previously registered software timer.
func (t *Timer) CancelSoftTimer(handle int) {
	if handle >= 0 && handle < len(t.soft) {
		t.soft[handle].active = false
	}
}

// Tick is invoked from the IRQ handler on every timer firing (spec §4.E):
// increments jiffies, reprograms the compare register for the next tick,
// walks and fires expired software timers, then invokes schedule so the
// scheduler may choose a different process to return to.
func (t *Timer) Tick(schedule func()) {
	t.jiffies++
	t.compare.SetCompare(t.counter.ReadCounter() + t.delta)

	for i := range t.soft {
		st := &t.soft[i]
		if st.active && t.jiffies >= st.deadline {
			st.active = false
			st.fn()
		}
	}

	schedule()
}

// DelayMicros busy-loops on the free-running counter for approximately us
// microseconds (spec §4.E delay_us; "only safe in contexts where a long
// stall is acceptable").
func (t *Timer) DelayMicros(us uint64) {
	ticks := us * uint64(t.freq) / 1_000_000
	deadline := t.counter.ReadCounter() + ticks
	for t.counter.ReadCounter() < deadline {
	}
}

// DelayMillis is DelayMicros scaled by 1000 (spec §4.E delay_ms).
func (t *Timer) DelayMillis(ms uint64) {
	t.DelayMicros(ms * 1000)
}
