package trap

import "testing"

func TestHandleSyncSVCFromEL0DispatchesSyscall(t *testing.T) {
	var gotFrame *Frame
	d := &Dispatcher{
		Syscall:      func(f *Frame) { gotFrame = f },
		ProcessFault: func(f *Frame, esr, far uint64) { t.Fatalf("unexpected process fault") },
	}
	f := &Frame{}
	esr := uint64(ECSVC64) << 26
	d.HandleSync(f, esr, 0, FromEL0)
	if gotFrame != f {
		t.Fatalf("expected syscall handler invoked with the same frame")
	}
}

func TestHandleSyncNonSVCFromEL0IsProcessFault(t *testing.T) {
	called := false
	d := &Dispatcher{
		Syscall:      func(f *Frame) { t.Fatalf("unexpected syscall dispatch") },
		ProcessFault: func(f *Frame, esr, far uint64) { called = true },
	}
	esr := uint64(ECDataAbortLow) << 26
	d.HandleSync(&Frame{}, esr, 0x1000, FromEL0)
	if !called {
		t.Fatalf("expected ProcessFault to be invoked")
	}
}

func TestHandleSyncFromEL1IsKernelFault(t *testing.T) {
	called := false
	d := &Dispatcher{KernelFault: func(f *Frame, esr, far uint64) { called = true }}
	esr := uint64(ECSVC64) << 26 // even an SVC-shaped ESR is fatal from EL1
	d.HandleSync(&Frame{}, esr, 0, FromEL1)
	if !called {
		t.Fatalf("expected KernelFault to be invoked")
	}
}

func TestHandleIRQStopsOnSpuriousAndRoutesTimerLine(t *testing.T) {
	acks := []uint32{27, 33, 1023}
	i := 0
	var timerFired bool
	var otherIRQs []uint32
	var ended []uint32

	d := &Dispatcher{
		Acknowledge: func() uint32 {
			v := acks[i]
			i++
			return v
		},
		TimerTick: func(f *Frame) { timerFired = true },
		OtherIRQ:  func(irq uint32) { otherIRQs = append(otherIRQs, irq) },
		End:       func(irq uint32) { ended = append(ended, irq) },
		Spurious:  1023,
		TimerLine: 27,
	}
	d.HandleIRQ(&Frame{})

	if !timerFired {
		t.Fatalf("expected timer tick to fire for line 27")
	}
	if len(otherIRQs) != 1 || otherIRQs[0] != 33 {
		t.Fatalf("expected line 33 routed to OtherIRQ, got %v", otherIRQs)
	}
	if len(ended) != 2 || ended[0] != 27 || ended[1] != 33 {
		t.Fatalf("expected EOI for both non-spurious lines, got %v", ended)
	}
}
