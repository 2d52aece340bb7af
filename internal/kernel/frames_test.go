package kernel

import "testing"

type fakeFrameAllocator struct {
	lastN uint32
	addr  uintptr
	ok    bool
}

func (f *fakeFrameAllocator) AllocFrames(n uint32) (uintptr, bool) {
	f.lastN = n
	return f.addr, f.ok
}

func TestQueueFrameSourceConvertsCountAndForwardsResult(t *testing.T) {
	fake := &fakeFrameAllocator{addr: 0x4000, ok: true}
	src := newQueueFrameSource(fake)

	base, ok := src.AllocContiguous(3)
	if !ok || base != 0x4000 {
		t.Fatalf("got (%#x, %v), want (0x4000, true)", base, ok)
	}
	if fake.lastN != 3 {
		t.Fatalf("AllocFrames called with n=%d, want 3", fake.lastN)
	}
}

func TestQueueFrameSourcePropagatesFailure(t *testing.T) {
	fake := &fakeFrameAllocator{ok: false}
	src := newQueueFrameSource(fake)

	if _, ok := src.AllocContiguous(1); ok {
		t.Fatal("expected AllocContiguous to fail when the allocator does")
	}
}
