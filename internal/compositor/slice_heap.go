package compositor

// SlicePixelHeap is a PixelHeap backed directly by Go's allocator, used by
// tests and by any host-side tooling that links this package outside the
// kernel. internal/kernel's real wiring instead backs PixelHeap with
// internal/kheap.Heap over physical memory.
type SlicePixelHeap struct{}

// NewSlicePixelHeap returns a PixelHeap that never fails and never
// reclaims (Go's garbage collector, not internal/kheap, owns the memory).
func NewSlicePixelHeap() SlicePixelHeap { return SlicePixelHeap{} }

func (SlicePixelHeap) AllocPixels(n int) (Pixels, bool) {
	return make(Pixels, n), true
}

func (SlicePixelHeap) FreePixels(Pixels) {}
