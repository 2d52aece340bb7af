//go:build qemuvirt && aarch64

package kernel

import (
	"unsafe"

	"vela/internal/compositor"
	"vela/internal/kheap"
)

// heapPixelHeap implements internal/compositor.PixelHeap over
// internal/kheap.Heap, reinterpreting the byte payload kheap hands back
// as a []uint32 ARGB8888 pixel slice (spec §3: "a heap-allocated pixel
// buffer of w*h 32-bit ARGB pixels").
type heapPixelHeap struct {
	heap *kheap.Heap
}

func newHeapPixelHeap(heap *kheap.Heap) *heapPixelHeap {
	return &heapPixelHeap{heap: heap}
}

// AllocPixels implements internal/compositor.PixelHeap.
func (h *heapPixelHeap) AllocPixels(n int) (compositor.Pixels, bool) {
	payload, ok := h.heap.Alloc(uint32(n * 4))
	if !ok {
		return nil, false
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(payload)), n), true
}

// FreePixels implements internal/compositor.PixelHeap.
func (h *heapPixelHeap) FreePixels(p compositor.Pixels) {
	if len(p) == 0 {
		return
	}
	h.heap.Free(uintptr(unsafe.Pointer(&p[0])))
}
