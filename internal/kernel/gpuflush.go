//go:build qemuvirt && aarch64

package kernel

import (
	"unsafe"

	"vela/internal/compositor"
	"vela/internal/virtio/gpu"
)

// flushAdapter implements internal/compositor.GPUFlusher over
// internal/virtio/gpu.Driver. The two cannot be wired directly: the
// compositor's framebuffer (spec §4.L) is a plain Go []uint32 slice, while
// the GPU device only ever reads from the physical backing buffer it was
// given via AttachBacking (spec §4.K "GPU": attach-backing, set-scanout,
// transfer, flush). Flush therefore first copies the dirty rectangle out
// of the compositor's slice into that physical buffer, then asks the
// device to transfer and flush it — two steps standing in for the single
// step a real display server gets when its framebuffer already lives in
// the memory the display controller scans out of.
type flushAdapter struct {
	comp    *compositor.Compositor
	gpu     *gpu.Driver
	backing unsafe.Pointer // base of the physical buffer passed to AttachBacking
	stride  int32          // framebuffer width, in pixels
}

// newFlushAdapter constructs the adapter. comp is filled in by Boot after
// compositor.New returns, since the compositor must exist before this
// adapter (its own GPUFlusher argument) can be constructed — see
// kernel.go's two-phase construction.
func newFlushAdapter(g *gpu.Driver, backingAddr uintptr, stride int32) *flushAdapter {
	return &flushAdapter{gpu: g, backing: unsafe.Pointer(backingAddr), stride: stride}
}

// Flush implements internal/compositor.GPUFlusher.
func (f *flushAdapter) Flush(x, y, w, h uint32) bool {
	fb := f.comp.Framebuffer()
	dst := unsafe.Slice((*uint32)(f.backing), int(f.stride)*int(fb.Height))
	for row := uint32(0); row < h; row++ {
		srcOff := int(y+row)*int(f.stride) + int(x)
		copy(dst[srcOff:srcOff+int(w)], fb.Pix[srcOff:srcOff+int(w)])
	}
	return f.gpu.Flush(x, y, w, h)
}
