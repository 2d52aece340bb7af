// Package gpu is the VirtIO-GPU driver (spec §4.K "GPU"): discovers the
// display mode, creates a 2D host resource backed by the kernel's
// framebuffer, binds it to scanout 0, and exposes a flush(x, y, w, h)
// operation the compositor calls after every render pass.
//
// Grounded on internal/virtio's synchronous request/response protocol
// (spec §4.J) applied to the VirtIO-GPU control-queue command set, which
// the teacher's own `other_examples`-adjacent framebuffer drivers
// (`ramfb_qemu.go`) never speak — ramfb is a separate, simpler QEMU
// fw_cfg device. Command/response header layout follows the VirtIO-GPU
// specification's `virtio_gpu_ctrl_hdr` (type/flags/fence-id/ctx-id)
// convention.
package gpu

import "vela/internal/virtio"

// Control-queue command types (spec §4.K names each by function).
const (
	cmdGetDisplayInfo     = 0x0100
	cmdResourceCreate2D   = 0x0101
	cmdResourceAttachBack = 0x0106
	cmdSetScanout         = 0x0103
	cmdTransferToHost2D   = 0x0102
	cmdResourceFlush      = 0x0104

	respOKNoData  = 0x1100
	respOKDisplay = 0x1101

	formatB8G8R8A8 = 1
)

const ctrlHdrSize = 24 // type(4)+flags(4)+fence_id(8)+ctx_id(4)+padding(4)

// Memory lets the driver populate request headers and read back the
// response header's type field in its fixed scratch buffers.
type Memory interface {
	Write32(addr uintptr, v uint32)
	Write64(addr uintptr, v uint64)
	Read32(addr uintptr) uint32
}

// Driver is one claimed VirtIO-GPU device driving the single control
// queue (queue index 0); the cursor queue (index 1) is unused since this
// kernel draws its own software cursor (spec §4.L "paint the mouse cursor
// glyph").
type Driver struct {
	dev   *virtio.Device
	queue *virtio.Queue
	mem   Memory

	reqAddr  uintptr
	respAddr uintptr

	resourceID uint32
	width      uint32
	height     uint32
}

// New wires a probed, negotiated, queued VirtIO-GPU device. reqAddr and
// respAddr are dedicated physical scratch addresses big enough for the
// largest request this driver issues (transfer-to-host, 52 bytes) and the
// largest response it reads (GetDisplayInfo's, 48 bytes); only one
// request is ever outstanding (spec §5).
func New(dev *virtio.Device, queue *virtio.Queue, mem Memory, reqAddr, respAddr uintptr) *Driver {
	return &Driver{dev: dev, queue: queue, mem: mem, reqAddr: reqAddr, respAddr: respAddr}
}

func (d *Driver) writeHeader(addr uintptr, cmdType uint32) {
	d.mem.Write32(addr, cmdType)
	d.mem.Write32(addr+4, 0) // flags
	d.mem.Write64(addr+8, 0) // fence id
	d.mem.Write32(addr+16, 0) // ctx id
}

// exchange submits a request/response descriptor pair (spec §4.K: "All
// commands are one request + one response descriptor pair") and returns
// the response header's type field.
func (d *Driver) exchange(reqLen, respLen uint32) uint32 {
	prev := d.queue.UsedIdx()
	head, ok := d.queue.AddChain([]virtio.Buffer{
		{Addr: uint64(d.reqAddr), Len: reqLen, Write: false},
		{Addr: uint64(d.respAddr), Len: respLen, Write: true},
	})
	if !ok {
		return 0
	}
	d.queue.Submit(head)
	d.dev.Notify(0)
	d.queue.WaitUsed(prev)
	return d.mem.Read32(d.respAddr)
}

// displayInfoRespSize covers the header plus one pmode entry (rect x/y/w/h
// + enabled + flags); this driver only reads scanout 0.
const displayInfoRespSize = ctrlHdrSize + 24

// GetDisplayInfo discovers the first scanout's mode (spec §4.K:
// "GET_DISPLAY_INFO discovers mode").
func (d *Driver) GetDisplayInfo() bool {
	d.writeHeader(d.reqAddr, cmdGetDisplayInfo)
	if d.exchange(ctrlHdrSize, displayInfoRespSize) != respOKDisplay {
		return false
	}
	// pmodes[0]: rect at ctrlHdrSize, {x,y,w,h} uint32 each.
	d.width = d.mem.Read32(d.respAddr + ctrlHdrSize + 8)
	d.height = d.mem.Read32(d.respAddr + ctrlHdrSize + 12)
	return d.width > 0 && d.height > 0
}

// Width/Height report the mode GetDisplayInfo discovered.
func (d *Driver) Width() uint32  { return d.width }
func (d *Driver) Height() uint32 { return d.height }

const resourceCreate2DReqSize = ctrlHdrSize + 16 // resource_id+format+width+height

// CreateResource2D creates a host resource matching the discovered mode
// (spec §4.K: "RESOURCE_CREATE_2D creates a host resource").
func (d *Driver) CreateResource2D(resourceID uint32) bool {
	d.writeHeader(d.reqAddr, cmdResourceCreate2D)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+0, resourceID)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+4, formatB8G8R8A8)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+8, d.width)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+12, d.height)
	ok := d.exchange(resourceCreate2DReqSize, ctrlHdrSize) == respOKNoData
	if ok {
		d.resourceID = resourceID
	}
	return ok
}

const attachBackingReqSize = ctrlHdrSize + 8 + 16 // resource_id+nr_entries+padding + one guest-memory-entry(addr+len)

// AttachBacking supplies the guest memory backing the framebuffer (spec
// §4.K: "RESOURCE_ATTACH_BACKING supplies a guest memory entry describing
// the framebuffer backing store"). This driver always attaches exactly
// one contiguous entry.
func (d *Driver) AttachBacking(fbAddr uint64, fbLen uint32) bool {
	d.writeHeader(d.reqAddr, cmdResourceAttachBack)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+0, d.resourceID)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+4, 1) // nr_entries
	d.mem.Write64(d.reqAddr+ctrlHdrSize+8, fbAddr)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+16, fbLen)
	return d.exchange(attachBackingReqSize, ctrlHdrSize) == respOKNoData
}

const setScanoutReqSize = ctrlHdrSize + 16 + 8 // rect(4*4) + scanout_id + resource_id

// SetScanout binds the resource to display 0 over the full discovered
// extent (spec §4.K: "SET_SCANOUT binds the resource to display 0 over
// the full extent").
func (d *Driver) SetScanout() bool {
	d.writeHeader(d.reqAddr, cmdSetScanout)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+0, 0) // rect.x
	d.mem.Write32(d.reqAddr+ctrlHdrSize+4, 0) // rect.y
	d.mem.Write32(d.reqAddr+ctrlHdrSize+8, d.width)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+12, d.height)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+16, 0) // scanout_id
	d.mem.Write32(d.reqAddr+ctrlHdrSize+20, d.resourceID)
	return d.exchange(setScanoutReqSize, ctrlHdrSize) == respOKNoData
}

const transferReqSize = ctrlHdrSize + 16 + 8 + 4 // rect + offset + resource_id + padding

func (d *Driver) transferToHost(x, y, w, h uint32) bool {
	d.writeHeader(d.reqAddr, cmdTransferToHost2D)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+0, x)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+4, y)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+8, w)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+12, h)
	d.mem.Write64(d.reqAddr+ctrlHdrSize+16, 0) // offset into the backing store
	d.mem.Write32(d.reqAddr+ctrlHdrSize+24, d.resourceID)
	return d.exchange(transferReqSize, ctrlHdrSize) == respOKNoData
}

const resourceFlushReqSize = ctrlHdrSize + 16 + 4 + 4 // rect + resource_id + padding

func (d *Driver) resourceFlush(x, y, w, h uint32) bool {
	d.writeHeader(d.reqAddr, cmdResourceFlush)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+0, x)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+4, y)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+8, w)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+12, h)
	d.mem.Write32(d.reqAddr+ctrlHdrSize+16, d.resourceID)
	return d.exchange(resourceFlushReqSize, ctrlHdrSize) == respOKNoData
}

// Flush copies the dirty rectangle to the host and commits it to the
// screen (spec §4.K: "The driver exposes a flush(x, y, w, h) operation
// that issues transfer-to-host followed by resource-flush").
func (d *Driver) Flush(x, y, w, h uint32) bool {
	return d.transferToHost(x, y, w, h) && d.resourceFlush(x, y, w, h)
}
