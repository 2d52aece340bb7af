// Package virtio is the VirtIO MMIO transport (spec §4.J): device probing
// across a fixed slot band, the reset/negotiate/features-ok/driver-ok
// bring-up sequence, and the virtqueue descriptor/available/used ring
// protocol shared by the block, input, and GPU drivers.
//
// Grounded on the teacher's src/go/mazarin/virtqueue.go (VirtQDesc/
// VirtQAvailable/VirtQUsed layout, free-descriptor-chain bookkeeping) and
// src/go/mazarin/pci_qemu.go (probe-the-bus-by-scanning-slots idiom,
// generalized here from PCI config space to the VirtIO MMIO slot band
// spec §4.J and §6 describe). The teacher's virtqueue is a PCI/page-frame-
// number design aimed at a single GPU device; this package generalizes it
// to the MMIO transport's split-address (legacy and modern) queue setup
// and to multiple concurrently probed devices.
package virtio

import "vela/internal/mmio"

// MMIO register offsets from a device's slot base (VirtIO MMIO v2 layout,
// spec §4.J).
const (
	regMagic          = 0x000
	regVersion        = 0x004
	regDeviceID       = 0x008
	regVendorID       = 0x00c
	regDeviceFeatures = 0x010
	regDeviceFeatSel  = 0x014
	regDriverFeatures = 0x020
	regDriverFeatSel  = 0x024
	regQueueSel       = 0x030
	regQueueNumMax    = 0x034
	regQueueNum       = 0x038
	regQueuePFN       = 0x040 // legacy (version 1)
	regQueueReady     = 0x044 // modern (version >= 2)
	regQueueNotify    = 0x050
	regInterruptStat  = 0x060
	regInterruptACK   = 0x064
	regStatus         = 0x070
	regQueueDescLow   = 0x080
	regQueueDescHigh  = 0x084
	regQueueDriverLow = 0x090 // available ring
	regQueueDriverHi  = 0x094
	regQueueDeviceLow = 0x0a0 // used ring
	regQueueDeviceHi  = 0x0a4
	regConfigGen      = 0x0fc
	regConfig         = 0x100

	guestPageSize = 4096
)

// Status bits written to regStatus during bring-up (spec §4.J).
const (
	statusAcknowledge = 1 << 0
	statusDriver      = 1 << 1
	statusFailed      = 1 << 7
	statusFeaturesOK  = 1 << 3
	statusDriverOK    = 1 << 2
)

const magicValue = 0x74726976 // "virt" little-endian

// SlotStride and Probe implement spec §6's "32 slots at 512-byte stride
// starting at the VirtIO MMIO base" and spec §4.J's claim rule.
const SlotStride = 512

// Probe scans count slots of stride SlotStride starting at base, claiming
// the first one whose magic register reads "virt" and whose device-id
// register matches want. Unmatching or absent slots are skipped per spec
// §4.J ("if it matches... the slot is claimed").
func Probe(bus mmio.Bus, base uintptr, count int, want uint32) (slot uintptr, ok bool) {
	for i := 0; i < count; i++ {
		addr := base + uintptr(i)*SlotStride
		if bus.Read32(addr+regMagic) != magicValue {
			continue
		}
		if bus.Read32(addr+regDeviceID) == want {
			return addr, true
		}
	}
	return 0, false
}

// Device is one claimed VirtIO MMIO slot, mid bring-up.
type Device struct {
	Bus     mmio.Bus
	Base    uintptr
	Version uint32
}

// Open resets a claimed slot and begins the bring-up sequence (spec §4.J:
// "write 0 to status; set acknowledge and driver bits"). Feature
// negotiation and queue setup are finished by NegotiateAll and SetupQueue.
func Open(bus mmio.Bus, base uintptr) *Device {
	d := &Device{Bus: bus, Base: base, Version: bus.Read32(base + regVersion)}
	bus.Write32(base+regStatus, 0)
	bus.Write32(base+regStatus, statusAcknowledge)
	bus.Write32(base+regStatus, statusAcknowledge|statusDriver)
	return d
}

// Fail marks the device failed (used when bring-up or feature negotiation
// cannot proceed).
func (d *Device) Fail() {
	d.Bus.Write32(d.Base+regStatus, d.Bus.Read32(d.Base+regStatus)|statusFailed)
}

// NegotiateAll reads the offered device-feature bits and writes them back
// unchanged as driver-feature bits (spec §4.J: "a trivial negotiation:
// accept everything offered"), then on version >= 2 sets features-OK and
// verifies the device accepted it. Only the low 32 feature bits (selector
// 0) are exchanged; this kernel has no use for any feature above bit 31.
func (d *Device) NegotiateAll() bool {
	d.Bus.Write32(d.Base+regDeviceFeatSel, 0)
	offered := d.Bus.Read32(d.Base + regDeviceFeatures)
	d.Bus.Write32(d.Base+regDriverFeatSel, 0)
	d.Bus.Write32(d.Base+regDriverFeatures, offered)

	if d.Version < 2 {
		return true
	}
	d.Bus.Write32(d.Base+regStatus, d.statusBits()|statusFeaturesOK)
	return d.Bus.Read32(d.Base+regStatus)&statusFeaturesOK != 0
}

func (d *Device) statusBits() uint32 { return d.Bus.Read32(d.Base + regStatus) }

// DriverOK finishes bring-up (spec §4.J: "finally set driver-OK").
func (d *Device) DriverOK() {
	d.Bus.Write32(d.Base+regStatus, d.statusBits()|statusDriverOK)
}

// QueueMax returns the device's advertised maximum size for the queue
// currently selected by SelectQueue.
func (d *Device) QueueMax() uint16 {
	return uint16(d.Bus.Read32(d.Base + regQueueNumMax))
}

// SelectQueue chooses which queue subsequent Queue-setup register writes
// target (spec §4.J: "select queue 0").
func (d *Device) SelectQueue(index uint32) {
	d.Bus.Write32(d.Base+regQueueSel, index)
}

// SetQueueSize writes the chosen queue size (spec §4.J: "write the chosen
// size, a power of two <= maximum").
func (d *Device) SetQueueSize(size uint16) {
	d.Bus.Write32(d.Base+regQueueNum, uint32(size))
}

// SetQueueAddrsLegacy wires up a version-1 device: guest page size, then
// the queue's page-frame number (spec §4.J legacy branch).
func (d *Device) SetQueueAddrsLegacy(ringBase uintptr) {
	d.Bus.Write32(d.Base+0x028, guestPageSize) // legacy GuestPageSize register
	d.Bus.Write32(d.Base+regQueuePFN, uint32(ringBase/guestPageSize))
}

// SetQueueAddrsModern writes the split physical addresses of the
// descriptor, available, and used rings and marks the queue ready (spec
// §4.J modern branch).
func (d *Device) SetQueueAddrsModern(descAddr, availAddr, usedAddr uintptr) {
	d.Bus.Write32(d.Base+regQueueDescLow, uint32(descAddr))
	d.Bus.Write32(d.Base+regQueueDescHigh, uint32(uint64(descAddr)>>32))
	d.Bus.Write32(d.Base+regQueueDriverLow, uint32(availAddr))
	d.Bus.Write32(d.Base+regQueueDriverHi, uint32(uint64(availAddr)>>32))
	d.Bus.Write32(d.Base+regQueueDeviceLow, uint32(usedAddr))
	d.Bus.Write32(d.Base+regQueueDeviceHi, uint32(uint64(usedAddr)>>32))
	d.Bus.Write32(d.Base+regQueueReady, 1)
}

// Notify writes the queue index to the notify register (spec §4.J step
// 4).
func (d *Device) Notify(queueIndex uint32) {
	d.Bus.Write32(d.Base+regQueueNotify, queueIndex)
}

// InterruptStatus/InterruptACK service the device's IRQ-status register,
// used by the input driver's IRQ handler.
func (d *Device) InterruptStatus() uint32 { return d.Bus.Read32(d.Base + regInterruptStat) }
func (d *Device) InterruptACK(bits uint32) {
	d.Bus.Write32(d.Base+regInterruptACK, bits)
}

// ConfigByte reads one byte of device-specific configuration space (GPU
// display info, block device capacity, and similar live here).
func (d *Device) ConfigByte(off uintptr) uint32 {
	return d.Bus.Read32(d.Base+regConfig+off) & 0xFF
}

// FrameSource supplies the physically contiguous frames a virtqueue's
// ring structures are allocated from (spec §3 "Virtqueue": "allocated
// from physically contiguous frames").
type FrameSource interface {
	AllocContiguous(frames int) (base uintptr, ok bool)
}

const framePageSize = 4096

// SetupQueue selects queueIndex, negotiates its size against the device's
// advertised maximum, allocates and zeroes its backing frames, wires the
// legacy or modern address registers depending on d.Version, marks the
// queue ready, and returns the resulting Queue (spec §4.J: "select queue
// 0; read the maximum queue size; write the chosen size...").
func (d *Device) SetupQueue(queueIndex uint32, wantSize uint16, frames FrameSource) (*Queue, bool) {
	d.SelectQueue(queueIndex)
	if max := d.QueueMax(); wantSize > max {
		wantSize = max
	}
	d.SetQueueSize(wantSize)

	layout := ComputeLayout(wantSize)
	numFrames := int((layout.TotalBytes + framePageSize - 1) / framePageSize)
	base, ok := frames.AllocContiguous(numFrames)
	if !ok {
		return nil, false
	}
	d.Bus.Zero(base, uint32(layout.TotalBytes))

	if d.Version < 2 {
		d.SetQueueAddrsLegacy(base)
	} else {
		d.SetQueueAddrsModern(base+layout.DescOffset, base+layout.AvailOffset, base+layout.UsedOffset)
	}

	return NewQueue(d.Bus, base, layout), true
}
