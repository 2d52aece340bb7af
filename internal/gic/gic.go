// Package gic drives a GICv2 distributor and per-hart CPU interface (spec
// §4.D), on QEMU's virt machine.
//
// Grounded on the teacher's src/go/mazarin/gic_qemu.go: the same register
// offsets, the same disable/mask/clear/group/priority/target/configure/
// enable init sequence (numbered 1-11 there, renumbered here to match
// spec §4.D's own ordering), and the same ack/EOI pair. The teacher's
// single package-level interruptHandlers array is replaced with a
// Controller-owned table per the "global mutable state" design note, and
// the function-pointer dispatch table is kept as-is (spec §9 only asks
// for a sum type over *line kinds*, which Dispatch below builds on top of
// this table rather than replacing it).
package gic

import "vela/internal/mmio"

// Register layout for QEMU virt's GICv2, identical to the teacher's
// GIC_DIST_BASE/GIC_CPU_BASE constant block.
const (
	DistBase = 0x0800_0000
	CPUBase  = 0x0801_0000

	regGICD_CTLR   = DistBase + 0x000
	regGICD_TYPER  = DistBase + 0x004
	regGICD_IGROUPR = DistBase + 0x080
	regGICD_ISENABLER = DistBase + 0x100
	regGICD_ICENABLER = DistBase + 0x180
	regGICD_ICPENDR   = DistBase + 0x280
	regGICD_IPRIORITYR = DistBase + 0x400
	regGICD_ITARGETSR  = DistBase + 0x800
	regGICD_ICFGR      = DistBase + 0xC00
	regGICD_SGIR       = DistBase + 0xF00

	regGICC_CTLR = CPUBase + 0x000
	regGICC_PMR  = CPUBase + 0x004
	regGICC_BPR  = CPUBase + 0x008
	regGICC_IAR  = CPUBase + 0x00C
	regGICC_EOIR = CPUBase + 0x010
)

// MaxLines bounds the handler table; GICv2 supports up to 1020 usable
// interrupt IDs (spec §4.D).
const MaxLines = 1020

// Spurious is the sentinel Acknowledge returns when no interrupt is
// pending (spec §4.D: "returning a sentinel 'spurious' value").
const Spurious = 1023

// defaultPriority is the "middle priority" spec §4.D assigns to every SPI
// at init.
const defaultPriority = 0x80

// Handler is a registered callback for one interrupt line, with an opaque
// data pointer the way the teacher's InterruptHandler table carries one
// (here folded into a closure instead of a void*, since Go has closures).
type Handler func()

// Controller owns the distributor/CPU-interface register access and the
// per-line handler table (spec §4.D). One Controller per hart; this
// kernel runs a single hart, so exactly one exists.
type Controller struct {
	bus      mmio.Bus
	handlers [MaxLines]Handler
}

// New constructs a Controller over bus. Init must be called once before
// any other method.
func New(bus mmio.Bus) *Controller {
	return &Controller{bus: bus}
}

// Init runs the distributor and CPU-interface bring-up sequence (spec
// §4.D): disable; mask all lines; clear all pending bits; set all SPIs to
// middle priority; route them to hart 0; configure as level-triggered;
// re-enable. Per-hart: mask all SGIs/PPIs; set priorities; set the
// priority mask to accept all; clear priority grouping; enable the CPU
// interface.
func (c *Controller) Init() {
	c.bus.Write32(regGICD_CTLR, 0)
	c.bus.Write32(regGICC_CTLR, 0)

	typer := c.bus.Read32(regGICD_TYPER)
	lines := (int(typer&0x1F) + 1) * 32
	if lines > MaxLines {
		lines = MaxLines
	}

	// Mask every line (SGIs/PPIs and SPIs alike).
	for r := 0; r < lines/32; r++ {
		c.bus.Write32(regGICD_ICENABLER+uintptr(r*4), 0xFFFF_FFFF)
		c.bus.Write32(regGICD_ICPENDR+uintptr(r*4), 0xFFFF_FFFF)
	}
	// Middle priority for every line, 4 per register.
	priWord := uint32(defaultPriority)<<24 | uint32(defaultPriority)<<16 | uint32(defaultPriority)<<8 | uint32(defaultPriority)
	for r := 0; r < lines/4; r++ {
		c.bus.Write32(regGICD_IPRIORITYR+uintptr(r*4), priWord)
	}
	// Route all SPIs to hart 0 (bit 0 of each byte lane).
	for r := 0; r < lines/4; r++ {
		c.bus.Write32(regGICD_ITARGETSR+uintptr(r*4), 0x0101_0101)
	}
	// Level-triggered (bit layout: 2 bits/line, bit1=0 means level).
	for r := 0; r < lines/16; r++ {
		c.bus.Write32(regGICD_ICFGR+uintptr(r*4), 0)
	}
	// Group 1 (non-secure) so lines deliver as IRQ, not FIQ.
	for r := 0; r < lines/32; r++ {
		c.bus.Write32(regGICD_IGROUPR+uintptr(r*4), 0xFFFF_FFFF)
	}

	c.bus.Write32(regGICD_CTLR, 0x3) // enable groups 0 and 1

	c.bus.Write32(regGICC_PMR, 0xFF) // accept every priority
	c.bus.Write32(regGICC_BPR, 0)    // no preemption grouping
	c.bus.Write32(regGICC_CTLR, 0x3) // enable CPU interface, groups 0 and 1
}

// Enable unmasks irq at the distributor.
func (c *Controller) Enable(irq uint32) {
	if irq >= MaxLines {
		return
	}
	c.bus.Write32(regGICD_ISENABLER+uintptr(irq/32)*4, 1<<(irq%32))
}

// Disable masks irq at the distributor.
func (c *Controller) Disable(irq uint32) {
	if irq >= MaxLines {
		return
	}
	c.bus.Write32(regGICD_ICENABLER+uintptr(irq/32)*4, 1<<(irq%32))
}

// SetPriority programs irq's priority byte (lower value = higher
// priority, per GICv2).
func (c *Controller) SetPriority(irq uint32, p uint8) {
	if irq >= MaxLines {
		return
	}
	regAddr := regGICD_IPRIORITYR + uintptr(irq&^3)
	shift := (irq % 4) * 8
	v := c.bus.Read32(regAddr)
	v = (v &^ (0xFF << shift)) | uint32(p)<<shift
	c.bus.Write32(regAddr, v)
}

// SetTarget programs irq's CPU target mask (a bitmask of harts; this
// kernel only ever uses bit 0).
func (c *Controller) SetTarget(irq uint32, mask uint8) {
	if irq >= MaxLines {
		return
	}
	regAddr := regGICD_ITARGETSR + uintptr(irq&^3)
	shift := (irq % 4) * 8
	v := c.bus.Read32(regAddr)
	v = (v &^ (0xFF << shift)) | uint32(mask)<<shift
	c.bus.Write32(regAddr, v)
}

// Acknowledge reads the interrupt-acknowledge register, returning the
// pending IRQ number or Spurious if none is pending (spec §4.D).
func (c *Controller) Acknowledge() uint32 {
	return c.bus.Read32(regGICC_IAR) & 0x3FF
}

// End signals end-of-interrupt for irq.
func (c *Controller) End(irq uint32) {
	c.bus.Write32(regGICC_EOIR, irq)
}

// SendSoftwareInterrupt writes the SGI generation register to target the
// given hart mask with software-generated interrupt irq (0-15). This is
// §12's "completeness, not load-bearing" operation: a single-hart kernel
// never has another core to target, so nothing on the boot path calls it
// (see the SGIR-encoding unit test instead).
func (c *Controller) SendSoftwareInterrupt(irq uint32, targetMask uint8) {
	v := uint32(targetMask)<<16 | (irq & 0xF)
	c.bus.Write32(regGICD_SGIR, v)
}

// RegisterHandler installs fn as the handler for irq, replacing any
// previous registration.
func (c *Controller) RegisterHandler(irq uint32, fn Handler) {
	if irq >= MaxLines {
		return
	}
	c.handlers[irq] = fn
}

// InvokeHandler runs the registered handler for irq, if any, without
// touching acknowledge/EOI state. internal/trap.Dispatcher's OtherIRQ hook
// drives its own acknowledge/dispatch/EOI loop (since only it knows about
// the timer-line special case), so it calls this directly instead of
// Dispatch's self-contained loop.
func (c *Controller) InvokeHandler(irq uint32) {
	if irq >= MaxLines {
		return
	}
	if h := c.handlers[irq]; h != nil {
		h()
	}
}

// Dispatch runs the top-level IRQ loop (spec §4.D): acknowledge; if
// spurious, stop; otherwise invoke the registered handler (if any) and
// end-of-interrupt, then acknowledge again. Dispatch takes no timer line
// and drives only the generic handler table; internal/trap special-cases
// the periodic-timer line to invoke the scheduler hook instead.
func (c *Controller) Dispatch() {
	for {
		irq := c.Acknowledge()
		if irq >= Spurious {
			return
		}
		if h := c.handlers[irq]; h != nil {
			h()
		}
		c.End(irq)
	}
}
