// Package console drives the PL011 UART on QEMU's virt machine and
// provides the kernel's one logging sink. Every subsystem logs through a
// *Logger passed in at construction (see the "global mutable state" design
// note) rather than a package-level singleton.
package console

import "vela/internal/mmio"

// QEMU virt machine PL011 UART register layout. Mirrors the teacher's
// uart_qemu.go constant block, with the same QEMU_UART_BASE and register
// offsets, ported from the Raspberry Pi's GPIO-gated PL011 init sequence.
const (
	UARTBase = 0x0900_0000

	regDR   = UARTBase + 0x00
	regFR   = UARTBase + 0x18
	regIBRD = UARTBase + 0x24
	regFBRD = UARTBase + 0x28
	regLCRH = UARTBase + 0x2C
	regCR   = UARTBase + 0x30
	regIMSC = UARTBase + 0x38
	regICR  = UARTBase + 0x44
)

const (
	frTXFF = 1 << 5 // transmit FIFO full
	frRXFE = 1 << 4 // receive FIFO empty
)

// UART is a PL011 serial port backed by an mmio.Bus.
type UART struct {
	bus mmio.Bus
}

// NewUART constructs a UART driver over bus. Init must be called once
// before use.
func NewUART(bus mmio.Bus) *UART {
	return &UART{bus: bus}
}

// Init programs the PL011 for 8N1 at a fixed baud divisor, matching the
// teacher's uartInit() sequence: disable, clear pending, program the baud
// rate divisors, set the line control (8 bits, FIFOs enabled), then
// re-enable TX/RX.
func (u *UART) Init() {
	u.bus.Write32(regCR, 0)
	u.bus.Write32(regICR, 0x7FF)
	u.bus.Write32(regIBRD, 1)
	u.bus.Write32(regFBRD, 40)
	u.bus.Write32(regLCRH, (1<<4)|(1<<5)|(1<<6)) // FIFO enable, 8 bits
	u.bus.Write32(regIMSC, 0)
	u.bus.Write32(regCR, (1<<0)|(1<<8)|(1<<9)) // UARTEN, TXE, RXE
}

// PutByte blocks until the transmit FIFO has room, then writes one byte.
func (u *UART) PutByte(c byte) {
	for u.bus.Read32(regFR)&frTXFF != 0 {
	}
	u.bus.Write32(regDR, uint32(c))
}

// PutString writes every byte of s.
func (u *UART) PutString(s string) {
	for i := 0; i < len(s); i++ {
		u.PutByte(s[i])
	}
}

// TryGetByte returns the next received byte and true, or (0, false) if the
// receive FIFO is currently empty. Never blocks: callers that need a
// blocking read (syscall 63) loop on a wait-for-event primitive themselves
// per spec §4.I.
func (u *UART) TryGetByte() (byte, bool) {
	if u.bus.Read32(regFR)&frRXFE != 0 {
		return 0, false
	}
	return byte(u.bus.Read32(regDR)), true
}
