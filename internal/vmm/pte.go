// Package vmm is the virtual memory manager (spec §4.B): four-level,
// 48-bit AArch64 translation with 4 KiB pages, a kernel identity map
// built at init, and per-process address spaces.
//
// The flat-mapping, register-write style of table construction is
// grounded on tamago's ARM MMU drivers (other_examples/511e2eb1_usbarmory-
// tamago__arm64-mmu.go.go and .../d608cef7_usbarmory-tamago__arm-mmu.go.go:
// section tables written directly with reg.Write and installed via a
// linknamed set_ttbr0). Those are single-level ARMv7/ARMv8 flat maps;
// this package generalizes the same "walk and stamp raw entries" idiom to
// a true four-level AArch64 walk, which neither tamago nor the teacher's
// own src/go/mazarin (no MMU driver at all — mazarin runs with the MMU
// off) provides.
package vmm

import "vela/internal/bitfield"

// Page and table geometry for 4 KiB granule, 48-bit VA/PA.
const (
	PageSize   = 4096
	PageShift  = 12
	TableBits  = 9 // 512 entries per table
	TableSize  = 1 << TableBits
	EntrySize  = 8
	TableBytes = TableSize * EntrySize

	L0Shift = 39
	L1Shift = 30
	L2Shift = 21
	L3Shift = 12

	indexMask = TableSize - 1
)

// MAIR_EL1 attribute indices programmed at init (spec §4.B item iii).
const (
	AttrNormalWB  = 0 // inner/outer write-back, read/write-allocate
	AttrDeviceNGR = 1 // device nGnRE
)

// Memory attribute byte values for MAIR_EL1[index].
const (
	mairNormalWB  = 0xFF // Attr0: normal, WB, RW-allocate, both inner/outer
	mairDeviceNGR = 0x00 // Attr1: device-nGnRE
)

// MAIR_EL1 assembled from the two attribute bytes above.
const MAIREL1Value = uint64(mairNormalWB)<<(8*AttrNormalWB) | uint64(mairDeviceNGR)<<(8*AttrDeviceNGR)

// TCR_EL1 fields (spec §4.B item iv): 48-bit input address (T0SZ=16),
// inner-shareable, write-back write-allocate, 4 KiB granule, 40-bit PA.
const (
	tcrT0SZ  = 16 << 0
	tcrIRGN0 = 1 << 8  // write-back write-allocate, inner
	tcrORGN0 = 1 << 10 // write-back write-allocate, outer
	tcrSH0   = 3 << 12 // inner shareable
	tcrTG0_4K = 0 << 14
	tcrIPS_40 = 2 << 32 // 40-bit intermediate physical address
	tcrEPD1   = 1 << 23 // disable TTBR1 walks; we only use TTBR0
)

// TCREL1Value is the full register value installed at init.
const TCREL1Value uint64 = tcrT0SZ | tcrIRGN0 | tcrORGN0 | tcrSH0 | tcrTG0_4K | tcrIPS_40 | tcrEPD1

// PTEFlags packs the leaf/table descriptor bits shared by every entry
// kind; fields not meaningful for a given entry are simply left zero.
type PTEFlags struct {
	Valid    bool   `bitfield:",1"` // bit 0
	Table    bool   `bitfield:",1"` // bit 1: 1 = table/page descriptor, 0 = block
	AttrIdx  uint8  `bitfield:",3"` // bits 4:2, MAIR index
	NS       bool   `bitfield:",1"` // bit 5
	AP       uint8  `bitfield:",2"` // bits 7:6, access permission
	SH       uint8  `bitfield:",2"` // bits 9:8, shareability
	AF       bool   `bitfield:",1"` // bit 10, access flag
	_        uint8  `bitfield:",1"` // bit 11, non-global (unused)
	_        uint64 `bitfield:",36"` // bits 12:47, output address (OR'd in separately)
	_        uint8  `bitfield:",5"`  // bits 48:52, reserved/ignored
	PXN      bool   `bitfield:",1"` // bit 53
	UXN      bool   `bitfield:",1"` // bit 54
}

// AP encodings (spec §4.B invariant: no user-exec page the kernel maps
// writable at EL1).
const (
	APKernelRW = 0b00 // EL1 RW, EL0 no access
	APKernelRO = 0b10 // EL1 RO, EL0 no access
	APUserRW   = 0b01 // EL1 RW, EL0 RW
	APUserRO   = 0b11 // EL1 RO, EL0 RO
)

const (
	shNonShareable = 0b00
	shOuterShare   = 0b10
	shInnerShare   = 0b11
)

// PageFlags is the caller-facing description of a mapping (spec §4.B
// map/unmap operations use this instead of raw descriptor bits).
type PageFlags struct {
	Kernel     bool // EL1-only if true, otherwise EL0-accessible
	Writable   bool
	Executable bool
	Device     bool // true selects AttrDeviceNGR instead of AttrNormalWB
}

// encodeLeaf builds a level-3 (or block) descriptor for a physical frame
// with the given flags. AF and Valid are always set; the spec requires
// every valid leaf to carry the access flag so the hardware never raises
// an access fault on first touch.
func encodeLeaf(pa uintptr, flags PageFlags) uint64 {
	var f PTEFlags
	f.Valid = true
	f.Table = true // level-3 descriptors use the "page" encoding (bit1=1)
	f.AF = true
	f.SH = shInnerShare
	if flags.Device {
		f.AttrIdx = AttrDeviceNGR
	} else {
		f.AttrIdx = AttrNormalWB
	}
	switch {
	case flags.Kernel && flags.Writable:
		f.AP = APKernelRW
	case flags.Kernel && !flags.Writable:
		f.AP = APKernelRO
	case !flags.Kernel && flags.Writable:
		f.AP = APUserRW
	default:
		f.AP = APUserRO
	}
	if !flags.Executable {
		f.UXN = true
		if flags.Kernel {
			f.PXN = true
		}
	} else if !flags.Kernel {
		// spec invariant: never grant user-exec on a page the kernel also
		// maps writable at EL1. Caller is responsible for not setting
		// both Writable(kernel) and Executable(user) on the same frame;
		// we additionally force PXN on any user-executable page so the
		// kernel itself never executes through a user mapping.
		f.PXN = true
	}

	packed, _ := bitfield.Pack(f, &bitfield.Config{NumBits: 55})
	return packed | (uint64(pa) &^ (PageSize - 1))
}

// tableDescriptor returns the fixed template used for every intermediate
// (non-leaf) table entry: valid, table, access flag set, inner-shareable,
// kernel RW, both execute-never, regardless of what the leaves beneath it
// will eventually hold (spec §4.B map operation note).
func tableDescriptor(tablePA uintptr) uint64 {
	var f PTEFlags
	f.Valid = true
	f.Table = true
	f.AF = true
	f.SH = shInnerShare
	f.AP = APKernelRW
	f.PXN = true
	f.UXN = true
	packed, _ := bitfield.Pack(f, &bitfield.Config{NumBits: 55})
	return packed | (uint64(tablePA) &^ (PageSize - 1))
}

func entryValid(e uint64) bool { return e&1 != 0 }

func entryOutputAddress(e uint64) uintptr {
	return uintptr(e &^ (PageSize - 1) & ((1 << 48) - 1))
}

func levelIndex(va uintptr, shift uint) uint {
	return uint(va>>shift) & indexMask
}
