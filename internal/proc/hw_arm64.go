//go:build qemuvirt && aarch64

package proc

import _ "unsafe" // for go:linkname

//go:linkname hwSwitchTTBR0 vela/internal/proc.hwSwitchTTBR0
//go:nosplit
func hwSwitchTTBR0(root uintptr)

// hwSwitcher is the AddressSpaceSwitcher backed by the real TTBR0_EL1 and
// a full TLB invalidate, implemented in switch_arm64.s.
type hwSwitcher struct{}

func (hwSwitcher) SwitchAddressSpace(root uintptr) { hwSwitchTTBR0(root) }

// HardwareSwitcher returns the AddressSpaceSwitcher used by cmd/kernel.
func HardwareSwitcher() AddressSpaceSwitcher { return hwSwitcher{} }
