package vmm

// Memory map constants for the QEMU virt machine (spec §9), used to build
// the kernel's initial identity map.
const (
	RAMBase = 1 * 1024 * 1024 * 1024 // 1 GiB: where RAM starts
	RAMSize = 1 * 1024 * 1024 * 1024 // identity-map 1 GiB of RAM (spec §4.B item i)

	MMIOBase = 8 * 1024 * 1024   // below the GIC distributor at 128 MiB
	MMIOEnd  = 168 * 1024 * 1024 // just past the VirtIO slot band
)

// kernelPageFlags and devicePageFlags are the two leaf templates used to
// build the identity map: normal write-back RAM, kernel RW and
// execute-never from user; and device nGnRE, execute-never everywhere
// (spec §4.B items i-ii).
var (
	kernelRAMFlags = PageFlags{Kernel: true, Writable: true, Executable: false}
	deviceFlags    = PageFlags{Kernel: true, Writable: true, Executable: false, Device: true}
)

// BuildKernelIdentityMap allocates a fresh top-level table and populates it
// with the two identity-mapped regions spec §4.B requires: 1 GiB of RAM at
// RAMBase, and the MMIO aperture from MMIOBase to MMIOEnd. It does not
// program the system registers or enable the MMU; call InstallAndEnable
// for that once the map is built.
func (v *VMM) BuildKernelIdentityMap() (*AddressSpace, bool) {
	root, ok := v.pages.AllocFrame()
	if !ok {
		return nil, false
	}
	v.zero(root)
	as := &AddressSpace{Root: root}

	for pa := uintptr(RAMBase); pa < RAMBase+RAMSize; pa += PageSize {
		if !v.Map(as, pa, pa, kernelRAMFlags) {
			return nil, false
		}
	}
	for pa := uintptr(MMIOBase); pa < MMIOEnd; pa += PageSize {
		if !v.Map(as, pa, pa, deviceFlags) {
			return nil, false
		}
	}
	return as, true
}

// InstallAndEnable programs MAIR_EL1/TCR_EL1/TTBR0_EL1 and turns the MMU
// and caches on in one barrier-bracketed store (spec §4.B items iii-vi).
// Only meaningful on real hardware; installTranslationTables is defined
// in hw_arm64.go.
func (v *VMM) InstallAndEnable(as *AddressSpace) {
	installTranslationTables(as.Root)
}
