// Package kernel is the boot wiring layer (spec §2, §4.L step "boot
// sequence"): it has no algorithm of its own, only the construction order
// that turns the independent internal/ packages into one running kernel,
// plus the small adapter types each package's narrow interface needs to
// be satisfied by another package's concrete type.
//
// Grounded on the teacher's src/go/mazarin/kernel.go KernelMain: a single
// ordered sequence of init-and-report steps (UART, then heap, then
// framebuffer, then a welcome banner) run once at boot with no
// configuration file and no supervisor process above it. This package
// keeps that same shape — Boot runs the §2 control-flow ordering
// (identity map and enable the MMU; bring up the allocator, heap, GIC,
// and timer; probe VirtIO transports; start the compositor; load and
// install the first process) logging one line per step through
// internal/console.Logger the way the teacher logs one uartPuts per step.
package kernel

// GIC interrupt lines (spec §6 external interfaces). None of these are
// defined anywhere else in the tree: internal/gic only knows how to mask,
// enable, and dispatch a line number, never which device sits on it.
const (
	// TimerIRQ is the ARM generic virtual timer's PPI line (spec §4.E).
	TimerIRQ = 27
	// UARTIRQ is the PL011 UART's SPI line (spec §4.F console input).
	UARTIRQ = 33
	// VirtIOInputIRQBase is the first SPI line assigned to a probed
	// VirtIO input device; device N (0-based, in probe order) owns
	// VirtIOInputIRQBase+N.
	VirtIOInputIRQBase = 48
)

// VirtIO MMIO transport band (spec §6: "32 slots at 512-byte stride").
const (
	VirtIOMMIOBase  = 160 * 1024 * 1024
	VirtIOSlotCount = 32
)

// DefaultFBWidth/DefaultFBHeight are the compositor's framebuffer
// dimensions used whenever virtio-gpu's GetDisplayInfo has not yet
// returned a display mode (spec §8 scenario A observes exactly this
// fallback: "a filled rectangle... 800x600").
const (
	DefaultFBWidth  = 800
	DefaultFBHeight = 600
)

// rootFSPartitionLBA is the first absolute sector of the filesystem
// partition, past the single protective MBR sector internal/fs.
// ValidateProtectiveMBR checks (spec §8 scenario E: MBR occupies LBA 0).
const rootFSPartitionLBA = 1

// initPath is the program internal/elfload loads as the first process
// (spec §4.H, §4.G "first process").
const initPath = "/init"
