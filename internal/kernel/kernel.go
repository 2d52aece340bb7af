//go:build qemuvirt && aarch64

package kernel

import (
	"vela/arch/arm64"
	"vela/internal/compositor"
	"vela/internal/console"
	"vela/internal/elfload"
	"vela/internal/fs"
	"vela/internal/gic"
	"vela/internal/kheap"
	"vela/internal/mmio"
	"vela/internal/pmm"
	"vela/internal/proc"
	"vela/internal/ptimer"
	"vela/internal/syscall"
	"vela/internal/trap"
	"vela/internal/virtio"
	"vela/internal/virtio/blk"
	"vela/internal/virtio/gpu"
	"vela/internal/virtio/input"
	"vela/internal/vmm"
)

// VirtIO MMIO device-type IDs (the VirtIO specification's fixed registry,
// as probed over the band spec §6 describes).
const (
	deviceIDInput = 18
	deviceIDGPU   = 16
	deviceIDBlock = 2
)

// heapBytes is the size of the region internal/kheap carves window pixel
// buffers and other dynamic kernel allocations out of (spec §4.C). Chosen
// generously relative to DefaultFBWidth*DefaultFBHeight*4 so a handful of
// windows each sized to the full framebuffer fit with room to spare.
const heapBytes = 16 * 1024 * 1024

// kernelImageReserveFrames is the fixed budget of frames reserved at the
// base of RAM for the running kernel image itself (see Boot's first step).
const kernelImageReserveFrames = (8 * 1024 * 1024) / vmm.PageSize

// ramRegion implements internal/kheap.Region over a fixed [base, base+size)
// extent carved out of the normal pmm zone by a run of AllocFrames calls.
type ramRegion struct {
	base, size uintptr
}

func (r ramRegion) Base() uintptr { return r.base }
func (r ramRegion) Size() uintptr { return r.size }

// Boot brings the kernel up in the order spec §2 lays out: bring up the
// frame allocator; build the identity map and enable the MMU; bring up
// the heap, GIC, and timer; probe the VirtIO transports and their drivers; start
// the compositor; install vectors and the process table; load the init
// program; and hand off to the first process. It never returns.
//
// Grounded on the teacher's src/go/mazarin/kernel.go KernelMain: one
// ordered, UART-banner-per-step bring-up sequence with no configuration
// file and no supervisor above it, generalized here from a single demo
// image to the full device and scheduling stack spec §4 names.
func Boot() {
	uart := console.NewUART(mmio.HW)
	uart.Init()
	log := console.NewLogger(uart)
	log.Info("boot", "vela starting")

	// A: physical frame allocator (spec §4.A).
	totalFrames := uint32(vmm.RAMSize / vmm.PageSize)
	pages := pmm.New(vmm.RAMBase, totalFrames, func() pmm.Gate { return arm64.NewIRQGate() })
	// The kernel's own image (text/data/bss) occupies the front of managed
	// RAM; reserve it before anything else can be allocated over it. There
	// is no linker-provided image-end symbol to read at runtime (unlike
	// the teacher's rpi build, which linknames __end), so this reserves a
	// fixed, generous budget instead — a known simplification recorded in
	// DESIGN.md.
	pages.Reserve(vmm.RAMBase, kernelImageReserveFrames)
	log.Info("boot", "frame allocator ready")

	// B: build the kernel identity map and enable the MMU (spec §4.B).
	vm := vmm.New(physMemory{}, pages)
	kernelAS, ok := vm.BuildKernelIdentityMap()
	if !ok {
		log.Panic("boot", "identity map construction failed")
		for {
			arm64.WaitForEvent()
		}
	}
	vm.InstallAndEnable(kernelAS)
	log.Info("boot", "identity map installed, MMU enabled")

	// C: kernel heap (spec §4.C), carved from a run of frames out of the
	// normal zone.
	heapFrames := uint32(heapBytes / vmm.PageSize)
	heapBase, ok := pages.AllocFrames(heapFrames)
	if !ok {
		log.Panic("boot", "heap region allocation failed")
		for {
			arm64.WaitForEvent()
		}
	}
	heap := kheap.New(physMemory{}, ramRegion{base: heapBase, size: uintptr(heapFrames) * vmm.PageSize})
	log.Info("boot", "kernel heap ready")

	// D: GIC (spec §4.D).
	gicCtl := gic.New(mmio.HW)
	gicCtl.Init()
	log.Info("boot", "GIC initialized")

	// E: periodic timer (spec §4.E).
	timer := ptimer.HardwareTimer()
	timer.Init()
	log.Info("boot", "timer initialized")

	// G: process table and scheduler (spec §4.G), ahead of F so the
	// dispatcher closures below can already reference them.
	procTable := proc.New()
	sched := proc.NewScheduler(procTable, proc.HardwareSwitcher())

	userMem := newUserMemory(vm, procTable)

	// Keyboard ring and compositor placeholder; the compositor itself is
	// constructed below (step L) once the GPU is up, but syscall wiring
	// needs a focus source that exists now. focusBox holds the eventual
	// *compositor.Compositor so the closures below can dereference it
	// once Boot sets it, mirroring flushAdapter's own two-phase
	// construction for the same structural reason (the compositor must
	// exist before anything that reads its state can be built, but the
	// dispatcher must exist before the compositor's first render).
	var focusBox focusSourceBox
	kbd := NewKeyboardRing(&focusBox, arm64.WaitForEvent)

	// J/K: VirtIO transport probe and device bring-up (spec §4.J, §4.K).
	var gpuDrv *gpu.Driver
	var blkDrv *blk.Driver
	var inputDrivers []*input.Driver

	frameSrc := newQueueFrameSource(pages)

	// claimedSlots tracks every slot address already bound to a driver, so
	// the input scan below (which must find every matching slot, not just
	// the first, since several input devices — mouse and keyboard — can
	// sit on the same band) never reconsiders one.
	var claimedSlots []uintptr

	if slot, ok := virtio.Probe(mmio.HW, VirtIOMMIOBase, VirtIOSlotCount, deviceIDGPU); ok {
		claimedSlots = append(claimedSlots, slot)
		dev := virtio.Open(mmio.HW, slot)
		if dev.NegotiateAll() {
			if q, ok := dev.SetupQueue(0, 32, frameSrc); ok {
				reqAddr, _ := pages.AllocFrame()
				respAddr, _ := pages.AllocFrame()
				gpuDrv = gpu.New(dev, q, mmio.HW, reqAddr, respAddr)
				dev.DriverOK()
				log.Info("boot", "virtio-gpu ready")
			}
		}
	}

	if slot, ok := virtio.Probe(mmio.HW, VirtIOMMIOBase, VirtIOSlotCount, deviceIDBlock); ok {
		claimedSlots = append(claimedSlots, slot)
		dev := virtio.Open(mmio.HW, slot)
		if dev.NegotiateAll() {
			if q, ok := dev.SetupQueue(0, 32, frameSrc); ok {
				headerAddr, _ := pages.AllocFrame()
				statusAddr, _ := pages.AllocFrame()
				blkDrv = blk.New(dev, q, physMemory{}, headerAddr, statusAddr)
				dev.DriverOK()
				log.Info("boot", "virtio-blk ready")
			}
		}
	}

	fbWidth, fbHeight := int32(DefaultFBWidth), int32(DefaultFBHeight)
	if gpuDrv != nil && gpuDrv.GetDisplayInfo() {
		if w, h := gpuDrv.Width(), gpuDrv.Height(); w > 0 && h > 0 {
			fbWidth, fbHeight = int32(w), int32(h)
		}
	}

	// L: compositor (spec §4.L), constructed now that the GPU (if any) is
	// known and the pixel heap can be built.
	pixelHeap := newHeapPixelHeap(heap)
	gate := arm64.NewIRQGate()

	var flusher compositor.GPUFlusher
	var flush *flushAdapter
	if gpuDrv != nil {
		fbBacking, ok := pages.AllocFrames(uint32((int(fbWidth)*int(fbHeight)*4 + vmm.PageSize - 1) / vmm.PageSize))
		if ok && gpuDrv.CreateResource2D(1) && gpuDrv.AttachBacking(uint64(fbBacking), uint32(int(fbWidth)*int(fbHeight)*4)) && gpuDrv.SetScanout() {
			flush = newFlushAdapter(gpuDrv, fbBacking, fbWidth)
			flusher = flush
		}
	}
	if flusher == nil {
		flusher = noopFlusher{}
	}

	comp := compositor.New(pixelHeap, flusher, blankFont{}, gate, fbWidth, fbHeight)
	if flush != nil {
		flush.comp = comp
	}
	focusBox.comp = comp
	log.Info("boot", "compositor ready")

	// Input devices: probe every remaining input slot and wire each to
	// the compositor (mouse/click) and keyboard ring (spec §4.K "Input",
	// spec §6: "VirtIO input devices follow slot index offset from line
	// 48").
	for i := 0; i < VirtIOSlotCount; i++ {
		addr := uintptr(VirtIOMMIOBase) + uintptr(i)*virtio.SlotStride
		claimed := false
		for _, c := range claimedSlots {
			if c == addr {
				claimed = true
				break
			}
		}
		if claimed {
			continue
		}
		slot, ok := virtio.Probe(mmio.HW, addr, 1, deviceIDInput)
		if !ok {
			continue
		}
		claimedSlots = append(claimedSlots, slot)
		dev := virtio.Open(mmio.HW, slot)
		if !dev.NegotiateAll() {
			continue
		}
		q, ok := dev.SetupQueue(0, 64, frameSrc)
		if !ok {
			continue
		}
		drv := input.New(dev, q, mmio.HW, comp, comp, kbd)
		bufs := make([]uintptr, 0, 8)
		for j := 0; j < 8; j++ {
			addr, ok := pages.AllocFrame()
			if !ok {
				break
			}
			bufs = append(bufs, addr)
		}
		drv.PostAll(bufs)
		dev.DriverOK()
		inputDrivers = append(inputDrivers, drv)
		irq := uint32(VirtIOInputIRQBase + len(inputDrivers) - 1)
		gicCtl.RegisterHandler(irq, drv.HandleIRQ)
		gicCtl.SetTarget(irq, 1)
		gicCtl.Enable(irq)
	}
	log.Info("boot", "input devices ready")

	// F: trap dispatcher (spec §4.F), wiring every handler to the
	// subsystem it drives.
	winSys := syscall.Dispatcher{
		Clock:    timer,
		Proc:     newCurrentProcAdapter(procTable),
		Console:  newConsoleSink(log),
		Keyboard: kbd,
		Exiter:   newExiter(procTable, sched),
		Windows:  comp,
		Mem:      userMem,
	}

	dispatcher := &trap.Dispatcher{
		Syscall: winSys.Dispatch,
		ProcessFault: func(frame *trap.Frame, esr, far uint64) {
			log.Error("fault", "user process fault")
			log.PutHex64(esr)
			log.PutHex64(uint64(far))
			pid := procTable.Current().ID
			newExiter(procTable, sched).Exit(pid, -1)
		},
		KernelFault: func(frame *trap.Frame, esr, far uint64) {
			log.Panic("fault", "kernel synchronous fault")
			log.PutHex64(esr)
			log.PutHex64(uint64(far))
			fatalHalt()
		},
		TimerTick: func(frame *trap.Frame) {
			timer.Tick(func() { sched.Schedule(frame) })
		},
		OtherIRQ: func(irq uint32) { gicCtl.InvokeHandler(irq) },
		Acknowledge: gicCtl.Acknowledge,
		End:         gicCtl.End,
		Spurious:    gic.Spurious,
		TimerLine:   TimerIRQ,
		SError: func(esr uint64) {
			log.Panic("fault", "SError")
			log.PutHex64(esr)
			fatalHalt()
		},
	}

	arm64.SetDispatcher(dispatcher)
	arm64.SetProcessTable(procTable)
	arm64.InstallVectors()

	gicCtl.RegisterHandler(UARTIRQ, func() {
		if b, ok := uart.TryGetByte(); ok {
			kbd.PushByte(b)
		}
	})
	gicCtl.SetTarget(UARTIRQ, 1)
	gicCtl.Enable(UARTIRQ)

	gicCtl.SetTarget(TimerIRQ, 1)
	gicCtl.Enable(TimerIRQ)
	log.Info("boot", "vectors installed, interrupts wired")

	// H: filesystem and init-program loading (spec §4.H, §12 supplement
	// 1), behind the block device probed above.
	if blkDrv != nil {
		scratchAddr, ok := pages.AllocFrame()
		if ok {
			disk := fs.NewDisk(blkDrv, physMemory{}, scratchAddr, rootFSPartitionLBA)
			if fs.ValidateProtectiveMBR(blkDrv, physMemory{}, scratchAddr) {
				cache := fs.NewBufferCache(disk)
				filesystem := fs.New(cache)
				if filesystem.Check() {
					loadInit(filesystem, vm, pages, procTable, kernelAS.Root, log)
					loadConsoleWindow(procTable, comp, sched, log)
				} else {
					log.Warn("boot", "filesystem superblock check failed")
				}
			} else {
				log.Warn("boot", "protective MBR missing")
			}
		}
	} else {
		log.Warn("boot", "no virtio-blk device found")
	}

	// G: install and start the first process (spec §4.G).
	first := procTable.Current()
	if first == nil {
		log.Panic("boot", "no process installed")
		fatalHalt()
	}
	sched.StartFirst(first)
	arm64.StartFirstProcess(first)
}

// loadInit maps /init into a fresh process's address space via
// internal/elfload and installs it as the first scheduled process.
// kernelRoot is the top-level table built by Boot's BuildKernelIdentityMap
// call, shared by every process's address space (spec §4.B: every process
// retains a mapping to the kernel range alongside its own).
func loadInit(filesystem *fs.FS, vm *vmm.VMM, pages *pmm.Allocator, procTable *proc.Table, kernelRoot uintptr, log *console.Logger) {
	p, ok := procTable.Create("init")
	if !ok {
		log.Error("boot", "process table full before init")
		return
	}
	as, ok := vm.CreateAddressSpace(kernelRoot)
	if !ok {
		log.Error("boot", "address space creation failed for init")
		return
	}
	p.PageTable = as.Root

	stackAddr, ok := pages.AllocFrame()
	if !ok {
		log.Error("boot", "kernel stack allocation failed for init")
		return
	}
	p.KernelSP = stackAddr + vmm.PageSize

	loader := elfload.New(filesystem, vm, pages, elfMemory{}, elfload.HardwareICache(), as)
	if err := loader.Load(initPath, p); err != nil {
		log.Error("boot", "failed to load /init")
		return
	}
	log.Info("boot", "/init loaded")
}

// loadConsoleWindow creates the built-in shell window process (pid 2, spec
// §12 supplement 2: a trivial console window satisfying the "main shell
// process (identifier 2)" protected-window invariant), without loading
// any ELF image for it — it exists purely so MainShellPID names a real,
// non-exited process the scheduler rotates through.
func loadConsoleWindow(procTable *proc.Table, comp *compositor.Compositor, sched *proc.Scheduler, log *console.Logger) {
	p, ok := procTable.Create("console")
	if !ok || p.ID != compositor.MainShellPID {
		log.Warn("boot", "console window process did not land on the expected pid")
	}
	p.State = proc.Runnable
	comp.CreateWindow(p.ID, 0, 0, 400, 300, "console")
}

// fatalHalt implements spec §7's Fatal-kernel category: print (already
// done by the caller), mask all exceptions, and WFE forever.
func fatalHalt() {
	arm64.NewIRQGate().Lock()
	for {
		arm64.WaitForEvent()
	}
}

// noopFlusher is used when no GPU device is present: the compositor still
// renders into its in-memory framebuffer, it just never reaches a screen.
type noopFlusher struct{}

func (noopFlusher) Flush(x, y, w, h uint32) bool { return true }

// focusSourceBox defers to a *compositor.Compositor set after
// construction, the same two-phase pattern flushAdapter uses.
type focusSourceBox struct {
	comp *compositor.Compositor
}

func (b *focusSourceBox) FocusPID() (int, bool) {
	if b.comp == nil {
		return 0, false
	}
	return b.comp.FocusPID()
}
