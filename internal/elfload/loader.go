package elfload

import (
	"vela/internal/proc"
	"vela/internal/trap"
	"vela/internal/vmm"
)

const pageSize = vmm.PageSize

// UserStackTop and UserStackSize place the fixed 1 MiB user stack at the
// known high virtual address spec §4.H names.
const (
	UserStackTop  = 0xC000_0000
	UserStackSize = 1 * 1024 * 1024
)

// FileSource is the filesystem interface the loader consumes (spec §6):
// resolve a path to an inode, then read ranges of it. internal/fs
// implements this against the block device; tests implement it in-memory.
type FileSource interface {
	FindInode(path string) (inode uint32, ok bool)
	ReadInode(inode uint32, offset uint64, buf []byte) (n int, ok bool)
}

// Mapper is the subset of *vmm.VMM the loader needs.
type Mapper interface {
	Map(as *vmm.AddressSpace, va, pa uintptr, flags vmm.PageFlags) bool
}

// FrameAllocator is the subset of *pmm.Allocator the loader needs.
type FrameAllocator interface {
	AllocFrame() (uintptr, bool)
}

// Memory gives the loader byte-level write access to a just-allocated
// physical frame, so it can zero it and copy file contents in (spec
// §4.H). internal/kernel backs this with the identity-mapped physical
// view; tests back it with a Go map keyed by frame address.
type Memory interface {
	Zero(pa uintptr, size int)
	Write(pa uintptr, off int, data []byte)
}

// ICacheSync invalidates the instruction cache / syncs the pipeline over
// a just-written executable page (spec §4.H: "clean the data cache to the
// point of unification over each 64-byte line"). hw_arm64.go backs this
// with the real cache-maintenance sequence; tests use a no-op.
type ICacheSync interface {
	CleanToPoU(pa uintptr, size int)
	InvalidateAndSync()
}

// Loader ties the filesystem, VMM, frame allocator, and physical-memory
// view together to populate a process (spec §4.H).
type Loader struct {
	fs     FileSource
	mapper Mapper
	pages  FrameAllocator
	mem    Memory
	icache ICacheSync
	as     *vmm.AddressSpace
}

// New constructs a Loader targeting the given process's address space.
func New(fs FileSource, mapper Mapper, pages FrameAllocator, mem Memory, icache ICacheSync, as *vmm.AddressSpace) *Loader {
	return &Loader{fs: fs, mapper: mapper, pages: pages, mem: mem, icache: icache, as: as}
}

// Load resolves path, parses its ELF64 header, maps every PT_LOAD segment
// and the user stack, and populates p's saved register frame so the
// process is ready to run at EL0 (spec §4.H).
func (l *Loader) Load(path string, p *proc.Process) error {
	inode, ok := l.fs.FindInode(path)
	if !ok {
		return ErrNotFound
	}

	var rawHeader [64]byte
	if n, ok := l.fs.ReadInode(inode, 0, rawHeader[:]); !ok || n < 64 {
		return ErrTruncated
	}
	hdr, err := ParseHeader(rawHeader[:])
	if err != nil {
		return err
	}

	phdrBytes := make([]byte, int(hdr.PHNum)*int(hdr.PHEntSize))
	if len(phdrBytes) > 0 {
		if _, ok := l.fs.ReadInode(inode, hdr.PHOff, phdrBytes); !ok {
			return ErrTruncated
		}
	}
	// ProgramHeaders indexes relative to the start of phdrBytes, so
	// rebase hdr.PHOff to 0 for the already-extracted slice.
	rebased := hdr
	rebased.PHOff = 0
	phdrs, err := ProgramHeaders(phdrBytes, rebased)
	if err != nil {
		return err
	}

	for _, ph := range phdrs {
		if !ph.IsLoad() {
			continue
		}
		if err := l.loadSegment(inode, ph); err != nil {
			return err
		}
	}

	if err := l.mapStack(); err != nil {
		return err
	}

	l.icache.InvalidateAndSync()

	p.EntryPoint = hdr.Entry
	p.UserSP = UserStackTop
	p.Frame = l.initialFrame(hdr.Entry, UserStackTop)
	return nil
}

// loadSegment maps and populates one PT_LOAD segment (spec §4.H
// procedure): page-align [vaddr, vaddr+memsz), allocate+map+zero each
// page, then copy file bytes only over the intersection with the
// segment's file extent. BSS (memsz > filesz) reads as zero automatically
// because every allocated frame is zeroed first.
func (l *Loader) loadSegment(inode uint32, ph ProgramHeader) error {
	flags := segmentFlags(ph)

	start := ph.VAddr &^ (pageSize - 1)
	end := (ph.VAddr + ph.MemSz + pageSize - 1) &^ (pageSize - 1)

	for va := start; va < end; va += pageSize {
		pa, ok := l.pages.AllocFrame()
		if !ok {
			return ErrOutOfMemory
		}
		l.mem.Zero(pa, pageSize)
		if !l.mapper.Map(l.as, uintptr(va), pa, flags) {
			return ErrOutOfMemory
		}

		pageFileStart, pageFileEnd, fileOff, ok := fileIntersection(ph, va, va+pageSize)
		if ok && pageFileEnd > pageFileStart {
			buf := make([]byte, pageFileEnd-pageFileStart)
			if _, ok := l.fs.ReadInode(inode, fileOff, buf); !ok {
				return ErrTruncated
			}
			l.mem.Write(pa, int(pageFileStart-va), buf)
		}

		if ph.Executable() {
			l.icache.CleanToPoU(pa, pageSize)
		}
	}
	return nil
}

// fileIntersection computes the portion of [pageStart, pageEnd) that
// overlaps the segment's file extent [vaddr, vaddr+filesz), and the file
// offset that overlap starts at.
func fileIntersection(ph ProgramHeader, pageStart, pageEnd uint64) (start, end, fileOff uint64, ok bool) {
	segFileStart := ph.VAddr
	segFileEnd := ph.VAddr + ph.FileSz
	s := max64(pageStart, segFileStart)
	e := min64(pageEnd, segFileEnd)
	if e <= s {
		return 0, 0, 0, false
	}
	return s, e, ph.Offset + (s - ph.VAddr), true
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// segmentFlags derives vmm.PageFlags from p_flags (spec §4.H: "writable
// -> kernel-managed user-RW; non-executable segments get user-execute-
// never").
func segmentFlags(ph ProgramHeader) vmm.PageFlags {
	return vmm.PageFlags{
		Kernel:     false,
		Writable:   ph.Writable(),
		Executable: ph.Executable(),
	}
}

// mapStack allocates and maps the fixed 1 MiB user stack region (spec
// §4.H).
func (l *Loader) mapStack() error {
	flags := vmm.PageFlags{Kernel: false, Writable: true, Executable: false}
	for va := uint64(UserStackTop - UserStackSize); va < UserStackTop; va += pageSize {
		pa, ok := l.pages.AllocFrame()
		if !ok {
			return ErrOutOfMemory
		}
		l.mem.Zero(pa, pageSize)
		if !l.mapper.Map(l.as, uintptr(va), pa, flags) {
			return ErrOutOfMemory
		}
	}
	return nil
}

// spsrEL0 is the saved program status for a fresh EL0 entry: target EL0,
// using SP_EL0, with IRQs unmasked (spec §4.H: "saved program-status =
// EL0 with interrupts unmasked").
const spsrEL0 = 0

func (l *Loader) initialFrame(entry uint64, userSP uint64) *trap.Frame {
	f := &trap.Frame{}
	f.ELR = entry
	f.SP = userSP
	f.SPSR = spsrEL0
	return f
}
