package elfload

import (
	"encoding/binary"
	"testing"

	"vela/internal/proc"
	"vela/internal/vmm"
)

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	b := make([]byte, 64)
	if _, err := ParseHeader(b); err != ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestParseHeaderRejectsWrongMachine(t *testing.T) {
	b := buildHeader(0x1234, 0x40, 56, 1, 0xAA /* wrong machine */)
	if _, err := ParseHeader(b); err != ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestParseHeaderAccepts(t *testing.T) {
	b := buildHeader(0x1000, 0x40, 56, 1, 0xB7)
	hdr, err := ParseHeader(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hdr.Entry != 0x1000 || hdr.PHOff != 0x40 || hdr.PHNum != 1 || hdr.PHEntSize != 56 {
		t.Fatalf("unexpected header: %+v", hdr)
	}
}

// buildHeader constructs a minimal 64-byte ELF64 file header.
func buildHeader(entry, phoff uint64, phentsize, phnum uint16, machine uint16) []byte {
	b := make([]byte, 64)
	b[0], b[1], b[2], b[3] = 0x7F, 'E', 'L', 'F'
	b[4] = 2 // ELFCLASS64
	b[5] = 1 // little endian
	binary.LittleEndian.PutUint16(b[16:], 2) // ET_EXEC
	binary.LittleEndian.PutUint16(b[18:], machine)
	binary.LittleEndian.PutUint64(b[24:], entry)
	binary.LittleEndian.PutUint64(b[32:], phoff)
	binary.LittleEndian.PutUint16(b[54:], phentsize)
	binary.LittleEndian.PutUint16(b[56:], phnum)
	return b
}

// fakeFS is an in-memory FileSource over a single named file.
type fakeFS struct {
	files map[string][]byte
}

func (f *fakeFS) FindInode(path string) (uint32, bool) {
	if _, ok := f.files[path]; ok {
		return 1, true
	}
	return 0, false
}

func (f *fakeFS) ReadInode(inode uint32, offset uint64, buf []byte) (int, bool) {
	data := f.files["/init"] // single-file fixture
	n := copy(buf, data[offset:])
	return n, true
}

type fakeMapper struct {
	mapped map[uintptr]vmm.PageFlags
}

func (m *fakeMapper) Map(as *vmm.AddressSpace, va, pa uintptr, flags vmm.PageFlags) bool {
	m.mapped[va] = flags
	return true
}

type fakeFrameAllocator struct{ next uintptr }

func (f *fakeFrameAllocator) AllocFrame() (uintptr, bool) {
	f.next += vmm.PageSize
	return f.next, true
}

type fakeMemory struct {
	frames map[uintptr][]byte
}

func (m *fakeMemory) Zero(pa uintptr, size int) {
	m.frames[pa] = make([]byte, size)
}

func (m *fakeMemory) Write(pa uintptr, off int, data []byte) {
	copy(m.frames[pa][off:], data)
}

type fakeICache struct{ cleaned, synced bool }

func (f *fakeICache) CleanToPoU(pa uintptr, size int) { f.cleaned = true }
func (f *fakeICache) InvalidateAndSync()               { f.synced = true }

func buildTestELF() []byte {
	const phOff = 64
	payload := []byte("\x01\x02\x03\x04code")
	file := make([]byte, phOff+56+len(payload))
	hdr := buildHeader(0x2000, phOff, 56, 1, 0xB7)
	copy(file, hdr)

	// One PT_LOAD segment: R+X, vaddr 0x2000, filesz=len(payload),
	// memsz=len(payload)+16 (some BSS).
	binary.LittleEndian.PutUint32(file[phOff+0:], 1)              // p_type = PT_LOAD
	binary.LittleEndian.PutUint32(file[phOff+4:], (1 << 0 | 1<<2)) // PF_X|PF_R
	binary.LittleEndian.PutUint64(file[phOff+8:], phOff+56)        // p_offset
	binary.LittleEndian.PutUint64(file[phOff+16:], 0x2000)         // p_vaddr
	binary.LittleEndian.PutUint64(file[phOff+32:], uint64(len(payload)))
	binary.LittleEndian.PutUint64(file[phOff+40:], uint64(len(payload)+16))
	copy(file[phOff+56:], payload)
	return file
}

func TestLoadPopulatesFrameAndMapsSegmentAndStack(t *testing.T) {
	fs := &fakeFS{files: map[string][]byte{"/init": buildTestELF()}}
	mapper := &fakeMapper{mapped: map[uintptr]vmm.PageFlags{}}
	pages := &fakeFrameAllocator{}
	mem := &fakeMemory{frames: map[uintptr][]byte{}}
	icache := &fakeICache{}
	as := &vmm.AddressSpace{Root: 0x9000}

	l := New(fs, mapper, pages, mem, icache, as)
	p, _ := proc.New().Create("init")

	if err := l.Load("/init", p); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.EntryPoint != 0x2000 {
		t.Fatalf("entry = %#x, want 0x2000", p.EntryPoint)
	}
	if p.UserSP != UserStackTop {
		t.Fatalf("user SP = %#x, want %#x", p.UserSP, uint64(UserStackTop))
	}
	if p.Frame.ELR != 0x2000 || p.Frame.SP != UserStackTop {
		t.Fatalf("frame not initialized correctly: %+v", p.Frame)
	}
	if _, ok := mapper.mapped[0x2000]; !ok {
		t.Fatalf("expected segment page at 0x2000 to be mapped")
	}
	if _, ok := mapper.mapped[UserStackTop-pageSize]; !ok {
		t.Fatalf("expected top stack page to be mapped")
	}
	if !icache.synced {
		t.Fatalf("expected icache invalidate/sync to run")
	}
}

func TestLoadNotFoundReturnsError(t *testing.T) {
	fs := &fakeFS{files: map[string][]byte{}}
	mapper := &fakeMapper{mapped: map[uintptr]vmm.PageFlags{}}
	pages := &fakeFrameAllocator{}
	mem := &fakeMemory{frames: map[uintptr][]byte{}}
	icache := &fakeICache{}
	as := &vmm.AddressSpace{Root: 0x9000}

	l := New(fs, mapper, pages, mem, icache, as)
	p, _ := proc.New().Create("missing")
	if err := l.Load("/missing", p); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
