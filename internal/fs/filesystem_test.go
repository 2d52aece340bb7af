package fs

import "testing"

// buildInodeTableBlock encodes recs into one inode-table block, leaving
// the remainder zeroed (a FindInode scan skips records with an empty name).
func buildInodeTableBlock(recs []inodeRecord) []byte {
	block := make([]byte, BlockSize)
	for i, rec := range recs {
		off := i * inodeRecordSize
		copy(block[off:off+MaxNameLen], rec.name[:])
		putLE32(block[off+MaxNameLen:], rec.size)
		for j, b := range rec.blocks {
			putLE32(block[off+MaxNameLen+4+j*4:], b)
		}
	}
	return block
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func makeRecord(name string, size uint32, blocks ...uint32) inodeRecord {
	var rec inodeRecord
	copy(rec.name[:], name)
	rec.size = size
	copy(rec.blocks[:], blocks)
	return rec
}

// newTestFS wires a Disk+BufferCache+FS where block 0 is the superblock,
// block 1 is the inode table, and data blocks start at block 2 (matching
// dataStartBlock).
func newTestFS(t *testing.T, recs []inodeRecord, dataBlocks map[uint32][]byte) (*FS, *fakeBlockDevice) {
	t.Helper()
	disk, dev, _ := newTestDisk()

	super := make([]byte, BlockSize)
	putLE32(super, superblockMagic)
	putBlockRaw(dev, superblockBlock, super)
	putBlockRaw(dev, inodeTableBlock, buildInodeTableBlock(recs))
	for b, data := range dataBlocks {
		padded := make([]byte, BlockSize)
		copy(padded, data)
		putBlockRaw(dev, dataStartBlock+b, padded)
	}

	cache := NewBufferCache(disk)
	return New(cache), dev
}

func putBlockRaw(dev *fakeBlockDevice, blockNum uint32, data []byte) {
	for i := 0; i < sectorsPerBlock; i++ {
		dev.putSector(uint64(blockNum)*sectorsPerBlock+uint64(i), data[i*sectorSize:(i+1)*sectorSize])
	}
}

func TestFSCheckValidatesSuperblockMagic(t *testing.T) {
	f, _ := newTestFS(t, nil, nil)
	if !f.Check() {
		t.Fatal("expected superblock magic to validate")
	}
}

func TestFindInodeResolvesKnownPath(t *testing.T) {
	recs := []inodeRecord{makeRecord("init", 10, 0)}
	f, _ := newTestFS(t, recs, nil)

	inode, ok := f.FindInode("/init")
	if !ok {
		t.Fatal("expected /init to resolve")
	}
	if inode != 0 {
		t.Fatalf("inode = %d, want 0", inode)
	}
}

func TestFindInodeStripsLeadingSlashOnly(t *testing.T) {
	recs := []inodeRecord{makeRecord("shell", 1, 0)}
	f, _ := newTestFS(t, recs, nil)

	if _, ok := f.FindInode("shell"); !ok {
		t.Fatal("expected bare name (no leading slash) to also resolve")
	}
}

func TestFindInodeReportsNotFound(t *testing.T) {
	recs := []inodeRecord{makeRecord("init", 1, 0)}
	f, _ := newTestFS(t, recs, nil)

	if _, ok := f.FindInode("/missing"); ok {
		t.Fatal("expected lookup of an absent path to fail")
	}
}

func TestReadInodeReadsDirectBlockData(t *testing.T) {
	payload := make([]byte, 16)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	recs := []inodeRecord{makeRecord("init", uint32(len(payload)), 1)}
	f, _ := newTestFS(t, recs, map[uint32][]byte{1: payload})

	inode, ok := f.FindInode("/init")
	if !ok {
		t.Fatal("FindInode failed")
	}
	buf := make([]byte, len(payload))
	n, ok := f.ReadInode(inode, 0, buf)
	if !ok || n != len(payload) {
		t.Fatalf("ReadInode = (%d, %v), want (%d, true)", n, ok, len(payload))
	}
	for i, b := range buf {
		if b != payload[i] {
			t.Fatalf("byte %d = %d, want %d", i, b, payload[i])
		}
	}
}

func TestReadInodeSpansMultipleBlocks(t *testing.T) {
	a := make([]byte, BlockSize)
	for i := range a {
		a[i] = 0xAA
	}
	b := make([]byte, BlockSize)
	for i := range b {
		b[i] = 0xBB
	}
	recs := []inodeRecord{makeRecord("big", uint32(len(a)+len(b)), 1, 2)}
	f, _ := newTestFS(t, recs, map[uint32][]byte{1: a, 2: b})

	inode, _ := f.FindInode("/big")
	buf := make([]byte, BlockSize+4)
	n, ok := f.ReadInode(inode, uint64(BlockSize-4), buf)
	if !ok || n != len(buf) {
		t.Fatalf("ReadInode across blocks = (%d, %v)", n, ok)
	}
	for i := 0; i < 4; i++ {
		if buf[i] != 0xAA {
			t.Fatalf("tail of block 0 byte %d = %#x, want 0xAA", i, buf[i])
		}
	}
	for i := 4; i < len(buf); i++ {
		if buf[i] != 0xBB {
			t.Fatalf("head of block 1 byte %d = %#x, want 0xBB", i, buf[i])
		}
	}
}

func TestReadInodeZeroFillsSparseHoles(t *testing.T) {
	recs := []inodeRecord{makeRecord("sparse", BlockSize, 0 /* blocks[0]==0 is a hole */)}
	f, _ := newTestFS(t, recs, nil)

	inode, _ := f.FindInode("/sparse")
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = 0xFF // poison, to prove the zero-fill actually writes
	}
	n, ok := f.ReadInode(inode, 0, buf)
	if !ok || n != len(buf) {
		t.Fatalf("ReadInode over a hole = (%d, %v)", n, ok)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("hole byte %d = %#x, want 0", i, b)
		}
	}
}

func TestReadInodeStopsAtDirectBlockLimit(t *testing.T) {
	var blocks [DirectBlocks]uint32
	recs := []inodeRecord{makeRecord("maxed", 0, blocks[:]...)}
	f, _ := newTestFS(t, recs, nil)

	inode, _ := f.FindInode("/maxed")
	buf := make([]byte, DirectBlocks*BlockSize+BlockSize)
	n, ok := f.ReadInode(inode, 0, buf)
	if !ok {
		t.Fatal("ReadInode unexpectedly failed")
	}
	if n != DirectBlocks*BlockSize {
		t.Fatalf("n = %d, want exactly the direct-block capacity %d", n, DirectBlocks*BlockSize)
	}
}
