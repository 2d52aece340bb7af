package compositor

import "testing"

// fakeGPU records the extent of every flush.
type fakeGPU struct {
	flushes int
	x, y, w, h uint32
}

func (f *fakeGPU) Flush(x, y, w, h uint32) bool {
	f.flushes++
	f.x, f.y, f.w, f.h = x, y, w, h
	return true
}

// blockFont is a GlyphSource whose every glyph is a single fully-set
// charWidth x charHeight bitmap, sufficient to exercise cursor advance and
// color selection without depending on the real (out-of-scope) font
// table.
type blockFont struct{}

func (blockFont) Glyph(ch byte) ([]byte, int, int, bool) {
	if ch == ' ' {
		return nil, charWidth, charHeight, true
	}
	stride := (charWidth + 7) / 8
	bmp := make([]byte, stride*charHeight)
	for i := range bmp {
		bmp[i] = 0xFF
	}
	return bmp, charWidth, charHeight, true
}

func newTestCompositor(fbW, fbH int32) (*Compositor, *fakeGPU) {
	gpu := &fakeGPU{}
	c := New(NewSlicePixelHeap(), gpu, blockFont{}, nil, fbW, fbH)
	return c, gpu
}

func TestCreateWindowAssignsIncreasingIDs(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id1, ok := c.CreateWindow(2, 100, 100, 200, 150, "w")
	if !ok || id1 < 1 {
		t.Fatalf("CreateWindow failed: id=%d ok=%v", id1, ok)
	}
	id2, ok := c.CreateWindow(3, 10, 10, 50, 50, "x")
	if !ok || id2 <= id1 {
		t.Fatalf("expected increasing ids, got %d then %d", id1, id2)
	}
}

func TestCreateWindowFromMainShellIsProtected(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id, ok := c.CreateWindow(MainShellPID, 0, 0, 100, 100, "shell")
	if !ok {
		t.Fatal("CreateWindow failed")
	}
	idx, _ := c.indexByID(id)
	if !c.windows[idx].Protected() {
		t.Fatal("window owned by the main shell pid must be protected")
	}

	id2, ok := c.CreateWindow(99, 0, 0, 100, 100, "other")
	if !ok {
		t.Fatal("CreateWindow failed")
	}
	idx2, _ := c.indexByID(id2)
	if c.windows[idx2].Protected() {
		t.Fatal("window owned by a non-shell pid must not be protected")
	}
}

// TestWindowDrawOwnershipIsolation is seed scenario (C): two processes
// each drawing only inside their own window never see the other's color
// appear inside their client area after render.
func TestWindowDrawOwnershipIsolation(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id1, _ := c.CreateWindow(10, 0, 50, 100, 100, "a")
	id2, _ := c.CreateWindow(20, 200, 50, 100, 100, "b")

	if !c.WindowDraw(10, id1, 0, 0, 100, 100, 0xFFFF0000) {
		t.Fatal("owner draw into its own window should succeed")
	}
	if !c.WindowDraw(20, id2, 0, 0, 100, 100, 0xFF00FF00) {
		t.Fatal("owner draw into its own window should succeed")
	}
	if c.WindowDraw(10, id2, 0, 0, 10, 10, 0xFF0000FF) {
		t.Fatal("pid 10 must not be able to draw into pid 20's window")
	}

	c.Render()
	idx2, _ := c.indexByID(id2)
	win2 := &c.windows[idx2]
	for y := int32(0); y < win2.h; y++ {
		for x := int32(0); x < win2.w; x++ {
			if win2.PixelAt(x, y) == 0xFFFF0000 {
				t.Fatalf("pid 10's color leaked into pid 20's window at (%d,%d)", x, y)
			}
		}
	}
}

func TestWindowDrawPermissionDeniedIsSilent(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id, _ := c.CreateWindow(5, 0, 0, 50, 50, "w")
	if c.WindowDraw(6, id, 0, 0, 10, 10, 0xFFFFFFFF) {
		t.Fatal("non-owner, non-init draw must fail")
	}
	// init pid is exempt.
	if !c.WindowDraw(InitPID, id, 0, 0, 10, 10, 0xFFFFFFFF) {
		t.Fatal("init pid must be able to draw into any window")
	}
}

func TestDestroyFreesAndCompactsSlot(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id1, _ := c.CreateWindow(1, 0, 0, 10, 10, "a")
	id2, _ := c.CreateWindow(2, 0, 0, 10, 10, "b")
	c.Destroy(id1)
	if c.count != 1 {
		t.Fatalf("count = %d, want 1", c.count)
	}
	if _, ok := c.indexByID(id1); ok {
		t.Fatal("destroyed window should no longer be found")
	}
	if _, ok := c.indexByID(id2); !ok {
		t.Fatal("surviving window should still be found after compaction")
	}
}

// TestHandleClickClosesUnprotectedWindow exercises the close-button box
// geometry (spec §6).
func TestHandleClickClosesUnprotectedWindow(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id, _ := c.CreateWindow(5, 100, 100, 200, 100, "w")
	idx, _ := c.indexByID(id)
	cx0, cy0, _, _ := closeBoxRect(&c.windows[idx])

	c.mouseX, c.mouseY = cx0+1, cy0+1
	c.HandleClick(true)
	c.HandleClick(false)

	if _, ok := c.indexByID(id); ok {
		t.Fatal("clicking the close box of an unprotected window should destroy it")
	}
}

func TestHandleClickCannotCloseProtectedWindow(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id, _ := c.CreateWindow(MainShellPID, 100, 100, 200, 100, "shell")
	idx, _ := c.indexByID(id)
	cx0, cy0, _, _ := closeBoxRect(&c.windows[idx])

	c.mouseX, c.mouseY = cx0+1, cy0+1
	c.HandleClick(true)
	c.HandleClick(false)

	if _, ok := c.indexByID(id); !ok {
		t.Fatal("a protected window must survive a close-box click")
	}
}

func TestHandleClickTitleBarStartsDragAndUpdateMouseMovesWindow(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id, _ := c.CreateWindow(5, 100, 100, 200, 100, "w")
	idx, _ := c.indexByID(id)

	c.mouseX, c.mouseY = 150, 90 // inside the title-bar strip
	c.HandleClick(true)
	if !c.dragging {
		t.Fatal("clicking the title bar should start a drag")
	}

	c.UpdateMouse(10, 0, false)
	if c.windows[idx].x != 110 {
		t.Fatalf("dragged window x = %d, want 110", c.windows[idx].x)
	}

	c.HandleClick(false)
	if c.dragging {
		t.Fatal("release should clear drag state")
	}
}

// TestUpdateMouseClampsDragKeepsTitleBarOnScreen is the vertical
// counterpart of the drag test above: dragging far enough toward the top
// edge must stop once the title bar itself would go off-screen, not once
// the window's own top edge hits y=0.
func TestUpdateMouseClampsDragKeepsTitleBarOnScreen(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id, _ := c.CreateWindow(5, 100, 100, 200, 100, "w")
	idx, _ := c.indexByID(id)

	c.mouseX, c.mouseY = 150, 90 // inside the title-bar strip
	c.HandleClick(true)
	if !c.dragging {
		t.Fatal("clicking the title bar should start a drag")
	}

	c.UpdateMouse(150, 0, true) // drag the cursor to the very top edge
	if c.windows[idx].y != TitleBarHeight {
		t.Fatalf("dragged window y = %d, want %d (title bar kept on-screen)", c.windows[idx].y, TitleBarHeight)
	}
}

func TestHandleClickRaisesZOrder(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	idA, _ := c.CreateWindow(1, 0, 50, 100, 100, "a")
	idB, _ := c.CreateWindow(2, 50, 50, 100, 100, "b")
	idxA, _ := c.indexByID(idA)
	idxB, _ := c.indexByID(idB)
	if c.windows[idxA].z >= c.windows[idxB].z {
		t.Fatal("later-created window should start with a higher z")
	}

	c.mouseX, c.mouseY = 10, 100 // inside A only
	c.HandleClick(true)
	c.HandleClick(false)

	if c.windows[idxA].z <= c.windows[idxB].z {
		t.Fatal("clicking A should raise it above B")
	}
}

// TestRenderCompositesTopmostWindow is seed scenario (B)/property 6: after
// create+render, the framebuffer at a point inside the window shows that
// window's (decorated or blended) content rather than the background.
func TestRenderCompositesTopmostWindow(t *testing.T) {
	c, gpu := newTestCompositor(800, 600)
	id, _ := c.CreateWindow(2, 100, 100, 200, 150, "w")
	c.WindowDraw(2, id, 0, 0, 200, 150, 0xFFABCDEF)

	c.Render()

	fb := c.Framebuffer()
	if fb.At(150, 150) != 0xFFABCDEF {
		t.Fatalf("framebuffer pixel inside window = 0x%08X, want 0xFFABCDEF", fb.At(150, 150))
	}
	if gpu.flushes != 1 {
		t.Fatalf("expected exactly one GPU flush, got %d", gpu.flushes)
	}
	if gpu.w != 800 || gpu.h != 600 {
		t.Fatalf("flush extent = %dx%d, want 800x600", gpu.w, gpu.h)
	}
}

func TestRenderBackgroundWhereNoWindow(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	c.CreateWindow(2, 100, 100, 50, 50, "w")
	c.Render()

	fb := c.Framebuffer()
	got := fb.At(0, 0)
	if got == 0 {
		t.Fatal("background pixel should be painted by the gradient, not left zero")
	}
}

// TestTerminalSGRAndNewline is seed scenario (D): writing
// "\033[32mOK\033[0m\n" sets the green foreground for 'O' and 'K', then
// resets to white, advances the cursor to the next row with cursor-x 0.
func TestTerminalSGRAndNewline(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id, _ := c.CreateWindow(2, 0, 0, 400, 400, "term")
	idx, _ := c.indexByID(id)

	c.WriteTerminal(id, []byte("\033[32mOK\033[0m\n"))

	win := &c.windows[idx]
	if win.terminal.cursorX != 0 {
		t.Fatalf("cursorX after newline = %d, want 0", win.terminal.cursorX)
	}
	if win.terminal.cursorY != 1 {
		t.Fatalf("cursorY after newline = %d, want 1", win.terminal.cursorY)
	}
	if win.terminal.fg != AnsiWhite {
		t.Fatalf("terminal fg after SGR reset = 0x%08X, want AnsiWhite", win.terminal.fg)
	}

	// 'O' was drawn at cell (0,0) while fg was green; spot-check the
	// glyph's top-left pixel landed with the spec's literal SGR-32 color.
	const wantGreen = 0xFF00BB00
	if win.PixelAt(0, 0) != wantGreen {
		t.Fatalf("glyph pixel for 'O' = 0x%08X, want 0x%08X", win.PixelAt(0, 0), uint32(wantGreen))
	}
}

func TestTerminalCSIHomeAndClear(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id, _ := c.CreateWindow(2, 0, 0, 400, 400, "term")
	idx, _ := c.indexByID(id)

	c.WriteTerminal(id, []byte("hello\n\033[H"))
	win := &c.windows[idx]
	if win.terminal.cursorX != 0 || win.terminal.cursorY != 0 {
		t.Fatalf("CSI H should home the cursor, got (%d,%d)", win.terminal.cursorX, win.terminal.cursorY)
	}

	c.WriteTerminal(id, []byte("\033[J"))
	for _, p := range win.pixels {
		if p != win.bg {
			t.Fatal("CSI J should clear the buffer to background")
		}
	}
}

func TestTerminalScrollsOnOverflow(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id, _ := c.CreateWindow(2, 0, 0, charWidth, charHeight*2, "term")
	idx, _ := c.indexByID(id)
	win := &c.windows[idx]

	c.WriteTerminal(id, []byte("A\nB\nC\n"))
	rows, _ := win.rowsCols()
	if win.terminal.cursorY != rows-1 {
		t.Fatalf("cursorY after overflowing a %d-row window = %d, want %d", rows, win.terminal.cursorY, rows-1)
	}
}

func TestEscapeParserOverflowDropsDispatch(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id, _ := c.CreateWindow(2, 0, 0, 100, 100, "term")
	idx, _ := c.indexByID(id)
	win := &c.windows[idx]
	before := win.terminal.fg

	overflow := make([]byte, 0, maxParamBytes+8)
	overflow = append(overflow, 0x1B, '[')
	for i := 0; i < maxParamBytes+4; i++ {
		overflow = append(overflow, '9')
	}
	overflow = append(overflow, 'm')
	c.WriteTerminal(id, overflow)

	if win.terminal.fg != before {
		t.Fatal("an overflowing CSI sequence must not dispatch")
	}
	if win.terminal.parser != stateNormal {
		t.Fatal("an overflowing CSI sequence must return to NORMAL")
	}
}

func TestFillRectClipping(t *testing.T) {
	buf := make([]uint32, 10*10)
	fillRect(buf, 10, 10, -5, -5, 10, 10, 0xFFFFFFFF)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if buf[y*10+x] != 0xFFFFFFFF {
				t.Fatalf("clipped rect should still fill the in-bounds portion at (%d,%d)", x, y)
			}
		}
	}
}
