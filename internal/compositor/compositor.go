// Package compositor is the window manager (spec §4.L): it owns every
// process's pixel buffer, arbitrates input focus and z-order, drives a
// tiny embedded terminal emulator per window, and composites the lot onto
// the framebuffer through internal/virtio/gpu.
//
// Grounded on the teacher's src/go/mazarin/colors.go (XRGB8888 palette and
// ColorScheme shape, reused verbatim for the SGR color table) and the
// "global mutable state" design note (mazarin keeps window/mouse state as
// file-scope globals; this package collects it all into one Compositor
// value instead, with mutation points made explicit through the exported
// methods). The teacher has no compositor of its own — mazarin is a
// single-image demo kernel with no user-process windowing — so the z-
// order/decoration/terminal-parser algorithms below are grounded directly
// in spec §4.L's step-numbered operations rather than any teacher file.
package compositor

import (
	"vela/internal/bitfield"
	"vela/internal/pmm"
)

// MaxWindows is the fixed window-table capacity (spec §4.L: "a fixed-
// capacity array of window records").
const MaxWindows = 32

// TitleBarHeight and close-button geometry (spec §6 "Window title-bar
// geometry").
const (
	TitleBarHeight = 20
	CloseBoxSize   = 16
	CloseBoxInset  = 2
)

// MainShellPID is the process identifier whose windows are created
// protected (spec §4.L create: "protected flag iff the owner is the main
// shell process (identifier 2)").
const MainShellPID = 2

// InitPID is exempt from ownership checks on draw/window_draw (spec §4.I:
// "the init process, identifier 1, is exempt").
const InitPID = 1

// WindowFlags packs a window's boolean state (spec §11 domain stack:
// "compositor.WindowFlags: visible/protected/dragging") the way every
// other packed flags word in this kernel does, through internal/bitfield.
type WindowFlags struct {
	Visible   bool   `bitfield:",1"`
	Protected bool   `bitfield:",1"`
	Dragging  bool   `bitfield:",1"`
	_         uint32 `bitfield:",29"`
}

// pack/unpack round-trip WindowFlags through bitfield, the same "every
// packed flags word goes through internal/bitfield" discipline pmm.
// Descriptor and vmm's PTE flags follow. internal/kernel's debug dump
// (spec §10.1 logging) logs a window's flags word via Pack rather than
// formatting each bool, matching the teacher's habit of logging a raw
// hex flags word instead of decoded fields.
func (f WindowFlags) pack() uint64 {
	v, _ := bitfield.Pack(f, &bitfield.Config{NumBits: 32})
	return v
}

func (f *WindowFlags) unpack(v uint64) {
	_ = bitfield.Unpack(v, f)
}

// Pixels is a window's or the framebuffer's ARGB8888 backing store (spec
// §6 "32-bit little-endian ARGB8888"). Unlike virtqueue rings or ELF
// segments, a window buffer is never addressed by a device or by user-
// mode code — only this package's own methods ever touch it — so it is
// modeled as an ordinary Go slice instead of a uintptr-plus-Memory-view
// pair; internal/kernel's PixelHeap implementation is the one place that
// bridges it back to a real kheap-backed physical allocation.
type Pixels []uint32

// PixelHeap allocates and frees a window's backing buffer (spec §3 "a
// heap-allocated pixel buffer of w*h 32-bit ARGB pixels"). internal/kernel
// backs this with internal/kheap.Heap; tests back it with a plain Go-slice
// allocator (see NewSlicePixelHeap).
type PixelHeap interface {
	AllocPixels(n int) (Pixels, bool)
	FreePixels(Pixels)
}

// GPUFlusher commits a dirty rectangle of the framebuffer to the screen
// (spec §4.L render step iv). internal/virtio/gpu.Driver satisfies this
// directly.
type GPUFlusher interface {
	Flush(x, y, w, h uint32) bool
}

// GlyphSource supplies the fixed-size bitmap for one printable ASCII
// character. The bitmap font table itself is out of scope (spec §1); any
// external table satisfies this interface by implementing Glyph.
type GlyphSource interface {
	// Glyph returns a row-major, 1-bit-per-pixel bitmap (MSB first) for
	// ch, plus its width and height in pixels. ok is false for characters
	// the font does not cover (drawn as blank).
	Glyph(ch byte) (bitmap []byte, w, h int, ok bool)
}

// terminalState is the embedded per-window terminal (spec §3 "a small
// embedded terminal state").
type terminalState struct {
	cursorX, cursorY int32
	fg               uint32
	parser           parserState
	params           []byte
}

// Window is one compositor-owned window record (spec §3 "Window").
type Window struct {
	id       int32
	x, y     int32
	w, h     int32
	z        int
	owner    int
	flags    WindowFlags
	pixels   Pixels
	bg       uint32
	title    string
	terminal terminalState
}

// ID, Owner, X, Y, W, H, Z, Visible, Protected expose the record's fields
// read-only to callers outside the package (tests, internal/kernel's
// render-property checks).
func (win *Window) ID() int32        { return win.id }
func (win *Window) Owner() int       { return win.owner }
func (win *Window) X() int32         { return win.x }
func (win *Window) Y() int32         { return win.y }
func (win *Window) W() int32         { return win.w }
func (win *Window) H() int32         { return win.h }
func (win *Window) Z() int           { return win.z }
func (win *Window) Visible() bool    { return win.flags.Visible }
func (win *Window) Protected() bool  { return win.flags.Protected }

// FlagsWord returns the window's packed WindowFlags word, for logging.
func (win *Window) FlagsWord() uint64 { return win.flags.pack() }
func (win *Window) PixelAt(x, y int32) uint32 {
	if x < 0 || y < 0 || x >= win.w || y >= win.h {
		return 0
	}
	return win.pixels[y*win.w+x]
}

// Compositor is the fixed-capacity window table plus global mouse/drag
// state (spec §4.L: "Mouse position and active-drag state are process-
// wide variables").
type Compositor struct {
	heap  PixelHeap
	gpu   GPUFlusher
	font  GlyphSource
	gate  pmm.Gate
	theme ColorScheme

	fb Framebuffer

	windows [MaxWindows]Window
	count   int
	nextID  int32

	mouseX, mouseY int32
	dragging       bool
	dragWin        int32 // index into windows, valid iff dragging
	dragOffX       int32
	dragOffY       int32
}

// New constructs a Compositor over a framebuffer of the given extent.
// gate, if nil, defaults to a plain mutex (see pmm.Gate); real boot wiring
// (internal/kernel) supplies an IRQ-masking Gate per spec §5: "Compositor
// state and heap: mutated under IRQ-masked sections only."
func New(heap PixelHeap, gpu GPUFlusher, font GlyphSource, gate pmm.Gate, fbWidth, fbHeight int32) *Compositor {
	if gate == nil {
		gate = pmm.NewMutexGate()
	}
	c := &Compositor{
		heap:   heap,
		gpu:    gpu,
		font:   font,
		gate:   gate,
		theme:  DefaultTheme,
		nextID: 1,
	}
	c.fb = newFramebuffer(fbWidth, fbHeight)
	c.mouseX = fbWidth / 2
	c.mouseY = fbHeight / 2
	return c
}

// Framebuffer returns the compositor's backing framebuffer, read-only,
// for tests and for the final blit target.
func (c *Compositor) Framebuffer() *Framebuffer { return &c.fb }

func (c *Compositor) locked(fn func()) {
	c.gate.Lock()
	defer c.gate.Unlock()
	fn()
}

// CreateWindow allocates a backbuffer and a window record (spec §4.L
// create): "under IRQ-masked critical section, allocate a pixel buffer
// from the kernel heap, fill the window record, assign an identifier,
// clear the buffer to background color, and return the identifier."
func (c *Compositor) CreateWindow(ownerPID int, x, y, w, h int32, title string) (id int32, ok bool) {
	c.locked(func() {
		if c.count >= MaxWindows || w <= 0 || h <= 0 {
			return
		}
		px, got := c.heap.AllocPixels(int(w) * int(h))
		if !got {
			return
		}
		bg := c.theme.Background
		for i := range px {
			px[i] = bg
		}

		win := &c.windows[c.count]
		*win = Window{
			id:     c.nextID,
			x:      x,
			y:      y,
			w:      w,
			h:      h,
			z:      c.count,
			owner:  ownerPID,
			pixels: px,
			bg:     bg,
			title:  title,
		}
		win.flags.Visible = true
		win.flags.Protected = ownerPID == MainShellPID
		win.terminal.fg = c.theme.Text
		id = win.id
		c.nextID++
		c.count++
		ok = true
	})
	return id, ok
}

// indexByID returns the slot index of the window with the given id.
func (c *Compositor) indexByID(id int32) (int, bool) {
	for i := 0; i < c.count; i++ {
		if c.windows[i].id == id {
			return i, true
		}
	}
	return 0, false
}

// Destroy frees a window's buffer and removes its record (spec §4.L
// destroy), compacting the table so Count()/iteration never sees a hole.
func (c *Compositor) Destroy(id int32) {
	c.locked(func() {
		idx, ok := c.indexByID(id)
		if !ok {
			return
		}
		c.heap.FreePixels(c.windows[idx].pixels)
		last := c.count - 1
		c.windows[idx] = c.windows[last]
		c.windows[last] = Window{}
		c.count--
	})
}

// CallerWindow returns the first window owned by pid (spec §4.I: routes
// fd=1/2 writes to "the caller's window if one exists").
func (c *Compositor) CallerWindow(pid int) (int32, bool) {
	for i := 0; i < c.count; i++ {
		if c.windows[i].owner == pid {
			return c.windows[i].id, true
		}
	}
	return 0, false
}

// FocusPID returns the owner of the topmost visible window, the
// compositor's answer to "which process currently holds input focus"
// (spec §4.I read: "blocking... if the process holds input focus";
// spec's own source notes a "compositor_get_focus_pid" query this
// mirrors). ok is false with no visible windows at all.
func (c *Compositor) FocusPID() (pid int, ok bool) {
	top := -1
	idx := -1
	c.locked(func() {
		for i := 0; i < c.count; i++ {
			if c.windows[i].flags.Visible && c.windows[i].z > top {
				top = c.windows[i].z
				idx = i
			}
		}
	})
	if idx < 0 {
		return 0, false
	}
	return c.windows[idx].owner, true
}

// Move sets a window's new origin (spec §4.L move).
func (c *Compositor) Move(id int32, x, y int32) {
	c.locked(func() {
		if idx, ok := c.indexByID(id); ok {
			c.windows[idx].x = x
			c.windows[idx].y = y
		}
	})
}

// checkOwnership is the permission rule §4.I names for draw_rect/
// window_draw: "caller_pid == owner_pid or caller_pid == 1".
func checkOwnership(callerPID, ownerPID int) bool {
	return callerPID == ownerPID || callerPID == InitPID
}

// WindowDraw fills a rectangle in the named window, subject to the
// ownership check (spec §4.I syscall 211, §4.L draw_rect). A permission
// failure is silent: it logs nothing here (internal/kernel's caller does,
// per spec §7 "Silent" taxonomy) and simply returns false.
func (c *Compositor) WindowDraw(callerPID int, winID int32, x, y, w, h int32, color uint32) bool {
	ok := false
	c.locked(func() {
		idx, found := c.indexByID(winID)
		if !found || !checkOwnership(callerPID, c.windows[idx].owner) {
			return
		}
		fillRect(c.windows[idx].pixels, c.windows[idx].w, c.windows[idx].h, x, y, w, h, color)
		ok = true
	})
	return ok
}

// DrawFramebuffer fills a rectangle directly in the framebuffer, used
// when the caller has no window (spec §4.I syscall 200 "init splash
// case").
func (c *Compositor) DrawFramebuffer(x, y, w, h int32, color uint32) {
	c.locked(func() {
		fillRect(c.fb.Pix, c.fb.Width, c.fb.Height, x, y, w, h, color)
	})
}

// fillRect clips [x, x+w) x [y, y+h) against [0, bufW) x [0, bufH) and
// fills the intersection with color.
func fillRect(buf []uint32, bufW, bufH, x, y, w, h int32, color uint32) {
	x0, y0 := max32(x, 0), max32(y, 0)
	x1, y1 := min32(x+w, bufW), min32(y+h, bufH)
	for py := y0; py < y1; py++ {
		row := py * bufW
		for px := x0; px < x1; px++ {
			buf[row+px] = color
		}
	}
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// Flush requests re-rendering (spec §4.I syscall 201). This core has no
// separate dirty-rectangle/vsync scheduler to defer to, so Flush and
// Render (syscall 212, "force immediate re-render") converge on the same
// render pass; the two syscalls are kept distinct at the dispatcher layer
// for ABI fidelity even though their effect here is identical.
func (c *Compositor) Flush() { c.Render() }

// Render composites every visible window onto the framebuffer and flushes
// it to the display (spec §4.L render).
func (c *Compositor) Render() {
	c.locked(func() {
		c.renderLocked()
	})
}

func (c *Compositor) renderLocked() {
	paintGradient(&c.fb, c.theme)

	order := c.visibleByZAscending()
	for _, idx := range order {
		win := &c.windows[idx]
		paintDecorations(&c.fb, win, c.theme)
		blendWindow(&c.fb, win)
	}

	paintCursor(&c.fb, c.mouseX, c.mouseY, c.theme.Text)

	if c.gpu != nil {
		c.gpu.Flush(0, 0, uint32(c.fb.Width), uint32(c.fb.Height))
	}
}

// visibleByZAscending returns the indices of visible windows sorted by z
// ascending (spec §4.L render step ii), via a simple insertion sort (the
// window count is small and fixed-capacity, so this need not be
// asymptotically clever).
func (c *Compositor) visibleByZAscending() []int {
	idxs := make([]int, 0, c.count)
	for i := 0; i < c.count; i++ {
		if c.windows[i].flags.Visible {
			idxs = append(idxs, i)
		}
	}
	for i := 1; i < len(idxs); i++ {
		j := i
		for j > 0 && c.windows[idxs[j-1]].z > c.windows[idxs[j]].z {
			idxs[j-1], idxs[j] = idxs[j], idxs[j-1]
			j--
		}
	}
	return idxs
}

// topmostZ returns the highest z currently assigned, or -1 if there are no
// windows.
func (c *Compositor) topmostZ() int {
	top := -1
	for i := 0; i < c.count; i++ {
		if c.windows[i].z > top {
			top = c.windows[i].z
		}
	}
	return top
}

// UpdateMouse implements the input driver's Mouse interface (spec §4.L
// update_mouse): moves a dragged window to follow the cursor, then clamps
// the cursor to the framebuffer extent.
func (c *Compositor) UpdateMouse(dx, dy int32, absolute bool) {
	c.locked(func() {
		if absolute {
			c.mouseX, c.mouseY = dx, dy
		} else {
			c.mouseX += dx
			c.mouseY += dy
		}

		if c.dragging {
			win := &c.windows[c.dragWin]
			win.x = c.mouseX - c.dragOffX
			// The title bar occupies [win.y-TitleBarHeight, win.y), so
			// win.y must not drop below TitleBarHeight or the bar goes
			// off-screen above the framebuffer's top edge.
			win.y = clamp32(c.mouseY-c.dragOffY, TitleBarHeight, c.fb.Height-TitleBarHeight)
		}
		c.mouseX = clamp32(c.mouseX, 0, c.fb.Width-1)
		c.mouseY = clamp32(c.mouseY, 0, c.fb.Height-1)
	})
}

func clamp32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// windowHitTest returns the index of the topmost visible window (title
// bar included) containing (px, py), searching from the highest z down.
func (c *Compositor) windowHitTest(px, py int32) (int, bool) {
	best := -1
	bestZ := -1
	for i := 0; i < c.count; i++ {
		win := &c.windows[i]
		if !win.flags.Visible {
			continue
		}
		if px >= win.x && px < win.x+win.w && py >= win.y-TitleBarHeight && py < win.y+win.h {
			if win.z > bestZ {
				best, bestZ = i, win.z
			}
		}
	}
	return best, best >= 0
}

func closeBoxRect(win *Window) (x0, y0, x1, y1 int32) {
	x1 = win.x + win.w - CloseBoxInset
	x0 = x1 - CloseBoxSize
	y0 = win.y - TitleBarHeight + CloseBoxInset
	y1 = y0 + CloseBoxSize
	return
}

// HandleClick implements the input driver's Clicker interface (spec §4.L
// handle_click): on release, clears drag state; on press, raises and
// possibly closes or starts dragging the topmost window under the cursor.
func (c *Compositor) HandleClick(pressed bool) {
	shouldRender := false
	c.locked(func() {
		if !pressed {
			c.dragging = false
			shouldRender = true
			return
		}

		idx, found := c.windowHitTest(c.mouseX, c.mouseY)
		if !found {
			return
		}
		win := &c.windows[idx]
		win.z = c.topmostZ() + 1

		cx0, cy0, cx1, cy1 := closeBoxRect(win)
		inClose := c.mouseX >= cx0 && c.mouseX < cx1 && c.mouseY >= cy0 && c.mouseY < cy1
		inTitleBar := c.mouseY >= win.y-TitleBarHeight && c.mouseY < win.y

		switch {
		case inClose && !win.flags.Protected:
			c.heap.FreePixels(win.pixels)
			last := c.count - 1
			c.windows[idx] = c.windows[last]
			c.windows[last] = Window{}
			c.count--
		case inTitleBar:
			c.dragging = true
			c.dragWin = int32(idx)
			c.dragOffX = c.mouseX - win.x
			c.dragOffY = c.mouseY - win.y
		}
		shouldRender = true
	})
	if shouldRender {
		c.Render()
	}
}

// WriteTerminal interprets data as a tiny terminal stream into the named
// window (spec §4.L write).
func (c *Compositor) WriteTerminal(winID int32, data []byte) {
	c.locked(func() {
		idx, ok := c.indexByID(winID)
		if !ok {
			return
		}
		win := &c.windows[idx]
		for _, b := range data {
			c.feedTerminal(win, b)
		}
	})
}
