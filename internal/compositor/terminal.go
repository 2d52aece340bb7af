package compositor

// parserState is the escape-sequence parser's state (spec §4.L "State
// machine for the escape-sequence parser").
type parserState int

const (
	stateNormal parserState = iota
	stateEscape
	stateCSI
)

// maxParamBytes bounds the CSI parameter buffer (spec §4.L: "IN_CSI on
// parameter-buffer overflow -> NORMAL without dispatch").
const maxParamBytes = 16

const (
	charWidth  = 8
	charHeight = 16
)

// sgrPalette maps SGR color codes 30-37 (standard) and 90-97 (bright) to
// XRGB8888 values (spec §4.L: "foreground color selection for the
// standard 30-37 and bright 90-97 palettes").
var sgrPalette = map[int]uint32{
	30: AnsiBlack, 31: AnsiRed, 32: AnsiGreen, 33: AnsiYellow,
	34: AnsiBlue, 35: AnsiMagenta, 36: AnsiCyan, 37: AnsiWhite,
	90: AnsiBrightBlack, 91: AnsiBrightRed, 92: AnsiBrightGreen, 93: AnsiBrightYellow,
	94: AnsiBrightBlue, 95: AnsiBrightMagenta, 96: AnsiBrightCyan, 97: AnsiBrightWhite,
}

// rowsCols returns the window's terminal grid dimensions for the fixed
// charWidth x charHeight cell size.
func (win *Window) rowsCols() (rows, cols int32) {
	return win.h / charHeight, win.w / charWidth
}

// feedTerminal processes one byte of terminal input into win's terminal
// state (spec §4.L write): printable ASCII draws a glyph and advances the
// cursor; control characters move the cursor; ESC begins an escape
// sequence.
func (c *Compositor) feedTerminal(win *Window, b byte) {
	t := &win.terminal

	switch t.parser {
	case stateEscape:
		if b == '[' {
			t.parser = stateCSI
			t.params = t.params[:0]
		} else {
			t.parser = stateNormal
		}
		return
	case stateCSI:
		if b >= '0' && b <= '9' || b == ';' {
			if len(t.params) >= maxParamBytes {
				t.parser = stateNormal
				return
			}
			t.params = append(t.params, b)
			return
		}
		if b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' {
			c.dispatchCSI(win, b)
			t.params = t.params[:0]
			t.parser = stateNormal
			return
		}
		// Any other byte in IN_CSI: stay put, matching the spec's
		// transition table (only digit/semicolon/letter are named).
		return
	}

	switch b {
	case 0x1B: // ESC
		t.parser = stateEscape
	case '\n':
		t.cursorX = 0
		c.advanceLine(win)
	case '\r':
		t.cursorX = 0
	case 0x08, 0x7F: // backspace / DEL
		if t.cursorX > 0 {
			t.cursorX--
		}
	default:
		if b >= 0x20 && b < 0x7F {
			c.drawGlyph(win, b)
			t.cursorX++
			_, cols := win.rowsCols()
			if t.cursorX >= cols {
				t.cursorX = 0
				c.advanceLine(win)
			}
		}
	}
}

// drawGlyph paints ch at the current cursor cell using the window's
// current foreground color (spec §4.L: "Printable ASCII draws the glyph
// at cursor into the window's buffer with its current foreground color").
func (c *Compositor) drawGlyph(win *Window, ch byte) {
	if c.font == nil {
		return
	}
	bmp, gw, gh, ok := c.font.Glyph(ch)
	if !ok {
		return
	}
	t := &win.terminal
	originX := t.cursorX * charWidth
	originY := t.cursorY * charHeight
	stride := (gw + 7) / 8
	for row := 0; row < gh; row++ {
		for col := 0; col < gw; col++ {
			byteIdx := row*stride + col/8
			if byteIdx >= len(bmp) {
				continue
			}
			bit := bmp[byteIdx] & (0x80 >> uint(col%8))
			if bit == 0 {
				continue
			}
			win.setPixel(originX+int32(col), originY+int32(row), t.fg)
		}
	}
}

func (win *Window) setPixel(x, y int32, v uint32) {
	if x < 0 || y < 0 || x >= win.w || y >= win.h {
		return
	}
	win.pixels[y*win.w+x] = v
}

// advanceLine moves the cursor to the next row, scrolling the window's
// buffer up by one row when the cursor passes the last row (spec §4.L:
// "When cursor-y passes the last row, the buffer is scrolled up by one
// row via a block move and the last row cleared").
func (c *Compositor) advanceLine(win *Window) {
	t := &win.terminal
	rows, _ := win.rowsCols()
	t.cursorY++
	if t.cursorY < rows {
		return
	}
	t.cursorY = rows - 1
	rowPixels := int32(charHeight) * win.w
	copy(win.pixels, win.pixels[rowPixels:])
	lastRowStart := (rows - 1) * charHeight * win.w
	for i := lastRowStart; i < win.w*win.h; i++ {
		win.pixels[i] = win.bg
	}
}

// dispatchCSI handles one completed CSI sequence (spec §4.L: "final `m`
// dispatches to an SGR handler..., `J` clears the buffer and homes the
// cursor; `H` homes the cursor").
func (c *Compositor) dispatchCSI(win *Window, final byte) {
	t := &win.terminal
	switch final {
	case 'm':
		c.dispatchSGR(win, t.params)
	case 'J':
		for i := range win.pixels {
			win.pixels[i] = win.bg
		}
		t.cursorX, t.cursorY = 0, 0
	case 'H':
		t.cursorX, t.cursorY = 0, 0
	}
}

// dispatchSGR applies a (possibly semicolon-separated, possibly empty)
// list of SGR codes to win's terminal foreground color (spec §4.L: "reset
// to white on 0").
func (c *Compositor) dispatchSGR(win *Window, params []byte) {
	codes := parseSemicolonInts(params)
	if len(codes) == 0 {
		codes = []int{0}
	}
	for _, code := range codes {
		if code == 0 {
			win.terminal.fg = AnsiWhite
			continue
		}
		if color, ok := sgrPalette[code]; ok {
			win.terminal.fg = color
		}
	}
}

// parseSemicolonInts parses a CSI parameter buffer ("32;1" style) into its
// integer fields, treating an empty field as 0.
func parseSemicolonInts(params []byte) []int {
	if len(params) == 0 {
		return nil
	}
	var out []int
	cur := 0
	have := false
	for _, b := range params {
		if b == ';' {
			out = append(out, cur)
			cur = 0
			have = false
			continue
		}
		cur = cur*10 + int(b-'0')
		have = true
	}
	if have || len(out) == 0 {
		out = append(out, cur)
	}
	return out
}
