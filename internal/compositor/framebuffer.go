package compositor

// Framebuffer is the global ARGB8888 surface the compositor composites
// onto and the GPU driver's Flush ultimately ships to the display (spec
// §6 "Pixel format").
type Framebuffer struct {
	Width, Height int32
	Pix           []uint32
}

func newFramebuffer(w, h int32) Framebuffer {
	return Framebuffer{Width: w, Height: h, Pix: make([]uint32, int(w)*int(h))}
}

// At returns the pixel at (x, y), or 0 if out of bounds.
func (fb *Framebuffer) At(x, y int32) uint32 {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return 0
	}
	return fb.Pix[y*fb.Width+x]
}

func (fb *Framebuffer) set(x, y int32, v uint32) {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return
	}
	fb.Pix[y*fb.Width+x] = v
}

// paintGradient fills the framebuffer with a vertical gradient as the
// desktop background (spec §4.L render step i).
func paintGradient(fb *Framebuffer, theme ColorScheme) {
	top := unpackARGB(theme.GradientTop)
	bot := unpackARGB(theme.GradientBot)
	for y := int32(0); y < fb.Height; y++ {
		t := y
		denom := fb.Height - 1
		if denom <= 0 {
			denom = 1
		}
		row := lerpARGB(top, bot, t, denom)
		for x := int32(0); x < fb.Width; x++ {
			fb.Pix[y*fb.Width+x] = row
		}
	}
}

type argb struct{ a, r, g, b uint32 }

func unpackARGB(c uint32) argb {
	return argb{a: c >> 24 & 0xFF, r: c >> 16 & 0xFF, g: c >> 8 & 0xFF, b: c & 0xFF}
}

func packARGB(c argb) uint32 {
	return c.a<<24 | c.r<<16 | c.g<<8 | c.b
}

func lerpARGB(a, b argb, t, denom int32) uint32 {
	mix := func(x, y uint32) uint32 {
		return uint32(int32(x) + (int32(y)-int32(x))*t/denom)
	}
	return packARGB(argb{a: mix(a.a, b.a), r: mix(a.r, b.r), g: mix(a.g, b.g), b: mix(a.b, b.b)})
}

// blendWindow alpha-blends win's pixel buffer onto fb at win's origin
// (spec §4.L render step ii: "alpha-blend its pixel buffer onto the
// framebuffer pixel-by-pixel").
func blendWindow(fb *Framebuffer, win *Window) {
	for y := int32(0); y < win.h; y++ {
		fy := win.y + y
		if fy < 0 || fy >= fb.Height {
			continue
		}
		for x := int32(0); x < win.w; x++ {
			fx := win.x + x
			if fx < 0 || fx >= fb.Width {
				continue
			}
			src := unpackARGB(win.pixels[y*win.w+x])
			if src.a == 0 {
				continue
			}
			if src.a == 0xFF {
				fb.set(fx, fy, win.pixels[y*win.w+x])
				continue
			}
			dst := unpackARGB(fb.At(fx, fy))
			alpha := src.a
			blend := func(s, d uint32) uint32 {
				return (s*alpha + d*(255-alpha)) / 255
			}
			fb.set(fx, fy, packARGB(argb{a: 0xFF, r: blend(src.r, dst.r), g: blend(src.g, dst.g), b: blend(src.b, dst.b)}))
		}
	}
}

// paintDecorations draws a window's title bar, border, and close box
// (spec §4.L render step ii: "draw its decorations... and border, close
// box if not protected"). The title bar is a solid theme.TitleBar strip;
// no title text is drawn on it.
func paintDecorations(fb *Framebuffer, win *Window, theme ColorScheme) {
	// Title bar strip above the client area (spec §6 geometry).
	for y := win.y - TitleBarHeight; y < win.y; y++ {
		for x := win.x; x < win.x+win.w; x++ {
			fb.set(x, y, theme.TitleBar)
		}
	}
	// Border: one-pixel frame around the title bar + client area.
	top, bottom := win.y-TitleBarHeight, win.y+win.h
	left, right := win.x, win.x+win.w
	for x := left; x < right; x++ {
		fb.set(x, top, theme.Border)
		fb.set(x, bottom-1, theme.Border)
	}
	for y := top; y < bottom; y++ {
		fb.set(left, y, theme.Border)
		fb.set(right-1, y, theme.Border)
	}
	if !win.flags.Protected {
		cx0, cy0, cx1, cy1 := closeBoxRect(win)
		for y := cy0; y < cy1; y++ {
			for x := cx0; x < cx1; x++ {
				fb.set(x, y, theme.CloseBox)
			}
		}
	}
}

// paintCursor draws the mouse cursor glyph at (x, y) (spec §4.L render
// step iii): a filled right triangle with 6-pixel legs, its right-angle
// corner at (x, y), each row one pixel shorter than the row above.
func paintCursor(fb *Framebuffer, x, y int32, color uint32) {
	const size = 6
	for dy := int32(0); dy < size; dy++ {
		for dx := int32(0); dx < size-dy; dx++ {
			fb.set(x+dx, y+dy, color)
		}
	}
}
