package kernel

// blankFont is a internal/compositor.GlyphSource that covers no
// characters. The bitmap font table itself is explicitly out of scope
// (spec §1 non-goals); wiring a real one in is future work for whoever
// supplies glyph bitmaps, not something this boot sequence can invent.
// For every character the compositor's terminal emulator draws through
// this, drawGlyph paints nothing, so the character's cell stays blank.
type blankFont struct{}

// Glyph implements internal/compositor.GlyphSource.
func (blankFont) Glyph(ch byte) (bitmap []byte, w, h int, ok bool) {
	return nil, 0, 0, false
}
