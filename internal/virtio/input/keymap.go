package input

// Linux evdev keycodes for the small set of keys this kernel's console
// needs: letters, digits, common punctuation, and the three modifiers
// (spec §4.K: "a scancode-to-ASCII translator with modifier state (shift,
// ctrl, caps-lock)").
const (
	keyLeftShift  = 42
	keyRightShift = 54
	keyLeftCtrl   = 29
	keyRightCtrl  = 97
	keyCapsLock   = 58

	keyEnter     = 28
	keyBackspace = 14
	keySpace     = 57
	keyTab       = 15
	keyEsc       = 1
)

// lower/upper give the unshifted and shifted ASCII for every keycode this
// kernel recognizes, indexed directly by keycode (evdev/PC-Set-1 numbering
// happen to coincide for this range). Index 0 is unused; unrecognized or
// modifier codes map to 0 and are dropped by translate.
var lower = buildRow(
	"\x00" + // 0 unused
		"\x00" + // 1 ESC
		"1234567890" + // 2-11
		"-=" + // 12-13
		"\b" + // 14 backspace
		"\t" + // 15 tab
		"qwertyuiop" + // 16-25
		"[]" + // 26-27
		"\n" + // 28 enter
		"\x00" + // 29 left ctrl
		"asdfghjkl" + // 30-38
		";'`" + // 39-41
		"\x00" + // 42 left shift
		"\\" + // 43
		"zxcvbnm" + // 44-50
		",./" + // 51-53
		"\x00" + // 54 right shift
		"*" + // 55 (keypad)
		"\x00" + // 56 left alt
		" " + // 57 space
		"\x00", // 58 caps lock
)

var upper = buildRow(
	"\x00" +
		"\x00" +
		"!@#$%^&*()" +
		"_+" +
		"\b" +
		"\t" +
		"QWERTYUIOP" +
		"{}" +
		"\n" +
		"\x00" +
		"ASDFGHJKL" +
		":\"~" +
		"\x00" +
		"|" +
		"ZXCVBNM" +
		"<>?" +
		"\x00" +
		"*" +
		"\x00" +
		" " +
		"\x00",
)

// buildRow packs a literal run of characters into a keycode-indexed table,
// so the translator can look a keycode up directly instead of a chain of
// if/switch comparisons.
func buildRow(chars string) [64]byte {
	var row [64]byte
	for i := 0; i < len(chars) && i < len(row); i++ {
		row[i] = chars[i]
	}
	return row
}

type modifierState struct {
	shift, ctrl, capsLock bool
}

// translate updates modifier state on a modifier key and returns the
// ASCII byte (and true) for a non-modifier key press; releases and
// unmapped codes return (0, false). Caps-lock only affects letters;
// shift affects the whole row per the table above (spec §4.L's terminal
// SGR handling is unrelated — this is the raw keystroke layer feeding the
// shared keyboard buffer read syscall 63 drains).
func (m *modifierState) translate(code uint16, pressed bool) (byte, bool) {
	switch code {
	case keyLeftShift, keyRightShift:
		m.shift = pressed
		return 0, false
	case keyLeftCtrl, keyRightCtrl:
		m.ctrl = pressed
		return 0, false
	case keyCapsLock:
		if pressed {
			m.capsLock = !m.capsLock
		}
		return 0, false
	}
	if !pressed {
		return 0, false
	}
	if code >= uint16(len(lower)) {
		return 0, false
	}

	shiftActive := m.shift
	if isLetter(lower[code]) && m.capsLock {
		shiftActive = !shiftActive
	}

	var b byte
	if shiftActive {
		b = upper[code]
	} else {
		b = lower[code]
	}
	if b == 0 {
		return 0, false
	}
	if m.ctrl && isLetter(b) {
		b = toCtrl(b)
	}
	return b, true
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// toCtrl maps a letter to its control-code (Ctrl-A = 0x01, ...), the
// standard terminal convention.
func toCtrl(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 1
	}
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 1
	}
	return b
}
