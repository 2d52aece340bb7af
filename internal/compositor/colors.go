package compositor

// ANSI/XRGB8888 palette, carried over from the teacher's
// src/go/mazarin/colors.go Dracula-derived palette (the one color table
// in the whole retrieval pack's kernel code; nothing else in this repo's
// domain needed a palette until the compositor did). SGR 32 (green) is
// the one code the spec pins to a literal value (scenario (D): writing
// "\033[32mOK\033[0m\n" must render 0xFF00BB00 exactly), so AnsiGreen
// departs from the teacher's Dracula-derived shade to match it.
const (
	AnsiBlack   uint32 = 0xFF111111
	AnsiRed     uint32 = 0xFFFF9DA4
	AnsiGreen   uint32 = 0xFF00BB00
	AnsiYellow  uint32 = 0xFFFFEEAC
	AnsiBlue    uint32 = 0xFFBBDAFF
	AnsiMagenta uint32 = 0xFFEBBBFF
	AnsiCyan    uint32 = 0xFF99FFFF
	AnsiWhite   uint32 = 0xFFCCCCCC

	AnsiBrightBlack   uint32 = 0xFF333333
	AnsiBrightRed     uint32 = 0xFFFF7882
	AnsiBrightGreen   uint32 = 0xFFB8F171
	AnsiBrightYellow  uint32 = 0xFFFFE580
	AnsiBrightBlue    uint32 = 0xFF80BAFF
	AnsiBrightMagenta uint32 = 0xFFD778FF
	AnsiBrightCyan    uint32 = 0xFF78FFFF
	AnsiBrightWhite   uint32 = 0xFFFFFFFF

	midnightBlue uint32 = 0xFF191B70
)

// ColorScheme names the handful of semantic colors the compositor needs
// (teacher's own ColorScheme shape, trimmed to what chrome/terminal
// drawing uses).
type ColorScheme struct {
	Background  uint32
	Text        uint32
	TitleBar    uint32
	TitleText   uint32
	Border      uint32
	CloseBox    uint32
	GradientTop uint32
	GradientBot uint32
	Cursor      uint32
}

// DefaultTheme is the compositor's default color scheme.
var DefaultTheme = ColorScheme{
	Background:  midnightBlue,
	Text:        AnsiBrightGreen,
	TitleBar:    AnsiBrightBlack,
	TitleText:   AnsiWhite,
	Border:      AnsiBlack,
	CloseBox:    AnsiBrightRed,
	GradientTop: 0xFF1A1A2E,
	GradientBot: midnightBlue,
	Cursor:      AnsiBrightWhite,
}
