package kernel

// rawWriter is the narrow slice of *internal/console.Logger the write(2)
// fallback path needs (spec §4.I write: "else to the console").
type rawWriter interface {
	Raw(s string)
}

// consoleSink implements internal/syscall.Console over a rawWriter.
type consoleSink struct {
	w rawWriter
}

func newConsoleSink(w rawWriter) *consoleSink {
	return &consoleSink{w: w}
}

// WriteConsole implements internal/syscall.Console.
func (c *consoleSink) WriteConsole(data []byte) {
	c.w.Raw(string(data))
}
