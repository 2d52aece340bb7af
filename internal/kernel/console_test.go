package kernel

import "testing"

type fakeRawWriter struct {
	writes []string
}

func (f *fakeRawWriter) Raw(s string) {
	f.writes = append(f.writes, s)
}

func TestConsoleSinkWritesDataAsString(t *testing.T) {
	w := &fakeRawWriter{}
	sink := newConsoleSink(w)

	sink.WriteConsole([]byte("hello"))

	if len(w.writes) != 1 || w.writes[0] != "hello" {
		t.Fatalf("got %v, want a single \"hello\" write", w.writes)
	}
}

func TestConsoleSinkEmptyWrite(t *testing.T) {
	w := &fakeRawWriter{}
	sink := newConsoleSink(w)

	sink.WriteConsole(nil)

	if len(w.writes) != 1 || w.writes[0] != "" {
		t.Fatalf("got %v, want a single empty write", w.writes)
	}
}
