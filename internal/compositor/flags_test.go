package compositor

import "testing"

func TestWindowFlagsPackRoundTrips(t *testing.T) {
	cases := []WindowFlags{
		{Visible: true, Protected: false, Dragging: true},
		{Visible: false, Protected: true, Dragging: false},
		{},
	}
	for _, want := range cases {
		packed := want.pack()
		var got WindowFlags
		got.unpack(packed)
		if got.Visible != want.Visible || got.Protected != want.Protected || got.Dragging != want.Dragging {
			t.Fatalf("round trip of %+v through pack/unpack gave %+v", want, got)
		}
	}
}

func TestFlagsWordReflectsWindowState(t *testing.T) {
	c, _ := newTestCompositor(800, 600)
	id, _ := c.CreateWindow(MainShellPID, 0, 0, 10, 10, "w")
	idx, _ := c.indexByID(id)
	win := &c.windows[idx]

	var got WindowFlags
	got.unpack(win.FlagsWord())
	if !got.Visible || !got.Protected {
		t.Fatalf("FlagsWord for a visible protected window decoded to %+v", got)
	}
}
