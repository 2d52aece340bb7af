package proc

import (
	"testing"

	"vela/internal/trap"
)

type recordingSwitcher struct {
	switches []uintptr
}

func (r *recordingSwitcher) SwitchAddressSpace(root uintptr) {
	r.switches = append(r.switches, root)
}

func makeTable(t *testing.T, n int) (*Table, []*Process) {
	t.Helper()
	table := New()
	procs := make([]*Process, 0, n)
	for i := 0; i < n; i++ {
		p, ok := table.Create("p")
		if !ok {
			t.Fatalf("Create failed at %d", i)
		}
		p.PageTable = uintptr(0x1000 * (i + 1))
		p.Frame = &trap.Frame{}
		procs = append(procs, p)
	}
	return table, procs
}

func TestScheduleRoundRobinsThroughPopulatedPrefix(t *testing.T) {
	table, procs := makeTable(t, 3)
	sw := &recordingSwitcher{}
	sched := NewScheduler(table, sw)
	sched.StartFirst(procs[0])

	var order []int
	for i := 0; i < 6; i++ {
		cur := table.Current()
		order = append(order, cur.ID)
		sched.Schedule(&trap.Frame{})
	}

	want := []int{1, 2, 3, 1, 2, 3}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("order[%d] = %d, want %d (full order %v)", i, order[i], id, order)
		}
	}
}

func TestScheduleSwitchesAddressSpaceOnEverySelection(t *testing.T) {
	table, procs := makeTable(t, 2)
	sw := &recordingSwitcher{}
	sched := NewScheduler(table, sw)
	sched.StartFirst(procs[0])

	sched.Schedule(&trap.Frame{})
	sched.Schedule(&trap.Frame{})

	if len(sw.switches) != 3 { // StartFirst + 2 Schedule calls
		t.Fatalf("expected 3 address-space switches, got %d: %v", len(sw.switches), sw.switches)
	}
	if sw.switches[1] != procs[1].PageTable {
		t.Fatalf("expected switch to process 2's page table")
	}
}

func TestScheduleSkipsExitedProcesses(t *testing.T) {
	table, procs := makeTable(t, 3)
	sw := &recordingSwitcher{}
	sched := NewScheduler(table, sw)
	sched.StartFirst(procs[0])
	procs[1].State = Exited

	sched.Schedule(&trap.Frame{})
	if table.Current().ID != 3 {
		t.Fatalf("expected exited process 2 to be skipped, landed on %d", table.Current().ID)
	}
}

func TestScheduleUpdatesSavedFrameOfPreviousProcess(t *testing.T) {
	table, procs := makeTable(t, 2)
	sw := &recordingSwitcher{}
	sched := NewScheduler(table, sw)
	sched.StartFirst(procs[0])

	f := &trap.Frame{X: [31]uint64{0: 42}}
	sched.Schedule(f)

	if procs[0].Frame != f {
		t.Fatalf("expected process 1's saved frame updated to the passed-in frame")
	}
	if procs[0].State != Runnable {
		t.Fatalf("expected process 1 marked runnable, got %v", procs[0].State)
	}
	if procs[1].State != Running {
		t.Fatalf("expected process 2 marked running, got %v", procs[1].State)
	}
}
