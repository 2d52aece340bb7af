package kernel

import (
	"testing"

	"vela/internal/proc"
)

type fakeSwitcher struct {
	switches []uintptr
}

func (f *fakeSwitcher) SwitchAddressSpace(root uintptr) {
	f.switches = append(f.switches, root)
}

func TestExiterParksProcessAndReschedules(t *testing.T) {
	table := proc.New()
	a, _ := table.Create("a")
	b, _ := table.Create("b")
	a.State = proc.Running
	b.State = proc.Runnable

	sw := &fakeSwitcher{}
	sched := proc.NewScheduler(table, sw)
	sched.StartFirst(a)

	e := newExiter(table, sched)
	e.Exit(a.ID, 7)

	if a.State != proc.Exited {
		t.Fatalf("State = %v, want Exited", a.State)
	}
	if a.ExitStatus != 7 {
		t.Fatalf("ExitStatus = %d, want 7", a.ExitStatus)
	}
	if len(sw.switches) == 0 {
		t.Fatal("expected Exit to drive a reschedule")
	}
}

func TestExiterUnknownPIDIsNoop(t *testing.T) {
	table := proc.New()
	table.Create("a")
	sched := proc.NewScheduler(table, &fakeSwitcher{})

	e := newExiter(table, sched)
	e.Exit(99, -1) // must not panic
}
