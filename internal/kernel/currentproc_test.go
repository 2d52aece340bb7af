package kernel

import "testing"

import "vela/internal/proc"

func TestCurrentProcAdapterReturnsCurrentPID(t *testing.T) {
	table := proc.New()
	if _, ok := table.Create("init"); !ok {
		t.Fatal("Create failed")
	}
	if _, ok := table.Create("second"); !ok {
		t.Fatal("Create failed")
	}

	adapter := newCurrentProcAdapter(table)
	if pid := adapter.CurrentPID(); pid != 1 {
		t.Fatalf("CurrentPID() = %d, want 1", pid)
	}
}

func TestCurrentProcAdapterZeroOnEmptyTable(t *testing.T) {
	adapter := newCurrentProcAdapter(proc.New())
	if pid := adapter.CurrentPID(); pid != 0 {
		t.Fatalf("CurrentPID() = %d, want 0 on an empty table", pid)
	}
}
