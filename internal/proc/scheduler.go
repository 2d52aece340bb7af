package proc

import "vela/internal/trap"

// AddressSpaceSwitcher installs a new translation-table root and
// invalidates the TLB (spec §4.G step 3: "switch the translation-table
// base register...; broadcast a full TLB invalidate; instruction-
// synchronize"). hw_arm64.go backs this with the real TTBR0_EL1 write;
// tests back it with a recording fake.
type AddressSpaceSwitcher interface {
	SwitchAddressSpace(root uintptr)
}

// Scheduler drives round-robin preemption across a Table (spec §4.G).
type Scheduler struct {
	table *Table
	mmu   AddressSpaceSwitcher
}

// NewScheduler constructs a Scheduler over table, using mmu to switch
// address spaces on every selection.
func NewScheduler(table *Table, mmu AddressSpaceSwitcher) *Scheduler {
	return &Scheduler{table: table, mmu: mmu}
}

// Schedule is invoked from the timer interrupt handler (spec §4.G):
//  1. Update the current process's saved-frame pointer and mark it
//     runnable.
//  2. Advance the current index modulo the populated count, skipping any
//     Exited slot (the "process-parking as exit" design note: exited
//     processes are never selected again, though their slot is not
//     reclaimed).
//  3. Switch address space for the newly selected process, and TLB-
//     invalidate.
//  4. Return its saved-frame pointer, which arch/arm64's IRQ epilogue
//     restores from.
func (s *Scheduler) Schedule(currentFrame *trap.Frame) *trap.Frame {
	n := s.table.count
	if n == 0 {
		return currentFrame
	}

	cur := &s.table.slots[s.table.current]
	cur.Frame = currentFrame
	if cur.State == Running {
		cur.State = Runnable
	}

	next := s.table.current
	for i := 0; i < n; i++ {
		next = (next + 1) % n
		if s.table.slots[next].State != Exited {
			break
		}
	}
	s.table.current = next

	selected := &s.table.slots[next]
	selected.State = Running
	s.mmu.SwitchAddressSpace(selected.PageTable)

	return selected.Frame
}

// StartFirst installs p's address space and marks it running, for the
// distinct "start the first user process" path (spec §4.G: "a dedicated
// assembly primitive that loads the entry program counter, user stack
// pointer, and target exception level, then executes an exception
// return"). The assembly primitive itself lives in arch/arm64; this only
// prepares the scheduler-visible state the primitive reads from p.Frame.
func (s *Scheduler) StartFirst(p *Process) {
	idx := s.table.indexOf(p)
	s.table.setCurrentIndex(idx)
	s.mmu.SwitchAddressSpace(p.PageTable)
}
