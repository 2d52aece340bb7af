// Package proc is the process table and round-robin scheduler (spec
// §4.G).
//
// Grounded on the teacher's gic_qemu.go handler-table idiom (a fixed-
// capacity array indexed by a small integer, looked up rather than
// linked) generalized from interrupt lines to process slots, and on spec
// §4.G's own step-numbered schedule() algorithm, which this package
// follows exactly rather than inventing an alternative policy (no
// priority or fair-share scheduling per spec §1 non-goals).
package proc

import "vela/internal/trap"

// State is a process's lifecycle state (spec §3 "Process", generalized per
// the "process-parking as exit" design note into an explicit variant
// including Exited, so the scheduler can skip reaped-in-spirit slots even
// though nothing frees them yet).
type State int

const (
	Created State = iota
	Runnable
	Running
	Zombie
	Exited
)

// MaxProcesses is the fixed process-table capacity (spec §4.G: "a fixed-
// capacity array of process slots").
const MaxProcesses = 64

// Process is one process-table slot (spec §3 "Process").
type Process struct {
	ID         int // 1-based, stable for the process's lifetime
	Name       string
	PageTable  uintptr // physical address of the top-level translation table
	KernelSP   uintptr // kernel stack address (one frame)
	Frame      *trap.Frame
	EntryPoint uint64
	UserSP     uint64
	State      State
	ExitStatus int

	InUse bool
}

// Table is the fixed-capacity process pool plus round-robin scheduling
// state (spec §4.G).
type Table struct {
	slots   [MaxProcesses]Process
	count   int // populated prefix length
	current int // index into slots[:count] of the running process
}

// New returns an empty process table.
func New() *Table {
	return &Table{}
}

// Create reserves the next free slot and returns it for the caller
// (internal/kernel, via internal/vmm and internal/pmm) to populate with a
// fresh address space, kernel stack, and register frame. ok is false if
// the table is full.
func (t *Table) Create(name string) (*Process, bool) {
	if t.count >= MaxProcesses {
		return nil, false
	}
	idx := t.count
	t.count++
	p := &t.slots[idx]
	*p = Process{ID: idx + 1, Name: name, State: Created, InUse: true}
	return p, true
}

// Count returns the number of populated slots.
func (t *Table) Count() int { return t.count }

// ByID returns the process with the given 1-based identifier.
func (t *Table) ByID(id int) (*Process, bool) {
	if id < 1 || id > t.count {
		return nil, false
	}
	return &t.slots[id-1], true
}

// Current returns the process currently installed as running.
func (t *Table) Current() *Process {
	if t.count == 0 {
		return nil
	}
	return &t.slots[t.current]
}

// CurrentFrame returns the saved register frame of the currently installed
// process, or nil if the table is empty. arch/arm64's vector epilogue reads
// this after Schedule/TimerTick runs (rather than trusting its own return
// value directly) so a process switch that happened inside the handler is
// always reflected in what gets restored.
func (t *Table) CurrentFrame() *trap.Frame {
	p := t.Current()
	if p == nil {
		return nil
	}
	return p.Frame
}

// setCurrentIndex installs idx (into the populated prefix) as the running
// process. Used once by the "start first process" path (spec §4.G);
// Schedule owns every subsequent transition.
func (t *Table) setCurrentIndex(idx int) {
	t.current = idx
	t.slots[idx].State = Running
}

// indexOf returns p's slot index.
func (t *Table) indexOf(p *Process) int { return p.ID - 1 }

// SetExited parks p permanently with the given exit status (spec §4.I
// exit, the "process-parking as exit" design note: this kernel never
// reclaims a process's slot, it only ever stops scheduling it). Once
// State is Exited, Scheduler.Schedule's round-robin advance skips this
// slot forever.
func (p *Process) SetExited(status int32) {
	p.State = Exited
	p.ExitStatus = int(status)
}
