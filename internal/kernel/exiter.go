package kernel

import "vela/internal/proc"

// exiter implements internal/syscall.Exiter over internal/proc.
//
// Grounded on internal/proc.Scheduler.Schedule's own documented behavior:
// it only re-marks the outgoing process Runnable if its State is still
// Running, so parking a process as Exited before calling Schedule removes
// it from the round-robin rotation permanently, matching spec §4.G's
// "process-parking as exit" design note (processes are never reclaimed,
// only skipped). internal/proc is plain Go with no hardware build tag,
// so this file can import it directly and stay host-testable against a
// real *proc.Table/*proc.Scheduler pair.
type exiter struct {
	table *proc.Table
	sched *proc.Scheduler
}

func newExiter(table *proc.Table, sched *proc.Scheduler) *exiter {
	return &exiter{table: table, sched: sched}
}

// Exit implements internal/syscall.Exiter.
func (e *exiter) Exit(pid int, status int32) {
	p, ok := e.table.ByID(pid)
	if !ok {
		return
	}
	p.SetExited(status)
	e.sched.Schedule(nil)
}
