package kernel

import "vela/internal/proc"

// currentProcAdapter implements internal/syscall.CurrentProcess over
// *internal/proc.Table.
type currentProcAdapter struct {
	table *proc.Table
}

func newCurrentProcAdapter(table *proc.Table) *currentProcAdapter {
	return &currentProcAdapter{table: table}
}

// CurrentPID implements internal/syscall.CurrentProcess.
func (c *currentProcAdapter) CurrentPID() int {
	p := c.table.Current()
	if p == nil {
		return 0
	}
	return p.ID
}
