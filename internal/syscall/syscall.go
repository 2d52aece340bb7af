// Package syscall is the supervisor-call dispatcher (spec §4.I): it reads
// the syscall number and arguments out of the trapped register frame,
// looks the number up in a small fixed table, and writes the return value
// back into the frame.
//
// Grounded on the teacher's src/go/mazarin/exceptions.go EC_SVC_EL0_A64
// branch (decode the immediate/ESR, dispatch) generalized from a single
// debug-print stub into the full spec §4.I syscall table, and on the
// "function-pointer dispatch" design note (a sum type over known syscall
// numbers dispatched by a small matching construct, mirrored here as a
// map/switch over Number rather than the teacher's raw array-of-closures,
// since the syscall table is small, fixed, and never registered at
// runtime unlike the GIC's per-line handlers).
package syscall

import "vela/internal/trap"

// Number identifies one syscall (spec §4.I table).
type Number uint64

const (
	Read             Number = 63
	Write            Number = 64
	Exit             Number = 93
	GetTime          Number = 169
	GetPID           Number = 172
	Draw             Number = 200
	Flush            Number = 201
	CreateWindow     Number = 210
	WindowDraw       Number = 211
	CompositorRender Number = 212
)

// errUnknown/errPermission are the recoverable/silent sentinel returns
// spec §7 specifies: "negative return code... Unknown syscall numbers
// return a negative sentinel."
const (
	errUnknown    = ^uint64(0)     // -1
	errOutOfMemory = ^uint64(0)    // -1, same sentinel per spec §7
	errPermission = ^uint64(0)     // -1; permission failures are silent+no-op, not a distinct code
)

// Clock supplies the monotonic tick count for GetTime (spec §4.I).
type Clock interface {
	Jiffies() uint64
}

// CurrentProcess supplies the calling process's identifier and whether it
// is the exempt init process (pid 1), used for the ownership rule on
// CreateWindow/WindowDraw/Draw (spec §4.I: "the init process, identifier
// 1, is exempt").
type CurrentProcess interface {
	CurrentPID() int
}

// Console is the fallback text sink for fd 1/2 writes when the caller has
// no window (spec §4.I write: "else to the console").
type Console interface {
	WriteConsole(data []byte)
}

// Keyboard is the blocking keyboard source for fd=0 reads (spec §4.I
// read: "blocking on a wait-for-event instruction if empty and the
// process holds input focus").
type Keyboard interface {
	TryReadByte() (b byte, ok bool)
	HasFocus(pid int) bool
	WaitForEvent()
}

// Exiter parks the calling process (spec §4.I exit: "does not return;
// process is parked").
type Exiter interface {
	Exit(pid int, status int32)
}

// WindowManager is the subset of internal/compositor this package drives
// (spec §4.I draw/flush/create_window/window_draw/compositor_render).
type WindowManager interface {
	// CallerWindow returns the window id owned by pid, if any, used to
	// route fd=1/2 writes and syscall 200's "no window" fallback.
	CallerWindow(pid int) (winID int32, ok bool)
	CreateWindow(ownerPID int, x, y, w, h int32, title string) (id int32, ok bool)
	WindowDraw(callerPID int, winID int32, x, y, w, h int32, color uint32) bool
	DrawFramebuffer(x, y, w, h int32, color uint32)
	Flush()
	Render()
	WriteTerminal(winID int32, data []byte)
}

// Memory lets the dispatcher read a user-supplied title-string buffer for
// CreateWindow, read a write(2) payload, and write the byte a read(2)
// consumes back into the caller's buffer. internal/kernel backs this with
// the identity-mapped physical-via-virtual view of the calling process's
// address space; tests back it with a plain byte slice.
type Memory interface {
	ReadCString(userVA uint64, max int) string
	ReadBytes(userVA uint64, n int) []byte
	WriteBytes(userVA uint64, data []byte)
}

// Dispatcher wires every syscall number to its backing subsystem.
type Dispatcher struct {
	Clock    Clock
	Proc     CurrentProcess
	Console  Console
	Keyboard Keyboard
	Exiter   Exiter
	Windows  WindowManager
	Mem      Memory
}

// Dispatch decodes and executes one syscall from frame, writing the
// return value into x0 (spec §4.I).
func (d *Dispatcher) Dispatch(frame *trap.Frame) {
	num := Number(frame.SyscallNumber())
	pid := d.Proc.CurrentPID()

	switch num {
	case Read:
		frame.SetReturn(d.doRead(pid, frame.Arg(0), frame.Arg(1), frame.Arg(2)))
	case Write:
		frame.SetReturn(d.doWrite(pid, frame.Arg(0), frame.Arg(1), frame.Arg(2)))
	case Exit:
		d.Exiter.Exit(pid, int32(frame.Arg(0)))
	case GetTime:
		frame.SetReturn(d.Clock.Jiffies())
	case GetPID:
		frame.SetReturn(uint64(pid))
	case Draw:
		x, y, w, h, color := int32(frame.Arg(0)), int32(frame.Arg(1)), int32(frame.Arg(2)), int32(frame.Arg(3)), uint32(frame.Arg(4))
		if winID, ok := d.Windows.CallerWindow(pid); ok {
			d.Windows.WindowDraw(pid, winID, x, y, w, h, color)
		} else {
			d.Windows.DrawFramebuffer(x, y, w, h, color)
		}
		frame.SetReturn(0)
	case Flush:
		d.Windows.Flush()
		frame.SetReturn(0)
	case CreateWindow:
		title := ""
		if d.Mem != nil {
			title = d.Mem.ReadCString(frame.Arg(4), 64)
		}
		id, ok := d.Windows.CreateWindow(pid, int32(frame.Arg(0)), int32(frame.Arg(1)), int32(frame.Arg(2)), int32(frame.Arg(3)), title)
		if !ok {
			frame.SetReturn(errOutOfMemory)
			return
		}
		frame.SetReturn(uint64(uint32(id)))
	case WindowDraw:
		ok := d.Windows.WindowDraw(pid, int32(frame.Arg(0)), int32(frame.Arg(1)), int32(frame.Arg(2)), int32(frame.Arg(3)), int32(frame.Arg(4)), uint32(frame.Arg(5)))
		if !ok {
			frame.SetReturn(errPermission)
			return
		}
		frame.SetReturn(0)
	case CompositorRender:
		d.Windows.Render()
		frame.SetReturn(0)
	default:
		frame.SetReturn(errUnknown)
	}
}

// doRead implements syscall 63 (spec §4.I): only fd=0 is honored, reading
// one character from the keyboard buffer, blocking on a wait-for-event
// instruction if empty and the caller holds input focus.
func (d *Dispatcher) doRead(pid int, fd uint64, bufVA uint64, count uint64) uint64 {
	if fd != 0 || count == 0 {
		return 0
	}
	if !d.Keyboard.HasFocus(pid) {
		return 0
	}
	for {
		if b, ok := d.Keyboard.TryReadByte(); ok {
			if d.Mem != nil {
				d.Mem.WriteBytes(bufVA, []byte{b})
			}
			return 1
		}
		d.Keyboard.WaitForEvent()
	}
}

// doWrite implements syscall 64 (spec §4.I): fd 1/2 route to the
// caller's window if one exists, else to the console.
func (d *Dispatcher) doWrite(pid int, fd uint64, bufVA uint64, count uint64) uint64 {
	if fd != 1 && fd != 2 {
		return 0
	}
	var data []byte
	if d.Mem != nil {
		data = d.Mem.ReadBytes(bufVA, int(count))
	}
	if winID, ok := d.Windows.CallerWindow(pid); ok {
		d.Windows.WriteTerminal(winID, data)
	} else {
		d.Console.WriteConsole(data)
	}
	return count
}
