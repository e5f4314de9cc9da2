package cpu

// BreakFunc is called before the instruction at a breakpoint executes.
// Returning true stops the step with an ErrBreakpoint.
type BreakFunc func(cpu *Cpu, pc uint32) (stop bool)

// SetBreakpoint sets the breakpoint at an address.
func (cpu *Cpu) SetBreakpoint(pc uint32, fn BreakFunc) {
	cpu.breakpoints[pc] = fn
}

// ClearBreakpoint removes the breakpoint at an address.
func (cpu *Cpu) ClearBreakpoint(pc uint32) {
	delete(cpu.breakpoints, pc)
}
