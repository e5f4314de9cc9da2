// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"fmt"
	"iter"
	"log"
	"maps"
	"strings"

	"github.com/ezrec/msp430/bus"
	"github.com/ezrec/msp430/clock"
	"github.com/ezrec/msp430/event"
)

const (
	EXEC_START      = uint32(0x0200) // Lowest executable address.
	RESET_VECTOR    = 15             // Non-maskable reset vector.
	NMI_VECTOR      = 14             // Non-maskable interrupt vector.
	VECTOR_COUNT    = 16             // Number of interrupt vectors.
	VECTOR_TOP      = uint32(0xfffe) // Address of the reset vector.
	TRACE_DEPTH     = 16             // Default trace depth.
	INTERRUPT_CYCLE = 6              // Cycles to enter an interrupt.
	RETI_CYCLE      = 5              // Cycles to return from an interrupt.
)

// Tickable is a peripheral polled by the CPU at times of its choosing.
type Tickable interface {
	// Tick is called when the cycle count reaches the last returned time.
	// It returns the next cycle count to be called at, or event.NEVER.
	Tick(cycles int64) (next int64)
}

// tickable is a registered Tickable and its next time.
type tickable struct {
	Tickable
	next int64
}

// Cpu is the simulation context of the MSP430 core.
type Cpu struct {
	Verbose bool         // Set to enable verbose logging.
	Bus     *bus.Bus     // Memory bus.
	Clock   *clock.Clock // Clock domains.

	Reg [REGISTER_COUNT]uint32 // Register file.

	Trace Trace // Recently executed program counters.

	cycles     int64
	cycleQueue *event.Queue // Events in MCLK cycles.
	vtimeQueue *event.Queue // Events in virtual time.

	tickables []*tickable
	nextTick  int64

	// Status register shadow state.
	interruptsEnabled bool
	cpuOff            bool
	mode              PowerMode

	// Interrupt controller.
	source            [VECTOR_COUNT]InterruptSource
	pending           uint16
	maxInterrupt      int
	servicedInterrupt int
	servicedSource    InterruptSource

	regRead  [REGISTER_COUNT][]RegisterFunc
	regWrite [REGISTER_COUNT][]RegisterFunc

	breakpoints map[uint32]BreakFunc
	breakResume bool

	unmapped [][2]uint32 // Address ranges with no memory behind them.
	hold     int64       // Instruction fetch is stalled until this cycle.

	resets []func()
}

// NewCpu creates a CPU on a bus, clocked by a clock.
func NewCpu(b *bus.Bus, clk *clock.Clock) (cpu *Cpu) {
	cpu = &Cpu{
		Bus:               b,
		Clock:             clk,
		Trace:             Trace{Limit: TRACE_DEPTH},
		cycleQueue:        event.NewQueue("cycles"),
		vtimeQueue:        event.NewQueue("vtime"),
		nextTick:          event.NEVER,
		maxInterrupt:      -1,
		servicedInterrupt: -1,
		breakpoints:       map[uint32]BreakFunc{},
	}

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_register_defines)
}

// Cycles returns the MCLK cycle count.
func (cpu *Cpu) Cycles() int64 {
	return cpu.cycles
}

// Millis returns the elapsed virtual milliseconds.
func (cpu *Cpu) Millis() float64 {
	return cpu.Clock.Millis(cpu.cycles)
}

// VirtualTime returns the current virtual time.
func (cpu *Cpu) VirtualTime() int64 {
	return cpu.Clock.Time(cpu.cycles)
}

// RegisterReset adds a function called on every reset, in registration
// order, after the core state is cleared.
func (cpu *Cpu) RegisterReset(fn func()) {
	cpu.resets = append(cpu.resets, fn)
}

// SetUnmapped marks the addresses [start, end) as having no memory.
// Fetching an instruction there is an ErrExecute.
func (cpu *Cpu) SetUnmapped(start, end uint32) {
	cpu.unmapped = append(cpu.unmapped, [2]uint32{start, end})
}

// Executable returns true if an instruction can be fetched at 'pc'.
func (cpu *Cpu) Executable(pc uint32) bool {
	if pc < EXEC_START || (pc&1) != 0 {
		return false
	}

	for _, r := range cpu.unmapped {
		if pc >= r[0] && pc < r[1] {
			return false
		}
	}

	return true
}

// Hold stalls instruction fetch and interrupt entry until the cycle
// count 'until'. Events keep firing.
func (cpu *Cpu) Hold(until int64) {
	cpu.hold = max(cpu.hold, until)
}

// Release ends a stall early.
func (cpu *Cpu) Release() {
	cpu.hold = 0
}

// Held returns true if instruction fetch is stalled.
func (cpu *Cpu) Held() bool {
	return cpu.cycles < cpu.hold
}

// RegisterTickable adds a tickable, first called on the next step.
func (cpu *Cpu) RegisterTickable(t Tickable) {
	cpu.tickables = append(cpu.tickables, &tickable{Tickable: t, next: cpu.cycles})
	cpu.nextTick = min(cpu.nextTick, cpu.cycles)
}

// ScheduleCycle schedules an event at an absolute cycle count.
// The event callback receives the cycle count it fired at.
func (cpu *Cpu) ScheduleCycle(ev *event.Event, cycles int64) {
	cpu.cycleQueue.Schedule(ev, cycles)
}

// ScheduleTime schedules an event at an absolute virtual time.
// The event callback receives the virtual time it fired at.
func (cpu *Cpu) ScheduleTime(ev *event.Event, vtime int64) {
	cpu.vtimeQueue.Schedule(ev, vtime)
}

// ScheduleMillis schedules an event some milliseconds from now.
func (cpu *Cpu) ScheduleMillis(ev *event.Event, msec float64) {
	cpu.ScheduleTime(ev, cpu.VirtualTime()+cpu.Clock.VirtualIn(msec))
}

// Cancel removes an event from whichever queue it is in.
func (cpu *Cpu) Cancel(ev *event.Event) bool {
	return cpu.cycleQueue.Cancel(ev) || cpu.vtimeQueue.Cancel(ev)
}

// Events iterates over all scheduled events, cycle events first.
func (cpu *Cpu) Events() iter.Seq[*event.Event] {
	return func(yield func(*event.Event) bool) {
		for _, q := range []*event.Queue{cpu.cycleQueue, cpu.vtimeQueue} {
			for ev := range q.All() {
				if !yield(ev) {
					return
				}
			}
		}
	}
}

// NextEventCycle returns the cycle count of the next due tickable or
// event, or event.NEVER.
func (cpu *Cpu) NextEventCycle() (next int64) {
	next = min(cpu.nextTick, cpu.cycleQueue.NextTime)
	if cpu.vtimeQueue.NextTime != event.NEVER {
		next = min(next, cpu.Clock.Cycles(cpu.vtimeQueue.NextTime))
	}
	return
}

// runTickables calls every due tickable.
func (cpu *Cpu) runTickables() {
	cpu.nextTick = event.NEVER
	for _, t := range cpu.tickables {
		if t.next <= cpu.cycles {
			t.next = t.Tick(cpu.cycles)
		}
		cpu.nextTick = min(cpu.nextTick, t.next)
	}
}

// fireEvents runs every due tickable and event. At the same instant,
// tickables run before cycle events, and cycle events before virtual
// time events.
func (cpu *Cpu) fireEvents() {
	for {
		if cpu.nextTick <= cpu.cycles {
			cpu.runTickables()
		}

		if cpu.cycleQueue.NextTime <= cpu.cycles {
			ev := cpu.cycleQueue.Pop()
			if cpu.Verbose {
				log.Printf("cpu: %d: event %v", cpu.cycles, ev.Name)
			}
			ev.Func(cpu.cycles)
			continue
		}

		if cpu.vtimeQueue.NextTime != event.NEVER {
			now := cpu.VirtualTime()
			if cpu.vtimeQueue.NextTime <= now {
				ev := cpu.vtimeQueue.Pop()
				if cpu.Verbose {
					log.Printf("cpu: %d: event %v", cpu.cycles, ev.Name)
				}
				ev.Func(now)
				continue
			}
		}

		break
	}
}

// Reset clears the core state, calls the reset functions, and loads the
// program counter from the reset vector. The cycle count keeps running.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset at %d", cpu.cycles)
	}

	clear(cpu.Reg[:])
	cpu.cycleQueue.Clear()
	cpu.vtimeQueue.Clear()
	cpu.Trace.Reset()

	clear(cpu.source[:])
	cpu.pending = 0
	cpu.maxInterrupt = -1
	cpu.servicedInterrupt = -1
	cpu.servicedSource = nil
	cpu.breakResume = false
	cpu.hold = 0

	cpu.interruptsEnabled = false
	cpu.WriteRegister(REG_SR, 0)

	for _, fn := range cpu.resets {
		fn()
	}

	for _, t := range cpu.tickables {
		t.next = cpu.cycles
	}
	cpu.nextTick = cpu.cycles

	cpu.WriteRegister(REG_PC, cpu.Bus.Read(VECTOR_TOP, bus.WORD))
}

// Step runs one step of the core: fire due events, then either service
// an interrupt, idle in a low power mode, or execute one instruction.
// Idling advances no further than the absolute cycle count 'maxCycles'.
func (cpu *Cpu) Step(maxCycles int64) (err error) {
	cpu.fireEvents()

	if cpu.Held() {
		next := min(cpu.NextEventCycle(), cpu.hold, maxCycles)
		if next > cpu.cycles {
			cpu.cycles = next
		}
		cpu.fireEvents()
		err = cpu.Bus.Logger.Err()
		return
	}

	if cycles, ok := cpu.serviceInterrupt(); ok {
		cpu.cycles += int64(cycles)
		err = cpu.Bus.Logger.Err()
		return
	}

	if cpu.cpuOff {
		next := min(cpu.NextEventCycle(), maxCycles)
		if next > cpu.cycles {
			cpu.cycles = next
		}
		cpu.fireEvents()
		err = cpu.Bus.Logger.Err()
		return
	}

	pc := cpu.Reg[REG_PC]
	if !cpu.Executable(pc) {
		err = &ErrExecute{PC: pc}
		return
	}

	if cpu.breakResume {
		cpu.breakResume = false
	} else if fn, ok := cpu.breakpoints[pc]; ok && fn(cpu, pc) {
		cpu.breakResume = true
		err = &ErrBreakpoint{PC: pc}
		return
	}

	cpu.Trace.Push(pc)

	word := uint16(cpu.Bus.Read(pc, bus.WORD))
	cpu.Reg[REG_PC] = (pc + 2) & 0xffff

	cycles := cpu.Execute(word)
	cpu.cycles += int64(cycles)

	err = cpu.Bus.Logger.Err()

	return
}

// Run steps the core until the cycle count reaches 'maxCycles', or an
// error occurs.
func (cpu *Cpu) Run(maxCycles int64) (err error) {
	for cpu.cycles < maxCycles {
		err = cpu.Step(maxCycles)
		if err != nil {
			return
		}
	}

	return
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	var sb strings.Builder

	for n := range REGISTER_COUNT {
		fmt.Fprintf(&sb, "%4s: %04x", registerName[n], cpu.Reg[n])
		if n%4 == 3 {
			sb.WriteString("\n")
		} else {
			sb.WriteString("  ")
		}
	}

	flags := []byte("vnzc")
	for n, bit := range []uint32{SR_V, SR_N, SR_Z, SR_C} {
		if cpu.flag(bit) {
			flags[n] -= 'a' - 'A'
		}
	}
	fmt.Fprintf(&sb, "flags: %s  gie: %v  mode: %v\n", flags, cpu.interruptsEnabled, cpu.mode)
	fmt.Fprintf(&sb, "cycles: %d  msec: %.3f\n", cpu.cycles, cpu.Millis())
	fmt.Fprintf(&sb, "interrupt: pending 0x%04x  max %d  serviced %d\n", cpu.pending, cpu.maxInterrupt, cpu.servicedInterrupt)

	var pcs []string
	for pc := range cpu.Trace.All() {
		pcs = append(pcs, fmt.Sprintf("%04x", pc))
	}
	fmt.Fprintf(&sb, "trace: %s\n", strings.Join(pcs, " "))

	var evs []string
	for ev := range cpu.Events() {
		evs = append(evs, ev.String())
	}
	fmt.Fprintf(&sb, "events: %s\n", strings.Join(evs, " "))

	text = sb.String()

	return
}
