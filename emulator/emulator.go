// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"fmt"
	"iter"
	"log"
	"maps"
	"strings"

	"github.com/ezrec/msp430/bus"
	"github.com/ezrec/msp430/clock"
	"github.com/ezrec/msp430/cpu"
	"github.com/ezrec/msp430/internal"
	"github.com/ezrec/msp430/io"
)

const (
	MEMORY_SIZE  = 0x10000         // 64KiB address space.
	MIRROR_LOW   = uint32(0x0200)  // Start of the low RAM mirror.
	MIRROR_HIGH  = uint32(0x0a00)  // End of the low RAM mirror.
	BOOT_START   = uint32(0x0c00)  // Bootstrap loader ROM.
	INFO_START   = uint32(0x1000)  // Information flash.
	RAM_START    = uint32(0x1100)  // 10KiB of RAM.
	RAM_END      = uint32(0x3900)  // End of RAM, and the initial stack top.
	FLASH_START  = uint32(0x4000)  // 48KiB of main flash.
	FLASH_END    = uint32(0x10000) // End of main flash.
	MAIN_SEGMENT = uint32(512)     // Main flash erase segment.
	INFO_SEGMENT = uint32(128)     // Information flash erase segment.
	PORT_COUNT   = 6               // Digital I/O ports.
	USART_COUNT  = 2               // USARTs.
)

var _emulator_defines = map[string]string{
	"RAM_START":   fmt.Sprintf("0x%04x", RAM_START),
	"RAM_END":     fmt.Sprintf("0x%04x", RAM_END),
	"STACK_TOP":   fmt.Sprintf("0x%04x", RAM_END),
	"INFO_START":  fmt.Sprintf("0x%04x", INFO_START),
	"FLASH_START": fmt.Sprintf("0x%04x", FLASH_START),
}

// portLayout is the base address and interrupt vector of each port.
var portLayout = [PORT_COUNT]struct {
	base   uint32
	vector int
}{
	{0x0020, 4},
	{0x0028, 1},
	{0x0018, -1},
	{0x001c, -1},
	{0x0030, -1},
	{0x0034, -1},
}

// Emulator is an MSP430F1611: the core, its memory map and peripherals.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently loaded program listing.
	Config   Config       // Configuration the emulator was built with.

	SFR        *io.SFR
	Port       [PORT_COUNT]*io.Port
	BasicClock *io.BasicClock
	Flash      *io.Flash
	Watchdog   *io.Watchdog
	Multiplier *io.Multiplier
	TimerA     *io.Timer
	TimerB     *io.Timer
	Usart      [USART_COUNT]*io.Usart

	Tape [USART_COUNT]io.Tape // Serial streams of the USARTs.

	peripherals []io.Peripheral
}

// NewEmulator creates an emulator from a configuration.
func NewEmulator(config Config) (emu *Emulator, err error) {
	b := bus.NewBus(MEMORY_SIZE)
	b.Logger.Policy = config.Policy
	b.Logger.Override = maps.Clone(config.Override)

	emu = &Emulator{
		Verbose: config.Verbose,
		Cpu:     cpu.NewCpu(b, clock.NewClock()),
		Program: &cpu.Program{},
		Config:  config,
	}

	if config.Trace > 0 {
		emu.Cpu.Trace.Limit = config.Trace
	}

	err = emu.mapMemory()
	if err != nil {
		return
	}

	err = emu.attachPeripherals()
	if err != nil {
		return
	}

	emu.wireCaptures()

	err = emu.setVerbose(config.Verbosity)
	if err != nil {
		return
	}

	return
}

// mapMemory marks the boot ROM read-only, and maps the low RAM mirror and
// the unmapped gaps. The flash arrays belong to the flash controller.
func (emu *Emulator) mapMemory() (err error) {
	b := emu.Cpu.Bus

	mirror := func(address uint32) uint32 {
		return address - MIRROR_LOW + RAM_START
	}
	_, err = b.RegisterHandler("ram_mirror", MIRROR_LOW, MIRROR_HIGH,
		func(address uint32, width bus.Width) (value uint32) {
			address = mirror(address)
			for n := range width.Size() {
				value |= uint32(b.Memory[address+n]) << (8 * n)
			}
			return
		},
		func(address uint32, value uint32, width bus.Width) {
			address = mirror(address)
			for n := range width.Size() {
				b.Memory[address+n] = byte(value >> (8 * n))
			}
		})
	if err != nil {
		return
	}

	for _, region := range []struct {
		name       string
		start, end uint32
	}{
		{"boot", BOOT_START, INFO_START},
	} {
		_, err = b.SetReadOnly(region.name, region.start, region.end)
		if err != nil {
			return
		}
	}

	emu.Cpu.SetUnmapped(MIRROR_HIGH, BOOT_START)
	emu.Cpu.SetUnmapped(RAM_END, FLASH_START)

	return
}

// attachPeripherals creates the peripherals. The special function
// registers come first, as the others register their bits there, and
// the basic clock module comes before the units that observe the clock.
func (emu *Emulator) attachPeripherals() (err error) {
	c := emu.Cpu

	emu.SFR, err = io.NewSFR(c)
	if err != nil {
		return
	}

	emu.BasicClock, err = io.NewBasicClock(c)
	if err != nil {
		return
	}

	emu.Flash, err = io.NewFlash(c, emu.SFR, io.FlashConfig{
		Main: io.FlashRange{Name: "flash", Start: FLASH_START, End: FLASH_END, Segment: MAIN_SEGMENT},
		Info: io.FlashRange{Name: "info", Start: INFO_START, End: RAM_START, Segment: INFO_SEGMENT},
	})
	if err != nil {
		return
	}

	for n, layout := range portLayout {
		if layout.vector >= 0 {
			emu.Port[n], err = io.NewInterruptPort(c, n+1, layout.base, layout.vector)
		} else {
			emu.Port[n], err = io.NewPort(c, n+1, layout.base)
		}
		if err != nil {
			return
		}
	}

	emu.Watchdog, err = io.NewWatchdog(c, emu.SFR)
	if err != nil {
		return
	}

	emu.Multiplier, err = io.NewMultiplier(c)
	if err != nil {
		return
	}

	emu.TimerA, err = io.NewTimer(c, io.TIMER_A3)
	if err != nil {
		return
	}

	emu.TimerB, err = io.NewTimer(c, io.TIMER_B7)
	if err != nil {
		return
	}

	for n, config := range []io.UsartConfig{io.USART0, io.USART1} {
		emu.Usart[n], err = io.NewUsart(c, emu.SFR, config, &emu.Tape[n])
		if err != nil {
			return
		}
	}

	emu.peripherals = []io.Peripheral{emu.SFR, emu.BasicClock, emu.Flash}
	for _, port := range emu.Port {
		emu.peripherals = append(emu.peripherals, port)
	}
	emu.peripherals = append(emu.peripherals,
		emu.Watchdog, emu.Multiplier, emu.TimerA, emu.TimerB,
		emu.Usart[0], emu.Usart[1])

	return
}

// wireCaptures connects the port pins to the timer capture inputs.
func (emu *Emulator) wireCaptures() {
	capture := func(tm *io.Timer, n int, input int) io.PinWatcher {
		return func(pin int, high bool) {
			tm.Capture(n, input, high)
		}
	}

	p1 := emu.Port[0]
	p2 := emu.Port[1]
	p4 := emu.Port[3]

	p1.Watch(1, capture(emu.TimerA, 0, io.CCI_A))
	p2.Watch(2, capture(emu.TimerA, 0, io.CCI_B))
	p1.Watch(2, capture(emu.TimerA, 1, io.CCI_A))
	p1.Watch(3, capture(emu.TimerA, 2, io.CCI_A))

	for n := range io.TIMER_B7.Count {
		p4.Watch(n, capture(emu.TimerB, n, io.CCI_A))
		p4.Watch(n, capture(emu.TimerB, n, io.CCI_B))
	}
}

// setVerbose enables the verbose logging of the named components.
func (emu *Emulator) setVerbose(names []string) (err error) {
	for _, name := range names {
		switch name {
		case "cpu":
			emu.Cpu.Verbose = true
		case "bus":
			emu.Cpu.Bus.Verbose = true
		case "clock":
			emu.Cpu.Clock.Verbose = true
		default:
			p, ok := emu.Peripheral(name)
			if !ok {
				err = fmt.Errorf("%w: %v", ErrComponent, name)
				return
			}
			p.SetVerbose(true)
		}
	}

	return
}

// Peripheral returns a peripheral by name.
func (emu *Emulator) Peripheral(name string) (p io.Peripheral, ok bool) {
	for _, p = range emu.peripherals {
		if strings.EqualFold(p.Name(), name) {
			ok = true
			return
		}
	}

	p = nil
	return
}

// Peripherals iterates over the peripherals, in reset order.
func (emu *Emulator) Peripherals() iter.Seq[io.Peripheral] {
	return func(yield func(io.Peripheral) bool) {
		for _, p := range emu.peripherals {
			if !yield(p) {
				return
			}
		}
	}
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	seqs := []iter.Seq2[string, string]{
		maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	}
	for _, p := range emu.peripherals {
		seqs = append(seqs, p.Defines())
	}

	return internal.Concat2(seqs...)
}

// Assembler returns an assembler with the chip defines predefined.
func (emu *Emulator) Assembler() (asm *cpu.Assembler) {
	asm = &cpu.Assembler{}
	for name, value := range emu.Defines() {
		asm.Predefine(name, value)
	}

	return
}

// LoadProgram copies an assembled program into memory.
func (emu *Emulator) LoadProgram(prog *cpu.Program) (err error) {
	err = prog.Load(emu.Cpu.Bus)
	if err != nil {
		return
	}

	emu.Program = prog

	return
}

// Load copies a raw firmware image into memory at a base address.
func (emu *Emulator) Load(image []byte, base uint32) (err error) {
	err = emu.Cpu.Bus.Load(base, image)
	if err != nil {
		return
	}

	if emu.Verbose {
		log.Printf("emulator: loaded %d bytes at 0x%04x", len(image), base)
	}

	return
}

// Reset performs a power up reset of the chip.
func (emu *Emulator) Reset() {
	emu.Cpu.Reset()

	// Discard warnings raised while the peripherals reset.
	_ = emu.Cpu.Bus.Logger.Err()
}

// LineNo returns the source line number of the program at an address,
// or 0 if the address is not in the program listing.
func (emu *Emulator) LineNo(pc uint32) int {
	if emu.Program == nil {
		return 0
	}

	dbg := emu.Program.Debug(pc)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// wrap wraps an error with the location it was raised at.
func (emu *Emulator) wrap(err error) error {
	pc, ok := emu.Cpu.Trace.Last()
	if !ok {
		pc = emu.Cpu.Reg[cpu.REG_PC]
	}

	return &ErrRuntime{
		PC:     pc,
		LineNo: emu.LineNo(pc),
		Cycles: emu.Cpu.Cycles(),
		Err:    err,
	}
}

// Step performs a single step of the core.
func (emu *Emulator) Step() (err error) {
	err = emu.Cpu.Step(emu.Cpu.Cycles() + 1)
	if err != nil {
		err = emu.wrap(err)
	}

	return
}

// Run runs the emulator for a number of cycles, or until an error. The
// step that reaches the limit may run a few cycles past it.
func (emu *Emulator) Run(cycles int64) (err error) {
	err = emu.Cpu.Run(emu.Cpu.Cycles() + cycles)
	if err != nil {
		err = emu.wrap(err)
	}

	return
}

// RunMillis runs the emulator for some milliseconds of virtual time.
func (emu *Emulator) RunMillis(msec float64) (err error) {
	return emu.Run(emu.Cpu.Clock.CyclesIn(msec))
}

// Dump returns the diagnostic state of the core and the warning counts.
func (emu *Emulator) Dump() string {
	var sb strings.Builder

	sb.WriteString(emu.Cpu.String())
	for kind, count := range emu.Cpu.Bus.Logger.Count {
		if count > 0 {
			fmt.Fprintf(&sb, "warning: %v: %d\n", bus.Warning(kind), count)
		}
	}

	return sb.String()
}
