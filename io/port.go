package io

import (
	"fmt"
	"iter"
	"maps"

	"github.com/ezrec/msp430/bus"
	"github.com/ezrec/msp430/cpu"
)

// Port register offsets. Ports with interrupts have IFG, IES and IE
// between DIR and SEL.
const (
	PORT_IN  = 0
	PORT_OUT = 1
	PORT_DIR = 2
	PORT_IFG = 3
	PORT_IES = 4
	PORT_IE  = 5
	PORT_SEL = 6

	PORT_SEL_NOINT = 3 // SEL offset of a port without interrupts.
)

// PortListener is called with the driven pin levels, OUT | ^DIR, when
// OUT or DIR is written.
type PortListener func(port *Port, value uint8)

// PinWatcher is called when an input pin changes level.
type PinWatcher func(pin int, high bool)

// Port is a digital I/O port of eight pins.
type Port struct {
	unit

	Number int // Port number.

	base   uint32
	vector int // Interrupt vector, or -1.

	in, out, dir, sel uint8
	ifg, ies, ie      uint8

	listeners []PortListener
	watchers  [8][]PinWatcher
}

var _ Peripheral = (*Port)(nil)
var _ cpu.InterruptSource = (*Port)(nil)

// NewPort creates a port without interrupts.
func NewPort(c *cpu.Cpu, number int, base uint32) (port *Port, err error) {
	return newPort(c, number, base, -1)
}

// NewInterruptPort creates a port whose input edges flag an interrupt vector.
func NewInterruptPort(c *cpu.Cpu, number int, base uint32, vector int) (port *Port, err error) {
	return newPort(c, number, base, vector)
}

func newPort(c *cpu.Cpu, number int, base uint32, vector int) (port *Port, err error) {
	port = &Port{
		unit:   unit{name: fmt.Sprintf("port%d", number), cpu: c},
		Number: number,
		base:   base,
		vector: vector,
	}

	size := uint32(PORT_SEL_NOINT + 1)
	if vector >= 0 {
		size = PORT_SEL + 1
	}

	read, write := byteRegisters(port.read, port.write)
	err = port.attach(port, base, base+size, read, write)
	if err != nil {
		return
	}

	return
}

// Defines returns the register names and addresses.
func (port *Port) Defines() iter.Seq2[string, string] {
	prefix := fmt.Sprintf("P%d", port.Number)
	defs := map[string]string{
		prefix + "IN":  hex(port.base + PORT_IN),
		prefix + "OUT": hex(port.base + PORT_OUT),
		prefix + "DIR": hex(port.base + PORT_DIR),
	}
	if port.vector >= 0 {
		defs[prefix+"IFG"] = hex(port.base + PORT_IFG)
		defs[prefix+"IES"] = hex(port.base + PORT_IES)
		defs[prefix+"IE"] = hex(port.base + PORT_IE)
		defs[prefix+"SEL"] = hex(port.base + PORT_SEL)
		defs[prefix+"_VECTOR"] = fmt.Sprintf("%d", port.vector)
	} else {
		defs[prefix+"SEL"] = hex(port.base + PORT_SEL_NOINT)
	}
	return maps.All(defs)
}

// Reset clears the registers. The input pins keep their levels.
func (port *Port) Reset() {
	port.out = 0
	port.dir = 0
	port.sel = 0
	port.ifg = 0
	port.ies = 0
	port.ie = 0
}

// Listen adds a listener of the driven pin levels.
func (port *Port) Listen(fn PortListener) {
	port.listeners = append(port.listeners, fn)
}

// Watch adds a watcher of an input pin.
func (port *Port) Watch(pin int, fn PinWatcher) {
	port.watchers[pin] = append(port.watchers[pin], fn)
}

// Out returns the OUT register.
func (port *Port) Out() uint8 {
	return port.out
}

// Dir returns the DIR register.
func (port *Port) Dir() uint8 {
	return port.dir
}

// In returns the IN register.
func (port *Port) In() uint8 {
	return port.in
}

// SetPin drives an input pin from outside of the chip.
func (port *Port) SetPin(pin int, high bool) {
	if pin < 0 || pin > 7 {
		port.warn(bus.WARN_PERIPHERAL, port.base, fmt.Errorf("%w: %d", ErrPinRange, pin))
		return
	}

	bit := uint8(1) << pin
	if ((port.in & bit) != 0) == high {
		return
	}

	if high {
		port.in |= bit
	} else {
		port.in &^= bit
	}

	port.logf("pin %d: %v", pin, high)

	if port.vector >= 0 {
		falling := (port.ies & bit) != 0
		if falling != high {
			port.ifg |= bit
			port.update()
		}
	}

	for _, fn := range port.watchers[pin] {
		fn(pin, high)
	}
}

// update flags the port interrupt from IFG and IE.
func (port *Port) update() {
	if port.vector < 0 {
		return
	}
	port.cpu.FlagInterrupt(port.vector, port, (port.ifg&port.ie) != 0)
}

// InterruptServiced re-flags the interrupt while enabled flags remain.
func (port *Port) InterruptServiced(vector int) {
	port.update()
}

// notify calls the listeners.
func (port *Port) notify() {
	value := port.out | ^port.dir
	for _, fn := range port.listeners {
		fn(port, value)
	}
}

func (port *Port) read(address uint32) (value uint8) {
	offset := address - port.base
	if port.vector < 0 && offset == PORT_SEL_NOINT {
		return port.sel
	}

	switch offset {
	case PORT_IN:
		value = port.in
	case PORT_OUT:
		value = port.out
	case PORT_DIR:
		value = port.dir
	case PORT_IFG:
		value = port.ifg
	case PORT_IES:
		value = port.ies
	case PORT_IE:
		value = port.ie
	case PORT_SEL:
		value = port.sel
	}
	return
}

func (port *Port) write(address uint32, value uint8) {
	offset := address - port.base
	if port.vector < 0 && offset == PORT_SEL_NOINT {
		port.sel = value
		return
	}

	switch offset {
	case PORT_IN:
		port.cpu.Bus.Warn(bus.WARN_READ_ONLY, address, port.name)
	case PORT_OUT:
		port.out = value
		port.notify()
	case PORT_DIR:
		port.dir = value
		port.notify()
	case PORT_IFG:
		port.ifg = value
		port.update()
	case PORT_IES:
		port.ies = value
	case PORT_IE:
		port.ie = value
		port.update()
	case PORT_SEL:
		port.sel = value
	}
}
