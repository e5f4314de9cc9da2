// Package io provides the memory mapped peripherals of the MSP430F1xx
// family: special function registers, digital I/O ports, the basic clock
// module, the watchdog, the hardware multiplier, Timer_A and Timer_B, and
// the USART in UART mode.
//
// Every peripheral registers its handlers with the CPU's bus, its reset
// with the CPU's reset walk, and schedules through the CPU's event queues.
package io

import (
	"fmt"
	"iter"
	"log"

	"github.com/ezrec/msp430/bus"
	"github.com/ezrec/msp430/cpu"
)

// Peripheral is a memory mapped unit of the chip.
type Peripheral interface {
	// Name returns the name of the peripheral.
	Name() string
	// Reset returns the peripheral to its power up state.
	Reset()
	// Defines returns the register names and addresses of the peripheral.
	Defines() iter.Seq2[string, string]
	// SetVerbose enables or disables verbose logging.
	SetVerbose(verbose bool)
}

// unit is the state shared by all peripherals.
type unit struct {
	Verbose bool // Set to enable verbose logging.

	name string
	cpu  *cpu.Cpu
}

// Name returns the name of the peripheral.
func (u *unit) Name() string {
	return u.name
}

// SetVerbose enables or disables verbose logging.
func (u *unit) SetVerbose(verbose bool) {
	u.Verbose = verbose
}

// logf logs a message prefixed with the peripheral name, if verbose.
func (u *unit) logf(format string, args ...any) {
	if u.Verbose {
		log.Printf("%v: %d: %v", u.name, u.cpu.Cycles(), fmt.Sprintf(format, args...))
	}
}

// warn reports a peripheral fault through the bus warning policy.
func (u *unit) warn(kind bus.Warning, address uint32, err error) {
	u.cpu.Bus.Warn(kind, address, fmt.Sprintf("%v: %v", u.name, err))
}

// attach registers the register handlers of a peripheral, and its reset.
func (u *unit) attach(p Peripheral, start, end uint32, read bus.ReadFunc, write bus.WriteFunc) (err error) {
	_, err = u.cpu.Bus.RegisterHandler(u.name, start, end, read, write)
	if err != nil {
		return
	}

	u.cpu.RegisterReset(p.Reset)

	return
}

// byteRegisters adapts byte wide register handlers to the bus. A word
// access is split into its two bytes.
func byteRegisters(read func(address uint32) uint8, write func(address uint32, value uint8)) (bus.ReadFunc, bus.WriteFunc) {
	readFn := func(address uint32, width bus.Width) (value uint32) {
		value = uint32(read(address))
		if width != bus.BYTE {
			value |= uint32(read(address+1)) << 8
		}
		return
	}

	writeFn := func(address uint32, value uint32, width bus.Width) {
		write(address, uint8(value))
		if width != bus.BYTE {
			write(address+1, uint8(value>>8))
		}
	}

	return readFn, writeFn
}

// wordRegisters adapts word wide register handlers to the bus. A byte
// read returns one half of the word. A byte write replaces one half of
// the current value.
func wordRegisters(read func(address uint32) uint16, write func(address uint32, value uint16)) (bus.ReadFunc, bus.WriteFunc) {
	readFn := func(address uint32, width bus.Width) (value uint32) {
		value = uint32(read(address &^ 1))
		if width == bus.BYTE && (address&1) != 0 {
			value >>= 8
		}
		value &= width.Mask()
		return
	}

	writeFn := func(address uint32, value uint32, width bus.Width) {
		if width != bus.BYTE {
			write(address, uint16(value))
			return
		}
		even := address &^ 1
		old := read(even)
		if (address & 1) != 0 {
			write(even, (old&0x00ff)|uint16(value&0xff)<<8)
		} else {
			write(even, (old&0xff00)|uint16(value&0xff))
		}
	}

	return readFn, writeFn
}

// hex formats a register address for Defines.
func hex(address uint32) string {
	return fmt.Sprintf("0x%04x", address)
}
