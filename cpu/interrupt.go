package cpu

import (
	"fmt"
	"log"
	"math/bits"

	"github.com/ezrec/msp430/bus"
)

// InterruptSource is a peripheral that asserts interrupt vectors.
type InterruptSource interface {
	// InterruptServiced is called when the handler of a vector returns.
	InterruptServiced(vector int)
}

// InterruptAccepter is an InterruptSource notified on handler entry.
// Single source flags, such as a capture/compare 0 flag, are cleared here.
type InterruptAccepter interface {
	InterruptSource
	InterruptAccepted(vector int)
}

// VectorAddress returns the address of the word holding a vector's handler.
func VectorAddress(vector int) uint32 {
	return VECTOR_TOP - uint32(RESET_VECTOR-vector)*2
}

// FlagInterrupt asserts or deasserts an interrupt vector. A vector can
// only be deasserted by the source that asserted it.
func (cpu *Cpu) FlagInterrupt(vector int, source InterruptSource, active bool) {
	if vector < 0 || vector >= VECTOR_COUNT {
		cpu.Bus.Warn(bus.WARN_PERIPHERAL, 0, fmt.Sprintf("%v: %d", ErrVector, vector))
		return
	}

	bit := uint16(1) << vector
	if active {
		cpu.source[vector] = source
		cpu.pending |= bit
		if vector > cpu.maxInterrupt {
			cpu.maxInterrupt = vector
		}
		if cpu.Verbose {
			log.Printf("cpu: %d: interrupt %d asserted", cpu.cycles, vector)
		}
		return
	}

	if (cpu.pending&bit) == 0 || cpu.source[vector] != source {
		return
	}

	cpu.source[vector] = nil
	cpu.pending &^= bit
	cpu.rearbitrate()
}

// Pending returns true if an interrupt vector is asserted.
func (cpu *Cpu) Pending(vector int) bool {
	return (cpu.pending & (1 << vector)) != 0
}

// Serviced returns the vector currently being serviced, or -1.
func (cpu *Cpu) Serviced() int {
	return cpu.servicedInterrupt
}

// rearbitrate recomputes the highest pending vector.
func (cpu *Cpu) rearbitrate() {
	cpu.maxInterrupt = bits.Len16(cpu.pending) - 1
}

// handlePendingInterrupts drops the serviced state, permitting a nested
// interrupt, and re-evaluates the pending vectors.
func (cpu *Cpu) handlePendingInterrupts() {
	cpu.servicedInterrupt = -1
	cpu.servicedSource = nil
	cpu.rearbitrate()
}

// push pushes a word onto the stack.
func (cpu *Cpu) push(value uint32) {
	sp := (cpu.Reg[REG_SP] - 2) & 0xffff
	cpu.WriteRegister(REG_SP, sp)
	cpu.Bus.Write(sp, value, bus.WORD)
}

// pop pops a word from the stack.
func (cpu *Cpu) pop() (value uint32) {
	sp := cpu.Reg[REG_SP]
	value = cpu.Bus.Read(sp, bus.WORD)
	cpu.WriteRegister(REG_SP, sp+2)
	return
}

// serviceInterrupt enters the highest pending interrupt, when permitted.
func (cpu *Cpu) serviceInterrupt() (cycles int, ok bool) {
	vector := cpu.maxInterrupt
	switch {
	case vector == RESET_VECTOR:
	case vector == NMI_VECTOR && cpu.servicedInterrupt != NMI_VECTOR:
	case cpu.interruptsEnabled && cpu.servicedInterrupt < 0 && vector >= 0:
	default:
		return
	}

	ok = true

	if vector == RESET_VECTOR {
		cpu.Reset()
		return
	}

	source := cpu.source[vector]

	cpu.push(cpu.Reg[REG_PC])
	cpu.push(cpu.Reg[REG_SR])
	cpu.WriteRegister(REG_SR, 0)
	cpu.WriteRegister(REG_PC, cpu.Bus.Read(VectorAddress(vector), bus.WORD))

	cpu.servicedInterrupt = vector
	cpu.servicedSource = source

	if cpu.Verbose {
		log.Printf("cpu: %d: interrupt %d entered, handler 0x%04x", cpu.cycles, vector, cpu.Reg[REG_PC])
	}

	if accepter, accepts := source.(InterruptAccepter); accepts {
		accepter.InterruptAccepted(vector)
	}

	cpu.rearbitrate()

	cycles = INTERRUPT_CYCLE

	return
}

// reti returns from an interrupt handler.
func (cpu *Cpu) reti() {
	vector := cpu.servicedInterrupt
	source := cpu.servicedSource

	cpu.servicedInterrupt = -1
	cpu.servicedSource = nil

	cpu.WriteRegister(REG_SR, cpu.pop())
	cpu.WriteRegister(REG_PC, cpu.pop())

	if cpu.Verbose {
		log.Printf("cpu: %d: interrupt %d returned to 0x%04x", cpu.cycles, vector, cpu.Reg[REG_PC])
	}

	if vector >= 0 && source != nil {
		source.InterruptServiced(vector)
	}

	cpu.rearbitrate()
}
