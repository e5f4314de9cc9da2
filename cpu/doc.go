// Package cpu implements the MSP430 core and its assembler.
//
// The core has sixteen 16-bit registers (r0-r15), of which r0 is the
// program counter, r1 the stack pointer, r2 the status register and r3 a
// constant generator. Instructions are decoded one word at a time, and
// execute against a bus.Bus with the MCLK cycle counts of the MSP430x1xx
// family.
//
// The core also owns the scheduling of the system: cycle-timed and
// virtual-time event queues, polled Tickable peripherals, and the
// interrupt controller that arbitrates the sixteen vectors.
//
// The assembler accepts the TI mnemonics, including the emulated
// instructions, with labels, equates, macros and compile-time $()
// expressions.
package cpu
